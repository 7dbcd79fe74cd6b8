package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// WebhookMessage is the card payload posted to the configured webhook.
type WebhookMessage struct {
	Title    string           `json:"title"`
	Text     string           `json:"text"`
	Sections []WebhookSection `json:"sections,omitempty"`
}

type WebhookSection struct {
	ActivityTitle string        `json:"activityTitle,omitempty"`
	ActivityText  string        `json:"activityText,omitempty"`
	Facts         []WebhookFact `json:"facts,omitempty"`
}

type WebhookFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendRankingReport delivers a leaderboard snapshot via the configured
// channels. Channel failures are collected, not fatal one by one.
func (s *Service) SendRankingReport(snapshot *models.RankingSnapshot) error {
	var errs []string

	if s.config.WebhookURL != "" {
		if err := s.postWebhook(s.buildReportMessage(snapshot)); err != nil {
			logrus.Errorf("Failed to send webhook report: %v", err)
			errs = append(errs, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Infof("Sent ranking report for org %s to webhook", snapshot.OrganizationID)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendReportEmail(snapshot); err != nil {
			logrus.Errorf("Failed to send email report: %v", err)
			errs = append(errs, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Infof("Sent ranking report for org %s via email", snapshot.OrganizationID)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendEvent delivers one domain event as a webhook card. Events are
// best-effort: with no webhook configured they are only logged.
func (s *Service) SendEvent(event models.Event) error {
	if s.config.WebhookURL == "" {
		logrus.Debugf("No webhook configured, event %s for org %s logged only", event.Type, event.OrganizationID)
		return nil
	}

	message := s.buildEventMessage(event)
	if err := s.postWebhook(message); err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.Type, err)
	}
	return nil
}

func (s *Service) postWebhook(message *WebhookMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.WebhookURL)

	if err != nil {
		return fmt.Errorf("failed to post webhook message: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (s *Service) buildReportMessage(snapshot *models.RankingSnapshot) *WebhookMessage {
	message := &WebhookMessage{
		Title: fmt.Sprintf("Ambassador Ranking - %s", snapshot.OrganizationID),
		Text:  fmt.Sprintf("%d ambassadors ranked on %s", len(snapshot.Entries), snapshot.GeneratedAt.Format("January 2, 2006")),
	}

	var facts []WebhookFact
	for status, bucket := range snapshot.Distribution {
		facts = append(facts, WebhookFact{
			Name:  string(status),
			Value: fmt.Sprintf("%d (%d%%)", bucket.Count, bucket.Percentage),
		})
	}
	message.Sections = append(message.Sections, WebhookSection{
		ActivityTitle: "Performance Distribution",
		Facts:         facts,
	})

	if len(snapshot.Entries) > 0 {
		var top []string
		for i, entry := range snapshot.Entries {
			if i >= 5 {
				break
			}
			top = append(top, fmt.Sprintf("%d. @%s - %d pts (%s, %d%% completion)",
				entry.Rank, entry.InstagramUser, entry.Points, entry.Category, entry.CompletionRate))
		}
		message.Sections = append(message.Sections, WebhookSection{
			ActivityTitle: "Top Ambassadors",
			ActivityText:  strings.Join(top, "\n"),
		})
	}

	return message
}

func (s *Service) buildEventMessage(event models.Event) *WebhookMessage {
	switch event.Type {
	case models.EventMentionCompleted:
		return &WebhookMessage{
			Title: "Story verified",
			Text:  fmt.Sprintf("Mention %s completed with reach %d", event.MentionID, event.Reach),
			Sections: []WebhookSection{{
				Facts: []WebhookFact{
					{Name: "Ambassador", Value: event.AmbassadorID},
					{Name: "Campaign", Value: event.FiestaID},
				},
			}},
		}
	case models.EventMentionFlagged:
		return &WebhookMessage{
			Title: "Story deleted early",
			Text:  fmt.Sprintf("Mention %s was removed before the minimum dwell time", event.MentionID),
			Sections: []WebhookSection{{
				Facts: []WebhookFact{{Name: "Ambassador", Value: event.AmbassadorID}},
			}},
		}
	case models.EventMentionExpired:
		return &WebhookMessage{
			Title: "Story expired unverified",
			Text:  fmt.Sprintf("Mention %s passed its deadline without a conclusive check", event.MentionID),
		}
	case models.EventAmbassadorTierChanged:
		return &WebhookMessage{
			Title: "Ambassador tier changed",
			Text: fmt.Sprintf("Ambassador %s moved from %s to %s (%d points)",
				event.AmbassadorID, event.OldCategory, event.NewCategory, event.Points),
		}
	default:
		return &WebhookMessage{
			Title: string(event.Type),
			Text:  fmt.Sprintf("Event for org %s", event.OrganizationID),
		}
	}
}

func (s *Service) sendReportEmail(snapshot *models.RankingSnapshot) error {
	subject := fmt.Sprintf("Ambassador Ranking Report - %s (%d ambassadors)",
		snapshot.OrganizationID, len(snapshot.Entries))

	htmlBody, err := s.buildEmailHTML(snapshot)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(snapshot))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *Service) buildEmailHTML(snapshot *models.RankingSnapshot) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Ambassador Ranking Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #6b2d8b; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        table { border-collapse: collapse; width: 100%; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #ddd; }
        .gold { color: #b8860b; }
        .diamond { color: #4169e1; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Ambassador Ranking</h1>
        <p>Organization {{.OrganizationID}} - generated {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Performance Distribution</h2>
        {{range $status, $bucket := .Distribution}}
            <p><strong>{{$status}}:</strong> {{$bucket.Count}} ({{$bucket.Percentage}}%)</p>
        {{end}}
    </div>

    {{if .Entries}}
    <h2>Leaderboard</h2>
    <table>
        <tr><th>Rank</th><th>Ambassador</th><th>Points</th><th>Category</th><th>Completion</th></tr>
        {{range $index, $entry := .Entries}}
            {{if lt $index 20}}
            <tr>
                <td>{{$entry.Rank}}</td>
                <td>@{{$entry.InstagramUser}}</td>
                <td>{{$entry.Points}}</td>
                <td class="{{$entry.Category}}">{{$entry.Category}}</td>
                <td>{{$entry.CompletionRate}}%</td>
            </tr>
            {{end}}
        {{end}}
    </table>
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the campaign verification service.</small></p>
</body>
</html>
`

	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, snapshot); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Service) buildEmailText(snapshot *models.RankingSnapshot) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Ambassador Ranking Report - %s\n", snapshot.OrganizationID))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", snapshot.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("PERFORMANCE DISTRIBUTION\n")
	text.WriteString("========================\n")
	for status, bucket := range snapshot.Distribution {
		text.WriteString(fmt.Sprintf("%s: %d (%d%%)\n", status, bucket.Count, bucket.Percentage))
	}

	if len(snapshot.Entries) > 0 {
		text.WriteString("\nLEADERBOARD\n")
		text.WriteString("===========\n")

		limit := 20
		if len(snapshot.Entries) < limit {
			limit = len(snapshot.Entries)
		}
		for i := 0; i < limit; i++ {
			entry := snapshot.Entries[i]
			text.WriteString(fmt.Sprintf("%d. @%s - %d pts (%s, %d%% completion)\n",
				entry.Rank, entry.InstagramUser, entry.Points, entry.Category, entry.CompletionRate))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the campaign verification service.\n")
	return text.String()
}
