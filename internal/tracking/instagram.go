package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// InstagramProber checks story liveness and reach through the Instagram
// Graph API. Requests are rate limited and run behind a circuit breaker so
// a flapping platform API degrades into indeterminate observations instead
// of being hammered.
type InstagramProber struct {
	client      *resty.Client
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	baseURL     string
	accessToken string
}

// Ensure InstagramProber implements Prober
var _ Prober = (*InstagramProber)(nil)

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewInstagramProber creates a probe client from configuration.
func NewInstagramProber(cfg *config.Config) *InstagramProber {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "instagram-graph",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &InstagramProber{
		client:      resty.New().SetTimeout(30 * time.Second),
		breaker:     breaker,
		limiter:     rate.NewLimiter(rate.Limit(cfg.ProbeRateLimit), cfg.ProbeBurst),
		baseURL:     cfg.InstagramAPIBaseURL,
		accessToken: cfg.InstagramAccessToken,
	}
}

// IsEnabled reports whether credentials are configured.
func (p *InstagramProber) IsEnabled() bool {
	return p.accessToken != ""
}

// CheckStory fetches the reach insight for a story. Missing media maps to a
// removed observation; transport failures and an open breaker map to
// indeterminate.
func (p *InstagramProber) CheckStory(ctx context.Context, storyID, username string) (models.ProbeResult, error) {
	if !p.IsEnabled() {
		logrus.Debug("Instagram prober disabled - missing access token")
		return models.ProbeResult{Outcome: models.ProbeIndeterminate}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return models.ProbeResult{Outcome: models.ProbeIndeterminate}, err
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetchInsights(ctx, storyID)
	})
	if err != nil {
		return models.ProbeResult{Outcome: models.ProbeIndeterminate}, err
	}

	return result.(models.ProbeResult), nil
}

func (p *InstagramProber) fetchInsights(ctx context.Context, storyID string) (models.ProbeResult, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"metric":       "reach",
			"access_token": p.accessToken,
		}).
		Get(fmt.Sprintf("%s/%s/insights", p.baseURL, storyID))

	if err != nil {
		return models.ProbeResult{}, fmt.Errorf("insights request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == 200:
		var insights insightsResponse
		if err := json.Unmarshal(resp.Body(), &insights); err != nil {
			return models.ProbeResult{}, fmt.Errorf("failed to parse insights response: %w", err)
		}
		for _, metric := range insights.Data {
			if metric.Name == "reach" && len(metric.Values) > 0 {
				return models.ProbeResult{Outcome: models.ProbeAlive, Reach: metric.Values[0].Value}, nil
			}
		}
		// Live media without the reach metric is not a conclusive check.
		return models.ProbeResult{Outcome: models.ProbeIndeterminate}, nil

	case resp.StatusCode() == 404:
		return models.ProbeResult{Outcome: models.ProbeRemoved}, nil

	case resp.StatusCode() == 400:
		// The Graph API reports expired or deleted media as code 100 on a
		// 400 response rather than a plain 404.
		var graphErr graphErrorResponse
		if err := json.Unmarshal(resp.Body(), &graphErr); err == nil && graphErr.Error.Code == 100 {
			return models.ProbeResult{Outcome: models.ProbeRemoved}, nil
		}
		return models.ProbeResult{}, fmt.Errorf("insights request rejected: %s", string(resp.Body()))

	default:
		return models.ProbeResult{}, fmt.Errorf("insights request returned status %d", resp.StatusCode())
	}
}
