package matching

import (
	"strings"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of matching a raw event against known ambassadors
// and campaigns. Either id may be nil; a mention with no matches is still
// created and left for manual resolution.
type Result struct {
	AmbassadorID *string
	FiestaID     *string
}

// Service resolves raw mention events to ambassadors and campaigns. It is
// stateless and safe for concurrent use.
type Service struct{}

// NewService creates a new matcher.
func NewService() *Service {
	return &Service{}
}

// Match resolves a raw event against the candidate ambassadors and campaigns
// of its organization. Ambiguity never blocks ingestion: collisions fall back
// to a best guess and are logged.
func (s *Service) Match(event models.RawMentionEvent, ambassadors []models.Ambassador, fiestas []models.Fiesta) Result {
	result := Result{}

	if ambassador := s.matchAmbassador(event, ambassadors); ambassador != nil {
		id := ambassador.ID
		result.AmbassadorID = &id
	}

	if fiesta := s.matchFiesta(event, fiestas); fiesta != nil {
		id := fiesta.ID
		result.FiestaID = &id
	}

	return result
}

func (s *Service) matchAmbassador(event models.RawMentionEvent, ambassadors []models.Ambassador) *models.Ambassador {
	username := strings.ToLower(strings.TrimSpace(event.Username))
	if username == "" {
		return nil
	}

	var matches []models.Ambassador
	for _, ambassador := range ambassadors {
		if ambassador.OrganizationID != event.OrganizationID {
			continue
		}
		if strings.ToLower(strings.TrimSpace(ambassador.InstagramUser)) == username {
			matches = append(matches, ambassador)
		}
	}

	if len(matches) == 0 {
		return nil
	}

	// Duplicate ambassador records for one username are a data error; pick
	// the most recently updated and report the ambiguity.
	best := matches[0]
	for _, candidate := range matches[1:] {
		if candidate.UpdatedAt.After(best.UpdatedAt) {
			best = candidate
		}
	}
	if len(matches) > 1 {
		logrus.Warnf("MatchAmbiguous: %d ambassador records for username %s in org %s, picked %s",
			len(matches), event.Username, event.OrganizationID, best.ID)
	}

	return &best
}

func (s *Service) matchFiesta(event models.RawMentionEvent, fiestas []models.Fiesta) *models.Fiesta {
	eventTags := make(map[string]bool)
	for _, tag := range event.Hashtags {
		if normalized := NormalizeHashtag(tag); normalized != "" {
			eventTags[normalized] = true
		}
	}
	// Stories often carry tags only in the caption text.
	for _, tag := range ExtractHashtags(event.Caption) {
		eventTags[tag] = true
	}

	if len(eventTags) == 0 {
		return nil
	}

	var matches []models.Fiesta
	for _, fiesta := range fiestas {
		if fiesta.OrganizationID != event.OrganizationID {
			continue
		}
		if fiesta.Status != models.FiestaStatusActive {
			continue
		}
		if s.fiestaMatchesTags(fiesta, eventTags) {
			matches = append(matches, fiesta)
		}
	}

	if len(matches) == 0 {
		return nil
	}

	// Most recently launched campaign wins on overlapping hashtags.
	best := matches[0]
	for _, candidate := range matches[1:] {
		if candidate.CreatedAt.After(best.CreatedAt) {
			best = candidate
		}
	}
	if len(matches) > 1 {
		logrus.Infof("Hashtag tie-break: %d active campaigns matched story %s, picked %s (%s)",
			len(matches), event.InstagramStoryID, best.ID, best.Name)
	}

	return &best
}

func (s *Service) fiestaMatchesTags(fiesta models.Fiesta, eventTags map[string]bool) bool {
	if eventTags[NormalizeHashtag(fiesta.PrimaryHashtag)] {
		return true
	}
	for _, tag := range fiesta.SecondaryHashtags {
		if eventTags[NormalizeHashtag(tag)] {
			return true
		}
	}
	return false
}

// NormalizeHashtag canonicalizes a hashtag: trimmed, lower-cased, with a
// single leading #. Empty input normalizes to "".
func NormalizeHashtag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.TrimLeft(tag, "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// ExtractHashtags pulls normalized hashtags out of free caption text.
func ExtractHashtags(caption string) []string {
	var tags []string
	for _, word := range strings.Fields(caption) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		// Strip trailing punctuation commonly glued to caption tags.
		word = strings.TrimRight(word, ".,!?:;)")
		if normalized := NormalizeHashtag(word); normalized != "" {
			tags = append(tags, normalized)
		}
	}
	return tags
}
