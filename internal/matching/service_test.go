package matching

import (
	"testing"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Match_Ambassador(t *testing.T) {
	service := NewService()

	ambassadors := []models.Ambassador{
		{ID: "amb-1", OrganizationID: "org-1", InstagramUser: "MariaFlores"},
		{ID: "amb-2", OrganizationID: "org-1", InstagramUser: "pedro.soto"},
		{ID: "amb-3", OrganizationID: "org-2", InstagramUser: "mariaflores"},
	}

	tests := []struct {
		name     string
		event    models.RawMentionEvent
		expected *string
	}{
		{
			name:     "Case-insensitive username match",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Username: "mariaflores"},
			expected: strPtr("amb-1"),
		},
		{
			name:     "Exact username match",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Username: "pedro.soto"},
			expected: strPtr("amb-2"),
		},
		{
			name:     "Same username in another organization does not match",
			event:    models.RawMentionEvent{OrganizationID: "org-3", Username: "mariaflores"},
			expected: nil,
		},
		{
			name:     "Unknown username leaves ambassador null",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Username: "nobody"},
			expected: nil,
		},
		{
			name:     "Empty username leaves ambassador null",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Username: "  "},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.Match(tt.event, ambassadors, nil)
			if tt.expected == nil {
				assert.Nil(t, result.AmbassadorID)
			} else {
				require.NotNil(t, result.AmbassadorID)
				assert.Equal(t, *tt.expected, *result.AmbassadorID)
			}
		})
	}
}

func TestService_Match_AmbiguousAmbassadorPicksMostRecentlyUpdated(t *testing.T) {
	service := NewService()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ambassadors := []models.Ambassador{
		{ID: "amb-old", OrganizationID: "org-1", InstagramUser: "dupuser", UpdatedAt: older},
		{ID: "amb-new", OrganizationID: "org-1", InstagramUser: "DupUser", UpdatedAt: newer},
	}

	result := service.Match(models.RawMentionEvent{OrganizationID: "org-1", Username: "dupuser"}, ambassadors, nil)

	require.NotNil(t, result.AmbassadorID)
	assert.Equal(t, "amb-new", *result.AmbassadorID)
}

func TestService_Match_Fiesta(t *testing.T) {
	service := NewService()

	fiestas := []models.Fiesta{
		{
			ID:                "fiesta-active",
			OrganizationID:    "org-1",
			PrimaryHashtag:    "#VeranoFest",
			SecondaryHashtags: []string{"#verano2024"},
			Status:            models.FiestaStatusActive,
		},
		{
			ID:             "fiesta-done",
			OrganizationID: "org-1",
			PrimaryHashtag: "#FiestaX",
			Status:         models.FiestaStatusCompleted,
		},
	}

	tests := []struct {
		name     string
		event    models.RawMentionEvent
		expected *string
	}{
		{
			name:     "Primary hashtag match, case-insensitive",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Hashtags: []string{"#veranofest"}},
			expected: strPtr("fiesta-active"),
		},
		{
			name:     "Secondary hashtag match without # prefix",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Hashtags: []string{"Verano2024"}},
			expected: strPtr("fiesta-active"),
		},
		{
			name:     "Inactive campaign is ineligible",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Hashtags: []string{"#FiestaX"}},
			expected: nil,
		},
		{
			name:     "Hashtag extracted from caption",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Caption: "gran noche #VeranoFest!"},
			expected: strPtr("fiesta-active"),
		},
		{
			name:     "No hashtags leaves campaign null",
			event:    models.RawMentionEvent{OrganizationID: "org-1", Caption: "sin tags"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.Match(tt.event, nil, fiestas)
			if tt.expected == nil {
				assert.Nil(t, result.FiestaID)
			} else {
				require.NotNil(t, result.FiestaID)
				assert.Equal(t, *tt.expected, *result.FiestaID)
			}
		})
	}
}

func TestService_Match_FiestaTieBreakLatestCreated(t *testing.T) {
	service := NewService()

	fiestas := []models.Fiesta{
		{
			ID:             "fiesta-early",
			OrganizationID: "org-1",
			PrimaryHashtag: "#shared",
			Status:         models.FiestaStatusActive,
			CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:             "fiesta-late",
			OrganizationID: "org-1",
			PrimaryHashtag: "#shared",
			Status:         models.FiestaStatusActive,
			CreatedAt:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	result := service.Match(models.RawMentionEvent{OrganizationID: "org-1", Hashtags: []string{"#shared"}}, nil, fiestas)

	require.NotNil(t, result.FiestaID)
	assert.Equal(t, "fiesta-late", *result.FiestaID)
}

func TestNormalizeHashtag(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"#VeranoFest", "#veranofest"},
		{"  verano2024 ", "#verano2024"},
		{"##doble", "#doble"},
		{"#", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeHashtag(tt.input))
	}
}

func TestExtractHashtags(t *testing.T) {
	tags := ExtractHashtags("gran noche con #VeranoFest y #amigos! nos vemos #pronto.")
	assert.Equal(t, []string{"#veranofest", "#amigos", "#pronto"}, tags)
}

func strPtr(s string) *string { return &s }
