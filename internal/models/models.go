package models

import "time"

// MentionState is the lifecycle state of a tracked mention.
type MentionState string

const (
	MentionStateNew                MentionState = "new"
	MentionStateCompleted          MentionState = "completed"
	MentionStateFlaggedEarlyDelete MentionState = "flagged_early_delete"
	MentionStateExpiredUnknown     MentionState = "expired_unknown"
)

// Terminal reports whether no further transition can leave this state.
func (s MentionState) Terminal() bool {
	switch s {
	case MentionStateCompleted, MentionStateFlaggedEarlyDelete, MentionStateExpiredUnknown:
		return true
	}
	return false
}

// Mention is one observed story reference to a campaign. Mentions are never
// deleted, only transitioned, so the table doubles as an audit trail.
type Mention struct {
	ID                  string       `gorm:"primaryKey" json:"id"`
	OrganizationID      string       `gorm:"index" json:"organization_id"`
	InstagramUsername   string       `json:"instagram_username"`
	InstagramStoryID    string       `gorm:"index" json:"instagram_story_id"`
	MentionedAt         time.Time    `json:"mentioned_at"`
	ExpiresAt           time.Time    `json:"expires_at"`
	State               MentionState `gorm:"index" json:"state"`
	MatchedAmbassadorID *string      `gorm:"index" json:"matched_ambassador_id,omitempty"`
	MatchedFiestaID     *string      `gorm:"index" json:"matched_fiesta_id,omitempty"`
	ReachCount          int          `json:"reach_count"`
	ChecksCount         int          `json:"checks_count"`
	LastCheckAt         *time.Time   `json:"last_check_at,omitempty"`
	ScheduleIndex       int          `json:"schedule_index"`
	IndeterminateStreak int          `json:"indeterminate_streak"`
	Processed           bool         `json:"processed"`
	ProcessedAt         *time.Time   `json:"processed_at,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// Category is the point-threshold tier of an ambassador.
type Category string

const (
	CategoryBronze  Category = "bronze"
	CategorySilver  Category = "silver"
	CategoryGold    Category = "gold"
	CategoryDiamond Category = "diamond"
)

// PerformanceStatus is the compliance rating derived from completion rate.
type PerformanceStatus string

const (
	StatusCumple      PerformanceStatus = "cumple"
	StatusAdvertencia PerformanceStatus = "advertencia"
	StatusNoCumple    PerformanceStatus = "no_cumple"
	StatusExclusivo   PerformanceStatus = "exclusivo"
)

// Ambassador is a campaign participant whose stories are tracked and scored.
// Counters are mutated exclusively by the scoring engine; category and
// performance status are recomputed from counters, never set directly.
type Ambassador struct {
	ID                 string            `gorm:"primaryKey" json:"id"`
	OrganizationID     string            `gorm:"index" json:"organization_id"`
	InstagramUser      string            `gorm:"index" json:"instagram_user"`
	GlobalPoints       int               `json:"global_points"`
	GlobalCategory     Category          `json:"global_category"`
	PerformanceStatus  PerformanceStatus `json:"performance_status"`
	Exclusive          bool              `json:"exclusive"`
	CompletedTasks     int               `json:"completed_tasks"`
	FailedTasks        int               `json:"failed_tasks"`
	EventsParticipated int               `json:"events_participated"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// FiestaStatus is the lifecycle status of a campaign.
type FiestaStatus string

const (
	FiestaStatusDraft     FiestaStatus = "draft"
	FiestaStatusScheduled FiestaStatus = "scheduled"
	FiestaStatusActive    FiestaStatus = "active"
	FiestaStatusCompleted FiestaStatus = "completed"
	FiestaStatusCancelled FiestaStatus = "cancelled"
)

// Fiesta is a time-boxed campaign activation with hashtag matching rules.
// Read-only for this pipeline; administration flows own its mutation.
type Fiesta struct {
	ID                string       `gorm:"primaryKey" json:"id"`
	OrganizationID    string       `gorm:"index" json:"organization_id"`
	Name              string       `json:"name"`
	PrimaryHashtag    string       `json:"primary_hashtag"`
	SecondaryHashtags []string     `gorm:"serializer:json" json:"secondary_hashtags"`
	Status            FiestaStatus `gorm:"index" json:"status"`
	StartsAt          time.Time    `json:"starts_at"`
	EndsAt            time.Time    `json:"ends_at"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// RawMentionEvent is the ingestion contract delivered by the platform
// webhook receiver or poller.
type RawMentionEvent struct {
	OrganizationID   string    `json:"organization_id"`
	Username         string    `json:"username"`
	Caption          string    `json:"caption"`
	Hashtags         []string  `json:"hashtags"`
	InstagramStoryID string    `json:"instagram_story_id"`
	ObservedAt       time.Time `json:"observed_at"`
}

// ProbeOutcome is the result kind of one recheck observation.
type ProbeOutcome string

const (
	ProbeAlive         ProbeOutcome = "alive"
	ProbeRemoved       ProbeOutcome = "removed"
	ProbeIndeterminate ProbeOutcome = "indeterminate"
)

// ProbeResult is one recheck observation. Reach is only meaningful when the
// outcome is ProbeAlive.
type ProbeResult struct {
	Outcome ProbeOutcome `json:"outcome"`
	Reach   int          `json:"reach,omitempty"`
}

// RankingEntry is one row of a leaderboard snapshot.
type RankingEntry struct {
	AmbassadorID   string            `json:"ambassador_id"`
	InstagramUser  string            `json:"instagram_user"`
	Rank           int               `json:"rank"`
	Points         int               `json:"points"`
	Category       Category          `json:"category"`
	Status         PerformanceStatus `json:"status"`
	CompletionRate int               `json:"completion_rate"`
}

// StatusBucket is the count and independently rounded percentage of
// ambassadors in one performance-status bucket. Percentages may not sum to
// exactly 100.
type StatusBucket struct {
	Count      int `json:"count"`
	Percentage int `json:"percentage"`
}

// PerformanceDistribution maps each performance status to its bucket.
type PerformanceDistribution map[PerformanceStatus]StatusBucket

// RankingSnapshot is a derived leaderboard. Recomputed on demand, never the
// source of truth.
type RankingSnapshot struct {
	OrganizationID string                  `json:"organization_id"`
	GeneratedAt    time.Time               `json:"generated_at"`
	Entries        []RankingEntry          `json:"entries"`
	Distribution   PerformanceDistribution `json:"distribution"`
}

// MentionStats summarizes mentions for the presentation layer.
type MentionStats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Completed  int `json:"completed"`
	Expired    int `json:"expired"`
	Flagged    int `json:"flagged"`
	TotalReach int `json:"total_reach"`
}

// EventType identifies a domain event published by the pipeline.
type EventType string

const (
	EventMentionCompleted      EventType = "mention_completed"
	EventMentionFlagged        EventType = "mention_flagged"
	EventMentionExpired        EventType = "mention_expired"
	EventAmbassadorTierChanged EventType = "ambassador_tier_changed"
)

// Event is a fire-and-forget domain event for the notification and
// dashboard layers.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id"`
	MentionID      string    `json:"mention_id,omitempty"`
	AmbassadorID   string    `json:"ambassador_id,omitempty"`
	FiestaID       string    `json:"fiesta_id,omitempty"`
	Points         int       `json:"points,omitempty"`
	Reach          int       `json:"reach,omitempty"`
	OldCategory    Category  `json:"old_category,omitempty"`
	NewCategory    Category  `json:"new_category,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
