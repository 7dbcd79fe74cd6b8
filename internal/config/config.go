package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ReachTier is one step of the monotonic reach bonus function: mentions with
// reach at or above Threshold earn Bonus extra points.
type ReachTier struct {
	Threshold int
	Bonus     int
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Persistence configuration. When DatabaseURL is empty the service runs
	// against the in-memory repositories (local development).
	DatabaseURL string

	// Azure Storage configuration for the snapshot/export archive
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	WebhookURL        string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Instagram probe configuration
	InstagramAPIBaseURL  string
	InstagramAccessToken string
	ProbeRateLimit       float64
	ProbeBurst           int

	// Verification timing
	StoryTTL                time.Duration   // expiry window for ephemeral stories
	MinDwellTime            time.Duration   // minimum live time before a story can complete
	RecheckOffsets          []time.Duration // offsets from mentioned_at for scheduled rechecks
	IndeterminateBackoff    time.Duration   // base backoff between indeterminate retries
	MaxIndeterminateRetries int

	// Scoring
	BasePoints       int
	ReachTiers       []ReachTier
	SilverThreshold  int
	GoldThreshold    int
	DiamondThreshold int
	CumpleRate       float64
	AdvertenciaRate  float64

	// Schedules (cron expressions, with seconds field)
	SweepSchedule  string
	ReportSchedule string

	// Ingestion
	IngestBuffer int

	// Organizations to include in the scheduled ranking report
	ReportOrganizations []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "mention-archive"),

		WebhookURL:        getEnv("NOTIFICATION_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		InstagramAPIBaseURL:  getEnv("INSTAGRAM_API_BASE_URL", "https://graph.facebook.com/v18.0"),
		InstagramAccessToken: getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
		ProbeRateLimit:       getFloatEnv("PROBE_RATE_LIMIT", 5),
		ProbeBurst:           getIntEnv("PROBE_BURST", 10),

		StoryTTL:                getDurationEnv("STORY_TTL", 24*time.Hour),
		MinDwellTime:            getDurationEnv("MIN_DWELL_TIME", 20*time.Hour),
		RecheckOffsets:          getDurationSliceEnv("RECHECK_OFFSETS", []time.Duration{1 * time.Hour, 6 * time.Hour, 23 * time.Hour}),
		IndeterminateBackoff:    getDurationEnv("INDETERMINATE_BACKOFF", 15*time.Minute),
		MaxIndeterminateRetries: getIntEnv("MAX_INDETERMINATE_RETRIES", 3),

		BasePoints: getIntEnv("BASE_POINTS", 100),
		ReachTiers: getReachTiersEnv("REACH_TIERS", []ReachTier{
			{Threshold: 1000, Bonus: 50},
			{Threshold: 10000, Bonus: 150},
			{Threshold: 100000, Bonus: 400},
		}),
		SilverThreshold:  getIntEnv("SILVER_THRESHOLD", 100),
		GoldThreshold:    getIntEnv("GOLD_THRESHOLD", 500),
		DiamondThreshold: getIntEnv("DIAMOND_THRESHOLD", 2000),
		CumpleRate:       getFloatEnv("CUMPLE_RATE", 0.8),
		AdvertenciaRate:  getFloatEnv("ADVERTENCIA_RATE", 0.5),

		SweepSchedule:  getEnv("SWEEP_SCHEDULE", "0 */5 * * * *"),
		ReportSchedule: getEnv("REPORT_SCHEDULE", "0 0 9 * * *"),

		IngestBuffer: getIntEnv("INGEST_BUFFER", 256),

		ReportOrganizations: getSliceEnv("REPORT_ORGANIZATIONS", nil),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MinDwellTime >= c.StoryTTL {
		return fmt.Errorf("MIN_DWELL_TIME (%v) must be shorter than STORY_TTL (%v)", c.MinDwellTime, c.StoryTTL)
	}

	if len(c.RecheckOffsets) == 0 {
		return fmt.Errorf("RECHECK_OFFSETS must contain at least one offset")
	}
	for i := 1; i < len(c.RecheckOffsets); i++ {
		if c.RecheckOffsets[i] <= c.RecheckOffsets[i-1] {
			return fmt.Errorf("RECHECK_OFFSETS must be strictly increasing")
		}
	}

	if c.SilverThreshold >= c.GoldThreshold || c.GoldThreshold >= c.DiamondThreshold {
		return fmt.Errorf("category thresholds must be strictly ascending (silver < gold < diamond)")
	}

	if c.CumpleRate <= c.AdvertenciaRate {
		return fmt.Errorf("CUMPLE_RATE must be greater than ADVERTENCIA_RATE")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// getDurationSliceEnv parses comma-separated durations, e.g. "1h,6h,23h".
func getDurationSliceEnv(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var offsets []time.Duration
	for _, part := range strings.Split(value, ",") {
		parsed, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		offsets = append(offsets, parsed)
	}
	return offsets
}

// getReachTiersEnv parses "threshold:bonus" pairs, e.g. "1000:50,10000:150".
// Tiers are returned sorted by ascending threshold.
func getReachTiersEnv(key string, defaultValue []ReachTier) []ReachTier {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var tiers []ReachTier
	for _, part := range strings.Split(value, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return defaultValue
		}
		threshold, err1 := strconv.Atoi(fields[0])
		bonus, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			return defaultValue
		}
		tiers = append(tiers, ReachTier{Threshold: threshold, Bonus: bonus})
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })
	return tiers
}
