package notifications

import "github.com/JJVergara/evasystem-sub001/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendRankingReport(snapshot *models.RankingSnapshot) error
	SendEvent(event models.Event) error
}
