// internal/engine/scheduler/models.go
package scheduler

import (
	"context"
	"time"

	"notification-engine/internal/models"
)

// SubmitRequest is a logical notification request.
type SubmitRequest struct {
	UserID       string                  `json:"userId"`
	Channel      models.Channel          `json:"channel"`
	Category     models.Category         `json:"category"`
	TemplateName string                  `json:"templateName,omitempty"`
	Variables    map[string]interface{}  `json:"variables,omitempty"`
	Related      *models.RelatedEntities `json:"related,omitempty"`
	Priority     models.Priority         `json:"priority,omitempty"`
	ScheduledFor *time.Time              `json:"scheduledFor,omitempty"`
	Metadata     map[string]interface{}  `json:"metadata,omitempty"`
}

// SubmitResult reports the synchronous outcome of a submission. A denied
// or rejected submission persists no record.
type SubmitResult struct {
	Accepted       bool       `json:"accepted"`
	NotificationID string     `json:"notificationId,omitempty"`
	Scheduled      bool       `json:"scheduled"`
	ScheduledFor   *time.Time `json:"scheduledFor,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// BulkItemResult is the per-item outcome of a bulk submission. Err carries
// the synchronous rejection for that item, if any.
type BulkItemResult struct {
	Result *SubmitResult
	Err    error
}

// TemplateSource resolves and tracks templates.
type TemplateSource interface {
	Resolve(ctx context.Context, name string, category models.Category, channel models.Channel) (*models.NotificationTemplate, error)
	RecordUsage(ctx context.Context, templateID string)
}

// PreferenceSource loads-or-creates user preferences.
type PreferenceSource interface {
	GetOrCreate(ctx context.Context, userID string) (*models.UserPreferences, error)
}

// PreferenceGate answers the opt-in question.
type PreferenceGate interface {
	CanReceive(prefs *models.UserPreferences, channel models.Channel, category models.Category) (bool, string)
}

// RecipientSource derives the concrete destination per channel.
type RecipientSource interface {
	Resolve(ctx context.Context, userID string, channel models.Channel, prefs *models.UserPreferences) (*models.Recipient, error)
}
