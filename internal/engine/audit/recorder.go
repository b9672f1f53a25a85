// internal/engine/audit/recorder.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// Event is one entry in the delivery audit trail.
type Event struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"` // "submission", "dispatch", "webhook"
	NotificationID string                 `json:"notificationId,omitempty"`
	UserID         string                 `json:"userId,omitempty"`
	Channel        models.Channel         `json:"channel,omitempty"`
	Category       models.Category        `json:"category,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Provider       string                 `json:"provider,omitempty"`
	Detail         map[string]interface{} `json:"detail,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Recorder writes delivery events to an Elasticsearch index for audit and
// analytics. A nil or disabled recorder swallows everything, and indexing
// failures are logged but never surface into the delivery path.
type Recorder struct {
	client  *elasticsearch.Client
	index   string
	enabled bool
	logger  logger.Logger
}

func NewRecorder(client *elasticsearch.Client, index string, enabled bool, log logger.Logger) *Recorder {
	return &Recorder{
		client:  client,
		index:   index,
		enabled: enabled && client != nil,
		logger:  log,
	}
}

// Disabled returns a recorder that drops every event.
func Disabled() *Recorder {
	return &Recorder{enabled: false}
}

func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || !r.enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return
	}

	res, err := r.client.Index(r.index, bytes.NewReader(body),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(event.ID),
	)
	if err != nil {
		r.logger.Warn("audit event indexing failed", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logger.Warn("audit event rejected by elasticsearch", map[string]interface{}{
			"type":   event.Type,
			"status": res.Status(),
		})
	}
}

// Submission records the outcome of a Submit call.
func (r *Recorder) Submission(ctx context.Context, userID string, channel models.Channel, category models.Category, outcome string, detail map[string]interface{}) {
	r.Record(ctx, Event{
		Type:     "submission",
		UserID:   userID,
		Channel:  channel,
		Category: category,
		Status:   outcome,
		Detail:   detail,
	})
}

// Dispatch records the outcome of one dispatch attempt.
func (r *Recorder) Dispatch(ctx context.Context, record *models.NotificationRecord, outcome string) {
	r.Record(ctx, Event{
		Type:           "dispatch",
		NotificationID: record.ID,
		UserID:         record.UserID,
		Channel:        record.Channel,
		Category:       record.Category,
		Status:         outcome,
		Provider:       record.Delivery.Provider,
	})
}

// Webhook records a reconciled provider event.
func (r *Recorder) Webhook(ctx context.Context, provider, eventType, notificationID string) {
	r.Record(ctx, Event{
		Type:           "webhook",
		NotificationID: notificationID,
		Provider:       provider,
		Status:         eventType,
	})
}
