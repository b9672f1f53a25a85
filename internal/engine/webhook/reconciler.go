// internal/engine/webhook/reconciler.go
package webhook

import (
	"context"
	"time"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/engine/audit"
	"notification-engine/internal/engine/store"
	"notification-engine/internal/models"
)

// Provider names accepted by Ingest.
const (
	ProviderEmail = "email"
	ProviderSMS   = "sms"
)

// UnsubscribeRecorder is the slice of the preference store the reconciler
// needs for unsubscribe events.
type UnsubscribeRecorder interface {
	RecordUnsubscribe(ctx context.Context, userID string, category models.Category, reason string) error
}

// Reconciler maps inbound provider events onto record state transitions.
// Ingestion is deliberately forgiving: malformed payloads, unknown message
// ids, unrecognized event types and illegal transitions are all logged and
// acknowledged, never surfaced to the provider.
type Reconciler struct {
	store       store.Store
	preferences UnsubscribeRecorder
	audit       *audit.Recorder
	logger      logger.Logger
	now         func() time.Time
}

type Deps struct {
	Store       store.Store
	Preferences UnsubscribeRecorder
	Audit       *audit.Recorder
	Logger      logger.Logger
}

func NewReconciler(deps Deps) *Reconciler {
	if deps.Audit == nil {
		deps.Audit = audit.Disabled()
	}
	return &Reconciler{
		store:       deps.Store,
		preferences: deps.Preferences,
		audit:       deps.Audit,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// Ingest parses one raw provider payload and applies every event in it.
// The returned error is always nil for payload problems; only a store
// write failure propagates, so the provider retries delivery of the
// webhook rather than dropping it.
func (r *Reconciler) Ingest(ctx context.Context, provider string, payload []byte) error {
	var (
		events []ProviderEvent
		err    error
	)

	switch provider {
	case ProviderEmail:
		events, err = parseEmailEvents(payload)
	case ProviderSMS:
		events, err = parseSMSCallback(payload)
	default:
		r.logger.Warn("webhook from unknown provider ignored", map[string]interface{}{
			"provider": provider,
		})
		return nil
	}

	if err != nil {
		parseErr := errors.NewWebhookPayloadError(provider, err)
		r.logger.Warn("unparseable webhook payload acknowledged", map[string]interface{}{
			"provider": provider,
			"error":    parseErr.Error(),
		})
		return nil
	}

	for _, event := range events {
		if err := r.apply(ctx, provider, event); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, provider string, event ProviderEvent) error {
	metrics.WebhookEventsTotal.WithLabelValues(provider, event.EventType).Inc()

	record, err := r.store.FindByProviderID(ctx, event.ProviderMessageID)
	if err != nil {
		return err
	}
	if record == nil {
		r.logger.Debug("webhook event for unknown provider id ignored", map[string]interface{}{
			"provider":  provider,
			"messageId": event.ProviderMessageID,
			"event":     event.EventType,
		})
		return nil
	}

	changed := false
	now := r.now().UTC()

	switch event.EventType {
	case "delivered":
		changed = r.transition(record, models.StatusDelivered)

	case "open", "opened":
		if r.transition(record, models.StatusOpened) {
			record.Tracking.Opens++
			if record.Tracking.FirstOpenedAt == nil {
				record.Tracking.FirstOpenedAt = &now
			}
			record.Tracking.LastOpenedAt = &now
			changed = true
		}

	case "click", "clicked":
		if r.transition(record, models.StatusClicked) {
			record.Tracking.Clicks++
			record.Tracking.Links = append(record.Tracking.Links,
				models.ClickedLink{URL: event.URL, ClickedAt: now})
			changed = true
		}

	case "bounce", "bounced", "dropped":
		if r.transition(record, models.StatusBounced) {
			record.Delivery.Error = &models.DeliveryError{
				Code:    "BOUNCED",
				Message: reasonOr(event.Reason, "hard bounce reported by provider"),
			}
			record.Delivery.NextAttempt = nil
			changed = true
		}

	case "failed", "undelivered":
		if r.transition(record, models.StatusFailed) {
			record.Delivery.Error = &models.DeliveryError{
				Code:    codeOr(event.Code, "PROVIDER_FAILURE"),
				Message: reasonOr(event.Reason, "delivery failure reported by provider"),
			}
			changed = true
		}

	case "unsubscribe", "group_unsubscribe":
		record.Tracking.Unsubscribed = &models.UnsubscribeEvent{
			Date:   now,
			Reason: reasonOr(event.Reason, "provider unsubscribe event"),
		}
		changed = true
		if r.preferences != nil {
			if err := r.preferences.RecordUnsubscribe(ctx, record.UserID, record.Category, "webhook unsubscribe"); err != nil {
				r.logger.Warn("failed to record unsubscribe preference", map[string]interface{}{
					"userId": record.UserID,
					"error":  err.Error(),
				})
			}
		}

	default:
		r.logger.Info("unrecognized webhook event type ignored", map[string]interface{}{
			"provider": provider,
			"event":    event.EventType,
		})
		return nil
	}

	if !changed {
		return nil
	}

	record.UpdatedAt = now
	r.audit.Webhook(ctx, provider, event.EventType, record.ID)
	return r.store.Update(ctx, record)
}

// transition applies the status change when the state machine allows it;
// illegal edges are logged and skipped.
func (r *Reconciler) transition(record *models.NotificationRecord, next models.Status) bool {
	if !record.Status.CanTransition(next) {
		r.logger.Debug("webhook event ignored, illegal transition", map[string]interface{}{
			"notificationId": record.ID,
			"from":           record.Status,
			"to":             next,
		})
		return false
	}
	record.Status = next
	return true
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}

func codeOr(code, fallback string) string {
	if code != "" {
		return code
	}
	return fallback
}
