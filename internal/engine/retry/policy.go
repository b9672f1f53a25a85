// internal/engine/retry/policy.go
package retry

import (
	"time"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/models"
)

// Policy applies the exponential backoff schedule to a record's delivery
// block. With the default three attempts the delays are 2, 4 and 8 minutes.
type Policy struct {
	BaseDelay time.Duration
	Now       func() time.Time
}

func NewPolicy() *Policy {
	return &Policy{
		BaseDelay: time.Minute,
		Now:       time.Now,
	}
}

// RecordSuccess commits the bookkeeping for a successful dispatch attempt.
func (p *Policy) RecordSuccess(record *models.NotificationRecord, provider, providerID string) {
	now := p.Now().UTC()

	record.Delivery.Attempts++
	record.Delivery.LastAttempt = &now
	record.Delivery.Provider = provider
	record.Delivery.ProviderID = providerID
	record.Delivery.NextAttempt = nil
	record.Delivery.Error = nil

	record.Status = models.StatusSent
	record.Scheduling.Sent = true
	record.Scheduling.SentAt = &now
	record.UpdatedAt = now
}

// RecordFailure commits the bookkeeping for a failed dispatch attempt.
// While attempts remain, nextAttempt is set to now + 2^attempts minutes;
// the attempt that exhausts maxAttempts leaves nextAttempt unset, which is
// what makes the failure terminal.
func (p *Policy) RecordFailure(record *models.NotificationRecord, dispatchErr error) {
	now := p.Now().UTC()

	record.Delivery.Attempts++
	record.Delivery.LastAttempt = &now
	record.Delivery.Error = &models.DeliveryError{
		Code:    errors.DeliveryCode(dispatchErr),
		Message: dispatchErr.Error(),
	}
	record.Status = models.StatusFailed

	if record.Delivery.Attempts < record.Delivery.MaxAttempts && errors.IsRetryable(dispatchErr) {
		next := now.Add(p.backoff(record.Delivery.Attempts))
		record.Delivery.NextAttempt = &next
	} else {
		record.Delivery.NextAttempt = nil
	}
	record.UpdatedAt = now
}

// backoff returns 2^attempts * BaseDelay.
func (p *Policy) backoff(attempts int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempts))
}
