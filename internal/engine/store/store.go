// internal/engine/store/store.go
package store

import (
	"context"
	"time"

	"notification-engine/internal/models"
)

// Store is the persistence contract for notification records. Claim
// operations atomically lease due records so concurrent sweep workers never
// double-dispatch the same one.
type Store interface {
	// Create persists a new record.
	Create(ctx context.Context, record *models.NotificationRecord) error

	// Get returns the record by id, or nil when absent.
	Get(ctx context.Context, id string) (*models.NotificationRecord, error)

	// FindByProviderID returns the record whose delivery.providerId matches,
	// or nil when absent. Webhook reconciliation treats absent as a no-op.
	FindByProviderID(ctx context.Context, providerID string) (*models.NotificationRecord, error)

	// ListByUser returns a user's records, newest first. This is the read
	// path of the in-app channel.
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.NotificationRecord, error)

	// Update persists the record's current state and releases any claim.
	Update(ctx context.Context, record *models.NotificationRecord) error

	// ClaimDue leases up to limit pending records whose scheduledFor has
	// passed and which have not been sent, until now+lease.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.NotificationRecord, error)

	// ClaimRetries leases up to limit failed records whose nextAttempt has
	// passed and which still have attempts left, until now+lease.
	ClaimRetries(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.NotificationRecord, error)
}
