// internal/engine/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/models"
)

// MemoryStore is an in-process Store used by tests and by single-node
// deployments that do not need durability. Claim leases are tracked in a
// side map guarded by the same mutex, which gives the same exactly-once
// sweep semantics as the postgres implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.NotificationRecord
	claims  map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.NotificationRecord),
		claims:  make(map[string]time.Time),
	}
}

func (s *MemoryStore) Create(_ context.Context, record *models.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return errors.NewDatabaseInsertError(errDuplicate(record.ID))
	}
	s.records[record.ID] = clone(record)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return clone(record), nil
}

func (s *MemoryStore) FindByProviderID(_ context.Context, providerID string) (*models.NotificationRecord, error) {
	if providerID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.Delivery.ProviderID == providerID {
			return clone(record), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*models.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.NotificationRecord
	for _, record := range s.records {
		if record.UserID == userID {
			result = append(result, clone(record))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) Update(_ context.Context, record *models.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; !exists {
		return errors.NewDatabaseInsertError(errMissing(record.ID))
	}
	s.records[record.ID] = clone(record)
	delete(s.claims, record.ID)
	return nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*models.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.NotificationRecord
	for _, record := range s.records {
		if len(due) >= limit {
			break
		}
		if record.Status != models.StatusPending || record.Scheduling.Sent {
			continue
		}
		if record.Scheduling.ScheduledFor == nil || record.Scheduling.ScheduledFor.After(now) {
			continue
		}
		if claimed, ok := s.claims[record.ID]; ok && claimed.After(now) {
			continue
		}
		s.claims[record.ID] = now.Add(lease)
		due = append(due, clone(record))
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].Scheduling.ScheduledFor.Before(*due[j].Scheduling.ScheduledFor)
	})
	return due, nil
}

func (s *MemoryStore) ClaimRetries(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*models.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.NotificationRecord
	for _, record := range s.records {
		if len(due) >= limit {
			break
		}
		if record.Status != models.StatusFailed {
			continue
		}
		if record.Delivery.NextAttempt == nil || record.Delivery.NextAttempt.After(now) {
			continue
		}
		if record.Delivery.Attempts >= record.Delivery.MaxAttempts {
			continue
		}
		if claimed, ok := s.claims[record.ID]; ok && claimed.After(now) {
			continue
		}
		s.claims[record.ID] = now.Add(lease)
		due = append(due, clone(record))
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].Delivery.NextAttempt.Before(*due[j].Delivery.NextAttempt)
	})
	return due, nil
}

// Len reports how many records are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func clone(record *models.NotificationRecord) *models.NotificationRecord {
	copied := *record
	if record.Delivery.NextAttempt != nil {
		t := *record.Delivery.NextAttempt
		copied.Delivery.NextAttempt = &t
	}
	if record.Delivery.LastAttempt != nil {
		t := *record.Delivery.LastAttempt
		copied.Delivery.LastAttempt = &t
	}
	if record.Delivery.Error != nil {
		e := *record.Delivery.Error
		copied.Delivery.Error = &e
	}
	if record.Scheduling.ScheduledFor != nil {
		t := *record.Scheduling.ScheduledFor
		copied.Scheduling.ScheduledFor = &t
	}
	if record.Scheduling.SentAt != nil {
		t := *record.Scheduling.SentAt
		copied.Scheduling.SentAt = &t
	}
	if record.Tracking.Links != nil {
		copied.Tracking.Links = append([]models.ClickedLink(nil), record.Tracking.Links...)
	}
	if record.Recipient.Devices != nil {
		copied.Recipient.Devices = append([]models.DeviceToken(nil), record.Recipient.Devices...)
	}
	if record.Settings.Email != nil {
		e := *record.Settings.Email
		copied.Settings.Email = &e
	}
	if record.Settings.SMS != nil {
		sms := *record.Settings.SMS
		copied.Settings.SMS = &sms
	}
	if record.Settings.Push != nil {
		p := *record.Settings.Push
		p.Actions = append([]models.PushAction(nil), record.Settings.Push.Actions...)
		copied.Settings.Push = &p
	}
	return &copied
}

type errDuplicate string

func (e errDuplicate) Error() string { return "record already exists: " + string(e) }

type errMissing string

func (e errMissing) Error() string { return "record does not exist: " + string(e) }
