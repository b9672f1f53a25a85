// internal/engine/preference/store.go
package preference

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// Store loads and lazily creates per-user notification preferences. Exactly
// one record exists per user; first access writes the defaults.
type Store struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

type Deps struct {
	DB     *sql.DB
	Redis  *redis.Client
	Logger logger.Logger
}

func NewStore(deps Deps, config *Config) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	return &Store{
		config: config,
		db:     deps.DB,
		redis:  deps.Redis,
		logger: deps.Logger,
	}
}

// GetOrCreate returns the user's preferences, creating the default record
// when none exists yet.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId cannot be empty")
	}

	cacheKey := s.cacheKey(userID)
	if prefs := s.fromCache(ctx, cacheKey); prefs != nil {
		return prefs, nil
	}

	prefs, err := s.load(ctx, userID)
	if err == sql.ErrNoRows {
		prefs = DefaultPreferences(userID)
		if err := s.insert(ctx, prefs); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}

	s.toCache(ctx, cacheKey, prefs)
	return prefs, nil
}

// Save persists the full preference document and invalidates the cache.
func (s *Store) Save(ctx context.Context, prefs *models.UserPreferences) error {
	prefs.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(prefs)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE user_preferences SET prefs = $2, updated_at = $3 WHERE user_id = $1`,
		prefs.UserID, doc, prefs.UpdatedAt)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}

	s.invalidate(ctx, prefs.UserID)
	return nil
}

// RecordUnsubscribe marks a category opt-out, or the global flag when
// category is empty. Driven by webhook unsubscribe events and list
// management callbacks.
func (s *Store) RecordUnsubscribe(ctx context.Context, userID string, category models.Category, reason string) error {
	prefs, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if category == "" {
		prefs.Unsubscribed.Global = true
	} else if !prefs.Unsubscribed.HasCategory(category) {
		prefs.Unsubscribed.Categories = append(prefs.Unsubscribed.Categories, category)
	}
	prefs.Unsubscribed.Date = &now
	if reason != "" {
		prefs.Unsubscribed.Reason = reason
	}

	return s.Save(ctx, prefs)
}

// DefaultPreferences builds the record written on first access: email, push
// and in-app enabled, sms off until a verified phone is on file, every
// category group on for the enabled channels.
func DefaultPreferences(userID string) *models.UserPreferences {
	now := time.Now().UTC()
	allOn := models.GroupMatrix{Email: true, SMS: true, Push: true, InApp: true}

	return &models.UserPreferences{
		UserID: userID,
		Channels: models.ChannelPrefs{
			Email: models.EmailChannelPrefs{Enabled: true},
			SMS:   models.SMSChannelPrefs{Enabled: false},
			Push:  models.PushChannelPrefs{Enabled: true},
			InApp: models.InAppChannelPrefs{Enabled: true},
		},
		Categories: models.CategoryMatrix{
			OrderUpdates:    allOn,
			PaymentUpdates:  allOn,
			ShippingUpdates: allOn,
			Promotions:      allOn,
			Security:        allOn,
			ProductUpdates:  allOn,
		},
		Timing: models.TimingPrefs{
			Timezone:             "UTC",
			QuietHours:           models.QuietHours{Enabled: false},
			DigestFrequency:      "immediate",
			PromotionalFrequency: "all",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Store) load(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT prefs FROM user_preferences WHERE user_id = $1`, userID).Scan(&doc)
	if err != nil {
		return nil, err
	}

	var prefs models.UserPreferences
	if err := json.Unmarshal(doc, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences for user %s: %w", userID, err)
	}
	return &prefs, nil
}

func (s *Store) insert(ctx context.Context, prefs *models.UserPreferences) error {
	doc, err := json.Marshal(prefs)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}

	// ON CONFLICT keeps the record unique per user when two submissions race
	// the first access.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, prefs, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO NOTHING`,
		prefs.UserID, doc, prefs.CreatedAt, prefs.UpdatedAt)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}
	return nil
}

func (s *Store) cacheKey(userID string) string {
	return fmt.Sprintf("%s:%s", s.config.CachePrefix, userID)
}

func (s *Store) fromCache(ctx context.Context, key string) *models.UserPreferences {
	if !s.config.CacheEnabled || s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}
	var prefs models.UserPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil
	}
	return &prefs
}

func (s *Store) toCache(ctx context.Context, key string, prefs *models.UserPreferences) {
	if !s.config.CacheEnabled || s.redis == nil {
		return
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, s.config.CacheTTL).Err(); err != nil {
		s.logger.Debug("preference cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (s *Store) invalidate(ctx context.Context, userID string) {
	if !s.config.CacheEnabled || s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.cacheKey(userID)).Err(); err != nil {
		s.logger.Debug("preference cache invalidation failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}
