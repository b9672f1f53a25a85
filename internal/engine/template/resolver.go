// internal/engine/template/resolver.go
package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/models"
)

const selectTemplate = `
	SELECT id, name, channel, category, content, variables, settings,
	       active, usage_count, last_used_at, created_at, updated_at
	FROM notification_templates`

// Resolver loads active templates by name or by (category, channel), with a
// redis read-through cache in front of postgres.
type Resolver struct {
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

func NewResolver(deps Deps, config *Config) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	return &Resolver{
		config: config,
		db:     deps.DB,
		redis:  deps.Redis,
		logger: deps.Logger,
	}
}

// Resolve prefers an exact name match when name is non-empty; otherwise it
// falls back to the unique active template for (category, channel).
func (r *Resolver) Resolve(ctx context.Context, name string, category models.Category, channel models.Channel) (*models.NotificationTemplate, error) {
	if name != "" {
		tpl, err := r.ResolveByName(ctx, name)
		if err == nil {
			return tpl, nil
		}
		if !errors.IsCode(err, errors.ErrCodeTemplateNotFound) {
			return nil, err
		}
		// fall through to category lookup
	}
	return r.ResolveByCategory(ctx, category, channel)
}

// ResolveByName loads the active template with the given unique name.
func (r *Resolver) ResolveByName(ctx context.Context, name string) (*models.NotificationTemplate, error) {
	cacheKey := fmt.Sprintf("%s:name:%s", r.config.CachePrefix, name)
	if tpl := r.fromCache(ctx, cacheKey); tpl != nil {
		return tpl, nil
	}

	row := r.db.QueryRowContext(ctx, selectTemplate+` WHERE name = $1 AND active = true`, name)
	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewTemplateNotFoundError(fmt.Sprintf("no active template named %q", name))
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}

	r.toCache(ctx, cacheKey, tpl)
	return tpl, nil
}

// ResolveByCategory loads the unique active template for (category, channel).
func (r *Resolver) ResolveByCategory(ctx context.Context, category models.Category, channel models.Channel) (*models.NotificationTemplate, error) {
	cacheKey := fmt.Sprintf("%s:cat:%s:%s", r.config.CachePrefix, category, channel)
	if tpl := r.fromCache(ctx, cacheKey); tpl != nil {
		return tpl, nil
	}

	row := r.db.QueryRowContext(ctx,
		selectTemplate+` WHERE category = $1 AND channel = $2 AND active = true ORDER BY updated_at DESC LIMIT 1`,
		string(category), string(channel))
	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewTemplateNotFoundError(
			fmt.Sprintf("no active template for category %q on channel %q", category, channel))
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}

	r.toCache(ctx, cacheKey, tpl)
	return tpl, nil
}

// RecordUsage bumps the usage counter after a successful render. Failures are
// logged and swallowed; usage accounting never blocks delivery.
func (r *Resolver) RecordUsage(ctx context.Context, templateID string) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_templates SET usage_count = usage_count + 1, last_used_at = NOW() WHERE id = $1`,
		templateID)
	if err != nil {
		r.logger.Warn("failed to record template usage", map[string]interface{}{
			"templateId": templateID,
			"error":      err.Error(),
		})
	}
}

func (r *Resolver) fromCache(ctx context.Context, key string) *models.NotificationTemplate {
	if !r.config.CacheEnabled || r.redis == nil {
		return nil
	}
	raw, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("template cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		metrics.TemplateCacheHits.WithLabelValues("miss").Inc()
		return nil
	}

	var tpl models.NotificationTemplate
	if err := json.Unmarshal([]byte(raw), &tpl); err != nil {
		metrics.TemplateCacheHits.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.TemplateCacheHits.WithLabelValues("hit").Inc()
	return &tpl
}

func (r *Resolver) toCache(ctx context.Context, key string, tpl *models.NotificationTemplate) {
	if !r.config.CacheEnabled || r.redis == nil {
		return
	}
	raw, err := json.Marshal(tpl)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, key, raw, r.config.CacheTTL).Err(); err != nil {
		r.logger.Debug("template cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.NotificationTemplate, error) {
	var (
		tpl          models.NotificationTemplate
		contentRaw   []byte
		variablesRaw []byte
		settingsRaw  []byte
		lastUsedAt   sql.NullTime
	)

	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Channel, &tpl.Category,
		&contentRaw, &variablesRaw, &settingsRaw,
		&tpl.Active, &tpl.Usage.Count, &lastUsedAt, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(contentRaw, &tpl.Content); err != nil {
		return nil, fmt.Errorf("decode template content: %w", err)
	}
	if len(variablesRaw) > 0 {
		if err := json.Unmarshal(variablesRaw, &tpl.Variables); err != nil {
			return nil, fmt.Errorf("decode template variables: %w", err)
		}
	}
	if len(settingsRaw) > 0 {
		if err := json.Unmarshal(settingsRaw, &tpl.Settings); err != nil {
			return nil, fmt.Errorf("decode template settings: %w", err)
		}
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		tpl.Usage.LastUsedAt = &t
	}

	return &tpl, nil
}
