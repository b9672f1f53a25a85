// internal/engine/template/seed.go
package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notification-engine/internal/common/logger"
	"notification-engine/pkg/registry"
)

// Seed upserts the built-in template catalog into the store. Existing rows
// keep their admin edits; only missing templates are inserted.
func Seed(ctx context.Context, db *sql.DB, reg *registry.TemplateRegistry, log logger.Logger) error {
	if problems := reg.Validate(); len(problems) > 0 {
		return fmt.Errorf("seed registry invalid: %v", problems)
	}

	inserted := 0
	for _, tpl := range reg.Templates {
		id := tpl.ID
		if id == "" {
			id = uuid.NewString()
		}

		content, err := json.Marshal(tpl.Content)
		if err != nil {
			return fmt.Errorf("encode content for %s: %w", tpl.Name, err)
		}
		variables, err := json.Marshal(tpl.Variables)
		if err != nil {
			return fmt.Errorf("encode variables for %s: %w", tpl.Name, err)
		}
		settings, err := json.Marshal(tpl.Settings)
		if err != nil {
			return fmt.Errorf("encode settings for %s: %w", tpl.Name, err)
		}

		now := time.Now().UTC()
		result, err := db.ExecContext(ctx,
			`INSERT INTO notification_templates
			 (id, name, channel, category, content, variables, settings,
			  active, usage_count, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, true, 0, $8, $8)
			 ON CONFLICT (name) DO NOTHING`,
			id, tpl.Name, string(tpl.Channel), string(tpl.Category),
			content, variables, settings, now)
		if err != nil {
			return fmt.Errorf("seed template %s: %w", tpl.Name, err)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	log.Info("template registry seeded", map[string]interface{}{
		"templates": len(reg.Templates),
		"inserted":  inserted,
	})
	return nil
}
