// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-engine/internal/models"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistry(t *testing.T) {
	path := writeRegistry(t, `{
		"version": "1.0.0",
		"templates": [
			{
				"name": "order_shipped_sms",
				"channel": "sms",
				"category": "shipping_update",
				"content": {"text": "Order #{{orderNumber}} shipped"},
				"active": true
			}
		]
	}`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", reg.Version)
	require.Len(t, reg.Templates, 1)
	assert.Empty(t, reg.Validate())

	tpl := reg.FindByName("order_shipped_sms")
	require.NotNil(t, tpl)
	assert.Equal(t, models.ChannelSMS, tpl.Channel)
	assert.Nil(t, reg.FindByName("no_such_template"))
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestValidate_FlagsBadEntries(t *testing.T) {
	reg := &TemplateRegistry{
		Templates: []models.NotificationTemplate{
			{Name: "dup", Channel: models.ChannelEmail, Category: models.CategoryPromotional,
				Content: models.TemplateContent{Text: "x"}},
			{Name: "dup", Channel: models.ChannelEmail, Category: models.CategoryPromotional,
				Content: models.TemplateContent{Text: "x"}},
			{Name: "bad_channel", Channel: "carrier_pigeon", Category: models.CategoryPromotional,
				Content: models.TemplateContent{Text: "x"}},
			{Name: "bad_category", Channel: models.ChannelEmail, Category: "unknown",
				Content: models.TemplateContent{Text: "x"}},
			{Name: "empty_content", Channel: models.ChannelEmail, Category: models.CategoryPromotional},
			{Name: ""},
		},
	}

	problems := reg.Validate()
	assert.Len(t, problems, 5)
}

func TestSeedCatalogShipsClean(t *testing.T) {
	// The checked-in catalog must always pass its own validation.
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "templates.json"))
	require.NoError(t, err)
	assert.Empty(t, reg.Validate())
	assert.NotNil(t, reg.FindByName("order_shipped_sms"))
}
