// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"os"

	"notification-engine/internal/models"
)

// TemplateRegistry is the seed catalog of built-in templates shipped with
// the engine. Deployments load it at startup and upsert the entries into
// the template store; the admin surface can then edit them there.
type TemplateRegistry struct {
	Version     string                        `json:"version"`
	LastUpdated string                        `json:"lastUpdated"`
	Templates   []models.NotificationTemplate `json:"templates"`
}

// LoadRegistry reads the seed catalog from a JSON file.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// FindByName returns the seed template with the given name, or nil.
func (r *TemplateRegistry) FindByName(name string) *models.NotificationTemplate {
	for i := range r.Templates {
		if r.Templates[i].Name == name {
			return &r.Templates[i]
		}
	}
	return nil
}

// Validate checks every entry for the fields the engine depends on.
func (r *TemplateRegistry) Validate() []string {
	var problems []string
	seen := make(map[string]bool)
	for _, tpl := range r.Templates {
		if tpl.Name == "" {
			problems = append(problems, "template with empty name")
			continue
		}
		if seen[tpl.Name] {
			problems = append(problems, "duplicate template name: "+tpl.Name)
		}
		seen[tpl.Name] = true
		if !tpl.Channel.IsValid() {
			problems = append(problems, tpl.Name+": invalid channel "+string(tpl.Channel))
		}
		if !tpl.Category.IsValid() {
			problems = append(problems, tpl.Name+": invalid category "+string(tpl.Category))
		}
		if tpl.Content == (models.TemplateContent{}) {
			problems = append(problems, tpl.Name+": no content fields")
		}
	}
	return problems
}
