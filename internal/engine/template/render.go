// internal/engine/template/render.go
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"notification-engine/internal/models"
)

// placeholderPattern matches {{ key }} tokens with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render binds variables into every content field of the template and
// returns the immutable snapshot stored on the record. Declared defaults
// fill in for absent variables; placeholders with no value at all are left
// verbatim so a missing key is visible in the output instead of silently
// producing an empty string.
func Render(tpl *models.NotificationTemplate, variables map[string]interface{}) models.ContentSnapshot {
	bound := withDefaults(tpl.Variables, variables)

	return models.ContentSnapshot{
		Subject:  substitute(tpl.Content.Subject, bound),
		Title:    substitute(tpl.Content.Title, bound),
		HTML:     substitute(tpl.Content.HTML, bound),
		Text:     substitute(tpl.Content.Text, bound),
		Markdown: substitute(tpl.Content.Markdown, bound),
	}
}

func substitute(field string, variables map[string]interface{}) string {
	if field == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(field, func(token string) string {
		key := placeholderPattern.FindStringSubmatch(token)[1]
		value, ok := variables[key]
		if !ok {
			return token
		}
		return stringify(value)
	})
}

func withDefaults(declared []models.TemplateVariable, variables map[string]interface{}) map[string]interface{} {
	bound := make(map[string]interface{}, len(variables))
	for k, v := range variables {
		bound[k] = v
	}
	for _, decl := range declared {
		if _, ok := bound[decl.Name]; !ok && decl.Default != nil {
			bound[decl.Name] = decl.Default
		}
	}
	return bound
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
