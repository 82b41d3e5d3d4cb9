package services

import (
	"regexp"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate fills {{key}} placeholders in a notification title or body from its
// data payload. Unknown keys are left as written.
func RenderTemplate(template string, payload map[string]string) string {
	if template == "" || len(payload) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := payload[submatch[1]]; ok {
			return value
		}
		return match
	})
}
