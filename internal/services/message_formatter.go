package services

import (
	"regexp"

	"memory_stitcher_go_backend/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\$\{\s*([A-Za-z0-9_]+)\s*\}`)

// RenderTemplate replaces ${field} placeholders from profile. Unknown fields become "".
func RenderTemplate(template string, profile map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		return profile[name]
	})
}

// FormatMessages builds the exact sequence sent to the LLM: the rendered system prompt,
// the history in stored order with roles unchanged, then the closing instruction as a
// user turn when one is given.
func FormatMessages(template string, profile map[string]string, history []models.Message, closingInstruction string) []ChatMessage {
	out := make([]ChatMessage, 0, len(history)+2)
	out = append(out, ChatMessage{Role: models.RoleSystem, Content: RenderTemplate(template, profile)})
	for _, m := range history {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	if closingInstruction != "" {
		out = append(out, ChatMessage{Role: models.RoleUser, Content: closingInstruction})
	}
	return out
}
