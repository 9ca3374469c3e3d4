package chat

import (
	"strings"
	"unicode"

	"github.com/vitalog/vitalog/internal/knowledge"
	"github.com/vitalog/vitalog/internal/settings"
)

// basePrompt frames every reply. The assistant informs, it does not
// diagnose; that boundary is part of the prompt, not left to the model.
const basePrompt = `You are Vitalog, a health companion. You help the user ` +
	`understand their tracked health data and general health topics. You are ` +
	`not a doctor: never diagnose, never prescribe, and recommend professional ` +
	`care for anything urgent or ambiguous. Be concise and factual.`

// maxTitleWords bounds how many leading words seed a conversation title.
const maxTitleWords = 8

// BuildSystemPrompt assembles the system prompt from the user's settings and
// the retrieved knowledge chunks. Chunks appear in retrieval order inside a
// fenced context block the prompt tells the model to treat as reference
// material, not user input.
func BuildSystemPrompt(prefs *settings.Settings, chunks []knowledge.SearchResult) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if prefs != nil {
		if persona := strings.TrimSpace(prefs.AIPersona); persona != "" {
			b.WriteString("\n\nTone requested by the user: ")
			b.WriteString(persona)
		}
		if prefs.UnitSystem != "" {
			b.WriteString("\nUse ")
			b.WriteString(prefs.UnitSystem)
			b.WriteString(" units.")
		}
		if prefs.Locale == "zh" {
			b.WriteString("\nAnswer in Traditional Chinese.")
		}
	}

	if len(chunks) > 0 {
		b.WriteString("\n\nReference material (retrieved for this message; " +
			"cite it when relevant, ignore it when it does not apply):")
		for _, r := range chunks {
			b.WriteString("\n\n--- ")
			b.WriteString(r.Document.Title)
			b.WriteString(" ---\n")
			b.WriteString(r.Document.Content)
		}
	}

	return b.String()
}

// TitleFromMessage derives a conversation title from the first words of the
// first message, capped at maxTitleWords words and MaxTitleLen runes.
func TitleFromMessage(content string) string {
	fields := strings.FieldsFunc(content, unicode.IsSpace)
	if len(fields) > maxTitleWords {
		fields = fields[:maxTitleWords]
	}
	title := strings.Join(fields, " ")

	runes := []rune(title)
	if len(runes) > MaxTitleLen {
		title = string(runes[:MaxTitleLen-1]) + "…"
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}
