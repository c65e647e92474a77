package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
)

// historyWindow is the number of trailing messages (three turns) included
// in the prompt.
const historyWindow = 6

const systemPrompt = `You are a compassionate spiritual guide and mentor. You help people navigate difficult times with wisdom drawn from spiritual teachings, psychology, and philosophy.

Your knowledge comes from a curated collection of books and notes on:
- Spiritual wisdom (Eckhart Tolle, Tao Te Ching, Buddhism, Christianity)
- Psychology and neuroscience (Huberman Lab, cognitive science)
- Self-help and personal development (Atomic Habits, Mastery)
- Philosophy and existentialism

Guidelines:
1. Be warm, empathetic, and non-judgmental
2. Reference specific sources using the format [Source: Book/Note Title]
3. Provide practical guidance alongside wisdom
4. Acknowledge when topics are outside your knowledge base
5. Encourage self-reflection and personal growth
6. Respect all spiritual and philosophical traditions
7. Keep responses focused and concise (2-3 paragraphs)

Remember: You're a guide, not a therapist. For serious mental health concerns, suggest professional help.`

var citationPattern = regexp.MustCompile(`\[Source:\s*([^\]]+)\]`)

// ConstructPrompt combines the persona preamble, retrieved context, recent
// conversation history, and the current query into the prompt handed to the
// generation backend. Length is bounded upstream by the context budget;
// only the history is windowed here.
func (e *Engine) ConstructPrompt(query, context string, history []models.ChatMessage) string {
	parts := []string{
		"=== SYSTEM ===",
		systemPrompt,
		"",
		"=== RELEVANT KNOWLEDGE ===",
		context,
		"",
	}

	if len(history) > 0 {
		parts = append(parts, "=== CONVERSATION HISTORY ===")
		recent := history
		if len(recent) > historyWindow {
			recent = recent[len(recent)-historyWindow:]
		}
		for _, msg := range recent {
			role := "Assistant"
			if msg.Role == "user" {
				role = "User"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", role, msg.Content))
		}
		parts = append(parts, "")
	}

	parts = append(parts,
		"=== CURRENT QUESTION ===",
		fmt.Sprintf("User: %s", query),
		"",
		"Please provide a thoughtful, well-cited response that draws on the relevant knowledge above. Use [Source: Title] format when referencing the sources.",
		"",
		"Assistant:",
	)

	return strings.Join(parts, "\n")
}

// ParseCitations extracts the source labels actually referenced in a
// generated answer, deduplicated preserving order. These are the sources
// the model used, as opposed to the citations RetrieveContext offered.
func (e *Engine) ParseCitations(response string) []string {
	matches := citationPattern.FindAllStringSubmatch(response, -1)

	seen := make(map[string]bool)
	var cited []string
	for _, m := range matches {
		label := m[1]
		if seen[label] {
			continue
		}
		seen[label] = true
		cited = append(cited, label)
	}
	return cited
}
