package prompt

import (
	"github.com/plexllm/llamabot/internal/store"
)

// DefaultSystem is the assistant instruction used when a channel has no
// personality override.
const DefaultSystem = "You are a helpful assistant. Answer the user's request directly and concisely. Do not summarize previous conversation unless asked."

// Assembler builds an LLM prompt from stored history under two independent
// bounds: a maximum turn count (enforced by the caller's fetch limit) and a
// character budget over the rendered history. The system preamble and the
// triggering turn are never dropped and do not count against the budget.
type Assembler struct {
	CharBudget int
}

// Render formats a stored message the way it appears in prompts, with the
// speaker's display name prefixed so the model can tell speakers apart.
func Render(m store.Message) string {
	return m.Username + ": " + m.Content
}

// Assemble builds the final turn list: system preamble, budgeted history
// (oldest turns dropped first), then the triggering user turn. The trigger
// is excluded from history if it was already appended to the store, so it
// never appears twice.
func (a *Assembler) Assemble(personality string, history []store.Message, username, text string) []Message {
	system := personality
	if system == "" {
		system = DefaultSystem
	}

	// The caller appends the trigger before fetching history; drop it from
	// the tail so it is only the explicit final turn.
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == store.RoleUser && last.Username == username && last.Content == text {
			history = history[:n-1]
		}
	}

	// Walk newest to oldest, keeping turns while the rendered total fits
	// the budget.
	total := 0
	keepFrom := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		size := len(Render(history[i]))
		if a.CharBudget > 0 && total+size > a.CharBudget {
			break
		}
		total += size
		keepFrom = i
	}

	messages := make([]Message, 0, len(history)-keepFrom+2)
	messages = append(messages, Message{Role: "system", Content: system})
	for _, m := range history[keepFrom:] {
		messages = append(messages, Message{Role: string(m.Role), Content: Render(m)})
	}
	messages = append(messages, Message{Role: "user", Content: username + ": " + text})
	return messages
}

// Summary builds a summarization prompt: a fixed instruction followed by
// the rendered conversation.
func Summary(instruction string, history []store.Message) []Message {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: "system", Content: instruction})
	for _, m := range history {
		messages = append(messages, Message{Role: string(m.Role), Content: Render(m)})
	}
	return messages
}
