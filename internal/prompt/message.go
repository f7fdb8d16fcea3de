package prompt

// Message is a model-facing chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
