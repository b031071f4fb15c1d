package llm

// Message represents a single message in a conversation.
type Message struct {
	Role string `json:"role"` // "system", "user", "assistant"

	// Content is a string for plain text, or a list of parts for multimodal input.
	Content any `json:"content"`
}
