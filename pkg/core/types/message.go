package types

// Message is one entry of the conversation history exchanged with the
// dialogue policy. The interview core treats history as opaque and only
// replaces it wholesale with what the policy returns.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CloneMessages returns a copy of history that shares no backing array.
func CloneMessages(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out
}
