package chat

import "fmt"

// Role is the closed set of chat message roles. Keeping this a closed
// enumeration catches invalid roles at construction instead of at the far
// end of serialization.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of system, user, or assistant.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a normalized representation of a chat message.
type Message struct {
	Role    Role
	Content string
}

// NewMessage validates the role at construction time.
func NewMessage(role Role, content string) (Message, error) {
	if !role.Valid() {
		return Message{}, fmt.Errorf("invalid chat role %q", role)
	}
	return Message{Role: role, Content: content}, nil
}

// Request is a normalized chat-completion request. Model, MaxTokens, and
// Temperature are per-call overrides; zero values mean "use the provider's
// configured default".
type Request struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Messages    []Message
}

// Usage holds token accounting as reported by the upstream API.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a normalized chat-completion response.
type Response struct {
	Message Message
	Usage   Usage
}
