package tools

import "context"

// MessageType tags one typed response message from a tool invocation.
// The set is open: unknown types degrade to a generic rendering in the
// dispatcher instead of failing.
type MessageType string

const (
	MessageText      MessageType = "text"
	MessageLink      MessageType = "link"
	MessageImage     MessageType = "image"
	MessageImageLink MessageType = "image_link"
	MessageJSON      MessageType = "json"
)

// InvokeMessage is one item of a tool's response stream. Text carries the
// payload for text/link/image_link messages; JSON carries the object for
// json messages.
type InvokeMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text,omitempty"`
	JSON any         `json:"json,omitempty"`
}

// NewTextMessage builds a text invoke message.
func NewTextMessage(text string) InvokeMessage {
	return InvokeMessage{Type: MessageText, Text: text}
}

// NewLinkMessage builds a link invoke message.
func NewLinkMessage(url string) InvokeMessage {
	return InvokeMessage{Type: MessageLink, Text: url}
}

// NewJSONMessage builds a json invoke message.
func NewJSONMessage(payload any) InvokeMessage {
	return InvokeMessage{Type: MessageJSON, JSON: payload}
}

// Invoker executes a local tool and yields its typed response messages.
// It is the external collaborator contract consumed by the dispatcher;
// Registry is the in-process implementation.
type Invoker interface {
	Invoke(ctx context.Context, providerType ProviderType, providerID, toolName string, params map[string]any) ([]InvokeMessage, error)
}
