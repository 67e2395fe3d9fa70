// Package llm sends role-tagged messages to a generation backend and returns
// the single text payload it produces. Backends are picked once by New and
// decorated with Middleware for timeouts, retries and logging.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Format is the response format requested from the backend.
type Format string

const (
	FormatJSON Format = "json_object"
	FormatText Format = "text"
)

// Client is the generation capability. Implementations must be safe to call
// sequentially; dbtai never issues concurrent requests.
type Client interface {
	Name() string
	Send(ctx context.Context, messages []Message, format Format) (string, error)
	Close() error
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
