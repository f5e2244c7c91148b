// Package llm talks to the language model that drives a run. The model is
// an external command: it receives the conversation transcript and answers
// with plain text that may contain tool directives.
package llm

import "context"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces one model response for a conversation. Implementations
// must treat messages as read-only.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OneShot adapts a Client to single-prompt callers, such as the
// delegate tool: one user message in, one reply out, no history.
type OneShot struct {
	Client Client
}

// Complete sends prompt as a single-message conversation.
func (o OneShot) Complete(ctx context.Context, prompt string) (string, error) {
	return o.Client.Complete(ctx, []Message{{Role: RoleUser, Content: prompt}})
}
