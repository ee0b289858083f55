package llm

import (
	"github.com/sashabaranov/go-openai"
)

// Conversation roles.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one turn of a conversation. Order in a slice is turn order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage builds a system turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// WithSystem returns msgs preceded by a system turn carrying prompt.
func WithSystem(prompt string, msgs []Message) []Message {
	out := make([]Message, 0, len(msgs)+1)
	out = append(out, SystemMessage(prompt))
	return append(out, msgs...)
}

func toOpenAI(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// lastUserQuestion is what gets logged as the request summary.
func lastUserQuestion(msgs []Message) string {
	if len(msgs) == 0 {
		return "Unknown"
	}
	return msgs[len(msgs)-1].Content
}
