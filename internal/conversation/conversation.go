// Package conversation assembles the message lists sent upstream and renders
// the system prompts used by the chat flows.
package conversation

import (
	"fmt"
	"strings"

	"github.com/edura/edura-core/internal/llm"
)

// EnglishTeacherPrompt is the fixed-topic prompt of the English tutor chat.
const EnglishTeacherPrompt = `You are a helpful and knowledgeable English teacher.
Your goal is to clarify the student's doubts about English grammar, vocabulary, literature, or writing.
Keep your answers concise (strictly under 50 words) and easy to understand.
If the question is unrelated to English, politely steer the student back to the subject.`

const (
	DefaultStudentName = "Student"
	NoGradeReport      = "No grade report available."
)

// StudentName reads the "name" entry of the student record. Non-string
// values are printed as-is; a missing or null name is DefaultStudentName.
func StudentName(data map[string]any) string {
	v, ok := data["name"]
	if !ok || v == nil {
		return DefaultStudentName
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// StudentPrompt renders the per-session tutor prompt.
func StudentPrompt(name, gradeReport string) string {
	if strings.TrimSpace(name) == "" {
		name = DefaultStudentName
	}
	if strings.TrimSpace(gradeReport) == "" {
		gradeReport = NoGradeReport
	}
	return fmt.Sprintf(`You are a helpful and encouraging tutor for %s.
You have access to their grade report: %s.
Use this context to help answer their questions about their grades, performance, and homework.
Be concise, friendly, and motivational.
Make sure the answer is not too long, keep it under 50 words and is easy to understand.`, name, gradeReport)
}

// Assemble merges the client history with the new user message. Client
// system turns are dropped; a non-empty prompt is prepended as the only
// system turn.
func Assemble(prompt string, history []llm.Message, message string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	if prompt != "" {
		out = append(out, llm.SystemMessage(prompt))
	}
	for _, m := range history {
		if m.Role == llm.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return append(out, llm.UserMessage(message))
}

// Turns is Assemble without a prompt, for flows that hand their system
// prompt to the relay separately.
func Turns(history []llm.Message, message string) []llm.Message {
	return Assemble("", history, message)
}
