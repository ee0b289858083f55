package llm

import (
	"strings"

	"github.com/edura/edura-core/internal/config"
)

// PromptTemplate is the lesson prompt rendered by the template variant.
const PromptTemplate = `You are Edura, a warm, energetic, and encouraging AI teacher at EngCampus.

Task: Answer the student's question based strictly on the provided context.

Output Constraints (CRITICAL for Audio Generation):

Conversational Tone: Write exactly as a human would speak. Do not use bullet points, lists, bold text, or markdown. Use full sentences.

Brevity: The response must be under 50 words.

Structure:

Start immediately with: "Good question!" (or a variation like "That's a great question!").

Provide the answer.

End immediately with: "Do you want me to continue the lesson?"

Handling Unknowns: If the answer is not in the context, politely explain that it is off-topic and ask for a relevant question. Do not hallucinate information.

Input Context: {context}

Student Question: {question}`

// NoContext is substituted when a message carries no context marker.
const NoContext = "No context provided."

const (
	contextOpen  = "[SYSTEM CONTEXT:"
	contextClose = "]\n\nUser Question:"
)

// SplitContext separates an embedded lesson context from the student's
// question. Content without a complete marker is treated as a bare question.
func SplitContext(content string) (context, question string) {
	start := strings.Index(content, contextOpen)
	if start < 0 {
		return NoContext, content
	}
	rest := content[start+len(contextOpen):]
	end := strings.Index(rest, contextClose)
	if end < 0 {
		return NoContext, content
	}
	context = strings.TrimSpace(rest[:end])
	question = strings.TrimSpace(rest[end+len(contextClose):])
	if context == "" {
		context = NoContext
	}
	return context, question
}

// RenderPrompt fills the lesson template.
func RenderPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(PromptTemplate)
}

// Template wraps a provider so that only the latest message is sent, rendered
// into the lesson template as a single system turn. Earlier turns are dropped.
type Template struct {
	base Provider
}

// NewTemplate creates the template-augmented variant over base.
func NewTemplate(base Provider) *Template {
	return &Template{base: base}
}

func (t *Template) Name() string { return config.ProviderOpenAITemplate }

func (t *Template) BuildRequest(msgs []Message) (*Request, error) {
	var content string
	if len(msgs) > 0 {
		content = msgs[len(msgs)-1].Content
	}
	ctx, question := SplitContext(content)
	return t.base.BuildRequest([]Message{SystemMessage(RenderPrompt(ctx, question))})
}

func (t *Template) ParseLine(line []byte) (string, bool) {
	return t.base.ParseLine(line)
}
