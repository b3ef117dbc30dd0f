// Package prompt assembles chat requests for the app's AI features:
// Q&A over documents, summarization, flashcard generation, and the
// tool-use instruction text derived from registered tool definitions.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"incrementum/internal/llm"
	"incrementum/internal/mcp"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// Builder accumulates a message list and sampling settings and produces
// an llm.ChatRequest.
type Builder struct {
	messages    []llm.ChatMessage
	systemText  string
	temperature float64
	maxTokens   int
}

// New returns a builder with the default sampling settings.
func New() *Builder {
	return &Builder{
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
}

// WithSystem sets the system prompt, prepended at build time.
func (b *Builder) WithSystem(text string) *Builder {
	b.systemText = text
	return b
}

// WithTemperature clamps and sets the sampling temperature.
func (b *Builder) WithTemperature(t float64) *Builder {
	if t < 0 {
		t = 0
	}
	if t > 2 {
		t = 2
	}
	b.temperature = t
	return b
}

// WithMaxTokens sets the completion token limit.
func (b *Builder) WithMaxTokens(n int) *Builder {
	b.maxTokens = n
	return b
}

// AddUser appends a user message.
func (b *Builder) AddUser(content string) *Builder {
	b.messages = append(b.messages, llm.ChatMessage{Role: llm.RoleUser, Content: content})
	return b
}

// AddAssistant appends an assistant message.
func (b *Builder) AddAssistant(content string) *Builder {
	b.messages = append(b.messages, llm.ChatMessage{Role: llm.RoleAssistant, Content: content})
	return b
}

// AddDocumentContext appends the active document as a user message.
func (b *Builder) AddDocumentContext(title, content string) *Builder {
	return b.AddUser(fmt.Sprintf("Document: %s\n\nContent:\n%s", title, content))
}

// Build produces the chat request, prepending the system message when
// one is set.
func (b *Builder) Build() llm.ChatRequest {
	messages := make([]llm.ChatMessage, 0, len(b.messages)+1)
	if b.systemText != "" {
		messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: b.systemText})
	}
	messages = append(messages, b.messages...)
	return llm.ChatRequest{
		Messages:    messages,
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
	}
}

// QuestionAnswering builds a prompt for answering a question from
// provided context only.
func QuestionAnswering(question, context string) *Builder {
	return New().
		WithSystem("You are a helpful assistant that answers questions based on the provided context. " +
			"Only use information from the context to answer. " +
			"If the context doesn't contain enough information to answer the question, say so.").
		AddUser(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, question))
}

// Summarization builds a prompt for a bounded-length summary.
func Summarization(content string, maxWords int) *Builder {
	return New().
		WithSystem(fmt.Sprintf("You are an expert at creating clear, concise summaries. "+
			"Create a summary that captures the main points and key details. "+
			"Keep the summary under %d words.", maxWords)).
		AddUser("Summarize the following:\n\n" + content)
}

// FlashcardGeneration builds a prompt for generating flashcards as a
// JSON list of question/answer objects.
func FlashcardGeneration(content string, count int) *Builder {
	return New().
		WithSystem("You are an expert at creating educational flashcards. " +
			"Generate clear, concise flashcards that test understanding of key concepts. " +
			"Return the flashcards in JSON format with 'question' and 'answer' fields.").
		AddUser(fmt.Sprintf("Generate %d flashcards from the following content:\n\n%s", count, content))
}

// KeyPoints builds a prompt for extracting the top key points as a
// bulleted list.
func KeyPoints(content string, count int) *Builder {
	return New().
		WithSystem("You are an expert at identifying key information. " +
			"Extract the most important points from the content. " +
			"Return as a bulleted list.").
		AddUser(fmt.Sprintf("Extract the top %d key points from:\n\n%s", count, content))
}

// ToolInstructions renders the system-prompt section describing the
// available tools and the fenced wire format the model must use to
// invoke them.
func ToolInstructions(tools []mcp.ToolDefinition) string {
	if len(tools) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You have access to the following tools:\n\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}
	sb.WriteString("\nTo invoke tools, emit a fenced block tagged tool_call containing a JSON array:\n")
	sb.WriteString("```tool_call\n")
	sb.WriteString(`[{"name": "tool_name", "arguments": {"key": "value"}}]`)
	sb.WriteString("\n```\n")
	sb.WriteString("Tool calls execute in the order listed. Omit the block entirely when no tool is needed.")
	return sb.String()
}

// GeneratedItem is one structured generation result, such as a
// flashcard.
type GeneratedItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	ItemType string `json:"type,omitempty"`
	Level    int    `json:"level,omitempty"`
}

// ParseStructuredResponse extracts the first JSON array embedded in a
// model response and decodes it. Models wrap structured output in prose
// or code fences; everything outside the outermost brackets is ignored.
func ParseStructuredResponse(text string) ([]GeneratedItem, error) {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	if start < 0 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	end := strings.LastIndex(text, "]")
	if end < start {
		return nil, fmt.Errorf("no JSON array end found in response")
	}

	var items []GeneratedItem
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("failed to parse structured response: %w", err)
	}
	return items, nil
}
