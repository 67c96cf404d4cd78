package events

import (
	"time"

	"github.com/amp-labs/llmtrace/optional"
)

// Event names as they appear on spans.
const (
	NamePromptTemplateRendered = "prompt-template-rendered"
	NameRequestArgsBuilt       = "request-args-built"
	NameRequestStarted         = "request-started"
	NameRequestEnded           = "request-ended"
	NameRequestErrored         = "request-errored"
)

// LLMEvent is one of the events recorded around a call to a model provider.
// The set is closed: PromptTemplateRendered, RequestArgsBuilt, RequestStarted,
// RequestEnded and RequestErrored.
type LLMEvent interface {
	EventName() string

	llmEvent()
}

// Message is a single chat message in a rendered prompt.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PromptTemplateRendered is logged once the prompt for a function is rendered.
// Completion-style prompts set Prompt, chat-style prompts set Messages.
type PromptTemplateRendered struct {
	FunctionName string    `json:"function_name"`
	ClientName   string    `json:"client_name"`
	Prompt       string    `json:"prompt,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
}

// RequestArgsBuilt is logged once the provider request has been assembled.
type RequestArgsBuilt struct {
	ClientName string         `json:"client_name"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Params     map[string]any `json:"params,omitempty"`
}

// RequestStarted is logged right before the request is sent.
type RequestStarted struct {
	ClientName string    `json:"client_name"`
	RequestID  string    `json:"request_id"`
	Stream     bool      `json:"stream"`
	StartTime  time.Time `json:"start_time"`
}

// RequestEnded is logged when the provider answered.
type RequestEnded struct {
	ClientName   string                     `json:"client_name"`
	RequestID    string                     `json:"request_id"`
	Model        string                     `json:"model"`
	FinishReason string                     `json:"finish_reason,omitempty"`
	Latency      time.Duration              `json:"latency_ns"`
	Usage        optional.Value[TokenUsage] `json:"usage"`
}

// RequestErrored is logged when the request failed. StatusCode is absent when
// the failure happened before a response arrived.
type RequestErrored struct {
	ClientName string              `json:"client_name"`
	RequestID  string              `json:"request_id"`
	StatusCode optional.Value[int] `json:"status_code"`
	Message    string              `json:"message"`
}

func (PromptTemplateRendered) EventName() string { return NamePromptTemplateRendered }
func (RequestArgsBuilt) EventName() string       { return NameRequestArgsBuilt }
func (RequestStarted) EventName() string         { return NameRequestStarted }
func (RequestEnded) EventName() string           { return NameRequestEnded }
func (RequestErrored) EventName() string         { return NameRequestErrored }

func (PromptTemplateRendered) llmEvent() {}
func (RequestArgsBuilt) llmEvent()       {}
func (RequestStarted) llmEvent()         {}
func (RequestEnded) llmEvent()           {}
func (RequestErrored) llmEvent()         {}
