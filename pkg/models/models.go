// Package models defines the wire types for the AgentLLM proxy.
//
// The proxy speaks the OpenAI chat-completions format on the outside so
// that any OpenAI-compatible client (Open WebUI, curl, SDKs) can talk to
// stateful agents as if they were plain models. These types cover the
// inbound request, the non-streaming response, and the SSE chunk format.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ── Chat Messages ────────────────────────────────────────────

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// LastUserMessage returns the content of the most recent user-role message.
// Configuration extraction operates on this message only; earlier turns are
// conversation history owned by the run engine.
func LastUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// ── Chat Completion Request ──────────────────────────────────

// RequestMetadata carries identity fields forwarded by frontends inside the
// request body (Open WebUI pipe functions put user/chat IDs here).
type RequestMetadata struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
}

type ChatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []ChatMessage    `json:"messages"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
	User        string           `json:"user,omitempty"`
	Metadata    *RequestMetadata `json:"metadata,omitempty"`
}

// ── Chat Completion Response ─────────────────────────────────

type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   TokenUsage             `json:"usage"`
}

// NewChatCompletionResponse builds a single-choice completion response.
func NewChatCompletionResponse(model, content, finishReason string) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.New().String(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatCompletionChoice{
			{
				Index:        0,
				Message:      ChatMessage{Role: "assistant", Content: content},
				FinishReason: finishReason,
			},
		},
	}
}

// ── Streaming Chunks ─────────────────────────────────────────

type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// NewContentChunk builds a delta chunk carrying a text fragment.
func NewContentChunk(id, model, content string) *ChatCompletionChunk {
	return &ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: ChunkDelta{Content: content}}},
	}
}

// NewFinalChunk builds the terminating chunk with a finish reason.
func NewFinalChunk(id, model, finishReason string) *ChatCompletionChunk {
	return &ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: ChunkDelta{}, FinishReason: &finishReason}},
	}
}

// ── Model Listing ────────────────────────────────────────────

type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ── Error Envelope ───────────────────────────────────────────

// APIError is the OpenAI-style error body.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

func NewErrorResponse(errType, format string, args ...any) *ErrorResponse {
	return &ErrorResponse{Error: APIError{
		Message: fmt.Sprintf(format, args...),
		Type:    errType,
	}}
}
