// Package engine defines the run-engine contract and an OpenAI-compatible
// upstream implementation. Agents are built once with a fixed instruction
// list and tool set; conversation continuity comes from the session store,
// keyed by session ID, so rebuilding an agent never loses history.
package engine

import (
	"context"

	"github.com/agentllm/agentllm/internal/toolkit"
	"github.com/agentllm/agentllm/pkg/models"
)

// BuildSpec carries everything needed to construct one agent.
type BuildSpec struct {
	AgentType    string
	UserID       string
	SessionID    string
	Instructions []string
	Tools        []toolkit.Tool
	Temperature  *float64
	MaxTokens    *int
}

// StreamChunk is one fragment of a streamed response. Err is set on the
// final chunk when the stream ended abnormally.
type StreamChunk struct {
	Content string
	Err     error
}

// Agent is a built, ready-to-run agent. Its instructions and tools are
// fixed at build time; a changed configuration requires a new build.
type Agent interface {
	Run(ctx context.Context, msgs []models.ChatMessage) (string, error)
	RunStream(ctx context.Context, msgs []models.ChatMessage) (<-chan StreamChunk, error)
}

// Engine builds agents.
type Engine interface {
	Build(ctx context.Context, spec BuildSpec) (Agent, error)
}
