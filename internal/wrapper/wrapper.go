// Package wrapper ties the lifecycle together: one Handle call runs the
// configuration pass, reuses or builds the agent, and delegates to the run
// engine. It owns the invalidation rule — any credential change this turn
// drops the user's cached agents and prompt entry before the next build.
package wrapper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentllm/agentllm/internal/agentcache"
	"github.com/agentllm/agentllm/internal/credstore"
	"github.com/agentllm/agentllm/internal/engine"
	"github.com/agentllm/agentllm/internal/orchestrator"
	"github.com/agentllm/agentllm/internal/prompt"
	"github.com/agentllm/agentllm/internal/toolkit"
	"github.com/agentllm/agentllm/pkg/models"
)

// Request is one inbound turn.
type Request struct {
	Messages    []models.ChatMessage
	UserID      string
	SessionID   string
	Temperature *float64
	MaxTokens   *int
	Stream      bool
}

// Result is the wrapper's answer: either a configuration prompt, a complete
// response, or a live stream. Exactly one of Content/Stream is meaningful;
// ConfigPrompt marks Content as a configuration prompt rather than an
// agent reply.
type Result struct {
	Content      string
	Stream       <-chan engine.StreamChunk
	ConfigPrompt bool
}

// Wrapper is the lifecycle for one agent type.
type Wrapper struct {
	agentType string
	registry  *toolkit.Registry
	orch      *orchestrator.Orchestrator
	cache     *agentcache.Cache
	composer  *prompt.Composer
	creds     credstore.Store
	engine    engine.Engine

	// Per-user write locks: concurrent requests for one user serialize
	// their credential and cache mutations; different users never contend.
	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

func New(agentType string, registry *toolkit.Registry, composer *prompt.Composer, creds credstore.Store, eng engine.Engine) *Wrapper {
	return &Wrapper{
		agentType: agentType,
		registry:  registry,
		orch:      orchestrator.New(agentType, registry),
		cache:     agentcache.New(),
		composer:  composer,
		creds:     creds,
		engine:    eng,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// AgentType returns the agent type this wrapper serves.
func (w *Wrapper) AgentType() string { return w.agentType }

// Cache exposes the agent cache for introspection.
func (w *Wrapper) Cache() *agentcache.Cache { return w.cache }

func (w *Wrapper) userLock(userID string) *sync.Mutex {
	w.lockMu.Lock()
	defer w.lockMu.Unlock()
	mu, ok := w.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		w.userLocks[userID] = mu
	}
	return mu
}

// Handle processes one turn. A not-ready configuration outcome becomes the
// entire response without touching the run engine; otherwise the cached or
// freshly built agent runs the turn.
func (w *Wrapper) Handle(ctx context.Context, req Request) (Result, error) {
	message := models.LastUserMessage(req.Messages)

	mu := w.userLock(req.UserID)
	mu.Lock()
	out, err := w.orch.Run(ctx, req.UserID, message)
	if err == nil && len(out.Changed) > 0 {
		w.cache.Invalidate(req.UserID)
		w.composer.Invalidate(req.UserID)
	}
	mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("configuration pass: %w", err)
	}

	if !out.Ready() {
		return Result{Content: out.Prompt, ConfigPrompt: true}, nil
	}

	fp := agentcache.Fingerprint{
		AgentType:   w.agentType,
		UserID:      req.UserID,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	requested := w.orch.Requested(message)

	built, err := w.cache.GetOrBuild(ctx, fp, func(ctx context.Context) (any, error) {
		return w.buildAgent(ctx, req, requested)
	})
	if err != nil {
		return Result{}, err
	}
	agent := built.(engine.Agent)

	if req.Stream {
		stream, err := agent.RunStream(ctx, req.Messages)
		if err != nil {
			return Result{}, err
		}
		return Result{Stream: stream}, nil
	}
	content, err := agent.Run(ctx, req.Messages)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: content}, nil
}

// buildAgent constructs the agent: build each configured capability in
// registration order, compose the prompt, hand both to the run engine.
//
// Error policy: a required capability's build failure deletes the stored
// credential (it was accepted at extraction but rejected now, e.g. expired)
// and aborts; an optional capability's failure aborts only when the message
// explicitly invoked it, otherwise the capability is omitted.
func (w *Wrapper) buildAgent(ctx context.Context, req Request, requested map[string]bool) (engine.Agent, error) {
	var tools []toolkit.Tool
	var contributions [][]string

	for _, cap := range w.registry.Capabilities() {
		ok, err := cap.IsConfigured(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", cap.Name(), err)
		}
		if !ok {
			continue
		}

		tool, err := cap.Build(ctx, req.UserID)
		if err != nil {
			if !cap.Required() && !requested[cap.Name()] {
				log.Warn().
					Str("agent_type", w.agentType).
					Str("user_id", req.UserID).
					Str("capability", cap.Name()).
					Err(err).
					Msg("omitting optional capability after build failure")
				continue
			}
			w.discardRejectedCredential(ctx, req.UserID, err)
			return nil, fmt.Errorf("build %s: %w", cap.Name(), err)
		}
		if tool != nil {
			tools = append(tools, tool)
		}

		instr, err := cap.Instructions(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("instructions %s: %w", cap.Name(), err)
		}
		if len(instr) > 0 {
			contributions = append(contributions, instr)
		}
	}

	instructions, err := w.composer.Compose(ctx, req.UserID, contributions)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("agent_type", w.agentType).
		Str("user_id", req.UserID).
		Int("tools", len(tools)).
		Int("instructions", len(instructions)).
		Msg("building agent")

	return w.engine.Build(ctx, engine.BuildSpec{
		AgentType:    w.agentType,
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		Instructions: instructions,
		Tools:        tools,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
}

// discardRejectedCredential removes the stored record behind a build-time
// rejection so the next turn re-prompts instead of failing the same way.
func (w *Wrapper) discardRejectedCredential(ctx context.Context, userID string, err error) {
	var be *toolkit.BuildError
	if !errors.As(err, &be) {
		return
	}
	if delErr := w.creds.Delete(ctx, be.Capability, userID); delErr != nil {
		log.Error().
			Str("capability", be.Capability).
			Str("user_id", userID).
			Err(delErr).
			Msg("failed to discard rejected credential")
		return
	}
	w.composer.Invalidate(userID)
	log.Info().
		Str("capability", be.Capability).
		Str("user_id", userID).
		Msg("discarded credential rejected at build time")
}
