// Package orchestrator runs the per-message configuration pass: it pulls
// credentials out of user messages, decides whether the agent is ready to
// build, and produces the configuration prompt shown when it is not.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/agentllm/agentllm/internal/toolkit"
)

// State is the per-(agent-type, user) configuration state after a pass.
type State int

const (
	// StateNeedsConfig means at least one capability still needs input
	// from the user; Outcome.Prompt carries the next question.
	StateNeedsConfig State = iota
	// StateReady means every required capability is configured and the
	// caller may build and run the agent.
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "needs_config"
}

// Outcome is the result of one orchestration pass.
type Outcome struct {
	State  State
	Prompt string
	// Changed lists the capabilities whose stored configuration changed
	// this turn. Any change obligates the caller to invalidate the user's
	// cached agents and prompt entry, regardless of which capability moved.
	Changed []string
}

// Ready reports whether the caller may proceed to build and run.
func (o Outcome) Ready() bool { return o.State == StateReady }

// Orchestrator walks a registry's capabilities strictly in registration
// order. Sequencing is load-bearing: a capability may rely on everything
// registered before it having had its extraction pass first.
type Orchestrator struct {
	agentType string
	registry  *toolkit.Registry
}

func New(agentType string, registry *toolkit.Registry) *Orchestrator {
	return &Orchestrator{agentType: agentType, registry: registry}
}

// Run executes the transition algorithm for one inbound user message:
//
//  1. every capability gets an extraction pass over the message,
//  2. the first unconfigured required capability claims the turn with its
//     configuration prompt,
//  3. optional capabilities interrupt only when the message explicitly
//     invokes them,
//  4. otherwise the outcome is ready.
//
// A malformed credential short-circuits into a user-facing error prompt so
// the user learns the value looked wrong instead of being asked again
// verbatim. Changed capabilities recorded before the short-circuit are still
// reported, since their writes already happened.
func (o *Orchestrator) Run(ctx context.Context, userID, message string) (Outcome, error) {
	out := Outcome{State: StateNeedsConfig}

	for _, cap := range o.registry.Capabilities() {
		stored, err := cap.ExtractAndStore(ctx, message, userID)
		if err != nil {
			var ice *toolkit.InvalidCredentialError
			if errors.As(err, &ice) {
				log.Warn().
					Str("agent_type", o.agentType).
					Str("user_id", userID).
					Str("capability", ice.Capability).
					Str("reason", ice.Reason).
					Msg("rejected malformed credential")
				out.Prompt = invalidCredentialPrompt(ice)
				return out, nil
			}
			return Outcome{}, fmt.Errorf("extract %s: %w", cap.Name(), err)
		}
		if stored {
			log.Info().
				Str("agent_type", o.agentType).
				Str("user_id", userID).
				Str("capability", cap.Name()).
				Msg("stored capability configuration")
			out.Changed = append(out.Changed, cap.Name())
		}
	}

	for _, cap := range o.registry.Capabilities() {
		if !cap.Required() {
			continue
		}
		ok, err := cap.IsConfigured(ctx, userID)
		if err != nil {
			return Outcome{}, fmt.Errorf("check %s: %w", cap.Name(), err)
		}
		if ok {
			continue
		}
		prompt := cap.ConfigPrompt(userID)
		if prompt == "" {
			// Promptless capabilities defer to whatever they depend on.
			continue
		}
		out.Prompt = prompt
		return out, nil
	}

	for _, cap := range o.registry.Capabilities() {
		if cap.Required() || !cap.CheckAuthorizationRequest(message) {
			continue
		}
		ok, err := cap.IsConfigured(ctx, userID)
		if err != nil {
			return Outcome{}, fmt.Errorf("check %s: %w", cap.Name(), err)
		}
		if ok {
			continue
		}
		if prompt := cap.ConfigPrompt(userID); prompt != "" {
			out.Prompt = prompt
			return out, nil
		}
	}

	out.State = StateReady
	return out, nil
}

// Requested reports which optional capabilities the message explicitly
// invokes. The wrapper uses this to decide whether an optional capability's
// build failure aborts the turn or just omits the capability.
func (o *Orchestrator) Requested(message string) map[string]bool {
	requested := make(map[string]bool)
	for _, cap := range o.registry.Capabilities() {
		if !cap.Required() && cap.CheckAuthorizationRequest(message) {
			requested[cap.Name()] = true
		}
	}
	return requested
}

func invalidCredentialPrompt(e *toolkit.InvalidCredentialError) string {
	return fmt.Sprintf("That doesn't look right: %s.\n\nPlease try again.", e.Reason)
}
