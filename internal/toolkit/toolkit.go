// Package toolkit defines the capability contract for pluggable agent
// functionality and the concrete capabilities shipped with the proxy.
//
// A capability is a stateless unit of logic: its per-user configuration
// state lives entirely in the credential store, keyed by (capability name,
// user id). Capabilities are evaluated in registration order; a capability
// that reads another capability's configured state must be registered
// after it.
package toolkit

import "context"

// Capability is the contract every toolkit capability implements.
type Capability interface {
	// Name uniquely identifies the capability within a registry and is
	// the credential-store kind under which its state is persisted.
	Name() string

	// Required capabilities block agent creation until configured.
	// Optional capabilities stay silent until the user asks for them.
	Required() bool

	// DependsOn lists capability names whose configured state this
	// capability reads. All of them must be registered earlier.
	DependsOn() []string

	// IsConfigured reports whether a valid credential record exists for
	// the user. It only reads the credential store and never mutates.
	IsConfigured(ctx context.Context, userID string) (bool, error)

	// ExtractAndStore scans a single user message for this capability's
	// credential pattern. On a syntactically valid match it persists the
	// credential and returns true. It returns (false, nil) when nothing
	// relevant is present, and (false, *InvalidCredentialError) when a
	// credential was found but is malformed. Re-extracting the same
	// message yields the same stored state.
	ExtractAndStore(ctx context.Context, message, userID string) (bool, error)

	// CheckAuthorizationRequest reports whether the message asks to use
	// this capability's feature. Only consulted for optional
	// capabilities; required capabilities may return false.
	CheckAuthorizationRequest(message string) bool

	// ConfigPrompt returns instructions telling the user how to supply
	// credentials. Safe to show repeatedly; never leaks stored secrets.
	ConfigPrompt(userID string) string

	// Build constructs the per-user tool handle from stored credentials.
	// It returns *BuildError when the stored credential is unusable and
	// *DependencyError when a DependsOn prerequisite is not configured.
	// Capabilities that contribute only instructions return (nil, nil).
	Build(ctx context.Context, userID string) (Tool, error)

	// Instructions returns capability-specific additions to the agent's
	// instruction set. Called only when IsConfigured is true.
	Instructions(ctx context.Context, userID string) ([]string, error)
}

// Tool is a built, per-user capability handle handed to the run engine.
type Tool interface {
	// ToolName names the tool surface exposed to the model.
	ToolName() string
}

// DocumentFetcher fetches an external document on behalf of a user.
// The docstore capability's built tool implements it; the prompt composer
// consumes it.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, docRef string) (string, error)
}
