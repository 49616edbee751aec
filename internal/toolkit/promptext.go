package toolkit

import "context"

// PromptExtension marks that the agent's system prompt is extended from an
// externally fetched document. It owns no credentials and never prompts:
// configuration comes from the process environment (the document reference)
// and from the docstore capability it depends on.
//
// Readiness semantics are deliberately asymmetric:
//   - document reference unset → silently treated as configured (no-op)
//   - docstore not yet configured → also silent; docstore itself prompts
//   - both active but the fetch fails → fatal at prompt-composition time
//
// The actual fetch and per-user caching live in the prompt composer; this
// capability exists so the dependency and ordering rules apply to the
// feature like any other.
type PromptExtension struct {
	docRef   string
	docstore *DocStore
}

// NewPromptExtension creates the capability. An empty docRef disables the
// feature entirely.
func NewPromptExtension(docRef string, docstore *DocStore) *PromptExtension {
	return &PromptExtension{docRef: docRef, docstore: docstore}
}

func (p *PromptExtension) Name() string        { return "prompt-extension" }
func (p *PromptExtension) Required() bool      { return true }
func (p *PromptExtension) DependsOn() []string { return []string{p.docstore.Name()} }

// Enabled reports whether a document reference is configured.
func (p *PromptExtension) Enabled() bool { return p.docRef != "" }

// DocRef returns the configured document reference.
func (p *PromptExtension) DocRef() string { return p.docRef }

func (p *PromptExtension) IsConfigured(ctx context.Context, userID string) (bool, error) {
	if !p.Enabled() {
		// Feature disabled: treated as configured so it never blocks.
		return true, nil
	}
	return p.docstore.IsConfigured(ctx, userID)
}

func (p *PromptExtension) ExtractAndStore(context.Context, string, string) (bool, error) {
	return false, nil
}

func (p *PromptExtension) CheckAuthorizationRequest(string) bool { return false }

func (p *PromptExtension) ConfigPrompt(string) string { return "" }

func (p *PromptExtension) Build(ctx context.Context, userID string) (Tool, error) {
	if !p.Enabled() {
		return nil, nil
	}
	ok, err := p.docstore.IsConfigured(ctx, userID)
	if err != nil {
		return nil, &BuildError{Capability: p.Name(), Err: err}
	}
	if !ok {
		return nil, &DependencyError{Capability: p.Name(), Dependency: p.docstore.Name()}
	}
	// Contributes instructions via the prompt composer, not a tool.
	return nil, nil
}

func (p *PromptExtension) Instructions(context.Context, string) ([]string, error) {
	// The composer injects the fetched document; nothing extra here.
	return nil, nil
}

// Fetch retrieves the configured document's text with the user's docstore
// credentials. Callers must only invoke it when Enabled and the docstore is
// configured.
func (p *PromptExtension) Fetch(ctx context.Context, userID string) (string, error) {
	f, err := p.docstore.Fetcher(ctx, userID)
	if err != nil {
		return "", err
	}
	return f.FetchDocument(ctx, p.docRef)
}
