// Package prompt assembles the instruction list handed to the run engine at
// agent-build time. The order is fixed: base instructions, then the
// externally fetched prompt extension, then each capability's contribution
// in registration order. The composed list is never mutated after a build;
// changing it requires invalidation and a fresh build.
package prompt

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentllm/agentllm/internal/toolkit"
)

// FetchError reports that the external prompt document could not be
// retrieved while the extension is enabled and its prerequisite configured.
// It is fatal to agent creation; composing without the document would
// silently run the agent with the wrong instructions.
type FetchError struct {
	DocRef string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("prompt: fetch %s: %v", e.DocRef, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Composer builds instruction lists for one agent type. The external
// document is fetched at most once per user per invalidation epoch and
// reused verbatim until Invalidate drops the entry.
type Composer struct {
	base      []string
	extension *toolkit.PromptExtension

	mu      sync.Mutex
	fetched map[string]string // userID → document text
}

// New creates a composer. extension may be nil when the agent type has no
// prompt extension at all.
func New(base []string, extension *toolkit.PromptExtension) *Composer {
	return &Composer{
		base:      base,
		extension: extension,
		fetched:   make(map[string]string),
	}
}

// Compose returns the full instruction list for one user. contributions are
// the per-capability instruction blocks, already in registration order.
func (c *Composer) Compose(ctx context.Context, userID string, contributions [][]string) ([]string, error) {
	out := make([]string, 0, len(c.base)+8)
	out = append(out, c.base...)

	ext, include, err := c.extensionText(ctx, userID)
	if err != nil {
		return nil, err
	}
	if include {
		out = append(out, ext)
	}

	for _, block := range contributions {
		out = append(out, block...)
	}
	return out, nil
}

// extensionText returns the external document for userID, fetching and
// caching it on first need. The second return is false when the extension
// is disabled or its prerequisite is not configured, in which case the
// document is omitted without error.
func (c *Composer) extensionText(ctx context.Context, userID string) (string, bool, error) {
	if c.extension == nil || !c.extension.Enabled() {
		return "", false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if text, ok := c.fetched[userID]; ok {
		return text, true, nil
	}

	ok, err := c.extension.IsConfigured(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("prompt: check extension: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	docRef := c.extension.DocRef()
	text, err := c.extension.Fetch(ctx, userID)
	if err != nil {
		return "", false, &FetchError{DocRef: docRef, Err: err}
	}

	c.fetched[userID] = text
	log.Info().
		Str("user_id", userID).
		Str("doc_ref", docRef).
		Int("bytes", len(text)).
		Msg("cached external prompt document")
	return text, true, nil
}

// Invalidate drops the cached document for userID. The next Compose fetches
// it again.
func (c *Composer) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.fetched, userID)
	c.mu.Unlock()
}
