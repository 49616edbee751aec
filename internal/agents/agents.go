// Package agents defines the agent types served by the proxy and the
// catalog that maps OpenAI model names onto their lifecycle wrappers.
package agents

import (
	"sort"
	"time"

	"github.com/agentllm/agentllm/internal/config"
	"github.com/agentllm/agentllm/internal/credstore"
	"github.com/agentllm/agentllm/internal/engine"
	"github.com/agentllm/agentllm/internal/prompt"
	"github.com/agentllm/agentllm/internal/toolkit"
	"github.com/agentllm/agentllm/internal/wrapper"
	"github.com/agentllm/agentllm/pkg/models"
)

// Catalog maps model names to wrappers. Clients see each agent type as a
// model in /v1/models and address it by name in chat requests.
type Catalog struct {
	wrappers map[string]*wrapper.Wrapper
	created  int64
}

func NewCatalog(ws ...*wrapper.Wrapper) *Catalog {
	c := &Catalog{
		wrappers: make(map[string]*wrapper.Wrapper, len(ws)),
		created:  time.Now().Unix(),
	}
	for _, w := range ws {
		c.wrappers[w.AgentType()] = w
	}
	return c
}

// Get returns the wrapper serving a model name.
func (c *Catalog) Get(model string) (*wrapper.Wrapper, bool) {
	w, ok := c.wrappers[model]
	return w, ok
}

// Models lists the agent types in OpenAI model-list form.
func (c *Catalog) Models() models.ModelList {
	names := make([]string, 0, len(c.wrappers))
	for name := range c.wrappers {
		names = append(names, name)
	}
	sort.Strings(names)

	list := models.ModelList{Object: "list"}
	for _, name := range names {
		list.Data = append(list.Data, models.ModelInfo{
			ID:      name,
			Object:  "model",
			Created: c.created,
			OwnedBy: "agentllm",
		})
	}
	return list
}

// NewDemo builds the demo agent: a minimal stateful agent whose single
// required capability is the user's favorite color.
func NewDemo(cfg *config.Config, creds credstore.Store, eng engine.Engine) *wrapper.Wrapper {
	caps := []toolkit.Capability{
		toolkit.NewFavoriteColor(creds),
	}
	if cfg.Toolkits.WebSearchEnabled {
		caps = append(caps, toolkit.NewWebSearch(creds, nil))
	}

	base := []string{
		"You are a friendly demo assistant.",
		"Answer briefly and plainly.",
	}
	return wrapper.New("demo", toolkit.MustNewRegistry(caps...),
		prompt.New(base, nil), creds, eng)
}

// NewReleaseManager builds the release-manager agent: issue tracker and
// document store access are required, the system prompt can be extended
// from an external document, and web search is available on request.
func NewReleaseManager(cfg *config.Config, creds credstore.Store, eng engine.Engine) *wrapper.Wrapper {
	tracker := toolkit.NewIssueTracker(creds, cfg.Toolkits.TrackerServerURL, true)
	docstore := toolkit.NewDocStore(creds, nil, nil)
	extension := toolkit.NewPromptExtension(cfg.Toolkits.SystemPromptDoc, docstore)

	caps := []toolkit.Capability{tracker, docstore, extension}
	if cfg.Toolkits.WebSearchEnabled {
		caps = append(caps, toolkit.NewWebSearch(creds, nil))
	}

	base := []string{
		"You are a release manager assistant for a software team.",
		"You coordinate releases: track issues, read release documents, and summarize status.",
		"Prefer precise, actionable answers over long prose.",
	}
	return wrapper.New("release-manager", toolkit.MustNewRegistry(caps...),
		prompt.New(base, extension), creds, eng)
}
