package toolkit

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/agentllm/agentllm/internal/credstore"
)

var webSearchKeywords = []string{
	"search the web", "web search", "look up online", "browse", "fetch url", "fetch the page",
}

var webSearchOptIn = regexp.MustCompile(`(?i)\b(?:enable|turn on|activate|yes,?\s+enable)\s+(?:web\s+)?search\b`)

// WebSearch is an optional capability: it never blocks agent creation and
// only surfaces its prompt when the user asks for web access. Opting in
// stores an acknowledgment record; no external credential is needed for
// public pages.
type WebSearch struct {
	creds          credstore.Store
	allowedDomains []string
}

func NewWebSearch(creds credstore.Store, allowedDomains []string) *WebSearch {
	if len(allowedDomains) == 0 {
		allowedDomains = []string{"*"}
	}
	return &WebSearch{creds: creds, allowedDomains: allowedDomains}
}

func (w *WebSearch) Name() string        { return "web-search" }
func (w *WebSearch) Required() bool      { return false }
func (w *WebSearch) DependsOn() []string { return nil }

func (w *WebSearch) IsConfigured(ctx context.Context, userID string) (bool, error) {
	_, err := w.creds.Get(ctx, w.Name(), userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (w *WebSearch) ExtractAndStore(ctx context.Context, message, userID string) (bool, error) {
	if !webSearchOptIn.MatchString(message) {
		return false, nil
	}
	if err := w.creds.Put(ctx, w.Name(), userID, credstore.Record{"enabled": "true"}); err != nil {
		return false, err
	}
	return true, nil
}

func (w *WebSearch) CheckAuthorizationRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range webSearchKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (w *WebSearch) ConfigPrompt(string) string {
	return "It sounds like you want me to look things up on the web.\n\n" +
		"Web access is off by default. Say \"enable web search\" to turn it on.\n\n" +
		"Allowed domains: " + strings.Join(w.allowedDomains, ", ")
}

func (w *WebSearch) Build(ctx context.Context, userID string) (Tool, error) {
	ok, err := w.IsConfigured(ctx, userID)
	if err != nil {
		return nil, &BuildError{Capability: w.Name(), Err: err}
	}
	if !ok {
		return nil, &BuildError{Capability: w.Name(), Err: credstore.ErrNotFound}
	}
	return &WebTool{AllowedDomains: w.allowedDomains}, nil
}

func (w *WebSearch) Instructions(context.Context, string) ([]string, error) {
	return []string{
		"Web Access Tools:",
		"- You can fetch content from public web pages with fetch_url(url).",
		"- Allowed domains: " + strings.Join(w.allowedDomains, ", "),
		"- The tool extracts readable text from HTML.",
	}, nil
}

// WebTool is the built public-web handle.
type WebTool struct {
	AllowedDomains []string
}

func (t *WebTool) ToolName() string { return "web_tools" }
