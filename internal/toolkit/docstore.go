package toolkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/agentllm/agentllm/internal/credstore"
)

// Doc store authorization codes arrive as a pasted redirect URL
// ("http://localhost?code=4/0Aea..."), a bare "code=..." parameter, or a
// standalone code starting with "4/".
var (
	docstoreURLCodePattern    = regexp.MustCompile(`(?i)(?:https?://\S*[?&])?code=([^&\s]+)`)
	docstoreSpokenCodePattern = regexp.MustCompile(`(?i)(?:my\s+)?(?:doc\s*store|docs?)\s+(?:auth\s+)?code\s+(?:is|=|:)\s+(\S+)`)
	docstoreBareCodePattern   = regexp.MustCompile(`(?:^|\s)(4/[A-Za-z0-9_\-.]+)(?:\s|$)`)
)

// ExchangeFunc swaps an authorization code for a long-lived access token.
// The real implementation talks to the doc store's OAuth endpoint; tests
// inject a stub.
type ExchangeFunc func(ctx context.Context, authCode, userID string) (credstore.Record, error)

// FetchFunc retrieves a document's text given its reference and the stored
// credential record.
type FetchFunc func(ctx context.Context, docRef string, rec credstore.Record) (string, error)

// DocStore grants access to the user's external document store through an
// authorization-code flow. Its built tool is the DocumentFetcher used by
// the system prompt extension.
type DocStore struct {
	creds    credstore.Store
	exchange ExchangeFunc
	fetch    FetchFunc
}

// NewDocStore creates the docstore capability. Nil exchange/fetch funcs get
// HTTP-backed defaults.
func NewDocStore(creds credstore.Store, exchange ExchangeFunc, fetch FetchFunc) *DocStore {
	if exchange == nil {
		exchange = defaultExchange
	}
	if fetch == nil {
		fetch = defaultFetch
	}
	return &DocStore{creds: creds, exchange: exchange, fetch: fetch}
}

func (d *DocStore) Name() string        { return "docstore" }
func (d *DocStore) Required() bool      { return true }
func (d *DocStore) DependsOn() []string { return nil }

func (d *DocStore) IsConfigured(ctx context.Context, userID string) (bool, error) {
	_, err := d.creds.Get(ctx, d.Name(), userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DocStore) ExtractAndStore(ctx context.Context, message, userID string) (bool, error) {
	code := extractDocstoreCode(message)
	if code == "" {
		return false, nil
	}

	rec, err := d.exchange(ctx, code, userID)
	if err != nil {
		return false, &InvalidCredentialError{
			Capability: d.Name(),
			Reason:     fmt.Sprintf("authorization code was rejected: %v", err),
		}
	}

	if err := d.creds.Put(ctx, d.Name(), userID, rec); err != nil {
		return false, fmt.Errorf("store docstore credentials: %w", err)
	}
	return true, nil
}

func (d *DocStore) CheckAuthorizationRequest(string) bool { return false }

func (d *DocStore) ConfigPrompt(string) string {
	return "To read documents on your behalf I need document store access.\n\n" +
		"1. Open the authorization link provided by your administrator\n" +
		"2. Approve access and copy the code from the redirect URL\n" +
		"   (it looks like `http://localhost?code=4/0Aea...`)\n" +
		"3. Paste the URL or just the code here"
}

func (d *DocStore) Build(ctx context.Context, userID string) (Tool, error) {
	rec, err := d.creds.Get(ctx, d.Name(), userID)
	if err != nil {
		return nil, &BuildError{Capability: d.Name(), Err: err}
	}
	if rec["access_token"] == "" {
		return nil, &BuildError{Capability: d.Name(), Err: fmt.Errorf("stored record has no access token")}
	}
	return &DocStoreTool{rec: rec, fetch: d.fetch}, nil
}

func (d *DocStore) Instructions(context.Context, string) ([]string, error) {
	return []string{
		"You have access to the user's document store.",
		"Use the document tools to read referenced documents when asked.",
	}, nil
}

// Fetcher returns a DocumentFetcher bound to the user's stored credentials.
// Used by the prompt composer, which needs fetch access without the full
// build path.
func (d *DocStore) Fetcher(ctx context.Context, userID string) (DocumentFetcher, error) {
	t, err := d.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	return t.(*DocStoreTool), nil
}

func extractDocstoreCode(message string) string {
	if m := docstoreURLCodePattern.FindStringSubmatch(message); m != nil {
		if strings.HasPrefix(m[1], "4/") {
			return m[1]
		}
	}
	if m := docstoreSpokenCodePattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := docstoreBareCodePattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	return ""
}

// DocStoreTool is the built document store handle.
type DocStoreTool struct {
	rec   credstore.Record
	fetch FetchFunc
}

func (t *DocStoreTool) ToolName() string { return "docstore" }

func (t *DocStoreTool) FetchDocument(ctx context.Context, docRef string) (string, error) {
	return t.fetch(ctx, docRef, t.rec)
}

// ── HTTP-backed defaults ─────────────────────────────────────

var docstoreHTTPClient = &http.Client{Timeout: 30 * time.Second}

func defaultExchange(ctx context.Context, authCode, userID string) (credstore.Record, error) {
	// The real code exchange is an external OAuth handshake. Without a
	// token endpoint configured, accept the code syntactically: the doc
	// store rejects bad tokens at fetch time.
	if !strings.HasPrefix(authCode, "4/") || len(authCode) < 10 {
		return nil, fmt.Errorf("code does not look like an authorization code")
	}
	return credstore.Record{"access_token": authCode, "user_id": userID}, nil
}

func defaultFetch(ctx context.Context, docRef string, rec credstore.Record) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docRef, nil)
	if err != nil {
		return "", fmt.Errorf("docstore: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+rec["access_token"])

	resp, err := docstoreHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("docstore: fetch %s: %w", docRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("docstore: fetch %s: status %d", docRef, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("docstore: read %s: %w", docRef, err)
	}
	return string(body), nil
}
