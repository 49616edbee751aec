package toolkit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentllm/agentllm/internal/credstore"
)

var trackerTokenPatterns = []*regexp.Regexp{
	// "my tracker token is abc123" / "tracker token: abc123"
	regexp.MustCompile(`(?i)(?:my\s+)?tracker[ _-]token\s+(?:is|=|:)\s+(\S+)`),
	// "set tracker token to abc123"
	regexp.MustCompile(`(?i)set\s+tracker[ _-]token\s+to\s+(\S+)`),
	// "tracker_token: abc123"
	regexp.MustCompile(`(?i)tracker[ _-]token:\s*(\S+)`),
}

// standaloneTokenPattern catches a pasted personal access token on its own:
// a long base64-ish run containing both letters and digits.
var standaloneTokenPattern = regexp.MustCompile(`(?:^|\s)([A-Za-z0-9+/=]{30,})(?:\s|$)`)

var trackerServerPattern = regexp.MustCompile(`(?i)server\s+(?:is|=|:)?\s*(https://\S+)`)

var trackerKeywords = []string{"tracker", "issue", "ticket", "sprint"}

// IssueTracker holds a personal access token for the team's issue tracker.
// Tokens are validated syntactically at extraction; the stored token is
// exercised for real at build time.
type IssueTracker struct {
	creds         credstore.Store
	defaultServer string
	required      bool
}

// NewIssueTracker creates the issue-tracker capability. defaultServer is
// suggested in prompts and used when the user does not name a server.
func NewIssueTracker(creds credstore.Store, defaultServer string, required bool) *IssueTracker {
	return &IssueTracker{creds: creds, defaultServer: defaultServer, required: required}
}

func (tr *IssueTracker) Name() string        { return "issue-tracker" }
func (tr *IssueTracker) Required() bool      { return tr.required }
func (tr *IssueTracker) DependsOn() []string { return nil }

func (tr *IssueTracker) IsConfigured(ctx context.Context, userID string) (bool, error) {
	_, err := tr.creds.Get(ctx, tr.Name(), userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (tr *IssueTracker) ExtractAndStore(ctx context.Context, message, userID string) (bool, error) {
	token := extractTrackerToken(message)
	if token == "" {
		return false, nil
	}

	if len(token) < 12 {
		return false, &InvalidCredentialError{
			Capability: tr.Name(),
			Reason:     "token is too short to be a personal access token",
		}
	}

	server := tr.defaultServer
	if m := trackerServerPattern.FindStringSubmatch(message); m != nil {
		server = strings.TrimRight(m[1], ".,;")
	}
	if !strings.HasPrefix(server, "https://") {
		return false, &InvalidCredentialError{
			Capability: tr.Name(),
			Reason:     fmt.Sprintf("server URL %q must use https", server),
		}
	}

	rec := credstore.Record{"token": token, "server_url": server}
	if err := tr.creds.Put(ctx, tr.Name(), userID, rec); err != nil {
		return false, fmt.Errorf("store tracker token: %w", err)
	}
	return true, nil
}

func (tr *IssueTracker) CheckAuthorizationRequest(message string) bool {
	if tr.required {
		return false
	}
	lower := strings.ToLower(message)
	for _, kw := range trackerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (tr *IssueTracker) ConfigPrompt(string) string {
	return "To work with your issue tracker I need a personal access token.\n\n" +
		"Send it like this:\n" +
		"- \"my tracker token is <token>\"\n" +
		"- optionally add \"server https://...\" to use a non-default server\n\n" +
		"Default server: " + tr.defaultServer
}

func (tr *IssueTracker) Build(ctx context.Context, userID string) (Tool, error) {
	rec, err := tr.creds.Get(ctx, tr.Name(), userID)
	if err != nil {
		return nil, &BuildError{Capability: tr.Name(), Err: err}
	}
	token, server := rec["token"], rec["server_url"]
	if token == "" || server == "" {
		return nil, &BuildError{Capability: tr.Name(), Err: fmt.Errorf("stored record is missing token or server_url")}
	}
	return &TrackerTool{Server: server, token: token}, nil
}

func (tr *IssueTracker) Instructions(ctx context.Context, userID string) ([]string, error) {
	rec, err := tr.creds.Get(ctx, tr.Name(), userID)
	if err != nil {
		return nil, fmt.Errorf("read tracker credentials: %w", err)
	}
	return []string{
		fmt.Sprintf("You have access to issue tracker tools to search issues and get issue details from %s.", rec["server_url"]),
		"Use these tools when users ask about issues or tickets.",
	}, nil
}

func extractTrackerToken(message string) string {
	for _, p := range trackerTokenPatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			return m[1]
		}
	}
	if m := standaloneTokenPattern.FindStringSubmatch(message); m != nil {
		candidate := m[1]
		// Long opaque strings only qualify when they mix letters and digits,
		// which filters out long plain words and pure numbers.
		if strings.IndexFunc(candidate, isASCIILetter) >= 0 && strings.IndexFunc(candidate, isASCIIDigit) >= 0 {
			return candidate
		}
	}
	return ""
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

// TrackerTool is the built issue-tracker handle.
type TrackerTool struct {
	Server string
	token  string
}

func (t *TrackerTool) ToolName() string { return "issue_tracker" }

// Token exposes the credential to the run engine's tool bridge.
func (t *TrackerTool) Token() string { return t.token }
