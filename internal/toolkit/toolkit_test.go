package toolkit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentllm/agentllm/internal/credstore"
	"github.com/agentllm/agentllm/internal/toolkit"
)

// ─── Registry ────────────────────────────────────────────────

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	creds := credstore.NewMemory()
	_, err := toolkit.NewRegistry(
		toolkit.NewFavoriteColor(creds),
		toolkit.NewFavoriteColor(creds),
	)
	if err == nil {
		t.Fatal("NewRegistry() with duplicate names: want error, got nil")
	}
}

func TestRegistryRejectsForwardDependency(t *testing.T) {
	creds := credstore.NewMemory()
	ds := toolkit.NewDocStore(creds, nil, nil)
	ext := toolkit.NewPromptExtension("doc-1", ds)

	// prompt-extension depends on docstore, which is registered after it.
	if _, err := toolkit.NewRegistry(ext, ds); err == nil {
		t.Fatal("NewRegistry() with forward dependency: want error, got nil")
	}

	// Correct order is accepted.
	if _, err := toolkit.NewRegistry(ds, ext); err != nil {
		t.Fatalf("NewRegistry() with valid order error = %v", err)
	}
}

func TestRegistryPreservesOrder(t *testing.T) {
	creds := credstore.NewMemory()
	r, err := toolkit.NewRegistry(
		toolkit.NewFavoriteColor(creds),
		toolkit.NewWebSearch(creds, nil),
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	caps := r.Capabilities()
	if caps[0].Name() != "favorite-color" || caps[1].Name() != "web-search" {
		t.Errorf("capability order = [%s, %s], want [favorite-color, web-search]", caps[0].Name(), caps[1].Name())
	}
}

// ─── Favorite Color ──────────────────────────────────────────

func TestColorExtractAndStore(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantMatch bool
		wantColor string
		wantErr   bool
	}{
		{"favorite color is", "my favorite color is blue", true, "blue", false},
		{"colon form", "color: green", true, "green", false},
		{"set color to", "please set color to red", true, "red", false},
		{"i like valid color", "I like purple a lot", true, "purple", false},
		{"i like non-color", "I like pizza", false, "", false},
		{"no color talk", "what is the weather today", false, "", false},
		{"invalid color", "my favorite color is chartreuse", false, "", true},
		{"case insensitive", "My Favorite Color Is BLUE", true, "blue", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := credstore.NewMemory()
			cap := toolkit.NewFavoriteColor(creds)
			ctx := context.Background()

			stored, err := cap.ExtractAndStore(ctx, tt.message, "alice")

			if tt.wantErr {
				var ice *toolkit.InvalidCredentialError
				if !errors.As(err, &ice) {
					t.Fatalf("ExtractAndStore() error = %v, want InvalidCredentialError", err)
				}
				if stored {
					t.Error("ExtractAndStore() stored a malformed credential")
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractAndStore() error = %v", err)
			}
			if stored != tt.wantMatch {
				t.Fatalf("ExtractAndStore() = %v, want %v", stored, tt.wantMatch)
			}
			if tt.wantMatch {
				color, err := cap.Color(ctx, "alice")
				if err != nil {
					t.Fatalf("Color() error = %v", err)
				}
				if color != tt.wantColor {
					t.Errorf("stored color = %q, want %q", color, tt.wantColor)
				}
			}
		})
	}
}

func TestColorConfiguredAfterExtraction(t *testing.T) {
	creds := credstore.NewMemory()
	cap := toolkit.NewFavoriteColor(creds)
	ctx := context.Background()

	ok, _ := cap.IsConfigured(ctx, "alice")
	if ok {
		t.Fatal("IsConfigured() = true before any extraction")
	}

	if _, err := cap.ExtractAndStore(ctx, "my favorite color is blue", "alice"); err != nil {
		t.Fatalf("ExtractAndStore() error = %v", err)
	}

	ok, err := cap.IsConfigured(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("IsConfigured() = %v, %v after successful extraction, want true, nil", ok, err)
	}
}

func TestColorExtractionIdempotent(t *testing.T) {
	creds := credstore.NewMemory()
	cap := toolkit.NewFavoriteColor(creds)
	ctx := context.Background()

	msg := "my favorite color is green"
	if _, err := cap.ExtractAndStore(ctx, msg, "alice"); err != nil {
		t.Fatalf("first ExtractAndStore() error = %v", err)
	}
	if _, err := cap.ExtractAndStore(ctx, msg, "alice"); err != nil {
		t.Fatalf("second ExtractAndStore() error = %v", err)
	}

	color, _ := cap.Color(ctx, "alice")
	if color != "green" {
		t.Errorf("color after re-extraction = %q, want green", color)
	}
}

func TestColorUpdateReplacesValue(t *testing.T) {
	creds := credstore.NewMemory()
	cap := toolkit.NewFavoriteColor(creds)
	ctx := context.Background()

	cap.ExtractAndStore(ctx, "my favorite color is blue", "alice")
	cap.ExtractAndStore(ctx, "my favorite color is green", "alice")

	color, _ := cap.Color(ctx, "alice")
	if color != "green" {
		t.Errorf("color after update = %q, want green", color)
	}
}

func TestColorBuild(t *testing.T) {
	creds := credstore.NewMemory()
	cap := toolkit.NewFavoriteColor(creds)
	ctx := context.Background()

	if _, err := cap.Build(ctx, "alice"); !toolkit.IsBuildFailure(err) {
		t.Errorf("Build() without credentials error = %v, want build failure", err)
	}

	cap.ExtractAndStore(ctx, "my favorite color is blue", "alice")
	tool, err := cap.Build(ctx, "alice")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ct, ok := tool.(*toolkit.ColorTool)
	if !ok {
		t.Fatalf("Build() returned %T, want *ColorTool", tool)
	}
	if ct.Color != "blue" {
		t.Errorf("built tool color = %q, want blue", ct.Color)
	}
}

// ─── Issue Tracker ───────────────────────────────────────────

func TestTrackerExtraction(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantMatch  bool
		wantErr    bool
		wantServer string
	}{
		{"explicit token", "my tracker token is abcdef123456789", true, false, "https://issues.example.com"},
		{"token with server", "tracker token: abcdef123456789 server https://issues.corp.example", true, false, "https://issues.corp.example"},
		{"standalone token", "here you go QW5vcGFxdWV0b2tlbjEyMzQ1Njc4OTA1678", true, false, "https://issues.example.com"},
		{"standalone all letters", "Supercalifragilisticexpialidocious word", false, false, ""},
		{"too short", "my tracker token is abc", false, true, ""},
		{"nothing", "how are you", false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := credstore.NewMemory()
			cap := toolkit.NewIssueTracker(creds, "https://issues.example.com", true)
			ctx := context.Background()

			stored, err := cap.ExtractAndStore(ctx, tt.message, "alice")
			if tt.wantErr {
				var ice *toolkit.InvalidCredentialError
				if !errors.As(err, &ice) {
					t.Fatalf("ExtractAndStore() error = %v, want InvalidCredentialError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractAndStore() error = %v", err)
			}
			if stored != tt.wantMatch {
				t.Fatalf("ExtractAndStore() = %v, want %v", stored, tt.wantMatch)
			}
			if tt.wantMatch {
				rec, err := creds.Get(ctx, "issue-tracker", "alice")
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if rec["server_url"] != tt.wantServer {
					t.Errorf("server_url = %q, want %q", rec["server_url"], tt.wantServer)
				}
			}
		})
	}
}

func TestTrackerOptionalIntentDetection(t *testing.T) {
	creds := credstore.NewMemory()
	optional := toolkit.NewIssueTracker(creds, "https://issues.example.com", false)

	if !optional.CheckAuthorizationRequest("show me my open tickets") {
		t.Error("CheckAuthorizationRequest() = false for ticket talk, want true")
	}
	if optional.CheckAuthorizationRequest("what's for lunch") {
		t.Error("CheckAuthorizationRequest() = true for small talk, want false")
	}

	required := toolkit.NewIssueTracker(creds, "https://issues.example.com", true)
	if required.CheckAuthorizationRequest("show me my open tickets") {
		t.Error("required capability should not claim authorization requests")
	}
}

// ─── Doc Store ───────────────────────────────────────────────

func stubExchange(ctx context.Context, code, userID string) (credstore.Record, error) {
	return credstore.Record{"access_token": "tok-" + code}, nil
}

func TestDocstoreCodeExtraction(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantMatch bool
	}{
		{"redirect url", "http://localhost?code=4/0AeaYSHBxyz123", true},
		{"bare code param", "code=4/0AeaYSHBxyz123", true},
		{"spoken form", "my docstore code is 4/0AeaYSHBxyz123", true},
		{"standalone", "here: 4/0AeaYSHBxyz123", true},
		{"unrelated url", "see http://localhost?page=2", false},
		{"plain text", "no code here", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := credstore.NewMemory()
			cap := toolkit.NewDocStore(creds, stubExchange, nil)
			ctx := context.Background()

			stored, err := cap.ExtractAndStore(ctx, tt.message, "alice")
			if err != nil {
				t.Fatalf("ExtractAndStore() error = %v", err)
			}
			if stored != tt.wantMatch {
				t.Errorf("ExtractAndStore() = %v, want %v", stored, tt.wantMatch)
			}
		})
	}
}

func TestDocstoreRejectedExchangeIsInvalidCredential(t *testing.T) {
	creds := credstore.NewMemory()
	cap := toolkit.NewDocStore(creds, func(ctx context.Context, code, userID string) (credstore.Record, error) {
		return nil, errors.New("expired code")
	}, nil)

	_, err := cap.ExtractAndStore(context.Background(), "code=4/0AeaBadCode999", "alice")
	var ice *toolkit.InvalidCredentialError
	if !errors.As(err, &ice) {
		t.Fatalf("ExtractAndStore() error = %v, want InvalidCredentialError", err)
	}
	if ok, _ := cap.IsConfigured(context.Background(), "alice"); ok {
		t.Error("rejected exchange must not leave the capability configured")
	}
}

func TestDocstoreFetcher(t *testing.T) {
	creds := credstore.NewMemory()
	cap := toolkit.NewDocStore(creds, stubExchange,
		func(ctx context.Context, docRef string, rec credstore.Record) (string, error) {
			return "doc:" + docRef + " token:" + rec["access_token"], nil
		})
	ctx := context.Background()

	cap.ExtractAndStore(ctx, "code=4/0AeaYSHBxyz123", "alice")

	f, err := cap.Fetcher(ctx, "alice")
	if err != nil {
		t.Fatalf("Fetcher() error = %v", err)
	}
	text, err := f.FetchDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FetchDocument() error = %v", err)
	}
	if text != "doc:doc-1 token:tok-4/0AeaYSHBxyz123" {
		t.Errorf("FetchDocument() = %q", text)
	}
}

// ─── Prompt Extension ────────────────────────────────────────

func TestPromptExtensionDisabledIsAlwaysConfigured(t *testing.T) {
	creds := credstore.NewMemory()
	ds := toolkit.NewDocStore(creds, stubExchange, nil)
	ext := toolkit.NewPromptExtension("", ds)
	ctx := context.Background()

	ok, err := ext.IsConfigured(ctx, "alice")
	if err != nil || !ok {
		t.Errorf("disabled extension IsConfigured() = %v, %v, want true, nil", ok, err)
	}
	tool, err := ext.Build(ctx, "alice")
	if tool != nil || err != nil {
		t.Errorf("disabled extension Build() = %v, %v, want nil, nil", tool, err)
	}
}

func TestPromptExtensionFollowsDocstore(t *testing.T) {
	creds := credstore.NewMemory()
	ds := toolkit.NewDocStore(creds, stubExchange, nil)
	ext := toolkit.NewPromptExtension("doc-1", ds)
	ctx := context.Background()

	if ok, _ := ext.IsConfigured(ctx, "alice"); ok {
		t.Error("enabled extension configured before docstore, want false")
	}
	if _, err := ext.Build(ctx, "alice"); err == nil {
		t.Error("Build() with unconfigured prerequisite: want DependencyError, got nil")
	} else {
		var de *toolkit.DependencyError
		if !errors.As(err, &de) {
			t.Errorf("Build() error = %v, want DependencyError", err)
		}
	}

	ds.ExtractAndStore(ctx, "code=4/0AeaYSHBxyz123", "alice")
	if ok, _ := ext.IsConfigured(ctx, "alice"); !ok {
		t.Error("extension unconfigured after docstore configured, want true")
	}
}

// ─── Web Search ──────────────────────────────────────────────

func TestWebSearchOptInFlow(t *testing.T) {
	creds := credstore.NewMemory()
	ws := toolkit.NewWebSearch(creds, []string{"*.example.com"})
	ctx := context.Background()

	if !ws.CheckAuthorizationRequest("can you search the web for this?") {
		t.Error("CheckAuthorizationRequest() missed a web search request")
	}
	if ws.CheckAuthorizationRequest("tell me a joke") {
		t.Error("CheckAuthorizationRequest() matched small talk")
	}

	stored, err := ws.ExtractAndStore(ctx, "enable web search", "alice")
	if err != nil || !stored {
		t.Fatalf("ExtractAndStore(opt-in) = %v, %v, want true, nil", stored, err)
	}
	if ok, _ := ws.IsConfigured(ctx, "alice"); !ok {
		t.Error("web search not configured after opt-in")
	}
}
