package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentllm/agentllm/internal/agents"
	"github.com/agentllm/agentllm/internal/api"
	"github.com/agentllm/agentllm/internal/config"
	"github.com/agentllm/agentllm/internal/credstore"
	"github.com/agentllm/agentllm/internal/engine"
	"github.com/agentllm/agentllm/pkg/models"
)

type fixedEngine struct{ reply string }

func (e fixedEngine) Build(context.Context, engine.BuildSpec) (engine.Agent, error) {
	return fixedAgent{reply: e.reply}, nil
}

type fixedAgent struct{ reply string }

func (a fixedAgent) Run(context.Context, []models.ChatMessage) (string, error) {
	return a.reply, nil
}

func (a fixedAgent) RunStream(context.Context, []models.ChatMessage) (<-chan engine.StreamChunk, error) {
	ch := make(chan engine.StreamChunk, 2)
	ch <- engine.StreamChunk{Content: a.reply[:len(a.reply)/2]}
	ch <- engine.StreamChunk{Content: a.reply[len(a.reply)/2:]}
	close(ch)
	return ch, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Version: "test",
		Toolkits: config.ToolkitConfig{
			TrackerServerURL: "https://issues.example.com",
			WebSearchEnabled: true,
		},
	}
	creds := credstore.NewMemory()
	catalog := agents.NewCatalog(
		agents.NewDemo(cfg, creds, fixedEngine{reply: "agent says hi"}),
		agents.NewReleaseManager(cfg, creds, fixedEngine{reply: "release status"}),
	)
	return api.NewRouter(cfg, catalog)
}

func postChat(t *testing.T, router http.Handler, body map[string]any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func responseContent(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ChatCompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(resp.Choices))
	}
	return resp.Choices[0].Message.Content
}

func TestListModels(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var list models.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 2 {
		t.Fatalf("models = %d, want 2", len(list.Data))
	}
}

func TestUnknownModelReturnsOpenAIError(t *testing.T) {
	router := testRouter(t)
	w := postChat(t, router, map[string]any{
		"model":    "gpt-4o",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}, nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var errResp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error.Type != "invalid_request_error" {
		t.Errorf("error type = %q, want invalid_request_error", errResp.Error.Type)
	}
}

func TestMalformedBodyReturns400(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConfigPromptFlow(t *testing.T) {
	router := testRouter(t)

	w := postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
		"metadata": map[string]string{"user_id": "alice"},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := responseContent(t, w); !strings.Contains(got, "favorite color") {
		t.Fatalf("content = %q, want the color prompt", got)
	}

	w = postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "my favorite color is blue"}},
		"metadata": map[string]string{"user_id": "alice"},
	}, nil)
	if got := responseContent(t, w); got != "agent says hi" {
		t.Fatalf("content = %q, want the engine reply", got)
	}
}

func TestIdentityFallsBackToHeaders(t *testing.T) {
	router := testRouter(t)
	headers := map[string]string{"X-OpenWebUI-User-Id": "carol"}

	postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "my favorite color is red"}},
	}, headers)

	// Same header identity: already configured.
	w := postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "hi again"}},
	}, headers)
	if got := responseContent(t, w); got != "agent says hi" {
		t.Fatalf("content = %q, want the engine reply for a configured user", got)
	}

	// Different user: still unconfigured.
	w = postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}, map[string]string{"X-OpenWebUI-User-Id": "dave"})
	if got := responseContent(t, w); !strings.Contains(got, "favorite color") {
		t.Fatalf("content = %q, want the color prompt for a new user", got)
	}
}

func TestBodyMetadataBeatsHeaders(t *testing.T) {
	router := testRouter(t)

	postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "my favorite color is green"}},
		"metadata": map[string]string{"user_id": "meta-user"},
	}, map[string]string{"X-OpenWebUI-User-Id": "header-user"})

	// The credential went to the metadata identity, not the header one.
	w := postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"metadata": map[string]string{"user_id": "meta-user"},
	}, nil)
	if got := responseContent(t, w); got != "agent says hi" {
		t.Fatalf("metadata identity unconfigured: %q", got)
	}

	w = postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}, map[string]string{"X-OpenWebUI-User-Id": "header-user"})
	if got := responseContent(t, w); !strings.Contains(got, "favorite color") {
		t.Fatalf("header identity unexpectedly configured: %q", got)
	}
}

func TestBuildFailureSurfacesAs502(t *testing.T) {
	cfg := &config.Config{
		Version: "test",
		Toolkits: config.ToolkitConfig{
			TrackerServerURL: "https://issues.example.com",
		},
	}
	creds := credstore.NewMemory()
	ctx := context.Background()

	// Stored records pass the configured check; the tracker record is
	// missing its server URL, so it is rejected at build time.
	if err := creds.Put(ctx, "issue-tracker", "hank", credstore.Record{"token": "tok-abcdef123456"}); err != nil {
		t.Fatalf("seed tracker record: %v", err)
	}
	if err := creds.Put(ctx, "docstore", "hank", credstore.Record{"access_token": "at-123"}); err != nil {
		t.Fatalf("seed docstore record: %v", err)
	}

	catalog := agents.NewCatalog(
		agents.NewReleaseManager(cfg, creds, fixedEngine{reply: "release status"}),
	)
	router := api.NewRouter(cfg, catalog)

	w := postChat(t, router, map[string]any{
		"model":    "release-manager",
		"messages": []map[string]string{{"role": "user", "content": "how is the release going?"}},
		"metadata": map[string]string{"user_id": "hank"},
	}, nil)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (%s)", w.Code, w.Body.String())
	}
	var errResp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error.Type != "agent_build_error" {
		t.Errorf("error type = %q, want agent_build_error", errResp.Error.Type)
	}

	// The rejected credential was discarded, so the next turn re-prompts
	// instead of failing the same way.
	w = postChat(t, router, map[string]any{
		"model":    "release-manager",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"metadata": map[string]string{"user_id": "hank"},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("follow-up status = %d, want 200", w.Code)
	}
	if got := responseContent(t, w); !strings.Contains(got, "personal access token") {
		t.Fatalf("follow-up content = %q, want the tracker prompt", got)
	}
}

func TestStreamingResponse(t *testing.T) {
	router := testRouter(t)

	postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "my favorite color is blue"}},
		"metadata": map[string]string{"user_id": "erin"},
	}, nil)

	w := postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"metadata": map[string]string{"user_id": "erin"},
		"stream":   true,
	}, nil)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "chat.completion.chunk") {
		t.Error("stream body carries no chunks")
	}
	if !strings.Contains(body, "data: [DONE]") {
		t.Error("stream body missing [DONE] terminator")
	}
	if !strings.Contains(body, "agent") {
		t.Errorf("stream body missing content fragments: %s", body)
	}
}

func TestStreamedConfigPrompt(t *testing.T) {
	router := testRouter(t)

	w := postChat(t, router, map[string]any{
		"model":    "demo",
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
		"metadata": map[string]string{"user_id": "frank"},
		"stream":   true,
	}, nil)

	body := w.Body.String()
	if !strings.Contains(body, "favorite color") {
		t.Errorf("streamed config prompt missing prompt text: %s", body)
	}
	if !strings.Contains(body, "data: [DONE]") {
		t.Error("streamed config prompt missing [DONE] terminator")
	}
}

func TestHealthAndVersion(t *testing.T) {
	router := testRouter(t)
	for _, path := range []string{"/health", "/version"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
	}
}
