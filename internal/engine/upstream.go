package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentllm/agentllm/internal/sessions"
	"github.com/agentllm/agentllm/pkg/models"
)

// Upstream runs agents against an OpenAI-compatible chat-completions
// endpoint. The composed instruction list becomes the system message; the
// session store supplies prior turns.
type Upstream struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	sessions *sessions.MemorySessionStore

	// Rolling average request latency per agent type, ms.
	latencyMu sync.RWMutex
	latencies map[string]int64
}

func NewUpstream(endpoint, apiKey, model string, store *sessions.MemorySessionStore) *Upstream {
	return &Upstream{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		sessions:  store,
		latencies: make(map[string]int64),
	}
}

// Build assembles an agent bound to the build spec. No network call happens
// here; the cost of a build is dominated by the callers' toolkit work.
func (u *Upstream) Build(_ context.Context, spec BuildSpec) (Agent, error) {
	return &upstreamAgent{u: u, spec: spec}, nil
}

// Latency returns the rolling average request latency for an agent type.
func (u *Upstream) Latency(agentType string) int64 {
	u.latencyMu.RLock()
	defer u.latencyMu.RUnlock()
	return u.latencies[agentType]
}

func (u *Upstream) trackLatency(agentType string, ms int64) {
	u.latencyMu.Lock()
	prev := u.latencies[agentType]
	if prev == 0 {
		u.latencies[agentType] = ms
	} else {
		// Exponential moving average
		u.latencies[agentType] = (prev*7 + ms*3) / 10
	}
	u.latencyMu.Unlock()
}

type upstreamAgent struct {
	u    *Upstream
	spec BuildSpec
}

// payload builds the upstream message list: system instructions, stored
// history, then the latest user message. Clients resend the whole
// conversation each turn; the session store is authoritative for history,
// so only the newest user message is taken from the request.
func (a *upstreamAgent) payload(ctx context.Context, msgs []models.ChatMessage) ([]models.ChatMessage, string) {
	latest := models.LastUserMessage(msgs)

	out := make([]models.ChatMessage, 0, 16)
	if len(a.spec.Instructions) > 0 {
		out = append(out, models.ChatMessage{
			Role:    "system",
			Content: strings.Join(a.spec.Instructions, "\n\n"),
		})
	}
	if a.spec.SessionID != "" {
		out = append(out, a.u.sessions.History(ctx, a.spec.SessionID)...)
	}
	out = append(out, models.ChatMessage{Role: "user", Content: latest})
	return out, latest
}

func (a *upstreamAgent) record(ctx context.Context, userText, reply string) {
	if a.spec.SessionID == "" {
		return
	}
	a.u.sessions.Append(ctx, a.spec.SessionID, a.spec.UserID, a.spec.AgentType,
		models.ChatMessage{Role: "user", Content: userText},
		models.ChatMessage{Role: "assistant", Content: reply},
	)
}

type upstreamRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   *int                 `json:"max_tokens,omitempty"`
	Stream      bool                 `json:"stream,omitempty"`
}

type upstreamResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (a *upstreamAgent) Run(ctx context.Context, msgs []models.ChatMessage) (string, error) {
	payload, latest := a.payload(ctx, msgs)
	start := time.Now()

	httpResp, err := a.u.post(ctx, upstreamRequest{
		Model:       a.u.model,
		Messages:    payload,
		Temperature: a.spec.Temperature,
		MaxTokens:   a.spec.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	var resp upstreamResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("upstream: decode response: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	latencyMs := time.Since(start).Milliseconds()
	a.u.trackLatency(a.spec.AgentType, latencyMs)
	log.Info().
		Str("agent_type", a.spec.AgentType).
		Str("user_id", a.spec.UserID).
		Int64("latency_ms", latencyMs).
		Int64("total_tokens", resp.Usage.TotalTokens).
		Msg("upstream run complete")

	a.record(ctx, latest, content)
	return content, nil
}

type upstreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (a *upstreamAgent) RunStream(ctx context.Context, msgs []models.ChatMessage) (<-chan StreamChunk, error) {
	payload, latest := a.payload(ctx, msgs)
	start := time.Now()

	httpResp, err := a.u.post(ctx, upstreamRequest{
		Model:       a.u.model,
		Messages:    payload,
		Temperature: a.spec.Temperature,
		MaxTokens:   a.spec.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer httpResp.Body.Close()

		var full strings.Builder
		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}
			var chunk upstreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			full.WriteString(text)
			select {
			case out <- StreamChunk{Content: text}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- StreamChunk{Err: fmt.Errorf("upstream: read stream: %w", err)}
			return
		}

		a.u.trackLatency(a.spec.AgentType, time.Since(start).Milliseconds())
		a.record(ctx, latest, full.String())
	}()
	return out, nil
}

func (u *Upstream) post(ctx context.Context, req upstreamRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if u.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	httpResp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, fmt.Errorf("upstream: status %d: %s", httpResp.StatusCode, string(respBody))
	}
	return httpResp, nil
}
