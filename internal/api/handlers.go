package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentllm/agentllm/internal/agents"
	"github.com/agentllm/agentllm/internal/api/middleware"
	"github.com/agentllm/agentllm/internal/engine"
	"github.com/agentllm/agentllm/internal/prompt"
	"github.com/agentllm/agentllm/internal/toolkit"
	"github.com/agentllm/agentllm/internal/wrapper"
	"github.com/agentllm/agentllm/pkg/models"
)

// Handlers serves the OpenAI-compatible endpoints.
type Handlers struct {
	catalog *agents.Catalog
}

func NewHandlers(catalog *agents.Catalog) *Handlers {
	return &Handlers{catalog: catalog}
}

// ListModels serves GET /v1/models: each agent type appears as a model.
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Models())
}

// ChatCompletions serves POST /v1/chat/completions. The model name selects
// the agent type; the wrapper decides whether this turn is a configuration
// prompt or a real run.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req models.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "could not parse request body: %v", err)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	agentWrapper, ok := h.catalog.Get(req.Model)
	if !ok {
		writeError(w, http.StatusNotFound, "invalid_request_error", "model %q does not exist", req.Model)
		return
	}

	userID, sessionID := resolveIdentity(r, &req)

	res, err := agentWrapper.Handle(r.Context(), wrapper.Request{
		Messages:    req.Messages,
		UserID:      userID,
		SessionID:   sessionID,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	})
	if err != nil {
		status, errType := classifyError(err)
		log.Error().
			Str("model", req.Model).
			Str("user_id", userID).
			Err(err).
			Msg("chat completion failed")
		writeError(w, status, errType, "%v", err)
		return
	}

	switch {
	case res.Stream != nil:
		streamResponse(w, req.Model, res.Stream)
	case req.Stream:
		// Configuration prompts answer streaming requests as a short
		// two-chunk stream so clients need no special casing.
		streamText(w, req.Model, res.Content)
	default:
		writeJSON(w, http.StatusOK, models.NewChatCompletionResponse(req.Model, res.Content, "stop"))
	}
}

// resolveIdentity picks the user and session IDs for a request. Body
// metadata wins, then the frontend identity headers, then the OpenAI user
// field. An anonymous fallback keeps single-user setups working without
// any identity plumbing.
func resolveIdentity(r *http.Request, req *models.ChatCompletionRequest) (userID, sessionID string) {
	if req.Metadata != nil {
		userID = req.Metadata.UserID
		sessionID = req.Metadata.SessionID
		if sessionID == "" {
			sessionID = req.Metadata.ChatID
		}
	}
	if userID == "" {
		userID = middleware.HeaderUserID(r.Context())
	}
	if userID == "" {
		userID = req.User
	}
	if userID == "" {
		userID = "anonymous"
	}
	if sessionID == "" {
		sessionID = middleware.HeaderChatID(r.Context())
	}
	return userID, sessionID
}

func classifyError(err error) (int, string) {
	var fe *prompt.FetchError
	if toolkit.IsBuildFailure(err) || errors.As(err, &fe) {
		return http.StatusBadGateway, "agent_build_error"
	}
	return http.StatusInternalServerError, "server_error"
}

// ── SSE streaming ────────────────────────────────────────────

func streamResponse(w http.ResponseWriter, model string, chunks <-chan engine.StreamChunk) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", "streaming unsupported by connection")
		return
	}
	setSSEHeaders(w)

	id := "chatcmpl-" + uuid.New().String()
	for chunk := range chunks {
		if chunk.Err != nil {
			log.Error().Err(chunk.Err).Str("model", model).Msg("stream aborted")
			break
		}
		writeSSE(w, models.NewContentChunk(id, model, chunk.Content))
		flusher.Flush()
	}

	writeSSE(w, models.NewFinalChunk(id, model, "stop"))
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// streamText emits a fixed text as a minimal two-event stream.
func streamText(w http.ResponseWriter, model, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", "streaming unsupported by connection")
		return
	}
	setSSEHeaders(w)

	id := "chatcmpl-" + uuid.New().String()
	writeSSE(w, models.NewContentChunk(id, model, text))
	writeSSE(w, models.NewFinalChunk(id, model, "stop"))
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSE(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, format string, args ...any) {
	writeJSON(w, status, models.NewErrorResponse(errType, format, args...))
}
