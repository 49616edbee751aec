package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	// HeaderUserIDKey is the context key for the user ID forwarded by the
	// frontend in headers.
	HeaderUserIDKey contextKey = "header_user_id"
	// HeaderChatIDKey is the context key for the chat/session ID forwarded
	// in headers.
	HeaderChatIDKey contextKey = "header_chat_id"
)

// IdentityExtractor lifts frontend identity headers into the request
// context. Open WebUI forwards X-OpenWebUI-User-Id and X-OpenWebUI-Chat-Id
// on every call; the chat handler prefers body metadata and falls back to
// these, then to the OpenAI `user` field.
func IdentityExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if v := strings.TrimSpace(r.Header.Get("X-OpenWebUI-User-Id")); v != "" {
			ctx = context.WithValue(ctx, HeaderUserIDKey, v)
		}
		if v := strings.TrimSpace(r.Header.Get("X-OpenWebUI-Chat-Id")); v != "" {
			ctx = context.WithValue(ctx, HeaderChatIDKey, v)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HeaderUserID retrieves the header-forwarded user ID, if any.
func HeaderUserID(ctx context.Context) string {
	if v, ok := ctx.Value(HeaderUserIDKey).(string); ok {
		return v
	}
	return ""
}

// HeaderChatID retrieves the header-forwarded chat ID, if any.
func HeaderChatID(ctx context.Context) string {
	if v, ok := ctx.Value(HeaderChatIDKey).(string); ok {
		return v
	}
	return ""
}
