package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fradelfo/distill/pkg/api/response"
)

type contextKey string

const workspaceKey contextKey = "workspace_id"

type Authenticator interface {
	WorkspaceFor(token string) (string, bool)
}

// Auth resolves the bearer token to a workspace and stores it in the
// request context. Unauthenticated requests never reach the handlers.
func Auth(authenticator Authenticator, next http.Handler) http.Handler {
	writer := response.JSONResponseWriter{}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writer.WriteErrorResponse(w, http.StatusUnauthorized, "Missing API key.")
			return
		}
		workspace, ok := authenticator.WorkspaceFor(token)
		if !ok {
			writer.WriteErrorResponse(w, http.StatusUnauthorized, "Unknown API key.")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithWorkspace(r.Context(), workspace)))
	})
}

func ContextWithWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceKey, workspaceID)
}

func WorkspaceFromContext(ctx context.Context) (string, bool) {
	workspaceID, ok := ctx.Value(workspaceKey).(string)
	return workspaceID, ok
}
