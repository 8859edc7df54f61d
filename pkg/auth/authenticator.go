package auth

import (
	"log/slog"
	"strings"
)

// Authenticator maps API keys to workspace IDs. Keys are configured as
// "key:workspace" pairs; every capture is attributed to a workspace.
type authenticator struct {
	workspacesByKey map[string]string
}

func NewAuthenticator(keyPairs []string) *authenticator {
	byKey := make(map[string]string, len(keyPairs))
	var workspaces []string
	for _, pair := range keyPairs {
		key, workspace, ok := strings.Cut(pair, ":")
		if !ok || key == "" || workspace == "" {
			continue
		}
		byKey[key] = workspace
		workspaces = append(workspaces, workspace)
	}
	slog.Info("configured workspaces", "workspaces", workspaces)

	return &authenticator{workspacesByKey: byKey}
}

// WorkspaceFor resolves a bearer token to its workspace.
func (a *authenticator) WorkspaceFor(token string) (string, bool) {
	workspace, ok := a.workspacesByKey[token]
	return workspace, ok
}
