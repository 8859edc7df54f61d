package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fradelfo/distill/pkg/api/middleware"
	"github.com/fradelfo/distill/pkg/domain"
)

type stubReader struct {
	prompts map[int64]domain.Prompt
}

func (s *stubReader) GetByID(_ context.Context, workspaceID string, id int64) (*domain.Prompt, error) {
	p, ok := s.prompts[id]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *stubReader) List(_ context.Context, workspaceID string) ([]domain.Prompt, error) {
	var out []domain.Prompt
	for _, p := range s.prompts {
		if p.WorkspaceID == workspaceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func promptsHandler() *prompts {
	return NewPrompts(&stubReader{prompts: map[int64]domain.Prompt{
		1: {
			ID:          1,
			WorkspaceID: "ws-1",
			Title:       "Tagline prompt",
			Body:        "Write a tagline for {{product_name}}.",
			Variables:   []domain.Variable{{Name: "product_name", Description: "what to promote", Required: true}},
			Tags:        []string{"marketing"},
		},
		2: {ID: 2, WorkspaceID: "ws-other", Title: "Not yours"},
	}})
}

func doGet(h *prompts, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.ContextWithWorkspace(req.Context(), "ws-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPromptsRouting(t *testing.T) {
	h := promptsHandler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"list", "/v1/prompts", http.StatusOK},
		{"get", "/v1/prompts/1", http.StatusOK},
		{"preview", "/v1/prompts/1/preview", http.StatusOK},
		{"unknown id", "/v1/prompts/99", http.StatusNotFound},
		{"other workspace", "/v1/prompts/2", http.StatusNotFound},
		{"bad id", "/v1/prompts/abc", http.StatusBadRequest},
		{"unknown subresource", "/v1/prompts/1/export", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(h, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestPromptsGet(t *testing.T) {
	rec := doGet(promptsHandler(), "/v1/prompts/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var p domain.Prompt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Tagline prompt", p.Title)
	assert.Equal(t, []string{"product_name"}, p.Placeholders())
}

func TestPromptsList(t *testing.T) {
	rec := doGet(promptsHandler(), "/v1/prompts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Prompts []domain.Prompt `json:"prompts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Prompts, 1, "listing is workspace-scoped")
	assert.Equal(t, "Tagline prompt", body.Prompts[0].Title)
}

func TestPromptsPreview(t *testing.T) {
	rec := doGet(promptsHandler(), "/v1/prompts/1/preview")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	html := rec.Body.String()
	assert.Contains(t, html, "Tagline prompt")
	assert.Contains(t, html, "product_name")
	assert.Contains(t, html, "what to promote")
}

func TestPromptsMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/v1/prompts/1", nil)
	req = req.WithContext(middleware.ContextWithWorkspace(req.Context(), "ws-1"))
	rec := httptest.NewRecorder()
	promptsHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
