package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fradelfo/distill/pkg/api/middleware"
	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/transport"
)

type stubDistiller struct {
	prompt domain.Prompt
	err    error
}

func (s *stubDistiller) Distill(context.Context, *domain.Conversation) (domain.Prompt, error) {
	return s.prompt, s.err
}

type stubSaver struct {
	saved []domain.Prompt
	id    int64
	err   error
}

func (s *stubSaver) Save(_ context.Context, prompt domain.Prompt) (int64, error) {
	s.saved = append(s.saved, prompt)
	return s.id, s.err
}

type stubGate struct {
	mode        domain.Mode
	promptID    int64
	workspaceID string
	calls       int
	err         error
}

func (s *stubGate) Finalize(_ context.Context, mode domain.Mode, conv *domain.Conversation, promptID int64, workspaceID string) error {
	s.calls++
	s.mode = mode
	s.promptID = promptID
	s.workspaceID = workspaceID
	conv.Scrub()
	return s.err
}

func capturePayload(mode string) []byte {
	body, _ := json.Marshal(map[string]any{
		"capture_id":   "cap-1",
		"site":         "chatgpt.com",
		"privacy_mode": mode,
		"messages": []map[string]string{
			{"role": "user", "content": "Write a tagline for X"},
			{"role": "assistant", "content": "X: where ideas brew."},
			{"role": "user", "content": "make it shorter"},
		},
	})
	return body
}

func doCreate(h *captures, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/captures", bytes.NewReader(body))
	req = req.WithContext(middleware.ContextWithWorkspace(req.Context(), "ws-1"))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCreateCapture(t *testing.T) {
	distilled := domain.Prompt{
		Title:     "Short product tagline",
		Body:      "Write a tagline for {{product_name}}.",
		Variables: []domain.Variable{{Name: "product_name", Required: true}},
		Tags:      []string{"marketing"},
	}
	saver := &stubSaver{id: 42}
	gate := &stubGate{}
	h := NewCaptures(&stubDistiller{prompt: distilled}, saver, gate)

	rec := doCreate(h, capturePayload("prompt-only"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transport.CaptureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.PromptID)
	assert.Equal(t, "Short product tagline", resp.Title)
	assert.Contains(t, resp.Body, "{{product_name}}")

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "cap-1", saver.saved[0].CaptureID)
	assert.Equal(t, "ws-1", saver.saved[0].WorkspaceID)
	assert.Equal(t, domain.ModePromptOnly, saver.saved[0].PrivacyMode)

	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, domain.ModePromptOnly, gate.mode)
	assert.Equal(t, int64(42), gate.promptID)
	assert.Equal(t, "ws-1", gate.workspaceID)
}

func TestCreateCaptureErrors(t *testing.T) {
	tests := []struct {
		name       string
		distillErr error
		body       []byte
		wantStatus int
	}{
		{
			name:       "empty conversation",
			distillErr: domain.ErrNoConversation,
			body:       capturePayload("prompt-only"),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "conversation too long",
			distillErr: domain.ErrConversationTooLong,
			body:       capturePayload("full-chat"),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "invalid privacy mode",
			body:       capturePayload("everything"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed payload",
			body:       []byte("{"),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &stubGate{}
			h := NewCaptures(&stubDistiller{err: tt.distillErr}, &stubSaver{}, gate)

			rec := doCreate(h, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, 0, gate.calls, "failed captures never reach the privacy gate")

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"], "errors are human-readable messages")
		})
	}
}

func TestCreateCaptureWithoutWorkspace(t *testing.T) {
	h := NewCaptures(&stubDistiller{}, &stubSaver{}, &stubGate{})

	req := httptest.NewRequest(http.MethodPost, "/v1/captures", bytes.NewReader(capturePayload("prompt-only")))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
