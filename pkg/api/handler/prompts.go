package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fradelfo/distill/pkg/api/middleware"
	"github.com/fradelfo/distill/pkg/api/response"
	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/render"
)

type PromptReader interface {
	GetByID(ctx context.Context, workspaceID string, id int64) (*domain.Prompt, error)
	List(ctx context.Context, workspaceID string) ([]domain.Prompt, error)
}

type prompts struct {
	reader PromptReader
	writer response.JSONResponseWriter
}

func NewPrompts(reader PromptReader) *prompts {
	return &prompts{reader: reader}
}

// ServeHTTP routes /v1/prompts, /v1/prompts/{id} and
// /v1/prompts/{id}/preview.
func (h *prompts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writer.WriteErrorResponse(w, http.StatusMethodNotAllowed, "Only GET is supported.")
		return
	}

	workspaceID, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		h.writer.WriteErrorResponse(w, http.StatusUnauthorized, "Missing workspace.")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/prompts"), "/")
	if rest == "" {
		h.list(w, r, workspaceID)
		return
	}

	idRaw, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil {
		h.writer.WriteErrorResponse(w, http.StatusBadRequest, "Invalid prompt id.")
		return
	}

	switch sub {
	case "":
		h.get(w, r, workspaceID, id)
	case "preview":
		h.preview(w, r, workspaceID, id)
	default:
		h.writer.WriteErrorResponse(w, http.StatusNotFound, "Unknown prompt resource.")
	}
}

func (h *prompts) list(w http.ResponseWriter, r *http.Request, workspaceID string) {
	list, err := h.reader.List(r.Context(), workspaceID)
	if err != nil {
		h.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Listing prompts failed.")
		return
	}
	h.writer.WriteSuccessResponse(w, map[string]any{"prompts": list})
}

func (h *prompts) get(w http.ResponseWriter, r *http.Request, workspaceID string, id int64) {
	prompt, err := h.lookup(w, r, workspaceID, id)
	if prompt == nil || err != nil {
		return
	}
	h.writer.WriteSuccessResponse(w, prompt)
}

func (h *prompts) preview(w http.ResponseWriter, r *http.Request, workspaceID string, id int64) {
	prompt, err := h.lookup(w, r, workspaceID, id)
	if prompt == nil || err != nil {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(render.PromptHTML(prompt))
}

func (h *prompts) lookup(w http.ResponseWriter, r *http.Request, workspaceID string, id int64) (*domain.Prompt, error) {
	prompt, err := h.reader.GetByID(r.Context(), workspaceID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writer.WriteErrorResponse(w, http.StatusNotFound, "Prompt not found.")
		} else {
			h.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Fetching the prompt failed.")
		}
		return nil, err
	}
	return prompt, nil
}
