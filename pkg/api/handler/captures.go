package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fradelfo/distill/pkg/api/middleware"
	"github.com/fradelfo/distill/pkg/api/response"
	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/logger"
	"github.com/fradelfo/distill/pkg/transport"
)

type Distiller interface {
	Distill(ctx context.Context, conv *domain.Conversation) (domain.Prompt, error)
}

type PromptSaver interface {
	Save(ctx context.Context, prompt domain.Prompt) (int64, error)
}

type PrivacyGate interface {
	Finalize(ctx context.Context, mode domain.Mode, conv *domain.Conversation, promptID int64, workspaceID string) error
}

type captures struct {
	distiller Distiller
	prompts   PromptSaver
	gate      PrivacyGate
	writer    response.JSONResponseWriter
}

func NewCaptures(distiller Distiller, prompts PromptSaver, gate PrivacyGate) *captures {
	return &captures{
		distiller: distiller,
		prompts:   prompts,
		gate:      gate,
	}
}

// Create accepts one capture payload, distills it, applies the privacy
// gate and returns the stored prompt. All failure modes map to
// human-readable messages; nothing propagates as a crash.
func (h *captures) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		h.writer.WriteErrorResponse(w, http.StatusUnauthorized, "Missing workspace.")
		return
	}

	var req transport.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writer.WriteErrorResponse(w, http.StatusBadRequest, "Malformed capture payload.")
		return
	}

	mode, err := domain.ParseMode(string(req.PrivacyMode))
	if err != nil {
		h.writer.WriteErrorResponse(w, http.StatusBadRequest, "Privacy mode must be prompt-only or full-chat.")
		return
	}
	if req.CaptureID == "" {
		req.CaptureID = uuid.NewString()
	}

	ctx := logger.ContextWithCaptureID(r.Context(), req.CaptureID)

	conv := &domain.Conversation{
		CaptureID:     req.CaptureID,
		Site:          req.Site,
		CapturedAt:    req.CapturedAt,
		Messages:      req.Messages,
		LowConfidence: req.LowConfidence,
		Metadata:      req.Metadata,
	}
	if conv.Metadata.MessageCount == 0 {
		conv.EnrichMetadata()
	}

	slog.InfoContext(ctx, "capture received",
		"workspace", workspaceID, "site", conv.Site, "mode", mode,
		"messages", conv.Metadata.MessageCount)

	prompt, err := h.distiller.Distill(ctx, conv)
	if err != nil {
		conv.Scrub()
		switch {
		case errors.Is(err, domain.ErrNoConversation):
			h.writer.WriteErrorResponse(w, http.StatusUnprocessableEntity, "Nothing to capture: the conversation is empty.")
		case errors.Is(err, domain.ErrConversationTooLong):
			h.writer.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "This conversation is too long to distill.")
		default:
			slog.ErrorContext(ctx, "distilling capture", logger.Err(err))
			h.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Distillation failed. Please try again.")
		}
		return
	}

	prompt.CaptureID = req.CaptureID
	prompt.WorkspaceID = workspaceID
	prompt.PrivacyMode = mode

	promptID, err := h.prompts.Save(ctx, prompt)
	if err != nil {
		conv.Scrub()
		slog.ErrorContext(ctx, "saving prompt", logger.Err(err))
		h.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Saving the prompt failed. Please try again.")
		return
	}

	if err := h.gate.Finalize(ctx, mode, conv, promptID, workspaceID); err != nil {
		slog.ErrorContext(ctx, "finalizing privacy gate", logger.Err(err))
		h.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Storing the conversation failed. Please try again.")
		return
	}

	h.writer.WriteSuccessResponse(w, transport.CaptureResponse{
		PromptID:  promptID,
		Title:     prompt.Title,
		Body:      prompt.Body,
		Variables: prompt.Variables,
		Tags:      prompt.Tags,
	})
}
