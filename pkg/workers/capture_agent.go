package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fradelfo/distill/pkg/api/response"
	"github.com/fradelfo/distill/pkg/browser"
	"github.com/fradelfo/distill/pkg/capture"
	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/logger"
	"github.com/fradelfo/distill/pkg/spool"
	"github.com/fradelfo/distill/pkg/transport"
)

type Browser interface {
	FindChatPage() (*browser.Page, error)
}

type Orchestrator interface {
	Capture(ctx context.Context, page capture.PageSource) (*domain.Conversation, error)
	State() capture.State
}

type Spool interface {
	Put(rec spool.Record) error
	Delete(captureID string) error
	List() ([]spool.Record, error)
}

type Sender interface {
	SendCapture(ctx context.Context, capture transport.CaptureRequest) (*transport.CaptureResponse, error)
}

// captureAgent is the local capture daemon. Its trigger endpoint stands
// in for the extension's icon click / keyboard shortcut: one POST runs
// one capture end to end. Transport failures leave the capture in the
// spool and surface to the user; /retry re-ships, nothing retries by
// itself.
type captureAgent struct {
	browser      Browser
	orchestrator Orchestrator
	spool        Spool
	sender       Sender
	srv          *http.Server
	writer       response.JSONResponseWriter
}

func NewCaptureAgent(addr string, b Browser, o Orchestrator, s Spool, sender Sender) (*captureAgent, error) {
	a := &captureAgent{
		browser:      b,
		orchestrator: o,
		spool:        s,
		sender:       sender,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/trigger", a.handleTrigger)
	mux.HandleFunc("/retry", a.handleRetry)
	mux.HandleFunc("/status", a.handleStatus)

	a.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

func (a *captureAgent) Name() string { return "capture_agent" }

func (a *captureAgent) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", a.Name(), "addr", a.srv.Addr)
	defer slog.Info("Worker stopped", "name", a.Name())

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	}
}

type triggerRequest struct {
	PrivacyMode string `json:"privacy_mode"`
}

type triggerResponse struct {
	Status   string                     `json:"status"`
	Prompt   *transport.CaptureResponse `json:"prompt,omitempty"`
	Messages int                        `json:"messages,omitempty"`
}

func (a *captureAgent) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writer.WriteErrorResponse(w, http.StatusMethodNotAllowed, "Only POST is supported.")
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PrivacyMode == "" {
		req.PrivacyMode = string(domain.ModePromptOnly)
	}
	mode, err := domain.ParseMode(req.PrivacyMode)
	if err != nil {
		a.writer.WriteErrorResponse(w, http.StatusBadRequest, "Privacy mode must be prompt-only or full-chat.")
		return
	}

	page, err := a.browser.FindChatPage()
	if err != nil {
		if errors.Is(err, domain.ErrNoConversation) {
			a.writer.WriteSuccessResponse(w, triggerResponse{Status: "nothing_to_capture"})
			return
		}
		slog.Error("finding chat page", logger.Err(err))
		a.writer.WriteErrorResponse(w, http.StatusBadGateway, "Could not reach the browser.")
		return
	}

	conv, err := a.orchestrator.Capture(r.Context(), page)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoConversation):
			a.writer.WriteSuccessResponse(w, triggerResponse{Status: "nothing_to_capture"})
		case errors.Is(err, domain.ErrCaptureInProgress):
			a.writer.WriteErrorResponse(w, http.StatusConflict, "A capture is already running.")
		default:
			slog.Error("capturing conversation", logger.Err(err))
			a.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Capture failed.")
		}
		return
	}

	if err := a.spool.Put(spool.Record{Conversation: *conv, PrivacyMode: mode}); err != nil {
		slog.Error("spooling capture", logger.Err(err))
		a.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Buffering the capture failed.")
		return
	}

	resp, err := a.ship(r.Context(), conv, mode)
	if err != nil {
		// The capture stays spooled; the user retries explicitly.
		slog.Error("sending capture", logger.Err(err))
		a.writer.WriteErrorResponse(w, http.StatusBadGateway,
			"Sending the capture failed. It is kept locally; use retry to send it again.")
		return
	}

	a.writer.WriteSuccessResponse(w, triggerResponse{
		Status:   "captured",
		Prompt:   resp,
		Messages: conv.Metadata.MessageCount,
	})
}

// ship sends one capture and clears the local buffer only on confirmed
// success, so a failed send can be retried without duplicating state.
func (a *captureAgent) ship(ctx context.Context, conv *domain.Conversation, mode domain.Mode) (*transport.CaptureResponse, error) {
	resp, err := a.sender.SendCapture(ctx, transport.NewCaptureRequest(conv, mode))
	if err != nil {
		return nil, err
	}
	if err := a.spool.Delete(conv.CaptureID); err != nil {
		slog.Warn("clearing spooled capture", "capture_id", conv.CaptureID, logger.Err(err))
	}
	return resp, nil
}

type retryResponse struct {
	Sent    int `json:"sent"`
	Pending int `json:"pending"`
}

func (a *captureAgent) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writer.WriteErrorResponse(w, http.StatusMethodNotAllowed, "Only POST is supported.")
		return
	}

	records, err := a.spool.List()
	if err != nil {
		slog.Error("listing spooled captures", logger.Err(err))
		a.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Reading pending captures failed.")
		return
	}

	sent := 0
	for i := range records {
		rec := records[i]
		if _, err := a.ship(r.Context(), &rec.Conversation, rec.PrivacyMode); err != nil {
			slog.Error("retrying capture", "capture_id", rec.Conversation.CaptureID, logger.Err(err))
			break
		}
		sent++
	}

	a.writer.WriteSuccessResponse(w, retryResponse{Sent: sent, Pending: len(records) - sent})
}

func (a *captureAgent) handleStatus(w http.ResponseWriter, r *http.Request) {
	records, err := a.spool.List()
	if err != nil {
		a.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Reading pending captures failed.")
		return
	}
	a.writer.WriteSuccessResponse(w, map[string]any{
		"state":   a.orchestrator.State(),
		"pending": len(records),
	})
}
