package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/sashabaranov/go-openai"

	"github.com/fradelfo/distill/pkg/api/handler"
	"github.com/fradelfo/distill/pkg/api/middleware"
	"github.com/fradelfo/distill/pkg/api/response"
	"github.com/fradelfo/distill/pkg/auth"
	"github.com/fradelfo/distill/pkg/browser"
	"github.com/fradelfo/distill/pkg/capture"
	"github.com/fradelfo/distill/pkg/database"
	"github.com/fradelfo/distill/pkg/distiller"
	"github.com/fradelfo/distill/pkg/extractor"
	"github.com/fradelfo/distill/pkg/logger"
	"github.com/fradelfo/distill/pkg/privacy"
	"github.com/fradelfo/distill/pkg/repository"
	"github.com/fradelfo/distill/pkg/service"
	"github.com/fradelfo/distill/pkg/spool"
	"github.com/fradelfo/distill/pkg/transport"
	"github.com/fradelfo/distill/pkg/workers"
)

type Config struct {
	// Backend role, enabled when DATABASE_URL is set.
	ListenAddr          string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	OpenAIToken         string        `env:"OPEN_AI_TOKEN"`
	APIKeys             []string      `env:"API_KEYS" envSeparator:" "`
	ConversationKeyHex  string        `env:"CONVERSATION_KEY"`
	DistillModel        string        `env:"DISTILL_MODEL" envDefault:"gpt-4o-mini"`
	DistillTokenCeiling int           `env:"DISTILL_TOKEN_CEILING" envDefault:"24000"`
	DistillTimeout      time.Duration `env:"DISTILL_TIMEOUT" envDefault:"45s"`

	// Capture agent role, enabled when BROWSER_CONTROL_URL is set.
	BrowserControlURL     string        `env:"BROWSER_CONTROL_URL"`
	AgentListenAddr       string        `env:"AGENT_LISTEN_ADDR" envDefault:"127.0.0.1:8089"`
	SpoolPath             string        `env:"SPOOL_PATH" envDefault:".distill/spool.bolt"`
	BackendURL            string        `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	BackendAPIKey         string        `env:"BACKEND_API_KEY"`
	TransportTimeout      time.Duration `env:"TRANSPORT_TIMEOUT" envDefault:"60s"`
	StabilityPollInterval time.Duration `env:"STABILITY_POLL_INTERVAL" envDefault:"500ms"`
	StabilityThreshold    int           `env:"STABILITY_THRESHOLD" envDefault:"3"`
	StabilityMaxWait      time.Duration `env:"STABILITY_MAX_WAIT" envDefault:"15s"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	group, err := setupServices()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return group.Start(ctx)
}

func setupServices() (service.Group, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	var group service.Group

	if cfg.DatabaseURL != "" {
		worker, err := setupBackend(cfg)
		if err != nil {
			return nil, err
		}
		group = append(group, worker)
	}

	if cfg.BrowserControlURL != "" {
		worker, err := setupAgent(cfg)
		if err != nil {
			return nil, err
		}
		group = append(group, worker)
	}

	if len(group) == 0 {
		return nil, fmt.Errorf("nothing to run: set DATABASE_URL for the backend, BROWSER_CONTROL_URL for the capture agent, or both")
	}

	return group, nil
}

func setupBackend(cfg Config) (service.Service, error) {
	if cfg.OpenAIToken == "" {
		return nil, fmt.Errorf("OPEN_AI_TOKEN is required for the backend")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}

	conversationKey, err := hex.DecodeString(cfg.ConversationKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding conversation key: %w", err)
	}

	promptRepository := repository.NewPromptsRepository(db)
	conversationRepository := repository.NewConversationsRepository(db)

	gate, err := privacy.NewGate(conversationRepository, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("creating privacy gate: %w", err)
	}

	distillService := distiller.New(openai.NewClient(cfg.OpenAIToken), distiller.Config{
		Model:        cfg.DistillModel,
		TokenCeiling: cfg.DistillTokenCeiling,
		Timeout:      cfg.DistillTimeout,
	})

	authenticator := auth.NewAuthenticator(cfg.APIKeys)

	capturesHandler := handler.NewCaptures(distillService, promptRepository, gate)
	promptsHandler := handler.NewPrompts(promptRepository)
	writer := response.JSONResponseWriter{}

	v1 := http.NewServeMux()
	v1.HandleFunc("/v1/captures", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writer.WriteErrorResponse(w, http.StatusMethodNotAllowed, "Only POST is supported.")
			return
		}
		capturesHandler.Create(w, r)
	})
	v1.Handle("/v1/prompts", promptsHandler)
	v1.Handle("/v1/prompts/", promptsHandler)

	mux := http.NewServeMux()
	mux.Handle("/v1/", middleware.Auth(authenticator, v1))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writer.WriteSuccessResponse(w, map[string]string{"status": "ok"})
	})

	return workers.NewCaptureServer(cfg.ListenAddr, mux)
}

func setupAgent(cfg Config) (service.Service, error) {
	registry := extractor.NewRegistry()

	br, err := browser.Connect(cfg.BrowserControlURL, registry)
	if err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	orchestrator := capture.NewOrchestrator(registry, capture.Config{
		PollInterval:       cfg.StabilityPollInterval,
		StabilityThreshold: cfg.StabilityThreshold,
		MaxWait:            cfg.StabilityMaxWait,
	})

	captureSpool, err := spool.Open(cfg.SpoolPath)
	if err != nil {
		return nil, fmt.Errorf("opening spool: %w", err)
	}

	sender := transport.NewClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.TransportTimeout)

	return workers.NewCaptureAgent(cfg.AgentListenAddr, br, orchestrator, captureSpool, sender)
}
