package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/extractor"
	"github.com/fradelfo/distill/pkg/logger"
)

// PageSource is one open chat page. Implementations must be read-only:
// a capture never mutates host page state.
type PageSource interface {
	Host() string
	HTML(ctx context.Context) (string, error)
}

type State string

const (
	StateIdle                State = "idle"
	StateWaitingForStability State = "waiting_for_stability"
	StateExtracting          State = "extracting"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

type Config struct {
	// PollInterval is how often the page is fingerprinted while waiting
	// for the streaming UI to settle.
	PollInterval time.Duration
	// StabilityThreshold is the number of consecutive identical
	// fingerprints required before extraction starts.
	StabilityThreshold int
	// MaxWait bounds the stability wait. On timeout extraction proceeds
	// anyway with the conversation flagged low confidence.
	MaxWait time.Duration
}

var DefaultConfig = Config{
	PollInterval:       500 * time.Millisecond,
	StabilityThreshold: 3,
	MaxWait:            15 * time.Second,
}

// Orchestrator decides when extraction is safe and which extractor runs.
// One capture at a time: the UI is driven by a single user per tab, so an
// in-progress flag is all the exclusion needed.
type Orchestrator struct {
	registry *extractor.Registry
	cfg      Config

	mu         sync.Mutex
	inProgress bool
	state      State
}

func NewOrchestrator(registry *extractor.Registry, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig.PollInterval
	}
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = DefaultConfig.StabilityThreshold
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultConfig.MaxWait
	}
	return &Orchestrator{registry: registry, cfg: cfg, state: StateIdle}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Capture runs one full extraction against page: wait for stability,
// extract, enrich. Cancelling ctx (tab closed, user cancel) stops the
// stability poll and returns ctx.Err().
func (o *Orchestrator) Capture(ctx context.Context, page PageSource) (*domain.Conversation, error) {
	o.mu.Lock()
	if o.inProgress {
		o.mu.Unlock()
		return nil, domain.ErrCaptureInProgress
	}
	o.inProgress = true
	o.state = StateWaitingForStability
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inProgress = false
		o.mu.Unlock()
	}()

	captureID := uuid.NewString()
	ctx = logger.ContextWithCaptureID(ctx, captureID)

	lowConfidence, err := o.waitForStability(ctx, page)
	if err != nil {
		o.setState(StateFailed)
		return nil, err
	}

	o.setState(StateExtracting)
	conv, err := o.extract(ctx, page, captureID, lowConfidence)
	if err != nil {
		o.setState(StateFailed)
		return nil, err
	}

	o.setState(StateDone)
	return conv, nil
}

// waitForStability polls the page fingerprint until it has seen
// StabilityThreshold consecutive identical values. The streaming/typing
// UI mutates the DOM incrementally; a settled fingerprint means the
// response finished rendering. Returns lowConfidence=true when MaxWait
// expired before the page settled.
func (o *Orchestrator) waitForStability(ctx context.Context, page PageSource) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxWait)
	defer cancel()

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	var last string
	identical := 0
	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				slog.InfoContext(ctx, "page did not settle in time, extracting anyway", "max_wait", o.cfg.MaxWait)
				return true, nil
			}
			return false, ctx.Err()
		case <-ticker.C:
			fp, err := o.fingerprint(ctx, page)
			if err != nil {
				// Transient DOM access failures reset the streak
				// instead of aborting the capture.
				slog.WarnContext(ctx, "fingerprinting page", logger.Err(err))
				identical = 0
				last = ""
				continue
			}
			if fp == last {
				identical++
			} else {
				identical = 1
				last = fp
			}
			if identical >= o.cfg.StabilityThreshold {
				return false, nil
			}
		}
	}
}

// fingerprint hashes the extracted message count and contents, so
// unrelated page chrome mutating under the poll does not stall a capture.
func (o *Orchestrator) fingerprint(ctx context.Context, page PageSource) (string, error) {
	msgs, _, err := o.snapshot(ctx, page)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	fmt.Fprintf(h, "%d\n", len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(h, "%s\x00%s\x00", m.Role, m.Content)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (o *Orchestrator) snapshot(ctx context.Context, page PageSource) ([]domain.Message, string, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("reading page: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("parsing page: %w", err)
	}
	return o.registry.Extract(page.Host(), doc)
}

func (o *Orchestrator) extract(ctx context.Context, page PageSource, captureID string, lowConfidence bool) (*domain.Conversation, error) {
	msgs, extractorName, err := o.snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, domain.ErrNoConversation
	}

	conv := &domain.Conversation{
		CaptureID:     captureID,
		Site:          page.Host(),
		CapturedAt:    time.Now().UTC(),
		Messages:      msgs,
		LowConfidence: lowConfidence || extractorName == extractor.GenericName,
	}
	conv.EnrichMetadata()

	slog.InfoContext(ctx, "conversation extracted",
		"site", conv.Site,
		"extractor", extractorName,
		"messages", conv.Metadata.MessageCount,
		"words", conv.Metadata.WordCount,
		"quality", conv.Metadata.QualityScore,
		"low_confidence", conv.LowConfidence)

	return conv, nil
}
