package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/extractor"
)

func chatHTML(turns ...string) string {
	out := "<html><body>"
	for i, content := range turns {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		out += fmt.Sprintf(`<div data-message-author-role=%q>%s</div>`, role, content)
	}
	return out + "</body></html>"
}

// fakePage serves a scripted sequence of HTML snapshots; the last one
// repeats forever.
type fakePage struct {
	host string

	mu        sync.Mutex
	snapshots []string
	calls     int
}

func (p *fakePage) Host() string { return p.host }

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i >= len(p.snapshots) {
		i = len(p.snapshots) - 1
	}
	return p.snapshots[i], nil
}

// churningPage never serves the same content twice.
type churningPage struct {
	mu    sync.Mutex
	calls int
}

func (p *churningPage) Host() string { return "chatgpt.com" }

func (p *churningPage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return chatHTML("question", fmt.Sprintf("streaming token %d", p.calls)), nil
}

func testConfig() Config {
	return Config{
		PollInterval:       time.Millisecond,
		StabilityThreshold: 3,
		MaxWait:            time.Second,
	}
}

func TestCaptureStablePage(t *testing.T) {
	o := NewOrchestrator(extractor.NewRegistry(), testConfig())
	page := &fakePage{host: "chatgpt.com", snapshots: []string{chatHTML("hello", "hi there", "thanks")}}

	conv, err := o.Capture(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "chatgpt.com", conv.Site)
	assert.NotEmpty(t, conv.CaptureID)
	assert.False(t, conv.LowConfidence)
	assert.Equal(t, 3, conv.Metadata.MessageCount)
	assert.Equal(t, 4, conv.Metadata.WordCount)
	assert.Greater(t, conv.Metadata.QualityScore, 0.0)
	assert.Equal(t, StateDone, o.State())
}

func TestCaptureWaitsForStreamingToSettle(t *testing.T) {
	partial := chatHTML("question", "partial answ")
	full := chatHTML("question", "partial answer, now complete")
	o := NewOrchestrator(extractor.NewRegistry(), testConfig())
	page := &fakePage{host: "chatgpt.com", snapshots: []string{partial, partial, full}}

	conv, err := o.Capture(context.Background(), page)
	require.NoError(t, err)

	require.Equal(t, 2, conv.Metadata.MessageCount)
	assert.Equal(t, "partial answer, now complete", conv.Messages[1].Content)
	assert.False(t, conv.LowConfidence)
}

func TestCaptureTimeoutFlagsLowConfidence(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWait = 20 * time.Millisecond
	o := NewOrchestrator(extractor.NewRegistry(), cfg)

	conv, err := o.Capture(context.Background(), &churningPage{})
	require.NoError(t, err, "timeout proceeds with extraction, it does not fail")
	assert.True(t, conv.LowConfidence)
	assert.Equal(t, 2, conv.Metadata.MessageCount)
}

func TestCaptureEmptyPage(t *testing.T) {
	o := NewOrchestrator(extractor.NewRegistry(), testConfig())
	page := &fakePage{host: "chatgpt.com", snapshots: []string{"<html><body><p>no chat here</p></body></html>"}}

	_, err := o.Capture(context.Background(), page)
	require.ErrorIs(t, err, domain.ErrNoConversation)
	assert.Equal(t, StateFailed, o.State())
}

func TestCaptureRejectsConcurrentAttempts(t *testing.T) {
	o := NewOrchestrator(extractor.NewRegistry(), Config{
		PollInterval:       time.Millisecond,
		StabilityThreshold: 1000, // never stabilizes within the test
		MaxWait:            time.Second,
	})
	page := &fakePage{host: "chatgpt.com", snapshots: []string{chatHTML("hello", "hi")}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Capture(ctx, page)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return o.State() == StateWaitingForStability
	}, time.Second, time.Millisecond)

	_, err := o.Capture(context.Background(), page)
	assert.ErrorIs(t, err, domain.ErrCaptureInProgress)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestCaptureCancelledWhileWaiting(t *testing.T) {
	o := NewOrchestrator(extractor.NewRegistry(), Config{
		PollInterval:       time.Millisecond,
		StabilityThreshold: 1000,
		MaxWait:            time.Minute,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := o.Capture(ctx, &churningPage{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
