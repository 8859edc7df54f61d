package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fradelfo/distill/pkg/domain"
)

// CaptureRequest is the wire payload a capture producer (the agent or the
// browser extension) posts to the backend.
type CaptureRequest struct {
	CaptureID     string                      `json:"capture_id"`
	Site          string                      `json:"site"`
	PrivacyMode   domain.Mode                 `json:"privacy_mode"`
	Messages      []domain.Message            `json:"messages"`
	CapturedAt    time.Time                   `json:"captured_at"`
	LowConfidence bool                        `json:"low_confidence,omitempty"`
	Metadata      domain.ConversationMetadata `json:"metadata"`
}

type CaptureResponse struct {
	PromptID  int64             `json:"prompt_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Variables []domain.Variable `json:"variables"`
	Tags      []string          `json:"tags"`
}

func NewCaptureRequest(conv *domain.Conversation, mode domain.Mode) CaptureRequest {
	return CaptureRequest{
		CaptureID:     conv.CaptureID,
		Site:          conv.Site,
		PrivacyMode:   mode,
		Messages:      conv.Messages,
		CapturedAt:    conv.CapturedAt,
		LowConfidence: conv.LowConfidence,
		Metadata:      conv.Metadata,
	}
}

// Client ships captures to the backend. A capture is a single
// fire-and-confirm request: one attempt, a bounded timeout and no
// automatic retry. Failures surface to the user, who retries explicitly;
// the server keys on capture_id, so a retry is idempotent.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) SendCapture(ctx context.Context, capture CaptureRequest) (*CaptureResponse, error) {
	body, err := json.Marshal(capture)
	if err != nil {
		return nil, fmt.Errorf("encoding capture: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/captures", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending capture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sending capture: %s", readError(resp))
	}

	var out CaptureResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding capture response: %w", err)
	}
	return &out, nil
}

func readError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Sprintf("%s (http %d)", body.Error, resp.StatusCode)
	}
	return fmt.Sprintf("http %d", resp.StatusCode)
}
