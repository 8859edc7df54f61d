package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single extracted chat turn. Immutable once extracted.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	HasCode   bool      `json:"has_code,omitempty"`
	HasImage  bool      `json:"has_image,omitempty"`
	WordCount int       `json:"word_count,omitempty"`
}

type ConversationMetadata struct {
	MessageCount int     `json:"message_count"`
	WordCount    int     `json:"word_count"`
	CharCount    int     `json:"char_count"`
	QualityScore float64 `json:"quality_score"`
}

// Conversation is the ordered result of one capture. It exists only until
// the distillation step completes, unless full-chat privacy mode persists it.
type Conversation struct {
	CaptureID     string               `json:"capture_id"`
	Site          string               `json:"site"`
	CapturedAt    time.Time            `json:"captured_at"`
	Messages      []Message            `json:"messages"`
	LowConfidence bool                 `json:"low_confidence,omitempty"`
	Metadata      ConversationMetadata `json:"metadata"`
}

func (c *Conversation) Empty() bool { return len(c.Messages) == 0 }

// EnrichMetadata recomputes the derived counters and the quality score
// from the message list.
func (c *Conversation) EnrichMetadata() {
	meta := ConversationMetadata{MessageCount: len(c.Messages)}
	for i := range c.Messages {
		m := &c.Messages[i]
		m.WordCount = len(strings.Fields(m.Content))
		meta.WordCount += m.WordCount
		meta.CharCount += utf8.RuneCountInString(m.Content)
	}
	meta.QualityScore = c.qualityScore()
	c.Metadata = meta
}

// qualityScore is a heuristic in [0,1]: more messages and clean
// user/assistant alternation score higher, a low-confidence capture
// is penalized.
func (c *Conversation) qualityScore() float64 {
	if len(c.Messages) == 0 {
		return 0
	}

	score := 0.4
	if len(c.Messages) >= 2 {
		score += 0.2
	}
	if len(c.Messages) >= 6 {
		score += 0.1
	}

	alternations := 0
	for i := 1; i < len(c.Messages); i++ {
		if c.Messages[i].Role != c.Messages[i-1].Role {
			alternations++
		}
	}
	if len(c.Messages) > 1 && alternations == len(c.Messages)-1 {
		score += 0.3
	} else if alternations > 0 {
		score += 0.15
	}

	if c.LowConfidence {
		score -= 0.2
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Scrub zeroes message content in place. The privacy gate calls it once
// distillation is done and the conversation must not be retained.
func (c *Conversation) Scrub() {
	for i := range c.Messages {
		c.Messages[i].Content = ""
	}
	c.Messages = nil
	c.Metadata = ConversationMetadata{}
}
