package domain

import "fmt"

// Mode controls whether raw chat content outlives the distillation step.
// It is fixed once per capture and never retroactively changeable.
type Mode string

const (
	// ModePromptOnly discards the raw conversation as soon as the
	// distilled prompt exists. Nothing reaches durable storage or logs.
	ModePromptOnly Mode = "prompt-only"

	// ModeFullChat persists the raw conversation, encrypted, in storage
	// separate from the prompt and linked to it by reference.
	ModeFullChat Mode = "full-chat"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePromptOnly, ModeFullChat:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown privacy mode %q", s)
}
