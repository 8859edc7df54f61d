package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoConversation signals that no chat interface (or no messages)
	// was found. Non-fatal: the UI shows "nothing to capture".
	ErrNoConversation = errors.New("no conversation detected")

	// ErrConversationTooLong rejects conversations over the distillation
	// token ceiling. Nothing is truncated or partially processed.
	ErrConversationTooLong = errors.New("conversation exceeds the distillation size limit")

	// ErrCaptureInProgress guards against duplicate concurrent captures
	// on the same page.
	ErrCaptureInProgress = errors.New("a capture is already in progress")
)
