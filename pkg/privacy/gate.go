package privacy

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fradelfo/distill/pkg/domain"
)

// SealedConversation is an encrypted raw conversation persisted under
// full-chat mode, linked to its prompt by reference.
type SealedConversation struct {
	CaptureID   string
	PromptID    int64
	WorkspaceID string
	Site        string
	Ciphertext  []byte
	CapturedAt  time.Time
}

type Store interface {
	SaveSealed(ctx context.Context, sealed SealedConversation) error
}

// Gate enforces the privacy mode as a hard boundary. It is the single
// owner of the raw conversation once distillation returns: prompt-only
// conversations are scrubbed on the spot and never reach storage or logs;
// full-chat conversations are sealed with AES-256-GCM before they touch
// the database, then scrubbed from memory all the same.
type Gate struct {
	store Store
	aead  cipher.AEAD
}

func NewGate(store Store, key []byte) (*Gate, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("conversation key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return &Gate{store: store, aead: aead}, nil
}

// Finalize applies the capture's privacy mode and then scrubs the
// conversation from memory synchronously, whatever the outcome. The mode
// was fixed when the capture was requested; there is no retroactive
// change for a conversation that already passed the gate.
func (g *Gate) Finalize(ctx context.Context, mode domain.Mode, conv *domain.Conversation, promptID int64, workspaceID string) error {
	defer conv.Scrub()

	switch mode {
	case domain.ModePromptOnly:
		slog.InfoContext(ctx, "conversation discarded after distillation", "mode", mode)
		return nil
	case domain.ModeFullChat:
		plaintext, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("encoding conversation: %w", err)
		}
		sealed := SealedConversation{
			CaptureID:   conv.CaptureID,
			PromptID:    promptID,
			WorkspaceID: workspaceID,
			Site:        conv.Site,
			Ciphertext:  g.Seal(plaintext),
			CapturedAt:  conv.CapturedAt,
		}
		if err := g.store.SaveSealed(ctx, sealed); err != nil {
			return fmt.Errorf("persisting sealed conversation: %w", err)
		}
		slog.InfoContext(ctx, "conversation sealed and persisted", "mode", mode, "prompt_id", promptID)
		return nil
	}
	return fmt.Errorf("unknown privacy mode %q", mode)
}

// Seal encrypts plaintext as nonce||ciphertext.
func (g *Gate) Seal(plaintext []byte) []byte {
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		panic(fmt.Sprintf("reading nonce: %v", err))
	}
	return g.aead.Seal(nonce, nonce, plaintext, nil)
}

// Open decrypts a sealed conversation payload.
func (g *Gate) Open(sealed []byte) ([]byte, error) {
	ns := g.aead.NonceSize()
	if len(sealed) < ns {
		return nil, fmt.Errorf("sealed payload too short")
	}
	plaintext, err := g.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("opening sealed conversation: %w", err)
	}
	return plaintext, nil
}
