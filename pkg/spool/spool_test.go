package spool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fradelfo/distill/pkg/domain"
)

func record(captureID string, mode domain.Mode, content string) Record {
	return Record{
		Conversation: domain.Conversation{
			CaptureID: captureID,
			Site:      "chatgpt.com",
			Messages:  []domain.Message{{Role: domain.RoleUser, Content: content}},
		},
		PrivacyMode: mode,
	}
}

func openTestSpool(t *testing.T) (*Spool, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spool.bolt")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestSpoolPutListDelete(t *testing.T) {
	s, _ := openTestSpool(t)

	require.NoError(t, s.Put(record("cap-1", domain.ModeFullChat, "hello")))
	require.NoError(t, s.Put(record("cap-2", domain.ModePromptOnly, "world")))

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, s.Delete("cap-1"))
	require.NoError(t, s.Delete("cap-2"))
	// Deleting an already-confirmed capture stays a no-op.
	require.NoError(t, s.Delete("cap-1"))

	records, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSpoolFullChatSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.bolt")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(record("cap-1", domain.ModeFullChat, "durable capture")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cap-1", records[0].Conversation.CaptureID)
	assert.Equal(t, "durable capture", records[0].Conversation.Messages[0].Content)
}

func TestSpoolPromptOnlyNeverTouchesDisk(t *testing.T) {
	s, path := openTestSpool(t)

	secret := "prompt-only secret content"
	require.NoError(t, s.Put(record("cap-1", domain.ModePromptOnly, secret)))

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 1, "prompt-only captures are still retryable in memory")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), secret, "prompt-only content must not reach durable storage")

	// And it does not come back after a restart.
	require.NoError(t, s.Close())
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	records, err = s2.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}
