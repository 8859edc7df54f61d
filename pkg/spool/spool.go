package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fradelfo/distill/pkg/domain"
)

var pendingBucket = []byte("pending")

// Record is one extracted conversation waiting for transport confirmation.
type Record struct {
	Conversation domain.Conversation `json:"conversation"`
	PrivacyMode  domain.Mode         `json:"privacy_mode"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Spool buffers captures between extraction and a confirmed hand-off to
// the backend. Full-chat records go to a bolt file so they survive agent
// restarts; prompt-only records stay in memory only, because their raw
// content must never reach durable storage.
type Spool struct {
	db *bolt.DB

	mu        sync.Mutex
	transient map[string]Record
}

func Open(path string) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating spool dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening spool db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pendingBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating spool bucket: %w", err)
	}
	return &Spool{db: db, transient: map[string]Record{}}, nil
}

func (s *Spool) Close() error {
	s.mu.Lock()
	s.transient = map[string]Record{}
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Spool) Put(rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if rec.PrivacyMode == domain.ModePromptOnly {
		s.mu.Lock()
		s.transient[rec.Conversation.CaptureID] = rec
		s.mu.Unlock()
		return nil
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding spool record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).Put([]byte(rec.Conversation.CaptureID), body)
	})
}

// Delete removes a confirmed capture. Unknown IDs are a no-op so a
// repeated confirmation stays idempotent.
func (s *Spool) Delete(captureID string) error {
	s.mu.Lock()
	delete(s.transient, captureID)
	s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).Delete([]byte(captureID))
	})
}

// List returns all pending records, oldest first.
func (s *Spool) List() ([]Record, error) {
	var out []Record

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				// Skip malformed entries instead of failing the listing.
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing spool: %w", err)
	}

	s.mu.Lock()
	for _, rec := range s.transient {
		out = append(out, rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
