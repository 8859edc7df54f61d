package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/privacy"
)

// conversationsRepository stores sealed (encrypted) raw conversations,
// kept apart from the prompts table and linked by prompt_id. Only
// full-chat captures ever reach it.
type conversationsRepository struct {
	db *sql.DB
}

func NewConversationsRepository(db *sql.DB) *conversationsRepository {
	return &conversationsRepository{db: db}
}

func (c *conversationsRepository) SaveSealed(ctx context.Context, sealed privacy.SealedConversation) error {
	const query = `
		INSERT INTO conversations (capture_id, prompt_id, workspace_id, site, ciphertext, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (capture_id) DO NOTHING
	`

	_, err := c.db.ExecContext(ctx, query,
		sealed.CaptureID, sealed.PromptID, sealed.WorkspaceID, sealed.Site, sealed.Ciphertext, sealed.CapturedAt)
	if err != nil {
		return fmt.Errorf("saving sealed conversation: %w", err)
	}

	return nil
}

func (c *conversationsRepository) GetByPromptID(ctx context.Context, workspaceID string, promptID int64) (*privacy.SealedConversation, error) {
	const query = `
		SELECT capture_id, prompt_id, workspace_id, site, ciphertext, captured_at
		FROM conversations
		WHERE prompt_id = $1 AND workspace_id = $2
	`

	var sealed privacy.SealedConversation
	err := c.db.QueryRowContext(ctx, query, promptID, workspaceID).
		Scan(&sealed.CaptureID, &sealed.PromptID, &sealed.WorkspaceID, &sealed.Site, &sealed.Ciphertext, &sealed.CapturedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching sealed conversation: %w", err)
	}

	return &sealed, nil
}
