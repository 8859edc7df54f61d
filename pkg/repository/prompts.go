package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fradelfo/distill/pkg/domain"
)

type promptsRepository struct {
	db *sql.DB
}

func NewPromptsRepository(db *sql.DB) *promptsRepository {
	return &promptsRepository{db: db}
}

func (p *promptsRepository) Save(ctx context.Context, prompt domain.Prompt) (int64, error) {
	variables, err := json.Marshal(prompt.Variables)
	if err != nil {
		return 0, fmt.Errorf("encoding variables: %w", err)
	}
	tags, err := json.Marshal(prompt.Tags)
	if err != nil {
		return 0, fmt.Errorf("encoding tags: %w", err)
	}

	// A re-sent capture must not create a second prompt: the insert
	// no-ops on a known capture_id and the existing row's id is returned.
	const query = `
		INSERT INTO prompts (capture_id, workspace_id, title, body, variables, tags, source_site, privacy_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (capture_id) DO NOTHING
		RETURNING id
	`

	var id int64
	err = p.db.QueryRowContext(ctx, query,
		prompt.CaptureID, prompt.WorkspaceID, prompt.Title, prompt.Body, variables, tags, prompt.SourceSite, string(prompt.PrivacyMode),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		const existing = `SELECT id FROM prompts WHERE capture_id = $1`
		if err := p.db.QueryRowContext(ctx, existing, prompt.CaptureID).Scan(&id); err != nil {
			return 0, fmt.Errorf("fetching prompt for capture: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return 0, fmt.Errorf("saving prompt: %w", err)
	}

	return id, nil
}

func (p *promptsRepository) GetByID(ctx context.Context, workspaceID string, id int64) (*domain.Prompt, error) {
	const query = `
		SELECT id, capture_id, workspace_id, title, body, variables, tags, source_site, privacy_mode, created_at
		FROM prompts
		WHERE id = $1 AND workspace_id = $2
	`

	row := p.db.QueryRowContext(ctx, query, id, workspaceID)
	prompt, err := scanPrompt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching prompt by id: %w", err)
	}

	return prompt, nil
}

func (p *promptsRepository) List(ctx context.Context, workspaceID string) ([]domain.Prompt, error) {
	const query = `
		SELECT id, capture_id, workspace_id, title, body, variables, tags, source_site, privacy_mode, created_at
		FROM prompts
		WHERE workspace_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := p.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer rows.Close()

	var prompts []domain.Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		prompts = append(prompts, *prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}

	return prompts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row scanner) (*domain.Prompt, error) {
	var prompt domain.Prompt
	var variables, tags []byte
	var mode string

	if err := row.Scan(&prompt.ID, &prompt.CaptureID, &prompt.WorkspaceID, &prompt.Title, &prompt.Body,
		&variables, &tags, &prompt.SourceSite, &mode, &prompt.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(variables, &prompt.Variables); err != nil {
		return nil, fmt.Errorf("decoding variables: %w", err)
	}
	if err := json.Unmarshal(tags, &prompt.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	prompt.PrivacyMode = domain.Mode(mode)

	return &prompt, nil
}
