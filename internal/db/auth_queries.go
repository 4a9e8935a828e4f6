package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// APIKeyRecord is one stored API key. Only the bcrypt hash is kept; the
// plaintext key is shown once at creation and never stored.
type APIKeyRecord struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// CreateAPIKey stores a named key hash.
func (p *Pool) CreateAPIKey(ctx context.Context, name, keyHash string) (*APIKeyRecord, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, fmt.Errorf("key name is required")
	}
	trimmedHash := strings.TrimSpace(keyHash)
	if trimmedHash == "" {
		return nil, fmt.Errorf("key hash is required")
	}

	const q = `
INSERT INTO news.api_keys (
	name,
	key_hash,
	created_at
)
VALUES ($1, $2, now())
RETURNING
	id,
	name,
	key_hash,
	created_at,
	last_used_at
`

	var row APIKeyRecord
	if err := p.QueryRow(ctx, q, trimmedName, trimmedHash).Scan(
		&row.ID,
		&row.Name,
		&row.KeyHash,
		&row.CreatedAt,
		&row.LastUsedAt,
	); err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}
	return &row, nil
}

// ListAPIKeys returns every stored key, oldest first. Hashes are included so
// callers can verify presented keys.
func (p *Pool) ListAPIKeys(ctx context.Context) ([]APIKeyRecord, error) {
	const q = `
SELECT
	k.id,
	k.name,
	k.key_hash,
	k.created_at,
	k.last_used_at
FROM news.api_keys k
ORDER BY k.created_at ASC, k.id ASC
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	items := make([]APIKeyRecord, 0, 8)
	for rows.Next() {
		var row APIKeyRecord
		if err := rows.Scan(
			&row.ID,
			&row.Name,
			&row.KeyHash,
			&row.CreatedAt,
			&row.LastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api key rows: %w", err)
	}

	return items, nil
}

// CountAPIKeys returns the number of stored keys.
func (p *Pool) CountAPIKeys(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM news.api_keys`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}
	return count, nil
}

// TouchAPIKey records when a key last authenticated a request.
func (p *Pool) TouchAPIKey(ctx context.Context, id int64, usedAt time.Time) error {
	const q = `
UPDATE news.api_keys
SET last_used_at = $2
WHERE id = $1
`

	tag, err := p.Exec(ctx, q, id, usedAt.UTC())
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}
