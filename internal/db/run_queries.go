package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PipelineRunCounts carries the counters persisted when a run finishes.
type PipelineRunCounts struct {
	ArticlesProcessed int
	StoriesCreated    int
	EntitiesExtracted int
	ImpactsMapped     int
}

// StartPipelineRun records the beginning of one analysis pass.
func (p *Pool) StartPipelineRun(ctx context.Context, runUUID, triggeredBy string, startedAt time.Time) error {
	trimmedUUID := strings.TrimSpace(runUUID)
	if trimmedUUID == "" {
		return fmt.Errorf("run UUID is required")
	}

	const q = `
INSERT INTO news.pipeline_runs (
	run_uuid,
	triggered_by,
	started_at,
	status
)
VALUES ($1::uuid, $2, $3, 'running')
`

	if _, err := p.Exec(ctx, q, trimmedUUID, strings.TrimSpace(triggeredBy), startedAt.UTC()); err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// FinishPipelineRun closes a run row with its final status and counters.
// errorMessage is stored only when non-empty.
func (p *Pool) FinishPipelineRun(ctx context.Context, runUUID, status string, counts PipelineRunCounts, errorMessage string, finishedAt time.Time) error {
	trimmedUUID := strings.TrimSpace(runUUID)
	if trimmedUUID == "" {
		return fmt.Errorf("run UUID is required")
	}

	const q = `
UPDATE news.pipeline_runs
SET
	finished_at = $2,
	status = $3,
	articles_processed = $4,
	stories_created = $5,
	entities_extracted = $6,
	impacts_mapped = $7,
	error_message = $8
WHERE run_uuid = $1::uuid
`

	tag, err := p.Exec(ctx, q,
		trimmedUUID,
		finishedAt.UTC(),
		strings.TrimSpace(status),
		counts.ArticlesProcessed,
		counts.StoriesCreated,
		counts.EntitiesExtracted,
		counts.ImpactsMapped,
		nullableString(errorMessage),
	)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}
