// Package store persists operational records that live alongside
// detections but aren't part of the detections table itself: one row
// per Supervisor run summary, written at session end via an upsert so a
// killed-and-restarted run tag can be updated in place.
package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/wildguard/sentinel/internal/model"
)

// Pool is the narrow pgx surface this package needs, matching
// internal/sink.Pool so both can share a pgxmock double in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
}

const upsertRunSummarySQL = `
INSERT INTO run_summaries (
	run_tag, started_at, ended_at, cycles, listings_scanned, detections_stored,
	duplicates, errors, by_platform, by_level, top_rejection_reasons
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (run_tag) DO UPDATE SET
	ended_at = EXCLUDED.ended_at,
	cycles = EXCLUDED.cycles,
	listings_scanned = EXCLUDED.listings_scanned,
	detections_stored = EXCLUDED.detections_stored,
	duplicates = EXCLUDED.duplicates,
	errors = EXCLUDED.errors,
	by_platform = EXCLUDED.by_platform,
	by_level = EXCLUDED.by_level,
	top_rejection_reasons = EXCLUDED.top_rejection_reasons`

// UpsertRunSummary writes or updates the single row for summary.RunTag.
func UpsertRunSummary(ctx context.Context, pool Pool, summary model.RunSummary) error {
	byPlatform, err := json.Marshal(summary.ByPlatform)
	if err != nil {
		return eris.Wrap(err, "store: marshal by_platform")
	}
	byLevel, err := json.Marshal(summary.ByLevel)
	if err != nil {
		return eris.Wrap(err, "store: marshal by_level")
	}
	topReasons, err := json.Marshal(summary.TopRejectionReasons)
	if err != nil {
		return eris.Wrap(err, "store: marshal top_rejection_reasons")
	}

	_, err = pool.Exec(ctx, upsertRunSummarySQL,
		summary.RunTag, summary.StartedAt, summary.EndedAt, summary.Cycles,
		summary.ListingsScanned, summary.DetectionsStored, summary.Duplicates, summary.Errors,
		byPlatform, byLevel, topReasons,
	)
	if err != nil {
		return eris.Wrap(err, "store: upsert run summary")
	}
	return nil
}
