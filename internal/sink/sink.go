// Package sink owns the relational store that detections are persisted
// to: a single Postgres table of high-signal listings, written through
// directly via pgx/v5 rather than behind a REST collaborator.
package sink

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/wildguard/sentinel/internal/model"
)

// Pool is the narrow surface of *pgxpool.Pool the Sink needs, so tests
// can substitute pgxmock's pool implementation.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
}

const insertDetectionSQL = `
INSERT INTO detections (
	evidence_id, observed_at, platform, threat_score, threat_level, threat_category,
	species_involved, alert_sent, status, listing_title, listing_url, listing_price,
	search_term, description, confidence_score, requires_human_review
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
)
ON CONFLICT (listing_url) DO NOTHING
RETURNING evidence_id`

// Sink writes Detection records idempotently, keyed on listing URL.
type Sink struct {
	pool Pool
}

// New wraps an already-configured pool. Construct the pool with
// Open(ctx, databaseURL, maxConns, minConns) at startup.
func New(pool Pool) *Sink {
	return &Sink{pool: pool}
}

// Store inserts d if its listing_url hasn't been seen before. stored is
// false when the row already existed (ON CONFLICT DO NOTHING fired).
// Callers must populate EvidenceID themselves (internal/scheduler builds
// it from the run tag, platform, and observation time) — Store never
// fabricates one.
func (s *Sink) Store(ctx context.Context, d model.Detection) (bool, error) {
	if d.EvidenceID == "" {
		return false, eris.New("sink: detection missing evidence_id")
	}
	if d.ObservedAt.IsZero() {
		d.ObservedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = "open"
	}

	var returnedID string
	err := s.pool.QueryRow(ctx, insertDetectionSQL,
		d.EvidenceID, d.ObservedAt, d.Platform, d.ThreatScore, d.ThreatLevel, d.ThreatCategory,
		d.SpeciesInvolved, d.AlertSent, d.Status, d.ListingTitle, d.ListingURL, d.ListingPrice,
		d.SearchTerm, d.Description, d.ConfidenceScore, d.RequiresHumanReview,
	).Scan(&returnedID)

	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sink: insert detection")
	}
	return true, nil
}

// Open establishes a pgxpool against databaseURL with the given bounds.
func Open(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "sink: parse database url")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "sink: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "sink: ping")
	}
	return pool, nil
}
