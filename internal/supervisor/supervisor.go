// Package supervisor drives the long-running scan session: it wires the
// keyword corpus, cursor store, dedup cache, adapter registry, scheduler,
// and sink together, then runs cycles until the configured scan duration
// elapses or the process receives a shutdown signal.
package supervisor

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/wildguard/sentinel/internal/adapter"
	"github.com/wildguard/sentinel/internal/config"
	"github.com/wildguard/sentinel/internal/cursor"
	"github.com/wildguard/sentinel/internal/dedup"
	"github.com/wildguard/sentinel/internal/keywordcorpus"
	"github.com/wildguard/sentinel/internal/model"
	"github.com/wildguard/sentinel/internal/report"
	"github.com/wildguard/sentinel/internal/resilience"
	"github.com/wildguard/sentinel/internal/scheduler"
	"github.com/wildguard/sentinel/internal/scorer"
)

// dedupSnapshotEveryNCycles controls how often the dedup cache flushes to
// disk, balancing crash-recovery freshness against write overhead.
const dedupSnapshotEveryNCycles = 10

// Supervisor owns one scan session end to end.
type Supervisor struct {
	cfg        *config.Config
	scheduler  *scheduler.Scheduler
	cursors    *cursor.Store
	dedupCache *dedup.Cache
	builder    *report.Builder

	dedupPath string
}

// New builds a Supervisor from the resolved configuration, the platform
// registry (built by the caller so it can choose live adapters), and the
// sink the scheduler writes confirmed detections to.
func New(cfg *config.Config, adapters *adapter.Registry, sink scheduler.Sink, runTag string) (*Supervisor, error) {
	corpus, err := keywordcorpus.Load(cfg.Keywords.FilePath, cfg.Keywords.MinAcceptedFrac)
	if err != nil {
		return nil, err
	}

	cursorPath := filepath.Join(cfg.State.Dir, "cursor.json")
	cursors := cursor.New(cursorPath)

	dedupPath := filepath.Join(cfg.State.Dir, "dedup.json")
	dedupCache := dedup.New(cfg.Dedup.HighWatermark, cfg.Dedup.LowWatermark)
	dedupCache.Load(dedupPath)

	schedCfg := scheduler.Config{
		RunTag:            runTag,
		BatchSize:         cfg.Scheduler.BatchSize,
		PerKeywordTimeout: time.Duration(float64(30*time.Second) * cfg.Scheduler.RetryTimeoutMul),
		RetryConfig: resilience.RetryConfig{
			MaxAttempts:    cfg.Scheduler.MaxRetryAttempts,
			InitialBackoff: cfg.Scheduler.RetryBaseDelay,
			MaxBackoff:     cfg.Scheduler.RetryMaxDelay,
			Multiplier:     2.0,
			JitterFraction: 0.25,
			OnRetry:        resilience.RetryLogger("scheduler", "search"),
		},
		Thresholds: scorer.Thresholds{
			WildlifeMin: cfg.Scorer.WildlifeThreshold,
			HTMin:       cfg.Scorer.HTThreshold,
		},
		PlatformWeights: map[string]float64{
			"avito":      4,
			"ebay":       3,
			"craigslist": 3,
		},
	}

	sched := scheduler.New(adapters, cursors, corpus, dedupCache, sink, schedCfg)

	return &Supervisor{
		cfg:        cfg,
		scheduler:  sched,
		cursors:    cursors,
		dedupCache: dedupCache,
		builder:    report.NewBuilder(runTag, time.Now()),
		dedupPath:  dedupPath,
	}, nil
}

// Run drives scan cycles until ctx is cancelled or maxDuration elapses,
// whichever comes first, and returns the accumulated session summary.
func (s *Supervisor) Run(ctx context.Context, maxDuration time.Duration) model.RunSummary {
	deadline := time.Now().Add(maxDuration)
	cycle := 0

	for {
		if time.Now().After(deadline) {
			zap.L().Info("supervisor: scan duration elapsed, ending session")
			break
		}
		select {
		case <-ctx.Done():
			zap.L().Info("supervisor: shutdown signal received, ending session")
			return s.finish()
		default:
		}

		result := s.scheduler.RunCycle(ctx)
		s.builder.Record(result)

		cycle++
		if cycle%dedupSnapshotEveryNCycles == 0 {
			if err := s.dedupCache.Snapshot(s.dedupPath); err != nil {
				zap.L().Warn("supervisor: dedup snapshot failed", zap.Error(err))
			}
		}
	}

	return s.finish()
}

func (s *Supervisor) finish() model.RunSummary {
	if err := s.dedupCache.Snapshot(s.dedupPath); err != nil {
		zap.L().Warn("supervisor: final dedup snapshot failed", zap.Error(err))
	}
	return s.builder.Finish(time.Now())
}

// CoverageReport exposes the underlying cursor store's coverage report.
// The cmd layer's "coverage" command reads the cursor file directly and
// does not go through this method.
func (s *Supervisor) CoverageReport(platforms []string, totalKeywords int) map[string]cursor.PlatformCoverage {
	return s.cursors.CoverageReport(platforms, totalKeywords)
}
