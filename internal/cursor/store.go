// Package cursor implements the durable per-(platform, tier) offset
// table that hands out the next keyword batch to the scheduler.
package cursor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wildguard/sentinel/internal/model"
)

// Progress describes the slice handed back by NextBatch.
type Progress struct {
	StartIndex      int
	EndIndex        int
	Total           int
	CompletedCycles int
}

// key identifies one cursor by (platform, tier).
type key struct {
	Platform string
	Tier     model.Tier
}

type entry struct {
	NextIndex       int        `json:"next_index"`
	CompletedCycles int        `json:"completed_cycles"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
}

// fileState is the on-disk shape, keyed by "platform:tier".
type fileState struct {
	Entries   map[string]entry `json:"entries"`
	LastReset time.Time        `json:"last_reset"`
}

// Store is the mutex-serialized, write-through Cursor Store. The zero
// value is not usable; construct with New.
type Store struct {
	mu       sync.Mutex
	path     string
	entries  map[key]entry
	lastReset time.Time
}

// New creates a Store backed by path, attempting a best-effort load.
// A read error (including missing file) falls back to an empty state.
func New(path string) *Store {
	s := &Store{
		path:    path,
		entries: make(map[key]entry),
	}
	s.load()
	return s
}

func keyString(k key) string {
	return string(k.Platform) + ":" + string(k.Tier)
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.resetLocked()
		return
	}
	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		zap.L().Warn("cursor: state load error, resetting", zap.Error(err))
		s.resetLocked()
		return
	}
	s.lastReset = fs.LastReset
	for k, e := range fs.Entries {
		plat, tier := splitKey(k)
		s.entries[key{Platform: plat, Tier: tier}] = e
	}
}

func splitKey(s string) (string, model.Tier) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return s[:i], model.Tier(s[i+1:])
		}
	}
	return s, model.TierGeneral
}

func (s *Store) resetLocked() {
	s.entries = make(map[key]entry)
	s.lastReset = time.Now()
}

// save flushes the current state to disk. A write error is logged and
// the in-memory state remains authoritative until the next call retries.
func (s *Store) save() {
	fs := fileState{Entries: make(map[string]entry, len(s.entries)), LastReset: s.lastReset}
	for k, e := range s.entries {
		fs.Entries[keyString(k)] = e
	}
	data, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		zap.L().Warn("cursor: marshal state error", zap.Error(err))
		return
	}
	if dir := filepath.Dir(s.path); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		zap.L().Warn("cursor: write state error, will retry next call", zap.Error(err), zap.String("path", s.path))
	}
}

// NextBatch slices [start, min(start+batchSize, total)] out of keywords
// for (platform, tier), wrapping around when the slice runs short, and
// advances the stored offset. Persistence is write-through: every call
// flushes synchronously.
func (s *Store) NextBatch(platform string, tier model.Tier, keywords []model.Keyword, batchSize int) ([]model.Keyword, Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(keywords)
	if total == 0 || batchSize <= 0 {
		return nil, Progress{Total: total}
	}

	k := key{Platform: platform, Tier: tier}
	e := s.entries[k]

	start := e.NextIndex
	if start >= total {
		start = 0
	}
	end := start + batchSize
	if end > total {
		end = total
	}

	batch := append([]model.Keyword(nil), keywords[start:end]...)
	wrapped := false

	if len(batch) < batchSize && total >= batchSize {
		remainingNeeded := batchSize - len(batch)
		batch = append(batch, keywords[:remainingNeeded]...)
		end = remainingNeeded
		wrapped = true
	}

	newPosition := end % total
	if wrapped {
		e.CompletedCycles++
	}
	e.NextIndex = newPosition
	now := time.Now()
	e.LastRunAt = &now
	s.entries[k] = e

	s.save()

	return batch, Progress{
		StartIndex:      start,
		EndIndex:        end,
		Total:           total,
		CompletedCycles: e.CompletedCycles,
	}
}

// Cursor returns the current persisted offset for (platform, tier),
// creating a fresh zero-value cursor lazily if none exists yet.
func (s *Store) Cursor(platform string, tier model.Tier) model.KeywordCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key{Platform: platform, Tier: tier}]
	return model.KeywordCursor{
		Platform:        platform,
		Tier:            tier,
		NextIndex:       e.NextIndex,
		CompletedCycles: e.CompletedCycles,
		LastRunAt:       e.LastRunAt,
	}
}

// PlatformCoverage reports, for one platform, an approximation of
// "keywords used" derived purely from cursor positions: KeywordsUsed is
// the sum over the platform's tier cursors of NextIndex plus
// CompletedCycles times the corpus size. It is not a count of distinct
// keywords and can exceed the corpus size; CoveragePercentage is capped
// at 100. Filled in by CoverageReport below.
type PlatformCoverage struct {
	Platform           string
	KeywordsUsed       int
	CoveragePercentage float64
	LastUpdated        *time.Time
}

// CoverageReport returns a per-platform coverage summary (no overall
// figure across platforms),
// supplementing spec.md's Cursor Store contract per SPEC_FULL.md §4.2.
func (s *Store) CoverageReport(platforms []string, totalKeywords int) map[string]PlatformCoverage {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := make(map[string]PlatformCoverage, len(platforms))
	for _, p := range platforms {
		used := 0
		var lastUpdated *time.Time
		for k, e := range s.entries {
			if k.Platform != p {
				continue
			}
			used += e.NextIndex + e.CompletedCycles*totalKeywords
			if e.LastRunAt != nil && (lastUpdated == nil || e.LastRunAt.After(*lastUpdated)) {
				lastUpdated = e.LastRunAt
			}
		}
		pct := 0.0
		if totalKeywords > 0 {
			pct = float64(used) / float64(totalKeywords) * 100
			if pct > 100 {
				pct = 100
			}
		}
		report[p] = PlatformCoverage{
			Platform:           p,
			KeywordsUsed:       used,
			CoveragePercentage: pct,
			LastUpdated:        lastUpdated,
		}
	}
	return report
}

// CheckCompletionCycle reports whether every given platform has at least
// one tier cursor that sits at index 0 after completing at least one full
// rotation. The platform's other tiers are not checked.
func (s *Store) CheckCompletionCycle(platforms []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range platforms {
		completed := false
		for k, e := range s.entries {
			if k.Platform == p && e.NextIndex == 0 && e.CompletedCycles > 0 {
				completed = true
				break
			}
		}
		if !completed {
			return false
		}
	}
	return true
}
