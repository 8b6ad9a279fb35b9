// Package scheduler drives the single cooperative scan loop: pick a
// platform, pick a keyword tier, draw the next keyword batch from the
// Cursor Store, search each keyword, score and persist the results.
// There is exactly one scan in flight at a time; concurrency lives
// inside a single adapter call's own retry/backoff, never across
// platforms or keywords.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wildguard/sentinel/internal/adapter"
	"github.com/wildguard/sentinel/internal/cursor"
	"github.com/wildguard/sentinel/internal/dedup"
	"github.com/wildguard/sentinel/internal/keywordcorpus"
	"github.com/wildguard/sentinel/internal/model"
	"github.com/wildguard/sentinel/internal/resilience"
	"github.com/wildguard/sentinel/internal/scorer"
)

// Sink is the narrow persistence surface the scheduler needs, satisfied
// by internal/sink.Sink. Declared here to avoid an import cycle.
type Sink interface {
	Store(ctx context.Context, d model.Detection) (stored bool, err error)
}

// Config controls batch sizing, timeouts, and retry policy.
type Config struct {
	RunTag            string
	BatchSize         int
	PerKeywordTimeout time.Duration
	RetryConfig       resilience.RetryConfig
	Thresholds        scorer.Thresholds
	PlatformWeights   map[string]float64
}

// DefaultConfig returns standalone defaults for callers that do not build
// a Config themselves. The Supervisor does not use it: it builds its
// Config from the loaded internal/config values.
func DefaultConfig() Config {
	return Config{
		BatchSize:         24,
		PerKeywordTimeout: 20 * time.Second,
		RetryConfig:       resilience.DefaultRetryConfig(),
		Thresholds:        scorer.DefaultThresholds,
	}
}

// CycleResult summarizes one RunCycle call for the session report.
type CycleResult struct {
	Platform        string
	Tier            model.Tier
	KeywordsScanned int
	ListingsSeen    int
	Duplicates      int
	Detections      int
	Rejections      []resilience.RejectionEntry
	PlatformBlocked bool
}

// Scheduler holds everything one scan cycle needs: the platform
// registry, the cursor store, the keyword corpus, the dedup cache, and
// the sink.
type Scheduler struct {
	adapters *adapter.Registry
	cursors  *cursor.Store
	corpus   *keywordcorpus.Corpus
	dedupe   *dedup.Cache
	sink     Sink
	breakers *resilience.ServiceBreakers
	cfg      Config

	cycleCount       int
	blockedPlatforms map[string]bool
	attemptCounts    map[string]int
}

// New builds a Scheduler from its component dependencies.
func New(adapters *adapter.Registry, cursors *cursor.Store, corpus *keywordcorpus.Corpus, dedupe *dedup.Cache, sink Sink, cfg Config) *Scheduler {
	return &Scheduler{
		adapters:         adapters,
		cursors:          cursors,
		corpus:           corpus,
		dedupe:           dedupe,
		sink:             sink,
		breakers:         resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{}),
		cfg:              cfg,
		blockedPlatforms: make(map[string]bool),
		attemptCounts:    make(map[string]int),
	}
}

// tierForCycle picks the keyword tier by cycle index: every 3rd cycle
// (0, 3, 6, ...) takes the critical tier, every 4th cycle not already
// taken (4, 8, 16, ...) takes the high tier, and every other cycle takes
// the general tier. The medium tier is not scheduled.
func tierForCycle(cycle int) model.Tier {
	switch {
	case cycle%3 == 0:
		return model.TierCritical
	case cycle%4 == 0:
		return model.TierHigh
	default:
		return model.TierGeneral
	}
}

// pickPlatform draws one non-blocked platform, weighted by cfg.PlatformWeights
// (defaulting to uniform weight 1.0 for any platform missing from the map).
func (s *Scheduler) pickPlatform() string {
	names := s.adapters.Names()
	var candidates []string
	var weights []float64
	total := 0.0
	for _, n := range names {
		if s.blockedPlatforms[n] {
			continue
		}
		w := 1.0
		if custom, ok := s.cfg.PlatformWeights[n]; ok {
			w = custom
		}
		candidates = append(candidates, n)
		weights = append(weights, w)
		total += w
	}
	if len(candidates) == 0 {
		return ""
	}
	draw := rand.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if draw <= cum {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// RunCycle executes exactly one scan cycle: pick a platform and tier,
// pull the next keyword batch, search each keyword in turn, score and
// store novel listings.
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	platform := s.pickPlatform()
	tier := tierForCycle(s.cycleCount)
	s.cycleCount++

	result := CycleResult{Platform: platform, Tier: tier}
	if platform == "" {
		zap.L().Warn("scheduler: no unblocked platform available")
		return result
	}

	a, ok := s.adapters.Get(platform)
	if !ok {
		zap.L().Error("scheduler: picked unregistered platform", zap.String("platform", platform))
		return result
	}

	keywords := s.corpus.GetByTier(tier)
	batch, _ := s.cursors.NextBatch(platform, tier, keywords, s.cfg.BatchSize)
	breaker := s.breakers.Get(platform)

	terms := make([]string, len(batch))
	for i, kw := range batch {
		terms[i] = kw.Text
	}
	result.KeywordsScanned = len(terms)

	attemptNo := s.attemptCounts[platform]
	s.attemptCounts[platform] = attemptNo + 1

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.PerKeywordTimeout)
	listings, err := s.searchWithRetry(cycleCtx, breaker, a, terms, attemptNo)
	cancel()

	if err != nil {
		s.handleSearchError(platform, strings.Join(terms, ","), err, &result)
	}

	result.ListingsSeen += len(listings)
	for _, listing := range listings {
		if !s.dedupe.Observe(listing) {
			result.Duplicates++
			continue
		}
		assessment := scorer.Analyze(listing, s.cfg.Thresholds)
		if assessment.Category == model.CategorySafe {
			continue
		}
		stored, err := s.sink.Store(ctx, s.detectionFrom(listing, assessment))
		if err != nil {
			zap.L().Error("scheduler: store detection failed", zap.Error(err), zap.String("platform", platform))
			continue
		}
		if stored {
			result.Detections++
		}
	}

	return result
}

func (s *Scheduler) searchWithRetry(ctx context.Context, breaker *resilience.CircuitBreaker, a adapter.Adapter, keywords []string, attemptNo int) ([]model.Listing, error) {
	retryCfg := s.cfg.RetryConfig
	if retryCfg.ShouldRetry == nil {
		retryCfg.ShouldRetry = func(err error) bool {
			if se, ok := err.(*adapter.SearchError); ok {
				return se.Kind == adapter.ErrKindTransient || se.Kind == adapter.ErrKindRateLimited
			}
			return resilience.IsTransient(err)
		}
	}
	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]model.Listing, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]model.Listing, error) {
			return a.Search(ctx, keywords, attemptNo)
		})
	})
}

func (s *Scheduler) handleSearchError(platform, keyword string, err error, result *CycleResult) {
	kind := adapter.ErrKindTransient
	if se, ok := err.(*adapter.SearchError); ok {
		kind = se.Kind
	}

	entry := resilience.RejectionEntry{
		Platform:   platform,
		Keyword:    keyword,
		Reason:     err.Error(),
		ErrorType:  resilience.ClassifyError(err),
		CreatedAt:  time.Now(),
		LastFailed: time.Now(),
	}
	result.Rejections = append(result.Rejections, entry)

	if kind == adapter.ErrKindBlocked {
		zap.L().Warn("scheduler: platform blocked, aborting for remainder of run",
			zap.String("platform", platform))
		s.blockedPlatforms[platform] = true
		result.PlatformBlocked = true
	}
}

// detectionFrom builds the persisted Detection record for one accepted
// (listing, assessment) pair, including its evidence_id in the
// {run_tag}-{platform}-{yyyymmdd-hhmmss}-{item_key} format: item_key is
// the listing's native marketplace ID when the adapter supplied one,
// otherwise a short hash of its URL.
func (s *Scheduler) detectionFrom(l model.Listing, a model.ThreatAssessment) model.Detection {
	status := "open"
	if a.RequiresHumanReview {
		status = "pending_review"
	}
	return model.Detection{
		RunTag:              s.cfg.RunTag,
		EvidenceID:          buildEvidenceID(s.cfg.RunTag, l),
		ObservedAt:          l.ObservedAt,
		Platform:            l.Platform,
		ThreatScore:         a.Score,
		ThreatLevel:         a.Level,
		ThreatCategory:      a.Category,
		SpeciesInvolved:     firstOrEmpty(a.WildlifeIndicators),
		Status:              status,
		ListingTitle:        l.Title,
		ListingURL:          l.URL,
		ListingPrice:        l.PriceText,
		SearchTerm:          l.SearchTerm,
		Description:         l.Description,
		ConfidenceScore:     a.Confidence,
		RequiresHumanReview: a.RequiresHumanReview,
	}
}

func buildEvidenceID(runTag string, l model.Listing) string {
	itemKey := l.NativeItemID
	if itemKey == "" {
		sum := sha256.Sum256([]byte(l.URL))
		itemKey = hex.EncodeToString(sum[:])[:16]
	}
	return fmt.Sprintf("%s-%s-%s-%s",
		runTag,
		strings.ToUpper(l.Platform),
		l.ObservedAt.UTC().Format("20060102-150405"),
		itemKey,
	)
}

func firstOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}
