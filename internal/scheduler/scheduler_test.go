package scheduler

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard/sentinel/internal/adapter"
	"github.com/wildguard/sentinel/internal/cursor"
	"github.com/wildguard/sentinel/internal/dedup"
	"github.com/wildguard/sentinel/internal/keywordcorpus"
	"github.com/wildguard/sentinel/internal/model"
)

type fakeAdapter struct {
	name     string
	listings []model.Listing
	err      error
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Search(ctx context.Context, keywords []string, attemptNo int) ([]model.Listing, error) {
	return f.listings, f.err
}

type recordingSink struct {
	stored []model.Detection
}

func (r *recordingSink) Store(ctx context.Context, d model.Detection) (bool, error) {
	r.stored = append(r.stored, d)
	return true, nil
}

func setup(t *testing.T, a adapter.Adapter) (*Scheduler, *recordingSink) {
	t.Helper()
	reg := adapter.NewRegistry()
	reg.Register(a)

	cursorPath := filepath.Join(t.TempDir(), "cursor.json")
	cs := cursor.New(cursorPath)

	corpus, err := keywordcorpus.Load(filepath.Join(t.TempDir(), "missing.json"), 0.9)
	require.NoError(t, err)

	dc := dedup.New(1000, 500)
	sink := &recordingSink{}

	cfg := DefaultConfig()
	cfg.RunTag = "test-run"
	cfg.PerKeywordTimeout = 2 * time.Second
	cfg.BatchSize = 5

	return New(reg, cs, corpus, dc, sink, cfg), sink
}

func TestRunCycle_StoresHighSignalListing(t *testing.T) {
	listings := []model.Listing{
		{Platform: "ebay", Title: "Carved ivory elephant tusk, estate piece, cash only", URL: "https://example.com/1", ObservedAt: time.Now()},
	}
	s, sink := setup(t, &fakeAdapter{name: "ebay", listings: listings})

	result := s.RunCycle(context.Background())

	assert.Equal(t, "ebay", result.Platform)
	assert.Greater(t, result.ListingsSeen, 0)
	assert.Equal(t, 1, result.Detections)
	require.Len(t, sink.stored, 1)
	assert.Equal(t, model.CategoryWildlife, sink.stored[0].ThreatCategory)
	assert.True(t, strings.HasPrefix(sink.stored[0].EvidenceID, "test-run-EBAY-"))
}

func TestRunCycle_SkipsSafeListing(t *testing.T) {
	listings := []model.Listing{
		{Platform: "ebay", Title: "Blue cotton t-shirt, size large", URL: "https://example.com/2", ObservedAt: time.Now()},
	}
	s, sink := setup(t, &fakeAdapter{name: "ebay", listings: listings})

	result := s.RunCycle(context.Background())

	assert.Equal(t, 0, result.Detections)
	assert.Empty(t, sink.stored)
}

func TestRunCycle_BlockedAdapterMarksPlatformBlocked(t *testing.T) {
	a := &fakeAdapter{name: "ebay", err: adapter.NewSearchError(adapter.ErrKindBlocked, assertError("blocked"))}
	s, _ := setup(t, a)

	result := s.RunCycle(context.Background())

	assert.True(t, result.PlatformBlocked)
	assert.True(t, s.blockedPlatforms["ebay"])
	assert.NotEmpty(t, result.Rejections)
}

func TestPickPlatform_SkipsBlockedPlatforms(t *testing.T) {
	s, _ := setup(t, &fakeAdapter{name: "ebay"})
	s.blockedPlatforms["ebay"] = true

	assert.Equal(t, "", s.pickPlatform())
}

type testError string

func (e testError) Error() string { return string(e) }

func assertError(msg string) error { return testError(msg) }
