package cursor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard/sentinel/internal/model"
)

func makeKeywords(n int) []model.Keyword {
	kws := make([]model.Keyword, n)
	for i := range kws {
		kws[i] = model.Keyword{Text: "term", Tier: model.TierGeneral}
	}
	return kws
}

func TestNextBatch_WrapAfterSeventeenCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	s := New(path)
	kws := makeKeywords(1000)

	var progress Progress
	for i := 0; i < 17; i++ {
		_, progress = s.NextBatch("ebay", model.TierGeneral, kws, 60)
	}

	assert.Equal(t, 1, progress.CompletedCycles)
	assert.Equal(t, 20, progress.EndIndex)
	cur := s.Cursor("ebay", model.TierGeneral)
	assert.Equal(t, 20, cur.NextIndex)
	assert.Equal(t, 1, cur.CompletedCycles)
}

func TestNextBatch_CursorMonotonicity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	s := New(path)
	kws := makeKeywords(100)

	prevNext := 0
	for i := 0; i < 10; i++ {
		batch, _ := s.NextBatch("avito", model.TierCritical, kws, 12)
		want := (prevNext + len(batch)) % len(kws)
		cur := s.Cursor("avito", model.TierCritical)
		assert.Equal(t, want, cur.NextIndex)
		prevNext = cur.NextIndex
	}
}

func TestNextBatch_CoverageUnionOfFirstBatchesEqualsTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	s := New(path)

	kws := make([]model.Keyword, 26)
	for i := range kws {
		kws[i] = model.Keyword{Text: string(rune('a' + i))}
	}

	seen := make(map[string]bool)
	batchSize := 5
	numBatches := (len(kws) + batchSize - 1) / batchSize
	for i := 0; i < numBatches; i++ {
		batch, _ := s.NextBatch("craigslist", model.TierGeneral, kws, batchSize)
		for _, k := range batch {
			seen[k.Text] = true
		}
	}
	assert.Equal(t, len(kws), len(seen))
}

func TestNew_MissingFileStartsFromZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := New(path)
	cur := s.Cursor("ebay", model.TierGeneral)
	assert.Equal(t, 0, cur.NextIndex)
}

func TestNextBatch_PersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	kws := makeKeywords(50)

	s1 := New(path)
	s1.NextBatch("ebay", model.TierGeneral, kws, 10)

	s2 := New(path)
	cur := s2.Cursor("ebay", model.TierGeneral)
	assert.Equal(t, 10, cur.NextIndex)
}

func TestCoverageReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	s := New(path)
	kws := makeKeywords(100)
	s.NextBatch("ebay", model.TierGeneral, kws, 25)

	report := s.CoverageReport([]string{"ebay", "avito"}, 100)
	require.Contains(t, report, "ebay")
	assert.Equal(t, 25, report["ebay"].KeywordsUsed)
	assert.Equal(t, 0, report["avito"].KeywordsUsed)
}
