package dedup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard/sentinel/internal/model"
)

func listing(url, title string) model.Listing {
	return model.Listing{URL: url, Title: title, ObservedAt: time.Now()}
}

func TestObserve_Idempotence(t *testing.T) {
	c := New(1000, 500)
	l := listing("https://example.com/item/1", "Antique ivory carving")

	assert.True(t, c.Observe(l))
	assert.False(t, c.Observe(l))
	assert.False(t, c.Observe(l))
}

func TestNormalizeURL_TrackingParamsIgnored(t *testing.T) {
	base := "https://Example.com/Item/1?utm_source=x&fbclid=y"
	withMore := "https://example.com/item/1/?ref=z&source=w"

	assert.Equal(t, NormalizeURL(base), NormalizeURL(withMore))
}

func TestObserve_TrackingParamVariantsAreDuplicates(t *testing.T) {
	c := New(1000, 500)
	require.True(t, c.Observe(listing("https://example.com/item/1", "Widget")))
	assert.False(t, c.Observe(listing("https://example.com/item/1?utm_source=newsletter", "Widget")))
}

func TestObserve_DistinctTitleAndURLAreNovel(t *testing.T) {
	c := New(1000, 500)
	require.True(t, c.Observe(listing("https://example.com/1", "Widget one")))
	assert.True(t, c.Observe(listing("https://example.com/2", "Widget two")))
}

func TestEviction_ReducesToLowWatermark(t *testing.T) {
	c := New(10, 5)
	for i := 0; i < 12; i++ {
		c.Observe(listing("https://example.com/"+string(rune('a'+i)), "title"+string(rune('a'+i))))
	}
	assert.LessOrEqual(t, c.Size(), 10)
}

func TestSnapshotAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	c := New(1000, 500)
	c.Observe(listing("https://example.com/1", "Widget"))
	require.NoError(t, c.Snapshot(path))

	c2 := New(1000, 500)
	c2.Load(path)
	assert.False(t, c2.Observe(listing("https://example.com/1", "Widget")))
}
