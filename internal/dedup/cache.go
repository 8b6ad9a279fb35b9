// Package dedup implements the process-local URL and title-hash sets
// that suppress re-scoring of listings already seen this process
// lifetime. The database unique constraint on listing_url remains the
// authoritative dedup layer; this cache is an optimization.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand/v2"
	"net/url"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wildguard/sentinel/internal/model"
)

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"ref":          true,
	"source":       true,
}

// Cache holds the in-memory URL and title-hash sets. The zero value is
// not usable (its maps are nil); construct a Cache with New.
type Cache struct {
	mu            sync.Mutex
	seenURLs      map[string]bool
	seenTitles    map[string]bool
	highWatermark int
	lowWatermark  int
}

// New creates a Cache with the given eviction watermarks.
func New(highWatermark, lowWatermark int) *Cache {
	if highWatermark <= 0 {
		highWatermark = 150_000
	}
	if lowWatermark <= 0 || lowWatermark >= highWatermark {
		lowWatermark = highWatermark * 2 / 3
	}
	return &Cache{
		seenURLs:      make(map[string]bool),
		seenTitles:    make(map[string]bool),
		highWatermark: highWatermark,
		lowWatermark:  lowWatermark,
	}
}

// NormalizeURL lowercases scheme, host and path, strips every utm_* query
// parameter plus the other known tracking parameters, and strips a
// trailing slash, so cosmetically distinct URLs
// referring to the same listing hash identically.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.ToLower(strings.TrimSuffix(u.Path, "/"))

	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			lp := strings.ToLower(param)
			if trackingParams[lp] || strings.HasPrefix(lp, "utm_") {
				q.Del(param)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// titleHash returns a 16-byte (32 hex char) hash of the lowercased,
// whitespace-collapsed title.
func titleHash(title string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Observe returns true iff the listing is novel, recording its URL and
// title hash as a side effect.
func (c *Cache) Observe(l model.Listing) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	normURL := NormalizeURL(l.URL)
	thash := titleHash(l.Title)

	if c.seenURLs[normURL] || c.seenTitles[thash] {
		return false
	}

	c.seenURLs[normURL] = true
	c.seenTitles[thash] = true

	if len(c.seenURLs) > c.highWatermark {
		c.evictLocked()
	}

	return true
}

// evictLocked retains a random sample of lowWatermark URL entries. This
// is intentionally lossy: the cache is an optimization, not the
// authoritative dedup layer.
func (c *Cache) evictLocked() {
	keys := make([]string, 0, len(c.seenURLs))
	for k := range c.seenURLs {
		keys = append(keys, k)
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	retained := make(map[string]bool, c.lowWatermark)
	for i := 0; i < c.lowWatermark && i < len(keys); i++ {
		retained[keys[i]] = true
	}
	c.seenURLs = retained

	zap.L().Info("dedup: evicted URL cache to low watermark",
		zap.Int("retained", len(c.seenURLs)),
		zap.Int("high_watermark", c.highWatermark),
	)
}

// snapshot is the on-disk shape written by Snapshot and read by Load.
type snapshot struct {
	SeenURLs   []string `json:"seen_urls"`
	SeenTitles []string `json:"seen_titles"`
}

// Snapshot flushes the current URL and title-hash sets to path.
func (c *Cache) Snapshot(path string) error {
	c.mu.Lock()
	snap := snapshot{
		SeenURLs:   make([]string, 0, len(c.seenURLs)),
		SeenTitles: make([]string, 0, len(c.seenTitles)),
	}
	for u := range c.seenURLs {
		snap.SeenURLs = append(snap.SeenURLs, u)
	}
	for t := range c.seenTitles {
		snap.SeenTitles = append(snap.SeenTitles, t)
	}
	c.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a prior snapshot from path on a best-effort basis: a
// missing or unreadable file is ignored silently, a malformed one is
// logged, and in both cases the cache simply starts empty.
func (c *Cache) Load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		zap.L().Warn("dedup: snapshot load error, starting empty", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range snap.SeenURLs {
		c.seenURLs[u] = true
	}
	for _, t := range snap.SeenTitles {
		c.seenTitles[t] = true
	}
}

// Size returns the current number of tracked URLs, for reporting.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seenURLs)
}
