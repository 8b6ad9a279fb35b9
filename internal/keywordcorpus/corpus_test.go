package keywordcorpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard/sentinel/internal/model"
)

func TestLoad_MissingFileFallsBackToEmbedded(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.json"), 0.9)
	require.NoError(t, err)
	assert.Greater(t, c.Size(), 0)
	assert.NotEmpty(t, c.GetByTier(model.TierCritical))
}

func TestLoad_WellFormedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.json")

	doc := fileDocument{
		KeywordsByLanguage: map[string][]string{
			"en": {"ivory", "rhino horn", "antique"},
			"es": {"marfil"},
		},
		TotalKeywords:  4,
		TotalLanguages: 2,
		Version:        "test",
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	c, err := Load(path, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Size())
}

func TestLoad_BelowAcceptanceThresholdFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.json")

	doc := fileDocument{
		KeywordsByLanguage: map[string][]string{
			"en": {"ivory"},
		},
		TotalKeywords: 100, // declared much higher than what's actually present
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	c, err := Load(path, 0.9)
	require.NoError(t, err)
	// Falls back to the embedded set, which is much larger than 1 term.
	assert.Greater(t, c.Size(), 1)
}

func TestDeduplicationCaseInsensitiveKeepsFirstOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.json")

	doc := fileDocument{
		KeywordsByLanguage: map[string][]string{
			"en": {"Ivory", "IVORY", "ivory", "Rhino Horn"},
		},
		TotalKeywords: 4,
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	c, err := Load(path, 0.01)
	require.NoError(t, err)
	require.Equal(t, 2, c.Size())
	assert.Equal(t, "Ivory", c.GetAll()[0].Text)
}

func TestGetAllReturnsCopy(t *testing.T) {
	c := embeddedFallback()
	all := c.GetAll()
	all[0].Text = "mutated"
	assert.NotEqual(t, "mutated", c.GetAll()[0].Text)
}
