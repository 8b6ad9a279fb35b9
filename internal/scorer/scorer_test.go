package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wildguard/sentinel/internal/model"
)

func listingFor(platform, title string) model.Listing {
	return model.Listing{
		Platform:   platform,
		Title:      title,
		ObservedAt: time.Now(),
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	l := listingFor("ebay", "Carved ivory elephant tusk, estate piece, cash only, discrete shipping")
	a1 := Analyze(l, DefaultThresholds)
	a2 := Analyze(l, DefaultThresholds)
	assert.Equal(t, a1, a2)
}

func TestAnalyze_IvoryListingIsCriticalWildlife(t *testing.T) {
	l := listingFor("ebay", "Antique carved ivory elephant tusk, estate piece, cash only, discrete shipping")
	a := Analyze(l, DefaultThresholds)

	assert.GreaterOrEqual(t, a.Score, 80)
	assert.Equal(t, model.LevelCritical, a.Level)
	assert.Equal(t, model.CategoryWildlife, a.Category)
	assert.True(t, a.RequiresHumanReview)
	assert.Contains(t, a.WildlifeIndicators, "ivory")
}

func TestAnalyze_LicensedMassageClinicIsSafe(t *testing.T) {
	l := listingFor("gumtree", "Licensed massage therapist providing wellness treatments at our "+
		"registered clinic inside the hospital. Educational and research-based technique, "+
		"veterinary rehabilitation support available.")
	a := Analyze(l, DefaultThresholds)

	assert.LessOrEqual(t, a.Score, 20)
	assert.Contains(t, []model.ThreatLevel{model.LevelSafe, model.LevelLow}, a.Level)
	assert.Equal(t, model.CategorySafe, a.Category)
	assert.GreaterOrEqual(t, a.FalsePositiveRisk, 0.5)
}

func TestAnalyze_PlasticToyReplicaIsSafe(t *testing.T) {
	l := listingFor("ebay", "Plastic toy elephant figurine, decorative replica, great for kids room")
	a := Analyze(l, DefaultThresholds)

	assert.LessOrEqual(t, a.Score, 20)
	assert.Equal(t, model.CategorySafe, a.Category)
}

func TestAnalyze_PrivateCompanionOutcallIsHumanTrafficking(t *testing.T) {
	l := listingFor("craigslist", "24/7 available private companion service, outcall service, "+
		"discrete encounter guaranteed, cash only.")
	a := Analyze(l, DefaultThresholds)

	assert.GreaterOrEqual(t, a.Score, 70)
	assert.Equal(t, model.CategoryHumanTrafficking, a.Category)
	assert.True(t, a.RequiresHumanReview)
}

func TestAnalyze_PlatformMultiplierIncreasesRiskyPlatformScore(t *testing.T) {
	title := "Companion service available"
	craigslist := Analyze(listingFor("craigslist", title), DefaultThresholds)
	ebay := Analyze(listingFor("ebay", title), DefaultThresholds)

	assert.Greater(t, craigslist.Score, ebay.Score)
}

func TestAnalyze_MoreIndicatorsIncreaseConfidence(t *testing.T) {
	weak := Analyze(listingFor("ebay", "ivory bracelet"), DefaultThresholds)
	strong := Analyze(listingFor("ebay", "ivory elephant tusk rhino horn tiger bone pangolin scale"), DefaultThresholds)

	assert.GreaterOrEqual(t, strong.Confidence, weak.Confidence)
}

func TestAnalyze_NoIndicatorListingIsSafe(t *testing.T) {
	a := Analyze(listingFor("ebay", "Blue cotton t-shirt, size large"), DefaultThresholds)
	assert.Equal(t, model.CategorySafe, a.Category)
	assert.Equal(t, model.LevelSafe, a.Level)
	assert.False(t, a.RequiresHumanReview)
}

func TestDetermineLevel_MediumBoundaryIsForty(t *testing.T) {
	assert.Equal(t, model.LevelLow, determineLevel(39))
	assert.Equal(t, model.LevelMedium, determineLevel(40))
	assert.Equal(t, model.LevelMedium, determineLevel(59))
	assert.Equal(t, model.LevelHigh, determineLevel(60))
}

func TestCalculateConfidence_MatchesExactFormula(t *testing.T) {
	// score 60 -> min(0.9, 0.6)=0.6; 3 indicators -> min(0.3, 0.15)=0.15; total 0.75.
	assert.InDelta(t, 0.75, calculateConfidence(60, 3), 0.0001)

	// score 100 -> min(0.9, 1.0)=0.9; 8 indicators -> min(0.3, 0.4)=0.3; sums to
	// 1.2 but clamps to the 1.0 ceiling.
	assert.InDelta(t, 1.0, calculateConfidence(100, 8), 0.0001)

	// score 0, 0 indicators -> 0.0, clamped up to the 0.1 floor.
	assert.InDelta(t, 0.1, calculateConfidence(0, 0), 0.0001)
}

func TestScoreFalsePositiveRisk_HeavyReductionDominates(t *testing.T) {
	// fpReduction -30 -> min(0.8, 30/30=1.0) = 0.8, regardless of confidence.
	assert.InDelta(t, 0.8, scoreFalsePositiveRisk(-30, 0.9), 0.0001)
	// fpReduction -15 -> min(0.8, 15/30=0.5) = 0.5.
	assert.InDelta(t, 0.5, scoreFalsePositiveRisk(-15, 0.9), 0.0001)
}

func TestScoreFalsePositiveRisk_LowConfidenceRaisesRisk(t *testing.T) {
	assert.InDelta(t, 0.6, scoreFalsePositiveRisk(0, 0.2), 0.0001)
}

func TestScoreFalsePositiveRisk_HighConfidenceLowersRisk(t *testing.T) {
	assert.InDelta(t, 0.1, scoreFalsePositiveRisk(0, 0.85), 0.0001)
}

func TestScoreFalsePositiveRisk_MidConfidenceIsDefault(t *testing.T) {
	assert.InDelta(t, 0.3, scoreFalsePositiveRisk(0, 0.5), 0.0001)
}

func TestRequiresHumanReview_ScoreAloneTriggersAtEighty(t *testing.T) {
	assert.True(t, requiresHumanReview(80, model.CategoryWildlife, 0.1))
}

func TestRequiresHumanReview_ModerateScoreNeedsHighConfidence(t *testing.T) {
	assert.True(t, requiresHumanReview(50, model.CategoryWildlife, 0.7))
	assert.False(t, requiresHumanReview(50, model.CategoryWildlife, 0.69))
}

func TestRequiresHumanReview_HTCategoryLowersBarToFortyFive(t *testing.T) {
	assert.True(t, requiresHumanReview(45, model.CategoryHumanTrafficking, 0.1))
	assert.True(t, requiresHumanReview(45, model.CategoryBoth, 0.1))
	assert.False(t, requiresHumanReview(44, model.CategoryHumanTrafficking, 0.1))
	assert.False(t, requiresHumanReview(45, model.CategoryWildlife, 0.1))
}
