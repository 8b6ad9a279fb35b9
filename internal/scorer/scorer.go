// Package scorer implements the deterministic threat-scoring function
// that turns a normalized Listing plus the keyword that surfaced it into
// a ThreatAssessment. No state, no I/O: a pure function over the
// indicator tables in indicators.go.
package scorer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wildguard/sentinel/internal/model"
)

var compiledHTPatterns []*regexp.Regexp

func init() {
	compiledHTPatterns = make([]*regexp.Regexp, len(htCodedPatterns))
	for i, p := range htCodedPatterns {
		compiledHTPatterns[i] = regexp.MustCompile(p.Pattern)
	}
}

// Thresholds gates the wildlife/human-trafficking raw scores against the
// level and category decisions. Injected so callers can tune without
// touching indicator data.
type Thresholds struct {
	WildlifeMin int // minimum raw wildlife score to count as a wildlife hit
	HTMin       int // minimum raw human-trafficking score to count as an HT hit
}

// DefaultThresholds mirrors the Python reference implementation's
// constants.
var DefaultThresholds = Thresholds{WildlifeMin: 25, HTMin: 30}

type scoreBreakdown struct {
	raw         int
	indicators  []string
	description string
}

// Analyze scores one listing against one keyword+platform context and
// returns the full assessment. text is the searchable surface: title,
// description, and the keyword that surfaced the listing, joined and
// lowercased once. Price text and location feed the separate price/URL
// risk bumps below, not the indicator haystack.
func Analyze(l model.Listing, thresholds Thresholds) model.ThreatAssessment {
	text := strings.ToLower(strings.Join([]string{l.Title, l.Description, l.SearchTerm}, " "))

	wildlife := scoreWildlife(text)
	ht := scoreHumanTrafficking(text)

	mult := platformMultiplier(l.Platform)
	wildlifeScore := int(float64(wildlife.raw) * mult)
	htScore := int(float64(ht.raw) * mult)

	fpReduction := scoreFalsePositiveReduction(text)
	wildlifeScore += fpReduction
	htScore += fpReduction

	priceRisk := analyzePriceRisk(l.PriceText)
	urlRisk := analyzeURLRisk(l.URL)
	wildlifeScore += priceRisk + urlRisk
	htScore += priceRisk + urlRisk

	wildlifeScore = clamp(wildlifeScore, 0, 100)
	htScore = clamp(htScore, 0, 100)

	category := determineCategory(wildlifeScore, htScore, thresholds)
	finalScore := clamp(max(wildlifeScore, htScore), 0, 100)
	level := determineLevel(finalScore)

	indicatorCount := len(wildlife.indicators) + len(ht.indicators)
	confidence := calculateConfidence(finalScore, indicatorCount)
	fpRisk := scoreFalsePositiveRisk(fpReduction, confidence)
	review := requiresHumanReview(finalScore, category, confidence)

	reasoning := buildReasoning(category, wildlife, ht, fpReduction, fpRisk, priceRisk, urlRisk)

	return model.ThreatAssessment{
		Score:               finalScore,
		Level:               level,
		Category:            category,
		Confidence:          confidence,
		FalsePositiveRisk:   fpRisk,
		RequiresHumanReview: review,
		WildlifeIndicators:  wildlife.indicators,
		HTIndicators:        ht.indicators,
		Reasoning:           reasoning,
	}
}

func scoreWildlife(text string) scoreBreakdown {
	var b scoreBreakdown
	for category, terms := range wildlifeIndicators {
		_ = category
		for term, weight := range terms {
			if strings.Contains(text, term) {
				b.raw += weight
				b.indicators = append(b.indicators, term)
			}
		}
	}
	sort.Strings(b.indicators)
	return b
}

func scoreHumanTrafficking(text string) scoreBreakdown {
	var b scoreBreakdown
	for category, terms := range humanTraffickingIndicators {
		_ = category
		for term, weight := range terms {
			if strings.Contains(text, term) {
				b.raw += weight
				b.indicators = append(b.indicators, term)
			}
		}
	}
	for i, re := range compiledHTPatterns {
		if re.MatchString(text) {
			b.raw += htCodedPatterns[i].Weight
			b.indicators = append(b.indicators, htCodedPatterns[i].Description)
		}
	}
	sort.Strings(b.indicators)
	return b
}

// scoreFalsePositiveReduction sums the (negative) score adjustment from
// every legitimate-use term found in text.
func scoreFalsePositiveReduction(text string) int {
	adjustment := 0
	for _, terms := range falsePositiveReducers {
		for term, weight := range terms {
			if strings.Contains(text, term) {
				adjustment += weight
			}
		}
	}
	return adjustment
}

// scoreFalsePositiveRisk turns the raw reduction and the assessment's
// confidence into a risk fraction in [0,1]. A heavy reduction is itself
// strong evidence of a false positive; short of that, risk tracks how
// little the indicators alone back the score.
func scoreFalsePositiveRisk(fpReduction int, confidence float64) float64 {
	switch {
	case fpReduction <= -10:
		return minFloat(0.8, float64(-fpReduction)/30)
	case confidence < 0.3:
		return 0.6
	case confidence > 0.8:
		return 0.1
	default:
		return 0.3
	}
}

// analyzePriceRisk adds a small positive bump for "cash only"/"no paypal"
// style phrasing embedded in the price text, and a bump for suspiciously
// absent pricing.
func analyzePriceRisk(priceText string) int {
	lower := strings.ToLower(priceText)
	switch {
	case strings.Contains(lower, "cash only"):
		return 8
	case strings.Contains(lower, "no paypal"), strings.Contains(lower, "wire transfer only"):
		return 6
	case priceText == "":
		return 3
	default:
		return 0
	}
}

// analyzeURLRisk flags URL path segments that look like evasive or
// deep-linked private listings.
func analyzeURLRisk(rawURL string) int {
	lower := strings.ToLower(rawURL)
	risk := 0
	for _, marker := range []string{"private", "deleted", "archive.org", "cache:"} {
		if strings.Contains(lower, marker) {
			risk += 5
		}
	}
	return risk
}

// categoryDominanceMargin bounds how close two qualifying scores must be
// before a listing is classified BOTH instead of attributed to whichever
// table scored higher. A listing rich in wildlife terms that merely
// shares a few generic suspicious phrases (cash only, discrete) with the
// human-trafficking table should still read as WILDLIFE.
const categoryDominanceMargin = 10

func determineCategory(wildlifeScore, htScore int, t Thresholds) model.ThreatCategory {
	wildlifeHit := wildlifeScore >= t.WildlifeMin
	htHit := htScore >= t.HTMin
	switch {
	case wildlifeHit && htHit:
		diff := wildlifeScore - htScore
		if diff >= -categoryDominanceMargin && diff <= categoryDominanceMargin {
			return model.CategoryBoth
		}
		if diff > 0 {
			return model.CategoryWildlife
		}
		return model.CategoryHumanTrafficking
	case wildlifeHit:
		return model.CategoryWildlife
	case htHit:
		return model.CategoryHumanTrafficking
	default:
		return model.CategorySafe
	}
}

func determineLevel(score int) model.ThreatLevel {
	switch {
	case score >= 80:
		return model.LevelCritical
	case score >= 60:
		return model.LevelHigh
	case score >= 40:
		return model.LevelMedium
	case score >= 20:
		return model.LevelLow
	default:
		return model.LevelSafe
	}
}

// calculateConfidence weighs how far the final score sits above zero
// against how many distinct indicators backed it. A high score built on
// one indicator is less trustworthy than the same score built on five.
func calculateConfidence(finalScore, indicatorCount int) float64 {
	confidence := minFloat(0.9, float64(finalScore)/100) + minFloat(0.3, 0.05*float64(indicatorCount))
	return clampFloat(confidence, 0.1, 1.0)
}

func requiresHumanReview(score int, category model.ThreatCategory, confidence float64) bool {
	if score >= 80 {
		return true
	}
	if score >= 50 && confidence >= 0.7 {
		return true
	}
	if (category == model.CategoryHumanTrafficking || category == model.CategoryBoth) && score >= 45 {
		return true
	}
	return false
}

func buildReasoning(category model.ThreatCategory, wildlife, ht scoreBreakdown, fpReduction int, fpRisk float64, priceRisk, urlRisk int) string {
	var parts []string
	if len(wildlife.indicators) > 0 {
		parts = append(parts, fmt.Sprintf("wildlife indicators: %s", strings.Join(wildlife.indicators, ", ")))
	}
	if len(ht.indicators) > 0 {
		parts = append(parts, fmt.Sprintf("human-trafficking indicators: %s", strings.Join(ht.indicators, ", ")))
	}
	if fpReduction < 0 {
		parts = append(parts, "false-positive signals present (risk="+strconv.FormatFloat(fpRisk, 'f', 2, 64)+")")
	}
	if priceRisk > 0 {
		parts = append(parts, "suspicious pricing language")
	}
	if urlRisk > 0 {
		parts = append(parts, "suspicious URL pattern")
	}
	if len(parts) == 0 {
		return "no indicators matched; classified " + string(category)
	}
	return strings.Join(parts, "; ")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
