// Package model defines the flat record types shared across the
// surveillance pipeline: keywords, cursors, listings, assessments, and
// persisted detections.
package model

import "time"

// Tier is a priority bucket over keywords.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierGeneral  Tier = "general"
)

// Keyword is a short multilingual term tagged with a tier at load time.
type Keyword struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Tier     Tier   `json:"tier"`
}

// KeywordCursor is the persistent (platform, tier) offset into the
// keyword corpus handed out by the Cursor Store.
type KeywordCursor struct {
	Platform        string     `json:"platform"`
	Tier            Tier       `json:"tier"`
	NextIndex       int        `json:"next_index"`
	CompletedCycles int        `json:"completed_cycles"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
}

// Listing is a normalized marketplace record produced by a platform adapter.
type Listing struct {
	Platform     string    `json:"platform"`
	SearchTerm   string    `json:"search_term"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PriceText    string    `json:"price_text,omitempty"`
	URL          string    `json:"url"`
	NativeItemID string    `json:"native_item_id,omitempty"`
	Location     string    `json:"location,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
	ImageURL     string    `json:"image_url,omitempty"`
}

// ThreatLevel is a coarse severity bucket derived from Score.
type ThreatLevel string

const (
	LevelSafe     ThreatLevel = "SAFE"
	LevelLow      ThreatLevel = "LOW"
	LevelMedium   ThreatLevel = "MEDIUM"
	LevelHigh     ThreatLevel = "HIGH"
	LevelCritical ThreatLevel = "CRITICAL"
)

// ThreatCategory classifies which indicator table drove the score.
type ThreatCategory string

const (
	CategorySafe             ThreatCategory = "SAFE"
	CategoryWildlife         ThreatCategory = "WILDLIFE"
	CategoryHumanTrafficking ThreatCategory = "HUMAN_TRAFFICKING"
	CategoryBoth             ThreatCategory = "BOTH"
)

// ThreatAssessment is the pure output of the Threat Scorer.
type ThreatAssessment struct {
	Score               int            `json:"score"`
	Level               ThreatLevel    `json:"level"`
	Category            ThreatCategory `json:"category"`
	Confidence          float64        `json:"confidence"`
	FalsePositiveRisk   float64        `json:"false_positive_risk"`
	RequiresHumanReview bool           `json:"requires_human_review"`
	WildlifeIndicators  []string       `json:"wildlife_indicators"`
	HTIndicators        []string       `json:"ht_indicators"`
	Reasoning           string         `json:"reasoning"`
}

// Detection is the persisted row mapping a Listing + ThreatAssessment to
// the detections table schema.
type Detection struct {
	// RunTag identifies the scan session that produced this detection.
	// It is folded into EvidenceID rather than persisted as its own
	// column; carried here so callers building EvidenceID don't need a
	// side channel for it.
	RunTag              string         `json:"-"`
	EvidenceID          string         `db:"evidence_id" json:"evidence_id"`
	ObservedAt          time.Time      `db:"observed_at" json:"observed_at"`
	Platform            string         `db:"platform" json:"platform"`
	ThreatScore         int            `db:"threat_score" json:"threat_score"`
	ThreatLevel         ThreatLevel    `db:"threat_level" json:"threat_level"`
	ThreatCategory      ThreatCategory `db:"threat_category" json:"threat_category"`
	SpeciesInvolved      string         `db:"species_involved" json:"species_involved,omitempty"`
	AlertSent            bool           `db:"alert_sent" json:"alert_sent"`
	Status              string         `db:"status" json:"status"`
	ListingTitle        string         `db:"listing_title" json:"listing_title"`
	ListingURL          string         `db:"listing_url" json:"listing_url"`
	ListingPrice        string         `db:"listing_price" json:"listing_price"`
	SearchTerm          string         `db:"search_term" json:"search_term"`
	Description         string         `db:"description" json:"description,omitempty"`
	ConfidenceScore     float64        `db:"confidence_score" json:"confidence_score"`
	RequiresHumanReview bool           `db:"requires_human_review" json:"requires_human_review"`
}

// DedupEntry is the pair of hashes tracked in memory by the Dedup Cache.
type DedupEntry struct {
	URLHash   string `json:"url_hash"`
	TitleHash string `json:"title_hash"`
}

// RunSummary captures one Supervisor session for the session report.
type RunSummary struct {
	RunTag              string         `db:"run_tag" json:"run_tag"`
	StartedAt           time.Time      `db:"started_at" json:"started_at"`
	EndedAt             time.Time      `db:"ended_at" json:"ended_at"`
	Cycles              int            `db:"cycles" json:"cycles"`
	ListingsScanned     int            `db:"listings_scanned" json:"listings_scanned"`
	DetectionsStored    int            `db:"detections_stored" json:"detections_stored"`
	Duplicates          int            `db:"duplicates" json:"duplicates"`
	Errors              int            `db:"errors" json:"errors"`
	ByPlatform          map[string]int `db:"by_platform" json:"by_platform"`
	ByLevel             map[string]int `db:"by_level" json:"by_level"`
	TopRejectionReasons map[string]int `db:"top_rejection_reasons" json:"top_rejection_reasons"`
}
