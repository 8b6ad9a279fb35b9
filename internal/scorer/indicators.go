package scorer

// Indicator tables are configuration data, not code. Weights are tiered:
// critical 35-45, high 25-35, medium 15-25, suspicious 10-20, and
// negative false-positive reducers -5 to -20.

// wildlifeIndicators maps category name to term->weight.
var wildlifeIndicators = map[string]map[string]int{
	"critical_species": {
		"ivory": 45, "elephant ivory": 45, "rhino horn": 45, "rhinoceros horn": 45,
		"tiger bone": 40, "pangolin scale": 40, "bear bile": 38, "tiger skin": 42,
		"elephant tusk": 45, "carved ivory": 42, "rhino horn powder": 43,
		"pangolin armor": 40, "tiger claw": 35, "bear gallbladder": 38,
	},
	"high_risk_products": {
		"traditional medicine": 30, "chinese medicine": 28, "tiger wine": 35,
		"shark fin": 32, "turtle shell": 30, "leopard skin": 33,
		"wildlife carving": 28, "bone carving": 25, "horn carving": 30,
		"exotic leather": 27, "crocodile leather": 25, "snake skin": 25,
	},
	"medium_risk_items": {
		"antique carving": 20, "tribal art": 18, "ethnic jewelry": 15,
		"vintage specimen": 22, "museum quality": 20, "rare specimen": 18,
		"scientific specimen": 16, "taxidermy": 20, "mounted head": 22,
	},
	"suspicious_terms": {
		"discrete shipping": 15, "no questions asked": 18, "cash only": 12,
		"private collection": 10, "inherited piece": 8, "grandfather collection": 10,
		"estate piece": 8, "family heirloom": 6, "pre-ban": 15, "pre-1975": 12,
	},
}

// humanTraffickingIndicators maps category name to term->weight.
var humanTraffickingIndicators = map[string]map[string]int{
	"critical_services": {
		"escort service": 45, "companion service": 40, "massage therapy": 35,
		"full service": 48, "outcall service": 42, "incall service": 42,
		"private meeting": 38, "discrete encounter": 45, "24/7 available": 35,
	},
	"high_risk_employment": {
		"no experience required": 30, "housing provided": 32, "visa assistance": 35,
		"cash only": 28, "flexible hours": 25, "immediate start": 27,
		"travel opportunities": 30, "transportation provided": 32,
	},
	"medium_risk_services": {
		"entertainment work": 22, "modeling opportunity": 20, "hostess needed": 25,
		"personal assistant": 15, "stress relief": 18, "therapeutic massage": 16,
		"wellness services": 12, "beauty services": 10,
	},
	"location_indicators": {
		"private apartment": 18, "hotel outcall": 15, "spa": 8,
		"massage parlor": 20, "studio": 10, "private residence": 15,
	},
}

// codedPattern is a regex-backed human-trafficking indicator describing
// coded language rather than a literal substring.
type codedPattern struct {
	Pattern     string
	Weight      int
	Description string
}

var htCodedPatterns = []codedPattern{
	{Pattern: `(?i)\b(full|complete|all inclusive)\s+service\b`, Weight: 25, Description: "coded service language"},
	{Pattern: `(?i)\b(discrete|discreet|confidential)\b`, Weight: 15, Description: "discretion emphasis"},
	{Pattern: `(?i)\b24/?7\b`, Weight: 12, Description: "24/7 availability"},
	{Pattern: `(?i)\bcash\s+only\b`, Weight: 10, Description: "cash only payment"},
}

// falsePositiveReducers maps category name to term->weight (non-positive).
var falsePositiveReducers = map[string]map[string]int{
	"legitimate_business": {
		"restaurant": -15, "hotel": -10, "hospital": -20, "clinic": -15,
		"university": -20, "school": -20, "library": -15, "museum": -10,
		"government": -20, "official": -15, "licensed": -10, "registered": -10,
	},
	"legitimate_products": {
		"toy": -20, "replica": -15, "plastic": -15, "synthetic": -12,
		"artificial": -15, "imitation": -12, "decorative": -8, "costume": -10,
		"book": -12, "magazine": -10, "poster": -8, "artwork": -5,
	},
	"professional_context": {
		"veterinary": -15, "research": -10, "educational": -12, "academic": -10,
		"scientific": -8, "conservation": -20, "rehabilitation": -15, "sanctuary": -15,
	},
}

// platformMultipliers holds per-platform risk multipliers applied to raw
// wildlife/human-trafficking scores before false-positive reduction.
var platformMultipliers = map[string]float64{
	"craigslist":   1.2,
	"gumtree":      1.15,
	"olx":          1.1,
	"avito":        1.1,
	"ebay":         0.95,
	"aliexpress":   1.0,
	"taobao":       1.1,
	"marktplaats":  1.0,
	"mercadolibre": 1.05,
}

func platformMultiplier(platform string) float64 {
	if m, ok := platformMultipliers[platform]; ok {
		return m
	}
	return 1.0
}
