// Package keywordcorpus loads the immutable, tiered, multilingual
// keyword set presented to platform adapters.
package keywordcorpus

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wildguard/sentinel/internal/model"
)

// fileDocument mirrors the external multilingual keyword file shape:
// { keywords_by_language: { <lang>: [<term>...] }, total_keywords, total_languages, version }.
type fileDocument struct {
	KeywordsByLanguage map[string][]string `json:"keywords_by_language"`
	TotalKeywords      int                 `json:"total_keywords"`
	TotalLanguages     int                 `json:"total_languages"`
	Version            string              `json:"version"`
}

// Corpus is the read-only, loaded keyword set, shared across adapters.
type Corpus struct {
	all    []model.Keyword
	byTier map[model.Tier][]model.Keyword
}

// Load reads path, expecting a fileDocument. If the file is missing or the
// retained keyword count falls below minAcceptedFrac of declaredTotal it
// falls back to the embedded tiered set and logs a warning.
func Load(path string, minAcceptedFrac float64) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("keywordcorpus: file not found, falling back to embedded set", zap.String("path", path))
			return embeddedFallback(), nil
		}
		return nil, eris.Wrapf(err, "keywordcorpus: read %s", path)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		zap.L().Warn("keywordcorpus: malformed file, falling back to embedded set", zap.Error(err))
		return embeddedFallback(), nil
	}

	c := fromLanguageBuckets(doc.KeywordsByLanguage)

	if doc.TotalKeywords > 0 && float64(len(c.all)) < float64(doc.TotalKeywords)*minAcceptedFrac {
		zap.L().Warn("keywordcorpus: retained count below acceptance threshold, falling back",
			zap.Int("retained", len(c.all)),
			zap.Int("declared", doc.TotalKeywords),
			zap.Float64("min_accepted_frac", minAcceptedFrac),
		)
		return embeddedFallback(), nil
	}

	return c, nil
}

// fromLanguageBuckets concatenates per-language term lists in a
// deterministic (sorted) language order, preserving each language's
// internal order, deduplicating case-insensitively and keeping the first
// occurrence. Every term is tagged TierGeneral: the JSON file carries no
// tier information.
func fromLanguageBuckets(byLang map[string][]string) *Corpus {
	c := &Corpus{byTier: make(map[model.Tier][]model.Keyword)}
	seen := make(map[string]bool)

	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sortStrings(langs)

	for _, lang := range langs {
		for _, term := range byLang[lang] {
			key := strings.ToLower(term)
			if seen[key] {
				continue
			}
			seen[key] = true
			kw := model.Keyword{Text: term, Language: lang, Tier: model.TierGeneral}
			c.all = append(c.all, kw)
			c.byTier[kw.Tier] = append(c.byTier[kw.Tier], kw)
		}
	}
	return c
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// GetAll returns every retained keyword, in load order.
func (c *Corpus) GetAll() []model.Keyword {
	out := make([]model.Keyword, len(c.all))
	copy(out, c.all)
	return out
}

// GetByTier returns every retained keyword tagged with the given tier.
func (c *Corpus) GetByTier(tier model.Tier) []model.Keyword {
	src := c.byTier[tier]
	out := make([]model.Keyword, len(src))
	copy(out, src)
	return out
}

// Size returns the total number of retained keywords.
func (c *Corpus) Size() int {
	return len(c.all)
}

// embeddedFallback builds the small tiered corpus (critical, high and
// medium tiers; no general tier) used when the
// external keyword file cannot be loaded or trusted. Terms are grounded
// on the three CITES/IUCN-derived tier lists maintained alongside the
// original species keyword catalogue.
func embeddedFallback() *Corpus {
	c := &Corpus{byTier: make(map[model.Tier][]model.Keyword)}
	add := func(tier model.Tier, terms []string) {
		for _, t := range terms {
			kw := model.Keyword{Text: t, Language: "en", Tier: tier}
			c.all = append(c.all, kw)
			c.byTier[tier] = append(c.byTier[tier], kw)
		}
	}
	add(model.TierCritical, embeddedCritical)
	add(model.TierHigh, embeddedHigh)
	add(model.TierMedium, embeddedMedium)
	return c
}

// embeddedCritical mirrors TIER_1_CRITICAL_SPECIES (CITES Appendix I).
var embeddedCritical = []string{
	"african elephant", "asian elephant", "elephant ivory", "ivory tusk", "ivory carving",
	"black rhino", "white rhino", "javan rhino", "sumatran rhino", "rhino horn", "rhinoceros horn",
	"siberian tiger", "south china tiger", "sumatran tiger", "tiger bone", "tiger skin", "tiger tooth",
	"amur leopard", "arabian leopard", "persian leopard", "leopard skin", "leopard fur",
	"giant panda", "snow leopard", "jaguar pelt", "cheetah fur",
	"pangolin scale", "pangolin armor", "chinese pangolin", "sunda pangolin",
	"vaquita porpoise", "manatee", "dugong", "right whale", "blue whale",
	"hawksbill turtle", "leatherback turtle", "green turtle", "turtle shell", "tortoise shell",
	"mountain gorilla", "cross river gorilla", "orangutan", "bornean orangutan", "sumatran orangutan",
	"bonobo", "chimpanzee", "gibbon",
}

// embeddedHigh mirrors TIER_2_HIGH_PRIORITY_SPECIES (CITES Appendix II).
var embeddedHigh = []string{
	"polar bear", "grizzly bear", "sun bear", "sloth bear", "bear bile", "bear paw", "bear gallbladder",
	"african lion", "lion bone", "lion tooth", "lion claw", "asiatic lion", "barbary lion",
	"clouded leopard", "lynx fur", "bobcat pelt", "ocelot fur", "margay fur", "serval skin",
	"wolf pelt", "grey wolf", "mexican wolf", "red wolf", "arctic wolf", "timber wolf",
	"mako shark", "great white shark", "hammerhead shark", "shark fin", "shark cartilage",
	"bluefin tuna", "sturgeon caviar", "beluga caviar", "paddlefish caviar",
	"african grey parrot", "macaw blue", "scarlet macaw", "hyacinth macaw",
	"golden eagle", "bald eagle", "harpy eagle", "eagle feather",
}

// embeddedMedium mirrors TIER_3_MEDIUM_PRIORITY_SPECIES.
var embeddedMedium = []string{
	"saiga antelope", "saiga horn", "addax antelope", "oryx horn", "gazelle horn",
	"snow monkey", "proboscis monkey", "langur monkey", "macaque",
	"crocodile skin", "alligator leather", "caiman leather", "python leather",
	"monitor lizard", "iguana leather", "lizard skin", "snake skin",
	"antique carving", "tribal art", "ethnic jewelry", "vintage specimen", "museum quality",
}
