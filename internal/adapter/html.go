package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/wildguard/sentinel/internal/model"
)

// minTitleLength is the post-normalization title length below which an
// extracted card is discarded as noise (nav chrome, ads, empty cells).
const minTitleLength = 6

// CardSelectors locates one listing card's fields by element class
// substring. A platform's markup sometimes shifts between an A/B test
// or a redesign; HTMLSelectors.CandidateCards tries each set in
// registration order and keeps the first that yields at least one card.
type CardSelectors struct {
	CardClass  string // substring of the class attribute marking one listing card
	TitleClass string
	PriceClass string
	LinkIsCard bool // if true, the card element itself is the <a> with the href
}

// HTMLSelectors describes, for one platform, how to build a search URL
// and how to locate listing cards in the returned document. Selectors
// are matched by element class substring rather than a full CSS engine,
// mirroring the lightweight matching used elsewhere in this codebase
// against response bodies.
type HTMLSelectors struct {
	// SearchURL builds the search results URL for keyword. locale is the
	// empty string for platforms that don't rotate regions.
	SearchURL func(keyword, locale string) string

	// Locales is the ordered list of locales/cities this platform
	// rotates through to spread traffic and dodge geographic blocks.
	// Empty means the platform has no region rotation.
	Locales []string

	// CandidateCards is tried in order (primary, secondary, fallback);
	// the first set that extracts at least one card wins.
	CandidateCards []CardSelectors
}

// HTMLAdapter fetches and parses a traditional server-rendered search
// results page for platforms without a public API.
type HTMLAdapter struct {
	platform  string
	client    *httpGetter
	selectors HTMLSelectors
}

// httpGetter is the minimal surface HTMLAdapter needs from transport.Client,
// kept narrow so tests can stub it without pulling in the real client.
type httpGetter struct {
	get func(ctx context.Context, rawURL string, headers map[string]string) ([]byte, int, error)
}

// NewHTMLAdapter builds an adapter for platform using fetch to retrieve
// pages and selectors to parse them.
func NewHTMLAdapter(platform string, fetch func(ctx context.Context, rawURL string, headers map[string]string) ([]byte, int, error), selectors HTMLSelectors) *HTMLAdapter {
	return &HTMLAdapter{platform: platform, client: &httpGetter{get: fetch}, selectors: selectors}
}

func (a *HTMLAdapter) Name() string { return a.platform }

// localeFor returns the locale this attempt should use, indexing into
// Locales by attemptNo so successive calls spread across the rotation.
func (a *HTMLAdapter) localeFor(attemptNo int) string {
	if len(a.selectors.Locales) == 0 {
		return ""
	}
	if attemptNo < 0 {
		attemptNo = 0
	}
	return a.selectors.Locales[attemptNo%len(a.selectors.Locales)]
}

// Search fetches the platform's search results page for each keyword in
// turn and extracts listing cards per the configured selectors.
// attemptNo drives locale rotation for platforms that maintain one.
func (a *HTMLAdapter) Search(ctx context.Context, keywords []string, attemptNo int) ([]model.Listing, error) {
	locale := a.localeFor(attemptNo)

	var listings []model.Listing
	for _, keyword := range keywords {
		found, err := a.searchOne(ctx, keyword, locale)
		if err != nil {
			return listings, err
		}
		listings = append(listings, found...)
	}
	return listings, nil
}

func (a *HTMLAdapter) searchOne(ctx context.Context, keyword, locale string) ([]model.Listing, error) {
	rawURL := a.selectors.SearchURL(keyword, locale)
	body, status, err := a.client.get(ctx, rawURL, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, NewSearchError(ErrKindTransient, eris.Wrap(err, a.platform+": fetch search page"))
	}

	blocked, blockType := DetectBlock(status, nil, body)
	if blocked {
		return nil, NewSearchError(ErrKindBlocked, eris.Errorf("%s: blocked (%s)", a.platform, blockType))
	}
	if status == 429 {
		return nil, NewSearchError(ErrKindRateLimited, eris.Errorf("%s: 429", a.platform))
	}
	if status != 200 {
		return nil, NewSearchError(ErrKindPermanent, eris.Errorf("%s: unexpected status %d", a.platform, status))
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, NewSearchError(ErrKindPermanent, eris.Wrap(err, a.platform+": parse html"))
	}

	now := time.Now()
	for _, candidate := range a.selectors.CandidateCards {
		listings := extractCards(doc, candidate, a.platform, keyword, now)
		if len(listings) > 0 {
			return listings, nil
		}
	}
	return nil, nil
}

// extractCards walks doc for every element matching sel.CardClass and
// extracts one Listing per card, discarding cards whose title is empty,
// has no URL, or is shorter than minTitleLength once trimmed.
func extractCards(doc *html.Node, sel CardSelectors, platform, keyword string, now time.Time) []model.Listing {
	var listings []model.Listing
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClassSubstring(n, sel.CardClass) {
			l := extractCard(n, sel, platform, keyword, now)
			if l.Title != "" && l.URL != "" && len(l.Title) >= minTitleLength {
				listings = append(listings, l)
			}
			return // cards don't nest
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return listings
}

func extractCard(card *html.Node, sel CardSelectors, platform, keyword string, now time.Time) model.Listing {
	l := model.Listing{Platform: platform, SearchTerm: keyword, ObservedAt: now}

	if sel.LinkIsCard && card.Data == "a" {
		l.URL = attr(card, "href")
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "a" && l.URL == "" {
				l.URL = attr(n, "href")
			}
			if hasClassSubstring(n, sel.TitleClass) {
				l.Title = strings.TrimSpace(textContent(n))
			}
			if hasClassSubstring(n, sel.PriceClass) {
				l.PriceText = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(card)

	return l
}

func hasClassSubstring(n *html.Node, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(attr(n, "class"), needle)
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// DefaultSelectors returns the per-platform HTMLSelectors wired in by the
// scheduler for platforms that don't have a public API. Craigslist,
// Gumtree, OLX, and MercadoLibre maintain an ordered locale list the
// scheduler rotates through via attemptNo; the rest search one fixed
// global endpoint.
func DefaultSelectors() map[string]HTMLSelectors {
	return map[string]HTMLSelectors{
		"craigslist": {
			SearchURL: func(kw, locale string) string {
				if locale == "" {
					locale = "newyork"
				}
				return fmt.Sprintf("https://%s.craigslist.org/search/sss?query=%s", locale, urlEscape(kw))
			},
			Locales: []string{"newyork", "losangeles", "chicago", "miami", "seattle"},
			CandidateCards: []CardSelectors{
				{CardClass: "cl-search-result", TitleClass: "cl-app-anchor", PriceClass: "priceinfo"},
				{CardClass: "result-row", TitleClass: "result-title", PriceClass: "result-price"},
			},
		},
		"gumtree": {
			SearchURL: func(kw, locale string) string {
				if locale == "" {
					locale = "london"
				}
				return fmt.Sprintf("https://www.gumtree.com/search?search_location=%s&q=%s", locale, urlEscape(kw))
			},
			Locales: []string{"london", "manchester", "birmingham", "glasgow"},
			CandidateCards: []CardSelectors{
				{CardClass: "listing-link", TitleClass: "listing-title", PriceClass: "listing-price", LinkIsCard: true},
				{CardClass: "natural", TitleClass: "listing-title", PriceClass: "ad-price"},
			},
		},
		"avito": {
			SearchURL: func(kw, _ string) string {
				return fmt.Sprintf("https://www.avito.ru/rossiya?q=%s", urlEscape(kw))
			},
			CandidateCards: []CardSelectors{
				{CardClass: "iva-item-root", TitleClass: "iva-item-title", PriceClass: "iva-item-price"},
				{CardClass: "item_table", TitleClass: "item-description-title", PriceClass: "price"},
			},
		},
		"olx": {
			SearchURL: func(kw, locale string) string {
				tld := locale
				if tld == "" {
					tld = "pl"
				}
				return fmt.Sprintf("https://www.olx.%s/items/q-%s", tld, urlEscape(kw))
			},
			Locales: []string{"pl", "in", "ro", "bg", "ua"},
			CandidateCards: []CardSelectors{
				{CardClass: "css-listing-card", TitleClass: "css-listing-title", PriceClass: "css-listing-price"},
				{CardClass: "offer-wrapper", TitleClass: "title-cell", PriceClass: "price"},
			},
		},
		"marktplaats": {
			SearchURL: func(kw, _ string) string {
				return fmt.Sprintf("https://www.marktplaats.nl/q/%s", urlEscape(kw))
			},
			CandidateCards: []CardSelectors{
				{CardClass: "hz-Listing", TitleClass: "hz-Listing-title", PriceClass: "hz-Listing-price"},
			},
		},
		"mercadolibre": {
			SearchURL: func(kw, locale string) string {
				tld := locale
				if tld == "" {
					tld = "com.mx"
				}
				return fmt.Sprintf("https://listado.mercadolibre.%s/%s", tld, urlEscape(kw))
			},
			Locales: []string{"com.mx", "com.ar", "com.co", "cl"},
			CandidateCards: []CardSelectors{
				{CardClass: "ui-search-result", TitleClass: "ui-search-item__title", PriceClass: "price-tag"},
				{CardClass: "results-item", TitleClass: "main-title", PriceClass: "price-tag-fraction"},
			},
		},
		"mercari": {
			SearchURL: func(kw, _ string) string {
				return fmt.Sprintf("https://www.mercari.com/search/?keyword=%s", urlEscape(kw))
			},
			CandidateCards: []CardSelectors{
				{CardClass: "items-box", TitleClass: "items-box-name", PriceClass: "items-box-price"},
			},
		},
	}
}

func urlEscape(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "+")
}
