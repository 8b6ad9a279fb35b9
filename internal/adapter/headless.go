package adapter

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/wildguard/sentinel/internal/model"
)

// candidateViewports and candidateUserAgents are drawn from at random,
// once per keyword page load, so successive requests from the same headless
// Chrome allocator don't present an identical fingerprint.
var candidateViewports = []struct{ W, H int64 }{
	{1920, 1080}, {1366, 768}, {1440, 900}, {1536, 864},
}

var candidateUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// fingerprintMaskScript hides the automation signals headless Chrome
// exposes by default: the webdriver flag, an empty plugins/languages
// list, and the injected cdc_ globals the ChromeDriver protocol leaves
// on window.
const fingerprintMaskScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
window.chrome = window.chrome || { runtime: {} };
for (const k of Object.keys(window)) {
	if (k.startsWith('cdc_')) { delete window[k]; }
}
`

// HeadlessCardSelectors is one candidate JS extraction recipe for a
// platform's rendered DOM.
type HeadlessCardSelectors struct {
	CardSel  string
	TitleSel string
	PriceSel string
	LinkSel  string
}

// HeadlessSelectors describes, for one JS-rendered platform, how to
// build a search URL and the ordered candidate selector sets chromedp
// should try to pull listing cards out of the rendered DOM.
type HeadlessSelectors struct {
	SearchURL   func(keyword string) string
	WaitVisible string // selector chromedp waits to become visible before scraping

	// CandidateCards is tried in order (primary, secondary, fallback);
	// the first set that extracts at least one card wins.
	CandidateCards []HeadlessCardSelectors
}

// headlessCard mirrors the JS object shape evaluated out of the page.
type headlessCard struct {
	Title string `json:"title"`
	Price string `json:"price"`
	URL   string `json:"url"`
}

// HeadlessAdapter drives a real Chrome instance via chromedp for
// platforms that require JavaScript execution to render listings
// (client-side rendered search results, anti-bot JS challenges).
type HeadlessAdapter struct {
	platform    string
	selectors   HeadlessSelectors
	navTimeout  time.Duration
	allocatorCh context.Context
}

// NewHeadlessAdapter builds an adapter bound to a long-lived chromedp
// allocator context (one headless Chrome process shared across calls).
func NewHeadlessAdapter(platform string, allocatorCtx context.Context, selectors HeadlessSelectors) *HeadlessAdapter {
	return &HeadlessAdapter{
		platform:    platform,
		selectors:   selectors,
		navTimeout:  25 * time.Second,
		allocatorCh: allocatorCtx,
	}
}

func (a *HeadlessAdapter) Name() string { return a.platform }

// Search navigates to the platform's search results page for each
// keyword in turn, masking the automation fingerprint before the page's
// own scripts run, and evaluates the candidate selector sets against
// the rendered DOM. attemptNo has no region axis to drive for these
// platforms (none maintain a locale list) and is accepted only to
// satisfy the common Adapter contract.
func (a *HeadlessAdapter) Search(ctx context.Context, keywords []string, _ int) ([]model.Listing, error) {
	var listings []model.Listing
	for _, keyword := range keywords {
		found, err := a.searchOne(ctx, keyword)
		if err != nil {
			return listings, err
		}
		listings = append(listings, found...)
	}
	return listings, nil
}

func (a *HeadlessAdapter) searchOne(ctx context.Context, keyword string) ([]model.Listing, error) {
	tabCtx, cancel := chromedp.NewContext(a.allocatorCh)
	defer cancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, a.navTimeout)
	defer timeoutCancel()

	rawURL := a.selectors.SearchURL(keyword)
	viewport := candidateViewports[rand.IntN(len(candidateViewports))]
	userAgent := candidateUserAgents[rand.IntN(len(candidateUserAgents))]
	dwell := time.Duration(3000+rand.IntN(5001)) * time.Millisecond

	var renderedHTML string
	actions := []chromedp.Action{
		chromedp.EmulateViewport(viewport.W, viewport.H),
		chromedp.UserAgentOverride(userAgent),
		maskFingerprint(),
		chromedp.Navigate(rawURL),
	}
	if a.selectors.WaitVisible != "" {
		actions = append(actions, chromedp.WaitVisible(a.selectors.WaitVisible, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(dwell),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.OuterHTML("html", &renderedHTML),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if tabCtx.Err() == context.DeadlineExceeded {
			return nil, NewSearchError(ErrKindTransient, eris.Wrap(err, a.platform+": navigation timeout"))
		}
		return nil, NewSearchError(ErrKindTransient, eris.Wrap(err, a.platform+": headless run"))
	}

	if blocked, blockType := DetectBlock(200, nil, []byte(renderedHTML)); blocked {
		return nil, NewSearchError(ErrKindBlocked, eris.Errorf("%s: blocked (%s)", a.platform, blockType))
	}

	now := time.Now()
	for _, candidate := range a.selectors.CandidateCards {
		cards, err := evaluateCards(tabCtx, candidate)
		if err != nil {
			return nil, NewSearchError(ErrKindTransient, eris.Wrap(err, a.platform+": evaluate cards"))
		}
		listings := cardsToListings(a.platform, keyword, cards, now)
		if len(listings) > 0 {
			return listings, nil
		}
	}
	return nil, nil
}

// maskFingerprint injects fingerprintMaskScript via the CDP Page domain
// so it runs before any of the target page's own scripts, the same
// timing guarantee Object.defineProperty-based masking needs to win the
// race against site fingerprinting code.
func maskFingerprint() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(fingerprintMaskScript).Do(ctx)
		return err
	})
}

func evaluateCards(ctx context.Context, sel HeadlessCardSelectors) ([]headlessCard, error) {
	linkExpr := "card.href"
	if sel.LinkSel != "" {
		linkExpr = fmt.Sprintf("(card.querySelector(%q) || card).href", sel.LinkSel)
	}
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(card => ({
		title: (card.querySelector(%q) || {}).innerText || "",
		price: (card.querySelector(%q) || {}).innerText || "",
		url: %s || ""
	}))`, sel.CardSel, sel.TitleSel, sel.PriceSel, linkExpr)

	var cards []headlessCard
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &cards)); err != nil {
		return nil, err
	}
	return cards, nil
}

func cardsToListings(platform, keyword string, cards []headlessCard, now time.Time) []model.Listing {
	listings := make([]model.Listing, 0, len(cards))
	for _, c := range cards {
		if c.Title == "" || c.URL == "" || len(c.Title) < minTitleLength {
			continue
		}
		listings = append(listings, model.Listing{
			Platform:   platform,
			SearchTerm: keyword,
			Title:      c.Title,
			PriceText:  c.Price,
			URL:        c.URL,
			ObservedAt: now,
		})
	}
	return listings
}

// DefaultHeadlessSelectors returns the per-platform HeadlessSelectors for
// JS-rendered marketplaces.
func DefaultHeadlessSelectors() map[string]HeadlessSelectors {
	return map[string]HeadlessSelectors{
		"aliexpress": {
			SearchURL: func(kw string) string {
				return fmt.Sprintf("https://www.aliexpress.com/wholesale?SearchText=%s", kw)
			},
			WaitVisible: "div.search-item-card-wrapper-gallery",
			CandidateCards: []HeadlessCardSelectors{
				{CardSel: "div.search-item-card-wrapper-gallery", TitleSel: "h1, h3", PriceSel: "div.multi--price-sale--U-S0jtj", LinkSel: "a"},
				{CardSel: "div.list--gallery--C2f2tvm", TitleSel: "a", PriceSel: "div.price", LinkSel: "a"},
			},
		},
		"taobao": {
			SearchURL: func(kw string) string {
				return fmt.Sprintf("https://s.taobao.com/search?q=%s", kw)
			},
			WaitVisible: "div.item",
			CandidateCards: []HeadlessCardSelectors{
				{CardSel: "div.item", TitleSel: "div.title", PriceSel: "div.price", LinkSel: "a"},
				{CardSel: "div.Card--doubleCardWrapper", TitleSel: "div.Title--title", PriceSel: "div.Price--priceInt", LinkSel: "a"},
			},
		},
		"facebook_marketplace": {
			SearchURL: func(kw string) string {
				return fmt.Sprintf("https://www.facebook.com/marketplace/search/?query=%s", kw)
			},
			WaitVisible: `div[role="main"]`,
			CandidateCards: []HeadlessCardSelectors{
				{CardSel: `div[role="main"] a[href*="/marketplace/item/"]`, TitleSel: "span", PriceSel: "span"},
				{CardSel: `a[href*="/marketplace/item/"]`, TitleSel: "span[dir='auto']", PriceSel: "span[dir='auto']"},
			},
		},
	}
}
