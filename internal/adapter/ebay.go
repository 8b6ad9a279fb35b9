package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/wildguard/sentinel/internal/model"
)

const ebayBrowseSearchURL = "https://api.ebay.com/buy/browse/v1/item_summary/search"

// EBayConfig carries the OAuth2 client-credentials for the Browse API.
type EBayConfig struct {
	AppID  string
	CertID string
}

// EBayAdapter queries the eBay Browse API via a client-credentials OAuth2
// token, refreshed transparently by the oauth2 transport.
type EBayAdapter struct {
	httpClient *http.Client
}

// NewEBayAdapter builds an adapter whose http.Client auto-refreshes its
// OAuth2 token using the Browse API's client-credentials grant.
func NewEBayAdapter(cfg EBayConfig) *EBayAdapter {
	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.CertID,
		TokenURL:     "https://api.ebay.com/identity/v1/oauth2/token",
		Scopes:       []string{"https://api.ebay.com/oauth/api_scope"},
	}
	return &EBayAdapter{httpClient: oauthCfg.Client(context.Background())}
}

func (a *EBayAdapter) Name() string { return "ebay" }

type ebaySearchResponse struct {
	ItemSummaries []struct {
		Title       string `json:"title"`
		ItemID      string `json:"itemId"`
		ItemWebURL  string `json:"itemWebUrl"`
		ShortDesc   string `json:"shortDescription"`
		Price       struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		ItemLocation struct {
			Country string `json:"country"`
		} `json:"itemLocation"`
		Image struct {
			ImageURL string `json:"imageUrl"`
		} `json:"image"`
	} `json:"itemSummaries"`
}

// Search issues one Browse API item_summary/search call per keyword.
// eBay has no geographic block to dodge, so attemptNo is unused here;
// region rotation is only meaningful for the HTML marketplaces.
func (a *EBayAdapter) Search(ctx context.Context, keywords []string, _ int) ([]model.Listing, error) {
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

func (a *EBayAdapter) searchOne(ctx context.Context, keyword string) ([]model.Listing, error) {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("limit", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ebayBrowseSearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, NewSearchError(ErrKindPermanent, eris.Wrap(err, "ebay: build request"))
	}
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", "EBAY_US")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, NewSearchError(ErrKindTransient, eris.Wrap(err, "ebay: request"))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewSearchError(ErrKindRateLimited, eris.Errorf("ebay: 429"))
	}
	if resp.StatusCode >= 500 {
		return nil, NewSearchError(ErrKindTransient, eris.Errorf("ebay: %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewSearchError(ErrKindPermanent, eris.Errorf("ebay: unexpected status %d", resp.StatusCode))
	}

	var parsed ebaySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewSearchError(ErrKindPermanent, eris.Wrap(err, "ebay: decode response"))
	}

	now := time.Now()
	listings := make([]model.Listing, 0, len(parsed.ItemSummaries))
	for _, item := range parsed.ItemSummaries {
		listings = append(listings, model.Listing{
			Platform:     a.Name(),
			SearchTerm:   keyword,
			Title:        item.Title,
			Description:  item.ShortDesc,
			PriceText:    fmt.Sprintf("%s %s", item.Price.Value, item.Price.Currency),
			URL:          item.ItemWebURL,
			NativeItemID: item.ItemID,
			Location:     item.ItemLocation.Country,
			ObservedAt:   now,
			ImageURL:     item.Image.ImageURL,
		})
	}
	return listings, nil
}
