package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v7/finance/quote"

// Yahoo blocks generic clients (401/429), so a browser User-Agent is required.
const yahooUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// nowFunc is injectable time for provider tests.
type nowFunc func() time.Time

func defaultNow() time.Time { return time.Now().UTC() }

// YahooProvider adapts the Yahoo Finance v7 quote endpoint.
type YahooProvider struct {
	baseURL string
	client  *http.Client
	now     nowFunc
}

// NewYahooProvider creates a new Yahoo adapter. No API key required.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		baseURL: yahooBaseURL,
		client:  defaultHTTPClient,
		now:     defaultNow,
	}
}

// Compile-time interface check.
var _ Provider = (*YahooProvider)(nil)

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) Quote(ctx context.Context, ticker string) (*domain.MarketData, error) {
	u := p.baseURL + "?symbols=" + url.QueryEscape(ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build yahoo request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimited(p.Name(), resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo quote %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var payload struct {
		QuoteResponse struct {
			Result []map[string]interface{} `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode yahoo quote %s: %w", ticker, err)
	}
	if len(payload.QuoteResponse.Result) == 0 {
		return nil, nil
	}
	m := payload.QuoteResponse.Result[0]

	price, _ := getFloat(m, "regularMarketPrice", "previousClose")
	marketCap, ok := getFloat(m, "marketCap")
	if !ok {
		return nil, nil
	}
	shares, _ := getFloat(m, "sharesOutstanding")

	return &domain.MarketData{
		Ticker:            ticker,
		Price:             decimal.NewFromFloat(price),
		MarketCap:         decimal.NewFromFloat(marketCap),
		SharesOutstanding: decimal.NewFromFloat(shares),
		Source:            p.Name(),
		FetchedAt:         p.now(),
	}, nil
}
