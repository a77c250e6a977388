package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// finnhubScale: Finnhub reports market cap and shares outstanding in millions.
const finnhubScale = 1_000_000

// FinnhubProvider adapts the Finnhub company profile and quote endpoints.
type FinnhubProvider struct {
	token   string
	baseURL string
	client  *http.Client
	now     nowFunc
}

// NewFinnhubProvider creates a new Finnhub adapter.
func NewFinnhubProvider(token string) *FinnhubProvider {
	return &FinnhubProvider{
		token:   token,
		baseURL: finnhubBaseURL,
		client:  defaultHTTPClient,
		now:     defaultNow,
	}
}

// Compile-time interface check.
var _ Provider = (*FinnhubProvider)(nil)

func (p *FinnhubProvider) Name() string { return "finnhub" }

// Quote needs two calls: profile2 for market cap and shares, quote for price.
func (p *FinnhubProvider) Quote(ctx context.Context, ticker string) (*domain.MarketData, error) {
	if p.token == "" {
		return nil, nil
	}

	profile, err := p.get(ctx, "/stock/profile2", ticker)
	if err != nil {
		return nil, err
	}
	marketCap, ok := getFloat(profile, "marketCapitalization")
	if !ok || marketCap <= 0 {
		return nil, nil
	}
	shares, _ := getFloat(profile, "shareOutstanding")

	quote, err := p.get(ctx, "/quote", ticker)
	if err != nil {
		return nil, err
	}
	price, _ := getFloat(quote, "c")

	return &domain.MarketData{
		Ticker:            ticker,
		Price:             decimal.NewFromFloat(price),
		MarketCap:         decimal.NewFromFloat(marketCap).Mul(decimal.NewFromInt(finnhubScale)),
		SharesOutstanding: decimal.NewFromFloat(shares).Mul(decimal.NewFromInt(finnhubScale)),
		Source:            p.Name(),
		FetchedAt:         p.now(),
	}, nil
}

func (p *FinnhubProvider) get(ctx context.Context, path, ticker string) (map[string]interface{}, error) {
	u := fmt.Sprintf("%s%s?symbol=%s&token=%s", p.baseURL, path, url.QueryEscape(ticker), url.QueryEscape(p.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build finnhub request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub %s %s: %w", path, ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimited(p.Name(), resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finnhub %s %s: unexpected status %d", path, ticker, resp.StatusCode)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode finnhub %s %s: %w", path, ticker, err)
	}
	return payload, nil
}
