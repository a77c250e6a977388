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

const fmpBaseURL = "https://financialmodelingprep.com/api/v3"

// FMPProvider adapts the Financial Modeling Prep profile endpoint.
type FMPProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     nowFunc
}

// NewFMPProvider creates a new FMP adapter.
func NewFMPProvider(apiKey string) *FMPProvider {
	return &FMPProvider{
		apiKey:  apiKey,
		baseURL: fmpBaseURL,
		client:  defaultHTTPClient,
		now:     defaultNow,
	}
}

// Compile-time interface check.
var _ Provider = (*FMPProvider)(nil)

func (p *FMPProvider) Name() string { return "fmp" }

// Quote fetches the company profile, which carries price, market cap and
// shares outstanding in a single call.
func (p *FMPProvider) Quote(ctx context.Context, ticker string) (*domain.MarketData, error) {
	if p.apiKey == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/profile/%s?apikey=%s", p.baseURL, url.PathEscape(ticker), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build fmp request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fmp profile %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimited(p.Name(), resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fmp profile %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var payload []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode fmp profile %s: %w", ticker, err)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	m := payload[0]

	price, _ := getFloat(m, "price")
	marketCap, ok := getFloat(m, "mktCap", "marketCap")
	if !ok {
		return nil, nil
	}
	shares, _ := getFloat(m, "sharesOutstanding", "outstandingShares")

	return &domain.MarketData{
		Ticker:            ticker,
		Price:             decimal.NewFromFloat(price),
		MarketCap:         decimal.NewFromFloat(marketCap),
		SharesOutstanding: decimal.NewFromFloat(shares),
		Source:            p.Name(),
		FetchedAt:         p.now(),
	}, nil
}
