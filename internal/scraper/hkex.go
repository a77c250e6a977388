package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	hkexBaseURL = "https://www1.hkexnews.hk/search/titleSearchServlet.do"
	hkexPace    = 2 * time.Second
)

// hkexDateLayout is the DATE_TIME format in titlesearch responses.
const hkexDateLayout = "02/01/2006 15:04"

// HKEXSource lists announcements from the HKEX news title-search servlet.
type HKEXSource struct {
	baseURL string
	client  *http.Client
	pace    *pacer
}

// NewHKEXSource creates an HKEX source with its own conservative pacing.
func NewHKEXSource() *HKEXSource {
	return &HKEXSource{
		baseURL: hkexBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		pace:    newPacer(hkexPace),
	}
}

// Compile-time interface check.
var _ Source = (*HKEXSource)(nil)

func (s *HKEXSource) Name() string { return "hkex" }

func (s *HKEXSource) RecentFilings(ctx context.Context, issuerCode string, since time.Time) ([]SourceDocument, error) {
	params := url.Values{}
	params.Set("stockId", issuerCode)
	return s.search(ctx, params, since)
}

func (s *HKEXSource) Search(ctx context.Context, keyword string, since time.Time) ([]SourceDocument, error) {
	params := url.Values{}
	params.Set("title", keyword)
	return s.search(ctx, params, since)
}

func (s *HKEXSource) search(ctx context.Context, params url.Values, since time.Time) ([]SourceDocument, error) {
	if err := s.pace.wait(ctx); err != nil {
		return nil, err
	}

	params.Set("sortDir", "0")
	params.Set("sortByOptions", "DateTime")
	params.Set("market", "SEHK")
	params.Set("documentType", "-1")
	params.Set("fromDate", since.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build hkex request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hkex title search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hkex title search: unexpected status %d", resp.StatusCode)
	}

	// The servlet wraps its result rows in a JSON string field.
	var envelope struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode hkex envelope: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(envelope.Result), &rows); err != nil {
		return nil, fmt.Errorf("decode hkex result rows: %w", err)
	}

	docs := make([]SourceDocument, 0, len(rows))
	for _, row := range rows {
		doc := SourceDocument{
			Title:      getString(row, "TITLE"),
			URL:        absoluteHKEXLink(getString(row, "FILE_LINK")),
			IssuerCode: getString(row, "STOCK_CODE"),
		}
		if doc.Title == "" || doc.URL == "" {
			continue
		}
		if t, err := time.Parse(hkexDateLayout, getString(row, "DATE_TIME")); err == nil {
			doc.Date = t
		}
		if !doc.Date.IsZero() && doc.Date.Before(since) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// absoluteHKEXLink resolves the servlet's relative file links.
func absoluteHKEXLink(link string) string {
	if link == "" {
		return ""
	}
	if len(link) >= 4 && link[:4] == "http" {
		return link
	}
	return "https://www1.hkexnews.hk" + link
}

func getString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
