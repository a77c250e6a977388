package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	szseBaseURL = "https://www.szse.cn/api/disc/announcement/annList"
	szsePace    = 3 * time.Second
)

// szseDateLayout is the publishTime format in annList responses.
const szseDateLayout = "2006-01-02 15:04:05"

// SZSESource lists announcements from the SZSE disclosure API.
type SZSESource struct {
	baseURL string
	client  *http.Client
	pace    *pacer
}

// NewSZSESource creates an SZSE source with its own conservative pacing.
func NewSZSESource() *SZSESource {
	return &SZSESource{
		baseURL: szseBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		pace:    newPacer(szsePace),
	}
}

// Compile-time interface check.
var _ Source = (*SZSESource)(nil)

func (s *SZSESource) Name() string { return "szse" }

func (s *SZSESource) RecentFilings(ctx context.Context, issuerCode string, since time.Time) ([]SourceDocument, error) {
	return s.query(ctx, map[string]interface{}{
		"stock":  []string{issuerCode},
		"seDate": []string{since.Format("2006-01-02"), time.Now().Format("2006-01-02")},
	})
}

func (s *SZSESource) Search(ctx context.Context, keyword string, since time.Time) ([]SourceDocument, error) {
	return s.query(ctx, map[string]interface{}{
		"searchKey": []string{keyword},
		"seDate":    []string{since.Format("2006-01-02"), time.Now().Format("2006-01-02")},
	})
}

func (s *SZSESource) query(ctx context.Context, body map[string]interface{}) ([]SourceDocument, error) {
	if err := s.pace.wait(ctx); err != nil {
		return nil, err
	}

	body["channelCode"] = []string{"listedNotice_disc"}
	body["pageSize"] = 50
	body["pageNum"] = 1

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal szse query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build szse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("szse annList: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("szse annList: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode szse response: %w", err)
	}

	docs := make([]SourceDocument, 0, len(envelope.Data))
	for _, row := range envelope.Data {
		doc := SourceDocument{
			Title:      getString(row, "title"),
			URL:        absoluteSZSELink(getString(row, "attachPath")),
			IssuerCode: getString(row, "secCode"),
		}
		if doc.Title == "" || doc.URL == "" {
			continue
		}
		if t, err := time.Parse(szseDateLayout, getString(row, "publishTime")); err == nil {
			doc.Date = t
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// absoluteSZSELink resolves the API's relative attachment paths.
func absoluteSZSELink(link string) string {
	if link == "" {
		return ""
	}
	if len(link) >= 4 && link[:4] == "http" {
		return link
	}
	return "https://disc.static.szse.cn/download" + link
}
