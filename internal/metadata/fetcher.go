package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HTTPFetcher reads wiki details from a JSON endpoint of the form
//
//	GET {endpoint}?ids=1,2,3
//
// answering {"items": {"1": {...}, "3": {...}}}.
type HTTPFetcher struct {
	endpoint   string
	httpClient *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher for endpoint.
func NewHTTPFetcher(endpoint string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{endpoint: endpoint, httpClient: &http.Client{Timeout: timeout}}
}

type detailsResponse struct {
	Items map[string]detailsItem `json:"items"`
}

type detailsItem struct {
	ID           int     `json:"id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Lang         string  `json:"lang"`
	Hub          string  `json:"hub"`
	Topic        string  `json:"topic"`
	Domain       string  `json:"domain"`
	FoundingDate string  `json:"founding_date"`
	WAMScore     float64 `json:"wam_score"`
	Desc         string  `json:"desc"`
	Headline     string  `json:"headline"`
	Stats        struct {
		Articles int `json:"articles"`
		Pages    int `json:"pages"`
	} `json:"stats"`
}

// Fetch implements Fetcher. Results are ordered by id.
func (f *HTTPFetcher) Fetch(ctx context.Context, ids []int) ([]Wiki, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}

	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("metadata: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(strs, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata: fetch ids %d..%d: %w", ids[0], ids[len(ids)-1], err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata: fetch ids %d..%d: unexpected status %d", ids[0], ids[len(ids)-1], resp.StatusCode)
	}

	var body detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("metadata: decode details: %w", err)
	}

	out := make([]Wiki, 0, len(body.Items))
	for key, it := range body.Items {
		id := it.ID
		if id == 0 {
			id, _ = strconv.Atoi(key)
		}
		out = append(out, Wiki{
			ID:           id,
			URL:          it.URL,
			Title:        it.Title,
			Language:     it.Lang,
			Hub:          it.Hub,
			Topic:        it.Topic,
			Domain:       it.Domain,
			FoundingDate: it.FoundingDate,
			WAMScore:     it.WAMScore,
			Description:  it.Desc,
			Headline:     it.Headline,
			Articles:     it.Stats.Articles,
			Pages:        it.Stats.Pages,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
