// Package hackernews searches Hacker News stories through the Algolia API.
package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://hn.algolia.com/api/v1"

type Client struct {
	BaseURL string // overridable for tests
	Timeout time.Duration
}

type Story struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Points    int       `json:"points"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

// Search returns up to n stories matching the query, by relevance.
func (c Client) Search(ctx context.Context, query string, n int) ([]Story, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// https://hn.algolia.com/api
	u := fmt.Sprintf("%s/search?query=%s&tags=story&hitsPerPage=%d", base, url.QueryEscape(query), n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hn search status %d", resp.StatusCode)
	}

	var raw struct {
		Hits []struct {
			ObjectID    string    `json:"objectID"`
			Title       string    `json:"title"`
			URL         string    `json:"url"`
			Points      int       `json:"points"`
			NumComments int       `json:"num_comments"`
			CreatedAt   time.Time `json:"created_at"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]Story, 0, n)
	for i, h := range raw.Hits {
		if i >= n {
			break
		}
		link := strings.TrimSpace(h.URL)
		if link == "" {
			// Ask/Show HN posts carry no external URL.
			link = "https://news.ycombinator.com/item?id=" + h.ObjectID
		}
		out = append(out, Story{
			ID: h.ObjectID, Title: strings.TrimSpace(h.Title), URL: link,
			Points: h.Points, Comments: h.NumComments, CreatedAt: h.CreatedAt,
		})
	}
	return out, nil
}
