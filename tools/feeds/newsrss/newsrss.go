// Package newsrss pulls recent coverage from the Google News RSS endpoint.
package newsrss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const defaultBaseURL = "https://news.google.com/rss/search"

type Client struct {
	BaseURL string // overridable for tests
	Timeout time.Duration
}

type Item struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Snippet   string    `json:"snippet"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
}

// Search returns up to n items for the query published within the window
// (zero window means no date restriction). Google honors an after: operator
// in the query itself; items are filtered again locally since the operator
// is best-effort.
func (c Client) Search(ctx context.Context, query string, window time.Duration, n int) ([]Item, error) {
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

	q := strings.TrimSpace(query)
	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().Add(-window)
		q += " after:" + cutoff.Format("2006-01-02")
	}
	u := fmt.Sprintf("%s?q=%s&hl=en-US&gl=US&ceid=US:en", base, url.QueryEscape(q))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	// Google News is picky about non-browser agents.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 personafeed/0.1 (+personal use)")
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("google news rss status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	out := make([]Item, 0, n)
	for _, it := range feed.Items {
		if len(out) >= n {
			break
		}
		var pub time.Time
		if it.PublishedParsed != nil {
			pub = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			pub = *it.UpdatedParsed
		} else {
			continue
		}
		if !cutoff.IsZero() && pub.Before(cutoff) {
			continue
		}
		link := strings.TrimSpace(it.Link)
		out = append(out, Item{
			Title:     strings.TrimSpace(it.Title),
			URL:       link,
			Snippet:   strings.TrimSpace(it.Description),
			Source:    hostOf(link),
			Published: pub,
		})
	}
	return out, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
