// Package arxiv queries the arXiv Atom API for recent papers.
package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const defaultBaseURL = "https://export.arxiv.org/api/query"

type Client struct {
	BaseURL string // overridable for tests
	Timeout time.Duration
}

type Entry struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
}

// Search returns up to n papers matching the query, newest submissions first.
func (c Client) Search(ctx context.Context, query string, n int) ([]Entry, error) {
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

	// https://info.arxiv.org/help/api/user-manual.html
	q := fmt.Sprintf(`all:"%s"`, strings.TrimSpace(query))
	u := fmt.Sprintf("%s?search_query=%s&sortBy=submittedDate&sortOrder=descending&max_results=%d",
		base, url.QueryEscape(q), n)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/atom+xml")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, n)
	for _, it := range feed.Items {
		if len(out) >= n {
			break
		}
		var pub time.Time
		if it.PublishedParsed != nil {
			pub = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			pub = *it.UpdatedParsed
		}
		out = append(out, Entry{
			Title:     collapseWhitespace(it.Title),
			URL:       strings.TrimSpace(it.Link),
			Summary:   collapseWhitespace(it.Description),
			Published: pub,
		})
	}
	return out, nil
}

// arXiv wraps titles and abstracts with hard newlines.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
