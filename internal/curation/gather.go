package curation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/personafeed/internal/telemetry"
)

const resultsPerQuery = 8

// Gatherer fans the query plan out across the content sources, one
// goroutine per (source, query) pair. Every goroutine writes into its own
// slot and the pool is assembled only after all of them settle, so a slow
// or failing source delays but never corrupts the result.
type Gatherer struct {
	logger  *log.Logger
	papers  PaperSource
	stories StorySource
	news    NewsSource
	code    CodeHost
	timeout time.Duration
	window  time.Duration
}

func NewGatherer(logger *log.Logger, papers PaperSource, stories StorySource, news NewsSource, code CodeHost, timeout, newsWindow time.Duration) *Gatherer {
	return &Gatherer{logger: logger, papers: papers, stories: stories, news: news, code: code, timeout: timeout, window: newsWindow}
}

func (g *Gatherer) Gather(ctx context.Context, plan QueryPlan) ([]CandidateContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type job struct {
		source string
		query  string
	}
	var jobs []job
	if g.papers != nil {
		for _, q := range plan.Arxiv {
			jobs = append(jobs, job{ContentSourceArxiv, q})
		}
	}
	if g.stories != nil {
		for _, q := range plan.HackerNews {
			jobs = append(jobs, job{ContentSourceHackerNews, q})
		}
	}
	if g.news != nil {
		for _, q := range plan.News {
			jobs = append(jobs, job{ContentSourceNews, q})
		}
	}
	if g.code != nil {
		for _, q := range plan.GitHub {
			jobs = append(jobs, job{ContentSourceGitHub, q})
		}
	}
	if len(jobs) == 0 {
		g.logger.Printf("no gather jobs (no sources configured or empty plan)")
		return nil, nil
	}

	results := make([][]CandidateContentItem, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(slot int, source, query string) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			items, err := g.collect(cctx, source, query)
			if err != nil {
				g.logger.Printf("WARN: %s gather failed for %q: %v", source, query, err)
				telemetry.RecordCollaboratorFailure(source)
				return
			}
			results[slot] = items
		}(i, j.source, j.query)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := assemblePool(results)
	g.logger.Printf("gathered %d candidate items from %d jobs", len(pool), len(jobs))
	return pool, nil
}

func (g *Gatherer) collect(ctx context.Context, source, query string) ([]CandidateContentItem, error) {
	switch source {
	case ContentSourceArxiv:
		entries, err := g.papers.Search(ctx, query, resultsPerQuery)
		if err != nil {
			return nil, err
		}
		var out []CandidateContentItem
		for _, e := range entries {
			out = append(out, CandidateContentItem{
				ID:          itemID(source, e.URL),
				Source:      source,
				Title:       e.Title,
				URL:         e.URL,
				Snippet:     trimSnippet(e.Summary, snippetMaxRunes),
				PublishedAt: e.Published,
			})
		}
		return out, nil

	case ContentSourceHackerNews:
		stories, err := g.stories.Search(ctx, query, resultsPerQuery)
		if err != nil {
			return nil, err
		}
		var out []CandidateContentItem
		for _, s := range stories {
			out = append(out, CandidateContentItem{
				ID:          itemID(source, s.URL),
				Source:      source,
				Title:       s.Title,
				URL:         s.URL,
				Snippet:     fmt.Sprintf("%d points, %d comments on Hacker News", s.Points, s.Comments),
				PublishedAt: s.CreatedAt,
			})
		}
		return out, nil

	case ContentSourceNews:
		items, err := g.news.Search(ctx, query, g.window, resultsPerQuery)
		if err != nil {
			return nil, err
		}
		var out []CandidateContentItem
		for _, it := range items {
			out = append(out, CandidateContentItem{
				ID:          itemID(source, it.URL),
				Source:      source,
				Title:       it.Title,
				URL:         it.URL,
				Snippet:     trimSnippet(it.Snippet, snippetMaxRunes),
				PublishedAt: it.Published,
			})
		}
		return out, nil

	case ContentSourceGitHub:
		repos, err := g.code.SearchRepos(ctx, query, resultsPerQuery)
		if err != nil {
			return nil, err
		}
		var out []CandidateContentItem
		for _, r := range repos {
			snippet := r.Description
			if r.Language != "" {
				if snippet != "" {
					snippet += " "
				}
				snippet += "[" + r.Language + "]"
			}
			if r.Stars > 0 {
				if snippet != "" {
					snippet += " "
				}
				snippet += fmt.Sprintf("(%d stars)", r.Stars)
			}
			out = append(out, CandidateContentItem{
				ID:          itemID(source, r.HTMLURL),
				Source:      source,
				Title:       r.FullName,
				URL:         r.HTMLURL,
				Snippet:     trimSnippet(snippet, snippetMaxRunes),
				PublishedAt: r.UpdatedAt,
			})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown content source %q", source)
}

// assemblePool flattens the per-job slots in plan order, dedupes by item id
// keeping the first occurrence, orders by source priority (stable within a
// source), and caps the pool.
func assemblePool(results [][]CandidateContentItem) []CandidateContentItem {
	seen := make(map[string]bool)
	var pool []CandidateContentItem
	for _, items := range results {
		for _, it := range items {
			if it.ID == "" || seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			pool = append(pool, it)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return sourceRank(pool[i].Source) < sourceRank(pool[j].Source)
	})
	if len(pool) > poolCap {
		pool = pool[:poolCap]
	}
	return pool
}
