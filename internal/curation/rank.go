package curation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/personafeed/internal/llm"
)

// contentSourcePriority is the fixed source order used by pool assembly and
// feed rebalancing. arXiv leads; papers are scarce and easily drowned out
// by news volume.
var contentSourcePriority = []string{
	ContentSourceArxiv,
	ContentSourceHackerNews,
	ContentSourceNews,
	ContentSourceGitHub,
}

func sourceRank(source string) int {
	for i, s := range contentSourcePriority {
		if s == source {
			return i
		}
	}
	return len(contentSourcePriority)
}

// Ranker selects and explains the feed. The LLM picks and justifies items
// when available; the fallback keeps the pool's arrival order with a generic
// justification. Either way the result is rebalanced across sources and
// split into an exploitation feed plus a small exploration set.
type Ranker struct {
	logger  *log.Logger
	llm     llm.Provider
	model   string
	timeout time.Duration
}

func NewRanker(logger *log.Logger, provider llm.Provider, model string, timeout time.Duration) *Ranker {
	return &Ranker{logger: logger, llm: provider, model: model, timeout: timeout}
}

func (r *Ranker) Rank(ctx context.Context, profile ProfileCard, pool []CandidateContentItem) ([]FeedItem, []FeedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(pool) == 0 {
		return nil, nil, nil
	}

	var picks []FeedItem
	if r.llm == nil {
		r.logger.Printf("llm not configured, keeping pool order")
		picks = fallbackRank(profile, pool)
	} else {
		picks, _ = attempt(r.logger, "llm-ranking", func() ([]FeedItem, error) {
			return r.rankWithLLM(ctx, profile, pool)
		}, func() []FeedItem {
			return fallbackRank(profile, pool)
		})
	}

	feed, exploration := splitFeed(picks, pool)
	r.logger.Printf("feed has %d items (%d exploration extras) from a pool of %d", len(feed), len(exploration), len(pool))
	return feed, exploration, nil
}

type rankPayload struct {
	Selections []struct {
		ID      string `json:"id"`
		Summary string `json:"summary"`
		Because string `json:"because"`
	} `json:"selections"`
}

func (p *rankPayload) Validate() error {
	if len(p.Selections) == 0 {
		return fmt.Errorf("no selections")
	}
	for i, s := range p.Selections {
		if s.ID == "" {
			return fmt.Errorf("selection %d missing id", i)
		}
	}
	return nil
}

// rankWithLLM validates every selection against the pool: unknown ids and
// per-source overflow are dropped. Ending up with nothing counts as a
// shape failure so the caller falls back.
func (r *Ranker) rankWithLLM(ctx context.Context, profile ProfileCard, pool []CandidateContentItem) ([]FeedItem, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	raw, err := r.llm.Generate(cctx, rankPrompt(profile, pool), r.model, nil)
	if err != nil {
		return nil, err
	}
	var payload rankPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}

	byID := make(map[string]CandidateContentItem, len(pool))
	for _, it := range pool {
		byID[it.ID] = it
	}
	perSource := make(map[string]int)
	seen := make(map[string]bool)
	var out []FeedItem
	for _, sel := range payload.Selections {
		it, ok := byID[sel.ID]
		if !ok || seen[sel.ID] {
			continue
		}
		if perSource[it.Source] >= perSourceCap {
			continue
		}
		seen[sel.ID] = true
		perSource[it.Source]++
		summary := strings.TrimSpace(sel.Summary)
		if summary == "" {
			summary = fallbackSummary(it)
		}
		because := strings.TrimSpace(sel.Because)
		if because == "" {
			because = "Selected by the ranking model."
		}
		out = append(out, FeedItem{Item: it, Summary: summary, Because: because})
		if len(out) >= feedSize {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: ranking selected no known pool items", ErrLLMResponseShape)
	}
	return out, nil
}

// fallbackRank keeps the pool's arrival order, on the grounds that the
// gatherer already interleaved sources by priority and recency. Every item
// gets the same generic justification, then the per-source rebalance trims
// the set.
func fallbackRank(profile ProfileCard, pool []CandidateContentItem) []FeedItem {
	because := "Recent pick from the gathered pool."
	if top := topKeywords(profile, 1); len(top) > 0 {
		because = "Matches top keyword: " + top[0] + "."
	}
	items := make([]FeedItem, 0, len(pool))
	for _, it := range pool {
		items = append(items, FeedItem{Item: it, Summary: fallbackSummary(it), Because: because})
	}
	return rebalance(items, perSourceCap)
}

func fallbackSummary(it CandidateContentItem) string {
	if it.Snippet != "" {
		return trimSnippet(it.Snippet, 200)
	}
	return trimSnippet(it.Title, 200)
}

// splitFeed carves the ranked picks plus the pool leftovers into the final
// feed and the exploration extras. Exploration takes one item per source
// from the leftovers; the feed then backfills from whatever leftovers
// remain so thin rankings still fill up.
func splitFeed(picks []FeedItem, pool []CandidateContentItem) (feed, exploration []FeedItem) {
	picked := make(map[string]bool, len(picks))
	for _, p := range picks {
		picked[p.Item.ID] = true
	}
	var leftovers []FeedItem
	for _, it := range pool {
		if picked[it.ID] {
			continue
		}
		leftovers = append(leftovers, FeedItem{
			Item:    it,
			Summary: fallbackSummary(it),
			Because: "Exploration pick from " + it.Source + " to test broader interests.",
		})
	}

	exploration = rebalance(leftovers, explorationCap)
	if len(exploration) > explorationSize {
		exploration = exploration[:explorationSize]
	}
	exploring := make(map[string]bool, len(exploration))
	for _, e := range exploration {
		exploring[e.Item.ID] = true
	}

	candidates := make([]FeedItem, 0, len(picks)+len(leftovers))
	candidates = append(candidates, picks...)
	for _, l := range leftovers {
		if exploring[l.Item.ID] {
			continue
		}
		l.Because = "Rounds out the feed from " + l.Item.Source + "."
		candidates = append(candidates, l)
	}
	feed = rebalance(candidates, perSourceCap)
	if len(feed) > feedSize {
		feed = feed[:feedSize]
	}
	return feed, exploration
}

// rebalance lays items out in per-source blocks following the fixed source
// priority, keeping at most perSource per source and preserving arrival
// order within a source. Beyond-cap remainders follow the blocks in the same
// priority order, then items from sources outside the priority list in
// arrival order. Duplicate ids are dropped and the result never exceeds
// len(priority) x perSource entries.
func rebalance(items []FeedItem, perSource int) []FeedItem {
	if perSource <= 0 || len(items) == 0 {
		return nil
	}
	buckets := make(map[string][]FeedItem)
	var other []FeedItem
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if id := it.Item.ID; id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		if sourceRank(it.Item.Source) < len(contentSourcePriority) {
			buckets[it.Item.Source] = append(buckets[it.Item.Source], it)
		} else {
			other = append(other, it)
		}
	}

	var out []FeedItem
	for _, source := range contentSourcePriority {
		b := buckets[source]
		if len(b) > perSource {
			b = b[:perSource]
		}
		out = append(out, b...)
	}
	for _, source := range contentSourcePriority {
		if len(buckets[source]) > perSource {
			out = append(out, buckets[source][perSource:]...)
		}
	}
	out = append(out, other...)
	if limit := len(contentSourcePriority) * perSource; len(out) > limit {
		out = out[:limit]
	}
	return out
}
