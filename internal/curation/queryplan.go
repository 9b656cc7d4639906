package curation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mohammad-safakhou/personafeed/internal/llm"
)

// Plan modes, reported in the candidate_pool event.
const (
	PlanModeLLM      = "llm"
	PlanModeFallback = "fallback"
)

// Planner turns a ProfileCard into per-source search queries. The LLM
// proposes them when available; otherwise the top-weighted keywords and the
// profile's own queries are templated with a per-source phrase.
type Planner struct {
	logger  *log.Logger
	llm     llm.Provider
	model   string
	timeout time.Duration
}

func NewPlanner(logger *log.Logger, provider llm.Provider, model string, timeout time.Duration) *Planner {
	return &Planner{logger: logger, llm: provider, model: model, timeout: timeout}
}

func (p *Planner) Plan(ctx context.Context, profile ProfileCard) (QueryPlan, string, error) {
	if err := ctx.Err(); err != nil {
		return QueryPlan{}, "", err
	}

	mode := PlanModeFallback
	var plan QueryPlan
	if p.llm == nil {
		p.logger.Printf("llm not configured, deriving query plan from profile")
		plan = derivePlan(profile)
	} else {
		var ok bool
		plan, ok = attempt(p.logger, "llm-planning", func() (QueryPlan, error) {
			return p.planWithLLM(ctx, profile)
		}, func() QueryPlan {
			return derivePlan(profile)
		})
		if ok {
			mode = PlanModeLLM
		}
	}

	plan.Arxiv = clampQueries(plan.Arxiv)
	plan.HackerNews = clampQueries(plan.HackerNews)
	plan.News = clampQueries(plan.News)
	plan.GitHub = clampQueries(plan.GitHub)
	return plan, mode, nil
}

type planPayload struct {
	Arxiv      []string `json:"arxiv"`
	HackerNews []string `json:"hackernews"`
	News       []string `json:"news"`
	GitHub     []string `json:"github"`
}

func (p *planPayload) Validate() error {
	if len(p.Arxiv)+len(p.HackerNews)+len(p.News)+len(p.GitHub) == 0 {
		return fmt.Errorf("plan has no queries")
	}
	return nil
}

func (p *Planner) planWithLLM(ctx context.Context, profile ProfileCard) (QueryPlan, error) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	raw, err := p.llm.Generate(cctx, planPrompt(profile), p.model, nil)
	if err != nil {
		return QueryPlan{}, err
	}
	var payload planPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return QueryPlan{}, err
	}
	return QueryPlan{
		Arxiv:      payload.Arxiv,
		HackerNews: payload.HackerNews,
		News:       payload.News,
		GitHub:     payload.GitHub,
	}, nil
}

// fallbackPhrases are appended to fallback seeds so each source is asked in
// its own register.
var fallbackPhrases = map[string]string{
	ContentSourceArxiv:      "research paper",
	ContentSourceHackerNews: "discussion",
	ContentSourceNews:       "interview",
}

// derivePlan templates queries without a model. Seeds are the three
// top-weighted keywords plus the profile's first two queries; each feed
// source gets the seeds suffixed with its phrase, while GitHub gets the bare
// keywords since repo search works better on terms than on sentences. A
// profile with no keywords or queries falls back to words from its summary.
func derivePlan(profile ProfileCard) QueryPlan {
	seeds := topKeywords(profile, 3)
	for i, q := range profile.Queries {
		if i >= 2 {
			break
		}
		seeds = append(seeds, q)
	}
	seeds = dedupeStrings(seeds)
	if len(seeds) == 0 {
		seeds = summarySeeds(profile.Summary)
	}

	keywords := make([]string, 0, len(profile.KeywordWeights))
	for _, kw := range profile.KeywordWeights {
		keywords = append(keywords, kw.Keyword)
	}
	return QueryPlan{
		Arxiv:      templateQueries(seeds, fallbackPhrases[ContentSourceArxiv]),
		HackerNews: templateQueries(seeds, fallbackPhrases[ContentSourceHackerNews]),
		News:       templateQueries(seeds, fallbackPhrases[ContentSourceNews]),
		GitHub:     clampQueries(keywords),
	}
}

func templateQueries(seeds []string, phrase string) []string {
	out := make([]string, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, s+" "+phrase)
	}
	return clampQueries(out)
}

// topKeywords returns up to n keywords ordered by descending weight, card
// order breaking ties.
func topKeywords(profile ProfileCard, n int) []string {
	sorted := make([]KeywordWeight, len(profile.KeywordWeights))
	copy(sorted, profile.KeywordWeights)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
	var out []string
	for _, kw := range sorted {
		k := strings.TrimSpace(kw.Keyword)
		if k == "" {
			continue
		}
		out = append(out, k)
		if len(out) >= n {
			break
		}
	}
	return out
}

// summarySeeds rescues a profile with no keywords and no queries: up to two
// meaningful words from the summary, or the whole trimmed summary when even
// those are missing.
func summarySeeds(summary string) []string {
	words := strings.FieldsFunc(strings.ToLower(summary), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, w := range words {
		if len([]rune(w)) <= 4 || profileStopWords[w] {
			continue
		}
		out = append(out, w)
		if len(out) >= 2 {
			break
		}
	}
	if len(out) == 0 {
		if s := strings.TrimSpace(summary); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// clampQueries dedupes case-insensitively, preserving order, and caps the
// result at maxQueriesPerSource.
func clampQueries(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	var out []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) >= maxQueriesPerSource {
			break
		}
	}
	return out
}
