package curation

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/personafeed/internal/llm"
	"github.com/mohammad-safakhou/personafeed/internal/telemetry"
	searchmodels "github.com/mohammad-safakhou/personafeed/tools/web_search/models"
)

// Discovery modes, reported in the candidates event meta.
const (
	DiscoveryModeCluster   = "cluster"
	DiscoveryModeHeuristic = "heuristic"
	DiscoveryModeFallback  = "fallback"
)

// Discoverer turns a bare person name into a short list of candidate
// identities for the user to confirm. Web search gives the raw hits; an LLM
// clusters them into distinct people. Every step degrades: no search means
// deterministic guesses, no LLM (or a failed clustering) means host-based
// grouping with an optional LLM merge pass over the groups.
type Discoverer struct {
	logger     *log.Logger
	llm        llm.Provider
	model      string
	searcher   Searcher
	timeout    time.Duration
	maxResults int
}

func NewDiscoverer(logger *log.Logger, provider llm.Provider, model string, searcher Searcher, timeout time.Duration, maxResults int) *Discoverer {
	if maxResults <= 0 || maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}
	return &Discoverer{logger: logger, llm: provider, model: model, searcher: searcher, timeout: timeout, maxResults: maxResults}
}

func (d *Discoverer) Discover(ctx context.Context, name string) ([]CandidateIdentity, DiscoveryMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, DiscoveryMeta{}, err
	}

	hits := d.searchHits(ctx, name)
	if len(hits) == 0 {
		d.logger.Printf("no usable search hits for %q, falling back to deterministic identities", name)
		candidates := dedupeCandidates(fallbackIdentities(name))
		return candidates, DiscoveryMeta{Mode: DiscoveryModeFallback}, nil
	}
	d.logger.Printf("search returned %d deduplicated hits for %q", len(hits), name)

	meta := DiscoveryMeta{SearchResults: len(hits)}
	var candidates []CandidateIdentity
	if d.llm == nil {
		d.logger.Printf("llm not configured, clustering hits by host")
		candidates = clusterByHost(name, hits)
		meta.Mode = DiscoveryModeHeuristic
	} else {
		var clustered bool
		candidates, clustered = attempt(d.logger, "llm-clustering", func() ([]CandidateIdentity, error) {
			return d.clusterWithLLM(ctx, name, hits)
		}, func() []CandidateIdentity {
			return clusterByHost(name, hits)
		})
		if clustered {
			meta.Mode = DiscoveryModeCluster
		} else {
			meta.Mode = DiscoveryModeHeuristic
			if len(candidates) > 1 {
				merged, ok := attempt(d.logger, "llm-merge", func() ([]CandidateIdentity, error) {
					return d.mergeWithLLM(ctx, name, candidates)
				}, func() []CandidateIdentity {
					return candidates
				})
				if ok && len(merged) < len(candidates) {
					d.logger.Printf("merge pass folded %d candidates into %d", len(candidates), len(merged))
				}
				candidates = merged
			}
		}
	}
	meta.ClusterCount = len(candidates)

	if len(candidates) == 0 {
		candidates = fallbackIdentities(name)
		meta.Mode = DiscoveryModeFallback
	}
	candidates = dedupeCandidates(candidates)
	if err := ctx.Err(); err != nil {
		return nil, DiscoveryMeta{}, err
	}
	return candidates, meta, nil
}

// searchHits queries the web for the quoted name and returns hits deduplicated
// by normalized URL, with professional-network domains dropped.
func (d *Discoverer) searchHits(ctx context.Context, name string) []searchmodels.Result {
	if d.searcher == nil {
		d.logger.Printf("web search not configured")
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	hits, err := d.searcher.Discover(cctx, fmt.Sprintf("%q", name), d.maxResults*2, nil, 0)
	if err != nil {
		d.logger.Printf("WARN: web search failed: %v", err)
		telemetry.RecordCollaboratorFailure("web-search")
		return nil
	}

	seen := make(map[string]bool)
	var out []searchmodels.Result
	for _, h := range hits {
		u := normalizeURL(h.URL)
		if u == "" || seen[u] {
			continue
		}
		if isProfessionalNetwork(hostOf(u)) {
			continue
		}
		seen[u] = true
		h.URL = u
		out = append(out, h)
		if len(out) >= d.maxResults {
			break
		}
	}
	return out
}

type clusterPayload struct {
	Clusters []struct {
		DisplayName string   `json:"displayName"`
		Summary     string   `json:"summary"`
		URLs        []string `json:"urls"`
	} `json:"clusters"`
}

func (p *clusterPayload) Validate() error {
	if len(p.Clusters) == 0 {
		return fmt.Errorf("no clusters")
	}
	for i, c := range p.Clusters {
		if len(c.URLs) == 0 {
			return fmt.Errorf("cluster %d has no urls", i)
		}
	}
	return nil
}

func (d *Discoverer) clusterWithLLM(ctx context.Context, name string, hits []searchmodels.Result) ([]CandidateIdentity, error) {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	raw, err := d.llm.Generate(cctx, clusterPrompt(name, hits), d.model, nil)
	if err != nil {
		return nil, err
	}
	var payload clusterPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}

	var out []CandidateIdentity
	for _, c := range payload.Clusters {
		if len(out) >= maxCandidates {
			break
		}
		var urls []string
		for _, u := range c.URLs {
			n := normalizeURL(u)
			if n == "" {
				continue
			}
			if _, err := url.ParseRequestURI(n); err != nil {
				continue
			}
			urls = append(urls, n)
		}
		if len(urls) == 0 {
			continue
		}
		display := strings.TrimSpace(c.DisplayName)
		if display == "" {
			display = name
		}
		out = append(out, CandidateIdentity{
			DisplayName: display,
			ProfileURL:  urls[0],
			Source:      classifyHost(hostOf(urls[0])),
			Summary:     strings.TrimSpace(c.Summary),
			SupportURLs: urls[1:],
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: clustering produced no usable candidates", ErrLLMResponseShape)
	}
	assignCandidateIDs(out)
	return out, nil
}

type mergePayload struct {
	Groups [][]string `json:"groups"`
}

func (p *mergePayload) Validate() error { return nil }

func (d *Discoverer) mergeWithLLM(ctx context.Context, name string, candidates []CandidateIdentity) ([]CandidateIdentity, error) {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	raw, err := d.llm.Generate(cctx, mergePrompt(name, candidates), d.model, nil)
	if err != nil {
		return nil, err
	}
	var payload mergePayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}
	return applyMerges(candidates, payload.Groups), nil
}

// applyMerges folds each group of candidate ids into the group's
// lowest-index member, which keeps its id, absorbs the others' ids into
// MergedFrom and their profile URLs into SupportURLs. Unknown ids are
// ignored and groups with fewer than two known members are no-ops, so a
// malformed merge response can only leave candidates unmerged, never lose
// one.
func applyMerges(candidates []CandidateIdentity, groups [][]string) []CandidateIdentity {
	index := make(map[string]int, len(candidates))
	for i, c := range candidates {
		index[c.ID] = i
	}
	absorbed := make(map[int]bool)
	for _, group := range groups {
		var idxs []int
		for _, id := range group {
			if i, ok := index[id]; ok && !absorbed[i] {
				idxs = append(idxs, i)
			}
		}
		if len(idxs) < 2 {
			continue
		}
		sort.Ints(idxs)
		keep := idxs[0]
		if absorbed[keep] {
			continue
		}
		for _, i := range idxs[1:] {
			absorbed[i] = true
			candidates[keep].MergedFrom = append(candidates[keep].MergedFrom, candidates[i].ID)
			if u := candidates[i].ProfileURL; u != "" {
				candidates[keep].SupportURLs = append(candidates[keep].SupportURLs, u)
			}
			candidates[keep].SupportURLs = append(candidates[keep].SupportURLs, candidates[i].SupportURLs...)
			if s := candidates[i].Summary; s != "" && !strings.Contains(candidates[keep].Summary, s) {
				if candidates[keep].Summary != "" {
					candidates[keep].Summary += " "
				}
				candidates[keep].Summary += s
			}
			if candidates[keep].AvatarRef == "" {
				candidates[keep].AvatarRef = candidates[i].AvatarRef
			}
		}
	}
	out := make([]CandidateIdentity, 0, len(candidates))
	for i, c := range candidates {
		if !absorbed[i] {
			out = append(out, c)
		}
	}
	return out
}

// dedupeCandidates collapses candidates sharing a normalized profile URL
// (case-insensitive) into the first occurrence, folding the duplicate's
// merge metadata and support URLs forward, then makes ids unique by
// suffixing collisions.
func dedupeCandidates(candidates []CandidateIdentity) []CandidateIdentity {
	seen := make(map[string]int, len(candidates))
	out := make([]CandidateIdentity, 0, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(normalizeURL(c.ProfileURL))
		if key != "" {
			if i, ok := seen[key]; ok {
				kept := &out[i]
				if c.ID != "" && c.ID != kept.ID {
					kept.MergedFrom = append(kept.MergedFrom, c.ID)
				}
				kept.MergedFrom = append(kept.MergedFrom, c.MergedFrom...)
				kept.SupportURLs = append(kept.SupportURLs, c.SupportURLs...)
				if kept.Summary == "" {
					kept.Summary = c.Summary
				}
				if kept.AvatarRef == "" {
					kept.AvatarRef = c.AvatarRef
				}
				continue
			}
			seen[key] = len(out)
		}
		out = append(out, c)
	}
	ensureUniqueIDs(out)
	return out
}

// ensureUniqueIDs suffixes colliding candidate ids (cand-2, cand-2-2, ...)
// instead of dropping the late entry.
func ensureUniqueIDs(candidates []CandidateIdentity) {
	taken := make(map[string]bool, len(candidates))
	for i := range candidates {
		id := candidates[i].ID
		if id == "" {
			id = fmt.Sprintf("cand-%d", i+1)
		}
		if taken[id] {
			for n := 2; ; n++ {
				alt := fmt.Sprintf("%s-%d", id, n)
				if !taken[alt] {
					id = alt
					break
				}
			}
		}
		taken[id] = true
		candidates[i].ID = id
	}
}

// clusterByHost is the no-LLM path: one candidate per distinct host, in hit
// order, capped at maxCandidates. Later hits on an already-seen host become
// support URLs and backfill an empty summary.
func clusterByHost(name string, hits []searchmodels.Result) []CandidateIdentity {
	byHost := make(map[string]int)
	var out []CandidateIdentity
	for _, h := range hits {
		host := hostOf(h.URL)
		if host == "" {
			continue
		}
		if i, ok := byHost[host]; ok {
			out[i].SupportURLs = append(out[i].SupportURLs, h.URL)
			if out[i].Summary == "" {
				out[i].Summary = trimSnippet(h.Snippet, snippetMaxRunes)
			}
			continue
		}
		if len(out) >= maxCandidates {
			continue
		}
		byHost[host] = len(out)
		out = append(out, CandidateIdentity{
			DisplayName: name,
			ProfileURL:  h.URL,
			Source:      classifyHost(host),
			Summary:     trimSnippet(h.Snippet, snippetMaxRunes),
		})
	}
	assignCandidateIDs(out)
	return out
}

// fallbackIdentities are the deterministic guesses used when search yields
// nothing: a GitHub profile and a personal site derived from the name.
func fallbackIdentities(name string) []CandidateIdentity {
	slug := slugify(name)
	gh := "https://github.com/" + slug
	out := []CandidateIdentity{
		{
			DisplayName: name,
			ProfileURL:  gh,
			Source:      IdentitySourceCodeHost,
			Summary:     "Possible GitHub profile matching the name.",
			AvatarRef:   gh + ".png",
		},
		{
			DisplayName: name,
			ProfileURL:  "https://" + slug + ".dev",
			Source:      IdentitySourceGeneric,
			Summary:     "Possible personal site matching the name.",
		},
	}
	assignCandidateIDs(out)
	return out
}

func assignCandidateIDs(candidates []CandidateIdentity) {
	for i := range candidates {
		candidates[i].ID = fmt.Sprintf("cand-%d", i+1)
	}
}

func classifyHost(host string) string {
	switch {
	case hostMatches(host, "github.com", "gitlab.com", "bitbucket.org"):
		return IdentitySourceCodeHost
	case strings.HasPrefix(host, "scholar.google.") || hostMatches(host, "orcid.org", "arxiv.org"):
		return IdentitySourceScholar
	case hostMatches(host, "twitter.com", "x.com", "mastodon.social", "bsky.app"):
		return IdentitySourceSocial
	default:
		return IdentitySourceGeneric
	}
}

func hostMatches(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Professional-network profiles are never harvested or surfaced.
func isProfessionalNetwork(host string) bool {
	return hostMatches(host, "linkedin.com")
}
