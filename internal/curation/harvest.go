package curation

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/personafeed/internal/telemetry"
	fetchmodels "github.com/mohammad-safakhou/personafeed/tools/web_fetch/models"
)

// Harvester gathers public evidence about a confirmed identity: the GitHub
// profile and recent repositories when the identity lives there, the
// identity page itself plus the outbound links that look like the same
// person, and recent news mentions. Each source is optional; a failing or
// unconfigured one just contributes nothing. Given identical collaborator
// responses the output is byte-identical, so repeated runs for the same
// confirmation compare equal.
type Harvester struct {
	logger   *log.Logger
	fetcher  Fetcher
	codehost CodeHost
	news     NewsSource
	timeout  time.Duration
	window   time.Duration
}

func NewHarvester(logger *log.Logger, fetcher Fetcher, host CodeHost, news NewsSource, timeout, newsWindow time.Duration) *Harvester {
	return &Harvester{logger: logger, fetcher: fetcher, codehost: host, news: news, timeout: timeout, window: newsWindow}
}

// Harvest returns deduplicated evidence snippets, identity-derived ones
// first so the overall cap squeezes news out before profile facts.
func (h *Harvester) Harvest(ctx context.Context, name string, identity CandidateIdentity) ([]EvidenceSnippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snippets []EvidenceSnippet
	snippets = append(snippets, h.codeHostEvidence(ctx, identity)...)
	snippets = append(snippets, h.pageEvidence(ctx, identity)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snippets = append(snippets, h.newsEvidence(ctx, name)...)

	out := dedupeEvidence(snippets)
	h.logger.Printf("harvested %d evidence snippets for %q (%d before dedupe)", len(out), name, len(snippets))
	return out, nil
}

func (h *Harvester) codeHostEvidence(ctx context.Context, identity CandidateIdentity) []EvidenceSnippet {
	if h.codehost == nil {
		return nil
	}
	login := githubLogin(identity.ProfileURL)
	if login == "" {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	profile, err := h.codehost.Profile(cctx, login)
	if err != nil {
		h.logger.Printf("WARN: code host profile lookup failed for %s: %v", login, err)
		telemetry.RecordCollaboratorFailure("code-host")
		return nil
	}

	var out []EvidenceSnippet
	var facts []string
	if profile.Bio != "" {
		facts = append(facts, profile.Bio)
	}
	if profile.Company != "" {
		facts = append(facts, "works at "+profile.Company)
	}
	if profile.Location != "" {
		facts = append(facts, "based in "+profile.Location)
	}
	if profile.Blog != "" {
		facts = append(facts, "writes at "+profile.Blog)
	}
	if profile.Followers > 0 {
		facts = append(facts, fmt.Sprintf("%d followers", profile.Followers))
	}
	if len(facts) > 0 {
		profileURL := profile.HTMLURL
		if profileURL == "" {
			profileURL = identity.ProfileURL
		}
		title := profile.Name
		if title == "" {
			title = profile.Login
		}
		out = append(out, EvidenceSnippet{
			Source: EvidenceSourceGitHub,
			Title:  title,
			URL:    profileURL,
			Text:   trimSnippet(strings.Join(facts, ". "), snippetMaxRunes),
		})
	}

	rctx, rcancel := context.WithTimeout(ctx, h.timeout)
	defer rcancel()
	repos, err := h.codehost.RecentRepos(rctx, login, maxRecentRepos)
	if err != nil {
		h.logger.Printf("WARN: code host repo listing failed for %s: %v", login, err)
		telemetry.RecordCollaboratorFailure("code-host")
		return out
	}
	for _, r := range repos {
		text := "Recently updated " + r.FullName
		if r.Description != "" {
			text += ": " + r.Description
		}
		if r.Language != "" {
			text += " [" + r.Language + "]"
		}
		if r.Stars > 0 {
			text += fmt.Sprintf(" (%d stars)", r.Stars)
		}
		out = append(out, EvidenceSnippet{
			Source: EvidenceSourceGitHub,
			Title:  r.FullName,
			URL:    r.HTMLURL,
			Text:   trimSnippet(text, snippetMaxRunes),
		})
	}
	return out
}

// pageEvidence fetches the identity page, then follows its plausible
// same-person links together with the support URLs the discovery step
// attributed to this identity. Support URLs go first so a merged-away
// profile is still harvested even when the primary page fetch fails.
func (h *Harvester) pageEvidence(ctx context.Context, identity CandidateIdentity) []EvidenceSnippet {
	if h.fetcher == nil {
		return nil
	}

	var out []EvidenceSnippet
	links := append([]string{}, identity.SupportURLs...)
	if page, ok := h.fetchPage(ctx, identity.ProfileURL); ok {
		if text := trimSnippet(page.Text, snippetMaxRunes); text != "" {
			out = append(out, EvidenceSnippet{
				Source: EvidenceSourceWeb,
				Title:  strings.TrimSpace(page.Title),
				URL:    identity.ProfileURL,
				Text:   text,
			})
		}
		links = append(links, page.Links...)
	}

	self := normalizeURL(identity.ProfileURL)
	for _, link := range identityLinks(links) {
		if link == self {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		sub, ok := h.fetchPage(ctx, link)
		if !ok {
			continue
		}
		if text := trimSnippet(sub.Text, snippetMaxRunes); text != "" {
			out = append(out, EvidenceSnippet{
				Source: EvidenceSourceWeb,
				Title:  strings.TrimSpace(sub.Title),
				URL:    link,
				Text:   text,
			})
		}
	}
	return out
}

func (h *Harvester) fetchPage(ctx context.Context, rawURL string) (fetchmodels.Result, bool) {
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	res, err := h.fetcher.Exec(cctx, rawURL)
	if err != nil {
		h.logger.Printf("WARN: fetch failed for %s: %v", rawURL, err)
		telemetry.RecordCollaboratorFailure("web-fetch")
		return fetchmodels.Result{}, false
	}
	if res.Status >= 400 {
		h.logger.Printf("fetch of %s returned status %d, skipping", rawURL, res.Status)
		return fetchmodels.Result{}, false
	}
	return res, true
}

func (h *Harvester) newsEvidence(ctx context.Context, name string) []EvidenceSnippet {
	if h.news == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	items, err := h.news.Search(cctx, fmt.Sprintf("%q", name), h.window, maxNewsEvidence)
	if err != nil {
		h.logger.Printf("WARN: news lookup failed for %q: %v", name, err)
		telemetry.RecordCollaboratorFailure("news-rss")
		return nil
	}
	var out []EvidenceSnippet
	for _, it := range items {
		text := it.Snippet
		if text == "" {
			text = it.Title
		}
		if it.Source != "" {
			text += " (" + it.Source + ")"
		}
		out = append(out, EvidenceSnippet{
			Source: EvidenceSourceNews,
			Title:  it.Title,
			URL:    it.URL,
			Text:   trimSnippet(text, snippetMaxRunes),
		})
	}
	return out
}

// dedupeEvidence keeps the first snippet per normalized URL, preserving
// order, capped at maxEvidence.
func dedupeEvidence(snippets []EvidenceSnippet) []EvidenceSnippet {
	seen := make(map[string]bool, len(snippets))
	out := make([]EvidenceSnippet, 0, len(snippets))
	for _, s := range snippets {
		key := normalizeURL(s.URL)
		if key == "" {
			key = s.Text
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) >= maxEvidence {
			break
		}
	}
	return out
}

// identityLinks keeps links that plausibly belong to the same person (code
// hosts, scholarly profiles, social handles, writing platforms),
// deduplicated in input order and capped.
func identityLinks(links []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range links {
		n := normalizeURL(l)
		if n == "" || seen[n] {
			continue
		}
		if !isIdentityHost(hostOf(n)) {
			continue
		}
		seen[n] = true
		out = append(out, n)
		if len(out) >= maxIdentityLinks {
			break
		}
	}
	return out
}

func isIdentityHost(host string) bool {
	if isProfessionalNetwork(host) {
		return false
	}
	if strings.HasPrefix(host, "scholar.google.") {
		return true
	}
	return hostMatches(host,
		"github.com", "gitlab.com", "bitbucket.org",
		"orcid.org",
		"twitter.com", "x.com", "mastodon.social", "bsky.app",
		"medium.com", "substack.com", "dev.to",
	)
}

// githubLogin extracts the account name from a github.com profile URL,
// rejecting non-profile paths like search or orgs listings.
func githubLogin(profileURL string) string {
	u, err := url.Parse(profileURL)
	if err != nil {
		return ""
	}
	if !hostMatches(strings.ToLower(strings.TrimPrefix(u.Host, "www.")), "github.com") {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	switch strings.ToLower(parts[0]) {
	case "search", "orgs", "topics", "trending", "features", "about", "login":
		return ""
	}
	return parts[0]
}
