package curation

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/personafeed/tools/codehost"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/newsrss"
	fetchmodels "github.com/mohammad-safakhou/personafeed/tools/web_fetch/models"
)

func harvestFixture() (*stubFetcher, *stubCodeHost, *stubNews, CandidateIdentity) {
	identity := CandidateIdentity{
		ID:          "cand-1",
		DisplayName: "Ada Lovelace",
		ProfileURL:  "https://github.com/ada",
		Source:      IdentitySourceCodeHost,
	}
	fetcher := &stubFetcher{pages: map[string]fetchmodels.Result{
		"https://github.com/ada": {
			Text:  "Ada builds compilers and writes about static analysis.",
			Links: []string{"https://gitlab.com/ada", "https://www.linkedin.com/in/ada", "https://ada.example.com/blog"},
		},
		"https://gitlab.com/ada": {Title: "Ada on GitLab", Text: "Mirrors of Ada's compiler projects."},
	}}
	host := &stubCodeHost{
		profile: codehost.Profile{Login: "ada", Bio: "Compiler engineer", Company: "Analytical Engines", HTMLURL: "https://github.com/ada"},
		repos: []codehost.Repo{
			{FullName: "ada/zmach", Description: "A tiny VM", Language: "Go", Stars: 41, HTMLURL: "https://github.com/ada/zmach"},
		},
	}
	news := &stubNews{items: []newsrss.Item{
		{Title: "Ada Lovelace speaks at GopherCon", URL: "https://news.example.com/gophercon", Source: "news.example.com", Published: time.Now()},
		{Title: "Duplicate of the repo", URL: "https://github.com/ada/zmach", Source: "blog.example.com"},
	}}
	return fetcher, host, news, identity
}

func TestHarvestOrdersIdentityBeforeNewsAndDedupes(t *testing.T) {
	fetcher, host, news, identity := harvestFixture()
	h := NewHarvester(testLogger(), fetcher, host, news, testTimeout, 30*24*time.Hour)

	out, err := h.Harvest(context.Background(), "Ada Lovelace", identity)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}

	var sources []string
	for _, s := range out {
		sources = append(sources, s.Source)
	}
	want := []string{EvidenceSourceGitHub, EvidenceSourceGitHub, EvidenceSourceWeb, EvidenceSourceNews}
	if strings.Join(sources, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected source order: %v", sources)
	}

	// The profile page snippet shares its URL with the code host profile, and
	// one news item shares the repo URL; both must dedupe away.
	seen := map[string]int{}
	for _, s := range out {
		seen[normalizeURL(s.URL)]++
	}
	for u, n := range seen {
		if n > 1 {
			t.Fatalf("url %s appears %d times", u, n)
		}
	}
	if !strings.Contains(out[0].Text, "Compiler engineer") || out[0].Title != "ada" {
		t.Fatalf("profile facts missing: %+v", out[0])
	}
	if !strings.Contains(out[1].Text, "ada/zmach") || out[1].Title != "ada/zmach" {
		t.Fatalf("repo evidence missing: %+v", out[1])
	}
	if out[2].URL != "https://gitlab.com/ada" || out[2].Title != "Ada on GitLab" {
		t.Fatalf("expected expanded identity link, got %+v", out[2])
	}
}

func TestHarvestIdempotent(t *testing.T) {
	fetcher, host, news, identity := harvestFixture()
	h := NewHarvester(testLogger(), fetcher, host, news, testTimeout, 30*24*time.Hour)

	first, err := h.Harvest(context.Background(), "Ada Lovelace", identity)
	if err != nil {
		t.Fatalf("first Harvest: %v", err)
	}
	second, err := h.Harvest(context.Background(), "Ada Lovelace", identity)
	if err != nil {
		t.Fatalf("second Harvest: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("runs differ:\n%+v\n%+v", first, second)
	}
}

func TestHarvestFetchesDeclaredSupportURLs(t *testing.T) {
	identity := CandidateIdentity{
		ID:          "cand-1",
		DisplayName: "Ada Lovelace",
		ProfileURL:  "https://gitlab.com/ada",
		Source:      IdentitySourceCodeHost,
		SupportURLs: []string{"https://gitlab.com/ada", "https://dev.to/ada"},
	}
	fetcher := &stubFetcher{pages: map[string]fetchmodels.Result{
		"https://gitlab.com/ada": {Title: "Ada on GitLab", Text: "Compiler projects."},
		"https://dev.to/ada":     {Title: "Ada's posts", Text: "Writing about static analysis."},
	}}
	h := NewHarvester(testLogger(), fetcher, nil, nil, testTimeout, 30*24*time.Hour)

	out, err := h.Harvest(context.Background(), "Ada Lovelace", identity)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected profile page plus support url evidence, got %+v", out)
	}
	if out[1].URL != "https://dev.to/ada" || out[1].Title != "Ada's posts" {
		t.Fatalf("support url not harvested: %+v", out[1])
	}
	// The self-referencing support url must not trigger a second fetch of
	// the profile page.
	if fetcher.calls != 2 {
		t.Fatalf("expected 2 fetches, got %d", fetcher.calls)
	}
}

func TestHarvestCapsEvidence(t *testing.T) {
	pages := map[string]fetchmodels.Result{}
	var links []string
	for _, slug := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n"} {
		u := "https://gitlab.com/" + slug
		links = append(links, u)
		pages[u] = fetchmodels.Result{Text: "Project page " + slug}
	}
	pages["https://github.com/ada"] = fetchmodels.Result{Text: "Profile text", Links: links}

	fetcher := &stubFetcher{pages: pages}
	host := &stubCodeHost{
		profile: codehost.Profile{Login: "ada", Bio: "Compiler engineer", HTMLURL: "https://github.com/ada"},
		repos: []codehost.Repo{
			{FullName: "ada/r1", HTMLURL: "https://github.com/ada/r1", Description: "one"},
			{FullName: "ada/r2", HTMLURL: "https://github.com/ada/r2", Description: "two"},
			{FullName: "ada/r3", HTMLURL: "https://github.com/ada/r3", Description: "three"},
			{FullName: "ada/r4", HTMLURL: "https://github.com/ada/r4", Description: "four"},
			{FullName: "ada/r5", HTMLURL: "https://github.com/ada/r5", Description: "five"},
		},
	}
	news := &stubNews{items: []newsrss.Item{
		{Title: "n1", URL: "https://news.example.com/1"},
		{Title: "n2", URL: "https://news.example.com/2"},
		{Title: "n3", URL: "https://news.example.com/3"},
		{Title: "n4", URL: "https://news.example.com/4"},
		{Title: "n5", URL: "https://news.example.com/5"},
		{Title: "n6", URL: "https://news.example.com/6"},
	}}
	identity := CandidateIdentity{ID: "cand-1", ProfileURL: "https://github.com/ada", Source: IdentitySourceCodeHost}

	h := NewHarvester(testLogger(), fetcher, host, news, testTimeout, 30*24*time.Hour)
	out, err := h.Harvest(context.Background(), "Ada Lovelace", identity)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(out) != maxEvidence {
		t.Fatalf("expected evidence capped at %d, got %d", maxEvidence, len(out))
	}
	// 6 code host snippets + 12 link pages fill 18 slots; only 2 of the 6
	// news items survive the cap.
	var newsCount int
	for _, s := range out {
		if s.Source == EvidenceSourceNews {
			newsCount++
		}
	}
	if newsCount != 2 {
		t.Fatalf("expected news squeezed to 2 snippets, got %d", newsCount)
	}
}

func TestHarvestSurvivesFailingCollaborators(t *testing.T) {
	fetcher := &stubFetcher{} // every fetch errors
	news := &stubNews{items: []newsrss.Item{{Title: "n1", URL: "https://news.example.com/1"}}}
	identity := CandidateIdentity{ID: "cand-1", ProfileURL: "https://ada.dev", Source: IdentitySourceGeneric}

	h := NewHarvester(testLogger(), fetcher, nil, news, testTimeout, 30*24*time.Hour)
	out, err := h.Harvest(context.Background(), "Ada Lovelace", identity)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if len(out) != 1 || out[0].Source != EvidenceSourceNews {
		t.Fatalf("expected news-only evidence, got %+v", out)
	}
	if out[0].Title != "n1" {
		t.Fatalf("news title not carried: %+v", out[0])
	}
}

func TestGitHubLogin(t *testing.T) {
	cases := []struct {
		url, want string
	}{
		{"https://github.com/ada", "ada"},
		{"https://www.github.com/ada/zmach", "ada"},
		{"https://github.com/orgs/acme", ""},
		{"https://gitlab.com/ada", ""},
		{"https://github.com/", ""},
	}
	for _, c := range cases {
		if got := githubLogin(c.url); got != c.want {
			t.Errorf("githubLogin(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestIdentityLinksFiltersAndCaps(t *testing.T) {
	links := []string{
		"https://gitlab.com/ada",
		"https://gitlab.com/ada", // duplicate
		"https://www.linkedin.com/in/ada",
		"https://ada.example.com/blog",
		"https://dev.to/ada",
		"https://scholar.google.com/citations?user=ada",
	}
	out := identityLinks(links)
	if len(out) != 3 {
		t.Fatalf("expected 3 identity links, got %v", out)
	}
	for _, l := range out {
		if strings.Contains(l, "linkedin") || strings.Contains(l, "ada.example.com") {
			t.Fatalf("disallowed link kept: %s", l)
		}
	}

	var many []string
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n"} {
		many = append(many, "https://gitlab.com/"+s)
	}
	if got := identityLinks(many); len(got) != maxIdentityLinks {
		t.Fatalf("expected cap of %d links, got %d", maxIdentityLinks, len(got))
	}
}
