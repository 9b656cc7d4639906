package curation

import (
	"context"
	"io"
	"log"
	"testing"

	searchmodels "github.com/mohammad-safakhou/personafeed/tools/web_search/models"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestApplyMergesKeepsLowestIndex(t *testing.T) {
	candidates := []CandidateIdentity{
		{ID: "cand-1", Summary: "Go developer"},
		{ID: "cand-2", Summary: "Pastry chef"},
		{ID: "cand-3", Summary: "Writes about distributed systems", AvatarRef: "https://example.com/a.png"},
	}
	merged := applyMerges(candidates, [][]string{{"cand-3", "cand-1"}})

	if len(merged) != 2 {
		t.Fatalf("expected 2 candidates after merge, got %d", len(merged))
	}
	if merged[0].ID != "cand-1" || merged[1].ID != "cand-2" {
		t.Fatalf("unexpected survivors: %s, %s", merged[0].ID, merged[1].ID)
	}
	if len(merged[0].MergedFrom) != 1 || merged[0].MergedFrom[0] != "cand-3" {
		t.Fatalf("unexpected MergedFrom: %v", merged[0].MergedFrom)
	}
	if merged[0].Summary != "Go developer Writes about distributed systems" {
		t.Fatalf("summaries not unioned: %q", merged[0].Summary)
	}
	if merged[0].AvatarRef != "https://example.com/a.png" {
		t.Fatalf("avatar not inherited: %q", merged[0].AvatarRef)
	}
}

func TestApplyMergesIgnoresUnknownIDs(t *testing.T) {
	candidates := []CandidateIdentity{{ID: "cand-1"}, {ID: "cand-2"}}
	merged := applyMerges(candidates, [][]string{{"cand-1", "cand-9"}, {"cand-9", "cand-8"}})
	if len(merged) != 2 {
		t.Fatalf("merge with unknown ids should be a no-op, got %d candidates", len(merged))
	}
	if len(merged[0].MergedFrom) != 0 {
		t.Fatalf("unexpected MergedFrom: %v", merged[0].MergedFrom)
	}
}

func TestApplyMergesFoldsProfileIntoSupportURLs(t *testing.T) {
	candidates := []CandidateIdentity{
		{ID: "cand-1", ProfileURL: "https://github.com/ada"},
		{ID: "cand-2", ProfileURL: "https://ada.dev", SupportURLs: []string{"https://ada.codes"}},
	}
	merged := applyMerges(candidates, [][]string{{"cand-1", "cand-2"}})
	if len(merged) != 1 {
		t.Fatalf("expected single merged candidate, got %d", len(merged))
	}
	want := []string{"https://ada.dev", "https://ada.codes"}
	if len(merged[0].SupportURLs) != len(want) {
		t.Fatalf("absorbed urls not kept: %v", merged[0].SupportURLs)
	}
	for i, u := range want {
		if merged[0].SupportURLs[i] != u {
			t.Fatalf("support url %d = %q, want %q", i, merged[0].SupportURLs[i], u)
		}
	}
}

func TestDedupeCandidates(t *testing.T) {
	in := []CandidateIdentity{
		{ID: "cand-1", ProfileURL: "https://github.com/ada", Summary: "Engineer"},
		{ID: "cand-2", ProfileURL: "https://github.com/ada/", SupportURLs: []string{"https://ada.dev"}},
		{ID: "cand-1", ProfileURL: "https://ada.codes"},
	}
	out := dedupeCandidates(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(out), out)
	}
	if out[0].ID != "cand-1" || len(out[0].MergedFrom) != 1 || out[0].MergedFrom[0] != "cand-2" {
		t.Fatalf("duplicate profile not folded: %+v", out[0])
	}
	if len(out[0].SupportURLs) != 1 || out[0].SupportURLs[0] != "https://ada.dev" {
		t.Fatalf("support urls not folded: %v", out[0].SupportURLs)
	}
	if out[1].ID != "cand-1-2" {
		t.Fatalf("colliding id not suffixed: %q", out[1].ID)
	}
}

func TestClusterByHostGroupsAndCaps(t *testing.T) {
	var hits []searchmodels.Result
	hits = append(hits,
		searchmodels.Result{URL: "https://github.com/ada", Title: "ada", Snippet: "code"},
		searchmodels.Result{URL: "https://github.com/ada/repo", Title: "repo"},
	)
	for _, host := range []string{"a.dev", "b.dev", "c.dev", "d.dev", "e.dev", "f.dev", "g.dev"} {
		hits = append(hits, searchmodels.Result{URL: "https://" + host + "/post", Title: host})
	}

	out := clusterByHost("Ada Lovelace", hits)
	if len(out) != maxCandidates {
		t.Fatalf("expected cap of %d candidates, got %d", maxCandidates, len(out))
	}
	if out[0].ProfileURL != "https://github.com/ada" {
		t.Fatalf("first candidate should keep first github hit, got %s", out[0].ProfileURL)
	}
	if out[0].Source != IdentitySourceCodeHost {
		t.Fatalf("github cluster classified as %s", out[0].Source)
	}
	if len(out[0].SupportURLs) != 1 || out[0].SupportURLs[0] != "https://github.com/ada/repo" {
		t.Fatalf("later same-host hit should become a support url: %v", out[0].SupportURLs)
	}
	if out[0].ID != "cand-1" || out[1].ID != "cand-2" {
		t.Fatalf("ids not assigned in order: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestFallbackIdentities(t *testing.T) {
	out := fallbackIdentities("Ada Lovelace")
	if len(out) != 2 {
		t.Fatalf("expected 2 fallback identities, got %d", len(out))
	}
	if out[0].ProfileURL != "https://github.com/ada-lovelace" {
		t.Fatalf("unexpected github guess: %s", out[0].ProfileURL)
	}
	if out[0].Source != IdentitySourceCodeHost || out[0].AvatarRef != "https://github.com/ada-lovelace.png" {
		t.Fatalf("github guess malformed: %+v", out[0])
	}
	if out[1].ProfileURL != "https://ada-lovelace.dev" || out[1].Source != IdentitySourceGeneric {
		t.Fatalf("site guess malformed: %+v", out[1])
	}
}

func TestDiscoverWithoutSearchFallsBack(t *testing.T) {
	d := NewDiscoverer(testLogger(), nil, "", nil, testTimeout, maxSearchResults)
	out, meta, err := d.Discover(context.Background(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(out) != 2 || out[0].Source != IdentitySourceCodeHost {
		t.Fatalf("expected deterministic fallback identities, got %+v", out)
	}
	if meta.Mode != DiscoveryModeFallback || meta.SearchResults != 0 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestDiscoverDedupesAndDropsProfessionalNetworks(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{
		{URL: "https://github.com/ada", Title: "ada on github"},
		{URL: "https://github.com/ada/", Title: "duplicate"},
		{URL: "https://www.linkedin.com/in/ada", Title: "professional profile"},
		{URL: "https://ada.dev", Title: "personal site"},
	}}
	d := NewDiscoverer(testLogger(), nil, "", searcher, testTimeout, maxSearchResults)

	out, meta, err := d.Discover(context.Background(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(out), out)
	}
	for _, c := range out {
		if isProfessionalNetwork(hostOf(c.ProfileURL)) {
			t.Fatalf("professional network leaked into candidates: %s", c.ProfileURL)
		}
	}
	if meta.Mode != DiscoveryModeHeuristic || meta.SearchResults != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestDiscoverClustersWithLLM(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{
		{URL: "https://github.com/ada", Title: "ada on github"},
		{URL: "https://ada.dev", Title: "personal site"},
	}}
	provider := &seqLLM{responses: []string{
		`{"clusters": [
			{"displayName": "Ada Lovelace", "summary": "Compiler engineer", "urls": ["https://github.com/ada", "https://ada.dev"]},
			{"displayName": "Ada Lovelace", "summary": "Food blogger", "urls": ["https://cooking.example.com/ada"]}
		]}`,
	}}
	d := NewDiscoverer(testLogger(), provider, "gpt-test", searcher, testTimeout, maxSearchResults)

	out, meta, err := d.Discover(context.Background(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 clustered candidates, got %d", len(out))
	}
	if out[0].ID != "cand-1" || out[0].ProfileURL != "https://github.com/ada" || out[0].Source != IdentitySourceCodeHost {
		t.Fatalf("first cluster malformed: %+v", out[0])
	}
	if len(out[0].SupportURLs) != 1 || out[0].SupportURLs[0] != "https://ada.dev" {
		t.Fatalf("cluster extra urls should become support urls: %v", out[0].SupportURLs)
	}
	if out[1].Summary != "Food blogger" {
		t.Fatalf("second cluster malformed: %+v", out[1])
	}
	if meta.Mode != DiscoveryModeCluster || meta.SearchResults != 2 || meta.ClusterCount != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestDiscoverMergePassFoldsCandidates(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{
		{URL: "https://github.com/ada", Title: "ada on github"},
		{URL: "https://ada.dev", Title: "personal site"},
	}}
	// Clustering fails, so discovery drops to host grouping and then runs
	// the merge pass over the groups.
	provider := &seqLLM{responses: []string{
		"not json at all",
		`{"groups": [["cand-1", "cand-2"]]}`,
	}}
	d := NewDiscoverer(testLogger(), provider, "gpt-test", searcher, testTimeout, maxSearchResults)

	out, meta, err := d.Discover(context.Background(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected merged single candidate, got %d", len(out))
	}
	if out[0].ID != "cand-1" || len(out[0].MergedFrom) != 1 {
		t.Fatalf("merge result malformed: %+v", out[0])
	}
	if len(out[0].SupportURLs) != 1 || out[0].SupportURLs[0] != "https://ada.dev" {
		t.Fatalf("absorbed profile should survive as support url: %v", out[0].SupportURLs)
	}
	if meta.Mode != DiscoveryModeHeuristic {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestDiscoverFallsBackOnGarbageLLM(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{
		{URL: "https://github.com/ada", Title: "ada on github", Snippet: "code"},
	}}
	provider := &seqLLM{responses: []string{"not json at all"}}
	d := NewDiscoverer(testLogger(), provider, "gpt-test", searcher, testTimeout, maxSearchResults)

	out, meta, err := d.Discover(context.Background(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(out) != 1 || out[0].ProfileURL != "https://github.com/ada" {
		t.Fatalf("expected host-clustered fallback, got %+v", out)
	}
	if meta.Mode != DiscoveryModeHeuristic {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}
