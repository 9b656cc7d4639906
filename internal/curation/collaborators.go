package curation

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/personafeed/tools/codehost"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/arxiv"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/hackernews"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/newsrss"
	fetchmodels "github.com/mohammad-safakhou/personafeed/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/personafeed/tools/web_search/models"
)

// Pipeline tunables.
const (
	maxSearchResults    = 12 // deduped web hits fed to identity clustering
	maxCandidates       = 6  // identities surfaced for confirmation
	maxEvidence         = 20 // harvested snippets per identity
	maxNewsEvidence     = 6
	maxIdentityLinks    = 12 // outbound links expanded from the identity page
	maxRecentRepos      = 5
	snippetMaxRunes     = 700
	maxQueriesPerSource = 4
	poolCap             = 30
	feedSize            = 10
	perSourceCap        = 3 // per source inside the final feed
	explorationSize     = 2
	explorationCap      = 1 // per source inside the exploration pick
	maxKeywords         = 12
	fallbackKeywords    = 8
	maxEvidenceRefs     = 3
)

// Collaborator contracts. The tools packages satisfy these directly; tests
// substitute stubs. Any of them may be nil (unconfigured), in which case
// the owning component runs its fallback.

type Searcher interface {
	Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]searchmodels.Result, error)
}

type Fetcher interface {
	Exec(ctx context.Context, url string) (fetchmodels.Result, error)
}

type CodeHost interface {
	Profile(ctx context.Context, login string) (codehost.Profile, error)
	RecentRepos(ctx context.Context, login string, n int) ([]codehost.Repo, error)
	SearchRepos(ctx context.Context, query string, n int) ([]codehost.Repo, error)
}

type PaperSource interface {
	Search(ctx context.Context, query string, n int) ([]arxiv.Entry, error)
}

type StorySource interface {
	Search(ctx context.Context, query string, n int) ([]hackernews.Story, error)
}

type NewsSource interface {
	Search(ctx context.Context, query string, window time.Duration, n int) ([]newsrss.Item, error)
}
