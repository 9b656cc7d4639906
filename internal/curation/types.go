package curation

import (
	"time"
)

// Identity source kinds, classified from the profile URL host.
const (
	IdentitySourceCodeHost = "code-host"
	IdentitySourceScholar  = "scholar"
	IdentitySourceSocial   = "social"
	IdentitySourceGeneric  = "generic-site"
)

// Evidence snippet origins.
const (
	EvidenceSourceGitHub = "github"
	EvidenceSourceWeb    = "web"
	EvidenceSourceNews   = "news"
)

// Content sources, listed in rebalancing priority order.
const (
	ContentSourceArxiv      = "arxiv"
	ContentSourceHackerNews = "hackernews"
	ContentSourceNews       = "news"
	ContentSourceGitHub     = "github"
)

// Pipeline stages in execution order.
const (
	StageDiscoverCandidates = "DiscoverCandidates"
	StageAwaitUserConfirm   = "AwaitUserConfirm"
	StageResolveEntities    = "ResolveEntities"
	StageHarvestPublicData  = "HarvestPublicData"
	StageBuildProfile       = "BuildProfile"
	StageFetchCandidates    = "FetchCandidates"
	StageRankAndExplain     = "RankAndExplain"
)

// CandidateIdentity is one plausible online identity for the requested name.
// IDs are assigned in presentation order (cand-1, cand-2, ...); a merge keeps
// the lowest-index survivor, records the absorbed ids in MergedFrom, and
// folds the absorbed profile URLs into SupportURLs so harvesting still
// reaches them.
type CandidateIdentity struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	ProfileURL  string   `json:"profileUrl"`
	Source      string   `json:"source"`
	Summary     string   `json:"summary,omitempty"`
	AvatarRef   string   `json:"avatarRef,omitempty"`
	SupportURLs []string `json:"supportUrls,omitempty"`
	MergedFrom  []string `json:"mergedFrom,omitempty"`
}

// EvidenceSnippet is one captured fragment of public data about a confirmed
// identity.
type EvidenceSnippet struct {
	Source string `json:"source"` // github, web, news
	Title  string `json:"title,omitempty"`
	URL    string `json:"url"`
	Text   string `json:"text"`
}

// KeywordWeight is an interest keyword with its normalized weight. Weights
// across a profile sum to 1.0.
type KeywordWeight struct {
	Keyword   string  `json:"keyword"`
	Weight    float64 `json:"weight"`
	Rationale string  `json:"rationale,omitempty"`
}

// EvidenceRef ties a profile claim back to a supporting snippet URL.
type EvidenceRef struct {
	Claim      string `json:"claim"`
	SupportURL string `json:"supportUrl"`
}

// ProfileCard is the synthesized interest profile driving query planning and
// ranking. SourceFocus maps each evidence source to the fraction of snippets
// it contributed; fractions sum to 1.0 when evidence exists.
type ProfileCard struct {
	Name            string             `json:"name"`
	Headline        string             `json:"headline,omitempty"`
	Summary         string             `json:"summary,omitempty"`
	KeywordWeights  []KeywordWeight    `json:"keywordWeights"`
	SourceFocus     map[string]float64 `json:"sourceFocus,omitempty"`
	Queries         []string           `json:"queries,omitempty"`
	Preferences     map[string]float64 `json:"preferences"`
	PreferenceNotes []string           `json:"preferenceNotes,omitempty"`
	Evidence        []EvidenceRef      `json:"evidence,omitempty"`
}

// QueryPlan carries the per-source search queries, at most four each. GitHub
// queries are optional extras; the three public feeds are always planned.
type QueryPlan struct {
	Arxiv      []string `json:"arxiv"`
	HackerNews []string `json:"hackernews"`
	News       []string `json:"news"`
	GitHub     []string `json:"github,omitempty"`
}

// CandidateContentItem is one gathered piece of content before ranking.
type CandidateContentItem struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"` // arxiv, hackernews, news, github
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Snippet     string    `json:"snippet,omitempty"`
	PublishedAt time.Time `json:"publishedAt,omitempty"`
}

// FeedItem is a ranked item with its reader-facing explanation.
type FeedItem struct {
	Item    CandidateContentItem `json:"item"`
	Summary string               `json:"summary"`
	Because string               `json:"because"`
}

// DiscoveryMeta describes how a candidate list was produced.
type DiscoveryMeta struct {
	Mode          string `json:"mode"` // cluster, heuristic, fallback
	SearchResults int    `json:"searchResults"`
	ClusterCount  int    `json:"clusterCount"`
}

// CandidatesPayload is the candidates event body.
type CandidatesPayload struct {
	Candidates []CandidateIdentity `json:"candidates"`
	Meta       DiscoveryMeta       `json:"meta"`
}

// CandidatePoolPayload is the candidate_pool event body: the gathered items
// plus the plan that produced them and how that plan was made.
type CandidatePoolPayload struct {
	Items []CandidateContentItem `json:"items"`
	Plan  QueryPlan              `json:"plan"`
	Mode  string                 `json:"mode"` // llm, fallback
}

// FeedPayload is the terminal feed event body. Remaining lists pool items
// surfaced in neither the feed nor the exploration slice.
type FeedPayload struct {
	Items             []FeedItem             `json:"items"`
	ExplorationItems  []FeedItem             `json:"explorationItems"`
	ExploitationCount int                    `json:"exploitationCount"`
	ExplorationCount  int                    `json:"explorationCount"`
	Remaining         []CandidateContentItem `json:"remaining,omitempty"`
}

// DeepenDigest is the follow-up digest for one cached feed item.
type DeepenDigest struct {
	ItemID      string   `json:"itemId"`
	TLDR        string   `json:"tldr"`
	WhyMe       string   `json:"whyMe"`
	NextActions []string `json:"nextActions"`
}
