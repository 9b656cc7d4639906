package curation

import (
	"fmt"
	"sort"
	"strings"

	searchmodels "github.com/mohammad-safakhou/personafeed/tools/web_search/models"
)

func clusterPrompt(name string, hits []searchmodels.Result) string {
	var block strings.Builder
	for i, h := range hits {
		block.WriteString(fmt.Sprintf("%d. %s\n   url: %s\n", i+1, promptText(h.Title, 160), h.URL))
		if h.Snippet != "" {
			block.WriteString(fmt.Sprintf("   snippet: %s\n", promptText(h.Snippet, 300)))
		}
	}

	return fmt.Sprintf(`You are an identity resolution agent. Web search for a person's name returned pages that may describe several different people who share that name.

NAME: %s

SEARCH HITS:
%s
REQUIREMENTS:
1. Group the hits into clusters, one per distinct person, at most %d clusters.
2. Every cluster needs at least one url taken verbatim from the hits above.
3. Put the most plausible profile page first in each cluster's urls.
4. Write a one-sentence summary of who each person appears to be.
5. Skip hits that are clearly not about a person.

OUTPUT FORMAT (JSON):
{
  "clusters": [
    {
      "displayName": "Name as it appears for this person",
      "summary": "One sentence describing this person",
      "urls": ["https://..."]
    }
  ]
}

Respond ONLY with the JSON object.`, name, block.String(), maxCandidates)
}

func mergePrompt(name string, candidates []CandidateIdentity) string {
	var block strings.Builder
	for _, c := range candidates {
		block.WriteString(fmt.Sprintf("- id: %s\n  profile: %s\n  source: %s\n", c.ID, c.ProfileURL, c.Source))
		if c.Summary != "" {
			block.WriteString(fmt.Sprintf("  summary: %s\n", promptText(c.Summary, 300)))
		}
	}

	return fmt.Sprintf(`You are reviewing candidate identities for the name "%s". Some candidates may be the same person seen on different sites (for example a GitHub account and a personal blog).

CANDIDATES:
%s
REQUIREMENTS:
1. Output groups of candidate ids that refer to the SAME person.
2. Only group candidates when the evidence clearly supports it.
3. Leave out candidates that stand alone; an empty groups list is valid.

OUTPUT FORMAT (JSON):
{
  "groups": [["cand-1", "cand-3"]]
}

Respond ONLY with the JSON object.`, name, block.String())
}

func synthesisPrompt(name string, identity CandidateIdentity, evidence []EvidenceSnippet) string {
	return fmt.Sprintf(`You are building an interest profile for a personalized content feed.

PERSON: %s
CONFIRMED IDENTITY: %s (%s)

EVIDENCE:
%s
REQUIREMENTS:
1. Summarize who this person is and what they work on, grounded ONLY in the evidence above.
2. Propose up to %d interest keywords, most important first.
3. Propose up to 6 search queries that would find content this person wants to read.
4. Score preferences between 0 and 1: "depth" (0 light reads, 1 dense technical material), "format" (0 articles, 1 papers and code), "novelty" (0 stick to known interests, 1 stretch into adjacent areas).
5. Cite up to %d claims, each tied to one of the evidence urls.

OUTPUT FORMAT (JSON):
{
  "headline": "One line describing the person",
  "summary": "Two or three sentences about their interests",
  "keywords": ["keyword1", "keyword2"],
  "queries": ["query one", "query two"],
  "preferences": {"depth": 0.5, "format": 0.5, "novelty": 0.5},
  "evidence": [
    {"claim": "What the evidence shows", "supportUrl": "https://..."}
  ]
}

Respond ONLY with the JSON object.`, name, identity.ProfileURL, identity.Source, evidenceBlock(evidence), maxKeywords, maxEvidenceRefs)
}

func augmentPrompt(name string, card ProfileCard) string {
	var kws []string
	for _, kw := range card.KeywordWeights {
		kws = append(kws, kw.Keyword)
	}

	return fmt.Sprintf(`You are refining an interest profile for a personalized content feed.

PERSON: %s
SUMMARY: %s
KEYWORDS: %s
QUERIES: %s

REQUIREMENTS:
1. Weight each keyword by how central it is to this person's interests. Weights are relative; they do not need to sum to anything.
2. Give a short rationale per keyword.
3. Add up to 3 extra search queries the current list misses.
4. Note anything a feed curator should remember about this person's tastes.

OUTPUT FORMAT (JSON):
{
  "keywordWeights": [
    {"keyword": "keyword1", "weight": 0.8, "rationale": "Why it matters"}
  ],
  "queries": ["extra query"],
  "preferenceNotes": ["One short note"]
}

Respond ONLY with the JSON object.`, name, promptText(card.Summary, 500), strings.Join(kws, ", "), strings.Join(card.Queries, "; "))
}

func planPrompt(profile ProfileCard) string {
	var kws []string
	for _, kw := range profile.KeywordWeights {
		kws = append(kws, fmt.Sprintf("%s (%.2f)", kw.Keyword, kw.Weight))
	}
	var claims strings.Builder
	for i, e := range profile.Evidence {
		if i >= 4 {
			break
		}
		claims.WriteString(fmt.Sprintf("- %s (%s)\n", promptText(e.Claim, 200), e.SupportURL))
	}

	return fmt.Sprintf(`You are planning search queries for a personalized content feed.

PROFILE SUMMARY: %s
WEIGHTED KEYWORDS: %s
SEED QUERIES: %s
PREFERENCES: depth=%.2f format=%.2f novelty=%.2f

EVIDENCE:
%s
AVAILABLE SOURCES:
- arxiv: recent papers, works best with technical topic phrases
- hackernews: stories, works best with short tech terms
- news: general news search, works best with names and topical phrases
- github: repository search, works best with 1-3 word technology terms

REQUIREMENTS:
1. Propose at most %d queries per source.
2. Tailor phrasing to each source; do not copy one query to every source.
3. Prefer high-weight keywords; cover at least two distinct interests.
4. Every source key must be present, with an empty list when a source does not fit this profile.

OUTPUT FORMAT (JSON):
{
  "arxiv": ["query"],
  "hackernews": ["query"],
  "news": ["query"],
  "github": ["query"]
}

Respond ONLY with the JSON object.`, promptText(profile.Summary, 500), strings.Join(kws, ", "), strings.Join(profile.Queries, "; "),
		profile.Preferences["depth"], profile.Preferences["format"], profile.Preferences["novelty"],
		claims.String(), maxQueriesPerSource)
}

func rankPrompt(profile ProfileCard, pool []CandidateContentItem) string {
	var block strings.Builder
	for _, it := range pool {
		block.WriteString(fmt.Sprintf("- id: %s [%s] %s\n", it.ID, it.Source, promptText(it.Title, 160)))
		if it.Snippet != "" {
			block.WriteString(fmt.Sprintf("  %s\n", promptText(it.Snippet, 240)))
		}
	}
	var kws []string
	for _, kw := range profile.KeywordWeights {
		kws = append(kws, fmt.Sprintf("%s (%.2f)", kw.Keyword, kw.Weight))
	}

	return fmt.Sprintf(`You are curating a personal content feed.

PROFILE SUMMARY: %s
WEIGHTED KEYWORDS: %s
PREFERENCES: depth=%.2f format=%.2f novelty=%.2f
SOURCE FOCUS: %s
PREFERENCE NOTES: %s

CANDIDATE ITEMS:
%s
REQUIREMENTS:
1. Select the %d items this person most wants to see, best first.
2. Use at most %d items from any single source.
3. Use ONLY ids from the candidate list above.
4. Write a one-sentence summary of each selected item.
5. Write a short "because" explaining why it fits THIS person.

OUTPUT FORMAT (JSON):
{
  "selections": [
    {"id": "item-id", "summary": "What it is", "because": "Why it fits"}
  ]
}

Respond ONLY with the JSON object.`, promptText(profile.Summary, 500), strings.Join(kws, ", "),
		profile.Preferences["depth"], profile.Preferences["format"], profile.Preferences["novelty"],
		sourceFocusLine(profile.SourceFocus), strings.Join(profile.PreferenceNotes, "; "),
		block.String(), feedSize, perSourceCap)
}

// sourceFocusLine renders the focus map with sorted keys so the prompt is
// stable across runs.
func sourceFocusLine(focus map[string]float64) string {
	if len(focus) == 0 {
		return "unknown"
	}
	keys := make([]string, 0, len(focus))
	for k := range focus {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, focus[k]))
	}
	return strings.Join(parts, " ")
}

func deepenPrompt(item FeedItem, profile ProfileCard, name string) string {
	return fmt.Sprintf(`You are expanding one feed item for a reader who tapped "tell me more".

READER: %s
READER INTERESTS: %s
ITEM [%s]: %s
URL: %s
SNIPPET: %s
FEED SUMMARY: %s
PICKED BECAUSE: %s

REQUIREMENTS:
1. Write a tight TLDR of what this item covers.
2. Explain in one sentence why it was picked for this reader.
3. Suggest 2 or 3 concrete next actions (read, star, follow, try).

OUTPUT FORMAT (JSON):
{
  "tldr": "Three sentences at most",
  "whyMe": "One sentence",
  "nextActions": ["action one", "action two"]
}

Respond ONLY with the JSON object.`, name, strings.Join(topKeywords(profile, 5), ", "),
		item.Item.Source, promptText(item.Item.Title, 160), item.Item.URL, promptText(item.Item.Snippet, 500),
		promptText(item.Summary, 240), promptText(item.Because, 240))
}

func evidenceBlock(evidence []EvidenceSnippet) string {
	var block strings.Builder
	for _, s := range evidence {
		if s.Title != "" {
			block.WriteString(fmt.Sprintf("- [%s] %s\n  url: %s\n  %s\n", s.Source, promptText(s.Title, 160), s.URL, promptText(s.Text, 400)))
			continue
		}
		block.WriteString(fmt.Sprintf("- [%s] %s\n  %s\n", s.Source, s.URL, promptText(s.Text, 400)))
	}
	return block.String()
}

// promptText flattens whitespace and truncates so one noisy snippet cannot
// blow up the prompt.
func promptText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
