package curation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/personafeed/config"
	"github.com/mohammad-safakhou/personafeed/internal/cache"
	"github.com/mohammad-safakhou/personafeed/internal/llm"
	"github.com/mohammad-safakhou/personafeed/internal/telemetry"
)

// Request-level errors, surfaced to clients as 4xx.
var (
	ErrEmptyName        = errors.New("name is required")
	ErrUnknownCandidate = errors.New("confirmation required: unknown candidate id")
)

// Deps carries the orchestrator's collaborators. Nil fields are tolerated
// everywhere: each component degrades to a deterministic fallback.
type Deps struct {
	LLM      llm.Provider
	Searcher Searcher
	Fetcher  Fetcher
	CodeHost CodeHost
	Papers   PaperSource
	Stories  StorySource
	News     NewsSource
	Cache    cache.Store
}

// Orchestrator drives the curation pipeline end to end and answers deepen
// lookups. It holds no per-request state: the confirmation pause is two
// entry points, and everything a deepen needs rides in the cache.
type Orchestrator struct {
	logger *log.Logger
	llm    llm.Provider
	model  string // deepen route
	cache  cache.Store

	timeout time.Duration

	discoverer  *Discoverer
	harvester   *Harvester
	synthesizer *Synthesizer
	planner     *Planner
	gatherer    *Gatherer
	ranker      *Ranker
}

func NewOrchestrator(cfg *config.Config, deps Deps) *Orchestrator {
	routing := cfg.LLM.Routing
	timeout := cfg.Curation.CollaboratorTimeout

	return &Orchestrator{
		logger:  log.New(log.Writer(), "[CURATION] ", log.LstdFlags),
		llm:     deps.LLM,
		model:   routing.Model(routing.Deepen),
		cache:   deps.Cache,
		timeout: timeout,
		discoverer: NewDiscoverer(log.New(log.Writer(), "[DISCOVERY] ", log.LstdFlags),
			deps.LLM, routing.Model(routing.Clustering), deps.Searcher, timeout, cfg.Search.MaxResults),
		harvester: NewHarvester(log.New(log.Writer(), "[HARVEST] ", log.LstdFlags),
			deps.Fetcher, deps.CodeHost, deps.News, timeout, cfg.Feeds.NewsWindow),
		synthesizer: NewSynthesizer(log.New(log.Writer(), "[PROFILE] ", log.LstdFlags),
			deps.LLM, routing.Model(routing.Synthesis), timeout),
		planner: NewPlanner(log.New(log.Writer(), "[PROFILE] ", log.LstdFlags),
			deps.LLM, routing.Model(routing.Planning), timeout),
		gatherer: NewGatherer(log.New(log.Writer(), "[GATHER] ", log.LstdFlags),
			deps.Papers, deps.Stories, deps.News, deps.CodeHost, timeout, cfg.Feeds.GatherWindow),
		ranker: NewRanker(log.New(log.Writer(), "[RANK] ", log.LstdFlags),
			deps.LLM, routing.Model(routing.Ranking), timeout),
	}
}

// RunDiscovery executes the first phase: discover candidate identities and
// stop for user confirmation. The returned candidates are also emitted as a
// candidates event.
func (o *Orchestrator) RunDiscovery(ctx context.Context, name string, emit EmitFunc) ([]CandidateIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	started := time.Now()
	emit(stageEvent(StageDiscoverCandidates))
	emit(logEvent(StageDiscoverCandidates, LevelInfo, "discovering identities for %q", name))
	candidates, meta, err := o.discoverer.Discover(ctx, name)
	if err != nil {
		telemetry.RecordRun("discovery", "error")
		emit(errorEvent(StageDiscoverCandidates, err))
		return nil, err
	}
	emit(logEvent(StageDiscoverCandidates, LevelSuccess, "found %d candidate identities (%s mode, %d search results)",
		len(candidates), meta.Mode, meta.SearchResults))
	telemetry.ObserveStage(StageDiscoverCandidates, time.Since(started))

	emit(payloadEvent(EventCandidates, StageDiscoverCandidates, CandidatesPayload{Candidates: candidates, Meta: meta}))
	emit(stageEvent(StageAwaitUserConfirm))
	emit(completeEvent("awaiting confirmation"))
	telemetry.RecordRun("discovery", "ok")
	return candidates, nil
}

// RunFull executes the rest of the pipeline for a confirmed candidate id.
// It starts at entity resolution: discovery is deterministic enough to
// re-run under that stage, which keeps the server stateless across the
// confirmation pause.
func (o *Orchestrator) RunFull(ctx context.Context, name, candidateID string, emit EmitFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	stageStart := time.Now()
	emit(stageEvent(StageResolveEntities))
	emit(logEvent(StageResolveEntities, LevelInfo, "resolving candidate %q for %q", candidateID, name))
	candidates, _, err := o.discoverer.Discover(ctx, name)
	if err != nil {
		return o.fail(emit, StageResolveEntities, err)
	}
	identity, ok := resolveCandidate(candidates, candidateID)
	if !ok {
		return o.fail(emit, StageResolveEntities, fmt.Errorf("%w: %q", ErrUnknownCandidate, candidateID))
	}
	emit(logEvent(StageResolveEntities, LevelSuccess, "curating for %s (%s)", identity.DisplayName, identity.ProfileURL))
	telemetry.ObserveStage(StageResolveEntities, time.Since(stageStart))

	stageStart = time.Now()
	emit(stageEvent(StageHarvestPublicData))
	emit(logEvent(StageHarvestPublicData, LevelInfo, "harvesting public evidence for %s", identity.DisplayName))
	evidence, err := o.harvester.Harvest(ctx, name, identity)
	if err != nil {
		return o.fail(emit, StageHarvestPublicData, err)
	}
	emit(logEvent(StageHarvestPublicData, LevelSuccess, "collected %d evidence snippets", len(evidence)))
	telemetry.ObserveStage(StageHarvestPublicData, time.Since(stageStart))

	stageStart = time.Now()
	emit(stageEvent(StageBuildProfile))
	emit(logEvent(StageBuildProfile, LevelInfo, "synthesizing interest profile from %d snippets", len(evidence)))
	profile, err := o.synthesizer.Synthesize(ctx, name, identity, evidence)
	if err != nil {
		return o.fail(emit, StageBuildProfile, err)
	}
	emit(logEvent(StageBuildProfile, LevelSuccess, "profile ready with %d weighted keywords", len(profile.KeywordWeights)))
	emit(payloadEvent(EventProfile, StageBuildProfile, profile))
	telemetry.ObserveStage(StageBuildProfile, time.Since(stageStart))

	stageStart = time.Now()
	emit(stageEvent(StageFetchCandidates))
	emit(logEvent(StageFetchCandidates, LevelInfo, "planning per-source queries"))
	plan, planMode, err := o.planner.Plan(ctx, profile)
	if err != nil {
		return o.fail(emit, StageFetchCandidates, err)
	}
	emit(logEvent(StageFetchCandidates, LevelInfo, "planned %d queries across sources (%s mode)", countQueries(plan), planMode))
	pool, err := o.gatherer.Gather(ctx, plan)
	if err != nil {
		return o.fail(emit, StageFetchCandidates, err)
	}
	emit(logEvent(StageFetchCandidates, LevelSuccess, "gathered %d candidate items", len(pool)))
	emit(payloadEvent(EventCandidatePool, StageFetchCandidates, CandidatePoolPayload{Items: pool, Plan: plan, Mode: planMode}))
	telemetry.ObserveStage(StageFetchCandidates, time.Since(stageStart))

	stageStart = time.Now()
	emit(stageEvent(StageRankAndExplain))
	emit(logEvent(StageRankAndExplain, LevelInfo, "ranking %d candidate items", len(pool)))
	feed, exploration, err := o.ranker.Rank(ctx, profile, pool)
	if err != nil {
		return o.fail(emit, StageRankAndExplain, err)
	}
	emit(logEvent(StageRankAndExplain, LevelSuccess, "selected %d feed items and %d exploration picks", len(feed), len(exploration)))
	emit(payloadEvent(EventFeed, StageRankAndExplain, FeedPayload{
		Items:             feed,
		ExplorationItems:  exploration,
		ExploitationCount: len(feed),
		ExplorationCount:  len(exploration),
		Remaining:         remainingPool(pool, feed, exploration),
	}))
	telemetry.ObserveStage(StageRankAndExplain, time.Since(stageStart))

	o.cacheFeed(ctx, name, profile, feed, exploration)
	emit(completeEvent("curation complete"))
	telemetry.RecordRun("full", "ok")
	return nil
}

func (o *Orchestrator) fail(emit EmitFunc, stage string, err error) error {
	telemetry.RecordRun("full", "error")
	emit(errorEvent(stage, err))
	return err
}

func resolveCandidate(candidates []CandidateIdentity, candidateID string) (CandidateIdentity, bool) {
	for _, c := range candidates {
		if c.ID == candidateID {
			return c, true
		}
	}
	return CandidateIdentity{}, false
}

func countQueries(plan QueryPlan) int {
	return len(plan.Arxiv) + len(plan.HackerNews) + len(plan.News) + len(plan.GitHub)
}

// remainingPool returns the pool items that made neither the feed nor the
// exploration set, in pool order.
func remainingPool(pool []CandidateContentItem, surfaced ...[]FeedItem) []CandidateContentItem {
	taken := make(map[string]bool)
	for _, list := range surfaced {
		for _, fi := range list {
			taken[fi.Item.ID] = true
		}
	}
	var out []CandidateContentItem
	for _, it := range pool {
		if !taken[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

// deepenContext is the cached payload a deepen call needs: the surfaced item
// with its summary and justification, the profile the feed was ranked
// against, and the name it was curated for.
type deepenContext struct {
	Item    FeedItem    `json:"item"`
	Profile ProfileCard `json:"profile"`
	Name    string      `json:"name"`
}

func deepenKey(itemID, name string) string {
	return "item:" + itemID + ":" + strings.ToLower(strings.TrimSpace(name))
}

// cacheFeed stores every surfaced item for later deepen calls, then sweeps
// whatever previous runs left behind. Failures only cost the deepen.
func (o *Orchestrator) cacheFeed(ctx context.Context, name string, profile ProfileCard, lists ...[]FeedItem) {
	if o.cache == nil {
		return
	}
	stored := 0
	for _, list := range lists {
		for _, fi := range list {
			body, err := json.Marshal(deepenContext{Item: fi, Profile: profile, Name: name})
			if err != nil {
				continue
			}
			if err := o.cache.Put(ctx, cache.Entry{Key: deepenKey(fi.Item.ID, name), Payload: body}); err != nil {
				o.logger.Printf("WARN: cache put failed for %s: %v", fi.Item.ID, err)
				continue
			}
			stored++
		}
	}
	if purged := o.cache.Sweep(ctx); purged > 0 {
		o.logger.Printf("swept %d expired cache entries", purged)
	}
	o.logger.Printf("cached %d feed items for deepen lookups", stored)
}

type deepenPayload struct {
	TLDR        string   `json:"tldr"`
	WhyMe       string   `json:"whyMe"`
	NextActions []string `json:"nextActions"`
}

func (p *deepenPayload) Validate() error {
	if strings.TrimSpace(p.TLDR) == "" {
		return fmt.Errorf("missing tldr")
	}
	return nil
}

// Deepen expands one previously surfaced feed item. The item must still be
// in the cache; a miss or expiry bubbles up for the server to turn into a
// 404.
func (o *Orchestrator) Deepen(ctx context.Context, itemID, name string) (DeepenDigest, error) {
	if o.cache == nil {
		telemetry.RecordCacheLookup("miss")
		return DeepenDigest{}, cache.ErrNotFound
	}
	entry, err := o.cache.Get(ctx, deepenKey(itemID, name))
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrExpired):
			telemetry.RecordCacheLookup("expired")
		case errors.Is(err, cache.ErrNotFound):
			telemetry.RecordCacheLookup("miss")
		}
		return DeepenDigest{}, err
	}
	telemetry.RecordCacheLookup("hit")

	var dc deepenContext
	if err := json.Unmarshal(entry.Payload, &dc); err != nil {
		return DeepenDigest{}, fmt.Errorf("decode cached item: %w", err)
	}

	var digest DeepenDigest
	if o.llm == nil {
		digest = fallbackDigest(dc)
	} else {
		digest, _ = attempt(o.logger, "llm-deepen", func() (DeepenDigest, error) {
			return o.deepenWithLLM(ctx, dc)
		}, func() DeepenDigest {
			return fallbackDigest(dc)
		})
	}
	digest.ItemID = itemID
	return digest, nil
}

func (o *Orchestrator) deepenWithLLM(ctx context.Context, dc deepenContext) (DeepenDigest, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	raw, err := o.llm.Generate(cctx, deepenPrompt(dc.Item, dc.Profile, dc.Name), o.model, nil)
	if err != nil {
		return DeepenDigest{}, err
	}
	var payload deepenPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return DeepenDigest{}, err
	}
	return DeepenDigest{
		TLDR:        strings.TrimSpace(payload.TLDR),
		WhyMe:       strings.TrimSpace(payload.WhyMe),
		NextActions: payload.NextActions,
	}, nil
}

// fallbackDigest answers a deepen straight from the cached feed item.
func fallbackDigest(dc deepenContext) DeepenDigest {
	tldr := dc.Item.Summary
	if tldr == "" {
		tldr = dc.Item.Item.Snippet
	}
	if tldr == "" {
		tldr = dc.Item.Item.Title
	}
	whyMe := fmt.Sprintf("Picked for %s's feed from %s.", dc.Name, dc.Item.Item.Source)
	if because := strings.TrimSpace(dc.Item.Because); because != "" {
		whyMe = because + " " + whyMe
	}
	return DeepenDigest{
		TLDR:  trimSnippet(tldr, 400),
		WhyMe: whyMe,
		NextActions: []string{
			"Read the full piece: " + dc.Item.Item.URL,
			"Follow more from " + dc.Item.Item.Source,
		},
	}
}
