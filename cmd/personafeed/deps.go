package main

import (
	"errors"
	"log"

	"github.com/mohammad-safakhou/personafeed/config"
	"github.com/mohammad-safakhou/personafeed/internal/cache"
	"github.com/mohammad-safakhou/personafeed/internal/curation"
	"github.com/mohammad-safakhou/personafeed/internal/llm"
	"github.com/mohammad-safakhou/personafeed/tools/codehost"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/arxiv"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/hackernews"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/newsrss"
	"github.com/mohammad-safakhou/personafeed/tools/web_fetch"
	"github.com/mohammad-safakhou/personafeed/tools/web_search"
)

// buildDeps assembles the pipeline collaborators from config. Optional ones
// (LLM, web search) come back nil when unconfigured and the pipeline runs on
// its deterministic fallbacks instead.
func buildDeps(cfg *config.Config) (curation.Deps, error) {
	logger := log.New(log.Writer(), "[SETUP] ", log.LstdFlags)

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			return curation.Deps{}, err
		}
		logger.Printf("no llm provider configured, running with deterministic fallbacks")
		provider = nil
	}

	var searcher curation.Searcher
	if cfg.Search.Configured() {
		s, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
		if err != nil {
			return curation.Deps{}, err
		}
		searcher = s
	} else {
		logger.Printf("web search not configured, discovery will guess identities")
	}

	fetcherType := web_fetch.FetcherType(cfg.Fetch.Type)
	if cfg.Fetch.Type == "" {
		fetcherType = web_fetch.HTTPFetcherType
	}
	fetcher, err := web_fetch.NewWebFetcher(fetcherType, cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
	if err != nil {
		return curation.Deps{}, err
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		store = cache.NewRedisStore(cfg.Cache.Redis.Addr(), cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, cfg.Cache.TTL)
	default:
		store = cache.NewMemoryStore(cfg.Cache.TTL)
	}

	return curation.Deps{
		LLM:      provider,
		Searcher: searcher,
		Fetcher:  fetcher,
		CodeHost: codehost.Client{Token: cfg.CodeHost.Token, Timeout: cfg.CodeHost.Timeout},
		Papers:   arxiv.Client{Timeout: cfg.Feeds.Timeout},
		Stories:  hackernews.Client{Timeout: cfg.Feeds.Timeout},
		News:     newsrss.Client{Timeout: cfg.Feeds.Timeout},
		Cache:    store,
	}, nil
}
