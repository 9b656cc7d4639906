package web_fetch

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/personafeed/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/personafeed/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/personafeed/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	// HTTPFetcherType does a plain GET and runs readability over the body.
	HTTPFetcherType FetcherType = "http"
	// ChromedpFetcherType renders the page in headless Chrome first.
	ChromedpFetcherType FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case HTTPFetcherType:
		return httpfetch.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	case ChromedpFetcherType:
		return chromedp.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
