package web_search

import (
	"errors"
	"testing"
)

func TestNewWebSearcherProviders(t *testing.T) {
	if _, err := NewWebSearcher(SerperProvider, "k"); err != nil {
		t.Fatalf("NewWebSearcher(serper): %v", err)
	}
	if _, err := NewWebSearcher(BraveProvider, "k"); err != nil {
		t.Fatalf("NewWebSearcher(brave): %v", err)
	}
	if _, err := NewWebSearcher(Provider("duckduckgo"), "k"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
