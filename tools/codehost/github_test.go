package codehost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/janedoe" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"janedoe","name":"Jane Doe","bio":"distributed systems","company":"@acme","blog":"https://janedoe.dev","location":"Berlin","followers":420,"html_url":"https://github.com/janedoe","avatar_url":"https://avatars.example/1"}`))
	}))
	defer srv.Close()

	c := Client{Token: "tok", BaseURL: srv.URL}
	p, err := c.Profile(context.Background(), "janedoe")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Name != "Jane Doe" || p.Bio != "distributed systems" || p.Followers != 420 {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestRecentReposCaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sort"); got != "updated" {
			t.Errorf("sort: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"raft-kv","full_name":"janedoe/raft-kv","description":"toy raft","language":"Go","stargazers_count":120,"html_url":"https://github.com/janedoe/raft-kv","updated_at":"2026-08-01T10:00:00Z"},
			{"name":"gossipd","full_name":"janedoe/gossipd","language":"Go","stargazers_count":33,"html_url":"https://github.com/janedoe/gossipd","updated_at":"2026-07-21T10:00:00Z"},
			{"name":"dotfiles","full_name":"janedoe/dotfiles","stargazers_count":2,"html_url":"https://github.com/janedoe/dotfiles","updated_at":"2026-07-01T10:00:00Z"}
		]`))
	}))
	defer srv.Close()

	c := Client{BaseURL: srv.URL}
	repos, err := c.RecentRepos(context.Background(), "janedoe", 2)
	if err != nil {
		t.Fatalf("RecentRepos: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(repos))
	}
	if repos[0].Name != "raft-kv" || repos[0].Stars != 120 {
		t.Fatalf("unexpected repo: %+v", repos[0])
	}
}

func TestGetNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := Client{BaseURL: srv.URL}
	if _, err := c.Profile(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error on 404")
	}
}
