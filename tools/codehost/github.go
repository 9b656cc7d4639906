// Package codehost reads public developer profiles and repositories from the
// GitHub REST API.
package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.github.com"

type Client struct {
	Token   string // optional, raises rate limits
	BaseURL string // overridable for tests
	Timeout time.Duration
}

type Profile struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	Company   string `json:"company"`
	Blog      string `json:"blog"`
	Location  string `json:"location"`
	Followers int    `json:"followers"`
	HTMLURL   string `json:"htmlUrl"`
	AvatarURL string `json:"avatarUrl"`
}

type Repo struct {
	Name        string    `json:"name"`
	FullName    string    `json:"fullName"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stars"`
	HTMLURL     string    `json:"htmlUrl"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Profile fetches the public profile of a user.
func (c Client) Profile(ctx context.Context, login string) (Profile, error) {
	var raw struct {
		Login     string `json:"login"`
		Name      string `json:"name"`
		Bio       string `json:"bio"`
		Company   string `json:"company"`
		Blog      string `json:"blog"`
		Location  string `json:"location"`
		Followers int    `json:"followers"`
		HTMLURL   string `json:"html_url"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(login), &raw); err != nil {
		return Profile{}, err
	}
	return Profile{
		Login: raw.Login, Name: raw.Name, Bio: raw.Bio, Company: raw.Company,
		Blog: raw.Blog, Location: raw.Location, Followers: raw.Followers,
		HTMLURL: raw.HTMLURL, AvatarURL: raw.AvatarURL,
	}, nil
}

// RecentRepos lists up to n repositories of a user, most recently updated first.
func (c Client) RecentRepos(ctx context.Context, login string, n int) ([]Repo, error) {
	var raw []repoJSON
	path := fmt.Sprintf("/users/%s/repos?sort=updated&per_page=%d", url.PathEscape(login), n)
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return convertRepos(raw, n), nil
}

// SearchRepos searches public repositories, most recently updated first.
func (c Client) SearchRepos(ctx context.Context, query string, n int) ([]Repo, error) {
	var raw struct {
		Items []repoJSON `json:"items"`
	}
	path := fmt.Sprintf("/search/repositories?q=%s&sort=updated&per_page=%d", url.QueryEscape(query), n)
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return convertRepos(raw.Items, n), nil
}

type repoJSON struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	HTMLURL     string    `json:"html_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func convertRepos(raw []repoJSON, n int) []Repo {
	var out []Repo
	for i, r := range raw {
		if i >= n {
			break
		}
		out = append(out, Repo{
			Name: r.Name, FullName: r.FullName, Description: r.Description,
			Language: r.Language, Stars: r.Stars, HTMLURL: r.HTMLURL, UpdatedAt: r.UpdatedAt,
		})
	}
	return out
}

func (c Client) get(ctx context.Context, path string, out any) error {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github %s status %d: %s", path, resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
