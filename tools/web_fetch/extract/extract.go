// Package extract pulls structure out of raw page HTML shared by the
// fetcher backends.
package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Links returns the absolute http(s) anchor targets found in src, resolved
// against base, in document order with duplicates removed.
func Links(src string, base *url.URL) []string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				link := resolveLink(attr.Val, base)
				if link != "" && !seen[link] {
					seen[link] = true
					out = append(out, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func resolveLink(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}
