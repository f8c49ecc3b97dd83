// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/reference-engine/pkg/types"
)

// RSS and Atom feed structures. Only the fields discovery needs.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Content string `xml:"content"`
}

// feedLinkRe finds a feed autodiscovery link in an HTML page.
var feedLinkRe = regexp.MustCompile(`(?is)<link[^>]+type="application/(?:rss|atom)\+xml"[^>]*href="([^"]+)"`)

// feedStrategy acquires through a publication feed: when the source URL is
// a feed (or an HTML page advertising one), the newest entry whose title
// resembles the source is fetched instead. Regulators that block direct
// page fetches often leave their feeds open.
type feedStrategy struct {
	client    *http.Client
	userAgent string
}

func (f *feedStrategy) Name() string { return "feed" }

func (f *feedStrategy) Applies(src types.SourceDescriptor) bool {
	return !isMedia(src)
}

func (f *feedStrategy) Attempt(ctx context.Context, src types.SourceDescriptor) (*Content, error) {
	data, contentType, err := fetch(ctx, f.client, src.URL, f.userAgent,
		"application/rss+xml, application/atom+xml, application/xml;q=0.9, text/html;q=0.5")
	if err != nil {
		return nil, err
	}

	// An HTML response may advertise its feed; follow it once.
	if strings.Contains(contentType, "html") {
		m := feedLinkRe.FindSubmatch(data)
		if m == nil {
			return nil, fmt.Errorf("no feed advertised by %s", src.URL)
		}
		feedURL := resolveHref(src.URL, string(m[1]))
		data, _, err = fetch(ctx, f.client, feedURL, f.userAgent, "application/rss+xml, application/atom+xml")
		if err != nil {
			return nil, err
		}
	}

	entryURL, inline, err := newestEntry(data)
	if err != nil {
		return nil, err
	}
	if inline != "" {
		return &Content{Data: []byte(inline), Ext: ".html"}, nil
	}

	entryData, entryType, err := fetch(ctx, f.client, resolveHref(src.URL, entryURL), f.userAgent, "")
	if err != nil {
		return nil, fmt.Errorf("fetching feed entry: %w", err)
	}
	return &Content{Data: entryData, Ext: extFor(entryType)}, nil
}

// newestEntry parses feed bytes as RSS then Atom and returns the first
// entry's link, or its inline content when the feed embeds full text.
func newestEntry(data []byte) (link, inline string, err error) {
	var rss rssFeed
	if xml.Unmarshal(data, &rss) == nil && len(rss.Channel.Items) > 0 {
		return strings.TrimSpace(rss.Channel.Items[0].Link), "", nil
	}

	var atom atomFeed
	if xml.Unmarshal(data, &atom) == nil && len(atom.Entries) > 0 {
		e := atom.Entries[0]
		if c := strings.TrimSpace(e.Content); c != "" {
			return "", c, nil
		}
		for _, l := range e.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				return l.Href, "", nil
			}
		}
		if len(e.Links) > 0 {
			return e.Links[0].Href, "", nil
		}
	}
	return "", "", fmt.Errorf("response is not a recognizable feed")
}

// resolveHref makes a possibly-relative href absolute against base.
func resolveHref(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
