// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/book-harvester/pkg/types"
)

const (
	noTitle       = "No Title"
	unknownAuthor = "Unknown Author"
	nextLinkText  = "Next"
)

// ParseIndex extracts the listing entries of a search results page and the
// absolute URL of its "Next" link. next is empty on the last page.
// Entries without a usable link are skipped.
func ParseIndex(html, pageURL string) (stubs []types.BookStub, next string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parsing index page: %w", err)
	}

	doc.Find("li.booklink").Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a").First().Attr("href")
		if !ok {
			return
		}
		id := bookIDFromHref(href)
		if id == "" {
			return
		}
		stubs = append(stubs, types.BookStub{
			ID:     id,
			Title:  textOr(li.Find("span.title").First(), noTitle),
			Author: textOr(li.Find("span.subtitle").First(), unknownAuthor),
		})
	})

	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != nextLinkText {
			return true
		}
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		next = resolve(pageURL, href)
		return next == ""
	})
	return stubs, next, nil
}

// bookIDFromHref returns the last path segment of an entry link such as
// "/ebooks/1342".
func bookIDFromHref(href string) types.BookID {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimSuffix(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return types.BookID(seg)
}

func textOr(s *goquery.Selection, fallback string) string {
	if s.Length() == 0 {
		return fallback
	}
	return strings.TrimSpace(s.Text())
}

func resolve(pageURL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
