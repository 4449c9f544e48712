package rssfeeds

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"quill/shared/rss"
	"quill/types"

	"github.com/mmcdole/gofeed"
)

// DefaultCount is the number of feed items imported when no limit is given
const DefaultCount = 50

// ResolveFeed resolves a preset key to its config. Anything else is treated
// as a feed URL whose category is derived from the feed title.
func ResolveFeed(feedInput string) rss.FeedConfig {
	if cfg, ok := rss.FeedPresets[feedInput]; ok {
		return cfg
	}
	return rss.FeedConfig{URL: feedInput}
}

// Import fetches a feed and converts up to maxCount items into content items
func Import(ctx context.Context, feedInput string, maxCount int) ([]types.ContentItem, error) {
	cfg := ResolveFeed(feedInput)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	feed, err := gofeed.NewParser().ParseURLWithContext(cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	return ItemsFromFeed(feed, cfg.Category, maxCount), nil
}

// ItemsFromFeed converts parsed feed items. Feed categories become tags;
// category (or the slugged feed title when empty) becomes the item category.
func ItemsFromFeed(feed *gofeed.Feed, category string, maxCount int) []types.ContentItem {
	if maxCount <= 0 {
		maxCount = DefaultCount
	}
	if category == "" {
		category = Slug(feed.Title)
	}

	count := min(len(feed.Items), maxCount)
	items := make([]types.ContentItem, 0, count)
	for _, entry := range feed.Items[:count] {
		// Use GUID if available, otherwise generate from URL
		id := entry.GUID
		if id == "" && entry.Link != "" {
			id = types.GenerateID(entry.Link)
		}
		if id == "" {
			continue
		}

		var publishedAt *time.Time
		if entry.PublishedParsed != nil {
			t := entry.PublishedParsed.UTC()
			publishedAt = &t
		} else if entry.UpdatedParsed != nil {
			t := entry.UpdatedParsed.UTC()
			publishedAt = &t
		}

		item := types.ContentItem{
			ID:          id,
			Title:       strings.TrimSpace(entry.Title),
			Slug:        Slug(entry.Title),
			URL:         entry.Link,
			PublishedAt: publishedAt,
			TagIDs:      slugs(entry.Categories),
		}
		if category != "" {
			item.CategoryIDs = []string{category}
		}
		items = append(items, item)
	}
	return items
}

// Slug lowercases s and joins its alphanumeric runs with dashes
func Slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "-")
}

func slugs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		slug := Slug(s)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}
