package rss

// FeedConfig represents the configuration for a single RSS feed
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	// Category is the category ID assigned to every imported item
	Category string `json:"category"`
}

// FeedPresets maps friendly keys to RSS feed configurations
var FeedPresets = map[string]FeedConfig{
	"go": {
		Name:     "The Go Blog",
		URL:      "https://go.dev/blog/feed.atom",
		Category: "engineering",
	},
	"hn": {
		Name:     "Hacker News",
		URL:      "https://hnrss.org/newest",
		Category: "news",
	},
	"tr": {
		Name:     "Technology Review",
		URL:      "https://www.technologyreview.com/feed/",
		Category: "technology",
	},
}
