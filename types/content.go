package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ContentItem is a read-only view of a post with its taxonomy membership
type ContentItem struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty"`
	Slug        string     `json:"slug,omitempty" yaml:"slug,omitempty"`
	URL         string     `json:"url,omitempty" yaml:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	TagIDs      []string   `json:"tag_ids,omitempty" yaml:"tag_ids,omitempty"`
	CategoryIDs []string   `json:"category_ids,omitempty" yaml:"category_ids,omitempty"`
}

// IsPublishedAt reports whether the item has a publish time at or before now
func (c ContentItem) IsPublishedAt(now time.Time) bool {
	return c.PublishedAt != nil && !c.PublishedAt.After(now)
}

// RelevanceScore is the derived score of a candidate against a subject item
type RelevanceScore struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// RewriteRule maps a source path to a target path
type RewriteRule struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	SourcePath string `json:"source_path" yaml:"source_path"`
	TargetPath string `json:"target_path" yaml:"target_path"`
	IsActive   bool   `json:"is_active" yaml:"is_active"`
	// StatusCode is the HTTP status used when serving the rule (301 when zero)
	StatusCode int `json:"status_code,omitempty" yaml:"status_code,omitempty"`
}

// Snapshot is the collaborator state a request is evaluated against
type Snapshot struct {
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Items       []ContentItem `json:"items" yaml:"items"`
	Rules       []RewriteRule `json:"rules" yaml:"rules"`
}

// GenerateID creates a unique ID from URL
func GenerateID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
