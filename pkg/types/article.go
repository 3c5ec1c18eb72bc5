package types

import (
	"errors"
	"strings"
	"time"
)

// Article represents a knowledge base article. Articles are the unit of
// ingestion: their content is chunked and embedded for retrieval. Articles
// are soft-deactivated via IsActive, never hard-deleted.
type Article struct {
	// Identification
	ID int64

	// Content
	Title   string
	Content string

	// Metadata
	Category  string
	Tags      string
	Source    string
	SourceURL string
	CreatedBy *int64 // Nullable - imports and seeds have no author

	// Lifecycle
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArticleDraft carries the caller-supplied fields for a new article.
// ID, IsActive and timestamps are assigned at ingestion time.
type ArticleDraft struct {
	Title     string
	Content   string
	Category  string
	Tags      string
	Source    string
	SourceURL string
	CreatedBy *int64
}

// Validate checks that a draft can be ingested.
func (d *ArticleDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("article title cannot be empty")
	}
	if strings.TrimSpace(d.Content) == "" {
		return errors.New("article content cannot be empty")
	}
	return nil
}

// SearchText returns the lowercased text the keyword fallback matches against.
func (a *Article) SearchText() string {
	return strings.ToLower(a.Title + " " + a.Content)
}
