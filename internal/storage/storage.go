package storage

import (
	"context"
	"time"

	"github.com/hopworks/kbindex-mcp/pkg/types"
)

// Store defines the persistence interface for knowledge articles and their
// embedded chunks.
//
// Chunk rows are only ever written as a full replacement set for one article
// (DeleteChunksByArticle followed by InsertChunk in index order); there is no
// per-chunk upsert. ListEmbeddedChunks isolates the "fetch candidate chunks"
// step so a future vector index can replace the full scan without touching
// ranking semantics.
type Store interface {
	// Article operations
	CreateArticle(ctx context.Context, article *types.Article) error
	GetArticle(ctx context.Context, id int64) (*types.Article, error)
	UpdateArticle(ctx context.Context, article *types.Article) error
	SetArticleActive(ctx context.Context, id int64, active bool) error
	ListActiveArticles(ctx context.Context) ([]*types.Article, error)
	CountActiveArticles(ctx context.Context) (int, error)

	// Chunk operations
	InsertChunk(ctx context.Context, chunk *types.Chunk) error
	ListChunksByArticle(ctx context.Context, articleID int64) ([]*types.Chunk, error)
	DeleteChunksByArticle(ctx context.Context, articleID int64) error
	CountChunks(ctx context.Context) (int, error)

	// Search support
	ListEmbeddedChunks(ctx context.Context) ([]*types.Chunk, error)

	// Backfill support: active articles with no chunk rows at all
	ListUnindexedArticles(ctx context.Context) ([]*types.Article, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Store // Embed Store interface for transaction operations
}

// Status contains statistics about the knowledge base.
type Status struct {
	ActiveArticles int
	TotalChunks    int
	EmbeddedChunks int
	Models         []string // Distinct embedding models present in chunk rows
	LastIngestedAt time.Time
}
