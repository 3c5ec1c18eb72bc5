package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hopworks/kbindex-mcp/internal/chunker"
	"github.com/hopworks/kbindex-mcp/internal/embedder"
	"github.com/hopworks/kbindex-mcp/internal/storage"
	"github.com/hopworks/kbindex-mcp/pkg/types"
)

// DefaultWorkers is the backfill concurrency used when WithWorkers is not set.
const DefaultWorkers = 4

// ErrReindexInProgress is returned when an article is already being
// reindexed by another caller. The losing caller should retry later rather
// than queue behind the winner.
var ErrReindexInProgress = errors.New("reindex already in progress for article")

// Indexer drives chunking, embedding and persistence for knowledge articles.
type Indexer struct {
	store    storage.Store
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	cache    *embedder.FileCache // optional; saved after ingest and backfill
	workers  int
	locks    *articleLocks
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithWorkers sets the backfill concurrency. Values < 1 keep the default.
func WithWorkers(n int) Option {
	return func(idx *Indexer) {
		if n >= 1 {
			idx.workers = n
		}
	}
}

// WithFileCache attaches the embedding file cache so it is flushed to disk
// after successful ingest and backfill runs.
func WithFileCache(cache *embedder.FileCache) Option {
	return func(idx *Indexer) {
		idx.cache = cache
	}
}

// NewIndexer creates an Indexer over the given store, embedder and chunker.
func NewIndexer(store storage.Store, emb embedder.Embedder, ch *chunker.Chunker, opts ...Option) *Indexer {
	idx := &Indexer{
		store:    store,
		embedder: emb,
		chunker:  ch,
		workers:  DefaultWorkers,
		locks:    newArticleLocks(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestResult reports what an ingest or reindex produced.
type IngestResult struct {
	ArticleID  int64
	ChunkCount int
}

// PartialIngestError reports an ingest that stopped partway: the article row
// exists and Persisted chunks were written before the failing step. Callers
// can repair the partial state with ReindexArticle.
type PartialIngestError struct {
	ArticleID int64
	Persisted int
	Total     int
	Err       error
}

func (e *PartialIngestError) Error() string {
	return fmt.Sprintf("ingest of article %d stopped after %d of %d chunks: %v",
		e.ArticleID, e.Persisted, e.Total, e.Err)
}

func (e *PartialIngestError) Unwrap() error { return e.Err }

// IngestArticle creates an article and indexes its content: chunk, embed,
// persist, in chunk order. Each chunk is embedded with the article title
// prefixed so chunk vectors carry the article's topic.
//
// Ingest is deliberately not transactional: chunks are persisted as they are
// embedded, and a provider failure fails fast, leaving the article row and
// already-persisted chunks in place. The returned PartialIngestError says
// how far it got.
func (idx *Indexer) IngestArticle(ctx context.Context, draft types.ArticleDraft) (*IngestResult, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	article := &types.Article{
		Title:     draft.Title,
		Content:   draft.Content,
		Category:  draft.Category,
		Tags:      draft.Tags,
		Source:    draft.Source,
		SourceURL: draft.SourceURL,
		CreatedBy: draft.CreatedBy,
		IsActive:  true,
	}
	if err := idx.store.CreateArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	pieces := idx.chunker.Chunk(article.Content)
	for i, piece := range pieces {
		chunk, err := idx.embedChunk(ctx, article, i, piece)
		if err != nil {
			return nil, &PartialIngestError{ArticleID: article.ID, Persisted: i, Total: len(pieces), Err: err}
		}
		if err := idx.store.InsertChunk(ctx, chunk); err != nil {
			return nil, &PartialIngestError{ArticleID: article.ID, Persisted: i, Total: len(pieces), Err: err}
		}
	}

	idx.saveCache()
	return &IngestResult{ArticleID: article.ID, ChunkCount: len(pieces)}, nil
}

// ReindexArticle rebuilds the chunk set for an article from its current
// content: every existing chunk is discarded and the chunk+embed+persist
// loop runs from scratch. Full replace, not diff-based.
//
// The replacement is atomic. All new chunks are embedded first, then the
// delete and inserts run in one transaction, so a provider failure or crash
// leaves the old chunk set untouched and readers never observe a mixed set.
// Returns storage.ErrNotFound for an unknown article and
// ErrReindexInProgress when another reindex of the same article is running.
func (idx *Indexer) ReindexArticle(ctx context.Context, articleID int64) (*IngestResult, error) {
	lock := idx.locks.forArticle(articleID)
	if !lock.TryAcquire() {
		return nil, fmt.Errorf("article %d: %w", articleID, ErrReindexInProgress)
	}
	defer lock.Release()

	article, err := idx.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	pieces := idx.chunker.Chunk(article.Content)
	chunks := make([]*types.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunk, err := idx.embedChunk(ctx, article, i, piece)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d of article %d: %w", i, articleID, err)
		}
		chunks = append(chunks, chunk)
	}

	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reindex transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteChunksByArticle(ctx, articleID); err != nil {
		return nil, fmt.Errorf("delete chunks of article %d: %w", articleID, err)
	}
	for _, chunk := range chunks {
		if err := tx.InsertChunk(ctx, chunk); err != nil {
			return nil, fmt.Errorf("insert chunk %d of article %d: %w", chunk.Index, articleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reindex of article %d: %w", articleID, err)
	}

	return &IngestResult{ArticleID: articleID, ChunkCount: len(chunks)}, nil
}

// ArticleFailure records one article a backfill could not index.
type ArticleFailure struct {
	ArticleID int64
	Err       error
}

// BackfillStats summarizes an InitializeAllEmbeddings run.
type BackfillStats struct {
	Discovered    int
	Indexed       int
	ChunksCreated int
	Failures      []ArticleFailure
}

// InitializeAllEmbeddings finds active articles with no chunk rows and
// reindexes each. Articles are processed concurrently (bounded by
// WithWorkers); one article failing does not stop the others — failures are
// collected in the returned stats. The run itself only errors when
// discovery fails.
//
// This is a batch job: article creation does not trigger it, callers decide
// when to run it.
func (idx *Indexer) InitializeAllEmbeddings(ctx context.Context) (*BackfillStats, error) {
	articles, err := idx.store.ListUnindexedArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover unindexed articles: %w", err)
	}

	stats := &BackfillStats{Discovered: len(articles)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, article := range articles {
		g.Go(func() error {
			result, err := idx.ReindexArticle(gctx, article.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failures = append(stats.Failures, ArticleFailure{ArticleID: article.ID, Err: err})
				return nil
			}
			stats.Indexed++
			stats.ChunksCreated += result.ChunkCount
			return nil
		})
	}
	_ = g.Wait() // workers report through stats, never through the group

	idx.saveCache()
	return stats, nil
}

// embedChunk produces the persisted chunk for one piece of article content.
// The embedded text is "{title}: {piece}" but the stored chunk content is
// the piece alone.
func (idx *Indexer) embedChunk(ctx context.Context, article *types.Article, index int, piece string) (*types.Chunk, error) {
	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text: article.Title + ": " + piece,
	})
	if err != nil {
		return nil, err
	}
	return &types.Chunk{
		ArticleID:  article.ID,
		Index:      index,
		Content:    piece,
		Embedding:  emb.Vector,
		TokenCount: types.EstimateTokens(piece),
		Model:      emb.Model,
	}, nil
}

// saveCache flushes the embedding file cache if one is attached. Failures
// are logged, not propagated: the cache is an optimization, the chunks are
// already persisted.
func (idx *Indexer) saveCache() {
	if idx.cache == nil {
		return
	}
	if err := idx.cache.Save(); err != nil {
		log.Printf("save embedding cache: %v", err)
	}
}
