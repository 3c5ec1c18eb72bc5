package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopworks/kbindex-mcp/internal/chunker"
	"github.com/hopworks/kbindex-mcp/internal/embedder"
	"github.com/hopworks/kbindex-mcp/internal/storage"
	"github.com/hopworks/kbindex-mcp/pkg/types"
)

// fakeEmbedder counts calls and can be made to fail, either always or after
// a number of successful calls. Safe for concurrent use (backfill runs
// workers in parallel).
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	fail      bool
	failAfter int // fail once this many calls succeeded; 0 disables
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail || (f.failAfter > 0 && f.calls >= f.failAfter) {
		return nil, embedder.ErrProviderFailed
	}
	f.calls++
	return &embedder.Embedding{
		Vector:    []float32{1, 0, 0},
		Dimension: 3,
		Provider:  "fake",
		Model:     "fake-model",
		Hash:      embedder.ComputeHash(req.Text),
	}, nil
}

func (f *fakeEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	resp := &embedder.BatchEmbeddingResponse{Provider: "fake", Model: "fake-model"}
	for _, text := range req.Texts {
		emb, err := f.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, emb)
	}
	return resp, nil
}

func (f *fakeEmbedder) Dimension() int   { return 3 }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake-model" }
func (f *fakeEmbedder) Close() error     { return nil }

func newTestIndexer(t *testing.T, emb embedder.Embedder, opts ...Option) (*Indexer, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewIndexer(store, emb, chunker.New(), opts...), store
}

// repeatWords builds n whitespace-separated words.
func repeatWords(n int) string {
	return strings.TrimSpace(strings.Repeat("hops ", n))
}

func TestIngestArticle(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, store := newTestIndexer(t, emb)
	ctx := context.Background()

	result, err := idx.IngestArticle(ctx, types.ArticleDraft{
		Title:     "Mash pH",
		Content:   "Target a mash pH between 5.2 and 5.6 for most styles.",
		Category:  "process",
		SourceURL: "https://example.com/ph",
	})
	require.NoError(t, err)
	assert.NotZero(t, result.ArticleID)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, 1, emb.calls)

	article, err := store.GetArticle(ctx, result.ArticleID)
	require.NoError(t, err)
	assert.True(t, article.IsActive)
	assert.Equal(t, "process", article.Category)

	chunks, err := store.ListChunksByArticle(ctx, result.ArticleID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, article.Content, chunks[0].Content)
	assert.Equal(t, []float32{1, 0, 0}, chunks[0].Embedding)
	assert.Equal(t, "fake-model", chunks[0].Model)
	assert.Equal(t, types.EstimateTokens(article.Content), chunks[0].TokenCount)
}

func TestIngestArticle_MultipleChunksInOrder(t *testing.T) {
	idx, store := newTestIndexer(t, &fakeEmbedder{})
	ctx := context.Background()

	// 800 words with default budgets produces 3 chunks
	result, err := idx.IngestArticle(ctx, types.ArticleDraft{
		Title:   "Long Article",
		Content: repeatWords(800),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunkCount)

	chunks, err := store.ListChunksByArticle(ctx, result.ArticleID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.True(t, chunk.HasEmbedding())
	}
}

func TestIngestArticle_InvalidDraft(t *testing.T) {
	idx, store := newTestIndexer(t, &fakeEmbedder{})
	ctx := context.Background()

	_, err := idx.IngestArticle(ctx, types.ArticleDraft{Title: "  ", Content: "body"})
	require.Error(t, err)

	count, err := store.CountActiveArticles(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestArticle_PartialFailureReportsProgress(t *testing.T) {
	emb := &fakeEmbedder{failAfter: 1}
	idx, store := newTestIndexer(t, emb)
	ctx := context.Background()

	_, err := idx.IngestArticle(ctx, types.ArticleDraft{
		Title:   "Partial",
		Content: repeatWords(800),
	})
	require.Error(t, err)

	var partial *PartialIngestError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Persisted)
	assert.Equal(t, 3, partial.Total)
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)

	// Article row and the persisted chunk survive for a later repair
	chunks, err := store.ListChunksByArticle(ctx, partial.ArticleID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestReindexArticle_ReplaceSemantics(t *testing.T) {
	idx, store := newTestIndexer(t, &fakeEmbedder{})
	ctx := context.Background()

	result, err := idx.IngestArticle(ctx, types.ArticleDraft{
		Title:   "Evolving",
		Content: repeatWords(800),
	})
	require.NoError(t, err)

	article, err := store.GetArticle(ctx, result.ArticleID)
	require.NoError(t, err)
	article.Content = repeatWords(100)
	require.NoError(t, store.UpdateArticle(ctx, article))

	reindexed, err := idx.ReindexArticle(ctx, article.ID)
	require.NoError(t, err)

	want := chunker.New().Chunk(article.Content)
	assert.Equal(t, len(want), reindexed.ChunkCount)

	chunks, err := store.ListChunksByArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, chunks, len(want))
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, want[i], chunk.Content)
	}
}

func TestReindexArticle_NotFound(t *testing.T) {
	idx, _ := newTestIndexer(t, &fakeEmbedder{})
	_, err := idx.ReindexArticle(context.Background(), 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReindexArticle_ProviderFailureLeavesOldChunks(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, store := newTestIndexer(t, emb)
	ctx := context.Background()

	result, err := idx.IngestArticle(ctx, types.ArticleDraft{
		Title:   "Stable",
		Content: repeatWords(800),
	})
	require.NoError(t, err)

	emb.fail = true
	_, err = idx.ReindexArticle(ctx, result.ArticleID)
	require.Error(t, err)

	chunks, err := store.ListChunksByArticle(ctx, result.ArticleID)
	require.NoError(t, err)
	assert.Len(t, chunks, 3, "old chunk set must survive a failed reindex")
}

func TestReindexArticle_ConcurrentReindexRejected(t *testing.T) {
	idx, store := newTestIndexer(t, &fakeEmbedder{})
	ctx := context.Background()

	article := &types.Article{Title: "Locked", Content: "short body here", IsActive: true}
	require.NoError(t, store.CreateArticle(ctx, article))

	lock := idx.locks.forArticle(article.ID)
	require.True(t, lock.TryAcquire())
	defer lock.Release()

	_, err := idx.ReindexArticle(ctx, article.ID)
	assert.ErrorIs(t, err, ErrReindexInProgress)
}

func TestInitializeAllEmbeddings(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, store := newTestIndexer(t, emb, WithWorkers(2))
	ctx := context.Background()

	// Already indexed: not discovered again
	indexed, err := idx.IngestArticle(ctx, types.ArticleDraft{Title: "Done", Content: "already indexed body"})
	require.NoError(t, err)

	a := &types.Article{Title: "Pending A", Content: repeatWords(100), IsActive: true}
	require.NoError(t, store.CreateArticle(ctx, a))
	b := &types.Article{Title: "Pending B", Content: repeatWords(800), IsActive: true}
	require.NoError(t, store.CreateArticle(ctx, b))

	inactive := &types.Article{Title: "Inactive", Content: "body", IsActive: true}
	require.NoError(t, store.CreateArticle(ctx, inactive))
	require.NoError(t, store.SetArticleActive(ctx, inactive.ID, false))

	stats, err := idx.InitializeAllEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Discovered)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 4, stats.ChunksCreated) // 1 for A, 3 for B
	assert.Empty(t, stats.Failures)

	for _, id := range []int64{a.ID, b.ID} {
		chunks, err := store.ListChunksByArticle(ctx, id)
		require.NoError(t, err)
		assert.NotEmpty(t, chunks)
	}

	// The previously indexed article was untouched
	chunks, err := store.ListChunksByArticle(ctx, indexed.ArticleID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestInitializeAllEmbeddings_CollectsFailures(t *testing.T) {
	idx, store := newTestIndexer(t, &fakeEmbedder{fail: true}, WithWorkers(2))
	ctx := context.Background()

	for _, title := range []string{"One", "Two", "Three"} {
		article := &types.Article{Title: title, Content: "some body text", IsActive: true}
		require.NoError(t, store.CreateArticle(ctx, article))
	}

	stats, err := idx.InitializeAllEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Discovered)
	assert.Zero(t, stats.Indexed)
	require.Len(t, stats.Failures, 3)
	for _, failure := range stats.Failures {
		assert.True(t, errors.Is(failure.Err, embedder.ErrProviderFailed))
	}
}

func TestIngestArticle_SavesFileCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "embeddings.json")
	cache := embedder.LoadCache(cachePath)

	idx, _ := newTestIndexer(t, &fakeEmbedder{}, WithFileCache(cache))

	_, err := idx.IngestArticle(context.Background(), types.ArticleDraft{
		Title:   "Cached",
		Content: "body text for the cache flush",
	})
	require.NoError(t, err)

	_, err = os.Stat(cachePath)
	assert.NoError(t, err, "cache file should be written after a successful ingest")
}
