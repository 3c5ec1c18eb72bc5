package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopworks/kbindex-mcp/pkg/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedArticle(t *testing.T, store Store, title, content string) *types.Article {
	t.Helper()
	article := &types.Article{
		Title:    title,
		Content:  content,
		Category: "brewing",
		IsActive: true,
	}
	require.NoError(t, store.CreateArticle(context.Background(), article))
	return article
}

func TestCreateAndGetArticle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	article := &types.Article{
		Title:     "Mash Temperature",
		Content:   "Hold the mash at 66C for balanced fermentability.",
		Category:  "process",
		Tags:      "mash,temperature",
		Source:    "handbook",
		SourceURL: "https://example.com/mash",
		IsActive:  true,
	}
	require.NoError(t, store.CreateArticle(ctx, article))
	assert.NotZero(t, article.ID)
	assert.False(t, article.CreatedAt.IsZero())

	got, err := store.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Title, got.Title)
	assert.Equal(t, article.Content, got.Content)
	assert.Equal(t, "process", got.Category)
	assert.Equal(t, "https://example.com/mash", got.SourceURL)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.CreatedBy)
}

func TestGetArticle_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetArticle(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateArticle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	article := seedArticle(t, store, "Old Title", "old content")
	article.Title = "New Title"
	article.Content = "new content"
	require.NoError(t, store.UpdateArticle(ctx, article))

	got, err := store.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	assert.Equal(t, "new content", got.Content)
}

func TestUpdateArticle_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateArticle(context.Background(), &types.Article{ID: 777, Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetArticleActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	article := seedArticle(t, store, "Deactivate Me", "content")
	require.NoError(t, store.SetArticleActive(ctx, article.ID, false))

	got, err := store.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, err := store.ListActiveArticles(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestListActiveArticles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedArticle(t, store, "First", "a")
	seedArticle(t, store, "Second", "b")
	inactive := seedArticle(t, store, "Third", "c")
	require.NoError(t, store.SetArticleActive(ctx, inactive.ID, false))

	active, err := store.ListActiveArticles(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "First", active[0].Title)
	assert.Equal(t, "Second", active[1].Title)

	count, err := store.CountActiveArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInsertAndListChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	article := seedArticle(t, store, "Chunked", "content")

	for i := 0; i < 3; i++ {
		chunk := &types.Chunk{
			ArticleID:  article.ID,
			Index:      i,
			Content:    "chunk content",
			Embedding:  []float32{float32(i), 1, 2},
			TokenCount: 4,
			Model:      "test-model",
		}
		require.NoError(t, store.InsertChunk(ctx, chunk))
		assert.NotZero(t, chunk.ID)
	}

	chunks, err := store.ListChunksByArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, []float32{float32(i), 1, 2}, chunk.Embedding)
		assert.Equal(t, "test-model", chunk.Model)
	}
}

func TestInsertChunk_DuplicateIndexRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	article := seedArticle(t, store, "Dup", "content")

	chunk := &types.Chunk{ArticleID: article.ID, Index: 0, Content: "one"}
	require.NoError(t, store.InsertChunk(ctx, chunk))

	dup := &types.Chunk{ArticleID: article.ID, Index: 0, Content: "two"}
	assert.Error(t, store.InsertChunk(ctx, dup))
}

func TestInsertChunk_NilEmbeddingStoredAsNull(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	article := seedArticle(t, store, "Pending", "content")

	chunk := &types.Chunk{ArticleID: article.ID, Index: 0, Content: "not embedded yet"}
	require.NoError(t, store.InsertChunk(ctx, chunk))

	embedded, err := store.ListEmbeddedChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, embedded)

	chunks, err := store.ListChunksByArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].HasEmbedding())
}

func TestDeleteChunksByArticle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	article := seedArticle(t, store, "Replace Me", "content")

	for i := 0; i < 2; i++ {
		require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
			ArticleID: article.ID, Index: i, Content: "c", Embedding: []float32{1},
		}))
	}
	require.NoError(t, store.DeleteChunksByArticle(ctx, article.ID))

	chunks, err := store.ListChunksByArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// Deleting when nothing remains is not an error
	require.NoError(t, store.DeleteChunksByArticle(ctx, article.ID))
}

func TestListEmbeddedChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	article := seedArticle(t, store, "Mixed", "content")

	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		ArticleID: article.ID, Index: 0, Content: "embedded", Embedding: []float32{1, 2},
	}))
	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		ArticleID: article.ID, Index: 1, Content: "pending",
	}))

	embedded, err := store.ListEmbeddedChunks(ctx)
	require.NoError(t, err)
	require.Len(t, embedded, 1)
	assert.Equal(t, "embedded", embedded[0].Content)
}

func TestListUnindexedArticles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	indexed := seedArticle(t, store, "Indexed", "content")
	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		ArticleID: indexed.ID, Index: 0, Content: "c", Embedding: []float32{1},
	}))

	unindexed := seedArticle(t, store, "Unindexed", "content")

	inactive := seedArticle(t, store, "Inactive", "content")
	require.NoError(t, store.SetArticleActive(ctx, inactive.ID, false))

	result, err := store.ListUnindexedArticles(ctx)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, unindexed.ID, result[0].ID)
}

func TestGetStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	article := seedArticle(t, store, "Status", "content")
	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		ArticleID: article.ID, Index: 0, Content: "c", Embedding: []float32{1}, Model: "model-a",
	}))
	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		ArticleID: article.ID, Index: 1, Content: "c",
	}))

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.ActiveArticles)
	assert.Equal(t, 2, status.TotalChunks)
	assert.Equal(t, 1, status.EmbeddedChunks)
	assert.Equal(t, []string{"model-a"}, status.Models)
	assert.False(t, status.LastIngestedAt.IsZero())
}

func TestTransaction_CommitAndRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	article := seedArticle(t, store, "Tx", "content")

	// Rollback leaves prior state intact
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertChunk(ctx, &types.Chunk{
		ArticleID: article.ID, Index: 0, Content: "discarded",
	}))
	require.NoError(t, tx.Rollback())

	chunks, err := store.ListChunksByArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// Commit makes the replacement visible
	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteChunksByArticle(ctx, article.ID))
	require.NoError(t, tx.InsertChunk(ctx, &types.Chunk{
		ArticleID: article.ID, Index: 0, Content: "kept", Embedding: []float32{1},
	}))
	require.NoError(t, tx.Commit())

	chunks, err = store.ListChunksByArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "kept", chunks[0].Content)
}

func TestTransaction_NestedRejected(t *testing.T) {
	store := newTestStore(t)
	tx, err := store.BeginTx(context.Background())
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = tx.BeginTx(context.Background())
	assert.Error(t, err)
}

func TestCascadeDeleteChunksWithArticle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	article := seedArticle(t, store, "Cascade", "content")
	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		ArticleID: article.ID, Index: 0, Content: "c",
	}))

	// The subsystem never hard-deletes articles, but the FK keeps the chunk
	// table consistent if an operator does.
	_, err := store.db.ExecContext(ctx, "DELETE FROM knowledge_articles WHERE id = ?", article.ID)
	require.NoError(t, err)

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
