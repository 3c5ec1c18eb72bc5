// Package storage provides SQLite-based persistence for knowledge articles
// and their embedded chunks.
//
// # Database Schema
//
// Tables:
//   - knowledge_articles: article text and metadata; soft-deactivated via
//     is_active, never deleted by this subsystem
//   - knowledge_chunks: per-chunk (index, content, embedding, token_count,
//     model) rows, unique on (article_id, chunk_index), cascade-deleted with
//     their article
//
// Chunk rows are only written as a full replacement set for one article:
// reindexing deletes every chunk for the article and inserts the new
// sequence, inside one transaction.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore("knowledge.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	chunks, err := store.ListEmbeddedChunks(ctx)
//
// # Transactions
//
// Tx embeds Store, so the same operations run inside a transaction:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.DeleteChunksByArticle(ctx, articleID)
//	for _, chunk := range chunks {
//	    _ = tx.InsertChunk(ctx, chunk)
//	}
//	return tx.Commit()
//
// # Vector Storage
//
// Embeddings are stored as little-endian float32 BLOBs; a NULL embedding
// column marks a chunk whose embedding step has not succeeded. Cosine
// similarity is computed in Go (CosineSimilarity) with zero-norm and
// length-mismatch operands defined to score 0.
//
// # Build Tags
//
// Two driver configurations are supported:
//
//   - purego (default): modernc.org/sqlite, no C compiler needed
//     CGO_ENABLED=0 go build -tags "purego" ./...
//   - cgo_sqlite: github.com/mattn/go-sqlite3
//     CGO_ENABLED=1 go build -tags "cgo_sqlite" ./...
package storage
