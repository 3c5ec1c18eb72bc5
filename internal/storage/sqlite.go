package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hopworks/kbindex-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance and applies migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, store: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx    *sql.Tx
	store *SQLiteStore
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStore) querier() querier {
	return s.db
}

// Article operations

func createArticle(ctx context.Context, q querier, article *types.Article) error {
	query := `
		INSERT INTO knowledge_articles
			(title, content, category, tags, source, source_url, created_by, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		article.Title, article.Content,
		nullString(article.Category), nullString(article.Tags),
		nullString(article.Source), nullString(article.SourceURL),
		article.CreatedBy, article.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	article.ID = id
	article.CreatedAt = now
	article.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) CreateArticle(ctx context.Context, article *types.Article) error {
	return createArticle(ctx, s.querier(), article)
}

const articleColumns = `id, title, content, category, tags, source, source_url, created_by, is_active, created_at, updated_at`

func scanArticle(scan func(dest ...interface{}) error) (*types.Article, error) {
	var a types.Article
	var category, tags, source, sourceURL sql.NullString
	var createdBy sql.NullInt64
	err := scan(
		&a.ID, &a.Title, &a.Content, &category, &tags, &source, &sourceURL,
		&createdBy, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Category = category.String
	a.Tags = tags.String
	a.Source = source.String
	a.SourceURL = sourceURL.String
	if createdBy.Valid {
		a.CreatedBy = &createdBy.Int64
	}
	return &a, nil
}

func getArticle(ctx context.Context, q querier, id int64) (*types.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM knowledge_articles WHERE id = ?`
	article, err := scanArticle(q.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id int64) (*types.Article, error) {
	return getArticle(ctx, s.querier(), id)
}

func updateArticle(ctx context.Context, q querier, article *types.Article) error {
	query := `
		UPDATE knowledge_articles
		SET title = ?, content = ?, category = ?, tags = ?, source = ?, source_url = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		article.Title, article.Content,
		nullString(article.Category), nullString(article.Tags),
		nullString(article.Source), nullString(article.SourceURL),
		now, article.ID)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	article.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateArticle(ctx context.Context, article *types.Article) error {
	return updateArticle(ctx, s.querier(), article)
}

func setArticleActive(ctx context.Context, q querier, id int64, active bool) error {
	result, err := q.ExecContext(ctx,
		"UPDATE knowledge_articles SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set article active flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetArticleActive(ctx context.Context, id int64, active bool) error {
	return setArticleActive(ctx, s.querier(), id, active)
}

func listActiveArticles(ctx context.Context, q querier) ([]*types.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM knowledge_articles WHERE is_active = 1 ORDER BY id`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []*types.Article
	for rows.Next() {
		article, err := scanArticle(rows.Scan)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func (s *SQLiteStore) ListActiveArticles(ctx context.Context) ([]*types.Article, error) {
	return listActiveArticles(ctx, s.querier())
}

func countActiveArticles(ctx context.Context, q querier) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_articles WHERE is_active = 1").Scan(&count)
	return count, err
}

func (s *SQLiteStore) CountActiveArticles(ctx context.Context) (int, error) {
	return countActiveArticles(ctx, s.querier())
}

// Chunk operations

func insertChunk(ctx context.Context, q querier, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO knowledge_chunks
			(article_id, chunk_index, content, embedding, token_count, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		chunk.ArticleID, chunk.Index, chunk.Content,
		serializeVector(chunk.Embedding), chunk.TokenCount, chunk.Model, now)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	chunk.ID = id
	chunk.CreatedAt = now
	return nil
}

func (s *SQLiteStore) InsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return insertChunk(ctx, s.querier(), chunk)
}

const chunkColumns = `id, article_id, chunk_index, content, embedding, token_count, model, created_at`

func scanChunk(scan func(dest ...interface{}) error) (*types.Chunk, error) {
	var c types.Chunk
	var blob []byte
	err := scan(&c.ID, &c.ArticleID, &c.Index, &c.Content, &blob, &c.TokenCount, &c.Model, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Embedding = deserializeVector(blob)
	return &c, nil
}

func collectChunks(rows *sql.Rows) ([]*types.Chunk, error) {
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func listChunksByArticle(ctx context.Context, q querier, articleID int64) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM knowledge_chunks WHERE article_id = ? ORDER BY chunk_index`
	rows, err := q.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return collectChunks(rows)
}

func (s *SQLiteStore) ListChunksByArticle(ctx context.Context, articleID int64) ([]*types.Chunk, error) {
	return listChunksByArticle(ctx, s.querier(), articleID)
}

func deleteChunksByArticle(ctx context.Context, q querier, articleID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM knowledge_chunks WHERE article_id = ?", articleID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteChunksByArticle(ctx context.Context, articleID int64) error {
	return deleteChunksByArticle(ctx, s.querier(), articleID)
}

func countChunks(ctx context.Context, q querier) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_chunks").Scan(&count)
	return count, err
}

func (s *SQLiteStore) CountChunks(ctx context.Context) (int, error) {
	return countChunks(ctx, s.querier())
}

// Search support

func listEmbeddedChunks(ctx context.Context, q querier) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM knowledge_chunks WHERE embedding IS NOT NULL ORDER BY article_id, chunk_index`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded chunks: %w", err)
	}
	return collectChunks(rows)
}

func (s *SQLiteStore) ListEmbeddedChunks(ctx context.Context) ([]*types.Chunk, error) {
	return listEmbeddedChunks(ctx, s.querier())
}

// Backfill support

func listUnindexedArticles(ctx context.Context, q querier) ([]*types.Article, error) {
	// Anti-join: active articles with no chunk rows at all
	query := `
		SELECT ` + prefixedArticleColumns("a") + `
		FROM knowledge_articles a
		LEFT JOIN knowledge_chunks c ON a.id = c.article_id
		WHERE a.is_active = 1 AND c.id IS NULL
		ORDER BY a.id
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unindexed articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []*types.Article
	for rows.Next() {
		article, err := scanArticle(rows.Scan)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func (s *SQLiteStore) ListUnindexedArticles(ctx context.Context) ([]*types.Article, error) {
	return listUnindexedArticles(ctx, s.querier())
}

// prefixedArticleColumns qualifies the article column list with a table alias.
func prefixedArticleColumns(alias string) string {
	return alias + ".id, " + alias + ".title, " + alias + ".content, " +
		alias + ".category, " + alias + ".tags, " + alias + ".source, " +
		alias + ".source_url, " + alias + ".created_by, " + alias + ".is_active, " +
		alias + ".created_at, " + alias + ".updated_at"
}

// Status operations

func getStatus(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_articles WHERE is_active = 1").Scan(&status.ActiveArticles); err != nil {
		return nil, err
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_chunks").Scan(&status.TotalChunks); err != nil {
		return nil, err
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_chunks WHERE embedding IS NOT NULL").Scan(&status.EmbeddedChunks); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, "SELECT DISTINCT model FROM knowledge_chunks WHERE model != '' ORDER BY model")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var model string
		if err := rows.Scan(&model); err != nil {
			return nil, err
		}
		status.Models = append(status.Models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var lastIngested sql.NullTime
	if err := q.QueryRowContext(ctx, "SELECT MAX(created_at) FROM knowledge_articles").Scan(&lastIngested); err != nil {
		return nil, err
	}
	if lastIngested.Valid {
		status.LastIngestedAt = lastIngested.Time
	}

	return status, nil
}

func (s *SQLiteStore) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, s.querier())
}

// nullString maps "" to NULL so optional metadata stays NULL in the schema.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Transaction method implementations: delegate to the shared querier helpers.

func (t *sqliteTx) CreateArticle(ctx context.Context, article *types.Article) error {
	return createArticle(ctx, t.querier(), article)
}

func (t *sqliteTx) GetArticle(ctx context.Context, id int64) (*types.Article, error) {
	return getArticle(ctx, t.querier(), id)
}

func (t *sqliteTx) UpdateArticle(ctx context.Context, article *types.Article) error {
	return updateArticle(ctx, t.querier(), article)
}

func (t *sqliteTx) SetArticleActive(ctx context.Context, id int64, active bool) error {
	return setArticleActive(ctx, t.querier(), id, active)
}

func (t *sqliteTx) ListActiveArticles(ctx context.Context) ([]*types.Article, error) {
	return listActiveArticles(ctx, t.querier())
}

func (t *sqliteTx) CountActiveArticles(ctx context.Context) (int, error) {
	return countActiveArticles(ctx, t.querier())
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return insertChunk(ctx, t.querier(), chunk)
}

func (t *sqliteTx) ListChunksByArticle(ctx context.Context, articleID int64) ([]*types.Chunk, error) {
	return listChunksByArticle(ctx, t.querier(), articleID)
}

func (t *sqliteTx) DeleteChunksByArticle(ctx context.Context, articleID int64) error {
	return deleteChunksByArticle(ctx, t.querier(), articleID)
}

func (t *sqliteTx) CountChunks(ctx context.Context) (int, error) {
	return countChunks(ctx, t.querier())
}

func (t *sqliteTx) ListEmbeddedChunks(ctx context.Context) ([]*types.Chunk, error) {
	return listEmbeddedChunks(ctx, t.querier())
}

func (t *sqliteTx) ListUnindexedArticles(ctx context.Context) ([]*types.Article, error) {
	return listUnindexedArticles(ctx, t.querier())
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
