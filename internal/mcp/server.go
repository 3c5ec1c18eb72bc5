package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hopworks/kbindex-mcp/internal/chunker"
	"github.com/hopworks/kbindex-mcp/internal/embedder"
	"github.com/hopworks/kbindex-mcp/internal/indexer"
	"github.com/hopworks/kbindex-mcp/internal/searcher"
	"github.com/hopworks/kbindex-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "kbindex-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDataDir is the default location for the database and cache
	DefaultDataDir = "~/.kbindex"
)

// Config carries server construction parameters. Zero values select
// defaults; a zero QueryCacheSize leaves the query cache disabled.
type Config struct {
	DBPath         string
	CachePath      string
	QueryCacheSize int
	QueryCacheTTL  time.Duration
}

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	emb      embedder.Embedder
	cache    *embedder.FileCache
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// NewServer creates a new MCP server instance. One embedder instance (and
// its file cache) is shared by the indexer and the searcher, so query-time
// embeddings reuse vectors cached during ingestion.
func NewServer(cfg Config) (*Server, error) {
	dbPath, cachePath, err := resolvePaths(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	cache := embedder.LoadCache(cachePath)

	emb, err := embedder.NewFromEnv(cache)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	idx := indexer.NewIndexer(store, emb, chunker.New(), indexer.WithFileCache(cache))

	srch := searcher.NewSearcher(store, emb)
	if cfg.QueryCacheSize > 0 {
		if err := srch.EnableQueryCache(cfg.QueryCacheSize, cfg.QueryCacheTTL); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("enable query cache: %w", err)
		}
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    store,
		emb:      emb,
		cache:    cache,
		indexer:  idx,
		searcher: srch,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close releases the server's resources.
func (s *Server) Close() {
	_ = s.emb.Close()
	_ = s.store.Close()
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchKnowledgeTool(), s.handleSearchKnowledge)
	s.mcp.AddTool(ingestArticleTool(), s.handleIngestArticle)
	s.mcp.AddTool(reindexArticleTool(), s.handleReindexArticle)
	s.mcp.AddTool(initEmbeddingsTool(), s.handleInitEmbeddings)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
}

// resolvePaths expands defaults under the user's home directory and creates
// the parent directories.
func resolvePaths(cfg Config) (dbPath, cachePath string, err error) {
	dbPath = cfg.DBPath
	cachePath = cfg.CachePath

	if dbPath == "" || cachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir := filepath.Join(home, ".kbindex")
		if dbPath == "" {
			dbPath = filepath.Join(dataDir, "knowledge.db")
		}
		if cachePath == "" {
			cachePath = filepath.Join(dataDir, "embeddings.json")
		}
	}

	for _, p := range []string{dbPath, cachePath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return "", "", fmt.Errorf("create data directory: %w", err)
		}
	}
	return dbPath, cachePath, nil
}
