package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hopworks/kbindex-mcp/internal/indexer"
	"github.com/hopworks/kbindex-mcp/internal/storage"
	"github.com/hopworks/kbindex-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeArticleNotFound   = -32001 // Referenced article does not exist
	ErrorCodeReindexInProgress = -32002 // Another reindex of the same article is running
	ErrorCodeEmptyQuery        = -32004 // Query parameter is empty
)

// handleSearchKnowledge handles the search_knowledge tool invocation
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", 0)
	if topK < 0 || topK > 50 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 50", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	results, err := s.searcher.Search(ctx, query, topK)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"article_id": r.ArticleID,
			"title":      r.Title,
			"content":    r.Content,
			"category":   r.Category,
			"source_url": r.SourceURL,
			"score":      r.Score,
			"match_type": string(r.MatchType),
		}
		if r.Chunk != nil {
			entry["chunk"] = map[string]interface{}{
				"id":    r.Chunk.ChunkID,
				"index": r.Chunk.Index,
			}
		}
		formatted = append(formatted, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":        query,
		"result_count": len(formatted),
		"results":      formatted,
	})), nil
}

// handleIngestArticle handles the ingest_article tool invocation
func (s *Server) handleIngestArticle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	title, _ := args["title"].(string)
	content, _ := args["content"].(string)

	draft := types.ArticleDraft{
		Title:     title,
		Content:   content,
		Category:  getStringDefault(args, "category", ""),
		Tags:      getStringDefault(args, "tags", ""),
		Source:    getStringDefault(args, "source", ""),
		SourceURL: getStringDefault(args, "source_url", ""),
	}
	if err := draft.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid article", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	result, err := s.indexer.IngestArticle(ctx, draft)
	if err != nil {
		var partial *indexer.PartialIngestError
		if errors.As(err, &partial) {
			// Partial state is persisted; surface how far ingest got so the
			// caller can reindex_article to repair it.
			return nil, newMCPError(ErrorCodeInternalError, "ingest stopped partway", map[string]interface{}{
				"article_id":       partial.ArticleID,
				"chunks_persisted": partial.Persisted,
				"chunks_total":     partial.Total,
				"error":            partial.Err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "ingest failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"article_id":     result.ArticleID,
		"chunks_created": result.ChunkCount,
	})), nil
}

// handleReindexArticle handles the reindex_article tool invocation
func (s *Server) handleReindexArticle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	articleID := int64(getIntDefault(args, "article_id", 0))
	if articleID <= 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "article_id parameter is required", map[string]interface{}{
			"param":  "article_id",
			"reason": "missing or not a positive integer",
		})
	}

	result, err := s.indexer.ReindexArticle(ctx, articleID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, newMCPError(ErrorCodeArticleNotFound, "article not found", map[string]interface{}{
			"article_id": articleID,
		})
	case errors.Is(err, indexer.ErrReindexInProgress):
		return nil, newMCPError(ErrorCodeReindexInProgress, "article is already being reindexed", map[string]interface{}{
			"article_id": articleID,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "reindex failed", map[string]interface{}{
			"article_id": articleID,
			"error":      err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"article_id":     result.ArticleID,
		"chunks_created": result.ChunkCount,
	})), nil
}

// handleInitEmbeddings handles the init_embeddings tool invocation
func (s *Server) handleInitEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.indexer.InitializeAllEmbeddings(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "backfill failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"discovered":     stats.Discovered,
		"indexed":        stats.Indexed,
		"chunks_created": stats.ChunksCreated,
	}
	if len(stats.Failures) > 0 {
		failures := make([]map[string]interface{}, 0, len(stats.Failures))
		for i, f := range stats.Failures {
			if i == 5 {
				break // cap the detail, the count carries the rest
			}
			failures = append(failures, map[string]interface{}{
				"article_id": f.ArticleID,
				"error":      f.Err.Error(),
			})
		}
		response["failures"] = failures
		response["failure_count"] = len(stats.Failures)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"articles": map[string]interface{}{
			"active": status.ActiveArticles,
		},
		"chunks": map[string]interface{}{
			"total":    status.TotalChunks,
			"embedded": status.EmbeddedChunks,
			"models":   status.Models,
		},
		"embedding": map[string]interface{}{
			"provider":  s.emb.Provider(),
			"model":     s.emb.Model(),
			"dimension": s.emb.Dimension(),
		},
		"cache": map[string]interface{}{
			"entries": s.cache.Size(),
			"path":    s.cache.Path(),
		},
		"storage": map[string]interface{}{
			"build_mode": storage.BuildMode,
		},
	}
	if !status.LastIngestedAt.IsZero() {
		response["last_ingested_at"] = status.LastIngestedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := s.cache.Size()
	if err := s.cache.Clear(); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear embedding cache", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.searcher.InvalidateCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared":         true,
		"entries_removed": entries,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
