package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchKnowledgeTool returns the tool definition for search_knowledge
func searchKnowledgeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search the knowledge base with a natural language query. Uses hybrid semantic + keyword ranking, degrading to keyword-only when no embeddings exist.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     6,
					"minimum":     1,
					"maximum":     50,
				},
			},
			Required: []string{"query"},
		},
	}
}

// ingestArticleTool returns the tool definition for ingest_article
func ingestArticleTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_article",
		Description: "Create a knowledge article and index its content: chunk, embed, persist",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Article title",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full article text",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Optional category label",
				},
				"tags": map[string]interface{}{
					"type":        "string",
					"description": "Optional comma-separated tags",
				},
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Optional source identifier",
				},
				"source_url": map[string]interface{}{
					"type":        "string",
					"description": "Optional source URL surfaced in search results",
				},
			},
			Required: []string{"title", "content"},
		},
	}
}

// reindexArticleTool returns the tool definition for reindex_article
func reindexArticleTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_article",
		Description: "Rebuild an article's chunks and embeddings from its current content (full replace)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"article_id": map[string]interface{}{
					"type":        "integer",
					"description": "ID of the article to reindex",
				},
			},
			Required: []string{"article_id"},
		},
	}
}

// initEmbeddingsTool returns the tool definition for init_embeddings
func initEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "init_embeddings",
		Description: "Backfill: index every active article that has no chunks yet",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report corpus statistics: article and chunk counts, embedding coverage, models in use",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Clear the on-disk embedding cache and the in-memory query cache",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
