// Package mcp exposes the knowledge retrieval engine as an MCP server over
// stdio.
//
// # Tools
//
//   - search_knowledge: hybrid semantic + keyword search with automatic
//     keyword-only degradation
//   - ingest_article: create an article and index its content
//   - reindex_article: full replace of an article's chunk set
//   - init_embeddings: backfill active articles that have no chunks
//   - get_status: corpus statistics and embedding configuration
//   - clear_cache: drop the on-disk embedding cache and query cache
//
// Tool results are indented JSON in a text content block. Failures use
// JSON-RPC error codes: -32602 for invalid parameters, -32603 for internal
// errors, plus application codes -32001 (article not found), -32002
// (reindex in progress) and -32004 (empty query).
//
// # Wiring
//
// NewServer builds the dependency graph: one SQLite store, one embedder
// with a shared file cache, and the indexer and searcher on top of them.
// Mutating tools invalidate the searcher's query cache so stale rankings
// are never served.
//
// Logging goes to stderr; stdout carries the MCP protocol.
package mcp
