// Package types defines the shared domain types for the knowledge retrieval
// engine: articles, their embedded chunks, and ranked search results.
//
// Articles are the unit of ingestion and are only ever soft-deactivated.
// Chunks are the unit of retrieval: overlapping slices of article text with
// an optional embedding vector. SearchResult is the transient, per-query
// output consumed by the chat layer.
package types
