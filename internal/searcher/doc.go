// Package searcher ranks knowledge articles for natural-language queries.
//
// # Ranking
//
// The primary path is hybrid: the query is embedded, every chunk with a
// stored vector is scored, and the combined score is
//
//	0.70 * cosine(query, chunk) + 0.30 * lexical_overlap(terms, chunk)
//
// where lexical overlap is the fraction of query terms (lowercased, length
// > 2) appearing as substrings of the chunk text. The top results resolve
// their parent article for title, category and source URL.
//
// # Degradation
//
// Search never fails because embeddings are missing or the provider is
// down. When the store holds zero embedded chunks, or any semantic step
// errors, Search falls back to KeywordSearch: a whole-article substring
// scan over active articles, returning truncated article snippets with no
// chunk reference.
//
// # Query Cache
//
// An optional TTL-bounded LRU caches result lists per (query, topK). It is
// disabled by default and invalidated by the indexer after every ingest or
// reindex; enabling it changes no ranking behavior.
package searcher
