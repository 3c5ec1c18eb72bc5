// Package chunker divides free-text knowledge articles into overlapping
// word-window chunks for embedding and retrieval.
//
// Unlike structure-aware splitters, the chunker treats text as a flat word
// sequence: each chunk is a fixed-size window of words, and adjacent windows
// share a configurable overlap so that sentences spanning a boundary remain
// searchable from both sides.
//
// # Token Approximation
//
// Budgets are expressed in tokens but converted to words with the heuristic
// tokens = words * 1.3 (see types.TokensPerWord). With the defaults of 500
// chunk tokens and 50 overlap tokens, windows are 384 words wide with a
// 38-word overlap.
//
// # Basic Usage
//
//	c := chunker.New()
//	chunks := c.Chunk(article.Content)
//	for i, chunk := range chunks {
//	    fmt.Printf("chunk %d: ~%d tokens\n", i, types.EstimateTokens(chunk))
//	}
//
// Chunk is a pure function of its input: no I/O, deterministic output, and
// guaranteed termination even for degenerate budgets where the overlap
// meets or exceeds the window size.
package chunker
