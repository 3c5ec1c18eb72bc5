package types

// MatchType records which ranking path produced a search result.
type MatchType string

const (
	// MatchHybrid means the result was ranked by combined cosine similarity
	// and lexical term overlap against an embedded chunk.
	MatchHybrid MatchType = "hybrid"
	// MatchSemantic means the result was ranked by vector similarity alone.
	MatchSemantic MatchType = "semantic"
	// MatchKeyword means the result came from the whole-article lexical
	// fallback and carries no chunk reference.
	MatchKeyword MatchType = "keyword"
)

// ChunkRef identifies the chunk a hybrid result was ranked on. Keyword
// results are whole-article hits and carry a nil ChunkRef instead of a
// sentinel ID.
type ChunkRef struct {
	ChunkID int64
	Index   int
}

// SearchResult is a single ranked passage returned to the chat layer.
// Transient: constructed per query, never persisted.
type SearchResult struct {
	ArticleID int64
	Chunk     *ChunkRef // Nullable - nil for keyword (whole-article) hits

	Title     string
	Content   string
	Category  string
	SourceURL string

	Score     float64
	MatchType MatchType
}

// Validate checks structural invariants of a result.
func (r *SearchResult) Validate() error {
	if r.ArticleID == 0 {
		return ErrMissingArticle
	}
	if r.Content == "" {
		return ErrEmptyContent
	}
	switch r.MatchType {
	case MatchHybrid, MatchSemantic:
		if r.Chunk == nil || r.Chunk.ChunkID == 0 {
			return ErrMissingChunkRef
		}
	case MatchKeyword:
		if r.Chunk != nil {
			return ErrUnexpectedChunkRef
		}
	default:
		return ErrInvalidMatchType
	}
	return nil
}
