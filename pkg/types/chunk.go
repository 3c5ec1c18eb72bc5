package types

import (
	"errors"
	"math"
	"strings"
	"time"
)

// TokensPerWord is the heuristic used in place of a real tokenizer: token
// counts are approximated as word count * 1.3. Chunk budgets and the stored
// token_count column both use it, so the two stay comparable.
const TokensPerWord = 1.3

// Chunk is a bounded, overlapping slice of an article's text, embedded and
// indexed independently. For a given article, chunk indices are contiguous
// from 0 and reflect document order. Embedding is nil until the embedding
// step for the chunk succeeds; Model records which embedding model produced
// the vector so mixed-model corpora can be detected.
type Chunk struct {
	// Identification
	ID        int64
	ArticleID int64
	Index     int

	// Content
	Content    string
	Embedding  []float32 // Nullable - nil until embedded
	TokenCount int
	Model      string

	CreatedAt time.Time
}

// HasEmbedding reports whether the chunk carries a vector.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Validate checks chunk invariants before persistence.
func (c *Chunk) Validate() error {
	if c.ArticleID == 0 {
		return errors.New("chunk requires an article ID")
	}
	if c.Index < 0 {
		return errors.New("chunk index must be >= 0")
	}
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("chunk content cannot be empty")
	}
	return nil
}

// EstimateTokens approximates the token count of text as words * 1.3,
// rounded up. Not a real tokenizer; see TokensPerWord.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * TokensPerWord))
}
