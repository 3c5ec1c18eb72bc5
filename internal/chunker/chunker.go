package chunker

import (
	"strings"

	"github.com/hopworks/kbindex-mcp/pkg/types"
)

const (
	// DefaultChunkTokens is the target token budget per chunk.
	DefaultChunkTokens = 500

	// DefaultOverlapTokens is the token overlap between adjacent chunks.
	DefaultOverlapTokens = 50
)

// Chunker splits article text into ordered, overlapping word-window chunks.
// Token budgets are converted to word counts with the words*1.3 heuristic;
// no real tokenizer is involved.
type Chunker struct {
	chunkTokens   int
	overlapTokens int
}

// New creates a Chunker with the default token budgets.
func New() *Chunker {
	return NewWithBudgets(DefaultChunkTokens, DefaultOverlapTokens)
}

// NewWithBudgets creates a Chunker with explicit chunk and overlap budgets.
// Non-positive values fall back to the defaults.
func NewWithBudgets(chunkTokens, overlapTokens int) *Chunker {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	return &Chunker{chunkTokens: chunkTokens, overlapTokens: overlapTokens}
}

// Chunk splits text into ordered chunks of at most the configured token
// budget, with adjacent chunks sharing the configured overlap. Pure and
// deterministic: identical input always yields the identical sequence.
//
// The window advances by (wordsPerChunk - overlapWords) each step; when the
// overlap meets or exceeds the chunk size the advance is forced to the window
// end so the loop always terminates.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	wordsPerChunk := int(float64(c.chunkTokens) / types.TokensPerWord)
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	overlapWords := int(float64(c.overlapTokens) / types.TokensPerWord)

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}

		chunk := strings.Join(words[start:end], " ")
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(words) {
			break // final window already covers the tail; backing up would re-emit it
		}

		start = end - overlapWords
		if start >= end {
			start = end // guard: overlap >= chunk size must still advance
		}
	}

	return chunks
}

// WordsPerChunk returns the word-window size derived from the token budget.
func (c *Chunker) WordsPerChunk() int {
	n := int(float64(c.chunkTokens) / types.TokensPerWord)
	if n < 1 {
		n = 1
	}
	return n
}

// OverlapWords returns the word overlap derived from the token budget.
func (c *Chunker) OverlapWords() int {
	return int(float64(c.overlapTokens) / types.TokensPerWord)
}
