package searcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/hopworks/kbindex-mcp/internal/embedder"
	"github.com/hopworks/kbindex-mcp/internal/storage"
	"github.com/hopworks/kbindex-mcp/pkg/types"
)

// Ranking weights. These are fixed constants of the design, not tunable at
// call time: hybrid relevance is 70% vector similarity, 30% lexical overlap.
const (
	SemanticWeight = 0.70
	KeywordWeight  = 0.30

	// DefaultTopK is the result count used when the caller passes topK <= 0.
	DefaultTopK = 6

	// minTermLength is the shortest query term that participates in lexical
	// scoring. Shorter tokens ("a", "of", "is") match almost everything.
	minTermLength = 3

	// snippetLimit bounds the content returned for whole-article keyword
	// hits, in runes.
	snippetLimit = 500
)

// errNoEmbeddedChunks signals that the corpus has no vectors to rank against.
var errNoEmbeddedChunks = errors.New("no embedded chunks in store")

// Searcher ranks knowledge articles for a query. The primary path embeds the
// query and scores every embedded chunk; when that path is unavailable for
// any reason it degrades to a whole-article keyword scan rather than
// returning an error to the caller.
type Searcher struct {
	store    storage.Store
	embedder embedder.Embedder
	cache    *queryCache // nil unless EnableQueryCache was called
}

// NewSearcher creates a Searcher over the given store and embedder. The
// query cache starts disabled.
func NewSearcher(store storage.Store, emb embedder.Embedder) *Searcher {
	return &Searcher{
		store:    store,
		embedder: emb,
	}
}

// Search returns up to topK ranked results for the query. topK <= 0 selects
// DefaultTopK.
//
// When the store holds no embedded chunks, or any step of the semantic path
// fails (query embedding, chunk listing, article resolution), Search returns
// exactly what KeywordSearch would return. Semantic-path errors are logged,
// never propagated.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]types.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	if s.cache != nil {
		if results, ok := s.cache.get(query, topK); ok {
			return results, nil
		}
	}

	results, err := s.hybridSearch(ctx, query, topK)
	if err != nil {
		if !errors.Is(err, errNoEmbeddedChunks) {
			log.Printf("semantic search unavailable, using keyword fallback: %v", err)
		}
		return s.KeywordSearch(ctx, query, topK)
	}

	if s.cache != nil {
		s.cache.put(query, topK, results)
	}
	return results, nil
}

// rankedChunk pairs a candidate chunk with its combined score.
type rankedChunk struct {
	chunk *types.Chunk
	score float64
}

// hybridSearch embeds the query and scores every embedded chunk in the
// store. Returns errNoEmbeddedChunks when the corpus has no vectors.
func (s *Searcher) hybridSearch(ctx context.Context, query string, topK int) ([]types.SearchResult, error) {
	chunks, err := s.store.ListEmbeddedChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list embedded chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, errNoEmbeddedChunks
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	terms := queryTerms(query)

	ranked := make([]rankedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		semantic := storage.CosineSimilarity(emb.Vector, chunk.Embedding)
		lexical := lexicalOverlap(terms, chunk.Content)
		ranked = append(ranked, rankedChunk{
			chunk: chunk,
			score: hybridScore(semantic, lexical),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if topK < len(ranked) {
		ranked = ranked[:topK]
	}

	// Resolve parent articles for result metadata. Chunks of the same
	// article share one lookup.
	articles := make(map[int64]*types.Article)
	results := make([]types.SearchResult, 0, len(ranked))
	for _, rc := range ranked {
		article, ok := articles[rc.chunk.ArticleID]
		if !ok {
			article, err = s.store.GetArticle(ctx, rc.chunk.ArticleID)
			if err != nil {
				return nil, fmt.Errorf("resolve article %d: %w", rc.chunk.ArticleID, err)
			}
			articles[rc.chunk.ArticleID] = article
		}

		results = append(results, types.SearchResult{
			ArticleID: article.ID,
			Chunk: &types.ChunkRef{
				ChunkID: rc.chunk.ID,
				Index:   rc.chunk.Index,
			},
			Title:     article.Title,
			Content:   rc.chunk.Content,
			Category:  article.Category,
			SourceURL: article.SourceURL,
			Score:     rc.score,
			MatchType: types.MatchHybrid,
		})
	}

	return results, nil
}

// KeywordSearch ranks whole articles by lexical term overlap. It is the
// degraded path used when no embeddings exist, but is also callable directly.
//
// Results carry a nil Chunk reference: a keyword hit is a whole-article
// match with no chunk granularity. Content is truncated to snippetLimit
// runes with a trailing ellipsis.
func (s *Searcher) KeywordSearch(ctx context.Context, query string, topK int) ([]types.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return []types.SearchResult{}, nil
	}

	articles, err := s.store.ListActiveArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active articles: %w", err)
	}

	results := make([]types.SearchResult, 0, len(articles))
	for _, article := range articles {
		score := lexicalOverlap(terms, article.SearchText())
		if score == 0 {
			continue
		}
		results = append(results, types.SearchResult{
			ArticleID: article.ID,
			Title:     article.Title,
			Content:   truncate(article.Content, snippetLimit),
			Category:  article.Category,
			SourceURL: article.SourceURL,
			Score:     score,
			MatchType: types.MatchKeyword,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// hybridScore combines the two relevance signals with the fixed weights.
func hybridScore(semantic, lexical float64) float64 {
	return SemanticWeight*semantic + KeywordWeight*lexical
}

// queryTerms tokenizes a query for lexical scoring: whitespace split,
// lowercased, terms of length <= 2 discarded.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

// lexicalOverlap returns the fraction of terms appearing as substrings of
// the (case-folded) text. Zero terms scores 0, guarding the division.
func lexicalOverlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// truncate bounds s to limit runes, appending an ellipsis when it was cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
