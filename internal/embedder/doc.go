// Package embedder generates vector embeddings for article chunks and
// search queries.
//
// # Providers
//
// Two providers implement the Embedder interface:
//   - OpenAI: text-embedding-3-small (1536 dimensions) over the HTTP API,
//     with exponential-backoff retry for transient failures.
//   - Local: deterministic hash-derived unit vectors (384 dimensions) for
//     offline operation and tests. Not a semantic model.
//
// Provider selection is environment-driven via NewFromEnv:
//
//	KBINDEX_EMBEDDING_PROVIDER=openai|local
//	OPENAI_API_KEY=sk-...
//
// # Persistent Cache
//
// FileCache is a JSON-file-backed key->vector map keyed by SHA-256 content
// hash. Providers consult it before every outbound call and record every
// success, so re-ingesting unchanged articles costs no provider traffic.
// The file format is:
//
//	{"embeddings": {"<hex sha256>": [0.1, ...]}, "last_updated": "<RFC3339>"}
//
// A missing or corrupt cache file loads as an empty cache; it is saved only
// on explicit request and removed by Clear.
package embedder
