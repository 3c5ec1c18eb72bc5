// Package indexer orchestrates chunking, embedding and persistence for
// knowledge articles.
//
// Three operations cover the article lifecycle:
//
//   - IngestArticle creates an article and persists its embedded chunks in
//     order, failing fast on the first provider error and reporting how many
//     chunks made it.
//   - ReindexArticle atomically replaces an article's entire chunk set from
//     its current content. A per-article lock makes concurrent reindexes of
//     the same article mutually exclusive without blocking other articles.
//   - InitializeAllEmbeddings backfills every active article that has no
//     chunks yet, with bounded concurrency, collecting per-article failures
//     instead of aborting the run.
package indexer
