// Package sqlite stores pull requests in a single SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Store implements the RecordStore,
// DetailStore and RecordWriter ports.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Similarity
//
// Embeddings are stored as little-endian float32 blobs. SimilarityQuery
// restricts candidates with SQL, then computes cosine similarity in process.
// Use an external vector index for large corpora.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
