// Package vectorindex provides the Vector Index: an HNSW approximate
// nearest-neighbor index over fixed-dimension embeddings, persisted to an
// on-disk sidecar file and rebuildable from the embeddings sub-database if
// the sidecar is missing or stale.
package vectorindex

// SearchResult is a single nearest-neighbor match.
type SearchResult struct {
	ID    string
	Score float64
}
