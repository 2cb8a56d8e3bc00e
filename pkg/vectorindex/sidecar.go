package vectorindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// sidecarNode is the gob-serializable projection of hnswNode. Vectors are
// stored post-normalization, matching what every distance computation in
// this package assumes.
type sidecarNode struct {
	ID        string
	Vector    []float32
	Level     int
	Neighbors [][]string
	CreatedAt int64
}

type sidecarFile struct {
	Dimensions int
	Config     HNSWConfig
	EntryPoint string
	MaxLevel   int
	Nodes      []sidecarNode
}

// SidecarPath builds the conventional on-disk location for a domain/tier's
// vector index, matching the <base>/<domain>/<tier>/vector.hnsw layout.
func SidecarPath(baseDir, domain, tier string) string {
	return filepath.Join(baseDir, domain, tier, "vector.hnsw")
}

// Save writes the full index structure to path, creating parent
// directories as needed. The write goes to a temp file and is renamed into
// place so a crash mid-write never leaves a half-written sidecar behind.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sf := sidecarFile{
		Dimensions: h.dimensions,
		Config:     h.config,
		EntryPoint: h.entryPoint,
		MaxLevel:   h.maxLevel,
		Nodes:      make([]sidecarNode, 0, len(h.nodes)),
	}
	for id, n := range h.nodes {
		sf.Nodes = append(sf.Nodes, sidecarNode{
			ID:        id,
			Vector:    n.vector,
			Level:     n.level,
			Neighbors: n.neighbors,
			CreatedAt: n.createdAt,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sf); err != nil {
		return fmt.Errorf("encoding vector sidecar: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating sidecar directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing vector sidecar: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSidecar reads a previously Saved index from path.
func LoadSidecar(path string) (*HNSWIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sf sidecarFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decoding vector sidecar: %w", err)
	}

	idx := &HNSWIndex{
		config:     sf.Config,
		dimensions: sf.Dimensions,
		nodes:      make(map[string]*hnswNode, len(sf.Nodes)),
		entryPoint: sf.EntryPoint,
		maxLevel:   sf.MaxLevel,
	}
	for _, n := range sf.Nodes {
		idx.nodes[n.ID] = &hnswNode{
			id:        n.ID,
			vector:    n.Vector,
			level:     n.Level,
			neighbors: n.Neighbors,
			createdAt: n.CreatedAt,
		}
	}
	return idx, nil
}

// Len reports the number of vectors currently indexed.
func (h *HNSWIndex) Len() int {
	return h.Size()
}

// EmbeddingSource is the minimal read interface the rebuild path needs from
// the Storage Manager: a way to stream every stored embedding without
// loading them all into memory at once.
type EmbeddingSource interface {
	StreamEmbeddings(ctx context.Context, fn func(id string, vector []float32) error) error
}

// RebuildFromSource reconstructs an index by replaying every embedding in
// source through Add. Used on Engine.Open when the sidecar's vector count
// disagrees with the embeddings sub-DB's row count, the crash-consistency
// check spec.md §9 requires.
func RebuildFromSource(ctx context.Context, dimensions int, config HNSWConfig, source EmbeddingSource) (*HNSWIndex, error) {
	idx := NewHNSWIndex(dimensions, config)
	err := source.StreamEmbeddings(ctx, func(id string, vector []float32) error {
		return idx.Add(id, vector)
	})
	if err != nil {
		return nil, fmt.Errorf("rebuilding vector index from embeddings: %w", err)
	}
	return idx, nil
}
