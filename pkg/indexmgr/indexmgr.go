// Package indexmgr fans write and read requests out across the Structural,
// Graph, and Vector indexes so callers (the Storage Manager's higher-level
// write path, the Weaver modules) have one place to call instead of three.
//
// The Structural and Graph indexes live inside the same BadgerDB
// transaction as the node/edge row they describe, so they are genuinely
// ACID with the write that produced them. The Vector Index is an in-memory
// HNSW graph with an on-disk sidecar; it cannot itself participate in a
// Badger transaction, so this package applies the in-memory update
// synchronously immediately after the owning write commits, before
// returning control to the caller — a search issued right after a
// successful write always sees the new vector. Durability across a crash
// between "commit" and "sidecar flush" is handled by the rebuild-from-
// embeddings-subdb path in pkg/vectorindex, not by pretending the sidecar
// write is itself transactional.
package indexmgr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/vectorindex"
)

// entityIndexProperty mirrors pkg/weaver's constant of the same name: the
// Structural Index key every Entity's canonical name is registered under.
// Duplicated rather than imported because pkg/weaver depends on pkg/indexmgr,
// not the other way around; the cascade hook below needs it to undo what the
// Entity Linker indexed.
const entityIndexProperty = "entity_name"

// TierKey identifies one domain/tier's vector sub-index, e.g.
// ("conversations", "active") or ("knowledge", "stable").
type TierKey struct {
	Domain string
	Tier   string
}

// Manager is the Index Manager: one BadgerEngine plus a set of lazily
// opened per-tier vector indexes.
type Manager struct {
	engine  *storage.BadgerEngine
	baseDir string
	dims    int
	hnswCfg vectorindex.HNSWConfig

	mu      sync.RWMutex
	vectors map[TierKey]*vectorindex.HNSWIndex

	log zerolog.Logger
}

// New creates an Index Manager over engine and wires engine's delete
// cascade hooks (SetOnNodeDeleted/SetOnEmbeddingDeleted) back to this
// Manager's Structural and Vector indexes, so a node or embedding deleted
// through engine never leaves a stale structural entry or HNSW vector
// behind. dims is the fixed embedding dimensionality every tier's vector
// index is configured for.
func New(engine *storage.BadgerEngine, baseDir string, dims int, hnswCfg vectorindex.HNSWConfig, log zerolog.Logger) *Manager {
	m := &Manager{
		engine:  engine,
		baseDir: baseDir,
		dims:    dims,
		hnswCfg: hnswCfg,
		vectors: make(map[TierKey]*vectorindex.HNSWIndex),
		log:     log.With().Str("component", "indexmgr").Logger(),
	}
	engine.SetOnNodeDeleted(m.handleNodeDeleted)
	engine.SetOnEmbeddingDeleted(m.handleEmbeddingDeleted)
	return m
}

// handleNodeDeleted is BadgerEngine's onNodeDeleted cascade hook: it removes
// the Structural Index entry an Entity's canonical name was registered
// under, and deletes the node's Embedding row if it is still present
// (BadgerEngine.DeleteNode normally has already removed it and fired
// handleEmbeddingDeleted), so DeleteNode's invariant ("structural index
// entries ... exactly mirror the property values of live nodes") holds
// without every call site having to remember to do this itself.
func (m *Manager) handleNodeDeleted(n *model.Node) error {
	if n.Kind == model.KindEntity {
		name := strings.ToLower(strings.TrimSpace(n.Entity().Name))
		if name != "" {
			if err := m.engine.UnindexProperty(n.ID, entityIndexProperty, name); err != nil {
				return fmt.Errorf("unindexing deleted entity %s: %w", n.ID, err)
			}
		}
	}
	if n.EmbeddingID != "" {
		if err := m.engine.DeleteEmbedding(n.EmbeddingID); err != nil && err != storage.ErrNotFound {
			return fmt.Errorf("deleting embedding %s for node %s: %w", n.EmbeddingID, n.ID, err)
		}
	}
	return nil
}

// handleEmbeddingDeleted is BadgerEngine's onEmbeddingDeleted cascade hook:
// it removes id from whichever open tier's HNSW graph holds it, so the
// Vector Index never outlives the embedding row it was built from.
func (m *Manager) handleEmbeddingDeleted(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, idx := range m.vectors {
		if idx.Remove(id) {
			return nil
		}
	}
	return nil
}

type engineEmbeddingAdapter struct {
	engine *storage.BadgerEngine
}

func (a engineEmbeddingAdapter) StreamEmbeddings(ctx context.Context, fn func(id string, vector []float32) error) error {
	return a.engine.StreamEmbeddings(ctx, func(e *model.Embedding) error {
		return fn(e.ID, e.Vector)
	})
}

// tier lazily opens the vector index for key, loading its sidecar if present
// and starting from an empty index otherwise. It does not compare the loaded
// count against the embeddings sub-DB; ReconcileSidecar does that.
func (m *Manager) tier(ctx context.Context, key TierKey) (*vectorindex.HNSWIndex, error) {
	m.mu.RLock()
	idx, ok := m.vectors[key]
	m.mu.RUnlock()
	if ok {
		return idx, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.vectors[key]; ok {
		return idx, nil
	}

	path := vectorindex.SidecarPath(m.baseDir, key.Domain, key.Tier)
	idx, err := vectorindex.LoadSidecar(path)
	if err != nil {
		m.log.Debug().Str("domain", key.Domain).Str("tier", key.Tier).Msg("no sidecar found, starting empty vector index")
		idx = vectorindex.NewHNSWIndex(m.dims, m.hnswCfg)
	}

	m.vectors[key] = idx
	return idx, nil
}

// ReconcileSidecar compares the in-memory size of key's vector index against
// trueCount and rebuilds the index from scratch when they differ or when no
// index is open for key. The rebuild streams every row of the embeddings
// sub-DB into the new index.
func (m *Manager) ReconcileSidecar(ctx context.Context, key TierKey, trueCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.vectors[key]
	if ok && idx.Len() == trueCount {
		return nil
	}

	m.log.Warn().Str("domain", key.Domain).Str("tier", key.Tier).
		Int("sidecar_count", func() int {
			if idx == nil {
				return -1
			}
			return idx.Len()
		}()).
		Int("true_count", trueCount).
		Msg("vector sidecar count mismatch, rebuilding from embeddings store")

	rebuilt, err := vectorindex.RebuildFromSource(ctx, m.dims, m.hnswCfg, engineEmbeddingAdapter{m.engine})
	if err != nil {
		return err
	}
	m.vectors[key] = rebuilt
	return nil
}

// IndexEmbedding stores vector under id in both the embeddings sub-DB and
// the tier's in-memory vector index.
func (m *Manager) IndexEmbedding(ctx context.Context, key TierKey, nodeID model.NodeID, embeddingID string, vector []float32, modelName string) error {
	emb := &model.Embedding{ID: embeddingID, NodeID: nodeID, Vector: vector, Model: modelName}
	if err := m.engine.PutEmbedding(emb); err != nil {
		return fmt.Errorf("storing embedding row: %w", err)
	}

	idx, err := m.tier(ctx, key)
	if err != nil {
		return err
	}
	if err := idx.Add(embeddingID, vector); err != nil {
		return fmt.Errorf("adding to vector index: %w", err)
	}
	return nil
}

// IndexEmbeddingAndNode stores the embedding row and the owning node's
// embedding_id update within the same write transaction, satisfying
// spec.md §4.8's "must execute within the same write transaction as the
// record insert" for the one case where the record write (the node's
// updated embedding_id) and the index write (the embedding row) are both
// KV writes and can therefore actually share a Badger transaction. The
// in-memory HNSW insert that follows commit cannot itself join that
// transaction (see the package doc) and is applied synchronously right
// after, same as IndexEmbedding.
func (m *Manager) IndexEmbeddingAndNode(ctx context.Context, key TierKey, node *model.Node, embeddingID string, vector []float32, modelName string) error {
	wtxn, err := m.engine.BeginWrite()
	if err != nil {
		return fmt.Errorf("beginning write for embedding index: %w", err)
	}

	emb := &model.Embedding{ID: embeddingID, NodeID: node.ID, Vector: vector, Model: modelName, CreatedAt: time.Now()}
	if err := wtxn.PutEmbedding(emb); err != nil {
		wtxn.Abort()
		return fmt.Errorf("storing embedding row: %w", err)
	}

	node.EmbeddingID = embeddingID
	node.UpdatedAt = time.Now()
	if err := wtxn.PutNode(node); err != nil {
		wtxn.Abort()
		return fmt.Errorf("updating node with embedding id: %w", err)
	}

	if err := wtxn.Commit(); err != nil {
		return fmt.Errorf("committing embedding index: %w", err)
	}

	idx, err := m.tier(ctx, key)
	if err != nil {
		return err
	}
	if err := idx.Add(embeddingID, vector); err != nil {
		return fmt.Errorf("adding to vector index: %w", err)
	}
	return nil
}

// Search runs a k-NN query against a tier's vector index.
func (m *Manager) Search(ctx context.Context, key TierKey, query []float32, k int, minSimilarity float64) ([]vectorindex.SearchResult, error) {
	idx, err := m.tier(ctx, key)
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, query, k, minSimilarity)
}

// IndexProperty writes a Structural Index entry for (propKey, value) of
// nodeID, to be called within the same logical write as the node update.
func (m *Manager) IndexProperty(nodeID model.NodeID, propKey, value string) error {
	return m.engine.IndexProperty(nodeID, propKey, value)
}

// QueryProperty looks up every node registered under (propKey, value).
func (m *Manager) QueryProperty(propKey, value string) ([]model.NodeID, error) {
	return m.engine.QueryProperty(propKey, value)
}

// Flush persists every open tier's vector index to its sidecar file. Called
// on graceful shutdown and periodically by the database coordinator.
func (m *Manager) Flush() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for key, idx := range m.vectors {
		path := vectorindex.SidecarPath(m.baseDir, key.Domain, key.Tier)
		if err := idx.Save(path); err != nil {
			return fmt.Errorf("flushing vector sidecar %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
