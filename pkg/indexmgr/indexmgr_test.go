package indexmgr

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/vectorindex"
)

const testDims = 3

func newTestManager(t *testing.T) (*Manager, *storage.BadgerEngine) {
	t.Helper()
	engine, err := storage.Open(storage.Options{InMemory: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	m := New(engine, t.TempDir(), testDims, vectorindex.DefaultHNSWConfig(), zerolog.Nop())
	return m, engine
}

var testKey = TierKey{Domain: "knowledge", Tier: "stable"}

func TestIndexEmbedding_StoresRowAndVector(t *testing.T) {
	m, engine := newTestManager(t)

	require.NoError(t, engine.CreateNode(&model.Node{ID: "n1", Kind: model.KindEntity}))
	require.NoError(t, m.IndexEmbedding(context.Background(), testKey, "n1", "emb1", []float32{1, 0, 0}, "test-model"))

	emb, err := engine.GetEmbedding("emb1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, emb.Vector)

	results, err := m.Search(context.Background(), testKey, []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "emb1", results[0].ID)
}

func TestIndexEmbeddingAndNode_CommitsNodeAndEmbeddingTogether(t *testing.T) {
	m, engine := newTestManager(t)

	node := &model.Node{ID: "n1", Kind: model.KindEntity}
	require.NoError(t, engine.CreateNode(node))

	require.NoError(t, m.IndexEmbeddingAndNode(context.Background(), testKey, node, "emb1", []float32{0, 1, 0}, "test-model"))

	got, err := engine.GetNode("n1")
	require.NoError(t, err)
	assert.Equal(t, "emb1", got.EmbeddingID)

	_, err = engine.GetEmbedding("emb1")
	require.NoError(t, err)

	results, err := m.Search(context.Background(), testKey, []float32{0, 1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "emb1", results[0].ID)
}

func TestNew_WiresNodeDeletedCascadeToStructuralAndVectorIndex(t *testing.T) {
	m, engine := newTestManager(t)

	entity := &model.Node{ID: "ent1", Kind: model.KindEntity, EmbeddingID: "emb1"}
	entity.SetProp("name", "Kubernetes")
	require.NoError(t, engine.CreateNode(entity))
	require.NoError(t, engine.IndexProperty(entity.ID, entityIndexProperty, "kubernetes"))
	require.NoError(t, m.IndexEmbedding(context.Background(), testKey, "ent1", "emb1", []float32{1, 1, 1}, "test-model"))

	require.NoError(t, engine.DeleteNode("ent1"))

	ids, err := engine.QueryProperty(entityIndexProperty, "kubernetes")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = engine.GetEmbedding("emb1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	results, err := m.Search(context.Background(), testKey, []float32{1, 1, 1}, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReconcileSidecar_RebuildsOnCountMismatch(t *testing.T) {
	m, engine := newTestManager(t)

	require.NoError(t, engine.CreateNode(&model.Node{ID: "n1", Kind: model.KindEntity}))
	require.NoError(t, m.IndexEmbedding(context.Background(), testKey, "n1", "emb1", []float32{1, 0, 0}, "test-model"))

	require.NoError(t, engine.PutEmbedding(&model.Embedding{ID: "emb2", NodeID: "n2", Vector: []float32{0, 1, 0}}))

	require.NoError(t, m.ReconcileSidecar(context.Background(), testKey, 2))

	results, err := m.Search(context.Background(), testKey, []float32{0, 1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "emb2", results[0].ID)
}

func TestReconcileSidecar_SkipsRebuildWhenCountsMatch(t *testing.T) {
	m, engine := newTestManager(t)

	require.NoError(t, engine.CreateNode(&model.Node{ID: "n1", Kind: model.KindEntity}))
	require.NoError(t, m.IndexEmbedding(context.Background(), testKey, "n1", "emb1", []float32{1, 0, 0}, "test-model"))

	require.NoError(t, m.ReconcileSidecar(context.Background(), testKey, 1))

	results, err := m.Search(context.Background(), testKey, []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestFlush_WritesSidecarForEveryOpenTier(t *testing.T) {
	m, engine := newTestManager(t)

	require.NoError(t, engine.CreateNode(&model.Node{ID: "n1", Kind: model.KindEntity}))
	require.NoError(t, m.IndexEmbedding(context.Background(), testKey, "n1", "emb1", []float32{1, 0, 0}, "test-model"))

	require.NoError(t, m.Flush())

	path := vectorindex.SidecarPath(m.baseDir, testKey.Domain, testKey.Tier)
	loaded, err := vectorindex.LoadSidecar(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}
