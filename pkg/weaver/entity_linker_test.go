package weaver

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/tiers"
)

func newTestLinkerEngine(t *testing.T) *storage.BadgerEngine {
	t.Helper()
	engine, err := storage.Open(storage.Options{InMemory: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestEntityLinker_RecordMentionUpdatesEntityAndEdgeAtomically(t *testing.T) {
	engine := newTestLinkerEngine(t)
	coord := tiers.New(tiers.DefaultConfig(), zerolog.Nop())
	linker := NewEntityLinker(engine, coord, zerolog.Nop())

	entity := &model.Node{ID: "ent1", Kind: model.KindEntity}
	entity.SetProp("name", "Kubernetes")
	entity.SetProp("tier", string(model.EntityInferred))
	require.NoError(t, engine.CreateNode(entity))
	require.NoError(t, engine.IndexProperty(entity.ID, entityIndexProperty, "kubernetes"))
	linker.addKnown("kubernetes", entity.ID)

	require.NoError(t, engine.CreateNode(&model.Node{ID: "msg1", Kind: model.KindMessage}))

	require.NoError(t, linker.recordMention("msg1", "kubernetes"))

	got, err := engine.GetNode("ent1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Entity().MentionCount)

	out, err := engine.OutgoingEdges("msg1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.EdgeMentions, out[0].Type)
	assert.Equal(t, model.NodeID("ent1"), out[0].EndNode)
}

func TestEntityLinker_RecordMentionUnknownNameIsNoop(t *testing.T) {
	engine := newTestLinkerEngine(t)
	coord := tiers.New(tiers.DefaultConfig(), zerolog.Nop())
	linker := NewEntityLinker(engine, coord, zerolog.Nop())

	require.NoError(t, linker.recordMention("msg1", "nobody knows this"))
}

func TestEntityLinker_RecordMentionCrossingThresholdPromotesTierDatabase(t *testing.T) {
	engine := newTestLinkerEngine(t)

	reg, err := storage.OpenRegistry(storage.RegistryConfig{BaseDir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer reg.Close()
	coord := tiers.NewWithRegistry(tiers.DefaultConfig(), reg, zerolog.Nop())

	linker := NewEntityLinker(engine, coord, zerolog.Nop())

	entity := &model.Node{ID: "ent1", Kind: model.KindEntity}
	entity.SetProp("name", "Kubernetes")
	entity.SetProp("tier", string(model.EntityInferred))
	entity.SetProp("mention_count", tiers.EntityPromotionThreshold-1)
	require.NoError(t, engine.CreateNode(entity))
	require.NoError(t, engine.IndexProperty(entity.ID, entityIndexProperty, "kubernetes"))
	linker.addKnown("kubernetes", entity.ID)

	inferred, err := reg.Get(string(tiers.DomainKnowledge), "inferred")
	require.NoError(t, err)
	require.NoError(t, inferred.CreateNode(entity))

	require.NoError(t, engine.CreateNode(&model.Node{ID: "msg1", Kind: model.KindMessage}))

	require.NoError(t, linker.recordMention("msg1", "kubernetes"))

	_, err = inferred.GetNode("ent1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stable, err := reg.Get(string(tiers.DomainKnowledge), "stable")
	require.NoError(t, err)
	got, err := stable.GetNode("ent1")
	require.NoError(t, err)
	assert.Equal(t, model.EntityTier("stable"), got.Entity().Tier)
}

func TestEntityLinker_TrackCandidatePromotesAtThreshold(t *testing.T) {
	engine := newTestLinkerEngine(t)
	coord := tiers.New(tiers.DefaultConfig(), zerolog.Nop())
	linker := NewEntityLinker(engine, coord, zerolog.Nop())

	for i := 0; i < tiers.EntityPromotionThreshold-1; i++ {
		linker.trackCandidate("Aho Corasick")
	}
	nodes, err := engine.NodesByKind(model.KindEntity)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	linker.trackCandidate("Aho Corasick")

	nodes, err = engine.NodesByKind(model.KindEntity)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Aho Corasick", nodes[0].Entity().Name)
	assert.Equal(t, model.EntityTier("inferred"), nodes[0].Entity().Tier)

	ids, err := engine.QueryProperty(entityIndexProperty, "aho corasick")
	require.NoError(t, err)
	assert.Equal(t, []model.NodeID{nodes[0].ID}, ids)
}

func TestEntityLinker_LoadKnownEntitiesSeedsAutomaton(t *testing.T) {
	engine := newTestLinkerEngine(t)
	entity := &model.Node{ID: "ent1", Kind: model.KindEntity}
	entity.SetProp("name", "Kubernetes")
	require.NoError(t, engine.CreateNode(entity))

	coord := tiers.New(tiers.DefaultConfig(), zerolog.Nop())
	linker := NewEntityLinker(engine, coord, zerolog.Nop())
	require.NoError(t, linker.LoadKnownEntities())

	got := linker.scanKnown("we deployed kubernetes yesterday")
	assert.Equal(t, []string{"kubernetes"}, got)
}
