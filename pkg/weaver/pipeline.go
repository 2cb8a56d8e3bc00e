package weaver

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/embed"
	"github.com/tabagent/tabagent/pkg/indexmgr"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/tiers"
)

// NewDefaultPipeline wires the four enrichment modules (plus the
// topological bonus pass) into a Bus in the one order that matters:
// SemanticIndexer must run before AssociativeLinker for the same event,
// since the linker only has something to search once the node has an
// EmbeddingID. The Bus dispatches modules to each event in registration
// order, so this ordering is exactly the modules slice below.
func NewDefaultPipeline(engine storage.Engine, embedder embed.Embedder, indexes *indexmgr.Manager, coord *tiers.Coordinator, generator Generator, cache TextCache, topologyRefresh time.Duration, log zerolog.Logger) (*Bus, *EntityLinker, *TopologicalLinker) {
	indexer := NewSemanticIndexer(engine, embedder, indexes, coord, cache, log)
	linker := NewEntityLinker(engine, coord, log)
	associative := NewAssociativeLinker(engine, indexes, coord, log)
	topological := NewTopologicalLinker(engine, topologyRefresh, log)
	summarizer := NewSummarizer(engine, generator, log)

	bus := New(log, indexer, linker, associative, topological, summarizer)
	associative.SetOnEdgeCreated(bus.Publish)
	return bus, linker, topological
}
