package weaver

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/linkpredict"
	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
)

// Topological Associative Linker parameters. Looser than the vector-space
// linker's: structural co-occurrence is a weaker, supplementary signal, so
// it contributes fewer edges and only above a score that rules out
// one-off overlaps.
const (
	topologyTopK           = 5
	topologyMinScore       = 2.0 // Common Neighbors count, not a [0,1] similarity
	topologyMaxNewEdges    = 2
	topologyRefreshDefault = 10 * time.Minute
)

// TopologicalLinker is the bonus Associative Linker pass: where
// AssociativeLinker connects nodes by embedding-vector similarity, this
// module connects nodes that share an unusual number of neighbors in the
// graph itself — two Messages that both got linked to the same three
// Summaries probably belong to the same thread even if their own text
// reads differently.
//
// It keeps an in-memory adjacency snapshot (pkg/linkpredict.Graph) rebuilt
// on a timer rather than per event: rebuilding the whole graph on every
// edge write would make the Associative Linker's own edge creation
// recursively expensive.
type TopologicalLinker struct {
	engine storage.Engine
	log    zerolog.Logger

	refreshEvery time.Duration

	mu    sync.RWMutex
	graph linkpredict.Graph

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTopologicalLinker builds a TopologicalLinker and starts its background
// refresh loop. refreshEvery <= 0 uses topologyRefreshDefault.
func NewTopologicalLinker(engine storage.Engine, refreshEvery time.Duration, log zerolog.Logger) *TopologicalLinker {
	if refreshEvery <= 0 {
		refreshEvery = topologyRefreshDefault
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &TopologicalLinker{
		engine:       engine,
		log:          log.With().Str("module", "topological_linker").Logger(),
		refreshEvery: refreshEvery,
		ctx:          ctx,
		cancel:       cancel,
	}

	t.wg.Add(1)
	go t.refreshLoop()
	return t
}

func (t *TopologicalLinker) Name() string { return "topological_linker" }

// Interested fires after AssociativeLinker creates a semantic-similarity
// edge: topology is only a meaningful signal once the vector-space pass
// has had a chance to establish the graph's initial shape for this node.
func (t *TopologicalLinker) Interested(kind EventKind, nodeKind model.Kind) bool {
	return kind == EventEdgeCreated
}

func (t *TopologicalLinker) refreshLoop() {
	defer t.wg.Done()
	t.refresh()

	ticker := time.NewTicker(t.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *TopologicalLinker) refresh() {
	graph, err := linkpredict.BuildGraphFromEngine(t.ctx, t.engine, true)
	if err != nil {
		t.log.Warn().Err(err).Msg("failed to rebuild topology graph")
		return
	}
	t.mu.Lock()
	t.graph = graph
	t.mu.Unlock()
}

func (t *TopologicalLinker) Handle(ctx context.Context, ev Event) error {
	if ev.EdgeType != model.EdgeIsSemanticallySimilar {
		return nil
	}

	t.mu.RLock()
	graph := t.graph
	t.mu.RUnlock()
	if graph == nil {
		return nil
	}

	predictions := linkpredict.CommonNeighbors(graph, ev.StartNode, topologyTopK)

	created := 0
	for _, p := range predictions {
		if created >= topologyMaxNewEdges {
			break
		}
		// CommonNeighbors reports 1 - 1/(1+n/2); recover the count n.
		count := math.Round(2 * p.Score / (1 - p.Score))
		if count < topologyMinScore {
			continue
		}

		edge := &model.Edge{
			ID:            model.EdgeID("edge_" + uuid.NewString()),
			StartNode:     ev.StartNode,
			EndNode:       p.TargetID,
			Type:          model.EdgeCoOccursWith,
			CreatedAt:     time.Now(),
			Confidence:    normalizeCommonNeighborsScore(count),
			AutoGenerated: true,
		}
		edge.Properties = map[string]any{"common_neighbors": count}
		if err := t.engine.CreateEdge(edge); err != nil {
			t.log.Warn().Err(err).Str("target", string(p.TargetID)).Msg("failed to create topological edge")
			continue
		}
		created++
	}
	return nil
}

// normalizeCommonNeighborsScore squashes an unbounded common-neighbor count
// into the same [0,1] confidence range every other edge type records,
// saturating rather than clipping so a handful of shared neighbors already
// reads as a strong signal.
func normalizeCommonNeighborsScore(score float64) float64 {
	return score / (score + topologyTopK)
}

// Close stops the background refresh loop.
func (t *TopologicalLinker) Close() {
	t.cancel()
	t.wg.Wait()
}
