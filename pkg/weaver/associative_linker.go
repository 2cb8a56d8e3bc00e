package weaver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/indexmgr"
	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/tiers"
)

// Associative Linker parameters, carried over unchanged from the original
// implementation this module's behavior is grounded on.
const (
	associativeSimilarityThreshold = 0.85
	associativeSearchK             = 6
	associativeMaxNewEdges         = 3
)

// associativeLinkableKinds is the closed set of node kinds the Associative
// Linker is allowed to connect. Entity and attachment-like kinds are
// excluded: their similarity structure is owned by the Entity Linker and
// the Knowledge domain's own tiering, not free-floating semantic edges.
var associativeLinkableKinds = map[model.Kind]bool{
	model.KindMessage:     true,
	model.KindSummary:     true,
	model.KindScrapedPage: true,
}

// AssociativeLinker connects a newly embedded node to its nearest
// semantic neighbors. It must run after SemanticIndexer has populated the
// node's EmbeddingID for the same event — the Bus guarantees this as long
// as SemanticIndexer is registered before AssociativeLinker in the list
// passed to weaver.New.
type AssociativeLinker struct {
	engine  storage.Engine
	indexes *indexmgr.Manager
	coord   *tiers.Coordinator
	log     zerolog.Logger

	// onEdgeCreated, when set, is called after each new edge so the
	// TopologicalLinker (subscribed to EventEdgeCreated on the same Bus)
	// finds out about it. Set via SetOnEdgeCreated once the Bus exists,
	// the same deferred-wiring pattern the embedding worker this package
	// is modeled on uses for its own onEmbedded callback.
	onEdgeCreated func(Event)
}

func NewAssociativeLinker(engine storage.Engine, indexes *indexmgr.Manager, coord *tiers.Coordinator, log zerolog.Logger) *AssociativeLinker {
	return &AssociativeLinker{
		engine:  engine,
		indexes: indexes,
		coord:   coord,
		log:     log.With().Str("module", "associative_linker").Logger(),
	}
}

// SetOnEdgeCreated registers a callback invoked after every edge this
// module creates.
func (a *AssociativeLinker) SetOnEdgeCreated(fn func(Event)) {
	a.onEdgeCreated = fn
}

func (a *AssociativeLinker) Name() string { return "associative_linker" }

func (a *AssociativeLinker) Interested(kind EventKind, nodeKind model.Kind) bool {
	if kind != EventNodeCreated && kind != EventNodeUpdated {
		return false
	}
	return associativeLinkableKinds[nodeKind]
}

func (a *AssociativeLinker) Handle(ctx context.Context, ev Event) error {
	node, err := a.engine.GetNode(ev.NodeID)
	if err != nil {
		return fmt.Errorf("loading node for associative linking: %w", err)
	}
	if node.EmbeddingID == "" {
		return nil // not embedded yet, nothing to link on
	}

	emb, err := a.engine.GetEmbedding(node.EmbeddingID)
	if err != nil {
		return fmt.Errorf("loading embedding %s: %w", node.EmbeddingID, err)
	}

	key := domainTierFor(node, a.coord)
	// Request one extra neighbor than needed: the node's own vector is
	// always its own nearest match and gets filtered out below.
	results, err := a.indexes.Search(ctx, key, emb.Vector, associativeSearchK+1, associativeSimilarityThreshold)
	if err != nil {
		return fmt.Errorf("searching vector index: %w", err)
	}

	created := 0
	for _, r := range results {
		if created >= associativeMaxNewEdges {
			break
		}
		if r.ID == node.EmbeddingID {
			continue
		}

		neighbor, err := a.engine.GetEmbedding(r.ID)
		if err != nil {
			a.log.Warn().Err(err).Str("embedding_id", r.ID).Msg("neighbor embedding vanished mid-link")
			continue
		}
		if !associativeLinkableKinds[a.kindOf(neighbor.NodeID)] {
			continue
		}

		edge := &model.Edge{
			ID:            model.EdgeID("edge_" + uuid.NewString()),
			StartNode:     node.ID,
			EndNode:       neighbor.NodeID,
			Type:          model.EdgeIsSemanticallySimilar,
			CreatedAt:     time.Now(),
			Confidence:    r.Score,
			AutoGenerated: true,
		}
		edge.Properties = map[string]any{"similarity": r.Score}
		if err := a.engine.CreateEdge(edge); err != nil {
			a.log.Warn().Err(err).Str("neighbor", string(neighbor.NodeID)).Msg("failed to create associative edge")
			continue
		}
		created++

		if a.onEdgeCreated != nil {
			a.onEdgeCreated(Event{
				Kind:      EventEdgeCreated,
				NodeKind:  node.Kind,
				EdgeID:    edge.ID,
				EdgeType:  edge.Type,
				StartNode: edge.StartNode,
				EndNode:   edge.EndNode,
			})
		}
	}

	return nil
}

func (a *AssociativeLinker) kindOf(id model.NodeID) model.Kind {
	n, err := a.engine.GetNode(id)
	if err != nil {
		return ""
	}
	return n.Kind
}
