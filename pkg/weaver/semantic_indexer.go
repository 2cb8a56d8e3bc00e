package weaver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/embed"
	"github.com/tabagent/tabagent/pkg/indexmgr"
	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/record"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/tiers"
)

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 50
	embedMaxRetries     = 3
)

// TextCache is the slice of pkg/cache.QueryCache's API the indexer needs to
// publish a node's hot-path record after embedding it. The Associative
// Linker does not read this cache; it loads nodes and embeddings from
// storage.
type TextCache interface {
	Put(key uint64, value interface{})
}

// nodeRefEngine is the zero-copy read path storage.BadgerEngine exposes
// beyond storage.Engine: a lease-guarded view over a node's archived
// hot-path fields backed by a live pooled read transaction, rather than a
// decode of the already-deserialized *model.Node this indexer just wrote.
type nodeRefEngine interface {
	GetNodeRef(id model.NodeID) (*record.Lease, error)
}

// SemanticIndexer embeds newly written or updated content-bearing nodes and
// hands the vector to the Index Manager. It is the event-driven replacement
// for a periodic full-table scan: Handle only ever sees nodes the bus
// already knows changed.
type SemanticIndexer struct {
	engine   storage.Engine
	refs     nodeRefEngine
	embedder embed.Embedder
	indexes  *indexmgr.Manager
	tiers    *tiers.Coordinator
	cache    TextCache
	log      zerolog.Logger
}

// NewSemanticIndexer builds a SemanticIndexer. cache may be nil, in which
// case hot-path records are simply not published.
func NewSemanticIndexer(engine storage.Engine, embedder embed.Embedder, indexes *indexmgr.Manager, coord *tiers.Coordinator, cache TextCache, log zerolog.Logger) *SemanticIndexer {
	refs, _ := engine.(nodeRefEngine)
	return &SemanticIndexer{
		engine:   engine,
		refs:     refs,
		embedder: embedder,
		indexes:  indexes,
		tiers:    coord,
		cache:    cache,
		log:      log.With().Str("module", "semantic_indexer").Logger(),
	}
}

func (s *SemanticIndexer) Name() string { return "semantic_indexer" }

func (s *SemanticIndexer) Interested(kind EventKind, nodeKind model.Kind) bool {
	if kind != EventNodeCreated && kind != EventNodeUpdated {
		return false
	}
	switch nodeKind {
	case model.KindMessage, model.KindSummary, model.KindScrapedPage, model.KindAudioTranscript, model.KindBookmark:
		return true
	default:
		return false
	}
}

func (s *SemanticIndexer) Handle(ctx context.Context, ev Event) error {
	node, err := s.engine.GetNode(ev.NodeID)
	if err != nil {
		return fmt.Errorf("loading node for embedding: %w", err)
	}

	text := contentText(node)
	if text == "" {
		return nil
	}

	chunks := chunkText(text, defaultChunkSize, defaultChunkOverlap)
	vector, err := s.embedWithRetry(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding node %s: %w", node.ID, err)
	}

	embeddingID := "emb_" + string(node.ID)
	key := domainTierFor(node, s.tiers)

	if err := s.indexes.IndexEmbeddingAndNode(ctx, key, node, embeddingID, vector, s.embedder.Model()); err != nil {
		return fmt.Errorf("indexing embedding: %w", err)
	}

	s.publishHotRecord(node.ID)
	return nil
}

// publishHotRecord reads node's just-written archived record back through
// the zero-copy read path (rather than re-encoding the in-memory *model.Node
// this Handle call already holds) so the cached view is provably the same
// bytes a concurrent reader would see on the hot path, not a second,
// possibly-diverging encoding of the same fields.
func (s *SemanticIndexer) publishHotRecord(id model.NodeID) {
	if s.cache == nil || s.refs == nil {
		return
	}
	lease, err := s.refs.GetNodeRef(id)
	if err != nil {
		s.log.Warn().Err(err).Str("node_id", string(id)).Msg("failed to open archived record for hot-path cache")
		return
	}
	defer lease.Release()

	rec, err := lease.Get()
	if err != nil {
		s.log.Warn().Err(err).Str("node_id", string(id)).Msg("archived record lease already released")
		return
	}

	// The lease borrows from a pooled read transaction's buffer and must not
	// outlive Release above, so re-encode an owned copy before handing it to
	// the cache.
	owned := record.Encode(rec.ID(), rec.Kind(), rec.EmbeddingID(), rec.Text(), rec.CreatedAtUnixNano())
	archived, err := record.Open(owned)
	if err != nil {
		s.log.Warn().Err(err).Str("node_id", string(id)).Msg("failed to open owned copy of archived record")
		return
	}
	s.cache.Put(cacheKey(id), archived)
}

func (s *SemanticIndexer) embedWithRetry(ctx context.Context, chunks []string) ([]float32, error) {
	var embeddings [][]float32
	var err error

	for attempt := 1; attempt <= embedMaxRetries; attempt++ {
		embeddings, err = s.embedder.EmbedBatch(ctx, chunks)
		if err == nil {
			break
		}
		if attempt == embedMaxRetries {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}

	if len(embeddings) == 1 {
		return embeddings[0], nil
	}
	return averageEmbeddings(embeddings), nil
}
