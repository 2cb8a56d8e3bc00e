// Package storage implements the KV Engine, Storage Registry, Structural
// Index, and Graph Index: the on-disk foundation TabAgent's domain packages
// (tiers, weaver, vectorindex) are built on top of.
//
// Design principles carried over from the engine this package started
// from: testability through dependency injection, thread-safe
// implementations, and a single-writer/multi-reader transaction model.
package storage

import (
	"context"
	"errors"

	"github.com/tabagent/tabagent/pkg/model"
)

// Engine error taxonomy. These map onto spec.md's Storage error family.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrInvalidEdge   = errors.New("invalid edge: start or end node not found")
	ErrStorageClosed = errors.New("storage closed")
	ErrMapFull       = errors.New("map full: resize required")
	ErrWriterBusy    = errors.New("writer busy: only one write transaction may be open at a time")
)

type (
	Node      = model.Node
	Edge      = model.Edge
	Embedding = model.Embedding
	NodeID    = model.NodeID
	EdgeID    = model.EdgeID
)

// Engine is the Storage Manager contract: CRUD plus the index-maintenance
// hooks needed by the Structural, Graph, and Vector indexes. Every method is
// safe for concurrent use by multiple readers; writers are serialized by the
// implementation (see BeginWrite in txn.go for the write-transaction
// admission rule).
type Engine interface {
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	UpdateNode(node *Node) error
	DeleteNode(id NodeID) error

	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	DeleteEdge(id EdgeID) error

	PutEmbedding(e *Embedding) error
	GetEmbedding(id string) (*Embedding, error)
	DeleteEmbedding(id string) error

	NodesByKind(kind model.Kind) ([]*Node, error)
	OutgoingEdges(nodeID NodeID) ([]*Edge, error)
	IncomingEdges(nodeID NodeID) ([]*Edge, error)

	InDegree(nodeID NodeID) int
	OutDegree(nodeID NodeID) int

	BulkCreateNodes(nodes []*Node) error
	BulkCreateEdges(edges []*Edge) error

	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	Close() error
}

// StreamingEngine extends Engine with streaming iteration, used by the
// Vector Index's crash-recovery rebuild (scan the embeddings sub-DB without
// loading it all into memory) and by Weaver's one-off backfill jobs.
type StreamingEngine interface {
	Engine

	StreamNodes(ctx context.Context, fn func(node *Node) error) error
	StreamEmbeddings(ctx context.Context, fn func(e *Embedding) error) error
}

// NodeVisitor is called for each node during streaming.
type NodeVisitor func(node *Node) error

// StreamNodesWithFallback streams via StreamingEngine when available,
// otherwise falls back to a full load processed in chunks so callers don't
// need two code paths.
func StreamNodesWithFallback(ctx context.Context, engine Engine, fn NodeVisitor) error {
	if streamer, ok := engine.(StreamingEngine); ok {
		return streamer.StreamNodes(ctx, fn)
	}

	for _, kind := range []model.Kind{
		model.KindChat, model.KindMessage, model.KindSummary, model.KindEntity,
		model.KindActionOutcome, model.KindWebSearch, model.KindScrapedPage,
		model.KindAudioTranscript, model.KindBookmark,
	} {
		nodes, err := engine.NodesByKind(kind)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := fn(n); err != nil {
				return err
			}
		}
	}
	return nil
}
