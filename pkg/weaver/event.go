// Package weaver implements the event bus and the stateless enrichment
// modules that react to it: Semantic Indexer, Entity Linker, Associative
// Linker (plus a topological bonus pass over the graph), and Summarizer.
//
// The bus is grounded on the embedding worker it replaces: a trigger-driven
// pull loop with a bounded backlog and retry/backoff, generalized from "one
// hardcoded embedding job" into a dispatch table keyed by (event kind, node
// kind) so a fifth module never has to touch the other four.
package weaver

import "github.com/tabagent/tabagent/pkg/model"

// EventKind is the closed set of write-path occurrences the bus carries.
type EventKind string

const (
	EventNodeCreated        EventKind = "node_created"
	EventNodeUpdated        EventKind = "node_updated"
	EventEdgeCreated        EventKind = "edge_created"
	EventChatUpdated        EventKind = "chat_updated"
	EventBatchMessagesAdded EventKind = "batch_messages_added"
)

// allEventKinds enumerates EventKind for building a Bus's dispatch table.
var allEventKinds = []EventKind{
	EventNodeCreated, EventNodeUpdated, EventEdgeCreated,
	EventChatUpdated, EventBatchMessagesAdded,
}

// allNodeKinds enumerates model.Kind for the same purpose.
var allNodeKinds = []model.Kind{
	model.KindChat, model.KindMessage, model.KindSummary, model.KindEntity,
	model.KindActionOutcome, model.KindWebSearch, model.KindScrapedPage,
	model.KindAudioTranscript, model.KindBookmark,
}

// Event is a single write-path occurrence. Not every field is populated for
// every Kind: EdgeID is only set for EventEdgeCreated, MessageIDs only for
// EventBatchMessagesAdded, and so on.
type Event struct {
	Kind EventKind

	NodeID   model.NodeID
	NodeKind model.Kind

	EdgeID    model.EdgeID
	EdgeType  string
	StartNode model.NodeID
	EndNode   model.NodeID

	ChatID               model.NodeID
	MessageIDs           []model.NodeID
	MessagesSinceSummary int
	SessionBoundary      bool
}
