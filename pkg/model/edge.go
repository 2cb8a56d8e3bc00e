package model

import "time"

// Edge types the Weaver enrichment pipeline and external writers are allowed
// to create. Kept as string constants (not a closed Go type) because index
// and query code matches on the string value, same as the teacher's edge
// Type field.
const (
	EdgeMentions              = "MENTIONS"
	EdgeIsSemanticallySimilar = "IS_SEMANTICALLY_SIMILAR_TO"
	EdgeCoOccursWith          = "CO_OCCURS_WITH"
	EdgeSummarizes            = "SUMMARIZES"
	EdgeReplyTo               = "REPLY_TO"
)

// Edge is a directed relationship between two nodes.
type Edge struct {
	ID        EdgeID
	StartNode NodeID
	EndNode   NodeID
	Type      string
	Properties map[string]any

	CreatedAt     time.Time
	Confidence    float64
	AutoGenerated bool
}

// Embedding is a fixed-dimension vector attached to exactly one node.
// Stored separately from Node so that the Vector Index can iterate the
// embeddings sub-DB without touching node payloads, and so the zero-copy
// archived record for an embedding carries none of a node's variable-length
// property bag.
type Embedding struct {
	ID     string
	NodeID NodeID
	Vector []float32
	Model  string

	CreatedAt time.Time
}
