// Package model defines the closed set of entity kinds TabAgent stores, plus
// the Edge and Embedding types that connect and augment them.
package model

import (
	"strings"
	"time"

	"github.com/tabagent/tabagent/pkg/convert"
)

// NodeID is a strongly-typed unique identifier for a node.
type NodeID string

// EdgeID is a strongly-typed unique identifier for an edge.
type EdgeID string

// Kind tags a Node with one of the closed set of entity variants. The set is
// closed: callers route on Kind explicitly (a type switch or Kind-keyed
// dispatch table), never by probing Properties for a "type" field.
type Kind string

const (
	KindChat           Kind = "Chat"
	KindMessage        Kind = "Message"
	KindSummary        Kind = "Summary"
	KindEntity         Kind = "Entity"
	KindActionOutcome  Kind = "ActionOutcome"
	KindWebSearch      Kind = "WebSearch"
	KindScrapedPage    Kind = "ScrapedPage"
	KindAudioTranscript Kind = "AudioTranscript"
	KindBookmark       Kind = "Bookmark"
)

// Node is a single stored entity. Fields shared by every Kind live at the top
// level; kind-specific data lives in Properties, addressed through the
// typed accessor structs below (ChatFields, MessageFields, ...).
//
// This mirrors the teacher's labeled-property-graph Node: a small set of
// system fields plus an open properties bag, except Labels collapses to a
// single closed Kind tag instead of an arbitrary label set.
type Node struct {
	ID         NodeID
	Kind       Kind
	Properties map[string]any

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64

	// EmbeddingID references an Embedding row when this node has one.
	// Empty for kinds that are never embedded directly (ActionOutcome).
	EmbeddingID string
}

// Prop reads a typed property, returning the zero value when absent or
// unconvertible. A Node round-tripped through JSON (every on-disk record)
// decodes its Properties map with numbers as float64 and arrays as
// []interface{}, never as the concrete []string/[]float32/int64 a fresh,
// never-persisted Node was built with — so a plain type assertion would
// silently return the zero value for anything but strings, bools, and
// float64 scalars. coerce papers over that gap for the shapes the
// accessor structs below actually use.
func Prop[T any](n *Node, key string) T {
	var zero T
	if n.Properties == nil {
		return zero
	}
	v, ok := n.Properties[key]
	if !ok {
		return zero
	}
	if t, ok := v.(T); ok {
		return t
	}
	return coerce(v, zero)
}

// coerce converts v to T for the handful of shapes JSON round-tripping
// disturbs. Anything not listed here falls back to the zero value, same
// as the failed assertion in Prop.
func coerce[T any](v any, zero T) T {
	switch any(zero).(type) {
	case []string:
		if s := convert.ToStringSlice(v); s != nil {
			if out, ok := any(s).(T); ok {
				return out
			}
		}
	case []float32:
		if s := convert.ToFloat32Slice(v); s != nil {
			if out, ok := any(s).(T); ok {
				return out
			}
		}
	case []float64:
		if s, ok := convert.ToFloat64Slice(v); ok {
			if out, ok := any(s).(T); ok {
				return out
			}
		}
	case int64:
		if i, ok := convert.ToInt64(v); ok {
			if out, ok := any(i).(T); ok {
				return out
			}
		}
	case int:
		if i, ok := convert.ToInt64(v); ok {
			if out, ok := any(int(i)).(T); ok {
				return out
			}
		}
	case float64:
		if f, ok := convert.ToFloat64(v); ok {
			if out, ok := any(f).(T); ok {
				return out
			}
		}
	}
	return zero
}

// SetProp writes a property, allocating the map on first use.
func (n *Node) SetProp(key string, value any) {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = value
}

// ArchivableText extracts the text a node's Kind makes embeddable, routing
// on Kind explicitly rather than probing Properties for a generic content
// field. This is the single source of truth both the Weaver's embedding
// path and the Storage Manager's zero-copy archived-record codec (pkg/record)
// use to decide what hot-path text a node carries, so the two never drift
// out of sync on what "the text of a node" means.
func (n *Node) ArchivableText() string {
	switch n.Kind {
	case KindMessage:
		return n.Message().Text
	case KindSummary:
		return n.Summary().Text
	case KindScrapedPage:
		f := n.ScrapedPage()
		if f.Title != "" && f.Content != "" {
			return f.Title + "\n\n" + f.Content
		}
		if f.Title != "" {
			return f.Title
		}
		return f.Content
	case KindAudioTranscript:
		return n.AudioTranscript().Text
	case KindBookmark:
		f := n.Bookmark()
		parts := make([]string, 0, 2)
		if f.Title != "" {
			parts = append(parts, f.Title)
		}
		if f.Note != "" {
			parts = append(parts, f.Note)
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// ChatFields is the typed view over a KindChat node's Properties.
type ChatFields struct {
	Title       string
	Topic       string
	MessageIDs  []string
	SummaryIDs  []string
}

func (n *Node) Chat() ChatFields {
	return ChatFields{
		Title:      Prop[string](n, "title"),
		Topic:      Prop[string](n, "topic"),
		MessageIDs: Prop[[]string](n, "message_ids"),
		SummaryIDs: Prop[[]string](n, "summary_ids"),
	}
}

// MessageFields is the typed view over a KindMessage node's Properties.
type MessageFields struct {
	ChatID string
	Role   string
	Text   string
	Index  int
}

func (n *Node) Message() MessageFields {
	return MessageFields{
		ChatID: Prop[string](n, "chat_id"),
		Role:   Prop[string](n, "role"),
		Text:   Prop[string](n, "text"),
		Index:  Prop[int](n, "index"),
	}
}

// SummaryScope names the temporal scope a Summary condenses.
type SummaryScope string

const (
	ScopeSession SummaryScope = "session"
	ScopeDaily   SummaryScope = "daily"
	ScopeWeekly  SummaryScope = "weekly"
	ScopeMonthly SummaryScope = "monthly"
	ScopeQuarterly SummaryScope = "quarterly"
)

// SummaryFields is the typed view over a KindSummary node's Properties.
type SummaryFields struct {
	ChatID string
	Scope  SummaryScope
	Text   string
}

func (n *Node) Summary() SummaryFields {
	return SummaryFields{
		ChatID: Prop[string](n, "chat_id"),
		Scope:  SummaryScope(Prop[string](n, "scope")),
		Text:   Prop[string](n, "text"),
	}
}

// EntityTier is the Knowledge-domain temperature tier an Entity occupies.
type EntityTier string

const (
	EntityActive   EntityTier = "active"
	EntityStable   EntityTier = "stable"
	EntityInferred EntityTier = "inferred"
)

// EntityFields is the typed view over a KindEntity node's Properties.
type EntityFields struct {
	Name         string
	EntityType   string
	MentionCount int
	Tier         EntityTier
}

func (n *Node) Entity() EntityFields {
	return EntityFields{
		Name:         Prop[string](n, "name"),
		EntityType:   Prop[string](n, "entity_type"),
		MentionCount: Prop[int](n, "mention_count"),
		Tier:         EntityTier(Prop[string](n, "tier")),
	}
}

// ActionOutcomeFields is the typed view over a KindActionOutcome node.
type ActionOutcomeFields struct {
	ToolName string
	Success  bool
	Summary  string
}

func (n *Node) ActionOutcome() ActionOutcomeFields {
	return ActionOutcomeFields{
		ToolName: Prop[string](n, "tool_name"),
		Success:  Prop[bool](n, "success"),
		Summary:  Prop[string](n, "summary"),
	}
}

// WebSearchFields is the typed view over a KindWebSearch node.
type WebSearchFields struct {
	Query       string
	ResultCount int
}

func (n *Node) WebSearch() WebSearchFields {
	return WebSearchFields{
		Query:       Prop[string](n, "query"),
		ResultCount: Prop[int](n, "result_count"),
	}
}

// ScrapedPageFields is the typed view over a KindScrapedPage node.
type ScrapedPageFields struct {
	URL     string
	Title   string
	Content string
}

func (n *Node) ScrapedPage() ScrapedPageFields {
	return ScrapedPageFields{
		URL:     Prop[string](n, "url"),
		Title:   Prop[string](n, "title"),
		Content: Prop[string](n, "content"),
	}
}

// AudioTranscriptFields is the typed view over a KindAudioTranscript node.
type AudioTranscriptFields struct {
	Text     string
	Duration float64
}

func (n *Node) AudioTranscript() AudioTranscriptFields {
	return AudioTranscriptFields{
		Text:     Prop[string](n, "text"),
		Duration: Prop[float64](n, "duration_seconds"),
	}
}

// BookmarkFields is the typed view over a KindBookmark node.
type BookmarkFields struct {
	URL   string
	Title string
	Note  string
}

func (n *Node) Bookmark() BookmarkFields {
	return BookmarkFields{
		URL:   Prop[string](n, "url"),
		Title: Prop[string](n, "title"),
		Note:  Prop[string](n, "note"),
	}
}
