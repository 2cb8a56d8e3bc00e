// Package tiers implements the Temperature Tiers and Database Coordinator:
// the policy layer deciding which on-disk tier (active/recent/archive,
// active/stable/inferred, ...) a node belongs in, and routing reads and
// writes to the right one.
//
// Tiers are opened lazily — a fresh install never pays the cost of
// touching a tier it has no data for yet.
package tiers

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/decay"
	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/temporal"
)

// Domain names the six top-level memory domains, each with its own tier set.
type Domain string

const (
	DomainConversations Domain = "conversations"
	DomainKnowledge     Domain = "knowledge"
	DomainEmbeddings    Domain = "embeddings"
	DomainSummaries     Domain = "summaries"
	DomainExperience    Domain = "experience"
	DomainToolResults    Domain = "tool_results"
)

// Conversations domain tiers.
const (
	TierActive  = "active"
	TierRecent  = "recent"
	TierArchive = "archive"
)

// EntityPromotionThreshold is the mention count at which a Knowledge entity
// is promoted from inferred to stable, per spec.md's literal rule.
const EntityPromotionThreshold = 10

// ErrNoRegistry is returned by TierEngine when the Coordinator was built
// with New rather than NewWithRegistry and has no per-tier databases to
// hand out.
var ErrNoRegistry = fmt.Errorf("tiers: coordinator has no storage registry")

// Coordinator decides tier placement and tracks access patterns that feed
// that decision. One Coordinator is shared across all domains; each domain's
// policy method is independent so adding a seventh domain never touches the
// others.
//
// registry, when non-nil, is the Database Coordinator half of this type:
// KnowledgeTier's recommendation becomes an actual row move between two
// on-disk sub-databases via PromoteEntity, rather than a property rewritten
// in place on a row that never leaves its tier's database. A Coordinator
// built with plain New has no registry and callers are expected to persist
// the new tier value themselves (the historical behavior, still correct for
// a deployment that doesn't need physically separate tier databases).
type Coordinator struct {
	decay    *decay.Manager
	tracker  *temporal.Tracker
	registry *storage.Registry

	mu               sync.Mutex
	sessionIdleAfter time.Duration
}

// Config holds the tunables SPEC_FULL.md's ambient-stack section exposes
// through the environment, plus decay/tracker sub-configs.
type Config struct {
	Decay            *decay.Config
	Tracker          temporal.Config
	SessionIdleAfter time.Duration
}

// DefaultConfig returns the defaults used when the environment doesn't
// override them.
func DefaultConfig() Config {
	return Config{
		Decay:            decay.DefaultConfig(),
		Tracker:          temporal.DefaultConfig(),
		SessionIdleAfter: 30 * time.Minute,
	}
}

// New builds a Coordinator with no Database Coordinator wiring: tier
// decisions are advisory only, and the caller is responsible for persisting
// a node's new tier value itself (e.g. by writing a "tier" property in
// place, the historical behavior before PromoteEntity existed).
func New(cfg Config, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		decay:            decay.New(cfg.Decay),
		tracker:          temporal.NewTracker(cfg.Tracker),
		sessionIdleAfter: cfg.SessionIdleAfter,
	}
}

// NewWithRegistry builds a Coordinator backed by registry, enabling
// PromoteEntity to move an Entity's row between its domain's physically
// separate per-tier databases instead of only recommending a tier name.
func NewWithRegistry(cfg Config, registry *storage.Registry, log zerolog.Logger) *Coordinator {
	c := New(cfg, log)
	c.registry = registry
	return c
}

// RecordAccess notes that nodeID was just read or written, feeding both the
// access tracker (session-boundary detection) and, indirectly, future decay
// score recalculation.
func (c *Coordinator) RecordAccess(nodeID model.NodeID) {
	c.tracker.RecordAccess(string(nodeID))
}

// SessionBoundaryCrossed reports whether the access just recorded for
// chatID followed a gap long enough to count as a new session, the signal
// spec.md leaves unspecified for resetting ChatUpdated.messages_since_summary
// and delimiting a Summary.scope=session boundary.
func (c *Coordinator) SessionBoundaryCrossed(chatID model.NodeID) bool {
	return c.tracker.IsSessionBoundary(string(chatID))
}

// ConversationTier places a chat or message node into active, recent, or
// archive based on how long it's been since the chat was last touched.
func (c *Coordinator) ConversationTier(lastAccessed time.Time) string {
	age := time.Since(lastAccessed)
	switch {
	case age < time.Hour:
		return TierActive
	case age < 7*24*time.Hour:
		return TierRecent
	default:
		return TierArchive
	}
}

// KnowledgeTier implements the Knowledge domain's promotion and demotion
// policy: spec.md's literal promotion rule (mention_count >= 10 -> stable)
// plus the decay-informed demotion SPEC_FULL.md adds on top of it (a
// stable entity whose decay score has fallen below the archive threshold
// is eligible to fall back to inferred).
func (c *Coordinator) KnowledgeTier(entity model.EntityFields, lastAccessed time.Time, accessCount int64) model.EntityTier {
	info := &decay.MemoryInfo{
		Tier:         decay.TierSemantic,
		LastAccessed: lastAccessed,
		AccessCount:  accessCount,
	}
	score := c.decay.CalculateScore(info)

	switch entity.Tier {
	case model.EntityStable:
		if c.decay.ShouldArchive(score) {
			return model.EntityInferred
		}
		return model.EntityStable
	default:
		if entity.MentionCount >= EntityPromotionThreshold {
			return model.EntityStable
		}
		return model.EntityInferred
	}
}

// TierEngine returns the BadgerEngine backing domain's tier, lazily opening
// it through the Registry on first use. Returns ErrNoRegistry if this
// Coordinator was built with plain New.
func (c *Coordinator) TierEngine(domain Domain, tier string) (*storage.BadgerEngine, error) {
	if c.registry == nil {
		return nil, ErrNoRegistry
	}
	return c.registry.Get(string(domain), tier)
}

// PromoteEntity is the Knowledge domain's promotion API: it moves entity's
// row out of fromTier's database and into toTier's, re-registering its
// Structural Index entry against the destination. fromTier and toTier name
// model.EntityTier values ("active", "stable", "inferred"). If this
// Coordinator has no registry, PromoteEntity is a no-op and the caller
// should fall back to updating entity's "tier" property in place.
//
// The move is ordered destination-write-then-source-delete: if the process
// crashes between the two, the entity is live in both databases rather than
// neither, and a reconciliation pass (or the next promotion attempt, which
// overwrites the destination row idempotently) resolves the duplicate. This
// mirrors the KV Engine's own "never silently lose a committed write" bias
// over "never briefly double-write."
func (c *Coordinator) PromoteEntity(entity *model.Node, fromTier, toTier string, entityNameProperty string) error {
	if c.registry == nil || fromTier == toTier {
		return nil
	}

	dst, err := c.registry.Get(string(DomainKnowledge), toTier)
	if err != nil {
		return fmt.Errorf("opening destination tier %s: %w", toTier, err)
	}
	src, err := c.registry.Get(string(DomainKnowledge), fromTier)
	if err != nil {
		return fmt.Errorf("opening source tier %s: %w", fromTier, err)
	}

	if err := dst.CreateNode(entity); err == storage.ErrAlreadyExists {
		if err := dst.UpdateNode(entity); err != nil {
			return fmt.Errorf("updating already-promoted entity in %s: %w", toTier, err)
		}
	} else if err != nil {
		return fmt.Errorf("writing promoted entity to %s: %w", toTier, err)
	}
	name := entity.Entity().Name
	if name != "" {
		if err := dst.IndexProperty(entity.ID, entityNameProperty, name); err != nil {
			return fmt.Errorf("indexing promoted entity in %s: %w", toTier, err)
		}
	}

	if err := src.DeleteNode(entity.ID); err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("removing promoted entity from %s: %w", fromTier, err)
	}
	return nil
}

// SummaryTier maps a Summary's scope to its storage tier name. Session and
// daily summaries share the same tier as the chat they summarize; weekly
// and above roll up across chats and get their own tier so a
// quarterly-summary scan never has to skip over thousands of session rows.
func SummaryTier(scope model.SummaryScope) string {
	switch scope {
	case model.ScopeSession, model.ScopeDaily:
		return "recent"
	case model.ScopeWeekly, model.ScopeMonthly, model.ScopeQuarterly:
		return "rollup"
	default:
		return "recent"
	}
}

// EmbeddingsTier places an embedding row in active or archive based on
// whether its owning node is still in an active/recent conversation tier.
func EmbeddingsTier(ownerTier string) string {
	if ownerTier == TierArchive {
		return "archive"
	}
	return "active"
}
