package weaver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/coregx/ahocorasick"
	"github.com/google/uuid"
	"github.com/orsinium-labs/stopwords"
	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/tiers"
)

// capitalizedRun is the coarse candidate-entity heuristic this module runs
// before anything is promoted: runs of one to four capitalized words, e.g.
// "New York", "Aho Corasick", a bare "Kubernetes".
var capitalizedRun = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*){0,3})\b`)

// entityIndexProperty is the Structural Index key every Entity's canonical
// name is registered under.
const entityIndexProperty = "entity_name"

// structuralIndexer is the Structural Index slice of storage.BadgerEngine's
// API EntityLinker needs beyond storage.Engine, which deliberately keeps
// property indexing out of its interface (most Engine callers never touch
// it directly; the Index Manager is the usual caller). Used only as a
// fallback when the engine doesn't also satisfy transactor.
type structuralIndexer interface {
	IndexProperty(nodeID model.NodeID, propKey, value string) error
}

// transactor is the slice of storage.BadgerEngine's API that lets
// EntityLinker put a node write and its structural-index update in one
// Badger transaction, so a crash between the two never leaves a promoted
// entity indexed without its node row (or vice versa). Declared locally and
// satisfied structurally, the same pattern structuralIndexer above uses.
type transactor interface {
	BeginWrite() (*storage.WriteTxn, error)
}

// EntityLinker extracts entity mentions from newly written content. A
// mention of an already-known entity gets a MENTIONS edge and a
// mention-count bump, feeding the Knowledge domain's tier policy;
// unrecognized capitalized phrases are tracked as candidates and promoted
// to a new inferred Entity once they recur past the promotion threshold.
type EntityLinker struct {
	engine  storage.Engine
	indexer structuralIndexer
	txns    transactor
	tiers   *tiers.Coordinator
	stop    *stopwords.Stopwords
	log     zerolog.Logger

	mu         sync.Mutex
	automaton  *ahocorasick.Automaton
	patterns   []string
	patternIDs map[string]model.NodeID
	candidates map[string]int
}

// NewEntityLinker builds an EntityLinker with an empty known-entity set.
// Call LoadKnownEntities once at startup to seed it from storage.
func NewEntityLinker(engine storage.Engine, coord *tiers.Coordinator, log zerolog.Logger) *EntityLinker {
	indexer, _ := engine.(structuralIndexer)
	txns, _ := engine.(transactor)
	return &EntityLinker{
		engine:     engine,
		indexer:    indexer,
		txns:       txns,
		tiers:      coord,
		stop:       stopwords.MustGet("en"),
		log:        log.With().Str("module", "entity_linker").Logger(),
		patternIDs: make(map[string]model.NodeID),
		candidates: make(map[string]int),
	}
}

func (e *EntityLinker) Name() string { return "entity_linker" }

func (e *EntityLinker) Interested(kind EventKind, nodeKind model.Kind) bool {
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

func (e *EntityLinker) Handle(ctx context.Context, ev Event) error {
	node, err := e.engine.GetNode(ev.NodeID)
	if err != nil {
		return fmt.Errorf("loading node for entity linking: %w", err)
	}
	text := contentText(node)
	if text == "" {
		return nil
	}

	for _, mention := range e.scanKnown(text) {
		if err := e.recordMention(node.ID, mention); err != nil {
			e.log.Warn().Err(err).Str("entity", mention).Msg("failed to record known-entity mention")
		}
	}

	for _, candidate := range capitalizedRun.FindAllString(text, -1) {
		e.trackCandidate(candidate)
	}

	return nil
}

// scanKnown returns the canonical names of every known entity mentioned in
// text, via the Aho-Corasick automaton built from entities already
// registered in the Structural Index.
func (e *EntityLinker) scanKnown(text string) []string {
	e.mu.Lock()
	automaton := e.automaton
	e.mu.Unlock()
	if automaton == nil {
		return nil
	}

	lower := strings.ToLower(text)
	matches := automaton.FindAllOverlapping([]byte(lower))

	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.PatternID < 0 || m.PatternID >= len(e.patterns) {
			continue
		}
		name := e.patterns[m.PatternID]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// recordMention bumps the mention count of the known entity named name,
// links it to sourceID with a MENTIONS edge, and re-evaluates its tier.
func (e *EntityLinker) recordMention(sourceID model.NodeID, name string) error {
	e.mu.Lock()
	entityID, ok := e.patternIDs[name]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	entity, err := e.engine.GetNode(entityID)
	if err != nil {
		return err
	}

	fields := entity.Entity()
	oldTier := fields.Tier
	fields.MentionCount++
	entity.SetProp("mention_count", fields.MentionCount)
	entity.LastAccessed = time.Now()
	entity.AccessCount++

	newTier := e.tiers.KnowledgeTier(fields, entity.LastAccessed, entity.AccessCount)
	entity.SetProp("tier", string(newTier))
	entity.UpdatedAt = time.Now()

	edge := &model.Edge{
		ID:            model.EdgeID("edge_" + uuid.NewString()),
		StartNode:     sourceID,
		EndNode:       entityID,
		Type:          model.EdgeMentions,
		CreatedAt:     time.Now(),
		Confidence:    1.0,
		AutoGenerated: true,
	}

	if e.txns != nil {
		wtxn, err := e.txns.BeginWrite()
		if err != nil {
			return fmt.Errorf("beginning write for mention update: %w", err)
		}
		if err := wtxn.PutNode(entity); err != nil {
			wtxn.Abort()
			return fmt.Errorf("updating entity %s: %w", entity.ID, err)
		}
		if err := wtxn.PutEdge(edge); err != nil {
			wtxn.Abort()
			return fmt.Errorf("creating mentions edge: %w", err)
		}
		if err := wtxn.Commit(); err != nil {
			return fmt.Errorf("committing mention update: %w", err)
		}
	} else {
		if err := e.engine.UpdateNode(entity); err != nil {
			return fmt.Errorf("updating entity %s: %w", entity.ID, err)
		}
		if err := e.engine.CreateEdge(edge); err != nil {
			return fmt.Errorf("creating mentions edge: %w", err)
		}
	}

	if oldTier != newTier {
		if err := e.tiers.PromoteEntity(entity, string(oldTier), string(newTier), entityIndexProperty); err != nil {
			e.log.Warn().Err(err).Str("entity_id", string(entity.ID)).
				Str("from_tier", string(oldTier)).Str("to_tier", string(newTier)).
				Msg("failed to move entity to new tier database")
		}
	}
	return nil
}

// trackCandidate counts an occurrence of an as-yet-unknown capitalized
// phrase and, once it recurs past the Knowledge domain's promotion
// threshold, creates it as a new inferred Entity and registers it with the
// known-entity automaton so future scans recognize it directly.
func (e *EntityLinker) trackCandidate(raw string) {
	canonical := strings.ToLower(strings.TrimSpace(raw))
	if canonical == "" || e.stop.Contains(canonical) {
		return
	}

	e.mu.Lock()
	if _, known := e.patternIDs[canonical]; known {
		e.mu.Unlock()
		return
	}
	e.candidates[canonical]++
	count := e.candidates[canonical]
	e.mu.Unlock()

	if count < tiers.EntityPromotionThreshold {
		return
	}

	now := time.Now()
	entity := &model.Node{
		ID:           model.NodeID("entity_" + uuid.NewString()),
		Kind:         model.KindEntity,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastAccessed: now,
		AccessCount:  int64(count),
	}
	entity.SetProp("name", raw)
	entity.SetProp("entity_type", "inferred")
	entity.SetProp("mention_count", count)
	entity.SetProp("tier", string(model.EntityInferred))

	if e.txns != nil {
		wtxn, err := e.txns.BeginWrite()
		if err != nil {
			e.log.Warn().Err(err).Str("candidate", raw).Msg("failed to begin write for entity promotion")
			return
		}
		if err := wtxn.PutNode(entity); err != nil {
			wtxn.Abort()
			e.log.Warn().Err(err).Str("candidate", raw).Msg("failed to promote entity candidate")
			return
		}
		if err := wtxn.IndexProperty(entity.ID, entityIndexProperty, canonical); err != nil {
			wtxn.Abort()
			e.log.Warn().Err(err).Str("candidate", raw).Msg("failed to index newly promoted entity")
			return
		}
		if err := wtxn.Commit(); err != nil {
			e.log.Warn().Err(err).Str("candidate", raw).Msg("failed to commit entity promotion")
			return
		}
		e.addKnown(canonical, entity.ID)
		return
	}

	if err := e.engine.CreateNode(entity); err != nil {
		e.log.Warn().Err(err).Str("candidate", raw).Msg("failed to promote entity candidate")
		return
	}
	if e.indexer != nil {
		if err := e.indexer.IndexProperty(entity.ID, entityIndexProperty, canonical); err != nil {
			e.log.Warn().Err(err).Str("candidate", raw).Msg("failed to index newly promoted entity")
		}
	}

	e.addKnown(canonical, entity.ID)
}

// addKnown registers name/id as known and rebuilds the matching automaton.
// Promotions are rare next to scans, so rebuilding the whole automaton on
// each one is cheaper than maintaining an incremental structure LeftmostLongest
// matching doesn't support anyway.
func (e *EntityLinker) addKnown(name string, id model.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.candidates, name)
	e.patternIDs[name] = id
	e.patterns = e.patterns[:0]
	for n := range e.patternIDs {
		e.patterns = append(e.patterns, n)
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(e.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to rebuild entity automaton")
		return
	}
	e.automaton = automaton
}

// LoadKnownEntities seeds the automaton from every Entity already in
// storage. Call once at startup so a restart doesn't forget entities it
// already promoted.
func (e *EntityLinker) LoadKnownEntities() error {
	nodes, err := e.engine.NodesByKind(model.KindEntity)
	if err != nil {
		return fmt.Errorf("loading known entities: %w", err)
	}

	e.mu.Lock()
	for _, n := range nodes {
		name := strings.ToLower(strings.TrimSpace(n.Entity().Name))
		if name == "" {
			continue
		}
		e.patternIDs[name] = n.ID
	}
	names := make([]string, 0, len(e.patternIDs))
	for n := range e.patternIDs {
		names = append(names, n)
	}
	e.patterns = names
	e.mu.Unlock()

	if len(names) == 0 {
		return nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(names).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return fmt.Errorf("building entity automaton: %w", err)
	}

	e.mu.Lock()
	e.automaton = automaton
	e.mu.Unlock()
	return nil
}
