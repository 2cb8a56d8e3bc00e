package weaver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
)

// messagesSinceSummaryThreshold is how many unsummarized messages a chat
// accumulates before Summarizer condenses them into a session Summary,
// independent of whether a session boundary has also been crossed.
const messagesSinceSummaryThreshold = 20

// Generator is the slice of an LLM client Summarizer needs: turn a prompt
// into text. Defined here, at the point of use, so this package doesn't
// depend on a concrete ML client implementation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer condenses a chat's recent messages into a session Summary
// once enough unsummarized messages have accumulated or a session boundary
// was detected, whichever comes first.
type Summarizer struct {
	engine    storage.Engine
	generator Generator
	log       zerolog.Logger
}

func NewSummarizer(engine storage.Engine, generator Generator, log zerolog.Logger) *Summarizer {
	return &Summarizer{
		engine:    engine,
		generator: generator,
		log:       log.With().Str("module", "summarizer").Logger(),
	}
}

func (s *Summarizer) Name() string { return "summarizer" }

func (s *Summarizer) Interested(kind EventKind, nodeKind model.Kind) bool {
	return kind == EventChatUpdated || kind == EventBatchMessagesAdded
}

func (s *Summarizer) Handle(ctx context.Context, ev Event) error {
	if ev.Kind == EventChatUpdated && !ev.SessionBoundary && ev.MessagesSinceSummary < messagesSinceSummaryThreshold {
		return nil
	}

	chat, err := s.engine.GetNode(ev.ChatID)
	if err != nil {
		return fmt.Errorf("loading chat %s: %w", ev.ChatID, err)
	}

	unsummarized, err := s.unsummarizedMessages(chat)
	if err != nil {
		return err
	}
	if len(unsummarized) == 0 {
		return nil
	}

	prompt := buildSummaryPrompt(unsummarized)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}

	now := time.Now()
	summary := &model.Node{
		ID:           model.NodeID("summary_" + uuid.NewString()),
		Kind:         model.KindSummary,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastAccessed: now,
	}
	summary.SetProp("chat_id", string(chat.ID))
	summary.SetProp("scope", string(model.ScopeSession))
	summary.SetProp("text", text)

	if err := s.engine.CreateNode(summary); err != nil {
		return fmt.Errorf("creating summary node: %w", err)
	}

	for _, msg := range unsummarized {
		edge := &model.Edge{
			ID:            model.EdgeID("edge_" + uuid.NewString()),
			StartNode:     summary.ID,
			EndNode:       msg.ID,
			Type:          model.EdgeSummarizes,
			CreatedAt:     now,
			Confidence:    1.0,
			AutoGenerated: true,
		}
		if err := s.engine.CreateEdge(edge); err != nil {
			s.log.Warn().Err(err).Str("message_id", string(msg.ID)).Msg("failed to link summary to message")
		}
	}

	fields := chat.Chat()
	fields.SummaryIDs = append(fields.SummaryIDs, string(summary.ID))
	chat.SetProp("summary_ids", fields.SummaryIDs)
	chat.SetProp("messages_since_summary", 0)
	chat.UpdatedAt = now
	if err := s.engine.UpdateNode(chat); err != nil {
		return fmt.Errorf("updating chat after summarization: %w", err)
	}

	return nil
}

// unsummarizedMessages loads the chat's messages not yet covered by a
// SUMMARIZES edge. Order follows Chat.MessageIDs, the chat's own ordering.
func (s *Summarizer) unsummarizedMessages(chat *model.Node) ([]*model.Node, error) {
	covered := make(map[model.NodeID]bool)
	for _, summaryID := range chat.Chat().SummaryIDs {
		edges, err := s.engine.OutgoingEdges(model.NodeID(summaryID))
		if err != nil {
			continue
		}
		for _, e := range edges {
			if e.Type == model.EdgeSummarizes {
				covered[e.EndNode] = true
			}
		}
	}

	var out []*model.Node
	for _, idStr := range chat.Chat().MessageIDs {
		id := model.NodeID(idStr)
		if covered[id] {
			continue
		}
		msg, err := s.engine.GetNode(id)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func buildSummaryPrompt(messages []*model.Node) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation:\n\n")
	for _, m := range messages {
		f := m.Message()
		fmt.Fprintf(&b, "%s: %s\n", f.Role, f.Text)
	}
	return b.String()
}
