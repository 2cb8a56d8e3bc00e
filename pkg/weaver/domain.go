package weaver

import (
	"github.com/tabagent/tabagent/pkg/indexmgr"
	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/tiers"
)

// domainTierFor maps a node onto its owning tiers.Domain and the tier name
// within it, the same routing the Index Manager needs to pick which
// per-tier vector sub-index an embedding belongs in.
func domainTierFor(n *model.Node, c *tiers.Coordinator) indexmgr.TierKey {
	switch n.Kind {
	case model.KindMessage, model.KindChat:
		return indexmgr.TierKey{Domain: string(tiers.DomainConversations), Tier: c.ConversationTier(n.LastAccessed)}
	case model.KindSummary:
		return indexmgr.TierKey{Domain: string(tiers.DomainSummaries), Tier: tiers.SummaryTier(n.Summary().Scope)}
	case model.KindEntity:
		return indexmgr.TierKey{Domain: string(tiers.DomainKnowledge), Tier: string(n.Entity().Tier)}
	default:
		ownerTier := c.ConversationTier(n.LastAccessed)
		return indexmgr.TierKey{Domain: string(tiers.DomainEmbeddings), Tier: tiers.EmbeddingsTier(ownerTier)}
	}
}
