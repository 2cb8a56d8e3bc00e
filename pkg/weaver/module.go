package weaver

import (
	"context"

	"github.com/tabagent/tabagent/pkg/model"
)

// Module is a stateless enrichment handler. Handle must not retain ev past
// the call; the bus reuses its backing queue slot once dispatch returns.
type Module interface {
	Name() string

	// Interested reports whether this module wants events of this
	// (event kind, node kind) pair. Checked once per module at Bus
	// construction to build the dispatch table, not on every event.
	Interested(kind EventKind, nodeKind model.Kind) bool

	Handle(ctx context.Context, ev Event) error
}
