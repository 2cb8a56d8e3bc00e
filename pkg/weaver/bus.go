package weaver

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tabagent/tabagent/pkg/model"
)

// mailboxCapacity bounds the bus's backlog. A consumer falling behind never
// grows memory without bound; it starts shedding superseded NodeUpdated
// events instead (see Publish).
const mailboxCapacity = 1024

// Stats is a snapshot of the bus's counters, shaped for a health endpoint
// the way the teacher's WorkerStats was.
type Stats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
	Queued    int `json:"queued"`
}

// Bus is the event bus: one bounded mailbox fed by the write path and
// drained by a single dispatcher goroutine that fans each event out to
// every interested module in turn, so two modules touching the same node
// from the same event never run concurrently with each other.
type Bus struct {
	mu    sync.Mutex
	queue []Event

	notify chan struct{}

	dispatch map[EventKind]map[model.Kind][]Module

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log zerolog.Logger

	statsMu sync.Mutex
	stats   Stats
}

// New builds a Bus wired to modules and starts its dispatcher goroutine.
// Each module's Interested is consulted once per (event kind, node kind)
// pair up front; modules never see an event they didn't ask for.
func New(log zerolog.Logger, modules ...Module) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		notify:   make(chan struct{}, 1),
		dispatch: make(map[EventKind]map[model.Kind][]Module, len(allEventKinds)),
		ctx:      ctx,
		cancel:   cancel,
		log:      log.With().Str("component", "weaver").Logger(),
	}

	for _, ek := range allEventKinds {
		b.dispatch[ek] = make(map[model.Kind][]Module)
		for _, nk := range allNodeKinds {
			for _, m := range modules {
				if m.Interested(ek, nk) {
					b.dispatch[ek][nk] = append(b.dispatch[ek][nk], m)
				}
			}
		}
	}

	b.wg.Add(1)
	go b.run()
	return b
}

// Publish enqueues ev for dispatch. Never blocks the caller: when the
// mailbox is already at capacity it first evicts the oldest queued
// NodeUpdated event to make room — a superseded "node changed" signal is
// safe to drop since whatever triggered it is already reflected in a later
// queue entry — and only drops the incoming event itself when no such
// victim exists.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	if len(b.queue) >= mailboxCapacity {
		evicted := false
		for i, q := range b.queue {
			if q.Kind == EventNodeUpdated {
				b.queue = append(b.queue[:i], b.queue[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			b.mu.Unlock()
			b.statsMu.Lock()
			b.stats.Dropped++
			b.statsMu.Unlock()
			return
		}
	}
	b.queue = append(b.queue, ev)
	qlen := len(b.queue)
	b.mu.Unlock()

	b.statsMu.Lock()
	b.stats.Queued = qlen
	b.statsMu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.notify:
			b.drain()
		}
	}
}

// drain processes every event currently queued, in FIFO order. New
// Publish calls arriving mid-drain are picked up by the loop since it
// re-checks queue length on every iteration.
func (b *Bus) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue = b.queue[1:]
		qlen := len(b.queue)
		b.mu.Unlock()

		b.statsMu.Lock()
		b.stats.Queued = qlen
		b.statsMu.Unlock()

		for _, m := range b.dispatch[ev.Kind][ev.NodeKind] {
			if err := m.Handle(b.ctx, ev); err != nil {
				b.log.Warn().Err(err).
					Str("module", m.Name()).
					Str("event", string(ev.Kind)).
					Str("node_id", string(ev.NodeID)).
					Msg("enrichment module failed")
				b.statsMu.Lock()
				b.stats.Failed++
				b.statsMu.Unlock()
				continue
			}
			b.statsMu.Lock()
			b.stats.Processed++
			b.statsMu.Unlock()
		}
	}
}

// Stats returns a snapshot of the bus's counters.
func (b *Bus) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

// Close stops the dispatcher after flushing whatever is left queued.
func (b *Bus) Close() {
	b.drain()
	b.cancel()
	b.wg.Wait()
}
