package weaver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabagent/tabagent/pkg/model"
)

var errFakeHandle = errors.New("fake module handle error")

// fakeModule records every event it's handed and can be told to fail.
type fakeModule struct {
	name        string
	interested  func(EventKind, model.Kind) bool
	failOnKinds map[model.Kind]bool

	mu     sync.Mutex
	events []Event
}

func (f *fakeModule) Name() string { return f.name }

func (f *fakeModule) Interested(kind EventKind, nodeKind model.Kind) bool {
	return f.interested(kind, nodeKind)
}

func (f *fakeModule) Handle(ctx context.Context, ev Event) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	if f.failOnKinds[ev.NodeKind] {
		return errFakeHandle
	}
	return nil
}

func (f *fakeModule) seen() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestBus_DispatchesOnlyToInterestedModules(t *testing.T) {
	chatModule := &fakeModule{
		name:       "chat-only",
		interested: func(k EventKind, nk model.Kind) bool { return nk == model.KindChat },
	}
	messageModule := &fakeModule{
		name:       "message-only",
		interested: func(k EventKind, nk model.Kind) bool { return nk == model.KindMessage },
	}

	bus := New(zerolog.Nop(), chatModule, messageModule)
	defer bus.Close()

	bus.Publish(Event{Kind: EventNodeCreated, NodeID: "c1", NodeKind: model.KindChat})

	waitUntil(t, time.Second, func() bool { return len(chatModule.seen()) == 1 })
	assert.Empty(t, messageModule.seen())

	got := chatModule.seen()
	assert.Equal(t, model.NodeID("c1"), got[0].NodeID)
}

func TestBus_StatsCountProcessedAndFailed(t *testing.T) {
	okModule := &fakeModule{
		name:       "ok",
		interested: func(EventKind, model.Kind) bool { return true },
	}
	failModule := &fakeModule{
		name:        "fails-on-entity",
		interested:  func(EventKind, model.Kind) bool { return true },
		failOnKinds: map[model.Kind]bool{model.KindEntity: true},
	}

	bus := New(zerolog.Nop(), okModule, failModule)
	defer bus.Close()

	bus.Publish(Event{Kind: EventNodeCreated, NodeID: "e1", NodeKind: model.KindEntity})

	waitUntil(t, time.Second, func() bool {
		s := bus.Stats()
		return s.Processed+s.Failed >= 2
	})

	stats := bus.Stats()
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
}

func TestBus_PublishUnderCapacityNeverDrops(t *testing.T) {
	noop := &fakeModule{
		name:       "noop",
		interested: func(EventKind, model.Kind) bool { return true },
	}
	bus := New(zerolog.Nop(), noop)
	defer bus.Close()

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Kind: EventNodeUpdated, NodeID: model.NodeID("n"), NodeKind: model.KindChat})
	}
	waitUntil(t, time.Second, func() bool { return bus.Stats().Queued == 0 })
	assert.Equal(t, 0, bus.Stats().Dropped)
}

func TestBus_CloseFlushesRemainingQueue(t *testing.T) {
	counting := &fakeModule{
		name:       "counting",
		interested: func(EventKind, model.Kind) bool { return true },
	}

	bus := New(zerolog.Nop(), counting)
	bus.Publish(Event{Kind: EventNodeCreated, NodeID: "n1", NodeKind: model.KindBookmark})
	bus.Close()

	assert.Len(t, counting.seen(), 1)
	assert.Equal(t, 1, bus.Stats().Processed)
}
