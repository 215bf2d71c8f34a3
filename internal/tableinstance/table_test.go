package tableinstance

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lox/plo-core/internal/game"
	"github.com/lox/plo-core/internal/handrecord"
	"github.com/lox/plo-core/internal/protocol"
)

func testRakeConfig() game.RakeConfig { return game.RakeConfig{Percent: 0.05, Cap: 3} }

// fakeConn records every envelope sent to it, standing in for a real
// transport in tests, grounded on the teacher's test_infrastructure.go
// fake-client pattern.
type fakeConn struct {
	identity string

	mu  sync.Mutex
	out []*protocol.Envelope
}

func newFakeConn(identity string) *fakeConn { return &fakeConn{identity: identity} }

func (f *fakeConn) Identity() string { return f.identity }

func (f *fakeConn) Send(env *protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, env)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) events() []*protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*protocol.Envelope(nil), f.out...)
}

func (f *fakeConn) last(t protocol.EventType) *protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.out) - 1; i >= 0; i-- {
		if f.out[i].Type == t {
			return f.out[i]
		}
	}
	return nil
}

func newTestTable(t *testing.T, clock quartz.Clock) (*TableInstance, *handrecord.StatsCollector) {
	t.Helper()
	stats := handrecord.NewStatsCollector(0)
	cfg := Config{
		BuyIn:          200,
		ActionTimeout:  2 * time.Second,
		InterHandDelay: 0,
		Rake:           testRakeConfig(),
	}
	table := New("table-1", MatchmakingKey{Variant: "plo6max", SmallBlind: 1, BigBlind: 2}, cfg, clock,
		rand.New(rand.NewSource(1)), nil, stats, zerolog.Nop())
	return table, stats
}

// Scenario 1 from spec §8: heads-up walkover — seat 0 folds preflop and
// seat 1 is awarded the pot without a showdown.
func TestTableInstanceHeadsUpWalkover(t *testing.T) {
	clock := quartz.NewMock(t)
	table, stats := newTestTable(t, clock)

	c0, c1 := newFakeConn("alice"), newFakeConn("bob")
	require.NoError(t, table.Sit("alice", "Alice", -1, 100, c0))
	require.NoError(t, table.Sit("bob", "Bob", -1, 100, c1))

	require.NoError(t, table.SubmitAction("alice", "fold", 0))

	env := c1.last(protocol.EventGameHandComplete)
	require.NotNil(t, env, "bob should see a hand_complete event")

	s, ok := stats.Stats("bob")
	require.True(t, ok)
	require.Equal(t, 1, s.Hands)
	require.Positive(t, s.NetChips)
}

// Disconnect mid-hand leads to a timeout-default action rather than a
// panic or stall, per spec §4.6/§7.
func TestTableInstanceDisconnectThenTimeoutDefaults(t *testing.T) {
	clock := quartz.NewMock(t)
	table, _ := newTestTable(t, clock)

	c0, c1 := newFakeConn("alice"), newFakeConn("bob")
	require.NoError(t, table.Sit("alice", "Alice", -1, 100, c0))
	require.NoError(t, table.Sit("bob", "Bob", -1, 100, c1))

	require.NoError(t, table.Disconnect("alice"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock.Advance(2 * time.Second).MustWait(ctx)

	require.Eventually(t, func() bool {
		return table.QueueSize() == 0
	}, time.Second, time.Millisecond, "queue should drain the injected timeout task")
}

// Reconnecting resends the latest snapshot to the rejoining identity.
func TestTableInstanceReconnectResendsState(t *testing.T) {
	clock := quartz.NewMock(t)
	table, _ := newTestTable(t, clock)

	c0, c1 := newFakeConn("alice"), newFakeConn("bob")
	require.NoError(t, table.Sit("alice", "Alice", -1, 100, c0))
	require.NoError(t, table.Sit("bob", "Bob", -1, 100, c1))
	require.NoError(t, table.Disconnect("alice"))

	c0Again := newFakeConn("alice")
	require.NoError(t, table.Reconnect("alice", c0Again))

	require.NotNil(t, c0Again.last(protocol.EventGameState))
}

// Fast-folding pre-commit removes the seat and requests a requeue through
// the Reseater.
func TestTableInstanceFastFold(t *testing.T) {
	clock := quartz.NewMock(t)
	reseater := &recordingReseater{}
	stats := handrecord.NewStatsCollector(0)
	cfg := Config{BuyIn: 200, ActionTimeout: 2 * time.Second, Rake: testRakeConfig()}
	table := New("table-2", MatchmakingKey{Variant: "plo6max", SmallBlind: 1, BigBlind: 2}, cfg, clock,
		rand.New(rand.NewSource(2)), reseater, stats, zerolog.Nop())

	c0, c1 := newFakeConn("alice"), newFakeConn("bob")
	require.NoError(t, table.Sit("alice", "Alice", -1, 100, c0))
	require.NoError(t, table.Sit("bob", "Bob", -1, 100, c1))

	require.NoError(t, table.FastFold("alice"))

	require.Eventually(t, func() bool {
		reseater.mu.Lock()
		defer reseater.mu.Unlock()
		return len(reseater.requeued) == 1
	}, time.Second, time.Millisecond)
}

type recordingReseater struct {
	mu       sync.Mutex
	requeued []string
}

func (r *recordingReseater) Requeue(identity, displayName string, key MatchmakingKey, buyIn int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requeued = append(r.requeued, identity)
}
