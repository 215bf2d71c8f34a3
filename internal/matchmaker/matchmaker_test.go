package matchmaker

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lox/plo-core/internal/handrecord"
	"github.com/lox/plo-core/internal/protocol"
	"github.com/lox/plo-core/internal/tableinstance"
)

type fakeConn struct {
	identity string
	mu       sync.Mutex
	out      []*protocol.Envelope
}

func (f *fakeConn) Identity() string { return f.identity }
func (f *fakeConn) Send(env *protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, env)
	return nil
}
func (f *fakeConn) Close() error { return nil }

func newTestMatchmaker(t *testing.T, clock quartz.Clock) *Matchmaker {
	t.Helper()
	var mm *Matchmaker
	factory := func(id string, key tableinstance.MatchmakingKey) *tableinstance.TableInstance {
		cfg := tableinstance.Config{BuyIn: 200, ActionTimeout: 2 * time.Second}
		rng := rand.New(rand.NewSource(1))
		return tableinstance.New(id, key, cfg, clock, rng, mm, handrecord.NullSink{}, zerolog.Nop())
	}
	mm = New(factory, clock, zerolog.Nop())
	return mm
}

func TestParseBlinds(t *testing.T) {
	sb, bb, err := ParseBlinds("1/2")
	require.NoError(t, err)
	require.Equal(t, 1, sb)
	require.Equal(t, 2, bb)

	_, _, err = ParseBlinds("2/1")
	require.Error(t, err, "big blind must exceed small blind")

	_, _, err = ParseBlinds("not-blinds")
	require.Error(t, err)
}

func TestJoinSpinsUpANewTablePerKey(t *testing.T) {
	clock := quartz.NewMock(t)
	mm := newTestMatchmaker(t, clock)
	defer mm.Stop()

	key := tableinstance.MatchmakingKey{Variant: "plo6max", SmallBlind: 1, BigBlind: 2}
	require.NoError(t, mm.Join("alice", "Alice", key, 100, &fakeConn{identity: "alice"}))
	require.Equal(t, 1, mm.TableCount())

	// A second joiner at the same key lands on the same table, not a new one.
	require.NoError(t, mm.Join("bob", "Bob", key, 100, &fakeConn{identity: "bob"}))
	require.Equal(t, 1, mm.TableCount())

	// A different stakes key gets its own table.
	key2 := tableinstance.MatchmakingKey{Variant: "plo6max", SmallBlind: 2, BigBlind: 4}
	require.NoError(t, mm.Join("carol", "Carol", key2, 100, &fakeConn{identity: "carol"}))
	require.Equal(t, 2, mm.TableCount())
}

func TestSweepIdleTablesTearsDownUnderused(t *testing.T) {
	clock := quartz.NewMock(t)
	mm := newTestMatchmaker(t, clock)
	defer mm.Stop()

	key := tableinstance.MatchmakingKey{Variant: "plo6max", SmallBlind: 1, BigBlind: 2}
	require.NoError(t, mm.Join("alice", "Alice", key, 100, &fakeConn{identity: "alice"}))
	require.Equal(t, 1, mm.TableCount())

	mm.SweepIdleTables(0)
	mm.SweepIdleTables(0)

	require.Equal(t, 0, mm.TableCount())
}

func TestLeaveStandsUpFromEveryTable(t *testing.T) {
	clock := quartz.NewMock(t)
	mm := newTestMatchmaker(t, clock)
	defer mm.Stop()

	key := tableinstance.MatchmakingKey{Variant: "plo6max", SmallBlind: 1, BigBlind: 2}
	conn := &fakeConn{identity: "alice"}
	require.NoError(t, mm.Join("alice", "Alice", key, 100, conn))

	require.NoError(t, mm.Leave("alice"))

	table := mm.Table(onlyTableID(t, mm))
	require.NotNil(t, table)
	require.False(t, table.HasSeat("alice"))
}

func onlyTableID(t *testing.T, mm *Matchmaker) string {
	t.Helper()
	tables := mm.Tables()
	require.Len(t, tables, 1)
	return tables[0].ID
}
