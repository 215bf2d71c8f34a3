// Package matchmaker implements the waiting pool of spec §4.8: it buckets
// joiners by (variant, blinds, fastFold), assigns them onto a
// TableInstance with a free seat, spins up a new table when none fits, and
// re-queues fast-fold departures. Grounded on the teacher's
// internal/server/pool.go BotPool matching loop (register/unregister
// channels, a single goroutine owning the match decision), generalized
// from "bucket of bots, one shared hand size" to "buckets keyed by
// matchmaking key, one TableInstance per bucket-instance".
package matchmaker

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/plo-core/internal/tableinstance"
)

// TableFactory creates a fresh TableInstance for a matchmaking key. The
// Matchmaker never constructs a TableInstance itself so callers can inject
// the clock/rng/sink wiring (server.go) without this package importing
// them.
type TableFactory func(id string, key tableinstance.MatchmakingKey) *tableinstance.TableInstance

// Matchmaker owns the set of live tables, keyed by matchmaking bucket. A
// joiner is never parked in a separate waiting queue: since every
// TableInstance has six seats and Join spins up a fresh table whenever no
// existing one has room, assignment always succeeds immediately (the seat
// itself carries WaitingForNextHand when it lands mid-hand, per spec §3).
// All mutation goes through this type's own serial queue (spec §5: "the
// process-wide Matchmaker is itself driven by a serial queue"), so
// joins/leaves/seat assignments across different matchmaking keys never
// race each other.
type Matchmaker struct {
	queue   *tableinstance.SerialQueue
	factory TableFactory
	clock   quartz.Clock
	logger  zerolog.Logger

	tables map[string]*tableinstance.TableInstance
	byKey  map[tableinstance.MatchmakingKey][]string // table IDs, insertion order
	conns  map[string]tableinstance.ConnectionHandle // identity -> last known connection
	idle   map[string]time.Time                      // table ID -> became-idle-at

	nextTableID uint64
}

// New creates a Matchmaker. factory is called (off the matchmaker's own
// queue goroutine's critical path is fine — it just builds a struct) every
// time a new table must be spun up for a key with no room.
func New(factory TableFactory, clock quartz.Clock, logger zerolog.Logger) *Matchmaker {
	m := &Matchmaker{
		queue:   tableinstance.NewSerialQueue(256),
		factory: factory,
		clock:   clock,
		logger:  logger.With().Str("component", "matchmaker").Logger(),
		tables:  make(map[string]*tableinstance.TableInstance),
		byKey:   make(map[tableinstance.MatchmakingKey][]string),
		conns:   make(map[string]tableinstance.ConnectionHandle),
		idle:    make(map[string]time.Time),
	}
	m.queue.Start()
	return m
}

// Join buckets identity by key and seats it on a table with a free seat,
// spinning up a new one if none fits.
func (m *Matchmaker) Join(identity, displayName string, key tableinstance.MatchmakingKey, buyIn int, conn tableinstance.ConnectionHandle) error {
	return m.queue.SubmitAndWait(func() error { return m.join(identity, displayName, key, buyIn, conn) })
}

func (m *Matchmaker) join(identity, displayName string, key tableinstance.MatchmakingKey, buyIn int, conn tableinstance.ConnectionHandle) error {
	m.conns[identity] = conn

	for _, tableID := range m.byKey[key] {
		table := m.tables[tableID]
		if table == nil {
			continue
		}
		if err := table.Sit(identity, displayName, -1, buyIn, conn); err == nil {
			delete(m.idle, tableID)
			return nil
		}
	}

	id := fmt.Sprintf("table-%s-%d", key.String(), atomic.AddUint64(&m.nextTableID, 1))
	table := m.factory(id, key)
	m.tables[id] = table
	m.byKey[key] = append(m.byKey[key], id)

	if err := table.Sit(identity, displayName, -1, buyIn, conn); err != nil {
		return err
	}
	return nil
}

// Leave stands identity up from whichever table it is currently seated at.
func (m *Matchmaker) Leave(identity string) error {
	return m.queue.SubmitAndWait(func() error {
		delete(m.conns, identity)
		for _, table := range m.tables {
			_ = table.Stand(identity, "matchmaking:leave")
		}
		return nil
	})
}

// Requeue implements tableinstance.Reseater: a fast-folding (or otherwise
// departing) identity is placed back into matchmaking for the same key,
// reusing its last known connection. Submitted asynchronously (not
// SubmitAndWait) since it is invoked from inside the departing table's own
// serial-queue task — waiting here would make two independent tables'
// queues depend on each other.
func (m *Matchmaker) Requeue(identity, displayName string, key tableinstance.MatchmakingKey, buyIn int) {
	m.queue.Submit(func() error {
		conn := m.conns[identity]
		return m.join(identity, displayName, key, buyIn, conn)
	})
}

// TableCount returns the number of live tables, read inside the
// matchmaker's queue.
func (m *Matchmaker) TableCount() int {
	n := 0
	_ = m.queue.SubmitAndWait(func() error { n = len(m.tables); return nil })
	return n
}

// Tables returns a snapshot slice of every live table, used by the
// transport layer to find which table an identity is seated at.
func (m *Matchmaker) Tables() []*tableinstance.TableInstance {
	var tables []*tableinstance.TableInstance
	_ = m.queue.SubmitAndWait(func() error {
		tables = make([]*tableinstance.TableInstance, 0, len(m.tables))
		for _, t := range m.tables {
			tables = append(tables, t)
		}
		return nil
	})
	return tables
}

// Table looks up a live table by ID, or nil if it no longer exists.
func (m *Matchmaker) Table(id string) *tableinstance.TableInstance {
	var table *tableinstance.TableInstance
	_ = m.queue.SubmitAndWait(func() error {
		table = m.tables[id]
		return nil
	})
	return table
}

// SweepIdleTables tears down tables with at most one seated player that
// have stayed that way for at least idleAfter, per spec §4.8. A table is
// first marked idle by one sweep and can only be torn down by a later one.
// Each call performs a single sweep; nothing in this module schedules it.
func (m *Matchmaker) SweepIdleTables(idleAfter time.Duration) {
	_ = m.queue.SubmitAndWait(func() error {
		now := m.clock.Now()
		for key, ids := range m.byKey {
			kept := ids[:0]
			for _, id := range ids {
				table := m.tables[id]
				if table == nil {
					continue
				}
				if table.SeatCount() > 1 {
					delete(m.idle, id)
					kept = append(kept, id)
					continue
				}
				since, marked := m.idle[id]
				if !marked {
					m.idle[id] = now
					kept = append(kept, id)
					continue
				}
				if now.Sub(since) < idleAfter {
					kept = append(kept, id)
					continue
				}
				table.Stop()
				delete(m.tables, id)
				delete(m.idle, id)
				m.logger.Info().Str("table_id", id).Msg("tore down idle table")
			}
			m.byKey[key] = kept
		}
		return nil
	})
}

// Stop halts the matchmaker's own queue and every live table's queue.
func (m *Matchmaker) Stop() {
	_ = m.queue.SubmitAndWait(func() error {
		for _, table := range m.tables {
			table.Stop()
		}
		return nil
	})
	m.queue.Stop()
}

// ParseBlinds parses a "sb/bb" string into (smallBlind, bigBlind), as sent
// in matchmaking:join payloads (spec §6).
func ParseBlinds(s string) (int, int, error) {
	var sb, bb int
	if _, err := fmt.Sscanf(s, "%d/%d", &sb, &bb); err != nil {
		return 0, 0, fmt.Errorf("invalid blinds %q: %w", s, err)
	}
	if sb <= 0 || bb <= sb {
		return 0, 0, fmt.Errorf("invalid blinds %q: big blind must exceed small blind", s)
	}
	return sb, bb, nil
}
