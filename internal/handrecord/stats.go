package handrecord

import (
	"sync"
	"time"
)

// PlayerStats captures aggregate performance metrics for one identity
// across every hand it has completed, rolled up in-memory. Grounded on
// the teacher's internal/server/stats.go PlayerStats — spec §1 places
// durable storage/queries out of scope, but an in-memory rollup the core
// itself computes is fair game.
type PlayerStats struct {
	Identity    string
	DisplayName string
	Hands       int
	NetChips    int64
	TotalWon    int64
	TotalLost   int64
	LastDelta   int
	LastUpdated time.Time
}

// AvgPerHand returns NetChips/Hands, or 0 if no hands have been recorded.
func (s PlayerStats) AvgPerHand() float64 {
	if s.Hands == 0 {
		return 0
	}
	return float64(s.NetChips) / float64(s.Hands)
}

// actionPriority orders actions by significance (fold lowest, allin
// highest), grounded on the teacher's shouldReplaceAction in
// internal/server/hand_runner.go.
var actionPriority = map[string]int{
	"fold":  1,
	"check": 2,
	"call":  3,
	"bet":   4,
	"raise": 4,
	"allin": 5,
}

func shouldReplaceAction(oldAction, newAction string) bool {
	return actionPriority[newAction] > actionPriority[oldAction]
}

// StatsCollector is a Sink decorator that rolls up PlayerStats and the
// most significant action taken per (identity, street) across every hand
// it observes, without itself performing persistence. Wrap a real Sink
// with NewTeeSink to keep both persistence and this in-memory rollup.
type StatsCollector struct {
	mu       sync.Mutex
	players  map[string]*PlayerStats
	actions  map[string]map[string]string // identity -> street -> most significant action
	maxHands int
	hands    int
}

// NewStatsCollector creates an empty collector. maxHands bounds memory by
// capping how many hands' worth of per-street action detail is retained
// (0 = unbounded), mirroring the teacher's MaxStatsHands knob.
func NewStatsCollector(maxHands int) *StatsCollector {
	return &StatsCollector{
		players:  make(map[string]*PlayerStats),
		actions:  make(map[string]map[string]string),
		maxHands: maxHands,
	}
}

// RecordHand implements Sink: it updates every seated identity's rollup
// from the hand's per-seat profit and tracks the most significant action
// each identity took per street this hand.
func (c *StatsCollector) RecordHand(hand HandRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hands++

	for _, seat := range hand.Seats {
		p, ok := c.players[seat.Identity]
		if !ok {
			p = &PlayerStats{Identity: seat.Identity}
			c.players[seat.Identity] = p
		}
		p.DisplayName = seat.DisplayName
		p.Hands++
		p.NetChips += int64(seat.Profit)
		p.LastDelta = seat.Profit
		p.LastUpdated = hand.CompletedAt
		if seat.Profit > 0 {
			p.TotalWon += int64(seat.Profit)
		} else if seat.Profit < 0 {
			p.TotalLost += int64(-seat.Profit)
		}
	}

	if c.maxHands > 0 && c.hands > c.maxHands {
		return nil
	}
	for _, action := range hand.HandHistory {
		byStreet, ok := c.actions[action.PlayerID]
		if !ok {
			byStreet = make(map[string]string)
			c.actions[action.PlayerID] = byStreet
		}
		existing, hasAction := byStreet[action.Street]
		if !hasAction || shouldReplaceAction(existing, action.Action) {
			byStreet[action.Street] = action.Action
		}
	}
	return nil
}

// Stats returns the rolled-up stats for identity, or false if no hand has
// ever involved it.
func (c *StatsCollector) Stats(identity string) (PlayerStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.players[identity]
	if !ok {
		return PlayerStats{}, false
	}
	return *p, true
}

// AllStats returns a snapshot of every tracked identity's stats.
func (c *StatsCollector) AllStats() []PlayerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PlayerStats, 0, len(c.players))
	for _, p := range c.players {
		out = append(out, *p)
	}
	return out
}

// ActionsByStreet returns the most significant action identity took on
// each street, across every tracked hand.
func (c *StatsCollector) ActionsByStreet(identity string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	byStreet, ok := c.actions[identity]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(byStreet))
	for k, v := range byStreet {
		out[k] = v
	}
	return out
}

// HandsRecorded returns the total number of hands observed, including any
// beyond maxHands (whose per-street action detail was dropped).
func (c *StatsCollector) HandsRecorded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hands
}

// TeeSink fans RecordHand out to two sinks, so a durable Sink and an
// in-memory StatsCollector can both observe every completed hand.
type TeeSink struct {
	Primary   Sink
	Secondary Sink
}

// NewTeeSink combines primary (e.g. a database-backed Sink) with
// secondary (typically a *StatsCollector) behind a single Sink.
func NewTeeSink(primary, secondary Sink) TeeSink {
	return TeeSink{Primary: primary, Secondary: secondary}
}

func (t TeeSink) RecordHand(hand HandRecord) error {
	errPrimary := t.Primary.RecordHand(hand)
	errSecondary := t.Secondary.RecordHand(hand)
	if errPrimary != nil {
		return errPrimary
	}
	return errSecondary
}
