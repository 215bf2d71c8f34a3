package handrecord

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNullSinkDiscards(t *testing.T) {
	require.NoError(t, NullSink{}.RecordHand(HandRecord{HandID: "h1"}))
}

type recordingSink struct {
	records []HandRecord
	err     error
}

func (r *recordingSink) RecordHand(h HandRecord) error {
	r.records = append(r.records, h)
	return r.err
}

func TestTeeSinkFansOutToBoth(t *testing.T) {
	primary := &recordingSink{}
	secondary := &recordingSink{}
	tee := NewTeeSink(primary, secondary)

	hand := HandRecord{HandID: "h1", FinalPot: 40}
	require.NoError(t, tee.RecordHand(hand))

	require.Len(t, primary.records, 1)
	require.Len(t, secondary.records, 1)
	require.Equal(t, "h1", primary.records[0].HandID)
}

func TestTeeSinkPrimaryErrorTakesPrecedence(t *testing.T) {
	primary := &recordingSink{err: errors.New("primary failed")}
	secondary := &recordingSink{err: errors.New("secondary failed")}
	tee := NewTeeSink(primary, secondary)

	err := tee.RecordHand(HandRecord{HandID: "h1"})
	require.EqualError(t, err, "primary failed")
	// Secondary still observed the hand even though primary errored.
	require.Len(t, secondary.records, 1)
}

func TestTeeSinkSecondaryErrorSurfacesWhenPrimaryOK(t *testing.T) {
	primary := &recordingSink{}
	secondary := &recordingSink{err: errors.New("secondary failed")}
	tee := NewTeeSink(primary, secondary)

	err := tee.RecordHand(HandRecord{HandID: "h1"})
	require.EqualError(t, err, "secondary failed")
}

func TestStatsCollectorRollsUpAcrossHands(t *testing.T) {
	c := NewStatsCollector(0)

	now := time.Now()
	hand1 := HandRecord{
		HandID:      "h1",
		CompletedAt: now,
		Seats: []SeatRecord{
			{Identity: "alice", DisplayName: "Alice", Profit: 30},
			{Identity: "bob", DisplayName: "Bob", Profit: -30},
		},
		HandHistory: []ActionRecord{
			{PlayerID: "alice", Action: "call", Street: "preflop"},
			{PlayerID: "alice", Action: "raise", Street: "preflop"},
			{PlayerID: "bob", Action: "fold", Street: "preflop"},
		},
	}
	hand2 := HandRecord{
		HandID:      "h2",
		CompletedAt: now.Add(time.Minute),
		Seats: []SeatRecord{
			{Identity: "alice", DisplayName: "Alice", Profit: -10},
			{Identity: "bob", DisplayName: "Bob", Profit: 10},
		},
	}

	require.NoError(t, c.RecordHand(hand1))
	require.NoError(t, c.RecordHand(hand2))

	alice, ok := c.Stats("alice")
	require.True(t, ok)
	require.Equal(t, 2, alice.Hands)
	require.Equal(t, int64(20), alice.NetChips)
	require.Equal(t, int64(30), alice.TotalWon)
	require.Equal(t, int64(10), alice.TotalLost)
	require.InDelta(t, 10.0, alice.AvgPerHand(), 0.001)

	actions := c.ActionsByStreet("alice")
	require.Equal(t, "raise", actions["preflop"])

	require.Equal(t, 2, c.HandsRecorded())
	require.Len(t, c.AllStats(), 2)

	_, ok = c.Stats("carol")
	require.False(t, ok)
}

func TestShouldReplaceActionOrdersBySignificance(t *testing.T) {
	require.True(t, shouldReplaceAction("fold", "call"))
	require.True(t, shouldReplaceAction("check", "raise"))
	require.False(t, shouldReplaceAction("raise", "call"))
	require.False(t, shouldReplaceAction("allin", "raise"))
}
