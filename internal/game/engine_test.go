package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoSeatState(sb, bb, buyIn int) *HandState {
	state := CreateInitialState(buyIn, sb, bb, RakeConfig{Percent: 0.05, Cap: 3})
	state.Players[0].IsSittingOut = false
	state.Players[1].IsSittingOut = false
	return state
}

func newSixSeatState(sb, bb, buyIn int) *HandState {
	state := CreateInitialState(buyIn, sb, bb, RakeConfig{Percent: 0.05, Cap: 3})
	for i := range state.Players {
		state.Players[i].IsSittingOut = false
	}
	return state
}

func totalChips(state *HandState) int {
	total := state.Pot
	for _, p := range state.Players {
		total += p.Chips + p.CurrentBet
	}
	return total
}

// Scenario 1 from spec §8: heads-up walkover.
func TestHeadsUpWalkover(t *testing.T) {
	state := newTwoSeatState(1, 3, 100)
	StartNewHand(state, rand.New(rand.NewSource(1)))

	require.Equal(t, 0, state.DealerPosition, "dealer rotates from -1 to seat 0 first")
	require.Equal(t, 0, state.CurrentPlayerIndex, "heads-up: SB/BTN acts first preflop")

	ok := ApplyAction(state, 0, Fold, 0)
	require.True(t, ok)

	require.True(t, state.IsHandComplete)
	require.Len(t, state.Winners, 1)
	assert.Equal(t, 1, state.Winners[0].SeatIndex)
	assert.Equal(t, 4, state.Winners[0].Amount)
	assert.Equal(t, 0, state.RakeTaken, "no rake on a fold")
}

// Scenario 4 from spec §8: a non-full all-in raise does not reopen
// betting for a player who already acted.
func TestNonFullAllInRaiseDoesNotReopenBetting(t *testing.T) {
	state := newSixSeatState(5, 10, 200)
	state.DealerPosition = -1
	StartNewHand(state, rand.New(rand.NewSource(2)))

	// UTG (seat A) opens to 10 more (total bet 20).
	actingSeat := state.CurrentPlayerIndex
	ok := ApplyAction(state, actingSeat, Raise, 20)
	require.True(t, ok, "UTG should be able to open-raise to 20")

	// next seat raises full (to 50, increment 30 >= minRaise 10).
	seatB := state.CurrentPlayerIndex
	ok = ApplyAction(state, seatB, Raise, 50)
	require.True(t, ok)

	// find the seat after B; push it to all-in for less than a full raise.
	seatC := state.CurrentPlayerIndex
	state.Players[seatC].Chips = 55 // so all-in totals 55, increment 5 < minRaise 30
	ok = ApplyAction(state, seatC, AllIn, 55)
	require.True(t, ok)

	valid := GetValidActions(state, actingSeat)
	assert.False(t, hasAction(valid, Raise), "seat A already acted and faces a non-full raise, so cannot re-raise")
	assert.False(t, hasAction(valid, Bet))
	assert.True(t, hasAction(valid, Call))
	assert.True(t, hasAction(valid, Fold))
}

// Scenario 4 from spec §8, Raise-tagged variant: betting.go offers a
// short all-in under either the Raise or AllIn tag once a full raise
// would exceed the stack; submitting it as Raise must not reopen betting
// any more than submitting it as AllIn does.
func TestNonFullAllInSubmittedAsRaiseDoesNotReopenBetting(t *testing.T) {
	state := newSixSeatState(5, 10, 200)
	state.DealerPosition = -1
	StartNewHand(state, rand.New(rand.NewSource(2)))

	actingSeat := state.CurrentPlayerIndex
	ok := ApplyAction(state, actingSeat, Raise, 20)
	require.True(t, ok, "UTG should be able to open-raise to 20")

	seatB := state.CurrentPlayerIndex
	ok = ApplyAction(state, seatB, Raise, 50)
	require.True(t, ok)

	seatC := state.CurrentPlayerIndex
	state.Players[seatC].Chips = 55 // all-in totals 55, increment 5 < minRaise 30

	valid := GetValidActions(state, seatC)
	require.True(t, hasAction(valid, Raise), "a short all-in is still offered under the Raise tag")

	ok = ApplyAction(state, seatC, Raise, 55)
	require.True(t, ok)

	valid = GetValidActions(state, actingSeat)
	assert.False(t, hasAction(valid, Raise), "seat A already acted and faces a non-full raise, so cannot re-raise")
	assert.False(t, hasAction(valid, Bet))
	assert.True(t, hasAction(valid, Call))
	assert.True(t, hasAction(valid, Fold))
}

func TestChipConservationAcrossActions(t *testing.T) {
	state := newSixSeatState(5, 10, 200)
	before := totalChips(state)
	StartNewHand(state, rand.New(rand.NewSource(3)))
	assert.Equal(t, before, totalChips(state), "blinds move chips between stack and bet, never destroy them")

	for i := 0; i < 4 && !state.IsHandComplete; i++ {
		seat := state.CurrentPlayerIndex
		valid := GetValidActions(state, seat)
		require.NotEmpty(t, valid)
		ApplyAction(state, seat, valid[0].Action, valid[0].MinAmount)
		assert.Equal(t, before, totalChips(state), "chip conservation invariant after action %d", i)
	}
}

func TestDealerRotationSkipsBustedSeats(t *testing.T) {
	state := newSixSeatState(5, 10, 200)
	state.Players[1].Chips = 0
	state.DealerPosition = 0

	next := nextActiveSeat(state, state.DealerPosition)
	assert.Equal(t, 2, next, "seat 1 is busted (0 chips) and must be skipped")
}

// Scenario 3 from spec §8: side pots from three different contribution
// levels partition the total contributed (330) into one tier per level,
// each eligible only to the players who reached it.
func TestSidePotPartitionSumsToContributions(t *testing.T) {
	players := []Player{
		{SeatIndex: 0, TotalBetThisRound: 30},
		{SeatIndex: 1, TotalBetThisRound: 100},
		{SeatIndex: 2, TotalBetThisRound: 200},
	}

	pots := CalculateSidePots(players)
	total := TotalPotAmount(pots)
	assert.Equal(t, 330, total)

	require.Len(t, pots, 3)
	assert.Equal(t, 90, pots[0].Amount)
	assert.ElementsMatch(t, []int{0, 1, 2}, pots[0].Eligible)
	assert.Equal(t, 140, pots[1].Amount)
	assert.ElementsMatch(t, []int{1, 2}, pots[1].Eligible)
	assert.Equal(t, 100, pots[2].Amount)
	assert.ElementsMatch(t, []int{2}, pots[2].Eligible)
}

func TestSidePotsExcludeFoldedPlayersFromEligibilityButKeepChips(t *testing.T) {
	players := []Player{
		{SeatIndex: 0, TotalBetThisRound: 50, Folded: true},
		{SeatIndex: 1, TotalBetThisRound: 50},
	}

	pots := CalculateSidePots(players)
	require.Len(t, pots, 1)
	assert.Equal(t, 100, pots[0].Amount, "folded player's chips remain in the pot")
	assert.Equal(t, []int{1}, pots[0].Eligible)
}
