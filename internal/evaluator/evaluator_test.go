package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/plo-core/internal/deck"
)

func card(s string) deck.Card {
	runeSuit := map[byte]deck.Suit{'s': deck.Spades, 'h': deck.Hearts, 'd': deck.Diamonds, 'c': deck.Clubs}
	runeRank := map[byte]deck.Rank{
		'2': deck.Two, '3': deck.Three, '4': deck.Four, '5': deck.Five, '6': deck.Six,
		'7': deck.Seven, '8': deck.Eight, '9': deck.Nine, 'T': deck.Ten, 'J': deck.Jack,
		'Q': deck.Queen, 'K': deck.King, 'A': deck.Ace,
	}
	return deck.NewCard(runeSuit[s[1]], runeRank[s[0]])
}

func cards(ss ...string) []deck.Card {
	out := make([]deck.Card, len(ss))
	for i, s := range ss {
		out[i] = card(s)
	}
	return out
}

func hole4(ss ...string) [4]deck.Card {
	var h [4]deck.Card
	copy(h[:], cards(ss...))
	return h
}

func board5(ss ...string) [5]deck.Card {
	var b [5]deck.Card
	copy(b[:], cards(ss...))
	return b
}

func TestEvaluateFiveCardCategories(t *testing.T) {
	tests := []struct {
		name string
		hand []string
		want Category
	}{
		{"straight flush", []string{"9h", "Th", "Jh", "Qh", "Kh"}, StraightFlush},
		{"wheel straight flush", []string{"Ah", "2h", "3h", "4h", "5h"}, StraightFlush},
		{"four of a kind", []string{"9s", "9h", "9d", "9c", "Kh"}, FourOfAKind},
		{"full house", []string{"9s", "9h", "9d", "Kc", "Kh"}, FullHouse},
		{"flush", []string{"2h", "5h", "9h", "Kh", "Th"}, Flush},
		{"straight", []string{"9s", "Th", "Jd", "Qc", "Kh"}, Straight},
		{"wheel straight", []string{"As", "2h", "3d", "4c", "5h"}, Straight},
		{"three of a kind", []string{"9s", "9h", "9d", "2c", "5h"}, ThreeOfAKind},
		{"two pair", []string{"9s", "9h", "2d", "2c", "5h"}, TwoPair},
		{"one pair", []string{"9s", "9h", "2d", "4c", "5h"}, OnePair},
		{"high card", []string{"2s", "5h", "9d", "Jc", "Kh"}, HighCard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank := EvaluateFiveCard(cards(tt.hand...))
			assert.Equal(t, tt.want, rank.Category)
		})
	}
}

func TestEvaluateFiveCardPanicsOnWrongArity(t *testing.T) {
	assert.Panics(t, func() {
		EvaluateFiveCard(cards("2s", "3s", "4s"))
	})
}

// TestEvaluatePLOMustUseExactlyTwoHole checks that exactly two suited hole
// cards plus exactly three suited board cards make a flush: Ah and Th from
// the hole with 2h 5h 9h from the board.
func TestEvaluatePLOMustUseExactlyTwoHole(t *testing.T) {
	hole := hole4("Ah", "Th", "Jc", "Qc")
	board := board5("2h", "5h", "9h", "Kc", "3d")

	rank := EvaluatePLO(hole, board)

	// Best legal hand: hole Ah+Th with board 2h 5h 9h, an ace-high flush.
	assert.Equal(t, Flush, rank.Category, "two heart hole cards plus three heart board cards make a legal flush")
}

func TestEvaluatePLOFourFlushBoardIsUsableWithTwoSuitedHole(t *testing.T) {
	hole := hole4("Ah", "Kh", "2c", "3c")
	board := board5("4h", "7h", "9h", "Jh", "2d")

	rank := EvaluatePLO(hole, board)
	require.Equal(t, Flush, rank.Category)
	assert.Equal(t, int(deck.Ace), rank.HighCards[0])
}

// TestEvaluateFiveCardFlushStoresAllFiveCardsForTiebreak guards against a
// flush tiebreak regression: two flushes sharing the same top card must be
// compared by their next-highest differing card, not declared a tie.
func TestEvaluateFiveCardFlushStoresAllFiveCardsForTiebreak(t *testing.T) {
	higher := EvaluateFiveCard(cards("Ah", "Qh", "7h", "5h", "2h"))
	lower := EvaluateFiveCard(cards("Ah", "Jh", "7h", "5h", "2h"))

	require.Len(t, higher.HighCards, 5)
	require.Len(t, lower.HighCards, 5)
	assert.Equal(t, 1, Compare(higher, lower), "A-Q-high flush must beat A-J-high flush")
}

func TestCompareHandsFlushVsFlush(t *testing.T) {
	// Board carries exactly 3 hearts, so each hole's 2 heart cards combine
	// with them into a legal PLO flush: A-K-Q-7-5 vs A-K-J-7-5.
	holeA := hole4("Ah", "Qh", "2c", "3d")
	holeB := hole4("Ah", "Jh", "2s", "3c")
	board := board5("7h", "5h", "Kh", "9s", "4c")

	result := CompareHands(holeA, holeB, board)
	assert.Equal(t, 1, result, "A-K-Q-high flush must beat A-K-J-high flush, not tie")
}

// TestCompareHandsIdenticalRanksDifferentSuitsTie uses two holes with the
// same ranks in different suits against a board with no flush or straight
// draw live, so both players' best five-card hands must be rank-identical.
func TestCompareHandsIdenticalRanksDifferentSuitsTie(t *testing.T) {
	holeA := hole4("As", "Ks", "2c", "3d")
	holeB := hole4("Ad", "Kd", "2s", "3c")
	board := board5("4h", "9s", "Jd", "7c", "5h")

	result := CompareHands(holeA, holeB, board)
	assert.Equal(t, 0, result)
}
