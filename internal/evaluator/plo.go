package evaluator

import "github.com/lox/plo-core/internal/deck"

// holeCombos enumerates all C(4,2)=6 two-card selections from a 4-card
// hole; boardCombos enumerates all C(5,3)=10 three-card selections from a
// 5-card board. Fixed at package init since both shapes are constant.
var holeCombos = combinations(4, 2)
var boardCombos = combinations(5, 3)

func combinations(n, k int) [][]int {
	var result [][]int
	indices := make([]int, k)
	for i := range indices {
		indices[i] = i
	}
	for {
		combo := make([]int, k)
		copy(combo, indices)
		result = append(result, combo)

		i := k - 1
		for i >= 0 && indices[i] == n-k+i {
			i--
		}
		if i < 0 {
			break
		}
		indices[i]++
		for j := i + 1; j < k; j++ {
			indices[j] = indices[j-1] + 1
		}
	}
	return result
}

// EvaluatePLO finds the best five-card hand obtainable from exactly 2 of
// the 4 hole cards and exactly 3 of the 5 board cards — the rule that
// distinguishes Omaha from Hold'em. It searches all 6*10=60 combinations
// and keeps the strongest, mirroring the teacher's exhaustive 7-card
// search but constrained to the mandatory 2-and-3 split.
func EvaluatePLO(hole [4]deck.Card, board [5]deck.Card) HandRank {
	var best HandRank
	five := make([]deck.Card, 5)

	for _, hc := range holeCombos {
		for _, bc := range boardCombos {
			five[0] = hole[hc[0]]
			five[1] = hole[hc[1]]
			five[2] = board[bc[0]]
			five[3] = board[bc[1]]
			five[4] = board[bc[2]]

			rank := EvaluateFiveCard(five)
			if best.Category == 0 || Compare(rank, best) > 0 {
				best = rank
			}
		}
	}

	return best
}

// CompareHands ranks two players' best PLO hands. It returns -1, 0, or 1
// following the same convention as Compare.
func CompareHands(holeA, holeB [4]deck.Card, board [5]deck.Card) int {
	return Compare(EvaluatePLO(holeA, board), EvaluatePLO(holeB, board))
}
