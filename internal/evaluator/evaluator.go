package evaluator

import "github.com/lox/plo-core/internal/deck"

// EvaluateFiveCard ranks exactly five cards. It panics if len(cards) != 5 —
// callers (plo.go, tests) control that invariant, the same contract the
// teacher's evaluate7Basic uses for its fixed arity.
func EvaluateFiveCard(cards []deck.Card) HandRank {
	if len(cards) != 5 {
		panic("EvaluateFiveCard requires exactly 5 cards")
	}

	var rankCounts [15]int
	var suitCounts [4]int
	var rankBits uint32

	for _, c := range cards {
		rankCounts[c.Rank]++
		suitCounts[c.Suit]++
		rankBits |= 1 << uint(c.Rank)
	}

	flushSuit := -1
	for s := 0; s < 4; s++ {
		if suitCounts[s] == 5 {
			flushSuit = s
			break
		}
	}

	straightHigh := findStraight(rankBits)

	if flushSuit != -1 {
		if straightHigh > 0 {
			return HandRank{Category: StraightFlush, HighCards: []int{straightHigh}}
		}
		ranks := descendingRanks(rankCounts, 5)
		return HandRank{Category: Flush, HighCards: ranks}
	}

	if straightHigh > 0 {
		return HandRank{Category: Straight, HighCards: []int{straightHigh}}
	}

	var fours, threes, pairs []int
	for r := 14; r >= 2; r-- {
		switch rankCounts[r] {
		case 4:
			fours = append(fours, r)
		case 3:
			threes = append(threes, r)
		case 2:
			pairs = append(pairs, r)
		}
	}

	switch {
	case len(fours) > 0:
		kicker := highestKicker(rankCounts, fours[0])
		return HandRank{Category: FourOfAKind, HighCards: []int{fours[0], kicker}}

	case len(threes) > 0 && (len(pairs) > 0 || len(threes) > 1):
		trip := threes[0]
		var pair int
		if len(threes) > 1 {
			pair = threes[1]
		} else {
			pair = pairs[0]
		}
		return HandRank{Category: FullHouse, HighCards: []int{trip, pair}}

	case len(threes) > 0:
		kickers := kickersExcluding(rankCounts, 2, threes[0])
		return HandRank{Category: ThreeOfAKind, HighCards: append([]int{threes[0]}, kickers...)}

	case len(pairs) >= 2:
		kicker := highestKicker(rankCounts, pairs[0], pairs[1])
		return HandRank{Category: TwoPair, HighCards: []int{pairs[0], pairs[1], kicker}}

	case len(pairs) == 1:
		kickers := kickersExcluding(rankCounts, 3, pairs[0])
		return HandRank{Category: OnePair, HighCards: append([]int{pairs[0]}, kickers...)}

	default:
		return HandRank{Category: HighCard, HighCards: descendingRanks(rankCounts, 5)}
	}
}

// findStraight returns the high card of a 5-consecutive-bit run in
// rankBits, special-casing the wheel (A-2-3-4-5, high card 5). Returns 0
// when there is no straight.
func findStraight(rankBits uint32) int {
	const wheel = uint32(1<<14 | 1<<5 | 1<<4 | 1<<3 | 1<<2)
	if rankBits&wheel == wheel {
		return 5
	}
	for high := 14; high >= 6; high-- {
		mask := uint32(0x1F) << uint(high-4)
		if rankBits&mask == mask {
			return high
		}
	}
	return 0
}

func highestKicker(rankCounts [15]int, exclude ...int) int {
	for r := 14; r >= 2; r-- {
		if rankCounts[r] != 1 {
			continue
		}
		excluded := false
		for _, e := range exclude {
			if r == e {
				excluded = true
				break
			}
		}
		if !excluded {
			return r
		}
	}
	return 0
}

func kickersExcluding(rankCounts [15]int, n int, exclude int) []int {
	kickers := make([]int, 0, n)
	for r := 14; r >= 2 && len(kickers) < n; r-- {
		if rankCounts[r] == 1 && r != exclude {
			kickers = append(kickers, r)
		}
	}
	return kickers
}

func descendingRanks(rankCounts [15]int, n int) []int {
	ranks := make([]int, 0, n)
	for r := 14; r >= 2 && len(ranks) < n; r-- {
		if rankCounts[r] == 1 {
			ranks = append(ranks, r)
		}
	}
	return ranks
}
