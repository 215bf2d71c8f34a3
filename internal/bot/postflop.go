package bot

import (
	"fmt"

	"github.com/lox/plo-core/internal/deck"
	"github.com/lox/plo-core/internal/evaluator"
	"github.com/lox/plo-core/internal/game"
)

func decidePostflop(state *game.HandState, p *game.Player, valid []game.ValidAction, ctx Context, think *thinking) Decision {
	personality := ctx.Personality
	if personality == (Personality{}) {
		personality = DefaultPersonality
	}

	texture := classifyBoard(state.CommunityCards)
	strength, rank := classifyMadeHand(p.HoleCards, state.CommunityCards)
	think.add(fmt.Sprintf("board %s texture=%d made-hand=%s (%s)",
		cardsToString(state.CommunityCards), texture, strength_string(strength), rank.Category))

	facingBet := state.CurrentBet > p.CurrentBet
	canBet := hasGameAction(valid, game.Bet) || hasGameAction(valid, game.Raise)

	switch strength {
	case VeryStrong:
		if canBet {
			amount := sizePostflopBet(state, p, personality, 0.75)
			think.add("nuts or near-nuts, betting big for value")
			return Decision{Action: betActionKind(valid), Amount: amount}
		}
		return callOrCheck(valid, think)

	case Strong:
		if canBet {
			amount := sizePostflopBet(state, p, personality, 0.55)
			think.add("strong made hand, betting for value")
			return Decision{Action: betActionKind(valid), Amount: amount}
		}
		return callOrCheck(valid, think)

	case Medium:
		if facingBet {
			think.add("medium strength facing a bet, calling")
			return callOrCheck(valid, think)
		}
		return callOrCheck(valid, think)

	case Weak, VeryWeak:
		if facingBet {
			think.add("weak hand facing a bet, folding")
			if hasGameAction(valid, game.Fold) {
				return Decision{Action: game.Fold}
			}
			return callOrCheck(valid, think)
		}
		if canBet && !facingBet && ctx.Rng != nil && ctx.Rng.Float64() < personality.BluffFrequency {
			scariness := boardScariness(texture)
			amount := sizePostflopBet(state, p, personality, 0.5+0.25*scariness)
			think.add("air with no bet in front, firing a bluff sized to board scariness")
			return Decision{Action: betActionKind(valid), Amount: amount}
		}
		return callOrCheck(valid, think)
	}

	return callOrCheck(valid, think)
}

func strength_string(hs HandStrength) string {
	switch hs {
	case VeryWeak:
		return "very weak"
	case Weak:
		return "weak"
	case Medium:
		return "medium"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very strong"
	default:
		return "unknown"
	}
}

// classifyBoard analyzes pairing, suitedness, and connectivity of the
// community cards, mirroring the teacher's BoardTexture concept.
func classifyBoard(board []deck.Card) BoardTexture {
	if len(board) < 3 {
		return DryBoard
	}

	rankCounts := make(map[deck.Rank]int)
	suitCounts := make(map[deck.Suit]int)
	ranks := make([]int, 0, len(board))
	for _, c := range board {
		rankCounts[c.Rank]++
		suitCounts[c.Suit]++
		ranks = append(ranks, int(c.Rank))
	}

	paired := false
	for _, n := range rankCounts {
		if n >= 2 {
			paired = true
		}
	}

	maxSuit := 0
	for _, n := range suitCounts {
		if n > maxSuit {
			maxSuit = n
		}
	}
	flushy := maxSuit >= 3

	for i := 0; i < len(ranks); i++ {
		for j := i + 1; j < len(ranks); j++ {
			if ranks[j] < ranks[i] {
				ranks[i], ranks[j] = ranks[j], ranks[i]
			}
		}
	}
	connected := ranks[len(ranks)-1]-ranks[0] <= 4

	switch {
	case flushy && connected:
		return VeryWetBoard
	case flushy || connected:
		return WetBoard
	case paired:
		return SemiWetBoard
	default:
		return DryBoard
	}
}

func boardScariness(texture BoardTexture) float64 {
	switch texture {
	case VeryWetBoard:
		return 1.0
	case WetBoard:
		return 0.66
	case SemiWetBoard:
		return 0.4
	default:
		return 0.15
	}
}

// classifyMadeHand evaluates the best current PLO hand and buckets it by
// category, plus folds in draw detection: a hand one card short of a
// flush or straight is promoted to at least Medium since it still has
// substantial equity.
func classifyMadeHand(hole []deck.Card, board []deck.Card) (HandStrength, evaluator.HandRank) {
	if len(hole) != 4 || len(board) < 3 {
		return VeryWeak, evaluator.HandRank{}
	}

	if len(board) == 5 {
		var h [4]deck.Card
		var b [5]deck.Card
		copy(h[:], hole)
		copy(b[:], board)
		rank := evaluator.EvaluatePLO(h, b)
		return bucketRank(rank), rank
	}

	// EvaluatePLO requires a complete 5-card board; on the flop/turn we
	// can't run it yet, so made-hand strength is approximated from how
	// each single hole card's rank pairs with the board (pair/trips/quads),
	// and draw potential is folded in separately below.
	strength := bucketPartialMatch(hole, board)
	if hasStrongDraw(hole, board) && strength < Strong {
		strength = Medium
	}
	return strength, evaluator.HandRank{}
}

// bucketPartialMatch scores how hole-card ranks pair up with board ranks
// when a full 5-card evaluation isn't yet possible. Each hole card is
// counted on its own against the board; a pocket pair in the hole is not
// counted as a pair.
func bucketPartialMatch(hole []deck.Card, board []deck.Card) HandStrength {
	boardRankCount := make(map[deck.Rank]int)
	for _, c := range board {
		boardRankCount[c.Rank]++
	}

	bestMatch := 0 // total copies of a hole rank once combined with the board
	for _, h := range hole {
		total := boardRankCount[h.Rank] + 1
		if total > bestMatch {
			bestMatch = total
		}
	}

	switch {
	case bestMatch >= 4:
		return VeryStrong
	case bestMatch == 3:
		return Strong
	case bestMatch == 2:
		return Medium
	default:
		return Weak
	}
}

func bucketRank(rank evaluator.HandRank) HandStrength {
	switch {
	case rank.Category >= evaluator.FullHouse:
		return VeryStrong
	case rank.Category >= evaluator.ThreeOfAKind:
		return Strong
	case rank.Category == evaluator.TwoPair:
		return Medium
	case rank.Category == evaluator.OnePair:
		return Weak
	default:
		return VeryWeak
	}
}

// hasStrongDraw reports whether exactly four of the combined hole and board
// cards share a suit, or whether four or more consecutive ranks appear
// among them. It does not check that the draw uses exactly 2 hole cards,
// nor that a straight draw is open-ended.
func hasStrongDraw(hole []deck.Card, board []deck.Card) bool {
	suitCounts := make(map[deck.Suit]int)
	for _, c := range append(append([]deck.Card{}, hole...), board...) {
		suitCounts[c.Suit]++
	}
	for _, n := range suitCounts {
		if n == 4 {
			return true
		}
	}

	ranks := make(map[int]bool)
	for _, c := range append(append([]deck.Card{}, hole...), board...) {
		ranks[int(c.Rank)] = true
	}
	consecutive := 0
	best := 0
	for r := 2; r <= 14; r++ {
		if ranks[r] {
			consecutive++
			if consecutive > best {
				best = consecutive
			}
		} else {
			consecutive = 0
		}
	}
	return best >= 4
}

func betActionKind(valid []game.ValidAction) game.Action {
	if hasGameAction(valid, game.Bet) {
		return game.Bet
	}
	return game.Raise
}

func sizePostflopBet(state *game.HandState, p *game.Player, personality Personality, potFraction float64) int {
	valid := game.GetValidActions(state, p.SeatIndex)
	action := betActionKind(valid)
	va, ok := findAction(valid, action)
	if !ok {
		return 0
	}
	target := int(float64(va.MaxAmount) * potFraction * personality.AggressionFactor)
	if target < va.MinAmount {
		target = va.MinAmount
	}
	if target > va.MaxAmount {
		target = va.MaxAmount
	}
	return target
}
