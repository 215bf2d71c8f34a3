package bot

import (
	"fmt"

	"github.com/lox/plo-core/internal/deck"
	"github.com/lox/plo-core/internal/game"
)

// preflopScore rates a 4-card hole over orthogonal PLO factors and
// returns a value in [0,1]. Higher is stronger. Weights are an
// implementation choice (spec §4.7 pins only relative ordering and
// monotonicity, not exact values).
func preflopScore(hole []deck.Card, think *thinking) float64 {
	if len(hole) != 4 {
		return 0
	}

	nuttiness := nuttinessScore(hole)
	connectivity := connectivityScore(hole)
	suitedness := suitednessScore(hole)
	bonus := bonusComboScore(hole)
	rundown := rundownScore(hole)

	think.add(fmt.Sprintf("hole %s: nuttiness=%.2f connectivity=%.2f suitedness=%.2f bonus=%.2f rundown=%.2f",
		cardsToString(hole), nuttiness, connectivity, suitedness, bonus, rundown))

	score := 0.35*nuttiness + 0.2*connectivity + 0.2*suitedness + 0.15*bonus + 0.1*rundown
	return clampScore(score)
}

// nuttinessScore rewards high-card density and pairs of high cards — the
// raw material for top sets and top two pair.
func nuttinessScore(hole []deck.Card) float64 {
	total := 0.0
	pairBonus := 0.0
	counts := make(map[deck.Rank]int)
	for _, c := range hole {
		total += float64(c.Rank-deck.Two) / float64(deck.Ace-deck.Two)
		counts[c.Rank]++
	}
	for rank, n := range counts {
		if n >= 2 && rank >= deck.Jack {
			pairBonus += 0.25
		}
	}
	avg := total / 4
	return clampScore(avg*0.8 + pairBonus)
}

// connectivityScore rewards hole cards whose ranks are close together,
// since PLO hands need 2 cards to combine with 3 board cards for
// straights — tight rank gaps make more boards connect.
func connectivityScore(hole []deck.Card) float64 {
	ranks := make([]int, 4)
	for i, c := range hole {
		ranks[i] = int(c.Rank)
	}
	minGap := 999
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			gap := ranks[i] - ranks[j]
			if gap < 0 {
				gap = -gap
			}
			if gap > 0 && gap < minGap {
				minGap = gap
			}
		}
	}
	switch {
	case minGap <= 1:
		return 1.0
	case minGap == 2:
		return 0.7
	case minGap == 3:
		return 0.4
	default:
		return 0.1
	}
}

// suitednessScore rewards double-suited holes (two flush draws live) over
// single-suited or rainbow hands.
func suitednessScore(hole []deck.Card) float64 {
	counts := make(map[deck.Suit]int)
	for _, c := range hole {
		counts[c.Suit]++
	}
	suitedPairs := 0
	for _, n := range counts {
		if n == 2 {
			suitedPairs++
		}
	}
	switch suitedPairs {
	case 2:
		return 1.0 // double-suited
	case 1:
		return 0.55
	default:
		return 0.1
	}
}

// bonusComboScore recognizes named premium PLO combinations: AAxx
// double-suited, AAJTds, KKQQds, and similar high-pair-plus-wrap shapes.
func bonusComboScore(hole []deck.Card) float64 {
	counts := make(map[deck.Rank]int)
	for _, c := range hole {
		counts[c.Rank]++
	}

	hasAces := counts[deck.Ace] == 2
	hasKings := counts[deck.King] == 2
	hasQueens := counts[deck.Queen] == 2

	doubleSuited := suitednessScore(hole) == 1.0

	switch {
	case hasAces && doubleSuited:
		return 1.0
	case hasKings && hasQueens:
		return 0.85
	case hasAces:
		return 0.7
	case hasKings && doubleSuited:
		return 0.6
	default:
		return 0.2
	}
}

// rundownScore rewards four consecutive or near-consecutive ranks (a
// "rundown"), which flop the most straight-and-draw combinations.
func rundownScore(hole []deck.Card) float64 {
	ranks := make([]int, 4)
	for i, c := range hole {
		ranks[i] = int(c.Rank)
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if ranks[j] < ranks[i] {
				ranks[i], ranks[j] = ranks[j], ranks[i]
			}
		}
	}
	span := ranks[3] - ranks[0]
	switch {
	case span == 3:
		return 1.0 // perfectly consecutive, e.g. 7-8-9-T
	case span == 4:
		return 0.6 // one gap, e.g. 7-8-9-J
	case span <= 5:
		return 0.3
	default:
		return 0.05
	}
}

func decidePreflop(state *game.HandState, p *game.Player, valid []game.ValidAction, ctx Context, think *thinking) Decision {
	score := preflopScore(p.HoleCards, think)
	score = clampScore(score + positionBonus(p.Position))
	think.add(fmt.Sprintf("position %s adds %.2f, total score %.2f", p.Position, positionBonus(p.Position), score))

	personality := ctx.Personality
	if personality == (Personality{}) {
		personality = DefaultPersonality
	}

	facingBet := state.CurrentBet > p.CurrentBet
	canRaise := hasGameAction(valid, game.Raise) || hasGameAction(valid, game.Bet)

	if facingBet && score < personality.FoldThreshold {
		think.add("facing a bet with a below-threshold hand, folding")
		return Decision{Action: game.Fold}
	}

	if score >= personality.RaiseThreshold && canRaise {
		raiseAction := raiseActionKind(valid)
		amount := sizeRaise(state, p, raiseAction, personality, ctx)
		// Mix in some calls at the top of the range so the strategy isn't
		// perfectly predictable, reading the mix coin from the injected RNG.
		if ctx.Rng != nil && ctx.Rng.Float64() < 0.2 && hasGameAction(valid, game.Call) {
			think.add("mixing in a call instead of a raise at the top of the range")
			return callOrCheck(valid, think)
		}
		think.add(fmt.Sprintf("strong hand (score %.2f >= %.2f threshold), raising to %d", score, personality.RaiseThreshold, amount))
		return Decision{Action: raiseAction, Amount: amount}
	}

	return callOrCheck(valid, think)
}

func callOrCheck(valid []game.ValidAction, think *thinking) Decision {
	if hasGameAction(valid, game.Check) {
		think.add("checking, no bet to face")
		return Decision{Action: game.Check}
	}
	if va, ok := findAction(valid, game.Call); ok {
		think.add(fmt.Sprintf("calling %d", va.MinAmount))
		return Decision{Action: game.Call, Amount: va.MinAmount}
	}
	think.add("no check or call available, folding")
	return Decision{Action: game.Fold}
}

func hasGameAction(valid []game.ValidAction, a game.Action) bool {
	_, ok := findAction(valid, a)
	return ok
}

func findAction(valid []game.ValidAction, a game.Action) (game.ValidAction, bool) {
	for _, va := range valid {
		if va.Action == a {
			return va, true
		}
	}
	return game.ValidAction{}, false
}

func raiseActionKind(valid []game.ValidAction) game.Action {
	if hasGameAction(valid, game.Bet) {
		return game.Bet
	}
	return game.Raise
}

// sizeRaise picks a pot fraction scaled by personality aggression, clamped
// into the action's legal [min,max] bounds.
func sizeRaise(state *game.HandState, p *game.Player, action game.Action, personality Personality, ctx Context) int {
	valid := game.GetValidActions(state, p.SeatIndex)
	va, ok := findAction(valid, action)
	if !ok {
		return 0
	}
	target := int(float64(va.MaxAmount) * 0.65 * personality.AggressionFactor)
	if target < va.MinAmount {
		target = va.MinAmount
	}
	if target > va.MaxAmount {
		target = va.MaxAmount
	}
	return target
}
