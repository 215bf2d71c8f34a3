// Package bot implements a deterministic, testable Pot-Limit Omaha
// decision function: preflop hand-strength scoring and postflop
// board-texture/made-hand/draw heuristics, in the spirit of the
// teacher's internal/game AIEngine but rebuilt for PLO's four-hole-card
// hands and driven entirely by injected randomness so tests never flake.
package bot

import (
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lox/plo-core/internal/deck"
	"github.com/lox/plo-core/internal/game"
)

// Random is the PRNG surface Decide needs — satisfied by *math/rand.Rand.
type Random interface {
	Intn(n int) int
	Float64() float64
}

// PersonalityID tags a bot's behavioral profile, used as a registry key
// rather than runtime name dispatch (spec §9's re-architecture note on
// "runtime-dispatch personalities via name lookup").
type PersonalityID int

const (
	Balanced PersonalityID = iota
	TightAggressive
	LoosePassive
)

// Personality parameterizes the thresholds Decide uses. The zero value
// (Balanced's settings) is a sane default for tests.
type Personality struct {
	ID               PersonalityID
	RaiseThreshold   float64 // preflop score above which we raise
	FoldThreshold    float64 // preflop score below which we fold to aggression
	BluffFrequency   float64 // probability of firing a postflop bluff with air
	AggressionFactor float64 // scales postflop bet sizing
}

// DefaultPersonality matches a straightforward, unexploitable baseline.
var DefaultPersonality = Personality{
	ID:               Balanced,
	RaiseThreshold:   0.75,
	FoldThreshold:    0.55,
	BluffFrequency:   0.15,
	AggressionFactor: 1.0,
}

// Context carries the optional personality/opponent-model inputs the
// spec allows Decide to consume beyond the bare HandState.
type Context struct {
	Personality Personality
	Rng         Random
}

// Decision is a bot's chosen action plus the human-readable reasoning
// trail, mirroring the teacher's AIDecision/ThinkingContext pattern.
type Decision struct {
	Action    game.Action
	Amount    int
	Reasoning string
}

type thinking struct {
	notes []string
}

func (t *thinking) add(note string) {
	t.notes = append(t.notes, note)
}

func (t *thinking) String() string {
	if len(t.notes) == 0 {
		return "no clear reasoning"
	}
	return strings.Join(t.notes, "; ")
}

// HandStrength buckets a preflop or postflop evaluation for branching.
type HandStrength int

const (
	VeryWeak HandStrength = iota
	Weak
	Medium
	Strong
	VeryStrong
)

// BoardTexture buckets how coordinated the board is.
type BoardTexture int

const (
	DryBoard BoardTexture = iota
	SemiWetBoard
	WetBoard
	VeryWetBoard
)

// Decide is the pure (state, seat, context) -> action contract from spec
// §4.7. It never mutates state and never reads real time or an
// unseeded RNG; ctx.Rng is the sole source of randomness.
func Decide(state *game.HandState, seatIndex int, ctx Context) Decision {
	valid := game.GetValidActions(state, seatIndex)
	if len(valid) == 0 {
		return Decision{Action: game.Fold, Reasoning: "no valid actions available"}
	}

	think := &thinking{}
	p := &state.Players[seatIndex]

	var decision Decision
	if state.CurrentStreet == game.Preflop {
		decision = decidePreflop(state, p, valid, ctx, think)
	} else {
		decision = decidePostflop(state, p, valid, ctx, think)
	}
	decision.Reasoning = think.String()

	log.Debug("bot decision",
		"seat", seatIndex,
		"street", state.CurrentStreet.String(),
		"action", decision.Action.String(),
		"amount", decision.Amount,
		"reasoning", decision.Reasoning)

	return decision
}

// positionBonus rewards acting later, matching the teacher's
// getPositionFactor concept but over PLO's six labeled positions.
func positionBonus(pos game.Position) float64 {
	switch pos {
	case BTN:
		return 0.12
	case CO:
		return 0.08
	case HJ:
		return 0.04
	case BB:
		return 0.02
	case SB:
		return 0.0
	default: // UTG
		return -0.05
	}
}

// BTN/CO/HJ/SB/BB aliases keep positionBonus's switch readable without
// importing game's Position constants under a different name.
const (
	BTN = game.BTN
	SB  = game.SB
	BB  = game.BB
	CO  = game.CO
	HJ  = game.HJ
)

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func cardsToString(cards []deck.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
