package game

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/lox/plo-core/internal/deck"
	"github.com/lox/plo-core/internal/evaluator"
)

// CreateInitialState builds six seats with equal chips and zeroed
// pointers, ready for StartNewHand. Every seat starts IsSittingOut so
// dealer rotation and blind posting skip it until the caller clears the
// flag for the seats that are actually occupied.
func CreateInitialState(buyIn, smallBlind, bigBlind int, rake RakeConfig) *HandState {
	players := make([]Player, 6)
	for i := range players {
		players[i] = Player{
			SeatIndex:    i,
			Chips:        buyIn,
			IsSittingOut: true,
		}
	}
	return &HandState{
		Players:         players,
		SmallBlind:      smallBlind,
		BigBlind:        bigBlind,
		DealerPosition:  -1,
		LastRaiserIndex: -1,
		Rake:            rake,
	}
}

func nextActiveSeat(state *HandState, from int) int {
	n := len(state.Players)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		p := &state.Players[idx]
		if p.Chips > 0 && !p.IsSittingOut {
			return idx
		}
	}
	return -1
}

// StartNewHand resets per-hand fields, rotates the dealer to the next
// seat with chips, posts blinds, and deals four hole cards to every live
// seat, per spec §4.4.
func StartNewHand(state *HandState, rng deck.Random) {
	state.CommunityCards = nil
	state.Pot = 0
	state.SidePots = nil
	state.HandHistory = nil
	state.Winners = nil
	state.RakeTaken = 0
	state.LastRaiserIndex = -1
	state.CurrentStreet = Preflop

	for i := range state.Players {
		p := &state.Players[i]
		p.Folded = p.IsSittingOut
		p.HasActed = p.IsSittingOut
		p.IsAllIn = false
		p.CurrentBet = 0
		p.TotalBetThisRound = 0
		p.HoleCards = nil
	}

	if state.DealerPosition == -1 {
		state.DealerPosition = nextActiveSeat(state, len(state.Players)-1)
	} else {
		state.DealerPosition = nextActiveSeat(state, state.DealerPosition)
	}

	assignPositions(state)

	liveSeats := 0
	for _, p := range state.Players {
		if !p.IsSittingOut {
			liveSeats++
		}
	}

	var sbIdx, bbIdx int
	if liveSeats == 2 {
		sbIdx = state.DealerPosition
		bbIdx = nextActiveSeat(state, sbIdx)
	} else {
		sbIdx = nextActiveSeat(state, state.DealerPosition)
		bbIdx = nextActiveSeat(state, sbIdx)
	}

	postBlind(state, sbIdx, state.SmallBlind)
	postBlind(state, bbIdx, state.BigBlind)

	state.CurrentBet = state.BigBlind
	state.MinRaise = state.BigBlind
	state.LastFullRaiseBet = state.BigBlind
	state.LastRaiserIndex = bbIdx

	state.Deck = deck.NewDeck(rng)
	state.Deck.Reset()
	for i := range state.Players {
		p := &state.Players[i]
		if p.IsSittingOut {
			continue
		}
		p.HoleCards = state.Deck.DealN(4)
	}

	if liveSeats == 2 {
		state.CurrentPlayerIndex = sbIdx
	} else {
		state.CurrentPlayerIndex = nextActiveSeat(state, bbIdx)
	}

	if !anyoneCanAct(state) {
		runOutBoardAndShowdown(state)
	}
}

func postBlind(state *HandState, seatIndex, amount int) {
	p := &state.Players[seatIndex]
	post := amount
	if post > p.Chips {
		post = p.Chips
	}
	p.Chips -= post
	p.CurrentBet = post
	p.TotalBetThisRound = post
	if p.Chips == 0 {
		p.IsAllIn = true
	}
}

// assignPositions recomputes Position labels clockwise from the dealer,
// skipping sitting-out seats, per spec §3 invariant 2.
func assignPositions(state *HandState) {
	live := make([]int, 0, 6)
	idx := state.DealerPosition
	for i := 0; i < len(state.Players); i++ {
		if !state.Players[idx].IsSittingOut {
			live = append(live, idx)
		}
		idx = (idx + 1) % len(state.Players)
	}

	labels := positionLabels(len(live))
	for i, seatIdx := range live {
		state.Players[seatIdx].Position = labels[i]
	}
}

func positionLabels(n int) []Position {
	switch {
	case n <= 2:
		return []Position{BTN, BB}[:n]
	case n == 3:
		return []Position{BTN, SB, BB}
	case n == 4:
		return []Position{BTN, SB, BB, UTG}
	case n == 5:
		return []Position{BTN, SB, BB, UTG, CO}
	default:
		return []Position{BTN, SB, BB, UTG, HJ, CO}
	}
}

func anyoneCanAct(state *HandState) bool {
	canAct := 0
	for _, p := range state.Players {
		if !p.Folded && !p.IsAllIn && !p.IsSittingOut {
			canAct++
		}
	}
	return canAct > 1
}

// ApplyAction validates and applies a single player decision, returning
// the updated valid-actions error contract: ok=false means the action was
// illegal and state is unchanged.
func ApplyAction(state *HandState, seatIndex int, action Action, amount int) bool {
	if state.IsHandComplete || seatIndex != state.CurrentPlayerIndex {
		return false
	}
	valid := GetValidActions(state, seatIndex)
	if !actionMatches(valid, action, amount) {
		return false
	}

	p := &state.Players[seatIndex]
	prevBet, prevFullRaiseBet := state.CurrentBet, state.LastFullRaiseBet

	switch action {
	case Fold:
		p.Folded = true

	case Check:
		// no chip movement

	case Call:
		toCall := ToCall(state, seatIndex)
		p.Chips -= toCall
		p.CurrentBet += toCall
		p.TotalBetThisRound += toCall
		if p.Chips == 0 {
			p.IsAllIn = true
		}

	case Bet, Raise:
		applyBetOrRaise(state, seatIndex, amount)

	case AllIn:
		applyAllIn(state, seatIndex)
	}

	p.HasActed = true
	state.HandHistory = append(state.HandHistory, HistoryEntry{
		SeatIndex: seatIndex,
		Action:    action,
		Amount:    amount,
		Street:    state.CurrentStreet,
	})

	// A raise that moved CurrentBet without being a full raise left
	// LastFullRaiseBet unchanged: every other live seat that has already
	// acted this street may now only call or fold.
	if state.CurrentBet > prevBet && state.LastFullRaiseBet == prevFullRaiseBet {
		for _, h := range state.HandHistory {
			q := &state.Players[h.SeatIndex]
			if h.Street == state.CurrentStreet && h.SeatIndex != seatIndex && !q.Folded && !q.IsAllIn {
				q.HasActed = true
			}
		}
	}

	advance(state)
	return true
}

func actionMatches(valid []ValidAction, action Action, amount int) bool {
	for _, va := range valid {
		if va.Action != action {
			continue
		}
		if va.MinAmount == 0 && va.MaxAmount == 0 {
			return true
		}
		return amount >= va.MinAmount && amount <= va.MaxAmount
	}
	return false
}

func applyBetOrRaise(state *HandState, seatIndex, amount int) {
	p := &state.Players[seatIndex]
	oldBet := state.CurrentBet

	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBetThisRound += amount
	if p.Chips == 0 {
		p.IsAllIn = true
	}

	newBet := p.CurrentBet
	state.CurrentBet = newBet

	raiseBy := newBet - oldBet
	if raiseBy >= state.MinRaise {
		state.MinRaise = raiseBy
		state.LastFullRaiseBet = newBet
		state.LastRaiserIndex = seatIndex
		reopenBetting(state, seatIndex)
	}
	// a short all-in tendered under the Bet/Raise tag (betting.go clamps
	// minTotal down to the stack when a full raise would exceed it) does
	// not reopen action for seats that already acted, mirroring applyAllIn.
}

func applyAllIn(state *HandState, seatIndex int) {
	p := &state.Players[seatIndex]
	oldBet := state.CurrentBet

	amount := p.Chips
	p.Chips = 0
	p.IsAllIn = true
	p.CurrentBet += amount
	p.TotalBetThisRound += amount

	if p.CurrentBet > state.CurrentBet {
		raiseBy := p.CurrentBet - oldBet
		state.CurrentBet = p.CurrentBet
		if raiseBy >= state.MinRaise {
			state.MinRaise = raiseBy
			state.LastFullRaiseBet = p.CurrentBet
			state.LastRaiserIndex = seatIndex
			reopenBetting(state, seatIndex)
		}
		// non-full all-in raise: CurrentBet moves, but MinRaise and
		// LastFullRaiseBet are left untouched and nobody's HasActed is
		// reset; ApplyAction then marks every seat that already acted
		// this street as acted, so per spec invariant 6 betting is not
		// re-opened for them.
	}
}

func reopenBetting(state *HandState, raiserSeat int) {
	for i := range state.Players {
		if i == raiserSeat {
			continue
		}
		p := &state.Players[i]
		if !p.Folded && !p.IsAllIn {
			p.HasActed = false
		}
	}
}

// advance moves the hand forward after an action: ends it if one player
// remains, advances the street if betting is settled, or hands the turn
// to the next seat that still needs to act.
func advance(state *HandState) {
	live := nonFoldedSeats(state)
	if len(live) == 1 {
		awardUncontested(state, live[0])
		return
	}

	if bettingComplete(state) {
		advanceStreet(state)
		return
	}

	next := findNextToAct(state)
	state.CurrentPlayerIndex = next
}

func nonFoldedSeats(state *HandState) []int {
	var seats []int
	for _, p := range state.Players {
		if !p.Folded && !p.IsSittingOut {
			seats = append(seats, p.SeatIndex)
		}
	}
	return seats
}

func bettingComplete(state *HandState) bool {
	active := 0
	for _, p := range state.Players {
		if !p.Folded && !p.IsAllIn && !p.IsSittingOut {
			active++
		}
	}
	if active == 0 {
		return true
	}

	for _, p := range state.Players {
		if p.Folded || p.IsAllIn || p.IsSittingOut {
			continue
		}
		if p.CurrentBet != state.CurrentBet || !p.HasActed {
			return false
		}
	}
	return true
}

func findNextToAct(state *HandState) int {
	n := len(state.Players)
	for i := 1; i <= n; i++ {
		idx := (state.CurrentPlayerIndex + i) % n
		p := &state.Players[idx]
		if p.Folded || p.IsAllIn || p.IsSittingOut {
			continue
		}
		if !p.HasActed || p.CurrentBet < state.CurrentBet {
			return idx
		}
	}
	return state.CurrentPlayerIndex
}

// advanceStreet deals the next community cards and resets per-street
// betting fields, or runs the hand to showdown if no further betting is
// possible.
func advanceStreet(state *HandState) {
	collectBetsIntoPot(state)

	switch state.CurrentStreet {
	case Preflop:
		state.CommunityCards = append(state.CommunityCards, state.Deck.DealN(3)...)
		state.CurrentStreet = Flop
	case Flop:
		state.CommunityCards = append(state.CommunityCards, state.Deck.DealN(1)...)
		state.CurrentStreet = Turn
	case Turn:
		state.CommunityCards = append(state.CommunityCards, state.Deck.DealN(1)...)
		state.CurrentStreet = River
	case River:
		determineWinnerAndComplete(state)
		return
	}

	for i := range state.Players {
		p := &state.Players[i]
		p.CurrentBet = 0
		if !p.Folded && !p.IsAllIn {
			p.HasActed = false
		}
	}
	state.CurrentBet = 0
	state.MinRaise = state.BigBlind
	state.LastFullRaiseBet = 0
	state.LastRaiserIndex = -1

	if !anyoneCanAct(state) {
		runOutBoardAndShowdown(state)
		return
	}

	// Position at the dealer so findNextToAct's clockwise scan begins at
	// dealerPosition+1, matching the postflop first-to-act rule.
	state.CurrentPlayerIndex = state.DealerPosition
	state.CurrentPlayerIndex = findNextToAct(state)
}

func collectBetsIntoPot(state *HandState) {
	for i := range state.Players {
		state.Pot += state.Players[i].CurrentBet
		state.Players[i].CurrentBet = 0
	}
}

// runOutBoardAndShowdown deals any remaining community cards without
// further betting, then goes to showdown — used when every live player
// is already all-in or only one can still act.
func runOutBoardAndShowdown(state *HandState) {
	for len(state.CommunityCards) < 5 {
		n := 1
		if len(state.CommunityCards) == 0 {
			n = 3
		}
		state.CommunityCards = append(state.CommunityCards, state.Deck.DealN(n)...)
	}
	determineWinnerAndComplete(state)
}

// determineWinnerAndComplete implements determineWinner from spec §4.4:
// awards uncontested pots without rake, evaluates PLO hands for
// contested pots, splits ties evenly (remainder to the first tied winner
// in seat order), and applies rake to contested showdown distributions.
func determineWinnerAndComplete(state *HandState) {
	live := nonFoldedSeats(state)
	if len(live) == 1 {
		awardUncontested(state, live[0])
		return
	}

	for i := range state.Players {
		state.Players[i].CurrentBet = 0
	}

	var board [5]deck.Card
	copy(board[:], state.CommunityCards)

	pots := CalculateSidePots(state.Players)
	// Reaching this branch already means ≥2 non-folded players contested a
	// complete board, i.e. a genuine showdown past the flop — the only
	// case spec invariant 8 ever charges rake.
	rakeEligible := true

	var winners []Winner
	totalRake := 0

	for _, pot := range pots {
		if len(pot.Eligible) == 1 {
			winners = append(winners, Winner{SeatIndex: pot.Eligible[0], Amount: pot.Amount})
			state.Players[pot.Eligible[0]].Chips += pot.Amount
			continue
		}

		type scored struct {
			seat int
			rank evaluator.HandRank
		}
		var entries []scored
		for _, seat := range pot.Eligible {
			p := &state.Players[seat]
			var hole [4]deck.Card
			copy(hole[:], p.HoleCards)
			entries = append(entries, scored{seat: seat, rank: evaluator.EvaluatePLO(hole, board)})
		}
		sort.Slice(entries, func(i, j int) bool {
			return evaluator.Compare(entries[i].rank, entries[j].rank) > 0
		})

		best := entries[0].rank
		var tiedSeats []int
		for _, e := range entries {
			if evaluator.Compare(e.rank, best) == 0 {
				tiedSeats = append(tiedSeats, e.seat)
			}
		}
		sort.Ints(tiedSeats)

		distributable := pot.Amount
		rake := 0
		if rakeEligible && len(live) >= 2 {
			rake = state.Rake.Cap
			byPercent := int(float64(pot.Amount) * state.Rake.Percent)
			if byPercent < rake {
				rake = byPercent
			}
			if rake > distributable {
				rake = distributable
			}
			distributable -= rake
			totalRake += rake
		}

		share := distributable / len(tiedSeats)
		remainder := distributable - share*len(tiedSeats)
		handName := best.Category.String()

		for i, seat := range tiedSeats {
			amount := share
			if i == 0 {
				amount += remainder
			}
			winners = append(winners, Winner{SeatIndex: seat, Amount: amount, HandName: handName})
			state.Players[seat].Chips += amount
		}
	}

	state.Winners = winners
	state.RakeTaken = totalRake
	state.Pot = 0
	state.SidePots = pots
	state.IsHandComplete = true
	state.CurrentStreet = Showdown
}

func awardUncontested(state *HandState, seatIndex int) {
	amount := 0
	for i := range state.Players {
		amount += state.Players[i].TotalBetThisRound
		state.Players[i].CurrentBet = 0
	}
	state.Players[seatIndex].Chips += amount
	state.Winners = []Winner{{SeatIndex: seatIndex, Amount: amount}}
	state.Pot = 0
	state.IsHandComplete = true
	state.CurrentStreet = Showdown
	log.Debug("hand ended uncontested", "seat", seatIndex, "amount", amount)
}
