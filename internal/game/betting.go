package game

// ToCall returns how many additional chips the player at seatIndex must
// commit this street to match state.CurrentBet.
func ToCall(state *HandState, seatIndex int) int {
	p := &state.Players[seatIndex]
	toCall := state.CurrentBet - p.CurrentBet
	if toCall < 0 {
		toCall = 0
	}
	if toCall > p.Chips {
		toCall = p.Chips
	}
	return toCall
}

// potOnTable is the amount already committed to the pot: chips collected
// from earlier streets (state.Pot) plus every seat's uncollected bet this
// street, mirroring the teacher's GetPotsWithUncollected.
func potOnTable(state *HandState) int {
	total := state.Pot
	for _, p := range state.Players {
		total += p.CurrentBet
	}
	return total
}

// potLimitMax returns the largest legal total bet size (pot-limit cap):
// toCall to match the current bet, plus the resulting pot (including the
// hypothetical call), per the spec's `toCall + (pot + toCall)` formula.
func potLimitMax(state *HandState, seatIndex int) int {
	toCall := ToCall(state, seatIndex)
	return toCall + (potOnTable(state) + toCall)
}

// GetValidActions returns the actions legal for the seat to act, along
// with the chip bounds that apply to bet/raise/call/all-in.
func GetValidActions(state *HandState, seatIndex int) []ValidAction {
	p := &state.Players[seatIndex]
	if p.Folded || p.IsAllIn || p.Chips == 0 {
		return nil
	}

	var actions []ValidAction
	actions = append(actions, ValidAction{Action: Fold})

	toCall := ToCall(state, seatIndex)
	raiseEligible := !p.HasActed || state.CurrentBet < state.LastFullRaiseBet

	if toCall == 0 {
		actions = append(actions, ValidAction{Action: Check})
	} else {
		if toCall >= p.Chips {
			actions = append(actions, ValidAction{Action: AllIn, MinAmount: p.Chips, MaxAmount: p.Chips})
			return actions
		}
		actions = append(actions, ValidAction{Action: Call, MinAmount: toCall, MaxAmount: toCall})
	}

	potCap := potLimitMax(state, seatIndex)

	if raiseEligible && p.Chips > toCall {
		maxTotal := potCap
		if maxTotal > p.Chips {
			maxTotal = p.Chips
		}

		var minTotal int
		actionKind := Raise
		if state.CurrentBet == 0 {
			actionKind = Bet
			minTotal = state.BigBlind
		} else {
			minTotal = toCall + state.MinRaise
		}
		if minTotal > maxTotal {
			minTotal = maxTotal
		}

		if maxTotal > toCall {
			actions = append(actions, ValidAction{Action: actionKind, MinAmount: minTotal, MaxAmount: maxTotal})
		}
	}

	// All-in is only its own action kind when pushing every chip does not
	// exceed the pot-limit cap; a larger stack cannot push everything and
	// can commit at most potCap, through Bet/Raise's MaxAmount.
	if p.Chips > 0 && p.Chips <= potCap {
		actions = append(actions, ValidAction{Action: AllIn, MinAmount: p.Chips, MaxAmount: p.Chips})
	}

	return actions
}

// hasAction reports whether actions contains the given Action kind.
func hasAction(actions []ValidAction, a Action) bool {
	for _, va := range actions {
		if va.Action == a {
			return true
		}
	}
	return false
}
