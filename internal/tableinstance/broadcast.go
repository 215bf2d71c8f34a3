package tableinstance

import (
	"github.com/lox/plo-core/internal/game"
	"github.com/lox/plo-core/internal/protocol"
)

// projectState builds the ClientGameState projection for recipientIdentity
// per spec §6's "ClientGameState projection rules": every seat's hole
// cards are stripped except the recipient's own. recipientIdentity=""
// yields the spectator/no-hole-cards view.
func (t *TableInstance) projectState(recipientIdentity string) protocol.ClientGameState {
	seats := make([]protocol.SeatView, len(t.seats))
	for i, s := range t.seats {
		if !s.Occupied {
			seats[i] = protocol.SeatView{SeatIndex: i, Empty: true}
			continue
		}
		view := protocol.SeatView{
			SeatIndex:    i,
			Identity:     maskIdentity(s.Seat),
			DisplayName:  maskName(s.Seat),
			Chips:        s.Seat.Chips,
			IsSittingOut: s.Seat.WaitingForNextHand,
		}
		if t.hand != nil {
			p := t.hand.Players[i]
			view.Position = p.Position.String()
			view.CurrentBet = p.CurrentBet
			view.Folded = p.Folded
			view.IsAllIn = p.IsAllIn
			if s.Seat.Identity == recipientIdentity && recipientIdentity != "" {
				view.HoleCards = cardStrings(p.HoleCards)
			}
		}
		seats[i] = view
	}

	state := protocol.ClientGameState{
		TableID:          t.ID,
		Seats:            seats,
		IsHandInProgress: t.hand != nil,
	}
	if t.hand != nil {
		state.CurrentPlayerSeat = t.hand.CurrentPlayerIndex
		state.CurrentBet = t.hand.CurrentBet
		state.MinRaise = t.hand.MinRaise
		state.Pot = t.hand.Pot
		state.CommunityCards = cardStrings(t.hand.CommunityCards)
		state.Street = t.hand.CurrentStreet.String()
		state.SidePots = sidePotViews(t.hand.SidePots)
	}
	if t.pending != nil {
		state.ActionTimeoutAt = t.pending.deadline.UnixMilli()
		state.ActionTimeoutMs = int(t.cfg.ActionTimeout.Milliseconds())
	}
	return state
}

func sidePotViews(pots []game.SidePot) []protocol.SidePotView {
	if len(pots) == 0 {
		return nil
	}
	views := make([]protocol.SidePotView, len(pots))
	for i, p := range pots {
		views[i] = protocol.SidePotView{Amount: p.Amount, Eligible: append([]int(nil), p.Eligible...)}
	}
	return views
}

// maskIdentity/maskName implement spec §6's "Masked-name players appear
// with an obfuscated display name unless they opted out" rule for the
// identity/name pair shown to other seats.
func maskIdentity(seat game.SeatInfo) string {
	if seat.NameMasked {
		return "player-" + shortHash(seat.Identity)
	}
	return seat.Identity
}

func maskName(seat game.SeatInfo) string {
	if seat.NameMasked {
		return "Player " + shortHash(seat.Identity)
	}
	return seat.DisplayName
}

func shortHash(s string) string {
	h := 2166136261
	for i := 0; i < len(s); i++ {
		h = (h ^ int(s[i])) * 16777619
	}
	if h < 0 {
		h = -h
	}
	return string(rune('A' + h%26))
}

func (t *TableInstance) sendStateTo(seatIdx int) {
	identity := ""
	if t.seats[seatIdx].Occupied {
		identity = t.seats[seatIdx].Seat.Identity
	}
	t.send(t.conns[seatIdx], protocol.EventGameState, protocol.GameStatePayload{State: t.projectState(identity)})
}

// broadcastState sends each seated connection its own hole-card-aware
// projection and sends spectators the no-hole-cards projection, so that
// snapshot_N (per spec §5's ordering guarantee) is always broadcast before
// any action dependent on it can be processed — this method only ever runs
// inside a queue task.
func (t *TableInstance) broadcastState() {
	for i, s := range t.seats {
		if !s.Occupied {
			continue
		}
		t.sendStateTo(i)
	}
	spectatorView := t.projectState("")
	for _, c := range t.spectators {
		t.send(c, protocol.EventGameState, protocol.GameStatePayload{State: spectatorView})
	}
}
