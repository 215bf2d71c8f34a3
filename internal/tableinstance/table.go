// Package tableinstance implements the single-writer concurrency core of
// spec §4.6: one TableInstance per table, backed by a SerialQueue so every
// mutation — sit, stand, submitted action, timeout expiry, hand advance,
// disconnect, fast-fold — runs atomically in enqueue order. Grounded on the
// teacher's internal/server/{pool,hand_runner,connection}.go, generalized
// from "one hand, many goroutines coordinated by a BotPool" into "one
// persistent per-table serial queue that owns the hand lifecycle itself".
package tableinstance

import (
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/plo-core/internal/deck"
	"github.com/lox/plo-core/internal/game"
	"github.com/lox/plo-core/internal/handrecord"
	"github.com/lox/plo-core/internal/protocol"
)

// MatchmakingKey buckets tables by the dimensions spec §4.6 and §4.8 name:
// variant, stakes, and fast-fold mode.
type MatchmakingKey struct {
	Variant    string
	SmallBlind int
	BigBlind   int
	FastFold   bool
}

func (k MatchmakingKey) String() string {
	mode := "standard"
	if k.FastFold {
		mode = "fastfold"
	}
	return fmt.Sprintf("%s:%d/%d:%s", k.Variant, k.SmallBlind, k.BigBlind, mode)
}

// Config parameterizes one table's timers and chip economy.
type Config struct {
	BuyIn          int
	ActionTimeout  time.Duration
	InterHandDelay time.Duration
	Rake           game.RakeConfig
}

// Reseater is the Matchmaker-shaped collaborator a TableInstance calls into
// when a fast-fold or a seat departure needs the player placed on another
// table. Declared here (rather than importing internal/matchmaker) so the
// dependency points the way spec §2's table says it should: Matchmaker
// depends on TableInstance, not the reverse.
type Reseater interface {
	Requeue(identity, displayName string, key MatchmakingKey, buyIn int)
}

type pendingAction struct {
	seatIndex int
	street    game.Street
	deadline  time.Time
	timer     *quartz.Timer
}

// TableInstance owns six seats, at most one live HandState, and the serial
// queue that is the sole writer of both. Per spec §5, every exported
// mutating method enqueues a task rather than touching state directly.
type TableInstance struct {
	ID  string
	Key MatchmakingKey

	cfg Config

	seats        [6]game.SeatOccupant
	conns        [6]ConnectionHandle
	pendingLeave [6]bool
	spectators   map[string]ConnectionHandle

	hand      *game.HandState
	dealerPos int

	pending *pendingAction

	queue    *SerialQueue
	clock    quartz.Clock
	rng      deck.Random
	reseater Reseater
	sink     handrecord.Sink
	logger   zerolog.Logger

	handStartedAt time.Time
}

// New creates a TableInstance and starts its serial queue.
func New(id string, key MatchmakingKey, cfg Config, clock quartz.Clock, rng deck.Random, reseater Reseater, sink handrecord.Sink, logger zerolog.Logger) *TableInstance {
	if sink == nil {
		sink = handrecord.NullSink{}
	}
	t := &TableInstance{
		ID:         id,
		Key:        key,
		cfg:        cfg,
		spectators: make(map[string]ConnectionHandle),
		dealerPos:  -1,
		queue:      NewSerialQueue(64),
		clock:      clock,
		rng:        rng,
		reseater:   reseater,
		sink:       sink,
		logger:     logger.With().Str("component", "tableinstance").Str("table_id", id).Logger(),
	}
	t.queue.Start()
	return t
}

// QueueSize reports the table's serial queue backlog (spec §4.5's `size`).
func (t *TableInstance) QueueSize() int { return t.queue.Size() }

// Stop halts the table's serial queue. Intended for teardown of idle
// tables by the Matchmaker (spec §4.8's "torn down to free resources").
func (t *TableInstance) Stop() { t.queue.Stop() }

// SeatCount returns the number of occupied seats, counted inside the
// table's serial queue.
func (t *TableInstance) SeatCount() int {
	var n int
	_ = t.queue.SubmitAndWait(func() error {
		for _, s := range t.seats {
			if s.Occupied {
				n++
			}
		}
		return nil
	})
	return n
}

// HasSeat reports whether identity currently occupies a seat at this
// table, used by the transport layer to route table:leave/game:action
// events without it having to track seat assignments itself.
func (t *TableInstance) HasSeat(identity string) bool {
	var found bool
	_ = t.queue.SubmitAndWait(func() error {
		_, found = t.seatIndexFor(identity)
		return nil
	})
	return found
}

func actionFromString(s string) (game.Action, bool) {
	switch s {
	case "fold":
		return game.Fold, true
	case "check":
		return game.Check, true
	case "call":
		return game.Call, true
	case "bet":
		return game.Bet, true
	case "raise":
		return game.Raise, true
	case "allin":
		return game.AllIn, true
	default:
		return game.Fold, false
	}
}

func (t *TableInstance) seatIndexFor(identity string) (int, bool) {
	for i, s := range t.seats {
		if s.Occupied && s.Seat.Identity == identity {
			return i, true
		}
	}
	return -1, false
}

func (t *TableInstance) send(conn ConnectionHandle, evt protocol.EventType, payload any) {
	if conn == nil {
		return
	}
	env, err := protocol.NewEnvelope(evt, payload)
	if err != nil {
		t.logger.Error().Err(err).Str("event", string(evt)).Msg("failed to encode event")
		return
	}
	if err := conn.Send(env); err != nil {
		t.logger.Debug().Err(err).Str("event", string(evt)).Msg("broadcast send failed, dropping connection")
		for i := range t.conns {
			if t.conns[i] == conn {
				t.conns[i] = nil
				t.seats[i].Seat.Connected = false
			}
		}
		for id, c := range t.spectators {
			if c == conn {
				delete(t.spectators, id)
			}
		}
	}
}

func (t *TableInstance) broadcastToTable(evt protocol.EventType, payload any) {
	for _, c := range t.conns {
		t.send(c, evt, payload)
	}
	for _, c := range t.spectators {
		t.send(c, evt, payload)
	}
}

// --- Public operations (spec §4.6) ---

// Sit fills an empty seat (or the requested one) for identity. seatIndex
// of -1 means "any empty seat".
func (t *TableInstance) Sit(identity, displayName string, seatIndex, buyIn int, conn ConnectionHandle) error {
	return t.queue.SubmitAndWait(func() error { return t.sit(identity, displayName, seatIndex, buyIn, conn) })
}

func (t *TableInstance) sit(identity, displayName string, seatIndex, buyIn int, conn ConnectionHandle) error {
	if _, already := t.seatIndexFor(identity); already {
		return fmt.Errorf("identity %q already seated at table %s", identity, t.ID)
	}

	idx := seatIndex
	if idx < 0 {
		idx = -1
		for i, s := range t.seats {
			if !s.Occupied {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("table %s is full", t.ID)
		}
	} else if idx >= len(t.seats) || t.seats[idx].Occupied {
		return fmt.Errorf("seat %d unavailable at table %s", idx, t.ID)
	}

	t.seats[idx] = game.SeatOccupant{
		Occupied: true,
		Seat: game.SeatInfo{
			Identity:           identity,
			DisplayName:        displayName,
			Chips:              buyIn,
			BuyIn:              buyIn,
			WaitingForNextHand: t.hand != nil,
			Connected:          true,
		},
	}
	t.conns[idx] = conn

	t.broadcastToTable(protocol.EventTablePlayerJoined, protocol.TablePlayerJoinedPayload{
		Seat: idx,
		Player: protocol.PlayerRef{
			SeatIndex:   idx,
			Identity:    identity,
			DisplayName: displayName,
			Chips:       buyIn,
		},
	})
	t.send(conn, protocol.EventTableJoined, protocol.TableJoinedPayload{TableID: t.ID, Seat: idx})

	t.maybeStartHand()
	return nil
}

// Stand removes identity from the table. If the seat has live in-hand
// chips, per spec §4.6 it is folded first — implemented here by dropping
// the connection so the existing disconnect/timeout-default path folds it
// at its next turn, then clearing the seat once the hand ends.
func (t *TableInstance) Stand(identity, reason string) error {
	return t.queue.SubmitAndWait(func() error { return t.stand(identity, reason) })
}

func (t *TableInstance) stand(identity, reason string) error {
	idx, ok := t.seatIndexFor(identity)
	if !ok {
		return fmt.Errorf("identity %q not seated at table %s", identity, t.ID)
	}

	liveInHand := t.hand != nil && !t.hand.Players[idx].IsSittingOut && !t.hand.Players[idx].Folded
	t.conns[idx] = nil
	t.seats[idx].Seat.Connected = false

	if !liveInHand {
		t.clearSeat(idx)
		t.broadcastToTable(protocol.EventTablePlayerLeft, protocol.TablePlayerLeftPayload{Seat: idx, PlayerID: identity})
		t.maybeStartHand()
		return nil
	}

	// Mid-hand: seat stays occupied (chips stay accounted for) until the
	// hand completes; the timeout-default path folds it on its next turn.
	t.pendingLeave[idx] = true
	return nil
}

func (t *TableInstance) clearSeat(idx int) {
	t.seats[idx] = game.SeatOccupant{}
	t.conns[idx] = nil
	t.pendingLeave[idx] = false
}

// Disconnect drops the connection handle without removing the seat — a
// live hand continues to act via timeout default, per spec §4.6.
func (t *TableInstance) Disconnect(identity string) error {
	return t.queue.SubmitAndWait(func() error {
		idx, ok := t.seatIndexFor(identity)
		if !ok {
			return nil
		}
		t.conns[idx] = nil
		t.seats[idx].Seat.Connected = false
		return nil
	})
}

// Reconnect reattaches a connection handle and re-sends the latest
// snapshot and, if the seat is mid-hand, its hole cards.
func (t *TableInstance) Reconnect(identity string, conn ConnectionHandle) error {
	return t.queue.SubmitAndWait(func() error {
		idx, ok := t.seatIndexFor(identity)
		if !ok {
			return fmt.Errorf("identity %q not seated at table %s", identity, t.ID)
		}
		t.conns[idx] = conn
		t.seats[idx].Seat.Connected = true
		t.sendStateTo(idx)
		if t.hand != nil && len(t.hand.Players[idx].HoleCards) > 0 {
			t.send(conn, protocol.EventGameHoleCards, protocol.GameHoleCardsPayload{
				Cards: cardStrings(t.hand.Players[idx].HoleCards),
			})
		}
		return nil
	})
}

// Spectate registers a spectator connection for read-only broadcasts.
func (t *TableInstance) Spectate(identity string, conn ConnectionHandle) error {
	return t.queue.SubmitAndWait(func() error {
		t.spectators[identity] = conn
		t.send(conn, protocol.EventTableSpectating, protocol.TableSpectatingPayload{TableID: t.ID})
		if t.hand != nil {
			t.send(conn, protocol.EventGameState, protocol.GameStatePayload{State: t.projectState("")})
			t.send(conn, protocol.EventGameAllHoleCards, protocol.GameAllHoleCardsPayload{Players: t.spectatorHoleCards()})
		}
		return nil
	})
}

// SubmitAction validates and applies a seated player's decision.
func (t *TableInstance) SubmitAction(identity, actionStr string, amount int) error {
	return t.queue.SubmitAndWait(func() error { return t.submitAction(identity, actionStr, amount) })
}

func (t *TableInstance) submitAction(identity, actionStr string, amount int) error {
	idx, ok := t.seatIndexFor(identity)
	if !ok {
		return fmt.Errorf("identity %q not seated at table %s", identity, t.ID)
	}
	if t.hand == nil || t.hand.IsHandComplete {
		t.send(t.conns[idx], protocol.EventTableError, protocol.TableErrorPayload{Message: "no hand in progress"})
		return nil
	}
	if idx != t.hand.CurrentPlayerIndex {
		t.send(t.conns[idx], protocol.EventTableError, protocol.TableErrorPayload{Message: "not your turn to act"})
		return nil
	}
	action, ok := actionFromString(actionStr)
	if !ok {
		t.send(t.conns[idx], protocol.EventTableError, protocol.TableErrorPayload{Message: "unknown action: " + actionStr})
		return nil
	}

	if !game.ApplyAction(t.hand, idx, action, amount) {
		t.send(t.conns[idx], protocol.EventTableError, protocol.TableErrorPayload{Message: "illegal action"})
		return nil
	}

	t.onActionApplied(identity, action, amount)
	return nil
}

// FastFold is valid only pre-hand-commit for the seat (spec §4.6): here,
// only when it is currently that seat's turn during the preflop street and
// it has not yet acted this hand. It folds the seat, removes it from this
// table, and re-queues the identity with the Matchmaker.
func (t *TableInstance) FastFold(identity string) error {
	return t.queue.SubmitAndWait(func() error { return t.fastFold(identity) })
}

func (t *TableInstance) fastFold(identity string) error {
	idx, ok := t.seatIndexFor(identity)
	if !ok {
		return fmt.Errorf("identity %q not seated at table %s", identity, t.ID)
	}
	if t.hand == nil {
		displayName := t.seats[idx].Seat.DisplayName
		buyIn := t.seats[idx].Seat.Chips
		conn := t.conns[idx]
		t.clearSeat(idx)
		t.reseat(conn, identity, displayName, buyIn)
		return nil
	}
	actedThisHand := false
	for _, h := range t.hand.HandHistory {
		if h.SeatIndex == idx {
			actedThisHand = true
		}
	}
	if t.hand.CurrentStreet != game.Preflop || idx != t.hand.CurrentPlayerIndex || actedThisHand {
		t.send(t.conns[idx], protocol.EventTableError, protocol.TableErrorPayload{Message: "fast-fold only available preflop on your turn before acting"})
		return nil
	}

	if !game.ApplyAction(t.hand, idx, game.Fold, 0) {
		return nil
	}
	t.seats[idx].Seat.LeftForFastFold = true
	t.pendingLeave[idx] = true
	conn := t.conns[idx]
	displayName := t.seats[idx].Seat.DisplayName
	buyIn := t.seats[idx].Seat.Chips
	t.onActionApplied(identity, game.Fold, 0)

	t.reseat(conn, identity, displayName, buyIn)
	return nil
}

func (t *TableInstance) reseat(conn ConnectionHandle, identity, displayName string, buyIn int) {
	t.send(conn, protocol.EventTableChange, protocol.TableChangePayload{TableID: t.ID})
	if t.reseater != nil {
		t.reseater.Requeue(identity, displayName, t.Key, buyIn)
	}
}

// --- Internal hand lifecycle ---

func (t *TableInstance) onActionApplied(identity string, action game.Action, amount int) {
	t.cancelPendingTimer()
	t.broadcastToTable(protocol.EventGameActionTaken, protocol.GameActionTakenPayload{
		PlayerID: identity,
		Action:   action.String(),
		Amount:   amount,
	})
	t.broadcastState()

	if t.hand.IsHandComplete {
		t.completeHand()
		return
	}
	t.requestNextAction()
}

func (t *TableInstance) cancelPendingTimer() {
	if t.pending != nil && t.pending.timer != nil {
		t.pending.timer.Stop()
	}
	t.pending = nil
}

func (t *TableInstance) requestNextAction() {
	idx := t.hand.CurrentPlayerIndex
	valid := game.GetValidActions(t.hand, idx)

	views := make([]protocol.ValidActionView, len(valid))
	for i, va := range valid {
		views[i] = protocol.ValidActionView{Action: va.Action.String(), MinAmount: va.MinAmount, MaxAmount: va.MaxAmount}
	}

	timeoutMs := int(t.cfg.ActionTimeout / time.Millisecond)
	deadline := t.clock.Now().Add(t.cfg.ActionTimeout)
	identity := t.seats[idx].Seat.Identity

	t.send(t.conns[idx], protocol.EventGameActionRequired, protocol.GameActionRequiredPayload{
		PlayerID:     identity,
		ValidActions: views,
		TimeoutMs:    timeoutMs,
	})

	street := t.hand.CurrentStreet
	timer := t.clock.AfterFunc(t.cfg.ActionTimeout, func() {
		t.queue.Submit(func() error { return t.onTimeout(idx, street) })
	})
	t.pending = &pendingAction{seatIndex: idx, street: street, deadline: deadline, timer: timer}

	t.broadcastState()
}

// onTimeout injects the spec §4.6 default action: check if legal, otherwise
// fold. A seat that has stood up mid-hand is always folded. Per spec §5's
// ordering guarantee, it first re-checks that the game
// is still waiting on the same seat and street; if not, the user's action
// already resolved this decision point and the timeout is a no-op.
func (t *TableInstance) onTimeout(seatIndex int, street game.Street) error {
	if t.hand == nil || t.hand.IsHandComplete {
		return nil
	}
	if t.pending == nil || t.pending.seatIndex != seatIndex {
		return nil
	}
	if t.hand.CurrentStreet != street || t.hand.CurrentPlayerIndex != seatIndex {
		return nil
	}

	valid := game.GetValidActions(t.hand, seatIndex)
	action := game.Fold
	for _, va := range valid {
		if va.Action == game.Check && !t.pendingLeave[seatIndex] {
			action = game.Check
			break
		}
	}

	identity := t.seats[seatIndex].Seat.Identity
	if !game.ApplyAction(t.hand, seatIndex, action, 0) {
		return nil
	}
	t.onActionApplied(identity, action, 0)
	return nil
}

// maybeStartHand starts a new hand when at least two non-waiting, seated
// players have chips and no hand is currently live, per spec §4.8's
// invariant and §4.4's StartNewHand precondition.
func (t *TableInstance) maybeStartHand() {
	if t.hand != nil {
		return
	}

	eligible := 0
	for i := range t.seats {
		if !t.seats[i].Occupied {
			continue
		}
		t.seats[i].Seat.WaitingForNextHand = false
		if t.seats[i].Seat.Chips > 0 {
			eligible++
		}
	}
	if eligible < 2 {
		return
	}

	players := make([]game.Player, len(t.seats))
	for i, s := range t.seats {
		players[i] = game.Player{SeatIndex: i, IsSittingOut: true}
		if s.Occupied {
			players[i] = game.Player{
				SeatIndex:    i,
				Identity:     s.Seat.Identity,
				Chips:        s.Seat.Chips,
				IsSittingOut: s.Seat.Chips <= 0,
			}
		}
	}

	state := &game.HandState{
		Players:         players,
		SmallBlind:      t.Key.SmallBlind,
		BigBlind:        t.Key.BigBlind,
		DealerPosition:  t.dealerPos,
		LastRaiserIndex: -1,
		Rake:            t.cfg.Rake,
	}
	game.StartNewHand(state, t.rng)
	t.dealerPos = state.DealerPosition
	t.hand = state
	t.handStartedAt = time.Now()

	t.dealHoleCards()
	t.broadcastState()

	if state.IsHandComplete {
		t.completeHand()
		return
	}
	t.requestNextAction()
}

func (t *TableInstance) dealHoleCards() {
	for i, p := range t.hand.Players {
		if len(p.HoleCards) == 0 {
			continue
		}
		t.send(t.conns[i], protocol.EventGameHoleCards, protocol.GameHoleCardsPayload{Cards: cardStrings(p.HoleCards)})
	}
	for _, c := range t.spectators {
		t.send(c, protocol.EventGameAllHoleCards, protocol.GameAllHoleCardsPayload{Players: t.spectatorHoleCards()})
	}
}

func (t *TableInstance) spectatorHoleCards() []protocol.SpectatorPlayerView {
	if t.hand == nil {
		return nil
	}
	var views []protocol.SpectatorPlayerView
	for i, p := range t.hand.Players {
		if len(p.HoleCards) == 0 {
			continue
		}
		views = append(views, protocol.SpectatorPlayerView{
			SeatIndex: i,
			Identity:  t.seats[i].Seat.Identity,
			Cards:     cardStrings(p.HoleCards),
		})
	}
	return views
}

// showdownReached reports whether the hand's final pot(s) were actually
// contested at showdown (as opposed to won uncontested by everyone else
// folding), by checking whether any awarded pot carries a HandName —
// determineWinnerAndComplete only sets HandName on contested pot awards.
func showdownReached(state *game.HandState) bool {
	for _, w := range state.Winners {
		if w.HandName != "" {
			return true
		}
	}
	return false
}

func (t *TableInstance) completeHand() {
	hand := t.hand
	winnerViews := make([]protocol.WinnerView, len(hand.Winners))
	var seatRecords []handrecord.SeatRecord

	startChips := make(map[int]int, len(t.seats))
	for i := range t.seats {
		if !t.seats[i].Occupied {
			continue
		}
		startChips[i] = t.seats[i].Seat.Chips
		t.seats[i].Seat.Chips = hand.Players[i].Chips
	}

	for i, w := range hand.Winners {
		identity := t.seats[w.SeatIndex].Seat.Identity
		winnerViews[i] = protocol.WinnerView{PlayerID: identity, Amount: w.Amount, HandName: w.HandName}
	}

	if showdownReached(hand) {
		var showdownPlayers []protocol.ShowdownPlayerView
		for _, w := range hand.Winners {
			p := hand.Players[w.SeatIndex]
			showdownPlayers = append(showdownPlayers, protocol.ShowdownPlayerView{
				SeatIndex: w.SeatIndex,
				Cards:     cardStrings(p.HoleCards),
				HandName:  w.HandName,
			})
		}
		t.broadcastToTable(protocol.EventGameShowdown, protocol.GameShowdownPayload{
			Winners: winnerViews,
			Players: showdownPlayers,
		})
	}

	t.broadcastToTable(protocol.EventGameHandComplete, protocol.GameHandCompletePayload{Winners: winnerViews})

	history := make([]handrecord.ActionRecord, len(hand.HandHistory))
	for i, h := range hand.HandHistory {
		history[i] = handrecord.ActionRecord{
			PlayerID: t.seats[h.SeatIndex].Seat.Identity,
			Action:   h.Action.String(),
			Amount:   h.Amount,
			Street:   h.Street.String(),
		}
	}
	for i, p := range hand.Players {
		if p.IsSittingOut && len(p.HoleCards) == 0 {
			continue
		}
		profit := hand.Players[i].Chips - startChips[i]
		seatRecords = append(seatRecords, handrecord.SeatRecord{
			SeatIndex:   i,
			Identity:    t.seats[i].Seat.Identity,
			DisplayName: t.seats[i].Seat.DisplayName,
			HoleCards:   cardStrings(p.HoleCards),
			Profit:      profit,
		})
	}

	if err := t.sink.RecordHand(handrecord.HandRecord{
		TableID:        t.ID,
		SmallBlind:     hand.SmallBlind,
		BigBlind:       hand.BigBlind,
		StartedAt:      t.handStartedAt,
		CompletedAt:    time.Now(),
		Seats:          seatRecords,
		HandHistory:    history,
		CommunityCards: cardStrings(hand.CommunityCards),
		FinalPot:       totalPotAwarded(hand),
		RakeAmount:     hand.RakeTaken,
		DealerSeat:     hand.DealerPosition,
	}); err != nil {
		t.logger.Error().Err(err).Msg("failed to record completed hand")
	}

	for i := range t.seats {
		if !t.seats[i].Occupied {
			continue
		}
		if t.seats[i].Seat.Chips <= 0 {
			t.send(t.conns[i], protocol.EventTableBusted, protocol.TableBustedPayload{Message: "out of chips"})
			t.clearSeat(i)
			continue
		}
		if t.pendingLeave[i] {
			identity := t.seats[i].Seat.Identity
			t.send(t.conns[i], protocol.EventTableLeft, nil)
			t.clearSeat(i)
			t.broadcastToTable(protocol.EventTablePlayerLeft, protocol.TablePlayerLeftPayload{Seat: i, PlayerID: identity})
		}
	}

	t.hand = nil
	t.cancelPendingTimer()

	t.clock.AfterFunc(t.cfg.InterHandDelay, func() {
		t.queue.Submit(func() error { t.maybeStartHand(); return nil })
	})
}

func totalPotAwarded(state *game.HandState) int {
	total := 0
	for _, w := range state.Winners {
		total += w.Amount
	}
	return total + state.RakeTaken
}

func cardStrings(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
