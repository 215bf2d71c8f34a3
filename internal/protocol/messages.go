// Package protocol defines the transport-agnostic client<->server event
// contract of spec §6: typed payloads for every named event, wrapped in a
// small envelope for JSON framing. Grounded on the teacher's
// internal/server/message.go and message_types.go envelope shape, widened
// from the teacher's fixed message struct to the PLO event set this core
// actually emits.
package protocol

import "encoding/json"

// EventType names one client->server or server->client event.
type EventType string

const (
	// Client -> server
	EventTableLeave        EventType = "table:leave"
	EventTableSpectate     EventType = "table:spectate"
	EventGameAction        EventType = "game:action"
	EventMatchmakingJoin   EventType = "matchmaking:join"
	EventMatchmakingLeave  EventType = "matchmaking:leave"

	// Server -> client
	EventConnectionEstablished EventType = "connection:established"
	EventConnectionError       EventType = "connection:error"
	EventTableJoined           EventType = "table:joined"
	EventTableLeft             EventType = "table:left"
	EventTableChange           EventType = "table:change"
	EventTableBusted           EventType = "table:busted"
	EventTableError            EventType = "table:error"
	EventTablePlayerJoined     EventType = "table:player_joined"
	EventTablePlayerLeft       EventType = "table:player_left"
	EventTableSpectating       EventType = "table:spectating"
	EventGameState             EventType = "game:state"
	EventGameHoleCards         EventType = "game:hole_cards"
	EventGameActionRequired    EventType = "game:action_required"
	EventGameActionTaken       EventType = "game:action_taken"
	EventGameShowdown          EventType = "game:showdown"
	EventGameHandComplete      EventType = "game:hand_complete"
	EventGameAllHoleCards      EventType = "game:all_hole_cards"
	EventMaintenanceStatus     EventType = "maintenance:status"
)

func (t EventType) String() string { return string(t) }

// Envelope is the wire frame every event is marshaled into: a discriminant
// Type plus an opaque payload, mirroring the teacher's Message{Type,Data}
// shape so a single websocket.Conn.ReadJSON/WriteJSON pair can handle every
// event without a switch on concrete Go types at the transport layer.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope, matching the teacher's
// NewMessage helper.
func NewEnvelope(t EventType, payload any) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: t, Data: data}, nil
}

// --- Client -> server payloads ---

type TableSpectatePayload struct {
	TableID string `json:"tableId"`
}

type GameActionPayload struct {
	Action string `json:"action"` // fold|check|call|bet|raise|allin
	Amount int    `json:"amount,omitempty"`
}

type MatchmakingJoinPayload struct {
	Blinds    string `json:"blinds"` // "sb/bb", e.g. "1/2"
	FastFold  bool   `json:"fastFold,omitempty"`
}

// --- Server -> client payloads ---

type ConnectionEstablishedPayload struct {
	PlayerID string `json:"playerId"`
}

type ConnectionErrorPayload struct {
	Message string `json:"message"`
}

type TableJoinedPayload struct {
	TableID string `json:"tableId"`
	Seat    int    `json:"seat"`
}

type TableChangePayload struct {
	TableID string `json:"tableId"`
	Seat    int    `json:"seat"`
}

type TableBustedPayload struct {
	Message string `json:"message"`
}

type TableErrorPayload struct {
	Message string `json:"message"`
}

type PlayerRef struct {
	SeatIndex   int    `json:"seatIndex"`
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Chips       int    `json:"chips"`
}

type TablePlayerJoinedPayload struct {
	Seat   int       `json:"seat"`
	Player PlayerRef `json:"player"`
}

type TablePlayerLeftPayload struct {
	Seat     int    `json:"seat"`
	PlayerID string `json:"playerId"`
}

type TableSpectatingPayload struct {
	TableID string `json:"tableId"`
}

// SidePotView is the client-facing projection of game.SidePot.
type SidePotView struct {
	Amount   int   `json:"amount"`
	Eligible []int `json:"eligible"`
}

// SeatView is the per-seat projection embedded in ClientGameState. Every
// seat's hole cards are stripped except the recipient's own, per spec §6's
// "ClientGameState projection rules".
type SeatView struct {
	SeatIndex   int      `json:"seatIndex"`
	Identity    string   `json:"identity,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Position    string   `json:"position,omitempty"`
	Chips       int      `json:"chips"`
	CurrentBet  int      `json:"currentBet"`
	HoleCards   []string `json:"holeCards,omitempty"`
	Folded      bool     `json:"folded"`
	IsAllIn     bool     `json:"isAllIn"`
	IsSittingOut bool    `json:"isSittingOut"`
	Empty       bool     `json:"empty"`
}

// ClientGameState is the projected HandState + seat snapshot sent as
// game:state, per spec §6.
type ClientGameState struct {
	TableID           string        `json:"tableId"`
	Seats             []SeatView    `json:"seats"`
	CurrentPlayerSeat int           `json:"currentPlayerSeat"`
	CurrentBet        int           `json:"currentBet"`
	MinRaise          int           `json:"minRaise"`
	Pot               int           `json:"pot"`
	SidePots          []SidePotView `json:"sidePots"`
	CommunityCards    []string      `json:"communityCards"`
	Street            string        `json:"street"`
	ActionTimeoutAt   int64         `json:"actionTimeoutAt,omitempty"` // unix millis
	ActionTimeoutMs   int           `json:"actionTimeoutMs,omitempty"`
	IsHandInProgress  bool          `json:"isHandInProgress"`
}

type GameStatePayload struct {
	State ClientGameState `json:"state"`
}

type GameHoleCardsPayload struct {
	Cards []string `json:"cards"`
}

type ValidActionView struct {
	Action    string `json:"action"`
	MinAmount int    `json:"minAmount"`
	MaxAmount int    `json:"maxAmount"`
}

type GameActionRequiredPayload struct {
	PlayerID      string            `json:"playerId"`
	ValidActions  []ValidActionView `json:"validActions"`
	TimeoutMs     int               `json:"timeoutMs"`
}

type GameActionTakenPayload struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
	Amount   int    `json:"amount"`
}

type ShowdownPlayerView struct {
	SeatIndex int      `json:"seatIndex"`
	Cards     []string `json:"cards"`
	HandName  string   `json:"handName"`
}

type WinnerView struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
	HandName string `json:"handName,omitempty"`
}

type GameShowdownPayload struct {
	Winners []WinnerView         `json:"winners"`
	Players []ShowdownPlayerView `json:"players"`
}

type GameHandCompletePayload struct {
	Winners []WinnerView `json:"winners"`
}

type SpectatorPlayerView struct {
	SeatIndex int      `json:"seatIndex"`
	Identity  string   `json:"identity"`
	Cards     []string `json:"cards,omitempty"`
}

type GameAllHoleCardsPayload struct {
	Players []SpectatorPlayerView `json:"players"`
}

type MaintenanceStatusPayload struct {
	IsActive    bool   `json:"isActive"`
	Message     string `json:"message,omitempty"`
	ActivatedAt int64  `json:"activatedAt,omitempty"` // unix millis
}
