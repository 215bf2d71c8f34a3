package server

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/plo-core/internal/deck"
	"github.com/lox/plo-core/internal/handrecord"
	"github.com/lox/plo-core/internal/matchmaker"
	"github.com/lox/plo-core/internal/protocol"
	"github.com/lox/plo-core/internal/tableinstance"
)

// Server owns the Matchmaker, every live TableInstance (through it), the
// HTTP listener, and the WebSocket upgrade path. Grounded on the teacher's
// internal/server/server.go (upgrader setup, /ws route, connect handshake,
// graceful Shutdown), generalized from "one BotPool per registered game" to
// "one Matchmaker fanning out across many matchmaking-key buckets".
type Server struct {
	cfg    *Config
	logger zerolog.Logger
	mm     *matchmaker.Matchmaker
	sink   handrecord.Sink
	stats  *handrecord.StatsCollector

	handsCompleted atomic.Uint64

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server
	routesOnce sync.Once

	mu    sync.Mutex
	conns map[string]*Connection // identity -> live connection, for reconnect lookup

	idGen     func() string
	nextBotID uint64

	maintenance atomic.Bool
	maintMsg    atomic.Value // string

	tablesBySeed *rand.Rand
	tablesMu     sync.Mutex
}

// NewServer builds a Server from cfg. Per-table PRNGs are seeded
// deterministically from cfg.Server.Seed when it is nonzero, and from the
// current time otherwise.
func NewServer(cfg *Config, logger zerolog.Logger, persist handrecord.Sink) *Server {
	if persist == nil {
		persist = handrecord.NullSink{}
	}
	seed := cfg.Server.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		stats:        handrecord.NewStatsCollector(10000),
		conns:        make(map[string]*Connection),
		tablesBySeed: rand.New(rand.NewSource(seed)),
		mux:          http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.sink = handrecord.NewTeeSink(persist, (*countingSink)(s))
	s.maintMsg.Store("")
	s.idGen = func() string {
		return fmt.Sprintf("player-%d", atomic.AddUint64(&s.nextBotID, 1))
	}

	s.mm = matchmaker.New(s.tableFactory, quartz.NewReal(), logger)
	return s
}

// countingSink is Server itself, reinterpreted as a handrecord.Sink that
// feeds the StatsCollector and enforces Server.HandLimit by entering
// maintenance mode once reached, per spec §D's hand-limit/maintenance
// supplemented feature (grounded on the teacher's BotPool.handLimit).
type countingSink Server

func (c *countingSink) RecordHand(hand handrecord.HandRecord) error {
	s := (*Server)(c)
	if err := s.stats.RecordHand(hand); err != nil {
		return err
	}
	limit := s.cfg.Server.HandLimit
	if limit == 0 {
		return nil
	}
	if s.handsCompleted.Add(1) >= limit {
		s.EnterMaintenance("hand limit reached")
	}
	return nil
}

// Stats returns the in-memory per-identity rollup for identity, per spec
// §D's per-bot statistics aggregation.
func (s *Server) Stats(identity string) (handrecord.PlayerStats, bool) {
	return s.stats.Stats(identity)
}

// tableFactory is the matchmaker.TableFactory used to spin up every new
// TableInstance, wiring per-table config, a dedicated PRNG, the real
// clock, the Matchmaker as the Reseater, and the configured hand-record sink.
func (s *Server) tableFactory(id string, key tableinstance.MatchmakingKey) *tableinstance.TableInstance {
	stakes := s.cfg.stakesFor(key.SmallBlind, key.BigBlind)

	s.tablesMu.Lock()
	seed := s.tablesBySeed.Int63()
	s.tablesMu.Unlock()

	cfg := tableinstance.Config{
		BuyIn:          stakes.BuyIn,
		ActionTimeout:  stakes.ActionTimeout(),
		InterHandDelay: 2 * time.Second,
		Rake:           stakes.RakeConfig(),
	}

	table := tableinstance.New(id, key, cfg, quartz.NewReal(), rand.New(rand.NewSource(seed)), s.mm, s.sink, s.logger)
	s.logger.Info().Str("table_id", id).Str("key", key.String()).Msg("spun up table")
	return table
}

// stakesFor falls back to the first configured stakes level if no exact
// match is configured, so ad-hoc blinds requested over the wire still get
// a workable buy-in/timeout/rake profile.
func (c *Config) stakesFor(sb, bb int) StakesConfig {
	for _, t := range c.Tables {
		if t.SmallBlind == sb && t.BigBlind == bb {
			return t
		}
	}
	if len(c.Tables) > 0 {
		fallback := c.Tables[0]
		fallback.SmallBlind, fallback.BigBlind = sb, bb
		return fallback
	}
	return StakesConfig{SmallBlind: sb, BigBlind: bb, BuyIn: bb * 100, ActionTimeoutMs: 15000, RakePercent: 0.05, RakeCap: bb}
}

// ListenAndServe starts the HTTP server on cfg.Server.Address:Port.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Address, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve runs the HTTP server on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	s.ensureRoutes()
	s.httpServer = &http.Server{Handler: s.mux}
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("server starting")
	return s.httpServer.Serve(listener)
}

func (s *Server) ensureRoutes() {
	s.routesOnce.Do(func() {
		s.mux.HandleFunc("/ws", s.handleWebSocket)
		s.mux.HandleFunc("/health", s.handleHealth)
	})
}

// Shutdown stops accepting connections and tears down every live table.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("starting graceful shutdown")
	s.mm.Stop()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// EnterMaintenance broadcasts maintenance:status to every connected client
// and refuses further matchmaking:join requests, per spec §D's
// hand-limit/maintenance-shutdown supplemented feature.
func (s *Server) EnterMaintenance(message string) {
	s.maintenance.Store(true)
	s.maintMsg.Store(message)

	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	payload := protocol.MaintenanceStatusPayload{IsActive: true, Message: message, ActivatedAt: time.Now().UnixMilli()}
	env, err := protocol.NewEnvelope(protocol.EventMaintenanceStatus, payload)
	if err != nil {
		return
	}
	for _, c := range conns {
		_ = c.Send(env)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	displayName := r.URL.Query().Get("name")
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		identity = s.identityFor(displayName)
	}
	if displayName == "" {
		displayName = identity
	}

	c := NewConnection(conn, s, s.logger)
	c.SetIdentity(identity)
	c.displayName = displayName

	s.mu.Lock()
	s.conns[identity] = c
	s.mu.Unlock()

	c.Start()

	env, err := protocol.NewEnvelope(protocol.EventConnectionEstablished, protocol.ConnectionEstablishedPayload{PlayerID: identity})
	if err == nil {
		_ = c.Send(env)
	}

	if s.maintenance.Load() {
		msg, _ := s.maintMsg.Load().(string)
		if env, err := protocol.NewEnvelope(protocol.EventMaintenanceStatus, protocol.MaintenanceStatusPayload{IsActive: true, Message: msg}); err == nil {
			_ = c.Send(env)
		}
	}

	// A reconnect: identity already holds a seat at a table from a prior
	// socket, per spec §3's disconnect-grace-period path.
	s.forEachTable(identity, func(t *tableinstance.TableInstance) {
		if err := t.Reconnect(identity, c); err != nil {
			s.logger.Warn().Err(err).Str("identity", identity).Msg("reconnect failed")
		}
	})
}

// identityFor derives a short, stable identity from a requested display
// name, mirroring the teacher's fnv-hash bot-ID derivation; falls back to
// a process-unique counter ID when no name was supplied.
func (s *Server) identityFor(displayName string) string {
	if displayName == "" {
		return s.idGen()
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(displayName))
	return fmt.Sprintf("%08x", h.Sum32())
}

// HandleEnvelope implements Router: it dispatches one inbound client event
// onto the matchmaker/table it concerns.
func (s *Server) HandleEnvelope(conn *Connection, env *protocol.Envelope) {
	identity := conn.Identity()
	logger := s.logger.With().Str("identity", identity).Str("event", string(env.Type)).Logger()

	switch env.Type {
	case protocol.EventMatchmakingJoin:
		var payload protocol.MatchmakingJoinPayload
		if err := unmarshalPayload(env, &payload); err != nil {
			s.sendError(conn, "invalid_payload", err.Error())
			return
		}
		s.handleMatchmakingJoin(conn, payload)

	case protocol.EventMatchmakingLeave:
		if err := s.mm.Leave(identity); err != nil {
			logger.Warn().Err(err).Msg("matchmaking leave failed")
		}

	case protocol.EventTableLeave:
		s.forEachTable(identity, func(t *tableinstance.TableInstance) { _ = t.Stand(identity, "client_leave") })

	case protocol.EventTableSpectate:
		var payload protocol.TableSpectatePayload
		if err := unmarshalPayload(env, &payload); err != nil {
			s.sendError(conn, "invalid_payload", err.Error())
			return
		}
		s.forEachTableID(payload.TableID, func(t *tableinstance.TableInstance) {
			if err := t.Spectate(identity, conn); err != nil {
				s.sendError(conn, "spectate_failed", err.Error())
			}
		})

	case protocol.EventGameAction:
		var payload protocol.GameActionPayload
		if err := unmarshalPayload(env, &payload); err != nil {
			s.sendError(conn, "invalid_payload", err.Error())
			return
		}
		s.forEachTable(identity, func(t *tableinstance.TableInstance) {
			if err := t.SubmitAction(identity, payload.Action, payload.Amount); err != nil {
				s.sendError(conn, "action_rejected", err.Error())
			}
		})

	default:
		s.sendError(conn, "unknown_event", "unknown event type: "+string(env.Type))
	}
}

func (s *Server) handleMatchmakingJoin(conn *Connection, payload protocol.MatchmakingJoinPayload) {
	if s.maintenance.Load() {
		s.sendError(conn, "maintenance", "server is not accepting new joins")
		return
	}

	sb, bb, err := matchmaker.ParseBlinds(payload.Blinds)
	if err != nil {
		s.sendError(conn, "invalid_blinds", err.Error())
		return
	}

	key := tableinstance.MatchmakingKey{Variant: "plo6max", SmallBlind: sb, BigBlind: bb, FastFold: payload.FastFold}
	stakes := s.cfg.stakesFor(sb, bb)

	identity := conn.Identity()
	if err := s.mm.Join(identity, conn.displayName, key, stakes.BuyIn, conn); err != nil {
		s.sendError(conn, "join_failed", err.Error())
	}
}

// HandleDisconnect implements Router: it marks every table the identity
// was seated at as disconnected (spec §3's grace-period reconnect path)
// rather than immediately standing it up.
func (s *Server) HandleDisconnect(conn *Connection) {
	identity := conn.Identity()
	if identity == "" {
		return
	}

	s.mu.Lock()
	if s.conns[identity] == conn {
		delete(s.conns, identity)
	}
	s.mu.Unlock()

	s.forEachTable(identity, func(t *tableinstance.TableInstance) { _ = t.Disconnect(identity) })
}

func (s *Server) forEachTable(identity string, fn func(*tableinstance.TableInstance)) {
	for _, t := range s.mm.Tables() {
		if t.HasSeat(identity) {
			fn(t)
		}
	}
}

func (s *Server) forEachTableID(tableID string, fn func(*tableinstance.TableInstance)) {
	if t := s.mm.Table(tableID); t != nil {
		fn(t)
	}
}

func (s *Server) sendError(conn *Connection, code, message string) {
	env, err := protocol.NewEnvelope(protocol.EventConnectionError, protocol.ConnectionErrorPayload{Message: code + ": " + message})
	if err != nil {
		return
	}
	_ = conn.Send(env)
}

func unmarshalPayload(env *protocol.Envelope, out any) error {
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// Compile-time check that *rand.Rand satisfies deck.Random, since every
// table is handed a *rand.Rand as its deck PRNG.
var _ deck.Random = (*rand.Rand)(nil)
