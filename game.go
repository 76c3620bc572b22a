// Trivia game hub
//
// Each game lives at /trivia/:gameid and is driven by a single presenter:
// the first browser (by cookie) to open the game's WebSocket. The presenter
// walks the room through team setup, the question list and the final
// ranking. All state is kept in memory by the game's hub goroutine.
//
// Features:
// - WebSockets per game ID: /trivia/:gameid and /trivia/:gameid/ws
// - First connection to a game becomes presenter; other cookies are turned away
// - Presenter identified by cookie (UUID)
// - Every action is applied by the hub goroutine and answered with a fresh view
// - Illegal actions are reported only to the sender
// - The prep screen schedules one cancellable timer into the first question
// - Per-connection rate limit on inbound actions
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check

package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

const (
	actionRate  rate.Limit = 20
	actionBurst int        = 40
	maxGameID   int        = 64
)

// Messages coming from the presenter
type ClientMessage struct {
	Type   string `json:"type"`              // "begin", "set_team_count", "rename_team", "confirm_teams", "prep_go", "reveal", "toggle_winner", "next", "restart"
	Count  string `json:"count,omitempty"`   // set_team_count, raw field contents
	TeamID string `json:"team_id,omitempty"` // rename_team / toggle_winner
	Name   string `json:"name,omitempty"`    // rename_team
}

// SessionInfoMessage is sent immediately on connect.
type SessionInfoMessage struct {
	Type        string `json:"type"` // "session_info"
	GameID      string `json:"game_id"`
	IsPresenter bool   `json:"is_presenter"`
}

// StateMessage carries the screen for the current phase.
type StateMessage struct {
	Type  string `json:"type"` // "state"
	Phase Phase  `json:"phase"`
	View  View   `json:"view"`
}

// SimpleMessage is for generic notifications ("error", "session_taken", "game_over")
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	limiter  *rate.Limiter
}

func newClient(conn *websocket.Conn, playerID string) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan any, 8),
		playerID: playerID,
		limiter:  rate.NewLimiter(actionRate, actionBurst),
	}
}

type actionRequest struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id      string
	cfg     *Config
	clients map[*Client]bool
	session *Session

	register chan *Client
	unreg    chan *Client
	actions  chan actionRequest
	prepDone chan uint64
	quit     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	createdAt   time.Time
	lastActive  time.Time
	presenterID string

	prepTimer *time.Timer
	prepGen   uint64
}

func newHub(cfg *Config, gameID string) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		cfg:        cfg,
		clients:    make(map[*Client]bool),
		session:    newSession(cfg.bank),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan actionRequest),
		prepDone:   make(chan uint64),
		quit:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.dropLocked(c)
			h.mu.Unlock()

		case req := <-h.actions:
			h.handleAction(req)

		case gen := <-h.prepDone:
			h.handlePrepDone(gen)

		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// stop ends the hub's run loop. Safe to call more than once.
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

func (h *Hub) renderOptions() renderOptions {
	return renderOptions{
		prefix:       h.cfg.prefix,
		prepDelay:    h.cfg.prepDelay,
		celebrateFor: h.cfg.celebrateFor,
	}
}

func (h *Hub) stateLocked() StateMessage {
	return StateMessage{
		Type:  "state",
		Phase: h.session.Phase(),
		View:  Render(h.session, h.renderOptions()),
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	// First connection becomes presenter
	if h.presenterID == "" {
		h.presenterID = c.playerID
		logf(h.cfg, "GAMES: Presenter connected to %s", h.id)
	}

	if c.playerID != h.presenterID {
		c.send <- SimpleMessage{
			Type:    "session_taken",
			Message: "This game already has a presenter. Start a new game instead.",
		}
		close(c.send)

		return
	}

	h.clients[c] = true

	h.sendLocked(c, SessionInfoMessage{
		Type:        "session_info",
		GameID:      h.id,
		IsPresenter: true,
	})
	h.sendLocked(c, h.stateLocked())
}

func (h *Hub) handleAction(req actionRequest) {
	c := req.client
	msg := req.msg

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] || c.playerID != h.presenterID {
		return
	}

	h.lastActive = time.Now()

	if !c.limiter.Allow() {
		h.sendLocked(c, SimpleMessage{
			Type:    "error",
			Message: "Too many actions; slow down.",
		})

		return
	}

	s := h.session

	var err error

	switch msg.Type {
	case "begin":
		err = s.Begin()

	case "set_team_count":
		var n int
		n, err = s.SetTeamCount(msg.Count)
		if err == nil {
			logf(h.cfg, "GAMES: %d teams set up in %s", n, h.id)
		}

	case "rename_team":
		err = s.RenameTeam(msg.TeamID, msg.Name)

	case "confirm_teams":
		err = s.ConfirmTeams()

	case "prep_go":
		err = h.startPrepLocked()

	case "reveal":
		err = s.RevealAnswer()

	case "toggle_winner":
		err = s.ToggleWinner(msg.TeamID)

	case "next":
		err = s.CommitRound()
		if err == nil && s.Phase() == PhaseRanking {
			ranked := s.Ranking()
			logf(h.cfg, "GAMES: %s finished, %q won with %d points", h.id, ranked[0].Name, ranked[0].Score)
		}

	case "restart":
		h.cancelPrepLocked()
		s.Restart()
		logf(h.cfg, "GAMES: %s restarted", h.id)

	default:
		return
	}

	if err != nil {
		h.sendLocked(c, SimpleMessage{
			Type:    "error",
			Message: err.Error(),
		})

		return
	}

	h.broadcastStateLocked()
}

// startPrepLocked schedules the move from the prep screen into the first
// question. Repeated clicks while a move is pending are no-ops.
func (h *Hub) startPrepLocked() error {
	scheduled, err := h.session.StartPrep()
	if err != nil || !scheduled {
		return err
	}

	h.prepGen++
	gen := h.prepGen

	h.prepTimer = time.AfterFunc(h.cfg.prepDelay, func() {
		select {
		case h.prepDone <- gen:
		case <-h.quit:
		}
	})

	return nil
}

func (h *Hub) cancelPrepLocked() {
	if h.prepTimer != nil {
		h.prepTimer.Stop()
		h.prepTimer = nil
	}

	// Invalidates a timer that already fired but has not been received yet.
	h.prepGen++
}

func (h *Hub) handlePrepDone(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.prepGen {
		return
	}

	h.prepTimer = nil

	if err := h.session.FinishPrep(); err != nil {
		logf(h.cfg, "GAMES: Dropped prep timer in %s: %v", h.id, err)

		return
	}

	h.lastActive = time.Now()

	h.broadcastStateLocked()
}

// sendLocked queues msg for c, dropping the client if it cannot keep up.
func (h *Hub) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastStateLocked() {
	msg := h.stateLocked()

	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

// closeAll disconnects all clients and cancels any pending timer.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.prepTimer != nil {
		h.prepTimer.Stop()
		h.prepTimer = nil
	}

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}

	logf(h.cfg, "GAMES: Closed %s after %s", h.id, time.Since(h.createdAt).Round(time.Second))
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const playerCookieName = "trivia_id"

func getOrSetPlayerID(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each /trivia/:gameid
// is its own isolated session.
type GameManager struct {
	cfg         *Config
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newGameManager(ctx context.Context, cfg *Config) *GameManager {
	gm := &GameManager{
		cfg:         cfg,
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop(ctx)
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gm.cfg, gameID)
	gm.hubs[gameID] = hub
	go hub.run()
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap removes every hub idle since before cutoff and returns how many
// were removed.
func (gm *GameManager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		if hub.idleSince().Before(cutoff) {
			delete(gm.hubs, id)
			hub.stop()
			reaped++
		}
	}

	return reaped
}

// stopAll ends every hub.
func (gm *GameManager) stopAll() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := gm.reap(time.Now().Add(-gm.idleTimeout)); n > 0 {
				logf(gm.cfg, "GAMES: Reaped %d idle games", n)
			}
		case <-ctx.Done():
			gm.stopAll()
			return
		}
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" || len(gameID) > maxGameID {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(cfg, w, r)

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade for %s from %s failed: %v", gameID, realIP(r), err)
			return
		}

		client := newClient(conn, playerID)

		go client.writePump()

		select {
		case hub.register <- client:
		case <-hub.quit:
			close(client.send)
			return
		}

		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "begin", "set_team_count", "rename_team", "confirm_teams",
			"prep_go", "reveal", "toggle_winner", "next", "restart":
			select {
			case h.actions <- actionRequest{client: c, msg: msg}:
			case <-h.quit:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/trivia/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "missing page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(cfg, w, r)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectNewGame generates a new random game ID (with server-side
// collision detection) and redirects to path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s for %s", path, gameID, realIP(r))
		http.Redirect(w, r, path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerTriviaGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
func registerTriviaGame(cfg *Config, path string, gm *GameManager, mux *httprouter.Router, errs chan<- error) {
	base := cfg.prefix + path

	mux.GET(base, redirectNewGame(cfg, base, gm))

	mux.GET(base+"/:gameid", getIndexHandler(cfg, errs))

	mux.GET(base+"/:gameid/ws", serveWSForManager(cfg, gm))
}
