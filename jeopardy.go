// Jeopardy board
//
// Each game ID owns one board of trivia categories pulled from a public
// clue archive. Everyone connected to the same game sees the same board:
// clicking a cell reveals its question, clicking again reveals its answer.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - First connection to a game loads the board
// - Late joiners receive the current board and every revealed cell
// - Restart discards the board and loads fresh categories
// - Only one load per game runs at a time; restarts during a load are refused
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current game, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/jeopardy/games/jeopardy"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`     // "activate", "restart"
	Category int    `json:"category"` // activate
	Clue     int    `json:"clue"`     // activate
}

// StatusMessage reports the board's load state.
type StatusMessage struct {
	Type  string         `json:"type"` // "status"
	State jeopardy.State `json:"state"`
}

// BoardMessage carries a fresh render of the whole board.
type BoardMessage struct {
	Type string `json:"type"` // "board"
	jeopardy.Presentation
	HTML string `json:"html"`
}

// CellMessage updates a single cell in place.
type CellMessage struct {
	Type string `json:"type"` // "cell"
	jeopardy.CellUpdate
}

// SimpleMessage is for generic notifications ("clear", "error")
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type clientEvent struct {
	client *Client
	msg    ClientMessage
}

type loadResult struct {
	board jeopardy.Presentation
	err   error
}

type Hub struct {
	id      string
	session *jeopardy.Session
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	events   chan clientEvent
	loaded   chan loadResult

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex

	lastActive time.Time
	loading    bool
	started    bool
}

func newHub(gameID string, session *jeopardy.Session) *Hub {
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		id:         gameID,
		session:    session,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		events:     make(chan clientEvent),
		loaded:     make(chan loadResult),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: now,
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case <-h.ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true

			h.sendLocked(c, StatusMessage{Type: "status", State: h.session.State()})

			if board, ok := h.session.Presentation(); ok {
				h.sendLocked(c, boardMessage(board))
				for _, u := range h.session.Revealed() {
					h.sendLocked(c, CellMessage{Type: "cell", CellUpdate: u})
				}
			}
			h.mu.Unlock()

			// First connection loads the board. After that only restart does.
			if !h.started && !h.loading {
				h.startLoad(cfg, false)
			}

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case ev := <-h.events:
			h.handleEvent(cfg, ev)

		case res := <-h.loaded:
			h.finishLoad(cfg, res)
		}
	}
}

func (h *Hub) handleEvent(cfg *Config, ev clientEvent) {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()

	switch ev.msg.Type {
	case "activate":
		h.handleActivate(cfg, ev)

	case "restart":
		if h.loading {
			h.mu.Lock()
			h.sendLocked(ev.client, SimpleMessage{
				Type:    "error",
				Message: "A new board is already loading.",
			})
			h.mu.Unlock()

			return
		}

		logf(cfg, "GAMES: Restarting %s", h.id)

		h.startLoad(cfg, true)
	}
}

func (h *Hub) handleActivate(cfg *Config, ev clientEvent) {
	cat, clue := ev.msg.Category, ev.msg.Clue

	update, err := h.session.Activate(cat, clue)

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case errors.Is(err, jeopardy.ErrNotReady):
		h.sendLocked(ev.client, SimpleMessage{
			Type:    "error",
			Message: "The board is not ready yet.",
		})

	case errors.Is(err, jeopardy.ErrClueOutOfRange):
		// The client clicked a cell the board has no clue for.
		errorf("Activation of (%d, %d) in %s does not match the board: %v", cat, clue, h.id, err)

		h.sendLocked(ev.client, SimpleMessage{
			Type:    "error",
			Message: "That cell has no clue.",
		})

	case err != nil:
		errorf("Activation of (%d, %d) in %s failed: %v", cat, clue, h.id, err)

	case update.Changed:
		logf(cfg, "GAMES: Revealed %s of (%d, %d) in %s", update.Reveal, cat, clue, h.id)

		h.broadcastLocked(CellMessage{Type: "cell", CellUpdate: update})
	}
}

// startLoad kicks off a board load in the background. Must be called from run.
func (h *Hub) startLoad(cfg *Config, restart bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.session.Begin(); err != nil {
		errorf("Loading board for %s refused: %v", h.id, err)

		h.broadcastLocked(SimpleMessage{
			Type:    "error",
			Message: "A new board is already loading.",
		})

		return
	}

	h.started = true
	h.loading = true

	if restart {
		h.broadcastLocked(SimpleMessage{Type: "clear"})
	}
	h.broadcastLocked(StatusMessage{Type: "status", State: jeopardy.Loading})

	go func() {
		ctx := h.ctx
		if cfg.fetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.fetchTimeout)
			defer cancel()
		}

		startTime := time.Now()

		var res loadResult
		res.board, res.err = h.session.Load(ctx)

		if res.err == nil {
			logf(cfg, "GAMES: Loaded %d categories for %s in %s",
				len(res.board.Titles),
				h.id,
				time.Since(startTime).Round(time.Millisecond),
			)
		}

		select {
		case h.loaded <- res:
		case <-h.ctx.Done():
		}
	}()
}

func (h *Hub) finishLoad(cfg *Config, res loadResult) {
	h.loading = false

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if res.err != nil {
		errorf("Loading board for %s failed: %v", h.id, res.err)

		h.broadcastLocked(SimpleMessage{
			Type:    "error",
			Message: "Could not load a board from the trivia service. Press restart to try again.",
		})
		h.broadcastLocked(StatusMessage{Type: "status", State: h.session.State()})

		return
	}

	h.broadcastLocked(boardMessage(res.board))
	h.broadcastLocked(StatusMessage{Type: "status", State: jeopardy.Ready})
}

func boardMessage(p jeopardy.Presentation) BoardMessage {
	return BoardMessage{
		Type:         "board",
		Presentation: p,
		HTML:         p.HTML(),
	}
}

// sendLocked assumes h.mu is already held. Slow clients are dropped.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcastLocked assumes h.mu is already held.
func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

// closeAll disconnects all clients of this hub and stops it (used by reaper).
func (h *Hub) closeAll() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated board.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	newSession  func() *jeopardy.Session
}

func newGameManager(idleTimeout time.Duration, newSession func() *jeopardy.Session) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		newSession:  newSession,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID, gm.newSession())
	gm.hubs[gameID] = hub
	go hub.run(cfg)

	logf(cfg, "GAMES: Opened %s", gameID)

	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < 8 {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}

			for _, b := range buf {
				if b <= max && len(out) < 8 {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
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

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		gm.reap(time.Now().Add(-gm.idleTimeout))
	}
}

func (gm *GameManager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			reaped++
		}
	}

	return reaped
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf("Upgrade for %s from %s failed: %v", gameID, realIP(r), err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 64),
		}

		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: %s connected to %s", realIP(r), gameID)

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "activate", "restart":
			select {
			case h.events <- clientEvent{client: c, msg: msg}:
			case <-h.ctx.Done():
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
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if ps.ByName("gameid") == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; the game itself lives one level up.
		gameURL := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(gameURL, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		_, _ = w.Write(png)
	}
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/jeopardy/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "missing game client", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

func newSessionFactory(cfg *Config) func() *jeopardy.Session {
	client := jeopardy.NewClient(cfg.apiURL, &http.Client{Timeout: cfg.fetchTimeout})

	return func() *jeopardy.Session {
		return jeopardy.NewSession(jeopardy.NewFetcher(client, nil, cfg.offsetBound), cfg.settings())
	}
}

// registerJeopardyGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerJeopardyGame(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *GameManager {
	gm := newGameManager(cfg.sessionTimeout, newSessionFactory(cfg))

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg, errs))
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg))

	return gm
}
