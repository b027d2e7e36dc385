package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seednode/jeopardy/games/jeopardy"
	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type     string            `json:"type"`
	State    string            `json:"state"`
	Titles   []string          `json:"titles"`
	Rows     [][]jeopardy.Cell `json:"rows"`
	HTML     string            `json:"html"`
	Category int               `json:"category"`
	Clue     int               `json:"clue"`
	Content  string            `json:"content"`
	Reveal   string            `json:"reveal"`
	Message  string            `json:"message"`
}

// newTriviaAPI serves a jService-shaped API whose categories are handed
// out in request order, cycling through cats.
func newTriviaAPI(t *testing.T, cats []jeopardy.RawCategory) *httptest.Server {
	t.Helper()

	var (
		mu   sync.Mutex
		next int
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("count") != "1" {
			http.Error(w, "count must be 1", http.StatusBadRequest)
			return
		}

		mu.Lock()
		id := next
		next++
		mu.Unlock()

		_ = json.NewEncoder(w).Encode([]map[string]int{{"id": id}})
	})
	mux.HandleFunc("/api/category", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(cats[id%len(cats)])
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func mathAndLit() []jeopardy.RawCategory {
	return []jeopardy.RawCategory{
		{
			Title: "Math",
			Clues: []jeopardy.RawClue{
				{Question: "2+2", Answer: "4"},
				{Question: "1+1", Answer: "2"},
			},
		},
		{
			Title: "Lit",
			Clues: []jeopardy.RawClue{
				{Question: "Hamlet Author", Answer: "Shakespeare"},
			},
		},
	}
}

func newGameServer(t *testing.T, apiURL string) *httptest.Server {
	t.Helper()

	return newGameServerWithTimeout(t, apiURL, 5*time.Second)
}

func newGameServerWithTimeout(t *testing.T, apiURL string, fetchTimeout time.Duration) *httptest.Server {
	t.Helper()

	cfg := validConfig()
	cfg.apiURL = apiURL
	cfg.categories = 2
	cfg.offsetBound = 100
	cfg.fetchTimeout = fetchTimeout

	srv := httptest.NewServer(newTestRouter(t, cfg))
	t.Cleanup(srv.Close)

	return srv
}

func dialGame(t *testing.T, srv *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/jeopardy/" + gameID + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// readUntil skips messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsMessage {
	t.Helper()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if msg.Type == typ {
			return msg
		}
	}
}

// readNext returns the next message that is not a status update.
func readNext(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading message: %v", err)
		}
		if msg.Type != "status" {
			return msg
		}
	}
}

func activate(t *testing.T, conn *websocket.Conn, cat, clue int) {
	t.Helper()

	if err := conn.WriteJSON(ClientMessage{Type: "activate", Category: cat, Clue: clue}); err != nil {
		t.Fatalf("activate (%d, %d): %v", cat, clue, err)
	}
}

func TestGameEndToEnd(t *testing.T) {
	api := newTriviaAPI(t, mathAndLit())
	srv := newGameServer(t, api.URL+"/api")

	conn := dialGame(t, srv, "endtoend")

	board := readUntil(t, conn, "board")
	if len(board.Titles) != 2 || board.Titles[0] != "Math" || board.Titles[1] != "Lit" {
		t.Fatalf("unexpected titles %v", board.Titles)
	}
	if len(board.Rows) != jeopardy.DefaultRows {
		t.Fatalf("expected %d rows, got %d", jeopardy.DefaultRows, len(board.Rows))
	}
	if !strings.Contains(board.HTML, `data-category="1" data-clue="4"`) {
		t.Fatalf("board markup missing coordinate-tagged cells: %s", board.HTML)
	}
	if status := readUntil(t, conn, "status"); status.State != "ready" {
		t.Fatalf("expected ready, got %q", status.State)
	}

	for _, want := range []string{"2+2", "4"} {
		activate(t, conn, 0, 0)

		msg := readNext(t, conn)
		if msg.Type != "cell" || msg.Content != want {
			t.Fatalf("expected cell %q, got %+v", want, msg)
		}
	}

	for _, want := range []string{"Hamlet Author", "Shakespeare"} {
		activate(t, conn, 1, 0)

		msg := readNext(t, conn)
		if msg.Type != "cell" || msg.Content != want {
			t.Fatalf("expected cell %q, got %+v", want, msg)
		}
	}

	// A third activation of an answered clue sends nothing, so the next
	// message is the error for the out-of-range cell that follows it.
	activate(t, conn, 1, 0)
	activate(t, conn, 1, 4)

	if msg := readNext(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for short category, got %+v", msg)
	}
}

func TestGameLateJoinerSeesRevealedCells(t *testing.T) {
	api := newTriviaAPI(t, mathAndLit())
	srv := newGameServer(t, api.URL+"/api")

	first := dialGame(t, srv, "latejoin")
	readUntil(t, first, "board")

	activate(t, first, 0, 1)
	readUntil(t, first, "cell")
	activate(t, first, 0, 1)
	readUntil(t, first, "cell")

	second := dialGame(t, srv, "latejoin")
	readUntil(t, second, "board")

	cell := readUntil(t, second, "cell")
	if cell.Category != 0 || cell.Clue != 1 || cell.Content != "2" || cell.Reveal != "answer" {
		t.Fatalf("unexpected replayed cell %+v", cell)
	}

	// Reveals made by one player reach everyone.
	activate(t, second, 1, 0)
	if msg := readUntil(t, first, "cell"); msg.Content != "Hamlet Author" {
		t.Fatalf("first player did not see reveal, got %+v", msg)
	}
}

func TestGameRestart(t *testing.T) {
	api := newTriviaAPI(t, mathAndLit())
	srv := newGameServer(t, api.URL+"/api")

	conn := dialGame(t, srv, "restart")
	readUntil(t, conn, "board")

	activate(t, conn, 0, 0)
	readUntil(t, conn, "cell")

	if err := conn.WriteJSON(ClientMessage{Type: "restart"}); err != nil {
		t.Fatalf("restart: %v", err)
	}

	if msg := readNext(t, conn); msg.Type != "clear" {
		t.Fatalf("expected clear before reload, got %+v", msg)
	}

	board := readUntil(t, conn, "board")
	if len(board.Titles) != 2 {
		t.Fatalf("expected 2 categories after restart, got %d", len(board.Titles))
	}

	activate(t, conn, 0, 0)
	if msg := readNext(t, conn); msg.Type != "cell" || msg.Reveal != "question" {
		t.Fatalf("expected fresh clue to show its question, got %+v", msg)
	}
}

func TestGameLoadFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(api.Close)

	srv := newGameServer(t, api.URL)
	conn := dialGame(t, srv, "failure")

	if msg := readUntil(t, conn, "error"); msg.Message == "" {
		t.Fatal("expected an error message")
	}
	if status := readUntil(t, conn, "status"); status.State != "idle" {
		t.Fatalf("expected idle after failed load, got %q", status.State)
	}

	activate(t, conn, 0, 0)
	if msg := readNext(t, conn); msg.Type != "error" {
		t.Fatalf("expected error activating an empty board, got %+v", msg)
	}
}

func TestGameFailedLoadIsNotRetriedOnJoin(t *testing.T) {
	var calls atomic.Int32

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(api.Close)

	srv := newGameServer(t, api.URL)

	first := dialGame(t, srv, "noretry")
	readUntil(t, first, "error")
	if status := readUntil(t, first, "status"); status.State != "idle" {
		t.Fatalf("expected idle after failed load, got %q", status.State)
	}

	before := calls.Load()
	if before != 1 {
		t.Fatalf("expected 1 API call for the first load, got %d", before)
	}

	second := dialGame(t, srv, "noretry")

	// Every message, status included, so a second load would show up as
	// a loading status ahead of the activation error.
	next := func() wsMessage {
		t.Helper()

		_ = second.SetReadDeadline(time.Now().Add(5 * time.Second))

		var msg wsMessage
		if err := second.ReadJSON(&msg); err != nil {
			t.Fatalf("reading message: %v", err)
		}
		return msg
	}

	if msg := next(); msg.Type != "status" || msg.State != "idle" {
		t.Fatalf("expected idle status on join, got %+v", msg)
	}

	activate(t, second, 0, 0)
	if msg := next(); msg.Type != "error" {
		t.Fatalf("expected only an activation error after joining, got %+v", msg)
	}

	if after := calls.Load(); after != before {
		t.Fatalf("joining a failed game called the API again: %d calls, expected %d", after, before)
	}
}

func TestGameLoadTimeout(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(api.Close)

	srv := newGameServerWithTimeout(t, api.URL, 200*time.Millisecond)
	conn := dialGame(t, srv, "timeout")

	start := time.Now()

	if msg := readUntil(t, conn, "error"); msg.Message == "" {
		t.Fatal("expected an error message")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("load was not bounded by the fetch timeout, took %s", elapsed)
	}
	if status := readUntil(t, conn, "status"); status.State != "idle" {
		t.Fatalf("expected idle after timeout, got %q", status.State)
	}

	activate(t, conn, 0, 0)
	if msg := readNext(t, conn); msg.Type != "error" {
		t.Fatalf("expected error activating an empty board, got %+v", msg)
	}
}

func TestGameManagerReap(t *testing.T) {
	cfg := validConfig()
	gm := newGameManager(0, newSessionFactory(cfg))

	hub := gm.getHub(cfg, "stale")
	if gm.getHub(cfg, "stale") != hub {
		t.Fatal("expected the same hub for the same game id")
	}

	hub.mu.Lock()
	hub.lastActive = time.Now().Add(-time.Hour)
	hub.mu.Unlock()

	fresh := gm.getHub(cfg, "fresh")

	if n := gm.reap(time.Now().Add(-time.Minute)); n != 1 {
		t.Fatalf("expected 1 reaped game, got %d", n)
	}

	select {
	case <-hub.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("reaped hub was not stopped")
	}

	if fresh.ctx.Err() != nil {
		t.Fatal("active hub was stopped")
	}
	if gm.getHub(cfg, "stale") == hub {
		t.Fatal("reaped hub is still registered")
	}
}
