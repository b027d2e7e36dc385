/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	DefaultCategories  = 6
	DefaultRows        = 5
	DefaultOffsetBound = 18414
)

// Settings sizes a game.
type Settings struct {
	Categories  int
	Rows        int
	OffsetBound int
}

func DefaultSettings() Settings {
	return Settings{
		Categories:  DefaultCategories,
		Rows:        DefaultRows,
		OffsetBound: DefaultOffsetBound,
	}
}

func (s Settings) Validate() error {
	switch {
	case s.Categories < 1:
		return fmt.Errorf("invalid category count (must be at least 1): %d", s.Categories)
	case s.Rows < 1:
		return fmt.Errorf("invalid clue row count (must be at least 1): %d", s.Rows)
	case s.Categories > s.OffsetBound:
		return fmt.Errorf("%w: %d categories from %d offsets", ErrSampleRange, s.Categories, s.OffsetBound)
	}

	return nil
}

type State int

const (
	Idle State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CellUpdate is the result of activating a cell.
type CellUpdate struct {
	Category int         `json:"category"`
	Clue     int         `json:"clue"`
	Content  string      `json:"content"`
	Reveal   RevealState `json:"reveal"`
	Changed  bool        `json:"-"`
}

// Session owns one game's board and drives its load sequence. At most one
// load runs at a time; the board only accepts activations once Ready.
type Session struct {
	mu sync.Mutex

	fetcher  *Fetcher
	settings Settings

	board        Board
	state        State
	presentation Presentation
}

func NewSession(f *Fetcher, settings Settings) *Session {
	return &Session{
		fetcher:  f,
		settings: settings,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Categories returns a copy of the current board.
func (s *Session) Categories() []Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board.Categories()
}

// Presentation returns the last render, and false if the board is not Ready.
func (s *Session) Presentation() (Presentation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.presentation, s.state == Ready
}

// Start resets the board, resolves fresh categories, loads each one in turn
// and renders the result. It returns ErrBusy if a load is already running.
// On failure the board is left empty and the session returns to Idle.
func (s *Session) Start(ctx context.Context) (Presentation, error) {
	if err := s.Begin(); err != nil {
		return Presentation{}, err
	}

	return s.Load(ctx)
}

// Restart discards the current board and presentation and loads a new game.
func (s *Session) Restart(ctx context.Context) (Presentation, error) {
	return s.Start(ctx)
}

// Begin moves the session into Loading and discards the current board, so
// that activations fail with ErrNotReady from this point on. Load must follow.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Loading {
		return ErrBusy
	}

	s.state = Loading
	s.board.Reset()
	s.presentation = Presentation{}

	return nil
}

// Load fetches and renders the board for a session already moved into
// Loading by Begin.
func (s *Session) Load(ctx context.Context) (Presentation, error) {
	if s.State() != Loading {
		return Presentation{}, errors.New("load called without begin")
	}

	ids, err := s.fetcher.ResolveCategoryIDs(ctx, s.settings.Categories)
	if err != nil {
		return Presentation{}, s.fail(err)
	}

	for _, id := range ids {
		category, err := s.fetcher.LoadCategory(ctx, id)
		if err != nil {
			return Presentation{}, s.fail(err)
		}

		s.mu.Lock()
		s.board.Append(category)
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.presentation = Render(s.board.Categories(), s.settings.Rows)
	s.state = Ready

	return s.presentation, nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.board.Reset()
	s.presentation = Presentation{}
	s.state = Idle

	return err
}

// Activate advances the clue at (cat, clue) and returns the content its
// cell should now display. Activating a clue already showing its answer is
// a no-op reported with Changed set to false.
func (s *Session) Activate(cat, clue int) (CellUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return CellUpdate{}, ErrNotReady
	}

	if clue < 0 || clue >= s.settings.Rows {
		return CellUpdate{}, fmt.Errorf("%w: clue %d has no cell in %d rows", ErrClueOutOfRange, clue, s.settings.Rows)
	}

	current, err := s.board.Clue(cat, clue)
	if err != nil {
		return CellUpdate{}, err
	}

	update := CellUpdate{
		Category: cat,
		Clue:     clue,
	}

	if current.Reveal == Answer {
		update.Content = current.Content()
		update.Reveal = current.Reveal

		return update, nil
	}

	next, err := s.board.Advance(cat, clue)
	if err != nil {
		return CellUpdate{}, err
	}

	update.Content = next.Content()
	update.Reveal = next.Reveal
	update.Changed = true

	return update, nil
}

// Revealed lists every rendered cell that no longer shows the placeholder.
func (s *Session) Revealed() []CellUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return nil
	}

	var out []CellUpdate
	for i, c := range s.board.categories {
		for j, clue := range c.Clues {
			if j >= s.settings.Rows || clue.Reveal == Hidden {
				continue
			}

			out = append(out, CellUpdate{
				Category: i,
				Clue:     j,
				Content:  clue.Content(),
				Reveal:   clue.Reveal,
			})
		}
	}

	return out
}
