package jeopardy

import "fmt"

// Board is the in-memory state of one game: an ordered list of categories.
// It is not safe for concurrent use; Session serializes access.
type Board struct {
	categories []Category
}

func (b *Board) Reset() {
	b.categories = nil
}

func (b *Board) Append(c Category) {
	b.categories = append(b.categories, c)
}

func (b *Board) Len() int {
	return len(b.categories)
}

// Categories returns a deep copy of the board.
func (b *Board) Categories() []Category {
	out := make([]Category, len(b.categories))
	for i, c := range b.categories {
		out[i] = Category{
			Title: c.Title,
			Clues: append([]Clue(nil), c.Clues...),
		}
	}

	return out
}

func (b *Board) Clue(cat, clue int) (Clue, error) {
	p, err := b.clue(cat, clue)
	if err != nil {
		return Clue{}, err
	}

	return *p, nil
}

// Advance moves the clue one reveal step forward and returns it.
// A clue already at Answer is returned unchanged.
func (b *Board) Advance(cat, clue int) (Clue, error) {
	p, err := b.clue(cat, clue)
	if err != nil {
		return Clue{}, err
	}

	p.Reveal = p.Reveal.Next()

	return *p, nil
}

func (b *Board) clue(cat, clue int) (*Clue, error) {
	if cat < 0 || cat >= len(b.categories) {
		return nil, fmt.Errorf("%w: category %d of %d", ErrClueOutOfRange, cat, len(b.categories))
	}

	clues := b.categories[cat].Clues
	if clue < 0 || clue >= len(clues) {
		return nil, fmt.Errorf("%w: clue %d of %d in category %d", ErrClueOutOfRange, clue, len(clues), cat)
	}

	return &clues[clue], nil
}
