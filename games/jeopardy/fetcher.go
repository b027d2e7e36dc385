package jeopardy

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// Service is the subset of the trivia API a game needs.
type Service interface {
	CategoryAt(ctx context.Context, offset int) (int, error)
	Category(ctx context.Context, id int) (RawCategory, error)
}

// Fetcher picks pseudo-random categories and loads their clues.
type Fetcher struct {
	svc   Service
	rng   *rand.Rand
	bound int
}

// NewFetcher returns a Fetcher sampling offsets from [0, bound).
// A nil rng falls back to a randomly seeded PCG source.
func NewFetcher(svc Service, rng *rand.Rand, bound int) *Fetcher {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Fetcher{
		svc:   svc,
		rng:   rng,
		bound: bound,
	}
}

// ResolveCategoryIDs returns count category ids, one request per sampled
// offset, issued sequentially. The first failure aborts the whole call.
func (f *Fetcher) ResolveCategoryIDs(ctx context.Context, count int) ([]int, error) {
	offsets, err := Sample(f.rng, count, f.bound)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(offsets))
	for _, offset := range offsets {
		id, err := f.svc.CategoryAt(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("resolve category at offset %d: %w", offset, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// LoadCategory fetches one category and normalizes its clues.
func (f *Fetcher) LoadCategory(ctx context.Context, id int) (Category, error) {
	raw, err := f.svc.Category(ctx, id)
	if err != nil {
		return Category{}, fmt.Errorf("load category %d: %w", id, err)
	}

	return Category{
		Title: raw.Title,
		Clues: Normalize(raw.Clues),
	}, nil
}
