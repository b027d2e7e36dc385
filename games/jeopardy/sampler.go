/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"fmt"
	"math/rand/v2"
)

// Sample draws n distinct integers from [0, bound) by rejection sampling.
// The result is in draw order, which carries no meaning.
func Sample(rng *rand.Rand, n, bound int) ([]int, error) {
	if n < 0 || bound < 0 || n > bound {
		return nil, fmt.Errorf("%w: need %d distinct values from [0, %d)", ErrSampleRange, n, bound)
	}

	seen := make(map[int]struct{}, n)
	out := make([]int, 0, n)

	for len(out) < n {
		v := rng.IntN(bound)
		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out, nil
}
