// Copyright (c) 2015, Arbo von Monkiewitsch All rights reserved.
// Use of this source code is governed by a BSD-style
// license.

// Package levenshtein computes edit distances between rune sequences.
package levenshtein

const (
	// myersWordBits is the longest shorter input handled by the bit-parallel path.
	myersWordBits = 64
	asciiMax      = 256
)

// Context reuses buffers across Distance calls so repeated comparisons do not
// allocate. It is not safe for concurrent use.
type Context struct {
	column []int
	// peq holds the match bit-vectors of the current pattern. It is all zero
	// between calls.
	peq [asciiMax]uint64
}

// Distance returns the fewest single-rune insertions, deletions and
// substitutions that turn s1 into s2.
func (ctx *Context) Distance(s1, s2 []rune) int {
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}

	switch {
	case len(s1) == 0:
		return len(s2)
	case len(s1) <= myersWordBits:
		return ctx.distanceMyers64(s1, s2)
	default:
		return ctx.distanceRows(s1, s2)
	}
}

// Similarity returns 1 - Distance/longest, so 1 means equal and 0 means
// nothing in common. Two empty inputs are equal.
func (ctx *Context) Similarity(s1, s2 []rune) float64 {
	longest := max(len(s1), len(s2))
	if longest == 0 {
		return 1
	}

	return 1 - float64(ctx.Distance(s1, s2))/float64(longest)
}

// distanceRows is the dynamic-programming distance in O(len(s1)) space,
// with s1 the shorter input.
func (ctx *Context) distanceRows(s1, s2 []rune) int {
	if cap(ctx.column) < len(s1)+1 {
		ctx.column = make([]int, len(s1)+1)
	}

	column := ctx.column[:len(s1)+1]
	for idx := range column {
		column[idx] = idx
	}

	for col, s2Rune := range s2 {
		lastDiag := column[0]
		column[0] = col + 1

		for row, s1Rune := range s1 {
			oldDiag := column[row+1]

			cost := 1
			if s1Rune == s2Rune {
				cost = 0
			}

			column[row+1] = min(column[row+1]+1, column[row]+1, lastDiag+cost)
			lastDiag = oldDiag
		}
	}

	return column[len(s1)]
}
