// Copyright (c) 2015, Arbo von Monkiewitsch All rights reserved.
// Use of this source code is governed by a BSD-style
// license.

package levenshtein

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var distanceCases = []struct {
	s1     string
	s2     string
	wanted int
}{
	{"", "", 0},
	{"", "a", 1},
	{"a", "", 1},
	{"a", "a", 0},
	{"a", "b", 1},
	{"ab", "aa", 1},
	{"ab", "aaa", 2},
	{"kitten", "sitting", 3},
	{"sitting", "kitten", 3},
	{"aa", "aü", 1},
	{"Fön", "Föm", 1},
	{"abc", "def", 3},
	{"insert", "inser", 1},
	{"日本語", "日本人", 1},
	{"return x;", "return y + 1;", 5},
	{strings.Repeat("a", 64), strings.Repeat("a", 63) + "b", 1},
	{strings.Repeat("a", 64), strings.Repeat("a", 65), 1},
	{strings.Repeat("a", 65), strings.Repeat("a", 64) + "b", 1},
	{strings.Repeat("ab", 40), strings.Repeat("ba", 40), 2},
	{strings.Repeat("ü", 70), strings.Repeat("ü", 69) + "u", 1},
}

func TestDistance(t *testing.T) {
	t.Parallel()

	ctx := &Context{}

	for _, tc := range distanceCases {
		assert.Equal(t, tc.wanted, ctx.Distance([]rune(tc.s1), []rune(tc.s2)), "%q -> %q", tc.s1, tc.s2)
		assert.Equal(t, tc.wanted, ctx.Distance([]rune(tc.s2), []rune(tc.s1)), "%q -> %q", tc.s2, tc.s1)
	}
}

func TestDistance_BitParallelMatchesRows(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"func run() { return items; }", "func run(m int) { return pair; }"},
		{"x := compute(a, b)", "y := compute(b, a)"},
		{"Größe", "Grösse"},
		{strings.Repeat("xy", 32), strings.Repeat("yx", 33)},
	}

	ctx := &Context{}

	for _, pair := range pairs {
		s1, s2 := []rune(pair[0]), []rune(pair[1])
		if len(s1) > len(s2) {
			s1, s2 = s2, s1
		}

		assert.Equal(t, ctx.distanceRows(s1, s2), ctx.distanceMyers64(s1, s2), "%q -> %q", pair[0], pair[1])
	}
}

func TestDistance_ContextIsReusable(t *testing.T) {
	t.Parallel()

	ctx := &Context{}

	assert.Equal(t, 3, ctx.Distance([]rune("abc"), []rune("xyz")))
	assert.Equal(t, 0, ctx.Distance([]rune("xyz"), []rune("xyz")))
	assert.Equal(t, [asciiMax]uint64{}, ctx.peq)
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	ctx := &Context{}

	assert.InDelta(t, 1.0, ctx.Similarity(nil, nil), 1e-9)
	assert.InDelta(t, 1.0, ctx.Similarity([]rune("same"), []rune("same")), 1e-9)
	assert.InDelta(t, 0.0, ctx.Similarity([]rune("abc"), []rune("xyz")), 1e-9)
	assert.InDelta(t, 1-3.0/7, ctx.Similarity([]rune("kitten"), []rune("sitting")), 1e-9)
}
