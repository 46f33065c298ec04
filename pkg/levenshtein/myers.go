package levenshtein

// distanceMyers64 is Myers' bit-vector distance for a pattern s1 of at most 64
// runes. Reference: Hyyrö, H. (2001). "Explaining and extending the
// bit-parallel approximate string matching algorithm of Myers".
func (ctx *Context) distanceMyers64(s1, s2 []rune) int {
	for i, r := range s1 {
		if r < asciiMax {
			ctx.peq[r] |= 1 << i
		}
	}

	// vp and vn are the positive and negative vertical deltas of the current column.
	vp := ^uint64(0)
	vn := uint64(0)
	score := len(s1)
	mask := uint64(1) << (len(s1) - 1)

	for _, char := range s2 {
		pm := ctx.matchVector(s1, char)

		x := pm | vn
		d0 := ((vp + (x & vp)) ^ vp) | x
		hn := vp & d0
		hp := vn | ^(d0 | vp)

		if hp&mask != 0 {
			score++
		}

		if hn&mask != 0 {
			score--
		}

		x = (hp << 1) | 1
		vn = x & d0
		vp = (hn << 1) | ^(x | d0)
	}

	for _, r := range s1 {
		if r < asciiMax {
			ctx.peq[r] = 0
		}
	}

	return score
}

// matchVector has bit i set where s1[i] == char.
func (ctx *Context) matchVector(s1 []rune, char rune) uint64 {
	if char < asciiMax {
		return ctx.peq[char]
	}

	var pm uint64

	for i, r := range s1 {
		if r == char {
			pm |= 1 << i
		}
	}

	return pm
}
