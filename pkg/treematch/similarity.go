package treematch

// maxCompareRunes bounds the text compared per node pair so long bodies
// cannot make the alignment quadratic in source length.
const maxCompareRunes = 512

// textSimilarity returns 1 - normalized Levenshtein distance between a and b.
func (mt *matcher) textSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}

	return mt.lev.Similarity(clip([]rune(a)), clip([]rune(b)))
}

func clip(runes []rune) []rune {
	if len(runes) > maxCompareRunes {
		return runes[:maxCompareRunes]
	}

	return runes
}

// diceCoefficient measures the overlap of two fingerprint multisets.
func diceCoefficient(left, right []uint64) float64 {
	if len(left) == 0 && len(right) == 0 {
		return 1
	}

	counts := make(map[uint64]int, len(left))
	for _, fp := range left {
		counts[fp]++
	}

	common := 0

	for _, fp := range right {
		if counts[fp] > 0 {
			counts[fp]--
			common++
		}
	}

	return 2 * float64(common) / float64(len(left)+len(right))
}
