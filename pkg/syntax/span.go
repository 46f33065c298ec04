package syntax

import "fmt"

// Span is a source range. Offsets are 0-based byte offsets with an exclusive end;
// lines and columns are 1-based.
type Span struct {
	StartOffset int `json:"start_offset" yaml:"start_offset" msgpack:"so"`
	EndOffset   int `json:"end_offset"   yaml:"end_offset"   msgpack:"eo"`
	StartLine   int `json:"start_line"   yaml:"start_line"   msgpack:"sl"`
	StartCol    int `json:"start_col"    yaml:"start_col"    msgpack:"sc"`
	EndLine     int `json:"end_line"     yaml:"end_line"     msgpack:"el"`
	EndCol      int `json:"end_col"      yaml:"end_col"      msgpack:"ec"`
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return s.EndOffset - s.StartOffset
}

// IsEmpty reports whether the span covers no text.
func (s Span) IsEmpty() bool {
	return s.EndOffset <= s.StartOffset
}

// Contains reports whether other lies within s.
func (s Span) Contains(other Span) bool {
	return s.StartOffset <= other.StartOffset && other.EndOffset <= s.EndOffset
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.StartOffset < other.EndOffset && other.StartOffset < s.EndOffset
}

// Before reports whether s ends at or before the start of other.
func (s Span) Before(other Span) bool {
	return s.EndOffset <= other.StartOffset
}

// LineDelta returns the line offset from s to other.
func (s Span) LineDelta(other Span) int {
	return other.StartLine - s.StartLine
}

// SameShape reports whether other covers text of the same length and columns as s,
// so the two differ at most by a line offset.
func (s Span) SameShape(other Span) bool {
	return s.Len() == other.Len() &&
		s.StartCol == other.StartCol &&
		s.EndCol == other.EndCol &&
		s.EndLine-s.StartLine == other.EndLine-other.StartLine
}

// Shift moves a sub-span of from into the coordinate space of to, keeping its
// relative offset. Both from and to must have the same shape for the result to be exact.
func (s Span) Shift(from, to Span) Span {
	lineDelta := to.StartLine - from.StartLine
	offsetDelta := to.StartOffset - from.StartOffset

	shifted := Span{
		StartOffset: s.StartOffset + offsetDelta,
		EndOffset:   s.EndOffset + offsetDelta,
		StartLine:   s.StartLine + lineDelta,
		StartCol:    s.StartCol,
		EndLine:     s.EndLine + lineDelta,
		EndCol:      s.EndCol,
	}

	if s.StartLine == from.StartLine {
		shifted.StartCol = s.StartCol - from.StartCol + to.StartCol
	}

	if s.EndLine == from.StartLine {
		shifted.EndCol = s.EndCol - from.StartCol + to.StartCol
	}

	return shifted
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// Compare orders spans by start offset, then by end offset.
func (s Span) Compare(other Span) int {
	switch {
	case s.StartOffset != other.StartOffset:
		return cmpInt(s.StartOffset, other.StartOffset)
	default:
		return cmpInt(s.EndOffset, other.EndOffset)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
