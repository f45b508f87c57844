// Package quotation finds the quoted literals of a query string.
//
// A quoted range starts at a single (') or double (") quote and ends at the
// next occurrence of the same character. The other quote character inside an
// open range is ordinary content. Offsets are byte offsets into the string.
package quotation

import (
	"errors"
	"fmt"
)

// ErrUnterminatedQuote is returned when a quoted range is never closed.
var ErrUnterminatedQuote = errors.New("unterminated quoted range")

// UnterminatedQuoteError describes the quoted range that was left open.
type UnterminatedQuoteError struct {
	Query string
	Start int
	Quote byte
}

func (e *UnterminatedQuoteError) Error() string {
	return fmt.Sprintf("the string <%s> starts a quoted range at %d, but never ends it", e.Query, e.Start)
}

// Unwrap lets errors.Is match ErrUnterminatedQuote.
func (e *UnterminatedQuoteError) Unwrap() error {
	return ErrUnterminatedQuote
}

// Range is a closed interval of byte offsets. Both ends are inclusive.
type Range struct {
	Start int
	End   int
}

// Contains reports whether index lies within the range.
func (r Range) Contains(index int) bool {
	return r.Start <= index && index <= r.End
}

// Map holds the quoted ranges of one string. It is immutable once built.
// A nil *Map behaves like an empty map.
type Map struct {
	ranges []Range
}

// Empty returns a map without quoted ranges, used when there is no query text.
func Empty() *Map {
	return &Map{}
}

// New scans query once and records every quoted range.
func New(query string) (*Map, error) {
	m := &Map{}

	var (
		open  byte
		start int
	)

	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '\'' && c != '"' {
			continue
		}

		switch open {
		case 0:
			open = c
			start = i
		case c:
			m.ranges = append(m.ranges, Range{Start: start, End: i})
			open = 0
		}
	}

	if open != 0 {
		return nil, &UnterminatedQuoteError{Query: query, Start: start, Quote: open}
	}

	return m, nil
}

// IsQuoted reports whether index falls inside any quoted range.
func (m *Map) IsQuoted(index int) bool {
	if m == nil {
		return false
	}

	for _, r := range m.ranges {
		if r.Contains(index) {
			return true
		}
	}

	return false
}

// Ranges returns a copy of the quoted ranges in the order they were found.
func (m *Map) Ranges() []Range {
	if m == nil || len(m.ranges) == 0 {
		return nil
	}

	result := make([]Range, len(m.ranges))
	copy(result, m.ranges)

	return result
}

// Len returns the number of quoted ranges.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}

	return len(m.ranges)
}
