// Package parse provides the small recursive-descent scanning engine shared
// by the MSG and IDL definition parsers: position tracking, whitespace/comment
// skipping and a common ParseError type carrying position and excerpt.
package parse

import (
	"fmt"
	"regexp"
)

// Error is returned by a DefinitionParser on unparseable input. It carries
// the byte offset and a short excerpt of surrounding text so editors and
// logs can point at the failure.
type Error struct {
	Pos     int
	Excerpt string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d near %q: %s", e.Pos, e.Excerpt, e.Reason)
}

func excerpt(text string, pos int) string {
	start := pos - 20
	if start < 0 {
		start = 0
	}
	end := pos + 20
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

// NewError builds a parse.Error anchored at pos within text.
func NewError(text string, pos int, reason string) *Error {
	return &Error{Pos: pos, Excerpt: excerpt(text, pos), Reason: reason}
}

// Scanner walks a definition text, skipping whitespace (and, optionally,
// comment lines) between tokens.
type Scanner struct {
	Text    string
	Pos     int
	skipper *regexp.Regexp
}

// NewScanner builds a Scanner. skipPattern is matched repeatedly at the
// current position and consumed (e.g. whitespace, or whitespace-and-comments
// for IDL).
func NewScanner(text string, skipPattern *regexp.Regexp) *Scanner {
	s := &Scanner{Text: text, skipper: skipPattern}
	s.SkipWS()
	return s
}

// SkipWS advances over any run of the skip pattern at the current position.
func (s *Scanner) SkipWS() {
	for {
		loc := s.skipper.FindStringIndex(s.Text[s.Pos:])
		if loc == nil || loc[0] != 0 {
			return
		}
		s.Pos += loc[1]
	}
}

// Eof reports whether the scanner has consumed the whole input.
func (s *Scanner) Eof() bool {
	return s.Pos >= len(s.Text)
}

// Literal consumes an exact literal string, returning false (without
// advancing) if it does not match at the current position.
func (s *Scanner) Literal(lit string) bool {
	if len(s.Text)-s.Pos < len(lit) || s.Text[s.Pos:s.Pos+len(lit)] != lit {
		return false
	}
	s.Pos += len(lit)
	s.SkipWS()
	return true
}

// Regexp consumes a regular expression match anchored at the current
// position, returning the match text and whether it matched.
func (s *Scanner) Regexp(re *regexp.Regexp) (string, bool) {
	loc := re.FindStringIndex(s.Text[s.Pos:])
	if loc == nil || loc[0] != 0 {
		return "", false
	}
	match := s.Text[s.Pos+loc[0] : s.Pos+loc[1]]
	s.Pos += loc[1]
	s.SkipWS()
	return match, true
}

// Mark returns a checkpoint that Reset can later restore, for backtracking
// across alternatives.
func (s *Scanner) Mark() int { return s.Pos }

// Reset restores a previously marked position.
func (s *Scanner) Reset(mark int) { s.Pos = mark }
