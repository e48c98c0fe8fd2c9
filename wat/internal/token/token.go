// Package token splits WebAssembly text into tokens.
package token

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type Kind int

const (
	LParen Kind = iota
	RParen
	Keyword
	ID
	Number
	String
)

func (k Kind) String() string {
	switch k {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Keyword:
		return "keyword"
	case ID:
		return "identifier"
	case Number:
		return "number"
	case String:
		return "string"
	}
	return "unknown"
}

// Token is one lexeme. String tokens hold the decoded bytes.
type Token struct {
	Text string
	Kind Kind
	Line int
}

// Scan tokenizes src. Comments and whitespace are dropped.
func Scan(src string) ([]Token, error) {
	s := &scanner{src: src, line: 1}
	var out []Token
	for {
		tok, ok, err := s.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, tok)
	}
}

type scanner struct {
	src  string
	pos  int
	line int
}

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: "+format, append([]any{s.line}, args...)...)
}

func (s *scanner) next() (Token, bool, error) {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.line++
			s.pos++
		case c == ' ' || c == '\t' || c == '\r':
			s.pos++
		case strings.HasPrefix(s.src[s.pos:], ";;"):
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case strings.HasPrefix(s.src[s.pos:], "(;"):
			if err := s.blockComment(); err != nil {
				return Token{}, false, err
			}
		case c == '(':
			s.pos++
			return Token{Text: "(", Kind: LParen, Line: s.line}, true, nil
		case c == ')':
			s.pos++
			return Token{Text: ")", Kind: RParen, Line: s.line}, true, nil
		case c == '"':
			return s.str()
		default:
			return s.atom()
		}
	}
	return Token{}, false, nil
}

func (s *scanner) blockComment() error {
	depth := 0
	for s.pos < len(s.src) {
		rest := s.src[s.pos:]
		switch {
		case strings.HasPrefix(rest, "(;"):
			depth++
			s.pos += 2
		case strings.HasPrefix(rest, ";)"):
			depth--
			s.pos += 2
			if depth == 0 {
				return nil
			}
		default:
			if rest[0] == '\n' {
				s.line++
			}
			s.pos++
		}
	}
	return s.errorf("unterminated block comment")
}

func (s *scanner) str() (Token, bool, error) {
	line := s.line
	s.pos++ // opening quote
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch c {
		case '"':
			s.pos++
			return Token{Text: b.String(), Kind: String, Line: line}, true, nil
		case '\n':
			return Token{}, false, s.errorf("newline in string")
		case '\\':
			if err := s.escape(&b); err != nil {
				return Token{}, false, err
			}
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return Token{}, false, s.errorf("unterminated string")
}

func (s *scanner) escape(b *strings.Builder) error {
	if s.pos+1 >= len(s.src) {
		return s.errorf("unterminated string")
	}
	c := s.src[s.pos+1]
	s.pos += 2
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '"', '\'', '\\':
		b.WriteByte(c)
	case 'u':
		end := strings.IndexByte(s.src[s.pos:], '}')
		if !strings.HasPrefix(s.src[s.pos:], "{") || end < 0 {
			return s.errorf("malformed unicode escape")
		}
		v, err := strconv.ParseUint(s.src[s.pos+1:s.pos+end], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return s.errorf("malformed unicode escape")
		}
		b.WriteRune(rune(v))
		s.pos += end + 1
	default:
		if s.pos >= len(s.src) {
			return s.errorf("unterminated string")
		}
		v, err := strconv.ParseUint(s.src[s.pos-1:s.pos+1], 16, 8)
		if err != nil {
			return s.errorf("unknown escape \\%c", c)
		}
		b.WriteByte(byte(v))
		s.pos++
	}
	return nil
}

func (s *scanner) atom() (Token, bool, error) {
	start := s.pos
	for s.pos < len(s.src) && isIDChar(s.src[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return Token{}, false, s.errorf("unexpected character %q", s.src[s.pos])
	}
	text := s.src[start:s.pos]
	return Token{Text: text, Kind: classify(text), Line: s.line}, true, nil
}

func classify(text string) Kind {
	c := text[0]
	if c == '$' {
		return ID
	}
	if (c == '+' || c == '-') && len(text) > 1 {
		c = text[1]
	}
	if c >= '0' && c <= '9' {
		return Number
	}
	return Keyword
}

// isIDChar reports whether c may appear in a keyword, identifier or number.
func isIDChar(c byte) bool {
	if c <= ' ' || c >= 0x7F {
		return false
	}
	switch c {
	case '"', ',', ';', '(', ')', '[', ']', '{', '}':
		return false
	}
	return true
}
