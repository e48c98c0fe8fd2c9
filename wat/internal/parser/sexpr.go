package parser

import (
	"fmt"

	"github.com/wippyai/wasm-runner/wat/internal/token"
)

// node is an atom or a parenthesized list.
type node struct {
	list   []*node
	tok    token.Token
	isList bool
}

func (n *node) line() int { return n.tok.Line }

// head returns the keyword opening a list, or "".
func (n *node) head() string {
	if !n.isList || len(n.list) == 0 || n.list[0].isList || n.list[0].tok.Kind != token.Keyword {
		return ""
	}
	return n.list[0].tok.Text
}

func (n *node) is(kind token.Kind) bool {
	return !n.isList && n.tok.Kind == kind
}

func (n *node) keyword(text string) bool {
	return n.is(token.Keyword) && n.tok.Text == text
}

func (n *node) String() string {
	if n.isList {
		return "(" + n.head() + " ...)"
	}
	return n.tok.Text
}

// tree groups tokens into a single top-level list.
func tree(tokens []token.Token) (*node, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	root, rest, err := group(tokens)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("line %d: unexpected %q after module", rest[0].Line, rest[0].Text)
	}
	return root, nil
}

func group(tokens []token.Token) (*node, []token.Token, error) {
	t := tokens[0]
	switch t.Kind {
	case token.RParen:
		return nil, nil, fmt.Errorf("line %d: unexpected ')'", t.Line)
	case token.LParen:
		n := &node{tok: t, isList: true}
		rest := tokens[1:]
		for {
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("line %d: unexpected end of input", t.Line)
			}
			if rest[0].Kind == token.RParen {
				return n, rest[1:], nil
			}
			child, tail, err := group(rest)
			if err != nil {
				return nil, nil, err
			}
			n.list = append(n.list, child)
			rest = tail
		}
	default:
		return &node{tok: t}, tokens[1:], nil
	}
}

// cursor walks the items of a list.
type cursor struct {
	items []*node
	pos   int
}

// within returns a cursor over n's items after its head keyword.
func within(n *node) *cursor {
	return &cursor{items: n.list, pos: 1}
}

func (c *cursor) done() bool { return c.pos >= len(c.items) }

func (c *cursor) peek() *node {
	if c.done() {
		return nil
	}
	return c.items[c.pos]
}

func (c *cursor) next() *node {
	n := c.peek()
	if n != nil {
		c.pos++
	}
	return n
}

// peekList reports whether the next item is a list opened by head.
func (c *cursor) peekList(head string) bool {
	n := c.peek()
	return n != nil && n.head() == head
}

// optID consumes an identifier if one is next.
func (c *cursor) optID() string {
	if n := c.peek(); n != nil && n.is(token.ID) {
		c.pos++
		return n.tok.Text
	}
	return ""
}
