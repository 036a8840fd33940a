// Package sexpr reads S-expressions as used by SyGuS problem files and
// SMT-LIB solver responses.
package sexpr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type NodeKind int

const (
	Atom NodeKind = iota
	String
	List
)

// Node is one S-expression. Atoms keep their raw text; strings hold the
// unquoted contents.
type Node struct {
	Kind  NodeKind
	Text  string
	Items []*Node
	Line  int
	Col   int
}

// IsAtom reports whether n is an atom spelled text.
func (n *Node) IsAtom(text string) bool {
	return n != nil && n.Kind == Atom && n.Text == text
}

// Head returns the text of the first atom of a list, or "".
func (n *Node) Head() string {
	if n == nil || n.Kind != List || len(n.Items) == 0 || n.Items[0].Kind != Atom {
		return ""
	}
	return n.Items[0].Text
}

// Int reports whether n is a numeral atom and returns its value.
func (n *Node) Int() (int64, bool) {
	if n == nil || n.Kind != Atom || !isNumeral(n.Text) {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Text, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsNumeral reports whether n is spelled as a numeral, whatever its size.
func (n *Node) IsNumeral() bool {
	return n != nil && n.Kind == Atom && isNumeral(n.Text)
}

func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.Kind {
	case Atom:
		sb.WriteString(n.Text)
	case String:
		sb.WriteString(strconv.Quote(n.Text))
	case List:
		sb.WriteByte('(')
		for i, it := range n.Items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			it.write(sb)
		}
		sb.WriteByte(')')
	}
}

func isNumeral(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Error is a syntax error with the position where it was detected.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Reader yields successive top-level S-expressions from a stream.
type Reader struct {
	r    *bufio.Reader
	line int
	col  int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), line: 1}
}

// Parse reads every top-level expression in src.
func Parse(src string) ([]*Node, error) {
	rd := NewReader(strings.NewReader(src))
	var out []*Node
	for {
		n, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
}

// Next returns the next expression, or io.EOF when the stream ends cleanly
// between expressions.
func (rd *Reader) Next() (*Node, error) {
	if err := rd.skip(); err != nil {
		return nil, err
	}
	return rd.node()
}

func (rd *Reader) read() (rune, error) {
	c, _, err := rd.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if c == '\n' {
		rd.line++
		rd.col = 0
	} else {
		rd.col++
	}
	return c, nil
}

func (rd *Reader) peek() (rune, error) {
	c, _, err := rd.r.ReadRune()
	if err != nil {
		return 0, err
	}
	return c, rd.r.UnreadRune()
}

// skip consumes whitespace and ; comments.
func (rd *Reader) skip() error {
	for {
		c, err := rd.peek()
		if err != nil {
			return err
		}
		switch {
		case c == ';':
			for c != '\n' {
				if c, err = rd.read(); err != nil {
					return err
				}
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if _, err := rd.read(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (rd *Reader) errorf(format string, args ...any) error {
	return &Error{Line: rd.line, Col: rd.col, Msg: fmt.Sprintf(format, args...)}
}

func (rd *Reader) node() (*Node, error) {
	c, err := rd.read()
	if err != nil {
		return nil, err
	}
	line, col := rd.line, rd.col
	switch c {
	case ')':
		return nil, rd.errorf("unexpected ')'")
	case '(':
		n := &Node{Kind: List, Line: line, Col: col}
		for {
			if err := rd.skip(); err != nil {
				return nil, rd.unterminated(err, "list")
			}
			c, _ := rd.peek()
			if c == ')' {
				_, _ = rd.read()
				return n, nil
			}
			child, err := rd.node()
			if err != nil {
				return nil, rd.unterminated(err, "list")
			}
			n.Items = append(n.Items, child)
		}
	case '"':
		var sb strings.Builder
		for {
			c, err := rd.read()
			if err != nil {
				return nil, rd.unterminated(err, "string")
			}
			if c == '"' {
				// SMT-LIB escapes a quote by doubling it.
				if next, err := rd.peek(); err == nil && next == '"' {
					_, _ = rd.read()
					sb.WriteRune('"')
					continue
				}
				return &Node{Kind: String, Text: sb.String(), Line: line, Col: col}, nil
			}
			sb.WriteRune(c)
		}
	case '|':
		var sb strings.Builder
		for {
			c, err := rd.read()
			if err != nil {
				return nil, rd.unterminated(err, "quoted symbol")
			}
			if c == '|' {
				return &Node{Kind: Atom, Text: sb.String(), Line: line, Col: col}, nil
			}
			sb.WriteRune(c)
		}
	default:
		var sb strings.Builder
		sb.WriteRune(c)
		for {
			c, err := rd.peek()
			if err != nil || isDelim(c) {
				break
			}
			_, _ = rd.read()
			sb.WriteRune(c)
		}
		return &Node{Kind: Atom, Text: sb.String(), Line: line, Col: col}, nil
	}
}

func (rd *Reader) unterminated(err error, what string) error {
	if errors.Is(err, io.EOF) {
		return rd.errorf("unterminated %s", what)
	}
	return err
}

func isDelim(c rune) bool {
	switch c {
	case '(', ')', ' ', '\t', '\n', '\r', ';', '"':
		return true
	}
	return false
}
