// Package jsontok parses a JSON document into a flat, read-only token tree
// whose tokens carry byte offsets into the original buffer.
//
// The tree is built once per incoming call and then only navigated: callers
// walk array elements and object members through Node values and read raw
// spans without re-tokenizing the input.
//
//	tree, err := jsontok.Parse([]byte(`{"amount":"1000msat","label":null}`))
//	for _, m := range tree.Root().Members() {
//	    fmt.Println(m.Name(), m.Value.Kind(), m.Value.Text())
//	}
package jsontok

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// Kind is the JSON type of a token.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// ErrInvalidJSON is returned by Parse when the input is not a single valid
// JSON value.
var ErrInvalidJSON = errors.New("jsontok: invalid JSON")

// token is one entry of the flat tree. Containers are followed by their
// children; object children alternate key, value.
type token struct {
	kind  Kind
	start int
	end   int
	size  int // elements for arrays, members for objects
	next  int // index of the first token after this subtree
}

// Tree is an immutable token tree over a buffer.
type Tree struct {
	buf  []byte
	toks []token
}

type frame struct {
	idx          int
	expectingKey bool
}

// Parse tokenizes buf. buf is retained by the returned Tree and must not be
// modified afterwards.
func Parse(buf []byte) (*Tree, error) {
	if !json.Valid(buf) {
		return nil, ErrInvalidJSON
	}

	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()

	t := &Tree{buf: buf, toks: make([]token, 0, 16)}
	var stack []frame
	pos := 0

	// beginValue accounts for a new value (or object key) in its parent.
	beginValue := func(isString bool) error {
		if len(stack) == 0 {
			if len(t.toks) > 0 {
				return fmt.Errorf("%w: trailing data at offset %d", ErrInvalidJSON, pos)
			}
			return nil
		}
		top := &stack[len(stack)-1]
		parent := &t.toks[top.idx]
		if parent.kind == KindObject {
			if top.expectingKey {
				if !isString {
					return fmt.Errorf("%w: object key at offset %d is not a string", ErrInvalidJSON, pos)
				}
				parent.size++
				top.expectingKey = false
				return nil
			}
			top.expectingKey = true
			return nil
		}
		parent.size++
		return nil
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}

		pos = skipSeparators(buf, pos)
		if pos >= len(buf) {
			return nil, fmt.Errorf("%w: unexpected end of input", ErrInvalidJSON)
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{', '[':
				if err := beginValue(false); err != nil {
					return nil, err
				}
				kind := KindArray
				if v == '{' {
					kind = KindObject
				}
				stack = append(stack, frame{idx: len(t.toks), expectingKey: kind == KindObject})
				t.toks = append(t.toks, token{kind: kind, start: pos})
				pos++
			case '}', ']':
				if len(stack) == 0 {
					return nil, fmt.Errorf("%w: unbalanced %q at offset %d", ErrInvalidJSON, rune(v), pos)
				}
				idx := stack[len(stack)-1].idx
				stack = stack[:len(stack)-1]
				pos++
				t.toks[idx].end = pos
				t.toks[idx].next = len(t.toks)
			}
		case string:
			if err := beginValue(true); err != nil {
				return nil, err
			}
			end := scanString(buf, pos)
			t.toks = append(t.toks, token{kind: KindString, start: pos, end: end, next: len(t.toks) + 1})
			pos = end
		case json.Number, float64:
			if err := beginValue(false); err != nil {
				return nil, err
			}
			end := scanNumber(buf, pos)
			t.toks = append(t.toks, token{kind: KindNumber, start: pos, end: end, next: len(t.toks) + 1})
			pos = end
		case bool:
			if err := beginValue(false); err != nil {
				return nil, err
			}
			end := pos + 4
			if !v {
				end = pos + 5
			}
			t.toks = append(t.toks, token{kind: KindBool, start: pos, end: end, next: len(t.toks) + 1})
			pos = end
		case nil:
			if err := beginValue(false); err != nil {
				return nil, err
			}
			t.toks = append(t.toks, token{kind: KindNull, start: pos, end: pos + 4, next: len(t.toks) + 1})
			pos += 4
		default:
			return nil, fmt.Errorf("%w: unexpected token %T at offset %d", ErrInvalidJSON, tok, pos)
		}
	}

	if len(t.toks) == 0 || len(stack) != 0 {
		return nil, ErrInvalidJSON
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// static fixtures.
func MustParse(s string) *Tree {
	t, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return t
}

// Root returns the top-level value.
func (t *Tree) Root() Node {
	if t == nil || len(t.toks) == 0 {
		return Node{}
	}
	return Node{t: t, i: 0}
}

// Buffer returns the buffer the tree was parsed from.
func (t *Tree) Buffer() []byte { return t.buf }

// Len returns the number of tokens in the tree.
func (t *Tree) Len() int { return len(t.toks) }

func skipSeparators(buf []byte, pos int) int {
	for pos < len(buf) {
		switch buf[pos] {
		case ' ', '\t', '\n', '\r', ',', ':':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// scanString returns the offset just past the closing quote of the string
// starting at pos. The input has already been validated.
func scanString(buf []byte, pos int) int {
	i := pos + 1
	for i < len(buf) {
		switch buf[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return i + 1
		}
		i++
	}
	return len(buf)
}

func scanNumber(buf []byte, pos int) int {
	i := pos
	for i < len(buf) {
		switch c := buf[i]; {
		case c >= '0' && c <= '9', c == '-', c == '+', c == '.', c == 'e', c == 'E':
			i++
		default:
			return i
		}
	}
	return i
}
