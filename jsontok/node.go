package jsontok

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Node is a lightweight handle to one value in a Tree. The zero Node is
// invalid and reports KindInvalid.
type Node struct {
	t *Tree
	i int
}

// Member is one name/value pair of an object.
type Member struct {
	Key   Node
	Value Node
}

// Name returns the unquoted member name. Keys that fail to unquote fall back
// to their raw text without quotes.
func (m Member) Name() string {
	s, err := m.Key.Unquote()
	if err != nil {
		return m.Key.Inner()
	}
	return s
}

// Valid reports whether n refers to a token.
func (n Node) Valid() bool { return n.t != nil && n.i >= 0 && n.i < len(n.t.toks) }

// Kind returns the JSON type of n.
func (n Node) Kind() Kind {
	if !n.Valid() {
		return KindInvalid
	}
	return n.t.toks[n.i].kind
}

// IsNull reports whether n is an explicit JSON null.
func (n Node) IsNull() bool { return n.Kind() == KindNull }

// Raw returns the exact bytes of the value, including quotes for strings
// and brackets for containers. The slice aliases the tree's buffer.
func (n Node) Raw() []byte {
	if !n.Valid() {
		return nil
	}
	tok := n.t.toks[n.i]
	return n.t.buf[tok.start:tok.end:tok.end]
}

// Text returns the raw span as a string.
func (n Node) Text() string { return string(n.Raw()) }

// Offset returns the byte offset of the value in the tree's buffer, or -1.
func (n Node) Offset() int {
	if !n.Valid() {
		return -1
	}
	return n.t.toks[n.i].start
}

// Size returns the number of elements of an array or members of an object.
// Scalars have size 0.
func (n Node) Size() int {
	if !n.Valid() {
		return 0
	}
	return n.t.toks[n.i].size
}

// Elements returns the elements of an array in order. It returns nil for
// any other kind.
func (n Node) Elements() []Node {
	if n.Kind() != KindArray {
		return nil
	}
	tok := n.t.toks[n.i]
	out := make([]Node, 0, tok.size)
	for i := n.i + 1; i < tok.next; i = n.t.toks[i].next {
		out = append(out, Node{t: n.t, i: i})
	}
	return out
}

// Members returns the members of an object in input order, duplicates
// included. It returns nil for any other kind.
func (n Node) Members() []Member {
	if n.Kind() != KindObject {
		return nil
	}
	tok := n.t.toks[n.i]
	out := make([]Member, 0, tok.size)
	for i := n.i + 1; i < tok.next; {
		key := Node{t: n.t, i: i}
		val := Node{t: n.t, i: i + 1}
		out = append(out, Member{Key: key, Value: val})
		i = n.t.toks[i+1].next
	}
	return out
}

// Unquote decodes a string token into its Go value.
func (n Node) Unquote() (string, error) {
	if n.Kind() != KindString {
		return "", fmt.Errorf("jsontok: %s is not a string", n.Kind())
	}
	raw := n.Raw()
	// Fast path for strings without escapes.
	if !hasEscape(raw) {
		return string(raw[1 : len(raw)-1]), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("jsontok: unquote: %w", err)
	}
	return s, nil
}

// Decode unmarshals the raw span of n into v.
func (n Node) Decode(v any) error {
	if !n.Valid() {
		return fmt.Errorf("jsontok: decode of invalid node")
	}
	return json.Unmarshal(n.Raw(), v)
}

// Inner returns the raw text of n with the quotes of a string token removed
// and escapes left intact. It is meant for echoing input in error messages.
func (n Node) Inner() string {
	raw := n.Raw()
	if n.Kind() == KindString && len(raw) >= 2 {
		return string(raw[1 : len(raw)-1])
	}
	return string(raw)
}

func hasEscape(raw []byte) bool {
	for _, c := range raw {
		if c == '\\' {
			return true
		}
	}
	return false
}
