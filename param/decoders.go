package param

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/ggoodman/rpcparam/jsontok"
)

// Msat is an amount in millisatoshi.
type Msat uint64

func (m Msat) String() string { return strconv.FormatUint(uint64(m), 10) + "msat" }

// JSONSchema describes the accepted encodings of an amount.
func (Msat) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "integer", Minimum: "0"},
			{Type: "string", Pattern: `^[0-9]+(msat)?$`},
		},
	}
}

// HexBytes is a byte string supplied as hex.
type HexBytes []byte

func (h HexBytes) String() string { return hex.EncodeToString(h) }

// JSONSchema describes a hex string.
func (HexBytes) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Pattern: `^([0-9a-fA-F]{2})*$`}
}

// RawJSON is an undecoded params value.
type RawJSON []byte

// MarshalJSON returns the value unchanged.
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// String accepts a JSON string.
func String(name string, n jsontok.Node) (string, error) {
	if n.Kind() != jsontok.KindString {
		return "", ShouldBe(name, n, "a string")
	}
	s, err := n.Unquote()
	if err != nil {
		return "", ShouldBe(name, n, "a valid string")
	}
	return s, nil
}

// Label accepts a string or a number and keeps its text, the way invoice
// labels are accepted.
func Label(name string, n jsontok.Node) (string, error) {
	switch n.Kind() {
	case jsontok.KindString:
		return String(name, n)
	case jsontok.KindNumber:
		return n.Text(), nil
	}
	return "", ShouldBe(name, n, "a string or number")
}

// Uint64 accepts a non-negative integer.
func Uint64(name string, n jsontok.Node) (uint64, error) {
	if n.Kind() != jsontok.KindNumber {
		return 0, ShouldBe(name, n, "an unsigned 64 bit integer")
	}
	v, err := strconv.ParseUint(n.Text(), 10, 64)
	if err != nil {
		return 0, ShouldBe(name, n, "an unsigned 64 bit integer")
	}
	return v, nil
}

// Int64 accepts a signed integer.
func Int64(name string, n jsontok.Node) (int64, error) {
	if n.Kind() != jsontok.KindNumber {
		return 0, ShouldBe(name, n, "an integer")
	}
	v, err := strconv.ParseInt(n.Text(), 10, 64)
	if err != nil {
		return 0, ShouldBe(name, n, "an integer")
	}
	return v, nil
}

// Number accepts any finite JSON number.
func Number(name string, n jsontok.Node) (float64, error) {
	if n.Kind() != jsontok.KindNumber {
		return 0, ShouldBe(name, n, "a number")
	}
	v, err := strconv.ParseFloat(n.Text(), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, ShouldBe(name, n, "a number")
	}
	return v, nil
}

// Bool accepts true or false.
func Bool(name string, n jsontok.Node) (bool, error) {
	if n.Kind() != jsontok.KindBool {
		return false, ShouldBe(name, n, "a boolean")
	}
	return n.Text() == "true", nil
}

// Amount accepts a millisatoshi amount as an integer or as a string with
// an optional "msat" suffix.
func Amount(name string, n jsontok.Node) (Msat, error) {
	var text string
	switch n.Kind() {
	case jsontok.KindNumber:
		text = n.Text()
	case jsontok.KindString:
		s, err := n.Unquote()
		if err != nil {
			return 0, ShouldBe(name, n, "a millisatoshi amount")
		}
		text = strings.TrimSuffix(s, "msat")
	default:
		return 0, ShouldBe(name, n, "a millisatoshi amount")
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, ShouldBe(name, n, "a millisatoshi amount")
	}
	return Msat(v), nil
}

// Hex accepts a hex encoded string.
func Hex(name string, n jsontok.Node) (HexBytes, error) {
	if n.Kind() != jsontok.KindString {
		return nil, ShouldBe(name, n, "a hex string")
	}
	s, err := n.Unquote()
	if err != nil {
		return nil, ShouldBe(name, n, "a hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ShouldBe(name, n, "a hex string")
	}
	return b, nil
}

// Raw accepts any value and keeps its JSON text.
func Raw(name string, n jsontok.Node) (RawJSON, error) {
	return append(RawJSON(nil), n.Raw()...), nil
}

// Duration accepts a Go duration string ("90s", "1h") or an integer number
// of seconds.
func Duration(name string, n jsontok.Node) (time.Duration, error) {
	switch n.Kind() {
	case jsontok.KindNumber:
		secs, err := strconv.ParseUint(n.Text(), 10, 32)
		if err != nil {
			return 0, ShouldBe(name, n, "a duration")
		}
		return time.Duration(secs) * time.Second, nil
	case jsontok.KindString:
		s, err := n.Unquote()
		if err != nil {
			return 0, ShouldBe(name, n, "a duration")
		}
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			return 0, ShouldBe(name, n, "a duration")
		}
		return d, nil
	}
	return 0, ShouldBe(name, n, "a duration")
}

// Enum returns a decoder accepting one of the given strings.
func Enum(values ...string) DecodeFunc[string] {
	what := "one of '" + strings.Join(values, "', '") + "'"
	return func(name string, n jsontok.Node) (string, error) {
		s, err := String(name, n)
		if err != nil {
			return "", ShouldBe(name, n, what)
		}
		for _, v := range values {
			if s == v {
				return s, nil
			}
		}
		return "", ShouldBe(name, n, what)
	}
}
