// internal/keys/keys.go
//
// Package keys decodes raw Kafka record keys according to a configured key
// type. Each type maps to a Strategy; there is no per-type class hierarchy.
package keys

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// Type selects how record keys are decoded.
type Type string

const (
	Ignored Type = "ignored"
	String  Type = "string"
	Long    Type = "long"
	JSON    Type = "json"
)

// ParseType accepts a configuration value (case-insensitive).
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := strategies[t]; !ok {
		return "", fmt.Errorf("keys: unknown key type %q", s)
	}
	return t, nil
}

// Key is a decoded record key. The zero value is a null key.
type Key struct {
	typ  Type
	text string // string: the text; json: canonical form; long: decimal form
	num  int64
	set  bool
}

// Null returns the null key of type t.
func Null(t Type) Key { return Key{typ: t} }

// IsNull reports whether the record had no usable key.
func (k Key) IsNull() bool { return !k.set }

// Type returns the key type the key was decoded with.
func (k Key) Type() Type { return k.typ }

// Identity is the compaction identity: equal identities mean the same key.
func (k Key) Identity() string { return k.text }

// String renders the key for logs and text sinks.
func (k Key) String() string {
	if !k.set {
		return "<null>"
	}
	return k.text
}

// Int64 returns the numeric value of a long key.
func (k Key) Int64() (int64, bool) {
	if !k.set || k.typ != Long {
		return 0, false
	}
	return k.num, true
}

// Render returns the JSON-friendly representation used by exporters:
// nil for null keys, string, int64 or jsoniter.RawMessage.
func (k Key) Render() any {
	if !k.set {
		return nil
	}
	switch k.typ {
	case Long:
		return k.num
	case JSON:
		return jsoniter.RawMessage(k.text)
	default:
		return k.text
	}
}

// DecodeError reports a key that does not match its configured type.
type DecodeError struct {
	Type Type
	Len  int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("keys: decode %s key (%d bytes): %v", e.Type, e.Len, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Strategy decodes raw keys and parses configuration literals for one Type.
type Strategy struct {
	typ    Type
	decode func(raw []byte) (Key, error)
	parse  func(lit string) (Key, error)
}

// Type returns the key type served by s.
func (s Strategy) Type() Type { return s.typ }

// Decode turns raw record key bytes into a Key. nil bytes give a null key.
func (s Strategy) Decode(raw []byte) (Key, error) {
	if raw == nil {
		return Null(s.typ), nil
	}
	k, err := s.decode(raw)
	if err != nil {
		return Key{}, &DecodeError{Type: s.typ, Len: len(raw), Err: err}
	}
	return k, nil
}

// Parse turns a configuration literal (filter value) into a Key.
func (s Strategy) Parse(lit string) (Key, error) {
	k, err := s.parse(lit)
	if err != nil {
		return Key{}, fmt.Errorf("keys: parse %s literal %q: %w", s.typ, lit, err)
	}
	return k, nil
}

// StrategyFor returns the strategy registered for t.
func StrategyFor(t Type) (Strategy, error) {
	s, ok := strategies[t]
	if !ok {
		return Strategy{}, fmt.Errorf("keys: unknown key type %q", t)
	}
	return s, nil
}

var strategies = map[Type]Strategy{
	Ignored: {
		typ:    Ignored,
		decode: func([]byte) (Key, error) { return Null(Ignored), nil },
		parse: func(string) (Key, error) {
			return Key{}, fmt.Errorf("ignored keys take no literal")
		},
	},
	String: {
		typ:    String,
		decode: decodeString,
		parse:  func(lit string) (Key, error) { return Key{typ: String, text: lit, set: true}, nil },
	},
	Long: {
		typ:    Long,
		decode: decodeLong,
		parse:  parseLong,
	},
	JSON: {
		typ:    JSON,
		decode: decodeJSON,
		parse:  func(lit string) (Key, error) { return decodeJSON([]byte(lit)) },
	},
}

func decodeString(raw []byte) (Key, error) {
	if !utf8.Valid(raw) {
		return Key{}, fmt.Errorf("invalid UTF-8")
	}
	return Key{typ: String, text: string(raw), set: true}, nil
}

// decodeLong reads the 8-byte big-endian encoding written by Kafka's
// LongSerializer.
func decodeLong(raw []byte) (Key, error) {
	if len(raw) != 8 {
		return Key{}, fmt.Errorf("want 8 bytes, got %d", len(raw))
	}
	n := int64(binary.BigEndian.Uint64(raw))
	return longKey(n), nil
}

func parseLong(lit string) (Key, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(lit), 10, 64)
	if err != nil {
		return Key{}, err
	}
	return longKey(n), nil
}

func longKey(n int64) Key {
	return Key{typ: Long, text: strconv.FormatInt(n, 10), num: n, set: true}
}

// canonical sorts object members and keeps numbers verbatim, so two
// encodings of the same document share one identity.
var canonical = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

func decodeJSON(raw []byte) (Key, error) {
	var v any
	if err := canonical.Unmarshal(raw, &v); err != nil {
		return Key{}, err
	}
	out, err := canonical.Marshal(v)
	if err != nil {
		return Key{}, err
	}
	return Key{typ: JSON, text: string(out), set: true}, nil
}
