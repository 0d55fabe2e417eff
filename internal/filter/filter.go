// internal/filter/filter.go
//
// Package filter builds typed key predicates from configuration. The
// compatibility between filter kinds and key types is fixed by a registry;
// a mismatch fails while the configuration is validated.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/keys"
)

// Kind names a filter in configuration.
type Kind string

const (
	None     Kind = "none"
	Equals   Kind = "equals"
	Contains Kind = "contains"
	Prefix   Kind = "prefix"
	Regex    Kind = "regex"
)

// Config is the per-topic filter block.
type Config struct {
	Type  string `mapstructure:"type"`
	Value string `mapstructure:"value"`
}

// Filter decides whether a record with key k is kept.
type Filter interface {
	IsMatch(k keys.Key) bool
}

// Func adapts a function to Filter.
type Func func(keys.Key) bool

func (f Func) IsMatch(k keys.Key) bool { return f(k) }

// IncompatibleError reports a filter kind that cannot be used with a key type.
type IncompatibleError struct {
	Kind    Kind
	KeyType keys.Type
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("filter: %q is not supported for %s keys", e.Kind, e.KeyType)
}

type builder func(s keys.Strategy, value string) (Filter, error)

var matchAll = Func(func(keys.Key) bool { return true })

// registry[keyType][kind] builds the filter; missing entries are incompatible.
var registry = map[keys.Type]map[Kind]builder{
	keys.Ignored: {
		None: buildNone,
	},
	keys.String: {
		None:     buildNone,
		Equals:   buildEquals,
		Contains: buildText(strings.Contains),
		Prefix:   buildText(strings.HasPrefix),
		Regex:    buildRegex,
	},
	keys.Long: {
		None:   buildNone,
		Equals: buildEquals,
	},
	keys.JSON: {
		None:   buildNone,
		Equals: buildEquals,
	},
}

// ParseKind accepts a configuration value; empty means None.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "":
		return None, nil
	case None, Equals, Contains, Prefix, Regex:
		return k, nil
	default:
		return "", fmt.Errorf("filter: unknown filter type %q", s)
	}
}

// New builds the filter described by cfg for keys of type keyType.
func New(keyType keys.Type, cfg Config) (Filter, error) {
	kind, err := ParseKind(cfg.Type)
	if err != nil {
		return nil, err
	}
	strategy, err := keys.StrategyFor(keyType)
	if err != nil {
		return nil, err
	}
	build, ok := registry[keyType][kind]
	if !ok {
		return nil, &IncompatibleError{Kind: kind, KeyType: keyType}
	}
	return build(strategy, cfg.Value)
}

func buildNone(keys.Strategy, string) (Filter, error) { return matchAll, nil }

func buildEquals(s keys.Strategy, value string) (Filter, error) {
	want, err := s.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("filter: equals: %w", err)
	}
	id := want.Identity()
	return Func(func(k keys.Key) bool {
		return !k.IsNull() && k.Identity() == id
	}), nil
}

func buildText(match func(s, sub string) bool) builder {
	return func(_ keys.Strategy, value string) (Filter, error) {
		return Func(func(k keys.Key) bool {
			return !k.IsNull() && match(k.Identity(), value)
		}), nil
	}
}

func buildRegex(_ keys.Strategy, value string) (Filter, error) {
	re, err := regexp.Compile(value)
	if err != nil {
		return nil, fmt.Errorf("filter: regex: %w", err)
	}
	return Func(func(k keys.Key) bool {
		return !k.IsNull() && re.MatchString(k.Identity())
	}), nil
}
