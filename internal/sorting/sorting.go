// internal/sorting/sorting.go
//
// Package sorting orders snapshot entries before export.
package sorting

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/snapshot"
)

// Field is the sort key.
type Field string

const (
	None      Field = ""
	Time      Field = "time"
	Partition Field = "partition"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Config is the export.sort block.
type Config struct {
	By    string `mapstructure:"by"`
	Order string `mapstructure:"order"`
}

// Sorter orders entries in place.
type Sorter struct {
	field Field
	order Order
}

// New validates cfg. An empty By keeps the load order.
func New(cfg Config) (*Sorter, error) {
	s := &Sorter{
		field: Field(strings.ToLower(strings.TrimSpace(cfg.By))),
		order: Order(strings.ToLower(strings.TrimSpace(cfg.Order))),
	}
	switch s.field {
	case None, Time, Partition:
	default:
		return nil, fmt.Errorf("sorting: unknown sort field %q", cfg.By)
	}
	switch s.order {
	case "":
		s.order = Asc
	case Asc, Desc:
	default:
		return nil, fmt.Errorf("sorting: unknown sort order %q", cfg.Order)
	}
	return s, nil
}

// Sort orders entries stably; equal elements keep their load order.
func (s *Sorter) Sort(entries []snapshot.Entry) {
	var less func(a, b snapshot.Entry) int
	switch s.field {
	case Time:
		less = func(a, b snapshot.Entry) int {
			return a.Value.Timestamp.Compare(b.Value.Timestamp)
		}
	case Partition:
		less = func(a, b snapshot.Entry) int {
			if c := cmp.Compare(a.Partition, b.Partition); c != 0 {
				return c
			}
			return cmp.Compare(a.Offset, b.Offset)
		}
	default:
		return
	}
	if s.order == Desc {
		asc := less
		less = func(a, b snapshot.Entry) int { return asc(b, a) }
	}
	slices.SortStableFunc(entries, less)
}
