// internal/app/report.go
package app

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ntulenev/KafkaSnapshot-sub000/internal/snapshot"
)

// Status is the outcome of one topic.
type Status string

const (
	StatusLoaded    Status = "loaded"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// TopicResult describes one topic of a run.
type TopicResult struct {
	Topic      string
	ExportName string
	Status     Status
	Entries    int
	Stats      snapshot.Stats
	Duration   time.Duration
	Err        error
}

// Report summarizes a run. Topics are listed by name within each group.
type Report struct {
	RunID     string
	Duration  time.Duration
	Loaded    []TopicResult
	Failed    []TopicResult
	Abandoned []TopicResult
}

func (r *Report) add(res TopicResult) {
	switch res.Status {
	case StatusLoaded:
		r.Loaded = append(r.Loaded, res)
	case StatusAbandoned:
		r.Abandoned = append(r.Abandoned, res)
	default:
		r.Failed = append(r.Failed, res)
	}
}

func (r *Report) sort() {
	for _, group := range [][]TopicResult{r.Loaded, r.Failed, r.Abandoned} {
		sort.Slice(group, func(i, j int) bool { return group[i].Topic < group[j].Topic })
	}
}

// OK reports whether no topic failed. Abandoned topics are not failures.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// Err joins the errors of the failed topics.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("topic %s: %w", f.Topic, f.Err))
	}
	return errors.Join(errs...)
}
