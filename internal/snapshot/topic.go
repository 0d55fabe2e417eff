// internal/snapshot/topic.go
package snapshot

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

var topicNameRE = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,249}$`)

// ValidateTopicName checks the Kafka topic naming rules.
func ValidateTopicName(name string) error {
	if !topicNameRE.MatchString(name) {
		return &ConfigurationError{
			Field:  "topic name",
			Reason: fmt.Sprintf("%q must match %s", name, topicNameRE.String()),
		}
	}
	if name == "." || name == ".." {
		return &ConfigurationError{Field: "topic name", Reason: fmt.Sprintf("%q is reserved", name)}
	}
	return nil
}

// TopicParams describes a topic to load.
type TopicParams struct {
	Name       string
	Compacting bool
	StartDate  *time.Time
	EndDate    *time.Time
	Partitions []int32 // nil: all partitions
}

// Topic is a validated, immutable load request for one topic.
type Topic struct {
	name       string
	compacting bool
	start      *time.Time
	end        *time.Time
	partitions []int32
}

// NewTopic validates p and returns the topic descriptor.
func NewTopic(p TopicParams) (*Topic, error) {
	if err := ValidateTopicName(p.Name); err != nil {
		return nil, err
	}
	if p.StartDate != nil && p.EndDate != nil && p.StartDate.After(*p.EndDate) {
		return nil, &ConfigurationError{
			Field: "date range",
			Reason: fmt.Sprintf("start %s is after end %s",
				p.StartDate.Format(time.RFC3339), p.EndDate.Format(time.RFC3339)),
		}
	}

	t := &Topic{name: p.Name, compacting: p.Compacting}
	if p.StartDate != nil {
		s := *p.StartDate
		t.start = &s
	}
	if p.EndDate != nil {
		e := *p.EndDate
		t.end = &e
	}
	if p.Partitions != nil {
		if len(p.Partitions) == 0 {
			return nil, &ConfigurationError{Field: "partitions", Reason: "subset must not be empty"}
		}
		ids := slices.Clone(p.Partitions)
		slices.Sort(ids)
		ids = slices.Compact(ids)
		if ids[0] < 0 {
			return nil, &ConfigurationError{Field: "partitions", Reason: fmt.Sprintf("negative partition id %d", ids[0])}
		}
		t.partitions = ids
	}
	return t, nil
}

// Name returns the validated topic name.
func (t *Topic) Name() string { return t.name }

// Compacting reports whether the load keeps only the last value per key.
func (t *Topic) Compacting() bool { return t.compacting }

// StartDate returns the lower date bound, if any.
func (t *Topic) StartDate() (time.Time, bool) {
	if t.start == nil {
		return time.Time{}, false
	}
	return *t.start, true
}

// EndDate returns the upper date bound, if any.
func (t *Topic) EndDate() (time.Time, bool) {
	if t.end == nil {
		return time.Time{}, false
	}
	return *t.end, true
}

// Partitions returns the sorted partition subset, or nil for all partitions.
func (t *Topic) Partitions() []int32 { return slices.Clone(t.partitions) }

func (t *Topic) includes(partition int32) bool {
	if t.partitions == nil {
		return true
	}
	_, ok := slices.BinarySearch(t.partitions, partition)
	return ok
}
