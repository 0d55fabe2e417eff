// internal/snapshot/errors.go
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ArgumentError reports a required argument that was nil.
type ArgumentError struct {
	Name string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("snapshot: %s must not be nil", e.Name)
}

// ConfigurationError reports invalid static configuration, detected before
// any broker I/O.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("snapshot: invalid %s: %s", e.Field, e.Reason)
}

// BrokerTimeoutError reports a metadata or offset query that did not
// complete within its timeout.
type BrokerTimeoutError struct {
	Op        string
	Topic     string
	Partition int32 // -1 for topic level queries
	Timeout   time.Duration
}

func (e *BrokerTimeoutError) Error() string {
	if e.Partition < 0 {
		return fmt.Sprintf("snapshot: %s %q timed out after %s", e.Op, e.Topic, e.Timeout)
	}
	return fmt.Sprintf("snapshot: %s %s/%d timed out after %s", e.Op, e.Topic, e.Partition, e.Timeout)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *BrokerTimeoutError) Unwrap() error { return context.DeadlineExceeded }

// IsCanceled reports whether err means the load was abandoned rather
// than failed.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// boundedCall runs fn with its own timeout. A deadline hit while the parent
// context is still live becomes a *BrokerTimeoutError; parent cancellation
// is returned as the parent's error.
func boundedCall(ctx context.Context, timeout time.Duration, op, topic string, partition int32, fn func(ctx context.Context) error) error {
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(qctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || qctx.Err() != nil {
		return &BrokerTimeoutError{Op: op, Topic: topic, Partition: partition, Timeout: timeout}
	}
	return err
}
