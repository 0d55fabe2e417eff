// common/shutdown/shutdown.go
package shutdown

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
)

// Graceful runs fn with its own timeout, detached from the run context so
// that flushing still happens after cancellation, and logs the outcome.
func Graceful(name string, timeout time.Duration, fn func(ctx context.Context) error, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("shutdown: stopping " + name)
	if err := fn(ctx); err != nil {
		log.Error("shutdown: error in "+name, zap.Error(err))
		return
	}
	log.Info("shutdown: " + name + " stopped cleanly")
}

// Close calls a Close-style function and logs the outcome.
func Close(name string, fn func() error, log *logger.Logger) {
	if err := fn(); err != nil {
		log.Error("shutdown: error closing "+name, zap.Error(err))
		return
	}
	log.Debug("shutdown: " + name + " closed")
}
