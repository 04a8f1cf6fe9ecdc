package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/errors"
	storagestatus "github.com/oneconcern/deckmon/pkg/storage/status"
)

// withRetry runs fn, retrying transient remote failures with bounded
// exponential backoff. Any other failure surfaces immediately.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := e.retryBaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, storagestatus.ErrTransient) {
			return err
		}
		if attempt >= e.retryAttempts {
			return err
		}
		e.l.Debug("transient failure, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
