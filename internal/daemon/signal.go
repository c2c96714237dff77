package daemon

import (
	"context"
	"os/signal"
	"syscall"
)

// WithShutdownSignals returns a context cancelled on SIGTERM or SIGINT
func WithShutdownSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
}
