package main

import (
	"context"
	"log/slog"
	"time"
)

const shutdownTimeout = 5 * time.Second

// closer is one named shutdown step.
type closer struct {
	name  string
	close func(context.Context) error
}

// newCleanup returns the shutdown hook. Steps run in the given order and a
// failing step does not stop the ones after it.
func newCleanup(steps ...closer) func(context.Context) {
	return func(ctx context.Context) {
		for _, step := range steps {
			if err := step.close(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to close "+step.name, slog.String("error", err.Error()))
			}
		}
	}
}

// shutdownWithTimeout runs cleanup under a fresh context, since the root
// context is already cancelled at shutdown.
func shutdownWithTimeout(cleanup func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	cleanup(ctx)
}
