package agent

import (
	"context"
	"log/slog"
)

// logSaveError reports a session autosave failure. Per SessionError
// semantics the turn keeps running in-memory; this is a warning, not an
// abort.
func logSaveError(ctx context.Context, err error) {
	slog.WarnContext(ctx, "session autosave failed", "error", err)
}

// logObserverPanic reports a recovered panic from a tool lifecycle
// observer. Observer failures are always isolated from the turn.
func logObserverPanic(ctx context.Context, recovered any) {
	slog.ErrorContext(ctx, "tool observer panicked", "recovered", recovered)
}
