package turnstile

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// Handle runs one full turn against the host.
//
// On success the finalized response is handed to host.SetResponse. When a stage
// fails, the remaining stages are skipped and the fail stage runs once with the
// captured error; host.Fail receives the error unless a fail handler set a
// recovery response. Dispatch-ambiguity errors skip the fail stage entirely.
//
// The returned error is the original failure (nil on success).
func (a *App) Handle(ctx context.Context, host ports.Host) (*domain.Turn, error) {
	if err := a.Setup(ctx); err != nil {
		host.Fail(ctx, err)
		return nil, err
	}

	raw, err := host.RequestObject()
	if err != nil {
		err = fmt.Errorf("failed to read request object: %w", err)
		host.Fail(ctx, err)
		return nil, err
	}

	turn := domain.NewTurn(raw, host.Headers())
	logger := a.logger.With("turn_id", turn.ID)

	if err := a.run(ctx, turn); err != nil {
		turn.Err = err
		a.handleFailure(ctx, host, turn, logger)
		return turn, err
	}

	if err := host.SetResponse(ctx, turn.Response); err != nil {
		logger.Error("Failed to set response", "platform", turn.Platform, "err", err)
		return turn, fmt.Errorf("failed to set response: %w", err)
	}

	logger.Debug("Turn completed",
		"platform", turn.Platform,
		"route", turn.Route,
		"duration", turn.Elapsed(),
	)
	return turn, nil
}

// run fires the claim stage and then the normal pipeline, stopping at the first error.
func (a *App) run(ctx context.Context, turn *domain.Turn) (err error) {
	defer a.catch(&err)

	if err := a.Dispatch(ctx, domain.StagePlatformClaim, turn); err != nil {
		return err
	}
	if !turn.Claimed() {
		return domain.ErrUnclaimed
	}

	for _, s := range domain.Pipeline {
		if err := a.Dispatch(ctx, s, turn); err != nil {
			return err
		}
	}
	return nil
}

// handleFailure drives the failure path for a turn whose normal sequence failed.
func (a *App) handleFailure(ctx context.Context, host ports.Host, turn *domain.Turn, logger *slog.Logger) {
	cause := turn.Err

	if domain.IsAmbiguous(cause) {
		logger.Error("Platform dispatch misconfigured", "platform", turn.Platform, "err", cause)
		host.Fail(ctx, cause)
		return
	}

	logger.Warn("Turn failed", "platform", turn.Platform, "route", turn.Route, "err", cause)

	// The normal-path response, if any, is discarded
	turn.Response = nil

	if a.Stages().Handlers(domain.StageFail) == 0 {
		host.Fail(ctx, cause)
		return
	}

	if err := a.dispatchFail(ctx, turn, cause); err != nil {
		logger.Error("Fail stage raised", "cause", cause, "err", err)
		host.Fail(ctx, err)
		return
	}

	if turn.Response == nil {
		host.Fail(ctx, cause)
		return
	}
	if err := host.SetResponse(ctx, turn.Response); err != nil {
		logger.Error("Failed to set recovery response", "err", err)
		host.Fail(ctx, err)
	}
}

func (a *App) dispatchFail(ctx context.Context, turn *domain.Turn, cause error) (err error) {
	defer a.catch(&err)
	return a.Dispatch(ctx, domain.StageFail, turn, cause)
}

// catch converts a handler panic into a *domain.PanicError.
func (a *App) catch(err *error) {
	r := recover()
	if r == nil {
		return
	}
	stack := make([]byte, a.stackSize)
	n := runtime.Stack(stack, false)
	a.logger.Error("panic recovered", "panic", r, "stack", string(stack[:n]))
	*err = &domain.PanicError{Value: r, Stack: stack[:n]}
}
