// Package securedata wraps storage access in a hardened pipeline: per-user
// rate limiting, recursive input sanitization, injection deny-list
// validation, a hard execution timeout, sensitive-field redaction on reads,
// and audit logging of every mutation.
package securedata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/innkeephq/innkeep/internal/models"
	"github.com/innkeephq/innkeep/internal/ratelimit"
)

// Auditor records security events, best-effort.
type Auditor interface {
	Record(ctx context.Context, entry models.SecurityLogEntry)
}

// Config tunes the wrapper.
type Config struct {
	Scope   ratelimit.Scope // per-actor storage-operation budget
	Timeout time.Duration   // hard cap on a single operation
}

// Op is the underlying storage operation. It receives the sanitized
// parameters and a context that expires with the wrapper's timeout.
type Op func(ctx context.Context, params map[string]any) (any, error)

// Wrapper is the secure data access façade. All storage reads and writes in
// request handlers go through one of its methods.
type Wrapper struct {
	limiter *ratelimit.Limiter
	audit   Auditor
	logger  *slog.Logger
	cfg     Config
}

func New(limiter *ratelimit.Limiter, audit Auditor, logger *slog.Logger, cfg Config) *Wrapper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Wrapper{
		limiter: limiter,
		audit:   audit,
		logger:  logger,
		cfg:     cfg,
	}
}

// Read executes a read operation and redacts sensitive fields from the
// result before returning it.
func (w *Wrapper) Read(ctx context.Context, actor models.Principal, action string, params map[string]any, op Op) (any, error) {
	result, err := w.execute(ctx, actor, action, params, op)
	if err != nil {
		return nil, err
	}
	return Redact(result), nil
}

// ReadElevated executes a read without redaction. Reserved for callers that
// explicitly need raw records (admin tooling, internal flows).
func (w *Wrapper) ReadElevated(ctx context.Context, actor models.Principal, action string, params map[string]any, op Op) (any, error) {
	return w.execute(ctx, actor, action, params, op)
}

// Mutate executes a mutating operation and writes an audit entry for it.
// The audit write is best-effort and never fails the mutation.
func (w *Wrapper) Mutate(ctx context.Context, actor models.Principal, action string, params map[string]any, op Op) (any, error) {
	result, err := w.execute(ctx, actor, action, params, op)
	if err != nil {
		return nil, err
	}

	w.audit.Record(ctx, models.SecurityLogEntry{
		IdentityID:   &actor.ID,
		IdentityType: actor.Type,
		Action:       action,
		Details:      map[string]any{"params": paramKeys(params)},
	})

	return result, nil
}

func (w *Wrapper) execute(ctx context.Context, actor models.Principal, action string, params map[string]any, op Op) (any, error) {
	if !w.limiter.AllowScope(w.cfg.Scope, actor.ID) {
		w.logger.Warn("storage rate limit exceeded",
			slog.String("actor_id", actor.ID),
			slog.String("action", action))
		return nil, models.ErrRateLimitExceeded
	}

	sanitized := SanitizeParams(params)

	if err := ValidateParams(sanitized); err != nil {
		w.logger.Warn("storage parameter validation rejected",
			slog.String("actor_id", actor.ID),
			slog.String("action", action),
			slog.Any("error", err))
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	type opResult struct {
		value any
		err   error
	}
	done := make(chan opResult, 1)

	// The operation runs in its own goroutine so a stalled storage call
	// cannot hold the request past the deadline. On timeout the call is not
	// cancelled mid-flight; it may complete as orphaned work after the
	// timeout response was already sent.
	go func() {
		value, err := op(opCtx, sanitized)
		done <- opResult{value: value, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, w.mapOpError(actor, action, r.err)
		}
		return r.value, nil
	case <-opCtx.Done():
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			w.logger.Error("storage operation timed out",
				slog.String("actor_id", actor.ID),
				slog.String("action", action),
				slog.Duration("timeout", w.cfg.Timeout))
			return nil, models.ErrOperationTimeout
		}
		return nil, opCtx.Err()
	}
}

// mapOpError passes client-meaningful sentinels through and masks everything
// else as a generic internal error; full detail stays in the server log.
func (w *Wrapper) mapOpError(actor models.Principal, action string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrOperationTimeout
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrForbidden):
		return err
	default:
		w.logger.Error("storage operation failed",
			slog.String("actor_id", actor.ID),
			slog.String("action", action),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
}

func paramKeys(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	return keys
}
