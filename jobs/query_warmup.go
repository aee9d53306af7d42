package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/identity"
	jobmetrics "github.com/atelier-admin/atelier/internal/jobs"
	"github.com/atelier-admin/atelier/internal/query"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Warmer loads one resource into the query caches.
type Warmer struct {
	Resource string
	Warm     func(ctx context.Context) error
}

// SessionTokens resolves the user and access tokens of a console session.
// *identity.Provider implements it.
type SessionTokens interface {
	Principal(ctx context.Context, sessionID string) (string, error)
	ForSession(sessionID string) gateway.TokenSource
}

// QueryJobs handles the query cache tasks. A warmup loads with the tokens of
// the session it names, into that session's cache scope.
type QueryJobs struct {
	Queries  *query.Client
	Warmers  []Warmer
	Sessions SessionTokens
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Timeout  time.Duration
}

// HandleWarmup processes TaskQueryWarmup tasks.
func (j *QueryJobs) HandleWarmup(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Queries == nil || j.Sessions == nil {
		return errors.New("query warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("query warmup: decode payload: %w", asynq.SkipRetry)
		}
	}
	if payload.Session == "" {
		return fmt.Errorf("query warmup: no session named: %w", asynq.SkipRetry)
	}
	warmers, err := j.selected(payload.Resources)
	if err != nil {
		return fmt.Errorf("query warmup: %v: %w", err, asynq.SkipRetry)
	}
	principal, err := j.Sessions.Principal(ctx, payload.Session)
	if errors.Is(err, gateway.ErrNoAccessToken) {
		return fmt.Errorf("query warmup: session signed out: %w", asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("query warmup: %w", err)
	}

	tracker := j.metrics().Track(TaskQueryWarmup)
	logger := j.logger(TaskQueryWarmup)
	started := time.Now()
	ctx = identity.ContextWithTokens(ctx, j.Sessions.ForSession(payload.Session))
	ctx = query.WithScope(ctx, principal)

	var errs []error
	warmed := 0
	for _, w := range warmers {
		if err := j.warm(ctx, w); err != nil {
			logger.Error("warm resource", slog.String("resource", w.Resource), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Resource, err))
			continue
		}
		j.metrics().AddWarmed(w.Resource, 1)
		warmed++
	}
	logger.Info("completed query warmup",
		slog.Int("resources", warmed),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", time.Since(started)),
	)
	return tracker.End(errors.Join(errs...))
}

// HandleInvalidate processes TaskQueryInvalidate tasks.
func (j *QueryJobs) HandleInvalidate(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Queries == nil {
		return errors.New("query invalidate: handler not configured")
	}
	var payload InvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Resource == "" {
		return fmt.Errorf("query invalidate: invalid payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskQueryInvalidate)
	err := j.Queries.Invalidate(ctx, payload.Resource)
	if errors.Is(err, query.ErrUnknownResource) {
		_ = tracker.End(err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err == nil {
		j.logger(TaskQueryInvalidate).Info("invalidated resource", slog.String("resource", payload.Resource))
	}
	return tracker.End(err)
}

// warm drops the local copy first so the load goes back to the shared store,
// which may have been bumped by another process since the previous run.
func (j *QueryJobs) warm(ctx context.Context, w Warmer) error {
	j.Queries.InvalidateLocal(w.Resource)
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	warmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.Warm(warmCtx)
}

func (j *QueryJobs) selected(resources []string) ([]Warmer, error) {
	if len(resources) == 0 {
		return j.Warmers, nil
	}
	byName := make(map[string]Warmer, len(j.Warmers))
	for _, w := range j.Warmers {
		byName[w.Resource] = w
	}
	out := make([]Warmer, 0, len(resources))
	for _, name := range resources {
		w, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown resource %q", name)
		}
		out = append(out, w)
	}
	return out, nil
}

func (j *QueryJobs) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *QueryJobs) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
