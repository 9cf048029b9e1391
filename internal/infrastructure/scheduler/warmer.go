// Package scheduler keeps the in-memory caches warm in the background so
// that request paths rarely pay for an upstream refresh.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/middleware"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const warmTimeout = 30 * time.Second

// RateSource is reloaded on every run, even while its snapshot is live
type RateSource interface {
	Refresh(ctx context.Context) entity.RateSnapshot
}

// NameSource is refreshed on every run
type NameSource interface {
	GetCurrencyNames(ctx context.Context) map[string]string
}

// Warmer runs cache refreshes on a cron schedule. Overlapping runs are skipped.
type Warmer struct {
	cron   *cron.Cron
	rates  RateSource
	names  NameSource
	logger logger.Logger
}

// NewWarmer creates a warmer for schedule, which accepts standard five-field
// cron expressions and descriptors such as "@every 25m". names may be nil.
func NewWarmer(schedule string, rates RateSource, names NameSource, log logger.Logger) (*Warmer, error) {
	log = logger.OrDefault(log).WithField("component", "warmer")
	cronLog := cronLogger{log: log}

	w := &Warmer{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		)),
		rates:  rates,
		names:  names,
		logger: log,
	}

	if _, err := w.cron.AddFunc(schedule, w.Warm); err != nil {
		return nil, fmt.Errorf("invalid warm schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Warm refreshes every cache once
func (w *Warmer) Warm() {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()
	ctx = middleware.WithRequestID(ctx, "warm-"+uuid.New().String())

	started := time.Now()
	snapshot := w.rates.Refresh(ctx)

	fields := map[string]interface{}{
		"request_id":    middleware.GetRequestID(ctx),
		"source":        snapshot.Source,
		"stale":         snapshot.Stale(),
		"missing_codes": len(snapshot.MissingCodes),
	}
	if w.names != nil {
		fields["currency_names"] = len(w.names.GetCurrencyNames(ctx))
	}
	fields["duration_ms"] = time.Since(started).Milliseconds()

	w.logger.Info("Caches warmed", fields)
}

// Start warms once and then follows the schedule
func (w *Warmer) Start() {
	go w.Warm()
	w.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running
// warm-up has finished.
func (w *Warmer) Stop() context.Context {
	return w.cron.Stop()
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err.Error()
	l.log.Error(msg, fields)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
