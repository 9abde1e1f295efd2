package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/logsource"
)

// refresher is the periodic refresh cycle: fetch recent logs, then run one
// engine pass over them. Ticks never overlap; a tick that is still running
// when the next one is due causes that one to be skipped.
type refresher struct {
	source logsource.Source
	engine *alerting.Engine
	now    func() time.Time

	lastSuccess atomic.Int64
	log         zerolog.Logger
}

func newRefresher(source logsource.Source, engine *alerting.Engine) *refresher {
	return &refresher{
		source: source,
		engine: engine,
		now:    time.Now,
		log:    logger.WithComponent("refresh"),
	}
}

// LastSuccess returns when a refresh last completed, or the zero time.
func (r *refresher) LastSuccess() time.Time {
	ns := r.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// refresh runs a single cycle and returns the number of fired events.
func (r *refresher) refresh(ctx context.Context) (int, error) {
	logs, err := r.source.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	events := r.engine.Evaluate(ctx, logs)
	r.lastSuccess.Store(r.now().UnixNano())
	return len(events), nil
}

func (r *refresher) tick(ctx context.Context, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fired, err := r.refresh(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("refresh failed")
		return
	}
	r.log.Debug().Int("fired", fired).Msg("refresh completed")
}

// Run schedules refreshes every interval until ctx is canceled. The first
// refresh runs immediately.
func (r *refresher) Run(ctx context.Context, interval time.Duration) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+interval.String(), func() { r.tick(ctx, interval) }); err != nil {
		return err
	}

	r.log.Info().Dur("interval", interval).Msg("refresh cycle started")
	c.Start()
	r.tick(ctx, interval)

	<-ctx.Done()
	<-c.Stop().Done()
	r.log.Info().Msg("refresh cycle stopped")
	return nil
}
