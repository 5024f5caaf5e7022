package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fanbasehq/harvest-cli/internal/config"
)

const defaultCheckInterval = time.Hour

// Checker evaluates run health on a fixed interval while the server is up.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
	log       *zap.Logger
}

// NewChecker wires a collector and alerter to the configured schedule.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalMins) * time.Minute
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackHours,
		log:       zap.L().With(zap.String("component", "monitoring.checker")),
	}
}

// Run checks once immediately and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("starting run health checks",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			c.Check(ctx)
		}
		select {
		case <-ctx.Done():
			c.log.Info("run health checks stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check takes one snapshot, sends whatever alerts it raises and returns them.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		c.log.Error("monitoring: collect run snapshot", zap.Error(err))
		return nil
	}

	c.log.Debug("monitoring: run snapshot",
		zap.Int("runs", snap.RunsTotal),
		zap.Int("failed", snap.RunsFailed),
		zap.Int("milestones", snap.Milestones),
		zap.Float64("unresolved_rate", snap.UnresolvedRate),
		zap.Int("zero_result_days", snap.ZeroResultDays),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return nil
	}

	types := make([]string, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, string(a.Type))
	}
	sent := c.alerter.SendAlerts(ctx, alerts)
	c.log.Warn("monitoring: run health alerts raised",
		zap.Strings("types", types),
		zap.Int("sent", sent),
	)
	return alerts
}
