package worker

import (
	"context"
	"time"

	"github.com/appship/engage-api/internal/model"
	"github.com/appship/engage-api/internal/service/drip"
	"github.com/appship/engage-api/pkg/logger"
)

type DripRunnerConfig struct {
	// Interval between scheduler passes. The runner executes both
	// campaign kinds sequentially inside one tick, so runs of the same
	// kind never overlap.
	Interval   time.Duration
	RunOnStart bool
}

// DripRunner drives the two drip schedulers on a fixed cadence. It is
// the in-process stand-in for an external cron hitting the campaign
// trigger endpoints.
type DripRunner struct {
	service *drip.Service
	config  DripRunnerConfig
	logger  *logger.Logger
}

func NewDripRunner(service *drip.Service, config DripRunnerConfig, logger *logger.Logger) *DripRunner {
	if config.Interval <= 0 {
		panic("Interval must be greater than 0")
	}
	return &DripRunner{
		service: service,
		config:  config,
		logger:  logger,
	}
}

func (r *DripRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Info("Starting drip runner")

	if r.config.RunOnStart {
		r.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down drip runner")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *DripRunner) runOnce(ctx context.Context) {
	if result, err := r.service.RunLeadSequence(ctx); err != nil {
		r.logger.Error(err, "lead sequence run failed")
	} else {
		r.logResult(model.KindLeadSequence, result)
	}

	if result, err := r.service.RunColdOutreach(ctx); err != nil {
		r.logger.Error(err, "cold outreach run failed")
	} else {
		r.logResult(model.KindColdOutreach, result)
	}
}

func (r *DripRunner) logResult(kind model.MessageKind, result *model.RunResult) {
	r.logger.Info("drip run finished", map[string]interface{}{
		"kind":    string(kind),
		"sent":    result.Sent,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	})
}
