package main

import (
	"context"
	"time"

	"LexGate/internal/biz"
	"LexGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// staleExecutionAge is how long a RUNNING execution may sit before the
// sweeper declares it abandoned (e.g. the process died mid-workflow).
const staleExecutionAge = time.Hour

// StartMaintenanceCron starts the periodic maintenance jobs:
// sweeping stale RUNNING workflow executions every 10 minutes, and
// reporting circuit breaker states hourly for operators tailing logs.
func StartMaintenanceCron(orchestrator *biz.OrchestratorUsecase, breaker *biz.CircuitBreakerUsecase, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc("0 */10 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		expired, err := orchestrator.ExpireStale(ctx, staleExecutionAge)
		if err != nil {
			helper.Errorw("msg", "stale execution sweep failed", "error", err)
			return
		}
		if expired > 0 {
			helper.Infow("msg", "stale executions marked failed", "count", expired)
		}
	})
	if err != nil {
		helper.Errorw("msg", "failed to register stale execution sweep", "error", err)
		return nil
	}

	_, err = c.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		states, err := breaker.States(ctx)
		if err != nil {
			helper.Errorw("msg", "circuit state report failed", "error", err)
			return
		}
		for _, s := range states {
			if s.State == model.CircuitClosed && s.FailureCount == 0 {
				continue
			}
			helper.Infow("msg", "circuit state report",
				"service", s.Service,
				"state", s.State,
				"failure_count", s.FailureCount,
			)
		}
	})
	if err != nil {
		helper.Errorw("msg", "failed to register circuit state report", "error", err)
		return nil
	}

	c.Start()
	helper.Info("maintenance cron started: stale execution sweep every 10 minutes, circuit report hourly")

	return c
}
