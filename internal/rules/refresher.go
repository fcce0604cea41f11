package rules

import (
	"context"
	"time"

	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/domain"
)

// RuleSource yields rule definitions for the next evaluation epoch.
type RuleSource interface {
	LoadRules(ctx context.Context) ([]domain.AlertRule, error)
}

// Refresher reloads rules periodically and swaps the engine's
// snapshot atomically, never mutating a live set.
type Refresher struct {
	src      RuleSource
	engine   *Engine
	interval time.Duration
	log      *zap.Logger
}

func NewRefresher(src RuleSource, engine *Engine, interval time.Duration, log *zap.Logger) *Refresher {
	return &Refresher{src: src, engine: engine, interval: interval, log: log}
}

func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			defs, err := r.src.LoadRules(ctx)
			if err != nil {
				r.log.Error("rule reload failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			set := Compile(defs, r.log)
			r.engine.Swap(set)
			r.log.Info("rule set reloaded", zap.Int("rules", set.Len()))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
