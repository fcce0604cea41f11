package rules

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/dwell"
	"auv-monitor/ingestion/internal/geo"
)

type fakeRuleSource struct {
	mu   sync.Mutex
	defs []domain.AlertRule
	err  error
}

func (f *fakeRuleSource) LoadRules(context.Context) ([]domain.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defs, f.err
}

func (f *fakeRuleSource) set(defs []domain.AlertRule, err error) {
	f.mu.Lock()
	f.defs, f.err = defs, err
	f.mu.Unlock()
}

func TestRefresherSwapsRuleSet(t *testing.T) {
	log := zaptest.NewLogger(t)
	engine := NewEngine(Compile([]domain.AlertRule{sedimentRule(0)}, log),
		geo.NewIndex(), dwell.NewTracker(time.Minute), NewMemoryDedup(), log)
	require.Equal(t, 1, engine.RuleCount())

	src := &fakeRuleSource{defs: []domain.AlertRule{sedimentRule(0), speciesRule(0)}}
	r := NewRefresher(src, engine, 10*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.Eventually(t, func() bool { return engine.RuleCount() == 2 },
		time.Second, 5*time.Millisecond)
}

func TestRefresherKeepsRulesOnLoadFailure(t *testing.T) {
	log := zaptest.NewLogger(t)
	engine := NewEngine(Compile([]domain.AlertRule{sedimentRule(0)}, log),
		geo.NewIndex(), dwell.NewTracker(time.Minute), NewMemoryDedup(), log)

	src := &fakeRuleSource{err: errors.New("db down")}
	r := NewRefresher(src, engine, 10*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, engine.RuleCount(), "a failed reload keeps the last good snapshot")
}
