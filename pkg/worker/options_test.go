package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/security"
)

func TestNewPoller_Defaults(t *testing.T) {
	p := NewPoller(RunnerFunc(func(context.Context) (bool, error) { return false, nil }))
	cfg := p.Config()

	assert.Equal(t, core.DefaultSchedulerName, cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.PollingDelay)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.NotNil(t, cfg.Logger)
	assert.Nil(t, cfg.OnConnectionFailure)
}

func TestPollingDelay_Clamped(t *testing.T) {
	cfg := Config{}

	PollingDelay(0).ApplyPoller(&cfg)
	assert.Equal(t, security.MinPollingDelay, cfg.PollingDelay)

	PollingDelay(250 * time.Millisecond).ApplyPoller(&cfg)
	assert.Equal(t, 250*time.Millisecond, cfg.PollingDelay)
}

func TestMaxRetries_Clamped(t *testing.T) {
	cfg := Config{}

	MaxRetries(0).ApplyPoller(&cfg)
	assert.Equal(t, 1, cfg.MaxRetries)

	MaxRetries(5).ApplyPoller(&cfg)
	assert.Equal(t, 5, cfg.MaxRetries)

	MaxRetries(1_000_000).ApplyPoller(&cfg)
	assert.Equal(t, security.MaxRetries, cfg.MaxRetries)
}

func TestLogger_IgnoresNil(t *testing.T) {
	l := slog.Default()
	cfg := Config{Logger: l}

	Logger(nil).ApplyPoller(&cfg)

	assert.Same(t, l, cfg.Logger)
}

func TestName_And_Hook(t *testing.T) {
	cfg := Config{}
	called := false

	Name("billing").ApplyPoller(&cfg)
	OnConnectionFailure(func(int, int, error) { called = true }).ApplyPoller(&cfg)
	cfg.OnConnectionFailure(1, 1, nil)

	assert.Equal(t, "billing", cfg.Name)
	assert.True(t, called)
}
