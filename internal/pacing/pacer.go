// Package pacing produces the cooperative pauses taken between page interactions.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// Pacer spaces interactions out the way a person would: a jittered pause for
// every settle point and a floor on the interval between two actions.
type Pacer struct {
	logger      *zap.Logger
	limiter     *rate.Limiter
	jitterRatio float64

	mu  sync.Mutex
	rng *rand.Rand

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Pacer from configuration.
func New(cfg config.PacingConfig, logger *zap.Logger) *Pacer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	limit := rate.Inf
	if cfg.MinActionInterval > 0 {
		limit = rate.Every(cfg.MinActionInterval)
	}

	return &Pacer{
		logger:      logger.Named("pacer"),
		limiter:     rate.NewLimiter(limit, 1),
		jitterRatio: cfg.JitterRatio,
		rng:         rand.New(rand.NewSource(seed)),
		sleep:       sleepContext,
	}
}

// Pause suspends for roughly d. The actual duration is drawn from a normal
// distribution centred on d and clamped to [0, 2d]. It returns ctx.Err() if
// the context ends first.
func (p *Pacer) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	actual := p.jitter(d)
	p.logger.Debug("Pausing", zap.Duration("requested", d), zap.Duration("actual", actual))
	return p.sleep(ctx, actual)
}

// Pace blocks until the next interaction is allowed by the minimum action interval.
func (p *Pacer) Pace(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

func (p *Pacer) jitter(d time.Duration) time.Duration {
	if p.jitterRatio <= 0 {
		return d
	}
	p.mu.Lock()
	n := p.rng.NormFloat64()
	p.mu.Unlock()

	actual := time.Duration(float64(d) * (1 + n*p.jitterRatio))
	if actual < 0 {
		return 0
	}
	if actual > 2*d {
		return 2 * d
	}
	return actual
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
