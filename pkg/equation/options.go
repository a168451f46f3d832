package equation

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/xequation/xequation/pkg/expr"
)

// Recorder receives evaluation measurements. telemetry.Metrics implements
// it.
type Recorder interface {
	ObserveEvaluation(status expr.Status, elapsed time.Duration)
	ObserveUpdatePass(evaluated int, elapsed time.Duration)
	SetEquationCount(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvaluation(expr.Status, time.Duration) {}
func (nopRecorder) ObserveUpdatePass(int, time.Duration)         {}
func (nopRecorder) SetEquationCount(int)                         {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithContext evaluates against ctx instead of a fresh context. The
// context is bound to the manager's engine.
func WithContext(ctx *expr.Context) Option {
	return func(m *Manager) { m.ctx = ctx }
}

// WithMetrics sets the recorder for evaluation measurements.
func WithMetrics(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithClock replaces time.Now for measurements.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// AddOption configures AddEquationGroup.
type AddOption func(*addOptions)

type addOptions struct {
	replace bool
}

// ReplaceExisting removes every group owning a name the new group
// declares, in the same validated step as the insertion.
func ReplaceExisting() AddOption {
	return func(o *addOptions) { o.replace = true }
}
