package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmedtd/modax/optim"
	"github.com/chewxy/math32"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrDiverged is returned by Train when the loss stops being finite.
var ErrDiverged = errors.New("training diverged")

// LoopConfig bounds a training run.
type LoopConfig struct {
	MaxEpochs int `yaml:"max_epochs"`

	// LogEvery is the logging period in epochs.  Zero disables logging and
	// log hooks.
	LogEvery int `yaml:"log_every"`
}

// Result is the outcome of Train.  On error it holds the progress made
// before the failure.
type Result struct {
	State  optim.State
	Losses []float32 // loss before each completed step
	Epochs int
}

// FinalLoss is the last recorded loss, or NaN if no step completed.
func (r *Result) FinalLoss() float32 {
	if len(r.Losses) == 0 {
		return math32.NaN()
	}
	return r.Losses[len(r.Losses)-1]
}

// LogHook runs after each logged epoch with the updated state.
type LogHook func(epoch int, state optim.State, loss float32) error

type options struct {
	logger  zerolog.Logger
	hooks   []LogHook
	metrics *Metrics
}

type Option func(*options)

// WithLogger replaces the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithLogHook(hook LogHook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hook)
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Train applies update to state up to config.MaxEpochs times.
//
// ctx is checked between steps.  When it is done, Train returns the partial
// result along with the context's error.
func Train(ctx context.Context, update UpdateFunc, state optim.State, config LoopConfig, opts ...Option) (*Result, error) {
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	if config.MaxEpochs < 0 {
		return nil, fmt.Errorf("max epochs must be non-negative; got %d", config.MaxEpochs)
	}
	if config.LogEvery < 0 {
		return nil, fmt.Errorf("log period must be non-negative; got %d", config.LogEvery)
	}

	result := &Result{
		State:  state,
		Losses: make([]float32, 0, config.MaxEpochs),
	}

	for epoch := 0; epoch < config.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("while training, stopped before epoch %d: %w", epoch, err)
		}

		start := time.Now()
		next, loss, err := update(result.State)
		if err != nil {
			return result, fmt.Errorf("while running update at epoch %d: %w", epoch, err)
		}
		elapsed := time.Since(start)

		if math32.IsNaN(loss) || math32.IsInf(loss, 0) {
			o.logger.Error().Int("epoch", epoch).Float32("loss", loss).Msg("Loss is not finite")
			return result, fmt.Errorf("%w: loss %v at epoch %d", ErrDiverged, loss, epoch)
		}

		result.State = next
		result.Losses = append(result.Losses, loss)
		result.Epochs = epoch + 1

		if o.metrics != nil {
			o.metrics.Loss.Set(float64(loss))
			o.metrics.Steps.Inc()
			o.metrics.StepTime.Observe(elapsed.Seconds())
		}

		if config.LogEvery == 0 || epoch%config.LogEvery != 0 {
			continue
		}

		o.logger.Info().
			Int("epoch", epoch).
			Float32("loss", loss).
			Dur("step_time", elapsed).
			Msg("Training progress")

		for _, hook := range o.hooks {
			if err := hook(epoch, result.State, loss); err != nil {
				return result, fmt.Errorf("while running log hook at epoch %d: %w", epoch, err)
			}
		}
	}

	o.logger.Info().
		Int("epochs", result.Epochs).
		Float32("final_loss", result.FinalLoss()).
		Msg("Training finished")

	return result, nil
}
