package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"slices"
	"time"

	"github.com/ahmedtd/modax/data"
	"github.com/ahmedtd/modax/losses"
	"github.com/ahmedtd/modax/models"
	"github.com/ahmedtd/modax/optim"
	"github.com/ahmedtd/modax/toolbox"
	"github.com/ahmedtd/modax/training"
	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type TrainCommand struct {
	config     RunConfig
	configFile string
	dataFile   string

	metricsAddr    string
	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Fit a Deepmod model and report the discovered equation"
}

func (*TrainCommand) Usage() string {
	return `train [--config=run.yaml] [--data-file=burgers.npz] [flags]
`
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	c.config = DefaultRunConfig()
	registerRunFlags(f, &c.config)

	f.StringVar(&c.configFile, "config", "", "YAML run file; explicitly set flags override it")
	f.StringVar(&c.dataFile, "data-file", "", "Path to an npz dataset; if empty, a Burgers dataset is generated")
	f.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")
	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx, f); err != nil {
		log.Error().Err(err).Msg("Training failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context, f *flag.FlagSet) error {
	if c.configFile != "" {
		if err := loadConfigFile(c.configFile, &c.config, f); err != nil {
			return err
		}
	}
	if err := c.config.Validate(); err != nil {
		return fmt.Errorf("while validating run config: %w", err)
	}

	logger := log.With().Str("run", uuid.New().String()).Logger()

	if c.cpuProfileFile != "" {
		pf, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer pf.Close()
		if err := pprof.StartCPUProfile(pf); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	ds, err := c.loadDataset(logger)
	if err != nil {
		return err
	}

	model := &models.Deepmod{
		Features:  c.config.Model.Features,
		PolyOrder: c.config.Model.PolyOrder,
		DiffOrder: c.config.Model.DiffOrder,
	}
	params := model.Init(rand.New(rand.NewSource(c.config.Seed)))

	lossFn := losses.LossFnPINN
	if c.config.Loss == "mse" {
		lossFn = losses.LossFnMSE
	}
	update := training.CreateUpdate(lossFn, model, ds.X, ds.Y)

	opts := []training.Option{training.WithLogger(logger)}
	if c.metricsAddr != "" {
		metrics := training.NewMetrics()
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			return fmt.Errorf("while registering metrics: %w", err)
		}
		if err := reg.Register(prometheus.NewGoCollector()); err != nil {
			return fmt.Errorf("while registering Go collector: %w", err)
		}
		srv := serveMetrics(c.metricsAddr, reg, logger)
		defer srv.Close()
		opts = append(opts, training.WithMetrics(metrics))
	}
	if c.config.Sparsity.Threshold > 0 {
		opts = append(opts, training.WithLogHook(pruneHook(model, ds.X, c.config.Sparsity, logger)))
	}

	logger.Info().
		Ints("features", model.Features).
		Int("terms", model.NumTerms()).
		Int("samples", ds.X.Rows()).
		Str("loss", c.config.Loss).
		Msg("Starting training")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	result, err := training.Train(ctx, update, optim.NewAdam(params, c.config.Optimizer), c.config.Loop, opts...)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn().Int("epochs", result.Epochs).Msg("Interrupted; reporting the partial result")
	case err != nil:
		return fmt.Errorf("while training: %w", err)
	}

	phys, err := evaluate(model, result.State.Params(), ds.X)
	if err != nil {
		return fmt.Errorf("while evaluating trained model: %w", err)
	}
	discovery := newDiscovery(model, phys)

	logger.Info().
		Int("epochs", result.Epochs).
		Float32("regression_loss", toolbox.MeanHalfSquaredError(phys.Pred.Value, ds.Y)).
		Str("equation", discovery.Equation()).
		Msg("Discovered equation")

	fmt.Println(plotLosses(result.Losses, 80))
	discovery.WriteTable(os.Stdout)
	fmt.Println(discovery.Equation())

	return nil
}

func (c *TrainCommand) loadDataset(logger zerolog.Logger) (*data.Dataset, error) {
	if c.dataFile != "" {
		ds, err := data.Load(c.dataFile)
		if err != nil {
			return nil, fmt.Errorf("while loading dataset: %w", err)
		}
		logger.Info().Str("path", c.dataFile).Int("samples", ds.X.Rows()).Msg("Loaded dataset")
		return ds, nil
	}

	ds, err := data.BurgersDataset(c.config.Dataset)
	if err != nil {
		return nil, fmt.Errorf("while generating dataset: %w", err)
	}
	logger.Info().
		Float64("viscosity", c.config.Dataset.Viscosity).
		Float64("strength", c.config.Dataset.Strength).
		Float64("noise", c.config.Dataset.Noise).
		Int("samples", ds.X.Rows()).
		Msg("Generated Burgers dataset")
	return ds, nil
}

// evaluate runs model at params without differentiating.
func evaluate(model *models.Deepmod, params toolbox.Params, x *toolbox.AF32) (*models.Physics, error) {
	out, err := model.Apply(toolbox.Bind(toolbox.NewTape(), params), x)
	if err != nil {
		return nil, err
	}
	phys, ok := out.(*models.Physics)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", losses.ErrWrongOutput, out)
	}
	return phys, nil
}

// pruneHook narrows model's library mask to the terms whose normalized
// coefficient reaches the threshold.  Terms never come back once pruned.
func pruneHook(model *models.Deepmod, x *toolbox.AF32, cfg SparsityConfig, logger zerolog.Logger) training.LogHook {
	return func(epoch int, state optim.State, loss float32) error {
		if epoch < cfg.After {
			return nil
		}

		phys, err := evaluate(model, state.Params(), x)
		if err != nil {
			return fmt.Errorf("while evaluating model for pruning: %w", err)
		}
		normalized := models.NormalizedCoeffs(phys.Theta.Value, phys.Dt.Value, phys.Coeffs.Value)
		mask := models.ThresholdMask(normalized, cfg.Threshold)
		if model.Mask != nil {
			for j := range mask {
				mask[j] = mask[j] && model.Mask[j]
			}
		}

		if !slices.Contains(mask, true) {
			logger.Warn().Int("epoch", epoch).Msg("Every term is below the threshold; keeping the previous mask")
			return nil
		}
		if model.Mask != nil && slices.Equal(mask, model.Mask) {
			return nil
		}

		model.Mask = mask
		logger.Info().
			Int("epoch", epoch).
			Strs("active", activeTerms(model.Terms(), mask)).
			Msg("Pruned library")
		return nil
	}
}

func activeTerms(terms []string, mask []bool) []string {
	var out []string
	for j, term := range terms {
		if mask[j] {
			out = append(out, term)
		}
	}
	return out
}

func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}
