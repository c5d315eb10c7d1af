package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ahmedtd/modax/data"
	"github.com/ahmedtd/modax/optim"
	"github.com/ahmedtd/modax/training"
	"gopkg.in/yaml.v3"
)

// ModelConfig describes the Deepmod network and its library.
type ModelConfig struct {
	Features  []int `yaml:"features"`
	PolyOrder int   `yaml:"poly_order"`
	DiffOrder int   `yaml:"diff_order"`
}

// SparsityConfig controls pruning of the library during training.
type SparsityConfig struct {
	// Threshold on normalized coefficients.  Zero disables pruning.
	Threshold float64 `yaml:"threshold"`

	// Pruning starts at this epoch and repeats at every logged epoch after.
	After int `yaml:"after"`
}

// RunConfig is everything a training run needs.  It can be read from YAML
// with --config; flags given on the command line take precedence.
type RunConfig struct {
	Dataset   data.BurgersConfig  `yaml:"dataset"`
	Model     ModelConfig         `yaml:"model"`
	Optimizer optim.AdamConfig    `yaml:"optimizer"`
	Loop      training.LoopConfig `yaml:"loop"`
	Sparsity  SparsityConfig      `yaml:"sparsity"`

	// Loss is "pinn" or "mse".
	Loss string `yaml:"loss"`
	Seed int64  `yaml:"seed"`
}

// DefaultRunConfig reproduces the reference Burgers experiment.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Dataset: data.DefaultBurgersConfig(),
		Model: ModelConfig{
			Features:  []int{50, 50, 1},
			PolyOrder: 2,
			DiffOrder: 2,
		},
		Optimizer: optim.AdamConfig{
			LearningRate: 2e-3,
			Beta1:        0.99,
			Beta2:        0.99,
		},
		Loop: training.LoopConfig{
			MaxEpochs: 10001,
			LogEvery:  1000,
		},
		Loss: "pinn",
		Seed: 42,
	}
}

func (c *RunConfig) Validate() error {
	if err := c.Dataset.Validate(); err != nil {
		return fmt.Errorf("while validating dataset: %w", err)
	}
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("while validating optimizer: %w", err)
	}
	if c.Loss != "pinn" && c.Loss != "mse" {
		return fmt.Errorf("unknown loss %q; want pinn or mse", c.Loss)
	}
	if c.Sparsity.Threshold < 0 {
		return fmt.Errorf("sparsity threshold must be non-negative; got %v", c.Sparsity.Threshold)
	}
	return nil
}

// loadConfigFile overlays the YAML file at path onto cfg, then reapplies
// every flag that was set explicitly on f.
func loadConfigFile(path string, cfg *RunConfig, f *flag.FlagSet) error {
	explicit := map[string]string{}
	f.Visit(func(fl *flag.Flag) {
		explicit[fl.Name] = fl.Value.String()
	})

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("while reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("while parsing config file %s: %w", path, err)
	}

	for name, value := range explicit {
		if err := f.Set(name, value); err != nil {
			return fmt.Errorf("while reapplying flag --%s: %w", name, err)
		}
	}
	return nil
}

// registerRunFlags binds the tunable parts of cfg to f.
func registerRunFlags(f *flag.FlagSet, cfg *RunConfig) {
	registerDatasetFlags(f, &cfg.Dataset)

	f.Var((*intList)(&cfg.Model.Features), "features", "Comma-separated layer sizes of the network")
	f.IntVar(&cfg.Model.PolyOrder, "poly-order", cfg.Model.PolyOrder, "Highest power of u in the library")
	f.IntVar(&cfg.Model.DiffOrder, "diff-order", cfg.Model.DiffOrder, "Highest spatial derivative in the library")

	f.Var((*float32Value)(&cfg.Optimizer.LearningRate), "learning-rate", "Adam learning rate")
	f.Var((*float32Value)(&cfg.Optimizer.Beta1), "beta1", "Adam first moment decay")
	f.Var((*float32Value)(&cfg.Optimizer.Beta2), "beta2", "Adam second moment decay")

	f.IntVar(&cfg.Loop.MaxEpochs, "max-epochs", cfg.Loop.MaxEpochs, "Number of update steps")
	f.IntVar(&cfg.Loop.LogEvery, "log-every", cfg.Loop.LogEvery, "Log progress every this many epochs")

	f.Float64Var(&cfg.Sparsity.Threshold, "threshold", cfg.Sparsity.Threshold, "Prune library terms whose normalized coefficient falls below this (0 disables)")
	f.IntVar(&cfg.Sparsity.After, "prune-after", cfg.Sparsity.After, "First epoch at which terms may be pruned")

	f.StringVar(&cfg.Loss, "loss", cfg.Loss, "Loss function: pinn or mse")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for parameter initialization")
}

func registerDatasetFlags(f *flag.FlagSet, cfg *data.BurgersConfig) {
	f.Float64Var(&cfg.XMin, "x-min", cfg.XMin, "Left edge of the spatial domain")
	f.Float64Var(&cfg.XMax, "x-max", cfg.XMax, "Right edge of the spatial domain")
	f.IntVar(&cfg.XCount, "x-count", cfg.XCount, "Number of spatial samples")
	f.Float64Var(&cfg.TMin, "t-min", cfg.TMin, "First sample time (must be positive)")
	f.Float64Var(&cfg.TMax, "t-max", cfg.TMax, "Last sample time")
	f.IntVar(&cfg.TCount, "t-count", cfg.TCount, "Number of time samples")
	f.Float64Var(&cfg.Viscosity, "viscosity", cfg.Viscosity, "Viscosity of the Burgers field")
	f.Float64Var(&cfg.Strength, "strength", cfg.Strength, "Strength of the initial delta peak")
	f.Float64Var(&cfg.Noise, "noise", cfg.Noise, "Gaussian noise level relative to the field's standard deviation")
	f.Int64Var(&cfg.Seed, "noise-seed", cfg.Seed, "Seed for the noise")
}

// intList is a flag.Value for comma-separated integers.
type intList []int

func (l *intList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("while parsing %q: %w", part, err)
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

type float32Value float32

func (v *float32Value) String() string {
	if v == nil {
		return "0"
	}
	return strconv.FormatFloat(float64(*v), 'g', -1, 32)
}

func (v *float32Value) Set(s string) error {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*v = float32Value(f)
	return nil
}
