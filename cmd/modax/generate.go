package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ahmedtd/modax/data"
	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

type GenerateCommand struct {
	config     RunConfig
	configFile string
	outFile    string
}

var _ subcommands.Command = (*GenerateCommand)(nil)

func (*GenerateCommand) Name() string {
	return "generate"
}

func (*GenerateCommand) Synopsis() string {
	return "Sample the Burgers solution into an npz dataset"
}

func (*GenerateCommand) Usage() string {
	return `generate [--config=run.yaml] [--out=burgers.npz] [dataset flags]
`
}

func (c *GenerateCommand) SetFlags(f *flag.FlagSet) {
	c.config = DefaultRunConfig()
	registerDatasetFlags(f, &c.config.Dataset)
	f.StringVar(&c.configFile, "config", "", "YAML run file; only its dataset section is used")
	f.StringVar(&c.outFile, "out", "burgers.npz", "Path to write the dataset (npz format)")
}

func (c *GenerateCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx, f); err != nil {
		log.Error().Err(err).Msg("Generate failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *GenerateCommand) executeErr(ctx context.Context, f *flag.FlagSet) error {
	if c.configFile != "" {
		if err := loadConfigFile(c.configFile, &c.config, f); err != nil {
			return err
		}
	}

	ds, err := data.BurgersDataset(c.config.Dataset)
	if err != nil {
		return fmt.Errorf("while generating dataset: %w", err)
	}

	if err := data.Save(c.outFile, ds); err != nil {
		return fmt.Errorf("while saving dataset: %w", err)
	}

	log.Info().
		Str("path", c.outFile).
		Int("samples", ds.X.Rows()).
		Float64("noise", c.config.Dataset.Noise).
		Msg("Wrote dataset")
	return nil
}
