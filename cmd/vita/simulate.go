package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/vitaforest/datasets"
	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/spf13/cobra"
)

func init() {
	def := datasets.DefaultSimulationConfig()
	flags := simulateCmd.Flags()
	flags.String("out", "", "output file (.csv or .xlsx; default: csv on stdout)")
	flags.Int("samples", def.NumSamples, "number of samples")
	flags.Int("features", def.NumFeatures, "number of features")
	flags.Float64("correlation", def.Correlation, "within-group correlation")
	flags.Float64("noise", def.NoiseSD, "noise standard deviation")
	flags.Uint64("seed", def.Seed, "random seed")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "write a correlated-groups regression data set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		cfg := datasets.DefaultSimulationConfig()
		cfg.NumSamples, _ = flags.GetInt("samples")
		cfg.NumFeatures, _ = flags.GetInt("features")
		cfg.Correlation, _ = flags.GetFloat64("correlation")
		cfg.NoiseSD, _ = flags.GetFloat64("noise")
		cfg.Seed, _ = flags.GetUint64("seed")

		ds, err := datasets.SimulateCorrelated(cfg)
		if err != nil {
			return err
		}

		out, _ := flags.GetString("out")
		switch {
		case out == "":
			return datasets.WriteCSV(cmd.OutOrStdout(), ds)
		case strings.EqualFold(filepath.Ext(out), ".xlsx"):
			err = datasets.WriteXLSX(out, ds)
		default:
			err = writeCSVFile(out, ds)
		}
		if err != nil {
			return err
		}
		log.GetLogger().Info("Simulated data written",
			"path", out,
			log.SamplesKey, cfg.NumSamples,
			log.FeaturesKey, cfg.NumFeatures,
		)
		return nil
	},
}

func writeCSVFile(path string, ds *datasets.Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return datasets.WriteCSV(f, ds)
}
