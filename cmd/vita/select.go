package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/vitaforest/datasets"
	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/pkg/log"
	"github.com/YuminosukeSato/vitaforest/sklearn/ensemble"
	"github.com/YuminosukeSato/vitaforest/sklearn/feature_selection"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func init() {
	addSelectFlags(selectCmd.Flags())
	_ = selectCmd.MarkFlagRequired("data")
}

func addSelectFlags(flags *pflag.FlagSet) {
	flags.String("data", "", "input data set (.csv or .xlsx)")
	flags.String("target", "y", "response column")
	flags.String("sheet", "", "worksheet of an .xlsx input (default: first sheet)")
	flags.String("config", "", "selector config file (YAML)")
	flags.String("format", "table", "output format: table or json")
	flags.Bool("selected-only", false, "print only the selected variables")
	flags.String("plot", "", "write an importance histogram with the null distribution to this .png/.svg/.pdf file")

	// overrides for the config file
	flags.Int("num-trees", 0, "number of trees per forest")
	flags.Float64("mtry-prop", 0, "split candidates as a proportion of the features")
	flags.Float64("nodesize-prop", 0, "minimal node size as a proportion of the samples")
	flags.Int("threads", 0, "tree-fitting workers (0: all CPUs)")
	flags.String("tree-type", "", "regression or classification (default: from the target)")
	flags.Int64("seed", 0, "random seed")
	flags.String("importance", "", "impurity_corrected or permutation")
	flags.Bool("holdout", false, "use two holdout forests with permutation importance")
	flags.Float64("p-threshold", 0, "selection threshold")
	flags.Bool("fdr-adjust", false, "adjust p-values for multiple testing")
	flags.String("fdr-method", "", "BH, BY, bonferroni, holm or none")
	flags.Float64("conf-level", 0, "confidence level of the p-value intervals")
	flags.String("p-value-method", "", "janitza or altmann")
	flags.Int("permutations", 0, "response permutations for the altmann method")
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "select the variables of a data set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		cfg, err := loadSelectConfig(flags)
		if err != nil {
			return err
		}

		ds, err := loadData(flags)
		if err != nil {
			return err
		}
		if ds.ClassLabels != nil && !flags.Changed("tree-type") {
			cfg.Forest.TreeType = ensemble.TreeTypeClassification
		}
		if cfg.Holdout && !flags.Changed("importance") && cfg.Importance == ensemble.ImportanceImpurityCorrected {
			cfg.Importance = ensemble.ImportancePermutation
		}

		opts := append(cfg.Options(), feature_selection.WithFeatureNames(ds.FeatureNames))
		sel := feature_selection.NewVitaSelector(opts...)

		logger := log.GetLogger().With(log.EstimatorIDKey, sel.ID())
		n, p := ds.Dims()
		logger.Info("Data loaded",
			log.SamplesKey, n,
			log.FeaturesKey, p,
			"target", ds.TargetName,
		)

		if err := sel.FitContext(context.Background(), ds.X, ds.Y); err != nil {
			return err
		}
		result, err := sel.Result()
		if err != nil {
			return err
		}

		if path, _ := flags.GetString("plot"); path != "" {
			if err := plotImportance(path, result); err != nil {
				return err
			}
			logger.Info("Importance plot written", "path", path)
		}

		format, _ := flags.GetString("format")
		selectedOnly, _ := flags.GetBool("selected-only")
		switch format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		case "table":
			renderResult(cmd.OutOrStdout(), result, selectedOnly)
			return nil
		default:
			return errors.NewValidationError("format", "must be 'table' or 'json'", format)
		}
	},
}

func loadSelectConfig(flags *pflag.FlagSet) (feature_selection.Config, error) {
	cfg := feature_selection.DefaultConfig()
	if path, _ := flags.GetString("config"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "open config %s", path)
		}
		defer f.Close()
		if cfg, err = feature_selection.LoadConfig(f); err != nil {
			return cfg, errors.Wrapf(err, "load config %s", path)
		}
	}
	return cfg, applyFlags(flags, &cfg)
}

// applyFlags overrides the config with the flags given on the command line.
func applyFlags(flags *pflag.FlagSet, cfg *feature_selection.Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("num-trees", func() (e error) { cfg.Forest.NumTrees, e = flags.GetInt("num-trees"); return })
	set("mtry-prop", func() (e error) { cfg.Forest.MtryProp, e = flags.GetFloat64("mtry-prop"); return })
	set("nodesize-prop", func() (e error) { cfg.Forest.NodeSizeProp, e = flags.GetFloat64("nodesize-prop"); return })
	set("threads", func() (e error) { cfg.Forest.NumThreads, e = flags.GetInt("threads"); return })
	set("tree-type", func() (e error) { cfg.Forest.TreeType, e = flags.GetString("tree-type"); return })
	set("seed", func() (e error) { cfg.Forest.RandomState, e = flags.GetInt64("seed"); return })
	set("importance", func() (e error) { cfg.Importance, e = flags.GetString("importance"); return })
	set("holdout", func() (e error) { cfg.Holdout, e = flags.GetBool("holdout"); return })
	set("p-threshold", func() (e error) { cfg.PThreshold, e = flags.GetFloat64("p-threshold"); return })
	set("fdr-adjust", func() (e error) { cfg.FDRAdjust, e = flags.GetBool("fdr-adjust"); return })
	set("fdr-method", func() (e error) { cfg.FDRMethod, e = flags.GetString("fdr-method"); return })
	set("conf-level", func() (e error) { cfg.ConfLevel, e = flags.GetFloat64("conf-level"); return })
	set("p-value-method", func() (e error) { cfg.PValueMethod, e = flags.GetString("p-value-method"); return })
	set("permutations", func() (e error) { cfg.NumPermutations, e = flags.GetInt("permutations"); return })
	return err
}

func loadData(flags *pflag.FlagSet) (*datasets.Dataset, error) {
	path, _ := flags.GetString("data")
	target, _ := flags.GetString("target")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		sheet, _ := flags.GetString("sheet")
		return datasets.LoadXLSX(path, sheet, target)
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		return datasets.LoadCSV(f, target)
	default:
		return nil, errors.NewValidationError("data", "unsupported file type", path)
	}
}
