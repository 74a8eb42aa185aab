package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/titanic/config"
	"github.com/YuminosukeSato/titanic/experiment"
	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
	"github.com/YuminosukeSato/titanic/report"
)

// flagKeys maps run flags to their config keys.
var flagKeys = map[string]string{
	"train":      "data.train",
	"test":       "data.test",
	"seed":       "seed",
	"n-jobs":     "n_jobs",
	"model":      "selection.model",
	"search":     "search.enabled",
	"format":     "output.format",
	"plots":      "output.plots_dir",
	"submission": "output.submission",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func newRunCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full experiment and print the report",
		Example: `  titanic run --train data/train.csv --test data/test.csv
  titanic run --config titanic.yaml --search --format yaml --plots out/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(configFile)
			if err != nil {
				return err
			}
			for name, key := range flagKeys {
				if err := v.BindPFlag(key, lookupFlag(cmd, name)); err != nil {
					return errors.Wrapf(err, "bind flag %s", name)
				}
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			// 設定ファイルや環境変数の値でロガーを作り直す
			if _, err := log.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
				return err
			}

			r, err := experiment.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if cfg.Output.PlotsDir != "" {
				if _, err := report.WritePlots(cfg.Output.PlotsDir, r); err != nil {
					return err
				}
			}
			return report.Render(cmd.OutOrStdout(), r, cfg.Output.Format)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "YAML config file")
	f.String("train", "", "training CSV (PassengerId,Survived,Pclass,...)")
	f.String("test", "", "test CSV")
	f.Int64("seed", 42, "random seed")
	f.Int("n-jobs", -1, "parallel workers, -1 uses all CPUs")
	f.String("model", config.ModelRandomForest, "model evaluated after the comparison, or \"best\"")
	f.Bool("search", false, "grid-search the random forest")
	f.String("format", report.FormatText, "report format (text, json, yaml)")
	f.String("plots", "", "directory for PNG charts")
	f.String("submission", "", "write PassengerId,Survived predictions to this file")
	return cmd
}

// lookupFlag finds a local or inherited flag.
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if fl := cmd.Flags().Lookup(name); fl != nil {
		return fl
	}
	return cmd.InheritedFlags().Lookup(name)
}
