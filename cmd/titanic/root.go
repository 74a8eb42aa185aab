package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/titanic/pkg/log"
)

// version is set with -ldflags "-X main.version=..."
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "titanic",
		Short: "Titanic survival prediction with classical tabular models",
		Long: `titanic loads the Kaggle Titanic tables, engineers features, compares
eight classifiers, then evaluates a random forest with cross-validation,
out-of-bag scoring and an optional grid search.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			_, err := log.Setup(level, format, cmd.ErrOrStderr())
			return err
		},
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")

	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte("titanic " + version + "\n"))
			return err
		},
	}
}
