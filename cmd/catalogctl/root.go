package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"coachcatalog/api/internal/config"
	"coachcatalog/api/internal/logging"
	"coachcatalog/api/internal/vocab"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// vocabulary returns the default vocabulary extended with the synonyms of
// the --config file, when one is given.
func (o *rootOptions) vocabulary() (*vocab.Vocabulary, error) {
	v := vocab.Default()
	if o.configPath == "" {
		return v, nil
	}
	file, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	v.Extend(file.Extra())
	return v, nil
}

func (o *rootOptions) logger(cmd *cobra.Command) (*slog.Logger, error) {
	return logging.New(logging.Options{Level: o.logLevel, Format: "console", Output: cmd.ErrOrStderr()})
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Coach catalog tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Catalog TOML file (plans and vocabulary)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newTemplateCommand())
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
