package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anggasct/hsm"
	"github.com/anggasct/hsm/internal/logging"
	"github.com/anggasct/hsm/pkg/modelfile"
)

type rootOptions struct {
	logLevel  string
	logFormat string
	logger    *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "hsmctl",
		Short:         "hsmctl works with hierarchical state machine model files",
		Long:          `hsmctl validates, draws, runs and serves state machines declared in YAML model files.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.Setup(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")

	cmd.AddCommand(
		newValidateCmd(opts),
		newGraphCmd(opts),
		newRunCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// loadModel builds the model at path with the built-in registry
func (o *rootOptions) loadModel(path string) (*modelfile.Model, error) {
	return modelfile.LoadModel(path, modelfile.NewRegistry(), hsm.WithLogger(o.logger))
}
