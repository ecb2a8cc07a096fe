package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that a model file declares a valid machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := opts.loadModel(args[0])
			if err != nil {
				return err
			}

			d := model.Machine.Describe()
			fmt.Fprintf(cmd.OutOrStdout(), "model %q is valid: %d states, %d superstates, %d transitions, initial %v\n",
				d.Name, len(d.States), len(d.SuperStates), len(d.Transitions), d.Initial)
			return nil
		},
	}
}
