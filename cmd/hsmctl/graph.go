package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anggasct/hsm/visualization"
)

func newGraphCmd(opts *rootOptions) *cobra.Command {
	var (
		output     string
		format     string
		rankdir    string
		exceptions bool
	)

	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Render a model file as a Graphviz graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := opts.loadModel(args[0])
			if err != nil {
				return err
			}

			options := visualization.DefaultDOTOptions()
			options.RankDirection = rankdir
			options.ShowExceptions = exceptions
			generator := visualization.NewDOTGenerator(model.Machine.Describe(), options)

			var content string
			switch format {
			case "dot":
				content, err = generator.Generate()
			case "svg":
				content, err = generator.GenerateSVG()
			default:
				return fmt.Errorf("unknown format %q: want dot or svg", format)
			}
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}
			return os.WriteFile(output, []byte(content), 0644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the graph to this file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format (dot, svg)")
	cmd.Flags().StringVar(&rankdir, "rankdir", "TB", "graph direction (TB, LR, BT, RL)")
	cmd.Flags().BoolVar(&exceptions, "exceptions", true, "draw exception routes")
	return cmd
}
