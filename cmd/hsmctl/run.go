package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/anggasct/hsm"
	"github.com/anggasct/hsm/pkg/modelfile"
	"github.com/anggasct/hsm/pkg/observers"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		noColor bool
		guards  bool
	)

	cmd := &cobra.Command{
		Use:   "run FILE [EVENT...]",
		Short: "Start a model and fire events at it",
		Long: `Starts the machine of FILE and fires each EVENT in order, printing the
trace of every event. Without EVENT arguments events are read from stdin,
one per line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := opts.loadModel(args[0])
			if err != nil {
				return err
			}
			defer model.Machine.Dispose()

			out := cmd.OutOrStdout()
			var traceOpts []observers.TraceOption
			if !noColor {
				traceOpts = append(traceOpts, observers.WithStyler(newStyler(out)))
			}
			if guards {
				traceOpts = append(traceOpts, observers.WithGuards())
			}
			trace := observers.NewTraceObserver[modelfile.State](traceOpts...)
			model.Machine.Subscribe(trace)
			model.Machine.Subscribe(observers.NewDefaultZapObserver[modelfile.State]())

			ctx := cmd.Context()
			state, err := model.Machine.Start(ctx, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "start %s -> %v\n", trace, state)

			fire := func(name string) error {
				trace.Reset()
				state, err := model.Machine.Fire(ctx, model.Event(name))
				if err != nil {
					return fmt.Errorf("event %q: %w", name, err)
				}
				fmt.Fprintf(out, "%s %s -> %v\n", name, trace, state)
				return nil
			}

			if len(args) > 1 {
				for _, name := range args[1:] {
					if err := fire(name); err != nil {
						return err
					}
				}
			} else if err := fireLines(cmd.InOrStdin(), fire); err != nil {
				return err
			}

			fmt.Fprintf(out, "final state: %v\n", model.Machine.CurrentState())
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored traces")
	cmd.Flags().BoolVar(&guards, "guards", false, "include guard evaluations in traces")
	return cmd
}

// fireLines fires one event per non-empty line of r. Lines starting with # are skipped.
func fireLines(r io.Reader, fire func(string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if err := fire(name); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// newStyler colors trace tokens by step kind. Non-terminal writers get plain text.
func newStyler(w io.Writer) observers.Styler {
	output := termenv.NewOutput(w)
	return func(kind hsm.StepKind, token string) string {
		s := output.String(token)
		switch kind {
		case hsm.StepEntry:
			s = s.Foreground(output.Color("2"))
		case hsm.StepExit:
			s = s.Foreground(output.Color("3"))
		case hsm.StepAction:
			s = s.Foreground(output.Color("4")).Bold()
		case hsm.StepGuard:
			s = s.Faint()
		}
		return s.String()
	}
}
