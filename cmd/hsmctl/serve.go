package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anggasct/hsm"
	"github.com/anggasct/hsm/internal/server"
	"github.com/anggasct/hsm/pkg/modelfile"
	"github.com/anggasct/hsm/pkg/observers"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr      string
		queueSize int
		grace     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve FILE",
		Short: "Run a model behind an HTTP API",
		Long: `Starts the machine of FILE and serves it over HTTP:

  POST /events/{name}   fire an event (add ?async=true to queue it)
  GET  /state           current state and status
  GET  /graph           the model as a Graphviz graph
  GET  /metrics         Prometheus metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := opts.loadModel(args[0])
			if err != nil {
				return err
			}
			defer model.Machine.Dispose()

			logger := opts.logger.Named("serve")

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			model.Machine.Subscribe(observers.NewMetricsObserver[modelfile.State](observers.NewCollectors(reg), model.Name))
			model.Machine.Subscribe(observers.NewZapObserver[modelfile.State](opts.logger.Named("observer")))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			queue := make(chan hsm.Event, queueSize)
			state, err := model.Machine.Start(ctx, queue)
			if err != nil {
				return err
			}
			logger.Info("machine started", zap.String("machine", model.Name), zap.Stringer("state", state))

			srv := &http.Server{
				Addr: addr,
				Handler: server.NewHandler(model,
					server.WithQueue(queue),
					server.WithGatherer(reg),
					server.WithLogger(logger)),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					_ = srv.Close()
					return err
				}
				return nil
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().IntVar(&queueSize, "queue", 64, "capacity of the asynchronous event queue")
	cmd.Flags().DurationVar(&grace, "grace", 5*time.Second, "time allowed for in-flight requests on shutdown")
	return cmd
}
