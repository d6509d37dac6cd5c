package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ifnotnil/jobpool"
	"github.com/ifnotnil/jobpool/internal/config"
	"github.com/ifnotnil/jobpool/internal/logging"
)

const shutdownTimeout = 5 * time.Second

type runOptions struct {
	configPath string
	workers    int
	jobs       int
	rampSize   int
	panicEvery int
	serve      bool
}

func newRunCmd() *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a batch of colour conversion jobs and report the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			if o.workers > 0 {
				cfg.Workers = o.workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runBatch(ctx, cmd.OutOrStdout(), os.Stderr, cfg, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "path to a YAML config file")
	f.IntVarP(&o.workers, "workers", "w", 0, "worker count, overrides the config when positive")
	f.IntVarP(&o.jobs, "jobs", "n", 64, "number of jobs to submit")
	f.IntVar(&o.rampSize, "ramp-size", 4096, "steps in each job's colour ramp")
	f.IntVar(&o.panicEvery, "panic-every", 0, "make every Nth job panic, 0 disables")
	f.BoolVar(&o.serve, "serve", false, "keep serving metrics after the batch until interrupted")

	return cmd
}

func runBatch(ctx context.Context, out, logOut io.Writer, cfg config.Config, o runOptions) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logOut, level, cfg.Log.Format)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	pool, err := jobpool.NewWorkerPool(
		jobpool.WithWorkers(cfg.Workers),
		jobpool.WithName(cfg.Name),
		jobpool.WithLogger(logger),
		jobpool.WithMetrics(reg),
	)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Stop(context.WithoutCancel(ctx))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newRouter(reg, cfg.Metrics.Path),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		if !o.serve || cfg.Metrics.Addr == "" {
			defer cancel()
		}
		return submitBatch(gctx, out, pool, o)
	})

	return g.Wait()
}

func submitBatch(ctx context.Context, out io.Writer, pool *jobpool.WorkerPool, o runOptions) error {
	results := make([]float64, o.jobs)
	handles := make([]*jobpool.Handle, o.jobs)

	start := time.Now()
	for i := range o.jobs {
		handles[i] = pool.SubmitErr(func() error {
			if o.panicEvery > 0 && (i+1)%o.panicEvery == 0 {
				panic(fmt.Sprintf("job %d asked to panic", i))
			}
			mean, err := linearizeRamp(o.rampSize)
			if err != nil {
				return err
			}
			results[i] = mean
			return nil
		})
	}

	err := jobpool.WaitAll(ctx, handles...)
	elapsed := time.Since(start)

	// Only settled handles count; WaitAll may have returned early on ctx.
	completed, failed, sample := 0, 0, -1
	for i, h := range handles {
		select {
		case <-h.Done():
		default:
			continue
		}
		completed++
		if h.Err() != nil {
			failed++
		} else if sample < 0 {
			sample = i
		}
	}

	fmt.Fprintf(out, "pool=%s workers=%d jobs=%d failed=%d completed=%d elapsed=%s\n",
		pool.Name(), pool.Workers(), o.jobs, failed, completed, elapsed.Round(time.Microsecond))
	if sample >= 0 {
		fmt.Fprintf(out, "mean linear value=%.6f (job %d)\n", results[sample], sample)
	}

	if ctx.Err() != nil {
		return err
	}
	// Job failures are reported above; they do not fail the command.
	return nil
}

func newRouter(reg *prometheus.Registry, metricsPath string) http.Handler {
	r := chi.NewRouter()
	r.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
