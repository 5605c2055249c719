package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/api"
	audithook "github.com/xraph/jobqueue/audit_hook"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/natshook"
	"github.com/xraph/jobqueue/observability"
	"github.com/xraph/jobqueue/scheduler"
)

// newScheduler builds a scheduler over the app's store with the exec
// worker registered.
func (a *app) newScheduler(opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	base := []scheduler.Option{
		scheduler.WithLogger(a.logger),
		scheduler.WithConfig(jobqueue.Config{
			Concurrency:     a.cfg.Queue.Concurrency,
			UpdateInterval:  a.cfg.Queue.UpdateInterval,
			ShutdownTimeout: a.cfg.Queue.ShutdownTimeout,
			Debug:           a.cfg.Queue.Debug,
		}),
	}
	s, err := scheduler.New(a.store, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := s.AddWorker(newExecWorker(a.cfg.Worker, a.logger)); err != nil {
		return nil, err
	}
	return s, nil
}

// connectNATS returns the event extension when NATS is configured.
func (a *app) connectNATS() (*nats.Conn, []scheduler.Option, error) {
	if a.cfg.NATS.URL == "" {
		return nil, nil, nil
	}
	nc, err := natshook.Connect(a.cfg.NATS.URL, a.logger)
	if err != nil {
		return nil, nil, err
	}
	hook := natshook.New(nc, natshook.WithPrefix(a.cfg.NATS.Prefix))
	return nc, []scheduler.Option{scheduler.WithExtension(hook)}, nil
}

// auditHook returns the audit extension when auditing is enabled. Events
// are written to the app logger at a level matching their severity.
func (a *app) auditHook() []scheduler.Option {
	if !a.cfg.Audit.Enabled {
		return nil
	}
	rec := audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case audithook.SeverityWarning:
			level = slog.LevelWarn
		case audithook.SeverityCritical:
			level = slog.LevelError
		}
		a.logger.LogAttrs(ctx, level, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	})

	var opts []audithook.Option
	if len(a.cfg.Audit.Actions) > 0 {
		opts = append(opts, audithook.WithActions(a.cfg.Audit.Actions...))
	}
	opts = append(opts, audithook.WithLogger(a.logger))
	return []scheduler.Option{scheduler.WithExtension(audithook.New(rec, opts...))}
}

// poll restarts the run loop every PollInterval until ctx ends so that
// jobs written by other processes are picked up once the loop went idle.
func (a *app) poll(ctx context.Context, s *scheduler.Scheduler) {
	interval := a.cfg.Queue.PollInterval
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.IsRunning() {
				continue
			}
			if err := s.Start(ctx); err != nil {
				a.logger.Error("restart queue", slog.String("error", err.Error()))
			}
		}
	}
}

func newRunCmd(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run queued jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			nc, opts, err := a.connectNATS()
			if err != nil {
				return err
			}
			if nc != nil {
				defer nc.Close()
			}
			opts = append(opts, a.auditHook()...)

			drained := make(chan []*job.Record, 1)
			if once {
				opts = append(opts, scheduler.Configured(scheduler.WithOnQueueFinish(func(executed []*job.Record) {
					select {
					case drained <- executed:
					default:
					}
				})))
			}

			s, err := a.newScheduler(opts...)
			if err != nil {
				return err
			}
			if err := s.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("queue running", slog.String("worker", a.cfg.Worker.Name))

			if once {
				select {
				case executed := <-drained:
					a.logger.Info("queue drained", slog.Int("executed", len(executed)))
				case <-ctx.Done():
				}
			} else {
				a.poll(ctx, s)
			}
			a.logger.Info("shutting down")
			return s.Close()
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "exit when no eligible work remains")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run queued jobs and serve the HTTP admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			nc, opts, err := a.connectNATS()
			if err != nil {
				return err
			}
			if nc != nil {
				defer nc.Close()
			}
			opts = append(opts, a.auditHook()...)

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			tracker := observability.NewStateTracker(100)
			opts = append(opts,
				scheduler.WithExtension(observability.NewMetricsExtension(reg)),
				scheduler.WithExtension(tracker),
			)

			s, err := a.newScheduler(opts...)
			if err != nil {
				return err
			}
			if err := tracker.Refresh(ctx, a.store); err != nil {
				return err
			}

			srv := &http.Server{
				Addr: addr,
				Handler: api.New(s,
					api.WithLogger(a.logger),
					api.WithMetrics(reg),
					api.WithStateTracker(tracker),
				).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("http listening", slog.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				if err := s.Start(gctx); err != nil {
					return err
				}
				a.poll(gctx, s)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Queue.ShutdownTimeout)
				defer cancel()
				httpErr := srv.Shutdown(shutdownCtx)
				return errors.Join(httpErr, s.Close())
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
