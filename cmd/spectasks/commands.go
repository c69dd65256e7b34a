package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/spectasks/config"
	taskwatcher "github.com/c360studio/spectasks/processor/task-watcher"
	"github.com/c360studio/spectasks/tasksync"
)

const metricsShutdownTimeout = 5 * time.Second

func scanCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rebuild the status snapshot from every checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.engine.Scan(cmd.Context())
			if err != nil {
				return err
			}
			renderScan(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
			return nil
		},
	}
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show progress per feature from the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.engine.Status(cmd.Context())
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func listCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [feature]",
		Short: "List tasks, optionally only for features matching a name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			snap, err := app.engine.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if filter != "" && snap.IsEmpty() {
				return fmt.Errorf("no feature matches %q", filter)
			}
			renderList(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func completeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Check a task and its subtasks in the checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd, flags, args[0], true)
		},
	}
}

func reopenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <task-id>",
		Short: "Uncheck a completed task in the checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd, flags, args[0], false)
		},
	}
}

func runCompletion(cmd *cobra.Command, flags *globalFlags, id string, completed bool) error {
	app, err := openApp(cmd, flags)
	if err != nil {
		return err
	}
	defer app.Close()

	var result *tasksync.CompletionResult
	if completed {
		result, err = app.engine.Complete(cmd.Context(), id)
	} else {
		result, err = app.engine.Reopen(cmd.Context(), id)
	}

	var notFound *tasksync.TaskNotFoundError
	if errors.As(err, &notFound) {
		renderNotFound(cmd.ErrOrStderr(), notFound)
	}
	if err != nil {
		return err
	}

	renderCompletion(cmd.OutOrStdout(), result, completed)
	return nil
}

func newFeatureCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "new <feature>",
		Short: "Create a feature checklist from the template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			path, err := app.layout.CreateFeature(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan whenever a checklist changes",
		Long: `Watch the specs directory and rebuild the snapshot after checklist
changes settle. A scan runs at startup. Changes arriving while a scan is
running are dropped; the next change triggers a fresh scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			if cmd.Flags().Changed("debounce") {
				app.cfg.Watch.Debounce = debounce
			}
			return runWatch(cmd.Context(), app)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", time.Second, "Quiet period after the last change")
	return cmd
}

// runWatch runs the scheduler, plus the metrics endpoint when configured,
// until ctx is cancelled.
func runWatch(ctx context.Context, app *App) error {
	if err := app.engine.CheckSpecsDir(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	scheduler := taskwatcher.New(taskwatcher.Config{
		Debounce:    app.cfg.Watch.Debounce,
		TasksFile:   app.cfg.Specs.TasksFile,
		ExcludeDirs: app.cfg.Watch.ExcludeDirs,
	}, app.layout.SpecsPath(), func(ctx context.Context) error {
		_, err := app.engine.Scan(ctx)
		return err
	}, taskwatcher.WithLogger(app.logger), taskwatcher.WithMetrics(taskwatcher.NewMetrics(registry)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Stopping the scheduler stops the metrics server too.
		defer cancel()
		return scheduler.Run(gctx)
	})

	if addr := app.cfg.Watch.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			app.logger.Info("Serving metrics", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default spectasks.yaml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.NewLoader(nil).ProjectConfigPath()
			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	})

	return cmd
}
