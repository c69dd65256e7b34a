package main

import (
	"log/slog"

	"github.com/c360studio/spectasks/config"
	snapshotevents "github.com/c360studio/spectasks/output/snapshot-events"
	"github.com/c360studio/spectasks/storage"
	"github.com/c360studio/spectasks/tasksync"
	"github.com/c360studio/spectasks/workflow"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	layout *workflow.Layout
	store  *storage.Store
	engine *tasksync.Engine

	// publisher is nil unless nats.url is set and reachable.
	publisher *snapshotevents.Publisher
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		cfg:    cfg,
		logger: logger,
		layout: workflow.NewLayout(cfg.SpecsPath(), cfg.Specs.TasksFile),
		store: storage.NewStore(cfg.SnapshotPath(),
			storage.WithSchemaValidation(cfg.SchemaValidation()),
			storage.WithLogger(logger)),
	}

	opts := []tasksync.Option{
		tasksync.WithLogger(logger),
		tasksync.WithExcludes(cfg.Specs.Exclude...),
	}

	if cfg.NATS.URL != "" {
		pub, err := snapshotevents.Connect(snapshotevents.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			JetStream:     cfg.NATS.JetStream,
		}, logger)
		if err != nil {
			// Events are optional; the snapshot is still kept in sync.
			logger.Warn("Event publishing disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			app.publisher = pub
			opts = append(opts, tasksync.WithNotifier(pub))
		}
	}

	app.engine = tasksync.NewEngine(app.layout, app.store, opts...)

	logger.Debug("Application ready",
		"root", cfg.Root,
		"specs_dir", app.layout.SpecsPath(),
		"snapshot", app.store.Path())

	return app, nil
}

// Close releases the event publisher, flushing pending events.
func (a *App) Close() {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("Failed to close event publisher", "error", err)
	}
}
