// Package di wires configuration into a running beanstore.
package di

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ssargent/beanstore/pkg/api"
	"github.com/ssargent/beanstore/pkg/config"
	"github.com/ssargent/beanstore/pkg/proc"
	"github.com/ssargent/beanstore/pkg/sample"
	"github.com/ssargent/beanstore/pkg/storage"
	"github.com/ssargent/beanstore/pkg/store"
	"github.com/ssargent/beanstore/pkg/txn"
)

// Table names in the backend key space.
const (
	ProfilesTable = "profiles"
	BeansTable    = "beans"
)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory
	logOutput     io.Writer
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
		logOutput:     os.Stderr,
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// SetLogOutput redirects application logs
func (c *Container) SetLogOutput(w io.Writer) {
	c.logOutput = w
}

// App is a fully wired beanstore instance.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Backend  storage.Backend
	Profiles *store.Table[sample.Profile]
	Beans    *store.Table[sample.TestBean]
	Runner   *proc.Runner
}

// Build opens the configured backend and assembles tables, the procedure
// runner and metrics on top of it. Close the App when done.
func (c *Container) Build(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := cfg.Logging.NewLogger(c.logOutput)
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(storage.Options{
		Engine:     cfg.Storage.Engine,
		DataDir:    cfg.DataDir,
		SyncWrites: cfg.Storage.SyncWrites,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Engine, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tableOpts := store.TableOptions{Logger: logger, Registerer: reg}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Backend:  backend,
		Profiles: store.NewTable(ProfilesTable, sample.ProfileLayout, backend, tableOpts),
		Beans:    store.NewTable(BeansTable, sample.TestBeanLayout, backend, tableOpts),
		Runner: proc.NewRunner(proc.Options{
			MaxRedo:     cfg.Procedures.MaxRedo,
			MaxDuration: cfg.Procedures.MaxDuration,
			LockStripes: cfg.Procedures.LockStripes,
			Logger:      logger,
			Sink:        txn.LogSink{Logger: logger},
			Registerer:  reg,
		}),
	}
	logger.Debug("beanstore assembled", "engine", cfg.Storage.Engine, "data_dir", cfg.DataDir)
	return app, nil
}

// ServerConfig derives the HTTP settings from the app config.
func (a *App) ServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Bind:          a.Config.Bind,
		Port:          a.Config.Port,
		APIKey:        a.Config.Security.APIKey,
		MaxRecordSize: a.Config.Security.MaxRecordSize,
		Logger:        a.Logger,
	}
}

// NewServer builds the API server over the app's tables.
func (a *App) NewServer() *api.Server {
	return api.NewServer(a.Profiles, a.Beans, a.Runner, a.ServerConfig(), api.NewMetrics(a.Registry))
}

func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	err := a.Backend.Close()
	if errors.Is(err, storage.ErrClosed) {
		return nil
	}
	return err
}
