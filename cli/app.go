// Command execution for CLI commands.
//
// Information Hiding:
// - Wiring of settings, stores, tools and the engine hidden behind App
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/richinex/reportflow/config"
	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/mcptools"
	"github.com/richinex/reportflow/metrics"
	"github.com/richinex/reportflow/sources"
	"github.com/richinex/reportflow/storage"
	"github.com/richinex/reportflow/tools"
	"github.com/richinex/reportflow/workflow"
)

// Version is reported to MCP peers.
const Version = "0.1.0"

// Options holds CLI execution options.
type Options struct {
	ConfigPath string
	Provider   string
	Driver     string
	DBPath     string
	Verbose    bool
	Progress   bool

	// Out receives command output. Nil means stdout.
	Out io.Writer
}

// App is a fully wired engine with its stores.
type App struct {
	Settings config.Settings
	Store    storage.Store
	Registry *tools.Registry
	Runtime  *workflow.Runtime
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	Out      io.Writer

	toolset *mcptools.Toolset
}

// NewLogger builds the text logger used by every command. Logs go to
// stderr so stdout stays free for output and the MCP transport.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Open loads settings and wires the engine. withModel builds the model
// provider; read-only commands pass false and never touch an API key.
func Open(ctx context.Context, opts Options, withModel bool) (*App, error) {
	s, err := config.Load(opts.ConfigPath, opts.Provider)
	if err != nil {
		return nil, err
	}
	if opts.Driver != "" {
		s.Storage.Driver = opts.Driver
	}
	if opts.DBPath != "" {
		s.Storage.Path = opts.DBPath
	}
	logger := NewLogger(opts.Verbose)

	store, err := OpenStore(s.Storage)
	if err != nil {
		return nil, err
	}

	var provider llm.Provider
	if withModel {
		provider, err = s.Provider()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
		logger.Debug("provider ready", "provider", provider.Name(), "model", provider.Model())
	}

	app, err := build(ctx, s, store, provider, logger, opts.Out)
	if err != nil {
		store.Close()
		return nil, err
	}
	if opts.Progress {
		app.Runtime.Observe(NewProgress(os.Stderr))
	}
	return app, nil
}

// OpenStore opens the configured backend.
func OpenStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver == config.DriverMemory {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.OpenSqlite(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// build wires everything below the store and provider.
func build(ctx context.Context, s config.Settings, store storage.Store, provider llm.Provider, logger *slog.Logger, out io.Writer) (*App, error) {
	if out == nil {
		out = os.Stdout
	}

	registry, err := tools.NewDraftingRegistry(store, s.ToolOptions())
	if err != nil {
		return nil, err
	}

	var toolset *mcptools.Toolset
	if s.Tools.MCPConfig != "" {
		cfg, err := mcptools.LoadConfig(s.Tools.MCPConfig)
		if err != nil {
			return nil, err
		}
		toolset, err = mcptools.Open(ctx, cfg, Version, logger)
		if err != nil {
			return nil, err
		}
		if err := registry.RegisterAll(toolset.Tools()...); err != nil {
			toolset.Close()
			return nil, err
		}
	}

	collector := metrics.NewCollector(logger)
	opts := s.Options()
	opts.AllowedTools = registry.Names()

	rt := workflow.New(store, workflow.Deps{
		Provider:  provider,
		Documents: store,
		Sources: &sources.FileLoader{
			Dir:      s.Sources.Dir,
			Default:  s.Sources.Manifest,
			MaxBytes: s.Sources.MaxBytes,
			Logger:   logger,
		},
		Resolver: sources.Resolver{MaxBytes: s.Sources.MaxBytes},
		Tools:    registry,
		Executor: tools.NewExecutor(s.ToolConfig()),
		Logger:   logger,
		Metrics:  collector,
	}, opts)
	rt.Observe(collector)

	return &App{
		Settings: s,
		Store:    store,
		Registry: registry,
		Runtime:  rt,
		Metrics:  collector,
		Logger:   logger,
		Out:      out,
		toolset:  toolset,
	}, nil
}

// Close releases MCP connections and the store.
func (a *App) Close() error {
	if a.toolset != nil {
		if err := a.toolset.Close(); err != nil {
			a.Logger.Warn("failed to close mcp servers", "error", err)
		}
	}
	return a.Store.Close()
}
