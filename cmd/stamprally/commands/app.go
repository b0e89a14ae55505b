package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/config"
	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
	"github.com/Sumatoshi-tech/stamprally/pkg/persist"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/scan"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
	"github.com/Sumatoshi-tech/stamprally/pkg/version"
)

// app is the wired object graph behind a command invocation.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	backend   kv.Store
	store     *store.Store
	engine    *engine.Engine
	red       *observability.REDMetrics
	logger    *slog.Logger
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.backend != "" {
		cfg.Storage.Backend = opts.backend
	}

	if opts.dataDir != "" {
		cfg.Storage.Dir = opts.dataDir
		cfg.Storage.SQLite.Path = ""
	}

	if opts.catalog != "" {
		cfg.Registry.File = opts.catalog
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.Registry.File == "" {
		return registry.Default(), nil
	}

	reg, err := registry.LoadFile(cfg.Registry.File)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return reg, nil
}

// openApp wires config, telemetry, storage and the engine. Logs go to logOut.
func openApp(ctx context.Context, opts *globalOptions, mode observability.AppMode, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	providers, err := observability.InitWithWriter(cfg.Observability(mode, version.Version), logOut)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	a := &app{cfg: cfg, providers: providers, logger: providers.Logger}

	err = a.wire(ctx, reg)
	if err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}

	return a, nil
}

func (a *app) wire(ctx context.Context, reg *registry.Registry) error {
	backend, err := kv.Open(ctx, a.cfg.Storage.KVOptions())
	if err != nil {
		return err
	}

	a.backend = backend

	var historyCodec persist.Codec = persist.NewJSONCodec()
	if a.cfg.Storage.CompressHistory {
		historyCodec = persist.NewLZ4Codec(nil)
	}

	a.store = store.New(backend, reg, store.Options{
		Policy:       a.cfg.Scan.Policy(),
		HistoryLimit: a.cfg.Storage.HistoryLimit,
		HistoryCodec: historyCodec,
		Logger:       a.logger,
	})

	scanMetrics, err := observability.NewScanMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("create scan metrics: %w", err)
	}

	a.red, err = observability.NewREDMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("create request metrics: %w", err)
	}

	a.engine, err = engine.New(engine.Deps{
		Store:   a.store,
		Parser:  scan.NewRegistryParser(reg, scan.WithScheme(a.cfg.Scan.Scheme)),
		Logger:  a.logger,
		Tracer:  a.providers.Tracer,
		Metrics: scanMetrics,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	return nil
}

// Close releases the backend and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error

	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}

	if a.providers.Shutdown != nil {
		errs = append(errs, a.providers.Shutdown(context.WithoutCancel(ctx)))
	}

	return errors.Join(errs...)
}

// withApp opens the app for a CLI command, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, opts, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, a.Close(ctx))
	}()

	return fn(ctx, a)
}
