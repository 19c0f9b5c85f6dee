package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gds_parser/internal/config"
	"gds_parser/internal/extractor"
	"gds_parser/internal/logging"
	"gds_parser/internal/pipeline"
	"gds_parser/internal/records"
	"gds_parser/internal/reference"
	"gds_parser/internal/storage"
)

// app is the wiring shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *storage.DB
	catalog   *reference.MapResolver // Loaded catalog file, if any.
	extractor *extractor.Extractor
	pipeline  *pipeline.Pipeline
	closers   []io.Closer
}

// newApp loads config, sets up logging and opens what the command needs.
// Without withStorage only the reference backend is opened. The pipeline
// does not write anywhere until persist is called.
func newApp(ctx context.Context, flags *globalFlags, withStorage bool) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	sc := cfg.StorageSettings()
	if !withStorage {
		sc.SQLitePath = ""
		sc.ClickHouse.Host = ""
		if cfg.Reference.Backend != "postgres" {
			sc.Postgres.Host = ""
		}
	}
	db, err := storage.Open(ctx, sc)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db)

	if cfg.Reference.Catalog != "" {
		a.catalog, err = reference.LoadCatalog(cfg.Reference.Catalog)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	resolver, err := a.resolver()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.extractor = extractor.New(nil, records.NewBuilder(resolver, logger), logger)
	a.pipeline = pipeline.New(a.extractor, logger)

	return a, nil
}

// persist makes the pipeline write to the opened storage backends.
func (a *app) persist(ctx context.Context) error {
	opts, err := pipeline.FromDB(ctx, a.db)
	if err != nil {
		return err
	}
	a.pipeline = pipeline.New(a.extractor, a.logger, opts...)
	return nil
}

// resolver picks the reference backend. A nil resolver leaves every code
// unresolved.
func (a *app) resolver() (reference.Resolver, error) {
	rc := a.cfg.Reference
	switch rc.Backend {
	case "catalog":
		if a.catalog == nil {
			a.logger.Warn("no reference catalog configured, all codes will be reported unresolved")
			return nil, nil
		}
		return a.catalog, nil
	case "postgres":
		if a.db.PG == nil {
			return nil, errors.New("reference backend postgres is not connected")
		}
		return reference.NewCachedResolver(a.db.PG, rc.CacheSize, rc.CacheTTL), nil
	default:
		return nil, nil
	}
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}
	a.closers = nil
}

// readInput reads a file, or stdin for "" and "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
