package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rendis/ivrflow/internal/compiler"
	"github.com/rendis/ivrflow/internal/expressions"
	"github.com/rendis/ivrflow/internal/export"
	"github.com/rendis/ivrflow/internal/ingest"
	"github.com/rendis/ivrflow/internal/logging"
	"github.com/rendis/ivrflow/internal/scheduler"
	"github.com/rendis/ivrflow/internal/store"
	"github.com/rendis/ivrflow/internal/validation"
	"github.com/rendis/ivrflow/internal/voice"
	"github.com/rendis/ivrflow/pkg/mcp"
)

const remoteTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "compile":
		runCompile(os.Args[2:])
	case "resolve":
		runResolve(os.Args[2:])
	case "sync":
		runSync(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ivrflow <command> [flags]

commands:
  compile   compile a diagram or document file into call-flow records
  resolve   resolve a transcript fragment to a voice prompt
  sync      refresh the local voice-record snapshot
  serve     run the MCP stdio server`)
}

// app bundles the wired components shared by every command.
type app struct {
	cfg       Config
	logger    *slog.Logger
	store     store.Store
	resolver  *voice.Resolver
	ingestor  *ingest.Ingestor
	registry  *ingest.Registry
	schemas   *validation.JSONSchemaValidator
	validator *validation.FlowValidator
	sync      *voice.SyncService
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	logger := newLogger(cfg.LogLevel)

	schemas, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("compile schemas: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	// Resolver tiers: remote snapshot, local cache, built-in fallback set.
	loaders := []voice.Loader{}
	var syncSvc *voice.SyncService
	if cfg.RemoteEndpoint != "" {
		remote := voice.NewRemoteLoader(cfg.RemoteEndpoint, cfg.RemoteToken, remoteTimeout, schemas)
		loaders = append(loaders, remote)
		syncSvc = voice.NewSyncService(remote, st, logger)
	}
	loaders = append(loaders, voice.NewBulkLoader(st), &voice.BuiltinLoader{})

	resolver, err := voice.Init(ctx, logger, loaders...)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine, err := expressions.New(cfg.GuardEngine)
	if err != nil {
		st.Close()
		return nil, err
	}

	registry := ingest.NewRegistry()
	comp := compiler.New(compiler.DefaultConfig(), resolver, logger)
	validator := validation.NewFlowValidator(engine)
	ingestor := ingest.NewIngestor(registry, comp, validator, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		resolver:  resolver,
		ingestor:  ingestor,
		registry:  registry,
		schemas:   schemas,
		validator: validator,
		sync:      syncSvc,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", slog.String("error", err.Error()))
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

// --- compile ---

func runCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	file := fs.String("file", "", "diagram or document file (default: stdin)")
	org := fs.String("org", "", "organization whose voice records take priority")
	category := fs.String("category", "", "callout category ID (default: per-page advisory)")
	format := fs.String("format", "javascript", "output format: javascript or json")
	outDir := fs.String("out", "", "output directory (default: stdout)")
	schemaPrefix := fs.String("schema", "", "schema prefix override for output filenames")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig()
	if *org == "" {
		*org = cfg.Organization
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	source, err := readSource(*file)
	if err != nil {
		fatal(err)
	}

	flows, err := a.ingestor.Ingest(logging.WithOrganization(ctx, *org), source, *org, *category)
	if err != nil {
		fatal(err)
	}

	for _, pf := range flows {
		if r := pf.Flow.Findings; r != nil {
			for _, f := range append(r.Errors, r.Warnings...) {
				a.logger.Warn("validation finding",
					slog.Int("page", pf.Page),
					slog.String("severity", string(f.Severity)),
					slog.String("path", f.Path),
					slog.String("message", f.Message))
			}
		}

		var name string
		var payload []byte
		switch *format {
		case "json":
			data, jsonErr := export.JSON(pf.Flow.Records, a.schemas)
			if jsonErr != nil {
				fatal(jsonErr)
			}
			name = outputName(a.registry, pf.Flow.Category, pf.Page, *schemaPrefix, ".json")
			payload = data
		case "javascript":
			js, jsErr := export.JavaScript(pf.Flow.Records, pf.Flow.Category)
			if jsErr != nil {
				fatal(jsErr)
			}
			name = outputName(a.registry, pf.Flow.Category, pf.Page, *schemaPrefix, ".js")
			payload = []byte(js)
		default:
			fatal(fmt.Errorf("unknown format %q", *format))
		}

		if *outDir == "" {
			fmt.Println(string(payload))
			continue
		}
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			fatal(err)
		}
		fmt.Printf("wrote %s (%d records)\n", path, len(pf.Flow.Records))
	}
}

func readSource(file string) (string, error) {
	if file == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// outputName derives the artifact filename for a page, falling back to a
// page-numbered name when the category is not a registered callout type.
func outputName(registry *ingest.Registry, category string, page int, schemaOverride, ext string) string {
	if ct, ok := registry.Get(category); ok {
		name := ct.Filename(schemaOverride)
		if ext != ".js" {
			name = name[:len(name)-len(".js")] + ext
		}
		return name
	}
	prefix := schemaOverride
	if prefix == "" {
		prefix = "flow"
	}
	return fmt.Sprintf("%s_page%d%s", prefix, page, ext)
}

// --- resolve ---

func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	org := fs.String("org", "", "organization whose records outrank foundation records")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fatal(fmt.Errorf("usage: ivrflow resolve [-org name] \"transcript fragment\""))
	}

	cfg := loadConfig()
	if *org == "" {
		*org = cfg.Organization
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	promptID, confidence := a.resolver.Resolve(fs.Arg(0), *org)
	fmt.Printf("%s (confidence %.2f)\n", promptID, confidence)
}

// --- sync ---

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := newApp(ctx, loadConfig())
	if err != nil {
		fatal(err)
	}
	defer a.close()

	if a.sync == nil {
		fatal(fmt.Errorf("no remote endpoint configured (set remote_endpoint in %s or IVRFLOW_REMOTE_ENDPOINT)", settingsPath()))
	}

	run, err := a.sync.Sync(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("sync %s: %d records\n", run.Status, run.RecordCount)
}

// --- serve ---

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	a, err := newApp(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	var syncer mcp.Syncer
	if a.sync != nil {
		syncer = a.sync

		sched := scheduler.NewScheduler(a.sync, cfg.SyncCron, a.logger)
		if err := sched.Start(ctx); err != nil {
			fatal(err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				a.logger.Warn("failed to stop scheduler", slog.String("error", err.Error()))
			}
		}()
	}

	srv := mcp.NewFlowServer(mcp.FlowServerDeps{
		Ingestor: a.ingestor,
		Registry: a.registry,
		Resolver: a.resolver,
		Store:    a.store,
		Syncer:   syncer,
		Logger:   a.logger,
	})

	a.logger.Info("ivrflow MCP server listening on stdio")
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
