// Package main is the limud CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/limudai/limud/internal/cli"
	"github.com/limudai/limud/internal/config"
	"github.com/limudai/limud/internal/extract"
	"github.com/limudai/limud/internal/importer"
	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/poller"
	"github.com/limudai/limud/internal/remote"
	"github.com/limudai/limud/internal/search"
	"github.com/limudai/limud/internal/server"
	"github.com/limudai/limud/internal/storage"
	"github.com/limudai/limud/internal/tui"
	"github.com/limudai/limud/internal/watcher"
	"github.com/limudai/limud/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/limud/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence, and a missing default file yields the
// built-in defaults. Returns the config and the path that was actually loaded
// ("" when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
			cfg = &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "search":
		runSearch()
	case "tui":
		runTUI()
	case "import":
		runImport()
	case "job":
		runJob()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("limud version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (imports, search passes, requests)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("database_path", cfg.Storage.DatabasePath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		components.Importer,
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Storage,
		components.Importer,
		cfg,
		logger,
		server.WithWatcher(watchSvc, resolvedConfigPath),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: limud search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. It is matched literally.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  limud search תורה
  limud search -case Torah
  limud search -whole-words "parashat hashavua"
  limud search -output json -limit 5 shalom
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves any flags (and their values) that appear after positional
// arguments to the front, since flag.Parse stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// resolveServerURL returns the server to talk to: the -server flag when set,
// otherwise remote.base_url from config. Empty means use the local catalog.
func resolveServerURL(flagValue string, cfg *config.Config) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return strings.TrimRight(v, "/")
	}
	return strings.TrimRight(cfg.Remote.BaseURL, "/")
}

func newRemoteClient(baseURL string, cfg *config.Config) *remote.Client {
	return remote.NewClient(baseURL, cfg.Remote.Token,
		remote.WithTimeout(cfg.Remote.Timeout()),
		remote.WithRateLimit(cfg.Remote.RequestsPerSecond),
	)
}

// cliEnv is what a non-server command needs: config, a stderr logger and
// either a remote client or the local components.
type cliEnv struct {
	cfg        *config.Config
	logger     *zap.Logger
	client     *remote.Client
	components *Components
}

func openCLIEnv(configPath, serverFlag string, needLocal bool) *cliEnv {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	env := &cliEnv{cfg: cfg, logger: logger}
	if url := resolveServerURL(serverFlag, cfg); url != "" && !needLocal {
		env.client = newRemoteClient(url, cfg)
		return env
	}
	env.components, err = initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return env
}

func (e *cliEnv) Close() {
	if e.components != nil {
		e.components.Close()
	}
	_ = e.logger.Sync()
}

// documentSource returns the catalog the search engine reads from.
func (e *cliEnv) documentSource() search.DocumentSource {
	if e.client != nil {
		return e.client
	}
	return e.components.Storage
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (default: remote.base_url from config; empty = local catalog)")
	caseSensitive := fs.Bool("case", false, "match case exactly")
	wholeWords := fs.Bool("whole-words", false, "only match whole words")
	limit := fs.Int("limit", 0, "maximum number of documents (0 = search.default_limit from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact (one document per line), or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	env := openCLIEnv(*configPath, *serverURL, false)
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := models.SearchOptions{CaseSensitive: *caseSensitive, WholeWords: *wholeWords}
	n := *limit
	if n == 0 {
		n = env.cfg.Search.DefaultLimit
	}
	response, err := runSearchRequest(ctx, env, models.SearchRequest{Query: queryStr, SearchOptions: opts, Limit: n})
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runSearchRequest runs the search against the server when one is configured,
// otherwise against the local catalog.
func runSearchRequest(ctx context.Context, env *cliEnv, req models.SearchRequest) (*models.SearchResponse, error) {
	if env.client != nil {
		return env.client.Search(ctx, req)
	}
	pass, err := env.components.Engine.Run(ctx, req.Query, req.SearchOptions)
	if err != nil {
		return nil, err
	}
	response := search.BuildResponse(req.Query, req.SearchOptions, pass.Results, req.Limit, pass.Elapsed)
	response.Skipped = pass.Unavailable + pass.Failed
	return response, nil
}

func runTUI() {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (default: remote.base_url from config; empty = local catalog)")
	_ = fs.Parse(os.Args[2:])

	env := openCLIEnv(*configPath, *serverURL, false)
	defer env.Close()

	// Log output would corrupt the alternate screen.
	engine := search.NewEngine(env.documentSource(), search.WithFetchConcurrency(env.cfg.Search.FetchConcurrency))
	err := tui.Run(engine.Search, tui.WithControllerOptions(
		search.WithDebounce(env.cfg.Search.Debounce()),
		search.WithSupersede(env.cfg.Search.SupersedeStale),
	))
	if err != nil {
		fatalf("TUI failed: %v", err)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: limud import [flags] <file-or-directory>...")
		os.Exit(1)
	}

	env := openCLIEnv(*configPath, "", true)
	defer env.Close()

	ctx := context.Background()
	failed := false
	for _, path := range fs.Args() {
		if err := importPath(ctx, env.components.Importer, path, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Import %s failed: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// importPath imports a single file or every supported file under a directory.
func importPath(ctx context.Context, imp *importer.Importer, path string, w io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		n, err := imp.ImportDirectory(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Imported %d file(s) from %s\n", n, path)
		return nil
	}
	changed, err := imp.ImportFile(ctx, path)
	if err != nil {
		return err
	}
	absPath, _ := filepath.Abs(path)
	if !changed {
		fmt.Fprintf(w, "Unchanged: %s\n", importer.FileDocID(absPath))
		return nil
	}
	fmt.Fprintf(w, "Imported: %s\n", importer.FileDocID(absPath))
	return nil
}

// jobBackend is what following a job needs; both the local catalog and the
// remote client provide it.
type jobBackend interface {
	poller.JobSource
	GetJob(ctx context.Context, id string) (*models.Job, error)
}

func runJob() {
	fs := flag.NewFlagSet("job", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (default: remote.base_url from config; empty = local catalog)")
	retry := fs.Bool("retry", false, "resubmit the job once if it has failed")
	once := fs.Bool("once", false, "print the current status and exit without polling")
	interval := fs.Duration("interval", 0, "poll interval (default: jobs.poll_interval_ms from config)")
	outputFormat := fs.String("output", "text", "output format for the final job: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: limud job [flags] <job-id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	env := openCLIEnv(*configPath, *serverURL, false)
	defer env.Close()

	var backend jobBackend = env.client
	if env.client == nil {
		backend = env.components.Storage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		job, err := backend.GetJob(ctx, jobID)
		if err != nil {
			fatalf("Get job failed: %v", err)
		}
		_ = cli.WriteJob(os.Stdout, job, format)
		return
	}

	every := *interval
	if every <= 0 {
		every = env.cfg.Jobs.PollInterval()
	}
	job, followErr := followJob(ctx, backend, jobID, *retry, every, os.Stderr, env.logger)
	if job != nil {
		_ = cli.WriteJob(os.Stdout, job, format)
	}
	if followErr != nil {
		fatalf("%v", followErr)
	}
}

// followJob polls jobID until it completes or fails, printing state changes to
// w. With retry, a failed job is resubmitted once and polling continues.
// A failed job is returned together with an error.
func followJob(ctx context.Context, backend jobBackend, jobID string, retry bool, interval time.Duration, w io.Writer, logger *zap.Logger) (*models.Job, error) {
	var mu sync.Mutex
	latest := make(chan poller.View, 1)
	w = &lockedWriter{w: w}
	p := poller.New(backend,
		poller.WithInterval(interval),
		poller.WithLogger(logger),
		poller.OnChange(func(v poller.View) {
			mu.Lock()
			defer mu.Unlock()
			select {
			case <-latest:
			default:
			}
			latest <- v
		}),
		poller.OnComplete(func(id, transcript string) {
			fmt.Fprintf(w, "transcript ready (%d characters)\n", len([]rune(transcript)))
		}),
	)
	p.Watch(ctx, jobID)
	defer p.Stop()

	retried := false
	var last models.JobState
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case v := <-latest:
			if v.Status.State != last {
				fmt.Fprintf(w, "%s  %s\n", time.Now().Format("15:04:05"), v.Status.State)
				last = v.Status.State
			}
			switch v.Status.State {
			case models.JobCompleted:
				return backend.GetJob(ctx, jobID)
			case models.JobFailed:
				if retry && !retried {
					retried = true
					if err := p.Retry(ctx); err != nil {
						return nil, fmt.Errorf("retry job %s: %w", jobID, err)
					}
					fmt.Fprintln(w, "resubmitted")
					continue
				}
				job, err := backend.GetJob(ctx, jobID)
				if err != nil {
					return nil, err
				}
				return job, fmt.Errorf("job %s failed: %s", jobID, v.Status.ErrorMessage)
			}
		}
	}
}

// lockedWriter serializes writes from the poll loop and the caller.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (default: remote.base_url from config; empty = local catalog)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	env := openCLIEnv(*configPath, *serverURL, false)
	defer env.Close()

	ctx := context.Background()
	var stats *storage.Stats
	if env.client != nil {
		stats, err = env.client.Status(ctx)
	} else {
		stats, err = env.components.Storage.Stats(ctx)
	}
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  *storage.SQLiteStorage
	Engine   *search.Engine
	Importer *importer.Importer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	engine := search.NewEngine(store,
		search.WithLogger(logger),
		search.WithFetchConcurrency(cfg.Search.FetchConcurrency),
	)
	imp := importer.New(store, extract.NewExtractor(),
		importer.WithLogger(logger),
		importer.WithExtensions(cfg.Watch.Extensions),
	)
	return &Components{Storage: store, Engine: engine, Importer: imp}, nil
}

func printUsage() {
	fmt.Println(`limud - transcript search for recorded lessons and documents

Usage:
  limud serve [flags]              Start the HTTP server and directory watcher
  limud search [flags] <query>     Search transcripts
  limud tui [flags]                Interactive search as you type
  limud import [flags] <path>...   Import transcript files or directories
  limud job [flags] <job-id>       Follow a transcription job until it finishes
  limud status [flags]             Show catalog and job statistics
  limud version                    Show version
  limud help                       Show this help

Common Flags:
  -config string    Config file path (default: /usr/local/etc/limud/config.yaml)
  -server string    Server URL; overrides remote.base_url. Without either, the local catalog is used.

Search Flags:
  -case             Match case exactly
  -whole-words      Only match whole words
  -limit int        Maximum number of documents (default: search.default_limit)
  -output string    text, compact or json (default: text)

Job Flags:
  -retry            Resubmit the job once if it has failed
  -once             Print the current status without polling
  -interval dur     Poll interval (default: jobs.poll_interval_ms)
  -output string    text or json (default: text)

Serve Flags:
  -debug            Enable debug logging

Examples:
  limud serve
  limud import ~/lessons
  limud search שבת
  limud search -whole-words -output json "bava metzia"
  limud job -retry 3f2c9a1e-7b4d-4c55-9e0a-1d2b3c4d5e6f
  limud status -output json`)
}
