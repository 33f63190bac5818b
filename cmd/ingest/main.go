package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"rawgallery/internal/database"
	"rawgallery/internal/indexer"
	"rawgallery/internal/logging"
	"rawgallery/internal/media"
	"rawgallery/internal/memory"
	"rawgallery/internal/startup"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitConfig   = 2
	exitAborted  = 3
)

const progressInterval = 250 * time.Millisecond

type options struct {
	dir     string
	workers int
	prune   bool
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.dir, "dir", "", "photo directory to ingest (overrides PHOTO_DIR)")
	fs.IntVar(&opts.workers, "workers", -1, "files processed at once, 0 = auto (overrides INGEST_WORKERS)")
	fs.BoolVar(&opts.prune, "prune-thumbnails", false, "delete thumbnails no image references after the run")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return opts, errors.New("unexpected arguments")
	}
	if opts.workers < -1 {
		fmt.Fprintln(stderr, "-workers must be 0 or more")
		return opts, errors.New("invalid -workers")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitConfig
	}

	if opts.verbose {
		logging.SetLevel(logging.LevelDebug)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	deriver, err := cfg.NewDeriver()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	if deriver.Strategy() != media.StrategyDevelop {
		if err := media.InitVips(); err != nil {
			logging.Debug("libvips unavailable: %v", err)
		}
		defer media.ShutdownVips()
	}

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open database %s: %v\n", cfg.DatabasePath, err)
		return exitAborted
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	memory.ConfigureFromEnv()
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	idx := indexer.New(db, indexer.NewPipeline(db, deriver, cfg.ThumbnailDir), indexer.Config{
		PhotoDir:   cfg.PhotoDir,
		Extensions: cfg.RawExtensions,
		Workers:    cfg.IngestWorkers,
		Gate:       monitor,
	})
	defer idx.Stop()

	stopProgress := func() {}
	if stdout == os.Stdout && term.IsTerminal(int(os.Stdout.Fd())) {
		stopProgress = showProgress(idx, stdout)
	}

	summary, err := idx.Run(ctx)
	stopProgress()

	switch {
	case errors.Is(err, indexer.ErrRunAborted):
		printSummary(stdout, summary)
		fmt.Fprintf(stderr, "Error: ingestion aborted: %v\n", err)
		return exitAborted
	case errors.Is(err, context.Canceled):
		printSummary(stdout, summary)
		fmt.Fprintln(stderr, "Interrupted")
		return exitAborted
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitAborted
	}
	printSummary(stdout, summary)

	code := exitOK
	if summary.Failed > 0 {
		code = exitFailures
	}

	if opts.prune {
		removed, err := idx.PruneThumbnails(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error: pruning thumbnails: %v\n", err)
			return exitFailures
		}
		fmt.Fprintf(stdout, "Pruned:   %d unreferenced thumbnails\n", removed)
	}
	return code
}

// loadConfig applies flag overrides on top of the environment.
func loadConfig(opts options) (*startup.Config, error) {
	if err := startup.LoadEnvFile(); err != nil {
		return nil, err
	}
	if opts.dir != "" {
		if err := os.Setenv("PHOTO_DIR", opts.dir); err != nil {
			return nil, err
		}
	}

	cfg, err := startup.FromEnv()
	if err != nil {
		return nil, err
	}
	if opts.workers >= 0 {
		cfg.IngestWorkers = opts.workers
	}
	return cfg, nil
}

// showProgress redraws a one-line counter until the returned func is called.
func showProgress(idx *indexer.Indexer, w io.Writer) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p := idx.GetProgress()
				if p.IsIndexing {
					fmt.Fprintf(w, "\rIngesting: %d/%d files", p.FilesProcessed, p.FilesTotal)
				}
			case <-done:
				fmt.Fprint(w, "\r\033[K")
				return
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func printSummary(w io.Writer, s indexer.Summary) {
	fmt.Fprintf(w, "Scanned:  %d\n", s.Scanned)
	fmt.Fprintf(w, "Ingested: %d\n", s.Ingested)
	fmt.Fprintf(w, "Fresh:    %d\n", s.Fresh)
	fmt.Fprintf(w, "Failed:   %d%s\n", s.Failed, formatKinds(s.ByKind))
	fmt.Fprintf(w, "Duration: %v\n", s.Duration.Round(time.Millisecond))
}

func formatKinds(byKind map[indexer.FailureKind]int) string {
	if len(byKind) == 0 {
		return ""
	}
	parts := make([]string, 0, len(byKind))
	for kind, n := range byKind {
		parts = append(parts, fmt.Sprintf("%s: %d", kind, n))
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, ", ") + ")"
}
