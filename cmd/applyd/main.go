// applyd is the job-application pipeline: a queue of discovered postings,
// an operator review surface, and a daemon that fills application forms
// for approved jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/applyd/api"
	"github.com/garnizeh/applyd/internal/adapters"
	"github.com/garnizeh/applyd/internal/answers"
	"github.com/garnizeh/applyd/internal/browser"
	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/internal/daemon"
	"github.com/garnizeh/applyd/internal/db"
	"github.com/garnizeh/applyd/internal/detect"
	"github.com/garnizeh/applyd/internal/models"
	"github.com/garnizeh/applyd/internal/notion"
	"github.com/garnizeh/applyd/internal/pipeline"
	"github.com/garnizeh/applyd/internal/resume"
	"github.com/garnizeh/applyd/internal/store"
	"github.com/garnizeh/applyd/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `applyd - job application pipeline

Usage: applyd <command> [flags] [args]

Commands:
  add          add a job to the queue (-url, -company, -role, -jd, -source)
  queue        list jobs (-status filters)
  approve      approve a job for processing: applyd approve <id>
  approve-all  approve every discovered job
  skip         skip a job: applyd skip <id>
  detect       detect the platform of a URL: applyd detect <url>
  run          drain the approved queue once (-dry-run, -max)
  run-one      process a single approved job: applyd run-one [-dry-run] <id>
  stats        per-status job counts
  daemon       run the processing loop (-dry-run, -interval, -max-per-run)
  serve        run the operator API

Every command accepts -config <path> pointing at a YAML config file.
`

func main() {
	// a missing .env is fine; env vars may come from the shell
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "add":
		err = cmdAdd(ctx, args)
	case "queue":
		err = cmdQueue(ctx, args)
	case "approve":
		err = cmdTransition(ctx, "approve", args, models.StatusApproved)
	case "approve-all":
		err = cmdApproveAll(ctx, args)
	case "skip":
		err = cmdTransition(ctx, "skip", args, models.StatusSkipped)
	case "detect":
		err = cmdDetect(args)
	case "run":
		err = cmdRun(ctx, args)
	case "run-one":
		err = cmdRunOne(ctx, args)
	case "stats":
		err = cmdStats(ctx, args)
	case "daemon":
		err = cmdDaemon(ctx, args)
	case "serve":
		err = cmdServe(ctx, args)
	case "version":
		fmt.Printf("applyd %s (built %s)\n", version, buildTime)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		if ctx.Err() != nil {
			// interrupted by the operator, not a failure
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "applyd %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// app bundles the collaborators every command needs.
type app struct {
	cfg    *config.Config
	conn   *db.DB
	store  *store.Store
	logger *slog.Logger
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ollama.SetLogger(logger)

	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &app{cfg: cfg, conn: conn, store: store.New(conn, logger), logger: logger}, nil
}

func (a *app) Close() {
	if err := a.conn.Close(); err != nil {
		a.logger.Error("close database", "error", err)
	}
}

// buildRunner wires the full pipeline. The returned cleanup releases the
// AI client when one was configured.
func (a *app) buildRunner() (*pipeline.Runner, func(), error) {
	file, err := answers.LoadFile(a.cfg.AnswersFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load answers file: %w", err)
	}

	cleanup := func() {}
	var gen answers.Generator
	if a.cfg.Engine.Model != "" {
		client, err := ollama.NewDefaultClient(a.cfg.Engine.Ollama)
		if err != nil {
			a.logger.Warn("ollama unavailable, AI answers disabled", "error", err)
		} else {
			gen = client
			cleanup = func() { _ = client.Close() }
		}
	}

	eng, err := answers.NewEngine(file, gen, a.cfg.Engine, a.logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build answer engine: %w", err)
	}

	deps := adapters.Deps{
		Launcher:      browser.NewChromeLauncher(a.cfg.Browser),
		Answers:       eng,
		Recorder:      a.store,
		Pacing:        browser.NewPacing(a.cfg.Browser, nil),
		ScreenshotDir: a.cfg.ScreenshotDir,
		Logger:        a.logger,
	}

	opts := &pipeline.Options{}
	if a.cfg.Notion.Token != "" && a.cfg.Notion.DatabaseID != "" {
		opts.Notifier = notion.New(a.cfg.Notion.Token, a.cfg.Notion.DatabaseID, a.logger)
	}

	runner := pipeline.NewRunner(a.store, adapters.NewDefaultRegistry(), deps,
		resume.NewFinder(a.cfg.ResumeDir), a.cfg.Daemon, a.logger, opts)
	return runner, cleanup, nil
}

func cmdAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	company := fs.String("company", "", "company name")
	role := fs.String("role", "", "role title")
	url := fs.String("url", "", "application URL (required)")
	jd := fs.String("jd", "", "path to a job description text file")
	source := fs.String("source", "manual", "where the job came from")
	fs.Parse(args)

	if *url == "" {
		return fmt.Errorf("-url is required")
	}

	var jdText string
	if *jd != "" {
		b, err := os.ReadFile(*jd)
		if err != nil {
			return fmt.Errorf("read job description: %w", err)
		}
		jdText = string(b)
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	platform := detect.FromURL(*url)
	id, err := a.store.Add(ctx, *company, *role, *url, platform, jdText, *source)
	if err != nil {
		return err
	}
	fmt.Printf("added job %d (%s)\n", id, platform)
	return nil
}

func cmdQueue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	status := fs.String("status", "", "filter by status")
	fs.Parse(args)

	if *status != "" && !models.Status(*status).Valid() {
		return fmt.Errorf("unknown status %q", *status)
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.store.Fetch(ctx, models.Status(*status))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCOMPANY\tROLE\tPLATFORM\tUPDATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Status, j.Company, j.Role, j.Platform,
			time.Unix(j.Updated, 0).UTC().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func cmdTransition(ctx context.Context, name string, args []string, to models.Status) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	fs.Parse(args)

	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Transition(ctx, id, to, nil); err != nil {
		return err
	}
	fmt.Printf("job %d -> %s\n", id, to)
	return nil
}

func cmdApproveAll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("approve-all", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	fs.Parse(args)

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.store.Fetch(ctx, models.StatusDiscovered)
	if err != nil {
		return err
	}
	approved := 0
	for _, j := range jobs {
		if err := a.store.Transition(ctx, j.ID, models.StatusApproved, nil); err != nil {
			a.logger.Error("approve job", "id", j.ID, "error", err)
			continue
		}
		approved++
	}
	fmt.Printf("approved %d of %d discovered jobs\n", approved, len(jobs))
	return nil
}

func cmdDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: applyd detect <url>")
	}
	fmt.Println(detect.FromURL(fs.Arg(0)))
	return nil
}

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	dryRun := fs.Bool("dry-run", false, "resolve and log without writing or launching")
	max := fs.Int("max", 0, "process at most this many jobs (0 = config default)")
	fs.Parse(args)

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, cleanup, err := a.buildRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	limit := *max
	if limit == 0 {
		limit = a.cfg.Daemon.MaxPerRun
	}
	res, err := runner.Drain(ctx, limit, *dryRun)
	if res != nil {
		fmt.Printf("processed %d: %d succeeded, %d failed\n", res.Processed, res.Succeeded, res.Failed)
	}
	return err
}

func cmdRunOne(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run-one", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	dryRun := fs.Bool("dry-run", false, "resolve and log without writing or launching")
	fs.Parse(args)

	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, cleanup, err := a.buildRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := runner.ProcessOne(ctx, id, *dryRun)
	if err != nil {
		return err
	}
	fmt.Printf("job %d -> %s (%d attempts)\n", out.JobID, out.Final, out.Attempts)
	return nil
}

func cmdStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	fs.Parse(args)

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	total := 0
	for _, st := range models.StatusOrder {
		fmt.Fprintf(w, "%s\t%d\n", st, counts[st])
		total += counts[st]
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}

func cmdDaemon(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	dryRun := fs.Bool("dry-run", false, "resolve and log without writing or launching")
	interval := fs.Duration("interval", 0, "override the drain interval")
	maxPerRun := fs.Int("max-per-run", 0, "override jobs per drain")
	fs.Parse(args)

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if *interval > 0 {
		a.cfg.Daemon.Interval = *interval
	}
	if *maxPerRun > 0 {
		a.cfg.Daemon.MaxPerRun = *maxPerRun
	}

	runner, cleanup, err := a.buildRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	sched := daemon.New(runner, a.store, a.cfg.Daemon, *dryRun, a.logger)
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML file")
	fs.Parse(args)

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, cleanup, err := a.buildRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	handler := api.SetupRoutes(a.cfg, version, buildTime, a.store, runner)
	server := &http.Server{
		Addr:         a.cfg.API.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.API.Timeout,
		WriteTimeout: a.cfg.API.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", "addr", a.cfg.API.Addr, "version", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutCtx)
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one job id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q", args[0])
	}
	return id, nil
}
