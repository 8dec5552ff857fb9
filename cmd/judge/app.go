package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/programme-lv/judge/internal/config"
	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/metrics"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/testfiles"
	"github.com/programme-lv/judge/internal/workspace"
	"github.com/urfave/cli/v3"
)

// app holds what every subcommand shares. It is filled in by the root
// command's Before hook.
type app struct {
	cfg config.Config
	log *slog.Logger
}

func newCommand() *cli.Command {
	a := &app{}
	return &cli.Command{
		Name:  "judge",
		Usage: "compile and run untrusted submissions against tests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the TOML configuration file",
				Sources: cli.EnvVars("JUDGE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("JUDGE_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable coloured output",
			},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			a.runCommand(),
			a.serveNATSCommand(),
			a.serveSQSCommand(),
			a.behaveCommand(),
			a.langsCommand(),
			a.doctorCommand(),
		},
	}
}

func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if cmd.Bool("no-color") {
		cfg.Log.NoColor = true
	}
	log, err := config.NewLogger(cfg.Log.Level, cfg.Log.NoColor)
	if err != nil {
		return ctx, err
	}
	slog.SetDefault(log)
	a.cfg = cfg
	a.log = log
	return ctx, nil
}

func (a *app) registry() (*langs.Registry, error) {
	if a.cfg.LanguagesFile == "" {
		return langs.Default(), nil
	}
	return langs.LoadFile(a.cfg.LanguagesFile)
}

func (a *app) workspaces() (*workspace.Manager, error) {
	return workspace.NewManager(a.cfg.Sandbox.WorkspaceRoot, a.log)
}

func (a *app) engine(registry *langs.Registry, manager *workspace.Manager, observer sandbox.Observer) (*sandbox.Engine, error) {
	sc := a.cfg.Sandbox
	cpu, wall, mem := sc.CompileBudget()
	engine, err := sandbox.NewEngine(sandbox.Config{
		StdoutLimitBytes: sc.StdoutLimitBytes,
		StderrLimitBytes: sc.StderrLimitBytes,
		CompileLimits:    sandbox.Limits{CPUTime: cpu, WallTime: wall, MemoryBytes: mem},
		MaxProcesses:     sc.MaxProcesses,
		CgroupRoot:       sc.CgroupRoot,
		CacheDir:         sc.ToolchainCacheDir,
		Logger:           a.log,
		Observer:         observer,
	}, registry, manager)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// worker bundles what the serve commands need to judge requests.
type worker struct {
	eval    *evaluator
	metrics *metrics.Collector
	cleanup func()
}

func (a *app) worker(ctx context.Context) (*worker, error) {
	registry, err := a.registry()
	if err != nil {
		return nil, err
	}
	manager, err := a.workspaces()
	if err != nil {
		return nil, err
	}
	collector := metrics.New(manager.Active)
	engine, err := a.engine(registry, manager, collector)
	if err != nil {
		return nil, err
	}
	files, err := a.testFiles(ctx)
	if err != nil {
		return nil, err
	}
	return &worker{
		eval:    newEvaluator(judge.New(engine, a.log), files, collector, a.log),
		metrics: collector,
		cleanup: func() {
			if n := manager.ReleaseAll(); n > 0 {
				a.log.Warn("released leftover workspaces", "count", n)
			}
		},
	}, nil
}

// serveMetrics serves /metrics until ctx is done. An empty address turns
// it off.
func (a *app) serveMetrics(ctx context.Context, c *metrics.Collector) {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", "error", fmt.Errorf("listen %s: %w", addr, err))
		}
	}()
}

// testFiles starts a test file store that fetches over HTTP and, when AWS
// credentials can be loaded, from s3:// URLs.
func (a *app) testFiles(ctx context.Context) (*testfiles.Store, error) {
	store, err := testfiles.New(a.cfg.TestFiles.CacheDir, a.log)
	if err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.SQS.Region))
	if err != nil {
		a.log.Warn("s3 test files disabled", "error", err)
	} else {
		store.Register("s3", testfiles.NewS3Fetcher(s3.NewFromConfig(awsCfg)))
	}
	go store.Start(ctx)
	return store, nil
}
