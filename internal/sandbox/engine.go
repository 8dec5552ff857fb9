package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/workspace"
)

const (
	defaultStdoutLimitBytes   int64 = 64 * 1024 * 1024
	defaultStderrLimitBytes   int64 = 64 * 1024
	defaultFileSizeLimitBytes int64 = 64 * 1024 * 1024
	defaultPath                     = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

type LanguageResolver interface {
	Resolve(id string) (langs.Profile, error)
}

type Config struct {
	StdoutLimitBytes   int64
	StderrLimitBytes   int64
	FileSizeLimitBytes int64

	// CompileLimits is the fixed budget of every compilation, independent
	// of the limits of the runs that follow it.
	CompileLimits Limits

	// MaxProcesses sets RLIMIT_NPROC (and pids.max with cgroups). Zero
	// leaves it alone; RLIMIT_NPROC counts every process of the user.
	MaxProcesses int

	// CgroupRoot is a writable cgroup v2 directory. Empty disables cgroups.
	CgroupRoot string

	// HelperPath is the binary re-executed as the init helper. Defaults to
	// the running executable, which must call Init first thing in main.
	HelperPath string

	// Path is the PATH given to compilers and programs.
	Path string

	// CacheDir persists toolchain caches (GOCACHE and the like) across
	// compilations. Profiles refer to it as {cache}.
	CacheDir string

	Logger   *slog.Logger
	Observer Observer
}

func DefaultCompileLimits() Limits {
	return Limits{
		CPUTime:     10 * time.Second,
		WallTime:    15 * time.Second,
		MemoryBytes: 1024 * 1024 * 1024,
	}
}

// Engine compiles and runs untrusted programs under resource limits.
type Engine struct {
	cfg        Config
	langs      LanguageResolver
	workspaces *workspace.Manager
	log        *slog.Logger
	observer   Observer
}

func NewEngine(cfg Config, resolver LanguageResolver, workspaces *workspace.Manager) (*Engine, error) {
	if resolver == nil || workspaces == nil {
		return nil, fmt.Errorf("language resolver and workspace manager are required")
	}
	if cfg.StdoutLimitBytes <= 0 {
		cfg.StdoutLimitBytes = defaultStdoutLimitBytes
	}
	if cfg.StderrLimitBytes <= 0 {
		cfg.StderrLimitBytes = defaultStderrLimitBytes
	}
	if cfg.FileSizeLimitBytes <= 0 {
		cfg.FileSizeLimitBytes = defaultFileSizeLimitBytes
	}
	if cfg.CompileLimits == (Limits{}) {
		cfg.CompileLimits = DefaultCompileLimits()
	}
	compileLimits, err := cfg.CompileLimits.Normalize()
	if err != nil {
		return nil, fmt.Errorf("compile limits: %w", err)
	}
	cfg.CompileLimits = compileLimits
	if cfg.HelperPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate init helper: %w", err)
		}
		cfg.HelperPath = exe
	}
	if cfg.Path == "" {
		cfg.Path = os.Getenv("PATH")
		if cfg.Path == "" {
			cfg.Path = defaultPath
		}
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "judge-toolchains")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create toolchain cache: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	return &Engine{
		cfg:        cfg,
		langs:      resolver,
		workspaces: workspaces,
		log:        cfg.Logger,
		observer:   cfg.Observer,
	}, nil
}

// Resolve returns the profile of a language the engine can run.
func (e *Engine) Resolve(languageID string) (langs.Profile, error) {
	return e.langs.Resolve(languageID)
}

// Build is a compiled submission. Each Run copies it into a fresh workspace,
// so runs never see each other's files.
type Build struct {
	profile langs.Profile
	ws      *workspace.Workspace
}

func (b *Build) Language() string { return b.profile.ID }

// Execute compiles and runs one request in workspaces of its own. The error
// is reserved for requests that cannot be attempted at all: an unknown
// language or invalid limits.
func (e *Engine) Execute(ctx context.Context, req ExecutionRequest) (ExecutionOutcome, error) {
	limits, err := req.Limits.Normalize()
	if err != nil {
		return ExecutionOutcome{}, err
	}
	build, compiled, err := e.Compile(ctx, req.SourceCode, req.LanguageID)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	if build == nil {
		return compiled, nil
	}
	defer e.Release(build)
	return e.Run(ctx, build, req.Input, limits), nil
}

// Compile writes the source into a new workspace and runs the compile
// command under the fixed compile budget. A nil Build comes with a
// CompileError or InternalError outcome.
func (e *Engine) Compile(ctx context.Context, code, languageID string) (*Build, ExecutionOutcome, error) {
	profile, err := e.langs.Resolve(languageID)
	if err != nil {
		return nil, ExecutionOutcome{}, err
	}
	log := e.log.With("lang", profile.ID)

	ws, err := e.workspaces.Acquire()
	if err != nil {
		log.Error("failed to acquire workspace", "error", err)
		return nil, internalOutcome(err), nil
	}
	build := &Build{profile: profile, ws: ws}
	keep := false
	defer func() {
		if !keep {
			e.workspaces.Release(ws)
		}
	}()

	if err := ws.WriteFile(profile.CodeFname, []byte(code), 0644); err != nil {
		log.Error("failed to write source code", "workspace", ws.Dir(), "error", err)
		return nil, internalOutcome(fmt.Errorf("write source code: %w", err)), nil
	}

	if !profile.NeedsCompile() {
		keep = true
		return build, ExecutionOutcome{Kind: Success}, nil
	}

	limits := e.cfg.CompileLimits
	vars := e.vars(ws, limits)
	log.Debug("compiling", "workspace", ws.Dir())
	raw, err := e.spawn(ctx, spawnSpec{
		argv:              profile.CompileArgv(vars),
		env:               profile.Environ(vars),
		dir:               ws.Dir(),
		limits:            limits,
		limitAddressSpace: profile.LimitAddressSpace,
	})
	if err != nil {
		log.Error("failed to run compiler", "error", err)
		out := internalOutcome(fmt.Errorf("run compiler: %w", err))
		e.observer.ObserveExecution(profile.ID, PhaseCompile, out)
		return nil, out, nil
	}

	kind := classify(raw, limits, nil)
	out := raw.outcome(kind)
	if kind == Success && profile.CompiledFname != "" && !ws.HasFile(profile.CompiledFname) {
		kind = RuntimeError
		raw.stderr = append(raw.stderr, fmt.Sprintf("\ncompiler did not produce %s", profile.CompiledFname)...)
	}
	if kind != Success {
		out.Kind = CompileError
		out.Message = compileDiagnostic(kind, raw)
		e.observer.ObserveExecution(profile.ID, PhaseCompile, out)
		return nil, out, nil
	}
	e.observer.ObserveExecution(profile.ID, PhaseCompile, out)
	keep = true
	return build, out, nil
}

// Run executes a build against one input.
func (e *Engine) Run(ctx context.Context, b *Build, input string, limits Limits) ExecutionOutcome {
	out := e.run(ctx, b, input, limits)
	e.observer.ObserveExecution(b.profile.ID, PhaseRun, out)
	return out
}

func (e *Engine) run(ctx context.Context, b *Build, input string, limits Limits) ExecutionOutcome {
	limits, err := limits.Normalize()
	if err != nil {
		return internalOutcome(err)
	}
	log := e.log.With("lang", b.profile.ID)

	ws, err := e.workspaces.Acquire()
	if err != nil {
		log.Error("failed to acquire workspace", "error", err)
		return internalOutcome(err)
	}
	defer e.workspaces.Release(ws)

	if err := ws.CopyFrom(b.ws); err != nil {
		log.Error("failed to copy build", "workspace", ws.Dir(), "error", err)
		return internalOutcome(fmt.Errorf("copy build: %w", err))
	}

	vars := e.vars(ws, limits)
	raw, err := e.spawn(ctx, spawnSpec{
		argv:              b.profile.ExecArgv(vars),
		env:               b.profile.Environ(vars),
		dir:               ws.Dir(),
		input:             input,
		limits:            limits,
		limitAddressSpace: b.profile.LimitAddressSpace,
	})
	if err != nil {
		log.Error("failed to run program", "workspace", ws.Dir(), "error", err)
		return internalOutcome(err)
	}
	return raw.outcome(classify(raw, limits, b.profile.OOMMarkers))
}

// Release discards a build's workspace.
func (e *Engine) Release(b *Build) {
	if b == nil {
		return
	}
	e.workspaces.Release(b.ws)
}

type spawnSpec struct {
	argv              []string
	env               []string
	dir               string
	input             string
	limits            Limits
	limitAddressSpace bool
}

func (e *Engine) vars(ws *workspace.Workspace, limits Limits) langs.Vars {
	return langs.Vars{Dir: ws.Dir(), MemoryBytes: limits.MemoryBytes, CacheDir: e.cfg.CacheDir}
}

// childEnv is the whole environment of a sandboxed process. Profile
// entries override the base ones with the same key.
func (e *Engine) childEnv(dir string, extra []string) []string {
	env := []string{
		"PATH=" + e.cfg.Path,
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
	}
	for _, kv := range extra {
		key, _, _ := strings.Cut(kv, "=")
		env = slices.DeleteFunc(env, func(have string) bool {
			return strings.HasPrefix(have, key+"=")
		})
		env = append(env, kv)
	}
	return env
}

func compileDiagnostic(kind OutcomeKind, r rawResult) string {
	var parts []string
	switch kind {
	case TimeLimitExceeded:
		parts = append(parts, "compilation time limit exceeded")
	case MemoryLimitExceeded:
		parts = append(parts, "compilation memory limit exceeded")
	}
	if s := strings.TrimSpace(string(r.stdout)); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(string(r.stderr)); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		if r.signal != 0 {
			return fmt.Sprintf("compiler killed by signal %d", r.signal)
		}
		return fmt.Sprintf("compiler exited with code %d", r.exitCode)
	}
	return strings.Join(parts, "\n")
}
