// Package config loads the judge configuration from a TOML file, a .env
// file and JUDGE_* environment variables, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/judge/internal/xdg"
)

const appName = "judge"

type Config struct {
	Log           LogConfig       `toml:"log"`
	Sandbox       SandboxConfig   `toml:"sandbox"`
	LanguagesFile string          `toml:"languages_file"`
	TestFiles     TestFilesConfig `toml:"testfiles"`
	NATS          NATSConfig      `toml:"nats"`
	SQS           SQSConfig       `toml:"sqs"`
	Metrics       MetricsConfig   `toml:"metrics"`
	Worker        WorkerConfig    `toml:"worker"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

type SandboxConfig struct {
	WorkspaceRoot    string `toml:"workspace_root"`
	StdoutLimitBytes int64  `toml:"stdout_limit_bytes"`
	StderrLimitBytes int64  `toml:"stderr_limit_bytes"`
	CgroupRoot       string `toml:"cgroup_root"`
	MaxProcesses     int    `toml:"max_processes"`
	// ToolchainCacheDir keeps compiler caches between submissions.
	ToolchainCacheDir string `toml:"toolchain_cache_dir"`

	CompileCpuMs     int64 `toml:"compile_cpu_ms"`
	CompileWallMs    int64 `toml:"compile_wall_ms"`
	CompileMemoryKiB int64 `toml:"compile_memory_kib"`
}

type TestFilesConfig struct {
	CacheDir string `toml:"cache_dir"`
}

type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
	Queue   string `toml:"queue"`
}

type SQSConfig struct {
	Region          string `toml:"region"`
	RequestQueueURL string `toml:"request_queue_url"`
}

type MetricsConfig struct {
	// Addr is where /metrics is served; empty disables it.
	Addr string `toml:"addr"`
}

type WorkerConfig struct {
	Concurrency int `toml:"concurrency"`
}

// Default returns the configuration used for everything a file leaves out.
func Default(dirs *xdg.XDGDirs) Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Sandbox: SandboxConfig{
			WorkspaceRoot:     dirs.AppRuntimeDir(appName),
			StdoutLimitBytes:  64 * 1024 * 1024,
			StderrLimitBytes:  64 * 1024,
			ToolchainCacheDir: filepath.Join(dirs.AppCacheDir(appName), "toolchains"),
			CompileCpuMs:      10_000,
			CompileWallMs:     15_000,
			CompileMemoryKiB:  1024 * 1024,
		},
		TestFiles: TestFilesConfig{CacheDir: dirs.AppCacheDir(appName)},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "judge.eval",
			Queue:   "judge",
		},
		SQS:     SQSConfig{Region: "eu-central-1"},
		Metrics: MetricsConfig{Addr: ":9090"},
		Worker:  WorkerConfig{Concurrency: 1},
	}
}

// Load reads the configuration. The file is path if set, otherwise
// $JUDGE_CONFIG, otherwise config.toml in the XDG config directory; only
// an explicitly named file has to exist.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	dirs := xdg.NewXDGDirs()
	cfg := Default(dirs)

	required := true
	if path == "" {
		path = os.Getenv("JUDGE_CONFIG")
	}
	if path == "" {
		path = filepath.Join(dirs.AppConfigDir(appName), "config.toml")
		required = false
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides settings with the non-empty JUDGE_* variables.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"JUDGE_LOG_LEVEL":       &c.Log.Level,
		"JUDGE_WORKSPACE_ROOT":  &c.Sandbox.WorkspaceRoot,
		"JUDGE_CGROUP_ROOT":     &c.Sandbox.CgroupRoot,
		"JUDGE_TOOLCHAIN_CACHE": &c.Sandbox.ToolchainCacheDir,
		"JUDGE_LANGUAGES_FILE":  &c.LanguagesFile,
		"JUDGE_NATS_URL":        &c.NATS.URL,
		"JUDGE_SQS_QUEUE_URL":   &c.SQS.RequestQueueURL,
		"JUDGE_METRICS_ADDR":    &c.Metrics.Addr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("JUDGE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JUDGE_CONCURRENCY: %w", err)
		}
		c.Worker.Concurrency = n
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.Sandbox.WorkspaceRoot == "":
		return errors.New("sandbox.workspace_root is empty")
	case c.Worker.Concurrency < 1:
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	case c.Sandbox.CompileCpuMs <= 0 || c.Sandbox.CompileMemoryKiB <= 0:
		return errors.New("sandbox compile limits must be positive")
	case c.Sandbox.CompileWallMs != 0 && c.Sandbox.CompileWallMs < c.Sandbox.CompileCpuMs:
		return errors.New("sandbox.compile_wall_ms is below compile_cpu_ms")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// CompileBudget returns the compile limits as durations and bytes.
func (s SandboxConfig) CompileBudget() (cpu, wall time.Duration, memoryBytes int64) {
	return time.Duration(s.CompileCpuMs) * time.Millisecond,
		time.Duration(s.CompileWallMs) * time.Millisecond,
		s.CompileMemoryKiB * 1024
}
