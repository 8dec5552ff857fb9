package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

// XDGDirs resolves the XDG base directories the judge uses
type XDGDirs struct {
	configHome string
	cacheHome  string
	runtimeDir string
}

// NewXDGDirs reads the XDG_* variables, falling back to the usual defaults
func NewXDGDirs() *XDGDirs {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current user's home from environment
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			homeDir = "/tmp" // Last resort fallback
		}
	}

	xdg := &XDGDirs{}

	// XDG_CONFIG_HOME: user-specific configuration files
	xdg.configHome = os.Getenv("XDG_CONFIG_HOME")
	if xdg.configHome == "" {
		xdg.configHome = filepath.Join(homeDir, ".config")
	}

	// XDG_CACHE_HOME: user-specific non-essential (cached) data
	xdg.cacheHome = os.Getenv("XDG_CACHE_HOME")
	if xdg.cacheHome == "" {
		xdg.cacheHome = filepath.Join(homeDir, ".cache")
	}

	// XDG_RUNTIME_DIR: user-specific runtime files and other file objects
	xdg.runtimeDir = os.Getenv("XDG_RUNTIME_DIR")
	if xdg.runtimeDir == "" {
		// per-user replacement under /tmp
		xdg.runtimeDir = filepath.Join("/tmp", fmt.Sprintf("judge-runtime-%d", os.Getuid()))
	}

	return xdg
}

// AppConfigDir returns the application-specific config directory
func (x *XDGDirs) AppConfigDir(appName string) string {
	return filepath.Join(x.configHome, appName)
}

// AppCacheDir returns the application-specific cache directory
func (x *XDGDirs) AppCacheDir(appName string) string {
	return filepath.Join(x.cacheHome, appName)
}

// AppRuntimeDir returns the application-specific runtime directory
func (x *XDGDirs) AppRuntimeDir(appName string) string {
	return filepath.Join(x.runtimeDir, appName)
}

// EnsureRuntimeDir creates the runtime directory with secure permissions (0700)
func (x *XDGDirs) EnsureRuntimeDir(path string) error {
	return os.MkdirAll(path, 0700)
}
