package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestLoadTestDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"10.in": "ten", "10.ans": "TEN",
		"2.in": "two", "2.out": "TWO",
		"a.in": "a", "a.ans": "A",
		"notes.txt": "ignored",
	})

	tests, err := loadTestDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []judge.TestCase{
		{Ordinal: 1, Input: "two", Expected: "TWO"},
		{Ordinal: 2, Input: "ten", Expected: "TEN"},
		{Ordinal: 3, Input: "a", Expected: "A"},
	}, tests)
}

func TestLoadTestDirErrors(t *testing.T) {
	_, err := loadTestDir(t.TempDir())
	assert.ErrorContains(t, err, "no *.in files")

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"1.in": "x"})
	_, err = loadTestDir(dir)
	assert.ErrorContains(t, err, "no answer file")
}

func TestGuessLanguage(t *testing.T) {
	registry, err := langs.NewRegistry(
		langs.Profile{ID: "cpp", CodeFname: "main.cpp", ExecCmd: []string{"./main"}},
		langs.Profile{ID: "py", CodeFname: "main.py", ExecCmd: []string{"python3", "{src}"}},
		langs.Profile{ID: "pypy", CodeFname: "main.py", ExecCmd: []string{"pypy3", "{src}"}},
	)
	require.NoError(t, err)

	id, err := guessLanguage(registry, "sol/a.cpp")
	require.NoError(t, err)
	assert.Equal(t, "cpp", id)

	_, err = guessLanguage(registry, "a.py")
	assert.ErrorContains(t, err, "py, pypy")

	_, err = guessLanguage(registry, "Makefile")
	assert.ErrorContains(t, err, "no language")
}

func TestRunWallDefaultMatchesLimits(t *testing.T) {
	var usage string
	for _, f := range (&app{}).runCommand().Flags {
		if flag, ok := f.(*cli.IntFlag); ok && flag.Name == "wall-ms" {
			usage = flag.Usage
		}
	}
	assert.Contains(t, usage, "twice the CPU limit plus one second")

	lim, err := sandbox.Limits{CPUTime: 1500 * time.Millisecond, MemoryBytes: 1}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, lim.WallTime)
}
