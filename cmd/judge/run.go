package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/programme-lv/judge/internal/gatherer/respbuilder"
	"github.com/programme-lv/judge/internal/gatherer/termgath"
	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/urfave/cli/v3"
)

func (a *app) runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "judge a source file against a directory of tests",
		ArgsUsage: "<source file> <tests dir>",
		Description: "Every NAME.in in the tests directory is one test; its expected output is\n" +
			"read from NAME.ans or NAME.out. Tests run in order of their names, numeric\n" +
			"names first.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "language id, guessed from the file extension when empty"},
			&cli.IntFlag{Name: "cpu-ms", Value: 1000, Usage: "CPU time limit per test"},
			&cli.IntFlag{Name: "wall-ms", Usage: "wall clock limit per test, twice the CPU limit plus one second when zero"},
			&cli.IntFlag{Name: "mem-kib", Value: 256 * 1024, Usage: "memory limit per test"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "show the output of accepted tests too"},
			&cli.BoolFlag{Name: "json", Usage: "print the full response as JSON instead of progress"},
		},
		Action: a.run,
	}
}

func (a *app) run(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return cli.Exit("expected a source file and a tests directory", 2)
	}
	srcPath, testsDir := cmd.Args().Get(0), cmd.Args().Get(1)

	code, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	tests, err := loadTestDir(testsDir)
	if err != nil {
		return err
	}
	registry, err := a.registry()
	if err != nil {
		return err
	}
	langID := cmd.String("lang")
	if langID == "" {
		if langID, err = guessLanguage(registry, srcPath); err != nil {
			return err
		}
	}

	manager, err := a.workspaces()
	if err != nil {
		return err
	}
	defer manager.ReleaseAll()
	engine, err := a.engine(registry, manager, nil)
	if err != nil {
		return err
	}

	sub := judge.Submission{
		Code:       string(code),
		LanguageID: langID,
		Limits: sandbox.Limits{
			CPUTime:     time.Duration(cmd.Int("cpu-ms")) * time.Millisecond,
			WallTime:    time.Duration(cmd.Int("wall-ms")) * time.Millisecond,
			MemoryBytes: int64(cmd.Int("mem-kib")) * 1024,
		},
	}
	var gath judge.ResultGatherer = termgath.NewWriter(os.Stdout, cmd.Bool("verbose"))
	resp := respbuilder.New(uuid.NewString())
	if cmd.Bool("json") {
		gath = resp
	}
	res, err := judge.New(engine, a.log).Judge(ctx, sub, tests, gath)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp.Response()); err != nil {
			return err
		}
	}
	if res.Verdict != verdict.Accepted {
		return cli.Exit("", 1)
	}
	return nil
}

// guessLanguage picks the language whose source file name has the same
// extension as path. It fails when none or several match.
func guessLanguage(registry *langs.Registry, path string) (string, error) {
	ext := filepath.Ext(path)
	var ids []string
	for _, p := range registry.List() {
		if ext != "" && filepath.Ext(p.CodeFname) == ext {
			ids = append(ids, p.ID)
		}
	}
	switch len(ids) {
	case 1:
		return ids[0], nil
	case 0:
		return "", fmt.Errorf("no language for %q, pass --lang", path)
	default:
		return "", fmt.Errorf("%q matches %s, pass --lang", path, strings.Join(ids, ", "))
	}
}

// loadTestDir reads the NAME.in / NAME.ans pairs of dir. Ordinals follow
// the sorted names starting at 1.
func loadTestDir(dir string) ([]judge.TestCase, error) {
	inputs, err := filepath.Glob(filepath.Join(dir, "*.in"))
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no *.in files in %s", dir)
	}
	slices.SortFunc(inputs, compareTestNames)

	tests := make([]judge.TestCase, 0, len(inputs))
	for i, in := range inputs {
		input, err := os.ReadFile(in)
		if err != nil {
			return nil, err
		}
		expected, err := readAnswer(strings.TrimSuffix(in, ".in"))
		if err != nil {
			return nil, err
		}
		tests = append(tests, judge.TestCase{Ordinal: i + 1, Input: string(input), Expected: string(expected)})
	}
	return tests, nil
}

func readAnswer(base string) ([]byte, error) {
	for _, ext := range []string{".ans", ".out"} {
		data, err := os.ReadFile(base + ext)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no answer file for %s.in", base)
}

// compareTestNames orders "2.in" before "10.in"; other names follow in
// lexical order.
func compareTestNames(a, b string) int {
	na, errA := strconv.Atoi(strings.TrimSuffix(filepath.Base(a), ".in"))
	nb, errB := strconv.Atoi(strings.TrimSuffix(filepath.Base(b), ".in"))
	switch {
	case errA == nil && errB == nil:
		return na - nb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
