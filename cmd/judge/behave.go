package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/fatih/color"
	"github.com/programme-lv/judge/internal/behave"
	"github.com/programme-lv/judge/internal/gatherer/termgath"
	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/urfave/cli/v3"
)

func (a *app) behaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "behave",
		Usage:     "run behaviour scenarios and compare the verdicts",
		ArgsUsage: "<scenarios.toml>...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "lang", Usage: "only run scenarios of these languages"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print the progress of every scenario"},
		},
		Action: a.behave,
	}
}

func (a *app) behave(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return cli.Exit("expected at least one scenario file", 2)
	}
	base, err := a.registry()
	if err != nil {
		return err
	}
	manager, err := a.workspaces()
	if err != nil {
		return err
	}
	defer manager.ReleaseAll()

	only := mapset.NewSet(cmd.StringSlice("lang")...)
	failed := 0
	for _, path := range cmd.Args().Slice() {
		file, err := behave.Parse(path)
		if err != nil {
			return err
		}
		registry, err := base.With(file.Languages...)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		engine, err := a.engine(registry, manager, nil)
		if err != nil {
			return err
		}

		available := installed(registry)
		if only.Cardinality() > 0 {
			available = available.Intersect(only)
		}
		var gath func(behave.Case) judge.ResultGatherer
		if cmd.Bool("verbose") {
			gath = func(behave.Case) judge.ResultGatherer { return termgath.New() }
		}

		fmt.Println(color.New(color.Bold).Sprint(path))
		reports := behave.Run(ctx, judge.New(engine, a.log), file.Cases, available, gath)
		failed += printReports(os.Stdout, reports)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d scenario(s) failed", failed), 1)
	}
	return nil
}

// installed returns the languages whose toolchain can be found on PATH.
func installed(registry *langs.Registry) mapset.Set[string] {
	ids := mapset.NewSet[string]()
	for _, p := range registry.List() {
		if toolchainPresent(p) {
			ids.Add(p.ID)
		}
	}
	return ids
}

func toolchainPresent(p langs.Profile) bool {
	for _, argv := range [][]string{p.CompileCmd, p.ExecCmd} {
		if len(argv) == 0 {
			continue
		}
		if _, err := exec.LookPath(argv[0]); err != nil && !isTemplate(argv[0]) {
			return false
		}
	}
	return true
}

// isTemplate reports whether a command names a file placed in the
// workspace, like "./{bin}", rather than a program on PATH.
func isTemplate(name string) bool {
	for _, v := range []string{"{src}", "{bin}", "{dir}"} {
		if strings.Contains(name, v) {
			return true
		}
	}
	return false
}

// printReports writes one line per scenario and returns how many failed.
func printReports(w io.Writer, reports []behave.Report) int {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	skip := color.New(color.FgYellow)

	failed := 0
	for _, r := range reports {
		switch {
		case r.Skipped:
			skip.Fprint(w, "SKIP")
			fmt.Fprintf(w, " %s (%s skipped)\n", r.Case.Name, r.Case.Submission.LanguageID)
		case r.Passed():
			pass.Fprint(w, "PASS")
			fmt.Fprintf(w, " %s\n", r.Case.Name)
		default:
			failed++
			fail.Fprint(w, "FAIL")
			fmt.Fprintf(w, " %s\n", r.Case.Name)
			if r.Err != nil {
				fmt.Fprintf(w, "     error: %v\n", r.Err)
			}
			for _, d := range r.Diffs {
				fmt.Fprintf(w, "     %s\n", d)
			}
		}
	}
	return failed
}
