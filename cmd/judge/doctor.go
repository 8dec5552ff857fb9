package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/workspace"
	"github.com/urfave/cli/v3"
)

type health int

const (
	healthOK health = iota
	healthWarn
	healthError
)

func (h health) String() string {
	switch h {
	case healthOK:
		return "OKAY"
	case healthWarn:
		return "WARN"
	}
	return "ERROR"
}

type feedbackRow struct {
	unit    string
	health  health
	message string
}

func (a *app) doctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "check that this host can judge submissions",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rows := a.diagnose(ctx)
			outputFeedback(os.Stdout, rows)
			for _, r := range rows {
				if r.health == healthError {
					return cli.Exit("", 1)
				}
			}
			return nil
		},
	}
}

func (a *app) diagnose(ctx context.Context) []feedbackRow {
	var rows []feedbackRow

	manager, err := a.workspaces()
	if err != nil {
		return append(rows, feedbackRow{"Workspaces", healthError, err.Error()})
	}
	defer manager.ReleaseAll()
	rows = append(rows, checkWorkspaces(manager))
	rows = append(rows, checkCgroup(a.cfg.Sandbox.CgroupRoot))

	registry, err := a.registry()
	if err != nil {
		return append(rows, feedbackRow{"Languages", healthError, err.Error()})
	}
	rows = append(rows, a.checkSandbox(ctx, registry, manager))
	for _, p := range registry.List() {
		rows = append(rows, checkToolchain(p))
	}
	return rows
}

func checkWorkspaces(manager *workspace.Manager) feedbackRow {
	ws, err := manager.Acquire()
	if err != nil {
		return feedbackRow{"Workspaces", healthError, err.Error()}
	}
	defer manager.Release(ws)
	if err := ws.WriteFile("doctor", []byte("ok"), 0644); err != nil {
		return feedbackRow{"Workspaces", healthError, err.Error()}
	}
	return feedbackRow{"Workspaces", healthOK, manager.Root()}
}

func checkCgroup(root string) feedbackRow {
	if root == "" {
		return feedbackRow{"Cgroups", healthWarn, "disabled, memory is bounded by rlimits only"}
	}
	controllers, err := os.ReadFile(filepath.Join(root, "cgroup.subtree_control"))
	if err != nil {
		return feedbackRow{"Cgroups", healthError, err.Error()}
	}
	for _, c := range []string{"memory", "pids"} {
		if !strings.Contains(string(controllers), c) {
			return feedbackRow{"Cgroups", healthError, fmt.Sprintf("%s controller not enabled in %s", c, root)}
		}
	}
	return feedbackRow{"Cgroups", healthOK, root}
}

// checkSandbox runs a shell one-liner through the whole engine.
func (a *app) checkSandbox(ctx context.Context, registry *langs.Registry, manager *workspace.Manager) feedbackRow {
	withShell, err := registry.With(langs.Profile{
		ID:        "doctor-sh",
		Name:      "POSIX shell",
		CodeFname: "doctor.sh",
		ExecCmd:   []string{"sh", "{src}"},
	})
	if err != nil {
		return feedbackRow{"Sandbox", healthError, err.Error()}
	}
	engine, err := a.engine(withShell, manager, nil)
	if err != nil {
		return feedbackRow{"Sandbox", healthError, err.Error()}
	}
	out, err := engine.Execute(ctx, sandbox.ExecutionRequest{
		SourceCode: "echo ok\n",
		LanguageID: "doctor-sh",
		Limits:     sandbox.Limits{CPUTime: time.Second, WallTime: 2 * time.Second, MemoryBytes: 64 * 1024 * 1024},
	})
	switch {
	case err != nil:
		return feedbackRow{"Sandbox", healthError, err.Error()}
	case out.Kind != sandbox.Success || out.Stdout != "ok\n":
		return feedbackRow{"Sandbox", healthError, fmt.Sprintf("%s: %s%s", out.Kind, out.Message, out.Stderr)}
	}
	return feedbackRow{"Sandbox", healthOK, fmt.Sprintf("wall %dms", out.WallTime.Milliseconds())}
}

func checkToolchain(p langs.Profile) feedbackRow {
	unit := p.Name
	if unit == "" {
		unit = p.ID
	}
	var found []string
	for _, argv := range [][]string{p.CompileCmd, p.ExecCmd} {
		if len(argv) == 0 || isTemplate(argv[0]) {
			continue
		}
		path, err := exec.LookPath(argv[0])
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return feedbackRow{unit, healthWarn, argv[0] + " not found on PATH"}
			}
			return feedbackRow{unit, healthError, err.Error()}
		}
		found = append(found, path)
	}
	return feedbackRow{unit, healthOK, strings.Join(found, ", ")}
}

func outputFeedback(w io.Writer, feedback []feedbackRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Unit", "Health", "Message"})
	for _, row := range feedback {
		t.AppendRow(table.Row{row.unit, row.health.String(), row.message})
	}
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{
			Name:  "Health",
			Align: text.AlignCenter,
			Transformer: text.Transformer(func(s any) string {
				switch s {
				case "OKAY":
					return text.FgHiGreen.Sprint(s)
				case "WARN":
					return text.FgHiYellow.Sprint(s)
				}
				return text.FgHiRed.Sprint(s)
			}),
		},
	})
	t.Render()
}
