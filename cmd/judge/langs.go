package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/urfave/cli/v3"
)

func (a *app) langsCommand() *cli.Command {
	return &cli.Command{
		Name:  "langs",
		Usage: "list the configured languages",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			registry, err := a.registry()
			if err != nil {
				return err
			}
			renderLanguages(os.Stdout, registry.List())
			return nil
		},
	}
}

func renderLanguages(w io.Writer, profiles []langs.Profile) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Name", "Source", "Compile", "Execute"})
	for _, p := range profiles {
		compile := "-"
		if p.NeedsCompile() {
			compile = strings.Join(p.CompileCmd, " ")
		}
		t.AppendRow(table.Row{p.ID, p.Name, p.CodeFname, compile, strings.Join(p.ExecCmd, " ")})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
