package langs

import (
	"slices"
	"strconv"
	"strings"
)

// Profile describes how a language is compiled and run inside a workspace.
// Command templates are stored already split into argv tokens.
type Profile struct {
	ID            string
	Name          string
	CodeFname     string
	CompileCmd    []string
	CompiledFname string
	ExecCmd       []string

	// Env holds extra KEY=VALUE entries for compilers and programs, with
	// the same placeholders as the commands.
	Env []string

	// LimitAddressSpace enables RLIMIT_AS for the process. Runtimes that
	// reserve large virtual ranges up front (the JVM) turn it off and
	// bound their heap through ExecCmd instead.
	LimitAddressSpace bool

	// OOMMarkers are stderr fragments a runtime prints when an allocation
	// fails under the memory ceiling.
	OOMMarkers []string
}

// Vars are the values substituted into command templates.
type Vars struct {
	Dir         string
	MemoryBytes int64
	// CacheDir is a directory shared by all compilations of the process.
	CacheDir string
}

func (p Profile) NeedsCompile() bool {
	return len(p.CompileCmd) > 0
}

func (p Profile) CompileArgv(v Vars) []string {
	return p.expand(p.CompileCmd, v)
}

func (p Profile) ExecArgv(v Vars) []string {
	return p.expand(p.ExecCmd, v)
}

func (p Profile) Environ(v Vars) []string {
	return p.expand(p.Env, v)
}

func (p Profile) expand(tpl []string, v Vars) []string {
	memMiB := v.MemoryBytes / (1024 * 1024)
	if memMiB <= 0 {
		memMiB = 1
	}
	r := strings.NewReplacer(
		"{src}", p.CodeFname,
		"{bin}", p.CompiledFname,
		"{dir}", v.Dir,
		"{mem_mib}", strconv.FormatInt(memMiB, 10),
		"{cache}", v.CacheDir,
	)
	argv := make([]string, len(tpl))
	for i, tok := range tpl {
		argv[i] = r.Replace(tok)
	}
	return argv
}

func (p Profile) clone() Profile {
	p.CompileCmd = slices.Clone(p.CompileCmd)
	p.ExecCmd = slices.Clone(p.ExecCmd)
	p.Env = slices.Clone(p.Env)
	p.OOMMarkers = slices.Clone(p.OOMMarkers)
	return p
}
