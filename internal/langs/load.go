package langs

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/google/shlex"
	"github.com/pelletier/go-toml/v2"
)

//go:embed languages.toml
var defaultLanguages []byte

var defaultOOMMarkers = []string{
	"std::bad_alloc",
	"MemoryError",
	"java.lang.OutOfMemoryError",
	"Cannot allocate memory",
}

type fileRoot struct {
	Languages []fileLanguage `toml:"languages"`
}

type fileLanguage struct {
	ID                string   `toml:"id"`
	Name              string   `toml:"name"`
	CodeFname         string   `toml:"code_fname"`
	CompileCmd        string   `toml:"compile_cmd"`
	CompiledFname     string   `toml:"compiled_fname"`
	ExecCmd           string   `toml:"exec_cmd"`
	Env               []string `toml:"env"`
	LimitAddressSpace *bool    `toml:"limit_address_space"`
	OOMMarkers        []string `toml:"oom_markers"`
}

// Default returns the registry built from the embedded languages.toml.
func Default() *Registry {
	r, err := Parse(defaultLanguages)
	if err != nil {
		panic(fmt.Errorf("embedded languages.toml: %w", err))
	}
	return r
}

func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read languages file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse builds a registry from a TOML document with [[languages]] entries.
func Parse(data []byte) (*Registry, error) {
	var root fileRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	profiles := make([]Profile, 0, len(root.Languages))
	for _, l := range root.Languages {
		p, err := l.toProfile()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return NewRegistry(profiles...)
}

func (l fileLanguage) toProfile() (Profile, error) {
	p := Profile{
		ID:                l.ID,
		Name:              l.Name,
		CodeFname:         l.CodeFname,
		CompiledFname:     l.CompiledFname,
		Env:               l.Env,
		LimitAddressSpace: true,
		OOMMarkers:        l.OOMMarkers,
	}
	if l.LimitAddressSpace != nil {
		p.LimitAddressSpace = *l.LimitAddressSpace
	}
	if len(p.OOMMarkers) == 0 {
		p.OOMMarkers = defaultOOMMarkers
	}
	if p.Name == "" {
		p.Name = l.ID
	}

	var err error
	if l.CompileCmd != "" {
		p.CompileCmd, err = shlex.Split(l.CompileCmd)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %s: compile_cmd: %v", ErrInvalidProfile, l.ID, err)
		}
	}
	p.ExecCmd, err = shlex.Split(l.ExecCmd)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %s: exec_cmd: %v", ErrInvalidProfile, l.ID, err)
	}
	return p, nil
}
