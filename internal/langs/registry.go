package langs

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidProfile      = errors.New("invalid language profile")
)

// Registry is an immutable set of language profiles. It is built once at
// start-up and is safe for concurrent lookups.
type Registry struct {
	profiles map[string]Profile
}

func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidProfile, p.ID)
		}
		r.profiles[p.ID] = p.clone()
	}
	return r, nil
}

// Resolve returns the profile registered under id.
func (r *Registry) Resolve(id string) (Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, id)
	}
	return p.clone(), nil
}

func (r *Registry) IDs() mapset.Set[string] {
	ids := mapset.NewSet[string]()
	for id := range r.profiles {
		ids.Add(id)
	}
	return ids
}

// List returns all profiles ordered by id.
func (r *Registry) List() []Profile {
	res := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		res = append(res, p.clone())
	}
	slices.SortFunc(res, func(a, b Profile) int {
		return strings.Compare(a.ID, b.ID)
	})
	return res
}

func validate(p Profile) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidProfile)
	case p.CodeFname == "" || strings.ContainsRune(p.CodeFname, '/'):
		return fmt.Errorf("%w: %s: bad code file name %q", ErrInvalidProfile, p.ID, p.CodeFname)
	case len(p.ExecCmd) == 0:
		return fmt.Errorf("%w: %s: empty exec command", ErrInvalidProfile, p.ID)
	case strings.ContainsRune(p.CompiledFname, '/'):
		return fmt.Errorf("%w: %s: bad compiled file name %q", ErrInvalidProfile, p.ID, p.CompiledFname)
	}
	for _, kv := range p.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("%w: %s: bad env entry %q", ErrInvalidProfile, p.ID, kv)
		}
	}
	return nil
}

// With returns a registry holding r's profiles plus the given ones, which
// replace profiles with the same id.
func (r *Registry) With(profiles ...Profile) (*Registry, error) {
	merged := make(map[string]Profile, len(r.profiles)+len(profiles))
	for id, p := range r.profiles {
		merged[id] = p
	}
	for _, p := range profiles {
		merged[p.ID] = p
	}
	all := make([]Profile, 0, len(merged))
	for _, p := range merged {
		all = append(all, p)
	}
	return NewRegistry(all...)
}
