package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrWorkspace = errors.New("workspace unavailable")

// Workspace is a directory exclusively owned by one compile or run attempt.
type Workspace struct {
	id  string
	dir string
}

func (w *Workspace) ID() string  { return w.id }
func (w *Workspace) Dir() string { return w.dir }

func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *Workspace) HasFile(name string) bool {
	info, err := os.Stat(w.Path(name))
	return err == nil && info.Mode().IsRegular()
}

func (w *Workspace) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("file name %q escapes workspace", name)
	}
	return os.WriteFile(w.Path(name), data, perm)
}

// CopyFrom copies the directory tree of src into w, keeping file modes.
func (w *Workspace) CopyFrom(src *Workspace) error {
	return filepath.WalkDir(src.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src.dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		target := filepath.Join(w.dir, rel)
		switch {
		case d.IsDir():
			return os.Mkdir(target, info.Mode().Perm()|0700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			// symlinks, fifos and sockets are not part of a build
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Manager hands out fresh workspaces under a root directory and keeps track
// of the live ones so they can be released in bulk.
type Manager struct {
	root string
	live *xsync.MapOf[string, *Workspace]
	log  *slog.Logger
}

func NewManager(root string, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: create root: %w", ErrWorkspace, err)
	}
	return &Manager{
		root: root,
		live: xsync.NewMapOf[string, *Workspace](),
		log:  log,
	}, nil
}

func (m *Manager) Root() string { return m.root }

// Acquire creates a new, empty, uniquely named workspace.
func (m *Manager) Acquire() (*Workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, id)
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	ws := &Workspace{id: id, dir: dir}
	m.live.Store(id, ws)
	return ws, nil
}

// Release removes the workspace and everything under it. It is safe to
// call more than once.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil {
		return
	}
	if err := forceRemove(ws.dir); err != nil {
		m.log.Warn("failed to remove workspace", "workspace", ws.dir, "error", err)
	}
	m.live.Delete(ws.id)
}

// ReleaseAll releases every workspace that is still live and returns how
// many there were.
func (m *Manager) ReleaseAll() int {
	n := 0
	m.live.Range(func(_ string, ws *Workspace) bool {
		m.Release(ws)
		n++
		return true
	})
	return n
}

func (m *Manager) Active() int {
	return m.live.Size()
}

// forceRemove retries RemoveAll after restoring owner permissions, since a
// submission may chmod its own directories.
func forceRemove(dir string) error {
	err := os.RemoveAll(dir)
	if err == nil {
		return nil
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr == nil && d.IsDir() {
			_ = os.Chmod(path, 0700)
		}
		return nil
	})
	return os.RemoveAll(dir)
}
