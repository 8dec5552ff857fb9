//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// cgroup is a per-run cgroup v2 directory. A nil *cgroup means cgroups
// are disabled and every method is a no-op.
type cgroup struct {
	dir string
}

func newCgroup(root string, lim Limits, maxProcesses int) (*cgroup, error) {
	if root == "" {
		return nil, nil
	}
	dir := filepath.Join(root, "run-"+uuid.NewString())
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, err
	}
	cg := &cgroup{dir: dir}

	if err := cg.write("memory.max", strconv.FormatInt(lim.MemoryBytes, 10)); err != nil {
		cg.remove(nil)
		return nil, err
	}
	// missing when swap accounting is off
	_ = cg.write("memory.swap.max", "0")

	pids := "max"
	if maxProcesses > 0 {
		pids = strconv.Itoa(maxProcesses)
	}
	if err := cg.write("pids.max", pids); err != nil {
		cg.remove(nil)
		return nil, err
	}
	return cg, nil
}

func (cg *cgroup) path() string {
	if cg == nil {
		return ""
	}
	return cg.dir
}

func (cg *cgroup) kill() {
	if cg == nil {
		return
	}
	_ = cg.write("cgroup.kill", "1")
}

func (cg *cgroup) oomKilled() bool {
	if cg == nil {
		return false
	}
	v, ok := cg.readKeyed("memory.events", "oom_kill")
	return ok && v > 0
}

func (cg *cgroup) peakKiB() int64 {
	if cg == nil {
		return 0
	}
	data, err := os.ReadFile(filepath.Join(cg.dir, "memory.peak"))
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return v / 1024
}

func (cg *cgroup) cpuTime() time.Duration {
	if cg == nil {
		return 0
	}
	usec, _ := cg.readKeyed("cpu.stat", "usage_usec")
	return time.Duration(usec) * time.Microsecond
}

// remove kills whatever is left in the cgroup and removes it. rmdir fails
// with EBUSY until the killed processes are gone, hence the retries.
func (cg *cgroup) remove(log *slog.Logger) {
	if cg == nil {
		return
	}
	cg.kill()
	var err error
	for range 50 {
		err = os.Remove(cg.dir)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	if log != nil {
		log.Warn("failed to remove cgroup", "cgroup", cg.dir, "error", err)
	}
}

func (cg *cgroup) write(name, value string) error {
	if err := os.WriteFile(filepath.Join(cg.dir, name), []byte(value), 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (cg *cgroup) readKeyed(name, key string) (int64, bool) {
	data, err := os.ReadFile(filepath.Join(cg.dir, name))
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == key {
			v, err := strconv.ParseInt(fields[1], 10, 64)
			return v, err == nil
		}
	}
	return 0, false
}
