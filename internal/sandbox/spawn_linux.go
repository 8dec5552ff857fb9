//go:build linux

package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var ErrLaunch = errors.New("failed to launch process")

// drainTimeout bounds how long output pipes are read after the process
// group is gone. A process that escaped the group may still hold them.
const drainTimeout = time.Second

// dataHeadroom is added to the data segment ceiling of profiles without an
// address space limit. Go and the JVM map bookkeeping and thread stacks
// writable up front; the peak RSS check catches what fits in between.
const dataHeadroom = 256 * 1024 * 1024

func (e *Engine) spawn(ctx context.Context, spec spawnSpec) (rawResult, error) {
	var raw rawResult

	stdin, err := inputFile(spec.input)
	if err != nil {
		return raw, fmt.Errorf("prepare stdin: %w", err)
	}
	defer stdin.Close()

	cg, err := newCgroup(e.cfg.CgroupRoot, spec.limits, e.cfg.MaxProcesses)
	if err != nil {
		return raw, fmt.Errorf("create cgroup: %w", err)
	}
	defer cg.remove(e.log)

	var files fileSet
	defer files.closeAll()
	reqR, reqW, err := files.pipe()
	if err != nil {
		return raw, err
	}
	statusR, statusW, err := files.pipe()
	if err != nil {
		return raw, err
	}
	outR, outW, err := files.pipe()
	if err != nil {
		return raw, err
	}
	errR, errW, err := files.pipe()
	if err != nil {
		return raw, err
	}

	payload, err := json.Marshal(e.initRequest(spec, cg.path()))
	if err != nil {
		return raw, fmt.Errorf("encode init request: %w", err)
	}
	// fits in the pipe buffer, so this does not wait for the helper
	if _, err := reqW.Write(payload); err != nil {
		return raw, fmt.Errorf("write init request: %w", err)
	}
	_ = reqW.Close()

	cmd := &exec.Cmd{
		Path:       e.cfg.HelperPath,
		Args:       []string{initProcessName},
		Dir:        spec.dir,
		Env:        []string{},
		Stdin:      stdin,
		Stdout:     outW,
		Stderr:     errW,
		ExtraFiles: []*os.File{reqR, statusW},
		SysProcAttr: &syscall.SysProcAttr{
			Setpgid:   true,
			Pdeathsig: syscall.SIGKILL,
		},
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return raw, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	// the child has its own copies now
	_ = reqR.Close()
	_ = statusW.Close()
	_ = outW.Close()
	_ = errW.Close()

	stdout := newCappedBuffer(e.cfg.StdoutLimitBytes)
	stderr := newCappedBuffer(e.cfg.StderrLimitBytes)
	var drains sync.WaitGroup
	drains.Add(2)
	go drain(&drains, stdout, outR)
	go drain(&drains, stderr, errR)

	pid := cmd.Process.Pid
	kill := func() {
		killProcessGroup(pid)
		cg.kill()
	}
	wd := startWatchdog(ctx, spec.limits.WallTime, kill)
	waitErr := cmd.Wait()
	raw.wall = time.Since(start)
	wd.stop()
	// reap anything the program left behind in its group
	kill()
	awaitDrains(&drains, drainTimeout, outR, errR)

	status, _ := io.ReadAll(io.LimitReader(statusR, 4096))
	if len(status) > 0 {
		return raw, fmt.Errorf("%w: %s", ErrLaunch, strings.TrimSpace(string(status)))
	}
	if wd.cancelled.Load() {
		return raw, fmt.Errorf("execution cancelled: %w", context.Cause(ctx))
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return raw, fmt.Errorf("wait: %w", waitErr)
	}

	state := cmd.ProcessState
	if ws, ok := state.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			raw.signal = int(ws.Signal())
			raw.sigXCPU = ws.Signal() == syscall.SIGXCPU
			raw.exitCode = -1
		} else {
			raw.exitCode = ws.ExitStatus()
		}
	} else {
		raw.exitCode = state.ExitCode()
	}
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok {
		raw.cpu = time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
		raw.peakKiB = int64(ru.Maxrss)
		raw.ctxSwV = int64(ru.Nvcsw)
		raw.ctxSwF = int64(ru.Nivcsw)
	}
	if cpu := cg.cpuTime(); cpu > raw.cpu {
		raw.cpu = cpu
	}
	raw.meteredKiB = meteredPeak(cg, raw.peakKiB, spec.limitAddressSpace)
	if peak := cg.peakKiB(); peak > raw.peakKiB {
		raw.peakKiB = peak
	}
	raw.oomKilled = cg.oomKilled()
	raw.wallExceeded = wd.fired.Load()
	raw.stdout = stdout.Bytes()
	raw.stdoutTruncated = stdout.Truncated()
	raw.stderr = stderr.Bytes()
	return raw, nil
}

// meteredPeak picks the peak that is held against the memory limit. The
// cgroup only accounts for the program. ru_maxrss also covers the init
// helper before exec, so it is used only when no rlimit bounds the
// address space.
func meteredPeak(cg *cgroup, rusageKiB int64, addressSpaceLimited bool) int64 {
	if cg != nil {
		return cg.peakKiB()
	}
	if addressSpaceLimited {
		return 0
	}
	return rusageKiB
}

// initRequest describes the limits the helper applies before exec.
// Profiles that allow it get an address space ceiling at the memory
// limit; the rest get a data segment ceiling with headroom.
func (e *Engine) initRequest(spec spawnSpec, cgroupDir string) initRequest {
	mem := uint64(spec.limits.MemoryBytes)
	req := initRequest{
		Argv:          spec.argv,
		Env:           e.childEnv(spec.dir, spec.env),
		Cgroup:        cgroupDir,
		CPUSeconds:    spec.limits.rlimitCPUSeconds(),
		StackBytes:    mem,
		FileSizeBytes: uint64(e.cfg.FileSizeLimitBytes),
		MaxProcesses:  uint64(e.cfg.MaxProcesses),
	}
	if spec.limitAddressSpace {
		req.AddressSpaceBytes = mem
	} else {
		req.DataBytes = mem + dataHeadroom
	}
	return req
}

// inputFile returns an anonymous in-memory file holding the input, so the
// program's stdin never appears in its workspace.
func inputFile(input string) (*os.File, error) {
	fd, err := unix.MemfdCreate("stdin", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	f := os.NewFile(uintptr(fd), "stdin")
	if _, err := io.WriteString(f, input); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

type watchdog struct {
	fired     atomic.Bool
	cancelled atomic.Bool
	done      chan struct{}
}

// startWatchdog calls kill when the wall-clock limit elapses or ctx is
// done, whichever comes first, unless stop is called before.
func startWatchdog(ctx context.Context, limit time.Duration, kill func()) *watchdog {
	w := &watchdog{done: make(chan struct{})}
	go func() {
		var deadline <-chan time.Time
		if limit > 0 {
			timer := time.NewTimer(limit)
			defer timer.Stop()
			deadline = timer.C
		}
		select {
		case <-deadline:
			w.fired.Store(true)
			kill()
		case <-ctx.Done():
			w.cancelled.Store(true)
			kill()
		case <-w.done:
		}
	}()
	return w
}

func (w *watchdog) stop() {
	close(w.done)
}

func drain(wg *sync.WaitGroup, dst io.Writer, src io.Reader) {
	defer wg.Done()
	_, _ = io.Copy(dst, src)
}

func awaitDrains(wg *sync.WaitGroup, timeout time.Duration, readers ...*os.File) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		for _, r := range readers {
			_ = r.Close()
		}
		<-done
	}
}

// fileSet closes every pipe end it created, whatever path spawn returns by.
type fileSet []*os.File

func (s *fileSet) pipe() (*os.File, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create pipe: %w", err)
	}
	*s = append(*s, r, w)
	return r, w, nil
}

func (s fileSet) closeAll() {
	for _, f := range s {
		_ = f.Close()
	}
}
