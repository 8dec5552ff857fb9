//go:build linux

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	initProcessName = "judge-sandbox-init"
	initFailureExit = 126

	// fds of the init helper, set up through exec.Cmd.ExtraFiles
	requestFd = 3
	statusFd  = 4

	rlimInfinity = ^uint64(0)
)

// initRequest is sent by the engine to the init helper on the request fd.
type initRequest struct {
	Argv   []string `json:"argv"`
	Env    []string `json:"env"`
	Cgroup string   `json:"cgroup,omitempty"`

	CPUSeconds        uint64 `json:"cpu_seconds"`
	AddressSpaceBytes uint64 `json:"as_bytes,omitempty"`
	DataBytes         uint64 `json:"data_bytes,omitempty"`
	StackBytes        uint64 `json:"stack_bytes,omitempty"`
	FileSizeBytes     uint64 `json:"fsize_bytes,omitempty"`
	MaxProcesses      uint64 `json:"nproc,omitempty"`
}

// Init turns the current process into the sandbox init helper if it was
// started as one, and never returns in that case. Call it first thing in
// main and in TestMain of packages that run programs.
//
// The helper joins the run's cgroup, applies rlimits and execs the target
// with stdin, stdout and stderr already in place. Anything that goes wrong
// before exec is reported on the status fd, which is close-on-exec, so the
// engine can tell launch failures apart from the program's own exit.
func Init() {
	if len(os.Args) == 0 || os.Args[0] != initProcessName {
		return
	}
	err := runInit()
	status := os.NewFile(statusFd, "status")
	_, _ = fmt.Fprint(status, err.Error())
	os.Exit(initFailureExit)
}

func runInit() error {
	unix.CloseOnExec(statusFd)

	reqFile := os.NewFile(requestFd, "request")
	var req initRequest
	err := json.NewDecoder(reqFile).Decode(&req)
	_ = reqFile.Close()
	if err != nil {
		return fmt.Errorf("decode init request: %w", err)
	}
	if len(req.Argv) == 0 {
		return fmt.Errorf("empty command")
	}

	if req.Cgroup != "" {
		procs := filepath.Join(req.Cgroup, "cgroup.procs")
		if err := os.WriteFile(procs, []byte(strconv.Itoa(os.Getpid())), 0); err != nil {
			return fmt.Errorf("join cgroup: %w", err)
		}
	}

	os.Clearenv()
	for _, kv := range req.Env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			_ = os.Setenv(k, v)
		}
	}
	path, err := exec.LookPath(req.Argv[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}

	// Everything execve needs is allocated before the address space limit
	// goes on.
	pathp, err := unix.BytePtrFromString(path)
	if err != nil {
		return err
	}
	argvp, err := cStrings(req.Argv)
	if err != nil {
		return err
	}
	envp, err := cStrings(req.Env)
	if err != nil {
		return err
	}

	if err := applyRlimits(req); err != nil {
		return err
	}

	_, _, errno := unix.RawSyscall(unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(pathp)),
		uintptr(unsafe.Pointer(&argvp[0])),
		uintptr(unsafe.Pointer(&envp[0])))
	return fmt.Errorf("exec %s: %w", path, errno)
}

// cStrings converts ss to the nil-terminated array execve expects.
func cStrings(ss []string) ([]*byte, error) {
	res := make([]*byte, len(ss)+1)
	for i, s := range ss {
		p, err := unix.BytePtrFromString(s)
		if err != nil {
			return nil, err
		}
		res[i] = p
	}
	return res, nil
}

func applyRlimits(req initRequest) error {
	set := func(name string, resource int, cur, max uint64) error {
		if err := unix.Setrlimit(resource, &unix.Rlimit{Cur: cur, Max: max}); err != nil {
			return fmt.Errorf("set rlimit %s: %w", name, err)
		}
		return nil
	}

	if err := set("core", unix.RLIMIT_CORE, 0, 0); err != nil {
		return err
	}
	if req.CPUSeconds > 0 {
		// SIGXCPU at the soft limit, SIGKILL a second later
		if err := set("cpu", unix.RLIMIT_CPU, req.CPUSeconds, req.CPUSeconds+1); err != nil {
			return err
		}
	}
	if req.FileSizeBytes > 0 {
		if err := set("fsize", unix.RLIMIT_FSIZE, req.FileSizeBytes, req.FileSizeBytes); err != nil {
			return err
		}
	}
	if req.MaxProcesses > 0 {
		if err := set("nproc", unix.RLIMIT_NPROC, req.MaxProcesses, req.MaxProcesses); err != nil {
			return err
		}
	}
	if req.StackBytes > 0 {
		var cur unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_STACK, &cur); err == nil {
			want := req.StackBytes
			if cur.Max != rlimInfinity && want > cur.Max {
				want = cur.Max
			}
			_ = unix.Setrlimit(unix.RLIMIT_STACK, &unix.Rlimit{Cur: want, Max: cur.Max})
		}
	}
	if req.DataBytes > 0 {
		// counts writable private mappings, not PROT_NONE reservations
		if err := set("data", unix.RLIMIT_DATA, req.DataBytes, req.DataBytes); err != nil {
			return err
		}
	}
	if req.AddressSpaceBytes > 0 {
		if err := set("as", unix.RLIMIT_AS, req.AddressSpaceBytes, req.AddressSpaceBytes); err != nil {
			return err
		}
	}
	return nil
}
