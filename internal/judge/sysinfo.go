package judge

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// SystemInfo describes the machine in one line, e.g.
// "linux/amd64, 8 cpus, Intel(R) Xeon(R) CPU @ 2.20GHz, kernel 6.1.0".
// Anything that cannot be read is left out.
func SystemInfo() string {
	parts := []string{
		fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		fmt.Sprintf("%d cpus", runtime.NumCPU()),
	}
	if model := cpuModel("/proc/cpuinfo"); model != "" {
		parts = append(parts, model)
	}
	if release, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		parts = append(parts, "kernel "+strings.TrimSpace(string(release)))
	}
	return strings.Join(parts, ", ")
}

func cpuModel(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok && strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
