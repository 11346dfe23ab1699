// Package limits applies memory and CPU ceilings to subprocesses the
// editor spawns: LSP servers, the PTY shell, and plugin-launched processes
// (spec §4.N). cgroups v2 is tried first; setrlimit via Prlimit is the
// fallback when no writable cgroup can be created.
package limits

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Config mirrors original_source's ProcessLimits: a memory ceiling, a CPU
// share, and an enable switch so a platform or user config can opt out
// entirely.
type Config struct {
	MaxMemoryMB   uint64 // 0 means unset
	MaxCPUPercent uint32 // 0 means unset
	Enabled       bool
}

// DefaultConfig limits to half of detected system memory and 90% CPU,
// matching original_source's default (half memory, 90% CPU, enabled on
// Linux).
func DefaultConfig() Config {
	cfg := Config{MaxCPUPercent: 90, Enabled: runtime.GOOS == "linux"}
	if total, err := TotalMemoryMB(); err == nil {
		cfg.MaxMemoryMB = total / 2
	}
	return cfg
}

// Unlimited disables resource limiting.
func Unlimited() Config { return Config{} }

// Apply caps pid's memory and CPU usage per cfg. It tries a cgroups v2
// cgroup first (covers the whole subtree if the child forks further
// children of its own); if no writable cgroup can be created, it falls
// back to setrlimit-equivalent Prlimit calls against pid directly.
// Failures are logged by the caller, never fatal (spec §4.N: "failures
// are logged, not fatal").
func Apply(pid int, cfg Config) error {
	if !cfg.Enabled || runtime.GOOS != "linux" {
		return nil
	}

	if path, err := setupCgroup(cfg); err == nil {
		if err := moveToCgroup(path, pid); err == nil {
			return nil
		}
		_ = os.Remove(path)
	}

	return applyRlimits(pid, cfg)
}

// setupCgroup creates a cgroup under the user slice (falling back to
// directly under the cgroup root) and writes memory.max/cpu.max into it.
// Returns the cgroup's path on success.
func setupCgroup(cfg Config) (string, error) {
	root := "/sys/fs/cgroup"
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("limits: cgroups v2 not mounted at %s", root)
	}

	name := fmt.Sprintf("editor-lsp-%d", os.Getpid())
	candidates := []string{
		filepath.Join(root, "user.slice", fmt.Sprintf("user-%d.slice", os.Getuid()), name),
		filepath.Join(root, name),
	}

	var lastErr error
	for _, path := range candidates {
		if err := os.MkdirAll(path, 0o755); err != nil {
			lastErr = err
			continue
		}
		if err := writeCgroupLimits(path, cfg); err != nil {
			lastErr = err
			_ = os.Remove(path)
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("limits: could not create a writable cgroup: %w", lastErr)
}

func writeCgroupLimits(path string, cfg Config) error {
	if cfg.MaxMemoryMB > 0 {
		bytes := cfg.MaxMemoryMB * 1024 * 1024
		if err := os.WriteFile(filepath.Join(path, "memory.max"), []byte(strconv.FormatUint(bytes, 10)), 0o644); err != nil {
			return err
		}
	}
	if cfg.MaxCPUPercent > 0 {
		const periodUS = 100_000
		maxUS := periodUS * uint64(cfg.MaxCPUPercent) / 100
		line := fmt.Sprintf("%d %d", maxUS, periodUS)
		if err := os.WriteFile(filepath.Join(path, "cpu.max"), []byte(line), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// moveToCgroup migrates pid's whole thread group into the cgroup at path.
func moveToCgroup(path string, pid int) error {
	return os.WriteFile(filepath.Join(path, "cgroup.procs"), []byte(strconv.Itoa(pid)), 0o644)
}

// applyRlimits is the setrlimit fallback: RLIMIT_AS caps address space
// (memory), RLIMIT_CPU is a generous safety ceiling rather than a
// throttle, matching original_source's fallback (it does not throttle CPU
// percentage via setrlimit either — only cgroups' cpu.max does that).
func applyRlimits(pid int, cfg Config) error {
	var errs []string

	if cfg.MaxMemoryMB > 0 {
		bytes := cfg.MaxMemoryMB * 1024 * 1024
		rl := unix.Rlimit{Cur: bytes, Max: bytes}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &rl, nil); err != nil {
			errs = append(errs, fmt.Sprintf("RLIMIT_AS: %v", err))
		}
	}
	if cfg.MaxCPUPercent > 0 {
		const cpuTimeSeconds = 24 * 60 * 60
		rl := unix.Rlimit{Cur: cpuTimeSeconds, Max: cpuTimeSeconds}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &rl, nil); err != nil {
			errs = append(errs, fmt.Sprintf("RLIMIT_CPU: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("limits: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TotalMemoryMB reads MemTotal out of /proc/meminfo.
func TotalMemoryMB() (uint64, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb / 1024, nil
	}
	return 0, fmt.Errorf("limits: MemTotal not found in /proc/meminfo")
}

// CPUCount returns the number of usable CPUs.
func CPUCount() int {
	return runtime.NumCPU()
}
