package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency mouthsync relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Commands may be bare names resolved through PATH or explicit paths. An
// explicit path that exists but lacks the execute bit is reported as fixable,
// since EnsureExecutable repairs it before each run.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			if info, statErr := os.Stat(cmd); statErr == nil && info.Mode().IsRegular() {
				status.Available = true
				status.Detail = "not executable; permissions are fixed at run start"
				results = append(results, status)
				continue
			}
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// ExecutableMode is applied to the analyzer before each run. Release archives
// are often unpacked without the execute bit.
const ExecutableMode os.FileMode = 0o744

// EnsureExecutable verifies path names a regular file and marks it runnable.
func EnsureExecutable(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("executable path not configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat executable: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("executable %q is not a regular file", path)
	}
	// Already runnable by the owner; system installs may not be ours to chmod.
	if info.Mode().Perm()&0o100 != 0 {
		return nil
	}
	if err := os.Chmod(path, ExecutableMode); err != nil {
		return fmt.Errorf("mark executable: %w", err)
	}
	return nil
}
