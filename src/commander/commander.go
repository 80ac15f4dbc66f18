// Package commander runs the external network tools (lshw, iw, ip, nmcli, ping)
// the sensor depends on and hands their raw output back to the parsers.
package commander

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single tool invocation when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var logger = logrus.WithField("module", "commander")

// Result holds what a finished tool invocation produced. A non-zero ExitCode
// is a normal result, not an error.
type Result struct {
	Command  string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports whether the tool exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Output returns stdout as trimmed text.
func (r *Result) Output() string {
	return strings.TrimSpace(string(r.Stdout))
}

// Combined returns stdout and stderr joined, trimmed. Used when a tool failure
// has to be reported back with whatever the tool printed.
func (r *Result) Combined() string {
	return strings.TrimSpace(string(r.Stdout) + "\n" + string(r.Stderr))
}

// LaunchError is returned when the tool could not be started at all.
type LaunchError struct {
	Command string
	Cause   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Command, e.Cause)
}

func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// IsLaunchError reports whether err (or anything it wraps) is a LaunchError.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}

// Executor runs one external program and waits for it to exit.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecCommander is the os/exec backed Executor.
type ExecCommander struct {
	Timeout time.Duration
	UseSudo bool
}

// NewExecCommander creates an ExecCommander. A zero timeout selects DefaultTimeout.
func NewExecCommander(timeout time.Duration, useSudo bool) *ExecCommander {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecCommander{Timeout: timeout, UseSudo: useSudo}
}

// Execute runs name with args under the configured timeout. A process killed
// by the timeout comes back as a Result with ExitCode -1.
func (c *ExecCommander) Execute(ctx context.Context, name string, args ...string) (*Result, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append([]string{name}, args...)
	if c.UseSudo {
		argv = append([]string{"sudo", "-n"}, argv...)
	}
	commandLine := strings.Join(argv, " ")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Command:  commandLine,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			result.ExitCode = -1
			result.Stderr = append(result.Stderr, []byte(ctx.Err().Error())...)
			logger.WithFields(logrus.Fields{
				"command": commandLine,
				"timeout": timeout,
			}).Warn("Command timed out")
			return result, nil
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			logger.WithError(err).WithField("command", commandLine).Error("Failed to launch command")
			return nil, &LaunchError{Command: commandLine, Cause: err}
		}
	}

	logger.WithFields(logrus.Fields{
		"command":   commandLine,
		"exit_code": result.ExitCode,
		"duration":  result.Duration,
	}).Debug("Command finished")
	return result, nil
}
