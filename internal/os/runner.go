// Package os provides OS-level operations for the wallet CLI.
package os

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// ansiClear homes the cursor and clears the screen.
const ansiClear = "\033[H\033[2J"

// CommandResult contains the result of running a command
type CommandResult struct {
	// Command is the command that was run (may be redacted)
	Command string
	// ExitCode is the exit code of the command
	ExitCode int
	// Stdout is the (possibly redacted) stdout output
	Stdout string
	// Stderr is the (possibly redacted) stderr output
	Stderr string
	// Success indicates if the command succeeded (exit code 0)
	Success bool
	// Duration is how long the command took to run
	Duration time.Duration
	// Error contains any error that occurred
	Error error
}

// Runner executes commands with safety measures
type Runner struct {
	// DryRun if true, only records commands without executing
	DryRun bool
	// Timeout for command execution (default: 5s)
	Timeout time.Duration
	// RedactPatterns are regex patterns to redact from output
	RedactPatterns []*regexp.Regexp
	// Stdout receives command output as it is produced instead of capturing it
	Stdout io.Writer
}

// DefaultRedactPatterns matches secrets that must never reach a log file.
func DefaultRedactPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Redact mnemonics (12 or 24 words)
		regexp.MustCompile(`(?i)(mnemonic|seed)[:=\s]+[a-z\s]{30,}`),
		// Redact private keys (hex)
		regexp.MustCompile(`(?i)(private[_\s]?key|priv[_\s]?key)[:=\s]*[a-fA-F0-9]{64}`),
		// Redact keystore and backup passwords
		regexp.MustCompile(`(?i)password[:=\s]+\S+`),
	}
}

// DefaultRunner creates a runner with sensible defaults
func DefaultRunner() *Runner {
	return &Runner{
		Timeout:        5 * time.Second,
		RedactPatterns: DefaultRedactPatterns(),
	}
}

// NewRunner creates a new Runner with the specified dry-run setting
func NewRunner(dryRun bool) *Runner {
	r := DefaultRunner()
	r.DryRun = dryRun
	return r
}

// Redact applies redaction patterns to the given text
func (r *Runner) Redact(text string) string {
	result := text
	for _, pattern := range r.RedactPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// Run executes a command and returns the result
func (r *Runner) Run(ctx context.Context, binary string, args []string) *CommandResult {
	result := &CommandResult{
		Command: r.Redact(strings.TrimSpace(binary + " " + strings.Join(args, " "))),
	}

	if r.DryRun {
		result.Success = true
		result.Stdout = "(dry-run: command not executed)"
		return result
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	if r.Stdout != nil {
		cmd.Stdout = r.Stdout
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)

	result.Stdout = r.Redact(stdout.String())
	result.Stderr = r.Redact(stderr.String())

	if err != nil {
		result.Error = err
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Success = false
	} else {
		result.ExitCode = 0
		result.Success = true
	}

	return result
}

// ClearCommand returns the platform screen-clear command.
func ClearCommand(goos string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/c", "cls"}
	}
	return "clear", nil
}

// ClearScreen clears the terminal through the platform command, falling back
// to ANSI escapes when the command is unavailable.
func (r *Runner) ClearScreen(ctx context.Context, out io.Writer) error {
	binary, args := ClearCommand(runtime.GOOS)

	runner := *r
	runner.Stdout = out
	result := runner.Run(ctx, binary, args)
	if result.Success {
		return nil
	}

	if _, err := io.WriteString(out, ansiClear); err != nil {
		return fmt.Errorf("failed to clear screen: %w", err)
	}
	return nil
}
