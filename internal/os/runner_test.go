package os

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefaultRunner(t *testing.T) {
	r := DefaultRunner()

	if r.DryRun {
		t.Error("DefaultRunner() should execute commands")
	}

	if r.Timeout != 5*time.Second {
		t.Errorf("DefaultRunner() Timeout = %v, want 5s", r.Timeout)
	}

	if len(r.RedactPatterns) == 0 {
		t.Error("DefaultRunner() should have redaction patterns")
	}
}

func TestNewRunner(t *testing.T) {
	if r := NewRunner(true); !r.DryRun {
		t.Error("NewRunner(true) should have DryRun=true")
	}
	if r := NewRunner(false); r.DryRun {
		t.Error("NewRunner(false) should have DryRun=false")
	}
}

func TestRunner_Redact(t *testing.T) {
	r := DefaultRunner()

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "mnemonic",
			input: "mnemonic: abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		},
		{
			name:  "private key",
			input: "private_key: 0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		},
		{
			name:  "password",
			input: "password=mysecretpassword123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Redact(tt.input)
			if !strings.Contains(result, "[REDACTED]") {
				t.Errorf("Redact() = %q, want redaction marker", result)
			}
			if strings.Contains(result, "abandon") || strings.Contains(result, "mysecretpassword") || strings.Contains(result, "0123456789abcdef0123") {
				t.Errorf("Redact() failed to redact sensitive data: %q", result)
			}
		})
	}

	normal := "synced account alice with gap limit 10"
	if got := r.Redact(normal); got != normal {
		t.Errorf("Redact() should not modify normal text: got %q", got)
	}
}

func TestRunner_Run_DryRun(t *testing.T) {
	r := NewRunner(true)

	result := r.Run(context.Background(), "clear", nil)

	if !result.Success {
		t.Error("Run() dry-run should be successful")
	}
	if !strings.Contains(result.Stdout, "dry-run") {
		t.Errorf("Run() dry-run output should mention dry-run: %q", result.Stdout)
	}
	if result.Command != "clear" {
		t.Errorf("Run() Command = %q, want clear", result.Command)
	}
}

func TestRunner_Run_ActualCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("echo is a shell builtin on windows")
	}
	r := NewRunner(false)

	result := r.Run(context.Background(), "echo", []string{"hello", "world"})

	if !result.Success {
		t.Errorf("Run() echo should succeed: %v", result.Error)
	}
	if !strings.Contains(result.Stdout, "hello world") {
		t.Errorf("Run() output = %q, want to contain 'hello world'", result.Stdout)
	}
}

func TestRunner_Run_StreamsToWriter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("echo is a shell builtin on windows")
	}
	var out bytes.Buffer
	r := NewRunner(false)
	r.Stdout = &out

	result := r.Run(context.Background(), "echo", []string{"streamed"})

	if !result.Success {
		t.Fatalf("Run() failed: %v", result.Error)
	}
	if !strings.Contains(out.String(), "streamed") {
		t.Errorf("Stdout writer got %q", out.String())
	}
	if result.Stdout != "" {
		t.Errorf("streamed output should not be captured, got %q", result.Stdout)
	}
}

func TestRunner_Run_NonExistentCommand(t *testing.T) {
	r := NewRunner(false)

	result := r.Run(context.Background(), "nonexistent_command_12345", nil)

	if result.Success {
		t.Error("Run() nonexistent command should fail")
	}
	if result.Error == nil || result.ExitCode != -1 {
		t.Errorf("Run() nonexistent command = %+v", result)
	}
}

func TestClearCommand(t *testing.T) {
	bin, args := ClearCommand("windows")
	if bin != "cmd" || len(args) != 2 || args[1] != "cls" {
		t.Errorf("ClearCommand(windows) = %s %v", bin, args)
	}

	bin, args = ClearCommand("linux")
	if bin != "clear" || len(args) != 0 {
		t.Errorf("ClearCommand(linux) = %s %v", bin, args)
	}
}

func TestClearScreen_DryRun(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(true)

	if err := r.ClearScreen(context.Background(), &out); err != nil {
		t.Fatalf("ClearScreen() failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("dry-run ClearScreen() wrote %q", out.String())
	}
}

func TestClearScreen_Fallback(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(false)
	r.Timeout = time.Nanosecond

	if err := r.ClearScreen(context.Background(), &out); err != nil {
		t.Fatalf("ClearScreen() failed: %v", err)
	}
	if !strings.HasSuffix(out.String(), ansiClear) {
		t.Errorf("ClearScreen() should fall back to ANSI escapes, got %q", out.String())
	}
}
