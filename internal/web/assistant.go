package web

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// assistantTimeout bounds a single text-generator invocation
const assistantTimeout = 2 * time.Minute

// Assistant invokes an external command-line text generator: the
// conversation text goes to stdin, the response comes back on stdout.
// The generator itself is an external collaborator; modelviz only frames
// the call.
type Assistant struct {
	command string
}

// NewAssistant wraps a configured command. Returns nil when no command is
// configured, which disables the endpoint.
func NewAssistant(command string) *Assistant {
	if command == "" {
		return nil
	}
	return &Assistant{command: command}
}

// Run executes the generator with the given input on stdin and returns
// its trimmed stdout
func (a *Assistant) Run(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, assistantTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.command)
	cmd.Stdin = strings.NewReader(input)
	cmd.Env = append(os.Environ(), "PATH="+expandedPath())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("assistant command failed (exit %d): %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("assistant command %q: %w", a.command, err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// expandedPath prepends common user bin directories so casually installed
// generators are found
func expandedPath() string {
	parts := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		parts = append(parts, filepath.Join(home, ".local", "bin"), filepath.Join(home, "bin"))
	}
	parts = append(parts, "/usr/local/bin")
	if path := os.Getenv("PATH"); path != "" {
		parts = append(parts, path)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}
