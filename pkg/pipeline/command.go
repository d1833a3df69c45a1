package pipeline

import (
	"context"
	"io"
	"os/exec"
	"slices"
	"strings"
)

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string
	// Env is appended to the environment of the current process.
	Env []string
	// Stdout and Stderr receive the process output; nil discards it.
	Stdout io.Writer
	Stderr io.Writer
	// Secrets are redacted from String.
	Secrets []string
}

// Argv returns the full argument vector, program name first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command line for logging, with any secret replaced by "****".
func (c Command) String() string {
	line := strings.Join(c.Argv(), " ")
	for _, s := range c.Secrets {
		if s == "" {
			continue
		}
		line = strings.ReplaceAll(line, s, "****")
	}
	return line
}

func (c Command) cmd(ctx context.Context, environ []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = slices.Concat(environ, c.Env)
	}
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd
}
