package task

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner starts external programs.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs programs found on PATH.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Run executes name with args and waits for it. The error carries the
// program's stderr.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		c.Env = append(c.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

type command struct {
	name string
	args []string
}

func cmd(name string, args ...string) command {
	return command{name: name, args: args}
}

func (c command) run(ctx context.Context, r Runner) error {
	return r.Run(ctx, c.name, c.args...)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
