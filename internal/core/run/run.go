// Package run wraps subprocess execution behind a small capability
// interface so the engine can be tested with deterministic fakes instead
// of real binaries (ffmpeg, yt-dlp, whisper.cpp).
package run

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result holds the captured output of a finished subprocess.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes an external command. The context bounds the process
// lifetime; expiry kills it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands via os/exec, one process per call.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// LookPath reports whether a binary is resolvable on PATH (or is an
// explicit path to an existing executable).
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
