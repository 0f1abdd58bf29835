package ner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// execRunner shells out to the recognizer binary. The binary takes the
// grammar/config bundle as its argument, reads text on stdin and writes the
// extraction result to stdout.
type execRunner struct{}

func (execRunner) run(ctx context.Context, cfg Config, input string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, cfg.BinaryPath, cfg.ConfigPath)
	cmd.Dir = cfg.WorkDir
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &ToolError{Stage: "start", Err: err}
	}
	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = errors.New(err.Error() + ": " + msg)
		}
		return nil, &ToolError{Stage: "run", Err: err}
	}
	return stdout.Bytes(), nil
}
