package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Verdict is the outcome of verifying generated code.
type Verdict struct {
	Passed bool
	// Output holds combined stdout and stderr; on failure it is the bug
	// report handed back to the model.
	Output string
}

// CommandVerifier runs a shell command (for example a build) in the
// directory holding the generated code. A non-zero exit is a failed verdict.
type CommandVerifier struct {
	command string
	workDir string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCommandVerifier creates a CommandVerifier.
// workDir is the working directory for the command ("" = process cwd).
// timeout is the max duration per run (0 = 2m default).
func NewCommandVerifier(command, workDir string, timeout time.Duration, logger zerolog.Logger) *CommandVerifier {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &CommandVerifier{
		command: command,
		workDir: workDir,
		timeout: timeout,
		logger:  logger.With().Str("component", "verifier").Logger(),
	}
}

// Verify runs the command. The code argument is already on disk at the
// workspace output path; it is only used for logging.
func (v *CommandVerifier) Verify(ctx context.Context, code string) (Verdict, error) {
	if strings.TrimSpace(v.command) == "" {
		return Verdict{}, errors.New("verifier: command is required")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", v.command)
	cmd.Dir = v.workDir
	cmd.WaitDelay = time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	v.logger.Info().Str("command", v.command).Str("dir", v.workDir).Int("code_bytes", len(code)).Msg("verifying generated code")

	err := cmd.Run()
	output := strings.TrimSpace(buf.String())

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return Verdict{Passed: false, Output: output}, nil
		}
		if ctx.Err() != nil {
			return Verdict{Passed: false, Output: fmt.Sprintf("verification timed out after %s\n%s", v.timeout, output)}, nil
		}
		return Verdict{}, fmt.Errorf("verifier: run %q: %w", v.command, err)
	}
	return Verdict{Passed: true, Output: output}, nil
}
