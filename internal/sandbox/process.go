package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/questions"
)

// Process runs code with the toolchains installed on the host. It does not
// isolate anything and is meant for local runs of trusted code, such as the
// simulate command.
type Process struct {
	timeout    time.Duration
	maxOutput  int
	toolchains map[string]Toolchain
	logger     *zap.Logger
}

// NewProcess creates a host process runner.
func NewProcess(timeout time.Duration, logger *zap.Logger) *Process {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Process{
		timeout:    timeout,
		maxOutput:  DefaultConfig().MaxOutput,
		toolchains: DefaultToolchains(),
		logger:     logger,
	}
}

func (p *Process) Execute(ctx context.Context, code, language, input string) (string, error) {
	lang, tc, err := resolve(p.toolchains, language)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "gatekeep-run-")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", tc.script())
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GATEKEEP_SOURCE="+code, "GATEKEEP_STDIN="+input)
	if lang == questions.LangGo {
		cmd.Env = append(cmd.Env, "GOCACHE="+filepath.Join(dir, ".cache"))
	}
	cmd.WaitDelay = time.Second
	killProcessGroup(cmd)

	stdout := &limitedBuffer{max: p.maxOutput}
	stderr := &limitedBuffer{max: p.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	timedOut := runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	exitCode := 0
	if err != nil && !timedOut {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("run %s program: %w", lang, err)
		}
		exitCode = exitErr.ExitCode()
	}

	p.logger.Debug("process run finished",
		zap.String("language", lang),
		zap.Int("exit_code", exitCode),
		zap.Bool("timed_out", timedOut))
	return candidateOutput(stdout.String(), stderr.String(), exitCode, timedOut), nil
}
