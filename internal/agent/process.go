package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// agentBinary is the CLI invoked for the process (and sandboxed-vm)
// transport variants.
const agentBinary = "claude"

// processTransport spawns agentBinary as a subprocess per turn, parsing
// its stream-json stdout incrementally.
type processTransport struct {
	completionSignal string
}

func (p *processTransport) Run(ctx context.Context, req Request) (*Result, error) {
	return runProcessTurn(ctx, agentBinary, nil, req, p.completionSignal)
}

// sandboxedTransport wraps the same subprocess invocation inside a
// configured wrapper command, e.g. a container runtime invocation.
type sandboxedTransport struct {
	processTransport
	sandboxCommand string
}

func (s *sandboxedTransport) Run(ctx context.Context, req Request) (*Result, error) {
	parts := strings.Fields(s.sandboxCommand)
	if len(parts) == 0 {
		return nil, fmt.Errorf("agent: empty sandbox_command")
	}
	wrapperArgs := append(append([]string{}, parts[1:]...), agentBinary)
	return runProcessTurn(ctx, parts[0], wrapperArgs, req, s.completionSignal)
}

func runProcessTurn(ctx context.Context, bin string, wrapperArgs []string, req Request, completionSignal string) (*Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	args := append([]string{}, wrapperArgs...)
	args = append(args, buildAgentArgs(req, sessionID)...)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = req.WorkDir
	cmd.Env = buildProcessEnv(req.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("agent: starting %s: %w", bin, err)
	}

	stream, streamErr := parseStream(ctx, stdout)

	code, waitErr := exitCode(cmd.Wait())
	if waitErr != nil {
		return nil, waitErr
	}
	if streamErr != nil && ctx.Err() == nil {
		return nil, streamErr
	}

	completed := completionSignal == "" || strings.Contains(stream.Text, completionSignal)
	return &Result{
		ExitCode:  code,
		Output:    stream.Text,
		SessionID: sessionID,
		Completed: completed,
	}, nil
}

func buildAgentArgs(req Request, sessionID string) []string {
	args := []string{
		"-p", req.Prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
	}
	if req.IsFirstTurn {
		args = append(args, "--session-id", sessionID)
	} else {
		args = append(args, "--resume", sessionID)
	}
	if len(req.AllowTools) > 0 {
		args = append(args, "--allowedTools")
		args = append(args, req.AllowTools...)
	}
	return args
}

// buildProcessEnv inherits the current environment, strips CLAUDECODE
// (the subprocess must not believe it is itself running inside an agent
// session), and layers the request's agent.env on top.
func buildProcessEnv(extra map[string]string) []string {
	var out []string
	for _, e := range os.Environ() {
		key := strings.SplitN(e, "=", 2)[0]
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		out = append(out, e)
	}
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}
