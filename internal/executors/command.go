package executors

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// CommandRequest describes a single shell invocation (§4.3's Command
// executor config).
type CommandRequest struct {
	Command      string
	Cwd          string
	Env          map[string]string
	Timeout      time.Duration
	ThrowOnError bool
	Stdin        string
}

// CommandResult is the outcome of a shell invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner executes a shell command. Production wiring uses
// osExecRunner (os/exec); tests substitute a stub to avoid forking
// processes from the test binary.
type CommandRunner interface {
	Run(ctx context.Context, req CommandRequest) (CommandResult, error)
}

// osExecRunner is the default CommandRunner, shelling out via os/exec with
// the executor-enforced timeout from §4.3/§5.
type osExecRunner struct{}

// NewOSCommandRunner returns the default os/exec-backed CommandRunner.
func NewOSCommandRunner() CommandRunner { return osExecRunner{} }

func (osExecRunner) Run(ctx context.Context, req CommandRequest) (CommandResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", req.Command)
	if req.Cwd != "" {
		cmd.Dir = req.Cwd
	}
	if req.Stdin != "" {
		cmd.Stdin = bytes.NewBufferString(req.Stdin)
	}
	if len(req.Env) > 0 {
		env := make([]string, 0, len(req.Env))
		for k, v := range req.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = append(cmd.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if runCtx.Err() != nil {
			return CommandResult{}, apperrors.Wrap(apperrors.KindCommandTimeout, "command", runCtx.Err())
		}
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return CommandResult{}, apperrors.Wrap(apperrors.KindInternalError, "command", err)
		}
	}

	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
	if req.ThrowOnError && exitCode != 0 {
		return result, apperrors.Errorf(apperrors.KindInternalError, "command", "command exited %d: %s", exitCode, stderr.String())
	}
	return result, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// commandNode implements the Command node kind.
type commandNode struct {
	runner CommandRunner
}

// NewCommand builds the Command executor.
func NewCommand(runner CommandRunner) Executor { return &commandNode{runner: runner} }

func (c *commandNode) Kind() registry.NodeKind { return registry.KindCommand }

func (c *commandNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	req, err := commandRequestFromConfig(config, inputs)
	if err != nil {
		return Result{}, err
	}
	ec.emit("activity:command:start", map[string]any{"command": req.Command})
	res, err := c.runner.Run(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Outputs: map[string]any{
		"stdout":   res.Stdout,
		"stderr":   res.Stderr,
		"exitCode": res.ExitCode,
	}}, nil
}

func commandRequestFromConfig(config map[string]any, inputs Inputs) (CommandRequest, error) {
	command, _ := config["command"].(string)
	if command == "" {
		return CommandRequest{}, apperrors.New(apperrors.KindValidation, "command", "missing command")
	}
	req := CommandRequest{Command: command}
	req.Cwd, _ = config["cwd"].(string)
	if stdin, ok := inputs["stdin"].(string); ok {
		req.Stdin = stdin
	}
	if env, ok := config["env"].(map[string]any); ok {
		req.Env = make(map[string]string, len(env))
		for k, v := range env {
			if s, ok := v.(string); ok {
				req.Env[k] = s
			}
		}
	}
	if secs, ok := config["timeout"].(float64); ok && secs > 0 {
		req.Timeout = time.Duration(secs) * time.Second
	}
	if throw, ok := config["throwOnError"].(bool); ok {
		req.ThrowOnError = throw
	}
	return req, nil
}

// slashCommandNode implements the Slash-Command node kind: string-routed
// dispatch to an internal command registry, conceptually identical to
// Command (§4.3).
type slashCommandNode struct {
	runner CommandRunner
}

// NewSlashCommand builds the Slash-Command executor. It reuses the same
// CommandRunner as Command, rendering the named command plus its arguments
// into a single shell invocation.
func NewSlashCommand(runner CommandRunner) Executor { return &slashCommandNode{runner: runner} }

func (s *slashCommandNode) Kind() registry.NodeKind { return registry.KindSlashCommand }

func (s *slashCommandNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	name, _ := config["name"].(string)
	if name == "" {
		return Result{}, apperrors.New(apperrors.KindValidation, "slash-command", "missing name")
	}
	args, _ := inputs["args"].(map[string]any)
	req := CommandRequest{Command: renderSlashCommand(name, args)}
	if secs, ok := config["timeout"].(float64); ok && secs > 0 {
		req.Timeout = time.Duration(secs) * time.Second
	}
	ec.emit("activity:slash-command:start", map[string]any{"name": name})
	res, err := s.runner.Run(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Outputs: map[string]any{
		"stdout":   res.Stdout,
		"stderr":   res.Stderr,
		"exitCode": res.ExitCode,
	}}, nil
}

func renderSlashCommand(name string, args map[string]any) string {
	cmd := name
	for k, v := range args {
		cmd += " --" + k + "=" + toShellArg(v)
	}
	return cmd
}

func toShellArg(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + t + "'"
	default:
		return "'" + jsonString(v) + "'"
	}
}
