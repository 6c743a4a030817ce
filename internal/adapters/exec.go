package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"ai-junction/internal/models"
)

const ExecModule = "exec"

const maxExecOutput = 1 << 20

// Operation names sent to external executables.
const (
	OpProcessInput     = "process_input"
	OpGenerateResponse = "generate_response"
	OpExecute          = "execute"
)

// execEnvelope is written to the child's stdin.
type execEnvelope struct {
	Operation string                 `json:"operation"`
	Request   models.AnalyzedRequest `json:"request"`
}

// ExecAdapter runs an external program per call. The program reads one JSON
// envelope on stdin and writes its result to stdout. JSON output is decoded,
// anything else is returned as trimmed text.
type ExecAdapter struct {
	command string
	args    []string
	dir     string
	env     []string
}

// NewExecAdapter reads command, args, dir and env from the connection config.
func NewExecAdapter(_ context.Context, d models.BackendDescriptor) (Adapter, error) {
	command := d.ConfigString("command")
	if command == "" {
		return nil, fmt.Errorf("exec module: connection_config.command is required")
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("exec module: %w", err)
	}

	args, err := stringList(d.ConnectionConfig["args"])
	if err != nil {
		return nil, fmt.Errorf("exec module: args: %w", err)
	}
	env, err := stringList(d.ConnectionConfig["env"])
	if err != nil {
		return nil, fmt.Errorf("exec module: env: %w", err)
	}

	return &ExecAdapter{
		command: command,
		args:    args,
		dir:     d.ConfigString("dir"),
		env:     env,
	}, nil
}

func (a *ExecAdapter) ProcessInput(ctx context.Context, req models.AnalyzedRequest) (any, error) {
	return a.run(ctx, OpProcessInput, req)
}

func (a *ExecAdapter) GenerateResponse(ctx context.Context, req models.AnalyzedRequest) (any, error) {
	return a.run(ctx, OpGenerateResponse, req)
}

func (a *ExecAdapter) Execute(ctx context.Context, req models.AnalyzedRequest) (any, error) {
	return a.run(ctx, OpExecute, req)
}

func (a *ExecAdapter) run(ctx context.Context, op string, req models.AnalyzedRequest) (any, error) {
	input, err := json.Marshal(execEnvelope{Operation: op, Request: req})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.command, a.args...)
	cmd.Dir = a.dir
	if len(a.env) > 0 {
		cmd.Env = append(cmd.Environ(), a.env...)
	}
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedBuffer{buf: &stdout, max: maxExecOutput}
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: maxExecOutput}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// ExitCode is -1 when the process was killed by a signal.
			return nil, &AdapterError{
				Module:    ExecModule,
				Status:    exitErr.ExitCode(),
				Temporary: exitErr.ExitCode() < 0,
				Err:       fmt.Errorf("%s exited with %d: %s", a.command, exitErr.ExitCode(), strings.TrimSpace(stderr.String())),
			}
		}
		return nil, &AdapterError{Module: ExecModule, Err: err}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	var decoded any
	if len(out) > 0 && json.Unmarshal(out, &decoded) == nil {
		return decoded, nil
	}
	return string(out), nil
}

func stringList(v any) ([]string, error) {
	switch vals := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for i, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d is %T, want string", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("got %T, want a list of strings", v)
	}
}

// limitedBuffer drops writes past max bytes.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedBuffer) Write(p []byte) (int, error) {
	if remaining := w.max - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			w.buf.Write(p[:remaining])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
