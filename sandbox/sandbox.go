// Package sandbox runs model-written Python in a throwaway worker process.
// Each batch of code blocks gets one fresh interpreter; the document text and
// shared state cross the process boundary as temp files, never as memory.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "rlm-engine/errors"
	"rlm-engine/metrics"
)

// pipeGrace bounds how long Wait may hold the output pipes open after the
// worker is gone. Children spawned by the code inherit the pipes, and without
// this a stray child would keep Execute blocked past the timeout.
const pipeGrace = 2 * time.Second

// State is the mutable session state a worker may read and update. It is
// serialized into the worker and read back after the run.
type State struct {
	Buffers  map[string]any `json:"buffers"`
	Findings []string       `json:"findings"`
}

// Result is the outcome of one batch execution. When Terminated is true the
// code called FINAL or FINAL_VAR and FinalAnswer holds the answer; blocks
// after the call never ran.
type Result struct {
	Output      string
	Terminated  bool
	FinalAnswer string
	State       State
}

type Sandbox struct {
	pythonBinary string
	timeout      time.Duration
	logger       *zap.Logger
}

func New(pythonBinary string, timeout time.Duration, logger *zap.Logger) *Sandbox {
	if pythonBinary == "" {
		pythonBinary = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sandbox{
		pythonBinary: pythonBinary,
		timeout:      timeout,
		logger:       logger,
	}
}

// Execute runs blocks in order inside a single fresh interpreter so variables
// defined in one block are visible in the next. Exceptions raised by the code
// come back as output text, not as an error; a timeout kills the worker and
// reports itself the same way. The returned error is reserved for failures of
// the sandbox itself (temp files, spawn, canceled context).
func (s *Sandbox) Execute(ctx context.Context, blocks []string, documentText string, state State, callbackPort int) (Result, error) {
	if state.Buffers == nil {
		state.Buffers = map[string]any{}
	}
	if state.Findings == nil {
		state.Findings = []string{}
	}
	res := Result{State: state}

	ctxPath, err := writeTempFile("rlm-context-*.txt", documentText)
	if err != nil {
		return res, fmt.Errorf("write context file: %w", err)
	}
	defer os.Remove(ctxPath)

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return res, fmt.Errorf("marshal state: %w", err)
	}
	statePath, err := writeTempFile("rlm-state-*.json", string(stateJSON))
	if err != nil {
		return res, fmt.Errorf("write state file: %w", err)
	}
	defer os.Remove(statePath)

	termPath, err := writeTempFile("rlm-term-*.json", `{"terminated": false}`)
	if err != nil {
		return res, fmt.Errorf("write termination file: %w", err)
	}
	defer os.Remove(termPath)

	program := buildWorkerProgram(ctxPath, statePath, termPath, callbackPort, strings.Join(blocks, "\n\n"))

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, s.pythonBinary, "-c", program)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeGrace

	metrics.SandboxExecutionsTotal.Inc()
	runErr := cmd.Run()
	if runErr != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			metrics.SandboxTimeoutsTotal.Inc()
			res.Output = fmt.Sprintf("Error: Code timed out after %ds", int(s.timeout.Seconds()))
			return res, nil
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) && !errors.Is(runErr, exec.ErrWaitDelay) {
			return res, apperrors.WrapErrorf(apperrors.ErrSandboxExecution, "run worker: %v", runErr)
		}
		// Non-zero exit is not load-bearing, and neither are pipes abandoned
		// to a leftover child: the artifacts on disk decide what happened,
		// and stderr becomes feedback below.
	}

	var parts []string
	if stdout.Len() > 0 {
		parts = append(parts, stdout.String())
	}
	if stderr.Len() > 0 {
		parts = append(parts, "STDERR: "+stderr.String())
	}
	res.Output = strings.Join(parts, "\n")

	// A worker that crashed before the state write leaves the file with its
	// pre-execution content, so this read can never lose state.
	if raw, err := os.ReadFile(statePath); err == nil {
		var updated State
		if err := json.Unmarshal(raw, &updated); err == nil {
			if updated.Buffers != nil {
				res.State.Buffers = updated.Buffers
			}
			if updated.Findings != nil {
				res.State.Findings = updated.Findings
			}
		} else {
			s.logger.Warn("Worker state unreadable, keeping prior state", zap.Error(err))
		}
	}

	if raw, err := os.ReadFile(termPath); err == nil {
		var term struct {
			Terminated  bool    `json:"terminated"`
			FinalAnswer *string `json:"final_answer"`
		}
		if err := json.Unmarshal(raw, &term); err == nil && term.Terminated {
			res.Terminated = true
			if term.FinalAnswer != nil {
				res.FinalAnswer = *term.FinalAnswer
			}
		}
	}

	return res, nil
}

func writeTempFile(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
