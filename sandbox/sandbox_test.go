package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "rlm-engine/errors"
	"rlm-engine/ipc"

	"go.uber.org/zap"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func newTestSandbox() *Sandbox {
	return New("python3", 10*time.Second, zap.NewNop())
}

func TestExecutePrintsOutput(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	res, err := s.Execute(context.Background(), []string{`print("hello")`}, "doc", State{}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(res.Output) != "hello" {
		t.Errorf("output = %q, want %q", res.Output, "hello")
	}
	if res.Terminated {
		t.Error("terminated = true, want false")
	}
}

func TestExecuteVariablesFlowAcrossBlocks(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	res, err := s.Execute(context.Background(), []string{"x = 21", "print(x * 2)"}, "", State{}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(res.Output) != "42" {
		t.Errorf("output = %q, want %q", res.Output, "42")
	}
}

func TestExecuteContextAvailable(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	res, err := s.Execute(context.Background(), []string{"print(context[:5])"}, "Hello world", State{}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(res.Output) != "Hello" {
		t.Errorf("output = %q, want %q", res.Output, "Hello")
	}
}

func TestExecuteStateRoundTrip(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	blocks := []string{
		`buffers["revenue"] = "$1.8M"`,
		`findings.append("Q3 grew 12%")`,
	}
	res, err := s.Execute(context.Background(), blocks, "", State{Buffers: map[string]any{"prior": "kept"}}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := res.State.Buffers["revenue"]; got != "$1.8M" {
		t.Errorf(`buffers["revenue"] = %v, want "$1.8M"`, got)
	}
	if got := res.State.Buffers["prior"]; got != "kept" {
		t.Errorf(`buffers["prior"] = %v, want "kept"`, got)
	}
	if len(res.State.Findings) != 1 || res.State.Findings[0] != "Q3 grew 12%" {
		t.Errorf("findings = %v, want one entry", res.State.Findings)
	}
}

func TestExecuteFinalSkipsRemainingBlocks(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	blocks := []string{
		`print("first")`,
		`FINAL("the answer")`,
		`print("never")`,
	}
	res, err := s.Execute(context.Background(), blocks, "", State{}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Terminated {
		t.Fatal("terminated = false, want true")
	}
	if res.FinalAnswer != "the answer" {
		t.Errorf("finalAnswer = %q, want %q", res.FinalAnswer, "the answer")
	}
	if !strings.Contains(res.Output, "first") {
		t.Errorf("output %q missing pre-termination print", res.Output)
	}
	if strings.Contains(res.Output, "never") {
		t.Errorf("output %q contains post-termination print", res.Output)
	}
}

func TestExecuteFinalCoercesNonString(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	res, err := s.Execute(context.Background(), []string{"FINAL(42)"}, "", State{}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Terminated || res.FinalAnswer != "42" {
		t.Errorf("got (%v, %q), want terminated with %q", res.Terminated, res.FinalAnswer, "42")
	}
}

func TestExecuteFinalVar(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	tests := []struct {
		name   string
		blocks []string
		want   string
	}{
		{
			name:   "resolves_user_variable",
			blocks: []string{`answer = "forty-two"`, `FINAL_VAR("answer")`},
			want:   "forty-two",
		},
		{
			name:   "resolves_buffer_key",
			blocks: []string{`buffers["total"] = "$1.8M"`, `FINAL_VAR("total")`},
			want:   "$1.8M",
		},
		{
			name:   "missing_name_terminates_with_error_text",
			blocks: []string{`FINAL_VAR("nope")`},
			want:   "ERROR: Variable 'nope' not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Execute(context.Background(), tt.blocks, "", State{}, 0)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !res.Terminated {
				t.Fatal("terminated = false, want true")
			}
			if res.FinalAnswer != tt.want {
				t.Errorf("finalAnswer = %q, want %q", res.FinalAnswer, tt.want)
			}
		})
	}
}

func TestExecuteErrorBecomesFeedback(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	blocks := []string{
		`buffers["before"] = "kept"`,
		`1 / 0`,
		`buffers["after"] = "never"`,
	}
	res, err := s.Execute(context.Background(), blocks, "", State{}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Terminated {
		t.Error("terminated = true, want false")
	}
	if !strings.Contains(res.Output, "STDERR:") || !strings.Contains(res.Output, "ZeroDivisionError") {
		t.Errorf("output = %q, want traceback under STDERR prefix", res.Output)
	}
	if got := res.State.Buffers["before"]; got != "kept" {
		t.Errorf(`buffers["before"] = %v, want "kept" (mutations before the error persist)`, got)
	}
	if _, ok := res.State.Buffers["after"]; ok {
		t.Error(`buffers["after"] present, want execution stopped at the error`)
	}
}

func TestExecuteSyntaxErrorRetainsState(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	prior := State{Buffers: map[string]any{"k": "v"}, Findings: []string{"f"}}
	res, err := s.Execute(context.Background(), []string{"def broken(:"}, "", prior, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(res.Output, "STDERR:") {
		t.Errorf("output = %q, want syntax error text", res.Output)
	}
	if got := res.State.Buffers["k"]; got != "v" {
		t.Errorf(`buffers["k"] = %v, want pre-execution state retained`, got)
	}
	if len(res.State.Findings) != 1 {
		t.Errorf("findings = %v, want pre-execution state retained", res.State.Findings)
	}
}

func TestExecuteTimeout(t *testing.T) {
	requirePython(t)
	s := New("python3", time.Second, zap.NewNop())

	res, err := s.Execute(context.Background(), []string{"import time\ntime.sleep(5)"}, "", State{}, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Terminated {
		t.Error("terminated = true, want false")
	}
	if res.Output != "Error: Code timed out after 1s" {
		t.Errorf("output = %q, want timeout message", res.Output)
	}
}

func TestExecuteTimeoutNotHeldOpenByChild(t *testing.T) {
	requirePython(t)
	s := New("python3", time.Second, zap.NewNop())

	// A spawned child inherits the output pipes and outlives the worker;
	// killing the worker alone must still unblock Execute near the budget.
	code := `import subprocess, time
subprocess.Popen(["python3", "-c", "import time; time.sleep(30)"])
time.sleep(30)`
	start := time.Now()
	res, err := s.Execute(context.Background(), []string{code}, "", State{}, 0)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "Error: Code timed out after 1s" {
		t.Errorf("output = %q, want timeout message", res.Output)
	}
	if elapsed > 8*time.Second {
		t.Errorf("Execute() took %v, want return near the 1s budget", elapsed)
	}
}

func TestExecuteReturnsWhenChildOutlivesWorker(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	// Worker exits cleanly but its child keeps the pipes open; the run must
	// still complete with the worker's output and no error.
	code := `import subprocess
subprocess.Popen(["python3", "-c", "import time; time.sleep(30)"])
print("done")`
	start := time.Now()
	res, err := s.Execute(context.Background(), []string{code}, "", State{}, 0)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(res.Output, "done") {
		t.Errorf("output = %q, want worker output despite lingering child", res.Output)
	}
	if res.Terminated {
		t.Error("terminated = true, want false")
	}
	if elapsed > 8*time.Second {
		t.Errorf("Execute() took %v, want prompt return after worker exit", elapsed)
	}
}

func TestExecuteShowVars(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	state := State{Buffers: map[string]any{"k": "v"}, Findings: []string{"f1"}}
	res, err := s.Execute(context.Background(), []string{"SHOW_VARS()"}, "", state, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(res.Output, "=== STORED VARIABLES ===") {
		t.Errorf("output = %q, want variable dump header", res.Output)
	}
	if !strings.Contains(res.Output, "buffers (1 keys)") {
		t.Errorf("output = %q, want buffers summary", res.Output)
	}
}

func TestExecuteSubQuery(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	var mu sync.Mutex
	var prompts []string
	var slices []*string
	srv := ipc.NewServer(zap.NewNop())
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		prompts = append(prompts, prompt)
		slices = append(slices, textSlice)
		return "answer to " + prompt, nil
	})
	if err != nil {
		t.Fatalf("ipc Start() error = %v", err)
	}
	defer srv.Stop()

	code := `print(sub_query("what?", context_slice="slice text"))
print(sub_query("again"))`
	res, err := s.Execute(context.Background(), []string{code}, "", State{}, port)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(res.Output, "answer to what?") || !strings.Contains(res.Output, "answer to again") {
		t.Errorf("output = %q, want both sub-query answers", res.Output)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(prompts) != 2 {
		t.Fatalf("callback saw %d prompts, want 2", len(prompts))
	}
	if slices[0] == nil || *slices[0] != "slice text" {
		t.Errorf("first textSlice = %v, want %q", slices[0], "slice text")
	}
	if slices[1] != nil {
		t.Errorf("second textSlice = %v, want nil", *slices[1])
	}
}

func TestExecuteSubQueryCallbackError(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	srv := ipc.NewServer(zap.NewNop())
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		return "", errors.New("budget exhausted")
	})
	if err != nil {
		t.Fatalf("ipc Start() error = %v", err)
	}
	defer srv.Stop()

	res, err := s.Execute(context.Background(), []string{`print(sub_query("q"))`}, "", State{}, port)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(res.Output, "ERROR: budget exhausted") {
		t.Errorf("output = %q, want rendered callback error", res.Output)
	}
	if res.Terminated {
		t.Error("terminated = true, want false")
	}
}

func TestExecuteMissingBinary(t *testing.T) {
	s := New("rlm-no-such-python", time.Second, zap.NewNop())
	_, err := s.Execute(context.Background(), []string{"print(1)"}, "", State{}, 0)
	if err == nil {
		t.Fatal("Execute() error = nil, want spawn failure")
	}
	if !errors.Is(err, apperrors.ErrSandboxExecution) {
		t.Errorf("Execute() error = %v, want ErrSandboxExecution in chain", err)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	requirePython(t)
	s := newTestSandbox()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Execute(ctx, []string{"print(1)"}, "", State{}, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestBuildWorkerProgramQuotesPaths(t *testing.T) {
	program := buildWorkerProgram(`/tmp/a "b".txt`, "/tmp/state.json", "/tmp/term.json", 4242, "print(1)")
	if !strings.Contains(program, `"/tmp/a \"b\".txt"`) {
		t.Errorf("program does not quote context path:\n%s", program)
	}
	if !strings.Contains(program, "4242") {
		t.Error("program missing callback port")
	}
	if !strings.Contains(program, "    print(1)") {
		t.Error("user code not indented into try block")
	}
	if strings.Contains(program, "%!") {
		t.Errorf("template interpolation left artifacts:\n%s", program)
	}
}
