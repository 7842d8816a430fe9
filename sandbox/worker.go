package sandbox

import (
	"fmt"
	"strconv"
	"strings"
)

// workerTemplate is the program handed to the worker interpreter with -c.
// It loads the document and shared state from temp files, exposes the REPL
// helpers (sub_query, SHOW_VARS, FINAL, FINAL_VAR), runs the model's code
// inside one try block so FINAL unwinds past any remaining blocks, and
// writes state back even when the code raised. Interpolations: 1 context
// path, 2 state path, 3 termination path, 4 callback port, 5 indented code.
const workerTemplate = `import json, sys, socket, struct, traceback

with open(%[1]s, 'r') as f:
    context = f.read()

with open(%[2]s, 'r') as f:
    _state = json.load(f)
buffers = _state['buffers']
findings = _state['findings']

def sub_query(prompt, context_slice=None):
    """Ask a focused sub-model about a slice of the document."""
    request = {"prompt": str(prompt), "textSlice": context_slice}
    req_bytes = json.dumps(request).encode("utf-8")
    sock = socket.create_connection(("127.0.0.1", %[4]d), timeout=120)
    try:
        sock.sendall(struct.pack("!I", len(req_bytes)))
        sock.sendall(req_bytes)
        length_bytes = b""
        while len(length_bytes) < 4:
            chunk = sock.recv(4 - len(length_bytes))
            if not chunk:
                return "ERROR: Connection closed by server"
            length_bytes += chunk
        msg_len = struct.unpack("!I", length_bytes)[0]
        data = b""
        while len(data) < msg_len:
            chunk = sock.recv(min(msg_len - len(data), 65536))
            if not chunk:
                break
            data += chunk
        response = json.loads(data.decode("utf-8"))
        if "error" in response:
            return f"ERROR: {response['error']}"
        return response.get("result", "")
    finally:
        sock.close()

def SHOW_VARS():
    """Print all stored variables."""
    print("=== STORED VARIABLES ===")
    print(f"buffers ({len(buffers)} keys): {list(buffers.keys())}")
    print(f"findings ({len(findings)} items)")
    for k, v in buffers.items():
        preview = str(v)[:200]
        print(f"  buffers[{k!r}] = {preview}")
    for i, f in enumerate(findings[:10]):
        print(f"  findings[{i}] = {str(f)[:200]}")
    if len(findings) > 10:
        print(f"  ... and {len(findings) - 10} more findings")

class _Termination(Exception):
    def __init__(self, answer):
        self.answer = answer

def FINAL(answer):
    """Stop the loop and return this answer."""
    raise _Termination(str(answer))

def FINAL_VAR(var_name):
    """Stop the loop and return the value of a named variable."""
    _vars = {k: v for k, v in globals().items() if not k.startswith('_')}
    if var_name in _vars:
        raise _Termination(str(_vars[var_name]))
    if var_name in buffers:
        raise _Termination(str(buffers[var_name]))
    raise _Termination(f"ERROR: Variable {var_name!r} not found")

try:
%[5]s
except _Termination as t:
    with open(%[3]s, 'w') as f:
        json.dump({"terminated": True, "final_answer": t.answer}, f)
except Exception:
    traceback.print_exc(file=sys.stderr)

with open(%[2]s, 'w') as f:
    json.dump({"buffers": buffers, "findings": [str(x) for x in findings]}, f, default=str)
`

func buildWorkerProgram(ctxPath, statePath, termPath string, port int, code string) string {
	return fmt.Sprintf(workerTemplate,
		strconv.Quote(ctxPath),
		strconv.Quote(statePath),
		strconv.Quote(termPath),
		port,
		indent(code))
}

// indent shifts every line into the wrapper's try block.
func indent(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
