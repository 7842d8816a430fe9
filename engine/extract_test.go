package engine

import "testing"

func TestExtractCodeBlocks(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "single repl block",
			response: "Let me look.\n```repl\nprint(len(context))\n```\nDone.",
			want:     []string{"print(len(context))"},
		},
		{
			name: "multiple blocks in order",
			response: "```repl\nfirst = 1\n```\ntext between\n```repl\nsecond = first + 1\n```",
			want: []string{"first = 1", "second = first + 1"},
		},
		{
			name:     "python fence is illustrative",
			response: "Here is how it would look:\n```python\nprint('never runs')\n```",
			want:     nil,
		},
		{
			name: "mixed fences keep only repl",
			response: "```python\nskip = 1\n```\n```repl\nkeep = 1\n```\n```\nanon = 1\n```",
			want: []string{"keep = 1"},
		},
		{
			name:     "no code at all",
			response: "I think the answer is probably on page 4.",
			want:     nil,
		},
		{
			name:     "empty response",
			response: "",
			want:     nil,
		},
		{
			name:     "multiline block preserved",
			response: "```repl\nfor i in range(3):\n    print(i)\n```",
			want:     []string{"for i in range(3):\n    print(i)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCodeBlocks(tt.response)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractCodeBlocks() = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("block %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
