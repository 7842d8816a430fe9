package domains

import "strings"

// DocType sniffs a coarse document type from the head of the text. The label
// feeds the root system prompt; it is a hint, not a classification the
// control logic depends on.
func DocType(text string) string {
	preview := strings.ToLower(text)
	if len(preview) > 1000 {
		preview = preview[:1000]
	}

	switch {
	case strings.Contains(preview, "abstract") && strings.Contains(preview, "introduction"):
		return "academic paper"
	case strings.Contains(preview, "<!doctype") || strings.Contains(preview, "<html"):
		return "HTML document"
	case strings.HasPrefix(preview, "{") || strings.HasPrefix(preview, "["):
		return "JSON data"
	case strings.Contains(preview, "|") && strings.Contains(preview, "-|-"):
		return "markdown with tables"
	case containsAny(preview, "revenue", "profit", "q1", "q2", "q3", "q4", "fiscal"):
		return "financial document"
	case containsAny(preview, "def ", "class ", "import ", "function"):
		return "code/technical document"
	default:
		return "general text document"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
