package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// QueryResult is the single externally visible output of a query. Evidence
// and Verification stay null when the model never stated them.
type QueryResult struct {
	Answer           string            `json:"answer"`
	Evidence         *string           `json:"evidence"`
	Confidence       string            `json:"confidence"`
	Verification     *string           `json:"verification"`
	SubCallsUsed     int               `json:"sub_calls_used"`
	RootInputTokens  int               `json:"root_input_tokens"`
	RootOutputTokens int               `json:"root_output_tokens"`
	SubInputTokens   int               `json:"sub_input_tokens"`
	SubOutputTokens  int               `json:"sub_output_tokens"`
	Trajectory       []IterationRecord `json:"trajectory"`
}

// FinalAnswerMarker is the textual termination signal checked verbatim in
// model responses; parsing of the structured fields around it is looser.
const FinalAnswerMarker = "FINAL_ANSWER:"

var (
	answerRe       = regexp.MustCompile(`(?is)FINAL_ANSWER:\s*(.+?)(?:SOURCE_EVIDENCE:|CONFIDENCE:|VERIFICATION_METHOD:|$)`)
	evidenceRe     = regexp.MustCompile(`(?is)SOURCE_EVIDENCE:\s*(.+?)(?:CONFIDENCE:|VERIFICATION_METHOD:|$)`)
	confidenceRe   = regexp.MustCompile(`(?i)CONFIDENCE:\s*(\w+)`)
	verificationRe = regexp.MustCompile(`(?is)VERIFICATION_METHOD:\s*(.+)`)
)

// parseFinalAnswer extracts the structured answer fields from a response.
// Missing fields stay unset; a response with no extractable answer falls back
// to the whole text so the query never fails over formatting.
func parseFinalAnswer(response string, session *QuerySession, keepTrajectory bool) QueryResult {
	res := QueryResult{
		Confidence:       "unknown",
		SubCallsUsed:     session.SubCallsUsed,
		RootInputTokens:  session.RootInputTokens,
		RootOutputTokens: session.RootOutputTokens,
		SubInputTokens:   session.SubInputTokens,
		SubOutputTokens:  session.SubOutputTokens,
	}
	if keepTrajectory {
		res.Trajectory = session.Trajectory
	}

	if m := answerRe.FindStringSubmatch(response); m != nil {
		res.Answer = strings.TrimSpace(m[1])
	}
	if m := evidenceRe.FindStringSubmatch(response); m != nil {
		ev := strings.TrimSpace(m[1])
		res.Evidence = &ev
	}
	if m := confidenceRe.FindStringSubmatch(response); m != nil {
		res.Confidence = strings.TrimSpace(m[1])
	}
	if m := verificationRe.FindStringSubmatch(response); m != nil {
		v := strings.TrimSpace(m[1])
		res.Verification = &v
	}
	if res.Answer == "" {
		res.Answer = response
	}
	return res
}

// buildResult assembles the result for a termination signaled from code.
func buildResult(answer, source string, session *QuerySession, keepTrajectory bool) QueryResult {
	res := QueryResult{
		Answer:           answer,
		Confidence:       "unknown",
		Verification:     &source,
		SubCallsUsed:     session.SubCallsUsed,
		RootInputTokens:  session.RootInputTokens,
		RootOutputTokens: session.RootOutputTokens,
		SubInputTokens:   session.SubInputTokens,
		SubOutputTokens:  session.SubOutputTokens,
	}
	if keepTrajectory {
		res.Trajectory = session.Trajectory
	}
	return res
}

// truncateOutput caps sandbox output at maxChars characters before it
// re-enters the conversation, appending a notice carrying the original size.
// Counts are runes, not bytes, so multibyte output keeps its full allowance.
func truncateOutput(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	total := utf8.RuneCountInString(output)
	if total <= maxChars {
		return output
	}
	cut := 0
	for i := 0; i < maxChars; i++ {
		_, n := utf8.DecodeRuneInString(output[cut:])
		cut += n
	}
	return output[:cut] + fmt.Sprintf("\n... [OUTPUT TRUNCATED: %s chars total, showing first %s]",
		groupDigits(total), groupDigits(maxChars))
}

// groupDigits renders n with comma thousand separators.
func groupDigits(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
