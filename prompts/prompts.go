package prompts

import (
	_ "embed"
	"strconv"
	"strings"
)

// Embedded prompt files

//go:embed root_system.txt
var rootSystem string

//go:embed sub_system.txt
var subSystem string

// Fixed feedback messages appended to the conversation between iterations.
const (
	NoCodeFeedback = "No code was executed. Write ```repl blocks to " +
		"interact with the document. You must explore the " +
		"context before providing a final answer."
	IterationLimitFeedback = "You've reached the iteration limit. " +
		"Please provide your FINAL_ANSWER now based on what you've found."
	SubQueryUserMessage = "Analyze the text and answer the question."
)

// RootSystem renders the root REPL system prompt for a loaded document.
// Preview should be the first ~500 characters of the document.
func RootSystem(query, docType, preview string, contextLength, maxSubCalls int) string {
	r := strings.NewReplacer(
		"{context_length}", strconv.Itoa(contextLength),
		"{token_estimate}", strconv.Itoa(contextLength/4),
		"{doc_type}", docType,
		"{context_preview}", preview,
		"{query}", query,
		"{max_sub_calls}", strconv.Itoa(maxSubCalls),
	)
	return r.Replace(rootSystem)
}

// SubSystem renders the focused single-question prompt for sub-model calls.
func SubSystem(question, contextSlice string) string {
	r := strings.NewReplacer(
		"{question}", question,
		"{context_slice}", contextSlice,
	)
	return r.Replace(subSystem)
}

// InitialUserMessage seeds the conversation for a new query.
func InitialUserMessage(question string) string {
	return "Answer this query: " + question + "\n\n" +
		"You have not interacted with the REPL environment yet. " +
		"Explore the context by writing python code in ```repl blocks " +
		"first before generating your final answer."
}

// CodeOutputFeedback wraps sandbox output for the next model turn.
func CodeOutputFeedback(output string) string {
	return "Code execution output:\n```\n" + output + "\n```\n\n" +
		"Continue your analysis. Use FINAL() or write " +
		"FINAL_ANSWER: when you have your answer."
}
