// Package engine drives the REPL loop: it prompts the root model, extracts
// and executes the code the model writes, feeds output back, and decides when
// a query has terminated.
package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"rlm-engine/config"
	"rlm-engine/domains"
	apperrors "rlm-engine/errors"
	"rlm-engine/ipc"
	"rlm-engine/llmclient"
	"rlm-engine/prompts"
	"rlm-engine/sandbox"

	"go.uber.org/zap"
)

// CodeRunner executes one batch of code blocks against borrowed session
// state and returns the updated snapshot.
type CodeRunner interface {
	Execute(ctx context.Context, blocks []string, documentText string, state sandbox.State, callbackPort int) (sandbox.Result, error)
}

// Verification note attached to results produced by an in-code termination.
const codeTerminationSource = "FINAL() from code"

type Orchestrator struct {
	cfg    *config.Config
	caller llmclient.Caller
	runner CodeRunner
	chain  *Chain
	logger *zap.Logger
}

func NewOrchestrator(cfg *config.Config, caller llmclient.Caller, runner CodeRunner, chain *Chain, logger *zap.Logger) *Orchestrator {
	if chain == nil {
		chain = NewChain()
	}
	return &Orchestrator{
		cfg:    cfg,
		caller: caller,
		runner: runner,
		chain:  chain,
		logger: logger,
	}
}

// Run answers one question about a document. Iterations are strictly
// sequential; the only fatal failures are exhausted API retries, sandbox
// spawn failures, and a canceled context. Everything the model's code does
// wrong comes back to the model as feedback instead.
func (o *Orchestrator) Run(ctx context.Context, question, document string) (QueryResult, error) {
	return o.run(ctx, question, document, domains.DocType(document))
}

// RunBatch answers each question independently with fresh session state. The
// document is shared read-only and its type is probed once for the batch.
func (o *Orchestrator) RunBatch(ctx context.Context, questions []string, document string) ([]QueryResult, error) {
	docType := domains.DocType(document)
	results := make([]QueryResult, 0, len(questions))
	for _, q := range questions {
		res, err := o.run(ctx, q, document, docType)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (o *Orchestrator) run(ctx context.Context, question, document, docType string) (QueryResult, error) {
	if document == "" {
		return QueryResult{}, apperrors.ErrNoDocument
	}
	if strings.TrimSpace(question) == "" {
		return QueryResult{}, apperrors.WrapError(apperrors.ErrInvalidInput, "empty question")
	}

	question, document = o.chain.RunPre(question, document)

	session := newSession(question, document)
	log := o.logger.With(zap.String("session_id", session.ID))
	log.Info("Query started",
		zap.String("doc_type", docType),
		zap.Int("document_chars", len(document)),
		zap.Int("max_iterations", o.cfg.MaxIterations))

	system := prompts.RootSystem(question, docType, head(document, 500), len(document), o.cfg.MaxSubCalls)
	messages := []llmclient.Message{
		{Role: llmclient.RoleUser, Content: prompts.InitialUserMessage(question)},
	}

	for iteration := 0; iteration < o.cfg.MaxIterations; iteration++ {
		// 1. Call the root model with the running history
		response, err := o.callRoot(ctx, system, messages, session)
		if err != nil {
			return QueryResult{}, err
		}
		session.recordIteration(response)
		log.Debug("Iteration complete",
			zap.Int("iteration", iteration+1),
			zap.Int("response_chars", len(response)))

		// 2. The textual marker terminates even when the same response also
		// carries code; prose wins over an unexecuted FINAL().
		if strings.Contains(response, FinalAnswerMarker) {
			return o.chain.RunPost(parseFinalAnswer(response, session, o.cfg.SaveTrajectory)), nil
		}

		// 3. Extract code; a response without code gets the fixed reminder
		blocks := ExtractCodeBlocks(response)
		if len(blocks) == 0 {
			messages = appendTurn(messages, response, prompts.NoCodeFeedback)
			continue
		}

		// 4. Execute the batch with a callback server for its sub-queries
		result, err := o.runBlocks(ctx, blocks, session)
		if err != nil {
			return QueryResult{}, err
		}
		session.State = result.State

		// 5. In-code termination
		if result.Terminated {
			return o.chain.RunPost(buildResult(result.FinalAnswer, codeTerminationSource, session, o.cfg.SaveTrajectory)), nil
		}

		// 6. Feed the (truncated) output back and continue
		if result.Output != "" {
			truncated := truncateOutput(result.Output, o.cfg.MaxOutputChars)
			messages = appendTurn(messages, response, prompts.CodeOutputFeedback(truncated))
		} else {
			messages = appendTurn(messages, response, prompts.NoCodeFeedback)
		}
	}

	// Iteration budget exhausted: one forced call, parsed the same way, with
	// the whole-text fallback still applying.
	log.Warn("Iteration limit reached, forcing final answer")
	messages = append(messages, llmclient.Message{Role: llmclient.RoleUser, Content: prompts.IterationLimitFeedback})
	response, err := o.callRoot(ctx, system, messages, session)
	if err != nil {
		return QueryResult{}, err
	}
	return o.chain.RunPost(parseFinalAnswer(response, session, o.cfg.SaveTrajectory)), nil
}

func (o *Orchestrator) callRoot(ctx context.Context, system string, messages []llmclient.Message, session *QuerySession) (string, error) {
	resp, err := o.caller.Call(ctx, llmclient.Request{
		Model:     o.cfg.RootModel,
		MaxTokens: o.cfg.RootMaxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return "", apperrors.WrapErrorf(apperrors.ErrLLMCommunication, "root model call: %v", err)
	}
	if o.cfg.TrackCosts {
		session.RootInputTokens += resp.InputTokens
		session.RootOutputTokens += resp.OutputTokens
	}
	return resp.Text, nil
}

// runBlocks serves sub-queries for exactly the lifetime of one batch.
func (o *Orchestrator) runBlocks(ctx context.Context, blocks []string, session *QuerySession) (sandbox.Result, error) {
	srv := ipc.NewServer(o.logger)
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		return o.subQuery(ctx, session, prompt, textSlice)
	})
	if err != nil {
		return sandbox.Result{}, apperrors.WrapError(err, "start callback server")
	}
	defer srv.Stop()

	return o.runner.Execute(ctx, blocks, session.Document, session.State, port)
}

// subQuery asks the sub model a focused question. Budget exhaustion comes
// back as ordinary text so sandboxed code sees output, not a failure.
// Sandboxed code may call this from several threads at once.
func (o *Orchestrator) subQuery(ctx context.Context, session *QuerySession, prompt string, textSlice *string) (string, error) {
	session.mu.Lock()
	if session.SubCallsUsed >= o.cfg.MaxSubCalls {
		session.mu.Unlock()
		return fmt.Sprintf("ERROR: Maximum sub-calls (%d) exceeded. Use code to analyze remaining data.", o.cfg.MaxSubCalls), nil
	}
	session.SubCallsUsed++
	used := session.SubCallsUsed
	session.mu.Unlock()

	var slice string
	switch {
	case textSlice == nil:
		slice = head(session.Document, o.cfg.SubCallContextLimit)
	default:
		slice = head(*textSlice, o.cfg.SubCallContextLimit)
	}

	resp, err := o.caller.Call(ctx, llmclient.Request{
		Model:     o.cfg.SubModel,
		MaxTokens: o.cfg.SubMaxTokens,
		System:    prompts.SubSystem(prompt, slice),
		Messages:  []llmclient.Message{{Role: llmclient.RoleUser, Content: prompts.SubQueryUserMessage}},
	})
	if err != nil {
		return "", err
	}

	if o.cfg.TrackCosts {
		session.mu.Lock()
		session.SubInputTokens += resp.InputTokens
		session.SubOutputTokens += resp.OutputTokens
		session.mu.Unlock()
	}
	o.logger.Debug("Sub-query answered",
		zap.Int("sub_call", used),
		zap.String("prompt", preview(prompt, 100)))
	return resp.Text, nil
}

func appendTurn(messages []llmclient.Message, assistant, user string) []llmclient.Message {
	return append(messages,
		llmclient.Message{Role: llmclient.RoleAssistant, Content: assistant},
		llmclient.Message{Role: llmclient.RoleUser, Content: user},
	)
}

// head cuts s to at most n bytes without splitting a rune.
func head(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
