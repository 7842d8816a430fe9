package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"rlm-engine/config"
	"rlm-engine/cost"
	"rlm-engine/documents"
	"rlm-engine/domains"
	"rlm-engine/engine"
	"rlm-engine/llmclient"
	"rlm-engine/sandbox"
	"rlm-engine/store"
	"rlm-engine/web"
)

const usage = `Usage: rlm-engine <command> [flags]

Commands:
  query   -doc <file> -q <question>    answer one question about a document
  batch   -doc <file> -q <q1> -q <q2>  answer several questions independently
  detect  -doc <file>                  detect the document's domain
  domains                              list built-in domains
  serve                                run the HTTP API server
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Bootstrap with a temporary logger until the configured one exists.
	tempLogger, _ := zap.NewDevelopment()
	cfg := config.Load(tempLogger)
	tempLogger.Sync()

	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var runErr error
	switch os.Args[1] {
	case "query":
		runErr = runQuery(ctx, cfg, logger, os.Args[2:], false)
	case "batch":
		runErr = runQuery(ctx, cfg, logger, os.Args[2:], true)
	case "detect":
		runErr = runDetect(cfg, logger, os.Args[2:])
	case "domains":
		runErr = runDomains()
	case "serve":
		runErr = runServe(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if runErr != nil {
		logger.Error("Command failed", zap.Error(runErr))
		os.Exit(1)
	}
}

type questionList []string

func (q *questionList) String() string     { return fmt.Sprint(*q) }
func (q *questionList) Set(v string) error { *q = append(*q, v); return nil }

func buildOrchestrator(cfg *config.Config, logger *zap.Logger, chain *engine.Chain) (*engine.Orchestrator, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	caller := llmclient.NewRetryingCaller(
		llmclient.New(apiKey, logger),
		cfg.MaxRetries,
		cfg.RetryBaseDelay,
		logger,
	)
	runner := sandbox.New(cfg.PythonBinary, cfg.CodeTimeout, logger)
	return engine.NewOrchestrator(cfg, caller, runner, chain, logger), nil
}

func loadDocument(cfg *config.Config, logger *zap.Logger, path string) (string, error) {
	ingest, err := documents.NewChain(cfg.DocumentCacheSize, logger)
	if err != nil {
		return "", err
	}
	return ingest.Ingest(path)
}

func runQuery(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string, batch bool) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	docPath := fs.String("doc", "", "document file to analyze")
	var questions questionList
	fs.Var(&questions, "q", "question to answer (repeatable for batch)")
	showCost := fs.Bool("cost", false, "print a cost estimate with the result")
	fs.Parse(args)

	if *docPath == "" || len(questions) == 0 {
		return fmt.Errorf("both -doc and -q are required")
	}

	document, err := loadDocument(cfg, logger, *docPath)
	if err != nil {
		return err
	}

	chain := engine.NewChain(engine.NewLoggingHook(logger), engine.NewMetricsHook())
	var tracker *cost.TrackingHook
	if cfg.TrackCosts {
		tracker = cost.NewTrackingHook(cost.DefaultTable(), cfg.RootModel, cfg.SubModel)
		chain.Use(tracker)
	}

	orch, err := buildOrchestrator(cfg, logger, chain)
	if err != nil {
		return err
	}

	var results []engine.QueryResult
	if batch {
		results, err = orch.RunBatch(ctx, questions, document)
	} else {
		var res engine.QueryResult
		res, err = orch.Run(ctx, questions[0], document)
		results = append(results, res)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if *showCost && tracker != nil {
		total, n := tracker.TotalUSD()
		fmt.Fprintf(os.Stderr, "Estimated cost: $%.4f across %d queries\n", total, n)
	}
	return nil
}

func runDetect(cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	docPath := fs.String("doc", "", "document file to classify")
	fs.Parse(args)
	if *docPath == "" {
		return fmt.Errorf("-doc is required")
	}

	document, err := loadDocument(cfg, logger, *docPath)
	if err != nil {
		return err
	}

	registry := domains.NewRegistry()
	fmt.Printf("Document type: %s\n", domains.DocType(document))
	scores := registry.DetectMulti(document, filepath.Base(*docPath), 0.1)
	if len(scores) == 0 {
		fmt.Println("No domain matched.")
		return nil
	}
	for _, sc := range scores {
		fmt.Printf("%-10s %.2f  %s\n", sc.Domain.Name, sc.Confidence, sc.Domain.Description)
	}
	return nil
}

func runDomains() error {
	for _, d := range domains.NewRegistry().List() {
		fmt.Printf("%s - %s\n", d.Name, d.Description)
		fmt.Printf("  synonym groups: %d, query templates: %d, detection patterns: %d\n",
			len(d.Synonyms), len(d.QueryTemplates), len(d.Patterns))
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	chain := engine.NewChain(engine.NewLoggingHook(logger), engine.NewMetricsHook())
	orch, err := buildOrchestrator(cfg, logger, chain)
	if err != nil {
		return err
	}

	docs := documents.NewRegistry()
	ingest, err := documents.NewChain(cfg.DocumentCacheSize, logger)
	if err != nil {
		return err
	}

	var archive *store.ResultStore
	if cfg.DatabaseURL != "" {
		archive, err = store.New(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer archive.Close()
		if err := archive.EnsureSchema(ctx); err != nil {
			return err
		}
	} else {
		logger.Info("No DATABASE_URL configured, result archive disabled")
	}

	server := web.NewServer(orch, docs, ingest, domains.NewRegistry(), archive, logger, cfg)
	return server.Start(ctx, fmt.Sprintf(":%d", cfg.WebPort))
}
