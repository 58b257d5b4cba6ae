// Command govpipe drives the event-governance pipeline from the command
// line: execute workflows, manage model/prompt approvals, and verify
// exported audit chains.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veridian-labs/govpipe/pkg/audit"
	"github.com/veridian-labs/govpipe/pkg/config"
	"github.com/veridian-labs/govpipe/pkg/domain"
	"github.com/veridian-labs/govpipe/pkg/governance"
	"github.com/veridian-labs/govpipe/pkg/observability"
	"github.com/veridian-labs/govpipe/pkg/statestore"
	"github.com/veridian-labs/govpipe/pkg/workflow"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the dispatcher entrypoint, testable with injected writers.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return runWorkflowCmd(args[2:], stdout, stderr)
	case "register-model":
		return registerModelCmd(args[2:], stdout, stderr)
	case "approve-model":
		return approveModelCmd(args[2:], stdout, stderr)
	case "register-prompt":
		return registerPromptCmd(args[2:], stdout, stderr)
	case "approve-prompt":
		return approvePromptCmd(args[2:], stdout, stderr)
	case "audit-verify":
		return auditVerifyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "govpipe - multi-tenant event-governance pipeline")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  govpipe <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  run              Execute a workflow for an event (--type risk|compliance)")
	fmt.Fprintln(w, "  register-model   Register a model version for governance")
	fmt.Fprintln(w, "  approve-model    Approve a registered model version")
	fmt.Fprintln(w, "  register-prompt  Register a prompt template")
	fmt.Fprintln(w, "  approve-prompt   Approve a registered prompt version")
	fmt.Fprintln(w, "  audit-verify     Verify an exported audit chain file")
	fmt.Fprintln(w, "  help             Show this help")
}

func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// repos bundles the configured governance backends and their cleanup.
type repos struct {
	models  governance.ModelRepository
	prompts governance.PromptRepository
	close   func()
}

func openRepos(ctx context.Context, cfg *config.Config) (*repos, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return &repos{
			models:  governance.NewMemoryModelRepository(),
			prompts: governance.NewMemoryPromptRepository(),
			close:   func() {},
		}, nil
	case config.StoreSQLite:
		db, err := governance.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		db.SetMaxOpenConns(1)
		models, err := governance.NewSQLiteModelRepository(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		prompts, err := governance.NewSQLitePromptRepository(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &repos{models: models, prompts: prompts, close: func() { _ = db.Close() }}, nil
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		models := governance.NewPostgresModelRepository(db)
		if err := models.Init(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		prompts := governance.NewPostgresPromptRepository(db)
		return &repos{models: models, prompts: prompts, close: func() { _ = db.Close() }}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

func auditSink(cfg *config.Config, stderr io.Writer) (audit.Logger, func(), error) {
	if cfg.AuditLogPath == "" {
		return audit.NewLoggerWithWriter(stderr), func() {}, nil
	}
	f, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return audit.NewLoggerWithWriter(f), func() { _ = f.Close() }, nil
}

func runWorkflowCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath   string
		workflowType string
		eventPath    string
		eventID      string
		tenantID     string
		correlation  string
		flagsCSV     string
		gated        bool
		chainOut     string
	)
	fs.StringVar(&configPath, "config", "", "Path to YAML config")
	fs.StringVar(&workflowType, "type", workflow.TypeRisk, "Workflow type: risk or compliance")
	fs.StringVar(&eventPath, "event", "", "Path to the raw event JSON file (REQUIRED)")
	fs.StringVar(&eventID, "event-id", "", "Event id (default: random)")
	fs.StringVar(&tenantID, "tenant", "", "Tenant id (REQUIRED)")
	fs.StringVar(&correlation, "correlation", "", "Correlation id (default: random)")
	fs.StringVar(&flagsCSV, "flags", "", "Comma-separated regulatory flags (compliance only)")
	fs.BoolVar(&gated, "gated", false, "Enforce model/prompt approval before execution")
	fs.StringVar(&chainOut, "chain-out", "", "Write the run's audit chain to this file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger := setupLogger(cfg, stderr)

	if eventPath == "" {
		fmt.Fprintln(stderr, "Error: --event is required")
		return 2
	}
	if err := domain.ValidateTenantID(tenantID); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if eventID == "" {
		eventID = uuid.New().String()
	}
	if correlation == "" {
		correlation = uuid.New().String()
	}

	raw, err := os.ReadFile(eventPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	rawEvent, err := domain.ValidateRawEventDocument(raw)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid event: %v\n", err)
		return 2
	}

	ctx := context.Background()

	sink, closeSink, err := auditSink(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeSink()

	chain := audit.NewStore()
	auditLogger := audit.MultiLogger{sink, audit.NewStoreLogger(chain)}

	provider, err := observability.NewProvider(ctx, &observability.ProviderConfig{
		ServiceName:    "govpipe",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.MetricsExport,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	var metrics *observability.MetricsCollector
	if meter := provider.Meter(); meter != nil {
		metrics = observability.NewMetricsCollectorWithMeter(meter)
	} else {
		metrics = observability.NewMetricsCollector()
	}

	opts := []workflow.Option{
		workflow.WithMetrics(metrics),
	}

	rules, err := rulesFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	opts = append(opts, workflow.WithRules(rules))

	if cfg.RedisAddr != "" {
		store := statestore.NewRedisStore(statestore.NewRedisClient(cfg.RedisAddr), cfg.StateTTL)
		if err := store.Ping(ctx); err != nil {
			fmt.Fprintf(stderr, "Error: redis unreachable: %v\n", err)
			return 1
		}
		opts = append(opts, workflow.WithStateStore(store))
	} else {
		opts = append(opts, workflow.WithStateStore(statestore.NewMemoryStore()))
	}

	var r *repos
	if gated {
		r, err = openRepos(ctx, cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer r.close()
		opts = append(opts,
			workflow.WithModelRegistry(governance.NewModelRegistry(r.models, auditLogger)),
			workflow.WithPromptRegistry(governance.NewPromptRegistry(r.prompts, auditLogger)))
	}

	started := time.Now()
	var final any
	var runErr error
	switch workflowType {
	case workflow.TypeRisk:
		w, err := workflow.NewRiskWorkflow(auditLogger, opts...)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		final, runErr = w.Run(ctx, &workflow.RiskState{
			EventID:       eventID,
			TenantID:      tenantID,
			CorrelationID: correlation,
			RawEvent:      rawEvent,
			ModelVersion:  cfg.Workflow.ModelVersion,
			PromptVersion: cfg.Workflow.PromptVersion,
		})
	case workflow.TypeCompliance:
		w, err := workflow.NewComplianceWorkflow(auditLogger, opts...)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		final, runErr = w.Run(ctx, &workflow.ComplianceState{
			EventID:         eventID,
			TenantID:        tenantID,
			CorrelationID:   correlation,
			RawEvent:        rawEvent,
			RegulatoryFlags: splitFlags(flagsCSV),
		})
	default:
		fmt.Fprintf(stderr, "Error: unknown workflow type %q\n", workflowType)
		return 2
	}

	// The chain is written on failure too: a governance violation is
	// itself an auditable outcome.
	if chainOut != "" {
		if err := exportChain(chain, chainOut); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if runErr != nil {
		logger.Error("workflow failed", "workflow", workflowType, "event_id", eventID, "error", runErr)
		return 1
	}

	logger.Info("workflow completed",
		"workflow", workflowType, "event_id", eventID, "duration", time.Since(started))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func rulesFromConfig(cfg *config.Config) (*workflow.RuleSet, error) {
	rules, err := workflow.DefaultRules()
	if err != nil {
		return nil, err
	}
	if expr := cfg.Workflow.PolicyRule; expr != "" {
		if rules.Policy, err = workflow.NewRule(expr); err != nil {
			return nil, err
		}
	}
	if expr := cfg.Workflow.GuardrailRule; expr != "" {
		if rules.Guardrail, err = workflow.NewRule(expr); err != nil {
			return nil, err
		}
	}
	if expr := cfg.Workflow.ComplianceRule; expr != "" {
		if rules.CompliancePolicy, err = workflow.NewRule(expr); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func splitFlags(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func exportChain(chain *audit.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chain file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return chain.Export(f)
}

func registerModelCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("register-model", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath, name, version, checksum, tenantID, correlation string
	fs.StringVar(&configPath, "config", "", "Path to YAML config")
	fs.StringVar(&name, "name", "", "Model name (REQUIRED)")
	fs.StringVar(&version, "version", "", "Model version (REQUIRED)")
	fs.StringVar(&checksum, "checksum", "", "Model checksum (REQUIRED)")
	fs.StringVar(&tenantID, "tenant", "", "Tenant id (REQUIRED)")
	fs.StringVar(&correlation, "correlation", "", "Correlation id (default: random)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || version == "" || checksum == "" || tenantID == "" {
		fmt.Fprintln(stderr, "Error: --name, --version, --checksum, and --tenant are required")
		return 2
	}
	if correlation == "" {
		correlation = uuid.New().String()
	}

	return withModelRegistry(configPath, stderr, func(ctx context.Context, registry *governance.ModelRegistry) error {
		record, err := registry.RegisterModel(ctx, name, version, checksum, correlation, tenantID)
		if err != nil {
			return err
		}
		return printJSON(stdout, record)
	})
}

func approveModelCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("approve-model", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath, name, version, approver, correlation string
	fs.StringVar(&configPath, "config", "", "Path to YAML config")
	fs.StringVar(&name, "name", "", "Model name (REQUIRED)")
	fs.StringVar(&version, "version", "", "Model version (REQUIRED)")
	fs.StringVar(&approver, "approver", "", "Approver identity (REQUIRED)")
	fs.StringVar(&correlation, "correlation", "", "Correlation id (default: random)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || version == "" || approver == "" {
		fmt.Fprintln(stderr, "Error: --name, --version, and --approver are required")
		return 2
	}
	if correlation == "" {
		correlation = uuid.New().String()
	}

	return withModelRegistry(configPath, stderr, func(ctx context.Context, registry *governance.ModelRegistry) error {
		record, err := registry.Approve(ctx, name, version, approver, correlation)
		if err != nil {
			return err
		}
		return printJSON(stdout, record)
	})
}

func registerPromptCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("register-prompt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath, name, template, correlation string
	fs.StringVar(&configPath, "config", "", "Path to YAML config")
	fs.StringVar(&name, "name", "", "Prompt name (REQUIRED)")
	fs.StringVar(&template, "template", "", "Prompt template (REQUIRED)")
	fs.StringVar(&correlation, "correlation", "", "Correlation id (default: random)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || template == "" {
		fmt.Fprintln(stderr, "Error: --name and --template are required")
		return 2
	}
	if correlation == "" {
		correlation = uuid.New().String()
	}

	return withPromptRegistry(configPath, stderr, func(ctx context.Context, registry *governance.PromptRegistry) error {
		record, err := registry.RegisterPrompt(ctx, name, template, correlation)
		if err != nil {
			return err
		}
		return printJSON(stdout, record)
	})
}

func approvePromptCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("approve-prompt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath, name, approver, correlation string
	var version int
	fs.StringVar(&configPath, "config", "", "Path to YAML config")
	fs.StringVar(&name, "name", "", "Prompt name (REQUIRED)")
	fs.IntVar(&version, "version", 0, "Prompt version (REQUIRED)")
	fs.StringVar(&approver, "approver", "", "Approver identity (REQUIRED)")
	fs.StringVar(&correlation, "correlation", "", "Correlation id (default: random)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || version <= 0 || approver == "" {
		fmt.Fprintln(stderr, "Error: --name, --version, and --approver are required")
		return 2
	}
	if correlation == "" {
		correlation = uuid.New().String()
	}

	return withPromptRegistry(configPath, stderr, func(ctx context.Context, registry *governance.PromptRegistry) error {
		record, err := registry.Approve(ctx, name, version, approver, correlation)
		if err != nil {
			return err
		}
		return printJSON(stdout, record)
	})
}

func auditVerifyCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit-verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var path string
	fs.StringVar(&path, "file", "", "Path to an exported audit chain (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	entries, err := audit.ReadEntries(f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := audit.VerifyEntries(entries); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "audit chain OK (%d entries)\n", len(entries))
	return 0
}

func withModelRegistry(configPath string, stderr io.Writer,
	fn func(ctx context.Context, registry *governance.ModelRegistry) error) int {
	return withRepos(configPath, stderr, func(ctx context.Context, r *repos, logger audit.Logger) error {
		return fn(ctx, governance.NewModelRegistry(r.models, logger))
	})
}

func withPromptRegistry(configPath string, stderr io.Writer,
	fn func(ctx context.Context, registry *governance.PromptRegistry) error) int {
	return withRepos(configPath, stderr, func(ctx context.Context, r *repos, logger audit.Logger) error {
		return fn(ctx, governance.NewPromptRegistry(r.prompts, logger))
	})
}

func withRepos(configPath string, stderr io.Writer,
	fn func(ctx context.Context, r *repos, logger audit.Logger) error) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	r, err := openRepos(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer r.close()

	sink, closeSink, err := auditSink(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeSink()

	if err := fn(ctx, r, sink); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
