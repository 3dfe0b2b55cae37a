// Package main is the entry point for the phylax binary.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phylaxai/phylax-oss/pkg/config"
	"github.com/phylaxai/phylax-oss/pkg/domain"
	"github.com/phylaxai/phylax-oss/pkg/guardrail"
	"github.com/phylaxai/phylax-oss/pkg/llm"
	"github.com/phylaxai/phylax-oss/pkg/logging"
	"github.com/phylaxai/phylax-oss/pkg/server"
	"github.com/phylaxai/phylax-oss/pkg/storage"
	"github.com/phylaxai/phylax-oss/pkg/telemetry"
)

const (
	defaultConfigPath = "config.yaml"
	serviceName       = "phylax"
	version           = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for phylax
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "phylax",
		Short: "LLM input guardrail",
		Long: `Phylax screens free-text inputs against a content policy before they reach
a primary model. A separate enforcer model judges each input, and the verdict
fails closed: any backend or parsing failure blocks the input.

Example:
  phylax serve --config config.yaml
  phylax check "What is the capital of France?"
  phylax check --demo --offline`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCheckCmd())

	return rootCmd
}

// configPath reads the persistent --config flag. The serve command falls back
// to config.yaml; check treats an empty path as built-in defaults.
func configPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", fmt.Errorf("failed to get config flag: %w", err)
	}
	return path, nil
}

// serveOptions holds the parsed serve flags.
type serveOptions struct {
	ListenAddr string
	LogLevel   string
	Pretty     bool
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the guardrail HTTP service",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "Address to listen on (overrides config)")
	cmd.Flags().StringP("log-level", "l", "", "Log level (debug, info, warn, error; overrides config)")
	cmd.Flags().Bool("pretty", false, "Enable pretty console logging")

	return cmd
}

func parseServeOptions(cmd *cobra.Command) (*serveOptions, error) {
	listenAddr, err := cmd.Flags().GetString("listen")
	if err != nil {
		return nil, fmt.Errorf("failed to get listen flag: %w", err)
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}

	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return nil, fmt.Errorf("failed to get pretty flag: %w", err)
	}

	return &serveOptions{
		ListenAddr: listenAddr,
		LogLevel:   logLevel,
		Pretty:     pretty,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	opts, err := parseServeOptions(cmd)
	if err != nil {
		return err
	}

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		path = defaultConfigPath
	}

	// Setup Logging
	startLevel := opts.LogLevel
	if startLevel == "" {
		startLevel = "info"
	}
	logger := logging.NewLogger(logging.Config{
		Level:  startLevel,
		Pretty: opts.Pretty,
	})
	slog.SetDefault(logger)

	logger.Info("Starting phylax", "version", version, "config", path)

	// Setup Config Provider
	cfgProvider, err := config.NewFileConfigProvider(path)
	if err != nil {
		logger.Error("Failed to initialize config provider", "error", err)
		return err
	}
	defer func() {
		if err := cfgProvider.Close(); err != nil {
			logger.Error("Failed to close config provider", "error", err)
		}
	}()

	cfg := cfgProvider.Current()

	// The log level is the only setting that tracks the file at runtime. An
	// explicit --log-level pins it for the process lifetime.
	levelPinned := opts.LogLevel != ""
	if !levelPinned {
		logging.SetLevel(cfg.Logging.Level)
	}
	go watchConfig(cfgProvider, levelPinned, logger)

	// Setup Telemetry
	shutdownTelemetry, err := telemetry.SetupProvider(cmd.Context(), telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Error("Failed to flush telemetry", "error", err)
		}
	}()

	// Initialize Core Components
	backend := buildBackend(cfg.Backend, logger)

	var store storage.AuditStore
	if cfg.Audit.Enabled {
		store = storage.NewMemoryAuditStore(cfg.Audit.MaxRecords)
	}

	eval := buildEvaluator(cfg, backend, store, logger)

	addr := cfg.Server.Address
	if opts.ListenAddr != "" {
		addr = opts.ListenAddr
	}

	srv := server.New(server.Config{
		Evaluator: eval,
		Store:     store,
		Logger:    logger,
	})

	logger.Info("Guardrail configured",
		"provider", cfg.Backend.Provider,
		"model", cfg.Backend.Model,
		"audit", cfg.Audit.Enabled,
	)

	// Start Server
	httpServer, err := startServer(addr, srv.Handler(), logger)
	if err != nil {
		return err
	}

	// Wait for shutdown
	waitForShutdown(httpServer, logger)
	return nil
}

// watchConfig applies the runtime-adjustable subset of each reloaded
// configuration. The policy prompt and the backend are fixed at startup;
// rebuilding them mid-flight would silently change what inputs are screened
// against.
func watchConfig(provider *config.FileConfigProvider, levelPinned bool, logger *slog.Logger) {
	updates := provider.Subscribe()
	for cfg := range updates {
		if levelPinned {
			continue
		}
		logging.SetLevel(cfg.Logging.Level)
		logger.Debug("Applied reloaded settings", "log_level", cfg.Logging.Level)
	}
}

// buildBackend constructs the configured model backend. A real provider with
// a missing credential is degraded rather than fatal: the service stays up
// and every evaluation fails closed through the internal-error path until a
// key is supplied.
func buildBackend(cfg config.BackendConfig, logger *slog.Logger) llm.Backend {
	apiKey := cfg.APIKey()
	if cfg.Provider != "mock" && apiKey == "" {
		logger.Warn("Backend API key is not set, every evaluation will fail closed",
			"provider", cfg.Provider, "api_key_env", cfg.APIKeyEnv)
		return failClosedBackend{
			provider: cfg.Provider,
			reason:   fmt.Errorf("%s backend has no API key (set %s)", cfg.Provider, cfg.APIKeyEnv),
		}
	}

	backend, err := llm.New(llm.Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		APIKey:      apiKey,
		Timeout:     cfg.Timeout(),
		MaxRetries:  cfg.MaxRetries,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		logger.Error("Failed to construct backend, every evaluation will fail closed",
			"provider", cfg.Provider, "error", err)
		return failClosedBackend{provider: cfg.Provider, reason: err}
	}
	return backend
}

// failClosedBackend stands in for a backend that could not be constructed.
// Every call errors, so every evaluation blocks.
type failClosedBackend struct {
	provider string
	reason   error
}

func (b failClosedBackend) Name() string { return b.provider }

func (b failClosedBackend) Complete(context.Context, string) (string, error) {
	return "", b.reason
}

func buildEvaluator(cfg *config.Config, backend llm.Backend, store storage.AuditStore, logger *slog.Logger) *guardrail.Evaluator {
	prompt := guardrail.NewPolicyPrompt(guardrail.PromptOptions{
		BrandNames:      cfg.Guardrail.BrandNames,
		CompetitorNames: cfg.Guardrail.CompetitorNames,
	})

	opts := []guardrail.Option{guardrail.WithLogger(logger)}
	if cfg.Backend.Model != "" {
		opts = append(opts, guardrail.WithModelName(cfg.Backend.Model))
	}
	if store != nil {
		opts = append(opts, guardrail.WithAuditStore(store))
	}

	return guardrail.NewEvaluator(prompt, backend, opts...)
}

func startServer(addr string, handler http.Handler, logger *slog.Logger) (*http.Server, error) {
	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("Failed to bind listener", "addr", addr, "error", err)
		return nil, err
	}

	// Log the actual resolved address (useful when addr is :0)
	logger.Info("Server listening", "addr", listener.Addr().String())

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	return httpServer, nil
}

func waitForShutdown(httpServer *http.Server, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	logger.Info("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [input]",
		Short: "Screen one input (or the demo corpus) from the command line",
		Long: `Check runs guardrail evaluations without the HTTP service and prints each
verdict.

With --demo it screens the built-in sample corpus instead of a single input.
With --offline it swaps the configured provider for the scripted mock, so the
plumbing can be exercised without credentials or network access.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}

	cmd.Flags().Bool("demo", false, "Screen the built-in demonstration inputs")
	cmd.Flags().Bool("offline", false, "Use the scripted mock backend")
	cmd.Flags().StringP("log-level", "l", "warn", "Log level (debug, info, warn, error)")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}

	demo, err := cmd.Flags().GetBool("demo")
	if err != nil {
		return fmt.Errorf("failed to get demo flag: %w", err)
	}

	offline, err := cmd.Flags().GetBool("offline")
	if err != nil {
		return fmt.Errorf("failed to get offline flag: %w", err)
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}

	inputs, err := resolveInputs(args, demo)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{Level: logLevel, Pretty: true})
	slog.SetDefault(logger)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	var backend llm.Backend
	if offline {
		backend = llm.NewMockBackend()
	} else {
		backend = buildBackend(cfg.Backend, logger)
	}

	eval := buildEvaluator(cfg, backend, nil, logger)

	out := cmd.OutOrStdout()
	if demo {
		fmt.Fprintln(out, "--- Content Policy Enforcer Demonstration ---")
		fmt.Fprintf(out, "Screening %d sample inputs with the %s backend.\n", len(inputs), backend.Name())
	}

	for i, input := range inputs {
		printOutcome(out, i+1, input, eval.Evaluate(cmd.Context(), input))
	}

	return nil
}

// resolveInputs decides what the check command screens: the positional input,
// or the demonstration corpus.
func resolveInputs(args []string, demo bool) ([]string, error) {
	switch {
	case demo && len(args) > 0:
		return nil, fmt.Errorf("--demo does not take an input argument")
	case demo:
		return guardrail.DemoInputs, nil
	case len(args) == 1:
		return args, nil
	default:
		return nil, fmt.Errorf("provide an input to screen, or --demo for the sample corpus")
	}
}

func printOutcome(out io.Writer, index int, input string, outcome domain.EvaluationOutcome) {
	fmt.Fprintf(out, "\n--- Test Case %d: %q ---\n", index, input)
	if outcome.Allowed {
		fmt.Fprintf(out, "Final Outcome: COMPLIANT. %s\n", outcome.Message)
	} else {
		fmt.Fprintf(out, "Final Outcome: NON-COMPLIANT. %s\n", outcome.Message)
		if len(outcome.TriggeredPolicies) > 0 {
			fmt.Fprintf(out, "Triggered Policies: %s\n", strings.Join(outcome.TriggeredPolicies, ", "))
		}
	}
	fmt.Fprintln(out, strings.Repeat("-", 50))
}
