// Todochat is a conversational task-management backend.
//
// It exposes a chat endpoint backed by a completion provider that maps
// natural-language requests onto task operations, plus direct REST CRUD
// for programmatic clients. Configuration is loaded from a single YAML
// file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	todochat init [dir]        Write a starter config.yaml
//	todochat serve             Start the API server
//	todochat ask <question>    Ask a single question (for testing)
//	todochat version           Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rubii22/chatbot-for-todoapp/internal/agent"
	"github.com/rubii22/chatbot-for-todoapp/internal/api"
	"github.com/rubii22/chatbot-for-todoapp/internal/auth"
	"github.com/rubii22/chatbot-for-todoapp/internal/buildinfo"
	"github.com/rubii22/chatbot-for-todoapp/internal/config"
	"github.com/rubii22/chatbot-for-todoapp/internal/llm"
	"github.com/rubii22/chatbot-for-todoapp/internal/store"
	"github.com/rubii22/chatbot-for-todoapp/internal/tools"
	"github.com/rubii22/chatbot-for-todoapp/internal/usage"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run], keeping
// os.Exit and os.Args out of the application logic so the full lifecycle
// can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the todochat command. Arguments are
// parsed by hand: the flag package relies on package-level globals, which
// interfere with parallel tests, and our argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case command == "":
			command = args[i]
		default:
			cmdArgs = append(cmdArgs, args[i])
		}
	}

	switch command {
	case "", "help":
		return printUsage(stdout)

	case "version":
		data, err := json.MarshalIndent(buildinfo.Info(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(data))
		return nil

	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)

	case "serve":
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return serve(ctx, stdout, cfg)

	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: todochat ask <question>")
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return ask(ctx, stdout, cfg, strings.Join(cmdArgs, " "))

	default:
		return fmt.Errorf("unknown command %q (run 'todochat help')", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, `todochat — conversational task-management backend

Usage:
  todochat init [dir]                     Write a starter config.yaml
  todochat [-config path] serve           Start the API server
  todochat [-config path] ask <question>  Ask a single question (for testing)
  todochat version                        Print version and build information`)
	return nil
}

// loadConfig discovers and loads the YAML config, falling back to defaults
// when no file exists and none was requested explicitly.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger builds the process logger from the configured level.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})), nil
}

// buildAgent wires the store, registry, provider client, usage ledger,
// and agent loop from config. The caller owns the returned store's
// lifetime; the ledger shares its database handle.
func buildAgent(cfg *config.Config, logger *slog.Logger) (*store.Store, *tools.Registry, *agent.Agent, *usage.Store, error) {
	st, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	registry := tools.NewRegistry(st, logger)

	if cfg.OpenRouter.APIKey == "" {
		st.Close()
		return nil, nil, nil, nil, fmt.Errorf("openrouter.api_key is required")
	}
	client := llm.NewOpenRouterClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.BaseURL, logger)

	ledger, err := usage.New(st.DB())
	if err != nil {
		st.Close()
		return nil, nil, nil, nil, fmt.Errorf("open usage ledger: %w", err)
	}

	ag := agent.New(st, client, registry, cfg.OpenRouter.Model, logger)
	ag.SetUsage(ledger)

	return st, registry, ag, ledger, nil
}

// serve runs the API server until the context is cancelled or a signal
// arrives.
func serve(ctx context.Context, stdout io.Writer, cfg *config.Config) error {
	logger, err := newLogger(stdout, cfg)
	if err != nil {
		return err
	}
	logger.Info("starting", "build", buildinfo.String())

	st, registry, ag, ledger, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	authn, err := auth.New(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, ag, st, registry, authn, logger)
	server.SetUsage(ledger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}

// ask processes a single message as a throwaway dev user and prints the
// reply. Useful for smoke-testing provider connectivity.
func ask(ctx context.Context, stdout io.Writer, cfg *config.Config, question string) error {
	logger, err := newLogger(io.Discard, cfg)
	if err != nil {
		return err
	}

	st, _, ag, _, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := ag.ProcessMessage(ctx, "dev-user", question, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, result.Response)
	return nil
}
