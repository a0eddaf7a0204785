// Quill is a character chat service.
//
// It assembles layered prompts from character documents (card, preset,
// world book, author's note), sends them to a model provider, and
// persists conversations. Configuration is loaded from a single YAML
// file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	quill init [dir]         Create a workspace with an example config
//	quill serve              Start the API server
//	quill ask [flags] <msg>  Run a single turn against document files
//	quill ping               Check provider connectivity
//	quill version            Print version and build information
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

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/api"
	"github.com/quillchat/quill/internal/assembly"
	"github.com/quillchat/quill/internal/buildinfo"
	"github.com/quillchat/quill/internal/chat"
	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/session"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the quill command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of the server.
//   - stdout and stderr receive all program output.
//   - args is os.Args[1:]. We parse these manually rather than using
//     the flag package to avoid global state that interferes with
//     parallel tests.
//
// run returns nil on clean shutdown and a non-nil error for any failure.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "ping":
		return runPing(ctx, stdout, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Quill - Character Chat Service")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: quill [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [dir]   Create a workspace with an example config")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  ask          Run a single turn against document files")
	fmt.Fprintln(w, "  ping         Check provider connectivity")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Ask flags:")
	fmt.Fprintln(w, "  -card <path>      Character card JSON (required)")
	fmt.Fprintln(w, "  -preset <path>    Preset JSON (required)")
	fmt.Fprintln(w, "  -book <path>      World book JSON (required)")
	fmt.Fprintln(w, "  -note <path>      Author note JSON (optional)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/quill/config.yaml, /etc/quill/config.yaml")
	return nil
}

// runServe starts the HTTP API server and blocks until shutdown.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Quill", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
	)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	store, err := session.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return fmt.Errorf("open session database %s: %w", cfg.DatabasePath(), err)
	}
	defer store.Close()
	logger.Info("session database opened", "path", cfg.DatabasePath())

	client, err := createClient(cfg, logger)
	if err != nil {
		return err
	}

	engine := chat.New(store, client, cfg.Chat.HistoryWindow, logger)
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, engine, logger)

	// SIGINT/SIGTERM cancellation flows through the same ctx used by
	// all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Quill stopped")
	return nil
}

// runAsk handles "quill ask": a single conversation turn against
// document files, using an ephemeral in-memory store. Useful for
// testing characters without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	var cardPath, presetPath, bookPath, notePath string
	var words []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-card" && i+1 < len(args):
			cardPath = args[i+1]
			i++
		case args[i] == "-preset" && i+1 < len(args):
			presetPath = args[i+1]
			i++
		case args[i] == "-book" && i+1 < len(args):
			bookPath = args[i+1]
			i++
		case args[i] == "-note" && i+1 < len(args):
			notePath = args[i+1]
			i++
		default:
			words = append(words, args[i])
		}
	}
	if cardPath == "" || presetPath == "" || bookPath == "" {
		return fmt.Errorf("usage: quill ask -card <path> -preset <path> -book <path> [-note <path>] <message>")
	}
	if len(words) == 0 {
		return fmt.Errorf("ask: no message given")
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	card, err := os.ReadFile(cardPath)
	if err != nil {
		return fmt.Errorf("read card: %w", err)
	}
	preset, err := os.ReadFile(presetPath)
	if err != nil {
		return fmt.Errorf("read preset: %w", err)
	}
	book, err := os.ReadFile(bookPath)
	if err != nil {
		return fmt.Errorf("read book: %w", err)
	}
	var note []byte
	if notePath != "" {
		if note, err = os.ReadFile(notePath); err != nil {
			return fmt.Errorf("read note: %w", err)
		}
	}

	// Nothing to persist for a one-shot question.
	store, err := session.Open(":memory:", logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	client, err := createClient(cfg, logger)
	if err != nil {
		return err
	}

	engine := chat.New(store, client, cfg.Chat.HistoryWindow, logger)
	convID := uuid.NewString()
	reply, err := engine.Send(ctx, chat.SendRequest{
		ConversationID: convID,
		UserMessage:    strings.Join(words, " "),
		Status:         chat.StatusNew,
		Card:           card,
		Preset:         preset,
		Book:           book,
		Note:           note,
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	logger.Debug("token usage", "input", reply.InputTokens, "output", reply.OutputTokens)

	// Print the whole exchange, greeting included, with the configured
	// speaker labels.
	history, err := store.History(convID)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	seq := &assembly.Sequence{
		Blocks:    []assembly.Block{{Slot: true, Turns: history}},
		SlotIndex: 0,
	}
	labels := assembly.Labels{User: cfg.Chat.UserLabel, Model: cfg.Chat.ModelLabel}
	fmt.Fprintln(stdout, assembly.Flatten(seq, labels))
	return nil
}

// runPing checks that the configured provider is reachable.
func runPing(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := createClient(cfg, logger)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Provider.Name, err)
	}

	fmt.Fprintf(stdout, "%s is reachable\n", cfg.Provider.Name)
	return nil
}

// newLogger creates a structured text logger writing to w at the given
// level. All log output goes through slog; this helper standardizes
// the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// createClient builds the model provider client named in the config.
func createClient(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	switch cfg.Provider.Name {
	case "gemini", "":
		if cfg.Provider.APIKey == "" {
			return nil, fmt.Errorf("provider.api_key is required")
		}
		return llm.NewGeminiClient(cfg.Provider.APIKey, cfg.Provider.Model, logger), nil
	case "openai":
		return llm.NewOpenAIClient(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.Model, logger)
	case "anthropic":
		return llm.NewAnthropicClient(cfg.Provider.APIKey, cfg.Provider.Model, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: gemini, openai, anthropic)", cfg.Provider.Name)
	}
}
