// Package main is the vitt CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/cli"
	"github.com/vittmoney/vitt/internal/config"
	"github.com/vittmoney/vitt/internal/importer"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/server"
	"github.com/vittmoney/vitt/internal/storage"
	"github.com/vittmoney/vitt/internal/watcher"
	"github.com/vittmoney/vitt/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/vitt/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence, and a missing default file yields the built-in defaults.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is normal; keys may come from the real environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "build":
		runBuild()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("vitt version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and creates the logger and components for commands that touch storage.
func setup(configPath string, debugFlag bool, cliLogger bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	var logger *zap.Logger
	if cliLogger {
		logger, err = utils.NewCLILogger(debugMode)
	} else {
		logger, err = utils.NewLogger(debugMode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug, false)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := components.ServerDeps()
	if len(cfg.Import.Directories) > 0 {
		inbox := watcher.NewInbox(cfg.Import.Directories, cfg.Import.Extensions,
			components.Importer, components.Builder, watcher.WithLogger(logger))
		if err := inbox.Start(ctx); err != nil {
			logger.Fatal("Failed to start import inbox", zap.Error(err))
		}
		defer inbox.Stop()
		go inbox.SyncExisting()
		deps.Inbox = inbox
		logger.Info("import inbox watching", zap.Strings("directories", inbox.Directories()))
	}

	srv := server.NewServer(deps, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves flags that appear after positional arguments to the front so that
// flag.Parse sees them ("vitt ask where did it go --user u1").
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args so multi-word questions work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	switch s {
	case "text", "json":
		return cli.ParseOutputFormat(s)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return cli.OutputText
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use local storage)")
	userID := fs.String("user", "", "user id (required)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := joinArgs(fs.Args())
	if *userID == "" || question == "" {
		fmt.Println("Usage: vitt ask --user <id> [flags] <question>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	if *serverURL != "" {
		resp, err := newAPIClient(*serverURL).Verdict(*userID, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteVerdict(os.Stdout, resp, format)
		return
	}

	_, logger, components := setup(*configPath, false, true)
	defer logger.Sync()
	defer components.Close()
	resp, err := components.Verdict.Answer(context.Background(), *userID, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteVerdict(os.Stdout, resp, format)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = build locally)")
	userID := fs.String("user", "", "user id")
	all := fs.Bool("all", false, "rebuild every user (local only)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	if *userID == "" && !*all {
		fmt.Println("Usage: vitt build --user <id> | --all [flags]")
		os.Exit(1)
	}

	if *serverURL != "" && !*all {
		buildID, err := newAPIClient(*serverURL).Build(*userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteBuild(os.Stdout, *userID, 0, buildID, format)
		return
	}

	_, logger, components := setup(*configPath, false, true)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	if *all {
		n, err := components.Builder.BuildAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Build failed after %d users: %v\n", n, err)
			os.Exit(1)
		}
		fmt.Printf("Rebuilt %d knowledge base(s)\n", n)
		return
	}
	kb, err := components.Builder.Build(ctx, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteBuild(os.Stdout, *userID, kb.Len(), "", format)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	userID := fs.String("user", "", "user id (required)")
	build := fs.Bool("build", true, "rebuild the knowledge base after importing")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if *userID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: vitt import --user <id> [flags] <statement-file-or-directory>")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false, true)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	files, err := statementFiles(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	total := 0
	for _, path := range files {
		res, err := components.Importer.ImportFile(ctx, *userID, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		switch {
		case res.Unchanged:
			fmt.Printf("%s: unchanged, skipped\n", path)
		default:
			fmt.Printf("%s: %d imported, %d already present, %d skipped\n", path, res.Imported, res.Duplicates, res.Skipped)
		}
		total += res.Imported
	}
	fmt.Printf("Imported %d expense(s) from %d file(s)\n", total, len(files))

	if *build && total > 0 {
		kb, err := components.Builder.Build(ctx, *userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Built knowledge base for %s (%d facts)\n", *userID, kb.Len())
	}
}

// statementFiles returns path itself, or the importable files directly inside it.
func statementFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && importer.Supported(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use local storage)")
	userID := fs.String("user", "", "show the knowledge base of this user")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	if *serverURL != "" {
		api := newAPIClient(*serverURL)
		if *userID != "" {
			st, err := api.Knowledge(*userID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
				os.Exit(1)
			}
			_ = cli.WriteKnowledgeStatus(os.Stdout, st, format)
			return
		}
		status, err := api.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteStatus(os.Stdout, status, format)
		return
	}

	cfg, logger, components := setup(*configPath, false, true)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	if *userID != "" {
		st, err := knowledge.Status(ctx, components.Knowledge, *userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteKnowledgeStatus(os.Stdout, st, format)
		return
	}
	status, err := localStatus(ctx, cfg, components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteStatus(os.Stdout, status, format)
}

// localStatus mirrors GET /api/v1/status for direct storage access.
func localStatus(ctx context.Context, cfg *config.Config, c *Components) (map[string]interface{}, error) {
	expenses, err := c.Expenses.Count(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("count expenses: %w", err)
	}
	users, err := c.Expenses.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	imported, err := c.Ledger.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count imports: %w", err)
	}
	status := map[string]interface{}{
		"expenses":       expenses,
		"users":          len(users),
		"imported_files": imported,
		"config": map[string]interface{}{
			"embedding_provider": cfg.Embedding.Provider,
			"knowledge_backend":  cfg.Storage.KnowledgeBackend,
			"top_k":              cfg.Knowledge.TopK,
			"llm_providers":      c.Generator.Providers(),
			"database_path":      cfg.Storage.DatabasePath,
			"knowledge_dir":      cfg.Storage.KnowledgeDir,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.KnowledgeDir); err == nil {
		status["disk_usage_bytes"] = diskBytes
		status["disk_usage"] = utils.FormatBytes(diskBytes)
	}
	return status, nil
}

func printUsage() {
	fmt.Println(`vitt - Spending verdicts grounded in your own expenses

Usage:
  vitt server [flags]                  Start the HTTP server (and the import inbox)
  vitt ask --user <id> <question>      Ask a question about your spending
  vitt build --user <id> | --all       Rebuild knowledge base(s)
  vitt import --user <id> <path>       Import a CSV/XLSX statement or a directory of them
  vitt status [flags]                  Show storage and knowledge base status
  vitt version                         Show version
  vitt help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/vitt/config.yaml)
  --debug            Enable debug logging

Ask / Build / Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --user string      User id
  --output string    Output format: text or json (default: text)

Import Flags:
  --config string    Config file path
  --user string      User id
  --build            Rebuild the knowledge base afterwards (default: true)

Environment:
  A .env file in the working directory is loaded first. Provider keys are read from the
  variables named by api_key_env (HF_API_KEY, GEMINI_API_KEY by default).

Examples:
  vitt server
  vitt ask --user u1 "Am I spending too much on food?"
  vitt ask --user u1 --output json where does my money go
  vitt build --user u1
  vitt import --user u1 ~/Downloads/statement.xlsx
  vitt status --user u1`)
}
