package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/contact-extractor/internal/contact"
	"github.com/zombor/contact-extractor/internal/export"
	"github.com/zombor/contact-extractor/internal/logging"
	"github.com/zombor/contact-extractor/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port        int
	dbPath      string
	exportsPath string
	scannerType string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
	timeout     time.Duration
	authUser    string
	authPass    string
	logLevel    string
	logFormat   string
	imagePath   string
	outPath     string
	copy        bool
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	var cfg config
	fs := ff.NewFlagSet("contact-extractor")
	fs.IntVar(&cfg.port, 0, "port", 8080, "HTTP server port")
	fs.StringVar(&cfg.dbPath, 0, "db", "contact-extractor.db", "Extraction journal file path (empty disables the journal)")
	fs.StringVar(&cfg.exportsPath, 0, "exports", "", "Directory for CSV exports in --image mode")
	fs.StringVar(&cfg.scannerType, 0, "scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
	fs.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.geminiModel, 0, "gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
	fs.StringVar(&cfg.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.ollamaModel, 0, "ollama-model", "llama3.2-vision", "Ollama vision model name (e.g., llama3.2-vision, llava, qwen2.5vl)")
	fs.DurationVar(&cfg.timeout, 0, "timeout", scanning.DefaultTimeout, "Time limit for one extraction call")
	fs.StringVar(&cfg.authUser, 0, "auth-user", "", "Basic auth username (optional)")
	fs.StringVar(&cfg.authPass, 0, "auth-pass", "", "Basic auth password (optional)")
	fs.StringVar(&cfg.logLevel, 0, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.logFormat, 0, "log-format", "text", "Log format: text or json")
	fs.StringVar(&cfg.imagePath, 0, "image", "", "Extract from this image file and exit instead of serving")
	fs.StringVar(&cfg.outPath, 0, "out", "", "CSV output file in --image mode (default stdout)")
	fs.BoolVar(&cfg.copy, 0, "copy", "Copy the CSV to the system clipboard in --image mode")
	_ = fs.StringLong("config", "", "Config file (one 'flag value' per line)")
	showVersion := fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CONTACT_EXTRACTOR"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logging.Init(os.Stderr, logging.Config{Level: cfg.logLevel, Format: cfg.logFormat})

	if err := run(cfg); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}
	defer scanner.Close()

	var journal contact.Journal
	if cfg.dbPath != "" {
		slog.Info("Initializing extraction journal...", "path", cfg.dbPath)
		db, err := contact.NewBoltDB(cfg.dbPath)
		if err != nil {
			return fmt.Errorf("initializing journal: %w", err)
		}
		defer db.Close()
		journal = db
	}

	service := contact.NewService(scanner, journal)

	if cfg.imagePath != "" {
		return extractOnce(cfg, service)
	}
	return serve(cfg, service)
}

// newScanner builds the extraction client for the configured provider
func newScanner(cfg config) (scanning.Scanner, error) {
	var model scanning.Model
	switch cfg.scannerType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		gemini, err := scanning.NewGemini(apiKey, cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini: %w", err)
		}
		model = gemini
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		ollama, err := scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Ollama: %w", err)
		}
		model = ollama
	default:
		return nil, fmt.Errorf("invalid scanner type %q: want gemini or ollama", cfg.scannerType)
	}
	return scanning.NewExtractor(model, cfg.timeout), nil
}

// extractOnce runs a single extraction and writes the CSV
func extractOnce(cfg config, service *contact.Service) error {
	data, err := os.ReadFile(cfg.imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filename := filepath.Base(cfg.imagePath)
	contentType := scanning.NormalizeMediaType("", data)
	snap, err := service.Extract(ctx, filename, data, contentType)
	if err != nil {
		return fmt.Errorf("extracting contacts: %w", err)
	}
	if snap.Status != contact.StatusSuccess {
		return errors.New(snap.Message)
	}
	slog.Info(snap.Message, "count", len(snap.Contacts))

	switch {
	case cfg.outPath != "":
		dir, name := filepath.Split(cfg.outPath)
		if dir == "" {
			dir = "."
		}
		if err := writeExport(dir, name, snap.Contacts); err != nil {
			return err
		}
	case cfg.exportsPath != "":
		if err := writeExport(cfg.exportsPath, export.DefaultFilename, snap.Contacts); err != nil {
			return err
		}
	case !cfg.copy:
		fmt.Println(export.ToCSV(snap.Contacts))
	}

	if cfg.copy {
		result, err := export.Copy(export.SystemClipboard{}, snap.Contacts)
		if err != nil {
			return fmt.Errorf("%s: %w", result, err)
		}
		slog.Info(result.String())
	}
	return nil
}

func writeExport(dir, filename string, contacts []scanning.Contact) error {
	store, err := export.NewLocalStorage(dir)
	if err != nil {
		return fmt.Errorf("initializing export storage: %w", err)
	}
	if _, err := export.Download(store, contacts, filename); err != nil {
		return fmt.Errorf("saving CSV: %w", err)
	}
	return nil
}

// serve runs the HTTP server until interrupted
func serve(cfg config, service *contact.Service) error {
	basicAuth := contact.BasicAuth{
		Username: cfg.authUser,
		Password: cfg.authPass,
	}
	server := contact.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", cfg.port)
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if cfg.authUser != "" || cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
	}

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// No handler can start an upload after Shutdown returns
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("Server shutdown incomplete", "error", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("Server stopped with error", "error", err)
	}
	service.Close()
	return nil
}
