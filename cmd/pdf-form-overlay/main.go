package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/a3tai/pdf-form-overlay/internal/config"
	"github.com/a3tai/pdf-form-overlay/internal/mcp"
	"github.com/a3tai/pdf-form-overlay/internal/pdf"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/compose"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/wrapper"
	"github.com/a3tai/pdf-form-overlay/internal/session"
	"github.com/a3tai/pdf-form-overlay/internal/storage"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const storageTimeout = 30 * time.Second

// setupLogging configures the standard logger for the server mode and returns it
func setupLogging(cfg *config.Config) *log.Logger {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol in stdio mode
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	return log.Default()
}

// newStore picks the remote storage client when a URL is configured and the
// local file slot otherwise
func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.UsesRemoteStorage() {
		return storage.NewHTTPStore(cfg.StorageURL, &http.Client{Timeout: storageTimeout}, cfg.MaxFileSize)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.MaxFileSize)
}

// buildServer wires storage, rendering, composition and the session behind
// the MCP server. The returned func releases the session.
func buildServer(cfg *config.Config, logger *log.Logger) (*mcp.Server, func(), error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage: %w", err)
	}

	downloads, err := storage.NewDownloadSink(cfg.DownloadDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	factory := wrapper.NewPDFLibraryFactoryWithConfig(wrapper.FactoryConfig{
		PreferredLibrary: wrapper.LibraryType(cfg.Parser),
		MaxFileSize:      cfg.MaxFileSize,
		DebugMode:        cfg.IsDebug(),
		Logger:           logger,
	})
	parser, err := factory.Parser(wrapper.LibraryType(cfg.Parser))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create parser: %w", err)
	}
	// Only pdfcpu writes documents, whichever library parses them
	stamper, err := factory.Stamper(wrapper.LibraryPDFCPU)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stamper: %w", err)
	}

	offsets, err := cfg.Offsets()
	if err != nil {
		return nil, nil, err
	}
	opts := compose.DefaultOptions()
	opts.Offsets = offsets

	var fonts compose.FontProvider
	if cfg.FontPath != "" {
		fonts = compose.NewFileFontProvider(cfg.FontPath)
	}

	ctrl := session.New(session.Config{
		Storage: store,
		Cache: render.NewCache(render.Config{
			Parser:  parser,
			Workers: cfg.Workers,
			Logger:  logger,
			Debug:   cfg.IsDebug(),
		}),
		Compositor: compose.NewCompositor(stamper, fonts, opts, logger),
		Validator:  pdf.NewValidator(cfg.MaxFileSize),
		Downloads:  downloads,
		Scale:      cfg.Scale,
		Logger:     logger,
		Debug:      cfg.IsDebug(),
	})

	server, err := mcp.NewServer(cfg, mcp.Services{
		Session:   ctrl,
		Storage:   store,
		Downloads: downloads,
		Logger:    logger,
	})
	if err != nil {
		ctrl.Close()
		return nil, nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server, ctrl.Close, nil
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode runs until stdin is closed; the parent process controls our lifecycle
func runStdioMode(ctx context.Context, server *mcp.Server) {
	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func isVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

func main() {
	if isVersionFlag(os.Args[1:]) {
		printVersion()
		return
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	server, closeSession, err := buildServer(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closeSession()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Form Overlay\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
