package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/pdf-form-overlay/internal/config"
	"github.com/a3tai/pdf-form-overlay/internal/descriptions"
	"github.com/a3tai/pdf-form-overlay/internal/session"
	"github.com/a3tai/pdf-form-overlay/internal/storage"
)

// EndpointPath is where the MCP endpoint is mounted in server mode
const EndpointPath = "/mcp"

const shutdownTimeout = 10 * time.Second

// Services are the components the tools operate on
type Services struct {
	Session *session.Controller
	// Storage is served over HTTP in server mode; nil disables the storage routes
	Storage   storage.Store
	Downloads *storage.DownloadSink
	Logger    *log.Logger
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	session   *session.Controller
	storage   storage.Store
	downloads *storage.DownloadSink
	logger    *log.Logger
	mcpServer *server.MCPServer
	tools     []string

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, services Services) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if services.Session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if services.Logger == nil {
		services.Logger = log.New(io.Discard, "", 0)
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		session:   services.Session,
		storage:   services.Storage,
		downloads: services.Downloads,
		logger:    services.Logger,
		mcpServer: mcpServer,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

func (s *Server) addTool(name string, handler server.ToolHandlerFunc, opts ...mcp.ToolOption) {
	opts = append([]mcp.ToolOption{mcp.WithDescription(descriptions.GetToolDescription(name))}, opts...)
	s.mcpServer.AddTool(mcp.NewTool(name, opts...), handler)
	s.tools = append(s.tools, name)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	pageArg := mcp.WithNumber("page",
		mcp.Required(),
		mcp.Description("Zero-based page index"),
	)
	indexArg := func(kind string) mcp.ToolOption {
		return mcp.WithNumber("index",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Zero-based %s index on the page, as reported by pdf_form_fields", kind)),
		)
	}

	s.addTool("pdf_form_load", s.handleLoad,
		mcp.WithBoolean("reload",
			mcp.Description("Replace any load in progress instead of failing"),
		),
	)
	s.addTool("pdf_form_unload", s.handleUnload)
	s.addTool("pdf_form_fields", s.handleFields,
		mcp.WithNumber("page",
			mcp.Description("Only list this zero-based page (default: all pages)"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'text' (default) or 'json'"),
		),
	)

	s.addTool("pdf_form_click", s.handleClick,
		pageArg,
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Horizontal position in displayed pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Vertical position in displayed pixels, from the top")),
		mcp.WithNumber("display_width",
			mcp.Description("Width the page was displayed at (default: preview size)"),
		),
		mcp.WithNumber("display_height",
			mcp.Description("Height the page was displayed at (default: preview size)"),
		),
		mcp.WithString("text",
			mcp.Description("Value to enter when the click lands on a text field"),
		),
	)
	s.addTool("pdf_form_set_text", s.handleSetText,
		pageArg,
		indexArg("text field"),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("New value; empty clears the field"),
		),
	)
	s.addTool("pdf_form_toggle_checkbox", s.handleToggleCheckbox,
		pageArg,
		indexArg("checkbox"),
	)
	s.addTool("pdf_form_preview", s.handlePreview, pageArg)

	s.addTool("pdf_form_save", s.handleSave)
	s.addTool("pdf_form_download", s.handleDownload,
		mcp.WithString("name",
			mcp.Description("File name inside the download directory (default: edited.pdf)"),
		),
	)
	s.addTool("pdf_form_export", s.handleExport,
		mcp.WithString("name",
			mcp.Description("Workbook name inside the download directory (default: form-fields.xlsx)"),
		),
	)

	s.addTool("pdf_server_info", s.handleServerInfo)
}

// Tools returns the names of the registered tools in registration order
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Handler returns the HTTP surface used in server mode: the storage routes
// and the MCP endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.storage != nil {
		storage.Register(mux, s.storage, storage.HandlerConfig{
			CORSOrigin:    s.config.CORSOrigin,
			MaxUploadSize: s.config.MaxFileSize,
			Logger:        s.logger,
		})
	}
	mux.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(EndpointPath)))
	return mux
}

// Run starts the server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(ctx context.Context) error {
	if s.config.IsDebug() {
		s.logger.Printf("Starting PDF form server in stdio mode")
		s.logger.Printf("Storage: %s", s.storageLocation())
	}

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(s.logger)
	if err := stdio.Listen(ctx, s.stdin, s.stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the storage routes and the MCP endpoint over HTTP
func (s *Server) runServerMode(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          s.logger,
	}

	s.logger.Printf("PDF form server listening on http://%s (MCP endpoint %s)", ln.Addr(), EndpointPath)
	if s.storage != nil {
		s.logger.Printf("Storage routes %s and %s serving %s", storage.LoadPath, storage.SavePath, s.storageLocation())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) storageLocation() string {
	if s.config.UsesRemoteStorage() {
		return s.config.StorageURL
	}
	return s.config.StoragePath
}
