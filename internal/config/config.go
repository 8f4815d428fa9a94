package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/compose"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Parser backends
	ParserPDFCPU     = "pdfcpu"
	ParserLedongthuc = "ledongthuc"

	// Default values
	DefaultPort        = 3000
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultStorage     = "storage/example.pdf"
	DefaultScale       = 1.5
	DefaultFontPath    = "fonts/DejaVuSans.ttf"
	DefaultCORSOrigin  = "http://localhost:3001"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PDF_FORM"
)

// Config holds all configuration for the form overlay server
type Config struct {
	// Server configuration
	Mode string `validate:"oneof=stdio server"`
	Host string
	Port int `validate:"min=0,max=65535"`

	// Storage configuration
	StoragePath string `validate:"required"`
	StorageURL  string `validate:"omitempty,url"`
	DownloadDir string `validate:"required"`
	CORSOrigin  string

	// Rendering and composition
	Scale       float64 `validate:"gt=0,lte=10"`
	FontPath    string
	Parser      string `validate:"oneof=pdfcpu ledongthuc"`
	Workers     int    `validate:"min=0,max=64"`
	TextOffsets string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string `validate:"oneof=debug info warn error"`
	MaxFileSize int64  `validate:"gt=0"` // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:        ModeStdio, // Default to stdio mode for MCP compatibility
		Host:        DefaultHost,
		Port:        DefaultPort,
		StoragePath: DefaultStorage,
		DownloadDir: currentDir,
		CORSOrigin:  DefaultCORSOrigin,
		Scale:       DefaultScale,
		FontPath:    DefaultFontPath,
		Parser:      ParserPDFCPU,
		TextOffsets: compose.DefaultTextOffsets.String(),
		Version:     "1.0.0",
		ServerName:  "pdf-form-overlay",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	for _, p := range []*string{&cfg.StoragePath, &cfg.DownloadDir} {
		if *p == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*p); err == nil {
			*p = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var keys = []string{
	"mode", "host", "port", "loglevel", "maxfilesize",
	"storage", "storageurl", "downloaddir", "corsorigin",
	"scale", "fontpath", "parser", "workers", "textoffsets",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("storage", cfg.StoragePath)
	viper.SetDefault("storageurl", cfg.StorageURL)
	viper.SetDefault("downloaddir", cfg.DownloadDir)
	viper.SetDefault("corsorigin", cfg.CORSOrigin)
	viper.SetDefault("scale", cfg.Scale)
	viper.SetDefault("fontpath", cfg.FontPath)
	viper.SetDefault("parser", cfg.Parser)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("textoffsets", cfg.TextOffsets)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("storage", cfg.StoragePath, "Path of the single stored PDF slot")
	pflag.String("storageurl", cfg.StorageURL, "Base URL of a remote storage service (empty uses the local slot)")
	pflag.String("downloaddir", cfg.DownloadDir, "Directory that receives downloaded PDFs and exports")
	pflag.String("corsorigin", cfg.CORSOrigin, "Origin allowed to call the storage routes (server mode only)")
	pflag.Float64("scale", cfg.Scale, "Render scale applied to every page")
	pflag.String("fontpath", cfg.FontPath, "TrueType font used for check marks")
	pflag.String("parser", cfg.Parser, "PDF parser backend (pdfcpu, ledongthuc)")
	pflag.Int("workers", cfg.Workers, "Concurrent page renders (0 uses all CPUs)")
	pflag.String("textoffsets", cfg.TextOffsets, "Text baseline offsets as height:shift pairs")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range keys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Form Overlay - edit PDF form fields through an overlay and write the values back\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                           "+
			"# stdio mode, storage/example.pdf (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --storage=/srv/forms/current.pdf          "+
			"# stdio mode with a custom slot\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server                             # storage routes and MCP over HTTP\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --storageurl=http://localhost:3000        # use a remote storage service\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_MODE          Server mode\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_HOST          Server host\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_PORT          Server port\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_STORAGE       Stored PDF path\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_STORAGEURL    Remote storage URL\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_DOWNLOADDIR   Download directory\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_SCALE         Render scale\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_PARSER        Parser backend\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_LOGLEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_MAXFILESIZE   Maximum file size\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.StoragePath = viper.GetString("storage")
	cfg.StorageURL = viper.GetString("storageurl")
	cfg.DownloadDir = viper.GetString("downloaddir")
	cfg.CORSOrigin = viper.GetString("corsorigin")
	cfg.Scale = viper.GetFloat64("scale")
	cfg.FontPath = viper.GetString("fontpath")
	cfg.Parser = viper.GetString("parser")
	cfg.Workers = viper.GetInt("workers")
	cfg.TextOffsets = viper.GetString("textoffsets")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && c.Port < 1 {
		return errors.New("port must be between 1 and 65535")
	}

	if c.StorageURL != "" {
		u, err := url.Parse(c.StorageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("storage URL must be http or https: %s", c.StorageURL)
		}
	}

	if _, err := c.Offsets(); err != nil {
		return err
	}

	// Check if download directory exists, create if it doesn't
	if _, err := os.Stat(c.DownloadDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DownloadDir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create download directory %s: %w", c.DownloadDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access download directory %s: %w", c.DownloadDir, err)
	}

	return nil
}

// Offsets parses the configured text offset table
func (c *Config) Offsets() (compose.OffsetTable, error) {
	if c.TextOffsets == "" {
		return compose.DefaultTextOffsets, nil
	}
	table, err := compose.ParseOffsetTable(c.TextOffsets)
	if err != nil {
		return nil, fmt.Errorf("invalid text offsets %q: %w", c.TextOffsets, err)
	}
	return table, nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// UsesRemoteStorage reports whether documents come from a storage service
func (c *Config) UsesRemoteStorage() bool {
	return c.StorageURL != ""
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Storage: %s, StorageURL: %s, DownloadDir: %s, "+
		"Parser: %s, Scale: %.2f, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.StoragePath, c.StorageURL, c.DownloadDir,
		c.Parser, c.Scale, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
