package wrapper

import (
	"fmt"
	"log"
)

// PDFLibraryFactory creates parser and stamper instances for a configured library
type PDFLibraryFactory struct {
	config FactoryConfig
}

// FactoryConfig contains configuration options for the factory
type FactoryConfig struct {
	// PreferredLibrary is used when LibraryAuto is requested
	PreferredLibrary LibraryType `json:"preferred_library"`

	// MaxFileSize limits the size of documents handed to a library (in bytes)
	MaxFileSize int64 `json:"max_file_size"`

	// DebugMode enables debug logging for library operations
	DebugMode bool `json:"debug_mode"`

	Logger *log.Logger `json:"-"`
}

// NewPDFLibraryFactory creates a new factory with default configuration
func NewPDFLibraryFactory() *PDFLibraryFactory {
	return &PDFLibraryFactory{
		config: FactoryConfig{
			PreferredLibrary: LibraryPDFCPU,
			MaxFileSize:      100 * 1024 * 1024, // 100MB
			DebugMode:        false,
			Logger:           log.Default(),
		},
	}
}

// NewPDFLibraryFactoryWithConfig creates a factory with custom configuration
func NewPDFLibraryFactoryWithConfig(config FactoryConfig) *PDFLibraryFactory {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.PreferredLibrary == "" || config.PreferredLibrary == LibraryAuto {
		config.PreferredLibrary = LibraryPDFCPU
	}
	return &PDFLibraryFactory{config: config}
}

// Parser instantiates the parser for the given library type
func (f *PDFLibraryFactory) Parser(libType LibraryType) (Parser, error) {
	switch libType {
	case LibraryPDFCPU:
		return NewPDFCPULibrary(f.config), nil
	case LibraryLedongthuc:
		return NewLedongthucLibrary(f.config), nil
	case LibraryAuto:
		return f.Parser(f.config.PreferredLibrary)
	default:
		return nil, &WrapperError{
			Library: libType,
			Op:      "create",
			Err:     fmt.Errorf("unknown library type: %s", libType),
		}
	}
}

// Stamper instantiates the stamper for the given library type. Only pdfcpu can
// write documents; ledongthuc is read-only.
func (f *PDFLibraryFactory) Stamper(libType LibraryType) (Stamper, error) {
	switch libType {
	case LibraryPDFCPU, LibraryAuto:
		return NewPDFCPULibrary(f.config), nil
	case LibraryLedongthuc:
		return nil, &WrapperError{Library: libType, Op: "create", Err: ErrNotSupported.Err}
	default:
		return nil, &WrapperError{
			Library: libType,
			Op:      "create",
			Err:     fmt.Errorf("unknown library type: %s", libType),
		}
	}
}

// GetConfig returns the current factory configuration
func (f *PDFLibraryFactory) GetConfig() FactoryConfig {
	return f.config
}

// GetSupportedLibraries returns a list of all supported library types
func (f *PDFLibraryFactory) GetSupportedLibraries() []LibraryType {
	return []LibraryType{
		LibraryPDFCPU,
		LibraryLedongthuc,
		LibraryAuto,
	}
}

// ValidateLibraryType checks if a library type is supported
func (f *PDFLibraryFactory) ValidateLibraryType(libType LibraryType) error {
	for _, supported := range f.GetSupportedLibraries() {
		if libType == supported {
			return nil
		}
	}
	return &WrapperError{
		Library: libType,
		Op:      "validate",
		Err:     fmt.Errorf("unsupported library type: %s", libType),
	}
}

// checkSize rejects documents larger than the configured limit
func checkSize(config FactoryConfig, lib LibraryType, op string, data []byte) error {
	if len(data) == 0 {
		return &WrapperError{Library: lib, Op: op, Err: fmt.Errorf("document is empty")}
	}
	if config.MaxFileSize > 0 && int64(len(data)) > config.MaxFileSize {
		return &WrapperError{
			Library: lib,
			Op:      op,
			Err:     fmt.Errorf("document size %d exceeds maximum %d", len(data), config.MaxFileSize),
		}
	}
	return nil
}
