package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// PDFError is a categorized failure raised by the overlay engine. Every error that
// crosses a component boundary (storage, render, compose) is a PDFError so callers
// can decide whether to surface it to the user or recover locally.
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	PageIndex   int       `json:"page_index"`
	Err         error     `json:"-"`
}

// ErrorType represents the categories of overlay engine failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeLoad
	ErrorTypeRender
	ErrorTypeGeometry
	ErrorTypeFontEmbed
	ErrorTypeComposition
	ErrorTypeSaveTransport
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
)

// noPage marks errors that are not tied to a page.
const noPage = -1

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := e.Message
	if e.PageIndex != noPage {
		msg = fmt.Sprintf("page %d: %s", e.PageIndex, msg)
	}
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type.String(), msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), msg)
}

// Unwrap exposes the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeLoad:
		return "LOAD"
	case ErrorTypeRender:
		return "RENDER"
	case ErrorTypeGeometry:
		return "GEOMETRY"
	case ErrorTypeFontEmbed:
		return "FONT_EMBED"
	case ErrorTypeComposition:
		return "COMPOSITION"
	case ErrorTypeSaveTransport:
		return "SAVE_TRANSPORT"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeFontEmbed:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether the engine handles the error without user involvement.
// Only font embedding is recovered locally; everything else is retried by the user.
func (et ErrorType) IsRecoverable() bool {
	return et == ErrorTypeFontEmbed
}

// IsSurfaced reports whether the error is shown to the user as an alert
func (et ErrorType) IsSurfaced() bool {
	switch et {
	case ErrorTypeLoad, ErrorTypeRender, ErrorTypeComposition, ErrorTypeSaveTransport:
		return true
	default:
		return false
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
		PageIndex:   noPage,
	}
}

// WrapError wraps a standard error as a PDFError, keeping it reachable via errors.As/Is
func WrapError(errorType ErrorType, message string, err error) *PDFError {
	e := NewPDFError(errorType, message)
	e.Err = err
	return e
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithPage adds the zero-based page index to an existing PDFError
func (e *PDFError) WithPage(pageIndex int) *PDFError {
	e.PageIndex = pageIndex
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// Surfaced reports whether this error should be presented to the user
func (e *PDFError) Surfaced() bool {
	return e.Type.IsSurfaced()
}

// Convenience constructors for the taxonomy.

func Load(message string, err error) *PDFError {
	return WrapError(ErrorTypeLoad, message, err)
}

func Render(message string, err error) *PDFError {
	return WrapError(ErrorTypeRender, message, err)
}

func Geometry(message string) *PDFError {
	return NewPDFError(ErrorTypeGeometry, message)
}

func FontEmbed(message string, err error) *PDFError {
	return WrapError(ErrorTypeFontEmbed, message, err)
}

func Composition(message string, err error) *PDFError {
	return WrapError(ErrorTypeComposition, message, err)
}

func SaveTransport(message string, err error) *PDFError {
	return WrapError(ErrorTypeSaveTransport, message, err)
}

// IsType reports whether any error in err's chain is a PDFError of the given type
func IsType(err error, errorType ErrorType) bool {
	var pdfErr *PDFError
	for err != nil {
		if !stderrors.As(err, &pdfErr) {
			return false
		}
		if pdfErr.Type == errorType {
			return true
		}
		err = pdfErr.Err
	}
	return false
}

// TypeOf returns the type of the outermost PDFError in err's chain
func TypeOf(err error) ErrorType {
	var pdfErr *PDFError
	if stderrors.As(err, &pdfErr) {
		return pdfErr.Type
	}
	return ErrorTypeUnknown
}

// ErrorCollection gathers non-fatal problems encountered during an operation
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err.GetSeverity() == SeverityWarning || err.GetSeverity() == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
