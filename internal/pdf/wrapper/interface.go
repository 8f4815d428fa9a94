package wrapper

import (
	"context"
	"fmt"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
)

// Parser turns raw PDF bytes into pages with their native size and widget annotations
type Parser interface {
	Parse(ctx context.Context, data []byte) ([]SourcePage, error)
	Library() LibraryType
}

// Stamper opens a document, draws marks onto its pages and serializes the result.
// Implementations must never modify data.
type Stamper interface {
	Stamp(ctx context.Context, data []byte, marks []Mark) ([]byte, error)
	Library() LibraryType
}

// LibraryType represents the underlying PDF library being used
type LibraryType string

const (
	LibraryPDFCPU     LibraryType = "pdfcpu"
	LibraryLedongthuc LibraryType = "ledongthuc"
	LibraryAuto       LibraryType = "auto" // Use the preferred library
)

// PDF field type names as they appear in the FT entry
const (
	FieldTypeText   = "Tx"
	FieldTypeButton = "Btn"
	FieldTypeChoice = "Ch"
	FieldTypeSig    = "Sig"
)

// Field flag bits (Ff) relevant to button fields
const (
	FlagRadio      = 1 << 15
	FlagPushbutton = 1 << 16
)

// SourcePage is one parsed page: its 1-based number, the visible page box size
// in points and the annotations in the order they appear in /Annots.
type SourcePage struct {
	Number      int           `json:"number"`
	Size        geometry.Size `json:"size"`
	Annotations []Annotation  `json:"annotations"`
}

// Annotation is the subset of an annotation dictionary the overlay engine needs.
// FieldType and FieldName are resolved through the /Parent chain.
type Annotation struct {
	Subtype   string           `json:"subtype"`
	Rect      geometry.PDFRect `json:"rect"`
	HasRect   bool             `json:"has_rect"`
	FieldType string           `json:"field_type,omitempty"`
	FieldName string           `json:"field_name,omitempty"`
	Flags     int              `json:"flags,omitempty"`
}

// Color is an RGB color with components in [0,1]
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Clamp limits every component to [0,1]
func (c Color) Clamp() Color {
	return Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}
}

func clamp01(v float64) float64 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 1
	default:
		return v
	}
}

// Mark is a single piece of text drawn onto a page. X and Y are the lower-left
// anchor of the text in PDF points.
type Mark struct {
	Page     int     `json:"page"` // 1-based
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontName string  `json:"font_name"`
	FontSize float64 `json:"font_size"`
	Color    Color   `json:"color"`
}

// Error types for wrapper operations
type WrapperError struct {
	Library LibraryType `json:"library"`
	Op      string      `json:"operation"`
	Err     error       `json:"error"`
}

func (e *WrapperError) Error() string {
	return fmt.Sprintf("PDF %s library error in %s: %v", e.Library, e.Op, e.Err)
}

func (e *WrapperError) Unwrap() error {
	return e.Err
}

// Common error variables
var (
	ErrUnsupportedLibrary = &WrapperError{Op: "factory", Err: fmt.Errorf("unsupported library type")}
	ErrInvalidPage        = &WrapperError{Op: "page", Err: fmt.Errorf("invalid page number")}
	ErrNotSupported       = &WrapperError{Op: "stamp", Err: fmt.Errorf("operation not supported by library")}
)
