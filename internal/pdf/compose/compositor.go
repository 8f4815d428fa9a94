// Package compose projects edited overlay values back into PDF space and draws
// them onto a fresh copy of the original document.
package compose

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/wrapper"
)

// Values supplies the edited state by page index and per-kind field index
type Values interface {
	Text(page, index int) string
	Checked(page, index int) bool
}

// Options controls how values are drawn
type Options struct {
	FontName     string        `json:"font_name"`
	FontSize     float64       `json:"font_size"`
	TextPadding  float64       `json:"text_padding"`
	TextColor    wrapper.Color `json:"text_color"`
	Offsets      OffsetTable   `json:"offsets"`
	CheckGlyph   string        `json:"check_glyph"`
	CheckColor   wrapper.Color `json:"check_color"`
	CheckMaxSize float64       `json:"check_max_size"`

	// FallbackFont and FallbackGlyph draw the check when the embedded font is unavailable.
	FallbackFont  string `json:"fallback_font"`
	FallbackGlyph string `json:"fallback_glyph"`
}

// DefaultOptions returns Helvetica 11pt black text and a green check mark
func DefaultOptions() Options {
	return Options{
		FontName:      "Helvetica",
		FontSize:      11,
		TextPadding:   2,
		Offsets:       DefaultTextOffsets,
		CheckGlyph:    "✓",
		CheckColor:    wrapper.Color{R: 0, G: 0.5, B: 0},
		CheckMaxSize:  35,
		FallbackFont:  "ZapfDingbats",
		FallbackGlyph: "4",
	}
}

// Result is the output of one composition
type Result struct {
	Bytes    []byte                     `json:"-"`
	Marks    []wrapper.Mark             `json:"marks"`
	Warnings *pdferrors.ErrorCollection `json:"warnings"`
}

// Compositor draws overlay values onto documents
type Compositor struct {
	stamper wrapper.Stamper
	fonts   FontProvider
	opts    Options
	logger  *log.Logger
}

// NewCompositor creates a compositor. fonts may be nil, in which case checks
// are always drawn with the fallback font.
func NewCompositor(stamper wrapper.Stamper, fonts FontProvider, opts Options, logger *log.Logger) *Compositor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if len(opts.Offsets) == 0 {
		opts.Offsets = DefaultTextOffsets
	}
	return &Compositor{stamper: stamper, fonts: fonts, opts: opts, logger: logger}
}

// Options returns the compositor's drawing options
func (c *Compositor) Options() Options {
	return c.opts
}

// Compose draws values for pages onto a fresh copy of original. original is
// never modified. Failures are CompositionErrors; font problems only produce
// warnings.
func (c *Compositor) Compose(ctx context.Context, original []byte, pages []*render.Page, values Values) (*Result, error) {
	if c.stamper == nil {
		return nil, pdferrors.Composition("no stamper configured", nil)
	}
	if len(original) == 0 {
		return nil, pdferrors.Composition("no document loaded", nil)
	}

	warnings := pdferrors.NewErrorCollection()
	marks, err := c.Plan(ctx, pages, values, warnings)
	if err != nil {
		return nil, err
	}

	out, err := c.stamper.Stamp(ctx, original, marks)
	if err != nil {
		return nil, pdferrors.Composition("failed to write document", err)
	}

	return &Result{Bytes: out, Marks: marks, Warnings: warnings}, nil
}

// Plan computes the marks Compose would draw
func (c *Compositor) Plan(ctx context.Context, pages []*render.Page, values Values, warnings *pdferrors.ErrorCollection) ([]wrapper.Mark, error) {
	var marks []wrapper.Mark
	checkFont, checkGlyph := "", ""

	for _, page := range pages {
		for _, field := range page.Fields {
			switch f := field.(type) {
			case *extraction.TextField:
				value := values.Text(page.Index, f.Index)
				if value == "" {
					continue
				}
				r, err := geometry.ToPDF(f.Rect, page.Native, page.Viewport)
				if err != nil {
					return nil, pdferrors.Composition("failed to project text field", err).WithPage(page.Index)
				}
				marks = append(marks, wrapper.Mark{
					Page:     page.Index + 1,
					Text:     value,
					X:        r.X1 + c.opts.TextPadding,
					Y:        r.Y2 - c.opts.Offsets.Shift(f.Rect.Height),
					FontName: c.opts.FontName,
					FontSize: c.opts.FontSize,
					Color:    c.opts.TextColor,
				})

			case *extraction.Checkbox:
				if !values.Checked(page.Index, f.Index) {
					continue
				}
				r, err := geometry.ToPDF(f.Rect, page.Native, page.Viewport)
				if err != nil {
					return nil, pdferrors.Composition("failed to project checkbox", err).WithPage(page.Index)
				}
				if checkFont == "" {
					checkFont, checkGlyph = c.checkFont(ctx, warnings)
				}
				size := r.Height()
				if c.opts.CheckMaxSize > 0 {
					size = math.Min(size, c.opts.CheckMaxSize)
				}
				marks = append(marks, wrapper.Mark{
					Page:     page.Index + 1,
					Text:     checkGlyph,
					X:        r.X1,
					Y:        r.Y1,
					FontName: checkFont,
					FontSize: size,
					Color:    c.opts.CheckColor,
				})

			default:
				return nil, pdferrors.Composition(fmt.Sprintf("unsupported field type %T", field), nil).WithPage(page.Index)
			}
		}
	}

	return marks, nil
}

// checkFont resolves the font for check marks, falling back to the built-in
// dingbat font when the embedded one cannot be used.
func (c *Compositor) checkFont(ctx context.Context, warnings *pdferrors.ErrorCollection) (string, string) {
	if c.fonts == nil {
		return c.opts.FallbackFont, c.opts.FallbackGlyph
	}

	name, err := c.fonts.Font(ctx)
	if err == nil && name != "" {
		return name, c.opts.CheckGlyph
	}

	fontErr := pdferrors.FontEmbed("check mark font unavailable, using "+c.opts.FallbackFont, err)
	c.logger.Printf("Warning: %v", fontErr)
	if warnings != nil {
		warnings.Add(fontErr)
	}
	return c.opts.FallbackFont, c.opts.FallbackGlyph
}
