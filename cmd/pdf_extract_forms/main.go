package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/a3tai/pdf-form-overlay/internal/pdf"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/wrapper"
)

// FieldInfo is one extracted field in both coordinate spaces
type FieldInfo struct {
	Page    int                      `json:"page"`
	Kind    extraction.FormFieldType `json:"kind"`
	Index   int                      `json:"index"`
	Name    string                   `json:"name,omitempty"`
	Rect    geometry.Rect            `json:"rect"`
	PDFRect geometry.PDFRect         `json:"pdf_rect"`
}

// PageInfo describes one rendered page
type PageInfo struct {
	Index    int               `json:"index"`
	Native   geometry.Size     `json:"native"`
	Viewport geometry.Viewport `json:"viewport"`
}

// FormExtractionResult represents the complete result of form extraction
type FormExtractionResult struct {
	FilePath   string      `json:"file_path"`
	Success    bool        `json:"success"`
	Parser     string      `json:"parser"`
	Scale      float64     `json:"scale"`
	Pages      []PageInfo  `json:"pages"`
	FieldCount int         `json:"field_count"`
	Fields     []FieldInfo `json:"fields"`
	Error      string      `json:"error,omitempty"`
}

type options struct {
	format      string
	scale       float64
	parser      string
	maxFileSize int64
	diagnostic  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdf_extract_forms", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json")
	fs.Float64Var(&opts.scale, "scale", 1.5, "Render scale used for pixel coordinates")
	fs.StringVar(&opts.parser, "parser", string(wrapper.LibraryPDFCPU), "Parser backend: pdfcpu or ledongthuc")
	fs.Int64Var(&opts.maxFileSize, "maxfilesize", 100*1024*1024, "Maximum PDF file size in bytes")
	fs.BoolVar(&opts.diagnostic, "diagnostic", false, "Log parser and render diagnostics to stderr")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "Error: PDF file path required\n\n")
		printUsage(stderr, fs)
		return 1
	}
	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: unsupported output format: %s\n", opts.format)
		return 1
	}

	result := extractForms(context.Background(), fs.Arg(0), opts, stderr)

	var err error
	if opts.format == "json" {
		err = outputJSON(stdout, result)
	} else {
		err = outputText(stdout, result)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}
	if !result.Success {
		return 1
	}
	return 0
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "PDF Extract Forms - list the text fields and checkboxes of a PDF in page pixel space")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_extract_forms [OPTIONS] <pdf_file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdf_extract_forms document.pdf")
	fmt.Fprintln(w, "  pdf_extract_forms -format json -scale 2 forms/w2.pdf")
}

// extractForms never fails; errors are reported in the result
func extractForms(ctx context.Context, path string, opts options, stderr io.Writer) *FormExtractionResult {
	result := &FormExtractionResult{FilePath: path, Parser: opts.parser, Scale: opts.scale}
	if abs, err := filepath.Abs(path); err == nil {
		result.FilePath = abs
	}

	logger := log.New(io.Discard, "", 0)
	if opts.diagnostic {
		logger = log.New(stderr, "[diagnostic] ", log.Lmicroseconds)
	}

	data, err := pdf.NewValidator(opts.maxFileSize).ValidateFile(result.FilePath)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	factory := wrapper.NewPDFLibraryFactoryWithConfig(wrapper.FactoryConfig{
		MaxFileSize: opts.maxFileSize,
		DebugMode:   opts.diagnostic,
		Logger:      logger,
	})
	parser, err := factory.Parser(wrapper.LibraryType(opts.parser))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	cache := render.NewCache(render.Config{Parser: parser, Logger: logger, Debug: opts.diagnostic})
	pages, err := cache.RenderAll(ctx, data, opts.scale)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Fields = []FieldInfo{}
	for _, page := range pages {
		result.Pages = append(result.Pages, PageInfo{Index: page.Index, Native: page.Native, Viewport: page.Viewport})
		for _, field := range page.Fields {
			_, index := field.Position()
			info := FieldInfo{Page: page.Index, Kind: field.Kind(), Index: index, Rect: field.Bounds()}
			switch f := field.(type) {
			case *extraction.TextField:
				info.Name = f.Name
			case *extraction.Checkbox:
				info.Name = f.Name
			}
			if r, err := geometry.ToPDF(field.Bounds(), page.Native, page.Viewport); err == nil {
				info.PDFRect = r
			}
			result.Fields = append(result.Fields, info)
		}
	}
	result.FieldCount = len(result.Fields)
	result.Success = true
	return result
}

func outputJSON(w io.Writer, result *FormExtractionResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(w io.Writer, result *FormExtractionResult) error {
	if !result.Success {
		_, err := fmt.Fprintf(w, "❌ Form extraction failed: %s\n", result.Error)
		return err
	}

	if result.FieldCount == 0 {
		_, err := fmt.Fprintf(w, "⚠️  No text fields or checkboxes detected in %d page(s)\n", len(result.Pages))
		return err
	}

	fmt.Fprintf(w, "✅ Extracted %d field(s) from %d page(s) at scale %.2f\n\n", result.FieldCount, len(result.Pages), result.Scale)

	page := -1
	for _, f := range result.Fields {
		if f.Page != page {
			page = f.Page
			vp := result.Pages[page].Viewport
			fmt.Fprintf(w, "Page %d (%.0fx%.0f px)\n", page, vp.Width, vp.Height)
		}
		name := f.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "  [%s %d] %s\n", f.Kind, f.Index, name)
		fmt.Fprintf(w, "    Pixels: %s\n", f.Rect)
		fmt.Fprintf(w, "    PDF: (%.1f, %.1f) to (%.1f, %.1f)\n", f.PDFRect.X1, f.PDFRect.Y1, f.PDFRect.X2, f.PDFRect.Y2)
	}
	return nil
}
