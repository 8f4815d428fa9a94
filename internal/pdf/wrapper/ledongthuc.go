package wrapper

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
)

// LedongthucLibrary implements Parser using the ledongthuc/pdf library.
// It is read-only and serves as the secondary parser and load sanity check.
type LedongthucLibrary struct {
	config FactoryConfig
}

// NewLedongthucLibrary creates a new ledongthuc library wrapper
func NewLedongthucLibrary(config FactoryConfig) *LedongthucLibrary {
	return &LedongthucLibrary{config: config}
}

// Library returns the library type
func (l *LedongthucLibrary) Library() LibraryType {
	return LibraryLedongthuc
}

// Parse reads every page's visible box and widget annotations
func (l *LedongthucLibrary) Parse(ctx context.Context, data []byte) (pages []SourcePage, err error) {
	if err := checkSize(l.config, LibraryLedongthuc, "parse", data); err != nil {
		return nil, err
	}

	// ledongthuc panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &WrapperError{
				Library: LibraryLedongthuc,
				Op:      "parse",
				Err:     fmt.Errorf("panic while parsing PDF: %v", r),
			}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &WrapperError{
			Library: LibraryLedongthuc,
			Op:      "parse",
			Err:     fmt.Errorf("failed to open PDF: %w", err),
		}
	}

	numPages := reader.NumPage()
	pages = make([]SourcePage, 0, numPages)
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			return nil, &WrapperError{
				Library: LibraryLedongthuc,
				Op:      "parse",
				Err:     fmt.Errorf("page %d: %w", pageNum, ErrInvalidPage.Err),
			}
		}

		pages = append(pages, l.parsePage(page, pageNum))
	}

	if l.config.DebugMode {
		l.config.Logger.Printf("ledongthuc: parsed %d page(s)", len(pages))
	}

	return pages, nil
}

func (l *LedongthucLibrary) parsePage(page pdf.Page, pageNum int) SourcePage {
	sp := SourcePage{Number: pageNum}

	box, ok := valueRect(inherited(page.V, "CropBox"))
	if !ok {
		box, ok = valueRect(inherited(page.V, "MediaBox"))
	}
	if ok {
		box = box.Normalize()
		sp.Size = geometry.Size{Width: box.Width(), Height: box.Height()}
	}

	annots := page.V.Key("Annots")
	for i := 0; i < annots.Len(); i++ {
		annot := annots.Index(i)
		if annot.Kind() != pdf.Dict {
			if l.config.DebugMode {
				l.config.Logger.Printf("ledongthuc: page %d: skipping annotation %d of kind %v", pageNum, i, annot.Kind())
			}
			continue
		}
		sp.Annotations = append(sp.Annotations, valueAnnotation(annot))
	}

	return sp
}

func valueAnnotation(annot pdf.Value) Annotation {
	a := Annotation{Subtype: annot.Key("Subtype").Name()}
	a.Rect, a.HasRect = valueRect(annot.Key("Rect"))

	var names []string
	v := annot
	for depth := 0; v.Kind() == pdf.Dict && depth < maxParentDepth; depth++ {
		if a.FieldType == "" {
			a.FieldType = v.Key("FT").Name()
		}
		if a.Flags == 0 {
			if ff := v.Key("Ff"); ff.Kind() == pdf.Integer {
				a.Flags = int(ff.Int64())
			}
		}
		if name := v.Key("T").Text(); name != "" {
			names = append(names, name)
		}
		v = v.Key("Parent")
	}

	a.FieldName = qualifiedName(names)
	return a
}

// inherited looks key up on the page and then its page tree ancestors
func inherited(page pdf.Value, key string) pdf.Value {
	v := page
	for depth := 0; !v.IsNull() && depth < maxParentDepth; depth++ {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func valueRect(v pdf.Value) (geometry.PDFRect, bool) {
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return geometry.PDFRect{}, false
	}
	var coords [4]float64
	for i := range coords {
		c := v.Index(i)
		if c.Kind() != pdf.Integer && c.Kind() != pdf.Real {
			return geometry.PDFRect{}, false
		}
		coords[i] = c.Float64()
	}
	return geometry.PDFRect{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, true
}
