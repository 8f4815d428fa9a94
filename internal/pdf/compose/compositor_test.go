package compose

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/pdftest"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/wrapper"
)

type recordingStamper struct {
	calls int
	marks []wrapper.Mark
	err   error
}

func (s *recordingStamper) Stamp(ctx context.Context, data []byte, marks []wrapper.Mark) ([]byte, error) {
	s.calls++
	s.marks = marks
	if s.err != nil {
		return nil, s.err
	}
	out := append([]byte("stamped:"), data...)
	return out, nil
}

func (s *recordingStamper) Library() wrapper.LibraryType { return "recording" }

type fontFunc func(ctx context.Context) (string, error)

func (f fontFunc) Font(ctx context.Context) (string, error) { return f(ctx) }

type values struct {
	texts  map[[2]int]string
	checks map[[2]int]bool
}

func (v values) Text(page, index int) string  { return v.texts[[2]int{page, index}] }
func (v values) Checked(page, index int) bool { return v.checks[[2]int{page, index}] }

var (
	letter   = geometry.Size{Width: 612, Height: 792}
	viewport = geometry.Viewport{Width: 918, Height: 1188, Scale: 1.5}
	textRect = geometry.Rect{X: 50, Y: 50, Width: 120, Height: 20}
	boxRect  = geometry.Rect{X: 50, Y: 90, Width: 16, Height: 16}
)

func onePage() []*render.Page {
	return []*render.Page{{
		Index:    0,
		Native:   letter,
		Viewport: viewport,
		Fields: []extraction.Field{
			&extraction.TextField{Page: 0, Index: 0, Name: "Name", Rect: textRect},
			&extraction.Checkbox{Page: 0, Index: 0, Name: "Agree", Rect: boxRect},
		},
	}}
}

func TestCompose_EndToEnd(t *testing.T) {
	stamper := &recordingStamper{}
	fonts := fontFunc(func(ctx context.Context) (string, error) { return "DejaVuSans", nil })
	c := NewCompositor(stamper, fonts, DefaultOptions(), nil)

	original := []byte("%PDF-1.7 original")
	snapshot := append([]byte(nil), original...)

	res, err := c.Compose(context.Background(), original, onePage(), values{
		texts:  map[[2]int]string{{0, 0}: "Alice"},
		checks: map[[2]int]bool{{0, 0}: true},
	})
	require.NoError(t, err)
	assert.Equal(t, snapshot, original)
	assert.True(t, bytes.HasPrefix(res.Bytes, []byte("stamped:")))
	require.Len(t, stamper.marks, 2)
	assert.Equal(t, stamper.marks, res.Marks)

	textPDF, err := geometry.ToPDF(textRect, letter, viewport)
	require.NoError(t, err)
	boxPDF, err := geometry.ToPDF(boxRect, letter, viewport)
	require.NoError(t, err)

	text := stamper.marks[0]
	assert.Equal(t, 1, text.Page)
	assert.Equal(t, "Alice", text.Text)
	assert.Equal(t, "Helvetica", text.FontName)
	assert.Equal(t, 11.0, text.FontSize)
	assert.Equal(t, wrapper.Color{}, text.Color)
	assert.InDelta(t, textPDF.X1+2, text.X, geometry.Tolerance)
	assert.InDelta(t, textPDF.Y2-12, text.Y, 1e-6)
	assert.True(t, textPDF.ContainsPoint(text.X, text.Y), "text anchor %v,%v outside %+v", text.X, text.Y, textPDF)

	check := stamper.marks[1]
	assert.Equal(t, "✓", check.Text)
	assert.Equal(t, "DejaVuSans", check.FontName)
	assert.Equal(t, wrapper.Color{G: 0.5}, check.Color)
	assert.InDelta(t, boxPDF.Height(), check.FontSize, 1e-9)
	assert.True(t, boxPDF.ContainsPoint(check.X, check.Y), "check anchor outside %+v", boxPDF)

	errs, warns := res.Warnings.Count()
	assert.Zero(t, errs)
	assert.Zero(t, warns)
}

func TestCompose_DrawsIntoFieldRects(t *testing.T) {
	stamper := wrapper.NewPDFCPULibrary(wrapper.NewPDFLibraryFactory().GetConfig())
	c := NewCompositor(stamper, nil, DefaultOptions(), nil)

	original := pdftest.Build(pdftest.Letter())
	res, err := c.Compose(context.Background(), original, onePage(), values{
		texts:  map[[2]int]string{{0, 0}: "Alice 100%"},
		checks: map[[2]int]bool{{0, 0}: true},
	})
	require.NoError(t, err)

	textPDF, err := geometry.ToPDF(textRect, letter, viewport)
	require.NoError(t, err)
	boxPDF, err := geometry.ToPDF(boxRect, letter, viewport)
	require.NoError(t, err)

	runs, err := pdftest.DrawnText(res.Bytes, 1)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	text := runs[0]
	assert.Equal(t, "Alice 100%", text.Text)
	assert.Equal(t, "Helvetica", text.Font)
	assert.InDelta(t, textPDF.X1+2, text.X, 0.01)
	assert.InDelta(t, textPDF.Y2-12, text.Y, 0.01)
	assert.True(t, textPDF.ContainsPoint(text.X, text.Y), "text drawn at %v,%v outside %+v", text.X, text.Y, textPDF)

	check := runs[1]
	assert.Equal(t, "4", check.Text)
	assert.Equal(t, "ZapfDingbats", check.Font)
	assert.InDelta(t, boxPDF.Height(), check.Size, 0.01)
	assert.True(t, boxPDF.ContainsPoint(check.X, check.Y), "check drawn at %v,%v outside %+v", check.X, check.Y, boxPDF)
}

func TestCompose_EmptyValuesDrawNothing(t *testing.T) {
	stamper := &recordingStamper{}
	c := NewCompositor(stamper, nil, DefaultOptions(), nil)

	res, err := c.Compose(context.Background(), []byte("%PDF-"), onePage(), values{
		texts:  map[[2]int]string{{0, 0}: ""},
		checks: map[[2]int]bool{{0, 0}: false},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stamper.calls)
	assert.Empty(t, stamper.marks)
	assert.Empty(t, res.Marks)
}

func TestCompose_FontFallback(t *testing.T) {
	tests := []struct {
		name      string
		fonts     FontProvider
		wantWarns int
	}{
		{"provider_error", fontFunc(func(ctx context.Context) (string, error) {
			return "", pdferrors.FontEmbed("missing", os.ErrNotExist)
		}), 1},
		{"no_provider", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamper := &recordingStamper{}
			c := NewCompositor(stamper, tt.fonts, DefaultOptions(), nil)

			res, err := c.Compose(context.Background(), []byte("%PDF-"), onePage(), values{
				checks: map[[2]int]bool{{0, 0}: true},
			})
			require.NoError(t, err, "font problems are never surfaced")
			require.Len(t, stamper.marks, 1)
			assert.Equal(t, "ZapfDingbats", stamper.marks[0].FontName)
			assert.Equal(t, "4", stamper.marks[0].Text)

			_, warns := res.Warnings.Count()
			assert.Equal(t, tt.wantWarns, warns)
			for _, w := range res.Warnings.Warnings {
				assert.Equal(t, pdferrors.ErrorTypeFontEmbed, w.Type)
			}
		})
	}
}

func TestCompose_CheckSizeCapped(t *testing.T) {
	stamper := &recordingStamper{}
	opts := DefaultOptions()
	opts.CheckMaxSize = 5
	c := NewCompositor(stamper, nil, opts, nil)

	_, err := c.Compose(context.Background(), []byte("%PDF-"), onePage(), values{checks: map[[2]int]bool{{0, 0}: true}})
	require.NoError(t, err)
	require.Len(t, stamper.marks, 1)
	assert.Equal(t, 5.0, stamper.marks[0].FontSize)
}

func TestCompose_Failures(t *testing.T) {
	degenerate := onePage()
	degenerate[0].Native = geometry.Size{}

	tests := []struct {
		name    string
		stamper wrapper.Stamper
		data    []byte
		pages   []*render.Page
	}{
		{"stamper_error", &recordingStamper{err: errors.New("disk full")}, []byte("%PDF-"), onePage()},
		{"no_stamper", nil, []byte("%PDF-"), onePage()},
		{"no_document", &recordingStamper{}, nil, onePage()},
		{"degenerate_page", &recordingStamper{}, []byte("%PDF-"), degenerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositor(tt.stamper, nil, DefaultOptions(), nil)
			res, err := c.Compose(context.Background(), tt.data, tt.pages, values{
				texts: map[[2]int]string{{0, 0}: "x"},
			})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, pdferrors.ErrorTypeComposition, pdferrors.TypeOf(err))
		})
	}
}

func TestCompose_MultiPageNumbering(t *testing.T) {
	pages := onePage()
	second := *pages[0]
	second.Index = 1
	second.Fields = []extraction.Field{&extraction.TextField{Page: 1, Index: 0, Rect: geometry.Rect{X: 10, Y: 10, Width: 60, Height: 45}}}
	pages = append(pages, &second)

	stamper := &recordingStamper{}
	c := NewCompositor(stamper, nil, DefaultOptions(), nil)
	_, err := c.Compose(context.Background(), []byte("%PDF-"), pages, values{texts: map[[2]int]string{{1, 0}: "Bob"}})
	require.NoError(t, err)

	require.Len(t, stamper.marks, 1)
	assert.Equal(t, 2, stamper.marks[0].Page)
	r, err := geometry.ToPDF(second.Fields[0].Bounds(), letter, viewport)
	require.NoError(t, err)
	assert.InDelta(t, r.Y2-23, stamper.marks[0].Y, 1e-6, "45px field uses the 40-50 offset step")
}

func TestFileFontProvider_Errors(t *testing.T) {
	dir := t.TempDir()
	otf := filepath.Join(dir, "font.otf")
	require.NoError(t, os.WriteFile(otf, []byte("x"), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{"empty_path", ""},
		{"missing", filepath.Join(dir, "nope.ttf")},
		{"directory", dir},
		{"wrong_extension", otf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFileFontProvider(tt.path)
			_, err := p.Font(context.Background())
			require.Error(t, err)
			assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeFontEmbed))

			_, again := p.Font(context.Background())
			assert.Equal(t, err, again, "result is memoized")
		})
	}
}
