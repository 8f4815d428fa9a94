package wrapper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	pdffont "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
)

// maxParentDepth bounds the /Parent walk so cyclic field trees terminate
const maxParentDepth = 32

// PDFCPULibrary implements Parser and Stamper using pdfcpu
type PDFCPULibrary struct {
	config FactoryConfig
}

// NewPDFCPULibrary creates a new pdfcpu library wrapper
func NewPDFCPULibrary(config FactoryConfig) *PDFCPULibrary {
	return &PDFCPULibrary{config: config}
}

// Library returns the library type
func (p *PDFCPULibrary) Library() LibraryType {
	return LibraryPDFCPU
}

// readContext builds a pdfcpu context over data in relaxed validation mode
func (p *PDFCPULibrary) readContext(op string, data []byte) (*model.Context, error) {
	if err := checkSize(p.config, LibraryPDFCPU, op, data); err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      op,
			Err:     fmt.Errorf("failed to read PDF context: %w", err),
		}
	}

	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, &WrapperError{
			Library: LibraryPDFCPU,
			Op:      op,
			Err:     fmt.Errorf("failed to ensure page count: %w", err),
		}
	}

	return pdfCtx, nil
}

// Parse reads every page's visible box and widget annotations
func (p *PDFCPULibrary) Parse(ctx context.Context, data []byte) ([]SourcePage, error) {
	pdfCtx, err := p.readContext("parse", data)
	if err != nil {
		return nil, err
	}

	pages := make([]SourcePage, 0, pdfCtx.PageCount)
	for pageNum := 1; pageNum <= pdfCtx.PageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := p.parsePage(pdfCtx, pageNum)
		if err != nil {
			return nil, &WrapperError{
				Library: LibraryPDFCPU,
				Op:      "parse",
				Err:     fmt.Errorf("page %d: %w", pageNum, err),
			}
		}
		pages = append(pages, page)
	}

	if p.config.DebugMode {
		p.config.Logger.Printf("pdfcpu: parsed %d page(s)", len(pages))
	}

	return pages, nil
}

func (p *PDFCPULibrary) parsePage(pdfCtx *model.Context, pageNum int) (SourcePage, error) {
	pageDict, _, attrs, err := pdfCtx.PageDict(pageNum, false)
	if err != nil {
		return SourcePage{}, fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return SourcePage{}, ErrInvalidPage.Err
	}

	page := SourcePage{Number: pageNum}

	// The crop box defines the visible region; both boxes may be inherited from /Pages.
	if attrs != nil {
		switch {
		case attrs.CropBox != nil:
			page.Size = boxSize(attrs.CropBox)
		case attrs.MediaBox != nil:
			page.Size = boxSize(attrs.MediaBox)
		}
	}

	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return page, nil
	}

	annots, err := pdfCtx.DereferenceArray(annotsObj)
	if err != nil {
		return SourcePage{}, fmt.Errorf("failed to dereference Annots: %w", err)
	}

	for i, obj := range annots {
		annotDict, err := pdfCtx.DereferenceDict(obj)
		if err != nil || annotDict == nil {
			if p.config.DebugMode {
				p.config.Logger.Printf("pdfcpu: page %d: skipping annotation %d: %v", pageNum, i, err)
			}
			continue
		}
		page.Annotations = append(page.Annotations, p.annotation(pdfCtx, annotDict))
	}

	return page, nil
}

func boxSize(r *types.Rectangle) geometry.Size {
	box := geometry.PDFRect{X1: r.LL.X, Y1: r.LL.Y, X2: r.UR.X, Y2: r.UR.Y}.Normalize()
	return geometry.Size{Width: box.Width(), Height: box.Height()}
}

// annotation extracts the rect plus the field attributes, inherited through /Parent
func (p *PDFCPULibrary) annotation(pdfCtx *model.Context, annotDict types.Dict) Annotation {
	a := Annotation{}

	if subtype, found := annotDict.Find("Subtype"); found {
		if name, err := pdfCtx.DereferenceName(subtype, model.V10, nil); err == nil {
			a.Subtype = string(name)
		}
	}

	a.Rect, a.HasRect = p.dictRect(pdfCtx, annotDict, "Rect")

	var names []string
	dict := annotDict
	for depth := 0; dict != nil && depth < maxParentDepth; depth++ {
		if a.FieldType == "" {
			if ftObj, found := dict.Find("FT"); found {
				if ft, err := pdfCtx.DereferenceName(ftObj, model.V10, nil); err == nil {
					a.FieldType = string(ft)
				}
			}
		}
		if a.Flags == 0 {
			if flagsObj, found := dict.Find("Ff"); found {
				if flags, err := pdfCtx.DereferenceInteger(flagsObj); err == nil && flags != nil {
					a.Flags = int(*flags)
				}
			}
		}
		if nameObj, found := dict.Find("T"); found {
			if name, err := pdfCtx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil && name != "" {
				names = append(names, name)
			}
		}

		parentObj, found := dict.Find("Parent")
		if !found {
			break
		}
		parent, err := pdfCtx.DereferenceDict(parentObj)
		if err != nil {
			break
		}
		dict = parent
	}

	a.FieldName = qualifiedName(names)
	return a
}

// dictRect reads a 4-number array entry as a rectangle
func (p *PDFCPULibrary) dictRect(pdfCtx *model.Context, dict types.Dict, key string) (geometry.PDFRect, bool) {
	obj, found := dict.Find(key)
	if !found {
		return geometry.PDFRect{}, false
	}

	arr, err := pdfCtx.DereferenceArray(obj)
	if err != nil || len(arr) != 4 {
		return geometry.PDFRect{}, false
	}

	coords := make([]float64, 4)
	for i, coord := range arr {
		f, err := pdfCtx.DereferenceNumber(coord)
		if err != nil {
			return geometry.PDFRect{}, false
		}
		coords[i] = f
	}

	return geometry.PDFRect{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, true
}

// Stamp draws every mark on top of its page's existing content and serializes
// the document. Text is written with plain text-showing operators, byte for byte.
func (p *PDFCPULibrary) Stamp(ctx context.Context, data []byte, marks []Mark) ([]byte, error) {
	pdfCtx, err := p.readContext("stamp", data)
	if err != nil {
		return nil, err
	}

	byPage := make(map[int][]encodedMark)
	fonts := make(map[string]*types.IndirectRef)
	for _, mark := range marks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if mark.Page < 1 || mark.Page > pdfCtx.PageCount {
			return nil, stampError(fmt.Errorf("%w: %d of %d", ErrInvalidPage.Err, mark.Page, pdfCtx.PageCount))
		}
		if !font.IsCoreFont(mark.FontName) && !font.IsUserFont(mark.FontName) {
			return nil, stampError(fmt.Errorf("unknown font %q", mark.FontName))
		}

		// Encoding records the glyphs a user font needs, so it runs before the font dicts are built.
		byPage[mark.Page] = append(byPage[mark.Page], encodedMark{
			Mark: mark,
			text: encodeText(pdfCtx.XRefTable, mark),
		})
		fonts[mark.FontName] = nil
	}

	for _, name := range sortedKeys(fonts) {
		ir, err := pdffont.EnsureFontDict(pdfCtx.XRefTable, name, "", "", false, nil)
		if err != nil {
			return nil, stampError(fmt.Errorf("failed to create font %s: %w", name, err))
		}
		fonts[name] = ir
	}

	for _, pageNum := range sortedKeys(byPage) {
		if err := p.stampPage(pdfCtx, pageNum, byPage[pageNum], fonts); err != nil {
			return nil, stampError(fmt.Errorf("page %d: %w", pageNum, err))
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pdfCtx, &buf); err != nil {
		return nil, stampError(fmt.Errorf("failed to write PDF: %w", err))
	}

	if p.config.DebugMode {
		p.config.Logger.Printf("pdfcpu: stamped %d mark(s), wrote %d bytes", len(marks), buf.Len())
	}

	return buf.Bytes(), nil
}

// encodedMark is a mark whose text is already an escaped PDF string body
type encodedMark struct {
	Mark
	text string
}

func stampError(err error) error {
	return &WrapperError{Library: LibraryPDFCPU, Op: "stamp", Err: err}
}

// stampPage registers the marks' fonts in the page resources and appends
// their drawing operators after the existing content.
func (p *PDFCPULibrary) stampPage(pdfCtx *model.Context, pageNum int, marks []encodedMark, fonts map[string]*types.IndirectRef) error {
	pageDict, _, attrs, err := pdfCtx.PageDict(pageNum, false)
	if err != nil {
		return fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return ErrInvalidPage.Err
	}

	res := types.NewDict()
	if attrs != nil && attrs.Resources != nil {
		res = attrs.Resources.Clone().(types.Dict)
	}
	fontRes := types.NewDict()
	if obj, found := res.Find("Font"); found {
		existing, err := pdfCtx.DereferenceDict(obj)
		if err != nil {
			return fmt.Errorf("failed to dereference font resources: %w", err)
		}
		if existing != nil {
			fontRes = existing.Clone().(types.Dict)
		}
	}

	ids := make(map[string]string)
	var content bytes.Buffer
	for _, m := range marks {
		id, ok := ids[m.FontName]
		if !ok {
			id = freeResourceName(fontRes, len(ids))
			fontRes.Insert(id, *fonts[m.FontName])
			ids[m.FontName] = id
		}
		writeMark(&content, id, m)
	}

	res.Update("Font", fontRes)
	pageDict.Update("Resources", res)

	return appendOnTop(pdfCtx, pageDict, content.Bytes())
}

// appendOnTop wraps the existing page content in q/Q so its graphics state
// cannot leak into the appended marks.
func appendOnTop(pdfCtx *model.Context, pageDict types.Dict, content []byte) error {
	newStream := func(b []byte) (types.IndirectRef, error) {
		sd, err := pdfCtx.NewStreamDictForBuf(b)
		if err != nil {
			return types.IndirectRef{}, err
		}
		if err := sd.Encode(); err != nil {
			return types.IndirectRef{}, err
		}
		ir, err := pdfCtx.IndRefForNewObject(*sd)
		if err != nil {
			return types.IndirectRef{}, err
		}
		return *ir, nil
	}

	marks, err := newStream(content)
	if err != nil {
		return fmt.Errorf("failed to create content stream: %w", err)
	}

	obj, found := pageDict.Find("Contents")
	if !found || obj == nil {
		pageDict.Update("Contents", marks)
		return nil
	}

	var existing types.Array
	switch o := obj.(type) {
	case types.IndirectRef:
		target, err := pdfCtx.Dereference(o)
		if err != nil {
			return fmt.Errorf("failed to dereference Contents: %w", err)
		}
		if arr, ok := target.(types.Array); ok {
			existing = arr
		} else {
			existing = types.Array{o}
		}
	case types.Array:
		existing = o
	default:
		return fmt.Errorf("corrupt page Contents %T", obj)
	}

	open, err := newStream([]byte("q\n"))
	if err != nil {
		return fmt.Errorf("failed to create content stream: %w", err)
	}
	closing, err := newStream([]byte("\nQ\n"))
	if err != nil {
		return fmt.Errorf("failed to create content stream: %w", err)
	}

	contents := make(types.Array, 0, len(existing)+3)
	contents = append(contents, open)
	contents = append(contents, existing...)
	contents = append(contents, closing, marks)
	pageDict.Update("Contents", contents)

	return nil
}

// writeMark emits one mark translated to its anchor
func writeMark(w io.Writer, fontID string, m encodedMark) {
	size := m.FontSize
	if size < 1 {
		size = 1
	}
	c := m.Color.Clamp()
	fmt.Fprintf(w, "q 1 0 0 1 %.2f %.2f cm BT /%s %.2f Tf %.3f %.3f %.3f rg 0 0 Td (%s) Tj ET Q\n",
		m.X, m.Y, fontID, size, c.R, c.G, c.B, m.text)
}

// encodeText converts a mark's text to the bytes its font expects. Standard
// text fonts use WinAnsiEncoding; user fonts are addressed by glyph id.
func encodeText(xRefTable *model.XRefTable, mark Mark) string {
	s := mark.Text
	if font.IsCoreFont(mark.FontName) && mark.FontName != "Symbol" && mark.FontName != "ZapfDingbats" {
		s = winAnsi(s)
	}
	return model.PrepBytes(xRefTable, s, mark.FontName, true, false, false)
}

// winAnsi maps s to Windows-1252 bytes, replacing runes it cannot represent with '?'
func winAnsi(s string) string {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b = append(b, c)
	}
	return string(b)
}

func freeResourceName(d types.Dict, start int) string {
	for i := start; ; i++ {
		name := fmt.Sprintf("FOvl%d", i)
		if _, found := d.Find(name); !found {
			return name
		}
	}
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// qualifiedName joins partial field names collected leaf-first into "parent.child"
func qualifiedName(leafFirst []string) string {
	if len(leafFirst) == 0 {
		return ""
	}
	parts := make([]string, len(leafFirst))
	for i, name := range leafFirst {
		parts[len(leafFirst)-1-i] = name
	}
	return strings.Join(parts, ".")
}
