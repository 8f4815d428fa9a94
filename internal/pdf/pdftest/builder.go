// Package pdftest builds small, well-formed AcroForm documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Widget is one form field widget. When Parent is set the field type and flags
// are placed on a parent field dictionary and the widget inherits them.
type Widget struct {
	Name      string
	Parent    string
	FieldType string // Tx, Btn, Ch
	Flags     int
	Rect      [4]float64
	NoRect    bool
}

// Page describes a page's media box, optional crop box and its widgets
type Page struct {
	Width   float64
	Height  float64
	CropBox *[4]float64
	Widgets []Widget
}

// Letter returns a US Letter page carrying the given widgets
func Letter(widgets ...Widget) Page {
	return Page{Width: 612, Height: 792, Widgets: widgets}
}

// Text is a text field widget
func Text(name string, x1, y1, x2, y2 float64) Widget {
	return Widget{Name: name, FieldType: "Tx", Rect: [4]float64{x1, y1, x2, y2}}
}

// Checkbox is a check box button widget
func Checkbox(name string, x1, y1, x2, y2 float64) Widget {
	return Widget{Name: name, FieldType: "Btn", Rect: [4]float64{x1, y1, x2, y2}}
}

// Document is a page tree with attributes on the root /Pages node that every
// page inherits unless it overrides them.
type Document struct {
	CropBox *[4]float64
	Pages   []Page
}

// Build serializes pages into a PDF with a valid cross-reference table
func Build(pages ...Page) []byte {
	return Document{Pages: pages}.Build()
}

// Build serializes the document
func (d Document) Build() []byte {
	pages := d.Pages
	b := &builder{}

	catalog := b.reserve()
	pagesObj := b.reserve()

	var kids, fields []string
	for _, p := range pages {
		pageObj := b.reserve()
		contentObj := b.reserve()
		kids = append(kids, ref(pageObj))

		var annots []string
		for _, w := range p.Widgets {
			widgetObj := b.reserve()
			annots = append(annots, ref(widgetObj))

			dict := []string{"/Type /Annot", "/Subtype /Widget", "/F 4", "/P " + ref(pageObj)}
			if !w.NoRect {
				dict = append(dict, "/Rect "+array(w.Rect[:]))
			}

			fieldDict := []string{"/T " + literal(w.Name)}
			if w.FieldType != "" {
				fieldDict = append(fieldDict, "/FT /"+w.FieldType)
			}
			if w.Flags != 0 {
				fieldDict = append(fieldDict, fmt.Sprintf("/Ff %d", w.Flags))
			}

			if w.Parent != "" {
				parentObj := b.reserve()
				fields = append(fields, ref(parentObj))
				parent := append([]string{"/T " + literal(w.Parent), "/Kids [" + ref(widgetObj) + "]"}, fieldDict[1:]...)
				b.set(parentObj, "<< "+strings.Join(parent, " ")+" >>")
				dict = append(dict, "/T "+literal(w.Name), "/Parent "+ref(parentObj))
			} else {
				fields = append(fields, ref(widgetObj))
				dict = append(dict, fieldDict...)
			}
			b.set(widgetObj, "<< "+strings.Join(dict, " ")+" >>")
		}

		pageDict := []string{
			"/Type /Page",
			"/Parent " + ref(pagesObj),
			"/MediaBox " + array([]float64{0, 0, p.Width, p.Height}),
			"/Resources << >>",
			"/Contents " + ref(contentObj),
		}
		if p.CropBox != nil {
			pageDict = append(pageDict, "/CropBox "+array(p.CropBox[:]))
		}
		if len(annots) > 0 {
			pageDict = append(pageDict, "/Annots ["+strings.Join(annots, " ")+"]")
		}
		b.set(pageObj, "<< "+strings.Join(pageDict, " ")+" >>")
		b.set(contentObj, "<< /Length 0 >>\nstream\n\nendstream")
	}

	root := fmt.Sprintf("/Type /Pages /Kids [%s] /Count %d", strings.Join(kids, " "), len(kids))
	if d.CropBox != nil {
		root += " /CropBox " + array(d.CropBox[:])
	}
	b.set(pagesObj, "<< "+root+" >>")
	b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s /AcroForm << /Fields [%s] >> >>",
		ref(pagesObj), strings.Join(fields, " ")))

	return b.bytes(catalog)
}

type builder struct {
	objects []string
}

func (b *builder) reserve() int {
	b.objects = append(b.objects, "")
	return len(b.objects)
}

func (b *builder) set(num int, body string) {
	b.objects[num-1] = body
}

func (b *builder) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %s >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, ref(root), xref)

	return buf.Bytes()
}

func ref(num int) string {
	return fmt.Sprintf("%d 0 R", num)
}

func array(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
		if parts[i] == "" || parts[i] == "-" {
			parts[i] = "0"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}
