package session

import (
	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
)

// FieldState is one field with its geometry in both spaces and its current value
type FieldState struct {
	Kind    extraction.FormFieldType `json:"kind"`
	Index   int                      `json:"index"`
	Name    string                   `json:"name,omitempty"`
	Rect    geometry.Rect            `json:"rect"`
	PDFRect geometry.PDFRect         `json:"pdf_rect"`
	Value   string                   `json:"value,omitempty"`
	Checked bool                     `json:"checked"`
}

// PageLayout describes one rendered page
type PageLayout struct {
	Index    int               `json:"index"`
	Native   geometry.Size     `json:"native"`
	Viewport geometry.Viewport `json:"viewport"`
	Fields   []FieldState      `json:"fields"`
}

// Layout is the state of the current session
type Layout struct {
	Token uint64       `json:"token"`
	Pages []PageLayout `json:"pages"`
}

// FieldCounts returns the number of text fields and checkboxes
func (l *Layout) FieldCounts() (texts, checkboxes int) {
	for _, p := range l.Pages {
		for _, f := range p.Fields {
			if f.Kind == extraction.FormFieldTypeText {
				texts++
			} else {
				checkboxes++
			}
		}
	}
	return texts, checkboxes
}

// layout must be called with c.mu held
func (c *Controller) layout() *Layout {
	snap := c.store.Snapshot()
	out := &Layout{Token: c.token}

	for _, page := range c.cache.Pages() {
		pl := PageLayout{
			Index:    page.Index,
			Native:   page.Native,
			Viewport: page.Viewport,
			Fields:   make([]FieldState, 0, len(page.Fields)),
		}
		for _, field := range page.Fields {
			state := FieldState{Kind: field.Kind(), Rect: field.Bounds()}
			if r, err := geometry.ToPDF(field.Bounds(), page.Native, page.Viewport); err == nil {
				state.PDFRect = r
			}
			switch f := field.(type) {
			case *extraction.TextField:
				state.Index, state.Name = f.Index, f.Name
				state.Value = snap.Text(page.Index, f.Index)
			case *extraction.Checkbox:
				state.Index, state.Name = f.Index, f.Name
				state.Checked = snap.Checked(page.Index, f.Index)
			}
			pl.Fields = append(pl.Fields, state)
		}
		out.Pages = append(out.Pages, pl)
	}
	return out
}
