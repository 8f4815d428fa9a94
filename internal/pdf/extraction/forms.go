// Package extraction turns a parsed page's widget annotations into overlay fields
// positioned in viewport pixel space.
package extraction

import (
	"fmt"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/wrapper"
)

// FormFieldType represents the type of a form field
type FormFieldType string

const (
	FormFieldTypeText      FormFieldType = "text"
	FormFieldTypeCheckbox  FormFieldType = "button/checkbox"
	FormFieldTypeButton    FormFieldType = "button"
	FormFieldTypeSelect    FormFieldType = "select"
	FormFieldTypeSignature FormFieldType = "signature"
	FormFieldTypeUnknown   FormFieldType = "unknown"
)

// Field is a form field instance on one page. It is either *TextField or *Checkbox.
type Field interface {
	Kind() FormFieldType
	Bounds() geometry.Rect
	Position() (page, index int)
	isField()
}

// TextField is a single-line text input. Index counts text fields on the page from 0.
type TextField struct {
	Page  int           `json:"page"`
	Index int           `json:"index"`
	Name  string        `json:"name,omitempty"`
	Rect  geometry.Rect `json:"rect"`
}

// Checkbox is a toggleable button. Index counts checkboxes on the page from 0;
// Name is informational only.
type Checkbox struct {
	Page  int           `json:"page"`
	Index int           `json:"index"`
	Name  string        `json:"name,omitempty"`
	Rect  geometry.Rect `json:"rect"`
}

func (f *TextField) Kind() FormFieldType { return FormFieldTypeText }
func (f *TextField) Bounds() geometry.Rect { return f.Rect }
func (f *TextField) Position() (page, index int) { return f.Page, f.Index }
func (*TextField) isField() {}

func (c *Checkbox) Kind() FormFieldType { return FormFieldTypeCheckbox }
func (c *Checkbox) Bounds() geometry.Rect { return c.Rect }
func (c *Checkbox) Position() (page, index int) { return c.Page, c.Index }
func (*Checkbox) isField() {}

// ClassifyAnnotation maps an annotation's field type and flags onto a FormFieldType.
// Radio buttons toggle like checkboxes; push buttons cannot be toggled.
func ClassifyAnnotation(a wrapper.Annotation) FormFieldType {
	switch a.FieldType {
	case wrapper.FieldTypeText:
		return FormFieldTypeText
	case wrapper.FieldTypeButton:
		if a.Flags&wrapper.FlagPushbutton != 0 {
			return FormFieldTypeButton
		}
		return FormFieldTypeCheckbox
	case wrapper.FieldTypeChoice:
		return FormFieldTypeSelect
	case wrapper.FieldTypeSig:
		return FormFieldTypeSignature
	default:
		return FormFieldTypeUnknown
	}
}

// Extract builds the fields of a page in annotation order. Fields are identified
// by the 0-based page index. Annotations that are not text fields or checkboxes,
// or that lack a rect, are skipped.
func Extract(page wrapper.SourcePage, vp geometry.Viewport) ([]Field, error) {
	pageIndex := page.Number - 1
	fields := make([]Field, 0, len(page.Annotations))
	var texts, boxes int

	for i, annot := range page.Annotations {
		kind := ClassifyAnnotation(annot)
		if kind != FormFieldTypeText && kind != FormFieldTypeCheckbox {
			continue
		}
		if !annot.HasRect {
			continue
		}

		rect, err := geometry.ToViewport(annot.Rect, page.Size, vp)
		if err != nil {
			return nil, fmt.Errorf("annotation %d on page %d: %w", i, pageIndex, err)
		}

		switch kind {
		case FormFieldTypeText:
			fields = append(fields, &TextField{Page: pageIndex, Index: texts, Name: annot.FieldName, Rect: rect})
			texts++
		case FormFieldTypeCheckbox:
			fields = append(fields, &Checkbox{Page: pageIndex, Index: boxes, Name: annot.FieldName, Rect: rect})
			boxes++
		}
	}

	return fields, nil
}

// Split separates fields into text fields and checkboxes, preserving order
func Split(fields []Field) ([]*TextField, []*Checkbox) {
	var texts []*TextField
	var boxes []*Checkbox
	for _, f := range fields {
		switch f := f.(type) {
		case *TextField:
			texts = append(texts, f)
		case *Checkbox:
			boxes = append(boxes, f)
		}
	}
	return texts, boxes
}
