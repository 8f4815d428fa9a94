package overlay

import (
	"context"
	"fmt"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
)

// ActionKind is what a pointer event resolves to
type ActionKind int

const (
	NoOp ActionKind = iota
	ToggleCheckbox
	RequestText
)

func (k ActionKind) String() string {
	switch k {
	case ToggleCheckbox:
		return "toggle_checkbox"
	case RequestText:
		return "request_text"
	default:
		return "noop"
	}
}

// MarshalText renders the kind by name in JSON output
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is a resolved pointer event
type Action struct {
	Kind  ActionKind `json:"kind"`
	Page  int        `json:"page"`
	Index int        `json:"index"`
}

// Pointer is a click position in display pixels. DisplayWidth and DisplayHeight
// give the size the page raster is shown at; zero means shown at viewport size.
type Pointer struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	DisplayWidth  float64 `json:"display_width,omitempty"`
	DisplayHeight float64 `json:"display_height,omitempty"`
}

// TextCapture asks for a text field's new value. ok is false when the request
// was cancelled.
type TextCapture interface {
	Capture(ctx context.Context, field *extraction.TextField, current string) (value string, ok bool, err error)
}

// TextCaptureFunc adapts a function to TextCapture
type TextCaptureFunc func(ctx context.Context, field *extraction.TextField, current string) (string, bool, error)

// Capture implements TextCapture
func (f TextCaptureFunc) Capture(ctx context.Context, field *extraction.TextField, current string) (string, bool, error) {
	return f(ctx, field, current)
}

// PageSource provides rendered pages by index
type PageSource interface {
	Page(index int) (*render.Page, bool)
}

// Router resolves pointer events against field rectangles and applies them to the store
type Router struct {
	pages   PageSource
	store   *Store
	capture TextCapture
}

// NewRouter creates a router. capture may be nil, in which case text hits resolve
// but never change a value.
func NewRouter(pages PageSource, store *Store, capture TextCapture) *Router {
	return &Router{pages: pages, store: store, capture: capture}
}

// Route resolves p on page pageIndex without side effects. Checkboxes are tested
// before text fields and the first match in extraction order wins.
func (r *Router) Route(pageIndex int, p Pointer) Action {
	page, ok := r.pages.Page(pageIndex)
	if !ok || page == nil {
		return Action{Kind: NoOp, Page: pageIndex}
	}

	x, y := geometry.ScreenToViewport(p.X, p.Y, geometry.Size{Width: p.DisplayWidth, Height: p.DisplayHeight}, page.Viewport)

	for _, box := range page.Checkboxes() {
		if box.Rect.Contains(x, y) {
			return Action{Kind: ToggleCheckbox, Page: pageIndex, Index: box.Index}
		}
	}
	for _, field := range page.TextFields() {
		if field.Rect.Contains(x, y) {
			return Action{Kind: RequestText, Page: pageIndex, Index: field.Index}
		}
	}

	return Action{Kind: NoOp, Page: pageIndex}
}

// RouteClick resolves p and dispatches the result. A cancelled or empty text
// capture leaves the previous value in place.
func (r *Router) RouteClick(ctx context.Context, pageIndex int, p Pointer) (Action, error) {
	action := r.Route(pageIndex, p)

	switch action.Kind {
	case ToggleCheckbox:
		if _, err := r.store.ToggleCheckbox(action.Page, action.Index); err != nil {
			return action, err
		}
	case RequestText:
		if r.capture == nil {
			return action, nil
		}
		field := r.textField(action.Page, action.Index)
		if field == nil {
			return action, fmt.Errorf("%w: text field %d on page %d", ErrUnknownField, action.Index, action.Page)
		}
		current, err := r.store.Text(action.Page, action.Index)
		if err != nil {
			return action, err
		}
		value, ok, err := r.capture.Capture(ctx, field, current)
		if err != nil {
			return action, fmt.Errorf("text capture failed: %w", err)
		}
		if !ok || value == "" {
			return action, nil
		}
		if err := r.store.SetText(action.Page, action.Index, value); err != nil {
			return action, err
		}
	}

	return action, nil
}

func (r *Router) textField(pageIndex, index int) *extraction.TextField {
	page, ok := r.pages.Page(pageIndex)
	if !ok {
		return nil
	}
	for _, f := range page.TextFields() {
		if f.Index == index {
			return f
		}
	}
	return nil
}
