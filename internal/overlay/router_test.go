package overlay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
)

func fixedCapture(value string, ok bool) TextCaptureFunc {
	return func(ctx context.Context, field *extraction.TextField, current string) (string, bool, error) {
		return value, ok, nil
	}
}

func TestRouter_Route(t *testing.T) {
	router := NewRouter(samplePages(), NewStore(), nil)

	tests := []struct {
		name     string
		page     int
		pointer  Pointer
		expected Action
	}{
		{"text_hit", 0, Pointer{X: 60, Y: 60}, Action{Kind: RequestText, Page: 0, Index: 0}},
		{"text_edge_inclusive", 0, Pointer{X: 170, Y: 70}, Action{Kind: RequestText, Page: 0, Index: 0}},
		{"checkbox_beats_overlapping_text", 0, Pointer{X: 58, Y: 98}, Action{Kind: ToggleCheckbox, Page: 0, Index: 0}},
		{"overlap_text_outside_box", 0, Pointer{X: 200, Y: 100}, Action{Kind: RequestText, Page: 0, Index: 1}},
		{"miss", 0, Pointer{X: 500, Y: 500}, Action{Kind: NoOp, Page: 0}},
		{"page_without_fields", 1, Pointer{X: 60, Y: 60}, Action{Kind: NoOp, Page: 1}},
		{"unknown_page", 9, Pointer{X: 60, Y: 60}, Action{Kind: NoOp, Page: 9}},
		{"scaled_display", 0, Pointer{X: 29, Y: 49, DisplayWidth: 459, DisplayHeight: 594}, Action{Kind: ToggleCheckbox, Page: 0, Index: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, router.Route(tt.page, tt.pointer))
		})
	}
}

func TestRouter_RouteClickTogglesCheckbox(t *testing.T) {
	store := NewStore()
	store.Seed(samplePages())
	router := NewRouter(samplePages(), store, nil)

	action, err := router.RouteClick(context.Background(), 0, Pointer{X: 58, Y: 98})
	require.NoError(t, err)
	assert.Equal(t, ToggleCheckbox, action.Kind)

	checked, err := store.Checked(0, 0)
	require.NoError(t, err)
	assert.True(t, checked)

	text, err := store.Text(0, 1)
	require.NoError(t, err)
	assert.Empty(t, text, "underlying text field must not change")
}

func TestRouter_RouteClickCapturesText(t *testing.T) {
	tests := []struct {
		name     string
		capture  TextCapture
		expected string
		wantErr  bool
	}{
		{name: "value", capture: fixedCapture("Alice", true), expected: "Alice"},
		{name: "cancelled", capture: fixedCapture("ignored", false), expected: "prior"},
		{name: "empty", capture: fixedCapture("", true), expected: "prior"},
		{name: "no_capture", capture: nil, expected: "prior"},
		{
			name: "capture_error",
			capture: TextCaptureFunc(func(ctx context.Context, field *extraction.TextField, current string) (string, bool, error) {
				return "", false, errors.New("prompt closed")
			}),
			expected: "prior",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			store.Seed(samplePages())
			require.NoError(t, store.SetText(0, 0, "prior"))

			router := NewRouter(samplePages(), store, tt.capture)
			action, err := router.RouteClick(context.Background(), 0, Pointer{X: 60, Y: 60})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, RequestText, action.Kind)

			v, err := store.Text(0, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestRouter_CaptureSeesFieldAndCurrentValue(t *testing.T) {
	store := NewStore()
	store.Seed(samplePages())
	require.NoError(t, store.SetText(0, 0, "old"))

	var gotName, gotCurrent string
	capture := TextCaptureFunc(func(ctx context.Context, field *extraction.TextField, current string) (string, bool, error) {
		gotName, gotCurrent = field.Name, current
		return "new", true, nil
	})

	_, err := NewRouter(samplePages(), store, capture).RouteClick(context.Background(), 0, Pointer{X: 60, Y: 60})
	require.NoError(t, err)
	assert.Equal(t, "Name", gotName)
	assert.Equal(t, "old", gotCurrent)
}

func TestRouter_MissIsNotAnError(t *testing.T) {
	store := NewStore()
	store.Seed(samplePages())

	action, err := NewRouter(samplePages(), store, nil).RouteClick(context.Background(), 4, Pointer{X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, NoOp, action.Kind)
}

func TestActionKind_String(t *testing.T) {
	assert.Equal(t, "noop", NoOp.String())
	assert.Equal(t, "toggle_checkbox", ToggleCheckbox.String())
	assert.Equal(t, "request_text", RequestText.String())
}
