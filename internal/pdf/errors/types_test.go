package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Classification(t *testing.T) {
	tests := []struct {
		name        string
		errorType   ErrorType
		label       string
		recoverable bool
		surfaced    bool
		severity    ErrorSeverity
	}{
		{"load", ErrorTypeLoad, "LOAD", false, true, SeverityError},
		{"render", ErrorTypeRender, "RENDER", false, true, SeverityError},
		{"geometry", ErrorTypeGeometry, "GEOMETRY", false, false, SeverityError},
		{"font_embed", ErrorTypeFontEmbed, "FONT_EMBED", true, false, SeverityWarning},
		{"composition", ErrorTypeComposition, "COMPOSITION", false, true, SeverityError},
		{"save_transport", ErrorTypeSaveTransport, "SAVE_TRANSPORT", false, true, SeverityError},
		{"unknown", ErrorTypeUnknown, "UNKNOWN", false, false, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.label, tt.errorType.String())
			assert.Equal(t, tt.recoverable, tt.errorType.IsRecoverable())
			assert.Equal(t, tt.surfaced, tt.errorType.IsSurfaced())
			assert.Equal(t, tt.severity, tt.errorType.GetSeverity())
		})
	}
}

func TestPDFError_ErrorString(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	err := Load("fetch original bytes", cause)
	assert.Equal(t, "[LOAD] fetch original bytes: connection refused", err.Error())

	err = Geometry("degenerate page size").WithPage(2).WithContext("width=0")
	assert.Equal(t, "[GEOMETRY] page 2: degenerate page size: width=0", err.Error())
}

func TestPDFError_UnwrapChain(t *testing.T) {
	sentinel := stderrors.New("boom")
	geom := Geometry("degenerate page size").WithPage(0)
	geom.Err = sentinel
	render := Render("render page", geom).WithPage(0)

	wrapped := fmt.Errorf("load session: %w", render)

	assert.True(t, IsType(wrapped, ErrorTypeRender))
	assert.True(t, IsType(wrapped, ErrorTypeGeometry))
	assert.False(t, IsType(wrapped, ErrorTypeComposition))
	assert.True(t, stderrors.Is(wrapped, sentinel))
	assert.Equal(t, ErrorTypeRender, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(sentinel))
	assert.False(t, IsType(nil, ErrorTypeRender))
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection()
	assert.Equal(t, "No errors or warnings", ec.Summary())

	ec.Add(FontEmbed("install font", stderrors.New("missing")))
	ec.Add(Composition("write", stderrors.New("disk full")))

	errs, warns := ec.Count()
	require.Equal(t, 1, errs)
	require.Equal(t, 1, warns)
	assert.Equal(t, ErrorTypeFontEmbed, ec.Warnings[0].Type)
	assert.Equal(t, "Found 1 error(s) and 1 warning(s)", ec.Summary())
}
