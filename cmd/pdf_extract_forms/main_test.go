package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/pdftest"
)

func writeForm(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.pdf")
	doc := pdftest.Build(pdftest.Letter(
		pdftest.Text("Name", 40, 700, 120, 720),
		pdftest.Checkbox("Agree", 40, 650, 56, 666),
	))
	require.NoError(t, os.WriteFile(path, doc, 0o644))
	return path
}

func TestRun_JSON(t *testing.T) {
	path := writeForm(t)

	for _, parser := range []string{"pdfcpu", "ledongthuc"} {
		t.Run(parser, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run([]string{"-format", "json", "-scale", "2", "-parser", parser, path}, &stdout, &stderr)
			require.Equal(t, 0, code, stderr.String())

			var result FormExtractionResult
			require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
			assert.True(t, result.Success)
			require.Len(t, result.Pages, 1)
			assert.InDelta(t, 1224, result.Pages[0].Viewport.Width, 1e-9)
			require.Equal(t, 2, result.FieldCount)

			kinds := map[extraction.FormFieldType]FieldInfo{}
			for _, f := range result.Fields {
				kinds[f.Kind] = f
			}
			text := kinds[extraction.FormFieldTypeText]
			assert.Equal(t, "Name", text.Name)
			assert.InDelta(t, 80, text.Rect.X, 1e-6)
			assert.InDelta(t, 144, text.Rect.Y, 1e-6)
			assert.InDelta(t, 700, text.PDFRect.Y1, 1e-6)

			box := kinds[extraction.FormFieldTypeCheckbox]
			assert.Equal(t, "Agree", box.Name)
			assert.InDelta(t, 32, box.Rect.Width, 1e-6)
		})
	}
}

func TestRun_Text(t *testing.T) {
	path := writeForm(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Extracted 2 field(s) from 1 page(s)")
	assert.Contains(t, out, "Page 0 (918x1188 px)")
	assert.Contains(t, out, "[text 0] Name")
	assert.Contains(t, out, "[button/checkbox 0] Agree")
	assert.Contains(t, out, "PDF: (40.0, 700.0) to (120.0, 720.0)")
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("plain text"), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{name: "no file", args: nil, wantCode: 1, wantErr: "PDF file path required"},
		{name: "bad format", args: []string{"-format", "xml", notPDF}, wantCode: 1, wantErr: "unsupported output format"},
		{name: "missing file", args: []string{filepath.Join(dir, "missing.pdf")}, wantCode: 1, wantOut: "file does not exist"},
		{name: "not a pdf", args: []string{notPDF}, wantCode: 1, wantOut: "missing %PDF- header"},
		{name: "unknown parser", args: []string{"-parser", "custom", writeForm(t)}, wantCode: 1, wantOut: "unknown library type"},
		{name: "unknown flag", args: []string{"-nope"}, wantCode: 2},
		{name: "help", args: []string{"-help"}, wantCode: 0, wantErr: "USAGE:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantOut != "" {
				assert.True(t, strings.Contains(stdout.String(), tt.wantOut), stdout.String())
			}
			if tt.wantErr != "" {
				assert.Contains(t, stderr.String(), tt.wantErr)
			}
		})
	}
}
