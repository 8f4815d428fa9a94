package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/pdf-form-overlay/internal/config"
	"github.com/a3tai/pdf-form-overlay/internal/descriptions"
	"github.com/a3tai/pdf-form-overlay/internal/overlay"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/compose"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/pdftest"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/wrapper"
	"github.com/a3tai/pdf-form-overlay/internal/session"
	"github.com/a3tai/pdf-form-overlay/internal/storage"
)

// prefixStamper marks its output instead of drawing
type prefixStamper struct{}

func (prefixStamper) Stamp(ctx context.Context, data []byte, marks []wrapper.Mark) ([]byte, error) {
	return append([]byte("stamped:"), data...), nil
}

func (prefixStamper) Library() wrapper.LibraryType { return "prefix" }

type testEnv struct {
	server      *Server
	config      *config.Config
	storagePath string
	downloadDir string
}

// formPDF has the text field "Name" at (40,700)-(120,720) and the checkbox
// "Agree" at (40,650)-(56,666) on a letter page. At scale 1.5 these are the
// pixel rects (60,108)-(180,138) and (60,189)-(84,213).
func formPDF() []byte {
	return pdftest.Build(pdftest.Letter(
		pdftest.Text("Name", 40, 700, 120, 720),
		pdftest.Checkbox("Agree", 40, 650, 56, 666),
	))
}

func newTestEnv(t *testing.T, mode string, doc []byte) *testEnv {
	t.Helper()

	dir := t.TempDir()
	storagePath := filepath.Join(dir, "storage", "example.pdf")
	downloadDir := filepath.Join(dir, "downloads")
	if doc != nil {
		if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
			t.Fatalf("failed to create storage dir: %v", err)
		}
		if err := os.WriteFile(storagePath, doc, 0o644); err != nil {
			t.Fatalf("failed to write stored pdf: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Mode = mode
	cfg.StoragePath = storagePath
	cfg.DownloadDir = downloadDir
	cfg.Version = "1.0.0-test"

	store, err := storage.NewFileStore(storagePath, cfg.MaxFileSize)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	downloads, err := storage.NewDownloadSink(downloadDir)
	if err != nil {
		t.Fatalf("NewDownloadSink() error = %v", err)
	}

	ctrl := session.New(session.Config{
		Storage: store,
		Cache: render.NewCache(render.Config{
			Parser:  wrapper.NewPDFCPULibrary(wrapper.FactoryConfig{}),
			Workers: 2,
		}),
		Compositor: compose.NewCompositor(prefixStamper{}, nil, compose.DefaultOptions(), nil),
		Downloads:  downloads,
		Scale:      cfg.Scale,
	})
	t.Cleanup(ctrl.Close)

	srv, err := NewServer(cfg, Services{Session: ctrl, Storage: store, Downloads: downloads})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	return &testEnv{server: srv, config: cfg, storagePath: storagePath, downloadDir: downloadDir}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestNewServer(t *testing.T) {
	env := newTestEnv(t, config.ModeStdio, nil)
	ctrl := session.New(session.Config{})
	t.Cleanup(ctrl.Close)

	tests := []struct {
		name     string
		config   *config.Config
		services Services
		wantErr  string
	}{
		{name: "valid", config: env.config, services: Services{Session: ctrl}},
		{name: "nil config", config: nil, services: Services{Session: ctrl}, wantErr: "config cannot be nil"},
		{name: "nil session", config: env.config, services: Services{}, wantErr: "session cannot be nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(tt.config, tt.services)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("NewServer() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewServer() unexpected error = %v", err)
			}
			if srv == nil {
				t.Fatal("NewServer() returned nil server")
			}
		})
	}
}

func TestServer_ToolsMatchDescriptions(t *testing.T) {
	env := newTestEnv(t, config.ModeStdio, nil)

	tools := env.server.Tools()
	described := descriptions.GetAllToolNames()
	if len(tools) != len(described) {
		t.Fatalf("registered %d tools, %d have descriptions", len(tools), len(described))
	}

	for _, name := range tools {
		if desc := descriptions.GetToolDescription(name); desc == "Tool description not available" {
			t.Errorf("tool %s has no description", name)
		}
	}
}

func TestServer_FormWorkflow(t *testing.T) {
	env := newTestEnv(t, config.ModeStdio, formPDF())
	s := env.server

	result := mustCall(t, s.handleLoad, callRequest("pdf_form_load", nil))
	for _, want := range []string{"Pages: 1", "Text fields: 1", "Checkboxes: 1"} {
		if !strings.Contains(extractTextFromResult(result), want) {
			t.Errorf("load result missing %q:\n%s", want, extractTextFromResult(result))
		}
	}

	result = mustCall(t, s.handleSetText, callRequest("pdf_form_set_text", map[string]any{
		"page": 0, "index": 0, "value": "Alice",
	}))
	if !strings.Contains(extractTextFromResult(result), `"Alice"`) {
		t.Errorf("set_text result = %q", extractTextFromResult(result))
	}

	result = mustCall(t, s.handleToggleCheckbox, callRequest("pdf_form_toggle_checkbox", map[string]any{
		"page": float64(0), "index": float64(0),
	}))
	if !strings.HasSuffix(extractTextFromResult(result), "now checked") {
		t.Errorf("toggle result = %q", extractTextFromResult(result))
	}

	result = mustCall(t, s.handleFields, callRequest("pdf_form_fields", nil))
	text := extractTextFromResult(result)
	for _, want := range []string{"Page 0 (918x1188 px", "[text 0] Name", `value="Alice"`, "[button/checkbox 0] Agree", "checked"} {
		if !strings.Contains(text, want) {
			t.Errorf("fields result missing %q:\n%s", want, text)
		}
	}

	// A click inside the checkbox unticks it again
	result = mustCall(t, s.handleClick, callRequest("pdf_form_click", map[string]any{
		"page": 0, "x": 70, "y": 200,
	}))
	if !strings.Contains(extractTextFromResult(result), "Toggled checkbox 0") {
		t.Errorf("click result = %q", extractTextFromResult(result))
	}

	result = mustCall(t, s.handleClick, callRequest("pdf_form_click", map[string]any{
		"page": 0, "x": 100, "y": 120, "text": "Bob",
	}))
	if !strings.Contains(extractTextFromResult(result), `"Bob"`) {
		t.Errorf("click result = %q", extractTextFromResult(result))
	}

	result = mustCall(t, s.handleFields, callRequest("pdf_form_fields", map[string]any{"format": "json", "page": 0}))
	var layout session.Layout
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &layout); err != nil {
		t.Fatalf("fields json did not decode: %v", err)
	}
	if len(layout.Pages) != 1 || len(layout.Pages[0].Fields) != 2 {
		t.Fatalf("fields json = %+v", layout)
	}
	for _, f := range layout.Pages[0].Fields {
		switch f.Name {
		case "Name":
			if f.Value != "Bob" {
				t.Errorf("Name value = %q, want Bob", f.Value)
			}
		case "Agree":
			if f.Checked {
				t.Error("Agree should be unchecked after the click")
			}
		}
	}

	result = mustCall(t, s.handlePreview, callRequest("pdf_form_preview", map[string]any{"page": 0}))
	var image *mcp.ImageContent
	for _, c := range result.Content {
		if img, ok := c.(mcp.ImageContent); ok {
			image = &img
		}
	}
	if image == nil || image.MIMEType != "image/png" || image.Data == "" {
		t.Fatalf("preview returned no png image: %+v", result.Content)
	}

	result = mustCall(t, s.handleSave, callRequest("pdf_form_save", nil))
	if !strings.HasPrefix(extractTextFromResult(result), "PDF saved successfully.") {
		t.Errorf("save result = %q", extractTextFromResult(result))
	}
	saved, err := os.ReadFile(env.storagePath)
	if err != nil {
		t.Fatalf("failed to read saved pdf: %v", err)
	}
	if !bytes.HasPrefix(saved, []byte("stamped:")) {
		t.Error("stored document was not replaced by the composed output")
	}

	result = mustCall(t, s.handleDownload, callRequest("pdf_form_download", map[string]any{"name": "filled"}))
	if !strings.Contains(extractTextFromResult(result), filepath.Join(env.downloadDir, "filled.pdf")) {
		t.Errorf("download result = %q", extractTextFromResult(result))
	}
	if _, err := os.Stat(filepath.Join(env.downloadDir, "filled.pdf")); err != nil {
		t.Errorf("download was not written: %v", err)
	}

	result = mustCall(t, s.handleExport, callRequest("pdf_form_export", nil))
	if !strings.Contains(extractTextFromResult(result), "Exported 1 text field(s) and 1 checkbox(es)") {
		t.Errorf("export result = %q", extractTextFromResult(result))
	}
	if _, err := os.Stat(filepath.Join(env.downloadDir, DefaultExportName)); err != nil {
		t.Errorf("export was not written: %v", err)
	}

	result = mustCall(t, s.handleServerInfo, callRequest("pdf_server_info", nil))
	if !strings.Contains(extractTextFromResult(result), "Loaded: yes") {
		t.Errorf("server info = %q", extractTextFromResult(result))
	}

	mustCall(t, s.handleUnload, callRequest("pdf_form_unload", nil))
	result, err = s.handleFields(context.Background(), callRequest("pdf_form_fields", nil))
	if err != nil || !result.IsError {
		t.Errorf("fields after unload should fail, got %v / %q", err, extractTextFromResult(result))
	}
}

func TestServer_HandlerErrors(t *testing.T) {
	env := newTestEnv(t, config.ModeStdio, formPDF())
	s := env.server

	tests := []struct {
		name    string
		load    bool
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		wantErr string
	}{
		{name: "fields without document", handler: s.handleFields, wantErr: "no document loaded"},
		{name: "save without document", handler: s.handleSave, wantErr: "no document loaded"},
		{name: "export without document", handler: s.handleExport, wantErr: "no document loaded"},
		{name: "set text missing value", load: true, handler: s.handleSetText, args: map[string]any{"page": 0, "index": 0}, wantErr: `"value"`},
		{name: "set text unknown field", load: true, handler: s.handleSetText, args: map[string]any{"page": 0, "index": 4, "value": "x"}},
		{name: "click missing y", load: true, handler: s.handleClick, args: map[string]any{"page": 0, "x": 1}, wantErr: `"y"`},
		{name: "toggle unknown page", load: true, handler: s.handleToggleCheckbox, args: map[string]any{"page": 3, "index": 0}},
		{name: "preview unknown page", load: true, handler: s.handlePreview, args: map[string]any{"page": 3}},
		{name: "fields page out of range", load: true, handler: s.handleFields, args: map[string]any{"page": 2}, wantErr: "out of range"},
		{name: "fields unknown format", load: true, handler: s.handleFields, args: map[string]any{"format": "xml"}, wantErr: "unknown format"},
		{name: "download bad name", load: true, handler: s.handleDownload, args: map[string]any{"name": "../escape"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.session.Unload()
			if tt.load {
				if _, err := s.session.Load(context.Background()); err != nil {
					t.Fatalf("Load() error = %v", err)
				}
			}

			result, err := tt.handler(context.Background(), callRequest("tool", tt.args))
			if err != nil {
				t.Fatalf("handler returned a protocol error: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected an error result, got %q", extractTextFromResult(result))
			}
			if tt.wantErr != "" && !strings.Contains(extractTextFromResult(result), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", extractTextFromResult(result), tt.wantErr)
			}
		})
	}
}

func TestServer_LoadFailures(t *testing.T) {
	tests := []struct {
		name    string
		doc     []byte
		wantErr string
	}{
		{name: "empty slot", doc: nil, wantErr: "no document stored"},
		{name: "not a pdf", doc: []byte("hello world"), wantErr: "missing %PDF- header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, config.ModeStdio, tt.doc)
			result, err := env.server.handleLoad(context.Background(), callRequest("pdf_form_load", nil))
			if err != nil {
				t.Fatalf("handleLoad() protocol error = %v", err)
			}
			if !result.IsError || !strings.Contains(extractTextFromResult(result), tt.wantErr) {
				t.Errorf("handleLoad() = %q, want error containing %q", extractTextFromResult(result), tt.wantErr)
			}
		})
	}
}

func TestServer_ReloadPicksUpNewDocument(t *testing.T) {
	env := newTestEnv(t, config.ModeStdio, formPDF())
	s := env.server

	mustCall(t, s.handleLoad, callRequest("pdf_form_load", nil))
	mustCall(t, s.handleSetText, callRequest("pdf_form_set_text", map[string]any{"page": 0, "index": 0, "value": "Alice"}))

	empty := pdftest.Build(pdftest.Letter(), pdftest.Letter())
	if err := os.WriteFile(env.storagePath, empty, 0o644); err != nil {
		t.Fatalf("failed to replace stored pdf: %v", err)
	}

	result := mustCall(t, s.handleLoad, callRequest("pdf_form_load", map[string]any{"reload": true}))
	text := extractTextFromResult(result)
	if !strings.Contains(text, "Pages: 2") || !strings.Contains(text, "WARNING") {
		t.Errorf("reload result = %q", text)
	}
}

func TestServer_ServerInfoWithoutDocument(t *testing.T) {
	env := newTestEnv(t, config.ModeStdio, nil)

	result := mustCall(t, env.server.handleServerInfo, callRequest("pdf_server_info", nil))
	text := extractTextFromResult(result)
	for _, want := range []string{
		"Server: pdf-form-overlay v1.0.0-test",
		"Storage: " + env.storagePath,
		"Download directory: " + env.downloadDir,
		"Parser: pdfcpu",
		"Loaded: no",
		"Preview cache: 0/8 pages",
		"  - pdf_form_click",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("server info missing %q:\n%s", want, text)
		}
	}
}

func TestFormatClickResult(t *testing.T) {
	env := newTestEnv(t, config.ModeStdio, nil)
	s := env.server

	tests := []struct {
		name   string
		action overlay.Action
		text   string
		want   string
	}{
		{name: "checkbox", action: overlay.Action{Kind: overlay.ToggleCheckbox, Page: 1, Index: 2}, want: "Toggled checkbox 2 on page 1"},
		{name: "text without value", action: overlay.Action{Kind: overlay.RequestText, Index: 1}, want: "pass 'text'"},
		{name: "text with value", action: overlay.Action{Kind: overlay.RequestText, Index: 1}, text: "x", want: `to "x"`},
		{name: "miss", action: overlay.Action{Kind: overlay.NoOp, Page: 3}, want: "No field at that position on page 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.formatClickResult(tt.action, tt.text); !strings.Contains(got, tt.want) {
				t.Errorf("formatClickResult() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func mustCall(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), req mcp.CallToolRequest) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s returned a protocol error: %v", req.Params.Name, err)
	}
	if result.IsError {
		t.Fatalf("%s failed: %s", req.Params.Name, extractTextFromResult(result))
	}
	return result
}

// Helper function to extract text from a CallToolResult
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
