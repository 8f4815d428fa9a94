package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/pdf-form-overlay/internal/export"
	"github.com/a3tai/pdf-form-overlay/internal/overlay"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/compose"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/session"
)

// DefaultExportName is the workbook name used when none is given
const DefaultExportName = "form-fields.xlsx"

// Handler functions
func (s *Server) handleLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	load := s.session.Load
	if request.GetBool("reload", false) {
		load = s.session.Reload
	}

	layout, err := load(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatLoadResult(layout)), nil
}

func (s *Server) handleUnload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Unload()
	return mcp.NewToolResultText("Form unloaded. All entered values were discarded."), nil
}

func (s *Server) handleFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := s.session.Layout()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if page := request.GetInt("page", -1); page >= 0 {
		if page >= len(layout.Pages) {
			return mcp.NewToolResultError(fmt.Sprintf("page %d out of range (document has %d pages)", page, len(layout.Pages))), nil
		}
		layout = &session.Layout{Token: layout.Token, Pages: layout.Pages[page : page+1]}
	}

	switch format := request.GetString("format", "text"); format {
	case "json":
		data, err := json.MarshalIndent(layout, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode fields: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	case "text", "":
		return mcp.NewToolResultText(s.formatFieldsResult(layout)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q (use 'text' or 'json')", format)), nil
	}
}

func (s *Server) handleClick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := request.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := request.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pointer := overlay.Pointer{
		X:             x,
		Y:             y,
		DisplayWidth:  request.GetFloat("display_width", 0),
		DisplayHeight: request.GetFloat("display_height", 0),
	}

	text := request.GetString("text", "")
	var capture overlay.TextCapture
	if text != "" {
		capture = overlay.TextCaptureFunc(func(ctx context.Context, field *extraction.TextField, current string) (string, bool, error) {
			return text, true, nil
		})
	}

	action, err := s.session.Click(ctx, page, pointer, capture)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatClickResult(action, text)), nil
}

func (s *Server) handleSetText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.session.SetText(page, index, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if value == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Cleared text field %d on page %d", index, page)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Set text field %d on page %d to %q", index, page, value)), nil
}

func (s *Server) handleToggleCheckbox(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	checked, err := s.session.ToggleCheckbox(page, index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Checkbox %d on page %d is now %s", index, page, checkedLabel(checked))), nil
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := s.session.Preview(page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Preview of page %d (%d bytes PNG)", page, len(data))
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(data), "image/png"), nil
}

func (s *Server) handleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.session.Save(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("PDF saved successfully.\n" + s.formatComposeResult(result)), nil
}

func (s *Server) handleDownload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, result, err := s.session.Download(ctx, request.GetString("name", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("PDF written to %s\n", path) + s.formatComposeResult(result)), nil
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.downloads == nil {
		return mcp.NewToolResultError("downloads are not configured"), nil
	}

	layout, err := s.session.Layout()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := export.FieldReport(layout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := request.GetString("name", "")
	if name == "" {
		name = DefaultExportName
	}
	path, err := s.downloads.Write(name, ".xlsx", data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	texts, boxes := layout.FieldCounts()
	return mcp.NewToolResultText(fmt.Sprintf("Exported %d text field(s) and %d checkbox(es) to %s", texts, boxes, path)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfoResult()), nil
}

// Formatting helpers

func (s *Server) formatLoadResult(layout *session.Layout) string {
	texts, boxes := layout.FieldCounts()
	var b strings.Builder
	fmt.Fprintf(&b, "Loaded form (session %d)\n", layout.Token)
	fmt.Fprintf(&b, "Pages: %d\n", len(layout.Pages))
	fmt.Fprintf(&b, "Text fields: %d\n", texts)
	fmt.Fprintf(&b, "Checkboxes: %d\n", boxes)
	if texts+boxes == 0 {
		b.WriteString("\n⚠️  WARNING: No fillable text fields or checkboxes were found.\n")
	} else {
		b.WriteString("\nUse 'pdf_form_fields' to list the fields with their page and index.\n")
	}
	return b.String()
}

func (s *Server) formatFieldsResult(layout *session.Layout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %d\n", layout.Token)
	for _, page := range layout.Pages {
		fmt.Fprintf(&b, "\nPage %d (%.0fx%.0f px, scale %.2f):\n", page.Index, page.Viewport.Width, page.Viewport.Height, page.Viewport.Scale)
		if len(page.Fields) == 0 {
			b.WriteString("  (no fields)\n")
			continue
		}
		for _, f := range page.Fields {
			name := f.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(&b, "  [%s %d] %s at %s", f.Kind, f.Index, name, f.Rect)
			if f.Kind == extraction.FormFieldTypeText {
				fmt.Fprintf(&b, " value=%q\n", f.Value)
			} else {
				fmt.Fprintf(&b, " %s\n", checkedLabel(f.Checked))
			}
		}
	}
	return b.String()
}

func (s *Server) formatClickResult(action overlay.Action, text string) string {
	switch action.Kind {
	case overlay.ToggleCheckbox:
		return fmt.Sprintf("Toggled checkbox %d on page %d", action.Index, action.Page)
	case overlay.RequestText:
		if text == "" {
			return fmt.Sprintf("Hit text field %d on page %d; pass 'text' to enter a value", action.Index, action.Page)
		}
		return fmt.Sprintf("Set text field %d on page %d to %q", action.Index, action.Page, text)
	default:
		return fmt.Sprintf("No field at that position on page %d", action.Page)
	}
}

func (s *Server) formatComposeResult(result *compose.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Size: %d bytes\n", len(result.Bytes))
	fmt.Fprintf(&b, "Marks drawn: %d\n", len(result.Marks))
	if result.Warnings != nil && len(result.Warnings.Warnings) > 0 {
		fmt.Fprintf(&b, "\n%s", result.Warnings.Summary())
	}
	return b.String()
}

func (s *Server) formatServerInfoResult() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Server: %s v%s\n", s.config.ServerName, s.config.Version)
	fmt.Fprintf(&b, "Mode: %s\n", s.config.Mode)
	fmt.Fprintf(&b, "Storage: %s\n", s.storageLocation())
	if s.downloads != nil {
		fmt.Fprintf(&b, "Download directory: %s\n", s.downloads.Dir())
	}
	fmt.Fprintf(&b, "Parser: %s\n", s.config.Parser)
	fmt.Fprintf(&b, "Render scale: %.2f\n", s.config.Scale)
	fmt.Fprintf(&b, "Max file size: %d bytes\n", s.config.MaxFileSize)

	b.WriteString("\nSession:\n")
	if layout, err := s.session.Layout(); err == nil {
		texts, boxes := layout.FieldCounts()
		fmt.Fprintf(&b, "  Loaded: yes (session %d, %d pages, %d text fields, %d checkboxes)\n",
			layout.Token, len(layout.Pages), texts, boxes)
	} else {
		b.WriteString("  Loaded: no\n")
	}
	stats := s.session.PreviewStats()
	fmt.Fprintf(&b, "  Preview cache: %d/%d pages\n", stats.Size, stats.Capacity)

	b.WriteString("\nTools:\n")
	for _, name := range s.tools {
		fmt.Fprintf(&b, "  - %s\n", name)
	}
	return b.String()
}

func checkedLabel(checked bool) string {
	if checked {
		return "checked"
	}
	return "unchecked"
}
