package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Session Tools
	PDFFormLoadDescription = `Load the stored PDF and discover its fillable text fields and checkboxes.

**When to use:** Before any other form tool, or again after the stored document has changed.

**Why it's useful:** Renders every page, maps each field's rectangle into page pixels and starts a fresh editing session with every field empty.

**Examples:**
• Start editing: "Load the stored form and list what can be filled in"
• Pick up a new upload: "Reload the form, the stored PDF was just replaced" (set reload=true)

**Common workflows:**
1. Filling a form: pdf_form_load → pdf_form_set_text / pdf_form_toggle_checkbox → pdf_form_save
2. Visual editing: pdf_form_load → pdf_form_preview → pdf_form_click → pdf_form_preview

**Best practices:** A second load while one is running is rejected; pass reload=true to replace it instead.`

	PDFFormUnloadDescription = `Close the current editing session and discard all entered values.

**When to use:** When the work on a form is finished or abandoned.

**Why it's useful:** Frees the rendered pages and guarantees a later load starts from a clean state.

**Examples:**
• Discard edits: "Throw away everything entered on this form"

**Best practices:** Save or download first if the values should be kept.`

	PDFFormFieldsDescription = `List every field of the loaded form with its position and current value.

**When to use:** To find the page and index of a field before editing it, or to review what has been entered.

**Why it's useful:** Reports each field's kind, per-kind index, name, pixel rectangle, PDF rectangle and value. Text fields and checkboxes are numbered separately from 0 on every page.

**Examples:**
• Discover fields: "Which fields are on page 2?"
• Review: "Show me all values entered so far" (format=json for machine-readable output)

**Best practices:** Field indexes are positional; use the page and index reported here with the edit tools.`

	// Editing Tools
	PDFFormClickDescription = `Click a point on a rendered page, as a user would on the overlay.

**When to use:** When working from a preview image, with coordinates in the displayed image.

**Why it's useful:** Checkboxes are hit-tested before text fields, so a click on a checkbox that overlaps a text field toggles the checkbox. A click on a text field stores the supplied text.

**Examples:**
• Tick a box seen in a preview: "Click at 70,200 on page 0"
• Fill a field by position: "Click at 100,120 on page 0 with text 'Alice'"

**Best practices:** Pass display_width and display_height when the preview was scaled; omit them when the coordinates are in preview pixels.`

	PDFFormSetTextDescription = `Set the value of a text field by page and field index.

**When to use:** When the field's page and index are known from pdf_form_fields.

**Why it's useful:** Values are drawn into the output at the field's position when the form is saved or downloaded. An empty value clears the field.

**Examples:**
• Fill a name: "Set text field 0 on page 0 to 'Alice'"`

	PDFFormToggleCheckboxDescription = `Flip a checkbox between checked and unchecked.

**When to use:** When the checkbox's page and index are known from pdf_form_fields.

**Why it's useful:** Checked boxes receive a green check mark in the output. Toggling twice restores the original state.

**Examples:**
• Accept terms: "Toggle checkbox 0 on page 0"`

	PDFFormPreviewDescription = `Render one page as a PNG image with the current values drawn over the fields.

**When to use:** To see the form as it stands, or to pick coordinates for pdf_form_click.

**Why it's useful:** Text fields are outlined and show their values; checked boxes show a check mark. Pages are only redrawn after their values change.

**Examples:**
• Inspect progress: "Show me page 0 with what has been filled in"`

	// Output Tools
	PDFFormSaveDescription = `Write the entered values into a copy of the original PDF and store it.

**When to use:** When the form is complete and should replace the stored document.

**Why it's useful:** The original is never modified in place; values are drawn onto a fresh copy which is then uploaded to storage. Composition problems and storage problems are reported separately.

**Examples:**
• Finish editing: "Save the filled form"

**Best practices:** A save is rejected while another save or download is running.`

	PDFFormDownloadDescription = `Write the entered values into a copy of the original PDF and save it as a local file.

**When to use:** When a filled copy is needed without replacing the stored document.

**Why it's useful:** Produces the same output as pdf_form_save and writes it into the configured download directory.

**Examples:**
• Keep a copy: "Download the filled form as signed-up.pdf"

**Best practices:** Only bare file names are accepted; the default name is edited.pdf.`

	PDFFormExportDescription = `Export the loaded form's fields and values as an Excel workbook.

**When to use:** To review or archive the entered values in a spreadsheet.

**Why it's useful:** One row per field with its position in both pixel and PDF space, plus a summary sheet with totals.

**Examples:**
• Audit a form: "Export the field values to form-report.xlsx"`

	PDFServerInfoDescription = `Report the server's configuration and the state of the editing session.

**When to use:** To check which parser and storage are in use or whether a document is loaded.

**Why it's useful:** Shows version, storage location, render scale, parser backend, session token and preview cache statistics.

**Examples:**
• Troubleshooting: "Which storage is the server using?"`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"pdf_form_load":            PDFFormLoadDescription,
	"pdf_form_unload":          PDFFormUnloadDescription,
	"pdf_form_fields":          PDFFormFieldsDescription,
	"pdf_form_click":           PDFFormClickDescription,
	"pdf_form_set_text":        PDFFormSetTextDescription,
	"pdf_form_toggle_checkbox": PDFFormToggleCheckboxDescription,
	"pdf_form_preview":         PDFFormPreviewDescription,
	"pdf_form_save":            PDFFormSaveDescription,
	"pdf_form_download":        PDFFormDownloadDescription,
	"pdf_form_export":          PDFFormExportDescription,
	"pdf_server_info":          PDFServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a sorted list of all available tool names
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
