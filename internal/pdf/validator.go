package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
)

// headerWindow is how far into the payload the %PDF- marker may appear
const headerWindow = 1024

var pdfHeader = []byte("%PDF-")

// Validator handles PDF payload validation before parsing
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints.
// maxFileSize <= 0 disables the size check.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// MaxFileSize returns the configured limit in bytes
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// HasHeader reports whether data carries a PDF header near its start
func HasHeader(data []byte) bool {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	return bytes.Contains(window, pdfHeader)
}

// Validate checks size, header and that the cross-reference structure can be
// opened. Failures are LoadErrors.
func (v *Validator) Validate(data []byte) error {
	if len(data) == 0 {
		return pdferrors.Load("document is empty", nil)
	}
	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		return pdferrors.Load(fmt.Sprintf("document too large: %d bytes (max: %d bytes)",
			len(data), v.maxFileSize), nil)
	}
	if !HasHeader(data) {
		return pdferrors.Load("not a PDF document: missing %PDF- header", nil)
	}

	pages, err := pageCount(data)
	if err != nil {
		return pdferrors.Load("invalid PDF document", err)
	}
	if pages == 0 {
		return pdferrors.Load("document has no pages", nil)
	}
	return nil
}

// IsValidPDF performs a quick check to see if data is a usable PDF
func (v *Validator) IsValidPDF(data []byte) bool {
	return v.Validate(data) == nil
}

// ValidateFile reads and validates the document at filePath
func (v *Validator) ValidateFile(filePath string) ([]byte, error) {
	if filePath == "" {
		return nil, pdferrors.Load("path cannot be empty", nil)
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, pdferrors.Load("file does not exist", err).WithContext(filePath)
	}
	if err != nil {
		return nil, pdferrors.Load("cannot access file", err).WithContext(filePath)
	}
	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, pdferrors.Load("cannot open file", err).WithContext(filePath)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, pdferrors.Load("failed to read file", err).WithContext(filePath)
	}
	if err := v.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return pdferrors.Load("path is a directory, not a file", nil).WithContext(filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return pdferrors.Load("file is not a PDF", nil).WithContext(filePath)
	}

	if fileInfo.Size() == 0 {
		return pdferrors.Load("file is empty", nil).WithContext(filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return pdferrors.Load(fmt.Sprintf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize), nil).WithContext(filePath)
	}

	return nil
}

func pageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}
