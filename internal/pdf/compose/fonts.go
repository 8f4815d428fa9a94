package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
)

// FontProvider makes a font available to the stamper and returns its name.
// Any failure is a FontEmbedError.
type FontProvider interface {
	Font(ctx context.Context) (string, error)
}

// FileFontProvider installs a TrueType font file into pdfcpu's user font
// directory once and reports its name on every call.
type FileFontProvider struct {
	path string

	once sync.Once
	name string
	err  error
}

// NewFileFontProvider creates a provider for the font at path
func NewFileFontProvider(path string) *FileFontProvider {
	return &FileFontProvider{path: path}
}

// Font implements FontProvider
func (p *FileFontProvider) Font(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.once.Do(func() {
		p.name, p.err = p.install()
	})
	return p.name, p.err
}

func (p *FileFontProvider) install() (string, error) {
	if p.path == "" {
		return "", pdferrors.FontEmbed("no font configured", nil)
	}

	info, err := os.Stat(p.path)
	if err != nil {
		return "", pdferrors.FontEmbed("font file unavailable", err).WithContext(p.path)
	}
	if info.IsDir() {
		return "", pdferrors.FontEmbed("font path is a directory", nil).WithContext(p.path)
	}
	if ext := strings.ToLower(filepath.Ext(p.path)); ext != ".ttf" {
		return "", pdferrors.FontEmbed("unsupported font format", fmt.Errorf("extension %q", ext)).WithContext(p.path)
	}

	// Initializes pdfcpu's config and user font directories.
	model.NewDefaultConfiguration()
	if font.UserFontDir == "" {
		return "", pdferrors.FontEmbed("pdfcpu user font directory unavailable", nil)
	}

	name := strings.TrimSuffix(filepath.Base(p.path), filepath.Ext(p.path))
	if !font.SupportedFont(name) {
		if err := api.InstallFonts([]string{p.path}); err != nil {
			return "", pdferrors.FontEmbed("failed to install font", err).WithContext(p.path)
		}
	}
	if !font.SupportedFont(name) {
		return "", pdferrors.FontEmbed("installed font not registered", fmt.Errorf("font %q", name)).WithContext(p.path)
	}

	return name, nil
}
