// Package render parses a document, rasterizes each page at a viewport and
// extracts its overlay fields. Results are retained until invalidated.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/wrapper"
)

// Page is the render of a single page
type Page struct {
	Index    int                `json:"index"`
	Native   geometry.Size      `json:"native"`
	Viewport geometry.Viewport  `json:"viewport"`
	Raster   image.Image        `json:"-"`
	Fields   []extraction.Field `json:"-"`
}

// TextFields returns the page's text fields in extraction order
func (p *Page) TextFields() []*extraction.TextField {
	texts, _ := extraction.Split(p.Fields)
	return texts
}

// Checkboxes returns the page's checkboxes in extraction order
func (p *Page) Checkboxes() []*extraction.Checkbox {
	_, boxes := extraction.Split(p.Fields)
	return boxes
}

// Rasterizer draws a page at the given viewport
type Rasterizer interface {
	Rasterize(ctx context.Context, page wrapper.SourcePage, vp geometry.Viewport) (image.Image, error)
}

// BlankRasterizer produces an opaque white canvas of viewport size. Rendering
// page content is left to an external rasterizer.
type BlankRasterizer struct{}

// Rasterize implements Rasterizer
func (BlankRasterizer) Rasterize(ctx context.Context, page wrapper.SourcePage, vp geometry.Viewport) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := int(math.Ceil(vp.Width)), int(math.Ceil(vp.Height))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("cannot rasterize %dx%d canvas", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img, nil
}

// Config contains the cache's collaborators
type Config struct {
	Parser     wrapper.Parser
	Rasterizer Rasterizer
	Workers    int
	Logger     *log.Logger
	Debug      bool
}

// Cache renders documents and retains the most recent complete result
type Cache struct {
	parser     wrapper.Parser
	rasterizer Rasterizer
	workers    int
	logger     *log.Logger
	debug      bool

	mu    sync.RWMutex
	pages []*Page
}

// NewCache creates a render cache
func NewCache(cfg Config) *Cache {
	if cfg.Rasterizer == nil {
		cfg.Rasterizer = BlankRasterizer{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &Cache{
		parser:     cfg.Parser,
		rasterizer: cfg.Rasterizer,
		workers:    cfg.Workers,
		logger:     cfg.Logger,
		debug:      cfg.Debug,
	}
}

// RenderAll parses data and renders every page at scale. Either every page
// succeeds and the result is retained, or a RenderError is returned and the
// previously retained render is left as is.
func (c *Cache) RenderAll(ctx context.Context, data []byte, scale float64) ([]*Page, error) {
	pages, err := c.Render(ctx, data, scale)
	if err != nil {
		return nil, err
	}

	c.Retain(pages)
	return pages, nil
}

// Retain replaces the retained render with pages produced by Render
func (c *Cache) Retain(pages []*Page) {
	c.mu.Lock()
	c.pages = pages
	c.mu.Unlock()
}

// Render is RenderAll without retaining the result
func (c *Cache) Render(ctx context.Context, data []byte, scale float64) ([]*Page, error) {
	if c.parser == nil {
		return nil, pdferrors.Render("no parser configured", nil)
	}

	sources, err := c.parser.Parse(ctx, data)
	if err != nil {
		return nil, pdferrors.Render("failed to parse document", err)
	}

	pages := make([]*Page, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, src := range sources {
		g.Go(func() error {
			page, err := c.renderPage(gctx, i, src, scale)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c.debug {
		c.logger.Printf("Rendered %d page(s) at scale %.2f using %s", len(pages), scale, c.parser.Library())
	}

	return pages, nil
}

func (c *Cache) renderPage(ctx context.Context, index int, src wrapper.SourcePage, scale float64) (*Page, error) {
	vp, err := geometry.NewViewport(src.Size, scale)
	if err != nil {
		return nil, pdferrors.Render("failed to compute viewport", err).WithPage(index)
	}

	raster, err := c.rasterizer.Rasterize(ctx, src, vp)
	if err != nil {
		return nil, pdferrors.Render("failed to rasterize page", err).WithPage(index)
	}

	// Field identity uses the source order, not the page label.
	src.Number = index + 1
	fields, err := extraction.Extract(src, vp)
	if err != nil {
		return nil, pdferrors.Render("failed to extract fields", err).WithPage(index)
	}

	return &Page{
		Index:    index,
		Native:   src.Size,
		Viewport: vp,
		Raster:   raster,
		Fields:   fields,
	}, nil
}

// Pages returns the retained render, nil if none
func (c *Cache) Pages() []*Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pages
}

// Page returns the retained render of one page
func (c *Cache) Page(index int) (*Page, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.pages) {
		return nil, false
	}
	return c.pages[index], true
}

// Invalidate drops the retained render
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.pages = nil
	c.mu.Unlock()
}
