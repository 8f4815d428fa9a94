package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/geometry"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
)

var (
	textBorder  = color.RGBA{R: 0x33, G: 0x66, B: 0xCC, A: 0xFF}
	textFill    = color.RGBA{R: 0xE8, G: 0xF0, B: 0xFF, A: 0xFF}
	boxBorder   = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xFF}
	checkColor  = color.RGBA{G: 0x80, A: 0xFF}
	valueColor  = color.Black
	defaultFace = basicfont.Face7x13
)

// Preview renders page rasters with the current overlay values drawn on top.
// Encoded pages are cached and only pages touched by a store change are redrawn.
type Preview struct {
	pages PageSource
	store *Store
	cache *lruCache[int, []byte]

	mu      sync.Mutex
	epoch   uint64
	gens    map[int]uint64
	redraws int

	unsubscribe func()
}

// NewPreview creates a preview that keeps up to capacity encoded pages
func NewPreview(pages PageSource, store *Store, capacity int) *Preview {
	p := &Preview{
		pages: pages,
		store: store,
		cache: newLRUCache[int, []byte](capacity),
		gens:  make(map[int]uint64),
	}
	p.unsubscribe = store.Subscribe(p.invalidate)
	return p
}

// Close stops listening to store changes
func (p *Preview) Close() {
	p.unsubscribe()
}

func (p *Preview) invalidate(c Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.Page == AllPages {
		p.epoch++
		p.gens = make(map[int]uint64)
		p.cache.Clear()
		return
	}
	p.gens[c.Page]++
	p.cache.Remove(c.Page)
}

func (p *Preview) generation(page int) (uint64, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch, p.gens[page]
}

// PNG returns the encoded preview of a page
func (p *Preview) PNG(pageIndex int) ([]byte, error) {
	if data, ok := p.cache.Get(pageIndex); ok {
		return data, nil
	}

	page, ok := p.pages.Page(pageIndex)
	if !ok || page == nil {
		return nil, fmt.Errorf("page %d is not rendered", pageIndex)
	}

	epoch, gen := p.generation(pageIndex)

	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Draw(page)); err != nil {
		return nil, fmt.Errorf("failed to encode preview of page %d: %w", pageIndex, err)
	}
	data := buf.Bytes()

	p.mu.Lock()
	p.redraws++
	// A change that landed while drawing makes this image stale.
	if p.epoch == epoch && p.gens[pageIndex] == gen {
		p.cache.Put(pageIndex, data)
	}
	p.mu.Unlock()

	return data, nil
}

// Redraws returns how many pages have been drawn so far
func (p *Preview) Redraws() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.redraws
}

// Stats returns cache statistics
func (p *Preview) Stats() CacheStats {
	return p.cache.Stats()
}

// Draw composes one page with its overlay widgets and current values
func (p *Preview) Draw(page *render.Page) *image.RGBA {
	bounds := image.Rect(0, 0, int(math.Ceil(page.Viewport.Width)), int(math.Ceil(page.Viewport.Height)))
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	if page.Raster != nil {
		draw.Draw(dst, bounds, page.Raster, page.Raster.Bounds().Min, draw.Src)
	}

	for _, f := range page.TextFields() {
		r := pixelRect(f.Rect)
		draw.Draw(dst, r, image.NewUniform(textFill), image.Point{}, draw.Over)
		outline(dst, r, textBorder)

		value, err := p.store.Text(page.Index, f.Index)
		if err != nil || value == "" {
			continue
		}
		clip, ok := dst.SubImage(r.Inset(1)).(*image.RGBA)
		if !ok {
			continue
		}
		metrics := defaultFace.Metrics()
		baseline := f.Rect.Y + (f.Rect.Height+float64(metrics.Ascent.Ceil()-metrics.Descent.Ceil()))/2
		d := font.Drawer{
			Dst:  clip,
			Src:  image.NewUniform(valueColor),
			Face: defaultFace,
			Dot:  fixed.P(int(f.Rect.X)+2, int(math.Round(baseline))),
		}
		d.DrawString(value)
	}

	for _, c := range page.Checkboxes() {
		r := pixelRect(c.Rect)
		outline(dst, r, boxBorder)

		checked, err := p.store.Checked(page.Index, c.Index)
		if err != nil || !checked {
			continue
		}
		drawCheck(dst, c.Rect)
	}

	return dst
}

func pixelRect(r geometry.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)),
		int(math.Ceil(r.Y+r.Height)),
	)
}

func outline(dst draw.Image, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

// drawCheck strokes a check mark scaled to the box
func drawCheck(dst *image.RGBA, r geometry.Rect) {
	width := math.Max(1, r.Height/8)
	x := func(f float64) float64 { return r.X + f*r.Width }
	y := func(f float64) float64 { return r.Y + f*r.Height }
	strokeLine(dst, x(0.2), y(0.55), x(0.42), y(0.78), width, checkColor)
	strokeLine(dst, x(0.42), y(0.78), x(0.82), y(0.22), width, checkColor)
}

func strokeLine(dst *image.RGBA, x0, y0, x1, y1, width float64, c color.RGBA) {
	steps := int(math.Ceil(math.Hypot(x1-x0, y1-y0))) * 2
	if steps < 1 {
		steps = 1
	}
	half := width / 2
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		cx, cy := x0+(x1-x0)*t, y0+(y1-y0)*t
		dot := image.Rect(
			int(math.Floor(cx-half)), int(math.Floor(cy-half)),
			int(math.Ceil(cx+half)), int(math.Ceil(cy+half)),
		)
		draw.Draw(dst, dot.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
	}
}
