// Package session owns the loaded document and coordinates loading, editing
// and saving across the render cache, overlay store and compositor.
package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/a3tai/pdf-form-overlay/internal/overlay"
	"github.com/a3tai/pdf-form-overlay/internal/pdf"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/compose"
	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
	"github.com/a3tai/pdf-form-overlay/internal/storage"
)

var (
	// ErrLoadInProgress rejects Load while another load is in flight
	ErrLoadInProgress = errors.New("a document load is already in progress")
	// ErrSuperseded is returned by a load whose session was replaced before it finished
	ErrSuperseded = errors.New("load superseded by a newer session")
	// ErrSaveInProgress rejects a compose while another one is in flight
	ErrSaveInProgress = errors.New("a save is already in progress")
	// ErrNoDocument is returned by operations that need a loaded document
	ErrNoDocument = errors.New("no document loaded")
)

// DefaultPreviewPages is the number of encoded preview pages kept in memory
const DefaultPreviewPages = 8

// Config contains the controller's collaborators
type Config struct {
	Storage    storage.Store
	Cache      *render.Cache
	Compositor *compose.Compositor
	Validator  *pdf.Validator
	// Downloads may be nil, which disables Download
	Downloads *storage.DownloadSink
	// Capture resolves text requests from Click when the caller supplies none
	Capture         overlay.TextCapture
	Scale           float64
	PreviewCapacity int
	Logger          *log.Logger
	Debug           bool
}

// Controller holds one document session at a time
type Controller struct {
	storage    storage.Store
	cache      *render.Cache
	compositor *compose.Compositor
	validator  *pdf.Validator
	downloads  *storage.DownloadSink
	capture    overlay.TextCapture
	scale      float64
	logger     *log.Logger
	debug      bool

	store   *overlay.Store
	preview *overlay.Preview

	mu         sync.Mutex
	token      uint64
	loading    bool
	loadCancel context.CancelFunc
	composing  bool
	original   []byte
}

// New creates a controller with an empty session
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Cache == nil {
		cfg.Cache = render.NewCache(render.Config{Logger: cfg.Logger})
	}
	if cfg.Validator == nil {
		cfg.Validator = pdf.NewValidator(0)
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1.5
	}
	if cfg.PreviewCapacity <= 0 {
		cfg.PreviewCapacity = DefaultPreviewPages
	}

	store := overlay.NewStore()
	return &Controller{
		storage:    cfg.Storage,
		cache:      cfg.Cache,
		compositor: cfg.Compositor,
		validator:  cfg.Validator,
		downloads:  cfg.Downloads,
		capture:    cfg.Capture,
		scale:      cfg.Scale,
		logger:     cfg.Logger,
		debug:      cfg.Debug,
		store:      store,
		preview:    overlay.NewPreview(cfg.Cache, store, cfg.PreviewCapacity),
	}
}

// Close releases the preview subscription
func (c *Controller) Close() {
	c.preview.Close()
}

// Store exposes the overlay state
func (c *Controller) Store() *overlay.Store {
	return c.store
}

// Token returns the current session token
func (c *Controller) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Loaded reports whether a document is committed
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original != nil
}

// Load fetches, validates and renders the stored document and makes it the
// current session
func (c *Controller) Load(ctx context.Context) (*Layout, error) {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	token, lctx := c.beginLoad(ctx)
	c.mu.Unlock()

	return c.load(lctx, token)
}

// Reload starts a new load, superseding any load in flight
func (c *Controller) Reload(ctx context.Context) (*Layout, error) {
	c.mu.Lock()
	if c.loadCancel != nil {
		c.loadCancel()
	}
	token, lctx := c.beginLoad(ctx)
	c.mu.Unlock()

	return c.load(lctx, token)
}

// beginLoad must be called with c.mu held
func (c *Controller) beginLoad(ctx context.Context) (uint64, context.Context) {
	c.token++
	c.loading = true
	lctx, cancel := context.WithCancel(ctx)
	c.loadCancel = cancel
	return c.token, lctx
}

func (c *Controller) load(ctx context.Context, token uint64) (*Layout, error) {
	defer func() {
		c.mu.Lock()
		if c.token == token {
			c.loading = false
			c.loadCancel = nil
		}
		c.mu.Unlock()
	}()

	pages, data, err := c.fetchAndRender(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != token {
		return nil, ErrSuperseded
	}
	if err != nil {
		c.logger.Printf("Error loading document: %v", err)
		return nil, err
	}

	c.original = data
	c.cache.Retain(pages)
	c.store.Seed(pages)

	if c.debug {
		c.logger.Printf("Session %d loaded: %d page(s), %d bytes", token, len(pages), len(data))
	}
	return c.layout(), nil
}

func (c *Controller) fetchAndRender(ctx context.Context) ([]*render.Page, []byte, error) {
	if c.storage == nil {
		return nil, nil, pdferrors.Load("no storage configured", nil)
	}

	data, err := c.storage.Load(ctx)
	if err != nil {
		if !pdferrors.IsType(err, pdferrors.ErrorTypeLoad) {
			err = pdferrors.Load("failed to fetch document", err)
		}
		return nil, nil, err
	}
	if err := c.validator.Validate(data); err != nil {
		return nil, nil, err
	}

	pages, err := c.cache.Render(ctx, data, c.scale)
	if err != nil {
		return nil, nil, err
	}
	return pages, data, nil
}

// Unload drops the current session and cancels any load in flight
func (c *Controller) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.loading = false
	c.original = nil
	c.store.Reset()
	c.cache.Invalidate()
}

// Click routes a pointer event on a page. capture overrides the configured text
// capture for this click; nil uses the default.
func (c *Controller) Click(ctx context.Context, page int, p overlay.Pointer, capture overlay.TextCapture) (overlay.Action, error) {
	token, err := c.current()
	if err != nil {
		return overlay.Action{Kind: overlay.NoOp, Page: page}, err
	}
	if capture == nil {
		capture = c.capture
	}

	action, err := overlay.NewRouter(c.cache, c.store, capture).RouteClick(ctx, page, p)
	if err != nil {
		return action, err
	}
	if c.Token() != token {
		return action, ErrSuperseded
	}
	return action, nil
}

// SetText sets a text field on the current session
func (c *Controller) SetText(page, index int, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.original == nil {
		return ErrNoDocument
	}
	return c.store.SetText(page, index, value)
}

// ToggleCheckbox flips a checkbox on the current session
func (c *Controller) ToggleCheckbox(page, index int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.original == nil {
		return false, ErrNoDocument
	}
	return c.store.ToggleCheckbox(page, index)
}

// Compose draws the current values onto a copy of the original document
func (c *Controller) Compose(ctx context.Context) (*compose.Result, error) {
	return c.compose(ctx, nil)
}

// Save composes and uploads the result to storage
func (c *Controller) Save(ctx context.Context) (*compose.Result, error) {
	return c.compose(ctx, func(ctx context.Context, result *compose.Result) error {
		if c.storage == nil {
			return pdferrors.SaveTransport("no storage configured", nil)
		}
		if err := c.storage.Save(ctx, result.Bytes); err != nil {
			if !pdferrors.IsType(err, pdferrors.ErrorTypeSaveTransport) {
				err = pdferrors.SaveTransport("failed to save document", err)
			}
			return err
		}
		return nil
	})
}

// Download composes and writes the result into the download directory. It
// returns the path written.
func (c *Controller) Download(ctx context.Context, name string) (string, *compose.Result, error) {
	if c.downloads == nil {
		return "", nil, pdferrors.SaveTransport("downloads are not configured", nil)
	}

	var path string
	result, err := c.compose(ctx, func(ctx context.Context, result *compose.Result) error {
		p, err := c.downloads.Write(name, ".pdf", result.Bytes)
		if err != nil {
			return pdferrors.SaveTransport("failed to write download", err)
		}
		path = p
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return path, result, nil
}

func (c *Controller) compose(ctx context.Context, sink func(context.Context, *compose.Result) error) (*compose.Result, error) {
	c.mu.Lock()
	if c.original == nil {
		c.mu.Unlock()
		return nil, ErrNoDocument
	}
	if c.composing {
		c.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	if c.compositor == nil {
		c.mu.Unlock()
		return nil, pdferrors.Composition("no compositor configured", nil)
	}
	c.composing = true
	original := c.original
	pages := c.cache.Pages()
	values := c.store.Snapshot()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.composing = false
		c.mu.Unlock()
	}()

	result, err := c.compositor.Compose(ctx, original, pages, values)
	if err != nil {
		c.logger.Printf("Error composing document: %v", err)
		return nil, err
	}
	for _, w := range result.Warnings.Warnings {
		c.logger.Printf("Compose warning: %v", w)
	}

	if sink != nil {
		if err := sink(ctx, result); err != nil {
			c.logger.Printf("Error delivering composed document: %v", err)
			return nil, err
		}
	}
	return result, nil
}

// Preview returns page pageIndex as PNG with the current values drawn on it
func (c *Controller) Preview(pageIndex int) ([]byte, error) {
	if _, err := c.current(); err != nil {
		return nil, err
	}
	return c.preview.PNG(pageIndex)
}

// PreviewStats reports the preview cache counters
func (c *Controller) PreviewStats() overlay.CacheStats {
	return c.preview.Stats()
}

// Layout reports the pages and fields of the current session
func (c *Controller) Layout() (*Layout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.original == nil {
		return nil, ErrNoDocument
	}
	return c.layout(), nil
}

func (c *Controller) current() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.original == nil {
		return c.token, ErrNoDocument
	}
	return c.token, nil
}
