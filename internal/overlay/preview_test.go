package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_PNG(t *testing.T) {
	pages := samplePages()
	store := NewStore()
	store.Seed(pages)
	preview := NewPreview(pages, store, 4)
	defer preview.Close()

	data, err := preview.PNG(0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 918, 1188), img.Bounds())

	_, err = preview.PNG(5)
	assert.Error(t, err)
}

func TestPreview_RedrawsOnlyDirtyPages(t *testing.T) {
	pages := samplePages()
	store := NewStore()
	store.Seed(pages)
	preview := NewPreview(pages, store, 4)
	defer preview.Close()

	_, err := preview.PNG(0)
	require.NoError(t, err)
	_, err = preview.PNG(1)
	require.NoError(t, err)
	assert.Equal(t, 2, preview.Redraws())

	_, err = preview.PNG(0)
	require.NoError(t, err)
	assert.Equal(t, 2, preview.Redraws(), "clean page served from cache")

	_, err = store.ToggleCheckbox(0, 0)
	require.NoError(t, err)

	_, err = preview.PNG(1)
	require.NoError(t, err)
	assert.Equal(t, 2, preview.Redraws(), "untouched page stays cached")

	_, err = preview.PNG(0)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.Redraws())

	store.Reset()
	_, err = preview.PNG(1)
	require.NoError(t, err)
	assert.Equal(t, 4, preview.Redraws(), "layout change invalidates every page")

	stats := preview.Stats()
	assert.Equal(t, int64(2), stats.Hits)
}

func TestPreview_DrawsCheckAndText(t *testing.T) {
	pages := samplePages()
	store := NewStore()
	store.Seed(pages)
	preview := NewPreview(pages, store, 4)
	defer preview.Close()

	blank := preview.Draw(pages[0])

	_, err := store.ToggleCheckbox(0, 0)
	require.NoError(t, err)
	require.NoError(t, store.SetText(0, 0, "Alice"))
	filled := preview.Draw(pages[0])

	assert.True(t, differs(blank, filled, image.Rect(50, 90, 66, 106)), "check mark drawn inside the box")
	assert.True(t, differs(blank, filled, image.Rect(50, 50, 170, 70)), "value drawn inside the text field")
	assert.False(t, differs(blank, filled, image.Rect(300, 300, 400, 400)))

	assert.Equal(t, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}, filled.RGBAAt(500, 500))
}

func differs(a, b *image.RGBA, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if a.RGBAAt(x, y) != b.RGBAAt(x, y) {
				return true
			}
		}
	}
	return false
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[int, string](2)
	c.Put(1, "a")
	c.Put(2, "b")
	_, ok := c.Get(1)
	require.True(t, ok)
	c.Put(3, "c")

	_, ok = c.Get(2)
	assert.False(t, ok, "least recently used entry evicted")
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, c.Len())

	c.Remove(1)
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
