// Package layout partitions a source raster into a grid of pages sized
// to a fixed paper format. All functions are pure: the same inputs
// always produce the same grid and crop rectangles.
package layout

import (
	"fmt"
	"image"
	"math"

	"github.com/tilepress/tilepress/internal/domain"
)

// Grid describes the page partition of an image for a given scale and
// paper format.
type Grid struct {
	PagesX int
	PagesY int

	// Paper pixel dimensions resolved from the paper size table.
	PaperWidth  int
	PaperHeight int
	Paper       domain.PaperSize

	// Source image dimensions and output scale the grid was computed for.
	ImageWidth  int
	ImageHeight int
	Scale       float64
}

// TotalPages is the number of map tiles in the grid.
func (g Grid) TotalPages() int {
	return g.PagesX * g.PagesY
}

// PageNumber returns the canonical 1-based row-major page number for
// tile (x, y): left-to-right, then top-to-bottom.
func (g Grid) PageNumber(x, y int) int {
	return y*g.PagesX + x + 1
}

// Compute derives the page grid for an image of w×h source pixels
// printed at the given scale onto the named paper format. Unknown paper
// names fall back to a4.
func Compute(w, h int, scale float64, paper string) (Grid, error) {
	if w <= 0 || h <= 0 {
		return Grid{}, fmt.Errorf("%w: image dimensions must be positive (got %dx%d)", domain.ErrValidation, w, h)
	}
	if scale <= 0 {
		return Grid{}, fmt.Errorf("%w: scale must be positive (got %g)", domain.ErrValidation, scale)
	}

	size, dims := domain.ResolvePaperSize(paper)

	return Grid{
		PagesX:      int(math.Ceil(float64(w) * scale / float64(dims.Width))),
		PagesY:      int(math.Ceil(float64(h) * scale / float64(dims.Height))),
		PaperWidth:  dims.Width,
		PaperHeight: dims.Height,
		Paper:       size,
		ImageWidth:  w,
		ImageHeight: h,
		Scale:       scale,
	}, nil
}

// TileRect returns the source-space crop rectangle for tile (x, y).
// Coordinates are floored to integer pixel boundaries and clamped to
// the image bounds, so the last row and column of tiles are typically
// partial. The rectangle always lies fully within
// [0,ImageWidth) × [0,ImageHeight); a zero-area result is a processing
// error, never a silently blank page.
func (g Grid) TileRect(x, y int) (image.Rectangle, error) {
	if x < 0 || x >= g.PagesX || y < 0 || y >= g.PagesY {
		return image.Rectangle{}, fmt.Errorf("%w: tile (%d,%d) outside %dx%d grid", domain.ErrProcessing, x, y, g.PagesX, g.PagesY)
	}

	// Tile edges are computed from the shared grid boundaries and then
	// floored, so adjacent tiles always meet exactly: tile x ends where
	// tile x+1 begins, and the union of all tiles covers the image with
	// no gaps.
	cropX := int(float64(x) * float64(g.PaperWidth) / g.Scale)
	cropY := int(float64(y) * float64(g.PaperHeight) / g.Scale)
	endX := min(int(float64(x+1)*float64(g.PaperWidth)/g.Scale), g.ImageWidth)
	endY := min(int(float64(y+1)*float64(g.PaperHeight)/g.Scale), g.ImageHeight)

	if endX <= cropX || endY <= cropY {
		return image.Rectangle{}, fmt.Errorf("%w: tile (%d,%d) has empty crop", domain.ErrProcessing, x, y)
	}

	return image.Rect(cropX, cropY, endX, endY), nil
}
