// Package render turns a page grid plus style settings into a
// print-ready PDF document. The page sequence is planned as pure data
// first (BuildPlan) and rendered afterwards, so ordering and numbering
// are testable without decoding PDF output.
package render

import (
	"github.com/tilepress/tilepress/internal/domain"
	"github.com/tilepress/tilepress/internal/layout"
)

// PageKind discriminates the entries of a page plan.
type PageKind string

const (
	// PageMap carries one cropped tile of the source image.
	PageMap PageKind = "map"
	// PageBackside carries only a large page number, interleaved behind
	// its map sheet for double-sided printing.
	PageBackside PageKind = "backside"
	// PageGuide is the final assembly guide page.
	PageGuide PageKind = "guide"
)

// PageSpec describes one output page.
type PageSpec struct {
	Kind PageKind

	// PageNumber is the 1-based row-major sheet number. Set for map and
	// backside pages; zero for the guide page.
	PageNumber int

	// TileX, TileY locate the tile in the grid. Map pages only.
	TileX int
	TileY int
}

// BuildPlan returns the ordered page sequence for a grid: map tiles in
// row-major order, each followed by its backside number page when
// enabled (the last sheet has no following sheet to protect, so its
// backside page is omitted), and exactly one assembly guide page at the
// end.
func BuildPlan(grid layout.Grid, settings domain.StyleSettings) []PageSpec {
	total := grid.TotalPages()

	capacity := total + 1
	if settings.GenerateBacksideNumbers && total > 1 {
		capacity += total - 1
	}
	plan := make([]PageSpec, 0, capacity)

	for y := 0; y < grid.PagesY; y++ {
		for x := 0; x < grid.PagesX; x++ {
			number := grid.PageNumber(x, y)
			plan = append(plan, PageSpec{
				Kind:       PageMap,
				PageNumber: number,
				TileX:      x,
				TileY:      y,
			})

			last := x == grid.PagesX-1 && y == grid.PagesY-1
			if settings.GenerateBacksideNumbers && !last {
				plan = append(plan, PageSpec{
					Kind:       PageBackside,
					PageNumber: number,
				})
			}
		}
	}

	plan = append(plan, PageSpec{Kind: PageGuide})
	return plan
}
