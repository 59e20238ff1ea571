package render

import (
	"fmt"
	"image"
	"io"
	"strconv"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"
	"seehuhn.de/go/pdf/font"
	"seehuhn.de/go/pdf/font/standard"
	"seehuhn.de/go/pdf/graphics/color"

	"github.com/tilepress/tilepress/internal/domain"
	"github.com/tilepress/tilepress/internal/layout"
)

const (
	outlineInset = 10.0
	guideMargin  = 36.0
	guideTitle   = "Assembly Guide"
)

// RenderDocument writes the complete print document for the given
// source image and tiling grid to w. The page sequence follows
// BuildPlan. It returns the number of pages written.
func RenderDocument(w io.Writer, src image.Image, grid layout.Grid, settings domain.StyleSettings) (int, error) {
	paper := &pdf.Rectangle{
		URx: float64(grid.PaperWidth),
		URy: float64(grid.PaperHeight),
	}
	doc, err := document.WriteMultiPage(w, paper, pdf.V1_7, nil)
	if err != nil {
		return 0, fmt.Errorf("open document: %w", err)
	}

	bodyFont := standard.Helvetica.New()
	titleFont := standard.HelveticaBold.New()

	plan := BuildPlan(grid, settings)
	for _, spec := range plan {
		switch spec.Kind {
		case PageMap:
			err = renderMapPage(doc, src, grid, settings, spec)
		case PageBackside:
			err = renderBacksidePage(doc, grid, settings, bodyFont, spec)
		case PageGuide:
			err = renderGuidePage(doc, grid, settings, titleFont, bodyFont)
		}
		if err != nil {
			return 0, fmt.Errorf("render page %d: %w", spec.PageNumber, err)
		}
	}

	if err := doc.Close(); err != nil {
		return 0, fmt.Errorf("close document: %w", err)
	}
	return len(plan), nil
}

func renderMapPage(doc *document.MultiPage, src image.Image, grid layout.Grid, settings domain.StyleSettings, spec PageSpec) error {
	page := doc.AddPage()

	paperW := float64(grid.PaperWidth)
	paperH := float64(grid.PaperHeight)

	br, bg, bb, err := parseHexColor(settings.BackgroundColor)
	if err != nil {
		return err
	}
	page.SetFillColor(color.DeviceRGB(br, bg, bb))
	page.Rectangle(0, 0, paperW, paperH)
	page.Fill()

	rect, err := grid.TileRect(spec.TileX, spec.TileY)
	if err != nil {
		return err
	}
	tile := cropTile(src, rect)

	// The tile fills the page from the top-left corner; the last tile
	// in a row or column may cover less than the full sheet.
	destW := float64(rect.Dx()) * grid.Scale
	destH := float64(rect.Dy()) * grid.Scale

	page.PushGraphicsState()
	page.Transform(matrix.Matrix{destW, 0, 0, destH, 0, paperH - destH})
	page.DrawXObject(&tileImage{img: tile})
	page.PopGraphicsState()

	if settings.OutlineStyle != domain.OutlineNone {
		if err := strokeOutline(page, grid, settings); err != nil {
			return err
		}
	}

	return page.Close()
}

func strokeOutline(page *document.Page, grid layout.Grid, settings domain.StyleSettings) error {
	or, og, ob, err := parseHexColor(settings.OutlineColor)
	if err != nil {
		return err
	}

	page.PushGraphicsState()
	page.SetStrokeColor(color.DeviceRGB(or, og, ob))
	page.SetLineWidth(float64(settings.OutlineThickness))
	switch settings.OutlineStyle {
	case domain.OutlineDash:
		page.SetLineDash([]float64{9, 6}, 0)
	case domain.OutlineDotted:
		page.SetLineDash([]float64{2, 4}, 0)
	}
	page.Rectangle(outlineInset, outlineInset,
		float64(grid.PaperWidth)-2*outlineInset,
		float64(grid.PaperHeight)-2*outlineInset)
	page.Stroke()
	page.PopGraphicsState()
	return nil
}

func renderBacksidePage(doc *document.MultiPage, grid layout.Grid, settings domain.StyleSettings, F font.Layouter, spec PageSpec) error {
	page := doc.AddPage()

	paperW := float64(grid.PaperWidth)
	paperH := float64(grid.PaperHeight)

	tr, tg, tb, err := parseHexColor(settings.GuideColor)
	if err != nil {
		return err
	}

	size := 0.18 * min(paperW, paperH)

	page.TextBegin()
	page.SetFillColor(color.DeviceRGB(tr, tg, tb))
	page.TextSetFont(F, size)
	// Helvetica digits have a cap height of roughly 0.72 em; shift the
	// baseline down by half of that to center the number optically.
	page.TextFirstLine(paperW/2, paperH/2-0.36*size)
	page.TextShowAligned(strconv.Itoa(spec.PageNumber), 0, 0.5)
	page.TextEnd()

	return page.Close()
}

func renderGuidePage(doc *document.MultiPage, grid layout.Grid, settings domain.StyleSettings, titleFont, labelFont font.Layouter) error {
	page := doc.AddPage()

	paperW := float64(grid.PaperWidth)
	paperH := float64(grid.PaperHeight)

	gr, gg, gb, err := parseHexColor(settings.GuideColor)
	if err != nil {
		return err
	}
	guide := color.DeviceRGB(gr, gg, gb)

	const titleSize = 24.0
	page.TextBegin()
	page.SetFillColor(guide)
	page.TextSetFont(titleFont, titleSize)
	page.TextFirstLine(guideMargin, paperH-guideMargin-titleSize)
	page.TextShow(guideTitle)
	page.TextEnd()

	// Miniature of the full page grid, scaled uniformly to fit below
	// the title and centered horizontally.
	availW := paperW - 2*guideMargin
	availH := paperH - 3*guideMargin - titleSize
	gridW := float64(grid.PagesX * grid.PaperWidth)
	gridH := float64(grid.PagesY * grid.PaperHeight)
	k := min(availW/gridW, availH/gridH)

	cellW := k * float64(grid.PaperWidth)
	cellH := k * float64(grid.PaperHeight)
	originX := guideMargin + (availW-k*gridW)/2
	topY := paperH - 2*guideMargin - titleSize

	page.PushGraphicsState()
	page.SetStrokeColor(guide)
	page.SetFillColor(guide)
	page.SetLineWidth(1)

	labelSize := min(cellH*0.35, 18.0)
	for y := 0; y < grid.PagesY; y++ {
		for x := 0; x < grid.PagesX; x++ {
			llx := originX + float64(x)*cellW
			lly := topY - float64(y+1)*cellH
			page.Rectangle(llx, lly, cellW, cellH)
			page.Stroke()

			label := grid.PageNumber(x, y)
			page.TextBegin()
			page.TextSetFont(labelFont, labelSize)
			page.TextFirstLine(llx+cellW/2, lly+cellH/2-0.36*labelSize)
			page.TextShowAligned(strconv.Itoa(label), 0, 0.5)
			page.TextEnd()
		}
	}
	page.PopGraphicsState()

	return page.Close()
}
