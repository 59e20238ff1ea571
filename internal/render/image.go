package render

import (
	"image"
	"image/draw"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/graphics/color"
)

// tileImage wraps a cropped raster tile as a PDF image XObject. The
// pixel data is written as 8-bit DeviceRGB samples, row by row from the
// top, compressed with the writer's default stream filter.
type tileImage struct {
	img image.Image
}

func (t *tileImage) Subtype() pdf.Name {
	return "Image"
}

func (t *tileImage) Embed(rm *pdf.ResourceManager) (pdf.Native, pdf.Unused, error) {
	var zero pdf.Unused

	csEmbedded, _, err := pdf.ResourceManagerEmbed(rm, color.DeviceRGBSpace)
	if err != nil {
		return nil, zero, err
	}

	bounds := t.img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	dict := pdf.Dict{
		"Type":             pdf.Name("XObject"),
		"Subtype":          pdf.Name("Image"),
		"Width":            pdf.Integer(width),
		"Height":           pdf.Integer(height),
		"ColorSpace":       csEmbedded,
		"BitsPerComponent": pdf.Integer(8),
	}

	buf := make([]byte, 0, width*height*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := t.img.At(x, y).RGBA()
			buf = append(buf, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}

	ref := rm.Out.Alloc()
	stm, err := rm.Out.OpenStream(ref, dict, pdf.FilterCompress{})
	if err != nil {
		return nil, zero, err
	}
	if _, err := stm.Write(buf); err != nil {
		return nil, zero, err
	}
	if err := stm.Close(); err != nil {
		return nil, zero, err
	}

	return ref, zero, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropTile extracts the given source-space rectangle from the decoded
// image. Standard library image types share their backing pixels via
// SubImage; anything else is copied.
func cropTile(src image.Image, rect image.Rectangle) image.Image {
	shifted := rect.Add(src.Bounds().Min)
	if s, ok := src.(subImager); ok {
		return s.SubImage(shifted)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, shifted.Min, draw.Src)
	return dst
}
