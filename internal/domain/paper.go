package domain

import "strings"

// PaperSize identifies a named paper format.
type PaperSize string

const (
	PaperA4      PaperSize = "a4"
	PaperA3      PaperSize = "a3"
	PaperA2      PaperSize = "a2"
	PaperA1      PaperSize = "a1"
	PaperA0      PaperSize = "a0"
	PaperLetter  PaperSize = "letter"
	PaperLegal   PaperSize = "legal"
	PaperTabloid PaperSize = "tabloid"
)

func (p PaperSize) String() string { return string(p) }

func (p PaperSize) IsValid() bool {
	_, ok := paperDimensions[p]
	return ok
}

// PaperDimensions holds the pixel size of a paper format at the
// reference resolution (1 px = 1 PDF point, 72 dpi).
type PaperDimensions struct {
	Width  int
	Height int
}

var paperDimensions = map[PaperSize]PaperDimensions{
	PaperA4:      {Width: 595, Height: 842},
	PaperA3:      {Width: 842, Height: 1191},
	PaperA2:      {Width: 1191, Height: 1684},
	PaperA1:      {Width: 1684, Height: 2384},
	PaperA0:      {Width: 2384, Height: 3370},
	PaperLetter:  {Width: 612, Height: 792},
	PaperLegal:   {Width: 612, Height: 1008},
	PaperTabloid: {Width: 792, Height: 1224},
}

// ResolvePaperSize maps a paper format name to its pixel dimensions.
// Unknown names fall back to a4 rather than failing.
func ResolvePaperSize(name string) (PaperSize, PaperDimensions) {
	size := PaperSize(strings.ToLower(strings.TrimSpace(name)))
	dims, ok := paperDimensions[size]
	if !ok {
		return PaperA4, paperDimensions[PaperA4]
	}
	return size, dims
}
