package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tilepress/tilepress/internal/domain"
)

// parseHexColor converts a #rrggbb string to RGB components in [0,1].
func parseHexColor(s string) (r, g, b float64, err error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, fmt.Errorf("%w: color must be #rrggbb (got %q)", domain.ErrValidation, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: color must be #rrggbb (got %q)", domain.ErrValidation, s)
	}
	r = float64(v>>16&0xff) / 255
	g = float64(v>>8&0xff) / 255
	b = float64(v&0xff) / 255
	return r, g, b, nil
}
