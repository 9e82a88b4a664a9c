package snapshot

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ParseHex converts a "#rrggbb" or "#rgb" colour and an opacity in [0,1]
// to NRGBA.
func ParseHex(hex string, opacity float64) (color.NRGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: clampU8(int(math.Round(opacity * 255))),
	}, nil
}

func mustHex(hex string, opacity float64) color.NRGBA {
	c, err := ParseHex(hex, opacity)
	if err != nil {
		return color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: clampU8(int(math.Round(opacity * 255)))}
	}
	return c
}

// clampU8 clamps an int value to the uint8 range [0, 255].
func clampU8(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}
