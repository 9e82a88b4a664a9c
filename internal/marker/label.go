package marker

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/width"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// InquireText is shown instead of a price when none is known.
const InquireText = "문의"

const (
	badgeHeight    = 26
	badgePadding   = 8
	badgeMinWidth  = 44
	badgeTailSize  = 6
	narrowRuneSize = 6.5 // px per narrow rune at 12px font
)

var categoryColors = map[types.Category]string{
	types.CategoryColumbarium: "#5b6abf",
	types.CategoryNatural:     "#3f8f5a",
	types.CategoryCemetery:    "#8a6d3b",
	types.CategoryCrematorium: "#b0524a",
}

// PriceText formats the lower bound of a price range in 만원/억 units,
// or InquireText when the range is unknown.
func PriceText(p types.PriceRange) string {
	if !p.HasPrice() {
		return InquireText
	}
	v := p.Min
	if v <= 0 {
		v = p.Max
	}
	manwon := v / 10000
	switch {
	case manwon >= 10000:
		return fmt.Sprintf("%.1f억~", float64(manwon)/10000)
	case manwon > 0:
		return fmt.Sprintf("%d만~", manwon)
	default:
		return fmt.Sprintf("%s원~", humanize.Comma(v))
	}
}

// Label returns the short badge text: category short name and price text.
func Label(f types.Facility) string {
	return f.Category.ShortName() + " " + PriceText(f.PriceRange)
}

// Title returns the hover text of a marker.
func Title(f types.Facility) string {
	var b strings.Builder
	b.WriteString(f.Name)
	if f.PriceRange.HasPrice() {
		b.WriteString(" · ")
		if f.PriceRange.Min > 0 {
			b.WriteString(humanize.Comma(f.PriceRange.Min))
		}
		if f.PriceRange.Max > 0 && f.PriceRange.Max != f.PriceRange.Min {
			b.WriteString("~")
			b.WriteString(humanize.Comma(f.PriceRange.Max))
		}
		b.WriteString("원")
	}
	return b.String()
}

// TextUnits approximates the rendered width of s in narrow-character units.
// East Asian wide and fullwidth runes count double.
func TextUnits(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// BadgeWidth returns the badge width in pixels for label.
func BadgeWidth(label string) int {
	w := int(float64(TextUnits(label))*narrowRuneSize+0.5) + 2*badgePadding
	if w < badgeMinWidth {
		return badgeMinWidth
	}
	return w
}

// CategoryColor returns the badge colour of c as a #rrggbb string.
func CategoryColor(c types.Category) string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return "#666666"
}

// Badge builds the SVG icon for a facility marker.
func Badge(label string, c types.Category) string {
	w := BadgeWidth(label)
	color := CategoryColor(c)

	var text strings.Builder
	_ = xml.EscapeText(&text, []byte(label))

	h := badgeHeight
	mid := w / 2
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<rect x="0.5" y="0.5" width="%d" height="%d" rx="%d" fill="%s" stroke="#ffffff"/>`+
			`<path d="M%d %d L%d %d L%d %d Z" fill="%s"/>`+
			`<text x="%d" y="%d" font-size="12" font-weight="600" fill="#ffffff" text-anchor="middle">%s</text>`+
			`</svg>`,
		w, h+badgeTailSize, w, h+badgeTailSize,
		w-1, h-1, h/2, color,
		mid-badgeTailSize, h-1, mid, h+badgeTailSize-1, mid+badgeTailSize, h-1, color,
		mid, h/2+4, text.String(),
	)
}
