package region

import (
	"errors"
	"fmt"
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrMalformedGeometry is returned for rings that cannot take part in a union.
var ErrMalformedGeometry = errors.New("region: malformed geometry")

// Union merges the given multipolygons into one. Degenerate rings and
// non-finite coordinates are rejected with ErrMalformedGeometry; a panic in the
// clipper is turned into an error as well.
func Union(parts []orb.MultiPolygon) (result orb.MultiPolygon, err error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", ErrMalformedGeometry)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: polygon union failed: %v", ErrMalformedGeometry, r)
		}
	}()

	var acc polyclip.Polygon
	for i, mp := range parts {
		p, err := toClip(mp)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		if i == 0 {
			acc = p
			continue
		}
		acc = acc.Construct(polyclip.UNION, p)
	}

	result = fromClip(acc)
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: union is empty", ErrMalformedGeometry)
	}
	return result, nil
}

func toClip(mp orb.MultiPolygon) (polyclip.Polygon, error) {
	var out polyclip.Polygon
	for _, poly := range mp {
		for _, ring := range poly {
			pts := []orb.Point(ring)
			if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
				pts = pts[:len(pts)-1]
			}
			if len(pts) < 3 {
				return nil, fmt.Errorf("%w: ring with %d points", ErrMalformedGeometry, len(pts))
			}
			contour := make(polyclip.Contour, 0, len(pts))
			for _, p := range pts {
				if !finite(p[0]) || !finite(p[1]) {
					return nil, fmt.Errorf("%w: non-finite coordinate", ErrMalformedGeometry)
				}
				contour = append(contour, polyclip.Point{X: p[0], Y: p[1]})
			}
			out = append(out, contour)
		}
	}
	return out, nil
}

// fromClip rebuilds orb polygons from clipper contours. The clipper does not
// say which contours are holes, so nesting depth decides: even depth is an
// outer ring, odd depth a hole of the smallest enclosing outer ring.
func fromClip(p polyclip.Polygon) orb.MultiPolygon {
	rings := make([]orb.Ring, 0, len(p))
	for _, c := range p {
		if len(c) < 3 {
			continue
		}
		r := make(orb.Ring, 0, len(c)+1)
		for _, pt := range c {
			r = append(r, orb.Point{pt.X, pt.Y})
		}
		r = append(r, r[0])
		rings = append(rings, r)
	}

	depth := make([]int, len(rings))
	parent := make([]int, len(rings))
	for i := range rings {
		parent[i] = -1
		inner := rings[i][0]
		for j := range rings {
			if i == j || !planar.RingContains(rings[j], inner) {
				continue
			}
			depth[i]++
			if parent[i] == -1 || math.Abs(planar.Area(rings[j])) < math.Abs(planar.Area(rings[parent[i]])) {
				parent[i] = j
			}
		}
	}

	var out orb.MultiPolygon
	outerAt := make(map[int]int)
	for i, r := range rings {
		if depth[i]%2 == 0 {
			outerAt[i] = len(out)
			out = append(out, orb.Polygon{r})
		}
	}
	for i, r := range rings {
		if depth[i]%2 == 1 && parent[i] >= 0 {
			if k, ok := outerAt[parent[i]]; ok {
				out[k] = append(out[k], r)
			}
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
