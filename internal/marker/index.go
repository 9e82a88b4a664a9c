package marker

import (
	"sort"

	"github.com/asim/quadtree"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// Index is a spatial index over a display list. It is built once per list and
// answers viewport queries in list order.
type Index struct {
	facilities []types.DisplayFacility
	tree       *quadtree.QuadTree
	size       int
}

const searchPad = 1e-9

type indexed struct {
	pos int
}

// NewIndex indexes every facility that has coordinates. Duplicate ids keep
// their first occurrence only.
func NewIndex(facilities []types.DisplayFacility) *Index {
	center := quadtree.NewPoint(0, 0, nil)
	half := quadtree.NewPoint(90, 180, nil)
	tree := quadtree.New(quadtree.NewAABB(center, half), 0, nil)

	seen := make(map[string]struct{}, len(facilities))
	size := 0
	for i, f := range facilities {
		if !f.HasCoordinates() {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		tree.Insert(quadtree.NewPoint(f.Fixed.Lat, f.Fixed.Lng, indexed{pos: i}))
		size++
	}

	return &Index{facilities: facilities, tree: tree, size: size}
}

// Len returns the number of indexed facilities.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return x.size
}

// Facilities returns the display list the index was built from.
func (x *Index) Facilities() []types.DisplayFacility {
	if x == nil {
		return nil
	}
	return x.facilities
}

// Visible returns facilities whose fixed coordinate lies inside b, in list
// order, truncated to limit entries (limit <= 0 means no limit).
func (x *Index) Visible(b types.Bounds, limit int) []types.DisplayFacility {
	if x == nil || x.size == 0 || !b.Valid() {
		return nil
	}

	c := b.Center()
	center := quadtree.NewPoint(c.Lat, c.Lng, nil)
	// pad so points exactly on an edge survive a strict containment test
	half := quadtree.NewPoint(b.Height()/2+searchPad, b.Width()/2+searchPad, nil)
	points := x.tree.Search(quadtree.NewAABB(center, half))

	positions := make([]int, 0, len(points))
	for _, pt := range points {
		ref, ok := pt.Data().(indexed)
		if !ok {
			continue
		}
		// the tree search box is approximate at the edges; re-check exactly
		if !b.Contains(x.facilities[ref.pos].Fixed) {
			continue
		}
		positions = append(positions, ref.pos)
	}
	sort.Ints(positions)

	if limit > 0 && len(positions) > limit {
		positions = positions[:limit]
	}

	out := make([]types.DisplayFacility, len(positions))
	for i, pos := range positions {
		out[i] = x.facilities[pos]
	}
	return out
}
