// Package cluster groups viewport markers into labelled cluster badges.
package cluster

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/marker"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// Cluster is a map overlay standing in for one or more markers.
type Cluster struct {
	Center  types.LatLng
	Members []*marker.Handle
	// Label holds the place name and the member count line.
	Label [2]string
	Icon  string
}

func (*Cluster) Kind() mapview.Kind { return mapview.KindCluster }

// Count returns the number of members.
func (c *Cluster) Count() int { return len(c.Members) }

// Clusterer groups markers for one zoom level. Implementations must be
// deterministic for a given marker order.
type Clusterer interface {
	Cluster(zoom int, markers []*marker.Handle) []*Cluster
}

// GridClusterer assigns each marker to the first cluster whose pixel square
// (center ± GridSize) contains it, creating a new cluster otherwise.
// A cluster keeps the position of its first member.
type GridClusterer struct {
	GridSize int
}

// DefaultGridSize is the cluster radius in screen pixels.
const DefaultGridSize = 60

func (g GridClusterer) Cluster(zoom int, markers []*marker.Handle) []*Cluster {
	size := float64(g.GridSize)
	if size <= 0 {
		size = DefaultGridSize
	}

	type bucket struct {
		cluster *Cluster
		px      orb.Point
	}
	var buckets []bucket

	for _, h := range markers {
		px := pixel(h.Position, zoom)
		placed := false
		for i := range buckets {
			b := &buckets[i]
			if abs(px[0]-b.px[0]) <= size && abs(px[1]-b.px[1]) <= size {
				b.cluster.Members = append(b.cluster.Members, h)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{
				cluster: &Cluster{Center: h.Position, Members: []*marker.Handle{h}},
				px:      px,
			})
		}
	}

	out := make([]*Cluster, len(buckets))
	for i, b := range buckets {
		out[i] = b.cluster
	}
	return out
}

// pixel projects p to global Web Mercator pixel coordinates at zoom.
func pixel(p types.LatLng, zoom int) orb.Point {
	f := maptile.Fraction(p.Point(), maptile.Zoom(zoom))
	return orb.Point{f[0] * 256, f[1] * 256}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ClusterIcon builds the two-line SVG badge of a cluster.
func ClusterIcon(label [2]string, count int) string {
	radius := 22
	switch {
	case count >= 100:
		radius = 30
	case count >= 10:
		radius = 26
	}
	d := radius * 2

	var place, cnt strings.Builder
	_ = xml.EscapeText(&place, []byte(label[0]))
	_ = xml.EscapeText(&cnt, []byte(label[1]))

	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<circle cx="%d" cy="%d" r="%d" fill="#2f3e9e" fill-opacity="0.85" stroke="#ffffff" stroke-width="2"/>`+
			`<text x="%d" y="%d" font-size="10" fill="#ffffff" text-anchor="middle">%s</text>`+
			`<text x="%d" y="%d" font-size="12" font-weight="700" fill="#ffffff" text-anchor="middle">%s</text>`+
			`</svg>`,
		d, d, d, d,
		radius, radius, radius-1,
		radius, radius-2, place.String(),
		radius, radius+12, cnt.String(),
	)
}
