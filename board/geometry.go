package board

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Orb converts the point to an orb.Point
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

func pointFromOrb(p orb.Point) Point {
	return Point{X: p[0], Y: p[1]}
}

// Distance returns the Euclidean distance between two board positions
func Distance(a, b Point) float64 {
	return planar.Distance(a.Orb(), b.Orb())
}

// itemPoints collects the positions of items as an orb.MultiPoint
func itemPoints(items []Item) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(items))
	for i, it := range items {
		mp[i] = it.Position.Orb()
	}
	return mp
}

// Bounds returns the bounding box of the item positions.
// The second return value is false when items is empty.
func Bounds(items []Item) (orb.Bound, bool) {
	if len(items) == 0 {
		return orb.Bound{}, false
	}
	return itemPoints(items).Bound(), true
}

// Center returns the center of the items' bounding box, or the zero point
// when there are no items.
func Center(items []Item) Point {
	b, ok := Bounds(items)
	if !ok {
		return Point{}
	}
	return pointFromOrb(b.Center())
}
