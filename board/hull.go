package board

import (
	"sort"

	"github.com/paulmach/orb"
)

// convexHull returns the convex hull of the points in counter-clockwise
// order using Andrew's monotone chain. Fewer than three points are returned
// as given.
func convexHull(points []orb.Point) []orb.Point {
	if len(points) < 3 {
		result := make([]orb.Point, len(points))
		copy(result, points)
		return result
	}

	// Sort by x, then y
	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	n := len(sorted)
	hull := make([]orb.Point, 0, 2*n)

	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// last point repeats the first
	return hull[:len(hull)-1]
}

// GroupOutline returns the outline of a set of items: a Polygon when the
// positions span an area, a LineString when they are collinear and a Point
// when they coincide. It returns nil for no items.
func GroupOutline(items []Item) orb.Geometry {
	if len(items) == 0 {
		return nil
	}

	hull := convexHull(uniquePoints(itemPoints(items)))
	switch len(hull) {
	case 1:
		return hull[0]
	case 2:
		return orb.LineString(hull)
	}

	ring := make(orb.Ring, 0, len(hull)+1)
	ring = append(ring, hull...)
	ring = append(ring, hull[0])
	return orb.Polygon{ring}
}

func uniquePoints(mp orb.MultiPoint) []orb.Point {
	seen := make(map[orb.Point]bool, len(mp))
	out := make([]orb.Point, 0, len(mp))
	for _, p := range mp {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
