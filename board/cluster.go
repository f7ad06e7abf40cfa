package board

import "sort"

// LargeInputThreshold is the note count above which the all-pairs distance
// list becomes the dominant memory and time cost of a run. Boards beyond it
// still cluster correctly but would want a spatial index.
const LargeInputThreshold = 5000

// minNoteDegree is the degree every note must reach before merging stops
const minNoteDegree = 2

// BuildStats describes how a graph was built
type BuildStats struct {
	Items            int  `json:"items"`
	Labels           int  `json:"labels"`
	Notes            int  `json:"notes"`
	AttachedLabels   int  `json:"attachedLabels"`
	CandidatePairs   int  `json:"candidatePairs"`   // note pairs considered for merging
	ProximityEdges   int  `json:"proximityEdges"`   // note pairs actually merged
	ThresholdReached bool `json:"thresholdReached"` // every note reached the minimum degree
	MinNoteDegree    int  `json:"minNoteDegree"`
}

// pairDistance is a candidate edge between two item indexes
type pairDistance struct {
	dist float64
	a, b int
}

// sortPairs orders candidates by ascending distance. Equal distances keep
// their enumeration order, so results depend only on input order.
func sortPairs(pairs []pairDistance) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].dist < pairs[j].dist
	})
}

// BuildGraph connects the items of a board.
//
// Every item becomes a node, in input order. Labels are then attached to
// notes: all (label, note) pairs are scanned nearest first and each label
// takes the first pair it appears in. Notes are then merged: all note pairs
// are scanned nearest first and added as proximity edges until every note
// has at least two edges or the pairs run out. Label nodes never take part
// in the stopping check.
func BuildGraph(items []Item) (*Graph, BuildStats) {
	g := NewGraph()
	stats := BuildStats{Items: len(items)}

	nodes := make([]int, len(items))
	var labels, notes []int
	for i, it := range items {
		nodes[i] = g.AddNode(it.ID)
		if it.IsLabel() {
			labels = append(labels, i)
		} else {
			notes = append(notes, i)
		}
	}
	stats.Labels = len(labels)
	stats.Notes = len(notes)

	stats.AttachedLabels = attachLabels(g, items, nodes, labels, notes)
	mergeNotes(g, items, nodes, notes, &stats)

	return g, stats
}

// attachLabels adds one labeling edge per label, to the note of the globally
// nearest remaining (label, note) pair. Returns the number of labels attached.
func attachLabels(g *Graph, items []Item, nodes, labels, notes []int) int {
	if len(labels) == 0 || len(notes) == 0 {
		return 0
	}

	pairs := make([]pairDistance, 0, len(labels)*len(notes))
	for _, l := range labels {
		for _, n := range notes {
			pairs = append(pairs, pairDistance{
				dist: Distance(items[l].Position, items[n].Position),
				a:    l,
				b:    n,
			})
		}
	}
	sortPairs(pairs)

	attached := make(map[int]bool, len(labels))
	for _, p := range pairs {
		if attached[p.a] {
			continue
		}
		g.addEdgeIdx(nodes[p.a], nodes[p.b], EdgeLabeling, p.dist)
		attached[p.a] = true
		if len(attached) == len(labels) {
			break
		}
	}
	return len(attached)
}

// mergeNotes adds proximity edges between notes, nearest pair first, until
// the minimum degree over note nodes reaches minNoteDegree.
func mergeNotes(g *Graph, items []Item, nodes, notes []int, stats *BuildStats) {
	// Distinct note nodes; degrees already include labeling edges
	noteNodes := make(map[int]bool, len(notes))
	for _, n := range notes {
		noteNodes[nodes[n]] = true
	}
	deficient := 0
	for node := range noteNodes {
		if g.degreeIdx(node) < minNoteDegree {
			deficient++
		}
	}

	if len(notes) >= 2 {
		pairs := make([]pairDistance, 0, len(notes)*(len(notes)-1)/2)
		for i := 0; i < len(notes); i++ {
			for j := i + 1; j < len(notes); j++ {
				a, b := notes[i], notes[j]
				pairs = append(pairs, pairDistance{
					dist: Distance(items[a].Position, items[b].Position),
					a:    a,
					b:    b,
				})
			}
		}
		sortPairs(pairs)
		stats.CandidatePairs = len(pairs)

		// The nearest pair is always merged; the degree check follows each
		// insertion.
		for _, p := range pairs {
			na, nb := nodes[p.a], nodes[p.b]
			if g.addEdgeIdx(na, nb, EdgeProximity, p.dist) {
				stats.ProximityEdges++
				if g.degreeIdx(na) == minNoteDegree {
					deficient--
				}
				if g.degreeIdx(nb) == minNoteDegree {
					deficient--
				}
			}
			if deficient <= 0 {
				break
			}
		}
	}

	stats.ThresholdReached = deficient <= 0
	stats.MinNoteDegree = minDegree(g, noteNodes)
}

func minDegree(g *Graph, nodes map[int]bool) int {
	if len(nodes) == 0 {
		return 0
	}
	lowest := -1
	for node := range nodes {
		if d := g.degreeIdx(node); lowest < 0 || d < lowest {
			lowest = d
		}
	}
	return lowest
}
