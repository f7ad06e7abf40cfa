package board

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph_Square(t *testing.T) {
	items := []Item{
		note("r", RankRed, 0, 0),
		note("o", RankOrange, 1, 0),
		note("y", RankYellow, 0, 1),
		note("g", RankDarkGreen, 1, 1),
	}

	g, stats := BuildGraph(items)

	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount(), "the four unit sides are enough")
	for _, id := range []string{"r", "o", "y", "g"} {
		assert.Equal(t, 2, g.Degree(id), id)
	}
	assert.False(t, g.HasEdge("r", "g"), "diagonals are never needed")
	assert.False(t, g.HasEdge("o", "y"))

	assert.Equal(t, BuildStats{
		Items:            4,
		Notes:            4,
		CandidatePairs:   6,
		ProximityEdges:   4,
		ThresholdReached: true,
		MinNoteDegree:    2,
	}, stats)
}

func TestBuildGraph_LabelAndSingleNote(t *testing.T) {
	items := []Item{
		label("t", CategoryTeamLabel, "Alpha", 0, 0),
		note("n", RankDarkGreen, 0, 1, "ok"),
	}

	g, stats := BuildGraph(items)

	e, ok := g.EdgeBetween("t", "n")
	require.True(t, ok)
	assert.Equal(t, EdgeLabeling, e.Kind)
	assert.Equal(t, 1.0, e.Distance)
	assert.Equal(t, 1, g.EdgeCount())

	assert.Equal(t, 1, stats.AttachedLabels)
	assert.Equal(t, 0, stats.CandidatePairs)
	assert.False(t, stats.ThresholdReached)
	assert.Equal(t, 1, stats.MinNoteDegree)
}

func TestBuildGraph_Empty(t *testing.T) {
	g, stats := BuildGraph(nil)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, 0, stats.Items)
	assert.Equal(t, 0, stats.MinNoteDegree)
}

func TestBuildGraph_LabelsWithoutNotes(t *testing.T) {
	items := []Item{
		label("t", CategoryTeamLabel, "Alpha", 0, 0),
		label("p", CategoryTopicLabel, "Deploys", 1, 0),
	}

	g, stats := BuildGraph(items)

	assert.Equal(t, 2, g.NodeCount(), "labels stay as isolated nodes")
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, 0, stats.AttachedLabels)
	assert.Len(t, ConnectedComponents(g), 2)
}

func TestBuildGraph_LabelAttachesToNearestNote(t *testing.T) {
	items := []Item{
		note("far", RankYellow, 10, 0),
		note("near", RankYellow, 2, 0),
		label("t", CategoryTeamLabel, "Alpha", 0, 0),
		label("p", CategoryTopicLabel, "Deploys", 11, 0),
	}

	g, stats := BuildGraph(items)

	assert.True(t, g.HasEdge("t", "near"))
	assert.False(t, g.HasEdge("t", "far"))
	assert.True(t, g.HasEdge("p", "far"))
	assert.Equal(t, 1, g.Degree("t"))
	assert.Equal(t, 1, g.Degree("p"))
	assert.Equal(t, 2, stats.AttachedLabels)
}

func TestBuildGraph_TiesKeepInputOrder(t *testing.T) {
	items := []Item{
		label("t", CategoryTeamLabel, "Alpha", 0, 0),
		note("right", RankYellow, 1, 0),
		note("left", RankYellow, -1, 0),
	}

	g, _ := BuildGraph(items)
	assert.True(t, g.HasEdge("t", "right"), "equal distances resolve to the earlier note")
	assert.False(t, g.HasEdge("t", "left"))
}

func TestBuildGraph_TwoClusters(t *testing.T) {
	items := []Item{
		note("a1", RankRed, 0, 0),
		note("b1", RankRed, 1000, 1000),
		note("a2", RankRed, 10, 0),
		note("b2", RankRed, 1010, 1000),
		note("a3", RankRed, 5, 8),
		note("b3", RankRed, 1005, 1008),
	}

	g, stats := BuildGraph(items)

	assert.True(t, stats.ThresholdReached)
	assert.Equal(t, 6, stats.ProximityEdges)
	comps := ConnectedComponents(g)
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"a1", "a2", "a3"}, comps[0])
	assert.Equal(t, []string{"b1", "b2", "b3"}, comps[1])
}

func TestBuildGraph_LabelEdgesCountTowardDegree(t *testing.T) {
	// Both notes already have one labeling edge, so a single proximity edge
	// brings each of them to degree 2.
	items := []Item{
		note("n1", RankYellow, 0, 0),
		note("n2", RankYellow, 10, 0),
		label("t", CategoryTeamLabel, "Alpha", 0, 1),
		label("p", CategoryTopicLabel, "Deploys", 10, 1),
	}

	g, stats := BuildGraph(items)

	assert.Equal(t, 2, g.Degree("n1"))
	assert.Equal(t, 2, g.Degree("n2"))
	assert.Equal(t, 1, stats.ProximityEdges)
	assert.True(t, stats.ThresholdReached)
	assert.Equal(t, 2, stats.MinNoteDegree)
}

func TestBuildGraph_NearestPairMergedWhenLabelsSatisfyDegree(t *testing.T) {
	// Each note reaches degree 2 from its two labels alone; the nearest
	// note pair is still merged before the degree check stops the loop.
	items := []Item{
		note("n1", RankYellow, 0, 0),
		note("n2", RankYellow, 100, 0),
		label("t1", CategoryTeamLabel, "Alpha", 0, 1),
		label("p1", CategoryTopicLabel, "Deploys", 0, -1),
		label("t2", CategoryTeamLabel, "Beta", 100, 1),
		label("p2", CategoryTopicLabel, "Hiring", 100, -1),
	}

	g, stats := BuildGraph(items)

	assert.Equal(t, 4, stats.AttachedLabels)
	assert.True(t, g.HasEdge("n1", "n2"))
	assert.Equal(t, 1, stats.ProximityEdges)
	assert.True(t, stats.ThresholdReached)
	assert.Equal(t, 3, stats.MinNoteDegree)
	assert.Len(t, ConnectedComponents(g), 1)
}

func TestBuildGraph_TwoNotesExhaustPairs(t *testing.T) {
	items := []Item{
		note("a", RankYellow, 0, 0),
		note("b", RankYellow, 3, 4),
	}

	g, stats := BuildGraph(items)
	e, ok := g.EdgeBetween("a", "b")
	require.True(t, ok)
	assert.Equal(t, 5.0, e.Distance)
	assert.False(t, stats.ThresholdReached, "two notes cannot both reach degree 2")
	assert.Equal(t, 1, stats.MinNoteDegree)
	assert.Equal(t, stats.CandidatePairs, stats.ProximityEdges)
}

// randomBoard returns a reproducible board with n notes and m labels
func randomBoard(seed int64, n, m int) []Item {
	rng := rand.New(rand.NewSource(seed))
	items := make([]Item, 0, n+m)
	for i := 0; i < n; i++ {
		items = append(items, note(fmt.Sprintf("n%d", i), Ranks[rng.Intn(len(Ranks))],
			float64(rng.Intn(2000)), float64(rng.Intn(2000))))
	}
	for i := 0; i < m; i++ {
		cat := CategoryTeamLabel
		if i%2 == 1 {
			cat = CategoryTopicLabel
		}
		items = append(items, label(fmt.Sprintf("l%d", i), cat, fmt.Sprintf("label %d", i),
			float64(rng.Intn(2000)), float64(rng.Intn(2000))))
	}
	rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	return items
}

func TestBuildGraph_Properties(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			items := randomBoard(seed, 5+int(seed)*3, int(seed)%5)
			g, stats := BuildGraph(items)

			// every item is a node
			require.Equal(t, len(items), g.NodeCount())

			// each label has exactly one labeling edge, to a note
			labelingEdges := map[string]int{}
			for _, e := range g.Edges() {
				if e.Kind == EdgeLabeling {
					labelingEdges[e.From]++
					labelingEdges[e.To]++
				}
			}
			for _, it := range items {
				if it.IsLabel() {
					assert.Equal(t, 1, labelingEdges[it.ID], "label %s", it.ID)
					assert.Equal(t, 1, g.Degree(it.ID), "label %s only has its labeling edge", it.ID)
				}
			}

			// every note reaches degree 2, or the candidate pairs ran out
			if stats.ThresholdReached {
				for _, it := range items {
					if !it.IsLabel() {
						assert.GreaterOrEqual(t, g.Degree(it.ID), 2, "note %s", it.ID)
					}
				}
			} else {
				assert.Equal(t, stats.CandidatePairs, stats.ProximityEdges)
			}

			// proximity edges never touch labels
			byID := map[string]Item{}
			for _, it := range items {
				byID[it.ID] = it
			}
			for _, e := range g.Edges() {
				if e.Kind == EdgeProximity {
					assert.False(t, byID[e.From].IsLabel())
					assert.False(t, byID[e.To].IsLabel())
				}
			}
		})
	}
}

func TestBuildGraph_Deterministic(t *testing.T) {
	items := randomBoard(42, 60, 6)
	g1, s1 := BuildGraph(items)
	g2, s2 := BuildGraph(items)
	assert.Equal(t, g1.Edges(), g2.Edges())
	assert.Equal(t, s1, s2)
}

func TestSortPairs_Stable(t *testing.T) {
	pairs := []pairDistance{
		{dist: 2, a: 0, b: 1},
		{dist: 1, a: 0, b: 2},
		{dist: 2, a: 1, b: 2},
		{dist: 1, a: 1, b: 3},
	}
	sortPairs(pairs)
	assert.Equal(t, []pairDistance{
		{dist: 1, a: 0, b: 2},
		{dist: 1, a: 1, b: 3},
		{dist: 2, a: 0, b: 1},
		{dist: 2, a: 1, b: 2},
	}, pairs)
}

func BenchmarkBuildGraph(b *testing.B) {
	items := randomBoard(7, 500, 40)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BuildGraph(items)
	}
}
