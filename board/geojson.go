package board

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds written to the "kind" property
const (
	FeatureKindItem  = "item"
	FeatureKindGroup = "group"
	FeatureKindEdge  = "edge"
)

// ResultToFeatureCollection converts a run into GeoJSON in board
// coordinates: one outline feature per group, one point per item and one
// line per graph edge.
func ResultToFeatureCollection(res *Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, a := range res.Analyses {
		members := append(append([]Item{}, a.Notes...), a.Labels...)
		outline := GroupOutline(members)
		if outline == nil {
			continue
		}
		f := geojson.NewFeature(outline)
		f.ID = a.GroupID()
		f.Properties["kind"] = FeatureKindGroup
		f.Properties["group"] = a.Group
		f.Properties["groupId"] = a.GroupID()
		f.Properties["team"] = a.TeamName
		f.Properties["topic"] = a.Topic
		f.Properties["population"] = a.Population
		if a.Score.Valid {
			f.Properties["score"] = a.Score.Value
		} else {
			f.Properties["score"] = nil
		}
		f.Properties["positivePhrases"] = a.Positive.Phrases
		f.Properties["negativePhrases"] = a.Negative.Phrases
		fc.Append(f)
	}

	groupOf := itemGroups(res.Analyses)
	for _, it := range res.Items {
		f := geojson.NewFeature(it.Position.Orb())
		f.ID = it.ID
		f.Properties["kind"] = FeatureKindItem
		f.Properties["category"] = it.Category.String()
		if r, ok := it.ColorRank(); ok {
			f.Properties["color"] = r.String()
		}
		if it.Text != "" {
			f.Properties["text"] = it.Text
		}
		if g, ok := groupOf[it.ID]; ok {
			f.Properties["group"] = g
		}
		fc.Append(f)
	}

	positions := make(map[string]orb.Point, len(res.Items))
	for _, it := range res.Items {
		positions[it.ID] = it.Position.Orb()
	}
	for _, e := range res.Edges {
		from, okFrom := positions[e.From]
		to, okTo := positions[e.To]
		if !okFrom || !okTo {
			continue
		}
		f := geojson.NewFeature(orb.LineString{from, to})
		f.Properties["kind"] = FeatureKindEdge
		f.Properties["edge"] = e.Kind.String()
		f.Properties["from"] = e.From
		f.Properties["to"] = e.To
		f.Properties["distance"] = e.Distance
		fc.Append(f)
	}

	return fc
}

// itemGroups maps item IDs to the index of the group they belong to
func itemGroups(analyses []Analysis) map[string]int {
	out := make(map[string]int)
	for _, a := range analyses {
		for _, it := range a.Notes {
			out[it.ID] = a.Group
		}
		for _, it := range a.Labels {
			out[it.ID] = a.Group
		}
	}
	return out
}
