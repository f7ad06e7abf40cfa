package board

import "sort"

// Group is one connected component of the board graph. Items are kept in
// input order.
type Group struct {
	Index int    `json:"index"`
	Items []Item `json:"items"`
}

// IDs returns the item IDs of the group
func (g Group) IDs() []string {
	ids := make([]string, len(g.Items))
	for i, it := range g.Items {
		ids[i] = it.ID
	}
	return ids
}

// Notes returns the note items of the group
func (g Group) Notes() []Item {
	var out []Item
	for _, it := range g.Items {
		if !it.IsLabel() {
			out = append(out, it)
		}
	}
	return out
}

// Labels returns the label items of the group, optionally filtered by category
func (g Group) Labels(categories ...Category) []Item {
	var out []Item
	for _, it := range g.Items {
		if !it.IsLabel() {
			continue
		}
		if len(categories) == 0 || containsCategory(categories, it.Category) {
			out = append(out, it)
		}
	}
	return out
}

func containsCategory(list []Category, c Category) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

// ConnectedComponents partitions the graph nodes into maximal connected
// components. Components are ordered by their first node, and each one lists
// its node IDs in insertion order.
func ConnectedComponents(g *Graph) [][]string {
	n := g.NodeCount()
	comp := make([]int, n)
	for i := range comp {
		comp[i] = -1
	}

	var members [][]int
	stack := make([]int, 0, n)
	for start := 0; start < n; start++ {
		if comp[start] >= 0 {
			continue
		}
		id := len(members)
		members = append(members, nil)
		comp[start] = id
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members[id] = append(members[id], cur)
			for _, next := range g.adj[cur] {
				if comp[next] < 0 {
					comp[next] = id
					stack = append(stack, next)
				}
			}
		}
	}

	out := make([][]string, len(members))
	for c, nodes := range members {
		sort.Ints(nodes)
		ids := make([]string, len(nodes))
		for i, node := range nodes {
			ids[i] = g.ids[node]
		}
		out[c] = ids
	}
	return out
}

// ExtractGroups materializes the components of g as groups of items. Items
// whose ID is not a node of g are skipped.
func ExtractGroups(g *Graph, items []Item) []Group {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	comps := ConnectedComponents(g)
	groups := make([]Group, 0, len(comps))
	for _, ids := range comps {
		grp := Group{Index: len(groups)}
		for _, id := range ids {
			if it, ok := byID[id]; ok {
				grp.Items = append(grp.Items, it)
			}
		}
		if len(grp.Items) > 0 {
			groups = append(groups, grp)
		}
	}
	return groups
}
