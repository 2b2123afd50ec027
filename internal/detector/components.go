package detector

import (
	"sort"

	"agentwatch/internal/models"
)

// connectedComponents treats edges as undirected and returns each component's
// agent ids, sorted, with components ordered by their smallest id.
func connectedComponents(edges []models.InteractionEdge) [][]int64 {
	adjacency := make(map[int64][]int64)
	for _, e := range edges {
		if e.SourceAgentID == e.TargetAgentID {
			continue
		}
		adjacency[e.SourceAgentID] = append(adjacency[e.SourceAgentID], e.TargetAgentID)
		adjacency[e.TargetAgentID] = append(adjacency[e.TargetAgentID], e.SourceAgentID)
	}

	nodes := make([]int64, 0, len(adjacency))
	for id := range adjacency {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	visited := make(map[int64]bool, len(nodes))
	var components [][]int64
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		var component []int64
		stack := []int64{start}
		visited[start] = true
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, node)
			for _, next := range adjacency[node] {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })
		components = append(components, component)
	}
	return components
}
