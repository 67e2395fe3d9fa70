// Package graph builds the lineage of a manifest: which records each model
// selects from, which models select from it, and a PageRank over those
// edges so heavily reused models rank first.
package graph

import (
	"sort"

	"github.com/dbtai-dev/dbtai/internal/manifest"
)

const (
	pageRankIterations = 20
	dampingFactor      = 0.85
)

// Node is one manifest record in the lineage graph.
type Node struct {
	ID       string
	Name     string
	Kind     string
	File     string
	OutEdges []string // ids this node depends on
	InEdges  []string // ids that depend on this node
	PageRank float64
}

// Edge is a depends_on entry whose target is not in the manifest.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Hop is a node reached by a lineage walk, with its distance from the start.
type Hop struct {
	Node  *Node
	Depth int
}

// Graph is the lineage of one manifest document.
type Graph struct {
	Nodes    map[string]*Node // ID -> Node
	dangling []Edge
	byName   map[string]string
}

// NewGraph creates a new empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes:  make(map[string]*Node),
		byName: make(map[string]string),
	}
}

// Build constructs the lineage graph of doc. Dependencies that point outside
// the manifest are recorded rather than failing the build.
func Build(doc *manifest.Document) *Graph {
	g := NewGraph()

	// First pass: create all nodes
	records := doc.Nodes()
	ids := make([]string, 0, len(records))
	for _, record := range records {
		id := record.UniqueID
		if id == "" {
			id = record.Name
		}
		ids = append(ids, id)

		node := &Node{
			ID:       id,
			Name:     record.Name,
			Kind:     record.ResourceType,
			OutEdges: make([]string, 0, len(record.DependsOn.Nodes)),
			InEdges:  make([]string, 0),
		}
		if file, err := record.FilePath(); err == nil {
			node.File = file
		}
		g.Nodes[id] = node
		// Name lookups follow the manifest's first match.
		if _, seen := g.byName[record.Name]; !seen {
			g.byName[record.Name] = id
		}
	}

	// Second pass: edges from depends_on
	for i, record := range records {
		from := g.Nodes[ids[i]]
		for _, dep := range record.DependsOn.Nodes {
			target, ok := g.Nodes[dep]
			if !ok {
				g.dangling = append(g.dangling, Edge{From: from.Name, To: dep})
				continue
			}
			from.OutEdges = append(from.OutEdges, target.ID)
			target.InEdges = append(target.InEdges, from.ID)
		}
	}

	g.normalizeEdges()
	g.calculatePageRank(pageRankIterations, dampingFactor)
	return g
}

// Lookup returns the node for a model name.
func (g *Graph) Lookup(name string) (*Node, error) {
	id, ok := g.byName[name]
	if !ok {
		return nil, &manifest.NodeNotFoundError{Name: name}
	}
	return g.Nodes[id], nil
}

// Dangling lists depends_on entries with no matching record, in manifest order.
func (g *Graph) Dangling() []Edge {
	out := make([]Edge, len(g.dangling))
	copy(out, g.dangling)
	return out
}

// Upstream walks everything name depends on, nearest first. A maxDepth of
// zero or less walks the whole lineage.
func (g *Graph) Upstream(name string, maxDepth int) ([]Hop, error) {
	return g.walk(name, maxDepth, func(n *Node) []string { return n.OutEdges })
}

// Downstream walks everything that depends on name, nearest first.
func (g *Graph) Downstream(name string, maxDepth int) ([]Hop, error) {
	return g.walk(name, maxDepth, func(n *Node) []string { return n.InEdges })
}

func (g *Graph) walk(name string, maxDepth int, next func(*Node) []string) ([]Hop, error) {
	start, err := g.Lookup(name)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{start.ID: true}
	frontier := []*Node{start}
	hops := make([]Hop, 0)
	for depth := 1; len(frontier) > 0 && (maxDepth <= 0 || depth <= maxDepth); depth++ {
		var level []*Node
		for _, node := range frontier {
			for _, id := range next(node) {
				if visited[id] {
					continue
				}
				visited[id] = true
				level = append(level, g.Nodes[id])
			}
		}
		sort.Slice(level, func(i, j int) bool { return level[i].Name < level[j].Name })
		for _, node := range level {
			hops = append(hops, Hop{Node: node, Depth: depth})
		}
		frontier = level
	}
	return hops, nil
}

// calculatePageRank computes importance scores for all nodes
func (g *Graph) calculatePageRank(iterations int, dampingFactor float64) {
	n := float64(len(g.Nodes))
	if n == 0 {
		return
	}

	for _, node := range g.Nodes {
		node.PageRank = 1.0 / n
	}

	for i := 0; i < iterations; i++ {
		newRanks := make(map[string]float64, len(g.Nodes))

		for id, node := range g.Nodes {
			rank := (1 - dampingFactor) / n

			// Dependents pass rank to what they select from.
			for _, inID := range node.InEdges {
				if inNode, ok := g.Nodes[inID]; ok {
					outDegree := float64(len(inNode.OutEdges))
					if outDegree > 0 {
						rank += dampingFactor * (inNode.PageRank / outDegree)
					}
				}
			}

			newRanks[id] = rank
		}

		for id, rank := range newRanks {
			g.Nodes[id].PageRank = rank
		}
	}
}

// TopNodes returns the most depended-on nodes by PageRank
func (g *Graph) TopNodes(n int) []*Node {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].PageRank == nodes[j].PageRank {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].PageRank > nodes[j].PageRank
	})

	if n <= 0 || n > len(nodes) {
		n = len(nodes)
	}
	return nodes[:n]
}

func (g *Graph) normalizeEdges() {
	for _, node := range g.Nodes {
		node.OutEdges = dedupeAndSort(node.OutEdges)
		node.InEdges = dedupeAndSort(node.InEdges)
	}
}

func dedupeAndSort(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
