package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tether/internal/schema"
)

// CycleWarning reports schemas that require each other.
//
// A required cycle means no finite reply can satisfy the schemas: every
// object must contain another one. Recursion through optional fields,
// lists or unions is fine and is not reported. Cycles are warnings, not
// errors, since example synthesis stops at a fixed depth either way.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles finds required reference cycles among records.
//
// The algorithm:
//  1. Build a schema -> schema graph from fields that must hold a record
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// An acyclic set returns an empty warning list.
func AnalyzeCycles(records []*schema.Record) []CycleWarning {
	if len(records) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(records)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// dependencyGraph maps a schema name to the schemas it requires, in field
// order.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string
}

func buildDependencyGraph(records []*schema.Record) dependencyGraph {
	g := dependencyGraph{edges: make(map[string][]string)}
	seen := make(map[string]bool)

	var visit func(rec *schema.Record)
	visit = func(rec *schema.Record) {
		if rec == nil || seen[rec.Name()] {
			return
		}
		seen[rec.Name()] = true
		g.nodes = append(g.nodes, rec.Name())
		g.edges[rec.Name()] = []string{}
		for _, f := range rec.Fields() {
			for _, dep := range requiredRecords(f.Type) {
				g.edges[rec.Name()] = append(g.edges[rec.Name()], dep.Name())
				visit(dep)
			}
		}
	}
	for _, rec := range records {
		visit(rec)
	}
	return g
}

// requiredRecords returns the records a value of t must contain.
func requiredRecords(t schema.Type) []*schema.Record {
	switch tt := t.(type) {
	case schema.RecordType:
		if rec := tt.Record(); rec != nil {
			return []*schema.Record{rec}
		}
	case schema.TupleType:
		var out []*schema.Record
		for _, e := range tt.Elems {
			out = append(out, requiredRecords(e)...)
		}
		return out
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, g dependencyGraph) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(g dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning. The path starts at
// the SCC member that sorts first.
func cycleSCCToWarning(scc []string, g dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("schema %s requires itself: %s → %s", name, name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, g)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("schemas require each other: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges within the SCC from its first member
// until it returns there.
func reconstructCyclePath(scc []string, g dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)
	start := sorted[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
