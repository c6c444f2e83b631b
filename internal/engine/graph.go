package engine

import (
	"fmt"
	"strings"

	"github.com/groundwork-iac/groundwork/internal/ir"
)

// DAG is the dependency graph over resource addresses. An edge A->B
// means A must exist and be up to date before B is applied.
type DAG struct {
	nodes    map[string]*dagNode
	seq      []string // declaration order, used for deterministic tie-breaking
	order    []string // topological order (creation order)
	revOrder []string // reverse topological order (destruction order)
}

type dagNode struct {
	addr       string
	deps       []string // addresses this node depends on
	dependents []string // addresses that depend on this node
}

// BuildDAG constructs the dependency graph from expanded resources.
// Edges come from explicit dependsOn entries and from ref:// tokens in
// properties. A reference to an unknown resource, or to one disabled by
// count = 0, fails here rather than surfacing as a late backend error.
func BuildDAG(resources []*ir.Resource, disabled map[string]bool) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode)}

	for _, res := range resources {
		addr := res.Addr()
		if _, exists := dag.nodes[addr]; exists {
			return nil, &ValidationError{Resource: addr, Detail: "duplicate resource address"}
		}
		dag.nodes[addr] = &dagNode{addr: addr}
		dag.seq = append(dag.seq, addr)
	}

	for _, res := range resources {
		addr := res.Addr()
		node := dag.nodes[addr]

		for _, dep := range res.DependsOn {
			if err := dag.checkTarget(addr, dep, disabled); err != nil {
				return nil, err
			}
			node.deps = append(node.deps, dep)
		}

		for _, ref := range extractRefs(res.Properties) {
			target, _, ok := splitRef(ref)
			if !ok {
				return nil, &ValidationError{Resource: addr, Detail: fmt.Sprintf("malformed reference %q", ref)}
			}
			if err := dag.checkTarget(addr, target, disabled); err != nil {
				return nil, err
			}
			node.deps = append(node.deps, target)
		}
	}

	dag.buildDependents()

	if cycle := dag.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	dag.order = dag.topoSort()
	dag.revOrder = reverse(dag.order)
	return dag, nil
}

// BuildDAGFromState constructs the graph from stored state records,
// used to order destroys when the desired configuration is gone.
func BuildDAGFromState(resources []*ir.ResourceState) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode)}

	for _, res := range resources {
		addr := res.Addr()
		if _, exists := dag.nodes[addr]; !exists {
			dag.nodes[addr] = &dagNode{addr: addr}
			dag.seq = append(dag.seq, addr)
		}
	}
	for _, res := range resources {
		node := dag.nodes[res.Addr()]
		for _, dep := range res.Dependencies {
			if _, ok := dag.nodes[dep]; ok {
				node.deps = append(node.deps, dep)
			}
		}
	}

	dag.buildDependents()

	if cycle := dag.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	dag.order = dag.topoSort()
	dag.revOrder = reverse(dag.order)
	return dag, nil
}

// checkTarget validates one dependency edge target.
func (d *DAG) checkTarget(from, target string, disabled map[string]bool) error {
	if _, ok := d.nodes[target]; ok {
		return nil
	}
	base := stripIndex(target)
	if disabled[base] {
		return &ValidationError{
			Resource: from,
			Detail:   fmt.Sprintf("references %s, which is disabled (count = 0)", target),
		}
	}
	return &ValidationError{
		Resource: from,
		Detail:   fmt.Sprintf("references unknown resource %s", target),
	}
}

// stripIndex removes a trailing [i] or ["key"] instance suffix.
func stripIndex(addr string) string {
	if i := strings.IndexByte(addr, '['); i > 0 {
		return addr[:i]
	}
	return addr
}

func (d *DAG) buildDependents() {
	for _, addr := range d.seq {
		for _, dep := range d.nodes[addr].deps {
			d.nodes[dep].dependents = append(d.nodes[dep].dependents, addr)
		}
	}
}

// findCycle performs depth-first traversal with a recursion stack and
// returns the members of the first cycle found, or nil.
func (d *DAG) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var walk func(addr string, path []string) []string
	walk = func(addr string, path []string) []string {
		visited[addr] = true
		onStack[addr] = true
		path = append(path, addr)

		for _, dep := range d.nodes[addr].deps {
			if !visited[dep] {
				if cycle := walk(dep, path); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				// Close the loop from the first occurrence of dep.
				for i, member := range path {
					if member == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
			}
		}

		onStack[addr] = false
		return nil
	}

	for _, addr := range d.seq {
		if !visited[addr] {
			if cycle := walk(addr, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoSort runs Kahn's algorithm. Ties among ready nodes break by
// declaration order so plans are reproducible run to run.
func (d *DAG) topoSort() []string {
	inDegree := make(map[string]int, len(d.nodes))
	for _, addr := range d.seq {
		inDegree[addr] = len(d.nodes[addr].deps)
	}

	emitted := make(map[string]bool, len(d.nodes))
	sorted := make([]string, 0, len(d.nodes))

	for len(sorted) < len(d.seq) {
		next := ""
		for _, addr := range d.seq {
			if !emitted[addr] && inDegree[addr] == 0 {
				next = addr
				break
			}
		}
		if next == "" {
			// Unreachable after findCycle has passed.
			break
		}
		emitted[next] = true
		sorted = append(sorted, next)
		for _, dependent := range d.nodes[next].dependents {
			inDegree[dependent]--
		}
	}

	return sorted
}

// CreationOrder returns addresses in dependency-respecting creation order.
func (d *DAG) CreationOrder() []string {
	return d.order
}

// DestructionOrder returns addresses in reverse dependency order.
func (d *DAG) DestructionOrder() []string {
	return d.revOrder
}

// Dependencies returns the direct dependency addresses of addr.
func (d *DAG) Dependencies(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		return node.deps
	}
	return nil
}

// Dependents returns the direct dependents of addr.
func (d *DAG) Dependents(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		return node.dependents
	}
	return nil
}

// TransitiveDependents returns every address downstream of addr.
func (d *DAG) TransitiveDependents(addr string) []string {
	seen := make(map[string]bool)
	var result []string
	var walk func(string)
	walk = func(a string) {
		for _, dep := range d.Dependents(a) {
			if !seen[dep] {
				seen[dep] = true
				result = append(result, dep)
				walk(dep)
			}
		}
	}
	walk(addr)
	return result
}

// ToDOT renders the graph in Graphviz DOT format.
func (d *DAG) ToDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph resources {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n")
	for _, addr := range d.seq {
		fmt.Fprintf(&sb, "  %q;\n", addr)
	}
	for _, addr := range d.seq {
		for _, dep := range d.nodes[addr].deps {
			fmt.Fprintf(&sb, "  %q -> %q;\n", dep, addr)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
