package spreadsheet

import "sort"

// DependencyNode represents a cell in the dependency graph
type DependencyNode struct {
	// address of *THIS* node
	Address CellAddress

	CellPrecedents map[CellAddress]*DependencyNode // cells this cell depends on
	CellDependents map[CellAddress]*DependencyNode // cells that depend on this cell
}

// DependencyGraph manages cell dependencies and calculation order. edges
// always point at single cells; ranges are expanded before they get here.
type DependencyGraph struct {
	nodes         map[CellAddress]*DependencyNode // all nodes in the graph
	volatileCells map[CellAddress]struct{}        // cells with volatile functions
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:         make(map[CellAddress]*DependencyNode),
		volatileCells: make(map[CellAddress]struct{}),
	}
}

// GetOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) GetOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}

	node := &DependencyNode{
		Address:        addr,
		CellPrecedents: make(map[CellAddress]*DependencyNode),
		CellDependents: make(map[CellAddress]*DependencyNode),
	}
	dg.nodes[addr] = node
	return node
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(addr CellAddress) (*DependencyNode, bool) {
	node, exists := dg.nodes[addr]
	return node, exists
}

// cleanupNodeIfEmpty removes a node with no edges left
func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	if len(node.CellPrecedents) > 0 || len(node.CellDependents) > 0 {
		return
	}
	delete(dg.nodes, addr)
}

// AddCellDependency adds a cell-to-cell dependency (from depends on to)
func (dg *DependencyGraph) AddCellDependency(from, to CellAddress) {
	fromNode := dg.GetOrCreateNode(from)
	toNode := dg.GetOrCreateNode(to)

	fromNode.CellPrecedents[to] = toNode
	toNode.CellDependents[from] = fromNode
}

// RemoveCellDependency removes a cell-to-cell dependency
func (dg *DependencyGraph) RemoveCellDependency(from, to CellAddress) bool {
	fromNode, fromExists := dg.nodes[from]
	toNode, toExists := dg.nodes[to]
	if !fromExists || !toExists {
		return false
	}

	delete(fromNode.CellPrecedents, to)
	delete(toNode.CellDependents, from)

	dg.cleanupNodeIfEmpty(from)
	dg.cleanupNodeIfEmpty(to)
	return true
}

// ClearDependencies drops every outgoing edge of a cell. edges into the
// cell are kept; other formulas still read it.
func (dg *DependencyGraph) ClearDependencies(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for precedentAddr := range node.CellPrecedents {
		dg.RemoveCellDependency(addr, precedentAddr)
	}
}

// SetDependencies rewires the outgoing edges of a cell to exactly deps
func (dg *DependencyGraph) SetDependencies(addr CellAddress, deps []CellAddress) {
	want := make(map[CellAddress]struct{}, len(deps))
	for _, dep := range deps {
		if dep != addr {
			want[dep] = struct{}{}
		}
	}

	if node, exists := dg.nodes[addr]; exists {
		for precedentAddr := range node.CellPrecedents {
			if _, keep := want[precedentAddr]; !keep {
				dg.RemoveCellDependency(addr, precedentAddr)
			}
		}
	}
	for dep := range want {
		dg.AddCellDependency(addr, dep)
	}
}

// RemoveWorksheet drops every node of a removed sheet. formulas elsewhere
// that read it lose those edges and are returned, sorted, for
// recalculation.
func (dg *DependencyGraph) RemoveWorksheet(worksheetID uint32) []CellAddress {
	readers := make(map[CellAddress]struct{})
	var doomed []CellAddress
	for addr, node := range dg.nodes {
		if addr.WorksheetID != worksheetID {
			continue
		}
		doomed = append(doomed, addr)
		for dependent := range node.CellDependents {
			if dependent.WorksheetID != worksheetID {
				readers[dependent] = struct{}{}
			}
		}
	}

	for _, addr := range doomed {
		node, exists := dg.nodes[addr]
		if !exists {
			continue
		}
		for precedent, precedentNode := range node.CellPrecedents {
			delete(precedentNode.CellDependents, addr)
			dg.cleanupNodeIfEmpty(precedent)
		}
		for _, dependentNode := range node.CellDependents {
			delete(dependentNode.CellPrecedents, addr)
		}
		delete(dg.nodes, addr)
		delete(dg.volatileCells, addr)
	}

	return sortedAddresses(readers)
}

// GetDirectDependents returns cells directly depending on this cell, in
// address order
func (dg *DependencyGraph) GetDirectDependents(addr CellAddress) []CellAddress {
	node, exists := dg.GetNode(addr)
	if !exists {
		return nil
	}
	result := make(map[CellAddress]struct{}, len(node.CellDependents))
	for dependentAddr := range node.CellDependents {
		result[dependentAddr] = struct{}{}
	}
	return sortedAddresses(result)
}

// GetDirectPrecedents returns cells this cell directly depends on, in
// address order
func (dg *DependencyGraph) GetDirectPrecedents(addr CellAddress) []CellAddress {
	node, exists := dg.GetNode(addr)
	if !exists {
		return nil
	}
	result := make(map[CellAddress]struct{}, len(node.CellPrecedents))
	for precedentAddr := range node.CellPrecedents {
		result[precedentAddr] = struct{}{}
	}
	return sortedAddresses(result)
}

// GetAffectedCells walks dependents breadth-first from the seed cells and
// returns every cell reached, seeds first, in discovery order. each cell
// appears once even when the graph has cycles.
func (dg *DependencyGraph) GetAffectedCells(seeds ...CellAddress) []CellAddress {
	visited := make(map[CellAddress]struct{})
	queue := make([]CellAddress, 0, len(seeds))
	for _, seed := range seeds {
		if _, seen := visited[seed]; !seen {
			visited[seed] = struct{}{}
			queue = append(queue, seed)
		}
	}

	for i := 0; i < len(queue); i++ {
		for _, dependent := range dg.GetDirectDependents(queue[i]) {
			if _, seen := visited[dependent]; !seen {
				visited[dependent] = struct{}{}
				queue = append(queue, dependent)
			}
		}
	}
	return queue
}

// GetCalculationOrder orders cells so that every cell comes after the
// cells it reads, considering only edges between the given cells. cells
// that sit on a cycle can not be ordered and are returned separately;
// cells downstream of a cycle are still ordered. ties keep the input order.
func (dg *DependencyGraph) GetCalculationOrder(cells []CellAddress) (order []CellAddress, cyclic []CellAddress) {
	position := make(map[CellAddress]int, len(cells))
	for i, addr := range cells {
		position[addr] = i
	}

	onCycle := dg.findCycles(cells, position)
	for _, addr := range cells {
		if _, ok := onCycle[addr]; ok {
			cyclic = append(cyclic, addr)
		}
	}

	// kahn's algorithm over the acyclic remainder
	inDegree := make(map[CellAddress]int, len(cells))
	for _, addr := range cells {
		if _, ok := onCycle[addr]; ok {
			continue
		}
		inDegree[addr] = 0
		if node, exists := dg.nodes[addr]; exists {
			for precedent := range node.CellPrecedents {
				_, inSet := position[precedent]
				_, cycling := onCycle[precedent]
				if inSet && !cycling {
					inDegree[addr]++
				}
			}
		}
	}

	ready := make([]CellAddress, 0, len(cells))
	for _, addr := range cells {
		if degree, ok := inDegree[addr]; ok && degree == 0 {
			ready = append(ready, addr)
		}
	}

	for len(ready) > 0 {
		addr := ready[0]
		ready = ready[1:]
		order = append(order, addr)

		var released []CellAddress
		for _, dependent := range dg.GetDirectDependents(addr) {
			if _, ok := inDegree[dependent]; !ok {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				released = append(released, dependent)
			}
		}
		sort.Slice(released, func(i, j int) bool {
			return position[released[i]] < position[released[j]]
		})
		ready = append(ready, released...)
	}

	return order, cyclic
}

// findCycles returns the cells that lie on a cycle within the given set,
// using tarjan's strongly connected components
func (dg *DependencyGraph) findCycles(cells []CellAddress, position map[CellAddress]int) map[CellAddress]struct{} {
	index := make(map[CellAddress]int, len(cells))
	lowLink := make(map[CellAddress]int, len(cells))
	onStack := make(map[CellAddress]bool, len(cells))
	var stack []CellAddress
	next := 0
	result := make(map[CellAddress]struct{})

	var connect func(addr CellAddress)
	connect = func(addr CellAddress) {
		index[addr] = next
		lowLink[addr] = next
		next++
		stack = append(stack, addr)
		onStack[addr] = true

		for _, precedent := range dg.GetDirectPrecedents(addr) {
			if _, inSet := position[precedent]; !inSet {
				continue
			}
			if _, visited := index[precedent]; !visited {
				connect(precedent)
				lowLink[addr] = min(lowLink[addr], lowLink[precedent])
			} else if onStack[precedent] {
				lowLink[addr] = min(lowLink[addr], index[precedent])
			}
		}

		if lowLink[addr] != index[addr] {
			return
		}
		var component []CellAddress
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == addr {
				break
			}
		}
		if len(component) > 1 {
			for _, member := range component {
				result[member] = struct{}{}
			}
		}
	}

	for _, addr := range cells {
		if _, visited := index[addr]; !visited {
			connect(addr)
		}
	}
	return result
}

// HasCycle checks if there are circular dependencies anywhere in the graph
func (dg *DependencyGraph) HasCycle() bool {
	all := make(map[CellAddress]struct{}, len(dg.nodes))
	for addr := range dg.nodes {
		all[addr] = struct{}{}
	}
	_, cyclic := dg.GetCalculationOrder(sortedAddresses(all))
	return len(cyclic) > 0
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// MarkVolatile marks a cell as containing volatile functions
func (dg *DependencyGraph) MarkVolatile(addr CellAddress) {
	dg.volatileCells[addr] = struct{}{}
}

// UnmarkVolatile removes volatile marking from a cell
func (dg *DependencyGraph) UnmarkVolatile(addr CellAddress) {
	delete(dg.volatileCells, addr)
}

// IsVolatile checks if a cell contains volatile functions
func (dg *DependencyGraph) IsVolatile(addr CellAddress) bool {
	_, isVolatile := dg.volatileCells[addr]
	return isVolatile
}

// GetVolatileCells returns all cells marked as volatile, in address order
func (dg *DependencyGraph) GetVolatileCells() []CellAddress {
	return sortedAddresses(dg.volatileCells)
}

func sortedAddresses(set map[CellAddress]struct{}) []CellAddress {
	result := make([]CellAddress, 0, len(set))
	for addr := range set {
		result = append(result, addr)
	}
	sort.Slice(result, func(i, j int) bool {
		return lessAddress(result[i], result[j])
	})
	return result
}
