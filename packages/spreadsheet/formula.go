package spreadsheet

import "sort"

// ASTKey is the canonical text of a parsed formula. two formulas with the
// same structure (ignoring whitespace, case of function names and cells)
// have the same ASTKey.
type ASTKey string

// FormulaTable stores parsed formulas centrally, shared by every cell
// using the same formula, and records the names and sheets each formula
// mentions.
type FormulaTable struct {
	// core formula storage

	sourceIndex map[string]uint32 // formula source as entered -> formula ID
	astIndex    map[ASTKey]uint32 // normalized AST -> formula ID
	astCache    map[uint32]Node   // formula ID -> cached parsed AST
	sources     map[uint32][]string
	refCounts   map[uint32]int // formula ID -> reference count

	// cell tracking

	cellsUsingFormula map[uint32]map[CellAddress]struct{} // formula ID -> cells using it
	formulaAtCell     map[CellAddress]uint32              // cell -> formula ID (reverse index)

	// static references, folded names

	namesUsed  map[uint32][]string // formula ID -> named ranges it mentions
	sheetsUsed map[uint32][]string // formula ID -> sheet qualifiers it mentions

	nextID uint32
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		sourceIndex:       make(map[string]uint32),
		astIndex:          make(map[ASTKey]uint32),
		astCache:          make(map[uint32]Node),
		sources:           make(map[uint32][]string),
		refCounts:         make(map[uint32]int),
		cellsUsingFormula: make(map[uint32]map[CellAddress]struct{}),
		formulaAtCell:     make(map[CellAddress]uint32),
		namesUsed:         make(map[uint32][]string),
		sheetsUsed:        make(map[uint32][]string),
		nextID:            1, // start at 1, reserve 0 for no formula
	}
}

// normalizeAST converts an AST to its normalized string representation
func normalizeAST(ast Node) ASTKey {
	if ast == nil {
		return ""
	}
	return ASTKey(ast.ToString())
}

// Compile returns the parsed form of formula source (the text after the
// leading '='), from the cache when the same source is in use. the table
// is not modified.
func (ft *FormulaTable) Compile(source string) (Node, error) {
	if id, exists := ft.sourceIndex[source]; exists {
		return ft.astCache[id], nil
	}
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// InternFormula records that cell holds the formula parsed from source,
// releasing whatever formula the cell held before. returns the formula ID.
func (ft *FormulaTable) InternFormula(source string, ast Node, cell CellAddress) uint32 {
	id, exists := ft.sourceIndex[source]
	if !exists {
		key := normalizeAST(ast)
		id, exists = ft.astIndex[key]
		if !exists {
			id = ft.nextID
			ft.nextID++
			ft.astIndex[key] = id
			ft.astCache[id] = ast
			ft.namesUsed[id], ft.sheetsUsed[id] = staticReferences(ast)
		}
		ft.sourceIndex[source] = id
		ft.sources[id] = append(ft.sources[id], source)
	}

	if current, ok := ft.formulaAtCell[cell]; ok {
		if current == id {
			return id
		}
		ft.RemoveCellReference(cell)
	}

	ft.refCounts[id]++
	if ft.cellsUsingFormula[id] == nil {
		ft.cellsUsingFormula[id] = make(map[CellAddress]struct{})
	}
	ft.cellsUsingFormula[id][cell] = struct{}{}
	ft.formulaAtCell[cell] = id
	return id
}

// staticReferences lists the folded named ranges and sheet qualifiers an
// AST mentions, each once
func staticReferences(ast Node) (names []string, sheets []string) {
	seenNames := make(map[string]struct{})
	seenSheets := make(map[string]struct{})
	Walk(ast, func(n Node) {
		switch ref := n.(type) {
		case *NamedRangeNode:
			key := foldName(ref.Name)
			if _, ok := seenNames[key]; !ok {
				seenNames[key] = struct{}{}
				names = append(names, key)
			}
		case *SheetRefNode:
			key := foldName(ref.Sheet)
			if _, ok := seenSheets[key]; !ok {
				seenSheets[key] = struct{}{}
				sheets = append(sheets, key)
			}
		}
	})
	return names, sheets
}

// RemoveCellReference releases the formula held by cell. returns true if
// the formula was removed due to zero references.
func (ft *FormulaTable) RemoveCellReference(cell CellAddress) bool {
	id, exists := ft.formulaAtCell[cell]
	if !exists {
		return false
	}

	delete(ft.formulaAtCell, cell)
	if cells, ok := ft.cellsUsingFormula[id]; ok {
		delete(cells, cell)
		if len(cells) == 0 {
			delete(ft.cellsUsingFormula, id)
		}
	}

	ft.refCounts[id]--
	if ft.refCounts[id] > 0 {
		return false
	}
	ft.removeFormula(id)
	return true
}

// removeFormula removes a formula and all its tracking data
func (ft *FormulaTable) removeFormula(id uint32) {
	if ast, exists := ft.astCache[id]; exists {
		delete(ft.astIndex, normalizeAST(ast))
	}
	for _, source := range ft.sources[id] {
		delete(ft.sourceIndex, source)
	}

	delete(ft.astCache, id)
	delete(ft.sources, id)
	delete(ft.refCounts, id)
	delete(ft.cellsUsingFormula, id)
	delete(ft.namesUsed, id)
	delete(ft.sheetsUsed, id)
}

// GetAST retrieves the cached AST for a formula ID
func (ft *FormulaTable) GetAST(id uint32) (Node, bool) {
	ast, exists := ft.astCache[id]
	return ast, exists
}

// GetFormulaAtCell returns the formula ID at a specific cell
func (ft *FormulaTable) GetFormulaAtCell(cell CellAddress) (uint32, bool) {
	id, exists := ft.formulaAtCell[cell]
	return id, exists
}

// CellsUsingName returns the cells whose formula mentions a named range
func (ft *FormulaTable) CellsUsingName(name string) []CellAddress {
	return ft.cellsMentioning(ft.namesUsed, foldName(name))
}

// CellsUsingSheet returns the cells whose formula qualifies a reference
// with the given sheet name
func (ft *FormulaTable) CellsUsingSheet(name string) []CellAddress {
	return ft.cellsMentioning(ft.sheetsUsed, foldName(name))
}

func (ft *FormulaTable) cellsMentioning(index map[uint32][]string, key string) []CellAddress {
	var result []CellAddress
	for id, keys := range index {
		for _, k := range keys {
			if k != key {
				continue
			}
			for cell := range ft.cellsUsingFormula[id] {
				result = append(result, cell)
			}
			break
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return lessAddress(result[i], result[j])
	})
	return result
}

// Count returns the number of unique formulas
func (ft *FormulaTable) Count() int {
	return len(ft.astCache)
}

// TotalReferences returns the total number of references across all formulas
func (ft *FormulaTable) TotalReferences() int {
	total := 0
	for _, count := range ft.refCounts {
		total += count
	}
	return total
}
