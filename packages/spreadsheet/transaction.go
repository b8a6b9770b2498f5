package spreadsheet

import "fmt"

// editTxn is the computed next state of one cell. nothing in the workbook
// changes until commit, so a failure part way through an edit can not
// leave half-wired edges behind.
type editTxn struct {
	addr     CellAddress
	raw      string
	formula  string // source after '=', empty for literals
	ast      Node   // nil for literals and formulas that failed to parse
	value    Primitive
	deps     []CellAddress
	volatile bool
}

// prepareEdit evaluates raw input for addr against the current state
func (s *Storage) prepareEdit(addr CellAddress, raw string) *editTxn {
	txn := &editTxn{addr: addr, raw: raw}
	if len(raw) == 0 || raw[0] != charEqual {
		txn.value = ParseLiteral(raw)
		return txn
	}

	txn.formula = raw[1:]
	ast, err := s.formulas.Compile(txn.formula)
	if err != nil {
		formulaErr, ok := err.(*FormulaError)
		if !ok {
			formulaErr = NewFormulaError(ErrorCodeSyntax, err.Error())
		}
		txn.value = formulaErr
		return txn
	}

	txn.ast = ast
	txn.volatile = IsVolatile(ast)
	s.evaluateInto(txn)
	return txn
}

// prepareRefresh re-evaluates the formula a cell already holds. returns
// nil for cells without a parsed formula.
func (s *Storage) prepareRefresh(addr CellAddress) *editTxn {
	worksheet, exists := s.worksheets.GetWorksheet(addr.WorksheetID)
	if !exists {
		return nil
	}
	cell := worksheet.GetCell(addr.Row, addr.Column)
	id, hasFormula := s.formulas.GetFormulaAtCell(addr)
	if cell == nil || !hasFormula {
		return nil
	}
	ast, _ := s.formulas.GetAST(id)

	txn := &editTxn{
		addr:     addr,
		raw:      cell.Raw,
		formula:  cell.Formula,
		ast:      ast,
		volatile: cell.Volatile,
	}
	s.evaluateInto(txn)
	return txn
}

func (s *Storage) evaluateInto(txn *editTxn) {
	result := Evaluate(txn.ast, s, txn.addr)
	txn.deps = result.Dependencies

	switch {
	case result.SelfReference:
		txn.value = NewFormulaError(ErrorCodeCircular, fmt.Sprintf("%s refers to itself", txn.addr))
	case result.Value == nil:
		txn.value = 0.0
	default:
		txn.value = result.Value
	}
}

// circular is the state of a formula cell caught on a dependency cycle.
// its edges stay, so fixing any member of the cycle heals it.
func (s *Storage) circular(addr CellAddress) *editTxn {
	txn := s.prepareRefresh(addr)
	if txn == nil {
		return nil
	}
	txn.value = NewFormulaError(ErrorCodeCircular, fmt.Sprintf("%s is part of a circular reference", addr))
	return txn
}

// commit publishes a prepared cell state to the store, the formula table
// and the graph
func (s *Storage) commit(txn *editTxn) {
	worksheet, exists := s.worksheets.GetWorksheet(txn.addr.WorksheetID)
	if !exists {
		return
	}

	if txn.ast != nil {
		s.formulas.InternFormula(txn.formula, txn.ast, txn.addr)
	} else {
		s.formulas.RemoveCellReference(txn.addr)
	}

	if txn.raw == "" {
		worksheet.GetOrCreateCell(txn.addr.Row, txn.addr.Column)
		worksheet.ResetCell(txn.addr.Row, txn.addr.Column)
		s.dependencyGraph.ClearDependencies(txn.addr)
		s.dependencyGraph.UnmarkVolatile(txn.addr)
		return
	}

	cell := worksheet.SetCell(txn.addr.Row, txn.addr.Column, txn.raw, txn.formula, txn.value)
	cell.Volatile = txn.volatile

	s.dependencyGraph.SetDependencies(txn.addr, txn.deps)
	for _, dep := range txn.deps {
		if target, ok := s.worksheets.GetWorksheet(dep.WorksheetID); ok {
			target.GetOrCreateCell(dep.Row, dep.Column)
		}
	}

	if txn.volatile {
		s.dependencyGraph.MarkVolatile(txn.addr)
	} else {
		s.dependencyGraph.UnmarkVolatile(txn.addr)
	}
}
