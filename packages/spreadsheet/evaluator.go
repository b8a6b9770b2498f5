package spreadsheet

import (
	"fmt"
	"math"
)

// Context is the read-only view of a workbook a formula evaluates against
type Context interface {
	// ResolveWorksheet finds a sheet by name, ignoring case
	ResolveWorksheet(name string) (uint32, bool)
	WorksheetName(id uint32) (string, bool)
	// CellValue returns the stored value of a cell, nil when empty or absent
	CellValue(addr CellAddress) Primitive
	NamedRange(name string) (RangeAddress, bool)
	Env() Env
}

// Result is the outcome of one evaluation. when evaluation fails, Value
// and Err hold the same *FormulaError and Dependencies holds everything
// read before the failure.
type Result struct {
	Value        Primitive
	Err          *FormulaError
	Dependencies []CellAddress // first-read order, never includes the current cell
	// SelfReference is set when the formula read the cell being computed
	SelfReference bool
}

// EvaluateFormula parses and evaluates formula text in one step, without
// storing anything
func EvaluateFormula(formula string, ctx Context, current CellAddress) Result {
	node, err := Parse(formula)
	if err != nil {
		formulaErr, ok := err.(*FormulaError)
		if !ok {
			formulaErr = NewFormulaError(ErrorCodeSyntax, err.Error())
		}
		return Result{Value: formulaErr, Err: formulaErr}
	}
	return Evaluate(node, ctx, current)
}

// Evaluate walks node against ctx. current is the cell being computed;
// unqualified references resolve against its worksheet.
func Evaluate(node Node, ctx Context, current CellAddress) Result {
	e := &evaluator{
		ctx:     ctx,
		env:     ctx.Env(),
		current: current,
		seen:    make(map[CellAddress]struct{}),
	}

	value := scalar(e.eval(node, current.WorksheetID))
	result := Result{
		Value:         value,
		Dependencies:  e.deps,
		SelfReference: e.selfReference,
	}
	if err := checkForError(value); err != nil {
		result.Err = err
	}
	return result
}

type evaluator struct {
	ctx           Context
	env           Env
	current       CellAddress
	deps          []CellAddress
	seen          map[CellAddress]struct{}
	selfReference bool
}

func (e *evaluator) record(addr CellAddress) {
	if addr == e.current {
		e.selfReference = true
		return
	}
	if _, ok := e.seen[addr]; ok {
		return
	}
	e.seen[addr] = struct{}{}
	e.deps = append(e.deps, addr)
}

// eval returns a Primitive or an Array. failures are *FormulaError values
// so that error-inspecting functions can see them.
func (e *evaluator) eval(node Node, sheet uint32) Primitive {
	switch n := node.(type) {
	case *NumberNode:
		return n.Value
	case *StringNode:
		return n.Value
	case *BooleanNode:
		return n.Value
	case *CellRefNode:
		addr := CellAddress{WorksheetID: sheet, Row: n.Row, Column: n.Column}
		e.record(addr)
		return e.ctx.CellValue(addr)
	case *RangeNode:
		start := CellAddress{Row: n.Start.Row, Column: n.Start.Column}
		end := CellAddress{Row: n.End.Row, Column: n.End.Column}
		return e.expand(NewRangeAddress(sheet, start, end))
	case *NamedRangeNode:
		return e.evalNamedRange(n)
	case *SheetRefNode:
		id, ok := e.ctx.ResolveWorksheet(n.Sheet)
		if !ok {
			return NewFormulaError(ErrorCodeRef, fmt.Sprintf("unknown sheet %q", n.Sheet))
		}
		return e.eval(n.Ref, id)
	case *UnaryOpNode:
		return e.evalUnary(n, sheet)
	case *BinaryOpNode:
		return e.evalBinary(n, sheet)
	case *FunctionCallNode:
		return e.evalFunction(n, sheet)
	}
	return NewFormulaError(ErrorCodeSyntax, fmt.Sprintf("unsupported node %T", node))
}

// expand reads a range in row-major order, registering every cell. empty
// cells read as 0 inside a range.
func (e *evaluator) expand(r RangeAddress) Primitive {
	if r.Size() > maxRangeCells {
		return NewFormulaError(ErrorCodeRef, fmt.Sprintf("range %s has more than %d cells", r, maxRangeCells))
	}
	values := make(Array, 0, r.Size())
	for _, addr := range r.Cells() {
		e.record(addr)
		value := e.ctx.CellValue(addr)
		if value == nil {
			value = 0.0
		}
		values = append(values, value)
	}
	return values
}

// evalNamedRange resolves names workbook-wide. a sheet qualifier in front
// of a name only has to exist.
func (e *evaluator) evalNamedRange(n *NamedRangeNode) Primitive {
	r, ok := e.ctx.NamedRange(n.Name)
	if !ok {
		return NewFormulaError(ErrorCodeName, fmt.Sprintf("unknown name %q", n.Name))
	}
	if _, ok := e.ctx.WorksheetName(r.WorksheetID); !ok {
		return NewFormulaError(ErrorCodeRef, fmt.Sprintf("name %q refers to a deleted sheet", n.Name))
	}
	return e.expand(r)
}

func (e *evaluator) evalUnary(n *UnaryOpNode, sheet uint32) Primitive {
	operand := scalar(e.eval(n.Operand, sheet))
	num, err := toNumber(operand)
	if err != nil {
		return err
	}
	if n.Op == UnaryOpMinus {
		return -num
	}
	return num
}

func (e *evaluator) evalBinary(n *BinaryOpNode, sheet uint32) Primitive {
	// both sides are evaluated so every reference is registered
	left := scalar(e.eval(n.Left, sheet))
	right := scalar(e.eval(n.Right, sheet))
	if err := checkForError(left); err != nil {
		return err
	}
	if err := checkForError(right); err != nil {
		return err
	}

	switch n.Op {
	case BinOpConcat:
		return toText(left) + toText(right)
	case BinOpEqual:
		return comparePrimitives(left, right) == 0
	case BinOpNotEqual:
		return comparePrimitives(left, right) != 0
	case BinOpLess:
		return comparePrimitives(left, right) < 0
	case BinOpLessEqual:
		return comparePrimitives(left, right) <= 0
	case BinOpGreater:
		return comparePrimitives(left, right) > 0
	case BinOpGreaterEqual:
		return comparePrimitives(left, right) >= 0
	}

	l, err := toNumber(left)
	if err != nil {
		return err
	}
	r, err := toNumber(right)
	if err != nil {
		return err
	}

	var result float64
	switch n.Op {
	case BinOpAdd:
		result = l + r
	case BinOpSubtract:
		result = l - r
	case BinOpMultiply:
		result = l * r
	case BinOpDivide:
		if r == 0 {
			return NewFormulaError(ErrorCodeDiv0, "division by zero")
		}
		result = l / r
	case BinOpPower:
		pow, err := power(l, r)
		if err != nil {
			return err
		}
		result = pow
	}

	if math.IsInf(result, 0) || math.IsNaN(result) {
		return NewFormulaError(ErrorCodeDomain, fmt.Sprintf("%s overflows", n.ToString()))
	}
	return result
}

// evalFunction evaluates arguments left to right. an unknown name fails
// before any argument is read.
func (e *evaluator) evalFunction(n *FunctionCallNode, sheet uint32) Primitive {
	spec, ok := Builtins().Lookup(n.Name)
	if !ok {
		return NewFormulaError(ErrorCodeName, fmt.Sprintf("unknown function %s", n.Name))
	}

	args := make([]Primitive, len(n.Args))
	for i, arg := range n.Args {
		args[i] = e.eval(arg, sheet)
	}
	return spec.Call(e.env, args)
}

// IsVolatile reports whether node calls a function whose value changes on
// every evaluation
func IsVolatile(node Node) bool {
	volatile := false
	Walk(node, func(n Node) {
		if call, ok := n.(*FunctionCallNode); ok && Builtins().IsVolatile(call.Name) {
			volatile = true
		}
	})
	return volatile
}

// Walk calls fn for node and every node below it, parents first
func Walk(node Node, fn func(Node)) {
	if node == nil {
		return
	}
	fn(node)
	switch n := node.(type) {
	case *RangeNode:
		Walk(n.Start, fn)
		Walk(n.End, fn)
	case *SheetRefNode:
		Walk(n.Ref, fn)
	case *UnaryOpNode:
		Walk(n.Operand, fn)
	case *BinaryOpNode:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	}
}
