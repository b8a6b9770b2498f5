package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type NodePosition struct {
	Start int
	End   int
}

// Node is a parsed formula. the set of implementations is closed: every
// node type lives in this file, and consumers switch over them
// exhaustively. nodes are immutable once built.
type Node interface {
	GetPosition() NodePosition
	// ToString renders the node back to formula text that parses to an
	// equivalent tree
	ToString() string
	isNode()
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpSymbols = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string {
	return binaryOpSymbols[op]
}

// precedence levels, low to high
const (
	precComparison = iota + 1
	precAdditive
	precMultiplicative
	precPower
)

func (op BinaryOp) precedence() int {
	switch op {
	case BinOpAdd, BinOpSubtract, BinOpConcat:
		return precAdditive
	case BinOpMultiply, BinOpDivide:
		return precMultiplicative
	case BinOpPower:
		return precPower
	default:
		return precComparison
	}
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

func (op UnaryOp) String() string {
	if op == UnaryOpMinus {
		return "-"
	}
	return "+"
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) GetPosition() NodePosition { return n.Position }

func (n *StringNode) ToString() string {
	return `"` + strings.ReplaceAll(n.Value, `"`, `""`) + `"`
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) GetPosition() NodePosition { return n.Position }

func (n *NumberNode) ToString() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) GetPosition() NodePosition { return n.Position }

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// CellRefNode represents a single cell reference like A1. Row and Column
// are zero-based.
type CellRefNode struct {
	Ref      string
	Row      uint32
	Column   uint32
	Position NodePosition
}

func (n *CellRefNode) GetPosition() NodePosition { return n.Position }

func (n *CellRefNode) ToString() string { return n.Ref }

// RangeNode represents a rectangular range between two cell references
type RangeNode struct {
	Start    *CellRefNode
	End      *CellRefNode
	Position NodePosition
}

func (n *RangeNode) GetPosition() NodePosition { return n.Position }

func (n *RangeNode) ToString() string {
	return n.Start.Ref + ":" + n.End.Ref
}

// NamedRangeNode represents a named range reference
type NamedRangeNode struct {
	Name     string
	Position NodePosition
}

func (n *NamedRangeNode) GetPosition() NodePosition { return n.Position }

func (n *NamedRangeNode) ToString() string { return n.Name }

// SheetRefNode scopes a cell, range or named range reference to another
// sheet
type SheetRefNode struct {
	Sheet    string
	Ref      Node
	Position NodePosition
}

func (n *SheetRefNode) GetPosition() NodePosition { return n.Position }

func (n *SheetRefNode) ToString() string {
	return QuoteSheetName(n.Sheet) + "!" + n.Ref.ToString()
}

// UnaryOpNode represents a prefix + or -
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  Node
	Position NodePosition
}

func (n *UnaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *UnaryOpNode) ToString() string {
	operand := n.Operand.ToString()
	if _, ok := n.Operand.(*BinaryOpNode); ok {
		operand = "(" + operand + ")"
	}
	return n.Op.String() + operand
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     Node
	Right    Node
	Position NodePosition
}

func (n *BinaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *BinaryOpNode) ToString() string {
	// every level is left-associative, so a right operand at the same
	// level needs parentheses to keep its grouping
	prec := n.Op.precedence()
	left := n.Left.ToString()
	if child, ok := n.Left.(*BinaryOpNode); ok && child.Op.precedence() < prec {
		left = "(" + left + ")"
	}
	right := n.Right.ToString()
	if child, ok := n.Right.(*BinaryOpNode); ok && child.Op.precedence() <= prec {
		right = "(" + right + ")"
	}
	return left + n.Op.String() + right
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name     string
	Args     []Node
	Position NodePosition
}

func (n *FunctionCallNode) GetPosition() NodePosition { return n.Position }

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}

func (*StringNode) isNode()       {}
func (*NumberNode) isNode()       {}
func (*BooleanNode) isNode()      {}
func (*CellRefNode) isNode()      {}
func (*RangeNode) isNode()        {}
func (*NamedRangeNode) isNode()   {}
func (*SheetRefNode) isNode()     {}
func (*UnaryOpNode) isNode()      {}
func (*BinaryOpNode) isNode()     {}
func (*FunctionCallNode) isNode() {}

// Parser parses tokens into an AST. one token of lookahead, no
// backtracking.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser over a token stream ending in TokenEOF
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// StripFormulaPrefix trims surrounding whitespace and one leading '='
func StripFormulaPrefix(text string) string {
	text = strings.TrimSpace(text)
	return strings.TrimPrefix(text, "=")
}

// Parse lexes and parses formula text, with or without its leading '='.
// errors are syntax *FormulaError values naming the offending token.
func Parse(text string) (Node, error) {
	tokens, err := Tokenize(StripFormulaPrefix(text))
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the whole token stream as one expression
func (p *Parser) Parse() (Node, error) {
	if len(p.tokens) == 0 || p.tokens[len(p.tokens)-1].Type != TokenEOF {
		p.tokens = append(p.tokens, Token{Type: TokenEOF})
	}

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if tok := p.current(); tok.Type != TokenEOF {
		return nil, p.unexpected(tok)
	}
	return node, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) unexpected(tok Token) *FormulaError {
	return NewFormulaError(ErrorCodeSyntax, fmt.Sprintf("unexpected %s at position %d", tok, tok.Pos))
}

func (p *Parser) isOperator(values ...string) (string, bool) {
	tok := p.current()
	if tok.Type != TokenOperator {
		return "", false
	}
	for _, v := range values {
		if tok.Value == v {
			return v, true
		}
	}
	return "", false
}

func newBinary(op BinaryOp, left, right Node) *BinaryOpNode {
	return &BinaryOpNode{
		Op:       op,
		Left:     left,
		Right:    right,
		Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
	}
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for {
		symbol, ok := p.isOperator("=", "<>", "<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}

		var op BinaryOp
		switch symbol {
		case "=":
			op = BinOpEqual
		case "<>":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		}

		p.pos++
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}
}

// parseAdditive handles addition, subtraction and concatenation
func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		symbol, ok := p.isOperator("+", "-", "&")
		if !ok {
			return left, nil
		}

		op := BinOpAdd
		switch symbol {
		case "-":
			op = BinOpSubtract
		case "&":
			op = BinOpConcat
		}

		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}
}

// parseMultiplicative handles multiplication and division
func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for {
		symbol, ok := p.isOperator("*", "/")
		if !ok {
			return left, nil
		}

		op := BinOpMultiply
		if symbol == "/" {
			op = BinOpDivide
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}
}

// parsePower handles exponentiation. left-associative: 2^3^2 is (2^3)^2.
func (p *Parser) parsePower() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.isOperator("^"); !ok {
			return left, nil
		}

		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = newBinary(BinOpPower, left, right)
	}
}

// parseUnary handles prefix + and -. binds tighter than ^, so -2^2 is 4.
func (p *Parser) parseUnary() (Node, error) {
	symbol, ok := p.isOperator("+", "-")
	if !ok {
		return p.parsePrimary()
	}

	startPos := p.current().Pos
	p.pos++
	operand, err := p.parseUnary() // recurse for chained unary operators
	if err != nil {
		return nil, err
	}

	op := UnaryOpPlus
	if symbol == "-" {
		op = UnaryOpMinus
	}
	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: startPos, End: operand.GetPosition().End},
	}, nil
}

// parsePrimary handles literals, references, function calls and
// parenthesized expressions
func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, NewFormulaError(ErrorCodeSyntax, fmt.Sprintf("invalid number %q at position %d", tok.Value, tok.Pos))
		}
		return &NumberNode{
			Value:    val,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + utf8.RuneCountInString(tok.Value)},
		}, nil

	case TokenString:
		p.pos++
		return &StringNode{
			Value:    tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + utf8.RuneCountInString(tok.Value) + 2}, // +2 for quotes
		}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{
			Value:    tok.Value == "TRUE",
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenCell:
		return p.parseCellOrRange()

	case TokenIdentifier:
		p.pos++
		return &NamedRangeNode{
			Name:     tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}, nil

	case TokenSheet:
		return p.parseSheetReference()

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if closing := p.current(); closing.Type != TokenRightParen {
			return nil, p.unexpected(closing)
		}
		p.pos++
		return node, nil
	}

	return nil, p.unexpected(tok)
}

// parseCellReference turns the current cell token into a CellRefNode
func (p *Parser) parseCellReference() (*CellRefNode, error) {
	tok := p.current()
	if tok.Type != TokenCell {
		return nil, p.unexpected(tok)
	}

	row, col, ok := ParseCellName(tok.Value)
	if !ok {
		return nil, NewFormulaError(ErrorCodeSyntax, fmt.Sprintf("invalid cell reference %q at position %d", tok.Value, tok.Pos))
	}
	p.pos++

	return &CellRefNode{
		Ref:      tok.Value,
		Row:      row,
		Column:   col,
		Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
	}, nil
}

// parseCellOrRange parses a cell reference, extended to a range when a ':'
// follows. both endpoints must be plain cells.
func (p *Parser) parseCellOrRange() (Node, error) {
	start, err := p.parseCellReference()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenColon {
		return start, nil
	}
	p.pos++

	end, err := p.parseCellReference()
	if err != nil {
		return nil, err
	}
	return &RangeNode{
		Start:    start,
		End:      end,
		Position: NodePosition{Start: start.Position.Start, End: end.Position.End},
	}, nil
}

// parseSheetReference parses Sheet!A1, Sheet!A1:B2 and Sheet!Name
func (p *Parser) parseSheetReference() (Node, error) {
	sheetTok := p.current()
	p.pos++

	var ref Node
	switch tok := p.current(); tok.Type {
	case TokenCell:
		node, err := p.parseCellOrRange()
		if err != nil {
			return nil, err
		}
		ref = node
	case TokenIdentifier:
		p.pos++
		ref = &NamedRangeNode{
			Name:     tok.Value,
			Position: NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}
	default:
		return nil, p.unexpected(tok)
	}

	return &SheetRefNode{
		Sheet:    sheetTok.Value,
		Ref:      ref,
		Position: NodePosition{Start: sheetTok.Pos, End: ref.GetPosition().End},
	}, nil
}

// parseFunctionCall parses NAME(arg, ...) with zero or more arguments
func (p *Parser) parseFunctionCall() (Node, error) {
	funcTok := p.current()
	p.pos++

	if open := p.current(); open.Type != TokenLeftParen {
		return nil, p.unexpected(open)
	}
	p.pos++

	args := []Node{}
	if closing := p.current(); closing.Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     funcTok.Value,
			Args:     args,
			Position: NodePosition{Start: funcTok.Pos, End: closing.Pos + 1},
		}, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.current()
		switch tok.Type {
		case TokenComma:
			p.pos++
		case TokenRightParen:
			p.pos++
			return &FunctionCallNode{
				Name:     funcTok.Value,
				Args:     args,
				Position: NodePosition{Start: funcTok.Pos, End: tok.Pos + 1},
			}, nil
		default:
			return nil, p.unexpected(tok)
		}
	}
}
