package spreadsheet

// Primitive represents basic spreadsheet value types.
// types:
//   - float64: numeric values (dates are serial numbers)
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - nil: empty cells
//   - *FormulaError: error values (#DIV/0!, #VALUE!, etc.)
type Primitive any

// Array is the value of a range or named range reference: the contained
// cell values in row-major order. it only ever appears as a function
// argument or as an intermediate evaluation result, never as a stored value.
type Array []Primitive

// ErrorCode represents the error markers a cell can display
type ErrorCode uint8

const (
	ErrorCodeNull     ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0     ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue    ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef      ErrorCode = 4 // #REF! - reference to a sheet or cell that does not exist
	ErrorCodeName     ErrorCode = 5 // #NAME? - unknown function or named range
	ErrorCodeNum      ErrorCode = 6 // #NUM! - argument outside a function's domain
	ErrorCodeNA       ErrorCode = 7 // #N/A - value not available, stubbed lookups
	ErrorCodeOther    ErrorCode = 8 // #ERROR! - malformed formula text
	ErrorCodeCircular ErrorCode = 9 // #CIRCULAR! - cell sits on a dependency cycle
)

// error taxonomy aliases, so call sites read by failure kind
const (
	ErrorCodeSyntax      = ErrorCodeOther
	ErrorCodeDomain      = ErrorCodeNum
	ErrorCodeUnsupported = ErrorCodeNA
)

// ErrorMapper maps error codes to their display markers
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:     "#NULL!",
	ErrorCodeDiv0:     "#DIV/0!",
	ErrorCodeValue:    "#VALUE!",
	ErrorCodeRef:      "#REF!",
	ErrorCodeName:     "#NAME?",
	ErrorCodeNum:      "#NUM!",
	ErrorCodeNA:       "#N/A",
	ErrorCodeOther:    "#ERROR!",
	ErrorCodeCircular: "#CIRCULAR!",
}

func (c ErrorCode) String() string {
	if marker, ok := ErrorMapper[c]; ok {
		return marker
	}
	return "#ERROR!"
}

// FormulaError is a failed evaluation. it is stored as a cell value and
// displayed through its marker; it is never returned to the caller of the
// engine as a Go error except from Tokenize and Parse.
type FormulaError struct {
	Code    ErrorCode
	Message string
}

func (e *FormulaError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.String()
}

// Marker returns the text a cell holding this error displays
func (e *FormulaError) Marker() string {
	return e.Code.String()
}

func NewFormulaError(code ErrorCode, message string) *FormulaError {
	if message == "" {
		message = code.String()
	}
	return &FormulaError{
		Code:    code,
		Message: message,
	}
}

// CellType represents the kind of value a cell holds (external API)
type CellType uint8

const (
	CellValueTypeEmpty   CellType = 0
	CellValueTypeNumber  CellType = 1
	CellValueTypeString  CellType = 2
	CellValueTypeBoolean CellType = 3
	CellValueTypeError   CellType = 4
)

func (t CellType) String() string {
	switch t {
	case CellValueTypeNumber:
		return "number"
	case CellValueTypeString:
		return "string"
	case CellValueTypeBoolean:
		return "boolean"
	case CellValueTypeError:
		return "error"
	default:
		return "empty"
	}
}

// TypeOf classifies a primitive
func TypeOf(value Primitive) CellType {
	switch value.(type) {
	case float64:
		return CellValueTypeNumber
	case string:
		return CellValueTypeString
	case bool:
		return CellValueTypeBoolean
	case *FormulaError:
		return CellValueTypeError
	default:
		return CellValueTypeEmpty
	}
}

// Cell represents a spreadsheet cell with its raw input and computed value.
// a cell whose raw text does not begin with '=' is a literal cell.
type Cell struct {
	Address  CellAddress
	Raw      string    // text exactly as entered
	Value    Primitive // computed value, a *FormulaError when evaluation failed
	Formula  string    // formula source without the leading '='
	Volatile bool      // formula calls RAND, NOW, etc.
}

// IsFormula reports whether the cell holds a formula
func (c *Cell) IsFormula() bool {
	return len(c.Raw) > 0 && c.Raw[0] == charEqual
}

// Err returns the cell's error flag
func (c *Cell) Err() *FormulaError {
	if err, ok := c.Value.(*FormulaError); ok {
		return err
	}
	return nil
}

// reset clears the cell to the literal-empty state, keeping its identity
func (c *Cell) reset() {
	c.Raw = ""
	c.Value = nil
	c.Formula = ""
	c.Volatile = false
}
