package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// checkForError returns the error if value is a *FormulaError, nil otherwise
func checkForError(value Primitive) *FormulaError {
	if err, ok := value.(*FormulaError); ok {
		return err
	}
	return nil
}

// parseNumber parses numeric text. NaN and infinities are not numbers.
func parseNumber(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	num, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

// ParseLiteral coerces raw cell input: blank is empty, numeric text is a
// number, anything else stays text
func ParseLiteral(raw string) Primitive {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if num, ok := parseNumber(raw); ok {
		return num
	}
	return raw
}

// toNumber coerces a value for arithmetic. empty is 0 and so is empty
// text; other text must be numeric.
func toNumber(value Primitive) (float64, *FormulaError) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case nil:
		return 0, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		if num, ok := parseNumber(v); ok {
			return num, nil
		}
		return 0, NewFormulaError(ErrorCodeValue, fmt.Sprintf("cannot use %q as a number", v))
	case *FormulaError:
		return 0, v
	case Array:
		if len(v) == 1 {
			return toNumber(v[0])
		}
		return 0, NewFormulaError(ErrorCodeValue, "a range cannot be used as a single number")
	default:
		return 0, NewFormulaError(ErrorCodeValue, fmt.Sprintf("cannot use %v as a number", v))
	}
}

// formatNumber renders a number the way a cell displays it: integers
// without a fraction, otherwise the shortest exact decimal
func formatNumber(num float64) string {
	switch {
	case math.IsNaN(num):
		return "NaN"
	case math.IsInf(num, 1):
		return "Infinity"
	case math.IsInf(num, -1):
		return "-Infinity"
	case num == 0:
		return "0" // also folds -0
	}
	if math.Abs(num) >= 1e21 {
		return strconv.FormatFloat(num, 'g', -1, 64)
	}
	return strconv.FormatFloat(num, 'f', -1, 64)
}

// toText converts a value to its display text
func toText(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case *FormulaError:
		return v.Marker()
	case Array:
		if len(v) > 0 {
			return toText(v[0])
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// FormatValue renders a cell value for display
func FormatValue(value Primitive) string {
	return toText(value)
}

// toBool coerces a value for logical functions. text must spell TRUE or
// FALSE; empty text and empty cells are false.
func toBool(value Primitive) (bool, *FormulaError) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case nil:
		return false, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "TRUE":
			return true, nil
		case "FALSE", "":
			return false, nil
		}
		return false, NewFormulaError(ErrorCodeValue, fmt.Sprintf("cannot use %q as a logical value", v))
	case *FormulaError:
		return false, v
	case Array:
		if len(v) == 1 {
			return toBool(v[0])
		}
		return false, NewFormulaError(ErrorCodeValue, "a range cannot be used as a single logical value")
	default:
		return false, NewFormulaError(ErrorCodeValue, fmt.Sprintf("cannot use %v as a logical value", v))
	}
}

// typeRank orders values of different kinds: numbers < text < booleans
func typeRank(value Primitive) int {
	switch value.(type) {
	case float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	default:
		return 3
	}
}

// comparePrimitives compares two evaluated values. returns -1 if left <
// right, 0 if equal, 1 if left > right. an empty value compares as the
// zero value of the other side's kind. text compares case-insensitively.
func comparePrimitives(left, right Primitive) int {
	if left == nil {
		left = zeroLike(right)
	}
	if right == nil {
		right = zeroLike(left)
	}

	leftRank, rightRank := typeRank(left), typeRank(right)
	if leftRank != rightRank {
		if leftRank < rightRank {
			return -1
		}
		return 1
	}

	switch l := left.(type) {
	case float64:
		r := right.(float64)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		}
		return 0
	case string:
		return strings.Compare(strings.ToLower(l), strings.ToLower(right.(string)))
	case bool:
		r := right.(bool)
		switch {
		case l == r:
			return 0
		case !l:
			return -1
		}
		return 1
	}
	return 0
}

// zeroLike returns the empty value of a kind: 0, "" or FALSE
func zeroLike(value Primitive) Primitive {
	switch value.(type) {
	case string:
		return ""
	case bool:
		return false
	default:
		return 0.0
	}
}

// scalar collapses a single-cell array to its value. larger arrays are a
// #VALUE! where one value is needed.
func scalar(value Primitive) Primitive {
	arr, ok := value.(Array)
	if !ok {
		return value
	}
	if len(arr) == 1 {
		return arr[0]
	}
	return NewFormulaError(ErrorCodeValue, "a range cannot be used where a single value is expected")
}

// sameValue reports whether a stored value is unchanged. errors are equal
// when their codes are.
func sameValue(a, b Primitive) bool {
	aErr, aIsErr := a.(*FormulaError)
	bErr, bIsErr := b.(*FormulaError)
	if aIsErr || bIsErr {
		return aIsErr && bIsErr && aErr.Code == bErr.Code
	}
	return a == b
}
