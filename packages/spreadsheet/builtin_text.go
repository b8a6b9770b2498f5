package spreadsheet

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func textFunctions() []FunctionSpec {
	return []FunctionSpec{
		{Name: "CONCATENATE", Category: CategoryText, MinArgs: 1, MaxArgs: Variadic, Signature: "CONCATENATE(text1, [text2], ...)", Fn: fnConcatenate},
		{Name: "LEFT", Category: CategoryText, MinArgs: 1, MaxArgs: 2, Signature: "LEFT(text, [num_chars])", Fn: fnLeft},
		{Name: "RIGHT", Category: CategoryText, MinArgs: 1, MaxArgs: 2, Signature: "RIGHT(text, [num_chars])", Fn: fnRight},
		{Name: "MID", Category: CategoryText, MinArgs: 3, MaxArgs: 3, Signature: "MID(text, start_num, num_chars)", Fn: fnMid},
		{Name: "LEN", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Signature: "LEN(text)", Fn: fnLen},
		{Name: "LOWER", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Signature: "LOWER(text)", Fn: fnLower},
		{Name: "UPPER", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Signature: "UPPER(text)", Fn: fnUpper},
		{Name: "TRIM", Category: CategoryText, MinArgs: 1, MaxArgs: 1, Signature: "TRIM(text)", Fn: fnTrim},
	}
}

// countArg reads a non-negative character count, truncated toward zero
func countArg(args []Primitive, i int, def float64, name string) (int, *FormulaError) {
	num, err := numberArg(args, i, def)
	if err != nil {
		return 0, err
	}
	if num < 0 {
		return 0, NewFormulaError(ErrorCodeValue, fmt.Sprintf("%s: character count must not be negative", name))
	}
	return int(math.Min(math.Trunc(num), math.MaxInt32)), nil
}

func fnConcatenate(_ Env, args []Primitive) (Primitive, error) {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(toText(arg))
	}
	return sb.String(), nil
}

func fnLeft(_ Env, args []Primitive) (Primitive, error) {
	runes := []rune(toText(args[0]))
	n, err := countArg(args, 1, 1, "LEFT")
	if err != nil {
		return nil, err
	}
	return string(runes[:min(n, len(runes))]), nil
}

func fnRight(_ Env, args []Primitive) (Primitive, error) {
	runes := []rune(toText(args[0]))
	n, err := countArg(args, 1, 1, "RIGHT")
	if err != nil {
		return nil, err
	}
	return string(runes[len(runes)-min(n, len(runes)):]), nil
}

// fnMid takes a 1-based start position
func fnMid(_ Env, args []Primitive) (Primitive, error) {
	runes := []rune(toText(args[0]))
	start, err := toNumber(args[1])
	if err != nil {
		return nil, err
	}
	if start < 1 {
		return nil, NewFormulaError(ErrorCodeValue, "MID: start_num must be at least 1")
	}
	n, err := countArg(args, 2, 0, "MID")
	if err != nil {
		return nil, err
	}

	from := int(math.Min(math.Trunc(start), float64(len(runes)+1))) - 1
	to := min(from+n, len(runes))
	return string(runes[from:to]), nil
}

func fnLen(_ Env, args []Primitive) (Primitive, error) {
	return float64(utf8.RuneCountInString(toText(args[0]))), nil
}

func fnLower(_ Env, args []Primitive) (Primitive, error) {
	return cases.Lower(language.Und).String(toText(args[0])), nil
}

func fnUpper(_ Env, args []Primitive) (Primitive, error) {
	return cases.Upper(language.Und).String(toText(args[0])), nil
}

// fnTrim strips leading and trailing spaces and collapses inner runs of
// spaces to one
func fnTrim(_ Env, args []Primitive) (Primitive, error) {
	return strings.Join(strings.Fields(toText(args[0])), " "), nil
}
