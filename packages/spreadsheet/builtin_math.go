package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
)

func mathFunctions() []FunctionSpec {
	return []FunctionSpec{
		{Name: "SUM", Category: CategoryMath, MinArgs: 0, MaxArgs: Variadic, Signature: "SUM(number1, [number2], ...)", Fn: fnSum},
		{Name: "AVERAGE", Category: CategoryMath, MinArgs: 1, MaxArgs: Variadic, Signature: "AVERAGE(number1, [number2], ...)", Fn: fnAverage},
		{Name: "COUNT", Category: CategoryMath, MinArgs: 0, MaxArgs: Variadic, Signature: "COUNT(value1, [value2], ...)", AcceptsErrors: true, Fn: fnCount},
		{Name: "COUNTA", Category: CategoryMath, MinArgs: 0, MaxArgs: Variadic, Signature: "COUNTA(value1, [value2], ...)", AcceptsErrors: true, Fn: fnCountA},
		{Name: "MIN", Category: CategoryMath, MinArgs: 0, MaxArgs: Variadic, Signature: "MIN(number1, [number2], ...)", Fn: fnMin},
		{Name: "MAX", Category: CategoryMath, MinArgs: 0, MaxArgs: Variadic, Signature: "MAX(number1, [number2], ...)", Fn: fnMax},
		{Name: "PRODUCT", Category: CategoryMath, MinArgs: 0, MaxArgs: Variadic, Signature: "PRODUCT(number1, [number2], ...)", Fn: fnProduct},
		{Name: "ABS", Category: CategoryMath, MinArgs: 1, MaxArgs: 1, Signature: "ABS(number)", Fn: fnAbs},
		{Name: "ROUND", Category: CategoryMath, MinArgs: 1, MaxArgs: 2, Signature: "ROUND(number, [num_digits])", Fn: roundWith(math.Round)},
		{Name: "ROUNDUP", Category: CategoryMath, MinArgs: 1, MaxArgs: 2, Signature: "ROUNDUP(number, [num_digits])", Fn: roundWith(math.Ceil)},
		{Name: "ROUNDDOWN", Category: CategoryMath, MinArgs: 1, MaxArgs: 2, Signature: "ROUNDDOWN(number, [num_digits])", Fn: roundWith(math.Floor)},
		{Name: "CEILING", Category: CategoryMath, MinArgs: 1, MaxArgs: 2, Signature: "CEILING(number, [significance])", Fn: significanceWith(math.Ceil)},
		{Name: "FLOOR", Category: CategoryMath, MinArgs: 1, MaxArgs: 2, Signature: "FLOOR(number, [significance])", Fn: significanceWith(math.Floor)},
		{Name: "POWER", Category: CategoryMath, MinArgs: 2, MaxArgs: 2, Signature: "POWER(number, power)", Fn: fnPower},
		{Name: "SQRT", Category: CategoryMath, MinArgs: 1, MaxArgs: 1, Signature: "SQRT(number)", Fn: fnSqrt},
		{Name: "MOD", Category: CategoryMath, MinArgs: 2, MaxArgs: 2, Signature: "MOD(number, divisor)", Fn: fnMod},
		{Name: "PI", Category: CategoryMath, MinArgs: 0, MaxArgs: 0, Signature: "PI()", Fn: fnPi},
		{Name: "RAND", Category: CategoryMath, MinArgs: 0, MaxArgs: 0, Volatile: true, Signature: "RAND()", Fn: fnRand},
		{Name: "RANDBETWEEN", Category: CategoryMath, MinArgs: 2, MaxArgs: 2, Volatile: true, Signature: "RANDBETWEEN(bottom, top)", Fn: fnRandBetween},
	}
}

// cleanFloat drops accumulated binary noise past 15 decimal places, so
// 0.1+0.2 sums to 0.3
func cleanFloat(num float64) float64 {
	if math.IsInf(num, 0) || math.IsNaN(num) {
		return num
	}
	rounded, err := strconv.ParseFloat(fmt.Sprintf("%.15f", num), 64)
	if err != nil {
		return num
	}
	return rounded
}

func fnSum(_ Env, args []Primitive) (Primitive, error) {
	nums, err := numbersOf(args)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	return cleanFloat(sum), nil
}

func fnAverage(_ Env, args []Primitive) (Primitive, error) {
	nums, err := onlyNumbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, NewFormulaError(ErrorCodeDiv0, "AVERAGE has no numbers to average")
	}
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	return sum / float64(len(nums)), nil
}

// fnCount counts numbers. empty cells, text, booleans and errors are not
// counted.
func fnCount(_ Env, args []Primitive) (Primitive, error) {
	count := 0
	for _, arg := range args {
		if _, ok := arg.(float64); ok {
			count++
		}
	}
	return float64(count), nil
}

// fnCountA counts everything that is not empty, errors included. empty
// cells inside a range arrive as 0 and are counted.
func fnCountA(_ Env, args []Primitive) (Primitive, error) {
	count := 0
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case string:
			if v != "" {
				count++
			}
		default:
			count++
		}
	}
	return float64(count), nil
}

func fnMin(_ Env, args []Primitive) (Primitive, error) {
	nums, err := onlyNumbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	result := nums[0]
	for _, num := range nums[1:] {
		result = math.Min(result, num)
	}
	return result, nil
}

func fnMax(_ Env, args []Primitive) (Primitive, error) {
	nums, err := onlyNumbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	result := nums[0]
	for _, num := range nums[1:] {
		result = math.Max(result, num)
	}
	return result, nil
}

func fnProduct(_ Env, args []Primitive) (Primitive, error) {
	nums, err := numbersOf(args)
	if err != nil {
		return nil, err
	}
	product := 1.0
	for _, num := range nums {
		product *= num
	}
	return cleanFloat(product), nil
}

func fnAbs(_ Env, args []Primitive) (Primitive, error) {
	num, err := toNumber(args[0])
	if err != nil {
		return nil, err
	}
	return math.Abs(num), nil
}

// roundWith builds ROUND and friends: the number is scaled by
// 10^floor(digits), passed through round, and scaled back
func roundWith(round func(float64) float64) Function {
	return func(_ Env, args []Primitive) (Primitive, error) {
		num, err := toNumber(args[0])
		if err != nil {
			return nil, err
		}
		digits, err := numberArg(args, 1, 0)
		if err != nil {
			return nil, err
		}
		factor := math.Pow(10, math.Floor(digits))
		return cleanFloat(round(num*factor) / factor), nil
	}
}

// significanceWith builds CEILING and FLOOR. a zero significance falls
// back to 1, like an omitted one.
func significanceWith(round func(float64) float64) Function {
	return func(_ Env, args []Primitive) (Primitive, error) {
		num, err := toNumber(args[0])
		if err != nil {
			return nil, err
		}
		significance, err := numberArg(args, 1, 1)
		if err != nil {
			return nil, err
		}
		if significance == 0 {
			significance = 1
		}
		return cleanFloat(round(num/significance) * significance), nil
	}
}

func fnPower(_ Env, args []Primitive) (Primitive, error) {
	base, err := toNumber(args[0])
	if err != nil {
		return nil, err
	}
	exp, err := toNumber(args[1])
	if err != nil {
		return nil, err
	}
	result, err := power(base, exp)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// power is shared with the ^ operator. results that are not real numbers
// are a #NUM!.
func power(base, exp float64) (float64, *FormulaError) {
	if base == 0 && exp < 0 {
		return 0, NewFormulaError(ErrorCodeDiv0, "zero raised to a negative power")
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, NewFormulaError(ErrorCodeDomain, fmt.Sprintf("%s^%s is not a real number", formatNumber(base), formatNumber(exp)))
	}
	return result, nil
}

func fnSqrt(_ Env, args []Primitive) (Primitive, error) {
	num, err := toNumber(args[0])
	if err != nil {
		return nil, err
	}
	if num < 0 {
		return nil, NewFormulaError(ErrorCodeDomain, "SQRT requires a non-negative argument")
	}
	return math.Sqrt(num), nil
}

// fnMod keeps the sign of the dividend
func fnMod(_ Env, args []Primitive) (Primitive, error) {
	dividend, err := toNumber(args[0])
	if err != nil {
		return nil, err
	}
	divisor, err := toNumber(args[1])
	if err != nil {
		return nil, err
	}
	if divisor == 0 {
		return nil, NewFormulaError(ErrorCodeDiv0, "MOD by zero")
	}
	return math.Mod(dividend, divisor), nil
}

func fnPi(_ Env, _ []Primitive) (Primitive, error) {
	return math.Pi, nil
}

func fnRand(env Env, _ []Primitive) (Primitive, error) {
	return env.Random.Float64(), nil
}

func fnRandBetween(env Env, args []Primitive) (Primitive, error) {
	bottom, err := toNumber(args[0])
	if err != nil {
		return nil, err
	}
	top, err := toNumber(args[1])
	if err != nil {
		return nil, err
	}
	low, high := math.Ceil(bottom), math.Floor(top)
	if low > high {
		return nil, NewFormulaError(ErrorCodeDomain, "RANDBETWEEN bottom is greater than top")
	}
	return math.Floor(env.Random.Float64()*(high-low+1)) + low, nil
}
