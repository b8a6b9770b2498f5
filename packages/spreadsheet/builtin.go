package spreadsheet

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// Env carries the nondeterministic inputs a function may read
type Env struct {
	Clock  Clock
	Random RandomGenerator
}

// DefaultEnv reads the wall clock and the global random source
func DefaultEnv() Env {
	return Env{Clock: &WallClock{}, Random: &DefaultRandomGenerator{}}
}

// Category groups functions for listing
type Category string

const (
	CategoryMath      Category = "Math"
	CategoryLogical   Category = "Logical"
	CategoryText      Category = "Text"
	CategoryDate      Category = "Date & Time"
	CategoryLookup    Category = "Lookup & Reference"
	CategoryFinancial Category = "Financial"
)

// Variadic as MaxArgs accepts any number of arguments past MinArgs
const Variadic = -1

// Function implements a builtin. arguments are fully evaluated. a returned
// error becomes the call's value; a *FormulaError keeps its code, anything
// else is a #VALUE!.
type Function func(env Env, args []Primitive) (Primitive, error)

// FunctionSpec describes one registered function
type FunctionSpec struct {
	Name      string
	Category  Category
	MinArgs   int
	MaxArgs   int // Variadic for no limit
	Volatile  bool
	Signature string
	// AcceptsErrors hands error arguments to Fn instead of short-circuiting
	// the call with the first error
	AcceptsErrors bool
	Fn            Function
}

// IsVariadic reports whether ranges are flattened into the argument list
func (fs *FunctionSpec) IsVariadic() bool {
	return fs.MaxArgs == Variadic
}

// Registry maps upper-case names to functions. it is built once and never
// modified afterwards.
type Registry struct {
	functions map[string]*FunctionSpec
}

var builtins = newBuiltinRegistry()

// Builtins returns the process-wide function registry
func Builtins() *Registry {
	return builtins
}

func newBuiltinRegistry() *Registry {
	r := &Registry{functions: make(map[string]*FunctionSpec)}
	for _, group := range [][]FunctionSpec{
		mathFunctions(),
		logicalFunctions(),
		textFunctions(),
		dateFunctions(),
		lookupFunctions(),
		financialFunctions(),
	} {
		for i := range group {
			spec := group[i]
			if _, exists := r.functions[spec.Name]; exists {
				panic("duplicate builtin " + spec.Name)
			}
			r.functions[spec.Name] = &spec
		}
	}
	return r
}

// Lookup finds a function by name, ignoring case
func (r *Registry) Lookup(name string) (*FunctionSpec, bool) {
	spec, ok := r.functions[strings.ToUpper(name)]
	return spec, ok
}

// Names returns every registered name, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Categories returns sorted function names per category
func (r *Registry) Categories() map[Category][]string {
	result := make(map[Category][]string)
	for _, name := range r.Names() {
		spec := r.functions[name]
		result[spec.Category] = append(result[spec.Category], name)
	}
	return result
}

// Signature returns usage text like SUM(number1, [number2], ...)
func (r *Registry) Signature(name string) (string, bool) {
	spec, ok := r.Lookup(name)
	if !ok {
		return "", false
	}
	return spec.Signature, true
}

// IsVolatile reports whether a function must be treated as changing on
// every evaluation
func (r *Registry) IsVolatile(name string) bool {
	spec, ok := r.Lookup(name)
	return ok && spec.Volatile
}

// Call checks arity, shapes the arguments and invokes the function. every
// failure comes back as a *FormulaError value.
func (fs *FunctionSpec) Call(env Env, args []Primitive) Primitive {
	if len(args) < fs.MinArgs || (fs.MaxArgs != Variadic && len(args) > fs.MaxArgs) {
		return NewFormulaError(ErrorCodeValue, fmt.Sprintf("%s: wrong number of arguments (%d), usage %s", fs.Name, len(args), fs.Signature))
	}

	shaped := make([]Primitive, 0, len(args))
	for _, arg := range args {
		if arr, ok := arg.(Array); ok && fs.IsVariadic() {
			shaped = append(shaped, arr...)
			continue
		}
		if !fs.IsVariadic() {
			arg = scalar(arg)
		}
		shaped = append(shaped, arg)
	}

	if !fs.AcceptsErrors {
		for _, arg := range shaped {
			if err := checkForError(arg); err != nil {
				return err
			}
		}
	}

	value, err := fs.Fn(env, shaped)
	if err != nil {
		if formulaErr, ok := err.(*FormulaError); ok {
			return formulaErr
		}
		return NewFormulaError(ErrorCodeValue, fmt.Sprintf("%s: %v", fs.Name, err))
	}
	if arr, ok := value.(Array); ok {
		return scalar(arr)
	}
	return value
}

// numberArg coerces args[i], falling back to def when the argument was
// omitted
func numberArg(args []Primitive, i int, def float64) (float64, *FormulaError) {
	if i >= len(args) {
		return def, nil
	}
	return toNumber(args[i])
}

// numbersOf collects the numeric values of flattened arguments the way
// SUM sees them: numbers, booleans and numeric text. empty cells and other
// text are skipped.
func numbersOf(args []Primitive) ([]float64, *FormulaError) {
	nums := make([]float64, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case float64:
			nums = append(nums, v)
		case bool:
			if v {
				nums = append(nums, 1)
			} else {
				nums = append(nums, 0)
			}
		case string:
			if num, ok := parseNumber(v); ok {
				nums = append(nums, num)
			}
		case *FormulaError:
			return nil, v
		}
	}
	return nums, nil
}

// onlyNumbers collects the arguments that are numbers, skipping everything
// else. errors still propagate.
func onlyNumbers(args []Primitive) ([]float64, *FormulaError) {
	nums := make([]float64, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case float64:
			nums = append(nums, v)
		case *FormulaError:
			return nil, v
		}
	}
	return nums, nil
}
