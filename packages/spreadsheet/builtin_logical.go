package spreadsheet

func logicalFunctions() []FunctionSpec {
	return []FunctionSpec{
		{Name: "IF", Category: CategoryLogical, MinArgs: 2, MaxArgs: 3, Signature: "IF(logical_test, value_if_true, [value_if_false])", AcceptsErrors: true, Fn: fnIf},
		{Name: "AND", Category: CategoryLogical, MinArgs: 1, MaxArgs: Variadic, Signature: "AND(logical1, [logical2], ...)", Fn: fnAnd},
		{Name: "OR", Category: CategoryLogical, MinArgs: 1, MaxArgs: Variadic, Signature: "OR(logical1, [logical2], ...)", Fn: fnOr},
		{Name: "NOT", Category: CategoryLogical, MinArgs: 1, MaxArgs: 1, Signature: "NOT(logical)", Fn: fnNot},
		{Name: "TRUE", Category: CategoryLogical, MinArgs: 0, MaxArgs: 0, Signature: "TRUE()", Fn: constant(true)},
		{Name: "FALSE", Category: CategoryLogical, MinArgs: 0, MaxArgs: 0, Signature: "FALSE()", Fn: constant(false)},
	}
}

// fnIf only fails on an error in the test. the branch not taken may hold
// an error without affecting the result.
func fnIf(_ Env, args []Primitive) (Primitive, error) {
	test, err := toBool(args[0])
	if err != nil {
		return nil, err
	}
	if test {
		return args[1], nil
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return false, nil
}

// logicalValues coerces flattened arguments, skipping empty cells
func logicalValues(args []Primitive) ([]bool, *FormulaError) {
	values := make([]bool, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		value, err := toBool(arg)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func fnAnd(_ Env, args []Primitive) (Primitive, error) {
	values, err := logicalValues(args)
	if err != nil {
		return nil, err
	}
	for _, value := range values {
		if !value {
			return false, nil
		}
	}
	return true, nil
}

func fnOr(_ Env, args []Primitive) (Primitive, error) {
	values, err := logicalValues(args)
	if err != nil {
		return nil, err
	}
	for _, value := range values {
		if value {
			return true, nil
		}
	}
	return false, nil
}

func fnNot(_ Env, args []Primitive) (Primitive, error) {
	value, err := toBool(args[0])
	if err != nil {
		return nil, err
	}
	return !value, nil
}

func constant(value Primitive) Function {
	return func(_ Env, _ []Primitive) (Primitive, error) {
		return value, nil
	}
}
