package spreadsheet

import "fmt"

// lookup functions are registered so that formulas using them parse and
// show up in listings, but they always evaluate to #N/A
func lookupFunctions() []FunctionSpec {
	stubs := []struct{ name, signature string }{
		{"VLOOKUP", "VLOOKUP(lookup_value, table_array, col_index_num, [range_lookup])"},
		{"HLOOKUP", "HLOOKUP(lookup_value, table_array, row_index_num, [range_lookup])"},
		{"INDEX", "INDEX(array, row_num, [column_num])"},
		{"MATCH", "MATCH(lookup_value, lookup_array, [match_type])"},
	}

	specs := make([]FunctionSpec, 0, len(stubs))
	for _, stub := range stubs {
		specs = append(specs, FunctionSpec{
			Name:          stub.name,
			Category:      CategoryLookup,
			MinArgs:       0,
			MaxArgs:       Variadic,
			Signature:     stub.signature,
			AcceptsErrors: true,
			Fn:            notImplemented(stub.name),
		})
	}
	return specs
}

func notImplemented(name string) Function {
	return func(_ Env, _ []Primitive) (Primitive, error) {
		return nil, NewFormulaError(ErrorCodeUnsupported, fmt.Sprintf("%s is not implemented", name))
	}
}
