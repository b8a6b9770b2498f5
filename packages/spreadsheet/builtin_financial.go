package spreadsheet

import "math"

func financialFunctions() []FunctionSpec {
	return []FunctionSpec{
		{Name: "PMT", Category: CategoryFinancial, MinArgs: 3, MaxArgs: 5, Signature: "PMT(rate, nper, pv, [fv], [type])", Fn: fnPmt},
	}
}

// fnPmt returns the periodic payment of a loan. type 1 pays at the start of
// each period, anything else at the end.
func fnPmt(_ Env, args []Primitive) (Primitive, error) {
	values := make([]float64, 5)
	defaults := []float64{0, 0, 0, 0, 0}
	for i := range values {
		num, err := numberArg(args, i, defaults[i])
		if err != nil {
			return nil, err
		}
		values[i] = num
	}
	rate, nper, pv, fv, when := values[0], values[1], values[2], values[3], values[4]

	if nper == 0 {
		return nil, NewFormulaError(ErrorCodeDiv0, "PMT: nper must not be zero")
	}

	var pmt float64
	if rate == 0 {
		pmt = -(pv + fv) / nper
	} else {
		pvif := math.Pow(1+rate, nper)
		pmt = rate / (pvif - 1) * -(pv*pvif + fv)
		if when == 1 {
			pmt /= 1 + rate
		}
	}

	if math.IsNaN(pmt) || math.IsInf(pmt, 0) {
		return nil, NewFormulaError(ErrorCodeDomain, "PMT: result is not a real number")
	}
	return pmt, nil
}
