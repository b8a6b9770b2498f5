package spreadsheet

import (
	"math"
	"reflect"
	"testing"
	"time"
)

type WorkbookTestCase struct {
	t        *testing.T
	name     string
	workbook *Workbook
	changed  []string
	err      error
	skipped  bool
}

func NewWorkbookTestCase(t *testing.T, name string, opts ...Option) *WorkbookTestCase {
	return &WorkbookTestCase{
		t:        t,
		name:     name,
		workbook: NewWorkbook(opts...),
	}
}

func (tc *WorkbookTestCase) Skip(reason string) *WorkbookTestCase {
	if !tc.skipped {
		tc.t.Skipf("%s: %s", tc.name, reason)
		tc.skipped = true
	}
	return tc
}

// step runs one workbook operation unless an earlier one failed
func (tc *WorkbookTestCase) step(op func() ([]string, error)) *WorkbookTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.changed, tc.err = op()
	return tc
}

func (tc *WorkbookTestCase) Set(cellID string, raw string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.EditCell(cellID, raw) })
}

func (tc *WorkbookTestCase) Clear(cellID string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.ClearCell(cellID) })
}

func (tc *WorkbookTestCase) AddWorksheet(name string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.AddWorksheet(name) })
}

func (tc *WorkbookTestCase) RemoveWorksheet(name string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.RemoveWorksheet(name) })
}

func (tc *WorkbookTestCase) RenameWorksheet(oldName, newName string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.RenameWorksheet(oldName, newName) })
}

func (tc *WorkbookTestCase) DefineNamedRange(name, ref string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.DefineNamedRange(name, ref) })
}

func (tc *WorkbookTestCase) RemoveNamedRange(name string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.RemoveNamedRange(name) })
}

func (tc *WorkbookTestCase) AutoFormula(cellID, fn string) *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.AutoFormula(cellID, fn) })
}

func (tc *WorkbookTestCase) Recalculate() *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.Recalculate(), nil })
}

func (tc *WorkbookTestCase) RecalculateVolatile() *WorkbookTestCase {
	return tc.step(func() ([]string, error) { return tc.workbook.RecalculateVolatile(), nil })
}

func (tc *WorkbookTestCase) get(cellID string) (Primitive, bool) {
	if tc.skipped || tc.err != nil {
		return nil, false
	}
	actual, err := tc.workbook.Get(cellID)
	if err != nil {
		tc.t.Errorf("%s: Get(%s) failed: %v", tc.name, cellID, err)
		return nil, false
	}
	return actual, true
}

func (tc *WorkbookTestCase) AssertCellEq(cellID string, expected Primitive) *WorkbookTestCase {
	actual, ok := tc.get(cellID)
	if !ok {
		return tc
	}

	switch exp := expected.(type) {
	case float64:
		if act, ok := actual.(float64); ok {
			if math.Abs(act-exp) > 1e-10 {
				tc.t.Errorf("%s: Cell %s = %v, want %v", tc.name, cellID, actual, expected)
			}
		} else {
			tc.t.Errorf("%s: Cell %s = %v (%T), want %v (float64)", tc.name, cellID, actual, actual, expected)
		}
	case int:
		// Convert int to float64 for comparison
		if act, ok := actual.(float64); ok {
			if math.Abs(act-float64(exp)) > 1e-10 {
				tc.t.Errorf("%s: Cell %s = %v, want %v", tc.name, cellID, actual, expected)
			}
		} else {
			tc.t.Errorf("%s: Cell %s = %v (%T), want %v (int)", tc.name, cellID, actual, actual, expected)
		}
	case nil:
		if actual != nil {
			tc.t.Errorf("%s: Cell %s = %v, want nil", tc.name, cellID, actual)
		}
	case ErrorCode:
		return tc.AssertCellErr(cellID, exp)
	default:
		if actual != expected {
			tc.t.Errorf("%s: Cell %s = %v (%T), want %v", tc.name, cellID, actual, actual, expected)
		}
	}
	return tc
}

func (tc *WorkbookTestCase) AssertCellEmpty(cellID string) *WorkbookTestCase {
	return tc.AssertCellEq(cellID, nil)
}

func (tc *WorkbookTestCase) AssertCellErr(cellID string, errorCode ErrorCode) *WorkbookTestCase {
	actual, ok := tc.get(cellID)
	if !ok {
		return tc
	}
	if formulaErr, ok := actual.(*FormulaError); ok {
		if formulaErr.Code != errorCode {
			tc.t.Errorf("%s: Cell %s has error %v, want %v", tc.name, cellID, formulaErr.Code, errorCode)
		}
	} else {
		tc.t.Errorf("%s: Cell %s = %v, want error %v", tc.name, cellID, actual, errorCode)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertCellFn(cellID string, fn func(value Primitive, t *testing.T)) *WorkbookTestCase {
	actual, ok := tc.get(cellID)
	if !ok {
		return tc
	}
	fn(actual, tc.t)
	return tc
}

func (tc *WorkbookTestCase) AssertInfo(cellID string, fn func(info CellInfo, t *testing.T)) *WorkbookTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	info, err := tc.workbook.Inspect(cellID)
	if err != nil {
		tc.t.Errorf("%s: Inspect(%s) failed: %v", tc.name, cellID, err)
		return tc
	}
	fn(info, tc.t)
	return tc
}

// AssertChanged checks the cells reported by the last operation, in order
func (tc *WorkbookTestCase) AssertChanged(expected ...string) *WorkbookTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	if len(expected) == 0 && len(tc.changed) == 0 {
		return tc
	}
	if !reflect.DeepEqual(tc.changed, expected) {
		tc.t.Errorf("%s: changed = %v, want %v", tc.name, tc.changed, expected)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertStats(fn func(stats WorkbookStats, t *testing.T)) *WorkbookTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	fn(tc.workbook.Stats(), tc.t)
	return tc
}

func (tc *WorkbookTestCase) AssertWorksheets(expected ...string) *WorkbookTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	if actual := tc.workbook.Worksheets(); !reflect.DeepEqual(actual, expected) {
		tc.t.Errorf("%s: worksheets = %v, want %v", tc.name, actual, expected)
	}
	return tc
}

func (tc *WorkbookTestCase) ExpectAppError(expectedCode AppErrorCode) *WorkbookTestCase {
	if tc.skipped {
		return tc
	}
	if tc.err == nil {
		tc.t.Errorf("%s: Expected error with code %v, but got no error", tc.name, expectedCode)
		return tc
	}
	if appErr, ok := tc.err.(*AppError); ok {
		if appErr.Code != expectedCode {
			tc.t.Errorf("%s: Got error code %v, want %v", tc.name, appErr.Code, expectedCode)
		}
	} else {
		tc.t.Errorf("%s: Got error %v, want AppError with code %v", tc.name, tc.err, expectedCode)
	}
	tc.err = nil
	return tc
}

func (tc *WorkbookTestCase) End() {
	if !tc.skipped && tc.err != nil {
		tc.t.Errorf("%s: unexpected error: %v", tc.name, tc.err)
	}
}

// fixedClock always reads the same instant
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

// sequenceRandom returns its values in turn, repeating the last one
type sequenceRandom struct {
	values []float64
	next   int
}

func (r *sequenceRandom) Float64() float64 {
	value := r.values[min(r.next, len(r.values)-1)]
	r.next++
	return value
}

func TestLexingAndParsing(t *testing.T) {
	t.Run("ValidFormulas", func(t *testing.T) {
		NewWorkbookTestCase(t, "Basic arithmetic").
			Set("Sheet1!A1", "=1+2").
			AssertCellEq("Sheet1!A1", 3.0).
			End()

		NewWorkbookTestCase(t, "Cell reference").
			Set("Sheet1!A1", "10").
			Set("Sheet1!A2", "=A1").
			AssertCellEq("Sheet1!A2", 10.0).
			End()

		NewWorkbookTestCase(t, "Function call").
			Set("Sheet1!A1", "5").
			Set("Sheet1!A2", "10").
			Set("Sheet1!A3", "=SUM(A1:A2)").
			AssertCellEq("Sheet1!A3", 15.0).
			End()

		NewWorkbookTestCase(t, "String literal").
			Set("Sheet1!A1", `="hello"`).
			Set("Sheet1!A2", `="say ""hi"""`).
			AssertCellEq("Sheet1!A1", "hello").
			AssertCellEq("Sheet1!A2", `say "hi"`).
			End()

		NewWorkbookTestCase(t, "Boolean literal").
			Set("Sheet1!A1", "=TRUE").
			Set("Sheet1!A2", "=false").
			AssertCellEq("Sheet1!A1", true).
			AssertCellEq("Sheet1!A2", false).
			End()

		NewWorkbookTestCase(t, "Lower case references and functions").
			Set("A1", "4").
			Set("A2", "=sum(a1, 1)").
			AssertCellEq("A2", 5).
			End()

		NewWorkbookTestCase(t, "Multiple unary plus operator").
			Set("Sheet1!A1", "=1++2").
			Set("Sheet1!A2", "=1++++++3").
			Set("Sheet1!A3", "=++++1++++++4").
			AssertCellEq("Sheet1!A1", 3).
			AssertCellEq("Sheet1!A2", 4).
			AssertCellEq("Sheet1!A3", 5).
			End()
	})

	t.Run("InvalidFormulas", func(t *testing.T) {
		NewWorkbookTestCase(t, "Empty formula").
			Set("Sheet1!A1", "=").
			AssertCellErr("Sheet1!A1", ErrorCodeSyntax).
			End()

		NewWorkbookTestCase(t, "Unclosed function").
			Set("Sheet1!A1", "=SUM(").
			AssertCellErr("Sheet1!A1", ErrorCodeSyntax).
			End()

		NewWorkbookTestCase(t, "Incomplete range").
			Set("Sheet1!A1", "=A1:").
			AssertCellErr("Sheet1!A1", ErrorCodeSyntax).
			End()

		NewWorkbookTestCase(t, "Double equals").
			Set("Sheet1!A1", "==1").
			AssertCellErr("Sheet1!A1", ErrorCodeSyntax).
			End()

		NewWorkbookTestCase(t, "Unknown character").
			Set("Sheet1!A1", "=1#2").
			AssertCellErr("Sheet1!A1", ErrorCodeSyntax).
			AssertInfo("Sheet1!A1", func(info CellInfo, t *testing.T) {
				if info.Raw != "=1#2" || info.Display != "#ERROR!" {
					t.Errorf("raw %q display %q", info.Raw, info.Display)
				}
			}).
			End()

		NewWorkbookTestCase(t, "Dangling operator").
			Set("Sheet1!A1", "=1+").
			AssertCellErr("Sheet1!A1", ErrorCodeSyntax).
			End()
	})
}

func TestLiterals(t *testing.T) {
	NewWorkbookTestCase(t, "Number").
		Set("A1", "42").
		Set("A2", " -3.5 ").
		AssertCellEq("A1", 42).
		AssertCellEq("A2", -3.5).
		End()

	NewWorkbookTestCase(t, "Text").
		Set("A1", "hello world").
		Set("A2", "TRUE").
		AssertCellEq("A1", "hello world").
		AssertCellEq("A2", "TRUE").
		End()

	NewWorkbookTestCase(t, "Blank").
		Set("A1", "   ").
		AssertCellEmpty("A1").
		AssertCellEmpty("Z99").
		End()

	NewWorkbookTestCase(t, "Empty result is zero").
		Set("A1", "=B7").
		AssertCellEq("A1", 0).
		End()
}

func TestOperators(t *testing.T) {
	t.Run("Precedence", func(t *testing.T) {
		NewWorkbookTestCase(t, "Multiplication before addition").
			Set("A1", "=2+3*4").
			Set("A2", "=(2+3)*4").
			AssertCellEq("A1", 14).
			AssertCellEq("A2", 20).
			End()

		NewWorkbookTestCase(t, "Unary minus binds tighter than power").
			Set("A1", "=-2^2").
			AssertCellEq("A1", 4).
			End()

		NewWorkbookTestCase(t, "Power is left associative").
			Set("A1", "=2^3^2").
			AssertCellEq("A1", 64).
			End()

		NewWorkbookTestCase(t, "Concatenation shares the additive level").
			Set("A1", "=1&2+3").
			Set("A2", `=1+2&"x"`).
			AssertCellEq("A1", 15).
			AssertCellEq("A2", "3x").
			End()

		NewWorkbookTestCase(t, "Comparison is lowest").
			Set("A1", "=1+1=2").
			AssertCellEq("A1", true).
			End()
	})

	t.Run("Comparison", func(t *testing.T) {
		NewWorkbookTestCase(t, "Numbers").
			Set("A1", "=1<2").
			Set("A2", "=2<=1").
			Set("A3", "=3<>3").
			Set("A4", "=3>=3").
			AssertCellEq("A1", true).
			AssertCellEq("A2", false).
			AssertCellEq("A3", false).
			AssertCellEq("A4", true).
			End()

		NewWorkbookTestCase(t, "Text ignores case").
			Set("A1", `="a"="A"`).
			Set("A2", `="b">"a"`).
			AssertCellEq("A1", true).
			AssertCellEq("A2", true).
			End()

		NewWorkbookTestCase(t, "Mixed kinds").
			Set("A1", `=1<"a"`).
			Set("A2", `="z"<TRUE`).
			AssertCellEq("A1", true).
			AssertCellEq("A2", true).
			End()

		NewWorkbookTestCase(t, "Empty equals zero and empty text").
			Set("A1", "=B1=0").
			Set("A2", `=B1=""`).
			AssertCellEq("A1", true).
			AssertCellEq("A2", true).
			End()
	})

	t.Run("Arithmetic", func(t *testing.T) {
		NewWorkbookTestCase(t, "Division by zero").
			Set("A1", "=1/0").
			Set("A2", "=1/B9").
			AssertCellErr("A1", ErrorCodeDiv0).
			AssertCellErr("A2", ErrorCodeDiv0).
			End()

		NewWorkbookTestCase(t, "Text operand").
			Set("A1", `=1+"abc"`).
			Set("A2", `=1+"2"`).
			AssertCellErr("A1", ErrorCodeValue).
			AssertCellEq("A2", 3).
			End()

		NewWorkbookTestCase(t, "Booleans are numbers").
			Set("A1", "=TRUE+TRUE").
			AssertCellEq("A1", 2).
			End()

		NewWorkbookTestCase(t, "No real result").
			Set("A1", "=(-8)^0.5").
			Set("A2", "=0^-1").
			AssertCellErr("A1", ErrorCodeNum).
			AssertCellErr("A2", ErrorCodeDiv0).
			End()

		NewWorkbookTestCase(t, "Range where a value is expected").
			Set("A1", "1").
			Set("A2", "2").
			Set("B1", "=A1:A2+1").
			Set("B2", "=A1:A1+1").
			AssertCellErr("B1", ErrorCodeValue).
			AssertCellEq("B2", 2).
			End()
	})
}

func TestFunctions(t *testing.T) {
	t.Run("Aggregates", func(t *testing.T) {
		NewWorkbookTestCase(t, "Empty cells in a range are zero").
			Set("A1", "2").
			Set("A3", "4").
			Set("B1", "=SUM(A1:A3)").
			Set("B2", "=AVERAGE(A1:A3)").
			Set("B3", "=COUNT(A1:A3,1)").
			Set("B4", `=COUNTA(A1:A3,"x")`).
			Set("B5", "=MAX(A1:A3)").
			Set("B6", "=MIN(A1:A3)").
			AssertCellEq("B1", 6).
			AssertCellEq("B2", 2).
			AssertCellEq("B3", 4).
			AssertCellEq("B4", 4).
			AssertCellEq("B5", 4).
			AssertCellEq("B6", 0).
			End()

		NewWorkbookTestCase(t, "Mostly empty range").
			Set("A1", "5").
			Set("B1", "=COUNT(A1:A3)").
			Set("B2", "=AVERAGE(A1:A3)").
			Set("B3", "=MIN(A1:A3)").
			Set("B4", "=COUNTA(A1:A3)").
			Set("B5", "=COUNTA(A2)").
			Set("B6", `=A2&"x"`).
			AssertCellEq("B1", 3).
			AssertCellEq("B2", 5.0/3).
			AssertCellEq("B3", 0).
			AssertCellEq("B4", 3).
			AssertCellEq("B5", 0).
			AssertCellEq("B6", "x").
			End()

		NewWorkbookTestCase(t, "Text in a range is skipped").
			Set("A1", "x").
			Set("A2", "4").
			Set("B1", "=AVERAGE(A1:A2)").
			Set("B2", "=MAX(A1:A2)").
			Set("B3", "=COUNT(A1:A2)").
			AssertCellEq("B1", 4).
			AssertCellEq("B2", 4).
			AssertCellEq("B3", 1).
			End()

		NewWorkbookTestCase(t, "Average of nothing").
			Set("B1", "x").
			Set("A1", "=AVERAGE(B1:B1)").
			AssertCellErr("A1", ErrorCodeDiv0).
			End()

		NewWorkbookTestCase(t, "Range past the last column").
			Set("A2", "=SUM(A1:MWLQKWV1)").
			Set("A3", "=COUNT(MWLQKWV1:MWLQKWV2)").
			AssertCellErr("A2", ErrorCodeRef).
			AssertCellEq("A3", 2).
			End()

		NewWorkbookTestCase(t, "Float noise").
			Set("A1", "=SUM(0.1,0.2)").
			AssertCellEq("A1", 0.3).
			End()
	})

	t.Run("Arity", func(t *testing.T) {
		NewWorkbookTestCase(t, "Too few and too many").
			Set("A1", "=ABS()").
			Set("A2", "=ABS(1,2)").
			Set("A3", "=IF(TRUE)").
			AssertCellErr("A1", ErrorCodeValue).
			AssertCellErr("A2", ErrorCodeValue).
			AssertCellErr("A3", ErrorCodeValue).
			End()
	})

	t.Run("Unknown", func(t *testing.T) {
		NewWorkbookTestCase(t, "Unknown function").
			Set("A1", "=FOO(1)").
			AssertCellErr("A1", ErrorCodeName).
			End()

		NewWorkbookTestCase(t, "Unknown function fails before its arguments").
			Set("A1", "=FOO(1/0)").
			AssertCellErr("A1", ErrorCodeName).
			End()

		NewWorkbookTestCase(t, "Lookups are not available").
			Set("A1", "=VLOOKUP(1,B1:C2,2)").
			AssertCellErr("A1", ErrorCodeNA).
			End()
	})

	t.Run("Volatile", func(t *testing.T) {
		random := &sequenceRandom{values: []float64{0.25, 0.75}}
		NewWorkbookTestCase(t, "RAND recalculates", WithRandom(random)).
			Set("A1", "=RAND()").
			Set("A2", "=A1*2").
			AssertCellEq("A1", 0.25).
			AssertCellEq("A2", 0.5).
			AssertInfo("A1", func(info CellInfo, t *testing.T) {
				if !info.Volatile {
					t.Errorf("A1 is not volatile")
				}
			}).
			Recalculate().
			AssertChanged("Sheet1!A1", "Sheet1!A2").
			AssertCellEq("A1", 0.75).
			AssertCellEq("A2", 1.5).
			Recalculate().
			AssertChanged().
			End()

		recalc := &sequenceRandom{values: []float64{0.25, 0.75}}
		NewWorkbookTestCase(t, "Only volatile cells and their readers", WithRandom(recalc)).
			Set("A1", "=RAND()").
			Set("A2", "=A1*2").
			Set("C1", "5").
			Set("C2", "=C1+1").
			RecalculateVolatile().
			AssertChanged("Sheet1!A1", "Sheet1!A2").
			AssertCellEq("A1", 0.75).
			AssertCellEq("A2", 1.5).
			AssertCellEq("C2", 6).
			RecalculateVolatile().
			AssertChanged().
			Clear("A1").
			AssertInfo("A1", func(info CellInfo, t *testing.T) {
				if info.Volatile {
					t.Errorf("cleared A1 is still volatile")
				}
				if len(info.Dependencies) != 0 {
					t.Errorf("cleared A1 dependencies = %v, want none", info.Dependencies)
				}
			}).
			AssertCellEq("A2", 0).
			RecalculateVolatile().
			AssertChanged().
			End()

		clock := &fixedClock{now: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
		NewWorkbookTestCase(t, "Clock", WithClock(clock)).
			Set("A1", "=TODAY()").
			Set("A2", "=NOW()").
			Set("A3", "=YEAR(TODAY())").
			AssertCellEq("A1", 45306).
			AssertCellEq("A2", 45306.5).
			AssertCellEq("A3", 2024).
			End()
	})
}

func TestErrorPropagation(t *testing.T) {
	NewWorkbookTestCase(t, "Errors flow through formulas").
		Set("A1", "=1/0").
		Set("B1", "=A1+1").
		Set("B2", "=SUM(A1,1)").
		Set("B3", `=A1&"x"`).
		AssertCellErr("B1", ErrorCodeDiv0).
		AssertCellErr("B2", ErrorCodeDiv0).
		AssertCellErr("B3", ErrorCodeDiv0).
		End()

	NewWorkbookTestCase(t, "Left error wins").
		Set("A1", "=FOO()+1/0").
		AssertCellErr("A1", ErrorCodeName).
		End()

	NewWorkbookTestCase(t, "Functions that inspect errors").
		Set("A1", "=1/0").
		Set("B1", "=IF(TRUE,1,A1)").
		Set("B2", "=COUNT(A1,1)").
		Set("B3", "=COUNTA(A1,1)").
		Set("B4", "=IF(A1,1,2)").
		AssertCellEq("B1", 1).
		AssertCellEq("B2", 1).
		AssertCellEq("B3", 2).
		AssertCellErr("B4", ErrorCodeDiv0).
		End()

	NewWorkbookTestCase(t, "Fixing the source heals dependents").
		Set("A1", "=1/0").
		Set("B1", "=A1*2").
		Set("A1", "=1/2").
		AssertChanged("Sheet1!A1", "Sheet1!B1").
		AssertCellEq("B1", 1).
		End()
}

func TestRecalculation(t *testing.T) {
	NewWorkbookTestCase(t, "SUM follows its inputs").
		Set("A1", "1").
		Set("A2", "2").
		Set("A3", "3").
		Set("A4", "=SUM(A1:A3)").
		AssertCellEq("A4", 6).
		Set("A1", "9").
		AssertChanged("Sheet1!A1", "Sheet1!A4").
		AssertCellEq("A4", 14).
		End()

	NewWorkbookTestCase(t, "Chain").
		Set("A1", "1").
		Set("B1", "=A1*2").
		Set("C1", "=B1+1").
		Set("A1", "5").
		AssertChanged("Sheet1!A1", "Sheet1!B1", "Sheet1!C1").
		AssertCellEq("B1", 10).
		AssertCellEq("C1", 11).
		End()

	NewWorkbookTestCase(t, "Same value again only reports the edit").
		Set("A1", "5").
		Set("B1", "=A1*2").
		Set("A1", "5").
		AssertChanged("Sheet1!A1").
		AssertCellEq("B1", 10).
		End()

	NewWorkbookTestCase(t, "Unchanged dependents are not reported").
		Set("A1", "1").
		Set("B1", "=A1>0").
		Set("C1", "=B1").
		Set("A1", "2").
		AssertChanged("Sheet1!A1").
		End()

	NewWorkbookTestCase(t, "Diamond evaluates each cell after its inputs").
		Set("A1", "1").
		Set("B1", "=A1+1").
		Set("B2", "=A1*10").
		Set("C1", "=B1+B2").
		Set("A1", "2").
		AssertChanged("Sheet1!A1", "Sheet1!B1", "Sheet1!B2", "Sheet1!C1").
		AssertCellEq("C1", 23).
		End()

	NewWorkbookTestCase(t, "Dependents are rewired").
		Set("A1", "1").
		Set("B1", "5").
		Set("C1", "=A1").
		AssertInfo("A1", func(info CellInfo, t *testing.T) {
			if !reflect.DeepEqual(info.Dependents, []string{"Sheet1!C1"}) {
				t.Errorf("A1 dependents = %v", info.Dependents)
			}
		}).
		Set("C1", "=B1").
		AssertInfo("A1", func(info CellInfo, t *testing.T) {
			if len(info.Dependents) != 0 {
				t.Errorf("A1 dependents = %v, want none", info.Dependents)
			}
		}).
		AssertInfo("C1", func(info CellInfo, t *testing.T) {
			if !reflect.DeepEqual(info.Dependencies, []string{"Sheet1!B1"}) {
				t.Errorf("C1 dependencies = %v", info.Dependencies)
			}
		}).
		Set("A1", "100").
		AssertChanged("Sheet1!A1").
		AssertCellEq("C1", 5).
		End()

	NewWorkbookTestCase(t, "Same formula twice").
		Set("A1", "1").
		Set("A2", "2").
		Set("A3", "3").
		Set("B1", "=SUM(A1:A2)+A3").
		AssertCellEq("B1", 6).
		AssertInfo("B1", func(info CellInfo, t *testing.T) {
			want := []string{"Sheet1!A1", "Sheet1!A2", "Sheet1!A3"}
			if !reflect.DeepEqual(info.Dependencies, want) {
				t.Errorf("B1 dependencies = %v, want %v", info.Dependencies, want)
			}
		}).
		Set("B1", "=SUM(A1:A2)+A3").
		AssertChanged("Sheet1!B1").
		AssertCellEq("B1", 6).
		AssertInfo("B1", func(info CellInfo, t *testing.T) {
			want := []string{"Sheet1!A1", "Sheet1!A2", "Sheet1!A3"}
			if !reflect.DeepEqual(info.Dependencies, want) {
				t.Errorf("B1 dependencies = %v, want %v", info.Dependencies, want)
			}
		}).
		AssertInfo("A3", func(info CellInfo, t *testing.T) {
			if !reflect.DeepEqual(info.Dependents, []string{"Sheet1!B1"}) {
				t.Errorf("A3 dependents = %v", info.Dependents)
			}
		}).
		Set("A3", "10").
		AssertChanged("Sheet1!A3", "Sheet1!B1").
		AssertCellEq("B1", 13).
		End()

	NewWorkbookTestCase(t, "Clearing a cell").
		Set("A1", "3").
		Set("B1", "=A1+1").
		Clear("A1").
		AssertCellEmpty("A1").
		AssertCellEq("B1", 1).
		End()

	NewWorkbookTestCase(t, "Range dependencies").
		Set("B1", "=SUM(A1:A3)").
		Set("A2", "7").
		AssertChanged("Sheet1!A2", "Sheet1!B1").
		AssertCellEq("B1", 7).
		AssertInfo("B1", func(info CellInfo, t *testing.T) {
			want := []string{"Sheet1!A1", "Sheet1!A2", "Sheet1!A3"}
			if !reflect.DeepEqual(info.Dependencies, want) {
				t.Errorf("B1 dependencies = %v, want %v", info.Dependencies, want)
			}
		}).
		End()
}

func TestCircularReferences(t *testing.T) {
	NewWorkbookTestCase(t, "Self reference").
		Set("A1", "=A1+1").
		AssertCellErr("A1", ErrorCodeCircular).
		End()

	NewWorkbookTestCase(t, "Self reference through a range").
		Set("A3", "=SUM(A1:A3)").
		AssertCellErr("A3", ErrorCodeCircular).
		End()

	NewWorkbookTestCase(t, "Two cell cycle heals").
		Set("A1", "=B1").
		Set("B1", "=A1").
		AssertCellErr("A1", ErrorCodeCircular).
		AssertCellErr("B1", ErrorCodeCircular).
		Set("B1", "3").
		AssertCellEq("A1", 3).
		AssertCellEq("B1", 3).
		End()

	NewWorkbookTestCase(t, "Downstream of a cycle").
		Set("D1", "=A1").
		Set("A1", "=B1+1").
		Set("B1", "=C1+1").
		Set("C1", "=A1+1").
		AssertCellErr("A1", ErrorCodeCircular).
		AssertCellErr("B1", ErrorCodeCircular).
		AssertCellErr("C1", ErrorCodeCircular).
		AssertCellErr("D1", ErrorCodeCircular).
		Set("C1", "1").
		AssertChanged("Sheet1!C1", "Sheet1!B1", "Sheet1!A1", "Sheet1!D1").
		AssertCellEq("B1", 2).
		AssertCellEq("A1", 3).
		AssertCellEq("D1", 3).
		End()
}

func TestStats(t *testing.T) {
	NewWorkbookTestCase(t, "Counts").
		Set("A1", "1").
		Set("A2", "x").
		Set("B1", "=A1*2").
		Set("B2", "=A1*2").
		Set("C1", "=RAND()").
		Set("D1", "=1/0").
		AssertStats(func(stats WorkbookStats, t *testing.T) {
			if stats.Worksheets != 1 {
				t.Errorf("worksheets = %d, want 1", stats.Worksheets)
			}
			if stats.Cells != 6 {
				t.Errorf("cells = %d, want 6", stats.Cells)
			}
			if stats.CellsByType["string"] != 1 || stats.CellsByType["error"] != 1 {
				t.Errorf("cells by type = %v", stats.CellsByType)
			}
			if stats.Formulas != 3 || stats.FormulaCells != 4 {
				t.Errorf("formulas = %d in %d cells, want 3 in 4", stats.Formulas, stats.FormulaCells)
			}
			if stats.VolatileCells != 1 {
				t.Errorf("volatile cells = %d, want 1", stats.VolatileCells)
			}
			if stats.Circular {
				t.Errorf("circular without a cycle")
			}
		}).
		Set("E1", "=E2").
		Set("E2", "=E1").
		AssertStats(func(stats WorkbookStats, t *testing.T) {
			if !stats.Circular {
				t.Errorf("cycle not reported")
			}
		}).
		Set("E2", "1").
		Clear("C1").
		AssertStats(func(stats WorkbookStats, t *testing.T) {
			if stats.Circular {
				t.Errorf("circular after the cycle was broken")
			}
			if stats.VolatileCells != 0 {
				t.Errorf("volatile cells = %d, want 0", stats.VolatileCells)
			}
		}).
		End()
}

func TestWorksheets(t *testing.T) {
	NewWorkbookTestCase(t, "Cross sheet reference").
		AddWorksheet("Sheet2").
		Set("Sheet2!A1", "42").
		Set("Sheet1!A1", "=Sheet2!A1*2").
		AssertCellEq("Sheet1!A1", 84).
		Set("Sheet2!A1", "1").
		AssertChanged("Sheet2!A1", "Sheet1!A1").
		AssertCellEq("Sheet1!A1", 2).
		End()

	NewWorkbookTestCase(t, "Sheet names ignore case").
		AddWorksheet("Data").
		Set("data!B2", "7").
		Set("A1", "=DATA!B2").
		AssertCellEq("A1", 7).
		AddWorksheet("DATA").
		ExpectAppError(AlreadyExists).
		End()

	NewWorkbookTestCase(t, "Quoted sheet names").
		AddWorksheet("My Sheet").
		Set("'My Sheet'!A1", "3").
		Set("A1", "='My Sheet'!A1+1").
		AssertCellEq("A1", 4).
		Set("'My Sheet'!A1", "4").
		AssertChanged("'My Sheet'!A1", "Sheet1!A1").
		End()

	NewWorkbookTestCase(t, "Unknown sheet until added").
		Set("B1", "=Sheet3!A1").
		AssertCellErr("B1", ErrorCodeRef).
		AddWorksheet("Sheet3").
		AssertChanged("Sheet1!B1").
		AssertCellEq("B1", 0).
		Set("Sheet3!A1", "7").
		AssertCellEq("B1", 7).
		End()

	NewWorkbookTestCase(t, "Removing a sheet").
		AddWorksheet("Sheet2").
		Set("Sheet2!A1", "5").
		Set("Sheet1!A1", "=Sheet2!A1").
		RemoveWorksheet("Sheet2").
		AssertChanged("Sheet1!A1").
		AssertCellErr("Sheet1!A1", ErrorCodeRef).
		AssertWorksheets("Sheet1").
		AddWorksheet("Sheet2").
		AssertCellEq("Sheet1!A1", 0).
		End()

	NewWorkbookTestCase(t, "Removing the default sheet").
		AddWorksheet("Sheet2").
		RemoveWorksheet("Sheet1").
		Set("A1", "1").
		AssertCellEq("Sheet2!A1", 1).
		End()

	NewWorkbookTestCase(t, "Renaming a sheet").
		AddWorksheet("Sheet2").
		Set("Sheet2!A1", "42").
		Set("Sheet1!A1", "=Sheet2!A1").
		Set("Sheet1!A2", "=Data!A1").
		AssertCellErr("Sheet1!A2", ErrorCodeRef).
		RenameWorksheet("Sheet2", "Data").
		AssertCellErr("Sheet1!A1", ErrorCodeRef).
		AssertCellEq("Sheet1!A2", 42).
		AssertCellEq("Data!A1", 42).
		AssertWorksheets("Sheet1", "Data").
		End()

	NewWorkbookTestCase(t, "Worksheet errors").
		RemoveWorksheet("Sheet1").
		ExpectAppError(FailedPrecondition).
		RemoveWorksheet("Nope").
		ExpectAppError(NotFound).
		AddWorksheet("").
		ExpectAppError(InvalidArgument).
		AddWorksheet("Sheet2").
		RenameWorksheet("Sheet2", "sheet1").
		ExpectAppError(AlreadyExists).
		RenameWorksheet("Nope", "Other").
		ExpectAppError(NotFound).
		RenameWorksheet("Sheet2", "SHEET2").
		AssertWorksheets("Sheet1", "SHEET2").
		End()

	NewWorkbookTestCase(t, "Default sheet name", WithDefaultSheet("Main")).
		Set("A1", "1").
		AssertCellEq("Main!A1", 1).
		AssertWorksheets("Main").
		End()
}

func TestNamedRanges(t *testing.T) {
	NewWorkbookTestCase(t, "Define after use").
		Set("A1", "1").
		Set("A2", "2").
		Set("B1", "=SUM(Total)").
		AssertCellErr("B1", ErrorCodeName).
		DefineNamedRange("Total", "A1:A2").
		AssertChanged("Sheet1!B1").
		AssertCellEq("B1", 3).
		Set("A2", "5").
		AssertCellEq("B1", 6).
		RemoveNamedRange("total").
		AssertCellErr("B1", ErrorCodeName).
		End()

	NewWorkbookTestCase(t, "Single cell name").
		Set("B1", "0.5").
		DefineNamedRange("Rate", "B1").
		Set("A1", "=rate*10").
		AssertCellEq("A1", 5).
		End()

	NewWorkbookTestCase(t, "Redefine").
		Set("A1", "1").
		Set("B1", "2").
		DefineNamedRange("Pick", "A1").
		Set("C1", "=Pick").
		DefineNamedRange("Pick", "B1").
		AssertCellEq("C1", 2).
		End()

	NewWorkbookTestCase(t, "Name on another sheet").
		AddWorksheet("Rates").
		Set("Rates!A1", "3").
		DefineNamedRange("Base", "Rates!A1").
		Set("A1", "=Base*2").
		AssertCellEq("A1", 6).
		RemoveWorksheet("Rates").
		AssertCellErr("A1", ErrorCodeRef).
		End()

	NewWorkbookTestCase(t, "Invalid names").
		DefineNamedRange("A1", "B1").
		ExpectAppError(InvalidArgument).
		DefineNamedRange("TRUE", "B1").
		ExpectAppError(InvalidArgument).
		DefineNamedRange("1abc", "B1").
		ExpectAppError(InvalidArgument).
		DefineNamedRange("Good", "Nope!B1").
		ExpectAppError(NotFound).
		RemoveNamedRange("Missing").
		ExpectAppError(NotFound).
		End()
}

func TestCellIDs(t *testing.T) {
	NewWorkbookTestCase(t, "Malformed").
		Set("not a cell", "1").
		ExpectAppError(InvalidArgument).
		Set("A0", "1").
		ExpectAppError(InvalidArgument).
		Set("A1:B2", "1").
		ExpectAppError(InvalidArgument).
		Set("Nope!A1", "1").
		ExpectAppError(NotFound).
		End()

	wb := NewWorkbook()
	if _, err := wb.Get("A1:B2"); err == nil {
		t.Errorf("Get(A1:B2) should fail")
	}
	if _, err := wb.Inspect("?"); err == nil {
		t.Errorf("Inspect(?) should fail")
	}
}

func TestAutoFormula(t *testing.T) {
	NewWorkbookTestCase(t, "Column above").
		Set("A1", "1").
		Set("A2", "2").
		Set("A3", "3").
		AutoFormula("A4", "sum").
		AssertCellEq("A4", 6).
		AssertInfo("A4", func(info CellInfo, t *testing.T) {
			if info.Raw != "=SUM(A1:A3)" {
				t.Errorf("A4 raw = %q", info.Raw)
			}
		}).
		End()

	NewWorkbookTestCase(t, "Row to the left").
		Set("A1", "1").
		Set("B1", "2").
		Set("C1", "3").
		AutoFormula("D1", "MAX").
		AssertCellEq("D1", 3).
		AssertInfo("D1", func(info CellInfo, t *testing.T) {
			if info.Raw != "=MAX(A1:C1)" {
				t.Errorf("D1 raw = %q", info.Raw)
			}
		}).
		End()

	NewWorkbookTestCase(t, "Nothing to aggregate").
		AutoFormula("C3", "SUM").
		ExpectAppError(FailedPrecondition).
		AutoFormula("C3", "CONCATENATE").
		ExpectAppError(InvalidArgument).
		End()
}

func TestEvaluateFormula(t *testing.T) {
	wb := NewWorkbook()
	for _, edit := range [][2]string{{"A1", "1"}, {"A2", "2"}} {
		if _, err := wb.EditCell(edit[0], edit[1]); err != nil {
			t.Fatalf("EditCell(%s): %v", edit[0], err)
		}
	}

	result, err := wb.EvaluateFormula("", "=SUM(A1:A2)*2")
	if err != nil {
		t.Fatalf("EvaluateFormula: %v", err)
	}
	if result.Value != 6.0 || result.Err != nil {
		t.Errorf("value = %v, err = %v", result.Value, result.Err)
	}
	if len(result.Dependencies) != 2 {
		t.Errorf("dependencies = %v", result.Dependencies)
	}

	// nothing was stored
	if info, _ := wb.Inspect("A1"); len(info.Dependents) != 0 {
		t.Errorf("A1 dependents = %v", info.Dependents)
	}

	result, _ = wb.EvaluateFormula("", "1+")
	if result.Err == nil || result.Err.Code != ErrorCodeSyntax {
		t.Errorf("syntax error result = %+v", result)
	}

	if _, err := wb.EvaluateFormula("Nope", "=1"); err == nil {
		t.Errorf("unknown sheet should fail")
	}
}

func TestRunnableWorkbook(t *testing.T) {
	var lines []string
	printLn := func(line string) { lines = append(lines, line) }

	value := NewRunnableWorkbook(printLn).
		Set("A1", "10").
		Set("A2", "=A1*2").
		Log("A2").
		Value("A2")
	if value != 20.0 {
		t.Errorf("A2 = %v, want 20", value)
	}
	if len(lines) != 1 || lines[0] != "A2: 20" {
		t.Errorf("log lines = %v", lines)
	}

	_, err := NewRunnableWorkbook(printLn).
		Set("A1", "1").
		AddWorksheet("Sheet1").
		Set("A2", "2").
		Run()
	if appErr, ok := err.(*AppError); !ok || appErr.Code != AlreadyExists {
		t.Errorf("err = %v, want AlreadyExists", err)
	}

	wb, err := NewRunnableWorkbook(printLn).
		WithWorksheet("Data").
		WithWorksheet("Data").
		DefineNamedRange("Input", "Data!A1").
		Set("Data!A1", "4").
		Set("A1", "=Input^2").
		Then(func(r *RunnableWorkbook) *RunnableWorkbook { return r.Set("A2", "=A1+1") }).
		Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, _ := wb.Get("A2"); got != 17.0 {
		t.Errorf("A2 = %v, want 17", got)
	}
}
