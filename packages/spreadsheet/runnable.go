package spreadsheet

import "fmt"

// RunnableWorkbook provides a chainable interface for workbook
// operations. wraps the standard Workbook and tracks errors internally:
// once a step fails, later steps are no-ops.
type RunnableWorkbook struct {
	workbook *Workbook
	err      error
	printLn  func(string)
}

// NewRunnableWorkbook creates a new RunnableWorkbook. printLn is required
// and will be used for all logging operations (Log, CheckError)
func NewRunnableWorkbook(printLn func(string), opts ...Option) *RunnableWorkbook {
	return &RunnableWorkbook{
		workbook: NewWorkbook(opts...),
		printLn:  printLn,
	}
}

// Set edits a cell (chainable)
func (r *RunnableWorkbook) Set(cellID string, raw string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.EditCell(cellID, raw)
	return r
}

// Clear resets a cell to empty (chainable)
func (r *RunnableWorkbook) Clear(cellID string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.ClearCell(cellID)
	return r
}

// AddWorksheet adds a new worksheet (chainable)
func (r *RunnableWorkbook) AddWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.AddWorksheet(name)
	return r
}

// WithWorksheet ensures a worksheet exists before continuing (chainable)
func (r *RunnableWorkbook) WithWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	if !r.workbook.storage.worksheets.Contains(name) {
		_, r.err = r.workbook.AddWorksheet(name)
	}
	return r
}

// RemoveWorksheet removes a worksheet (chainable)
func (r *RunnableWorkbook) RemoveWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.RemoveWorksheet(name)
	return r
}

// RenameWorksheet renames a worksheet (chainable)
func (r *RunnableWorkbook) RenameWorksheet(oldName, newName string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.RenameWorksheet(oldName, newName)
	return r
}

// DefineNamedRange defines a named range (chainable)
func (r *RunnableWorkbook) DefineNamedRange(name, ref string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.DefineNamedRange(name, ref)
	return r
}

// RemoveNamedRange removes a named range (chainable)
func (r *RunnableWorkbook) RemoveNamedRange(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.workbook.RemoveNamedRange(name)
	return r
}

// Recalculate re-evaluates every formula (chainable)
func (r *RunnableWorkbook) Recalculate() *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.workbook.Recalculate()
	return r
}

// Run returns the workbook and the first error, if any. typically the last
// method in the chain
func (r *RunnableWorkbook) Run() (*Workbook, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.workbook, nil
}

// Error returns the current error state
func (r *RunnableWorkbook) Error() error {
	return r.err
}

// CheckError logs the current error using the PrintLn function (chainable)
func (r *RunnableWorkbook) CheckError() *RunnableWorkbook {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Workbook returns the underlying workbook. use with caution as it
// bypasses error tracking.
func (r *RunnableWorkbook) Workbook() *Workbook {
	return r.workbook
}

// Then allows conditional execution based on current error state
func (r *RunnableWorkbook) Then(fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *RunnableWorkbook) OnError(fn func(error) error) *RunnableWorkbook {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// Value is a helper to get a single value from the chain.
// example: val := NewRunnableWorkbook(print).Set("A1", "10").Set("A2", "=A1*2").Value("A2")
func (r *RunnableWorkbook) Value(cellID string) Primitive {
	if r.err != nil {
		return nil
	}
	val, err := r.workbook.Get(cellID)
	if err != nil {
		r.err = err
		return nil
	}
	return val
}

// Log logs the display value of a cell using the provided PrintLn function
// (chainable)
func (r *RunnableWorkbook) Log(cellID string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	val, err := r.workbook.Get(cellID)
	if err != nil {
		r.err = err
		return r
	}

	if val == nil {
		r.printLn(fmt.Sprintf("%s: <empty>", cellID))
	} else {
		r.printLn(fmt.Sprintf("%s: %s", cellID, FormatValue(val)))
	}
	return r
}
