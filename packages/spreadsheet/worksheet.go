package spreadsheet

import (
	"sort"

	"golang.org/x/text/cases"
)

// foldName is the lookup key for sheet and range names, which compare
// case-insensitively
func foldName(name string) string {
	return cases.Fold().String(name)
}

// WorksheetTable manages worksheet storage and ID mappings. IDs are never
// reused, so addresses into a removed sheet can not alias a new one.
type WorksheetTable struct {
	nameToID map[string]uint32 // folded name -> ID
	idToName map[uint32]string // ID -> name as entered

	definedWorksheets map[uint32]*Worksheet
	order             []uint32 // definition order, for listing

	nextID uint32
}

// NewWorksheetTable creates a new worksheet table
func NewWorksheetTable() *WorksheetTable {
	return &WorksheetTable{
		nameToID:          make(map[string]uint32),
		idToName:          make(map[uint32]string),
		definedWorksheets: make(map[uint32]*Worksheet),
		nextID:            1, // start at 1, reserve 0 for no worksheet
	}
}

// DefineWorksheet creates a worksheet under name. returns false if the
// name is taken.
func (wt *WorksheetTable) DefineWorksheet(name string) (*Worksheet, bool) {
	key := foldName(name)
	if _, exists := wt.nameToID[key]; exists {
		return nil, false
	}

	id := wt.nextID
	wt.nextID++

	worksheet := NewWorksheet(id)
	wt.nameToID[key] = id
	wt.idToName[id] = name
	wt.definedWorksheets[id] = worksheet
	wt.order = append(wt.order, id)
	return worksheet, true
}

// UndefineWorksheet removes a worksheet and its cells. returns the removed
// worksheet, or false if no worksheet has that name.
func (wt *WorksheetTable) UndefineWorksheet(name string) (*Worksheet, bool) {
	key := foldName(name)
	id, exists := wt.nameToID[key]
	if !exists {
		return nil, false
	}

	worksheet := wt.definedWorksheets[id]
	delete(wt.nameToID, key)
	delete(wt.idToName, id)
	delete(wt.definedWorksheets, id)
	for i, existing := range wt.order {
		if existing == id {
			wt.order = append(wt.order[:i], wt.order[i+1:]...)
			break
		}
	}
	return worksheet, true
}

// RenameWorksheet moves a worksheet to a new name, keeping its ID. a
// rename that only changes case is allowed.
func (wt *WorksheetTable) RenameWorksheet(oldName, newName string) bool {
	oldKey, newKey := foldName(oldName), foldName(newName)
	id, exists := wt.nameToID[oldKey]
	if !exists {
		return false
	}
	if other, taken := wt.nameToID[newKey]; taken && other != id {
		return false
	}

	delete(wt.nameToID, oldKey)
	wt.nameToID[newKey] = id
	wt.idToName[id] = newName
	return true
}

// GetWorksheet returns the Worksheet for a given ID
func (wt *WorksheetTable) GetWorksheet(id uint32) (*Worksheet, bool) {
	worksheet, exists := wt.definedWorksheets[id]
	return worksheet, exists
}

// GetWorksheetByName returns the Worksheet for a given name
func (wt *WorksheetTable) GetWorksheetByName(name string) (*Worksheet, bool) {
	id, exists := wt.GetWorksheetID(name)
	if !exists {
		return nil, false
	}
	return wt.GetWorksheet(id)
}

// GetWorksheetID returns the ID for a worksheet name
func (wt *WorksheetTable) GetWorksheetID(name string) (uint32, bool) {
	id, exists := wt.nameToID[foldName(name)]
	return id, exists
}

// GetWorksheetName returns the name for a worksheet ID
func (wt *WorksheetTable) GetWorksheetName(id uint32) (string, bool) {
	name, exists := wt.idToName[id]
	return name, exists
}

// Contains checks if a worksheet exists
func (wt *WorksheetTable) Contains(name string) bool {
	_, exists := wt.GetWorksheetID(name)
	return exists
}

// Names returns worksheet names in definition order
func (wt *WorksheetTable) Names() []string {
	result := make([]string, 0, len(wt.order))
	for _, id := range wt.order {
		result = append(result, wt.idToName[id])
	}
	return result
}

// Count returns the number of worksheets
func (wt *WorksheetTable) Count() int {
	return len(wt.definedWorksheets)
}

// Worksheet stores the cells of one sheet sparsely. a cell exists once it
// has been edited or referenced; it is never removed, only reset.
type Worksheet struct {
	worksheetID uint32
	cells       map[CellAddress]*Cell
	cellsByType [5]uint32 // by CellType of the current value, for diagnostics
}

// NewWorksheet creates a new worksheet
func NewWorksheet(worksheetID uint32) *Worksheet {
	return &Worksheet{
		worksheetID: worksheetID,
		cells:       make(map[CellAddress]*Cell),
	}
}

// ID returns the worksheet's stable identifier
func (w *Worksheet) ID() uint32 {
	return w.worksheetID
}

func (w *Worksheet) address(row, col uint32) CellAddress {
	return CellAddress{WorksheetID: w.worksheetID, Row: row, Column: col}
}

// GetCell returns the cell at row, col or nil if it was never touched
func (w *Worksheet) GetCell(row, col uint32) *Cell {
	return w.cells[w.address(row, col)]
}

// GetOrCreateCell returns the cell at row, col, creating an empty one
func (w *Worksheet) GetOrCreateCell(row, col uint32) *Cell {
	addr := w.address(row, col)
	if cell, exists := w.cells[addr]; exists {
		return cell
	}
	cell := &Cell{Address: addr}
	w.cells[addr] = cell
	w.cellsByType[CellValueTypeEmpty]++
	return cell
}

// SetCell stores raw input and its value on a cell
func (w *Worksheet) SetCell(row, col uint32, raw string, formula string, value Primitive) *Cell {
	cell := w.GetOrCreateCell(row, col)
	cell.Raw = raw
	cell.Formula = formula
	w.SetFormulaResult(row, col, value)
	return cell
}

// SetFormulaResult replaces only the computed value of a cell
func (w *Worksheet) SetFormulaResult(row, col uint32, result Primitive) {
	cell := w.GetOrCreateCell(row, col)
	w.cellsByType[TypeOf(cell.Value)]--
	cell.Value = result
	w.cellsByType[TypeOf(result)]++
}

// ResetCell returns a cell to the literal-empty state
func (w *Worksheet) ResetCell(row, col uint32) {
	cell := w.GetCell(row, col)
	if cell == nil {
		return
	}
	w.cellsByType[TypeOf(cell.Value)]--
	cell.reset()
	w.cellsByType[CellValueTypeEmpty]++
}

// Cells returns every stored cell in row-major order
func (w *Worksheet) Cells() []*Cell {
	result := make([]*Cell, 0, len(w.cells))
	for _, cell := range w.cells {
		result = append(result, cell)
	}
	sort.Slice(result, func(i, j int) bool {
		return lessAddress(result[i].Address, result[j].Address)
	})
	return result
}

// GetCellTypeCount returns how many stored cells currently hold a value
// of the given type
func (w *Worksheet) GetCellTypeCount(cellType CellType) uint32 {
	if int(cellType) >= len(w.cellsByType) {
		return 0
	}
	return w.cellsByType[cellType]
}

// GetTotalCells returns the number of stored cells, empty ones included
func (w *Worksheet) GetTotalCells() int {
	return len(w.cells)
}
