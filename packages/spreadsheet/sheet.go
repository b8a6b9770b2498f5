package spreadsheet

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error. Errors raised by APIs that do not return enough error
	// information may be converted to this error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument, such
	// as a malformed cell id.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., worksheet or named range)
	// was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates operation was rejected because the
	// workbook is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not
// spreadsheet formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Workbook combines storage, parsing, dependency tracking and formula
// evaluation into a unified API. every edit recalculates everything that
// depends on it before returning.
//
// a Workbook is not safe for concurrent use.
type Workbook struct {
	storage      *Storage
	defaultSheet uint32
	logger       zerolog.Logger
}

// NewWorkbook creates a workbook with a single empty sheet
func NewWorkbook(opts ...Option) *Workbook {
	cfg := newConfig(opts)
	name := strings.TrimSpace(cfg.defaultSheet)
	if name == "" {
		name = DefaultSheetName
	}

	storage := newStorage(Env{Clock: cfg.clock, Random: cfg.random})
	worksheet, _ := storage.worksheets.DefineWorksheet(name)

	return &Workbook{
		storage:      storage,
		defaultSheet: worksheet.ID(),
		logger:       cfg.logger,
	}
}

// reference is a parsed cell id or range, optionally sheet-qualified
type reference struct {
	sheet      string
	qualified  bool
	start, end CellAddress // WorksheetID unset
	isRange    bool
}

// parseReference parses A1, Sheet!A1, 'My Sheet'!A1 and the range forms
// of each
func parseReference(text string) (reference, error) {
	var ref reference
	tokens, err := Tokenize(strings.TrimSpace(text))
	if err != nil {
		return ref, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid reference %q: %v", text, err))
	}
	invalid := NewApplicationError(InvalidArgument, fmt.Sprintf("invalid reference %q", text))

	i := 0
	if tokens[i].Type == TokenSheet {
		ref.sheet = tokens[i].Value
		ref.qualified = true
		i++
	}

	cell := func() (CellAddress, bool) {
		if tokens[i].Type != TokenCell {
			return CellAddress{}, false
		}
		row, col, ok := ParseCellName(tokens[i].Value)
		i++
		return CellAddress{Row: row, Column: col}, ok
	}

	var ok bool
	if ref.start, ok = cell(); !ok {
		return ref, invalid
	}
	ref.end = ref.start
	if tokens[i].Type == TokenColon {
		i++
		if ref.end, ok = cell(); !ok {
			return ref, invalid
		}
		ref.isRange = true
	}
	if tokens[i].Type != TokenEOF {
		return ref, invalid
	}
	return ref, nil
}

// resolveSheet finds the worksheet a reference points at
func (w *Workbook) resolveSheet(ref reference) (uint32, error) {
	if !ref.qualified {
		return w.defaultSheet, nil
	}
	id, exists := w.storage.worksheets.GetWorksheetID(ref.sheet)
	if !exists {
		return 0, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", ref.sheet))
	}
	return id, nil
}

// resolveAddress parses a cell id and resolves it against the workbook's
// worksheets. unqualified ids refer to the default sheet.
func (w *Workbook) resolveAddress(cellID string) (CellAddress, error) {
	ref, err := parseReference(cellID)
	if err != nil {
		return CellAddress{}, err
	}
	if ref.isRange {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("%q is a range, not a cell", cellID))
	}
	id, err := w.resolveSheet(ref)
	if err != nil {
		return CellAddress{}, err
	}
	ref.start.WorksheetID = id
	return ref.start, nil
}

// resolveRange parses a cell id or range for a named range definition
func (w *Workbook) resolveRange(text string) (RangeAddress, error) {
	ref, err := parseReference(text)
	if err != nil {
		return RangeAddress{}, err
	}
	id, err := w.resolveSheet(ref)
	if err != nil {
		return RangeAddress{}, err
	}
	r := NewRangeAddress(id, ref.start, ref.end)
	if r.Size() > maxRangeCells {
		return RangeAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("range %q has more than %d cells", text, maxRangeCells))
	}
	return r, nil
}

// FormatAddress renders an address as Sheet!A1
func (w *Workbook) FormatAddress(addr CellAddress) string {
	return w.storage.FormatAddress(addr)
}

// EditCell stores raw input in a cell and recalculates its dependents.
// input starting with '=' is a formula, anything else a literal. returns
// the edited cell followed by every cell whose value changed, in
// evaluation order. formula failures are stored on the cells; the error
// is only for a malformed cell id or an unknown sheet.
func (w *Workbook) EditCell(cellID string, raw string) ([]string, error) {
	addr, err := w.resolveAddress(cellID)
	if err != nil {
		return nil, err
	}

	txn := w.storage.prepareEdit(addr, raw)
	w.storage.commit(txn)

	changed := append([]CellAddress{addr}, w.recalculate([]CellAddress{addr}, &addr)...)
	result := w.storage.formatAddresses(changed)

	w.logger.Debug().
		Str("cell", w.FormatAddress(addr)).
		Str("raw", raw).
		Int("deps", len(txn.deps)).
		Strs("changed", result).
		Msg("edit")
	return result, nil
}

// ClearCell resets a cell to empty and recalculates its dependents
func (w *Workbook) ClearCell(cellID string) ([]string, error) {
	return w.EditCell(cellID, "")
}

// recalculate re-evaluates every formula reachable from seeds, each after
// the cells it reads. the edited cell, if given, was just evaluated and is
// only revisited when it turns out to sit on a cycle. returns the cells
// whose value changed.
func (w *Workbook) recalculate(seeds []CellAddress, edited *CellAddress) []CellAddress {
	graph := w.storage.dependencyGraph
	affected := graph.GetAffectedCells(seeds...)
	order, cyclic := graph.GetCalculationOrder(affected)

	if len(cyclic) > 0 {
		w.logger.Warn().
			Strs("cells", w.storage.formatAddresses(cyclic)).
			Msg("circular reference")
	}

	var changed []CellAddress
	apply := func(addr CellAddress, txn *editTxn) {
		if txn == nil {
			return
		}
		before := w.storage.CellValue(addr)
		w.storage.commit(txn)
		if edited != nil && addr == *edited {
			return
		}
		if !sameValue(before, txn.value) {
			changed = append(changed, addr)
		}
	}

	for _, addr := range cyclic {
		apply(addr, w.storage.circular(addr))
	}
	for _, addr := range order {
		if edited != nil && addr == *edited {
			continue
		}
		apply(addr, w.storage.prepareRefresh(addr))
	}
	return changed
}

// Recalculate re-evaluates every formula in the workbook in dependency
// order, volatile ones included. returns the cells whose value changed.
func (w *Workbook) Recalculate() []string {
	seeds := make(map[CellAddress]struct{})
	for addr := range w.storage.formulas.formulaAtCell {
		seeds[addr] = struct{}{}
	}
	changed := w.storage.formatAddresses(w.recalculate(sortedAddresses(seeds), nil))

	w.logger.Debug().
		Int("formulas", len(seeds)).
		Strs("changed", changed).
		Msg("recalculate")
	return changed
}

// RecalculateVolatile re-evaluates the cells holding RAND, NOW and the
// other volatile functions, then everything that reads them. returns the
// cells whose value changed.
func (w *Workbook) RecalculateVolatile() []string {
	seeds := w.storage.dependencyGraph.GetVolatileCells()
	changed := w.storage.formatAddresses(w.recalculate(seeds, nil))

	w.logger.Debug().
		Int("volatile", len(seeds)).
		Strs("changed", changed).
		Msg("recalculate volatile")
	return changed
}

// WorkbookStats counts what a workbook holds
type WorkbookStats struct {
	Worksheets    int               `json:"worksheets"`
	Cells         int               `json:"cells"`
	CellsByType   map[string]uint32 `json:"cellsByType"`
	Formulas      int               `json:"formulas"`     // distinct formula texts
	FormulaCells  int               `json:"formulaCells"` // cells holding a formula
	GraphNodes    int               `json:"graphNodes"`
	VolatileCells int               `json:"volatileCells"`
	Circular      bool              `json:"circular"`
}

// Stats summarizes the workbook's cells, formulas and dependency graph
func (w *Workbook) Stats() WorkbookStats {
	stats := WorkbookStats{CellsByType: make(map[string]uint32)}
	for _, name := range w.storage.worksheets.Names() {
		worksheet, ok := w.storage.worksheets.GetWorksheetByName(name)
		if !ok {
			continue
		}
		stats.Worksheets++
		stats.Cells += worksheet.GetTotalCells()
		for _, cellType := range []CellType{
			CellValueTypeEmpty,
			CellValueTypeNumber,
			CellValueTypeString,
			CellValueTypeBoolean,
			CellValueTypeError,
		} {
			stats.CellsByType[cellType.String()] += worksheet.GetCellTypeCount(cellType)
		}
	}

	graph := w.storage.dependencyGraph
	stats.Formulas = w.storage.formulas.Count()
	stats.FormulaCells = w.storage.formulas.TotalReferences()
	stats.GraphNodes = graph.NodeCount()
	stats.VolatileCells = len(graph.GetVolatileCells())
	stats.Circular = graph.HasCycle()
	return stats
}

// sentinelAddress is a cell no formula can name, used as the current
// cell of one-shot evaluations
func sentinelAddress(worksheetID uint32) CellAddress {
	return CellAddress{WorksheetID: worksheetID, Row: math.MaxUint32, Column: math.MaxUint32}
}

// EvaluateFormula evaluates formula text against the workbook without
// storing anything. unqualified references resolve against sheet, or the
// default sheet when sheet is empty.
func (w *Workbook) EvaluateFormula(sheet string, formula string) (Result, error) {
	id := w.defaultSheet
	if sheet != "" {
		var exists bool
		if id, exists = w.storage.worksheets.GetWorksheetID(sheet); !exists {
			return Result{}, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", sheet))
		}
	}
	return EvaluateFormula(formula, w.storage, sentinelAddress(id)), nil
}

// Get retrieves the value of a cell. empty cells are nil.
func (w *Workbook) Get(cellID string) (Primitive, error) {
	addr, err := w.resolveAddress(cellID)
	if err != nil {
		return nil, err
	}
	return w.storage.CellValue(addr), nil
}

// CellInfo is a snapshot of one cell
type CellInfo struct {
	Address      string    `json:"address"`
	Raw          string    `json:"raw"`
	Formula      string    `json:"formula,omitempty"`
	Value        Primitive `json:"-"`
	Display      string    `json:"display"`
	Type         string    `json:"type"`
	Volatile     bool      `json:"volatile,omitempty"`
	Dependencies []string  `json:"dependencies"`
	Dependents   []string  `json:"dependents"`
}

// Inspect returns a cell's raw input, value and edges
func (w *Workbook) Inspect(cellID string) (CellInfo, error) {
	addr, err := w.resolveAddress(cellID)
	if err != nil {
		return CellInfo{}, err
	}

	info := CellInfo{Address: w.FormatAddress(addr)}
	if worksheet, ok := w.storage.worksheets.GetWorksheet(addr.WorksheetID); ok {
		if cell := worksheet.GetCell(addr.Row, addr.Column); cell != nil {
			info.Raw = cell.Raw
			info.Formula = cell.Formula
			info.Value = cell.Value
		}
	}
	info.Display = FormatValue(info.Value)
	info.Type = TypeOf(info.Value).String()

	graph := w.storage.dependencyGraph
	info.Volatile = graph.IsVolatile(addr)
	info.Dependencies = w.storage.formatAddresses(graph.GetDirectPrecedents(addr))
	info.Dependents = w.storage.formatAddresses(graph.GetDirectDependents(addr))
	return info, nil
}

// AddWorksheet adds a new, empty worksheet. formulas that already refer
// to the name are recalculated.
func (w *Workbook) AddWorksheet(name string) ([]string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewApplicationError(InvalidArgument, "worksheet name must not be empty")
	}
	if _, ok := w.storage.worksheets.DefineWorksheet(name); !ok {
		return nil, NewApplicationError(AlreadyExists, fmt.Sprintf("worksheet %q already exists", name))
	}

	changed := w.recalculate(w.storage.formulas.CellsUsingSheet(name), nil)
	w.logger.Debug().Str("worksheet", name).Msg("add worksheet")
	return w.storage.formatAddresses(changed), nil
}

// RemoveWorksheet removes a worksheet and its cells. formulas elsewhere
// that read it are recalculated and show #REF!. the last worksheet can
// not be removed.
func (w *Workbook) RemoveWorksheet(name string) ([]string, error) {
	id, exists := w.storage.worksheets.GetWorksheetID(name)
	if !exists {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", name))
	}
	if w.storage.worksheets.Count() == 1 {
		return nil, NewApplicationError(FailedPrecondition, "cannot remove the only worksheet")
	}

	worksheet, _ := w.storage.worksheets.UndefineWorksheet(name)
	for _, cell := range worksheet.Cells() {
		w.storage.formulas.RemoveCellReference(cell.Address)
	}
	readers := w.storage.dependencyGraph.RemoveWorksheet(id)

	if id == w.defaultSheet {
		next, _ := w.storage.worksheets.GetWorksheetID(w.storage.worksheets.Names()[0])
		w.defaultSheet = next
	}

	seeds := append(readers, w.storage.formulas.CellsUsingSheet(name)...)
	changed := w.recalculate(seeds, nil)
	w.logger.Debug().Str("worksheet", name).Int("readers", len(readers)).Msg("remove worksheet")
	return w.storage.formatAddresses(changed), nil
}

// RenameWorksheet renames a worksheet, keeping its cells. formula text is
// not rewritten: formulas naming the old sheet show #REF! and formulas
// naming the new one start resolving.
func (w *Workbook) RenameWorksheet(oldName string, newName string) ([]string, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, NewApplicationError(InvalidArgument, "worksheet name must not be empty")
	}
	if !w.storage.worksheets.Contains(oldName) {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", oldName))
	}
	if !w.storage.worksheets.RenameWorksheet(oldName, newName) {
		return nil, NewApplicationError(AlreadyExists, fmt.Sprintf("worksheet %q already exists", newName))
	}

	seeds := append(w.storage.formulas.CellsUsingSheet(oldName), w.storage.formulas.CellsUsingSheet(newName)...)
	changed := w.recalculate(seeds, nil)
	w.logger.Debug().Str("from", oldName).Str("to", newName).Msg("rename worksheet")
	return w.storage.formatAddresses(changed), nil
}

// Worksheets lists worksheet names in the order they were added
func (w *Workbook) Worksheets() []string {
	return w.storage.worksheets.Names()
}

// DefaultSheet returns the name unqualified cell ids resolve against
func (w *Workbook) DefaultSheet() string {
	name, _ := w.storage.worksheets.GetWorksheetName(w.defaultSheet)
	return name
}

// DefineNamedRange defines or redefines name as a cell or range, like
// "A1:B3" or "Sheet2!C1". formulas using the name are recalculated.
func (w *Workbook) DefineNamedRange(name string, ref string) ([]string, error) {
	if !isValidRangeName(name) {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid range name %q", name))
	}
	r, err := w.resolveRange(ref)
	if err != nil {
		return nil, err
	}
	w.storage.namedRanges.DefineNamedRange(name, r)

	changed := w.recalculate(w.storage.formulas.CellsUsingName(name), nil)
	w.logger.Debug().Str("name", name).Str("range", ref).Msg("define named range")
	return w.storage.formatAddresses(changed), nil
}

// RemoveNamedRange removes a named range. formulas using it show #NAME?.
func (w *Workbook) RemoveNamedRange(name string) ([]string, error) {
	if !w.storage.namedRanges.UndefineNamedRange(name) {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("named range %q not found", name))
	}

	changed := w.recalculate(w.storage.formulas.CellsUsingName(name), nil)
	w.logger.Debug().Str("name", name).Msg("remove named range")
	return w.storage.formatAddresses(changed), nil
}

// NamedRanges returns every defined name with its range as Sheet!A1:B2,
// keyed by the name as defined
func (w *Workbook) NamedRanges() map[string]string {
	ranges := w.storage.namedRanges.GetAllDefinedRanges()
	result := make(map[string]string, len(ranges))
	for name, r := range ranges {
		sheet, exists := w.storage.worksheets.GetWorksheetName(r.WorksheetID)
		if !exists {
			result[name] = "#REF!"
			continue
		}
		result[name] = QuoteSheetName(sheet) + "!" + r.String()
	}
	return result
}

// autoFormulaFunctions are the aggregates AutoFormula can insert
var autoFormulaFunctions = map[string]struct{}{
	"SUM": {}, "AVERAGE": {}, "COUNT": {}, "MAX": {}, "MIN": {},
}

// AutoFormula fills a cell with an aggregate over the run of numbers
// directly above it, or failing that directly to its left, e.g.
// =SUM(B1:B4). fn is one of SUM, AVERAGE, COUNT, MAX and MIN.
func (w *Workbook) AutoFormula(cellID string, fn string) ([]string, error) {
	fn = strings.ToUpper(fn)
	if _, ok := autoFormulaFunctions[fn]; !ok {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("%s can not be inserted automatically", fn))
	}
	addr, err := w.resolveAddress(cellID)
	if err != nil {
		return nil, err
	}

	isNumber := func(row, col uint32) bool {
		_, ok := w.storage.CellValue(CellAddress{WorksheetID: addr.WorksheetID, Row: row, Column: col}).(float64)
		return ok
	}

	start := addr
	for start.Row > 0 && isNumber(start.Row-1, start.Column) {
		start.Row--
	}
	if start.Row < addr.Row {
		end := CellAddress{Row: addr.Row - 1, Column: addr.Column}
		return w.EditCell(cellID, fmt.Sprintf("=%s(%s:%s)", fn, start, end))
	}

	for start.Column > 0 && isNumber(start.Row, start.Column-1) {
		start.Column--
	}
	if start.Column < addr.Column {
		end := CellAddress{Row: addr.Row, Column: addr.Column - 1}
		return w.EditCell(cellID, fmt.Sprintf("=%s(%s:%s)", fn, start, end))
	}

	return nil, NewApplicationError(FailedPrecondition, fmt.Sprintf("no numbers above or left of %s", w.FormatAddress(addr)))
}
