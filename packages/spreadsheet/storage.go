package spreadsheet

// Storage holds references to shared tables needed by storage operations.
// it is also the Context formulas evaluate against.
type Storage struct {
	worksheets      *WorksheetTable
	namedRanges     *NamedRangeTable
	formulas        *FormulaTable
	dependencyGraph *DependencyGraph
	env             Env
}

func newStorage(env Env) *Storage {
	return &Storage{
		worksheets:      NewWorksheetTable(),
		namedRanges:     NewNamedRangeTable(),
		formulas:        NewFormulaTable(),
		dependencyGraph: NewDependencyGraph(),
		env:             env,
	}
}

var _ Context = (*Storage)(nil)

func (s *Storage) ResolveWorksheet(name string) (uint32, bool) {
	return s.worksheets.GetWorksheetID(name)
}

func (s *Storage) WorksheetName(id uint32) (string, bool) {
	return s.worksheets.GetWorksheetName(id)
}

func (s *Storage) CellValue(addr CellAddress) Primitive {
	worksheet, exists := s.worksheets.GetWorksheet(addr.WorksheetID)
	if !exists {
		return nil
	}
	cell := worksheet.GetCell(addr.Row, addr.Column)
	if cell == nil {
		return nil
	}
	return cell.Value
}

func (s *Storage) NamedRange(name string) (RangeAddress, bool) {
	return s.namedRanges.GetRangeAddress(name)
}

func (s *Storage) Env() Env {
	return s.env
}

// FormatAddress renders an address as Sheet!A1, quoting the sheet name
// when a formula would need it
func (s *Storage) FormatAddress(addr CellAddress) string {
	name, exists := s.worksheets.GetWorksheetName(addr.WorksheetID)
	if !exists {
		return "#REF!" + addr.String()
	}
	return QuoteSheetName(name) + "!" + addr.String()
}

func (s *Storage) formatAddresses(addrs []CellAddress) []string {
	result := make([]string, len(addrs))
	for i, addr := range addrs {
		result[i] = s.FormatAddress(addr)
	}
	return result
}
