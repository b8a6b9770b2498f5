package spreadsheet

import (
	"strconv"
	"strings"
)

// maxRangeCells bounds range expansion. anything larger is a #REF!.
const maxRangeCells = 1 << 20

// CellAddress identifies one cell. Row and Column are zero-based.
type CellAddress struct {
	WorksheetID uint32
	Row         uint32
	Column      uint32
}

// String renders the address in A1 notation without its sheet
func (a CellAddress) String() string {
	return ColumnName(a.Column) + strconv.FormatUint(uint64(a.Row)+1, 10)
}

// RangeAddress represents a rectangle of cells within a single worksheet.
// start is always top-left after normalize.
type RangeAddress struct {
	WorksheetID uint32
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

// NewRangeAddress builds a normalized range from two corner addresses
func NewRangeAddress(worksheetID uint32, a, b CellAddress) RangeAddress {
	return RangeAddress{
		WorksheetID: worksheetID,
		StartRow:    min(a.Row, b.Row),
		StartColumn: min(a.Column, b.Column),
		EndRow:      max(a.Row, b.Row),
		EndColumn:   max(a.Column, b.Column),
	}
}

func (r RangeAddress) Contains(addr CellAddress) bool {
	return r.WorksheetID == addr.WorksheetID &&
		addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Column >= r.StartColumn && addr.Column <= r.EndColumn
}

// Size returns the number of cells in the range
func (r RangeAddress) Size() uint64 {
	rows := uint64(r.EndRow) - uint64(r.StartRow) + 1
	cols := uint64(r.EndColumn) - uint64(r.StartColumn) + 1
	return rows * cols
}

// Cells expands the range to its cell addresses in row-major order. the
// counters are 64 bit so a range ending in the last row or column stops.
func (r RangeAddress) Cells() []CellAddress {
	cells := make([]CellAddress, 0, r.Size())
	for row := uint64(r.StartRow); row <= uint64(r.EndRow); row++ {
		for col := uint64(r.StartColumn); col <= uint64(r.EndColumn); col++ {
			cells = append(cells, CellAddress{WorksheetID: r.WorksheetID, Row: uint32(row), Column: uint32(col)})
		}
	}
	return cells
}

// String renders the range as A1:B2 without its sheet
func (r RangeAddress) String() string {
	start := CellAddress{Row: r.StartRow, Column: r.StartColumn}
	end := CellAddress{Row: r.EndRow, Column: r.EndColumn}
	return start.String() + ":" + end.String()
}

// ColumnName converts a zero-based column index to letters
// (0=A, 25=Z, 26=AA, ...)
func ColumnName(col uint32) string {
	var buf [8]byte
	i := len(buf)
	n := uint64(col) + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// ParseCellName parses a bare A1-style name (case-insensitive) into
// zero-based row and column. row 0 ("A0") is rejected.
func ParseCellName(name string) (row uint32, col uint32, ok bool) {
	letterEnd := 0
	for letterEnd < len(name) && isASCIILetter(rune(name[letterEnd])) {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(name) || letterEnd > 7 {
		return 0, 0, false
	}

	// column letters count from 1 in positional base-26 (A=1 ... Z=26, AA=27)
	var column uint64
	for _, ch := range strings.ToUpper(name[:letterEnd]) {
		column = column*26 + uint64(ch-'A'+1)
	}

	rowStr := name[letterEnd:]
	for i := 0; i < len(rowStr); i++ {
		if !isASCIIDigit(rune(rowStr[i])) {
			return 0, 0, false
		}
	}
	rowNum, err := strconv.ParseUint(rowStr, 10, 32)
	if err != nil || rowNum < 1 {
		return 0, 0, false
	}
	if column-1 > uint64(^uint32(0)) {
		return 0, 0, false
	}

	return uint32(rowNum - 1), uint32(column - 1), true
}

// isCellName reports whether a word has the shape of a cell reference:
// letters followed by digits
func isCellName(word string) bool {
	letterEnd := 0
	for letterEnd < len(word) && isASCIILetter(rune(word[letterEnd])) {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(word) {
		return false
	}
	for i := letterEnd; i < len(word); i++ {
		if !isASCIIDigit(rune(word[i])) {
			return false
		}
	}
	return true
}

// QuoteSheetName renders a sheet name the way a formula must spell it
func QuoteSheetName(name string) string {
	plain := name != "" && isASCIILetter(rune(name[0]))
	for _, ch := range name {
		if !isASCIILetter(ch) && !isASCIIDigit(ch) && ch != charUnderscore {
			plain = false
			break
		}
	}
	if plain && !isCellName(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func isASCIILetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isASCIIDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// lessAddress orders addresses by worksheet, then row, then column
func lessAddress(a, b CellAddress) bool {
	if a.WorksheetID != b.WorksheetID {
		return a.WorksheetID < b.WorksheetID
	}
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column < b.Column
}
