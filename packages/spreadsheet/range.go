package spreadsheet

import "sort"

// NamedRangeTable manages workbook-wide named ranges. names compare
// case-insensitively and keep the spelling they were defined with.
type NamedRangeTable struct {
	nameToID map[string]uint32 // folded name -> ID
	idToName map[uint32]string // ID -> name as defined

	definedRanges map[uint32]RangeAddress

	nextID uint32
}

// NewNamedRangeTable creates a new named range table
func NewNamedRangeTable() *NamedRangeTable {
	return &NamedRangeTable{
		nameToID:      make(map[string]uint32),
		idToName:      make(map[uint32]string),
		definedRanges: make(map[uint32]RangeAddress),
		nextID:        1, // start at 1, reserve 0 for no range
	}
}

// DefineNamedRange defines or redefines a named range with an address.
// returns the ID of the named range.
func (nrt *NamedRangeTable) DefineNamedRange(name string, address RangeAddress) uint32 {
	key := foldName(name)
	if id, exists := nrt.nameToID[key]; exists {
		nrt.definedRanges[id] = address
		nrt.idToName[id] = name
		return id
	}

	id := nrt.nextID
	nrt.nameToID[key] = id
	nrt.idToName[id] = name
	nrt.definedRanges[id] = address
	nrt.nextID++

	return id
}

// UndefineNamedRange removes a named range. returns false if it was not
// defined.
func (nrt *NamedRangeTable) UndefineNamedRange(name string) bool {
	key := foldName(name)
	id, exists := nrt.nameToID[key]
	if !exists {
		return false
	}

	delete(nrt.nameToID, key)
	delete(nrt.idToName, id)
	delete(nrt.definedRanges, id)
	return true
}

// GetRangeAddress returns the address a name is defined as
func (nrt *NamedRangeTable) GetRangeAddress(name string) (RangeAddress, bool) {
	id, exists := nrt.nameToID[foldName(name)]
	if !exists {
		return RangeAddress{}, false
	}
	addr, exists := nrt.definedRanges[id]
	return addr, exists
}

// Contains checks if a named range is defined
func (nrt *NamedRangeTable) Contains(name string) bool {
	_, exists := nrt.nameToID[foldName(name)]
	return exists
}

// GetAllDefinedRanges returns all defined named ranges
func (nrt *NamedRangeTable) GetAllDefinedRanges() map[string]RangeAddress {
	result := make(map[string]RangeAddress, len(nrt.definedRanges))
	for id, addr := range nrt.definedRanges {
		result[nrt.idToName[id]] = addr
	}
	return result
}

// Names returns the defined names, sorted
func (nrt *NamedRangeTable) Names() []string {
	result := make([]string, 0, len(nrt.idToName))
	for _, name := range nrt.idToName {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Count returns the number of defined named ranges
func (nrt *NamedRangeTable) Count() int {
	return len(nrt.definedRanges)
}

// isValidRangeName reports whether a name would lex as an identifier:
// a letter, then letters, digits or underscores, and not shaped like a
// cell or a boolean
func isValidRangeName(name string) bool {
	if name == "" || !isASCIILetter(rune(name[0])) {
		return false
	}
	for _, ch := range name {
		if !isASCIILetter(ch) && !isASCIIDigit(ch) && ch != charUnderscore {
			return false
		}
	}
	switch foldName(name) {
	case "true", "false":
		return false
	}
	return !isCellName(name)
}
