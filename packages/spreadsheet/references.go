package spreadsheet

import (
	"strings"

	"github.com/xuri/efp"
)

// ReferenceKind classifies what a formula mentions
type ReferenceKind string

const (
	ReferenceCell     ReferenceKind = "cell"
	ReferenceRange    ReferenceKind = "range"
	ReferenceName     ReferenceKind = "name"
	ReferenceFunction ReferenceKind = "function"
)

// Reference is one thing a formula mentions, as written
type Reference struct {
	Kind  ReferenceKind `json:"kind"`
	Sheet string        `json:"sheet,omitempty"`
	Text  string        `json:"text"` // without the sheet qualifier and '$' markers
}

// String renders the reference the way a formula spells it
func (r Reference) String() string {
	if r.Sheet == "" {
		return r.Text
	}
	return QuoteSheetName(r.Sheet) + "!" + r.Text
}

// ScanReferences lists the cells, ranges, names and functions a formula
// mentions, each once, in the order they appear. nothing is resolved or
// evaluated, so it also works on formulas that would not evaluate, and on
// syntax this engine does not parse, like $A$1 or whole columns.
func ScanReferences(formula string) []Reference {
	ps := efp.ExcelParser()
	tokens := ps.Parse(StripFormulaPrefix(formula))

	seen := make(map[Reference]struct{})
	var refs []Reference
	add := func(ref Reference) {
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	for _, token := range tokens {
		switch {
		case token.TType == efp.TokenTypeFunction && token.TSubType == efp.TokenSubTypeStart:
			add(Reference{Kind: ReferenceFunction, Text: strings.ToUpper(token.TValue)})
		case token.TType == efp.TokenTypeOperand && token.TSubType == efp.TokenSubTypeRange:
			add(classifyOperand(token.TValue))
		}
	}
	return refs
}

// classifyOperand splits an efp range operand like 'My Sheet'!$A$1:B2
func classifyOperand(value string) Reference {
	var ref Reference
	if idx := strings.LastIndex(value, "!"); idx >= 0 {
		sheet := value[:idx]
		if len(sheet) >= 2 && sheet[0] == charApostrophe && sheet[len(sheet)-1] == charApostrophe {
			sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
		}
		ref.Sheet = sheet
		value = value[idx+1:]
	}
	ref.Text = strings.ReplaceAll(value, "$", "")

	switch {
	case strings.Contains(ref.Text, ":"):
		ref.Kind = ReferenceRange
		ref.Text = strings.ToUpper(ref.Text)
	case isCellName(ref.Text):
		ref.Kind = ReferenceCell
		ref.Text = strings.ToUpper(ref.Text)
	default:
		ref.Kind = ReferenceName
	}
	return ref
}
