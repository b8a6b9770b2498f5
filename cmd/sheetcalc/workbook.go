package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vogtb/go-sheetcalc/packages/spreadsheet"
)

// workbookFlags describe the workbook a command starts from
type workbookFlags struct {
	sheets []string
	cells  []string
	names  []string
}

func (f *workbookFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.sheets, "add-sheet", nil, "Add a worksheet (repeatable)")
	cmd.Flags().StringArrayVar(&f.cells, "set", nil, "Set a cell, e.g. --set A1=10 or --set 'Data!B2==A1*2' (repeatable)")
	cmd.Flags().StringArrayVar(&f.names, "name", nil, "Define a named range, e.g. --name Total=A1:A3 (repeatable)")
}

// splitAssignment splits KEY=VALUE at the first '=', so the value of
// A1==B1 is the formula =B1
func splitAssignment(flag, assignment string) (string, string, error) {
	key, value, ok := strings.Cut(assignment, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid --%s %q, want KEY=VALUE", flag, assignment)
	}
	return key, value, nil
}

// build applies sheets, then cells, then names, in flag order
func (f *workbookFlags) build() (*spreadsheet.Workbook, error) {
	rw := spreadsheet.NewRunnableWorkbook(func(line string) {
		logger.Info().Msg(line)
	}, spreadsheet.WithLogger(logger))

	for _, sheet := range f.sheets {
		rw.WithWorksheet(sheet)
	}
	for _, assignment := range f.cells {
		cellID, raw, err := splitAssignment("set", assignment)
		if err != nil {
			return nil, err
		}
		rw.Set(cellID, raw)
	}
	for _, assignment := range f.names {
		name, ref, err := splitAssignment("name", assignment)
		if err != nil {
			return nil, err
		}
		rw.DefineNamedRange(name, ref)
	}
	return rw.Run()
}
