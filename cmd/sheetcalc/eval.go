package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vogtb/go-sheetcalc/packages/spreadsheet"
)

type evalResult struct {
	Formula      string   `json:"formula"`
	Display      string   `json:"display"`
	Type         string   `json:"type"`
	Dependencies []string `json:"dependencies"`
}

var (
	evalWorkbook workbookFlags
	evalSheet    string
	evalInspect  []string
)

var evalCmd = &cobra.Command{
	Use:   "eval FORMULA...",
	Short: "Evaluate formulas against a workbook built from flags",
	Long: `Evaluate one or more formulas. Cells, sheets and named ranges are set up
with --set, --add-sheet and --name before anything is evaluated.

  sheetcalc eval --set A1=2 --set A2=3 '=SUM(A1:A2)*2'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wb, err := evalWorkbook.build()
		if err != nil {
			return err
		}

		results := make([]evalResult, 0, len(args))
		for _, formula := range args {
			result, err := wb.EvaluateFormula(evalSheet, formula)
			if err != nil {
				return err
			}
			deps := make([]string, len(result.Dependencies))
			for i, dep := range result.Dependencies {
				deps[i] = wb.FormatAddress(dep)
			}
			results = append(results, evalResult{
				Formula:      formula,
				Display:      spreadsheet.FormatValue(result.Value),
				Type:         spreadsheet.TypeOf(result.Value).String(),
				Dependencies: deps,
			})
		}

		inspected := make([]spreadsheet.CellInfo, 0, len(evalInspect))
		for _, cellID := range evalInspect {
			info, err := wb.Inspect(cellID)
			if err != nil {
				return err
			}
			inspected = append(inspected, info)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, map[string]any{
				"results": results,
				"cells":   inspected,
			})
		}
		for _, result := range results {
			if len(results) == 1 {
				fmt.Fprintln(out, result.Display)
			} else {
				fmt.Fprintf(out, "%s\t%s\n", result.Formula, result.Display)
			}
		}
		for _, info := range inspected {
			writeCellInfo(out, info)
		}
		return nil
	},
}

func init() {
	evalWorkbook.register(evalCmd)
	evalCmd.Flags().StringVar(&evalSheet, "sheet", "", "Worksheet unqualified references resolve against (default: the first sheet)")
	evalCmd.Flags().StringArrayVar(&evalInspect, "inspect", nil, "Print a cell's raw input, value and edges after setup (repeatable)")
	rootCmd.AddCommand(evalCmd)
}

func writeCellInfo(out io.Writer, info spreadsheet.CellInfo) {
	fmt.Fprintf(out, "%s\n", info.Address)
	fmt.Fprintf(out, "  raw:          %s\n", info.Raw)
	if info.Formula != "" {
		fmt.Fprintf(out, "  formula:      =%s\n", info.Formula)
	}
	fmt.Fprintf(out, "  value:        %s (%s)\n", info.Display, info.Type)
	if info.Volatile {
		fmt.Fprintf(out, "  volatile:     yes\n")
	}
	fmt.Fprintf(out, "  dependencies: %v\n", info.Dependencies)
	fmt.Fprintf(out, "  dependents:   %v\n", info.Dependents)
}
