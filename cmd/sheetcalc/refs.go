package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vogtb/go-sheetcalc/packages/spreadsheet"
)

var refsCmd = &cobra.Command{
	Use:   "refs FORMULA",
	Short: "List the cells, ranges, names and functions a formula mentions",
	Long: `List what a formula refers to without evaluating it. Works on formulas
the engine can not evaluate, such as ones using $A$1 or whole columns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refs := spreadsheet.ScanReferences(args[0])
		out := cmd.OutOrStdout()
		if jsonOutput {
			if refs == nil {
				refs = []spreadsheet.Reference{}
			}
			return writeJSON(out, refs)
		}
		for _, ref := range refs {
			fmt.Fprintf(out, "%-8s %s\n", ref.Kind, ref)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refsCmd)
}
