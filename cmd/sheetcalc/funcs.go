package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vogtb/go-sheetcalc/packages/spreadsheet"
)

type functionInfo struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Signature string `json:"signature"`
	Volatile  bool   `json:"volatile,omitempty"`
}

var funcsCategory string

var funcsCmd = &cobra.Command{
	Use:   "funcs [NAME...]",
	Short: "List built-in functions with their signatures",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := listFunctions(args, funcsCategory)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, infos)
		}
		writeFunctions(out, infos)
		return nil
	},
}

func init() {
	funcsCmd.Flags().StringVar(&funcsCategory, "category", "", "Only list functions whose category starts with this, e.g. math or date")
	rootCmd.AddCommand(funcsCmd)
}

// listFunctions describes the named functions, or every function when
// names is empty, ordered by category then name
func listFunctions(names []string, category string) ([]functionInfo, error) {
	registry := spreadsheet.Builtins()
	if len(names) == 0 {
		names = registry.Names()
	}

	infos := make([]functionInfo, 0, len(names))
	for _, name := range names {
		spec, ok := registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown function %q", name)
		}
		if category != "" && !strings.HasPrefix(strings.ToLower(string(spec.Category)), strings.ToLower(category)) {
			continue
		}
		infos = append(infos, functionInfo{
			Name:      spec.Name,
			Category:  string(spec.Category),
			Signature: spec.Signature,
			Volatile:  spec.Volatile,
		})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Category != infos[j].Category {
			return infos[i].Category < infos[j].Category
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func writeFunctions(out io.Writer, infos []functionInfo) {
	category := ""
	for _, info := range infos {
		if info.Category != category {
			if category != "" {
				fmt.Fprintln(out)
			}
			category = info.Category
			fmt.Fprintf(out, "%s:\n", category)
		}
		volatile := ""
		if info.Volatile {
			volatile = " (volatile)"
		}
		fmt.Fprintf(out, "  %s%s\n", info.Signature, volatile)
	}
}
