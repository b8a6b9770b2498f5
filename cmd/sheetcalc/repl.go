package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/vogtb/go-sheetcalc/packages/spreadsheet"
)

const (
	prompt = "sheetcalc> "
	banner = "sheetcalc: Ctrl+C cancels the line, Ctrl+D exits. Type :help for commands."
	help   = `
Input:
  A1=10            set a cell (A1==B1*2 stores a formula)
  =FORMULA         evaluate a formula without storing it
Commands:
  :get CELL            print a cell's value
  :inspect CELL        print a cell's raw input, value and edges
  :clear CELL          empty a cell
  :auto CELL [FN]      insert SUM (or FN) over the numbers above or left
  :sheets              list worksheets
  :sheet add NAME      add a worksheet
  :sheet rm NAME       remove a worksheet
  :sheet mv OLD NEW    rename a worksheet
  :use NAME            evaluate unqualified references against NAME
  :names               list named ranges
  :name NAME RANGE     define a named range
  :unname NAME         remove a named range
  :recalc              recalculate every formula
  :volatile            recalculate RAND, NOW and what reads them
  :stats               count cells, formulas and graph nodes
  :refs FORMULA        list what a formula mentions
  :funcs [NAME...]     list functions
  :help                show this help
  :quit / :exit        leave
`
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session on an empty workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runREPL(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, banner)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := historyPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}

	s := newSession(out)
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			break
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if exit := s.handle(line); exit {
			break
		}
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	return nil
}

// session is the state of one repl run
type session struct {
	wb    *spreadsheet.Workbook
	sheet string // "" is the default sheet
	out   io.Writer
}

func newSession(out io.Writer) *session {
	return &session{
		wb:  spreadsheet.NewWorkbook(spreadsheet.WithLogger(logger)),
		out: out,
	}
}

// handle runs one line of input and reports whether the session is over
func (s *session) handle(line string) (exit bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, ":"):
		return s.command(line)
	case strings.HasPrefix(line, "="):
		s.evaluate(line)
		return false
	}

	cellID, raw, ok := strings.Cut(line, "=")
	if !ok {
		fmt.Fprintln(s.out, "expected CELL=VALUE, =FORMULA or a :command. Type :help for help.")
		return false
	}
	s.changed(s.wb.EditCell(s.qualify(strings.TrimSpace(cellID)), raw))
	return false
}

func (s *session) command(line string) (exit bool) {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	usage := func(text string) {
		fmt.Fprintf(s.out, "usage: %s\n", text)
	}

	switch name {
	case ":help":
		fmt.Fprint(s.out, help)

	case ":quit", ":exit":
		return true

	case ":get":
		if len(args) != 1 {
			usage(":get CELL")
			return false
		}
		value, err := s.wb.Get(s.qualify(args[0]))
		if err != nil {
			s.fail(err)
			return false
		}
		fmt.Fprintln(s.out, spreadsheet.FormatValue(value))

	case ":inspect":
		if len(args) != 1 {
			usage(":inspect CELL")
			return false
		}
		info, err := s.wb.Inspect(s.qualify(args[0]))
		if err != nil {
			s.fail(err)
			return false
		}
		if jsonOutput {
			_ = writeJSON(s.out, info)
			return false
		}
		writeCellInfo(s.out, info)

	case ":clear":
		if len(args) != 1 {
			usage(":clear CELL")
			return false
		}
		s.changed(s.wb.ClearCell(s.qualify(args[0])))

	case ":auto":
		if len(args) < 1 || len(args) > 2 {
			usage(":auto CELL [SUM|AVERAGE|COUNT|MAX|MIN]")
			return false
		}
		fn := "SUM"
		if len(args) == 2 {
			fn = args[1]
		}
		s.changed(s.wb.AutoFormula(s.qualify(args[0]), fn))

	case ":sheets":
		for _, sheet := range s.wb.Worksheets() {
			marker := " "
			if strings.EqualFold(sheet, s.currentSheet()) {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %s\n", marker, sheet)
		}

	case ":sheet":
		s.sheetCommand(args, usage)

	case ":use":
		if rest == "" {
			usage(":use NAME")
			return false
		}
		if _, err := s.wb.EvaluateFormula(rest, "=0"); err != nil {
			s.fail(err)
			return false
		}
		s.sheet = rest

	case ":names":
		ranges := s.wb.NamedRanges()
		names := make([]string, 0, len(ranges))
		for name := range ranges {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(s.out, "%s\t%s\n", name, ranges[name])
		}

	case ":name":
		if len(args) != 2 {
			usage(":name NAME RANGE")
			return false
		}
		s.changed(s.wb.DefineNamedRange(args[0], s.qualify(args[1])))

	case ":unname":
		if len(args) != 1 {
			usage(":unname NAME")
			return false
		}
		s.changed(s.wb.RemoveNamedRange(args[0]))

	case ":recalc":
		s.changed(s.wb.Recalculate(), nil)

	case ":volatile":
		s.changed(s.wb.RecalculateVolatile(), nil)

	case ":stats":
		stats := s.wb.Stats()
		if jsonOutput {
			_ = writeJSON(s.out, stats)
			return false
		}
		fmt.Fprintf(s.out, "worksheets: %d\n", stats.Worksheets)
		fmt.Fprintf(s.out, "cells:      %d (empty %d, number %d, string %d, boolean %d, error %d)\n",
			stats.Cells, stats.CellsByType["empty"], stats.CellsByType["number"],
			stats.CellsByType["string"], stats.CellsByType["boolean"], stats.CellsByType["error"])
		fmt.Fprintf(s.out, "formulas:   %d distinct in %d cells\n", stats.Formulas, stats.FormulaCells)
		fmt.Fprintf(s.out, "graph:      %d nodes, %d volatile, circular %v\n", stats.GraphNodes, stats.VolatileCells, stats.Circular)

	case ":refs":
		if rest == "" {
			usage(":refs FORMULA")
			return false
		}
		for _, ref := range spreadsheet.ScanReferences(rest) {
			fmt.Fprintf(s.out, "%-8s %s\n", ref.Kind, ref)
		}

	case ":funcs":
		infos, err := listFunctions(args, "")
		if err != nil {
			s.fail(err)
			return false
		}
		writeFunctions(s.out, infos)

	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for help.")
	}
	return false
}

func (s *session) sheetCommand(args []string, usage func(string)) {
	if len(args) == 0 {
		usage(":sheet add|rm|mv ...")
		return
	}
	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) != 2 {
			usage(":sheet add NAME")
			return
		}
		s.changed(s.wb.AddWorksheet(args[1]))
	case "rm":
		if len(args) != 2 {
			usage(":sheet rm NAME")
			return
		}
		changed, err := s.wb.RemoveWorksheet(args[1])
		if err == nil && strings.EqualFold(args[1], s.sheet) {
			s.sheet = ""
		}
		s.changed(changed, err)
	case "mv":
		if len(args) != 3 {
			usage(":sheet mv OLD NEW")
			return
		}
		changed, err := s.wb.RenameWorksheet(args[1], args[2])
		if err == nil && strings.EqualFold(args[1], s.sheet) {
			s.sheet = args[2]
		}
		s.changed(changed, err)
	default:
		usage(":sheet add|rm|mv ...")
	}
}

func (s *session) evaluate(formula string) {
	result, err := s.wb.EvaluateFormula(s.sheet, formula)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintln(s.out, spreadsheet.FormatValue(result.Value))
}

// qualify prefixes an unqualified cell id or range with the current sheet
func (s *session) qualify(ref string) string {
	if s.sheet == "" || strings.Contains(ref, "!") {
		return ref
	}
	return spreadsheet.QuoteSheetName(s.sheet) + "!" + ref
}

func (s *session) currentSheet() string {
	if s.sheet == "" {
		return s.wb.DefaultSheet()
	}
	return s.sheet
}

// changed prints the cells an operation recalculated
func (s *session) changed(cells []string, err error) {
	if err != nil {
		s.fail(err)
		return
	}
	if len(cells) == 0 {
		fmt.Fprintln(s.out, "no changes")
		return
	}
	for _, cellID := range cells {
		value, _ := s.wb.Get(cellID)
		fmt.Fprintf(s.out, "%s\t%s\n", cellID, spreadsheet.FormatValue(value))
	}
}

func (s *session) fail(err error) {
	logger.Debug().Err(err).Msg("repl command failed")
	fmt.Fprintf(s.out, "error: %v\n", err)
}
