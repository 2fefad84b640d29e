package cmd

import (
	"fmt"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"github.com/spf13/cobra"
)

var (
	inspRows  int
	inspSheet string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the columns and first rows of a CSV/XLSX table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt := table.ReadOptions{Sheet: inspSheet}
		if !cmd.Flags().Changed("sheet") {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			opt.Sheet = c.XLSXSheet
		}
		t, err := table.Read(path, opt)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d rows, %d columns\n\n", path, t.NumRows(), t.NumColumns())
		n := t.NumColumns()
		names := make([]string, n)
		kinds := make([]string, n)
		missing := make([]float64, n)
		for i := 0; i < n; i++ {
			c := t.Column(i)
			names[i] = c.Name
			kinds[i] = c.Kind.String()
			for row := 0; row < c.Len(); row++ {
				if c.Missing(row) {
					missing[i]++
				}
			}
		}
		summary, err := table.FromColumns(
			table.NewString("COLUMN", names),
			table.NewString("TYPE", kinds),
			table.NewNumeric("MISSING", missing),
		)
		if err != nil {
			return err
		}
		if err := table.Dump(out, summary, 0); err != nil {
			return err
		}
		if inspRows <= 0 || t.NumRows() == 0 {
			return nil
		}
		fmt.Fprintln(out)
		return table.Dump(out, t, inspRows)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntVar(&inspRows, "rows", 10, "number of rows to show (0 = none)")
	inspectCmd.Flags().StringVar(&inspSheet, "sheet", "", "XLSX: sheet name (default: config xlsx_sheet, then the first sheet)")
}
