package cmd

import (
	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"github.com/spf13/cobra"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the statistics engines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := engine.Kinds()
		names := make([]string, len(kinds))
		arity := make([]string, len(kinds))
		shape := make([]string, len(kinds))
		desc := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
			arity[i] = k.Arity().String()
			shape[i] = k.Shape().String()
			desc[i] = k.Description()
		}
		t, err := table.FromColumns(
			table.NewString("ENGINE", names),
			table.NewString("REQUEST", arity),
			table.NewString("MODEL", shape),
			table.NewString("COMPUTES", desc),
		)
		if err != nil {
			return err
		}
		return table.Dump(cmd.OutOrStdout(), t, 0)
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}
