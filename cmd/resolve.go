package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <type> <name>",
	Short: "Resolve a local identifier to its class's global id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lk, st, err := openLinker(ctx)
		if err != nil {
			return err
		}
		defer st.Close(ctx)

		root, err := lk.Find(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("resolving %s/%s: %w", args[0], args[1], err)
		}

		if resolveJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(root)
		}
		fmt.Println(root.ID)
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output the full root node as JSON")
	rootCmd.AddCommand(resolveCmd)
}
