package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"idlink/linker/internal/linker"
)

var unionCmd = &cobra.Command{
	Use:   "union <type=name> [type=name ...]",
	Short: "Merge the classes of the given identifiers",
	Long: `Merges the equivalence classes of every listed identifier into one.
Identifiers not yet tracked are created as members of the merged class.

  linker union email=a@x phone=555 device=abc123`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs := make([]linker.Pair, len(args))
		for i, arg := range args {
			p, err := parsePair(arg)
			if err != nil {
				return err
			}
			pairs[i] = p
		}

		ctx := cmd.Context()
		lk, st, err := openLinker(ctx)
		if err != nil {
			return err
		}
		defer st.Close(ctx)

		root, err := lk.Union(ctx, pairs)
		if err != nil {
			return err
		}
		fmt.Printf("%s (weight %d)\n", root.ID, root.Weight)
		return nil
	},
}

// parsePair splits "type=name" into a Pair. The name may itself contain '='.
func parsePair(arg string) (linker.Pair, error) {
	typ, name, ok := strings.Cut(arg, "=")
	if !ok || typ == "" || name == "" {
		return linker.Pair{}, fmt.Errorf("invalid identifier %q (want type=name)", arg)
	}
	return linker.Pair{Type: typ, Name: name}, nil
}

func init() {
	rootCmd.AddCommand(unionCmd)
}
