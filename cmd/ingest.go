package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"idlink/linker/internal/linker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest NDJSON identifier records and merge their classes",
	Long: `Reads newline-delimited JSON from a file (or stdin when the argument
is omitted or "-"). Each line is an object mapping identifier type to value:

  {"email": "a@x", "phone": "555"}

Empty and null values are skipped. All identifiers on one line are merged
into a single class.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening input: %w", err)
			}
			defer f.Close()
			in = f
		}

		ctx := cmd.Context()
		lk, st, err := openLinker(ctx)
		if err != nil {
			return err
		}
		defer st.Close(ctx)

		dec := json.NewDecoder(in)
		count := 0
		var decErr error
		records := func(yield func(linker.Record) bool) {
			for {
				var raw map[string]any
				if err := dec.Decode(&raw); err == io.EOF {
					return
				} else if err != nil {
					decErr = fmt.Errorf("record %d: decoding: %w", count, err)
					return
				}
				rec, err := linker.ParseRecord(raw)
				if err != nil {
					decErr = fmt.Errorf("record %d: %w", count, err)
					return
				}
				count++
				if !yield(rec) {
					return
				}
			}
		}

		if err := lk.UnionFromStream(ctx, records); err != nil {
			return err
		}
		if decErr != nil {
			return decErr
		}

		fmt.Printf("ingested %d records\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
