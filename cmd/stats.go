package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"idlink/linker/internal/store"
)

var (
	statsJSON bool
	statsTopN int
)

// ClassStats summarizes the current forest as seen from its roots.
type ClassStats struct {
	Classes       int          `json:"classes"`
	Elements      int64        `json:"elements"`
	LargestClass  int64        `json:"largest_class"`
	SmallestClass int64        `json:"smallest_class"`
	Singletons    int          `json:"singletons"`
	SizeHistogram []SizeBucket `json:"size_histogram"`
	TopClasses    []store.Node `json:"top_classes"`
}

// SizeBucket counts classes whose weight falls in one size band.
type SizeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show equivalence-class statistics: counts, sizes, heaviest classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close(ctx)

		roots, err := st.Roots(ctx)
		if err != nil {
			return fmt.Errorf("loading roots: %w", err)
		}

		stats := computeStats(roots, statsTopN)

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		printStats(stats)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().IntVar(&statsTopN, "top-n", 10, "Number of heaviest classes to show")
	rootCmd.AddCommand(statsCmd)
}

// computeStats aggregates root weights. roots arrive ordered by weight
// descending, id ascending.
func computeStats(roots []store.Node, topN int) *ClassStats {
	stats := &ClassStats{
		SizeHistogram: []SizeBucket{
			{Label: "1"}, {Label: "2-9"}, {Label: "10-99"}, {Label: "100+"},
		},
	}
	stats.Classes = len(roots)
	for _, r := range roots {
		stats.Elements += r.Weight
		if r.Weight > stats.LargestClass {
			stats.LargestClass = r.Weight
		}
		if stats.SmallestClass == 0 || r.Weight < stats.SmallestClass {
			stats.SmallestClass = r.Weight
		}
		switch {
		case r.Weight <= 1:
			stats.Singletons++
			stats.SizeHistogram[0].Count++
		case r.Weight < 10:
			stats.SizeHistogram[1].Count++
		case r.Weight < 100:
			stats.SizeHistogram[2].Count++
		default:
			stats.SizeHistogram[3].Count++
		}
	}
	if topN > len(roots) {
		topN = len(roots)
	}
	stats.TopClasses = roots[:topN]
	return stats
}

func printStats(stats *ClassStats) {
	fmt.Println("\n  CLASSES")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Classes: %d  Elements: %d  Singletons: %d\n",
		stats.Classes, stats.Elements, stats.Singletons)
	fmt.Printf("  Largest class: %d  Smallest: %d\n",
		stats.LargestClass, stats.SmallestClass)

	fmt.Println("\n  Class size distribution:")
	for _, b := range stats.SizeHistogram {
		if b.Count > 0 {
			barWidth := int(math.Log2(float64(b.Count))) + 2
			if barWidth < 1 {
				barWidth = 1
			}
			fmt.Printf("    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	if len(stats.TopClasses) > 0 {
		fmt.Println("\n  Heaviest classes:")
		for _, r := range stats.TopClasses {
			fmt.Printf("    %s weight=%d  (%s %s)\n", truncID(r.ID), r.Weight, r.Type, r.Name)
		}
	}
	fmt.Println()
}

func truncID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
