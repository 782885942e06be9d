package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/resolve-cli/internal/model"
)

var (
	reviewLimit  int
	reviewFormat string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List ambiguous match candidates awaiting manual review",
	Long: `Near-matches inside the review similarity band are never merged
automatically; they are parked for a human decision. This command lists
them, highest similarity first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("review"); err != nil {
			return err
		}
		if reviewFormat != "table" && reviewFormat != "json" {
			return eris.Errorf("review: --format must be table or json (got %q)", reviewFormat)
		}

		reader, sink, err := initReader(ctx, cfg)
		if err != nil {
			return err
		}
		defer sink.Close()

		candidates, err := reader.ListReviews(ctx, reviewLimit)
		if err != nil {
			return eris.Wrap(err, "review: list")
		}

		if reviewFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(candidates)
		}
		writeReviewTable(os.Stdout, candidates)
		return nil
	},
}

func writeReviewTable(w *os.File, candidates []model.ReviewCandidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "No review candidates.")
		return
	}

	fmt.Fprintf(w, "%-10s %-12s %-30s %-30s %6s\n",
		"Sim", "Source", "Record Name", "Entity Name", "When")
	fmt.Fprintln(w, strings.Repeat("-", 92))
	for _, c := range candidates {
		fmt.Fprintf(w, "%-10.2f %-12s %-30s %-30s %s\n",
			c.Similarity, c.SourceName,
			truncate(c.RecordName, 30), truncate(c.EntityName, 30),
			c.CreatedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "\n%d candidate(s)\n", len(candidates))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 50, "maximum candidates to list (0 = all)")
	reviewCmd.Flags().StringVar(&reviewFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(reviewCmd)
}
