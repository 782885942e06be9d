package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/resolve-cli/internal/store"
)

var (
	reportMinScore float64
	reportFormat   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize persisted entities and their completeness scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}
		if reportFormat != "table" && reportFormat != "json" {
			return eris.Errorf("report: --format must be table or json (got %q)", reportFormat)
		}

		reader, sink, err := initReader(ctx, cfg)
		if err != nil {
			return err
		}
		defer sink.Close()

		entities, err := reader.ListEntities(ctx)
		if err != nil {
			return eris.Wrap(err, "report: list entities")
		}
		if reportMinScore > 0 {
			filtered := entities[:0]
			for _, e := range entities {
				if e.QualityScore >= reportMinScore {
					filtered = append(filtered, e)
				}
			}
			entities = filtered
		}

		if reportFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entities)
		}
		writeEntityTable(os.Stdout, entities)
		return nil
	},
}

func writeEntityTable(w *os.File, entities []store.EntitySummary) {
	if len(entities) == 0 {
		fmt.Fprintln(w, "No entities.")
		return
	}

	fmt.Fprintf(w, "%-36s %-12s %-40s %6s\n", "ID", "Identifier", "Name", "Score")
	fmt.Fprintln(w, strings.Repeat("-", 98))
	var sum float64
	for _, e := range entities {
		fmt.Fprintf(w, "%-36s %-12s %-40s %6.2f\n",
			e.ID, e.Identifier, truncate(e.Name, 40), e.QualityScore)
		sum += e.QualityScore
	}
	fmt.Fprintf(w, "\n%d entities, average completeness %.2f\n",
		len(entities), sum/float64(len(entities)))
}

func init() {
	reportCmd.Flags().Float64Var(&reportMinScore, "min-score", 0, "only show entities at or above this completeness score")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(reportCmd)
}
