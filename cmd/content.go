package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/curator/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/pipeline"
	"github.com/jonesrussell/north-cloud/curator/internal/query"
)

func newContentCommand() *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect the content library",
	}
	contentCmd.AddCommand(newStatsCommand())
	return contentCmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show content totals and facet counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := commandDeps()
			if err != nil {
				return err
			}
			db, err := bootstrap.SetupDatabase(deps.Config.Database, deps.Logger)
			if err != nil {
				return err
			}
			defer db.DB.Close()

			engine := query.NewEngine(db.Content, deps.Logger)
			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}
			facets, err := engine.Facets(cmd.Context())
			if err != nil {
				return err
			}

			renderStats(cmd.OutOrStdout(), stats, facets)
			return nil
		},
	}
}

func newPurgeCommand() *cobra.Command {
	var (
		minQuality int
		confirm    bool
	)

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete analyzed content scoring below --min-quality",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("min-quality") {
				return errors.New("--min-quality is required")
			}

			deps, err := commandDeps()
			if err != nil {
				return err
			}
			db, err := bootstrap.SetupDatabase(deps.Config.Database, deps.Logger)
			if err != nil {
				return err
			}
			defer db.DB.Close()

			infra := bootstrap.SetupInfrastructure(cmd.Context(), deps.Config, deps.Logger)
			if infra.Redis != nil {
				defer infra.Redis.Close()
			}

			deleted, err := bootstrap.NewPipeline(deps.Config, db, infra, deps.Logger).
				Purge(cmd.Context(), minQuality, confirm)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d items below quality %d\n", deleted, minQuality)
			return nil
		},
	}
	purgeCmd.Flags().IntVar(&minQuality, "min-quality", 0, "delete items with quality_score below this value")
	purgeCmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the deletion")
	return purgeCmd
}

func newRescoreCommand() *cobra.Command {
	var batchSize int

	rescoreCmd := &cobra.Command{
		Use:   "rescore",
		Short: "Re-apply the valuable rule to every stored item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := commandDeps()
			if err != nil {
				return err
			}
			db, err := bootstrap.SetupDatabase(deps.Config.Database, deps.Logger)
			if err != nil {
				return err
			}
			defer db.DB.Close()

			infra := bootstrap.SetupInfrastructure(cmd.Context(), deps.Config, deps.Logger)
			if infra.Redis != nil {
				defer infra.Redis.Close()
			}

			if batchSize <= 0 {
				batchSize = deps.Config.Scoring.RescoreBatchSize
			}
			result, err := bootstrap.NewPipeline(deps.Config, db, infra, deps.Logger).
				Rescore(cmd.Context(), batchSize)
			if err != nil {
				return err
			}

			renderRescore(cmd.OutOrStdout(), result)
			return nil
		},
	}
	rescoreCmd.Flags().IntVar(&batchSize, "batch-size", 0, "items per batch (defaults to scoring.rescore_batch_size)")
	return rescoreCmd
}

func renderStats(w io.Writer, stats *domain.ContentStats, facets *domain.ContentFacets) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Total", "Analyzed", "Valuable", "Unanalyzed", "Analyzed %"})
	t.AppendRow(table.Row{
		stats.Total,
		stats.Analyzed,
		stats.Valuable,
		stats.Unanalyzed,
		fmt.Sprintf("%.1f", stats.AnalyzedPercentage),
	})
	t.Render()

	if facets == nil {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleLight)
	ft.AppendHeader(table.Row{"Facet", "Value", "Count"})
	appendFacet(ft, "category", facets.Categories)
	appendFacet(ft, "exam_type", facets.ExamTypes)
	appendFacet(ft, "subject", facets.Subjects)
	ft.Render()
}

func appendFacet(t table.Writer, name string, counts []domain.FacetCount) {
	for _, fc := range counts {
		t.AppendRow(table.Row{name, fc.Value, fc.Count})
	}
}

func renderRescore(w io.Writer, r pipeline.RescoreResult) {
	fmt.Fprintf(w, "Rescored: %d, Valuable: %d, Skipped: %d, Failed: %d\n", r.Rescored, r.Valuable, r.Skipped, r.Failed)
}
