package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/curator/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/importer"
)

const sourcesListLimit = 100

func newSourcesCommand() *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage the source registry",
	}
	sourcesCmd.AddCommand(newSourcesListCommand(), newSourcesImportCommand())
	return sourcesCmd
}

func newSourcesListCommand() *cobra.Command {
	var search, sourceType string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
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

			sources, err := db.Sources.List(cmd.Context(), database.SourceFilter{
				Search: search,
				Type:   sourceType,
				Page:   1,
				Limit:  sourcesListLimit,
			})
			if err != nil {
				return fmt.Errorf("list sources: %w", err)
			}

			renderSources(cmd.OutOrStdout(), sources)
			return nil
		},
	}
	listCmd.Flags().StringVar(&search, "search", "", "filter by name or url")
	listCmd.Flags().StringVar(&sourceType, "type", "", "filter by source type")
	return listCmd
}

func newSourcesImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import sources from a .yaml or .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			deps, err := commandDeps()
			if err != nil {
				return err
			}
			db, err := bootstrap.SetupDatabase(deps.Config.Database, deps.Logger)
			if err != nil {
				return err
			}
			defer db.DB.Close()

			result, err := importer.New(db.Sources, deps.Logger).Import(cmd.Context(), filepath.Base(path), f)
			if err != nil {
				return err
			}

			renderImportResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func renderSources(w io.Writer, sources []*domain.Source) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Name", "URL", "Type", "Priority", "Auto Crawl", "Status", "Content Found", "Last Crawled"})
	for _, s := range sources {
		lastCrawled := "never"
		if s.LastCrawledAt != nil {
			lastCrawled = s.LastCrawledAt.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{
			s.Name,
			s.URL,
			s.Type,
			s.Priority,
			s.AutoCrawl,
			s.Status,
			s.TotalContentFound,
			lastCrawled,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(sources), ""})

	t.Render()
}

func renderImportResult(w io.Writer, result *importer.Result) {
	fmt.Fprintf(w, "Created: %d, Updated: %d, Rejected: %d\n", result.Created, result.Updated, len(result.Errors))
	if len(result.Errors) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Row", "Error"})
	for _, e := range result.Errors {
		t.AppendRow(table.Row{e.Row, e.Error})
	}
	t.Render()
}
