package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recall/claims/internal/db"
)

var (
	searchTables string
	searchPage   int
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank entity names and verb labels against a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		var tables []string
		if searchTables != "" {
			tables = []string{}
			for _, t := range strings.Split(searchTables, ",") {
				tables = append(tables, strings.TrimSpace(t))
			}
		}

		page := currentPage(searchPage)
		hits, err := d.Search(ctx, strings.Join(args, " "), tables, page)
		if err != nil {
			return err
		}
		hits, more := db.Trim(hits, page)
		if searchJSON {
			return printJSON(hits)
		}
		if len(hits) == 0 {
			fmt.Println("No matches")
			return nil
		}
		for _, h := range hits {
			text := ""
			switch h.Table {
			case db.TableClaims:
				text, err = d.Name(ctx, h.ID)
			case db.TableVerbs:
				var v *db.Verb
				if v, err = d.GetVerb(ctx, h.ID); err == nil {
					text = v.Label() + " (verb)"
				}
			}
			if err != nil {
				text = fmt.Sprintf("<%v>", err)
			}
			fmt.Printf("%7.3f  %6d  %s\n", h.Score, h.ID, text)
		}
		printMore(more, page)
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from entity names and verb labels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		stats, err := d.RebuildIndex(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d documents in %d batches, removed %d stale\n",
			stats.Documents, stats.Batches, stats.Removed)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchTables, "tables", "", "Comma-separated tables to search: "+db.TableClaims+", "+db.TableVerbs)
	searchCmd.Flags().IntVar(&searchPage, "page", 0, "0-based page index")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "JSON output")
	rootCmd.AddCommand(searchCmd, reindexCmd)
}
