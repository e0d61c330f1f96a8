package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"recall/claims/internal/db"
)

var (
	nbIncoming bool
	nbVerbs    string
	nbPage     int
	nbJSON     bool
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <claim>",
	Short: "List the facts attached to a claim",
	Long: `List the facts attached to a claim, ordered by fact id.

Outgoing facts have the claim as subject, plus undirected links that name
it as object. --incoming lists directed links that name it as object.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := ResolveClaim(ctx, d, args[0])
		if err != nil {
			return err
		}
		filter, err := resolveVerbs(ctx, d, nbVerbs)
		if err != nil {
			return err
		}
		dir := db.Outgoing
		if nbIncoming {
			dir = db.Incoming
		}

		page := currentPage(nbPage)
		facts, err := d.Neighbors(ctx, c.ID, dir, filter, page)
		if err != nil {
			return err
		}
		facts, more := db.Trim(facts, page)
		if nbJSON {
			return printJSON(facts)
		}
		if len(facts) == 0 {
			fmt.Printf("No %s facts\n", dir)
			return nil
		}
		for _, f := range facts {
			fmt.Println(claimLine(ctx, d, f))
		}
		printMore(more, page)
		return nil
	},
}

func init() {
	neighborsCmd.Flags().BoolVar(&nbIncoming, "incoming", false, "List incoming directed links")
	neighborsCmd.Flags().StringVar(&nbVerbs, "verbs", "", "Comma-separated verb filter (ids or labels)")
	neighborsCmd.Flags().IntVar(&nbPage, "page", 0, "0-based page index")
	neighborsCmd.Flags().BoolVar(&nbJSON, "json", false, "JSON output")
	rootCmd.AddCommand(neighborsCmd)
}
