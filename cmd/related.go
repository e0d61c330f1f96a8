package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"recall/claims/internal/db"
)

var (
	relPage int
	relJSON bool
)

var relatedCmd = &cobra.Command{
	Use:   "related <anchor> [inferred-verb]",
	Short: "Evaluate inferred verbs from an anchor claim",
	Long: `Evaluate an inferred verb's rule with the anchor as "this" and list
every claim that can stand in for "that". Without a verb, every inferred
verb is evaluated. Results are computed on demand and never stored.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		anchor, err := ResolveClaim(ctx, d, args[0])
		if err != nil {
			return err
		}

		if len(args) == 1 {
			facts, err := d.InferredFacts(ctx, anchor.ID, nil)
			if err != nil {
				return err
			}
			if relJSON {
				return printJSON(facts)
			}
			subject, err := d.Name(ctx, anchor.ID)
			if err != nil {
				return err
			}
			for _, f := range facts {
				verb, err := d.GetVerb(ctx, f.VerbID)
				if err != nil {
					return err
				}
				object, err := d.Name(ctx, f.ObjectID)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s %s\n", subject, verb.Label(), object)
			}
			return nil
		}

		verb, err := ResolveVerb(ctx, d, args[1])
		if err != nil {
			return err
		}
		page := currentPage(relPage)
		claims, err := d.Related(ctx, anchor.ID, verb.ID, page)
		if err != nil {
			return err
		}
		claims, more := db.Trim(claims, page)
		if relJSON {
			return printJSON(claims)
		}
		for _, c := range claims {
			fmt.Println(claimLine(ctx, d, c))
		}
		printMore(more, page)
		return nil
	},
}

func init() {
	relatedCmd.Flags().IntVar(&relPage, "page", 0, "0-based page index")
	relatedCmd.Flags().BoolVar(&relJSON, "json", false, "JSON output")
	rootCmd.AddCommand(relatedCmd)
}
