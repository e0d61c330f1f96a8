package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"recall/claims/internal/db"
)

var (
	entityOwner int64
	entityPage  int
	entityJSON  bool
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Create, list and inspect entities",
}

var entityAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create an entity (a root claim)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := d.CreateRoot(ctx, entityOwner, args[0])
		if err != nil {
			return err
		}
		if entityJSON {
			return printJSON(c)
		}
		fmt.Printf("Created entity %d: %s\n", c.ID, *c.Row().Value)
		return nil
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities by id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		page := currentPage(entityPage)
		roots, err := d.ListRoots(ctx, page)
		if err != nil {
			return err
		}
		roots, more := db.Trim(roots, page)
		if entityJSON {
			return printJSON(roots)
		}
		for _, c := range roots {
			fmt.Println(claimLine(ctx, d, c))
		}
		printMore(more, page)
		return nil
	},
}

// entityView is everything "entity show" knows about a claim
type entityView struct {
	Claim    *db.Claim          `json:"claim"`
	Name     string             `json:"name"`
	Outgoing []*db.Claim        `json:"outgoing"`
	Incoming []*db.Claim        `json:"incoming"`
	Validity db.Validity        `json:"validity"`
	Comments []string           `json:"comments,omitempty"`
	Inferred []db.InferredClaim `json:"inferred,omitempty"`
}

var entityShowCmd = &cobra.Command{
	Use:   "show <claim>",
	Short: "Show a claim with its facts, validity, comments and inferred relations",
	Args:  cobra.ExactArgs(1),
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
		view := entityView{Claim: c}
		if view.Name, err = d.Name(ctx, c.ID); err != nil {
			return err
		}
		if view.Outgoing, err = d.Neighbors(ctx, c.ID, db.Outgoing, nil, db.Page{}); err != nil {
			return err
		}
		if view.Incoming, err = d.Neighbors(ctx, c.ID, db.Incoming, nil, db.Page{}); err != nil {
			return err
		}
		if view.Validity, err = d.Validity(ctx, c.ID); err != nil {
			return err
		}
		if view.Comments, err = d.Comments(ctx, c.ID); err != nil {
			return err
		}
		if view.Inferred, err = d.InferredFacts(ctx, c.ID, nil); err != nil {
			return err
		}

		if entityJSON {
			return printJSON(view)
		}

		fmt.Printf("%d  %s\n", c.ID, view.Name)
		if view.Validity.From != nil || view.Validity.Until != nil {
			from, until := "…", "…"
			if view.Validity.From != nil {
				from = view.Validity.From.Format("2006-01-02")
			}
			if view.Validity.Until != nil {
				until = view.Validity.Until.Format("2006-01-02")
			}
			fmt.Printf("  valid %s to %s\n", from, until)
		}
		for _, text := range view.Comments {
			fmt.Printf("  # %s\n", text)
		}
		printSection := func(title string, claims []*db.Claim) {
			if len(claims) == 0 {
				return
			}
			fmt.Printf("\n  %s\n", title)
			for _, f := range claims {
				fmt.Println("  " + claimLine(ctx, d, f))
			}
		}
		printSection("OUTGOING", view.Outgoing)
		printSection("INCOMING", view.Incoming)
		if len(view.Inferred) > 0 {
			fmt.Println("\n  INFERRED")
			for _, ic := range view.Inferred {
				verb, err := d.GetVerb(ctx, ic.VerbID)
				if err != nil {
					return err
				}
				object, err := d.Name(ctx, ic.ObjectID)
				if err != nil {
					return err
				}
				fmt.Printf("          %s %s %s\n", view.Name, verb.Label(), object)
			}
		}
		return nil
	},
}

func init() {
	entityAddCmd.Flags().Int64Var(&entityOwner, "owner", 0, "Owner id recorded on the claim")
	entityCmd.PersistentFlags().BoolVar(&entityJSON, "json", false, "JSON output")
	entityListCmd.Flags().IntVar(&entityPage, "page", 0, "0-based page index")
	entityCmd.AddCommand(entityAddCmd, entityListCmd, entityShowCmd)
	rootCmd.AddCommand(entityCmd)
}
