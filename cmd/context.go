package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recall/claims/internal/db"
)

var (
	ctxBudget    int
	ctxMaxHops   int
	ctxMaxCost   float64
	ctxRootsOnly bool
	ctxJSON      bool
	ctxVerbs     string
	ctxExclude   string
)

var contextCmd = &cobra.Command{
	Use:   "context <claim>",
	Short: "Weighted walk over links outward from a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		source, err := ResolveClaim(ctx, d, args[0])
		if err != nil {
			return err
		}

		config := db.DefaultContextConfig()
		config.Budget = ctxBudget
		config.MaxHops = ctxMaxHops
		config.MaxCost = ctxMaxCost
		config.RootsOnly = ctxRootsOnly
		if config.Verbs, err = resolveVerbs(ctx, d, ctxVerbs); err != nil {
			return err
		}
		if config.ExcludeVerbs, err = resolveVerbs(ctx, d, ctxExclude); err != nil {
			return err
		}

		results, err := d.Context(ctx, source.ID, config)
		if err != nil {
			return fmt.Errorf("context expansion: %w", err)
		}
		name, err := d.Name(ctx, source.ID)
		if err != nil {
			return err
		}

		if ctxJSON {
			return printJSON(struct {
				Source  any              `json:"source"`
				Budget  int              `json:"budget"`
				Results []db.ContextNode `json:"results"`
				Count   int              `json:"count"`
			}{
				Source: struct {
					ID   int64  `json:"id"`
					Name string `json:"name"`
				}{source.ID, name},
				Budget:  ctxBudget,
				Results: results,
				Count:   len(results),
			})
		}

		if len(results) == 0 {
			fmt.Printf("No linked claims found for: %s\n", name)
			return nil
		}

		fmt.Printf("Context for: %s (%d)  budget=%d\n\n", name, source.ID, ctxBudget)
		for _, r := range results {
			marker := "[E]"
			if !r.IsRoot {
				marker = "[F]"
			}
			fmt.Printf("  %2d. %s %s  dist=%.3f rel=%.0f%% hops=%d\n",
				r.Rank, marker, r.Name, r.Distance, r.Relevance*100, r.Hops)

			if len(r.Path) > 0 {
				hops := make([]string, len(r.Path))
				for i, hop := range r.Path {
					label := fmt.Sprint(hop.VerbID)
					if v, err := d.GetVerb(ctx, hop.VerbID); err == nil {
						label = v.Label()
					}
					hops[i] = fmt.Sprintf("→[%s]→ %s", label, truncTitle(hop.Name, 40))
				}
				fmt.Printf("      %s\n", strings.Join(hops, " "))
			}
		}
		fmt.Printf("\n%d claim(s) within budget\n", len(results))
		return nil
	},
}

func init() {
	contextCmd.Flags().IntVar(&ctxBudget, "budget", 20, "Max claims to return")
	contextCmd.Flags().IntVar(&ctxMaxHops, "max-hops", 4, "Max graph depth")
	contextCmd.Flags().Float64Var(&ctxMaxCost, "max-cost", 4.0, "Cost ceiling")
	contextCmd.Flags().BoolVar(&ctxRootsOnly, "entities-only", false, "Skip facts from results")
	contextCmd.Flags().BoolVar(&ctxJSON, "json", false, "JSON output")
	contextCmd.Flags().StringVar(&ctxVerbs, "verbs", "", "Comma-separated verb allowlist (ids or labels)")
	contextCmd.Flags().StringVar(&ctxExclude, "exclude-verbs", "", "Comma-separated verb blocklist (ids or labels)")
	rootCmd.AddCommand(contextCmd)
}
