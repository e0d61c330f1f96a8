package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"recall/claims/internal/apperr"
	"recall/claims/internal/graph"
)

var (
	analyzeJSON         bool
	analyzeCategory     string
	analyzeTopN         int
	analyzeStaleDays    int64
	analyzeHubThreshold int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the entity graph: topology, staleness, bridges, health score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		snap, err := graph.SnapshotFromDB(ctx, d)
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}

		if analyzeCategory != "" {
			category, err := ResolveClaim(ctx, d, analyzeCategory)
			if err != nil {
				return err
			}
			if snap.Regions[category.ID] != category.ID {
				return apperr.TypeMismatch("%q is not a top-level category", analyzeCategory)
			}
			snap = snap.FilterToRegion(category.ID)
		}

		report := graph.Analyze(snap, &graph.AnalyzerConfig{
			HubThreshold: analyzeHubThreshold,
			TopN:         analyzeTopN,
			StaleDays:    analyzeStaleDays,
		})

		if analyzeJSON {
			return printJSON(report)
		}

		printHumanReadable(report, snap)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "Scope analysis to members of this top-level category")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 10, "Number of top items to show per section")
	analyzeCmd.Flags().Int64Var(&analyzeStaleDays, "stale-days", 60, "Days since update to consider an entity stale")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 15, "Relation links above which an entity is a hub")
	rootCmd.AddCommand(analyzeCmd)
}

func printHumanReadable(report *graph.AnalysisReport, snap *graph.GraphSnapshot) {
	barLen := min(int(report.HealthScore*20), 20)
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Printf("\n  Graph Health: %.0f%%  [%s]\n", report.HealthScore*100, bar)
	b := report.HealthBreakdown
	fmt.Printf("  connectivity=%.2f components=%.2f categorization=%.2f staleness=%.2f fragility=%.2f\n",
		b.Connectivity, b.Components, b.Categorization, b.Staleness, b.Fragility)

	printTopology(report.Topology, snap)
	printStaleness(report.Staleness)
	printFragility(report.Bridges)
	fmt.Println()
}

func section(title string) {
	fmt.Printf("\n  %s\n", title)
	fmt.Println("  ────────────────────────────────────────")
}

func printTopology(t *graph.TopologyReport, snap *graph.GraphSnapshot) {
	section("TOPOLOGY")
	fmt.Printf("  Entities: %d  Relation links: %d  Category links: %d\n",
		t.Entities, t.RelationLinks, t.CategoryLinks)
	fmt.Printf("  Components: %d (largest %d, smallest %d)\n",
		t.NumComponents, t.LargestComponent, t.SmallestComponent)

	if t.OrphanCount > 0 {
		described := t.OrphanCount - t.BareCount
		fmt.Printf("  Orphans: %d with no links (%d bare, %d with facts)\n", t.OrphanCount, t.BareCount, described)
		printOrphans("bare", t.BareOrphans, t.BareCount, snap)
		printOrphans("with facts", t.DescribedOrphans, described, snap)
	}

	if len(t.Categories) > 0 {
		fmt.Printf("\n  Categories (%d uncategorized entities):\n", t.Uncategorized)
		for _, c := range t.Categories {
			fmt.Printf("    %6d  %-30s %4d direct, %4d in region\n",
				c.ID, truncTitle(c.Name, 30), c.Direct, c.RegionSize)
		}
	}

	fmt.Println("\n  Relation degree:")
	for _, bucket := range t.DegreeHistogram {
		if bucket.Count > 0 {
			width := max(int(math.Log2(float64(bucket.Count)))+2, 1)
			fmt.Printf("    %5s: %4d  %s\n", bucket.Label, bucket.Count, strings.Repeat("=", width))
		}
	}

	if len(t.Hubs) > 0 {
		fmt.Println("\n  Hubs:")
		for _, hub := range t.Hubs {
			fmt.Printf("    %6d  degree=%d (out=%d in=%d undirected=%d)  %s\n",
				hub.ID, hub.Degree, hub.Out, hub.In, hub.Undirected, truncTitle(hub.Name, 40))
		}
	}
}

func printOrphans(label string, ids []int64, total int, snap *graph.GraphSnapshot) {
	const shown = 5
	for _, id := range ids[:min(len(ids), shown)] {
		fmt.Printf("    - %d %s (%s)\n", id, truncTitle(snap.Name(id), 50), label)
	}
	if total > shown {
		fmt.Printf("    ... and %d more %s\n", total-shown, label)
	}
}

func printStaleness(s *graph.StalenessReport) {
	if s.StaleNodeCount == 0 {
		return
	}
	section("STALENESS")
	fmt.Printf("  %d entities unchanged for long but linked to this week:\n", s.StaleNodeCount)
	for _, n := range s.StaleNodes[:min(len(s.StaleNodes), 10)] {
		fmt.Printf("    %6d  %dd old, %d recent links  %s\n",
			n.ID, n.DaysSinceUpdate, n.RecentRefCount, truncTitle(n.Name, 40))
	}
}

func printFragility(br *graph.BridgeReport) {
	if br.APCount == 0 && br.BridgeCount == 0 && len(br.FragileConnections) == 0 {
		return
	}
	section("STRUCTURAL FRAGILITY")
	if br.APCount > 0 {
		fmt.Printf("  %d entities hold their component together:\n", br.APCount)
		for _, ap := range br.ArticulationPoints[:min(len(br.ArticulationPoints), 10)] {
			fmt.Printf("    %6d  %d pieces if removed  %s\n", ap.ID, ap.Pieces, truncTitle(ap.Name, 40))
		}
	}
	if br.BridgeCount > 0 {
		fmt.Printf("  %d facts are the only path between their ends:\n", br.BridgeCount)
		for _, be := range br.BridgeEdges[:min(len(br.BridgeEdges), 10)] {
			fmt.Printf("    #%d  %s -> %s\n", be.FactID, truncTitle(be.SourceName, 30), truncTitle(be.TargetName, 30))
		}
	}
	if len(br.FragileConnections) > 0 {
		fmt.Printf("  %d category pairs joined by at most 2 links:\n", len(br.FragileConnections))
		for _, fc := range br.FragileConnections[:min(len(br.FragileConnections), 10)] {
			plural := ""
			if fc.CrossEdges != 1 {
				plural = "s"
			}
			fmt.Printf("    %s <-> %s (%d link%s)\n",
				truncTitle(fc.RegionAName, 25), truncTitle(fc.RegionBName, 25), fc.CrossEdges, plural)
		}
	}
}

func truncTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Find a safe UTF-8 boundary
	truncated := s[:max]
	for len(truncated) > 0 && truncated[len(truncated)-1]>>6 == 2 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "..."
}
