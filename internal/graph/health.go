package graph

import (
	"math"
	"time"
)

// HealthBreakdown shows the sub-scores of the health formula
type HealthBreakdown struct {
	Connectivity   float64 `json:"connectivity"`
	Components     float64 `json:"components"`
	Categorization float64 `json:"categorization"`
	Staleness      float64 `json:"staleness"`
	Fragility      float64 `json:"fragility"`
}

// AnalysisReport is the full analysis result
type AnalysisReport struct {
	HealthScore     float64          `json:"health_score"`
	HealthBreakdown HealthBreakdown  `json:"health_breakdown"`
	Topology        *TopologyReport  `json:"topology"`
	Staleness       *StalenessReport `json:"staleness"`
	Bridges         *BridgeReport    `json:"bridges"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
	StaleDays    int64
	NowMs        int64 // reference time for staleness; 0 means now
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 10,
		TopN:         50,
		StaleDays:    30,
	}
}

const (
	weightConnectivity   = 0.25
	weightComponents     = 0.20
	weightCategorization = 0.15
	weightStaleness      = 0.20
	weightFragility      = 0.20

	// a described orphan weighs half a bare one against connectivity
	describedOrphanWeight = 0.5
)

// Analyze runs all analyses and computes a composite health score in [0, 1]
func Analyze(snap *GraphSnapshot, config *AnalyzerConfig) *AnalysisReport {
	now := config.NowMs
	if now == 0 {
		now = time.Now().UnixMilli()
	}
	topology := ComputeTopology(snap, config.HubThreshold, config.TopN)
	staleness := ComputeStaleness(snap, config.StaleDays, now)
	bridges := ComputeBridges(snap)

	var b HealthBreakdown
	total := float64(topology.Entities)
	if total > 0 {
		described := topology.OrphanCount - topology.BareCount
		orphans := float64(topology.BareCount) + describedOrphanWeight*float64(described)
		b.Connectivity = clamp(1.0-math.Min(orphans/total, 0.2)*5.0, 0, 1)
		b.Staleness = clamp(1.0-math.Min(float64(staleness.StaleNodeCount)/total, 0.1)*10.0, 0, 1)
		b.Fragility = clamp(1.0-math.Min(float64(bridges.APCount)/total, 0.05)*20.0, 0, 1)
		b.Categorization = categorization(topology, total)
	}
	if topology.NumComponents > 0 {
		b.Components = clamp(1.0/float64(topology.NumComponents), 0, 1)
	}

	score := weightConnectivity*b.Connectivity +
		weightComponents*b.Components +
		weightCategorization*b.Categorization +
		weightStaleness*b.Staleness +
		weightFragility*b.Fragility

	return &AnalysisReport{
		HealthScore:     score,
		HealthBreakdown: b,
		Topology:        topology,
		Staleness:       staleness,
		Bridges:         bridges,
	}
}

// categorization is the share of entities placed under a category. A graph
// that uses no categories at all is not penalized.
func categorization(t *TopologyReport, total float64) float64 {
	if len(t.Categories) == 0 {
		return 1
	}
	return clamp(1.0-float64(t.Uncategorized)/total, 0, 1)
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
