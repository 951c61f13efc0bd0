package main

import (
	"fmt"
	"sort"
	"strings"
)

// IndexType classifies a recommended index.
type IndexType string

const (
	IndexBTree     IndexType = "BTREE"
	IndexHash      IndexType = "HASH"
	IndexGIN       IndexType = "GIN"
	IndexGIST      IndexType = "GIST"
	IndexPartial   IndexType = "PARTIAL"
	IndexUnique    IndexType = "UNIQUE"
	IndexComposite IndexType = "COMPOSITE"
	IndexCovering  IndexType = "COVERING"
)

// Priority buckets are a fixed contract on estimated performance gain:
// >=10x CRITICAL, >=5x HIGH, >=2x MEDIUM, >=1.5x LOW, below that OPTIONAL.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
	PriorityOptional Priority = "OPTIONAL"
)

var priorityRank = map[Priority]int{
	PriorityCritical: 0, PriorityHigh: 1, PriorityMedium: 2, PriorityLow: 3, PriorityOptional: 4,
}

func priorityForGain(gain float64) Priority {
	switch {
	case gain >= 10:
		return PriorityCritical
	case gain >= 5:
		return PriorityHigh
	case gain >= 2:
		return PriorityMedium
	case gain >= 1.5:
		return PriorityLow
	default:
		return PriorityOptional
	}
}

// OptimizationOpportunity is produced by the external workload analyzer and
// consumed here as-is: column lists per access pattern plus an estimated
// improvement string such as "8x" or "3.5x faster".
type OptimizationOpportunity struct {
	Table                string   `yaml:"table"`
	Description          string   `yaml:"description"`
	JoinColumns          []string `yaml:"join_columns"`
	GroupByColumns       []string `yaml:"group_by_columns"`
	FilterColumns        []string `yaml:"filter_columns"`
	FilterPredicate      string   `yaml:"filter_predicate"`
	FilterIsStatic       bool     `yaml:"filter_is_static"`
	FilterSelectivity    float64  `yaml:"filter_selectivity"`
	SelectedColumns      []string `yaml:"selected_columns"`
	EstimatedImprovement string   `yaml:"estimated_improvement"`
}

// OptimizedQuery is the companion record for a rewritten query.
type OptimizedQuery struct {
	Table                string `yaml:"table"`
	Original             string `yaml:"original"`
	Optimized            string `yaml:"optimized"`
	EstimatedImprovement string `yaml:"estimated_improvement"`
}

// IndexRecommendation is one prioritized index suggestion. Column order is
// significant for composite indexes. Recomputed on every analysis run, never
// persisted.
type IndexRecommendation struct {
	Table           string
	Columns         []string
	IncludeColumns  []string
	FilterPredicate string
	Type            IndexType
	Priority        Priority
	PerformanceGain float64
	SizeEstimateMB  float64
	MaintenanceCost string
	Rationale       string
	CreateStatement string
	DropStatement   string
}

// indexName derives the index identifier. Partial and covering variants get
// a suffix so a plan that recommends both a plain and a specialized index
// over the same columns never reuses a name.
func (r IndexRecommendation) indexName() string {
	name := fmt.Sprintf("idx_%s_%s", r.Table, strings.Join(r.Columns, "_"))
	switch r.Type {
	case IndexPartial:
		return name + "_part"
	case IndexCovering:
		return name + "_inc"
	}
	return name
}

// AnalysisResult aggregates one analysis run.
type AnalysisResult struct {
	Dialect            string
	Recommendations    []IndexRecommendation
	MissingCritical    []IndexRecommendation
	RedundantIndexes   []string
	TotalEstimatedGain float64
}

// analyzeAndRecommend derives prioritized index recommendations from
// workload opportunities and optimized queries, flags redundant existing
// indexes, and estimates the aggregate gain. Pure computation: safe to run
// concurrently across dialects.
func analyzeAndRecommend(opportunities []OptimizationOpportunity, queries []OptimizedQuery, existingIndexes []string, d dialect) *AnalysisResult {
	res := &AnalysisResult{Dialect: d.Name()}

	queryGain := make(map[string]float64)
	for _, q := range queries {
		if g := parseImprovement(q.EstimatedImprovement); g > queryGain[q.Table] {
			queryGain[q.Table] = g
		}
	}

	seen := make(map[string]bool)
	for _, opp := range opportunities {
		gain := parseImprovement(opp.EstimatedImprovement)
		if qg := queryGain[opp.Table]; qg > gain {
			gain = qg
		}
		for _, rec := range deriveCandidates(opp, gain, d) {
			key := rec.Table + "|" + strings.Join(rec.Columns, ",") + "|" + string(rec.Type)
			if seen[key] {
				continue
			}
			seen[key] = true
			res.Recommendations = append(res.Recommendations, rec)
		}
	}

	sort.SliceStable(res.Recommendations, func(i, j int) bool {
		a, b := res.Recommendations[i], res.Recommendations[j]
		if priorityRank[a.Priority] != priorityRank[b.Priority] {
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		}
		return a.PerformanceGain > b.PerformanceGain
	})

	for _, rec := range res.Recommendations {
		if rec.Priority == PriorityCritical {
			res.MissingCritical = append(res.MissingCritical, rec)
		}
	}

	res.RedundantIndexes = findRedundantIndexes(existingIndexes, res.Recommendations, opportunities)
	res.TotalEstimatedGain = totalEstimatedGain(res.Recommendations)
	return res
}

// deriveCandidates turns one opportunity into concrete index candidates:
// join columns, group-by columns in their stated order, selective static
// filters as partial indexes, and frequently selected non-key columns as a
// covering index where the engine supports INCLUDE.
func deriveCandidates(opp OptimizationOpportunity, gain float64, d dialect) []IndexRecommendation {
	var recs []IndexRecommendation

	if len(opp.JoinColumns) > 0 {
		t := IndexBTree
		if len(opp.JoinColumns) > 1 {
			t = IndexComposite
		}
		recs = append(recs, finishRecommendation(IndexRecommendation{
			Table:     opp.Table,
			Columns:   append([]string(nil), opp.JoinColumns...),
			Type:      t,
			Rationale: fmt.Sprintf("join on (%s): %s", strings.Join(opp.JoinColumns, ", "), opp.Description),
		}, gain, d))
	}

	if len(opp.GroupByColumns) > 0 {
		recs = append(recs, finishRecommendation(IndexRecommendation{
			Table:     opp.Table,
			Columns:   append([]string(nil), opp.GroupByColumns...),
			Type:      IndexComposite,
			Rationale: fmt.Sprintf("GROUP BY (%s) matches index column order", strings.Join(opp.GroupByColumns, ", ")),
		}, gain, d))
	}

	if len(opp.FilterColumns) > 0 {
		rec := IndexRecommendation{
			Table:   opp.Table,
			Columns: append([]string(nil), opp.FilterColumns...),
		}
		if opp.FilterIsStatic && opp.FilterSelectivity > 0 && opp.FilterSelectivity <= 0.2 && opp.FilterPredicate != "" {
			rec.Type = IndexPartial
			rec.FilterPredicate = opp.FilterPredicate
			rec.Rationale = fmt.Sprintf("static highly selective filter %q (selectivity %.2f)", opp.FilterPredicate, opp.FilterSelectivity)
		} else {
			rec.Type = IndexBTree
			if len(opp.FilterColumns) > 1 {
				rec.Type = IndexComposite
			}
			rec.Rationale = fmt.Sprintf("WHERE filter on (%s)", strings.Join(opp.FilterColumns, ", "))
		}
		recs = append(recs, finishRecommendation(rec, gain, d))
	}

	if len(opp.SelectedColumns) > 0 && len(opp.FilterColumns) > 0 {
		rec := IndexRecommendation{
			Table:   opp.Table,
			Columns: append([]string(nil), opp.FilterColumns...),
		}
		if d.SupportsCovering() {
			rec.Type = IndexCovering
			rec.IncludeColumns = append([]string(nil), opp.SelectedColumns...)
			rec.Rationale = fmt.Sprintf("covering index: queries read (%s) without a table lookup", strings.Join(opp.SelectedColumns, ", "))
		} else {
			// Engines without INCLUDE degrade to a plain composite index
			// over filter plus selected columns.
			rec.Type = IndexComposite
			rec.Columns = append(rec.Columns, opp.SelectedColumns...)
			rec.Rationale = fmt.Sprintf("composite substitute for covering index on (%s)", strings.Join(rec.Columns, ", "))
		}
		recs = append(recs, finishRecommendation(rec, gain, d))
	}

	return recs
}

func finishRecommendation(rec IndexRecommendation, gain float64, d dialect) IndexRecommendation {
	rec.PerformanceGain = gain
	rec.Priority = priorityForGain(gain)
	rec.SizeEstimateMB = estimateIndexSizeMB(rec)
	rec.MaintenanceCost = estimateMaintenanceCost(rec)
	rec.CreateStatement = d.RenderCreateIndex(rec)
	rec.DropStatement = d.RenderDropIndex(rec.Table, rec.indexName())
	return rec
}

// estimateIndexSizeMB is a width heuristic: roughly 8 MB per indexed column
// per million rows, partial indexes discounted, covering payload counted at
// half weight. No row counts are available here, so this orders candidates
// by relative weight rather than predicting real sizes.
func estimateIndexSizeMB(rec IndexRecommendation) float64 {
	size := 8.0 * float64(len(rec.Columns))
	size += 4.0 * float64(len(rec.IncludeColumns))
	if rec.Type == IndexPartial {
		size *= 0.25
	}
	return size
}

func estimateMaintenanceCost(rec IndexRecommendation) string {
	width := len(rec.Columns) + len(rec.IncludeColumns)
	switch {
	case rec.Type == IndexPartial:
		return "Low"
	case rec.Type == IndexCovering || width >= 4:
		return "High"
	case width >= 2:
		return "Medium"
	default:
		return "Low"
	}
}

// findRedundantIndexes flags an existing index as redundant when the columns
// attributable to it form a non-empty strict prefix of a recommended
// composite index, or when no analyzed column appears in its name at all
// (unused). Existing indexes arrive as flat names, so column attribution is
// by ordered substring match against each recommendation's columns.
func findRedundantIndexes(existing []string, recs []IndexRecommendation, opps []OptimizationOpportunity) []string {
	analyzed := make(map[string]bool)
	for _, opp := range opps {
		for _, cols := range [][]string{opp.JoinColumns, opp.GroupByColumns, opp.FilterColumns, opp.SelectedColumns} {
			for _, c := range cols {
				analyzed[c] = true
			}
		}
	}

	var redundant []string
	for _, name := range existing {
		if isSupersededByRecommendation(name, recs) {
			redundant = append(redundant, name)
			continue
		}
		unused := true
		for col := range analyzed {
			if strings.Contains(name, col) {
				unused = false
				break
			}
		}
		if unused {
			redundant = append(redundant, name)
		}
	}
	sort.Strings(redundant)
	return redundant
}

func isSupersededByRecommendation(indexName string, recs []IndexRecommendation) bool {
	for _, rec := range recs {
		if len(rec.Columns) < 2 {
			continue
		}
		matched := 0
		for _, col := range rec.Columns {
			if strings.Contains(indexName, col) {
				matched++
			} else {
				break
			}
		}
		// Strict prefix: at least the first column, but not all of them.
		if matched >= 1 && matched < len(rec.Columns) {
			return true
		}
	}
	return false
}

// totalEstimatedGain sums the single highest-gain recommendation per
// distinct table. Compounding index effects are not additive, so this
// deliberately does not sum every recommendation; the heuristic is kept
// as-is from the workload analyzer's contract.
func totalEstimatedGain(recs []IndexRecommendation) float64 {
	best := make(map[string]float64)
	for _, rec := range recs {
		if rec.PerformanceGain > best[rec.Table] {
			best[rec.Table] = rec.PerformanceGain
		}
	}
	var total float64
	for _, g := range best {
		total += g
	}
	return total
}

// parseImprovement extracts a gain multiplier from strings like "8x",
// "3.5x faster", or "50%". Unparseable input is treated as neutral (1.0).
func parseImprovement(s string) float64 {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 1.0
	}
	var num strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '.' {
			num.WriteRune(r)
			continue
		}
		break
	}
	if num.Len() == 0 {
		return 1.0
	}
	var v float64
	if _, err := fmt.Sscanf(num.String(), "%f", &v); err != nil || v <= 0 {
		return 1.0
	}
	if strings.Contains(s, "%") {
		return 1.0 + v/100.0
	}
	return v
}
