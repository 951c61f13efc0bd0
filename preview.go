package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	previewTitleStyle = lipgloss.NewStyle().Bold(true)
	previewWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	previewSQLStyle   = lipgloss.NewStyle().Faint(true)
	priorityStyles    = map[Priority]lipgloss.Style{
		PriorityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		PriorityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		PriorityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		PriorityLow:      lipgloss.NewStyle().Faint(true),
		PriorityOptional: lipgloss.NewStyle().Faint(true),
	}
)

// renderMigrationPreview builds the human-readable preview shown before
// confirmation and in dry runs.
func renderMigrationPreview(m *Migration) string {
	var b strings.Builder
	b.WriteString(previewTitleStyle.Render(fmt.Sprintf("Migration %s: %s (%s)", m.Version, m.Name, m.Dialect)))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "checksum: %s\n", m.Checksum)
	fmt.Fprintf(&b, "%d operation(s):\n", len(m.Operations))

	for i, op := range m.Operations {
		fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, op.Type, op.Description)
		b.WriteString(previewSQLStyle.Render("     up:   " + op.SQLUp))
		b.WriteByte('\n')
		b.WriteString(previewSQLStyle.Render("     down: " + op.SQLDown))
		b.WriteByte('\n')
		if !op.Reversible {
			b.WriteString(previewWarnStyle.Render("     IRREVERSIBLE: " + op.RollbackNote))
			b.WriteByte('\n')
		}
		if lim := op.Metadata["limitation"]; lim != "" {
			b.WriteString(previewWarnStyle.Render("     LIMITED: " + lim))
			b.WriteByte('\n')
		}
	}

	if !m.CanRollback() {
		b.WriteString(previewWarnStyle.Render("This migration cannot be rolled back automatically."))
		b.WriteByte('\n')
	}
	return b.String()
}

// renderImplementationPlan orders recommendations CRITICAL first and formats
// them for direct operator consumption.
func renderImplementationPlan(res *AnalysisResult) string {
	var b strings.Builder
	b.WriteString(previewTitleStyle.Render(fmt.Sprintf("Index recommendations (%s)", res.Dialect)))
	b.WriteByte('\n')

	if len(res.Recommendations) == 0 {
		b.WriteString("no recommendations: workload contains no indexable patterns\n")
		return b.String()
	}

	for i, rec := range res.Recommendations {
		style := priorityStyles[rec.Priority]
		fmt.Fprintf(&b, "%d. %s %s on %s(%s)\n",
			i+1,
			style.Render(string(rec.Priority)),
			rec.Type, rec.Table, strings.Join(rec.Columns, ", "))
		fmt.Fprintf(&b, "   gain ~%.1fx, size ~%.1f MB, maintenance %s\n",
			rec.PerformanceGain, rec.SizeEstimateMB, rec.MaintenanceCost)
		fmt.Fprintf(&b, "   rationale: %s\n", rec.Rationale)
		b.WriteString(previewSQLStyle.Render("   " + rec.CreateStatement))
		b.WriteByte('\n')
	}

	if len(res.RedundantIndexes) > 0 {
		b.WriteString(previewWarnStyle.Render(fmt.Sprintf("redundant existing indexes: %s", strings.Join(res.RedundantIndexes, ", "))))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "total estimated gain: %.1fx (best recommendation per table, summed)\n", res.TotalEstimatedGain)
	return b.String()
}
