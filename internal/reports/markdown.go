package reports

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateLayout formats period boundaries and reading timestamps in exports.
const dateLayout = "2006-01-02"

// marshalReport renders the JSON export body.
func marshalReport(r *Report) ([]byte, error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return body, nil
}

// RenderMarkdown renders a report as a markdown document. All user-supplied
// text passes through sanitizeCell so names and notes cannot break table
// structure or inject markdown.
func RenderMarkdown(r *Report) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sanitizeCell(r.Title))
	fmt.Fprintf(&b, "Period: %s to %s  \n",
		r.PeriodStart.UTC().Format(dateLayout), r.PeriodEnd.UTC().Format(dateLayout))
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))

	b.WriteString("\n## Metrics\n")
	if len(r.Data.Metrics) == 0 {
		b.WriteString("\nNo readings in this period.\n")
	}
	for _, sec := range r.Data.Metrics {
		fmt.Fprintf(&b, "\n### %s\n\n", sanitizeCell(string(sec.Type)))
		unit := sanitizeCell(sec.Unit)
		if unit != "" {
			unit = " " + unit
		}
		fmt.Fprintf(&b, "%d readings, min %s%s, max %s%s, avg %s%s\n\n",
			sec.Count,
			formatValue(sec.Min), unit,
			formatValue(sec.Max), unit,
			formatValue(sec.Avg), unit,
		)
		b.WriteString("| Date | Value | Note |\n|---|---|---|\n")
		for _, reading := range sec.Readings {
			fmt.Fprintf(&b, "| %s | %s%s | %s |\n",
				reading.RecordedAt.UTC().Format(dateLayout),
				formatValue(reading.Value), unit,
				sanitizeCell(reading.Note),
			)
		}
	}

	b.WriteString("\n## Medications\n\n")
	if len(r.Data.Medications) == 0 {
		b.WriteString("None in this period.\n")
	} else {
		b.WriteString("| Name | Dosage | Frequency | Start | End | Status |\n|---|---|---|---|---|---|\n")
		for _, m := range r.Data.Medications {
			end := "—"
			status := "active"
			if m.EndDate != nil {
				end = m.EndDate.UTC().Format(dateLayout)
			}
			if !m.Active {
				status = "stopped"
			}
			dosage := formatValue(m.Dosage)
			if m.DoseUnit != "" {
				dosage += " " + sanitizeCell(m.DoseUnit)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				sanitizeCell(m.Name), dosage, sanitizeCell(m.Frequency),
				m.StartDate.UTC().Format(dateLayout), end, status,
			)
		}
	}

	b.WriteString("\n## Symptoms\n\n")
	if len(r.Data.Symptoms) == 0 {
		b.WriteString("None in this period.\n")
	} else {
		b.WriteString("| Name | Severity | Onset | Resolved | Notes |\n|---|---|---|---|---|\n")
		for _, sym := range r.Data.Symptoms {
			resolved := "ongoing"
			if sym.ResolvedAt != nil {
				resolved = sym.ResolvedAt.UTC().Format(dateLayout)
			}
			fmt.Fprintf(&b, "| %s | %d/10 | %s | %s | %s |\n",
				sanitizeCell(sym.Name), sym.Severity,
				sym.OnsetAt.UTC().Format(dateLayout), resolved,
				sanitizeCell(sym.Notes),
			)
		}
	}

	return []byte(b.String())
}

// Filename names the export attachment from the period end date.
func Filename(r *Report, format string) string {
	ext := "json"
	if format == FormatMarkdown {
		ext = "md"
	}
	return fmt.Sprintf("vitalog-report-%s.%s", r.PeriodEnd.UTC().Format(dateLayout), ext)
}

// formatValue trims trailing zeros so steps render as 10000, not 10000.00.
func formatValue(v float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.2f", v), "0")
	return strings.TrimSuffix(s, ".")
}

// sanitizeCell makes user text safe inside a markdown table cell: control
// characters are dropped, newlines and pipes collapse to spaces.
func sanitizeCell(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '|':
			b.WriteByte(' ')
		case r < 0x20 || r == 0x7f:
			// drop
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
