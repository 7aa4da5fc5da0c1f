package backfill

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Markdown renders the divergence report for review. The report is the only
// surface through which a recompute touches recorded history: it is always
// produced, and applying the recompute stays a separate explicit action.
func (r Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Recompute Divergence Report\n\n")
	fmt.Fprintf(&b, "- Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Recorded filings: %d\n", r.Previous)
	fmt.Fprintf(&b, "- Recomputed filings: %d\n\n", r.Recomputed)

	fmt.Fprintf(&b, "## Summary\n\n")
	if r.Empty() {
		fmt.Fprintf(&b, "Recomputed history matches recorded history exactly. Nothing to apply.\n\n")
	} else {
		fmt.Fprintf(&b, "Recompute diverges from recorded history: %d changed, %d added, %d missing. ", len(r.Changes), len(r.Added), len(r.Missing))
		fmt.Fprintf(&b, "Review below before applying; recorded signals are never overwritten without an explicit apply.\n\n")
	}

	if len(r.Changes) > 0 {
		fmt.Fprintf(&b, "## Changed Signals\n\n")
		fmt.Fprintf(&b, "| Filing | Signal | Company Key | Variant Key |\n")
		fmt.Fprintf(&b, "|---|---|---|---|\n")
		for _, c := range r.Changes {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				c.FilingID,
				cell(string(c.PrevSignal), string(c.NewSignal)),
				cell(c.PrevCompanyKey, c.NewCompanyKey),
				cell(c.PrevVariantKey, c.NewVariantKey),
			)
		}
		b.WriteString("\n")
	}

	if len(r.Added) > 0 {
		fmt.Fprintf(&b, "## Added Filings\n\n")
		fmt.Fprintf(&b, "Present in the recompute but absent from recorded history:\n\n")
		for _, id := range r.Added {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "## Missing Filings\n\n")
		fmt.Fprintf(&b, "Recorded previously but absent from the recompute input:\n\n")
		for _, id := range r.Missing {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Appendix\n\n```json\n%s\n```\n", prettyJSON(r))
	return b.String()
}

// cell formats one before/after pair; unchanged values print once.
func cell(prev, next string) string {
	prev, next = escapePipes(prev), escapePipes(next)
	if prev == next {
		return prev
	}
	return fmt.Sprintf("%s → %s", prev, next)
}

func escapePipes(s string) string {
	s = strings.ReplaceAll(s, "\x1f", "/")
	return strings.ReplaceAll(s, "|", "\\|")
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
