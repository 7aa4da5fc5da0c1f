// Package classify orders incoming filings and derives the novelty signal
// for each one against the entity store.
package classify

import (
	"sort"

	"github.com/joelkehle/colawatch/internal/entitystore"
)

// Sequence produces the canonical processing order: ascending approval date,
// ties broken by filing id ascending. This ordering is the definition of
// "first-seen": whichever filing sorts earliest is the one that establishes
// an entity. Both sort keys are intrinsic to the filing, so splitting the
// same input across batch windows cannot change the order. Duplicate filing
// ids collapse to one occurrence.
func Sequence(filings []entitystore.Filing) []entitystore.Filing {
	sorted := append([]entitystore.Filing(nil), filings...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ApprovedAt.Equal(sorted[j].ApprovedAt) {
			return sorted[i].ApprovedAt.Before(sorted[j].ApprovedAt)
		}
		return sorted[i].FilingID < sorted[j].FilingID
	})

	out := make([]entitystore.Filing, 0, len(sorted))
	seen := map[string]struct{}{}
	for _, f := range sorted {
		if f.FilingID != "" {
			if _, dup := seen[f.FilingID]; dup {
				continue
			}
			seen[f.FilingID] = struct{}{}
		}
		out = append(out, f)
	}
	return out
}
