// Package backfill replays the full filing history against an empty entity
// store to (re)establish first-seen baselines, and diffs the recomputed
// signals against previously recorded history. History is never overwritten
// implicitly; applying a recompute is the caller's explicit action.
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joelkehle/colawatch/internal/classify"
	"github.com/joelkehle/colawatch/internal/entitystore"
)

// Result is one completed recompute run.
type Result struct {
	RunID string               `json:"run_id"`
	Batch classify.BatchResult `json:"batch"`
}

// Run wipes the store and classifies the complete history from scratch,
// producing signals identical to what live processing would have assigned
// had it run in real time from the beginning.
func Run(ctx context.Context, store entitystore.API, history []entitystore.Filing, progress classify.ProgressFn) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	if err := store.Wipe(); err != nil {
		return res, fmt.Errorf("wipe store: %w", err)
	}
	batch, err := classify.NewClassifier(store).ClassifyBatch(ctx, history, progress)
	res.Batch = batch
	if err != nil {
		return res, fmt.Errorf("replay history: %w", err)
	}
	return res, nil
}

// Change is one filing whose recomputed outcome differs from the recorded
// one, typically after a normalization-rule change regrouped keys.
type Change struct {
	FilingID       string             `json:"filing_id"`
	PrevSignal     entitystore.Signal `json:"prev_signal"`
	NewSignal      entitystore.Signal `json:"new_signal"`
	PrevCompanyKey string             `json:"prev_company_key,omitempty"`
	NewCompanyKey  string             `json:"new_company_key,omitempty"`
	PrevVariantKey string             `json:"prev_variant_key,omitempty"`
	NewVariantKey  string             `json:"new_variant_key,omitempty"`
}

// Report is the divergence between recorded history and a recompute run.
// An empty report means determinism held.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Previous    int       `json:"previous"`
	Recomputed  int       `json:"recomputed"`
	Changes     []Change  `json:"changes,omitempty"`
	Added       []string  `json:"added,omitempty"`
	Missing     []string  `json:"missing,omitempty"`
}

func (r Report) Empty() bool {
	return len(r.Changes) == 0 && len(r.Added) == 0 && len(r.Missing) == 0
}

// Diff compares previously recorded classifications with a recompute.
// Both inputs come from Filings(FilingFilter{}), which orders by approval
// date then filing id, so the report ordering is deterministic.
func Diff(runID string, previous, recomputed []entitystore.ClassifiedFiling) Report {
	rep := Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Previous:    len(previous),
		Recomputed:  len(recomputed),
	}

	prevByID := make(map[string]entitystore.ClassifiedFiling, len(previous))
	for _, rec := range previous {
		prevByID[rec.Filing.FilingID] = rec
	}

	seen := map[string]struct{}{}
	for _, rec := range recomputed {
		seen[rec.Filing.FilingID] = struct{}{}
		prev, ok := prevByID[rec.Filing.FilingID]
		if !ok {
			rep.Added = append(rep.Added, rec.Filing.FilingID)
			continue
		}
		if prev.Signal == rec.Signal && prev.CompanyKey == rec.CompanyKey && prev.VariantKey == rec.VariantKey {
			continue
		}
		rep.Changes = append(rep.Changes, Change{
			FilingID:       rec.Filing.FilingID,
			PrevSignal:     prev.Signal,
			NewSignal:      rec.Signal,
			PrevCompanyKey: prev.CompanyKey,
			NewCompanyKey:  rec.CompanyKey,
			PrevVariantKey: prev.VariantKey,
			NewVariantKey:  rec.VariantKey,
		})
	}
	for _, rec := range previous {
		if _, ok := seen[rec.Filing.FilingID]; !ok {
			rep.Missing = append(rep.Missing, rec.Filing.FilingID)
		}
	}
	return rep
}
