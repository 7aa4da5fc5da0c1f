package classify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joelkehle/colawatch/internal/entitystore"
	"github.com/joelkehle/colawatch/internal/normalize"
)

// ProgressFn receives per-filing progress while a batch runs.
type ProgressFn func(filingID, message string)

// Outcome is the result of classifying one filing.
type Outcome struct {
	FilingID       string                       `json:"filing_id"`
	Signal         entitystore.Signal           `json:"signal"`
	CompanyKey     string                       `json:"company_key"`
	BrandKey       string                       `json:"brand_key"`
	VariantKey     string                       `json:"variant_key"`
	CompanyCreated bool                         `json:"company_created"`
	BrandCreated   bool                         `json:"brand_created"`
	VariantCreated bool                         `json:"variant_created"`
	LowConfidence  bool                         `json:"low_confidence,omitempty"`
	Duplicate      bool                         `json:"duplicate,omitempty"`
	Record         entitystore.ClassifiedFiling `json:"record"`
}

// RejectedFiling is a malformed input record the batch skipped.
type RejectedFiling struct {
	Filing entitystore.Filing `json:"filing"`
	Reason string             `json:"reason"`
}

// BatchResult aggregates one batch run.
type BatchResult struct {
	StartedAt     time.Time                  `json:"started_at"`
	CompletedAt   time.Time                  `json:"completed_at"`
	Total         int                        `json:"total"`
	Duplicates    int                        `json:"duplicates"`
	LowConfidence int                        `json:"low_confidence"`
	BySignal      map[entitystore.Signal]int `json:"by_signal"`
	Rejected      []RejectedFiling           `json:"rejected,omitempty"`
	Outcomes      []Outcome                  `json:"outcomes"`
}

// Classifier derives one Signal per filing and performs the entity
// resolution side effects against the store.
type Classifier struct {
	store entitystore.API
}

func NewClassifier(store entitystore.API) *Classifier {
	return &Classifier{store: store}
}

// ClassifyOne classifies a single filing, assumed to arrive in the order
// established by Sequence. A filing id already on record is a no-op: the
// stored outcome is returned untouched rather than re-derived.
//
// All three resolve-or-create calls run unconditionally even when a coarser
// signal already determines the outcome; a NEW_COMPANY filing still
// establishes its brand and variant baselines for later filings.
func (c *Classifier) ClassifyOne(ctx context.Context, f entitystore.Filing) (Outcome, error) {
	if err := validateFiling(f); err != nil {
		return Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if rec, ok := c.store.Classification(f.FilingID); ok {
		return outcomeFromRecord(rec, true), nil
	}

	companyKey := normalize.Key(f.CompanyName)
	brandNameKey := normalize.Key(f.BrandName)
	brandKey := normalize.BrandKey(companyKey, f.BrandName)
	variantKey := normalize.VariantKey(brandKey, f.FancifulName, f.ClassType, f.Origin)
	lowConfidence := normalize.IsSentinel(companyKey) || normalize.IsSentinel(brandNameKey)

	_, companyNew, err := c.store.ResolveOrCreateCompany(entitystore.ResolveCompanyInput{
		Key:          companyKey,
		DisplayName:  strings.TrimSpace(f.CompanyName),
		ObservedDate: f.ApprovedAt,
		FilingID:     f.FilingID,
	})
	if err != nil {
		return Outcome{}, err
	}
	_, brandNew, err := c.store.ResolveOrCreateBrand(entitystore.ResolveBrandInput{
		CompanyKey:   companyKey,
		Key:          brandKey,
		DisplayName:  strings.TrimSpace(f.BrandName),
		ObservedDate: f.ApprovedAt,
		FilingID:     f.FilingID,
	})
	if err != nil {
		return Outcome{}, err
	}
	_, variantNew, err := c.store.ResolveOrCreateVariant(entitystore.ResolveVariantInput{
		BrandKey:     brandKey,
		Key:          variantKey,
		ObservedDate: f.ApprovedAt,
		FilingID:     f.FilingID,
	})
	if err != nil {
		return Outcome{}, err
	}

	// Most-specific-wins with company precedence: a new company implies its
	// brand and variant are new, and the coarser signal is the one
	// downstream reporting keys off of.
	signal := entitystore.SignalRefile
	switch {
	case companyNew:
		signal = entitystore.SignalNewCompany
	case brandNew:
		signal = entitystore.SignalNewBrand
	case variantNew:
		signal = entitystore.SignalNewSKU
	}

	rec, dup, err := c.store.RecordClassification(entitystore.ClassifiedFiling{
		Filing:        f,
		Signal:        signal,
		CompanyKey:    companyKey,
		BrandKey:      brandKey,
		VariantKey:    variantKey,
		LowConfidence: lowConfidence,
	})
	if err != nil {
		return Outcome{}, err
	}
	if dup {
		// Lost a record race; the stored outcome stands.
		return outcomeFromRecord(rec, true), nil
	}

	return Outcome{
		FilingID:       f.FilingID,
		Signal:         signal,
		CompanyKey:     companyKey,
		BrandKey:       brandKey,
		VariantKey:     variantKey,
		CompanyCreated: companyNew,
		BrandCreated:   brandNew,
		VariantCreated: variantNew,
		LowConfidence:  lowConfidence,
		Record:         rec,
	}, nil
}

// ClassifyBatch sequences filings and classifies them one at a time.
// Classification of filing N may depend on entities created by filing N-1,
// so there is no parallelism within a batch. Malformed records are collected
// in BatchResult.Rejected; other errors abort the batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, filings []entitystore.Filing, progress ProgressFn) (BatchResult, error) {
	res := BatchResult{
		StartedAt: time.Now().UTC(),
		BySignal:  map[entitystore.Signal]int{},
	}

	for _, f := range Sequence(filings) {
		if err := ctx.Err(); err != nil {
			res.CompletedAt = time.Now().UTC()
			return res, err
		}

		out, err := c.ClassifyOne(ctx, f)
		if err != nil {
			var se *entitystore.Error
			if errors.As(err, &se) && se.Code == entitystore.CodeValidation {
				res.Rejected = append(res.Rejected, RejectedFiling{Filing: f, Reason: se.Message})
				emit(progress, f.FilingID, "rejected: "+se.Message)
				continue
			}
			res.CompletedAt = time.Now().UTC()
			return res, err
		}

		res.Total++
		res.Outcomes = append(res.Outcomes, out)
		if out.Duplicate {
			res.Duplicates++
			emit(progress, out.FilingID, "already classified, skipped")
			continue
		}
		res.BySignal[out.Signal]++
		if out.LowConfidence {
			res.LowConfidence++
		}
		emit(progress, out.FilingID, string(out.Signal))
	}

	res.CompletedAt = time.Now().UTC()
	return res, nil
}

func emit(progress ProgressFn, filingID, message string) {
	if progress != nil {
		progress(filingID, message)
	}
}

func validateFiling(f entitystore.Filing) error {
	if strings.TrimSpace(f.FilingID) == "" {
		return entitystore.NewValidationError("filing id is required")
	}
	if f.ApprovedAt.IsZero() {
		return entitystore.NewValidationError("approval date is required")
	}
	return nil
}

func outcomeFromRecord(rec entitystore.ClassifiedFiling, duplicate bool) Outcome {
	return Outcome{
		FilingID:      rec.Filing.FilingID,
		Signal:        rec.Signal,
		CompanyKey:    rec.CompanyKey,
		BrandKey:      rec.BrandKey,
		VariantKey:    rec.VariantKey,
		LowConfidence: rec.LowConfidence,
		Duplicate:     duplicate,
		Record:        rec,
	}
}
