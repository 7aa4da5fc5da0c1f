package entitystore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joelkehle/colawatch/internal/normalize"
)

type Config struct {
	// Clock is injectable for deterministic tests; defaults to time.Now.
	Clock func() time.Time
	// MaxSpellingsPerKey caps how many distinct raw spellings are retained
	// per company key for merge review.
	MaxSpellingsPerKey int
}

// Store is the in-memory implementation of API. A single mutex makes every
// resolve-or-create atomic per key: concurrent writers for the same key are
// serialized, and the loser observes the winner's result instead of erroring.
type Store struct {
	mu sync.Mutex

	cfg Config

	companies map[string]*Company
	brands    map[string]*Brand
	variants  map[string]*ProductVariant

	brandsByCompany map[string][]string
	variantsByBrand map[string][]string

	classifications map[string]*ClassifiedFiling
	classOrder      []string

	spellings map[string][]string
}

func NewStore(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxSpellingsPerKey <= 0 {
		cfg.MaxSpellingsPerKey = 8
	}
	s := &Store{cfg: cfg}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.companies = map[string]*Company{}
	s.brands = map[string]*Brand{}
	s.variants = map[string]*ProductVariant{}
	s.brandsByCompany = map[string][]string{}
	s.variantsByBrand = map[string][]string{}
	s.classifications = map[string]*ClassifiedFiling{}
	s.classOrder = nil
	s.spellings = map[string][]string{}
}

func (s *Store) now() time.Time {
	return s.cfg.Clock().UTC()
}

// observationWins reports whether an observation at (date, filingID) is
// canonically earlier than the stored (firstSeen, firstFilingID). Ties on
// date break by filing id ascending, a value intrinsic to the filing, so
// convergence does not depend on arrival order.
func observationWins(date time.Time, filingID string, firstSeen time.Time, firstFilingID string) bool {
	if date.Before(firstSeen) {
		return true
	}
	if date.Equal(firstSeen) && filingID != "" && (firstFilingID == "" || filingID < firstFilingID) {
		return true
	}
	return false
}

func (s *Store) ResolveOrCreateCompany(input ResolveCompanyInput) (Company, bool, error) {
	if strings.TrimSpace(input.Key) == "" {
		return Company{}, false, NewValidationError("company key is required")
	}
	if input.ObservedDate.IsZero() {
		return Company{}, false, NewValidationError("observed date is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordSpellingLocked(input.Key, input.DisplayName)

	c, ok := s.companies[input.Key]
	if !ok {
		c = &Company{
			Key:           input.Key,
			DisplayName:   strings.TrimSpace(input.DisplayName),
			FirstSeen:     input.ObservedDate.UTC(),
			FirstFilingID: input.FilingID,
		}
		s.companies[input.Key] = c
		return *c, true, nil
	}
	if observationWins(input.ObservedDate.UTC(), input.FilingID, c.FirstSeen, c.FirstFilingID) {
		c.FirstSeen = input.ObservedDate.UTC()
		c.FirstFilingID = input.FilingID
		c.DisplayName = strings.TrimSpace(input.DisplayName)
	}
	return *c, false, nil
}

func (s *Store) ResolveOrCreateBrand(input ResolveBrandInput) (Brand, bool, error) {
	if strings.TrimSpace(input.Key) == "" {
		return Brand{}, false, NewValidationError("brand key is required")
	}
	if input.ObservedDate.IsZero() {
		return Brand{}, false, NewValidationError("observed date is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[input.CompanyKey]; !ok {
		return Brand{}, false, NewNotFoundError(fmt.Sprintf("company %q not found", input.CompanyKey))
	}

	b, ok := s.brands[input.Key]
	if !ok {
		b = &Brand{
			Key:           input.Key,
			CompanyKey:    input.CompanyKey,
			DisplayName:   strings.TrimSpace(input.DisplayName),
			FirstSeen:     input.ObservedDate.UTC(),
			FirstFilingID: input.FilingID,
		}
		s.brands[input.Key] = b
		s.brandsByCompany[input.CompanyKey] = append(s.brandsByCompany[input.CompanyKey], input.Key)
		return *b, true, nil
	}
	if observationWins(input.ObservedDate.UTC(), input.FilingID, b.FirstSeen, b.FirstFilingID) {
		b.FirstSeen = input.ObservedDate.UTC()
		b.FirstFilingID = input.FilingID
		b.DisplayName = strings.TrimSpace(input.DisplayName)
	}
	return *b, false, nil
}

func (s *Store) ResolveOrCreateVariant(input ResolveVariantInput) (ProductVariant, bool, error) {
	if strings.TrimSpace(input.Key) == "" {
		return ProductVariant{}, false, NewValidationError("variant key is required")
	}
	if input.ObservedDate.IsZero() {
		return ProductVariant{}, false, NewValidationError("observed date is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brands[input.BrandKey]; !ok {
		return ProductVariant{}, false, NewNotFoundError(fmt.Sprintf("brand %q not found", input.BrandKey))
	}

	v, ok := s.variants[input.Key]
	if !ok {
		v = &ProductVariant{
			Key:           input.Key,
			BrandKey:      input.BrandKey,
			FirstSeen:     input.ObservedDate.UTC(),
			FirstFilingID: input.FilingID,
		}
		s.variants[input.Key] = v
		s.variantsByBrand[input.BrandKey] = append(s.variantsByBrand[input.BrandKey], input.Key)
		return *v, true, nil
	}
	if observationWins(input.ObservedDate.UTC(), input.FilingID, v.FirstSeen, v.FirstFilingID) {
		v.FirstSeen = input.ObservedDate.UTC()
		v.FirstFilingID = input.FilingID
	}
	return *v, false, nil
}

// RecordClassification appends one filing's outcome to the audit trail. A
// repeated filing id returns the stored record unchanged with dup=true; the
// signal is never re-derived.
func (s *Store) RecordClassification(rec ClassifiedFiling) (ClassifiedFiling, bool, error) {
	if strings.TrimSpace(rec.Filing.FilingID) == "" {
		return ClassifiedFiling{}, false, NewValidationError("filing id is required")
	}
	if rec.Signal == "" {
		return ClassifiedFiling{}, false, NewValidationError("signal is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.classifications[rec.Filing.FilingID]; ok {
		return *existing, true, nil
	}
	if rec.ClassifiedAt.IsZero() {
		rec.ClassifiedAt = s.now()
	}
	stored := rec
	s.classifications[rec.Filing.FilingID] = &stored
	s.classOrder = append(s.classOrder, rec.Filing.FilingID)
	return stored, false, nil
}

func (s *Store) Classification(filingID string) (ClassifiedFiling, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.classifications[filingID]
	if !ok {
		return ClassifiedFiling{}, false
	}
	return *rec, true
}

func (s *Store) Filings(filter FilingFilter) []ClassifiedFiling {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []ClassifiedFiling{}
	for _, id := range s.classOrder {
		rec := s.classifications[id]
		if filter.Signal != "" && rec.Signal != filter.Signal {
			continue
		}
		if filter.CompanyKey != "" && rec.CompanyKey != filter.CompanyKey {
			continue
		}
		if !filter.From.IsZero() && rec.Filing.ApprovedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && rec.Filing.ApprovedAt.After(filter.To) {
			continue
		}
		if filter.LowConfidenceOnly && !rec.LowConfidence {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Filing.ApprovedAt.Equal(out[j].Filing.ApprovedAt) {
			return out[i].Filing.ApprovedAt.Before(out[j].Filing.ApprovedAt)
		}
		return out[i].Filing.FilingID < out[j].Filing.FilingID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (s *Store) FilingsByCompany(companyKey string) []ClassifiedFiling {
	return s.Filings(FilingFilter{CompanyKey: companyKey})
}

func (s *Store) Companies() []Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Store) Brands(companyKey string) []Brand {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.brandsByCompany[companyKey]
	out := make([]Brand, 0, len(keys))
	for _, k := range keys {
		out = append(out, *s.brands[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Store) Variants(brandKey string) []ProductVariant {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.variantsByBrand[brandKey]
	out := make([]ProductVariant, 0, len(keys))
	for _, k := range keys {
		out = append(out, *s.variants[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MergeSuspects lists company keys whose observed raw spellings differ beyond
// case, whitespace, and punctuation, i.e. names the suffix table merged. Whether
// such spellings are really one filer is not decidable from filing text
// alone, so the key is surfaced for manual review, never merged or split.
func (s *Store) MergeSuspects() []MergeSuspect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []MergeSuspect{}
	for key, sp := range s.spellings {
		if !spellingFoldsDiverge(sp) {
			continue
		}
		out = append(out, MergeSuspect{
			CompanyKey: key,
			Spellings:  append([]string{}, sp...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyKey < out[j].CompanyKey })
	return out
}

func spellingFoldsDiverge(spellings []string) bool {
	if len(spellings) < 2 {
		return false
	}
	first := normalize.Fold(spellings[0])
	for _, sp := range spellings[1:] {
		if normalize.Fold(sp) != first {
			return true
		}
	}
	return false
}

// Wipe clears all entities and classifications. Used by the recompute path;
// normalization-rule changes invalidate every derived key.
func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

func (s *Store) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	lowConfidence := 0
	for _, rec := range s.classifications {
		if rec.LowConfidence {
			lowConfidence++
		}
	}
	return map[string]any{
		"companies":       len(s.companies),
		"brands":          len(s.brands),
		"variants":        len(s.variants),
		"classifications": len(s.classifications),
		"low_confidence":  lowConfidence,
		"merge_suspects":  s.mergeSuspectCountLocked(),
	}
}

func (s *Store) mergeSuspectCountLocked() int {
	n := 0
	for _, sp := range s.spellings {
		if spellingFoldsDiverge(sp) {
			n++
		}
	}
	return n
}

func (s *Store) recordSpellingLocked(key, displayName string) {
	sp := strings.TrimSpace(displayName)
	if sp == "" {
		return
	}
	existing := s.spellings[key]
	for _, have := range existing {
		if have == sp {
			return
		}
	}
	if len(existing) >= s.cfg.MaxSpellingsPerKey {
		return
	}
	s.spellings[key] = append(existing, sp)
}

// Ensure Store satisfies the API interface at compile time.
var _ API = (*Store)(nil)
