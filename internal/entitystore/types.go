package entitystore

import "time"

// Signal is the novelty classification assigned to a filing. Assigned once
// and never mutated; the classification table is an append-only audit trail.
type Signal string

const (
	SignalNewCompany Signal = "NEW_COMPANY"
	SignalNewBrand   Signal = "NEW_BRAND"
	SignalNewSKU     Signal = "NEW_SKU"
	SignalRefile     Signal = "REFILE"
)

// Filing is one submitted label-approval record as received from the
// ingestion pipeline. Immutable once ingested.
type Filing struct {
	FilingID     string    `json:"filing_id"`
	CompanyName  string    `json:"company_name"`
	BrandName    string    `json:"brand_name"`
	FancifulName string    `json:"fanciful_name,omitempty"`
	ClassType    string    `json:"class_type"`
	Origin       string    `json:"origin"`
	SubmittedAt  time.Time `json:"submitted_at,omitempty"`
	ApprovedAt   time.Time `json:"approved_at"`
}

// Company is a canonical entity keyed by normalized name. DisplayName is the
// raw spelling of the filing that established FirstSeen.
type Company struct {
	Key           string    `json:"key"`
	DisplayName   string    `json:"display_name"`
	FirstSeen     time.Time `json:"first_seen"`
	FirstFilingID string    `json:"first_filing_id"`
}

// Brand is scoped to exactly one company; the same brand text under two
// companies yields two distinct Brand entities.
type Brand struct {
	Key           string    `json:"key"`
	CompanyKey    string    `json:"company_key"`
	DisplayName   string    `json:"display_name"`
	FirstSeen     time.Time `json:"first_seen"`
	FirstFilingID string    `json:"first_filing_id"`
}

// ProductVariant is the most granular entity: brand plus normalized fanciful
// name, class/type code, and origin.
type ProductVariant struct {
	Key           string    `json:"key"`
	BrandKey      string    `json:"brand_key"`
	FirstSeen     time.Time `json:"first_seen"`
	FirstFilingID string    `json:"first_filing_id"`
}

// ClassifiedFiling is the filing record augmented with its signal and
// resolved entity keys, as exposed to downstream consumers.
type ClassifiedFiling struct {
	Filing        Filing    `json:"filing"`
	Signal        Signal    `json:"signal"`
	CompanyKey    string    `json:"company_key"`
	BrandKey      string    `json:"brand_key"`
	VariantKey    string    `json:"variant_key"`
	LowConfidence bool      `json:"low_confidence,omitempty"`
	ClassifiedAt  time.Time `json:"classified_at"`
}

// MergeSuspect surfaces a company key that has accumulated more than one
// distinct raw spelling. Suspected over-merges are reported for manual
// review, never merged or split automatically.
type MergeSuspect struct {
	CompanyKey string   `json:"company_key"`
	Spellings  []string `json:"spellings"`
}

type ResolveCompanyInput struct {
	Key          string
	DisplayName  string
	ObservedDate time.Time
	FilingID     string
}

type ResolveBrandInput struct {
	CompanyKey   string
	Key          string
	DisplayName  string
	ObservedDate time.Time
	FilingID     string
}

type ResolveVariantInput struct {
	BrandKey     string
	Key          string
	ObservedDate time.Time
	FilingID     string
}

// FilingFilter selects classified filings for the read-only query surface.
// Zero values mean "no constraint" except LowConfidenceOnly, which narrows
// to flagged records when true.
type FilingFilter struct {
	Signal            Signal
	CompanyKey        string
	From              time.Time
	To                time.Time
	LowConfidenceOnly bool
	Limit             int
}
