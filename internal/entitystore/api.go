package entitystore

// API is the store interface shared by the classifier, the backfill tool,
// and the query surface. It allows swapping in-memory and SQLite-backed
// implementations.
type API interface {
	ResolveOrCreateCompany(input ResolveCompanyInput) (Company, bool, error)
	ResolveOrCreateBrand(input ResolveBrandInput) (Brand, bool, error)
	ResolveOrCreateVariant(input ResolveVariantInput) (ProductVariant, bool, error)
	RecordClassification(rec ClassifiedFiling) (ClassifiedFiling, bool, error)
	Classification(filingID string) (ClassifiedFiling, bool)
	Filings(filter FilingFilter) []ClassifiedFiling
	FilingsByCompany(companyKey string) []ClassifiedFiling
	Companies() []Company
	Brands(companyKey string) []Brand
	Variants(brandKey string) []ProductVariant
	MergeSuspects() []MergeSuspect
	Wipe() error
	Stats() map[string]any
}
