package entitystore

import (
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements API with SQLite-backed persistence. It delegates
// all resolution logic to an embedded in-memory Store and persists entities,
// classifications, and observed spellings with write-through semantics. The
// full state is loaded back into memory on open.
type SQLiteStore struct {
	inner *Store
	db    *sqlx.DB
	mu    sync.Mutex
}

func NewSQLiteStore(dbPath string, cfg Config) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{
		inner: NewStore(cfg),
		db:    db,
	}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- load all state from SQLite into the in-memory Store ---

func (s *SQLiteStore) loadAll() error {
	if err := s.loadCompanies(); err != nil {
		return err
	}
	if err := s.loadBrands(); err != nil {
		return err
	}
	if err := s.loadVariants(); err != nil {
		return err
	}
	if err := s.loadClassifications(); err != nil {
		return err
	}
	return s.loadSpellings()
}

func (s *SQLiteStore) loadCompanies() error {
	rows, err := s.db.Query("SELECT key, display_name, first_seen, first_filing_id FROM companies")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c Company
		var firstSeen string
		if err := rows.Scan(&c.Key, &c.DisplayName, &firstSeen, &c.FirstFilingID); err != nil {
			return err
		}
		c.FirstSeen = parseTime(firstSeen)
		s.inner.companies[c.Key] = &c
	}
	return rows.Err()
}

func (s *SQLiteStore) loadBrands() error {
	rows, err := s.db.Query("SELECT key, company_key, display_name, first_seen, first_filing_id FROM brands ORDER BY key")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var b Brand
		var firstSeen string
		if err := rows.Scan(&b.Key, &b.CompanyKey, &b.DisplayName, &firstSeen, &b.FirstFilingID); err != nil {
			return err
		}
		b.FirstSeen = parseTime(firstSeen)
		s.inner.brands[b.Key] = &b
		s.inner.brandsByCompany[b.CompanyKey] = append(s.inner.brandsByCompany[b.CompanyKey], b.Key)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadVariants() error {
	rows, err := s.db.Query("SELECT key, brand_key, first_seen, first_filing_id FROM variants ORDER BY key")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var v ProductVariant
		var firstSeen string
		if err := rows.Scan(&v.Key, &v.BrandKey, &firstSeen, &v.FirstFilingID); err != nil {
			return err
		}
		v.FirstSeen = parseTime(firstSeen)
		s.inner.variants[v.Key] = &v
		s.inner.variantsByBrand[v.BrandKey] = append(s.inner.variantsByBrand[v.BrandKey], v.Key)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadClassifications() error {
	rows, err := s.db.Query(`SELECT filing_id, company_name, brand_name, fanciful_name, class_type, origin,
		submitted_at, approved_at, signal, company_key, brand_key, variant_key,
		low_confidence, classified_at
		FROM classifications ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rec ClassifiedFiling
		var submittedAt, approvedAt, classifiedAt, signal string
		var lowConfidence int
		if err := rows.Scan(&rec.Filing.FilingID, &rec.Filing.CompanyName, &rec.Filing.BrandName,
			&rec.Filing.FancifulName, &rec.Filing.ClassType, &rec.Filing.Origin,
			&submittedAt, &approvedAt, &signal, &rec.CompanyKey, &rec.BrandKey, &rec.VariantKey,
			&lowConfidence, &classifiedAt); err != nil {
			return err
		}
		rec.Filing.SubmittedAt = parseTime(submittedAt)
		rec.Filing.ApprovedAt = parseTime(approvedAt)
		rec.ClassifiedAt = parseTime(classifiedAt)
		rec.Signal = Signal(signal)
		rec.LowConfidence = lowConfidence != 0
		stored := rec
		s.inner.classifications[rec.Filing.FilingID] = &stored
		s.inner.classOrder = append(s.inner.classOrder, rec.Filing.FilingID)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadSpellings() error {
	rows, err := s.db.Query("SELECT company_key, spelling FROM company_spellings ORDER BY company_key, spelling")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key, spelling string
		if err := rows.Scan(&key, &spelling); err != nil {
			return err
		}
		if len(s.inner.spellings[key]) < s.inner.cfg.MaxSpellingsPerKey {
			s.inner.spellings[key] = append(s.inner.spellings[key], spelling)
		}
	}
	return rows.Err()
}

// --- persist helpers ---

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) saveCompany(c Company) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO companies (key, display_name, first_seen, first_filing_id)
		VALUES (?, ?, ?, ?)`,
		c.Key, c.DisplayName, timeToString(c.FirstSeen), c.FirstFilingID)
	return err
}

func (s *SQLiteStore) saveBrand(b Brand) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO brands (key, company_key, display_name, first_seen, first_filing_id)
		VALUES (?, ?, ?, ?, ?)`,
		b.Key, b.CompanyKey, b.DisplayName, timeToString(b.FirstSeen), b.FirstFilingID)
	return err
}

func (s *SQLiteStore) saveVariant(v ProductVariant) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO variants (key, brand_key, first_seen, first_filing_id)
		VALUES (?, ?, ?, ?)`,
		v.Key, v.BrandKey, timeToString(v.FirstSeen), v.FirstFilingID)
	return err
}

func (s *SQLiteStore) saveClassification(rec ClassifiedFiling, position int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO classifications (filing_id, company_name, brand_name,
		fanciful_name, class_type, origin, submitted_at, approved_at, signal,
		company_key, brand_key, variant_key, low_confidence, classified_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Filing.FilingID,
		rec.Filing.CompanyName,
		rec.Filing.BrandName,
		rec.Filing.FancifulName,
		rec.Filing.ClassType,
		rec.Filing.Origin,
		timeToString(rec.Filing.SubmittedAt),
		timeToString(rec.Filing.ApprovedAt),
		string(rec.Signal),
		rec.CompanyKey,
		rec.BrandKey,
		rec.VariantKey,
		boolToInt(rec.LowConfidence),
		timeToString(rec.ClassifiedAt),
		position,
	)
	return err
}

func (s *SQLiteStore) saveSpelling(companyKey, spelling string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO company_spellings (company_key, spelling) VALUES (?, ?)`,
		companyKey, spelling)
	return err
}

func (s *SQLiteStore) spellingsSnapshot(companyKey string) []string {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	return append([]string{}, s.inner.spellings[companyKey]...)
}

func (s *SQLiteStore) classificationPosition(filingID string) int {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	for i := len(s.inner.classOrder) - 1; i >= 0; i-- {
		if s.inner.classOrder[i] == filingID {
			return i
		}
	}
	return len(s.inner.classOrder)
}

// --- API implementation ---

func (s *SQLiteStore) ResolveOrCreateCompany(input ResolveCompanyInput) (Company, bool, error) {
	c, created, err := s.inner.ResolveOrCreateCompany(input)
	if err != nil {
		return Company{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if perr := s.saveCompany(c); perr != nil {
		return Company{}, false, perr
	}
	for _, sp := range s.spellingsSnapshot(c.Key) {
		if perr := s.saveSpelling(c.Key, sp); perr != nil {
			return Company{}, false, perr
		}
	}
	return c, created, nil
}

func (s *SQLiteStore) ResolveOrCreateBrand(input ResolveBrandInput) (Brand, bool, error) {
	b, created, err := s.inner.ResolveOrCreateBrand(input)
	if err != nil {
		return Brand{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if perr := s.saveBrand(b); perr != nil {
		return Brand{}, false, perr
	}
	return b, created, nil
}

func (s *SQLiteStore) ResolveOrCreateVariant(input ResolveVariantInput) (ProductVariant, bool, error) {
	v, created, err := s.inner.ResolveOrCreateVariant(input)
	if err != nil {
		return ProductVariant{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if perr := s.saveVariant(v); perr != nil {
		return ProductVariant{}, false, perr
	}
	return v, created, nil
}

func (s *SQLiteStore) RecordClassification(rec ClassifiedFiling) (ClassifiedFiling, bool, error) {
	stored, dup, err := s.inner.RecordClassification(rec)
	if err != nil {
		return ClassifiedFiling{}, false, err
	}
	if !dup {
		s.mu.Lock()
		defer s.mu.Unlock()
		if perr := s.saveClassification(stored, s.classificationPosition(stored.Filing.FilingID)); perr != nil {
			return ClassifiedFiling{}, false, perr
		}
	}
	return stored, dup, nil
}

func (s *SQLiteStore) Classification(filingID string) (ClassifiedFiling, bool) {
	return s.inner.Classification(filingID)
}

func (s *SQLiteStore) Filings(filter FilingFilter) []ClassifiedFiling {
	return s.inner.Filings(filter)
}

func (s *SQLiteStore) FilingsByCompany(companyKey string) []ClassifiedFiling {
	return s.inner.FilingsByCompany(companyKey)
}

func (s *SQLiteStore) Companies() []Company {
	return s.inner.Companies()
}

func (s *SQLiteStore) Brands(companyKey string) []Brand {
	return s.inner.Brands(companyKey)
}

func (s *SQLiteStore) Variants(brandKey string) []ProductVariant {
	return s.inner.Variants(brandKey)
}

func (s *SQLiteStore) MergeSuspects() []MergeSuspect {
	return s.inner.MergeSuspects()
}

func (s *SQLiteStore) Wipe() error {
	if err := s.inner.Wipe(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, table := range []string{"company_spellings", "classifications", "variants", "brands", "companies"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Stats() map[string]any {
	return s.inner.Stats()
}

// Ensure SQLiteStore satisfies the API interface at compile time.
var _ API = (*SQLiteStore)(nil)
