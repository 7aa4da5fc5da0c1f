package entitystore

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T, dbPath string) *SQLiteStore {
	t.Helper()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSQLiteStore(dbPath, Config{
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	return s
}

func seedAcme(t *testing.T, s API) {
	t.Helper()
	if _, _, err := s.ResolveOrCreateCompany(ResolveCompanyInput{
		Key: "ACME SPIRITS LLC", DisplayName: "Acme Spirits LLC",
		ObservedDate: day(t, "2025-01-01"), FilingID: "f-001",
	}); err != nil {
		t.Fatalf("company: %v", err)
	}
	if _, _, err := s.ResolveOrCreateBrand(ResolveBrandInput{
		CompanyKey: "ACME SPIRITS LLC", Key: "ACME SPIRITS LLC\x1fACME GOLD",
		DisplayName: "Acme Gold", ObservedDate: day(t, "2025-01-01"), FilingID: "f-001",
	}); err != nil {
		t.Fatalf("brand: %v", err)
	}
	if _, _, err := s.ResolveOrCreateVariant(ResolveVariantInput{
		BrandKey: "ACME SPIRITS LLC\x1fACME GOLD", Key: "ACME SPIRITS LLC\x1fACME GOLD\x1f-\x1f901\x1fUS",
		ObservedDate: day(t, "2025-01-01"), FilingID: "f-001",
	}); err != nil {
		t.Fatalf("variant: %v", err)
	}
	if _, _, err := s.RecordClassification(ClassifiedFiling{
		Filing: Filing{
			FilingID: "f-001", CompanyName: "Acme Spirits LLC", BrandName: "Acme Gold",
			ClassType: "901", Origin: "US", ApprovedAt: day(t, "2025-01-01"),
		},
		Signal:     SignalNewCompany,
		CompanyKey: "ACME SPIRITS LLC",
		BrandKey:   "ACME SPIRITS LLC\x1fACME GOLD",
		VariantKey: "ACME SPIRITS LLC\x1fACME GOLD\x1f-\x1f901\x1fUS",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "filings.db")

	s := newTestSQLiteStore(t, dbPath)
	seedAcme(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newTestSQLiteStore(t, dbPath)
	defer reopened.Close()

	companies := reopened.Companies()
	if len(companies) != 1 {
		t.Fatalf("expected 1 company after reopen, got %d", len(companies))
	}
	if !companies[0].FirstSeen.Equal(day(t, "2025-01-01")) {
		t.Fatalf("first seen lost on reopen: %s", companies[0].FirstSeen)
	}
	if companies[0].DisplayName != "Acme Spirits LLC" {
		t.Fatalf("display name lost: %q", companies[0].DisplayName)
	}

	rec, ok := reopened.Classification("f-001")
	if !ok {
		t.Fatal("classification lost on reopen")
	}
	if rec.Signal != SignalNewCompany {
		t.Fatalf("signal lost: %s", rec.Signal)
	}
	if rec.Filing.BrandName != "Acme Gold" {
		t.Fatalf("filing fields lost: %#v", rec.Filing)
	}

	if got := len(reopened.Brands("ACME SPIRITS LLC")); got != 1 {
		t.Fatalf("brands lost: %d", got)
	}
	if got := len(reopened.Variants("ACME SPIRITS LLC\x1fACME GOLD")); got != 1 {
		t.Fatalf("variants lost: %d", got)
	}
}

func TestSQLiteStoreIdempotentAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "filings.db")

	s := newTestSQLiteStore(t, dbPath)
	seedAcme(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newTestSQLiteStore(t, dbPath)
	defer reopened.Close()

	// Re-resolving after a restart must not report a create or move first-seen.
	c, created, err := reopened.ResolveOrCreateCompany(ResolveCompanyInput{
		Key: "ACME SPIRITS LLC", DisplayName: "ACME SPIRITS, LLC.",
		ObservedDate: day(t, "2025-02-01"), FilingID: "f-002",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if created {
		t.Fatal("reopen lost company; resolve created a duplicate")
	}
	if !c.FirstSeen.Equal(day(t, "2025-01-01")) {
		t.Fatalf("first seen moved after reopen: %s", c.FirstSeen)
	}

	_, dup, err := reopened.RecordClassification(ClassifiedFiling{
		Filing: Filing{FilingID: "f-001", ApprovedAt: day(t, "2025-01-01")},
		Signal: SignalRefile, CompanyKey: "ACME SPIRITS LLC",
	})
	if err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if !dup {
		t.Fatal("re-processing a classified filing must be a no-op")
	}
	rec, _ := reopened.Classification("f-001")
	if rec.Signal != SignalNewCompany {
		t.Fatalf("recorded signal mutated across reopen: %s", rec.Signal)
	}
}

func TestSQLiteStoreWipePersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "filings.db")

	s := newTestSQLiteStore(t, dbPath)
	seedAcme(t, s)
	if err := s.Wipe(); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newTestSQLiteStore(t, dbPath)
	defer reopened.Close()
	if got := len(reopened.Companies()); got != 0 {
		t.Fatalf("wipe did not persist, %d companies after reopen", got)
	}
	if _, ok := reopened.Classification("f-001"); ok {
		t.Fatal("classification survived persisted wipe")
	}
}

func TestSQLiteStoreSpellingsSurviveReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "filings.db")

	s := newTestSQLiteStore(t, dbPath)
	for i, name := range []string{"Acme Spirits Incorporated", "Acme Spirits Inc"} {
		if _, _, err := s.ResolveOrCreateCompany(ResolveCompanyInput{
			Key: "ACME SPIRITS INC", DisplayName: name,
			ObservedDate: day(t, "2025-01-01").AddDate(0, 0, i), FilingID: "f-001",
		}); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newTestSQLiteStore(t, dbPath)
	defer reopened.Close()
	suspects := reopened.MergeSuspects()
	if len(suspects) != 1 {
		t.Fatalf("expected 1 merge suspect after reopen, got %d", len(suspects))
	}
	if len(suspects[0].Spellings) != 2 {
		t.Fatalf("spellings lost on reopen: %#v", suspects[0])
	}
}
