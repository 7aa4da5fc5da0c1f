package queryapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joelkehle/colawatch/internal/classify"
	"github.com/joelkehle/colawatch/internal/entitystore"
)

func newTestServer(t *testing.T) (*httptest.Server, entitystore.API) {
	t.Helper()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := entitystore.NewStore(entitystore.Config{
		Clock: func() time.Time { return now },
	})

	history := []entitystore.Filing{
		{FilingID: "f-001", CompanyName: "Acme Spirits LLC", BrandName: "Acme Gold", ClassType: "901", Origin: "US",
			ApprovedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{FilingID: "f-002", CompanyName: "ACME SPIRITS, LLC.", BrandName: "Acme Gold", ClassType: "901", Origin: "US",
			ApprovedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{FilingID: "f-003", CompanyName: "", BrandName: "Mystery Label", ClassType: "901", Origin: "US",
			ApprovedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	if _, err := classify.NewClassifier(store).ClassifyBatch(context.Background(), history, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	srv := httptest.NewServer(NewServer(store, log.New(io.Discard, "", 0)))
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("get %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return payload
}

func TestGetFilingByID(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := getJSON(t, srv.URL+"/v1/filings/f-001", 200)
	if payload["signal"] != "NEW_COMPANY" {
		t.Fatalf("unexpected signal: %v", payload["signal"])
	}
	if payload["company_key"] != "ACME SPIRITS LLC" {
		t.Fatalf("unexpected company key: %v", payload["company_key"])
	}
}

func TestGetFilingNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := getJSON(t, srv.URL+"/v1/filings/f-999", 404)
	errObj := payload["error"].(map[string]any)
	if errObj["code"] != "not_found" {
		t.Fatalf("unexpected error code: %v", errObj["code"])
	}
}

func TestListFilingsBySignal(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := getJSON(t, srv.URL+"/v1/filings?signal=REFILE", 200)
	if payload["count"].(float64) != 1 {
		t.Fatalf("expected 1 refile, got %v", payload["count"])
	}
}

func TestListFilingsByTimeWindow(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := getJSON(t, srv.URL+"/v1/filings?from=2025-01-15&to=2025-02-15", 200)
	filings := payload["filings"].([]any)
	if len(filings) != 1 {
		t.Fatalf("expected 1 filing in window, got %d", len(filings))
	}
}

func TestListFilingsLowConfidence(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := getJSON(t, srv.URL+"/v1/filings?low_confidence=true", 200)
	filings := payload["filings"].([]any)
	if len(filings) != 1 {
		t.Fatalf("expected 1 low-confidence filing, got %d", len(filings))
	}
	rec := filings[0].(map[string]any)["filing"].(map[string]any)
	if rec["filing_id"] != "f-003" {
		t.Fatalf("unexpected low-confidence filing: %v", rec["filing_id"])
	}
}

func TestListFilingsRejectsUnknownSignal(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := getJSON(t, srv.URL+"/v1/filings?signal=BOGUS", 400)
	errObj := payload["error"].(map[string]any)
	if errObj["code"] != "validation" {
		t.Fatalf("unexpected error code: %v", errObj["code"])
	}
}

func TestCompanyRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := getJSON(t, srv.URL+"/v1/companies", 200)
	if payload["count"].(float64) != 2 { // acme plus the sentinel bucket
		t.Fatalf("expected 2 companies, got %v", payload["count"])
	}

	payload = getJSON(t, srv.URL+"/v1/companies/ACME%20SPIRITS%20LLC/brands", 200)
	if payload["count"].(float64) != 1 {
		t.Fatalf("expected 1 acme brand, got %v", payload["count"])
	}

	payload = getJSON(t, srv.URL+"/v1/companies/ACME%20SPIRITS%20LLC/filings", 200)
	if payload["count"].(float64) != 2 {
		t.Fatalf("expected 2 acme filings, got %v", payload["count"])
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := getJSON(t, srv.URL+"/healthz", 200)
	if payload["ok"] != true {
		t.Fatalf("healthz not ok: %v", payload)
	}
	stats := payload["stats"].(map[string]any)
	if stats["classifications"].(float64) != 3 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestMergeSuspectsRoute(t *testing.T) {
	srv, store := newTestServer(t)

	// Add a spelling the suffix table merges so the key becomes a suspect.
	if _, _, err := store.ResolveOrCreateCompany(entitystore.ResolveCompanyInput{
		Key: "ACME SPIRITS LLC", DisplayName: "Acme Spirits Limited Liability Company",
		ObservedDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), FilingID: "f-010",
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	payload := getJSON(t, srv.URL+"/v1/quality/merge-suspects", 200)
	if payload["count"].(float64) != 1 {
		t.Fatalf("expected 1 merge suspect, got %v", payload["count"])
	}
}
