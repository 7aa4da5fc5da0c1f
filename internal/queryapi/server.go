// Package queryapi exposes classified filings to downstream consumers
// (reporting, newsletters, video and SEO tooling). The surface is strictly
// read-only: consumers never influence classification.
package queryapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joelkehle/colawatch/internal/entitystore"
)

type Server struct {
	store  entitystore.API
	logger *log.Logger
}

func NewServer(store entitystore.API, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.New(os.Stdout, "query-api ", log.LstdFlags)
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Get("/healthz", s.handleHealthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/filings", s.handleListFilings)
		r.Get("/filings/{filingID}", s.handleGetFiling)
		r.Get("/companies", s.handleListCompanies)
		r.Get("/companies/{companyKey}/brands", s.handleListBrands)
		r.Get("/companies/{companyKey}/filings", s.handleCompanyFilings)
		r.Get("/quality/merge-suspects", s.handleMergeSuspects)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"ok": true, "stats": s.store.Stats()})
}

func (s *Server) handleGetFiling(w http.ResponseWriter, r *http.Request) {
	filingID := chi.URLParam(r, "filingID")
	rec, ok := s.store.Classification(filingID)
	if !ok {
		writeError(w, entitystore.NewNotFoundError(fmt.Sprintf("filing %q not found", filingID)))
		return
	}
	writeJSON(w, 200, rec)
}

func (s *Server) handleListFilings(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	filings := s.store.Filings(filter)
	writeJSON(w, 200, map[string]any{"filings": filings, "count": len(filings)})
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies := s.store.Companies()
	writeJSON(w, 200, map[string]any{"companies": companies, "count": len(companies)})
}

func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	companyKey := chi.URLParam(r, "companyKey")
	brands := s.store.Brands(companyKey)
	writeJSON(w, 200, map[string]any{"brands": brands, "count": len(brands)})
}

func (s *Server) handleCompanyFilings(w http.ResponseWriter, r *http.Request) {
	companyKey := chi.URLParam(r, "companyKey")
	filings := s.store.FilingsByCompany(companyKey)
	writeJSON(w, 200, map[string]any{"filings": filings, "count": len(filings)})
}

func (s *Server) handleMergeSuspects(w http.ResponseWriter, r *http.Request) {
	suspects := s.store.MergeSuspects()
	writeJSON(w, 200, map[string]any{"merge_suspects": suspects, "count": len(suspects)})
}

func filterFromQuery(r *http.Request) (entitystore.FilingFilter, error) {
	q := r.URL.Query()
	filter := entitystore.FilingFilter{
		CompanyKey: strings.TrimSpace(q.Get("company")),
	}

	if sig := strings.TrimSpace(q.Get("signal")); sig != "" {
		switch entitystore.Signal(sig) {
		case entitystore.SignalNewCompany, entitystore.SignalNewBrand, entitystore.SignalNewSKU, entitystore.SignalRefile:
			filter.Signal = entitystore.Signal(sig)
		default:
			return filter, entitystore.NewValidationError(fmt.Sprintf("unknown signal %q", sig))
		}
	}
	if from := q.Get("from"); from != "" {
		t, err := parseQueryDate(from)
		if err != nil {
			return filter, entitystore.NewValidationError("from: " + err.Error())
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := parseQueryDate(to)
		if err != nil {
			return filter, entitystore.NewValidationError("to: " + err.Error())
		}
		filter.To = t
	}
	if lc := q.Get("low_confidence"); lc != "" {
		v, err := strconv.ParseBool(lc)
		if err != nil {
			return filter, entitystore.NewValidationError("low_confidence: " + err.Error())
		}
		filter.LowConfidenceOnly = v
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return filter, entitystore.NewValidationError(fmt.Sprintf("invalid limit %q", limit))
		}
		filter.Limit = n
	}
	return filter, nil
}

func parseQueryDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	var se *entitystore.Error
	if errors.As(err, &se) {
		writeJSON(w, se.Status, map[string]any{
			"ok": false,
			"error": map[string]any{
				"code":    se.Code,
				"message": se.Message,
			},
		})
		return
	}
	writeJSON(w, 500, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    entitystore.CodeInternal,
			"message": err.Error(),
		},
	})
}
