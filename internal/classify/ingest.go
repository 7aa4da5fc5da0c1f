package classify

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joelkehle/colawatch/internal/entitystore"
)

// wireFiling is the ingestion-pipeline line format. Dates arrive either as
// RFC 3339 timestamps or bare dates.
type wireFiling struct {
	FilingID     string `json:"filing_id"`
	CompanyName  string `json:"company_name"`
	BrandName    string `json:"brand_name"`
	FancifulName string `json:"fanciful_name"`
	ClassType    string `json:"class_type"`
	Origin       string `json:"origin"`
	SubmittedAt  string `json:"submitted_at"`
	ApprovedAt   string `json:"approved_at"`
}

// ReadFilings decodes one JSON filing per line. Blank lines are skipped;
// a malformed line fails the whole read with its line number, since a
// partially ingested batch would silently shift first-seen baselines.
func ReadFilings(r io.Reader) ([]entitystore.Filing, error) {
	var out []entitystore.Filing
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var w wireFiling
		if err := json.Unmarshal([]byte(text), &w); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		f, err := w.toFiling()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read filings: %w", err)
	}
	return out, nil
}

func (w wireFiling) toFiling() (entitystore.Filing, error) {
	approved, err := parseDate(w.ApprovedAt)
	if err != nil {
		return entitystore.Filing{}, fmt.Errorf("approved_at: %w", err)
	}
	submitted := time.Time{}
	if strings.TrimSpace(w.SubmittedAt) != "" {
		submitted, err = parseDate(w.SubmittedAt)
		if err != nil {
			return entitystore.Filing{}, fmt.Errorf("submitted_at: %w", err)
		}
	}
	return entitystore.Filing{
		FilingID:     strings.TrimSpace(w.FilingID),
		CompanyName:  w.CompanyName,
		BrandName:    w.BrandName,
		FancifulName: w.FancifulName,
		ClassType:    w.ClassType,
		Origin:       w.Origin,
		SubmittedAt:  submitted,
		ApprovedAt:   approved,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
