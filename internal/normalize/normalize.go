// Package normalize derives the canonical keys used to deduplicate
// companies, brands, and product variants across label-approval filings.
// Every function here is pure: the same raw text always yields the same key.
package normalize

import "strings"

// SentinelKey is returned for blank or whitespace-only input so that empty
// names land in one reserved bucket instead of silently merging with real
// entities. Callers flag filings that resolve to it.
const SentinelKey = "~blank~"

const sep = "\x1f"

// Trailing legal-suffix phrases folded to one canonical token. Matched
// longest-first against the end of the name, after punctuation stripping,
// so "L.L.C." has already become "LLC" before this table applies.
var suffixFolds = []struct {
	phrase string
	canon  string
}{
	{"LIMITED LIABILITY PARTNERSHIP", "LLP"},
	{"LIMITED LIABILITY COMPANY", "LLC"},
	{"LIMITED LIABILITY CO", "LLC"},
	{"LIMITED PARTNERSHIP", "LP"},
	{"INCORPORATED", "INC"},
	{"CORPORATION", "CORP"},
	{"COMPANY", "CO"},
	{"LIMITED", "LTD"},
}

var punctStripper = strings.NewReplacer(".", "", ",", "")

// Fold applies the lossless part of normalization: upper-case, whitespace
// collapse, and period/comma stripping. Two spellings with equal folds are
// trivially the same name; two spellings with different folds that still
// share a Key were merged by the suffix table, which is worth review.
func Fold(raw string) string {
	s := punctStripper.Replace(strings.ToUpper(raw))
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return SentinelKey
	}
	return strings.Join(fields, " ")
}

// Key canonicalizes raw free-text into a comparable key: upper-cased,
// whitespace collapsed, periods and commas stripped, and a trailing legal
// suffix folded to its canonical token. The caller keeps the raw spelling as
// the display form.
func Key(raw string) string {
	s := Fold(raw)
	if s == SentinelKey {
		return SentinelKey
	}
	for _, f := range suffixFolds {
		if s == f.phrase {
			// The whole name is a bare suffix; leave it alone rather than
			// collapsing unrelated filers into one token.
			break
		}
		if strings.HasSuffix(s, " "+f.phrase) {
			s = strings.TrimSuffix(s, f.phrase) + f.canon
			break
		}
	}
	return s
}

// IsSentinel reports whether key is the reserved blank-input bucket.
func IsSentinel(key string) bool {
	return key == SentinelKey
}

// BrandKey scopes a normalized brand name under its owning company. The same
// brand text under two companies yields two distinct keys.
func BrandKey(companyKey, rawBrand string) string {
	return companyKey + sep + Key(rawBrand)
}

// VariantKey identifies one product variant: brand scope plus normalized
// fanciful name, class/type code, and origin. Fanciful is optional on a
// filing; a blank one folds to a fixed placeholder rather than the sentinel
// so that "no fanciful name" is a legitimate variant of its brand.
func VariantKey(brandKey, rawFanciful, classType, origin string) string {
	f := Key(rawFanciful)
	if f == SentinelKey {
		f = "-"
	}
	return brandKey + sep + f + sep + codeToken(classType) + sep + codeToken(origin)
}

func codeToken(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "-"
	}
	return s
}
