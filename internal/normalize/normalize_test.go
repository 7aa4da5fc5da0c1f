package normalize

import "testing"

func TestKeyFoldsCaseWhitespaceAndPunctuation(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Acme Spirits LLC", "ACME SPIRITS LLC"},
		{"ACME SPIRITS, LLC.", "ACME SPIRITS LLC"},
		{"  acme   spirits\tllc ", "ACME SPIRITS LLC"},
		{"Acme Spirits, L.L.C.", "ACME SPIRITS LLC"},
		{"Acme Spirits Limited Liability Company", "ACME SPIRITS LLC"},
		{"Old Mill Brewing Incorporated", "OLD MILL BREWING INC"},
		{"Old Mill Brewing, Inc.", "OLD MILL BREWING INC"},
		{"Hilltop Wine Corporation", "HILLTOP WINE CORP"},
		{"Hilltop Wine Corp", "HILLTOP WINE CORP"},
		{"River & Sons Company", "RIVER & SONS CO"},
		{"River & Sons Co.", "RIVER & SONS CO"},
		{"North Peak Limited", "NORTH PEAK LTD"},
		{"North Peak Ltd", "NORTH PEAK LTD"},
		{"Estate Cellars Limited Partnership", "ESTATE CELLARS LP"},
		{"Estate Cellars Limited Liability Partnership", "ESTATE CELLARS LLP"},
	}
	for _, c := range cases {
		if got := Key(c.raw); got != c.want {
			t.Errorf("Key(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestKeyIsPure(t *testing.T) {
	raw := "Acme Spirits, LLC."
	first := Key(raw)
	for i := 0; i < 5; i++ {
		if got := Key(raw); got != first {
			t.Fatalf("Key changed across calls: %q vs %q", got, first)
		}
	}
}

func TestKeySuffixOnlyAtEnd(t *testing.T) {
	// "Company" mid-name must not be folded.
	if got := Key("Company of Friends Brewing"); got != "COMPANY OF FRIENDS BREWING" {
		t.Fatalf("mid-name suffix folded: %q", got)
	}
	if got := Key("Limited Edition Wines LLC"); got != "LIMITED EDITION WINES LLC" {
		t.Fatalf("leading suffix token folded: %q", got)
	}
}

func TestKeyBareSuffixNameNotCollapsed(t *testing.T) {
	if got := Key("Corporation"); got != "CORPORATION" {
		t.Fatalf("bare suffix name collapsed: %q", got)
	}
}

func TestKeyBlankInputsShareSentinel(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n", " , . "} {
		if got := Key(raw); got != SentinelKey {
			t.Errorf("Key(%q) = %q, want sentinel", raw, got)
		}
	}
	if !IsSentinel(Key("")) {
		t.Fatal("IsSentinel(Key(\"\")) = false")
	}
	if IsSentinel(Key("Acme")) {
		t.Fatal("IsSentinel true for real name")
	}
}

func TestBrandKeyScopedToCompany(t *testing.T) {
	a := BrandKey(Key("Acme Spirits LLC"), "Acme Gold")
	b := BrandKey(Key("Other Distilling Co"), "Acme Gold")
	if a == b {
		t.Fatalf("same brand under two companies produced one key: %q", a)
	}
	again := BrandKey(Key("ACME SPIRITS, LLC."), "ACME GOLD")
	if a != again {
		t.Fatalf("equivalent spellings produced different brand keys: %q vs %q", a, again)
	}
}

func TestVariantKeyTuple(t *testing.T) {
	bk := BrandKey(Key("Acme Spirits LLC"), "Acme Gold")
	v1 := VariantKey(bk, "Barrel Reserve", "901", "US")
	v2 := VariantKey(bk, "BARREL  RESERVE", "901", "us")
	if v1 != v2 {
		t.Fatalf("identical normalized tuples diverged: %q vs %q", v1, v2)
	}
	if v1 == VariantKey(bk, "Barrel Reserve", "902", "US") {
		t.Fatal("class/type code ignored in variant key")
	}
	if v1 == VariantKey(bk, "Barrel Reserve", "901", "FR") {
		t.Fatal("origin ignored in variant key")
	}
}

func TestVariantKeyBlankFancifulIsNotSentinel(t *testing.T) {
	bk := BrandKey(Key("Acme Spirits LLC"), "Acme Gold")
	v := VariantKey(bk, "", "901", "US")
	if v != VariantKey(bk, "   ", "901", "US") {
		t.Fatal("blank and whitespace fanciful diverged")
	}
	if v == VariantKey(bk, "Barrel Reserve", "901", "US") {
		t.Fatal("blank fanciful collided with a named one")
	}
}
