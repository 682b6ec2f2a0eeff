package choromap

import (
	"strings"
	"testing"
)

// The bundled table should cover essentially all of ISO 3166-1.
const minBundledCountries = 240

func TestDefaultCodesCoverage(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}
	if codes.Len() < minBundledCountries {
		t.Errorf("bundled table has %d countries, want >= %d", codes.Len(), minBundledCountries)
	}
}

func TestISO3FromISO2(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		iso2   string
		want   string
		wantOK bool
	}{
		{"US", "USA", true},
		{"DE", "DEU", true},
		{"FR", "FRA", true},
		{"BR", "BRA", true},
		{"JP", "JPN", true},
		{"de", "DEU", true},  // case-insensitive
		{" GB", "GBR", true}, // tolerates stray whitespace
		{"XX", "", false},
		{"", "", false},
		{"USA", "", false}, // 3-letter codes are not 2-letter codes
	}
	for _, tt := range tests {
		t.Run(tt.iso2, func(t *testing.T) {
			got, ok := codes.ISO3FromISO2(tt.iso2)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ISO3FromISO2(%q) = %q, %v, want %q, %v", tt.iso2, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}

	co, ok := codes.Lookup("DEU")
	if !ok {
		t.Fatal("Lookup(DEU) not found")
	}
	if co.ISO2 != "DE" || co.Name != "Germany" || co.Numeric != 276 {
		t.Errorf("Lookup(DEU) = %+v", co)
	}
	if co.Region != "Europe" || co.Subregion != "Western Europe" {
		t.Errorf("Lookup(DEU) region = %q/%q, want Europe/Western Europe", co.Region, co.Subregion)
	}

	if _, ok := codes.Lookup("QQQ"); ok {
		t.Error("Lookup(QQQ) should not resolve")
	}
}

func TestCodesUnique(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}

	seen3 := map[string]bool{}
	seen2 := map[string]bool{}
	for _, co := range codes.Countries() {
		if seen3[co.ISO3] {
			t.Errorf("duplicate ISO3 %s", co.ISO3)
		}
		seen3[co.ISO3] = true
		if co.ISO2 != "" {
			if seen2[co.ISO2] {
				t.Errorf("duplicate ISO2 %s", co.ISO2)
			}
			seen2[co.ISO2] = true
		}
	}
}

func TestResolveName(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"Germany", "DEU", true},
		{"germany", "DEU", true},
		{"Germny", "DEU", true}, // one edit away
		{"Franse", "FRA", true}, // one edit away
		{"Atlantis", "", false}, // nothing close
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := codes.ResolveName(tt.name)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ResolveName(%q) = %q, %v, want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseGeonamesCountryInfo(t *testing.T) {
	// Two data rows in the geonames tab-separated layout, plus comments.
	input := "# geonames country info\n" +
		"# ISO\tISO3\tISO-Numeric\tfips\tCountry\tCapital\tArea\tPopulation\tContinent\ttld\tCurrencyCode\tCurrencyName\tPhone\tPostal Code Format\tPostal Code Regex\tLanguages\tgeonameid\tneighbours\tEquivalentFipsCode\n" +
		"DE\tDEU\t276\tGM\tGermany\tBerlin\t357021\t82927922\tEU\t.de\tEUR\tEuro\t49\t#####\t^(\\d{5})$\tde\t2921044\tCH,PL,NL\t\n" +
		"NZ\tNZL\t554\tNZ\tNew Zealand\tWellington\t268680\t4885500\tOC\t.nz\tNZD\tDollar\t64\t####\t^(\\d{4})$\ten-NZ,mi\t2186224\t\t\n"

	codes, err := ParseGeonamesCountryInfo(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if codes.Len() != 2 {
		t.Fatalf("parsed %d countries, want 2", codes.Len())
	}

	de, ok := codes.Lookup("DEU")
	if !ok {
		t.Fatal("DEU not parsed")
	}
	if de.Region != "Europe" {
		t.Errorf("DEU region = %q, want Europe (mapped from EU continent)", de.Region)
	}
	if de.Subregion != "Western Europe" {
		t.Errorf("DEU subregion = %q, want Western Europe (merged from bundled table)", de.Subregion)
	}

	nz, ok := codes.Lookup("NZL")
	if !ok {
		t.Fatal("NZL not parsed")
	}
	if nz.Region != "Oceania" || nz.Numeric != 554 {
		t.Errorf("NZL = %+v", nz)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	codes := NewCountryCodes([]Country{
		{ISO2: "DE", ISO3: "DEU", Numeric: 276, Name: "Germany", Region: "Europe", Subregion: "Western Europe"},
		{ISO2: "AQ", ISO3: "ATA", Numeric: 10, Name: "Antarctica", Region: "Antarctica"},
	})

	var sb strings.Builder
	if err := codes.WriteCSV(&sb); err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseCodesCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Len() != 2 {
		t.Fatalf("round trip lost rows: %d", parsed.Len())
	}
	aq, ok := parsed.Lookup("ATA")
	if !ok || aq.Numeric != 10 || aq.Subregion != "" {
		t.Errorf("ATA after round trip = %+v, ok=%v", aq, ok)
	}
}

func TestDefaultTable(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}

	table := codes.DefaultTable()
	if len(table) != codes.Len() {
		t.Fatalf("default table has %d rows, want %d", len(table), codes.Len())
	}
	for _, r := range table {
		if r.ISO3 == "" {
			t.Fatalf("default table row without ISO3: %+v", r)
		}
		if _, ok := r.Value(DefaultValueColumn); !ok {
			t.Fatalf("default table row %s missing %q value", r.ISO3, DefaultValueColumn)
		}
	}
}
