package choromap

import (
	"math"
	"strings"
	"testing"
)

func TestNormalizeDerivesISO3(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}
	log, _ := newRecordingLogger()

	in := Table{
		{ISO2: "us"},
		{ISO2: "DE"},
		{ISO3: "fra"},             // already 3-letter, just normalized
		{ISO2: "XX"},              // invalid, stays unresolved
		{Name: "New Zealand"},     // resolved by name
		{Name: "Untited Kingdom"}, // resolved by fuzzy name match
		{ISO2: "BR", ISO3: "BRA"}, // iso3 wins, no derivation needed
	}
	out := in.Normalize(codes, log)

	want := []string{"USA", "DEU", "FRA", "", "NZL", "GBR", "BRA"}
	if len(out) != len(want) {
		t.Fatalf("Normalize changed row count: %d != %d", len(out), len(want))
	}
	for i, w := range want {
		if out[i].ISO3 != w {
			t.Errorf("row %d: ISO3 = %q, want %q", i, out[i].ISO3, w)
		}
	}

	// The input table is never mutated.
	if in[0].ISO3 != "" {
		t.Error("Normalize mutated its input")
	}
}

func TestNormalizeEveryValidISO2(t *testing.T) {
	codes, err := DefaultCodes()
	if err != nil {
		t.Fatal(err)
	}
	log, _ := newRecordingLogger()

	var in Table
	for _, co := range codes.Countries() {
		if co.ISO2 != "" {
			in = append(in, Record{ISO2: co.ISO2})
		}
	}
	out := in.Normalize(codes, log)
	for i, r := range out {
		if r.ISO3 == "" {
			t.Errorf("row %d (iso2 %s): no ISO3 derived", i, in[i].ISO2)
		}
	}
}

func TestValidate(t *testing.T) {
	good := Table{
		{ISO3: "USA", Values: map[string]float64{"score": 1}},
		{ISO3: "DEU", Values: map[string]float64{"score": 2}},
	}
	if err := good.Validate("score"); err != nil {
		t.Errorf("valid table rejected: %v", err)
	}

	bad := Table{
		{Values: map[string]float64{"score": 1}}, // no identifier
		{ISO3: "USA", Values: map[string]float64{"score": 2}},
		{ISO3: "usa", Values: map[string]float64{"score": 3}}, // duplicate after casefold
		{ISO3: "DEU", Values: map[string]float64{"score": math.NaN()}},
	}
	err := bad.Validate("score")
	if err == nil {
		t.Fatal("invalid table accepted")
	}
	msg := err.Error()
	for _, want := range []string{"no iso2c, iso3c or name", "duplicate code USA", "non-finite"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestReadTableCSV(t *testing.T) {
	input := "iso2c,name,citations,score\n" +
		"US,United States,120,3.5\n" +
		"DE,Germany,,1.25\n" +
		"FR,France,40,\n"

	table, err := ReadTableCSV(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 3 {
		t.Fatalf("got %d rows, want 3", len(table))
	}

	if table[0].ISO2 != "US" || table[0].Name != "United States" {
		t.Errorf("row 0 identifiers = %+v", table[0])
	}
	if v, ok := table[0].Value("citations"); !ok || v != 120 {
		t.Errorf("row 0 citations = %v, %v", v, ok)
	}
	if _, ok := table[1].Value("citations"); ok {
		t.Error("empty cell should be a missing value, not zero")
	}
	if v, ok := table[1].Value("score"); !ok || v != 1.25 {
		t.Errorf("row 1 score = %v, %v", v, ok)
	}
	if _, ok := table[2].Value("score"); ok {
		t.Error("row 2 score should be missing")
	}
}

func TestReadTableCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only", "iso3c,score\n"},
		{"non-numeric value", "iso3c,score\nUSA,abc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadTableCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("want error, got nil")
			}
		})
	}
}

func TestHasColumn(t *testing.T) {
	table := Table{
		{ISO3: "USA"},
		{ISO3: "DEU", Values: map[string]float64{"score": 1}},
	}
	if !table.HasColumn("score") {
		t.Error("HasColumn(score) = false")
	}
	if table.HasColumn("other") {
		t.Error("HasColumn(other) = true")
	}
}
