package attributes

import (
	"reflect"
	"testing"

	"capdev_portal/internal/preferences"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestFundingBandBoundaries(t *testing.T) {
	cases := []struct {
		amount float64
		want   string
		ok     bool
	}{
		{0, "", false},
		{-5, "", false},
		{1, BandUnder10K, true},
		{10_000, BandUnder10K, true},
		{10_000.01, Band10KTo50K, true},
		{50_000, Band10KTo50K, true},
		{100_000, Band50KTo100K, true},
		{500_000, Band100KTo500K, true},
		{500_001, BandOver500K, true},
	}
	for _, tc := range cases {
		got, ok := FundingBand(tc.amount)
		if got != tc.want || ok != tc.ok {
			t.Errorf("FundingBand(%v) = (%q, %v), want (%q, %v)", tc.amount, got, ok, tc.want, tc.ok)
		}
	}
}

func TestExtractPrefersRelationalSource(t *testing.T) {
	legacy, err := NewJSONSource(KindRequest, []byte(`{"subthemes":["Legacy"],"priority_level":"Low","funding_max":5000}`))
	if err != nil {
		t.Fatalf("NewJSONSource: %v", err)
	}
	rel := NewRelationalSource(Detail{
		Subthemes:      []string{"Ocean acidification", " ", "Ocean acidification", "Coral reefs"},
		SubthemesOther: strPtr("Something else"),
		PriorityLevel:  strPtr("High"),
		FundingMax:     floatPtr(75_000),
	})

	got := NewExtractor().Extract(Entity{Kind: KindRequest, Sources: []AttributeSource{rel, legacy}})

	want := Attributes{
		preferences.TypeSubtheme:           {"Ocean acidification", "Coral reefs"},
		preferences.TypePriorityLevel:      {"High"},
		preferences.TypeFundingAmountRange: {Band50KTo100K},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected attributes:\n got %v\nwant %v", got, want)
	}
}

func TestExtractFallsBackToLegacyPerDimension(t *testing.T) {
	legacy, err := NewJSONSource(KindRequest, []byte(`{
		"coverage_activity": "Training",
		"target_audience": ["Researchers", ""],
		"support_types": "Mentoring",
		"funding_min": "1000",
		"funding_max": "20000"
	}`))
	if err != nil {
		t.Fatalf("NewJSONSource: %v", err)
	}
	rel := NewRelationalSource(Detail{Subthemes: []string{"Marine spatial planning"}})

	got := NewExtractor().Extract(Entity{Kind: KindRequest, Sources: []AttributeSource{rel, legacy}})

	checks := map[preferences.AttributeType][]string{
		preferences.TypeSubtheme:           {"Marine spatial planning"},
		preferences.TypeCoverageActivity:   {"Training"},
		preferences.TypeTargetAudience:     {"Researchers"},
		preferences.TypeSupportType:        {"Mentoring"},
		preferences.TypeFundingAmountRange: {Band10KTo50K},
	}
	for dim, want := range checks {
		if !reflect.DeepEqual(got[dim], want) {
			t.Errorf("%s: got %v, want %v", dim, got[dim], want)
		}
	}
	if _, ok := got[preferences.TypeImplementationLocation]; ok {
		t.Errorf("expected implementation_location to be omitted")
	}
}

func TestExtractFundingMinimumDoesNotHideLegacyMaximum(t *testing.T) {
	legacy, err := NewJSONSource(KindRequest, []byte(`{"funding_max": 20000}`))
	if err != nil {
		t.Fatalf("NewJSONSource: %v", err)
	}
	rel := NewRelationalSource(Detail{FundingMin: floatPtr(1000)})

	got := NewExtractor().Extract(Entity{Kind: KindRequest, Sources: []AttributeSource{rel, legacy}})

	if !reflect.DeepEqual(got[preferences.TypeFundingAmountRange], []string{Band10KTo50K}) {
		t.Fatalf("unexpected funding band %v", got[preferences.TypeFundingAmountRange])
	}
	if _, _, ok := rel.FundingRange(); ok {
		t.Fatalf("expected minimum-only detail to report no range")
	}

	zero := NewRelationalSource(Detail{FundingMax: floatPtr(0)})
	got = NewExtractor().Extract(Entity{Kind: KindRequest, Sources: []AttributeSource{zero, legacy}})
	if !reflect.DeepEqual(got[preferences.TypeFundingAmountRange], []string{Band10KTo50K}) {
		t.Fatalf("zero maximum should fall through to legacy, got %v", got[preferences.TypeFundingAmountRange])
	}
}

func TestExtractOpportunityUsesOwnKeys(t *testing.T) {
	legacy, err := NewJSONSource(KindOpportunity, []byte(`{
		"target_subthemes": ["Ocean observation"],
		"subthemes": ["ignored"],
		"budget_max": 900000,
		"funding_max": 10
	}`))
	if err != nil {
		t.Fatalf("NewJSONSource: %v", err)
	}

	got := NewExtractor().Extract(Entity{Kind: KindOpportunity, Sources: []AttributeSource{legacy}})

	if !reflect.DeepEqual(got[preferences.TypeSubtheme], []string{"Ocean observation"}) {
		t.Fatalf("unexpected subthemes %v", got[preferences.TypeSubtheme])
	}
	if !reflect.DeepEqual(got[preferences.TypeFundingAmountRange], []string{BandOver500K}) {
		t.Fatalf("unexpected funding band %v", got[preferences.TypeFundingAmountRange])
	}
}

func TestExtractSingleValuedKeepsFirst(t *testing.T) {
	legacy, err := NewJSONSource(KindRequest, []byte(`{"priority_level":["Medium","High"]}`))
	if err != nil {
		t.Fatalf("NewJSONSource: %v", err)
	}
	got := NewExtractor().Extract(Entity{Kind: KindRequest, Sources: []AttributeSource{legacy}})
	if !reflect.DeepEqual(got[preferences.TypePriorityLevel], []string{"Medium"}) {
		t.Fatalf("unexpected priority %v", got[preferences.TypePriorityLevel])
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	rel := NewRelationalSource(Detail{Subthemes: []string{"A", "B"}, FundingMax: floatPtr(10)})
	e := Entity{Kind: KindRequest, Sources: []AttributeSource{rel}}
	x := NewExtractor()
	if first, second := x.Extract(e), x.Extract(e); !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction not idempotent: %v vs %v", first, second)
	}
}

func TestNewJSONSourceHandlesEmptyAndInvalid(t *testing.T) {
	src, err := NewJSONSource(KindRequest, nil)
	if err != nil {
		t.Fatalf("expected empty input to be accepted, got %v", err)
	}
	if _, _, ok := src.FundingRange(); ok {
		t.Fatalf("expected no funding in empty source")
	}
	if _, err := NewJSONSource(KindRequest, []byte(`{broken`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := NewJSONSource("thing", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
