package parsers

import (
	"testing"
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHints = map[string]string{
	"grundfos.com": "Grundfos",
	"trojanuv.com": "TrojanUV",
}

func testDispatcher() *Dispatcher {
	return NewDispatcher(testHints, Options{
		DefaultCurrency: "ZAR",
		Now:             func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}, nil)
}

func TestDispatchDomainResolution(t *testing.T) {
	d := testDispatcher()

	rows := [][]string{
		{"Model", "Flow Rate", "Price", "SKU"},
		{"AquaPump 100", "50 L/h", "$299", "AP-100"},
	}

	outcome := d.Dispatch("https://www.grundfos.com/products/pumps/cr", rows, "", "")
	require.NotNil(t, outcome)
	assert.Equal(t, core.MethodParser, outcome.Method)
	require.Len(t, outcome.Suppliers, 1)
	require.Len(t, outcome.Parts, 1)

	sup := outcome.Suppliers[0]
	assert.Equal(t, "grundfos-aquapump-100", sup.SKU)
	assert.Equal(t, "Grundfos", sup.Brand)
	require.NotNil(t, sup.Price)
	assert.InDelta(t, 299.0, *sup.Price, 1e-9)
	assert.Equal(t, "ZAR", sup.Currency)
	assert.Equal(t, "2026-03-01T12:00:00Z", sup.LastSeen)

	part := outcome.Parts[0]
	assert.Equal(t, "AP-100", part.PartNumber)
	assert.Equal(t, "grundfos-aquapump-100", part.SKU)
	assert.Contains(t, part.SpecsJSON, `"flow_m3h":0.05`)
}

func TestDispatchCategoryHint(t *testing.T) {
	d := testDispatcher()

	rows := [][]string{
		{"Model", "Dose", "Power"},
		{"UV-Max 200", "40 mJ/cm2", "120 W"},
	}

	// Unknown host, explicit hint. Matching is a case-insensitive
	// substring check against the hint.
	outcome := d.Dispatch("https://shop.example.net/item/991", rows, "", "UV Sterilizers")
	require.NotNil(t, outcome)
	assert.Equal(t, core.MethodParser, outcome.Method)
	require.Len(t, outcome.Suppliers, 1)
	assert.Equal(t, "uv", outcome.Suppliers[0].Category)
	assert.Equal(t, "Unknown", outcome.Suppliers[0].Brand)
	assert.Contains(t, outcome.Parts[0].SpecsJSON, `"dose_mj_cm2":40`)
}

func TestDispatchNoMatchReturnsNil(t *testing.T) {
	d := testDispatcher()

	rows := [][]string{
		{"Col A", "Col B", "Col C"},
		{"1", "2", "3"},
	}
	assert.Nil(t, d.Dispatch("https://unknown.example.com/page", rows, "", ""))
}

func TestDispatchSkipsBadRowsIndividually(t *testing.T) {
	d := testDispatcher()

	rows := [][]string{
		{"Model", "Flow", "Price"},
		{"CR 32", "30 m3/h", "R 5,000"},
		{""}, // short, empty model: skipped, not fatal
		{"CR 45", "45 m3/h", "R 7,500"},
	}

	outcome := d.Dispatch("https://grundfos.com/pumps/cr", rows, "", "")
	require.NotNil(t, outcome)
	assert.Len(t, outcome.Suppliers, 2)
	assert.Len(t, outcome.Parts, 2)
}

func TestDispatchGenericSpecSheet(t *testing.T) {
	d := testDispatcher()

	rows := [][]string{
		{"Product Name", "HydroBoost 5"},
		{"Flow rate", "1000 L/h"},
		{"Max head", "32 m"},
		{"Price", "$459"},
	}

	outcome := d.Dispatch("https://obscure-vendor.example/sheet", rows, "", "general")
	require.NotNil(t, outcome)
	require.Len(t, outcome.Suppliers, 1)
	assert.Equal(t, "general", outcome.Suppliers[0].Category)
	assert.Contains(t, outcome.Parts[0].SpecsJSON, `"flow_m3h":1`)
	assert.Contains(t, outcome.Parts[0].SpecsJSON, `"head_m":32`)
}

func TestDetectProductType(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		preview string
		want    string
	}{
		{name: "pump from url path", url: "https://x.com/products/booster-pumps", want: "pump"},
		{name: "uv from url path", url: "https://x.com/uv-sterilizers/max", want: "uv"},
		{name: "pump from content", url: "https://x.com/item/4411", preview: "A compact circulator for domestic hot water.", want: "pump"},
		{name: "uv from content", url: "https://x.com/item/4411", preview: "Chamber disinfection reactor", want: "uv"},
		{name: "uninformative", url: "https://x.com/item/4411", preview: "A thing.", want: "general"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectProductType(tc.url, tc.preview))
		})
	}
}

func TestConfidence(t *testing.T) {
	testCases := []struct {
		name        string
		supplier    string
		productType string
		want        float64
	}{
		{name: "curated pair", supplier: "Grundfos", productType: "pump", want: 1.0},
		{name: "known supplier general type", supplier: "Grundfos", productType: "general", want: 0.5},
		{name: "unknown supplier known type", supplier: "Unknown", productType: "uv", want: 0.5},
		{name: "nothing known", supplier: "Unknown", productType: "general", want: 0.1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Confidence(tc.supplier, tc.productType), 1e-9)
		})
	}
}

func TestParserInstanceCache(t *testing.T) {
	d := testDispatcher()
	p1 := d.parserFor("Grundfos", "pump")
	p2 := d.parserFor("Grundfos", "pump")
	p3 := d.parserFor("Grundfos", "uv")
	require.NotNil(t, p1)
	assert.Same(t, p1, p2)
	assert.NotSame(t, p1, p3)
}

func TestSKUForIsDeterministic(t *testing.T) {
	assert.Equal(t, "grundfos-aquapump-100", SKUFor("Grundfos", "AquaPump 100"))
	assert.Equal(t, SKUFor("Grundfos", "AquaPump 100"), SKUFor("Grundfos", "AquaPump 100"))
}

func TestGenericParserAmbiguousLabelsDeterministic(t *testing.T) {
	opts := Options{
		DefaultCurrency: "ZAR",
		Now:             func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	p := newGenericParser("Acme", opts)

	// Both labels contain "model"; the earlier row must win every
	// time so the derived key never varies between runs.
	rows := [][]string{
		{"Model number", "HB-5000"},
		{"Model", "HydroBoost 5"},
		{"Price", "$459"},
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		res, err := p.Parse(rows, "https://obscure-vendor.example/sheet")
		require.NoError(t, err)
		require.Len(t, res.Suppliers, 1)
		seen[res.Suppliers[0].SKU] = true
	}
	require.Len(t, seen, 1, "same sheet produced multiple keys: %v", seen)
	assert.True(t, seen["acme-hb-5000"])
}

func TestVendorForURLOverlappingHintsDeterministic(t *testing.T) {
	d := NewDispatcher(map[string]string{
		"example.com":      "Generic",
		"shop.example.com": "ShopCo",
	}, Options{DefaultCurrency: "ZAR"}, nil)

	// Both hints match the host; the more specific one wins, on
	// every call.
	for i := 0; i < 100; i++ {
		assert.Equal(t, "ShopCo", d.vendorForURL("https://shop.example.com/catalog"))
	}
	assert.Equal(t, "Generic", d.vendorForURL("https://www.example.com/catalog"))
}
