package tools

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/wattwise/internal/artifact"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ROITool{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(ROITool{}); err == nil {
		t.Error("duplicate registration should fail")
	}
	if _, ok := r.Get("calculate_roi"); !ok {
		t.Error("registered tool not found")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("unknown tool should not resolve")
	}
}

func TestBuiltinDeclarationsSorted(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r, err := Builtin(store, "http://example.invalid/search")
	if err != nil {
		t.Fatal(err)
	}
	decls := r.Declarations()
	if len(decls) != 7 {
		t.Fatalf("expected 7 builtin tools, got %d", len(decls))
	}
	for i := 1; i < len(decls); i++ {
		if decls[i-1].Name >= decls[i].Name {
			t.Errorf("declarations not sorted: %s before %s", decls[i-1].Name, decls[i].Name)
		}
	}
	for _, d := range decls {
		if !json.Valid(d.Parameters) {
			t.Errorf("tool %s has invalid parameter schema", d.Name)
		}
	}
}

func TestFetchDataShapes(t *testing.T) {
	cases := []struct {
		period string
		points int
	}{
		{"last_week", 7},
		{"last_month", 30},
		{"last_year", 52},
	}
	for _, tc := range cases {
		args, _ := json.Marshal(map[string]string{
			"energy_type": "solar",
			"location":    "Bakersfield",
			"time_period": tc.period,
		})
		out, err := FetchDataTool{}.Execute(context.Background(), args)
		if err != nil {
			t.Fatalf("%s: %v", tc.period, err)
		}
		payload := out.(fetchDataPayload)
		if len(payload.Series) != tc.points {
			t.Errorf("%s: %d points, want %d", tc.period, len(payload.Series), tc.points)
		}
		for _, p := range payload.Series {
			if p.Generation < 0 {
				t.Errorf("%s: negative generation %f", tc.period, p.Generation)
			}
		}
	}
}

func TestFetchDataDeterministicPerRequest(t *testing.T) {
	args, _ := json.Marshal(map[string]string{
		"energy_type": "wind",
		"location":    "North Sea",
		"time_period": "last_week",
	})
	a, err := FetchDataTool{}.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	b, err := FetchDataTool{}.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	sa := a.(fetchDataPayload).Series
	sb := b.(fetchDataPayload).Series
	for i := range sa {
		if sa[i].Generation != sb[i].Generation {
			t.Fatalf("series differ at %d: %f vs %f", i, sa[i].Generation, sb[i].Generation)
		}
	}
}

func TestROIFormulas(t *testing.T) {
	args, _ := json.Marshal(map[string]any{
		"initial_investment": 100000.0,
		"annual_revenue":     30000.0,
		"annual_costs":       10000.0,
		"project_lifetime":   25,
	})
	out, err := ROITool{}.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	p := out.(roiPayload)
	if p.NetAnnualCashFlow != 20000 {
		t.Errorf("net = %f", p.NetAnnualCashFlow)
	}
	if p.PaybackPeriodYears != 5 {
		t.Errorf("payback = %f", p.PaybackPeriodYears)
	}
	// 20000*25 - 100000 = 400000
	if p.TotalProfit != 400000 {
		t.Errorf("profit = %f", p.TotalProfit)
	}
	if p.ROIPercent != 400 {
		t.Errorf("roi = %f", p.ROIPercent)
	}
	if p.IRRPercent != 20 {
		t.Errorf("irr = %f", p.IRRPercent)
	}
	if !p.Profitable {
		t.Error("should be profitable")
	}
}

func TestROINeverPaysBack(t *testing.T) {
	args, _ := json.Marshal(map[string]any{
		"initial_investment": 50000.0,
		"annual_revenue":     5000.0,
		"annual_costs":       8000.0,
	})
	out, err := ROITool{}.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	p := out.(roiPayload)
	if p.PaybackPeriodYears != -1 {
		t.Errorf("payback = %f, want -1 sentinel", p.PaybackPeriodYears)
	}
	if p.Profitable {
		t.Error("loss-making project marked profitable")
	}
	if math.IsNaN(p.ROIPercent) {
		t.Error("roi is NaN")
	}
}

func TestPolicyFilters(t *testing.T) {
	run := func(argMap map[string]string) policyPayload {
		t.Helper()
		args, _ := json.Marshal(argMap)
		out, err := PolicyTool{}.Execute(context.Background(), args)
		if err != nil {
			t.Fatal(err)
		}
		return out.(policyPayload)
	}

	us := run(map[string]string{"country": "US"})
	if len(us.Policies) != 5 {
		t.Errorf("US: %d policies, want 5", len(us.Policies))
	}

	ca := run(map[string]string{"country": "US", "region": "California"})
	for _, p := range ca.Policies {
		if p.Region != "" && p.Region != "California" {
			t.Errorf("region filter leaked %q", p.Region)
		}
	}

	eu := run(map[string]string{"country": "EU", "policy_type": "directive"})
	if len(eu.Policies) != 2 {
		t.Errorf("EU directives: %d, want 2", len(eu.Policies))
	}

	none := run(map[string]string{"country": "Atlantis"})
	if len(none.Policies) != 0 {
		t.Errorf("unknown country matched %d policies", len(none.Policies))
	}
}

func TestDBSearch(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"query": "solar", "max_results": 2})
	out, err := DBSearchTool{}.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	p := out.(dbSearchPayload)
	if p.Count == 0 {
		t.Fatal("expected matches for solar")
	}
	if p.Count > 2 {
		t.Errorf("max_results not honored: %d", p.Count)
	}

	args, _ = json.Marshal(map[string]any{"query": "", "category": "policy"})
	out, err = DBSearchTool{}.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	p = out.(dbSearchPayload)
	for _, rec := range p.Results {
		if rec.Category != "policy" {
			t.Errorf("category filter leaked %q", rec.Category)
		}
	}
}

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "wind capacity" {
			t.Errorf("q = %q", q)
		}
		w.Write([]byte("<html><body><h1>Results</h1><p>Offshore wind is growing.</p></body></html>"))
	}))
	defer srv.Close()

	tool := NewWebSearchTool(srv.URL)
	args, _ := json.Marshal(map[string]string{"query": "wind capacity"})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	p := out.(webSearchPayload)
	if !strings.Contains(p.Content, "Offshore wind is growing") {
		t.Errorf("markdown content missing text: %q", p.Content)
	}
}

func TestReportToolWritesArtifact(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tool := NewReportTool(store)
	args, _ := json.Marshal(map[string]any{
		"title":    "Solar Trends 2026",
		"summary":  "Solar keeps growing.",
		"analysis": "Module prices continue to fall.",
		"findings": []string{"22% efficiency is mainstream", "storage pairing is standard"},
	})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	p := out.(artifactPayload)
	if !strings.HasPrefix(p.Path, "/reports/") {
		t.Fatalf("path %q", p.Path)
	}
	content, err := store.GetByPath(context.Background(), p.Path)
	if err != nil {
		t.Fatalf("artifact not retrievable: %v", err)
	}
	html := string(content)
	for _, want := range []string{"Solar Trends 2026", "Solar keeps growing.", "22% efficiency is mainstream"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestDashboardToolTypes(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tool := NewDashboardTool(store)

	for _, dtype := range []string{"cbg", "solar_farm", "wind_farm", "hybrid_plant"} {
		args, _ := json.Marshal(map[string]string{"dashboard_type": dtype})
		out, err := tool.Execute(context.Background(), args)
		if err != nil {
			t.Fatalf("%s: %v", dtype, err)
		}
		p := out.(artifactPayload)
		if !strings.HasPrefix(p.Path, "/visualizations/") {
			t.Errorf("%s: path %q", dtype, p.Path)
		}
		if _, err := store.GetByPath(context.Background(), p.Path); err != nil {
			t.Errorf("%s: artifact missing: %v", dtype, err)
		}
	}

	args, _ := json.Marshal(map[string]string{"dashboard_type": "coal_plant"})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Error("unsupported type should fail")
	}
}
