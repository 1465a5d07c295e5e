package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/user/wattwise/internal/artifact"
	"github.com/user/wattwise/internal/types"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; background: #0f1420; color: #e8e8f0; }
header { padding: 1rem 2rem; background: #18202f; }
.grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(260px, 1fr)); gap: 1rem; padding: 2rem; }
.panel { background: #18202f; border-radius: 8px; padding: 1.2rem; }
.panel h3 { margin-top: 0; color: #6fcf97; }
.metric { font-size: 2rem; font-weight: 600; }
</style>
</head>
<body>
<header><h1>{{.Title}}</h1><p>{{.TypeLabel}} &middot; generated {{.GeneratedAt}}</p></header>
<div class="grid">
{{range .Panels}}<div class="panel"><h3>{{.Name}}</h3><div class="metric">{{.Value}}</div><p>{{.Caption}}</p></div>
{{end}}</div>
</body>
</html>
`))

type dashboardPanel struct {
	Name    string
	Value   string
	Caption string
}

// panelsFor returns the default panel layout per dashboard type.
func panelsFor(dashboardType string) []dashboardPanel {
	switch dashboardType {
	case "cbg":
		return []dashboardPanel{
			{Name: "Gas Output", Value: "-- Nm³/h", Caption: "Compressed biogas production rate"},
			{Name: "Methane Content", Value: "-- %", Caption: "CH₄ share of output"},
			{Name: "Feedstock Level", Value: "-- t", Caption: "Available agricultural waste"},
			{Name: "Plant Uptime", Value: "-- %", Caption: "Rolling 30-day availability"},
		}
	case "wind_farm":
		return []dashboardPanel{
			{Name: "Power Output", Value: "-- MW", Caption: "Current farm output"},
			{Name: "Wind Speed", Value: "-- m/s", Caption: "Hub-height average"},
			{Name: "Turbines Online", Value: "--", Caption: "Operational turbine count"},
			{Name: "Capacity Factor", Value: "-- %", Caption: "Rolling 30-day"},
		}
	case "hybrid_plant":
		return []dashboardPanel{
			{Name: "Total Output", Value: "-- MW", Caption: "Combined generation"},
			{Name: "Solar Share", Value: "-- %", Caption: "Of current output"},
			{Name: "Wind Share", Value: "-- %", Caption: "Of current output"},
			{Name: "Storage Level", Value: "-- %", Caption: "Battery state of charge"},
		}
	default: // solar_farm
		return []dashboardPanel{
			{Name: "Power Output", Value: "-- MW", Caption: "Current farm output"},
			{Name: "Irradiance", Value: "-- W/m²", Caption: "Plane-of-array"},
			{Name: "Panel Efficiency", Value: "-- %", Caption: "Fleet average"},
			{Name: "Inverters Online", Value: "--", Caption: "Operational inverter count"},
		}
	}
}

var dashboardTypeLabels = map[string]string{
	"cbg":          "Compressed Biogas Plant",
	"solar_farm":   "Solar Farm",
	"wind_farm":    "Wind Farm",
	"hybrid_plant": "Hybrid Plant",
}

// DashboardTool renders a monitoring dashboard shell and stores it as a
// write-once artifact.
type DashboardTool struct {
	store types.ArtifactStore
}

func NewDashboardTool(store types.ArtifactStore) *DashboardTool {
	return &DashboardTool{store: store}
}

func (*DashboardTool) Name() string { return "create_dashboard" }

func (*DashboardTool) Description() string {
	return "Create a monitoring dashboard for a renewable energy facility and return its URL path"
}

func (*DashboardTool) Class() Class { return ClassGeneration }

func (*DashboardTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"dashboard_type": {
				"type": "string",
				"enum": ["cbg", "solar_farm", "wind_farm", "hybrid_plant"],
				"description": "Facility type the dashboard is for"
			},
			"title": {
				"type": "string",
				"description": "Optional dashboard title"
			}
		},
		"required": ["dashboard_type"]
	}`)
}

type dashboardArgs struct {
	DashboardType string `json:"dashboard_type"`
	Title         string `json:"title"`
}

func (t *DashboardTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in dashboardArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	label, ok := dashboardTypeLabels[in.DashboardType]
	if !ok {
		return nil, fmt.Errorf("unsupported dashboard type %q", in.DashboardType)
	}
	title := in.Title
	if title == "" {
		title = label + " Dashboard"
	}

	var buf bytes.Buffer
	err := dashboardTmpl.Execute(&buf, struct {
		Title       string
		TypeLabel   string
		GeneratedAt string
		Panels      []dashboardPanel
	}{
		Title:       title,
		TypeLabel:   label,
		GeneratedAt: time.Now().UTC().Format(time.RFC1123),
		Panels:      panelsFor(in.DashboardType),
	})
	if err != nil {
		return nil, fmt.Errorf("render dashboard: %w", err)
	}

	id, err := t.store.Put(ctx, types.ArtifactDashboard, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("store dashboard: %w", err)
	}

	return artifactPayload{
		Path: artifact.Path(types.ArtifactDashboard, id),
		Kind: string(types.ArtifactDashboard),
	}, nil
}
