package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// FetchDataTool synthesizes renewable generation time series. Real provider
// APIs sit behind this interface in production; here the data is modeled
// per energy type so downstream analysis stays meaningful.
type FetchDataTool struct{}

func (FetchDataTool) Name() string { return "fetch_renewable_data" }

func (FetchDataTool) Description() string {
	return "Fetch renewable energy generation data for a given energy type, location and time period"
}

func (FetchDataTool) Class() Class { return ClassLookup }

func (FetchDataTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"energy_type": {
				"type": "string",
				"description": "Energy source: solar, wind, hydro, geothermal, biogas, cbg"
			},
			"location": {
				"type": "string",
				"description": "Geographic location, e.g. a city or region"
			},
			"time_period": {
				"type": "string",
				"enum": ["last_week", "last_month", "last_year"],
				"description": "Window of data to fetch"
			}
		},
		"required": ["energy_type", "location"]
	}`)
}

type fetchDataArgs struct {
	EnergyType string `json:"energy_type"`
	Location   string `json:"location"`
	TimePeriod string `json:"time_period"`
}

type dataPoint struct {
	Date       string  `json:"date"`
	Generation float64 `json:"generation_mwh"`
}

type fetchDataPayload struct {
	EnergyType string         `json:"energy_type"`
	Location   string         `json:"location"`
	TimePeriod string         `json:"time_period"`
	Unit       string         `json:"unit"`
	Series     []dataPoint    `json:"series"`
	Summary    map[string]any `json:"summary"`
}

// profile is the base output and daily variance per energy type.
type profile struct {
	base     float64
	variance float64
}

var profiles = map[string]profile{
	"solar":      {base: 100, variance: 30},
	"wind":       {base: 150, variance: 50},
	"hydro":      {base: 200, variance: 20},
	"geothermal": {base: 80, variance: 10},
	"biogas":     {base: 60, variance: 15},
	"cbg":        {base: 60, variance: 15},
}

var defaultProfile = profile{base: 50, variance: 20}

func (FetchDataTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in fetchDataArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if in.TimePeriod == "" {
		in.TimePeriod = "last_month"
	}

	points, step := periodShape(in.TimePeriod)
	p, ok := profiles[in.EnergyType]
	if !ok {
		p = defaultProfile
	}

	rng := rand.New(rand.NewSource(seedFor(in)))
	series := make([]dataPoint, points)
	total := 0.0
	now := time.Now().UTC()
	for i := 0; i < points; i++ {
		gen := p.base + (rng.Float64()*2-1)*p.variance
		if gen < 0 {
			gen = 0
		}
		gen = round2(gen)
		total += gen
		date := now.AddDate(0, 0, -step*(points-1-i))
		series[i] = dataPoint{Date: date.Format("2006-01-02"), Generation: gen}
	}

	summary := map[string]any{
		"total_mwh":   round2(total),
		"average_mwh": round2(total / float64(points)),
		"peak_mwh":    round2(peak(series)),
	}
	for k, v := range extrasFor(in.EnergyType, rng) {
		summary[k] = v
	}

	return fetchDataPayload{
		EnergyType: in.EnergyType,
		Location:   in.Location,
		TimePeriod: in.TimePeriod,
		Unit:       "MWh",
		Series:     series,
		Summary:    summary,
	}, nil
}

// periodShape maps a time period to sample count and day step.
func periodShape(period string) (points, stepDays int) {
	switch period {
	case "last_week":
		return 7, 1
	case "last_year":
		return 52, 7
	default: // last_month
		return 30, 1
	}
}

// seedFor keys the generator on the request so identical requests return
// identical series, which keeps result caching coherent.
func seedFor(in fetchDataArgs) int64 {
	var h int64 = 1125899906842597
	for _, s := range []string{in.EnergyType, in.Location, in.TimePeriod} {
		for _, c := range s {
			h = 31*h + int64(c)
		}
	}
	return h
}

func extrasFor(energyType string, rng *rand.Rand) map[string]any {
	switch energyType {
	case "solar":
		return map[string]any{
			"capacity_mw":        round2(120 + rng.Float64()*30),
			"panel_count":        40000 + rng.Intn(10000),
			"efficiency_percent": round2(18 + rng.Float64()*4),
		}
	case "wind":
		return map[string]any{
			"capacity_mw":     round2(180 + rng.Float64()*40),
			"turbine_count":   60 + rng.Intn(20),
			"avg_wind_speed":  round2(6 + rng.Float64()*4),
			"capacity_factor": round2(0.30 + rng.Float64()*0.15),
		}
	case "hydro":
		return map[string]any{
			"capacity_mw":     round2(220 + rng.Float64()*50),
			"reservoir_level": round2(0.6 + rng.Float64()*0.3),
		}
	case "geothermal":
		return map[string]any{
			"capacity_mw":    round2(90 + rng.Float64()*20),
			"well_count":     8 + rng.Intn(6),
			"plant_temp_c":   round2(150 + rng.Float64()*100),
		}
	case "biogas", "cbg":
		return map[string]any{
			"capacity_mw":             round2(70 + rng.Float64()*20),
			"feedstock":               "agricultural waste",
			"methane_content_percent": round2(55 + rng.Float64()*10),
		}
	default:
		return nil
	}
}

func peak(series []dataPoint) float64 {
	max := 0.0
	for _, p := range series {
		if p.Generation > max {
			max = p.Generation
		}
	}
	return max
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
