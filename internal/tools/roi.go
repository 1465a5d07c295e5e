package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ROITool computes simple return-on-investment figures for a renewable
// energy project from its cash flow parameters.
type ROITool struct{}

func (ROITool) Name() string { return "calculate_roi" }

func (ROITool) Description() string {
	return "Calculate ROI, payback period and lifetime profit for a renewable energy project"
}

func (ROITool) Class() Class { return ClassLookup }

func (ROITool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"initial_investment": {
				"type": "number",
				"description": "Up-front capital cost in dollars",
				"exclusiveMinimum": 0
			},
			"annual_revenue": {
				"type": "number",
				"description": "Expected yearly revenue in dollars"
			},
			"annual_costs": {
				"type": "number",
				"description": "Expected yearly operating costs in dollars"
			},
			"project_lifetime": {
				"type": "integer",
				"description": "Project lifetime in years (default 25)",
				"minimum": 1
			}
		},
		"required": ["initial_investment", "annual_revenue", "annual_costs"]
	}`)
}

type roiArgs struct {
	InitialInvestment float64 `json:"initial_investment"`
	AnnualRevenue     float64 `json:"annual_revenue"`
	AnnualCosts       float64 `json:"annual_costs"`
	ProjectLifetime   int     `json:"project_lifetime"`
}

type roiPayload struct {
	NetAnnualCashFlow  float64 `json:"net_annual_cash_flow"`
	PaybackPeriodYears float64 `json:"payback_period_years"`
	TotalProfit        float64 `json:"total_profit"`
	ROIPercent         float64 `json:"roi_percent"`
	IRRPercent         float64 `json:"irr_estimate_percent"`
	ProjectLifetime    int     `json:"project_lifetime_years"`
	Profitable         bool    `json:"profitable"`
}

func (ROITool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in roiArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if in.InitialInvestment <= 0 {
		return nil, errors.New("initial_investment must be positive")
	}
	if in.ProjectLifetime <= 0 {
		in.ProjectLifetime = 25
	}

	net := in.AnnualRevenue - in.AnnualCosts
	payback := math.Inf(1)
	if net > 0 {
		payback = in.InitialInvestment / net
	}
	totalProfit := net*float64(in.ProjectLifetime) - in.InitialInvestment
	roi := totalProfit / in.InitialInvestment * 100
	// Simplified IRR: annual net yield on the initial outlay.
	irr := net / in.InitialInvestment * 100

	out := roiPayload{
		NetAnnualCashFlow: round2(net),
		TotalProfit:       round2(totalProfit),
		ROIPercent:        round2(roi),
		IRRPercent:        round2(irr),
		ProjectLifetime:   in.ProjectLifetime,
		Profitable:        totalProfit > 0,
	}
	if math.IsInf(payback, 1) {
		out.PaybackPeriodYears = -1 // never pays back
	} else {
		out.PaybackPeriodYears = round2(payback)
	}
	return out, nil
}
