package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PolicyTool answers questions about renewable energy incentives and
// regulations from a curated policy table.
type PolicyTool struct{}

func (PolicyTool) Name() string { return "get_policy_information" }

func (PolicyTool) Description() string {
	return "Look up renewable energy policies, incentives and regulations by country, region and policy type"
}

func (PolicyTool) Class() Class { return ClassLookup }

func (PolicyTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"country": {
				"type": "string",
				"description": "Country to look up, e.g. US, EU"
			},
			"region": {
				"type": "string",
				"description": "Optional state or region, e.g. California"
			},
			"policy_type": {
				"type": "string",
				"description": "Optional filter: tax_credit, depreciation, mandate, net_metering, rebate, directive"
			}
		},
		"required": ["country"]
	}`)
}

type policyArgs struct {
	Country    string `json:"country"`
	Region     string `json:"region"`
	PolicyType string `json:"policy_type"`
}

// Policy is one incentive or regulation record.
type Policy struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Country     string `json:"country"`
	Region      string `json:"region,omitempty"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

var policyTable = []Policy{
	{
		Name:        "Investment Tax Credit (ITC)",
		Type:        "tax_credit",
		Country:     "US",
		Description: "Federal tax credit covering a percentage of the cost of installing a solar energy system.",
		Status:      "active",
	},
	{
		Name:        "Modified Accelerated Cost Recovery System (MACRS)",
		Type:        "depreciation",
		Country:     "US",
		Description: "Accelerated depreciation schedule for renewable energy equipment.",
		Status:      "active",
	},
	{
		Name:        "Renewable Portfolio Standards (RPS)",
		Type:        "mandate",
		Country:     "US",
		Description: "State-level mandates requiring utilities to source a share of electricity from renewables.",
		Status:      "active",
	},
	{
		Name:        "California Solar Initiative (CSI)",
		Type:        "rebate",
		Country:     "US",
		Region:      "California",
		Description: "Rebate program for solar installations on existing homes and businesses.",
		Status:      "closed",
	},
	{
		Name:        "Net Energy Metering (NEM)",
		Type:        "net_metering",
		Country:     "US",
		Region:      "California",
		Description: "Credits solar customers for excess electricity exported to the grid.",
		Status:      "active",
	},
	{
		Name:        "Renewable Energy Directive II (RED II)",
		Type:        "directive",
		Country:     "EU",
		Description: "Binding renewable energy target for the EU with member-state contributions.",
		Status:      "active",
	},
	{
		Name:        "European Green Deal",
		Type:        "directive",
		Country:     "EU",
		Description: "Policy package targeting climate neutrality by 2050, including renewable expansion.",
		Status:      "active",
	},
}

type policyPayload struct {
	Country  string   `json:"country"`
	Region   string   `json:"region,omitempty"`
	Policies []Policy `json:"policies"`
}

func (PolicyTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in policyArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	matches := make([]Policy, 0, len(policyTable))
	for _, p := range policyTable {
		if !strings.EqualFold(p.Country, in.Country) {
			continue
		}
		// A region filter narrows to that region's policies plus
		// country-wide ones.
		if in.Region != "" && p.Region != "" && !strings.EqualFold(p.Region, in.Region) {
			continue
		}
		if in.PolicyType != "" && !strings.EqualFold(p.Type, in.PolicyType) {
			continue
		}
		matches = append(matches, p)
	}

	return policyPayload{Country: in.Country, Region: in.Region, Policies: matches}, nil
}
