package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DBSearchTool searches the curated renewable-energy knowledge index.
type DBSearchTool struct{}

func (DBSearchTool) Name() string { return "search_renewable_database" }

func (DBSearchTool) Description() string {
	return "Search the renewable energy knowledge base for technologies, trends and market data"
}

func (DBSearchTool) Class() Class { return ClassLookup }

func (DBSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Free-text search query"
			},
			"category": {
				"type": "string",
				"description": "Optional filter: technology, market, policy, finance"
			},
			"max_results": {
				"type": "integer",
				"minimum": 1,
				"maximum": 20,
				"description": "Maximum number of records to return (default 5)"
			}
		},
		"required": ["query"]
	}`)
}

type dbSearchArgs struct {
	Query      string `json:"query"`
	Category   string `json:"category"`
	MaxResults int    `json:"max_results"`
}

// Record is one knowledge-base entry.
type Record struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
}

var knowledgeBase = []Record{
	{
		Title:    "Solar PV efficiency trends",
		Category: "technology",
		Summary:  "Commercial solar panel efficiency has climbed past 22% with perovskite tandem cells promising over 30%.",
		Source:   "internal-index",
	},
	{
		Title:    "Offshore wind capacity growth",
		Category: "market",
		Summary:  "Global offshore wind capacity is projected to triple this decade, led by Europe and China.",
		Source:   "internal-index",
	},
	{
		Title:    "Compressed biogas (CBG) plant economics",
		Category: "finance",
		Summary:  "CBG plants reach break-even in 5-7 years where feedstock supply contracts are stable.",
		Source:   "internal-index",
	},
	{
		Title:    "Grid-scale battery storage costs",
		Category: "technology",
		Summary:  "Lithium-ion pack prices have fallen roughly 90% since 2010, making solar-plus-storage competitive.",
		Source:   "internal-index",
	},
	{
		Title:    "Green hydrogen production outlook",
		Category: "market",
		Summary:  "Electrolyzer capacity is scaling rapidly but green hydrogen remains above cost parity with gray.",
		Source:   "internal-index",
	},
	{
		Title:    "Renewable portfolio standards impact",
		Category: "policy",
		Summary:  "States with binding RPS targets show measurably faster renewable capacity additions.",
		Source:   "internal-index",
	},
	{
		Title:    "Geothermal binary-cycle plants",
		Category: "technology",
		Summary:  "Binary-cycle designs unlock lower-temperature geothermal resources for baseload power.",
		Source:   "internal-index",
	},
}

type dbSearchPayload struct {
	Query   string   `json:"query"`
	Count   int      `json:"count"`
	Results []Record `json:"results"`
}

func (DBSearchTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in dbSearchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if in.MaxResults <= 0 {
		in.MaxResults = 5
	}

	terms := strings.Fields(strings.ToLower(in.Query))
	matches := make([]Record, 0, in.MaxResults)
	for _, rec := range knowledgeBase {
		if in.Category != "" && !strings.EqualFold(rec.Category, in.Category) {
			continue
		}
		if matchesQuery(rec, terms) {
			matches = append(matches, rec)
			if len(matches) == in.MaxResults {
				break
			}
		}
	}

	return dbSearchPayload{Query: in.Query, Count: len(matches), Results: matches}, nil
}

// matchesQuery reports whether any query term appears in the record.
// An empty query matches everything, so a bare category filter works.
func matchesQuery(rec Record, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(rec.Title + " " + rec.Summary)
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
