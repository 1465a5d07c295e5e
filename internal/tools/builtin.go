package tools

import "github.com/user/wattwise/internal/types"

// Builtin assembles the full registry served by the tool service.
func Builtin(store types.ArtifactStore, searchBaseURL string) (*Registry, error) {
	r := NewRegistry()
	for _, t := range []Tool{
		FetchDataTool{},
		ROITool{},
		PolicyTool{},
		DBSearchTool{},
		NewWebSearchTool(searchBaseURL),
		NewReportTool(store),
		NewDashboardTool(store),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
