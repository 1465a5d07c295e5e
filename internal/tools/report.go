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

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 860px; margin: 2rem auto; color: #1a1a2e; }
h1 { border-bottom: 2px solid #2e8b57; padding-bottom: .4rem; }
section { margin: 1.5rem 0; }
.meta { color: #666; font-size: .85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Generated {{.GeneratedAt}}</p>
<section>
<h2>Executive Summary</h2>
<p>{{.Summary}}</p>
</section>
<section>
<h2>Analysis</h2>
<p>{{.Analysis}}</p>
</section>
<section>
<h2>Key Findings</h2>
<ul>
{{range .Findings}}<li>{{.}}</li>
{{end}}</ul>
</section>
</body>
</html>
`))

// ReportTool renders an HTML report and stores it as a write-once artifact.
type ReportTool struct {
	store types.ArtifactStore
}

func NewReportTool(store types.ArtifactStore) *ReportTool {
	return &ReportTool{store: store}
}

func (*ReportTool) Name() string { return "generate_report" }

func (*ReportTool) Description() string {
	return "Generate an HTML report on a renewable energy topic and return its URL path"
}

func (*ReportTool) Class() Class { return ClassGeneration }

func (*ReportTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {
				"type": "string",
				"description": "Report title"
			},
			"summary": {
				"type": "string",
				"description": "Executive summary text"
			},
			"analysis": {
				"type": "string",
				"description": "Main analysis body"
			},
			"findings": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Bullet-point key findings"
			}
		},
		"required": ["title", "summary"]
	}`)
}

type reportArgs struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Analysis string   `json:"analysis"`
	Findings []string `json:"findings"`
}

type artifactPayload struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

func (t *ReportTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in reportArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	var buf bytes.Buffer
	err := reportTmpl.Execute(&buf, struct {
		Title       string
		GeneratedAt string
		Summary     string
		Analysis    string
		Findings    []string
	}{
		Title:       in.Title,
		GeneratedAt: time.Now().UTC().Format(time.RFC1123),
		Summary:     in.Summary,
		Analysis:    in.Analysis,
		Findings:    in.Findings,
	})
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	id, err := t.store.Put(ctx, types.ArtifactReport, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	return artifactPayload{
		Path: artifact.Path(types.ArtifactReport, id),
		Kind: string(types.ArtifactReport),
	}, nil
}
