package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const maxSearchBodyBytes = 2 << 20

// WebSearchTool fetches a search results page and converts it to markdown
// so the model can read it.
type WebSearchTool struct {
	baseURL string
	client  *http.Client
}

// NewWebSearchTool builds a search tool against an HTML search endpoint
// that accepts a `q` query parameter.
func NewWebSearchTool(baseURL string) *WebSearchTool {
	return &WebSearchTool{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (*WebSearchTool) Name() string { return "web_search" }

func (*WebSearchTool) Description() string {
	return "Search the web for current renewable energy news and information"
}

func (*WebSearchTool) Class() Class { return ClassLookup }

func (*WebSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Search query"
			}
		},
		"required": ["query"]
	}`)
}

type webSearchArgs struct {
	Query string `json:"query"`
}

type webSearchPayload struct {
	Query   string `json:"query"`
	Content string `json:"content"`
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in webSearchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	u, err := url.Parse(t.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search base url: %w", err)
	}
	q := u.Query()
	q.Set("q", in.Query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "wattwise/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return nil, fmt.Errorf("convert search results: %w", err)
	}

	return webSearchPayload{Query: in.Query, Content: markdown}, nil
}
