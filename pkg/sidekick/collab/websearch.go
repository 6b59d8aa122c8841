package collab

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// WebSearch is the web-search collaborator.
type WebSearch interface {
	// Search runs a web search and returns an AI-written summary of the
	// results.
	Search(ctx context.Context, query string) (string, error)
}

const tavilyBaseURL = "https://api.tavily.com/search"

// tavily talks to the Tavily search API and condenses the results with the
// completion capability.
type tavily struct {
	apiKey    string
	client    httpDoer
	baseURL   string
	completer Completer
}

// NewTavily creates a WebSearch backed by Tavily. completer may be nil, in
// which case Tavily's own answer field is returned.
func NewTavily(apiKey string, completer Completer) WebSearch {
	return &tavily{apiKey: apiKey, client: defaultClient(), baseURL: tavilyBaseURL, completer: completer}
}

func (t *tavily) Search(ctx context.Context, query string) (string, error) {
	if t.apiKey == "" {
		return "", Errf("web_search", "Tavily API key not configured")
	}

	body := map[string]any{
		"api_key":        t.apiKey,
		"query":          query,
		"search_depth":   "basic",
		"max_results":    5,
		"include_answer": true,
	}
	var result struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := doJSON(ctx, t.client, "web_search", http.MethodPost, t.baseURL, nil, body, &result); err != nil {
		return "", err
	}

	if t.completer == nil {
		if result.Answer == "" {
			return "No summary available.", nil
		}
		return result.Answer, nil
	}

	var sb strings.Builder
	for _, r := range result.Results {
		fmt.Fprintf(&sb, "Source: %s\nContent: %s\n", r.Title, r.Content)
	}
	summary, err := t.completer.Complete(ctx,
		"You are a helpful research assistant. Summarize the following search results to answer the original query. Be concise.",
		fmt.Sprintf("Query: %s\n\nSearch Results:\n%s", query, sb.String()))
	if err != nil {
		// Summarization is best-effort; the raw answer still serves.
		if result.Answer != "" {
			return result.Answer, nil
		}
		return "", Errf("web_search", "summarization failed: %v", err)
	}
	return summary, nil
}

// Completer is the minimal text-completion capability collaborators need.
// The assistant package's LLM client satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
