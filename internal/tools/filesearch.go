package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// VectorSearcher is the subset of the Vector Search Tool (spec §4.10) the
// file_search builtin depends on. Defined here rather than imported from
// internal/vectorsearch to keep tools free of a dependency on that package's
// storage backends; internal/vectorsearch.Store satisfies this interface.
type VectorSearcher interface {
	Search(ctx context.Context, storeID, query string, topK int, filter string) ([]SearchResult, error)
}

// SearchResult is one scored chunk returned by a VectorSearcher.
type SearchResult struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type fileSearchArgs struct {
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// NewFileSearchTool builds the file_search builtin (spec §4.4, §4.10):
// queries storeID via searcher and renders the results as a single text
// blob suitable for a function_call_output.
func NewFileSearchTool(storeID string, searcher VectorSearcher) (domain.Tool, Executor) {
	tool := domain.Tool{
		Type:        domain.ToolTypeFileSearch,
		Name:        string(domain.ToolTypeFileSearch),
		Description: "Search indexed documents for passages relevant to a query.",
	}

	executor := ExecutorFunc(func(ctx context.Context, argumentsJSON string) (string, error) {
		var args fileSearchArgs
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", apierror.Wrap(apierror.KindToolExecutionError, "file_search arguments are not valid JSON", err)
		}
		if args.Query == "" {
			return "", apierror.New(apierror.KindToolExecutionError, "file_search requires a non-empty query")
		}
		topK := args.TopK
		if topK <= 0 {
			topK = 5
		}

		results, err := searcher.Search(ctx, storeID, args.Query, topK, args.Filter)
		if err != nil {
			return "", apierror.Wrap(apierror.KindToolExecutionError, "file_search lookup failed", err)
		}
		if len(results) == 0 {
			return "No matching passages found.", nil
		}

		out, err := json.Marshal(results)
		if err != nil {
			return "", apierror.Wrap(apierror.KindToolExecutionError, "failed to encode file_search results", err)
		}
		return fmt.Sprintf("%d results:\n%s", len(results), out), nil
	})

	return tool, executor
}
