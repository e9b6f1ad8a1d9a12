package vectorsearch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
)

// clause is one {key, op, value} term. Per spec §4.10 the only recognised
// op is "eq"; filters compose as a conjunction of clauses.
type clause struct {
	Key   string `json:"key"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// parseFilter decodes a filter string into its clauses. An empty string
// means "no filter" (always matches). The string may be a single clause
// object or a JSON array of clauses.
func parseFilter(filterJSON string) ([]clause, error) {
	filterJSON = strings.TrimSpace(filterJSON)
	if filterJSON == "" {
		return nil, nil
	}

	if strings.HasPrefix(filterJSON, "[") {
		var clauses []clause
		if err := json.Unmarshal([]byte(filterJSON), &clauses); err != nil {
			return nil, apierror.Wrap(apierror.KindInvalidRequest, "file_search filter is not a valid clause array", err)
		}
		return clauses, nil
	}

	var single clause
	if err := json.Unmarshal([]byte(filterJSON), &single); err != nil {
		return nil, apierror.Wrap(apierror.KindInvalidRequest, "file_search filter is not a valid clause", err)
	}
	return []clause{single}, nil
}

// matches reports whether metadata satisfies every clause, evaluating the
// conjunction via govaluate the same way the math tool evaluates expressions.
func matches(clauses []clause, metadata map[string]any) (bool, error) {
	if len(clauses) == 0 {
		return true, nil
	}

	var terms []string
	parameters := govaluate.MapParameters{}
	for i, c := range clauses {
		if c.Op != "" && c.Op != "eq" {
			return false, apierror.New(apierror.KindInvalidRequest, fmt.Sprintf("unsupported filter op %q", c.Op))
		}
		name := fmt.Sprintf("p%d", i)
		terms = append(terms, fmt.Sprintf("%s == p%dval", name, i))
		parameters[name] = metadata[c.Key]
		parameters[fmt.Sprintf("p%dval", i)] = c.Value
	}

	expr, err := govaluate.NewEvaluableExpression(strings.Join(terms, " && "))
	if err != nil {
		return false, apierror.Wrap(apierror.KindInvalidRequest, "failed to compile filter expression", err)
	}

	result, err := expr.Evaluate(parameters)
	if err != nil {
		return false, apierror.Wrap(apierror.KindInvalidRequest, "failed to evaluate filter expression", err)
	}
	ok, _ := result.(bool)
	return ok, nil
}
