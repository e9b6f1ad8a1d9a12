package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/tools"
)

func registryWithEcho() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(domain.Tool{Type: domain.ToolTypeFunction, Name: "echo"}, tools.ExecutorFunc(
		func(ctx context.Context, argumentsJSON string) (string, error) {
			return "ok:" + argumentsJSON, nil
		},
	))
	return r
}

func TestReconcile_ExecutesInternalTool(t *testing.T) {
	r := New(registryWithEcho(), 10)
	calls := []domain.InputItem{{Type: domain.InputItemFunctionCall, CallID: "call_1", Name: "echo", Arguments: `{"x":1}`}}

	outcome, err := r.Reconcile(context.Background(), calls, 0)
	require.NoError(t, err)
	require.Len(t, outcome.AppendedItems, 1)
	assert.Equal(t, "call_1", outcome.AppendedItems[0].CallID)
	assert.Equal(t, `ok:{"x":1}`, outcome.AppendedItems[0].Output)
	assert.Empty(t, outcome.Parked)
}

func TestReconcile_ParksUnknownTool(t *testing.T) {
	r := New(registryWithEcho(), 10)
	calls := []domain.InputItem{{Type: domain.InputItemFunctionCall, CallID: "call_1", Name: "client_side_tool", Arguments: `{}`}}

	outcome, err := r.Reconcile(context.Background(), calls, 0)
	require.NoError(t, err)
	assert.Empty(t, outcome.AppendedItems)
	require.Len(t, outcome.Parked, 1)
	assert.Equal(t, "client_side_tool", outcome.Parked[0].Name)
}

func TestReconcile_EnforcesMaxToolCalls(t *testing.T) {
	r := New(registryWithEcho(), 1)
	calls := []domain.InputItem{
		{Type: domain.InputItemFunctionCall, CallID: "call_1", Name: "echo", Arguments: `{}`},
		{Type: domain.InputItemFunctionCall, CallID: "call_2", Name: "echo", Arguments: `{}`},
	}

	_, err := r.Reconcile(context.Background(), calls, 0)
	require.Error(t, err)
	apiErr := apierror.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.KindTooManyToolCalls, apiErr.Kind)
}

func TestReconcile_CountsCallsAcrossTurns(t *testing.T) {
	r := New(registryWithEcho(), 2)
	calls := []domain.InputItem{{Type: domain.InputItemFunctionCall, CallID: "call_1", Name: "echo", Arguments: `{}`}}

	_, err := r.Reconcile(context.Background(), calls, 2)
	require.Error(t, err)
}

func TestReconcile_DetectsConsecutiveLoop(t *testing.T) {
	r := New(registryWithEcho(), 10)
	calls := []domain.InputItem{
		{Type: domain.InputItemFunctionCall, CallID: "call_1", Name: "echo", Arguments: `{}`},
		{Type: domain.InputItemFunctionCall, CallID: "call_2", Name: "echo", Arguments: `{}`},
		{Type: domain.InputItemFunctionCall, CallID: "call_3", Name: "echo", Arguments: `{}`},
	}

	outcome, err := r.Reconcile(context.Background(), calls, 0)
	require.NoError(t, err)
	assert.True(t, outcome.LoopDetected)
	assert.Equal(t, "echo", outcome.LoopToolName)
}

func TestReconcile_InvalidArgumentsSurfaceAsToolOutput(t *testing.T) {
	r := tools.NewRegistry()
	r.Register(domain.Tool{
		Type:       domain.ToolTypeFunction,
		Name:       "strict",
		Parameters: []byte(`{"type":"object","required":["q"],"properties":{"q":{"type":"string"}}}`),
	}, tools.ExecutorFunc(func(ctx context.Context, argumentsJSON string) (string, error) {
		return "should not run", nil
	}))

	rec := New(r, 10)
	calls := []domain.InputItem{{Type: domain.InputItemFunctionCall, CallID: "call_1", Name: "strict", Arguments: `{}`}}

	outcome, err := rec.Reconcile(context.Background(), calls, 0)
	require.NoError(t, err)
	require.Len(t, outcome.AppendedItems, 1)
	assert.NotEqual(t, "should not run", outcome.AppendedItems[0].Output)
}
