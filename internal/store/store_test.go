package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
)

func TestStore_PutSkippedWhenNotRequested(t *testing.T) {
	s := New(NewMemoryEngine())
	err := s.Put(context.Background(), &domain.Response{ID: "resp_1"}, nil, false, "")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "resp_1")
	assert.Error(t, err)
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := New(NewMemoryEngine())
	resp := &domain.Response{ID: "resp_1", Status: domain.StatusCompleted}
	items := []domain.InputItem{{Type: domain.InputItemEasyMessage, Role: "user", Text: "hi"}}

	require.NoError(t, s.Put(context.Background(), resp, items, true, ""))

	stored, err := s.Get(context.Background(), "resp_1")
	require.NoError(t, err)
	assert.Equal(t, "resp_1", stored.Response.ID)
	assert.Len(t, stored.InputItems, 1)
}

func TestStore_GetNotFoundIsApiError(t *testing.T) {
	s := New(NewMemoryEngine())
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	apiErr := apierror.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.KindNotFound, apiErr.Kind)
}

func TestStore_DeleteThenGetNotFound(t *testing.T) {
	s := New(NewMemoryEngine())
	resp := &domain.Response{ID: "resp_1"}
	require.NoError(t, s.Put(context.Background(), resp, nil, true, ""))
	require.NoError(t, s.Delete(context.Background(), "resp_1"))

	_, err := s.Get(context.Background(), "resp_1")
	assert.Error(t, err)
}

func TestStore_ResolveHistoryWalksChain(t *testing.T) {
	s := New(NewMemoryEngine())

	firstAnswer := domain.InputItem{Type: domain.InputItemOutputMessage, Role: "assistant", Content: []domain.ContentPart{{Type: domain.ContentText, Text: "first answer"}}}
	first := &domain.Response{ID: "resp_1", Output: []domain.InputItem{firstAnswer}}
	require.NoError(t, s.engine.Put(context.Background(), &domain.StoredResponse{
		Response: *first,
		// InputItems carries only this turn's own new input, not its output
		// (Put never persists a turn's terminal output into InputItems) —
		// ResolveHistory supplies the output by concatenating Response.Output.
		InputItems: []domain.InputItem{
			{Type: domain.InputItemEasyMessage, Role: "user", Text: "first question"},
		},
	}))

	second := &domain.Response{ID: "resp_2"}
	require.NoError(t, s.engine.Put(context.Background(), &domain.StoredResponse{
		Response:           *second,
		InputItems:         []domain.InputItem{{Type: domain.InputItemEasyMessage, Role: "user", Text: "second question"}},
		PreviousResponseID: "resp_1",
	}))

	current := []domain.InputItem{{Type: domain.InputItemEasyMessage, Role: "user", Text: "third question"}}
	history, err := s.ResolveHistory(context.Background(), "resp_2", current)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "first question", history[0].Text)
	assert.Equal(t, "first answer", history[1].Content[0].Text)
	assert.Equal(t, "second question", history[2].Text)
	assert.Equal(t, "third question", history[3].Text)
}

func TestStore_PutThreadsPreviousResponseIDThroughChainWalk(t *testing.T) {
	s := New(NewMemoryEngine())

	firstAnswer := domain.InputItem{Type: domain.InputItemOutputMessage, Role: "assistant", Content: []domain.ContentPart{{Type: domain.ContentText, Text: "first answer"}}}
	require.NoError(t, s.Put(context.Background(),
		&domain.Response{ID: "resp_1", Output: []domain.InputItem{firstAnswer}},
		[]domain.InputItem{{Type: domain.InputItemEasyMessage, Role: "user", Text: "first question"}},
		true, ""))

	secondAnswer := domain.InputItem{Type: domain.InputItemOutputMessage, Role: "assistant", Content: []domain.ContentPart{{Type: domain.ContentText, Text: "second answer"}}}
	require.NoError(t, s.Put(context.Background(),
		&domain.Response{ID: "resp_2", Output: []domain.InputItem{secondAnswer}},
		[]domain.InputItem{{Type: domain.InputItemEasyMessage, Role: "user", Text: "second question"}},
		true, "resp_1"))

	stored, err := s.Get(context.Background(), "resp_2")
	require.NoError(t, err)
	assert.Equal(t, "resp_1", stored.PreviousResponseID)

	history, err := s.ResolveHistory(context.Background(), "resp_2", []domain.InputItem{{Type: domain.InputItemEasyMessage, Role: "user", Text: "third question"}})
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "first question", history[0].Text)
	assert.Equal(t, "first answer", history[1].Content[0].Text)
	assert.Equal(t, "second question", history[2].Text)
	assert.Equal(t, "second answer", history[3].Content[0].Text)
	assert.Equal(t, "third question", history[4].Text)
}

func TestStore_ResolveHistoryDetectsCycle(t *testing.T) {
	s := New(NewMemoryEngine())

	require.NoError(t, s.engine.Put(context.Background(), &domain.StoredResponse{
		Response:           domain.Response{ID: "resp_a"},
		PreviousResponseID: "resp_b",
	}))
	require.NoError(t, s.engine.Put(context.Background(), &domain.StoredResponse{
		Response:           domain.Response{ID: "resp_b"},
		PreviousResponseID: "resp_a",
	}))

	_, err := s.ResolveHistory(context.Background(), "resp_a", nil)
	require.Error(t, err)
	apiErr := apierror.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.KindInvalidConfiguration, apiErr.Kind)
}

func TestStore_ResolveHistoryMissingAncestor(t *testing.T) {
	s := New(NewMemoryEngine())
	_, err := s.ResolveHistory(context.Background(), "does_not_exist", nil)
	require.Error(t, err)
	apiErr := apierror.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierror.KindNotFound, apiErr.Kind)
}
