// Package store implements the Response Store (spec §4.6): durable or
// ephemeral persistence of completed responses and their flattened input
// history, keyed by response id, behind a single Engine interface so the
// orchestrator never branches on backend.
package store

import (
	"context"
	"errors"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// ErrNotFound is returned by Get/GetInputItems/Delete when no response is
// stored under the given id.
var ErrNotFound = errors.New("response not found")

// maxChainDepth bounds the previous_response_id walk (spec §9(a)): a cycle
// or pathologically long chain surfaces as invalid_configuration rather than
// hanging the request.
const maxChainDepth = 128

// Engine is the persistence backend a Store wraps. Implementations: the
// in-memory engine (default, "ephemeral" per spec §6) and the Redis engine
// (durable mode).
type Engine interface {
	Put(ctx context.Context, stored *domain.StoredResponse) error
	Get(ctx context.Context, id string) (*domain.StoredResponse, error)
	Delete(ctx context.Context, id string) error
}

// Store wraps an Engine with the store=false bypass (spec §4.6) and the
// cycle-bounded previous_response_id chain walk used to rebuild a
// conversation's full input history.
type Store struct {
	engine Engine
}

// New wraps engine in a Store.
func New(engine Engine) *Store {
	return &Store{engine: engine}
}

// Put persists resp and the turn's own input items (not the ancestors'
// history, which ResolveHistory rebuilds from the chain), unless req opts out via
// store=false, per spec §4.6 ("store=false requests never call put").
// previousResponseID is the request's own previous_response_id, threaded
// through so a later chain walk can reach past this response's immediate
// parent (spec §4.6/§9).
func (s *Store) Put(ctx context.Context, resp *domain.Response, inputItems []domain.InputItem, storeRequested bool, previousResponseID string) error {
	if !storeRequested {
		return nil
	}
	return s.engine.Put(ctx, &domain.StoredResponse{
		Response:           *resp,
		InputItems:         inputItems,
		PreviousResponseID: previousResponseID,
	})
}

// Get retrieves a single stored response by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.StoredResponse, error) {
	stored, err := s.engine.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apierror.Wrap(apierror.KindNotFound, "response not found", err)
		}
		return nil, apierror.Wrap(apierror.KindInternalError, "response store lookup failed", err)
	}
	return stored, nil
}

// Delete removes a stored response.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.engine.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apierror.Wrap(apierror.KindNotFound, "response not found", err)
		}
		return apierror.Wrap(apierror.KindInternalError, "response store delete failed", err)
	}
	return nil
}

// GetInputItems returns the flattened input history belonging to a single
// stored response, for GET /v1/responses/{id}/input_items.
func (s *Store) GetInputItems(ctx context.Context, id string) ([]domain.InputItem, error) {
	stored, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return stored.InputItems, nil
}

// ResolveHistory walks the previous_response_id chain starting at the
// current request and returns the full ordered InputItem history: every
// ancestor's own input items followed by that ancestor's output, oldest
// first, then the current request's own input items — the
// get_input_items(prev) ++ output_of(prev) formula from spec §3/§4.6 applied
// once per ancestor. Each stored response's InputItems holds only that
// turn's own new input (Put never persists a turn's own terminal output
// alongside it), so concatenating Response.Output here does not duplicate
// anything. Returns not_found if a response id in the chain is missing, or
// invalid_configuration if the chain contains a cycle or exceeds
// maxChainDepth, per spec §8/§9(a).
func (s *Store) ResolveHistory(ctx context.Context, previousResponseID string, currentInput []domain.InputItem) ([]domain.InputItem, error) {
	var chain []*domain.StoredResponse
	seen := make(map[string]bool)

	id := previousResponseID
	for id != "" {
		if seen[id] {
			return nil, apierror.New(apierror.KindInvalidConfiguration, "previous_response_id chain contains a cycle").WithParam("previous_response_id")
		}
		if len(chain) >= maxChainDepth {
			return nil, apierror.New(apierror.KindInvalidConfiguration, "previous_response_id chain exceeds maximum depth").WithParam("previous_response_id")
		}
		seen[id] = true

		stored, err := s.Get(ctx, id)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindNotFound, "previous_response_id does not resolve to a stored response", err).WithParam("previous_response_id")
		}
		chain = append(chain, stored)
		id = previousIDOf(stored)
	}

	var history []domain.InputItem
	for i := len(chain) - 1; i >= 0; i-- {
		history = append(history, chain[i].InputItems...)
		history = append(history, chain[i].Response.Output...)
	}
	history = append(history, currentInput...)
	return history, nil
}

func previousIDOf(stored *domain.StoredResponse) string {
	return stored.PreviousResponseID
}
