// Package orchestrator implements the non-streaming Orchestrator (spec
// §4.7): the translate -> call -> reconcile loop modelled as the explicit
// three-state machine spec §9 calls for (AwaitingModel, ReconcilingTools,
// Done). Restructured from the teacher's single long
// proxy.HandleAnthropicRequest handler into that state machine.
package orchestrator

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/obslog"
	"github.com/masaic-ai/open-responses-go/internal/providerrouter"
	"github.com/masaic-ai/open-responses-go/internal/reconciler"
	"github.com/masaic-ai/open-responses-go/internal/store"
	"github.com/masaic-ai/open-responses-go/internal/translator"
	"github.com/masaic-ai/open-responses-go/internal/upstream"
)

// State names the turn-loop state machine from spec §9.
type State string

const (
	StateAwaitingModel    State = "awaiting_model"
	StateReconcilingTools State = "reconciling_tools"
	StateDone             State = "done"
)

// Orchestrator drives one request's full translate/call/reconcile loop.
type Orchestrator struct {
	router       *providerrouter.Router
	client       *upstream.Client
	reconciler   *reconciler.Reconciler
	store        *store.Store
	maxToolCalls int
	timeout      time.Duration
	structured   *obslog.StructuredLogger
}

// Config bundles an Orchestrator's collaborators.
type Config struct {
	Router       *providerrouter.Router
	Client       *upstream.Client
	Reconciler   *reconciler.Reconciler
	Store        *store.Store
	MaxToolCalls int
	Timeout      time.Duration
	Structured   *obslog.StructuredLogger
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		router:       cfg.Router,
		client:       cfg.Client,
		reconciler:   cfg.Reconciler,
		store:        cfg.Store,
		maxToolCalls: cfg.MaxToolCalls,
		timeout:      cfg.Timeout,
		structured:   cfg.Structured,
	}
}

// HandleResponse runs the full non-streaming turn loop for a single
// POST /v1/responses request, per spec §4.7.
func (o *Orchestrator) HandleResponse(httpReq *http.Request, req *domain.ResponseRequest) (*domain.Response, error) {
	ctx, cancel := context.WithTimeout(httpReq.Context(), o.timeout)
	defer cancel()

	resolution, err := o.router.Resolve(httpReq, req.Model)
	if err != nil {
		return nil, err
	}

	history, err := o.store.ResolveHistory(ctx, req.PreviousResponseID, req.Input.AsItems())
	if err != nil {
		return nil, err
	}

	responseID := "resp_" + uuid.NewString()
	createdAt := time.Now().Unix()
	toolCallsSoFar := 0

	// turnInput accumulates only what this turn itself contributes: the
	// request's own input plus every intermediate round's output and tool
	// results. It excludes the terminal round's output, which is persisted
	// once as Response.Output and must not be duplicated into InputItems
	// (spec §3/§4.6 — ResolveHistory reconstructs a turn's full context as
	// InputItems ++ Response.Output, so storing the terminal output in both
	// places would replay it twice on chain).
	turnInput := append([]domain.InputItem(nil), req.Input.AsItems()...)

	state := StateAwaitingModel
	var finalResp *domain.Response

	for state != StateDone {
		switch state {
		case StateAwaitingModel:
			chatReq, err := translator.ToChatRequest(req, history, resolution.Model)
			if err != nil {
				return nil, err
			}

			chatResp, err := o.client.Send(ctx, resolution.BaseURL, resolution.AuthToken, chatReq)
			if err != nil {
				o.router.Health().RecordFailure(resolution.BaseURL)
				return nil, apierror.Wrap(apierror.KindGenerationError, "upstream chat completion call failed", err)
			}
			o.router.Health().RecordSuccess(resolution.BaseURL)

			resp, finishReason := translator.ToResponse(responseID, createdAt, req.Model, chatResp)
			finalResp = resp

			if finishReason == domain.FinishToolCalls && len(resp.FunctionCalls()) > 0 {
				state = StateReconcilingTools
			} else {
				state = StateDone
			}

		case StateReconcilingTools:
			functionCalls := finalResp.FunctionCalls()
			outcome, err := o.reconciler.Reconcile(ctx, functionCalls, toolCallsSoFar)
			if err != nil {
				finalResp.Status = domain.StatusFailed
				finalResp.FailedDetails = &domain.FailedDetails{
					Code:    string(apierror.As(err).Kind),
					Message: apierror.As(err).Message,
				}
				return finalResp, nil
			}
			toolCallsSoFar += len(outcome.AppendedItems)

			if outcome.LoopDetected && o.structured != nil {
				o.structured.Warn(obslog.ComponentReconciler, obslog.CategoryWarning, responseID,
					"repeated tool-call pattern detected", map[string]any{
						"tool": outcome.LoopToolName,
					})
			}

			if len(outcome.Parked) > 0 {
				// Parked calls are already present in finalResp.Output (they
				// came from translator.ToResponse); the turn simply ends
				// here without a further model call, per spec §4.5. Only the
				// tool results actually produced this round are new input;
				// finalResp.Output is the terminal output and is not
				// duplicated into turnInput.
				turnInput = append(turnInput, outcome.AppendedItems...)
				finalResp.Status = domain.StatusCompleted
				state = StateDone
				continue
			}

			// Looping back for another model call: this round's output and
			// tool results become real input context, not terminal output.
			history = append(history, finalResp.Output...)
			history = append(history, outcome.AppendedItems...)
			turnInput = append(turnInput, finalResp.Output...)
			turnInput = append(turnInput, outcome.AppendedItems...)
			state = StateAwaitingModel
		}
	}

	if err := o.store.Put(ctx, finalResp, turnInput, req.StoreRequested(), req.PreviousResponseID); err != nil {
		return nil, err
	}

	return finalResp, nil
}
