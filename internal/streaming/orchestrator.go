// Package streaming implements the Streaming Orchestrator (spec §4.8): the
// SSE producer/consumer loop that turns a sequence of upstream chat-stream
// chunks into the ordered typed Response event sequence, across as many
// model/tool round-trips as the turn loop requires.
package streaming

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/eventconverter"
	"github.com/masaic-ai/open-responses-go/internal/obslog"
	"github.com/masaic-ai/open-responses-go/internal/providerrouter"
	"github.com/masaic-ai/open-responses-go/internal/reconciler"
	"github.com/masaic-ai/open-responses-go/internal/store"
	"github.com/masaic-ai/open-responses-go/internal/translator"
	"github.com/masaic-ai/open-responses-go/internal/upstream"
)

// Orchestrator drives the streaming turn loop and writes typed SSE events
// as it goes, per spec §4.8.
type Orchestrator struct {
	router       *providerrouter.Router
	client       *upstream.Client
	reconciler   *reconciler.Reconciler
	store        *store.Store
	maxToolCalls int
	timeout      time.Duration
	structured   *obslog.StructuredLogger
}

// Config bundles an Orchestrator's collaborators, mirroring
// orchestrator.Config so the two engines stay wired the same way.
type Config struct {
	Router       *providerrouter.Router
	Client       *upstream.Client
	Reconciler   *reconciler.Reconciler
	Store        *store.Store
	MaxToolCalls int
	Timeout      time.Duration
	Structured   *obslog.StructuredLogger
}

// New builds a streaming Orchestrator from cfg.
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

// HandleResponse runs the full streaming turn loop, writing every event to
// sw as it becomes available. It always ends with exactly one terminal
// event (response.completed, response.incomplete, response.failed, or
// response.error), per spec §8 invariant 1.
func (o *Orchestrator) HandleResponse(httpReq *http.Request, req *domain.ResponseRequest, sw *Writer) error {
	ctx, cancel := context.WithTimeout(httpReq.Context(), o.timeout)
	defer cancel()

	resolution, err := o.router.Resolve(httpReq, req.Model)
	if err != nil {
		return sw.Send(domain.Event{Type: domain.EventResponseError, Payload: domain.ResponseErrorPayload{
			Type:    string(apierror.As(err).Kind),
			Message: apierror.As(err).Message,
		}})
	}

	history, err := o.store.ResolveHistory(ctx, req.PreviousResponseID, req.Input.AsItems())
	if err != nil {
		return sw.Send(domain.Event{Type: domain.EventResponseError, Payload: domain.ResponseErrorPayload{
			Type:    string(apierror.As(err).Kind),
			Message: apierror.As(err).Message,
		}})
	}

	responseID := "resp_" + uuid.NewString()
	createdAt := time.Now().Unix()
	toolCallsSoFar := 0

	// turnInput accumulates only what this turn itself contributes: the
	// request's own input plus every intermediate round's output and tool
	// results, excluding the terminal round's output (persisted once as
	// Response.Output, per spec §3/§4.6 — see orchestrator.go for the same
	// split and why duplicating it into InputItems would replay it twice on
	// chain).
	turnInput := append([]domain.InputItem(nil), req.Input.AsItems()...)

	resp := &domain.Response{
		ID:        responseID,
		Object:    "response",
		CreatedAt: createdAt,
		Model:     req.Model,
		Status:    domain.StatusInProgress,
	}
	if err := sw.Send(domain.Event{Type: domain.EventResponseCreated, Payload: domain.ResponseEnvelopePayload{Response: *resp}}); err != nil {
		return err
	}

	outputIndex := 0
	for {
		if err := sw.Send(domain.Event{Type: domain.EventResponseInProgress, Payload: domain.ResponseEnvelopePayload{Response: *resp}}); err != nil {
			return err
		}

		chatReq, err := translator.ToChatRequest(req, history, resolution.Model)
		if err != nil {
			return o.fail(sw, resp, err)
		}

		events, err := o.client.Stream(ctx, resolution.BaseURL, resolution.AuthToken, chatReq)
		if err != nil {
			o.router.Health().RecordFailure(resolution.BaseURL)
			return o.fail(sw, resp, apierror.Wrap(apierror.KindGenerationError, "upstream streaming call failed", err))
		}

		textItemID := "msg_" + uuid.NewString()
		acc := newTurnAccumulator(textItemID)
		toolItemIDSeq := outputIndex

		for evt := range events {
			if evt.Err != nil {
				o.router.Health().RecordFailure(resolution.BaseURL)
				if ctx.Err() != nil {
					return sw.Send(domain.Event{Type: domain.EventResponseError, Payload: domain.ResponseErrorPayload{
						ResponseID: responseID, Type: string(apierror.KindTimeout), Message: "streaming timed out",
					}})
				}
				return o.fail(sw, resp, apierror.Wrap(apierror.KindGenerationError, "upstream stream error", evt.Err))
			}

			newIndices := acc.accumulate(evt.Chunk, func() string {
				toolItemIDSeq++
				return "fc_" + uuid.NewString()
			})
			acc.classifyInternalToolCalls(o.reconciler.IsInternal)

			if !acc.textOpened && acc.text != "" {
				acc.textOpened = true
				if err := sw.Send(domain.Event{Type: domain.EventOutputItemAdded, Payload: domain.OutputItemPayload{
					ResponseID: responseID, OutputIndex: outputIndex,
					Item: domain.InputItem{Type: domain.InputItemOutputMessage, ID: textItemID, Role: "assistant", Status: "in_progress"},
				}}); err != nil {
					return err
				}
			}

			for _, idx := range newIndices {
				if acc.toolInternal[idx] {
					continue
				}
				if err := sw.Send(domain.Event{Type: domain.EventOutputItemAdded, Payload: domain.OutputItemPayload{
					ResponseID: responseID, OutputIndex: outputIndex + 1 + idx,
					Item: domain.InputItem{Type: domain.InputItemFunctionCall, ID: acc.toolItemIDs[idx]},
				}}); err != nil {
					return err
				}
			}

			for _, converted := range eventconverter.Convert(evt.Chunk, responseID, textItemID, acc.toolItemIDs, acc.toolInternal) {
				if err := sw.Send(converted); err != nil {
					return err
				}
			}
		}
		o.router.Health().RecordSuccess(resolution.BaseURL)
		acc.classifyInternalToolCalls(o.reconciler.IsInternal)

		var turnOutput []domain.InputItem

		if acc.textOpened {
			if err := sw.Send(domain.Event{Type: domain.EventOutputTextDone, Payload: domain.OutputTextDonePayload{
				ResponseID: responseID, OutputIndex: outputIndex, ItemID: textItemID, Text: acc.text,
			}}); err != nil {
				return err
			}
			turnOutput = append(turnOutput, domain.InputItem{
				Type: domain.InputItemOutputMessage, ID: textItemID, Role: "assistant", Status: "completed",
				Content: []domain.ContentPart{{Type: domain.ContentText, Text: acc.text}},
			})
			outputIndex++
		}

		functionCalls := acc.functionCalls()
		for i, idx := range acc.toolOrder {
			call := functionCalls[i]
			if !acc.toolInternal[idx] {
				if err := sw.Send(domain.Event{Type: domain.EventFunctionCallArgumentsDone, Payload: domain.FunctionCallArgumentsDonePayload{
					ResponseID: responseID, OutputIndex: outputIndex, ItemID: acc.toolItemIDs[idx],
					CallID: call.CallID, Name: call.Name, Arguments: call.Arguments,
				}}); err != nil {
					return err
				}
			}
			turnOutput = append(turnOutput, call)
			outputIndex++
		}

		resp.Output = append(resp.Output, turnOutput...)

		if acc.finishReason != domain.FinishToolCalls || len(functionCalls) == 0 {
			resp.Status = translator.MapFinishReason(&acc.finishReason, len(functionCalls) > 0)
			return o.complete(ctx, sw, resp, turnInput, req)
		}

		outcome, err := o.reconciler.Reconcile(ctx, functionCalls, toolCallsSoFar)
		if err != nil {
			return o.fail(sw, resp, err)
		}
		toolCallsSoFar += len(outcome.AppendedItems)

		if outcome.LoopDetected && o.structured != nil {
			o.structured.Warn(obslog.ComponentStreaming, obslog.CategoryWarning, responseID,
				"repeated tool-call pattern detected", map[string]any{"tool": outcome.LoopToolName})
		}

		if len(outcome.Parked) > 0 {
			// Only the tool results actually produced this round are new
			// input; turnOutput (the function calls, some parked) lives in
			// resp.Output as the terminal output and is not duplicated here.
			resp.Status = domain.StatusCompleted
			turnInput = append(turnInput, outcome.AppendedItems...)
			return o.complete(ctx, sw, resp, turnInput, req)
		}

		// Looping back for another round: this round's output and tool
		// results become real input context, not terminal output.
		history = append(history, turnOutput...)
		history = append(history, outcome.AppendedItems...)
		turnInput = append(turnInput, turnOutput...)
		turnInput = append(turnInput, outcome.AppendedItems...)
	}
}

func (o *Orchestrator) complete(ctx context.Context, sw *Writer, resp *domain.Response, inputItems []domain.InputItem, req *domain.ResponseRequest) error {
	eventType := domain.EventResponseCompleted
	switch resp.Status {
	case domain.StatusIncomplete:
		eventType = domain.EventResponseIncomplete
	case domain.StatusFailed:
		eventType = domain.EventResponseFailed
	}

	if err := o.store.Put(ctx, resp, inputItems, req.StoreRequested(), req.PreviousResponseID); err != nil {
		return sw.Send(domain.Event{Type: domain.EventResponseError, Payload: domain.ResponseErrorPayload{
			ResponseID: resp.ID, Type: string(apierror.As(err).Kind), Message: apierror.As(err).Message,
		}})
	}

	return sw.Send(domain.Event{Type: eventType, Payload: domain.ResponseEnvelopePayload{Response: *resp}})
}

// fail sends a response.failed terminal event for errors surfaced before or
// during a model call, without attempting to persist a partial response.
func (o *Orchestrator) fail(sw *Writer, resp *domain.Response, err error) error {
	apiErr := apierror.As(err)
	resp.Status = domain.StatusFailed
	resp.FailedDetails = &domain.FailedDetails{Code: string(apiErr.Kind), Message: apiErr.Message}
	return sw.Send(domain.Event{Type: domain.EventResponseFailed, Payload: domain.ResponseFailedPayload{
		Response: *resp, Error: resp.FailedDetails,
	}})
}
