// Package reconciler implements the Tool-Call Reconciler (spec §4.5): given
// a turn's FunctionCall output items, it executes every internally
// registered tool inline and parks the rest for the client, enforcing
// MAX_TOOL_CALLS and detecting repeated-call loops along the way.
package reconciler

import (
	"context"
	"fmt"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/tools"
)

// consecutiveLoopThreshold mirrors the teacher's loop detector's
// "3 identical calls in a row" heuristic (loop/detector.go,
// countConsecutiveIdenticalCalls), adapted from a sliding conversation
// window to the cumulative FunctionCall history of a single turn.
const consecutiveLoopThreshold = 3

// Outcome is the result of reconciling one turn's tool calls against the
// registry, per spec §4.5.
type Outcome struct {
	// AppendedItems are the FunctionCallOutput items to append to history
	// for every internally executed call, in the order executed.
	AppendedItems []domain.InputItem

	// Parked holds the FunctionCall items no internal executor could serve;
	// the loop ends and these surface to the client unresolved.
	Parked []domain.InputItem

	// LoopDetected reports whether a repeated-call pattern was found among
	// the turn's internally executed calls (SPEC_FULL §4 supplement).
	LoopDetected bool
	LoopToolName string
}

// Reconciler owns MAX_TOOL_CALLS enforcement and tool dispatch for a single
// request's tool-call loop (spec §4.5, §4.7).
type Reconciler struct {
	registry     *tools.Registry
	maxToolCalls int
}

// New builds a Reconciler bounded by maxToolCalls cumulative internal calls
// per request, per spec §4.5's MAX_TOOL_CALLS invariant.
func New(registry *tools.Registry, maxToolCalls int) *Reconciler {
	return &Reconciler{registry: registry, maxToolCalls: maxToolCalls}
}

// IsInternal reports whether name is a registered internal tool, so the
// streaming orchestrator can suppress the delta/done events belonging to its
// item before the call is ever reconciled (spec §4.8 step 3,
// internal_tool_item_ids accumulator in §9).
func (r *Reconciler) IsInternal(name string) bool {
	_, found := r.registry.Lookup(name)
	return found
}

// Reconcile executes every internally resolvable call in functionCalls,
// appending call_id-matched FunctionCallOutput items. callsSoFar is the
// count of internal calls already executed earlier in this request, used to
// enforce MAX_TOOL_CALLS across the whole loop rather than per-turn.
func (r *Reconciler) Reconcile(ctx context.Context, functionCalls []domain.InputItem, callsSoFar int) (*Outcome, error) {
	outcome := &Outcome{}
	executed := make([]string, 0, len(functionCalls))

	for _, call := range functionCalls {
		if callsSoFar+len(executed) >= r.maxToolCalls {
			return nil, apierror.New(apierror.KindTooManyToolCalls,
				fmt.Sprintf("exceeded max_tool_calls=%d", r.maxToolCalls))
		}

		entry, found := r.registry.Lookup(call.Name)
		if !found {
			outcome.Parked = append(outcome.Parked, call)
			continue
		}

		if err := tools.ValidateArguments(entry.Tool.Parameters, call.Arguments); err != nil {
			outcome.AppendedItems = append(outcome.AppendedItems, domain.InputItem{
				Type:   domain.InputItemFunctionCallOutput,
				CallID: call.CallID,
				Output: apierror.As(err).Error(),
			})
			executed = append(executed, call.Name)
			continue
		}

		output, _, err := r.registry.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			output = apierror.As(err).Error()
		}
		outcome.AppendedItems = append(outcome.AppendedItems, domain.InputItem{
			Type:   domain.InputItemFunctionCallOutput,
			CallID: call.CallID,
			Output: output,
		})
		executed = append(executed, call.Name)
	}

	if loopName, ok := detectConsecutiveLoop(executed); ok {
		outcome.LoopDetected = true
		outcome.LoopToolName = loopName
	}

	return outcome, nil
}

// detectConsecutiveLoop reports whether the same tool name repeats
// consecutively at least consecutiveLoopThreshold times at the tail of
// names, mirroring the teacher's countConsecutiveIdenticalCalls but keyed
// only on tool name (call arguments already vary turn to turn once
// parked calls are excluded, since each call_id is unique).
func detectConsecutiveLoop(names []string) (string, bool) {
	if len(names) < consecutiveLoopThreshold {
		return "", false
	}
	last := names[len(names)-1]
	count := 1
	for i := len(names) - 2; i >= 0; i-- {
		if names[i] != last {
			break
		}
		count++
	}
	if count >= consecutiveLoopThreshold {
		return last, true
	}
	return "", false
}
