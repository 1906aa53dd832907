package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"goa.design/plankit/runtime/execute"
	"goa.design/plankit/runtime/plan"
	"goa.design/plankit/runtime/planner"
	"goa.design/plankit/runtime/prompt"
	"goa.design/plankit/runtime/telemetry"
)

type (
	// ContextExtractor derives a working context from one successful step
	// result. Extractors are keyed by action identifier; returning nil
	// leaves the current working context untouched.
	ContextExtractor func(ctx context.Context, step execute.StepResult) (*WorkingContext, error)

	// ManagerOptions configures NewManager. Planner is required.
	ManagerOptions struct {
		// Planner formulates the plan each turn.
		Planner *planner.Planner

		// Executor runs plans after formulation. Nil means the manager
		// only plans; the caller dispatches the plan itself.
		Executor *execute.Executor

		// Codec encodes and decodes state blobs. Nil uses the default
		// codec at the current version with no migrations.
		Codec *Codec

		// Extractors update the working context from step outputs.
		Extractors map[string]ContextExtractor

		// Store enables the session-keyed convenience methods. Nil
		// restricts the manager to the blob-in, blob-out Turn.
		Store Store

		// SessionTTL bounds stored blob lifetimes; zero means no expiry.
		SessionTTL time.Duration

		// MaxHistorySize caps TurnHistory; values below 1 default to 10.
		MaxHistorySize int

		// Logger defaults to a noop implementation.
		Logger telemetry.Logger
	}

	// Manager drives complete conversation turns: decode the prior blob,
	// fold the user's reply into state, plan, execute, derive the next
	// state, and encode the new blob. Managers are immutable and safe for
	// concurrent use across sessions.
	Manager struct {
		planner    *planner.Planner
		executor   *execute.Executor
		codec      *Codec
		extractors map[string]ContextExtractor
		store      Store
		ttl        time.Duration
		maxHistory int
		logger     telemetry.Logger
		now        func() time.Time
	}

	// TurnResult is the outcome of one conversation turn.
	TurnResult struct {
		// Plan is the bound plan of this turn.
		Plan *plan.Plan

		// State is the derived state for the next turn.
		State *State

		// Blob is the encoded form of State for the caller to persist.
		Blob []byte

		// PendingParams lists the parameters the application must elicit
		// before the next turn, nil when nothing is outstanding.
		PendingParams []plan.PendingParam

		// ProvidedParams is the accumulated parameter values after this
		// turn.
		ProvidedParams map[string]any

		// Execution is the executor's result, nil when the manager has no
		// executor or the formulation was a dry run.
		Execution *execute.Result

		// Metrics aggregates the planner's attempt history for the turn.
		Metrics planner.Metrics
	}
)

// defaultMaxHistory caps TurnHistory when the caller does not.
const defaultMaxHistory = 10

// NewManager constructs a conversation manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Planner == nil {
		return nil, fmt.Errorf("conversation: planner is required")
	}
	codec := opts.Codec
	if codec == nil {
		codec = NewCodec(CodecOptions{})
	}
	maxHistory := opts.MaxHistorySize
	if maxHistory < 1 {
		maxHistory = defaultMaxHistory
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	extractors := make(map[string]ContextExtractor, len(opts.Extractors))
	for id, ex := range opts.Extractors {
		extractors[id] = ex
	}
	return &Manager{
		planner:    opts.Planner,
		executor:   opts.Executor,
		codec:      codec,
		extractors: extractors,
		store:      opts.Store,
		ttl:        opts.SessionTTL,
		maxHistory: maxHistory,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Turn runs one conversation turn against the prior blob. An empty blob
// starts a fresh conversation. Decode failures (IntegrityError,
// MigrationError) are returned as-is so the caller can reset the session.
func (m *Manager) Turn(ctx context.Context, priorBlob []byte, userMessage string) (*TurnResult, error) {
	state, err := m.restore(priorBlob, userMessage)
	if err != nil {
		return nil, err
	}

	res, err := m.planner.FormulatePlan(ctx, userMessage, prompt.Conversation{
		OriginalInstruction: state.OriginalInstruction,
		LatestUserMessage:   state.LatestUserMessage,
		PendingParams:       state.PendingParams,
		ProvidedParams:      state.ProvidedParams,
		ContextType:         state.contextType(),
		WorkingContext:      state.workingPayload(),
	})
	if err != nil {
		return nil, err
	}

	next := deriveState(state, res.Plan)

	var execution *execute.Result
	if m.executor != nil && !res.DryRun {
		execution, err = m.executor.Execute(ctx, res.Plan)
		if err != nil {
			return nil, err
		}
		m.applyExtractors(ctx, next, execution)
	}

	blob, err := m.codec.Encode(next)
	if err != nil {
		return nil, err
	}
	return &TurnResult{
		Plan:           res.Plan,
		State:          next,
		Blob:           blob,
		PendingParams:  next.PendingParams,
		ProvidedParams: next.ProvidedParams,
		Execution:      execution,
		Metrics:        res.Metrics,
	}, nil
}

// TurnForSession runs a turn against the configured store. Corrupt or
// unmigratable blobs reset the session to a fresh conversation rather than
// failing the turn.
func (m *Manager) TurnForSession(ctx context.Context, sessionID, userMessage string) (*TurnResult, error) {
	if m.store == nil {
		return nil, fmt.Errorf("conversation: no store configured")
	}
	blob, err := m.store.Load(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("conversation: load session %q: %w", sessionID, err)
	}

	result, err := m.Turn(ctx, blob, userMessage)
	if err != nil {
		var integrity *IntegrityError
		var migration *MigrationError
		if !errors.As(err, &integrity) && !errors.As(err, &migration) {
			return nil, err
		}
		m.logger.Warn(ctx, "session blob rejected, resetting conversation",
			"session_id", sessionID,
			"err", err.Error())
		if result, err = m.Turn(ctx, nil, userMessage); err != nil {
			return nil, err
		}
	}

	if err := m.store.Save(ctx, sessionID, result.Blob, m.ttl); err != nil {
		return nil, fmt.Errorf("conversation: save session %q: %w", sessionID, err)
	}
	return result, nil
}

// Expire removes the session's blob from the store. The next turn starts a
// fresh conversation.
func (m *Manager) Expire(ctx context.Context, sessionID string) error {
	if m.store == nil {
		return fmt.Errorf("conversation: no store configured")
	}
	return m.store.Delete(ctx, sessionID)
}

// Expired abandons a conversation for callers that persist blobs themselves:
// it returns an empty state and its encoded blob, which the caller stores in
// place of the prior one (or drops entirely).
func (m *Manager) Expired() (*TurnResult, error) {
	state := Initial("")
	blob, err := m.codec.Encode(state)
	if err != nil {
		return nil, err
	}
	return &TurnResult{
		State:          state,
		Blob:           blob,
		ProvidedParams: state.ProvidedParams,
	}, nil
}

// restore rebuilds the turn's starting state from the prior blob and folds
// the user's reply in. When exactly one parameter was pending, the reply is
// taken as its value; the planner treats the binding as advisory and the
// resolver re-validates it like any other value.
func (m *Manager) restore(priorBlob []byte, userMessage string) (*State, error) {
	if len(priorBlob) == 0 {
		return Initial(userMessage), nil
	}
	prior, err := m.codec.Decode(priorBlob)
	if err != nil {
		return nil, err
	}
	state := prior.Clone()
	state.LatestUserMessage = userMessage
	if reply := strings.TrimSpace(userMessage); len(state.PendingParams) == 1 && reply != "" {
		state.ProvidedParams[state.PendingParams[0].Name] = reply
	}
	return state, nil
}

// deriveState produces the next turn's state from the bound plan:
//
//   - PENDING plans replace the pending list and merge the preserved
//     provided values
//   - READY plans clear pendings and fold the bound arguments into the
//     provided values
//   - ERROR and no-action plans clear pendings
//
// A name listed as pending never survives in the provided map, so a
// re-requested parameter is elicited from scratch.
func deriveState(state *State, p *plan.Plan) *State {
	next := state.Clone()
	switch p.Status() {
	case plan.StatusPending:
		next.PendingParams = p.PendingParams()
		for _, s := range p.Steps {
			ps, ok := s.(plan.PendingActionStep)
			if !ok {
				continue
			}
			for name, value := range ps.ProvidedParams {
				next.ProvidedParams[name] = value
			}
		}
	case plan.StatusReady:
		next.PendingParams = nil
		for _, s := range p.Steps {
			as, ok := s.(plan.ActionStep)
			if !ok {
				continue
			}
			for _, a := range as.Arguments {
				next.ProvidedParams[a.Name] = a.Value
			}
		}
	default:
		next.PendingParams = nil
	}
	for _, pp := range next.PendingParams {
		delete(next.ProvidedParams, pp.Name)
	}
	return next
}

// applyExtractors updates the working context from successful step outputs.
// Extractor failures are logged and skipped; the turn's state still encodes.
func (m *Manager) applyExtractors(ctx context.Context, next *State, execution *execute.Result) {
	for _, sr := range execution.Steps {
		ex, ok := m.extractors[sr.ActionID]
		if !ok || !sr.Success {
			continue
		}
		wc, err := ex(ctx, sr)
		if err != nil {
			m.logger.Warn(ctx, "context extractor failed",
				"action", sr.ActionID,
				"err", err.Error())
			continue
		}
		if wc == nil {
			continue
		}
		if wc.LastModified.IsZero() {
			wc.LastModified = m.now()
		}
		if next.WorkingContext != nil {
			next.TurnHistory = append(next.TurnHistory, *next.WorkingContext)
			if overflow := len(next.TurnHistory) - m.maxHistory; overflow > 0 {
				next.TurnHistory = append([]WorkingContext(nil), next.TurnHistory[overflow:]...)
			}
		}
		next.WorkingContext = wc
	}
}

// contextType returns the working context type, empty when none is carried.
func (s *State) contextType() string {
	if s.WorkingContext == nil {
		return ""
	}
	return s.WorkingContext.ContextType
}

// workingPayload returns the working context payload for prompt assembly.
func (s *State) workingPayload() any {
	if s.WorkingContext == nil {
		return nil
	}
	return s.WorkingContext.Payload
}
