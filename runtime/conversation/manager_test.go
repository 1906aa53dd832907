package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/actions"
	"goa.design/plankit/runtime/execute"
	"goa.design/plankit/runtime/model"
	"goa.design/plankit/runtime/plan"
	"goa.design/plankit/runtime/planner"
)

func bookingRegistry(t *testing.T) *actions.Registry {
	t.Helper()
	r := actions.NewRegistry()
	require.NoError(t, r.Register(actions.Action{
		Descriptor: actions.ActionDescriptor{
			ID:         "book_hotel",
			ContextKey: "booking",
			Parameters: []actions.ParameterDescriptor{
				{Name: "city", Type: actions.TypeString, Required: true},
				{Name: "nights", Type: actions.TypeInt, Required: true},
			},
		},
		Handler: func(_ context.Context, _ *actions.Context, args []any) (any, error) {
			return fmt.Sprintf("booked %s for %d nights", args[0], args[1]), nil
		},
	}))
	return r
}

// promptAwareClient emulates a model reading the retry addendum and the
// user's reply: it asks for both values first, folds an answered city into
// providedParams, and emits the bound plan once both values are known.
func promptAwareClient() model.Client {
	return model.Func(func(_ context.Context, req model.Request) (string, error) {
		system := strings.Join(req.SystemMessages, "\n")
		providedCity := strings.Contains(system, "- city: Lisbon")
		providedNights := strings.Contains(system, "- nights: 2")
		replyNamesCity := strings.Contains(req.UserMessage, "Lisbon")
		switch {
		case providedCity && providedNights:
			return `{"message":"Booking now.","steps":[{"actionId":"book_hotel","parameters":{"city":"Lisbon","nights":2}}]}`, nil
		case providedCity || replyNamesCity:
			return `{"message":"How long?","steps":[{"actionId":"book_hotel","status":"pending","pendingParams":[{"name":"nights","prompt":"How many nights?"}],"providedParams":{"city":"Lisbon"}}]}`, nil
		default:
			return `{"message":"Which city?","steps":[{"actionId":"book_hotel","status":"pending","pendingParams":[{"name":"city","prompt":"Which city?"},{"name":"nights","prompt":"How many nights?"}]}]}`, nil
		}
	})
}

// readyClient always emits the same bound plan.
func readyClient() model.Client {
	return model.Func(func(context.Context, model.Request) (string, error) {
		return `{"message":"Booking now.","steps":[{"actionId":"book_hotel","parameters":{"city":"Lisbon","nights":2}}]}`, nil
	})
}

func newTestManager(t *testing.T, client model.Client, opts ManagerOptions) *Manager {
	t.Helper()
	registry := bookingRegistry(t)
	pl, err := planner.New(planner.Options{
		Actions: registry,
		Default: &planner.Tier{Client: client, ModelID: "test"},
	})
	require.NoError(t, err)
	exec, err := execute.New(execute.Options{
		Actions: registry,
		Pending: func(_ context.Context, p *plan.Plan, actx *actions.Context) (*execute.Result, error) {
			return execute.NotExecuted(p, actx, "awaiting input"), nil
		},
		Error: func(_ context.Context, p *plan.Plan, actx *actions.Context) (*execute.Result, error) {
			reason, _ := p.FirstError()
			return execute.NotExecuted(p, actx, reason), nil
		},
		NoAction: func(_ context.Context, p *plan.Plan, actx *actions.Context) (*execute.Result, error) {
			return execute.NotExecuted(p, actx, "nothing to do"), nil
		},
	})
	require.NoError(t, err)
	opts.Planner = pl
	opts.Executor = exec
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m
}

func TestManagerMultiTurnElicitation(t *testing.T) {
	m := newTestManager(t, promptAwareClient(), ManagerOptions{})
	ctx := context.Background()

	// Turn 1: nothing provided yet, the plan asks for both values.
	turn1, err := m.Turn(ctx, nil, "book me a hotel")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPending, turn1.Plan.Status())
	require.Len(t, turn1.PendingParams, 2)
	assert.Equal(t, "city", turn1.PendingParams[0].Name)
	assert.Nil(t, turn1.Execution.Steps)

	// Turn 2: the reply names the city; the model still needs nights.
	turn2, err := m.Turn(ctx, turn1.Blob, "Lisbon please")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPending, turn2.Plan.Status())
	require.Len(t, turn2.PendingParams, 1)
	assert.Equal(t, "nights", turn2.PendingParams[0].Name)
	assert.Equal(t, "Lisbon", turn2.ProvidedParams["city"])
	_, stillPending := turn2.ProvidedParams["nights"]
	assert.False(t, stillPending, "a pending name never appears among provided values")

	// Turn 3: the single pending parameter folds from the raw reply and the
	// plan executes.
	turn3, err := m.Turn(ctx, turn2.Blob, "2")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusReady, turn3.Plan.Status())
	assert.Empty(t, turn3.PendingParams)
	require.NotNil(t, turn3.Execution)
	assert.True(t, turn3.Execution.Success)
	require.Len(t, turn3.Execution.Steps, 1)
	assert.Equal(t, "booked Lisbon for 2 nights", turn3.Execution.Steps[0].Output)
	assert.Equal(t, int64(2), turn3.ProvidedParams["nights"], "bound arguments fold into provided values")
	assert.Equal(t, "book me a hotel", turn3.State.OriginalInstruction)
}

func TestManagerSingePendingFoldsReply(t *testing.T) {
	m := newTestManager(t, promptAwareClient(), ManagerOptions{})
	ctx := context.Background()

	state := Initial("book me a hotel")
	state.PendingParams = []plan.PendingParam{{Name: "nights", Prompt: "How many nights?"}}
	state.ProvidedParams["city"] = "Lisbon"
	codec := NewCodec(CodecOptions{})
	blob, err := codec.Encode(state)
	require.NoError(t, err)

	turn, err := m.Turn(ctx, blob, "2")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusReady, turn.Plan.Status())
}

func TestManagerClearsPendingsOnErrorPlan(t *testing.T) {
	client := model.Func(func(context.Context, model.Request) (string, error) {
		return `{"message":"?","steps":[{"error":true,"reason":"confused"}]}`, nil
	})
	m := newTestManager(t, client, ManagerOptions{})

	state := Initial("do something")
	state.PendingParams = []plan.PendingParam{{Name: "x", Prompt: "X?"}}
	codec := NewCodec(CodecOptions{})
	blob, err := codec.Encode(state)
	require.NoError(t, err)

	turn, err := m.Turn(context.Background(), blob, "whatever")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusError, turn.Plan.Status())
	assert.Empty(t, turn.PendingParams)
}

func TestManagerContextExtractor(t *testing.T) {
	extracted := WorkingContext{
		ContextType: "booking",
		Version:     1,
		Payload:     map[string]any{"city": "Lisbon"},
	}
	m := newTestManager(t, promptAwareClient(), ManagerOptions{
		MaxHistorySize: 2,
		Extractors: map[string]ContextExtractor{
			"book_hotel": func(_ context.Context, step execute.StepResult) (*WorkingContext, error) {
				wc := extracted
				return &wc, nil
			},
		},
	})
	ctx := context.Background()

	state := Initial("book me a hotel in Lisbon for 2 nights")
	state.ProvidedParams["city"] = "Lisbon"
	state.ProvidedParams["nights"] = int64(2)
	state.WorkingContext = &WorkingContext{ContextType: "booking", Version: 1, Payload: map[string]any{"city": "Porto"}}
	codec := NewCodec(CodecOptions{})
	blob, err := codec.Encode(state)
	require.NoError(t, err)

	turn, err := m.Turn(ctx, blob, "go ahead")
	require.NoError(t, err)
	require.Equal(t, plan.StatusReady, turn.Plan.Status())
	require.NotNil(t, turn.State.WorkingContext)
	assert.Equal(t, map[string]any{"city": "Lisbon"}, turn.State.WorkingContext.Payload)
	assert.False(t, turn.State.WorkingContext.LastModified.IsZero())
	require.Len(t, turn.State.TurnHistory, 1, "prior working context moves into history")
	assert.Equal(t, map[string]any{"city": "Porto"}, turn.State.TurnHistory[0].Payload)
}

func TestManagerHistoryCap(t *testing.T) {
	next := 0
	m := newTestManager(t, readyClient(), ManagerOptions{
		MaxHistorySize: 2,
		Extractors: map[string]ContextExtractor{
			"book_hotel": func(context.Context, execute.StepResult) (*WorkingContext, error) {
				next++
				return &WorkingContext{
					ContextType: "booking",
					Version:     1,
					Payload:     map[string]any{"n": float64(next)},
				}, nil
			},
		},
	})
	ctx := context.Background()

	var blob []byte
	for i := 0; i < 4; i++ {
		turn, err := m.Turn(ctx, blob, "book a hotel in Lisbon for 2 nights")
		require.NoError(t, err)
		blob = turn.Blob
	}

	codec := NewCodec(CodecOptions{})
	state, err := codec.Decode(blob)
	require.NoError(t, err)
	require.NotNil(t, state.WorkingContext)
	require.Len(t, state.TurnHistory, 2)
	// Oldest entries fall off the front.
	assert.Equal(t, map[string]any{"n": float64(2)}, state.TurnHistory[0].Payload)
	assert.Equal(t, map[string]any{"n": float64(3)}, state.TurnHistory[1].Payload)
	assert.Equal(t, map[string]any{"n": float64(4)}, state.WorkingContext.Payload)
}

func TestManagerTurnForSessionPersistsAndExpires(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(t, promptAwareClient(), ManagerOptions{Store: store})
	ctx := context.Background()

	turn, err := m.TurnForSession(ctx, "sess-1", "book me a hotel")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPending, turn.Plan.Status())

	saved, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, turn.Blob, saved)

	require.NoError(t, m.Expire(ctx, "sess-1"))
	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerTurnForSessionResetsCorruptBlob(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(t, promptAwareClient(), ManagerOptions{Store: store})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", []byte("definitely not a blob"), 0))

	turn, err := m.TurnForSession(ctx, "sess-1", "book me a hotel")
	require.NoError(t, err)
	assert.Equal(t, "book me a hotel", turn.State.OriginalInstruction)

	saved, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, turn.Blob, saved, "reset conversation replaces the corrupt blob")
}

func TestManagerTurnRejectsCorruptBlobDirectly(t *testing.T) {
	m := newTestManager(t, promptAwareClient(), ManagerOptions{})
	_, err := m.Turn(context.Background(), []byte("garbage"), "hi")
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestManagerExpiredYieldsEmptyState(t *testing.T) {
	m := newTestManager(t, promptAwareClient(), ManagerOptions{})
	expired, err := m.Expired()
	require.NoError(t, err)
	assert.Empty(t, expired.State.OriginalInstruction)
	assert.Empty(t, expired.State.PendingParams)

	// The blob decodes back to the same empty state.
	codec := NewCodec(CodecOptions{})
	state, err := codec.Decode(expired.Blob)
	require.NoError(t, err)
	assert.Empty(t, state.OriginalInstruction)
}

func TestManagerRequiresPlanner(t *testing.T) {
	_, err := NewManager(ManagerOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planner is required")
}

func TestManagerSessionMethodsRequireStore(t *testing.T) {
	m := newTestManager(t, promptAwareClient(), ManagerOptions{})
	_, err := m.TurnForSession(context.Background(), "s", "hi")
	require.Error(t, err)
	require.Error(t, m.Expire(context.Background(), "s"))
}
