package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/confirm"
	"github.com/ledgerchat/ledgerchat/internal/gateway"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(t *testing.T, completer gateway.Completer, s store.Store) *Orchestrator {
	t.Helper()
	if s == nil {
		s = newTestStore(t)
	}
	clock := func() time.Time { return fixedNow }
	extractor := NewExtractor(completer, s).WithClock(clock)
	return NewOrchestrator(
		NewRouter(),
		NewSetupAgent(completer),
		NewQueryAgent(completer, s).WithClock(clock),
		NewOperationsAgent(extractor, confirm.NewWorkflow(s)),
	).WithClock(clock)
}

// Full expense flow: extraction turn proposes a draft, confirmation turn
// persists it.
func TestHandleTurn_ExpenseCreateThenConfirm(t *testing.T) {
	s := newTestStore(t)
	completer := &scriptedCompleter{replies: []string{
		`{"entity_type":"expense","operation":"create","fields":{"description":"gasolina","amount":"50","due_date":"ontem","is_paid":"true"}}`,
	}}
	o := newOrchestrator(t, completer, s)
	ctx := context.Background()

	// Turn 1: extraction → confirmation prompt, nothing persisted yet.
	resp, err := o.HandleTurn(ctx, "default", &models.ChatRequest{
		Message: "paguei 50 de gasolina ontem",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.AgentOperations, resp.AgentUsed)
	require.NotNil(t, resp.ConversationState.PendingOperation)
	assert.Len(t, resp.ConversationState.Messages, 2, "user + assistant message")

	rows, _ := s.ListExpenses(ctx, "default", store.ListFilter{})
	assert.Empty(t, rows, "nothing persisted before confirmation")

	// Turn 2: "sim" → persisted, pending cleared.
	resp2, err := o.HandleTurn(ctx, "default", &models.ChatRequest{
		Message:           "sim",
		ConversationState: resp.ConversationState,
	})
	require.NoError(t, err)
	assert.True(t, resp2.Success)
	assert.Nil(t, resp2.ConversationState.PendingOperation)
	assert.Equal(t, 1, resp2.ConversationState.Metadata.EntitiesCreated)
	assert.Len(t, resp2.ConversationState.Messages, 4)

	rows, _ = s.ListExpenses(ctx, "default", store.ListFilter{})
	require.Len(t, rows, 1)
	assert.Equal(t, "gasolina", rows[0].Description)
	assert.Equal(t, float64(50), rows[0].Amount)
	assert.Equal(t, "transport", rows[0].Category)
	assert.True(t, rows[0].DueDate.Equal(time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)))
}

func TestHandleTurn_RejectDiscardsDraft(t *testing.T) {
	s := newTestStore(t)
	completer := &scriptedCompleter{replies: []string{
		`{"entity_type":"expense","operation":"create","fields":{"description":"gasolina","amount":"50","due_date":"ontem"}}`,
	}}
	o := newOrchestrator(t, completer, s)
	ctx := context.Background()

	resp, err := o.HandleTurn(ctx, "default", &models.ChatRequest{Message: "paguei 50 de gasolina ontem"})
	require.NoError(t, err)

	resp2, err := o.HandleTurn(ctx, "default", &models.ChatRequest{
		Message:           "não",
		ConversationState: resp.ConversationState,
	})
	require.NoError(t, err)
	assert.Nil(t, resp2.ConversationState.PendingOperation)

	rows, _ := s.ListExpenses(ctx, "default", store.ListFilter{})
	assert.Empty(t, rows)
}

func TestHandleTurn_AmbiguousReplyReprompts(t *testing.T) {
	s := newTestStore(t)
	completer := &scriptedCompleter{replies: []string{
		`{"entity_type":"expense","operation":"create","fields":{"description":"gasolina","amount":"50","due_date":"ontem"}}`,
	}}
	o := newOrchestrator(t, completer, s)
	ctx := context.Background()

	resp, err := o.HandleTurn(ctx, "default", &models.ChatRequest{Message: "paguei 50 de gasolina ontem"})
	require.NoError(t, err)
	prompt := resp.ConversationState.PendingOperation.ConfirmationPrompt

	resp2, err := o.HandleTurn(ctx, "default", &models.ChatRequest{
		Message:           "talvez",
		ConversationState: resp.ConversationState,
	})
	require.NoError(t, err)
	require.NotNil(t, resp2.ConversationState.PendingOperation, "draft retained")
	assert.Contains(t, resp2.Response, prompt, "re-prompt repeats the preview")

	rows, _ := s.ListExpenses(ctx, "default", store.ListFilter{})
	assert.Empty(t, rows)
}

// A gateway timeout must leave the caller's state untouched so the turn can
// simply be retried.
func TestHandleTurn_TransientGatewayErrorLeavesStateUnchanged(t *testing.T) {
	gwErr := &gateway.Error{Kind: gateway.KindTimeout, Err: errors.New("deadline exceeded")}
	o := newOrchestrator(t, &scriptedCompleter{err: gwErr}, nil)

	state := models.NewConversationState(fixedNow)
	state.AppendMessage(models.ConversationMessage{Role: models.RoleUser, Content: "oi", Timestamp: fixedNow})
	before := state.Clone()

	resp, err := o.HandleTurn(context.Background(), "default", &models.ChatRequest{
		Message:           "paguei 50 de gasolina ontem",
		ConversationState: state,
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Response)
	assert.Equal(t, before.Metadata.MessageCount, resp.ConversationState.Metadata.MessageCount)
	assert.Len(t, resp.ConversationState.Messages, len(before.Messages))
}

func TestHandleTurn_ConfigurationErrorSurfaces(t *testing.T) {
	gwErr := &gateway.Error{Kind: gateway.KindConfiguration, Err: errors.New("api key not configured")}
	o := newOrchestrator(t, &scriptedCompleter{err: gwErr}, nil)

	_, err := o.HandleTurn(context.Background(), "default", &models.ChatRequest{
		Message: "paguei 50 de gasolina ontem",
	})
	require.Error(t, err)
	assert.True(t, gateway.IsConfiguration(err))
}

func TestHandleTurn_QueryNeverMutates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateExpense(ctx, &models.Expense{
		ID: "e1", TeamID: "default", Description: "gasolina", Amount: 50,
		DueDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Category: "transport",
	}))

	completer := &scriptedCompleter{replies: []string{
		`{"entity_type":"expense","category":"transport","summarize":true}`,
	}}
	o := newOrchestrator(t, completer, s)

	resp, err := o.HandleTurn(ctx, "default", &models.ChatRequest{
		Message: "quanto gastei com transporte?",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.AgentQuery, resp.AgentUsed)
	assert.Contains(t, resp.Response, "50")
	assert.Nil(t, resp.ConversationState.PendingOperation)

	result, ok := resp.Data.(*QueryResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, float64(50), result.Total)
}

func TestHandleTurn_QueryIsTeamScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateExpense(ctx, &models.Expense{
		ID: "e1", TeamID: "team-a", Description: "gasolina", Amount: 50, Category: "transport",
	}))
	require.NoError(t, s.CreateExpense(ctx, &models.Expense{
		ID: "e2", TeamID: "team-b", Description: "almoço", Amount: 80, Category: "food",
	}))

	completer := &scriptedCompleter{replies: []string{
		`{"entity_type":"expense","summarize":true}`,
	}}
	o := newOrchestrator(t, completer, s)

	resp, err := o.HandleTurn(ctx, "team-a", &models.ChatRequest{Message: "quanto gastei?"})
	require.NoError(t, err)

	result, ok := resp.Data.(*QueryResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.Count, "only team-a's expense is visible")
	assert.Equal(t, float64(50), result.Total)
}

func TestHandleTurn_AttachmentsAcknowledgedBySetup(t *testing.T) {
	o := newOrchestrator(t, &scriptedCompleter{replies: []string{"unused"}}, nil)

	resp, err := o.HandleTurn(context.Background(), "default", &models.ChatRequest{
		Message: "segue a planilha de contratos",
		Attachments: []models.Attachment{
			{Name: "contratos.xlsx", MimeType: "application/vnd.ms-excel"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AgentSetup, resp.AgentUsed)
	assert.Contains(t, resp.Response, "contratos.xlsx")
	assert.Equal(t, 1, resp.ConversationState.Messages[0].AttachmentCount)
}

func TestHandleTurn_LastAgentRecorded(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		`{"entity_type":"expense","summarize":true}`,
	}}
	o := newOrchestrator(t, completer, nil)

	resp, err := o.HandleTurn(context.Background(), "default", &models.ChatRequest{
		Message: "lista minhas despesas",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AgentQuery, resp.ConversationState.LastAgent)
}
