package agents

import (
	"testing"
	"time"

	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/stretchr/testify/assert"
)

func emptyState() *models.ConversationState {
	return models.NewConversationState(time.Now().UTC())
}

func TestClassify_PendingOperationAlwaysWins(t *testing.T) {
	r := NewRouter()
	state := emptyState()
	state.PendingOperation = &models.PendingOperation{
		EntityType:    models.EntityExpense,
		OperationKind: models.OperationCreate,
	}

	// Even a message full of query keywords belongs to the confirmation
	// workflow while a draft is pending.
	for _, msg := range []string{"sim", "não", "quanto gastei este mês?", "lista minhas despesas"} {
		route := r.Classify(msg, nil, state)
		assert.Equal(t, models.AgentOperations, route.Agent, "message %q", msg)
		assert.Equal(t, ModeConfirmation, route.Mode, "message %q", msg)
	}
}

func TestClassify_AttachmentsRouteToSetup(t *testing.T) {
	r := NewRouter()
	attachments := []models.Attachment{{Name: "contratos.xlsx", MimeType: "application/vnd.ms-excel"}}

	route := r.Classify("segue minha planilha", attachments, emptyState())
	assert.Equal(t, models.AgentSetup, route.Agent)

	// Attachments win even when the text reads like a question.
	route = r.Classify("quanto tenho a receber?", attachments, emptyState())
	assert.Equal(t, models.AgentSetup, route.Agent)
}

func TestClassify_Keywords(t *testing.T) {
	r := NewRouter()

	tests := []struct {
		message string
		want    models.AgentKind
	}{
		{"quanto gastei com transporte este mês?", models.AgentQuery},
		{"lista meus contratos ativos", models.AgentQuery},
		{"how much did I spend on fuel?", models.AgentQuery},
		{"paguei 50 de gasolina ontem", models.AgentOperations},
		{"registra uma despesa de 300 com cimento", models.AgentOperations},
		{"fechei um contrato com a Acme de 120k", models.AgentOperations},
		{"delete the office rent expense", models.AgentOperations},
		{"quero importar minha planilha de despesas", models.AgentSetup},
	}
	for _, tt := range tests {
		route := r.Classify(tt.message, nil, emptyState())
		assert.Equal(t, tt.want, route.Agent, "message %q", tt.message)
		assert.Equal(t, ModeNormal, route.Mode, "message %q", tt.message)
	}
}

func TestClassify_ContinuityBiasOnTie(t *testing.T) {
	r := NewRouter()

	state := emptyState()
	state.LastAgent = models.AgentQuery

	// "e em dezembro" carries no routing keywords at all; the last agent
	// keeps the turn.
	route := r.Classify("e em dezembro", nil, state)
	assert.Equal(t, models.AgentQuery, route.Agent)
	assert.Equal(t, ModeNormal, route.Mode)
}

func TestClassify_NoSignalNoHistoryClarifies(t *testing.T) {
	r := NewRouter()

	route := r.Classify("hmm", nil, emptyState())
	assert.Equal(t, models.AgentOperations, route.Agent)
	assert.Equal(t, ModeClarify, route.Mode, "never guess a mutation from nothing")
}
