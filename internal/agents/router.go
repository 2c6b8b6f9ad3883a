package agents

import (
	"strings"

	"github.com/ledgerchat/ledgerchat/pkg/models"
)

// RouteMode qualifies how the chosen agent should treat the message.
type RouteMode string

const (
	// ModeNormal — regular intent handling for the chosen agent.
	ModeNormal RouteMode = "normal"
	// ModeConfirmation — a pending operation exists; the message is a
	// confirmation reply, not a new request. Routing never classifies it.
	ModeConfirmation RouteMode = "confirmation"
	// ModeClarify — no signal at all; the operations agent asks what the
	// user wants instead of guessing a mutation.
	ModeClarify RouteMode = "clarify"
)

// Route is one routing decision.
type Route struct {
	Agent models.AgentKind
	Mode  RouteMode
}

// setupKeywords signal bulk onboarding: spreadsheets, imports, "getting
// started" phrasing.
var setupKeywords = []string{
	"importar", "importação", "importacao", "planilha", "migrar",
	"começar do zero", "comecar do zero", "configurar",
	"import", "spreadsheet", "csv", "migrate", "onboard", "set up", "setup",
}

// queryKeywords signal read-only questions about existing data.
var queryKeywords = []string{
	"quanto", "quais", "qual", "quem", "quando", "listar", "lista",
	"mostra", "mostrar", "mostre", "ver ", "resumo", "relatório",
	"relatorio", "total", "saldo", "pendente", "atrasado", "vencendo",
	"how much", "how many", "what ", "which", "who ", "when ",
	"list", "show", "summary", "report", "overdue", "upcoming", "balance",
}

// operationsKeywords signal an intent to create, change or remove a record.
var operationsKeywords = []string{
	"criar", "registrar", "registra", "anotar", "anota", "adicionar",
	"adiciona", "lançar", "lancar", "novo", "nova", "paguei", "gastei",
	"comprei", "recebi", "vou receber", "fechei", "fechamos", "assinei",
	"apagar", "apaga", "deletar", "excluir", "remover", "editar", "edita",
	"atualizar", "atualiza", "mudar", "muda", "corrigir", "corrige",
	"add", "create", "record", "new ", "paid", "spent", "bought",
	"received", "closed a", "signed", "delete", "remove", "edit",
	"update", "change", "fix",
}

// Router assigns each turn to one specialized agent. Classification is
// keyword-scored with a continuity bias; a pending operation short-circuits
// everything because the reply belongs to the confirmation workflow.
type Router struct{}

func NewRouter() *Router { return &Router{} }

// Classify picks the agent and mode for one incoming turn.
func (r *Router) Classify(message string, attachments []models.Attachment, state *models.ConversationState) Route {
	// A pending operation owns the next reply unconditionally. Routing it
	// anywhere else would let "sim" be reinterpreted as a new request.
	if state != nil && state.PendingOperation != nil {
		return Route{Agent: models.AgentOperations, Mode: ModeConfirmation}
	}

	// Attachments mean bulk onboarding regardless of the text.
	if len(attachments) > 0 {
		return Route{Agent: models.AgentSetup, Mode: ModeNormal}
	}

	lower := strings.ToLower(message)
	setupScore := score(lower, setupKeywords)
	queryScore := score(lower, queryKeywords)
	opsScore := score(lower, operationsKeywords)

	// A question mark is a strong read signal on its own.
	if strings.Contains(lower, "?") {
		queryScore++
	}

	switch {
	case setupScore > queryScore && setupScore > opsScore:
		return Route{Agent: models.AgentSetup, Mode: ModeNormal}
	case queryScore > opsScore:
		return Route{Agent: models.AgentQuery, Mode: ModeNormal}
	case opsScore > queryScore:
		return Route{Agent: models.AgentOperations, Mode: ModeNormal}
	}

	// Tie (including all-zero): stay with the last agent when there is one.
	if state != nil && state.LastAgent != "" {
		mode := ModeNormal
		if setupScore+queryScore+opsScore == 0 && state.LastAgent == models.AgentOperations {
			// No signal at all: the operations agent may still extract
			// from context, but a full blank gets a clarification.
			if strings.TrimSpace(message) == "" {
				mode = ModeClarify
			}
		}
		return Route{Agent: state.LastAgent, Mode: mode}
	}

	// No signal and no history: never guess a mutation.
	if setupScore+queryScore+opsScore == 0 {
		return Route{Agent: models.AgentOperations, Mode: ModeClarify}
	}
	return Route{Agent: models.AgentOperations, Mode: ModeNormal}
}

func score(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
