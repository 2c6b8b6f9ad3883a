package agents

import (
	"context"

	"github.com/ledgerchat/ledgerchat/internal/confirm"
	"github.com/ledgerchat/ledgerchat/pkg/models"
)

// OperationsAgent turns mutation intents into confirmed writes. It never
// persists anything directly: a completed extraction becomes a pending
// operation, and only the confirmation workflow executes it.
type OperationsAgent struct {
	extractor *Extractor
	workflow  *confirm.Workflow
}

func NewOperationsAgent(e *Extractor, w *confirm.Workflow) *OperationsAgent {
	return &OperationsAgent{extractor: e, workflow: w}
}

// OperationsOutcome is what one operations turn produced.
type OperationsOutcome struct {
	Response string
	Data     any
	// Failed marks a turn that reached the user but did not do what an
	// affirmative asked for (persistence failure, gateway error).
	Failed bool
}

// HandleNew runs extraction for a fresh mutation intent and, when the draft
// is complete, proposes it for confirmation.
func (a *OperationsAgent) HandleNew(ctx context.Context, teamID, message string, state *models.ConversationState, history []models.ChatMessage) (OperationsOutcome, error) {
	extraction := a.extractor.Extract(ctx, teamID, message, history)

	switch extraction.Status {
	case DraftComplete:
		if err := a.workflow.Propose(state, extraction.Draft); err != nil {
			// Unreachable through the router (a pending operation routes to
			// confirmation mode), but the invariant stays enforced here.
			return OperationsOutcome{
				Response: clarifyText(message,
					"Ainda há uma operação aguardando confirmação — responda \"sim\" ou \"não\" primeiro.",
					"There is still an operation awaiting confirmation — reply \"yes\" or \"no\" first."),
			}, nil
		}
		return OperationsOutcome{Response: extraction.Draft.ConfirmationPrompt}, nil

	case ClarificationNeeded:
		return OperationsOutcome{Response: extraction.Question}, nil

	default:
		return OperationsOutcome{}, extraction.Err
	}
}

// HandleConfirmation resolves the pending operation with the user's reply.
func (a *OperationsAgent) HandleConfirmation(ctx context.Context, teamID string, state *models.ConversationState, reply string) OperationsOutcome {
	resolution := a.workflow.Resolve(ctx, teamID, state, reply)
	return OperationsOutcome{
		Response: resolution.Response,
		Data:     resolution.Data,
		Failed:   resolution.Status == confirm.StatusFailed,
	}
}

// clarifyPrompt is the reply for turns with no recognizable intent at all.
func clarifyPrompt(message string) string {
	return clarifyText(message,
		"Não entendi o que você quer fazer. Você pode registrar contratos, recebíveis e despesas, ou perguntar sobre os registros existentes.",
		"I did not catch what you want to do. You can record contracts, receivables and expenses, or ask about existing records.")
}
