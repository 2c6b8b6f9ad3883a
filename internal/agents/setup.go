package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerchat/ledgerchat/internal/gateway"
	"github.com/ledgerchat/ledgerchat/pkg/models"
)

// SetupAgent handles initial onboarding: attachment-driven bulk imports and
// "how do I get started" turns. Content extraction from files (OCR, sheet
// parsing) happens outside this core; the agent acknowledges what arrived
// and guides the user through seeding their records conversationally.
type SetupAgent struct {
	completer gateway.Completer
}

func NewSetupAgent(c gateway.Completer) *SetupAgent {
	return &SetupAgent{completer: c}
}

const setupSystemPrompt = `You are the onboarding assistant of a financial record keeper for small service businesses. The user is setting up their workspace (contracts, receivables, expenses, recurring expenses). Answer in the user's language (Portuguese or English), briefly: explain what they can register and suggest starting with their active contracts. Never claim any record was saved.`

// Handle produces the setup reply for one turn.
func (a *SetupAgent) Handle(ctx context.Context, message string, attachments []models.Attachment, history []models.ChatMessage) (string, error) {
	if len(attachments) > 0 {
		return attachmentReply(message, attachments), nil
	}

	reply, err := a.completer.Complete(ctx, setupSystemPrompt, message, history)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// attachmentReply is deterministic: files are acknowledged by name and the
// user is told how the import proceeds. No model call, no mutation.
func attachmentReply(message string, attachments []models.Attachment) string {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	list := strings.Join(names, ", ")

	if isPortuguese(message) || message == "" {
		return fmt.Sprintf(
			"Recebi %d arquivo(s): %s. Vou ler o conteúdo e te mostrar o que encontrei para você confirmar antes de salvar qualquer coisa.",
			len(attachments), list)
	}
	return fmt.Sprintf(
		"Received %d file(s): %s. I will read them and show you what I found so you can confirm before anything is saved.",
		len(attachments), list)
}
