package agents

import (
	"context"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/gateway"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// historyWindow caps how much of the conversation log is replayed to the
// gateway on each turn.
const historyWindow = 12

// Orchestrator runs one conversational turn end to end: route, dispatch,
// update the conversation state, and shape the response. It works on a deep
// copy of the incoming state, so a failed turn returns the caller's state
// byte-for-byte unchanged.
type Orchestrator struct {
	router     *Router
	setup      *SetupAgent
	query      *QueryAgent
	operations *OperationsAgent
	now        func() time.Time
}

func NewOrchestrator(router *Router, setup *SetupAgent, query *QueryAgent, operations *OperationsAgent) *Orchestrator {
	return &Orchestrator{
		router:     router,
		setup:      setup,
		query:      query,
		operations: operations,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// HandleTurn processes one chat request for an authenticated team.
//
// The returned error is non-nil only for configuration problems that make
// the whole service unusable (missing gateway credentials). Transient
// failures come back as a normal response with Success=false and the
// original state untouched.
func (o *Orchestrator) HandleTurn(ctx context.Context, teamID string, req *models.ChatRequest) (*models.ChatResponse, error) {
	now := o.now()

	original := req.ConversationState
	var state *models.ConversationState
	if original != nil {
		state = original.Clone()
	} else {
		state = models.NewConversationState(now)
	}

	route := o.router.Classify(req.Message, req.Attachments, state)
	history := recentHistory(state)

	log.Debug().
		Str("team_id", teamID).
		Str("agent", string(route.Agent)).
		Str("mode", string(route.Mode)).
		Int("attachments", len(req.Attachments)).
		Msg("Turn routed")

	outcome, err := o.dispatch(ctx, teamID, req, state, route, history)
	if err != nil {
		if gateway.IsConfiguration(err) {
			return nil, err
		}
		log.Warn().Err(err).Str("team_id", teamID).Msg("Turn failed on gateway error")
		// State unchanged: the caller resends the same turn after the
		// transient condition clears.
		if original == nil {
			original = models.NewConversationState(now)
		}
		return &models.ChatResponse{
			Success: false,
			Response: clarifyText(req.Message,
				"Estou com um problema temporário para processar sua mensagem — tente de novo em instantes.",
				"I am having a temporary problem processing your message — please try again shortly."),
			AgentUsed:         route.Agent,
			ConversationState: original,
		}, nil
	}

	state.AppendMessage(models.ConversationMessage{
		Role:            models.RoleUser,
		Content:         req.Message,
		AttachmentCount: len(req.Attachments),
		Timestamp:       now,
	})
	state.AppendMessage(models.ConversationMessage{
		Role:      models.RoleAssistant,
		Content:   outcome.Response,
		Agent:     route.Agent,
		Timestamp: o.now(),
	})
	state.LastAgent = route.Agent

	return &models.ChatResponse{
		Success:           !outcome.Failed,
		Response:          outcome.Response,
		AgentUsed:         route.Agent,
		Data:              outcome.Data,
		ConversationState: state,
	}, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, teamID string, req *models.ChatRequest, state *models.ConversationState, route Route, history []models.ChatMessage) (OperationsOutcome, error) {
	switch route.Mode {
	case ModeConfirmation:
		return o.operations.HandleConfirmation(ctx, teamID, state, req.Message), nil
	case ModeClarify:
		return OperationsOutcome{Response: clarifyPrompt(req.Message)}, nil
	}

	switch route.Agent {
	case models.AgentSetup:
		reply, err := o.setup.Handle(ctx, req.Message, req.Attachments, history)
		if err != nil {
			return OperationsOutcome{}, err
		}
		return OperationsOutcome{Response: reply}, nil

	case models.AgentQuery:
		reply, result, err := o.query.Answer(ctx, teamID, req.Message, history)
		if err != nil {
			return OperationsOutcome{}, err
		}
		var data any
		if result != nil {
			data = result
		}
		return OperationsOutcome{Response: reply, Data: data}, nil

	default:
		return o.operations.HandleNew(ctx, teamID, req.Message, state, history)
	}
}

// recentHistory converts the tail of the conversation log into gateway
// messages.
func recentHistory(state *models.ConversationState) []models.ChatMessage {
	msgs := state.Messages
	if len(msgs) > historyWindow {
		msgs = msgs[len(msgs)-historyWindow:]
	}
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
