// Package models defines the core domain models shared across the
// ledgerchat control plane: the four financial entity types, the
// conversation state passed between turns, and the wire request/response
// for the chat endpoint.
package models

import (
	"time"
)

// ── Entity Types ─────────────────────────────────────────────

// EntityType identifies one of the four manageable financial record kinds.
type EntityType string

const (
	EntityContract         EntityType = "contract"
	EntityReceivable       EntityType = "receivable"
	EntityExpense          EntityType = "expense"
	EntityRecurringExpense EntityType = "recurring_expense"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityContract, EntityReceivable, EntityExpense, EntityRecurringExpense:
		return true
	}
	return false
}

// ── Contract ─────────────────────────────────────────────────

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractCancelled ContractStatus = "cancelled"
)

// Contract is a client engagement: the root most receivables hang off.
type Contract struct {
	ID          string         `json:"id" db:"id"`
	TeamID      string         `json:"team_id" db:"team_id"`
	ClientName  string         `json:"client_name" db:"client_name"`
	ProjectName string         `json:"project_name" db:"project_name"`
	TotalValue  float64        `json:"total_value" db:"total_value"`
	SignedDate  time.Time      `json:"signed_date" db:"signed_date"`
	Description string         `json:"description,omitempty" db:"description"`
	Status      ContractStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// DisplayLabel returns the human label used in previews and follow-ups.
func (c *Contract) DisplayLabel() string {
	if c.ProjectName != "" {
		return c.ClientName + " — " + c.ProjectName
	}
	return c.ClientName
}

// ── Receivable ───────────────────────────────────────────────

type ReceivableStatus string

const (
	ReceivablePending  ReceivableStatus = "pending"
	ReceivableReceived ReceivableStatus = "received"
	ReceivableOverdue  ReceivableStatus = "overdue"
)

// Receivable is money expected in, usually tied to a contract.
type Receivable struct {
	ID            string           `json:"id" db:"id"`
	TeamID        string           `json:"team_id" db:"team_id"`
	ContractID    string           `json:"contract_id,omitempty" db:"contract_id"`
	Amount        float64          `json:"amount" db:"amount"`
	ExpectedDate  time.Time        `json:"expected_date" db:"expected_date"`
	InvoiceNumber string           `json:"invoice_number,omitempty" db:"invoice_number"`
	Description   string           `json:"description,omitempty" db:"description"`
	Status        ReceivableStatus `json:"status" db:"status"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// ── Expense ──────────────────────────────────────────────────

// Expense is a one-off cost with a closed category vocabulary
// (see internal/schema for the valid categories).
type Expense struct {
	ID          string    `json:"id" db:"id"`
	TeamID      string    `json:"team_id" db:"team_id"`
	ContractID  string    `json:"contract_id,omitempty" db:"contract_id"`
	Description string    `json:"description" db:"description"`
	Amount      float64   `json:"amount" db:"amount"`
	DueDate     time.Time `json:"due_date" db:"due_date"`
	Category    string    `json:"category" db:"category"`
	IsPaid      bool      `json:"is_paid" db:"is_paid"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ── Recurring Expense ────────────────────────────────────────

type RecurrenceFrequency string

const (
	FrequencyWeekly  RecurrenceFrequency = "weekly"
	FrequencyMonthly RecurrenceFrequency = "monthly"
	FrequencyYearly  RecurrenceFrequency = "yearly"
)

// RecurringExpense is a repeating cost. DayOfMonth drives monthly/yearly
// schedules; Weekday drives weekly ones (0=Sunday).
type RecurringExpense struct {
	ID          string              `json:"id" db:"id"`
	TeamID      string              `json:"team_id" db:"team_id"`
	Description string              `json:"description" db:"description"`
	Amount      float64             `json:"amount" db:"amount"`
	Frequency   RecurrenceFrequency `json:"frequency" db:"frequency"`
	DayOfMonth  int                 `json:"day_of_month,omitempty" db:"day_of_month"`
	Weekday     int                 `json:"weekday,omitempty" db:"weekday"`
	Category    string              `json:"category" db:"category"`
	Active      bool                `json:"active" db:"active"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
}

// ── Team ─────────────────────────────────────────────────────

// Team is the isolation boundary. Every read and write is scoped to one.
type Team struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ── Conversation State ───────────────────────────────────────

// AgentKind names the specialized agent that handled (or will handle) a turn.
type AgentKind string

const (
	AgentSetup      AgentKind = "setup"
	AgentQuery      AgentKind = "query"
	AgentOperations AgentKind = "operations"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one entry in the append-only conversation log.
type ConversationMessage struct {
	Role            MessageRole `json:"role"`
	Content         string      `json:"content"`
	Agent           AgentKind   `json:"agent,omitempty"`
	AttachmentCount int         `json:"attachment_count,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
}

// OperationKind is the mutation a pending operation will perform.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// PendingOperation is a draft mutation awaiting explicit user confirmation.
// Created by an extraction agent, mutated only by the confirmation workflow,
// destroyed on confirm (after persistence succeeds) or reject.
type PendingOperation struct {
	EntityType         EntityType     `json:"entity_type"`
	OperationKind      OperationKind  `json:"operation_kind"`
	DraftFields        map[string]any `json:"draft_fields"`
	TargetEntityID     string         `json:"target_entity_id,omitempty"`
	ConfirmationPrompt string         `json:"confirmation_prompt"`
	CreatedAt          time.Time      `json:"created_at"`
}

// EntityRef is a lightweight reference to a recently created entity,
// kept so follow-up turns can resolve "edit that".
type EntityRef struct {
	EntityType EntityType `json:"entity_type"`
	ID         string     `json:"id"`
	Label      string     `json:"label"`
}

// ConversationMetadata carries the monotonic counters for a conversation.
// MessageCount always equals len(Messages); EntitiesCreated and
// LastUpdatedAt never decrease.
type ConversationMetadata struct {
	StartedAt       time.Time `json:"started_at"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
	MessageCount    int       `json:"message_count"`
	EntitiesCreated int       `json:"entities_created"`
}

// ConversationState is the unit of continuity between turns. It is owned by
// the caller: the server receives it, returns an updated copy, and retains
// nothing. At most one PendingOperation exists at any time.
type ConversationState struct {
	Messages         []ConversationMessage `json:"messages"`
	PendingOperation *PendingOperation     `json:"pending_operation,omitempty"`
	RecentlyCreated  []EntityRef           `json:"recently_created,omitempty"`
	LastAgent        AgentKind             `json:"last_agent,omitempty"`
	Metadata         ConversationMetadata  `json:"metadata"`
}

// NewConversationState returns an empty state stamped with now.
func NewConversationState(now time.Time) *ConversationState {
	return &ConversationState{
		Metadata: ConversationMetadata{
			StartedAt:     now,
			LastUpdatedAt: now,
		},
	}
}

// AppendMessage adds a message to the log and keeps the metadata counters
// consistent. The log is append-only; nothing ever reorders it.
func (s *ConversationState) AppendMessage(msg ConversationMessage) {
	s.Messages = append(s.Messages, msg)
	s.Metadata.MessageCount = len(s.Messages)
	if msg.Timestamp.After(s.Metadata.LastUpdatedAt) {
		s.Metadata.LastUpdatedAt = msg.Timestamp
	}
}

// RecordCreated appends an entity reference and bumps the created counter.
func (s *ConversationState) RecordCreated(ref EntityRef) {
	s.RecentlyCreated = append(s.RecentlyCreated, ref)
	s.Metadata.EntitiesCreated++
}

// Clone returns a deep copy so a turn can fail without mutating the
// caller's state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = append([]ConversationMessage(nil), s.Messages...)
	cp.RecentlyCreated = append([]EntityRef(nil), s.RecentlyCreated...)
	if s.PendingOperation != nil {
		po := *s.PendingOperation
		po.DraftFields = make(map[string]any, len(s.PendingOperation.DraftFields))
		for k, v := range s.PendingOperation.DraftFields {
			po.DraftFields[k] = v
		}
		cp.PendingOperation = &po
	}
	return &cp
}

// ── Chat Wire Contract ───────────────────────────────────────

// Attachment carries uploaded file metadata alongside a message.
// Content extraction (OCR etc.) happens outside this core.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64,omitempty"`
}

// ChatRequest is one conversational turn from the caller.
type ChatRequest struct {
	Message           string             `json:"message"`
	Attachments       []Attachment       `json:"attachments,omitempty"`
	ConversationState *ConversationState `json:"conversation_state,omitempty"`
}

// ChatResponse is the turn result. ConversationState is always returned,
// updated, so the caller can pass it back on the next turn.
type ChatResponse struct {
	Success           bool               `json:"success"`
	Response          string             `json:"response"`
	AgentUsed         AgentKind          `json:"agent_used"`
	Data              any                `json:"data,omitempty"`
	ConversationState *ConversationState `json:"conversation_state"`
}

// ── Chat Messages (gateway) ──────────────────────────────────

// ChatMessage is the role/content pair sent to the completion gateway.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
