package confirm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerchat/ledgerchat/internal/recurring"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// ErrPendingExists is returned when a new draft is proposed while another
// operation is still awaiting confirmation. At most one pending operation
// exists per conversation; the outstanding one must be resolved first.
var ErrPendingExists = errors.New("a pending operation is already awaiting confirmation")

// ResolutionStatus is the outcome of interpreting a confirmation reply.
type ResolutionStatus string

const (
	// StatusConfirmed — affirmative reply, persistence succeeded,
	// pending operation cleared.
	StatusConfirmed ResolutionStatus = "confirmed"
	// StatusRejected — negative reply, nothing persisted, pending cleared.
	StatusRejected ResolutionStatus = "rejected"
	// StatusAmbiguous — unrecognized reply. Nothing persisted, pending
	// retained, caller re-prompts. Deny by default.
	StatusAmbiguous ResolutionStatus = "ambiguous"
	// StatusFailed — affirmative reply but persistence failed. Pending is
	// retained so the user can confirm again; reported distinctly from a
	// validation failure.
	StatusFailed ResolutionStatus = "failed"
)

// Resolution is the result of one confirmation turn.
type Resolution struct {
	Status   ResolutionStatus
	Response string
	Data     any
}

// Workflow is the state machine gating all mutations:
// NONE → AWAITING_CONFIRMATION → CONFIRMED|REJECTED → NONE.
type Workflow struct {
	store store.Store
}

func NewWorkflow(s store.Store) *Workflow {
	return &Workflow{store: s}
}

// Propose stores a completed draft as the conversation's pending operation
// and moves the machine to AWAITING_CONFIRMATION.
func (w *Workflow) Propose(state *models.ConversationState, po *models.PendingOperation) error {
	if state.PendingOperation != nil {
		return ErrPendingExists
	}
	state.PendingOperation = po
	return nil
}

// Resolve interprets the user's reply against the confirmation vocabulary
// and, on an affirmative, executes exactly the stored draft against the
// store. The team ID comes from the caller's authenticated context, never
// from the draft.
func (w *Workflow) Resolve(ctx context.Context, teamID string, state *models.ConversationState, reply string) Resolution {
	po := state.PendingOperation
	if po == nil {
		return Resolution{
			Status:   StatusRejected,
			Response: "There is nothing waiting for confirmation.",
		}
	}

	switch Interpret(reply) {
	case VerdictNegative:
		state.PendingOperation = nil
		return Resolution{
			Status:   StatusRejected,
			Response: "Ok, cancelado. Nada foi salvo. / Ok, cancelled — nothing was saved.",
		}

	case VerdictAffirmative:
		data, ref, err := w.execute(ctx, teamID, po)
		if err != nil {
			var ve *store.ValidationError
			if errors.As(err, &ve) {
				// A draft that fails storage validation can never succeed;
				// keeping it pending would trap the conversation.
				state.PendingOperation = nil
				return Resolution{
					Status:   StatusRejected,
					Response: fmt.Sprintf("Não consegui salvar: %s. / Could not save: %s.", ve.Error(), ve.Error()),
				}
			}
			log.Warn().Err(err).
				Str("entity_type", string(po.EntityType)).
				Str("operation", string(po.OperationKind)).
				Msg("Persistence failed for confirmed operation")
			return Resolution{
				Status:   StatusFailed,
				Response: "Tive um problema ao salvar — seus dados não foram perdidos, responda \"sim\" para tentar de novo. / Saving failed — nothing was lost, reply \"yes\" to retry.",
			}
		}

		state.PendingOperation = nil
		if ref != nil {
			state.RecordCreated(*ref)
		}
		return Resolution{
			Status:   StatusConfirmed,
			Response: successMessage(po),
			Data:     data,
		}

	default:
		return Resolution{
			Status:   StatusAmbiguous,
			Response: "Não entendi — responda \"sim\" para confirmar ou \"não\" para cancelar.\n\n" + po.ConfirmationPrompt,
		}
	}
}

func successMessage(po *models.PendingOperation) string {
	switch po.OperationKind {
	case models.OperationCreate:
		return "Feito! Registro criado. / Done — record created."
	case models.OperationUpdate:
		return "Feito! Registro atualizado. / Done — record updated."
	case models.OperationDelete:
		return "Feito! Registro removido. / Done — record deleted."
	}
	return "Feito! / Done."
}

// ── Execution ───────────────────────────────────────────────

func (w *Workflow) execute(ctx context.Context, teamID string, po *models.PendingOperation) (any, *models.EntityRef, error) {
	switch po.OperationKind {
	case models.OperationCreate:
		return w.executeCreate(ctx, teamID, po)
	case models.OperationUpdate:
		return w.executeUpdate(ctx, teamID, po)
	case models.OperationDelete:
		return nil, nil, w.executeDelete(ctx, teamID, po)
	}
	return nil, nil, fmt.Errorf("unknown operation kind: %q", po.OperationKind)
}

func (w *Workflow) executeCreate(ctx context.Context, teamID string, po *models.PendingOperation) (any, *models.EntityRef, error) {
	now := time.Now().UTC()
	fields := po.DraftFields

	switch po.EntityType {
	case models.EntityContract:
		c := &models.Contract{
			ID:          uuid.New().String(),
			TeamID:      teamID,
			ClientName:  fieldStr(fields, "client_name"),
			ProjectName: fieldStr(fields, "project_name"),
			TotalValue:  fieldFloat(fields, "total_value"),
			SignedDate:  fieldDate(fields, "signed_date", now),
			Description: fieldStr(fields, "description"),
			Status:      models.ContractStatus(fieldStrDefault(fields, "status", string(models.ContractActive))),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := w.store.CreateContract(ctx, c); err != nil {
			return nil, nil, err
		}
		return c, &models.EntityRef{EntityType: models.EntityContract, ID: c.ID, Label: c.DisplayLabel()}, nil

	case models.EntityReceivable:
		r := &models.Receivable{
			ID:            uuid.New().String(),
			TeamID:        teamID,
			ContractID:    fieldStr(fields, "contract_id"),
			Amount:        fieldFloat(fields, "amount"),
			ExpectedDate:  fieldDate(fields, "expected_date", now),
			InvoiceNumber: fieldStr(fields, "invoice_number"),
			Description:   fieldStr(fields, "description"),
			Status:        models.ReceivableStatus(fieldStrDefault(fields, "status", string(models.ReceivablePending))),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := w.store.CreateReceivable(ctx, r); err != nil {
			return nil, nil, err
		}
		label := fmt.Sprintf("R$%.2f em %s", r.Amount, r.ExpectedDate.Format("02/01/2006"))
		return r, &models.EntityRef{EntityType: models.EntityReceivable, ID: r.ID, Label: label}, nil

	case models.EntityExpense:
		e := &models.Expense{
			ID:          uuid.New().String(),
			TeamID:      teamID,
			ContractID:  fieldStr(fields, "contract_id"),
			Description: fieldStr(fields, "description"),
			Amount:      fieldFloat(fields, "amount"),
			DueDate:     fieldDate(fields, "due_date", now),
			Category:    fieldStr(fields, "category"),
			IsPaid:      fieldBool(fields, "is_paid"),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := w.store.CreateExpense(ctx, e); err != nil {
			return nil, nil, err
		}
		return e, &models.EntityRef{EntityType: models.EntityExpense, ID: e.ID, Label: e.Description}, nil

	case models.EntityRecurringExpense:
		e := &models.RecurringExpense{
			ID:          uuid.New().String(),
			TeamID:      teamID,
			Description: fieldStr(fields, "description"),
			Amount:      fieldFloat(fields, "amount"),
			Frequency:   models.RecurrenceFrequency(fieldStrDefault(fields, "frequency", string(models.FrequencyMonthly))),
			DayOfMonth:  fieldInt(fields, "day_of_month"),
			Weekday:     fieldInt(fields, "weekday"),
			Category:    fieldStr(fields, "category"),
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := recurring.Validate(e); err != nil {
			return nil, nil, &store.ValidationError{Field: "frequency", Reason: err.Error()}
		}
		if err := w.store.CreateRecurringExpense(ctx, e); err != nil {
			return nil, nil, err
		}
		return e, &models.EntityRef{EntityType: models.EntityRecurringExpense, ID: e.ID, Label: e.Description}, nil
	}
	return nil, nil, fmt.Errorf("unknown entity type: %q", po.EntityType)
}

func (w *Workflow) executeUpdate(ctx context.Context, teamID string, po *models.PendingOperation) (any, *models.EntityRef, error) {
	if po.TargetEntityID == "" {
		return nil, nil, &store.ValidationError{Field: "target_entity_id", Reason: "required for update"}
	}
	fields := po.DraftFields

	switch po.EntityType {
	case models.EntityContract:
		c, err := w.store.GetContract(ctx, teamID, po.TargetEntityID)
		if err != nil {
			return nil, nil, err
		}
		applyContractFields(c, fields)
		if err := w.store.UpdateContract(ctx, c); err != nil {
			return nil, nil, err
		}
		return c, nil, nil

	case models.EntityReceivable:
		r, err := w.store.GetReceivable(ctx, teamID, po.TargetEntityID)
		if err != nil {
			return nil, nil, err
		}
		applyReceivableFields(r, fields)
		if err := w.store.UpdateReceivable(ctx, r); err != nil {
			return nil, nil, err
		}
		return r, nil, nil

	case models.EntityExpense:
		e, err := w.store.GetExpense(ctx, teamID, po.TargetEntityID)
		if err != nil {
			return nil, nil, err
		}
		applyExpenseFields(e, fields)
		if err := w.store.UpdateExpense(ctx, e); err != nil {
			return nil, nil, err
		}
		return e, nil, nil

	case models.EntityRecurringExpense:
		e, err := w.store.GetRecurringExpense(ctx, teamID, po.TargetEntityID)
		if err != nil {
			return nil, nil, err
		}
		applyRecurringFields(e, fields)
		if err := w.store.UpdateRecurringExpense(ctx, e); err != nil {
			return nil, nil, err
		}
		return e, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown entity type: %q", po.EntityType)
}

func (w *Workflow) executeDelete(ctx context.Context, teamID string, po *models.PendingOperation) error {
	if po.TargetEntityID == "" {
		return &store.ValidationError{Field: "target_entity_id", Reason: "required for delete"}
	}
	switch po.EntityType {
	case models.EntityContract:
		return w.store.DeleteContract(ctx, teamID, po.TargetEntityID)
	case models.EntityReceivable:
		return w.store.DeleteReceivable(ctx, teamID, po.TargetEntityID)
	case models.EntityExpense:
		return w.store.DeleteExpense(ctx, teamID, po.TargetEntityID)
	case models.EntityRecurringExpense:
		return w.store.DeleteRecurringExpense(ctx, teamID, po.TargetEntityID)
	}
	return fmt.Errorf("unknown entity type: %q", po.EntityType)
}

// ── Field application (updates) ─────────────────────────────

func applyContractFields(c *models.Contract, fields map[string]any) {
	if v, ok := fields["client_name"]; ok {
		c.ClientName = asStr(v)
	}
	if v, ok := fields["project_name"]; ok {
		c.ProjectName = asStr(v)
	}
	if _, ok := fields["total_value"]; ok {
		c.TotalValue = fieldFloat(fields, "total_value")
	}
	if _, ok := fields["signed_date"]; ok {
		c.SignedDate = fieldDate(fields, "signed_date", c.SignedDate)
	}
	if v, ok := fields["description"]; ok {
		c.Description = asStr(v)
	}
	if v, ok := fields["status"]; ok {
		c.Status = models.ContractStatus(asStr(v))
	}
}

func applyReceivableFields(r *models.Receivable, fields map[string]any) {
	if _, ok := fields["amount"]; ok {
		r.Amount = fieldFloat(fields, "amount")
	}
	if _, ok := fields["expected_date"]; ok {
		r.ExpectedDate = fieldDate(fields, "expected_date", r.ExpectedDate)
	}
	if v, ok := fields["invoice_number"]; ok {
		r.InvoiceNumber = asStr(v)
	}
	if v, ok := fields["description"]; ok {
		r.Description = asStr(v)
	}
	if v, ok := fields["status"]; ok {
		r.Status = models.ReceivableStatus(asStr(v))
	}
}

func applyExpenseFields(e *models.Expense, fields map[string]any) {
	if v, ok := fields["description"]; ok {
		e.Description = asStr(v)
	}
	if _, ok := fields["amount"]; ok {
		e.Amount = fieldFloat(fields, "amount")
	}
	if _, ok := fields["due_date"]; ok {
		e.DueDate = fieldDate(fields, "due_date", e.DueDate)
	}
	if v, ok := fields["category"]; ok {
		e.Category = asStr(v)
	}
	if _, ok := fields["is_paid"]; ok {
		e.IsPaid = fieldBool(fields, "is_paid")
	}
}

func applyRecurringFields(e *models.RecurringExpense, fields map[string]any) {
	if v, ok := fields["description"]; ok {
		e.Description = asStr(v)
	}
	if _, ok := fields["amount"]; ok {
		e.Amount = fieldFloat(fields, "amount")
	}
	if v, ok := fields["frequency"]; ok {
		e.Frequency = models.RecurrenceFrequency(asStr(v))
	}
	if _, ok := fields["day_of_month"]; ok {
		e.DayOfMonth = fieldInt(fields, "day_of_month")
	}
	if _, ok := fields["weekday"]; ok {
		e.Weekday = fieldInt(fields, "weekday")
	}
	if v, ok := fields["category"]; ok {
		e.Category = asStr(v)
	}
	if _, ok := fields["active"]; ok {
		e.Active = fieldBool(fields, "active")
	}
}

// ── Draft field helpers ─────────────────────────────────────
//
// Draft fields survive a JSON round-trip of ConversationState, so values are
// only ever string, float64, or bool. Dates are "2006-01-02" strings.

func fieldStr(fields map[string]any, name string) string {
	return asStr(fields[name])
}

func fieldStrDefault(fields map[string]any, name, def string) string {
	if s := asStr(fields[name]); s != "" {
		return s
	}
	return def
}

func asStr(v any) string {
	s, _ := v.(string)
	return s
}

func fieldFloat(fields map[string]any, name string) float64 {
	switch v := fields[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func fieldInt(fields map[string]any, name string) int {
	return int(fieldFloat(fields, name))
}

func fieldBool(fields map[string]any, name string) bool {
	switch v := fields[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func fieldDate(fields map[string]any, name string, def time.Time) time.Time {
	s := asStr(fields[name])
	if s == "" {
		return def
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return def
	}
	return t
}
