package confirm_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/confirm"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/pkg/models"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("LEDGERCHAT_DATA_DIR", dir)
	defer os.Unsetenv("LEDGERCHAT_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func expenseDraft() *models.PendingOperation {
	return &models.PendingOperation{
		EntityType:    models.EntityExpense,
		OperationKind: models.OperationCreate,
		DraftFields: map[string]any{
			"description": "gasolina",
			"amount":      float64(50),
			"due_date":    "2025-01-14",
			"category":    "transport",
			"is_paid":     true,
		},
		ConfirmationPrompt: "Criar despesa: gasolina, R$50,00. Confirma? (sim/não)",
		CreatedAt:          time.Now().UTC(),
	}
}

func stateWithPending(po *models.PendingOperation) *models.ConversationState {
	state := models.NewConversationState(time.Now().UTC())
	state.PendingOperation = po
	return state
}

// ─── Propose ─────────────────────────────────────────────────

func TestPropose_SetsPending(t *testing.T) {
	w := confirm.NewWorkflow(newTestStore(t))
	state := models.NewConversationState(time.Now().UTC())

	if err := w.Propose(state, expenseDraft()); err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if state.PendingOperation == nil {
		t.Fatal("Propose() did not set the pending operation")
	}
}

func TestPropose_RejectsSecondDraft(t *testing.T) {
	w := confirm.NewWorkflow(newTestStore(t))
	state := stateWithPending(expenseDraft())

	err := w.Propose(state, expenseDraft())
	if !errors.Is(err, confirm.ErrPendingExists) {
		t.Errorf("Propose() with existing pending error = %v, want ErrPendingExists", err)
	}
}

// ─── Confirm / Reject ────────────────────────────────────────

func TestResolve_AffirmativePersistsAndClears(t *testing.T) {
	s := newTestStore(t)
	w := confirm.NewWorkflow(s)
	state := stateWithPending(expenseDraft())
	ctx := context.Background()

	res := w.Resolve(ctx, "default", state, "sim")
	if res.Status != confirm.StatusConfirmed {
		t.Fatalf("Resolve(\"sim\").Status = %q, want confirmed (%s)", res.Status, res.Response)
	}
	if state.PendingOperation != nil {
		t.Error("Pending operation not cleared after confirmation")
	}
	if state.Metadata.EntitiesCreated != 1 {
		t.Errorf("EntitiesCreated = %d, want 1", state.Metadata.EntitiesCreated)
	}
	if len(state.RecentlyCreated) != 1 {
		t.Fatalf("RecentlyCreated has %d refs, want 1", len(state.RecentlyCreated))
	}

	rows, _ := s.ListExpenses(ctx, "default", store.ListFilter{})
	if len(rows) != 1 {
		t.Fatalf("Store has %d expenses, want 1", len(rows))
	}
	e := rows[0]
	if e.Description != "gasolina" || e.Amount != 50 || e.Category != "transport" || !e.IsPaid {
		t.Errorf("Persisted expense = %+v, does not match draft", e)
	}
	if want := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC); !e.DueDate.Equal(want) {
		t.Errorf("DueDate = %v, want %v", e.DueDate, want)
	}
}

func TestResolve_NegativeDiscardsWithoutPersisting(t *testing.T) {
	s := newTestStore(t)
	w := confirm.NewWorkflow(s)
	state := stateWithPending(expenseDraft())
	ctx := context.Background()

	res := w.Resolve(ctx, "default", state, "não")
	if res.Status != confirm.StatusRejected {
		t.Fatalf("Resolve(\"não\").Status = %q, want rejected", res.Status)
	}
	if state.PendingOperation != nil {
		t.Error("Pending operation not cleared after rejection")
	}

	rows, _ := s.ListExpenses(ctx, "default", store.ListFilter{})
	if len(rows) != 0 {
		t.Errorf("Store has %d expenses after rejection, want 0", len(rows))
	}
}

// A reply that is neither yes nor no retains the draft and re-prompts;
// an ambiguous answer must never mutate data.
func TestResolve_AmbiguousRetainsPending(t *testing.T) {
	s := newTestStore(t)
	w := confirm.NewWorkflow(s)
	state := stateWithPending(expenseDraft())
	ctx := context.Background()

	res := w.Resolve(ctx, "default", state, "muda o valor para 60")
	if res.Status != confirm.StatusAmbiguous {
		t.Fatalf("Resolve(ambiguous).Status = %q, want ambiguous", res.Status)
	}
	if state.PendingOperation == nil {
		t.Fatal("Pending operation dropped on ambiguous reply")
	}

	rows, _ := s.ListExpenses(ctx, "default", store.ListFilter{})
	if len(rows) != 0 {
		t.Errorf("Store has %d expenses after ambiguous reply, want 0", len(rows))
	}

	// The same draft can still be confirmed on the next turn.
	res = w.Resolve(ctx, "default", state, "sim")
	if res.Status != confirm.StatusConfirmed {
		t.Errorf("Resolve(\"sim\") after ambiguous = %q, want confirmed", res.Status)
	}
}

func TestResolve_NothingPending(t *testing.T) {
	w := confirm.NewWorkflow(newTestStore(t))
	state := models.NewConversationState(time.Now().UTC())

	res := w.Resolve(context.Background(), "default", state, "sim")
	if res.Status != confirm.StatusRejected {
		t.Errorf("Resolve() with no pending = %q, want rejected", res.Status)
	}
}

// ─── Failure handling ────────────────────────────────────────

// failingStore wraps a real store and fails expense creation, simulating a
// storage outage at confirmation time.
type failingStore struct {
	store.Store
	fail bool
}

func (f *failingStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if f.fail {
		return errors.New("storage unavailable")
	}
	return f.Store.CreateExpense(ctx, e)
}

func TestResolve_PersistenceFailureRetainsDraft(t *testing.T) {
	fs := &failingStore{Store: newTestStore(t), fail: true}
	w := confirm.NewWorkflow(fs)
	state := stateWithPending(expenseDraft())
	ctx := context.Background()

	res := w.Resolve(ctx, "default", state, "sim")
	if res.Status != confirm.StatusFailed {
		t.Fatalf("Resolve() with failing store = %q, want failed", res.Status)
	}
	if state.PendingOperation == nil {
		t.Fatal("Pending operation dropped on persistence failure; retry impossible")
	}

	// Outage over: confirming again succeeds exactly once.
	fs.fail = false
	res = w.Resolve(ctx, "default", state, "sim")
	if res.Status != confirm.StatusConfirmed {
		t.Fatalf("Retry after outage = %q, want confirmed", res.Status)
	}

	rows, _ := fs.ListExpenses(ctx, "default", store.ListFilter{})
	if len(rows) != 1 {
		t.Errorf("Store has %d expenses after retry, want exactly 1", len(rows))
	}
}

func TestResolve_ValidationFailureClearsDraft(t *testing.T) {
	s := newTestStore(t)
	w := confirm.NewWorkflow(s)

	po := expenseDraft()
	po.DraftFields["amount"] = float64(0) // can never pass storage validation
	state := stateWithPending(po)

	res := w.Resolve(context.Background(), "default", state, "sim")
	if res.Status != confirm.StatusRejected {
		t.Fatalf("Resolve() with invalid draft = %q, want rejected", res.Status)
	}
	if state.PendingOperation != nil {
		t.Error("Invalid draft retained; the conversation would be stuck")
	}
}

// ─── Update / Delete ─────────────────────────────────────────

func TestResolve_UpdateAppliesOnlyDraftFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateExpense(ctx, &models.Expense{
		ID: "e1", TeamID: "default", Description: "gasolina",
		Amount: 50, DueDate: time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC),
		Category: "transport",
	})

	w := confirm.NewWorkflow(s)
	state := stateWithPending(&models.PendingOperation{
		EntityType:     models.EntityExpense,
		OperationKind:  models.OperationUpdate,
		TargetEntityID: "e1",
		DraftFields:    map[string]any{"amount": float64(60)},
		CreatedAt:      time.Now().UTC(),
	})

	res := w.Resolve(ctx, "default", state, "sim")
	if res.Status != confirm.StatusConfirmed {
		t.Fatalf("Resolve(update).Status = %q (%s)", res.Status, res.Response)
	}

	got, _ := s.GetExpense(ctx, "default", "e1")
	if got.Amount != 60 {
		t.Errorf("Amount after update = %v, want 60", got.Amount)
	}
	if got.Description != "gasolina" || got.Category != "transport" {
		t.Errorf("Untouched fields changed: %+v", got)
	}
}

func TestResolve_DeleteRemovesEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateExpense(ctx, &models.Expense{ID: "e1", TeamID: "default", Description: "gasolina", Amount: 50, Category: "transport"})

	w := confirm.NewWorkflow(s)
	state := stateWithPending(&models.PendingOperation{
		EntityType:     models.EntityExpense,
		OperationKind:  models.OperationDelete,
		TargetEntityID: "e1",
		CreatedAt:      time.Now().UTC(),
	})

	res := w.Resolve(ctx, "default", state, "sim")
	if res.Status != confirm.StatusConfirmed {
		t.Fatalf("Resolve(delete).Status = %q", res.Status)
	}
	if _, err := s.GetExpense(ctx, "default", "e1"); err == nil {
		t.Error("Expense still present after confirmed delete")
	}
}

// ─── Recurring expense creation ──────────────────────────────

func TestResolve_RecurringExpenseValidatesSchedule(t *testing.T) {
	s := newTestStore(t)
	w := confirm.NewWorkflow(s)
	ctx := context.Background()

	state := stateWithPending(&models.PendingOperation{
		EntityType:    models.EntityRecurringExpense,
		OperationKind: models.OperationCreate,
		DraftFields: map[string]any{
			"description":  "aluguel do escritório",
			"amount":       float64(2500),
			"frequency":    "monthly",
			"day_of_month": "5",
			"category":     "office",
		},
		CreatedAt: time.Now().UTC(),
	})

	res := w.Resolve(ctx, "default", state, "sim")
	if res.Status != confirm.StatusConfirmed {
		t.Fatalf("Resolve(recurring).Status = %q (%s)", res.Status, res.Response)
	}

	rows, _ := s.ListRecurringExpenses(ctx, "default", store.ListFilter{})
	if len(rows) != 1 {
		t.Fatalf("Store has %d recurring expenses, want 1", len(rows))
	}
	if rows[0].DayOfMonth != 5 || rows[0].Frequency != models.FrequencyMonthly || !rows[0].Active {
		t.Errorf("Persisted recurring expense = %+v", rows[0])
	}
}

func TestResolve_RecurringExpenseRejectsBadSchedule(t *testing.T) {
	w := confirm.NewWorkflow(newTestStore(t))

	state := stateWithPending(&models.PendingOperation{
		EntityType:    models.EntityRecurringExpense,
		OperationKind: models.OperationCreate,
		DraftFields: map[string]any{
			"description":  "aluguel",
			"amount":       float64(2500),
			"frequency":    "monthly",
			"day_of_month": "45",
		},
		CreatedAt: time.Now().UTC(),
	})

	res := w.Resolve(context.Background(), "default", state, "sim")
	if res.Status != confirm.StatusRejected {
		t.Errorf("Resolve(day_of_month=45).Status = %q, want rejected", res.Status)
	}
	if state.PendingOperation != nil {
		t.Error("Unschedulable draft retained")
	}
}
