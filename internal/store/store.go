// Package store provides the team-scoped persistence contract for financial
// records, with an in-memory implementation (local dev, tests) and a
// PostgreSQL implementation (production).
//
// Every operation takes the team ID as an explicit argument supplied by the
// caller's authenticated context. Nothing in a filter or a record can widen
// a read or write beyond that team.
package store

import (
	"context"
	"time"

	"github.com/ledgerchat/ledgerchat/pkg/models"
)

// MaxListLimit caps every list query. Filters asking for more are clamped.
const MaxListLimit = 100

// Store is the persistence interface the rest of the service depends on.
type Store interface {
	ContractStore
	ReceivableStore
	ExpenseStore
	RecurringExpenseStore
	TeamStore

	// Ping checks whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Contract Store ──────────────────────────────────────────

type ContractStore interface {
	ListContracts(ctx context.Context, teamID string, filter ListFilter) ([]models.Contract, error)
	GetContract(ctx context.Context, teamID, id string) (*models.Contract, error)
	CreateContract(ctx context.Context, contract *models.Contract) error
	UpdateContract(ctx context.Context, contract *models.Contract) error
	DeleteContract(ctx context.Context, teamID, id string) error

	// FindContractsByName matches client or project name, case-insensitive.
	// Used by extraction to resolve free-text references.
	FindContractsByName(ctx context.Context, teamID, name string) ([]models.Contract, error)
}

// ── Receivable Store ────────────────────────────────────────

type ReceivableStore interface {
	ListReceivables(ctx context.Context, teamID string, filter ListFilter) ([]models.Receivable, error)
	GetReceivable(ctx context.Context, teamID, id string) (*models.Receivable, error)
	CreateReceivable(ctx context.Context, receivable *models.Receivable) error
	UpdateReceivable(ctx context.Context, receivable *models.Receivable) error
	DeleteReceivable(ctx context.Context, teamID, id string) error
}

// ── Expense Store ───────────────────────────────────────────

type ExpenseStore interface {
	ListExpenses(ctx context.Context, teamID string, filter ListFilter) ([]models.Expense, error)
	GetExpense(ctx context.Context, teamID, id string) (*models.Expense, error)
	CreateExpense(ctx context.Context, expense *models.Expense) error
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	DeleteExpense(ctx context.Context, teamID, id string) error
}

// ── Recurring Expense Store ─────────────────────────────────

type RecurringExpenseStore interface {
	ListRecurringExpenses(ctx context.Context, teamID string, filter ListFilter) ([]models.RecurringExpense, error)
	GetRecurringExpense(ctx context.Context, teamID, id string) (*models.RecurringExpense, error)
	CreateRecurringExpense(ctx context.Context, expense *models.RecurringExpense) error
	UpdateRecurringExpense(ctx context.Context, expense *models.RecurringExpense) error
	DeleteRecurringExpense(ctx context.Context, teamID, id string) error
}

// ── Team Store ──────────────────────────────────────────────

type TeamStore interface {
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	CreateTeam(ctx context.Context, team *models.Team) error
	ListTeams(ctx context.Context) ([]models.Team, error)
}

// ── Filters ─────────────────────────────────────────────────

// ListFilter narrows list queries. Zero values mean "no constraint".
// The team predicate is never part of the filter; it is a separate,
// mandatory argument on every store call.
type ListFilter struct {
	Category   string
	Status     string
	ContractID string
	IsPaid     *bool
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string // "date", "amount", "created_at"
	SortDesc   bool
	Limit      int // clamped to MaxListLimit
}

// EffectiveLimit returns the clamped row limit for this filter.
func (f ListFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist
// within the caller's team.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ValidationError is returned when a record fails storage-level validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}
