// Package store — PostgreSQL Store implementation.
// Uses database/sql with the pgx stdlib driver. Every query carries the
// team_id predicate; there is no code path that reads or writes across teams.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a pooled connection to the given database URL.
func NewPostgresStore(url string, maxConns int) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	log.Info().Int("max_conns", maxConns).Msg("PostgreSQL store configured")
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *PostgresStore) Close() error                   { return p.db.Close() }

// ── Contract Store ──────────────────────────────────────────

const contractColumns = "id, team_id, client_name, project_name, total_value, signed_date, description, status, created_at, updated_at"

func scanContract(row interface{ Scan(...any) error }) (*models.Contract, error) {
	var c models.Contract
	var description sql.NullString
	err := row.Scan(&c.ID, &c.TeamID, &c.ClientName, &c.ProjectName, &c.TotalValue,
		&c.SignedDate, &description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	return &c, nil
}

func (p *PostgresStore) ListContracts(ctx context.Context, teamID string, filter ListFilter) ([]models.Contract, error) {
	q := "SELECT " + contractColumns + " FROM contracts WHERE team_id = $1"
	args := []any{teamID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		q += " AND signed_date >= $" + strconv.Itoa(len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		q += " AND signed_date <= $" + strconv.Itoa(len(args))
	}
	q += orderClause(filter, map[string]string{
		"date": "signed_date", "amount": "total_value", "created_at": "created_at",
	}, "signed_date")
	q += " LIMIT " + strconv.Itoa(filter.EffectiveLimit())

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var result []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (p *PostgresStore) GetContract(ctx context.Context, teamID, id string) (*models.Contract, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+contractColumns+" FROM contracts WHERE team_id = $1 AND id = $2", teamID, id)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "contract", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

func (p *PostgresStore) CreateContract(ctx context.Context, c *models.Contract) error {
	if c.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if c.ClientName == "" {
		return &ValidationError{Field: "client_name", Reason: "required"}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO contracts (`+contractColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.TeamID, c.ClientName, c.ProjectName, c.TotalValue,
		c.SignedDate, nullStr(c.Description), c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateContract(ctx context.Context, c *models.Contract) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE contracts SET client_name = $3, project_name = $4, total_value = $5,
		 signed_date = $6, description = $7, status = $8, updated_at = $9
		 WHERE team_id = $1 AND id = $2`,
		c.TeamID, c.ID, c.ClientName, c.ProjectName, c.TotalValue,
		c.SignedDate, nullStr(c.Description), c.Status, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	return notFoundIfZero(res, "contract", c.ID)
}

func (p *PostgresStore) DeleteContract(ctx context.Context, teamID, id string) error {
	res, err := p.db.ExecContext(ctx,
		"DELETE FROM contracts WHERE team_id = $1 AND id = $2", teamID, id)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	return notFoundIfZero(res, "contract", id)
}

func (p *PostgresStore) FindContractsByName(ctx context.Context, teamID, name string) ([]models.Contract, error) {
	needle := "%" + strings.TrimSpace(name) + "%"
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+contractColumns+` FROM contracts
		 WHERE team_id = $1 AND (client_name ILIKE $2 OR project_name ILIKE $2)
		 ORDER BY client_name`, teamID, needle)
	if err != nil {
		return nil, fmt.Errorf("find contracts: %w", err)
	}
	defer rows.Close()

	var result []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// ── Receivable Store ────────────────────────────────────────

const receivableColumns = "id, team_id, contract_id, amount, expected_date, invoice_number, description, status, created_at, updated_at"

func scanReceivable(row interface{ Scan(...any) error }) (*models.Receivable, error) {
	var r models.Receivable
	var contractID, invoice, description sql.NullString
	err := row.Scan(&r.ID, &r.TeamID, &contractID, &r.Amount, &r.ExpectedDate,
		&invoice, &description, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ContractID = contractID.String
	r.InvoiceNumber = invoice.String
	r.Description = description.String
	return &r, nil
}

func (p *PostgresStore) ListReceivables(ctx context.Context, teamID string, filter ListFilter) ([]models.Receivable, error) {
	q := "SELECT " + receivableColumns + " FROM receivables WHERE team_id = $1"
	args := []any{teamID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.ContractID != "" {
		args = append(args, filter.ContractID)
		q += " AND contract_id = $" + strconv.Itoa(len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		q += " AND expected_date >= $" + strconv.Itoa(len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		q += " AND expected_date <= $" + strconv.Itoa(len(args))
	}
	q += orderClause(filter, map[string]string{
		"date": "expected_date", "amount": "amount", "created_at": "created_at",
	}, "expected_date")
	q += " LIMIT " + strconv.Itoa(filter.EffectiveLimit())

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list receivables: %w", err)
	}
	defer rows.Close()

	var result []models.Receivable
	for rows.Next() {
		r, err := scanReceivable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receivable: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func (p *PostgresStore) GetReceivable(ctx context.Context, teamID, id string) (*models.Receivable, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+receivableColumns+" FROM receivables WHERE team_id = $1 AND id = $2", teamID, id)
	r, err := scanReceivable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "receivable", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get receivable: %w", err)
	}
	return r, nil
}

func (p *PostgresStore) CreateReceivable(ctx context.Context, r *models.Receivable) error {
	if r.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if r.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO receivables (`+receivableColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.TeamID, nullStr(r.ContractID), r.Amount, r.ExpectedDate,
		nullStr(r.InvoiceNumber), nullStr(r.Description), r.Status, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create receivable: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateReceivable(ctx context.Context, r *models.Receivable) error {
	r.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE receivables SET contract_id = $3, amount = $4, expected_date = $5,
		 invoice_number = $6, description = $7, status = $8, updated_at = $9
		 WHERE team_id = $1 AND id = $2`,
		r.TeamID, r.ID, nullStr(r.ContractID), r.Amount, r.ExpectedDate,
		nullStr(r.InvoiceNumber), nullStr(r.Description), r.Status, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update receivable: %w", err)
	}
	return notFoundIfZero(res, "receivable", r.ID)
}

func (p *PostgresStore) DeleteReceivable(ctx context.Context, teamID, id string) error {
	res, err := p.db.ExecContext(ctx,
		"DELETE FROM receivables WHERE team_id = $1 AND id = $2", teamID, id)
	if err != nil {
		return fmt.Errorf("delete receivable: %w", err)
	}
	return notFoundIfZero(res, "receivable", id)
}

// ── Expense Store ───────────────────────────────────────────

const expenseColumns = "id, team_id, contract_id, description, amount, due_date, category, is_paid, created_at, updated_at"

func scanExpense(row interface{ Scan(...any) error }) (*models.Expense, error) {
	var e models.Expense
	var contractID sql.NullString
	err := row.Scan(&e.ID, &e.TeamID, &contractID, &e.Description, &e.Amount,
		&e.DueDate, &e.Category, &e.IsPaid, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.ContractID = contractID.String
	return &e, nil
}

func (p *PostgresStore) ListExpenses(ctx context.Context, teamID string, filter ListFilter) ([]models.Expense, error) {
	q := "SELECT " + expenseColumns + " FROM expenses WHERE team_id = $1"
	args := []any{teamID}
	if filter.Category != "" {
		args = append(args, filter.Category)
		q += " AND category = $" + strconv.Itoa(len(args))
	}
	if filter.ContractID != "" {
		args = append(args, filter.ContractID)
		q += " AND contract_id = $" + strconv.Itoa(len(args))
	}
	if filter.IsPaid != nil {
		args = append(args, *filter.IsPaid)
		q += " AND is_paid = $" + strconv.Itoa(len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		q += " AND due_date >= $" + strconv.Itoa(len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		q += " AND due_date <= $" + strconv.Itoa(len(args))
	}
	q += orderClause(filter, map[string]string{
		"date": "due_date", "amount": "amount", "created_at": "created_at",
	}, "due_date")
	q += " LIMIT " + strconv.Itoa(filter.EffectiveLimit())

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var result []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (p *PostgresStore) GetExpense(ctx context.Context, teamID, id string) (*models.Expense, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE team_id = $1 AND id = $2", teamID, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "expense", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (p *PostgresStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if e.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if e.Description == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.TeamID, nullStr(e.ContractID), e.Description, e.Amount,
		e.DueDate, e.Category, e.IsPaid, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateExpense(ctx context.Context, e *models.Expense) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE expenses SET contract_id = $3, description = $4, amount = $5,
		 due_date = $6, category = $7, is_paid = $8, updated_at = $9
		 WHERE team_id = $1 AND id = $2`,
		e.TeamID, e.ID, nullStr(e.ContractID), e.Description, e.Amount,
		e.DueDate, e.Category, e.IsPaid, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return notFoundIfZero(res, "expense", e.ID)
}

func (p *PostgresStore) DeleteExpense(ctx context.Context, teamID, id string) error {
	res, err := p.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE team_id = $1 AND id = $2", teamID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return notFoundIfZero(res, "expense", id)
}

// ── Recurring Expense Store ─────────────────────────────────

const recurringColumns = "id, team_id, description, amount, frequency, day_of_month, weekday, category, active, created_at, updated_at"

func scanRecurring(row interface{ Scan(...any) error }) (*models.RecurringExpense, error) {
	var e models.RecurringExpense
	err := row.Scan(&e.ID, &e.TeamID, &e.Description, &e.Amount, &e.Frequency,
		&e.DayOfMonth, &e.Weekday, &e.Category, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *PostgresStore) ListRecurringExpenses(ctx context.Context, teamID string, filter ListFilter) ([]models.RecurringExpense, error) {
	q := "SELECT " + recurringColumns + " FROM recurring_expenses WHERE team_id = $1"
	args := []any{teamID}
	if filter.Category != "" {
		args = append(args, filter.Category)
		q += " AND category = $" + strconv.Itoa(len(args))
	}
	q += " ORDER BY description LIMIT " + strconv.Itoa(filter.EffectiveLimit())

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	var result []models.RecurringExpense
	for rows.Next() {
		e, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (p *PostgresStore) GetRecurringExpense(ctx context.Context, teamID, id string) (*models.RecurringExpense, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+recurringColumns+" FROM recurring_expenses WHERE team_id = $1 AND id = $2", teamID, id)
	e, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "recurring_expense", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring expense: %w", err)
	}
	return e, nil
}

func (p *PostgresStore) CreateRecurringExpense(ctx context.Context, e *models.RecurringExpense) error {
	if e.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if e.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (`+recurringColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.TeamID, e.Description, e.Amount, e.Frequency,
		e.DayOfMonth, e.Weekday, e.Category, e.Active, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create recurring expense: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateRecurringExpense(ctx context.Context, e *models.RecurringExpense) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET description = $3, amount = $4, frequency = $5,
		 day_of_month = $6, weekday = $7, category = $8, active = $9, updated_at = $10
		 WHERE team_id = $1 AND id = $2`,
		e.TeamID, e.ID, e.Description, e.Amount, e.Frequency,
		e.DayOfMonth, e.Weekday, e.Category, e.Active, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update recurring expense: %w", err)
	}
	return notFoundIfZero(res, "recurring_expense", e.ID)
}

func (p *PostgresStore) DeleteRecurringExpense(ctx context.Context, teamID, id string) error {
	res, err := p.db.ExecContext(ctx,
		"DELETE FROM recurring_expenses WHERE team_id = $1 AND id = $2", teamID, id)
	if err != nil {
		return fmt.Errorf("delete recurring expense: %w", err)
	}
	return notFoundIfZero(res, "recurring_expense", id)
}

// ── Team Store ──────────────────────────────────────────────

func (p *PostgresStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team
	err := p.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM teams WHERE id = $1", id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "team", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

func (p *PostgresStore) CreateTeam(ctx context.Context, t *models.Team) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO teams (id, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING",
		t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT id, name, created_at FROM teams ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var result []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// ── Helpers ─────────────────────────────────────────────────

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func notFoundIfZero(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ErrNotFound{Entity: entity, Key: id}
	}
	return nil
}

// orderClause maps a filter's SortBy onto a whitelisted column. Unknown
// sort keys fall back to the default column so no caller-influenced string
// ever reaches the SQL text.
func orderClause(filter ListFilter, columns map[string]string, def string) string {
	col, ok := columns[filter.SortBy]
	if !ok {
		col = def
	}
	dir := " ASC"
	if filter.SortDesc {
		dir = " DESC"
	}
	return " ORDER BY " + col + dir
}
