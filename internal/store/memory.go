// Package store — in-memory Store implementation.
// Used when DATABASE_URL is not set (local dev, tests). Supports file-based
// snapshot persistence so data survives restarts.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Contracts         map[string]*models.Contract         `json:"contracts"`
	Receivables       map[string]*models.Receivable       `json:"receivables"`
	Expenses          map[string]*models.Expense          `json:"expenses"`
	RecurringExpenses map[string]*models.RecurringExpense `json:"recurring_expenses"`
	Teams             map[string]*models.Team             `json:"teams"`
}

// MemoryStore implements Store with in-memory maps keyed "team:id".
type MemoryStore struct {
	mu                sync.RWMutex
	contracts         map[string]*models.Contract
	receivables       map[string]*models.Receivable
	expenses          map[string]*models.Expense
	recurringExpenses map[string]*models.RecurringExpense
	teams             map[string]*models.Team // key: id

	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutine to stop
}

// NewMemoryStore creates a new in-memory store.
// If LEDGERCHAT_DATA_DIR is set, data is persisted to a JSON file in that
// directory. Otherwise defaults to ~/.ledgerchat/data.json.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		contracts:         make(map[string]*models.Contract),
		receivables:       make(map[string]*models.Receivable),
		expenses:          make(map[string]*models.Expense),
		recurringExpenses: make(map[string]*models.RecurringExpense),
		teams:             make(map[string]*models.Team),
		saveCh:            make(chan struct{}, 1),
		doneCh:            make(chan struct{}),
	}

	dataDir := os.Getenv("LEDGERCHAT_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			dataDir = filepath.Join(home, ".ledgerchat")
		}
	}
	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.saveCh:
			// Small debounce window to batch bursts of writes.
			time.Sleep(200 * time.Millisecond)
			m.saveSnapshot()
		case <-m.doneCh:
			m.saveSnapshot()
			return
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Contracts:         m.contracts,
		Receivables:       m.receivables,
		Expenses:          m.expenses,
		RecurringExpenses: m.recurringExpenses,
		Teams:             m.teams,
	}
	data, err := json.MarshalIndent(&snap, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Warn().Err(err).Msg("Failed to write snapshot")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Warn().Err(err).Msg("Failed to replace snapshot")
	}
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Failed to read snapshot")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Msg("Corrupt snapshot, starting empty")
		return
	}

	if snap.Contracts != nil {
		m.contracts = snap.Contracts
	}
	if snap.Receivables != nil {
		m.receivables = snap.Receivables
	}
	if snap.Expenses != nil {
		m.expenses = snap.Expenses
	}
	if snap.RecurringExpenses != nil {
		m.recurringExpenses = snap.RecurringExpenses
	}
	if snap.Teams != nil {
		m.teams = snap.Teams
	}

	log.Info().
		Int("contracts", len(m.contracts)).
		Int("receivables", len(m.receivables)).
		Int("expenses", len(m.expenses)).
		Str("path", m.snapshotPath).
		Msg("Loaded snapshot")
}

func key(teamID, id string) string { return teamID + ":" + id }

// ── Contract Store ──────────────────────────────────────────

func (m *MemoryStore) ListContracts(_ context.Context, teamID string, filter ListFilter) ([]models.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Contract
	for _, c := range m.contracts {
		if c.TeamID != teamID {
			continue
		}
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		if filter.DateFrom != nil && c.SignedDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && c.SignedDate.After(*filter.DateTo) {
			continue
		}
		result = append(result, *c)
	}
	sortContracts(result, filter)
	return capContracts(result, filter.EffectiveLimit()), nil
}

func (m *MemoryStore) GetContract(_ context.Context, teamID, id string) (*models.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[key(teamID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "contract", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateContract(_ context.Context, contract *models.Contract) error {
	if contract.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if contract.ClientName == "" {
		return &ValidationError{Field: "client_name", Reason: "required"}
	}
	m.mu.Lock()
	cp := *contract
	m.contracts[key(contract.TeamID, contract.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateContract(_ context.Context, contract *models.Contract) error {
	m.mu.Lock()
	k := key(contract.TeamID, contract.ID)
	if _, ok := m.contracts[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "contract", Key: contract.ID}
	}
	contract.UpdatedAt = time.Now().UTC()
	cp := *contract
	m.contracts[k] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteContract(_ context.Context, teamID, id string) error {
	m.mu.Lock()
	k := key(teamID, id)
	if _, ok := m.contracts[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "contract", Key: id}
	}
	delete(m.contracts, k)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) FindContractsByName(_ context.Context, teamID, name string) ([]models.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	var result []models.Contract
	for _, c := range m.contracts {
		if c.TeamID != teamID {
			continue
		}
		client := strings.ToLower(c.ClientName)
		project := strings.ToLower(c.ProjectName)
		if strings.Contains(client, needle) || strings.Contains(project, needle) {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClientName < result[j].ClientName })
	return result, nil
}

// ── Receivable Store ────────────────────────────────────────

func (m *MemoryStore) ListReceivables(_ context.Context, teamID string, filter ListFilter) ([]models.Receivable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Receivable
	for _, r := range m.receivables {
		if r.TeamID != teamID {
			continue
		}
		if filter.Status != "" && string(r.Status) != filter.Status {
			continue
		}
		if filter.ContractID != "" && r.ContractID != filter.ContractID {
			continue
		}
		if filter.DateFrom != nil && r.ExpectedDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && r.ExpectedDate.After(*filter.DateTo) {
			continue
		}
		result = append(result, *r)
	}
	sortReceivables(result, filter)
	if limit := filter.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) GetReceivable(_ context.Context, teamID, id string) (*models.Receivable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.receivables[key(teamID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "receivable", Key: id}
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) CreateReceivable(_ context.Context, receivable *models.Receivable) error {
	if receivable.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if receivable.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	m.mu.Lock()
	cp := *receivable
	m.receivables[key(receivable.TeamID, receivable.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateReceivable(_ context.Context, receivable *models.Receivable) error {
	m.mu.Lock()
	k := key(receivable.TeamID, receivable.ID)
	if _, ok := m.receivables[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "receivable", Key: receivable.ID}
	}
	receivable.UpdatedAt = time.Now().UTC()
	cp := *receivable
	m.receivables[k] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteReceivable(_ context.Context, teamID, id string) error {
	m.mu.Lock()
	k := key(teamID, id)
	if _, ok := m.receivables[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "receivable", Key: id}
	}
	delete(m.receivables, k)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Expense Store ───────────────────────────────────────────

func (m *MemoryStore) ListExpenses(_ context.Context, teamID string, filter ListFilter) ([]models.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Expense
	for _, e := range m.expenses {
		if e.TeamID != teamID {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.ContractID != "" && e.ContractID != filter.ContractID {
			continue
		}
		if filter.IsPaid != nil && e.IsPaid != *filter.IsPaid {
			continue
		}
		if filter.DateFrom != nil && e.DueDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && e.DueDate.After(*filter.DateTo) {
			continue
		}
		result = append(result, *e)
	}
	sortExpenses(result, filter)
	if limit := filter.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) GetExpense(_ context.Context, teamID, id string) (*models.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.expenses[key(teamID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "expense", Key: id}
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) CreateExpense(_ context.Context, expense *models.Expense) error {
	if expense.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if expense.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if expense.Description == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	m.mu.Lock()
	cp := *expense
	m.expenses[key(expense.TeamID, expense.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateExpense(_ context.Context, expense *models.Expense) error {
	m.mu.Lock()
	k := key(expense.TeamID, expense.ID)
	if _, ok := m.expenses[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "expense", Key: expense.ID}
	}
	expense.UpdatedAt = time.Now().UTC()
	cp := *expense
	m.expenses[k] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteExpense(_ context.Context, teamID, id string) error {
	m.mu.Lock()
	k := key(teamID, id)
	if _, ok := m.expenses[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "expense", Key: id}
	}
	delete(m.expenses, k)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Recurring Expense Store ─────────────────────────────────

func (m *MemoryStore) ListRecurringExpenses(_ context.Context, teamID string, filter ListFilter) ([]models.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.RecurringExpense
	for _, e := range m.recurringExpenses {
		if e.TeamID != teamID {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Description < result[j].Description })
	if limit := filter.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) GetRecurringExpense(_ context.Context, teamID, id string) (*models.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.recurringExpenses[key(teamID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "recurring_expense", Key: id}
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) CreateRecurringExpense(_ context.Context, expense *models.RecurringExpense) error {
	if expense.TeamID == "" {
		return &ValidationError{Field: "team_id", Reason: "required"}
	}
	if expense.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	m.mu.Lock()
	cp := *expense
	m.recurringExpenses[key(expense.TeamID, expense.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateRecurringExpense(_ context.Context, expense *models.RecurringExpense) error {
	m.mu.Lock()
	k := key(expense.TeamID, expense.ID)
	if _, ok := m.recurringExpenses[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "recurring_expense", Key: expense.ID}
	}
	expense.UpdatedAt = time.Now().UTC()
	cp := *expense
	m.recurringExpenses[k] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteRecurringExpense(_ context.Context, teamID, id string) error {
	m.mu.Lock()
	k := key(teamID, id)
	if _, ok := m.recurringExpenses[k]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "recurring_expense", Key: id}
	}
	delete(m.recurringExpenses, k)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Team Store ──────────────────────────────────────────────

func (m *MemoryStore) GetTeam(_ context.Context, id string) (*models.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "team", Key: id}
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) CreateTeam(_ context.Context, team *models.Team) error {
	m.mu.Lock()
	cp := *team
	m.teams[team.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListTeams(_ context.Context) ([]models.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Team
	for _, t := range m.teams {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ── Lifecycle ───────────────────────────────────────────────

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		// already closed
	default:
		close(m.doneCh)
	}
	if m.snapshotPath != "" {
		m.saveSnapshot()
	}
	return nil
}

// ── Sorting ─────────────────────────────────────────────────

func sortContracts(list []models.Contract, filter ListFilter) {
	less := func(i, j int) bool { return list[i].SignedDate.Before(list[j].SignedDate) }
	switch filter.SortBy {
	case "amount":
		less = func(i, j int) bool { return list[i].TotalValue < list[j].TotalValue }
	case "created_at":
		less = func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) }
	}
	sort.Slice(list, orient(less, filter.SortDesc))
}

func sortReceivables(list []models.Receivable, filter ListFilter) {
	less := func(i, j int) bool { return list[i].ExpectedDate.Before(list[j].ExpectedDate) }
	switch filter.SortBy {
	case "amount":
		less = func(i, j int) bool { return list[i].Amount < list[j].Amount }
	case "created_at":
		less = func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) }
	}
	sort.Slice(list, orient(less, filter.SortDesc))
}

func sortExpenses(list []models.Expense, filter ListFilter) {
	less := func(i, j int) bool { return list[i].DueDate.Before(list[j].DueDate) }
	switch filter.SortBy {
	case "amount":
		less = func(i, j int) bool { return list[i].Amount < list[j].Amount }
	case "created_at":
		less = func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) }
	}
	sort.Slice(list, orient(less, filter.SortDesc))
}

func orient(less func(i, j int) bool, desc bool) func(i, j int) bool {
	if !desc {
		return less
	}
	return func(i, j int) bool { return less(j, i) }
}

func capContracts(list []models.Contract, limit int) []models.Contract {
	if len(list) > limit {
		return list[:limit]
	}
	return list
}
