package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/gateway"
	"github.com/ledgerchat/ledgerchat/internal/nlp"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/pkg/models"
)

// QuerySpec is the structured read the model translates a question into.
// It deliberately has no team field; the team predicate is injected by the
// caller from the authenticated context and can never come from the model.
type QuerySpec struct {
	EntityType  string `json:"entity_type"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status,omitempty"`
	ContractRef string `json:"contract,omitempty"`
	IsPaid      *bool  `json:"is_paid,omitempty"`
	DateFrom    string `json:"date_from,omitempty"` // raw; resolved like any date
	DateTo      string `json:"date_to,omitempty"`
	SortBy      string `json:"sort_by,omitempty"`
	SortDesc    bool   `json:"sort_desc,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Summarize   bool   `json:"summarize,omitempty"` // user asked for a total, not a list
}

// QueryResult carries the rows and aggregate returned to the caller.
type QueryResult struct {
	EntityType models.EntityType `json:"entity_type"`
	Items      any               `json:"items"`
	Count      int               `json:"count"`
	Total      float64           `json:"total"`
}

// QueryAgent answers read-only questions. It has no mutation path at all:
// the only store methods it calls are List*.
type QueryAgent struct {
	completer gateway.Completer
	store     store.Store
	now       func() time.Time
}

func NewQueryAgent(c gateway.Completer, s store.Store) *QueryAgent {
	return &QueryAgent{completer: c, store: s, now: func() time.Time { return time.Now().UTC() }}
}

func (q *QueryAgent) WithClock(now func() time.Time) *QueryAgent {
	q.now = now
	return q
}

// Answer translates the question into a QuerySpec, runs it against the
// caller's team, and renders a short natural-language reply.
func (q *QueryAgent) Answer(ctx context.Context, teamID, message string, history []models.ChatMessage) (string, *QueryResult, error) {
	raw, err := q.completer.Complete(ctx, querySystemPrompt, message, history)
	if err != nil {
		return "", nil, err
	}

	spec, err := parseQuerySpec(raw)
	if err != nil {
		return "", nil, &gateway.Error{Kind: gateway.KindMalformed, Err: err}
	}

	entityType := models.EntityType(spec.EntityType)
	if !entityType.Valid() {
		return clarifyText(message,
			"Sobre o que você quer saber: contratos, recebíveis, despesas ou despesas recorrentes?",
			"What would you like to know about: contracts, receivables, expenses or recurring expenses?"), nil, nil
	}

	filter, err := q.buildFilter(ctx, teamID, spec)
	if err != nil {
		return "", nil, err
	}

	result, err := q.run(ctx, teamID, entityType, filter)
	if err != nil {
		return "", nil, err
	}
	return q.render(message, spec, result), result, nil
}

const querySystemPrompt = `You translate questions about financial records (Portuguese or English) into a JSON query. Reply with a single JSON object, nothing else:
{"entity_type":"contract|receivable|expense|recurring_expense","category":"","status":"","contract":"","is_paid":null,"date_from":"","date_to":"","sort_by":"date|amount|created_at","sort_desc":false,"limit":0,"summarize":false}

Rules:
- Copy dates exactly as written ("ontem", "15/3", "este mês" becomes the month's first and last day as d/m).
- "quanto"/"how much"/"total" means summarize=true.
- Leave fields you are not sure about empty. Never invent filters.`

// buildFilter converts a QuerySpec into a store filter, resolving raw dates
// and contract references on the way.
func (q *QueryAgent) buildFilter(ctx context.Context, teamID string, spec *QuerySpec) (store.ListFilter, error) {
	filter := store.ListFilter{
		Category: spec.Category,
		Status:   spec.Status,
		IsPaid:   spec.IsPaid,
		SortBy:   spec.SortBy,
		SortDesc: spec.SortDesc,
		Limit:    spec.Limit,
	}

	now := q.now()
	if spec.DateFrom != "" {
		if t, err := nlp.ResolveDate(spec.DateFrom, now); err == nil {
			filter.DateFrom = &t
		}
	}
	if spec.DateTo != "" {
		if t, err := nlp.ResolveDate(spec.DateTo, now); err == nil {
			filter.DateTo = &t
		}
	}

	if spec.ContractRef != "" {
		candidates, err := q.store.FindContractsByName(ctx, teamID, spec.ContractRef)
		if err != nil {
			return filter, err
		}
		// Queries are read-only, so an ambiguous reference just widens the
		// result instead of blocking the turn; only a unique match narrows.
		if len(candidates) == 1 {
			filter.ContractID = candidates[0].ID
		}
	}
	return filter, nil
}

func (q *QueryAgent) run(ctx context.Context, teamID string, entityType models.EntityType, filter store.ListFilter) (*QueryResult, error) {
	result := &QueryResult{EntityType: entityType}

	switch entityType {
	case models.EntityContract:
		rows, err := q.store.ListContracts(ctx, teamID, filter)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			result.Total += r.TotalValue
		}
		result.Items, result.Count = rows, len(rows)

	case models.EntityReceivable:
		rows, err := q.store.ListReceivables(ctx, teamID, filter)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			result.Total += r.Amount
		}
		result.Items, result.Count = rows, len(rows)

	case models.EntityExpense:
		rows, err := q.store.ListExpenses(ctx, teamID, filter)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			result.Total += r.Amount
		}
		result.Items, result.Count = rows, len(rows)

	case models.EntityRecurringExpense:
		rows, err := q.store.ListRecurringExpenses(ctx, teamID, filter)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			result.Total += r.Amount
		}
		result.Items, result.Count = rows, len(rows)
	}
	return result, nil
}

// render writes the one-paragraph answer; the full rows travel in Data.
func (q *QueryAgent) render(message string, spec *QuerySpec, result *QueryResult) string {
	el := entityLabels[result.EntityType]
	pt := isPortuguese(message)

	if result.Count == 0 {
		if pt {
			return "Não encontrei nenhum registro de " + el.pt + " com esses critérios."
		}
		return "I found no " + el.en + " records matching that."
	}

	if spec.Summarize {
		if pt {
			return fmt.Sprintf("Total de %d registro(s) de %s: R$%.2f.", result.Count, el.pt, result.Total)
		}
		return fmt.Sprintf("%d %s record(s), totalling R$%.2f.", result.Count, el.en, result.Total)
	}

	var b strings.Builder
	if pt {
		fmt.Fprintf(&b, "Encontrei %d registro(s) de %s (total R$%.2f):\n", result.Count, el.pt, result.Total)
	} else {
		fmt.Fprintf(&b, "Found %d %s record(s) (total R$%.2f):\n", result.Count, el.en, result.Total)
	}
	b.WriteString(itemLines(result))
	return strings.TrimRight(b.String(), "\n")
}

const maxRenderedLines = 15

func itemLines(result *QueryResult) string {
	var b strings.Builder
	write := func(i int, line string) bool {
		if i >= maxRenderedLines {
			b.WriteString("• …\n")
			return false
		}
		b.WriteString("• " + line + "\n")
		return true
	}

	switch rows := result.Items.(type) {
	case []models.Contract:
		for i, r := range rows {
			if !write(i, fmt.Sprintf("%s — R$%.2f (%s)", r.DisplayLabel(), r.TotalValue, r.Status)) {
				break
			}
		}
	case []models.Receivable:
		for i, r := range rows {
			if !write(i, fmt.Sprintf("R$%.2f em %s (%s)", r.Amount, r.ExpectedDate.Format("02/01/2006"), r.Status)) {
				break
			}
		}
	case []models.Expense:
		for i, r := range rows {
			paid := "pendente"
			if r.IsPaid {
				paid = "pago"
			}
			if !write(i, fmt.Sprintf("%s — R$%.2f, %s (%s, %s)", r.Description, r.Amount, r.DueDate.Format("02/01/2006"), r.Category, paid)) {
				break
			}
		}
	case []models.RecurringExpense:
		for i, r := range rows {
			if !write(i, fmt.Sprintf("%s — R$%.2f (%s)", r.Description, r.Amount, r.Frequency)) {
				break
			}
		}
	}
	return b.String()
}

func parseQuerySpec(raw string) (*QuerySpec, error) {
	var spec QuerySpec
	if err := json.Unmarshal([]byte(raw), &spec); err == nil {
		return &spec, nil
	}
	if err := json.Unmarshal([]byte(repairJSON(raw)), &spec); err != nil {
		return nil, fmt.Errorf("malformed query output: %w", err)
	}
	return &spec, nil
}
