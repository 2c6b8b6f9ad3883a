// Package schema holds the static entity schema registry: which fields each
// financial entity type requires, the closed category vocabularies, and the
// inference hints fed to the extraction prompt. Pure data, loaded once,
// shared read-only across all requests.
package schema

import (
	"strings"

	"github.com/ledgerchat/ledgerchat/pkg/models"
)

// FieldType is the semantic type of a schema field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldAmount   FieldType = "amount"
	FieldDate     FieldType = "date"
	FieldCategory FieldType = "category"
	FieldRef      FieldType = "reference" // free-text reference to an existing record
)

// Field describes one extractable field of an entity type.
type Field struct {
	Name        string
	Type        FieldType
	Description string
}

// EntitySchema is the static description of one manageable entity type.
type EntitySchema struct {
	EntityType      models.EntityType
	RequiredFields  []Field
	OptionalFields  []Field
	ValidCategories []string // empty means the type has no category field
	InferenceHints  []string // free-text rules included in the extraction prompt
}

// HasCategory reports whether the type carries a closed category vocabulary.
func (s *EntitySchema) HasCategory() bool { return len(s.ValidCategories) > 0 }

// ValidCategory reports whether c is in the type's closed vocabulary.
func (s *EntitySchema) ValidCategory(c string) bool {
	for _, v := range s.ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}

// RequiredFieldNames returns the names of all required fields.
func (s *EntitySchema) RequiredFieldNames() []string {
	names := make([]string, 0, len(s.RequiredFields))
	for _, f := range s.RequiredFields {
		names = append(names, f.Name)
	}
	return names
}

// ExpenseCategories is the closed vocabulary shared by expenses and
// recurring expenses.
var ExpenseCategories = []string{
	"food", "transport", "materials", "labor", "office",
	"software", "taxes", "services", "other",
}

var registry = map[models.EntityType]*EntitySchema{
	models.EntityContract: {
		EntityType: models.EntityContract,
		RequiredFields: []Field{
			{Name: "client_name", Type: FieldString, Description: "name of the client"},
			{Name: "project_name", Type: FieldString, Description: "name of the project"},
			{Name: "total_value", Type: FieldAmount, Description: "total contract value"},
			{Name: "signed_date", Type: FieldDate, Description: "date the contract was signed"},
		},
		OptionalFields: []Field{
			{Name: "description", Type: FieldString, Description: "free-form notes"},
			{Name: "status", Type: FieldString, Description: "active, completed or cancelled"},
		},
		InferenceHints: []string{
			"If only one name is mentioned, use it as both client and project name.",
			"\"fechei um contrato\" / \"closed a deal\" means a new contract.",
			"Default status is active.",
		},
	},
	models.EntityReceivable: {
		EntityType: models.EntityReceivable,
		RequiredFields: []Field{
			{Name: "amount", Type: FieldAmount, Description: "amount expected"},
			{Name: "expected_date", Type: FieldDate, Description: "date the payment is expected"},
		},
		OptionalFields: []Field{
			{Name: "contract", Type: FieldRef, Description: "client or project the payment belongs to"},
			{Name: "invoice_number", Type: FieldString, Description: "invoice/NF number"},
			{Name: "description", Type: FieldString, Description: "free-form notes"},
		},
		InferenceHints: []string{
			"\"vou receber\" / \"will receive\" indicates a receivable.",
			"\"parcela\" means an installment of an existing contract.",
		},
	},
	models.EntityExpense: {
		EntityType: models.EntityExpense,
		RequiredFields: []Field{
			{Name: "description", Type: FieldString, Description: "what the expense was"},
			{Name: "amount", Type: FieldAmount, Description: "amount spent or due"},
			{Name: "due_date", Type: FieldDate, Description: "when it is due (or was paid)"},
			{Name: "category", Type: FieldCategory, Description: "one of the valid categories"},
		},
		OptionalFields: []Field{
			{Name: "contract", Type: FieldRef, Description: "project the expense belongs to"},
			{Name: "is_paid", Type: FieldString, Description: "whether it was already paid"},
		},
		ValidCategories: ExpenseCategories,
		InferenceHints: []string{
			"Past tense (\"paguei\", \"gastei\", \"paid\") implies is_paid=true and the date it happened.",
			"If no date is mentioned, the expense is due today.",
		},
	},
	models.EntityRecurringExpense: {
		EntityType: models.EntityRecurringExpense,
		RequiredFields: []Field{
			{Name: "description", Type: FieldString, Description: "what the recurring cost is"},
			{Name: "amount", Type: FieldAmount, Description: "amount per occurrence"},
			{Name: "frequency", Type: FieldString, Description: "weekly, monthly or yearly"},
		},
		OptionalFields: []Field{
			{Name: "day_of_month", Type: FieldString, Description: "day of month it falls due (monthly/yearly)"},
			{Name: "weekday", Type: FieldString, Description: "weekday it falls due (weekly)"},
			{Name: "category", Type: FieldCategory, Description: "one of the valid categories"},
		},
		ValidCategories: ExpenseCategories,
		InferenceHints: []string{
			"\"todo mês\" / \"every month\" means monthly; \"toda semana\" weekly; \"todo ano\" yearly.",
			"\"assinatura\" / \"subscription\" is usually a monthly software expense.",
			"Day of month defaults to the day mentioned, else 1.",
		},
	},
}

// Get returns the schema for an entity type, or nil for unknown types.
func Get(entityType models.EntityType) *EntitySchema {
	return registry[entityType]
}

// All returns every registered schema.
func All() []*EntitySchema {
	out := make([]*EntitySchema, 0, len(registry))
	for _, t := range []models.EntityType{
		models.EntityContract, models.EntityReceivable,
		models.EntityExpense, models.EntityRecurringExpense,
	} {
		out = append(out, registry[t])
	}
	return out
}

// ── Category Inference ──────────────────────────────────────

// categoryKeywords maps message keywords (PT and EN) to a category from the
// closed vocabulary. First hit wins; keys are matched as substrings of the
// lowercased message.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"gasolina", "transport"},
	{"combustível", "transport"},
	{"combustivel", "transport"},
	{"uber", "transport"},
	{"táxi", "transport"},
	{"taxi", "transport"},
	{"estacionamento", "transport"},
	{"pedágio", "transport"},
	{"pedagio", "transport"},
	{"fuel", "transport"},
	{"gas station", "transport"},
	{"parking", "transport"},

	{"almoço", "food"},
	{"almoco", "food"},
	{"jantar", "food"},
	{"restaurante", "food"},
	{"mercado", "food"},
	{"ifood", "food"},
	{"lanche", "food"},
	{"lunch", "food"},
	{"dinner", "food"},
	{"restaurant", "food"},
	{"groceries", "food"},

	{"cimento", "materials"},
	{"tijolo", "materials"},
	{"madeira", "materials"},
	{"tinta", "materials"},
	{"material", "materials"},
	{"ferragem", "materials"},
	{"lumber", "materials"},
	{"paint", "materials"},

	{"pedreiro", "labor"},
	{"eletricista", "labor"},
	{"encanador", "labor"},
	{"diária", "labor"},
	{"diaria", "labor"},
	{"mão de obra", "labor"},
	{"freela", "labor"},
	{"contractor", "labor"},
	{"electrician", "labor"},
	{"plumber", "labor"},

	{"aluguel", "office"},
	{"escritório", "office"},
	{"escritorio", "office"},
	{"energia", "office"},
	{"luz", "office"},
	{"internet", "office"},
	{"água", "office"},
	{"agua", "office"},
	{"rent", "office"},
	{"electricity", "office"},

	{"assinatura", "software"},
	{"licença", "software"},
	{"licenca", "software"},
	{"autocad", "software"},
	{"adobe", "software"},
	{"notion", "software"},
	{"figma", "software"},
	{"subscription", "software"},
	{"license", "software"},
	{"saas", "software"},

	{"imposto", "taxes"},
	{"das ", "taxes"},
	{"darf", "taxes"},
	{"inss", "taxes"},
	{"iss", "taxes"},
	{"tax", "taxes"},

	{"contador", "services"},
	{"contabilidade", "services"},
	{"advogado", "services"},
	{"cartório", "services"},
	{"cartorio", "services"},
	{"accountant", "services"},
	{"lawyer", "services"},
	{"notary", "services"},
}

// InferCategory matches message keywords against the closed vocabulary.
// Returns "" when nothing matches; callers decide between a documented
// default and a clarification, never a silent out-of-vocabulary value.
func InferCategory(message string) string {
	lower := strings.ToLower(message)
	for _, kc := range categoryKeywords {
		if strings.Contains(lower, kc.keyword) {
			return kc.category
		}
	}
	return ""
}
