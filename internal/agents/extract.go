// Package agents contains the conversational core: the router that picks a
// specialized agent for each turn, the extraction contract that turns free
// text into structured drafts, and the orchestrator that ties a turn
// together with the confirmation workflow.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/gateway"
	"github.com/ledgerchat/ledgerchat/internal/nlp"
	"github.com/ledgerchat/ledgerchat/internal/schema"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// ExtractionStatus tags the outcome of one extraction pass.
type ExtractionStatus string

const (
	// DraftComplete — all required fields populated; the draft is ready
	// for the confirmation workflow.
	DraftComplete ExtractionStatus = "draft_complete"
	// ClarificationNeeded — something is missing or ambiguous; Question
	// holds what to ask, in the user's language.
	ClarificationNeeded ExtractionStatus = "clarification_needed"
	// ExtractionError — the gateway failed or returned unrepairable
	// output. Never propagates a raw parse exception.
	ExtractionError ExtractionStatus = "extraction_error"
)

// Extraction is the tagged result of extracting a draft from one message.
type Extraction struct {
	Status   ExtractionStatus
	Draft    *models.PendingOperation
	Question string
	Err      error
}

// Extractor turns one user message plus context into a draft entity, a
// clarification, or an error. The language model proposes raw field values;
// every normalization (amounts, dates, categories, references) happens here,
// deterministically.
type Extractor struct {
	completer gateway.Completer
	store     store.Store
	now       func() time.Time
}

func NewExtractor(c gateway.Completer, s store.Store) *Extractor {
	return &Extractor{completer: c, store: s, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the extractor's clock. Tests use this to pin "today".
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// rawExtraction is the JSON shape the model is asked to produce.
type rawExtraction struct {
	EntityType     string            `json:"entity_type"`
	Operation      string            `json:"operation"`
	TargetEntityID string            `json:"target_entity_id,omitempty"`
	Fields         map[string]string `json:"fields"`
	Clarification  string            `json:"clarification,omitempty"`
}

// Extract runs one extraction pass for a message.
func (e *Extractor) Extract(ctx context.Context, teamID, message string, history []models.ChatMessage) Extraction {
	systemPrompt := e.buildSystemPrompt()

	raw, err := e.completer.Complete(ctx, systemPrompt, message, history)
	if err != nil {
		return Extraction{Status: ExtractionError, Err: err}
	}

	parsed, err := parseExtraction(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Unrepairable extraction output")
		return Extraction{
			Status: ExtractionError,
			Err:    &gateway.Error{Kind: gateway.KindMalformed, Err: err},
		}
	}

	if parsed.Clarification != "" {
		return Extraction{Status: ClarificationNeeded, Question: parsed.Clarification}
	}

	entityType := models.EntityType(parsed.EntityType)
	if !entityType.Valid() {
		return Extraction{
			Status:   ClarificationNeeded,
			Question: clarifyText(message, "O que você quer registrar: contrato, recebível, despesa ou despesa recorrente?", "What would you like to record: a contract, receivable, expense or recurring expense?"),
		}
	}

	opKind := models.OperationKind(parsed.Operation)
	switch opKind {
	case models.OperationCreate, models.OperationUpdate, models.OperationDelete:
	default:
		opKind = models.OperationCreate
	}

	return e.normalize(ctx, teamID, message, entityType, opKind, parsed)
}

// normalize validates and resolves the model's raw field values into a
// typed draft, or a clarification when anything is missing or ambiguous.
func (e *Extractor) normalize(ctx context.Context, teamID, message string, entityType models.EntityType, opKind models.OperationKind, parsed *rawExtraction) Extraction {
	sch := schema.Get(entityType)
	now := e.now()
	draft := make(map[string]any, len(parsed.Fields))

	for name, value := range parsed.Fields {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch fieldType(sch, name) {
		case schema.FieldAmount:
			amount, err := nlp.ParseAmount(value)
			if err != nil {
				return Extraction{
					Status:   ClarificationNeeded,
					Question: clarifyText(message, fmt.Sprintf("Não entendi o valor %q — pode repetir?", value), fmt.Sprintf("I could not read the amount %q — could you repeat it?", value)),
				}
			}
			draft[name] = amount

		case schema.FieldDate:
			date, err := nlp.ResolveDate(value, now)
			if err != nil {
				return Extraction{
					Status:   ClarificationNeeded,
					Question: clarifyText(message, fmt.Sprintf("Não entendi a data %q — pode informar no formato dia/mês?", value), fmt.Sprintf("I could not read the date %q — could you give it as day/month?", value)),
				}
			}
			draft[name] = date.Format("2006-01-02")

		case schema.FieldCategory:
			if sch.ValidCategory(value) {
				draft[name] = value
			}
			// Out-of-vocabulary model output is discarded; inference
			// against the message decides below.

		case schema.FieldRef:
			resolution := e.resolveReference(ctx, teamID, value)
			if resolution.question != "" {
				return Extraction{Status: ClarificationNeeded, Question: clarifyText(message, resolution.question, resolution.questionEN)}
			}
			if resolution.contractID != "" {
				draft["contract_id"] = resolution.contractID
			}

		default:
			if name == "is_paid" || name == "active" {
				draft[name] = strings.EqualFold(value, "true") || strings.EqualFold(value, "sim") || strings.EqualFold(value, "yes")
			} else {
				draft[name] = value
			}
		}
	}

	// Category: infer from message keywords when the model left it open.
	if sch.HasCategory() {
		if _, ok := draft["category"]; !ok {
			if inferred := schema.InferCategory(message); inferred != "" {
				draft["category"] = inferred
			} else if isRequired(sch, "category") {
				cats := strings.Join(sch.ValidCategories, ", ")
				return Extraction{
					Status:   ClarificationNeeded,
					Question: clarifyText(message, "Qual a categoria dessa despesa? Opções: "+cats, "Which category is this expense? Options: "+cats),
				}
			}
		}
	}

	// Updates and deletes carry their fields partially; only creates need
	// the full required set.
	if opKind == models.OperationCreate {
		if missing := missingRequired(sch, draft); len(missing) > 0 {
			return Extraction{
				Status:   ClarificationNeeded,
				Question: missingFieldsQuestion(message, entityType, missing),
			}
		}
	} else if parsed.TargetEntityID == "" {
		return Extraction{
			Status:   ClarificationNeeded,
			Question: clarifyText(message, "Qual registro você quer alterar?", "Which record do you want to change?"),
		}
	}

	po := &models.PendingOperation{
		EntityType:     entityType,
		OperationKind:  opKind,
		DraftFields:    draft,
		TargetEntityID: parsed.TargetEntityID,
		CreatedAt:      now,
	}
	po.ConfirmationPrompt = confirmationPrompt(message, po)
	return Extraction{Status: DraftComplete, Draft: po}
}

// ── Reference resolution ────────────────────────────────────

type refResolution struct {
	contractID string
	question   string
	questionEN string
}

// resolveReference maps a free-text client/project mention onto exactly one
// contract. Deterministic cascade: exact case-insensitive match, then unique
// prefix, then unique substring. Zero or multiple candidates at the first
// non-empty tier become a clarification — a match is never picked silently.
func (e *Extractor) resolveReference(ctx context.Context, teamID, ref string) refResolution {
	candidates, err := e.store.FindContractsByName(ctx, teamID, ref)
	if err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Contract lookup failed")
		return refResolution{
			question:   "Não consegui procurar o cliente agora — tente de novo.",
			questionEN: "I could not look up the client right now — please try again.",
		}
	}

	if len(candidates) == 0 {
		return refResolution{
			question:   fmt.Sprintf("Não encontrei nenhum cliente ou projeto chamado %q. Qual o nome do cliente?", ref),
			questionEN: fmt.Sprintf("I could not find a client or project named %q. What is the client name?", ref),
		}
	}

	needle := strings.ToLower(strings.TrimSpace(ref))

	if c, ok := uniqueMatch(candidates, func(c models.Contract) bool {
		return strings.ToLower(c.ClientName) == needle || strings.ToLower(c.ProjectName) == needle
	}); ok {
		return refResolution{contractID: c.ID}
	}

	if c, ok := uniqueMatch(candidates, func(c models.Contract) bool {
		return strings.HasPrefix(strings.ToLower(c.ClientName), needle) ||
			strings.HasPrefix(strings.ToLower(c.ProjectName), needle)
	}); ok {
		return refResolution{contractID: c.ID}
	}

	if len(candidates) == 1 {
		return refResolution{contractID: candidates[0].ID}
	}

	labels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		labels = append(labels, c.DisplayLabel())
	}
	list := strings.Join(labels, "; ")
	return refResolution{
		question:   fmt.Sprintf("Encontrei mais de um: %s. Qual deles?", list),
		questionEN: fmt.Sprintf("I found more than one: %s. Which one?", list),
	}
}

func uniqueMatch(candidates []models.Contract, pred func(models.Contract) bool) (models.Contract, bool) {
	var found models.Contract
	count := 0
	for _, c := range candidates {
		if pred(c) {
			found = c
			count++
		}
	}
	return found, count == 1
}

// ── Prompt building ─────────────────────────────────────────

func (e *Extractor) buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You extract financial records from messages written in Portuguese or English.\n")
	b.WriteString("Reply with a single JSON object, nothing else:\n")
	b.WriteString(`{"entity_type":"","operation":"create|update|delete","target_entity_id":"","fields":{},"clarification":""}` + "\n\n")
	b.WriteString("Entity types and their fields:\n")

	for _, sch := range schema.All() {
		b.WriteString(fmt.Sprintf("- %s: required", sch.EntityType))
		for _, f := range sch.RequiredFields {
			b.WriteString(fmt.Sprintf(" %s(%s)", f.Name, f.Type))
		}
		if len(sch.OptionalFields) > 0 {
			b.WriteString("; optional")
			for _, f := range sch.OptionalFields {
				b.WriteString(fmt.Sprintf(" %s(%s)", f.Name, f.Type))
			}
		}
		if sch.HasCategory() {
			b.WriteString("; categories: " + strings.Join(sch.ValidCategories, ","))
		}
		b.WriteString("\n")
		for _, hint := range sch.InferenceHints {
			b.WriteString("  hint: " + hint + "\n")
		}
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Copy amounts and dates exactly as written (\"5k\", \"ontem\", \"15/3\"); do not convert them.\n")
	b.WriteString("- Leave unknown fields out; never invent values.\n")
	b.WriteString("- Set clarification (in the user's language) only when the intent itself is unclear.\n")
	return b.String()
}

// ── Output parsing & repair ─────────────────────────────────

var (
	codeFenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// parseExtraction decodes model output into a rawExtraction, applying one
// structural repair pass before giving up.
func parseExtraction(raw string) (*rawExtraction, error) {
	var out rawExtraction
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return &out, nil
	}

	repaired := repairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("malformed extraction output: %w", err)
	}
	return &out, nil
}

// repairJSON strips markdown fences, cuts to the outermost object, and
// removes trailing commas. One pass; anything worse is an extraction error.
func repairJSON(raw string) string {
	s := raw
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// ── Helpers ─────────────────────────────────────────────────

func fieldType(sch *schema.EntitySchema, name string) schema.FieldType {
	for _, f := range sch.RequiredFields {
		if f.Name == name {
			return f.Type
		}
	}
	for _, f := range sch.OptionalFields {
		if f.Name == name {
			return f.Type
		}
	}
	return schema.FieldString
}

func isRequired(sch *schema.EntitySchema, name string) bool {
	for _, f := range sch.RequiredFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func missingRequired(sch *schema.EntitySchema, draft map[string]any) []string {
	var missing []string
	for _, f := range sch.RequiredFields {
		if _, ok := draft[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// fieldLabels translates canonical field names for clarification questions.
var fieldLabels = map[string]struct{ pt, en string }{
	"client_name":   {"nome do cliente", "client name"},
	"project_name":  {"nome do projeto", "project name"},
	"total_value":   {"valor total", "total value"},
	"signed_date":   {"data de assinatura", "signing date"},
	"amount":        {"valor", "amount"},
	"expected_date": {"data prevista", "expected date"},
	"due_date":      {"data de vencimento", "due date"},
	"description":   {"descrição", "description"},
	"category":      {"categoria", "category"},
	"frequency":     {"frequência", "frequency"},
}

func missingFieldsQuestion(message string, entityType models.EntityType, missing []string) string {
	pt := make([]string, 0, len(missing))
	en := make([]string, 0, len(missing))
	for _, name := range missing {
		if l, ok := fieldLabels[name]; ok {
			pt = append(pt, l.pt)
			en = append(en, l.en)
		} else {
			pt = append(pt, name)
			en = append(en, name)
		}
	}
	return clarifyText(message,
		"Para registrar, ainda preciso de: "+strings.Join(pt, ", ")+".",
		"To record this I still need: "+strings.Join(en, ", ")+".")
}

// portugueseMarkers are cheap signals that a message is in Portuguese.
var portugueseMarkers = []string{
	"ã", "õ", "ç", "é ", "á ", " não", " sim", " de ", " para ", " com ",
	"paguei", "gastei", "recebi", "ontem", "amanhã", "hoje", "despesa",
	"contrato", "cliente", "quanto", "quais",
}

// clarifyText picks the Portuguese or English wording based on the message.
func clarifyText(message, pt, en string) string {
	lower := strings.ToLower(message)
	for _, marker := range portugueseMarkers {
		if strings.Contains(lower, marker) {
			return pt
		}
	}
	return en
}

// ── Confirmation preview ────────────────────────────────────

var entityLabels = map[models.EntityType]struct{ pt, en string }{
	models.EntityContract:         {"contrato", "contract"},
	models.EntityReceivable:       {"recebível", "receivable"},
	models.EntityExpense:          {"despesa", "expense"},
	models.EntityRecurringExpense: {"despesa recorrente", "recurring expense"},
}

var operationLabels = map[models.OperationKind]struct{ pt, en string }{
	models.OperationCreate: {"Criar", "Create"},
	models.OperationUpdate: {"Atualizar", "Update"},
	models.OperationDelete: {"Remover", "Delete"},
}

// confirmationPrompt renders the human-readable preview shown before any
// mutation is committed.
func confirmationPrompt(message string, po *models.PendingOperation) string {
	el := entityLabels[po.EntityType]
	ol := operationLabels[po.OperationKind]

	var b strings.Builder
	if isPortuguese(message) {
		b.WriteString(ol.pt + " " + el.pt + ":\n")
	} else {
		b.WriteString(ol.en + " " + el.en + ":\n")
	}

	order := []string{
		"client_name", "project_name", "description", "amount", "total_value",
		"signed_date", "expected_date", "due_date", "category", "frequency",
		"day_of_month", "weekday", "invoice_number", "is_paid",
	}
	for _, name := range order {
		v, ok := po.DraftFields[name]
		if !ok {
			continue
		}
		label := name
		if l, found := fieldLabels[name]; found {
			if isPortuguese(message) {
				label = l.pt
			} else {
				label = l.en
			}
		}
		switch val := v.(type) {
		case float64:
			b.WriteString(fmt.Sprintf("• %s: R$%.2f\n", label, val))
		default:
			b.WriteString(fmt.Sprintf("• %s: %v\n", label, val))
		}
	}

	if isPortuguese(message) {
		b.WriteString("\nConfirma? (sim/não)")
	} else {
		b.WriteString("\nConfirm? (yes/no)")
	}
	return b.String()
}

func isPortuguese(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range portugueseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
