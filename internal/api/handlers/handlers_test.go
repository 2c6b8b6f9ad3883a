package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/agents"
	"github.com/ledgerchat/ledgerchat/internal/api"
	"github.com/ledgerchat/ledgerchat/internal/api/handlers"
	"github.com/ledgerchat/ledgerchat/internal/config"
	"github.com/ledgerchat/ledgerchat/internal/confirm"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedCompleter always returns the same model output.
type fixedCompleter struct{ reply string }

func (c *fixedCompleter) Complete(_ context.Context, _, _ string, _ []models.ChatMessage) (string, error) {
	return c.reply, nil
}

func newTestServer(t *testing.T, reply string) (http.Handler, store.Store) {
	t.Helper()
	os.Unsetenv("LEDGERCHAT_API_KEYS")
	dir := t.TempDir()
	os.Setenv("LEDGERCHAT_DATA_DIR", dir)
	defer os.Unsetenv("LEDGERCHAT_DATA_DIR")

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	completer := &fixedCompleter{reply: reply}
	extractor := agents.NewExtractor(completer, s)
	orchestrator := agents.NewOrchestrator(
		agents.NewRouter(),
		agents.NewSetupAgent(completer),
		agents.NewQueryAgent(completer, s),
		agents.NewOperationsAgent(extractor, confirm.NewWorkflow(s)),
	)

	h := handlers.New(s, orchestrator)
	return api.NewRouter(config.Load(), h), s
}

func postChat(t *testing.T, router http.Handler, team string, req models.ChatRequest) models.ChatResponse {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Team-Id", team)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)

	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestChat_CreateConfirmListFlow(t *testing.T) {
	router, _ := newTestServer(t,
		`{"entity_type":"expense","operation":"create","fields":{"description":"gasolina","amount":"50","due_date":"15/03/2025"}}`)

	// Turn 1: propose.
	resp := postChat(t, router, "team-a", models.ChatRequest{Message: "paguei 50 de gasolina"})
	require.NotNil(t, resp.ConversationState.PendingOperation)

	// Turn 2: confirm. The state goes back exactly as received.
	resp2 := postChat(t, router, "team-a", models.ChatRequest{
		Message:           "sim",
		ConversationState: resp.ConversationState,
	})
	assert.True(t, resp2.Success)
	assert.Nil(t, resp2.ConversationState.PendingOperation)

	// REST list shows the record for the owning team only.
	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/expenses", nil)
	listReq.Header.Set("X-Team-Id", "team-a")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, listReq)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.Expense
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "gasolina", rows[0].Description)

	otherReq := httptest.NewRequest(http.MethodGet, "/api/v1/expenses", nil)
	otherReq.Header.Set("X-Team-Id", "team-b")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, otherReq)
	require.Equal(t, http.StatusOK, w2.Code)

	var otherRows []models.Expense
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &otherRows))
	assert.Empty(t, otherRows, "records never leak across teams")
}

func TestChat_RejectsEmptyTurn(t *testing.T) {
	router, _ := newTestServer(t, "{}")

	httpReq := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(`{"message":""}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRest_GetUnknownExpenseIs404(t *testing.T) {
	router, _ := newTestServer(t, "{}")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/expenses/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRest_DeleteIsTeamScoped(t *testing.T) {
	router, s := newTestServer(t, "{}")
	ctx := context.Background()
	require.NoError(t, s.CreateExpense(ctx, &models.Expense{
		ID: "e1", TeamID: "team-a", Description: "cimento", Amount: 300, Category: "materials",
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/expenses/e1", nil)
	req.Header.Set("X-Team-Id", "team-b")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "cross-team delete must not find the record")

	req2 := httptest.NewRequest(http.MethodDelete, "/api/v1/expenses/e1", nil)
	req2.Header.Set("X-Team-Id", "team-a")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusNoContent, w2.Code)
}

func TestRest_UpcomingOccurrences(t *testing.T) {
	router, s := newTestServer(t, "{}")
	require.NoError(t, s.CreateRecurringExpense(context.Background(), &models.RecurringExpense{
		ID: "r1", TeamID: "team-a", Description: "aluguel", Amount: 2500,
		Frequency: models.FrequencyMonthly, DayOfMonth: 5, Active: true,
		CreatedAt: time.Now().UTC(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recurring-expenses/r1/upcoming?count=3", nil)
	req.Header.Set("X-Team-Id", "team-a")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		ID       string      `json:"id"`
		Upcoming []time.Time `json:"upcoming"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "r1", payload.ID)
	assert.Len(t, payload.Upcoming, 3)
}

func TestHealthAndVersion(t *testing.T) {
	router, _ := newTestServer(t, "{}")

	for _, path := range []string{"/health", "/version"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
