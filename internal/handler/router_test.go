package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/command"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/query"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/repository"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/store/storetest"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
)

var testSecret = []byte("router-test-secret")

func newTestServer(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := storetest.New(t)
	log := zerolog.Nop()

	accounts := repository.NewAccountReadRepository(st.DB(), nil)
	users := repository.NewUserRepository(st.DB())
	ledger := command.NewLedgerCommandService(st, accounts, nil, log)
	queries := query.NewLedgerQueryService(
		accounts,
		repository.NewEntryReadRepository(st.DB()),
		repository.NewTagRepository(st.DB()),
		nil,
		time.UTC,
		log,
	)

	router := NewRouter(RouterConfig{
		Accounts:  NewAccountHandler(ledger, queries),
		Entries:   NewEntryHandler(ledger, queries),
		Auth:      NewAuthHandler(command.NewUserCommandService(users, log), query.NewAuthQueryService(users, testSecret, time.Hour)),
		JWTSecret: testSecret,
		Log:       log,
	})
	return router, st
}

func call(t *testing.T, router http.Handler, method, target, token string, body any, out any) int {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestRouter_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := storetest.New(t)
	healthy := true
	router := NewRouter(RouterConfig{
		Auth: &AuthHandler{},
		Log:  zerolog.Nop(),
		Checks: map[string]func(context.Context) error{
			"database": st.Ping,
			"redis": func(context.Context) error {
				if !healthy {
					return errors.New("connection refused")
				}
				return nil
			},
		},
	})

	require.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/health", "", nil, nil))
	healthy = false
	require.Equal(t, http.StatusServiceUnavailable, call(t, router, http.MethodGet, "/health", "", nil, nil))
}

func TestRouter_UnauthenticatedCallsMutateNothing(t *testing.T) {
	router, st := newTestServer(t)
	tables := []string{"accounts", "incomes", "expenses", "tags", "expense_tags"}
	before := map[string]int{}
	for _, table := range tables {
		before[table] = storetest.Count(t, st, table)
	}

	requests := []struct {
		method string
		target string
		body   any
	}{
		{http.MethodPost, "/v1/accounts", map[string]any{"name": "Checking", "balance": "100"}},
		{http.MethodPost, "/v1/income", map[string]any{"title": "Pay", "amount": "1", "date": "2024-03-01", "accountId": "acc-x"}},
		{http.MethodPost, "/v1/expenses", validExpenseBody()},
		{http.MethodPut, "/v1/expenses/exp-x", validExpenseBody()},
		{http.MethodGet, "/v1/expenses", nil},
		{http.MethodGet, "/v1/dashboard", nil},
	}
	for _, r := range requests {
		require.Equal(t, http.StatusUnauthorized, call(t, router, r.method, r.target, "", r.body, nil), r.target)
		require.Equal(t, http.StatusUnauthorized, call(t, router, r.method, r.target, "forged.token.value", r.body, nil), r.target)
	}

	for _, table := range tables {
		require.Equal(t, before[table], storetest.Count(t, st, table), table)
	}
}

func TestRouter_LedgerFlow(t *testing.T) {
	router, _ := newTestServer(t)

	var auth AuthResponse
	require.Equal(t, http.StatusCreated, call(t, router, http.MethodPost, "/v1/auth/register", "",
		map[string]any{"email": "ann@example.com", "password": "correct horse"}, &auth))
	token := auth.Token
	require.NotEmpty(t, token)

	var a1, a2 models.Account
	require.Equal(t, http.StatusCreated, call(t, router, http.MethodPost, "/v1/accounts", token,
		map[string]any{"name": "A1", "balance": "100"}, &a1))
	require.Equal(t, http.StatusCreated, call(t, router, http.MethodPost, "/v1/accounts", token,
		map[string]any{"name": "A2", "balance": "200"}, &a2))

	var exp models.Expense
	require.Equal(t, http.StatusCreated, call(t, router, http.MethodPost, "/v1/expenses", token, map[string]any{
		"title": "Groceries", "amount": "30", "date": "2024-03-01", "accountId": a1.ID, "tags": "Food, Home",
	}, &exp))
	require.Len(t, exp.TagIDs, 2)

	balance := func(id string) string {
		var view models.AccountView
		require.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/v1/accounts/"+id, token, nil, &view))
		return view.Balance.String()
	}
	require.Equal(t, "70", balance(a1.ID))

	require.Equal(t, http.StatusOK, call(t, router, http.MethodPut, "/v1/expenses/"+exp.ID, token, map[string]any{
		"title": "Groceries", "amount": "25", "date": "2024-03-01", "accountId": a2.ID, "tags": []string{"Food"},
	}, nil))
	require.Equal(t, "100", balance(a1.ID))
	require.Equal(t, "175", balance(a2.ID))

	var got models.ExpenseView
	require.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/v1/expenses/"+exp.ID, token, nil, &got))
	require.Len(t, got.Tags, 1)
	require.Equal(t, "A2", got.Account.Name)

	var tags ListTagsResponse
	require.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/v1/tags", token, nil, &tags))
	require.Len(t, tags.Tags, 2)

	var recon models.ReconciliationView
	require.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/v1/accounts/"+a2.ID+"/reconciliation", token, nil, &recon))
	require.True(t, recon.Consistent)

	var other AuthResponse
	require.Equal(t, http.StatusCreated, call(t, router, http.MethodPost, "/v1/auth/register", "",
		map[string]any{"email": "bob@example.com", "password": "correct horse"}, &other))
	require.Equal(t, http.StatusNotFound, call(t, router, http.MethodGet, "/v1/accounts/"+a1.ID, other.Token, nil, nil))
	require.Equal(t, http.StatusSeeOther, call(t, router, http.MethodGet, "/v1/expenses/"+exp.ID, other.Token, nil, nil))
	require.Equal(t, http.StatusNotFound, call(t, router, http.MethodPost, "/v1/expenses", other.Token, map[string]any{
		"title": "Sneaky", "amount": "1", "date": "2024-03-01", "accountId": a1.ID,
	}, nil))
	require.Equal(t, "100", balance(a1.ID))

	require.Equal(t, http.StatusOK, call(t, router, http.MethodGet, "/health", "", nil, nil))
}
