package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/middleware"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
)

// ---- mock implementations ----

type mockEntryCommander struct {
	createIncomeFn  func(cqrs.CreateIncomeCommand) (*models.Income, error)
	createExpenseFn func(cqrs.CreateExpenseCommand) (*models.Expense, error)
	editExpenseFn   func(cqrs.EditExpenseCommand) (*models.Expense, error)
}

func (m *mockEntryCommander) CreateIncome(_ context.Context, cmd cqrs.CreateIncomeCommand) (*models.Income, error) {
	if m.createIncomeFn != nil {
		return m.createIncomeFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockEntryCommander) CreateExpense(_ context.Context, cmd cqrs.CreateExpenseCommand) (*models.Expense, error) {
	if m.createExpenseFn != nil {
		return m.createExpenseFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockEntryCommander) EditExpense(_ context.Context, cmd cqrs.EditExpenseCommand) (*models.Expense, error) {
	if m.editExpenseFn != nil {
		return m.editExpenseFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockEntryQuerier struct {
	listExpensesFn func(cqrs.ListEntriesQuery) ([]models.ExpenseView, error)
	listIncomeFn   func(cqrs.ListEntriesQuery) ([]models.IncomeView, error)
	getExpenseFn   func(cqrs.GetExpenseQuery) (*models.ExpenseView, error)
	listTagsFn     func(cqrs.ListTagsQuery) ([]models.Tag, error)
	dashboardFn    func(cqrs.DashboardQuery) (*models.DashboardView, error)
}

func (m *mockEntryQuerier) ListExpenses(_ context.Context, q cqrs.ListEntriesQuery) ([]models.ExpenseView, error) {
	if m.listExpensesFn != nil {
		return m.listExpensesFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockEntryQuerier) ListIncome(_ context.Context, q cqrs.ListEntriesQuery) ([]models.IncomeView, error) {
	if m.listIncomeFn != nil {
		return m.listIncomeFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockEntryQuerier) GetExpense(_ context.Context, q cqrs.GetExpenseQuery) (*models.ExpenseView, error) {
	if m.getExpenseFn != nil {
		return m.getExpenseFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockEntryQuerier) ListTags(_ context.Context, q cqrs.ListTagsQuery) ([]models.Tag, error) {
	if m.listTagsFn != nil {
		return m.listTagsFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockEntryQuerier) Dashboard(_ context.Context, q cqrs.DashboardQuery) (*models.DashboardView, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetUserID(c, userID)
		c.Next()
	}
}

func newEntryTestRouter(cmds EntryCommander, qrys EntryQuerier, authUserID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(authUserID))
	h := NewEntryHandler(cmds, qrys)
	v1 := r.Group("/v1")
	v1.POST("/expenses", h.CreateExpense)
	v1.GET("/expenses", h.ListExpenses)
	v1.GET("/expenses/:expenseId", h.GetExpense)
	v1.PUT("/expenses/:expenseId", h.EditExpense)
	v1.POST("/income", h.CreateIncome)
	v1.GET("/income", h.ListIncome)
	v1.GET("/tags", h.ListTags)
	v1.GET("/dashboard", h.Dashboard)
	return r
}

func doJSON(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, target, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, target, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doForm(router http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeValidation(t *testing.T, w *httptest.ResponseRecorder) middleware.BadRequestErrorResponse {
	t.Helper()
	var resp middleware.BadRequestErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode validation response: %v", err)
	}
	return resp
}

func messageFor(resp middleware.BadRequestErrorResponse, field string) string {
	for _, d := range resp.Details {
		if d.Field == field {
			return d.Message
		}
	}
	return ""
}

// ---- test data ----

var testExpense = &models.Expense{
	ID: "exp-001", UserID: "usr-001", Title: "Lunch",
	Amount: decimal.NewFromInt(30), Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	TagIDs: []string{"tag-001"},
}

func validExpenseBody() map[string]any {
	return map[string]any{
		"title":     "Lunch",
		"amount":    "30",
		"date":      "2024-03-01",
		"accountId": "acc-001",
		"tags":      []string{"food"},
	}
}

// ---- tests ----

func TestCreateExpense(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]any
		createFn       func(cqrs.CreateExpenseCommand) (*models.Expense, error)
		expectedStatus int
		expectedField  string
		expectedMsg    string
	}{
		{
			name:           "success - create expense",
			body:           validExpenseBody(),
			createFn:       func(cqrs.CreateExpenseCommand) (*models.Expense, error) { return testExpense, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - blank title",
			body:           map[string]any{"title": "   ", "amount": "30", "date": "2024-03-01", "accountId": "acc-001"},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "title",
			expectedMsg:    "Title is required",
		},
		{
			name:           "bad request - negative amount",
			body:           map[string]any{"title": "Lunch", "amount": "-5", "date": "2024-03-01", "accountId": "acc-001"},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "amount",
			expectedMsg:    "Amount should be greater than 0",
		},
		{
			name:           "bad request - sub-cent amount",
			body:           map[string]any{"title": "Lunch", "amount": "0.005", "date": "2024-03-01", "accountId": "acc-001"},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "amount",
			expectedMsg:    "Amount can have at most 2 decimal places",
		},
		{
			name:           "bad request - invalid date",
			body:           map[string]any{"title": "Lunch", "amount": 30, "date": "yesterday-ish", "accountId": "acc-001"},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "date",
			expectedMsg:    "Invalid date",
		},
		{
			name:           "bad request - missing account",
			body:           map[string]any{"title": "Lunch", "amount": 30, "date": "2024-03-01"},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "accountId",
			expectedMsg:    "Account is required",
		},
		{
			name:           "bad request - blank tag in list",
			body:           map[string]any{"title": "Lunch", "amount": 30, "date": "2024-03-01", "accountId": "acc-001", "tags": []string{"food", " "}},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "tags",
			expectedMsg:    "Tag cannot be empty",
		},
		{
			name: "not found - account owned by someone else",
			body: validExpenseBody(),
			createFn: func(cqrs.CreateExpenseCommand) (*models.Expense, error) {
				return nil, fmt.Errorf("account acc-001: %w", cqrs.ErrAccountNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "server error - transaction failed",
			body:           validExpenseBody(),
			createFn:       func(cqrs.CreateExpenseCommand) (*models.Expense, error) { return nil, fmt.Errorf("db down") },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			cmds := &mockEntryCommander{createExpenseFn: func(cmd cqrs.CreateExpenseCommand) (*models.Expense, error) {
				called = true
				if cmd.UserID != "usr-001" {
					t.Errorf("expected user usr-001, got %s", cmd.UserID)
				}
				return tt.createFn(cmd)
			}}
			router := newEntryTestRouter(cmds, &mockEntryQuerier{}, "usr-001")
			w := doJSON(router, http.MethodPost, "/v1/expenses", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedField != "" {
				if called {
					t.Error("validation failure must not reach the command service")
				}
				if msg := messageFor(decodeValidation(t, w), tt.expectedField); msg != tt.expectedMsg {
					t.Errorf("expected %s message %q, got %q", tt.expectedField, tt.expectedMsg, msg)
				}
			}
		})
	}
}

func TestCreateExpense_TagForms(t *testing.T) {
	tests := []struct {
		name     string
		send     func(http.Handler) *httptest.ResponseRecorder
		expected []string
	}{
		{
			name: "json list is trimmed and deduplicated",
			send: func(r http.Handler) *httptest.ResponseRecorder {
				body := validExpenseBody()
				body["tags"] = []string{" food ", "travel", "food"}
				return doJSON(r, http.MethodPost, "/v1/expenses", body)
			},
			expected: []string{"food", "travel"},
		},
		{
			name: "json string is comma split",
			send: func(r http.Handler) *httptest.ResponseRecorder {
				body := validExpenseBody()
				body["tags"] = "food, ,travel,"
				return doJSON(r, http.MethodPost, "/v1/expenses", body)
			},
			expected: []string{"food", "travel"},
		},
		{
			name: "single form value is comma split",
			send: func(r http.Handler) *httptest.ResponseRecorder {
				return doForm(r, http.MethodPost, "/v1/expenses", url.Values{
					"title": {"Lunch"}, "amount": {"12.50"}, "date": {"2024-03-01T12:30"},
					"accountId": {"acc-001"}, "tags": {"food,work"},
				})
			},
			expected: []string{"food", "work"},
		},
		{
			name: "repeated form values are a list",
			send: func(r http.Handler) *httptest.ResponseRecorder {
				return doForm(r, http.MethodPost, "/v1/expenses", url.Values{
					"title": {"Lunch"}, "amount": {"12.50"}, "date": {"2024-03-01"},
					"accountId": {"acc-001"}, "tags": {"food", "a,b"},
				})
			},
			expected: []string{"food", "a,b"},
		},
		{
			name: "missing tags is an empty set",
			send: func(r http.Handler) *httptest.ResponseRecorder {
				body := validExpenseBody()
				delete(body, "tags")
				return doJSON(r, http.MethodPost, "/v1/expenses", body)
			},
			expected: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got cqrs.CreateExpenseCommand
			cmds := &mockEntryCommander{createExpenseFn: func(cmd cqrs.CreateExpenseCommand) (*models.Expense, error) {
				got = cmd
				return testExpense, nil
			}}
			w := tt.send(newEntryTestRouter(cmds, &mockEntryQuerier{}, "usr-001"))
			if w.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
			}
			if fmt.Sprint(got.Tags) != fmt.Sprint(tt.expected) {
				t.Errorf("expected tags %v, got %v", tt.expected, got.Tags)
			}
		})
	}
}

func TestCreateExpense_FormAmountAndDate(t *testing.T) {
	var got cqrs.CreateExpenseCommand
	cmds := &mockEntryCommander{createExpenseFn: func(cmd cqrs.CreateExpenseCommand) (*models.Expense, error) {
		got = cmd
		return testExpense, nil
	}}
	w := doForm(newEntryTestRouter(cmds, &mockEntryQuerier{}, "usr-001"), http.MethodPost, "/v1/expenses", url.Values{
		"title": {"  Lunch "}, "amount": {"12.50"}, "date": {"2024-03-01T12:30"}, "accountId": {"acc-001"},
		"description": {"  "},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got.Title != "Lunch" || got.Description != "" {
		t.Errorf("expected trimmed fields, got %+v", got.EntryFields)
	}
	if !got.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected amount 12.5, got %s", got.Amount)
	}
	if !got.Date.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %s", got.Date)
	}
}

func TestEditExpense(t *testing.T) {
	tests := []struct {
		name           string
		editFn         func(cqrs.EditExpenseCommand) (*models.Expense, error)
		expectedStatus int
	}{
		{
			name: "success - edit expense",
			editFn: func(cmd cqrs.EditExpenseCommand) (*models.Expense, error) {
				if cmd.ExpenseID != "exp-001" {
					return nil, fmt.Errorf("unexpected id %s", cmd.ExpenseID)
				}
				return testExpense, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "redirect - expense not found",
			editFn: func(cqrs.EditExpenseCommand) (*models.Expense, error) {
				return nil, cqrs.ErrExpenseNotFound
			},
			expectedStatus: http.StatusSeeOther,
		},
		{
			name: "not found - target account",
			editFn: func(cqrs.EditExpenseCommand) (*models.Expense, error) {
				return nil, cqrs.ErrAccountNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newEntryTestRouter(&mockEntryCommander{editExpenseFn: tt.editFn}, &mockEntryQuerier{}, "usr-001")
			w := doJSON(router, http.MethodPut, "/v1/expenses/exp-001", validExpenseBody())
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus == http.StatusSeeOther && w.Header().Get("Location") != ExpenseListPath {
				t.Errorf("expected redirect to %s, got %q", ExpenseListPath, w.Header().Get("Location"))
			}
		})
	}
}

func TestGetExpense(t *testing.T) {
	tests := []struct {
		name           string
		getFn          func(cqrs.GetExpenseQuery) (*models.ExpenseView, error)
		expectedStatus int
	}{
		{
			name: "success - get expense",
			getFn: func(q cqrs.GetExpenseQuery) (*models.ExpenseView, error) {
				return &models.ExpenseView{ID: q.ExpenseID, Title: "Lunch", Tags: []models.Tag{}}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "redirect - missing expense",
			getFn:          func(cqrs.GetExpenseQuery) (*models.ExpenseView, error) { return nil, cqrs.ErrExpenseNotFound },
			expectedStatus: http.StatusSeeOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newEntryTestRouter(&mockEntryCommander{}, &mockEntryQuerier{getExpenseFn: tt.getFn}, "usr-001")
			w := doJSON(router, http.MethodGet, "/v1/expenses/exp-001", nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestListExpenses_Filters(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedFilter cqrs.EntryFilter
	}{
		{"no filters", "", http.StatusOK, cqrs.EntryFilter{Period: cqrs.PeriodAll}},
		{"account and period", "?accountId=acc-001&period=last-7-days", http.StatusOK,
			cqrs.EntryFilter{AccountID: "acc-001", Period: cqrs.PeriodLast7Days}},
		{"unknown period", "?period=fortnight", http.StatusBadRequest, cqrs.EntryFilter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got cqrs.ListEntriesQuery
			qrys := &mockEntryQuerier{listExpensesFn: func(q cqrs.ListEntriesQuery) ([]models.ExpenseView, error) {
				got = q
				return []models.ExpenseView{}, nil
			}}
			w := doJSON(newEntryTestRouter(&mockEntryCommander{}, qrys, "usr-001"), http.MethodGet, "/v1/expenses"+tt.query, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK && got.Filter != tt.expectedFilter {
				t.Errorf("expected filter %+v, got %+v", tt.expectedFilter, got.Filter)
			}
			if tt.expectedStatus == http.StatusBadRequest && messageFor(decodeValidation(t, w), "period") == "" {
				t.Error("expected a period validation error")
			}
		})
	}
}

func TestCreateIncome(t *testing.T) {
	body := validExpenseBody()
	delete(body, "tags")

	var got cqrs.CreateIncomeCommand
	cmds := &mockEntryCommander{createIncomeFn: func(cmd cqrs.CreateIncomeCommand) (*models.Income, error) {
		got = cmd
		return &models.Income{ID: "inc-001", Amount: cmd.Amount}, nil
	}}
	w := doJSON(newEntryTestRouter(cmds, &mockEntryQuerier{}, "usr-001"), http.MethodPost, "/v1/income", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got.AccountID != "acc-001" || !got.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("unexpected command %+v", got)
	}
}

func TestListIncomeAndTags(t *testing.T) {
	qrys := &mockEntryQuerier{
		listIncomeFn: func(cqrs.ListEntriesQuery) ([]models.IncomeView, error) {
			return []models.IncomeView{{ID: "inc-001"}}, nil
		},
		listTagsFn: func(q cqrs.ListTagsQuery) ([]models.Tag, error) {
			return []models.Tag{{ID: "tag-001", Name: "food"}}, nil
		},
	}
	router := newEntryTestRouter(&mockEntryCommander{}, qrys, "usr-001")

	w := doJSON(router, http.MethodGet, "/v1/income?period=this-month", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var income ListIncomeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &income); err != nil || len(income.Income) != 1 {
		t.Errorf("unexpected income body %s", w.Body.String())
	}

	w = doJSON(router, http.MethodGet, "/v1/tags", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"food"`) {
		t.Errorf("unexpected tags response %d %s", w.Code, w.Body.String())
	}
}

func TestDashboard(t *testing.T) {
	var got cqrs.DashboardQuery
	qrys := &mockEntryQuerier{dashboardFn: func(q cqrs.DashboardQuery) (*models.DashboardView, error) {
		got = q
		return &models.DashboardView{Expenses: []models.DailyTotal{}, Income: []models.DailyTotal{}}, nil
	}}
	router := newEntryTestRouter(&mockEntryCommander{}, qrys, "usr-001")

	w := doJSON(router, http.MethodGet, "/v1/dashboard?expensePeriod=today&incomeAccountId=acc-002", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.Expense.Period != cqrs.PeriodToday || got.Income.AccountID != "acc-002" || got.Income.Period != cqrs.PeriodAll {
		t.Errorf("unexpected dashboard query %+v", got)
	}

	w = doJSON(router, http.MethodGet, "/v1/dashboard?incomePeriod=later", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
