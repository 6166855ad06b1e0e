package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/middleware"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
)

// ExpenseListPath is where a missing expense sends the client back to.
const ExpenseListPath = "/v1/expenses"

// EntryCommander defines the write-side operations used by EntryHandler.
type EntryCommander interface {
	CreateIncome(context.Context, cqrs.CreateIncomeCommand) (*models.Income, error)
	CreateExpense(context.Context, cqrs.CreateExpenseCommand) (*models.Expense, error)
	EditExpense(context.Context, cqrs.EditExpenseCommand) (*models.Expense, error)
}

// EntryQuerier defines the read-side operations used by EntryHandler.
type EntryQuerier interface {
	ListExpenses(context.Context, cqrs.ListEntriesQuery) ([]models.ExpenseView, error)
	ListIncome(context.Context, cqrs.ListEntriesQuery) ([]models.IncomeView, error)
	GetExpense(context.Context, cqrs.GetExpenseQuery) (*models.ExpenseView, error)
	ListTags(context.Context, cqrs.ListTagsQuery) ([]models.Tag, error)
	Dashboard(context.Context, cqrs.DashboardQuery) (*models.DashboardView, error)
}

// EntryHandler handles income, expense, tag and dashboard requests.
type EntryHandler struct {
	commands EntryCommander
	queries  EntryQuerier
}

type ListExpensesResponse struct {
	Expenses []models.ExpenseView `json:"expenses"`
}

type ListIncomeResponse struct {
	Income []models.IncomeView `json:"income"`
}

type ListTagsResponse struct {
	Tags []models.Tag `json:"tags"`
}

func NewEntryHandler(commands EntryCommander, queries EntryQuerier) *EntryHandler {
	return &EntryHandler{commands: commands, queries: queries}
}

func (h *EntryHandler) CreateIncome(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req EntryRequest
	if !bindEntry(c, &req, nil, &req) {
		return
	}

	income, err := h.commands.CreateIncome(c.Request.Context(), cqrs.CreateIncomeCommand{
		UserID:      userID,
		EntryFields: req.fields(),
	})
	if err != nil {
		respondWithEntryError(c, err, "Failed to create income")
		return
	}

	c.JSON(http.StatusCreated, income)
}

func (h *EntryHandler) CreateExpense(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ExpenseRequest
	if !bindEntry(c, &req.EntryRequest, &req.Tags, &req) {
		return
	}
	tags, ok := tagNames(c, req.Tags)
	if !ok {
		return
	}

	expense, err := h.commands.CreateExpense(c.Request.Context(), cqrs.CreateExpenseCommand{
		UserID:      userID,
		EntryFields: req.fields(),
		Tags:        tags,
	})
	if err != nil {
		respondWithEntryError(c, err, "Failed to create expense")
		return
	}

	c.JSON(http.StatusCreated, expense)
}

func (h *EntryHandler) EditExpense(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ExpenseRequest
	if !bindEntry(c, &req.EntryRequest, &req.Tags, &req) {
		return
	}
	tags, ok := tagNames(c, req.Tags)
	if !ok {
		return
	}

	expense, err := h.commands.EditExpense(c.Request.Context(), cqrs.EditExpenseCommand{
		UserID:      userID,
		ExpenseID:   c.Param("expenseId"),
		EntryFields: req.fields(),
		Tags:        tags,
	})
	if err != nil {
		respondWithEntryError(c, err, "Failed to update expense")
		return
	}

	c.JSON(http.StatusOK, expense)
}

func (h *EntryHandler) GetExpense(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetExpense(c.Request.Context(), cqrs.GetExpenseQuery{
		ExpenseID: c.Param("expenseId"),
		UserID:    userID,
	})
	if err != nil {
		respondWithEntryError(c, err, "Failed to get expense")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *EntryHandler) ListExpenses(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	filter, ok := entryFilter(c, "accountId", "period")
	if !ok {
		return
	}

	views, err := h.queries.ListExpenses(c.Request.Context(), cqrs.ListEntriesQuery{UserID: userID, Filter: filter})
	if err != nil {
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list expenses")
		return
	}

	c.JSON(http.StatusOK, ListExpensesResponse{Expenses: views})
}

func (h *EntryHandler) ListIncome(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	filter, ok := entryFilter(c, "accountId", "period")
	if !ok {
		return
	}

	views, err := h.queries.ListIncome(c.Request.Context(), cqrs.ListEntriesQuery{UserID: userID, Filter: filter})
	if err != nil {
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list income")
		return
	}

	c.JSON(http.StatusOK, ListIncomeResponse{Income: views})
}

func (h *EntryHandler) ListTags(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	tags, err := h.queries.ListTags(c.Request.Context(), cqrs.ListTagsQuery{UserID: userID})
	if err != nil {
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list tags")
		return
	}

	c.JSON(http.StatusOK, ListTagsResponse{Tags: tags})
}

// Dashboard takes independent filters for each chart:
// expenseAccountId, expensePeriod, incomeAccountId and incomePeriod.
func (h *EntryHandler) Dashboard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	expenseFilter, ok := entryFilter(c, "expenseAccountId", "expensePeriod")
	if !ok {
		return
	}
	incomeFilter, ok := entryFilter(c, "incomeAccountId", "incomePeriod")
	if !ok {
		return
	}

	view, err := h.queries.Dashboard(c.Request.Context(), cqrs.DashboardQuery{
		UserID:  userID,
		Expense: expenseFilter,
		Income:  incomeFilter,
	})
	if err != nil {
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	c.JSON(http.StatusOK, view)
}

// respondWithEntryError maps ledger errors onto HTTP. A missing expense sends
// the client back to the listing.
func respondWithEntryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, cqrs.ErrExpenseNotFound):
		c.Redirect(http.StatusSeeOther, ExpenseListPath)
	case errors.Is(err, cqrs.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, cqrs.ErrInvalidAmount):
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   "amount",
			Message: "Invalid amount",
			Type:    "amount",
		}})
	default:
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
