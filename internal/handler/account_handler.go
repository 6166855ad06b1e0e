package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/middleware"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.Account, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountView, error)
	ReconcileAccount(context.Context, cqrs.ReconcileAccountQuery) (*models.ReconciliationView, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type CreateAccountRequest struct {
	Name    string       `json:"name" form:"name" validate:"required"`
	Balance numberString `json:"balance" form:"balance" validate:"omitempty,amount,cents"`
}

type ListAccountsResponse struct {
	Accounts []models.AccountView `json:"accounts"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CreateAccountRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Balance = numberString(strings.TrimSpace(string(req.Balance)))
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		UserID:         userID,
		Name:           req.Name,
		OpeningBalance: req.Balance.decimal(),
	})
	if err != nil {
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	views, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{UserID: userID})
	if err != nil {
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: views})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{
		AccountID:        c.Param("accountId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithAccountError(c, err, "Failed to get account")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) ReconcileAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.ReconcileAccount(c.Request.Context(), cqrs.ReconcileAccountQuery{
		AccountID:        c.Param("accountId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithAccountError(c, err, "Failed to reconcile account")
		return
	}

	c.JSON(http.StatusOK, view)
}

func respondWithAccountError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, cqrs.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
		return
	case errors.Is(err, cqrs.ErrInvalidAmount):
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   "balance",
			Message: "Invalid amount",
			Type:    "amount",
		}})
		return
	}
	_ = c.Error(err)
	middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
}
