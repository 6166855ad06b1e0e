package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Shreyansh-Sheth/expense-tracker/shared/middleware"
)

// RouterConfig carries the handlers and settings the HTTP surface needs.
type RouterConfig struct {
	Accounts  *AccountHandler
	Entries   *EntryHandler
	Auth      *AuthHandler
	JWTSecret []byte
	Log       zerolog.Logger
	// Checks are run by /health; any failure reports 503.
	Checks map[string]func(context.Context) error
}

// NewRouter mounts every route under /v1. Everything except /health and
// /v1/auth requires a bearer token.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(cfg.Log))

	router.GET("/health", func(c *gin.Context) {
		status, failed := http.StatusOK, gin.H{}
		for name, check := range cfg.Checks {
			if err := check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				failed[name] = err.Error()
			}
		}
		if status != http.StatusOK {
			c.JSON(status, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(status, gin.H{"status": "ok"})
	})

	auth := router.Group("/v1/auth")
	{
		auth.POST("/register", cfg.Auth.Register)
		auth.POST("/login", cfg.Auth.Login)
		auth.POST("/refresh", cfg.Auth.RefreshToken)
	}

	v1 := router.Group("/v1", middleware.AuthMiddleware(cfg.JWTSecret))
	{
		v1.POST("/accounts", cfg.Accounts.CreateAccount)
		v1.GET("/accounts", cfg.Accounts.ListAccounts)
		v1.GET("/accounts/:accountId", cfg.Accounts.GetAccount)
		v1.GET("/accounts/:accountId/reconciliation", cfg.Accounts.ReconcileAccount)

		v1.GET("/tags", cfg.Entries.ListTags)

		v1.POST("/expenses", cfg.Entries.CreateExpense)
		v1.GET("/expenses", cfg.Entries.ListExpenses)
		v1.GET("/expenses/:expenseId", cfg.Entries.GetExpense)
		v1.PUT("/expenses/:expenseId", cfg.Entries.EditExpense)

		v1.POST("/income", cfg.Entries.CreateIncome)
		v1.GET("/income", cfg.Entries.ListIncome)

		v1.GET("/dashboard", cfg.Entries.Dashboard)
	}

	return router
}
