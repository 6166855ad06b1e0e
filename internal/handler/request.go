package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"

	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/middleware"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/utils"
)

// numberString holds a decimal as submitted. JSON clients may send either a
// number or a string; form clients always send a string.
type numberString string

func (n *numberString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = numberString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return errors.New("amount must be a number")
	}
	*n = numberString(num.String())
	return nil
}

func (n numberString) decimal() decimal.Decimal {
	d, _ := decimal.NewFromString(strings.TrimSpace(string(n)))
	return d
}

// EntryRequest is the payload shared by the income and expense forms.
type EntryRequest struct {
	Title       string       `json:"title" form:"title" validate:"required"`
	Amount      numberString `json:"amount" form:"amount" validate:"required,amount,cents"`
	Description string       `json:"description" form:"description"`
	Date        string       `json:"date" form:"date" validate:"required,date"`
	AccountID   string       `json:"accountId" form:"accountId" validate:"required"`
}

func (r *EntryRequest) trim() {
	r.Title = strings.TrimSpace(r.Title)
	r.Amount = numberString(strings.TrimSpace(string(r.Amount)))
	r.Description = strings.TrimSpace(r.Description)
	r.Date = strings.TrimSpace(r.Date)
	r.AccountID = strings.TrimSpace(r.AccountID)
}

// fields must only be called after validation passed.
func (r *EntryRequest) fields() cqrs.EntryFields {
	date, _ := utils.ParseDate(r.Date)
	return cqrs.EntryFields{
		Title:       r.Title,
		Amount:      r.Amount.decimal(),
		Description: r.Description,
		Date:        date,
		AccountID:   r.AccountID,
	}
}

type ExpenseRequest struct {
	EntryRequest
	Tags cqrs.TagInput `json:"tags" form:"-"`
}

// bindEntry binds a JSON, urlencoded or multipart payload, trims it and
// validates it. It writes the 400 response itself and reports false when the
// request must not proceed.
func bindEntry(c *gin.Context, req *EntryRequest, tags *cqrs.TagInput, target any) bool {
	if err := c.ShouldBind(target); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if tags != nil && c.ContentType() != binding.MIMEJSON {
		*tags = cqrs.FormTags(c.PostFormArray("tags"))
	}
	req.trim()
	if validationErrors := middleware.ValidateRequest(target); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

// tagNames resolves the tags field, answering 400 for a blank list entry.
func tagNames(c *gin.Context, tags cqrs.TagInput) ([]string, bool) {
	names, err := tags.Names()
	if err != nil {
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   "tags",
			Message: "Tag cannot be empty",
			Type:    "tags",
		}})
		return nil, false
	}
	return names, true
}

// entryFilter reads accountId and period style query parameters.
func entryFilter(c *gin.Context, accountParam, periodParam string) (cqrs.EntryFilter, bool) {
	period, err := cqrs.ParsePeriod(c.Query(periodParam))
	if err != nil {
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   periodParam,
			Message: "Invalid period",
			Type:    "oneof",
		}})
		return cqrs.EntryFilter{}, false
	}
	return cqrs.EntryFilter{AccountID: c.Query(accountParam), Period: period}, true
}
