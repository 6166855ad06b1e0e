package repository

import (
	"strconv"
	"strings"

	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
)

// conditions accumulates WHERE clauses with positional parameters numbered in
// the order they are added.
type conditions struct {
	clauses []string
	args    []any
}

// add appends clause, replacing its single "?" with the next parameter.
func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(c.args)), 1))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// entryConditions scopes an entry table (aliased) to a user and a filter range.
func entryConditions(alias, userID, accountID string, r cqrs.DateRange) *conditions {
	c := &conditions{}
	c.add(alias+".user_id = ?", userID)
	if accountID != "" {
		c.add(alias+".account_id = ?", accountID)
	}
	if r.From != nil {
		c.add(alias+".date >= ?", r.From.UTC())
	}
	if r.To != nil {
		c.add(alias+".date < ?", r.To.UTC())
	}
	return c
}
