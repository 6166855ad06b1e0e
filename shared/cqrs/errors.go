package cqrs

import "errors"

// Errors shared by the command and query sides, matched with errors.Is.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrInvalidAmount   = errors.New("amount must be non-negative with at most two decimal places")
)
