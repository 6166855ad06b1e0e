package middleware

import "testing"

type entryRequest struct {
	Title     string `json:"title" validate:"required"`
	Amount    string `json:"amount" validate:"required,amount,cents"`
	Date      string `json:"date" validate:"required,date"`
	AccountID string `json:"accountId" validate:"required"`
}

func TestValidateRequest(t *testing.T) {
	valid := entryRequest{Title: "Lunch", Amount: "12.50", Date: "2026-03-15", AccountID: "acc-1"}
	if errs := ValidateRequest(valid); errs != nil {
		t.Fatalf("unexpected validation errors: %+v", errs)
	}

	zero := valid
	zero.Amount = "0"
	if errs := ValidateRequest(zero); errs != nil {
		t.Errorf("zero amount should be accepted: %+v", errs)
	}

	for _, amount := range []string{"0.005", "10.001"} {
		subCent := valid
		subCent.Amount = amount
		errs := ValidateRequest(subCent)
		if len(errs) != 1 || errs[0].Field != "amount" || errs[0].Message != "Amount can have at most 2 decimal places" {
			t.Errorf("amount %s: unexpected validation errors: %+v", amount, errs)
		}
	}

	trailing := valid
	trailing.Amount = "12.500"
	if errs := ValidateRequest(trailing); errs != nil {
		t.Errorf("trailing zeros should be accepted: %+v", errs)
	}

	bad := entryRequest{Amount: "-5", Date: "yesterday-ish"}
	errs := ValidateRequest(bad)
	got := map[string]string{}
	for _, e := range errs {
		got[e.Field] = e.Message
	}
	want := map[string]string{
		"title":     "Title is required",
		"amount":    "Amount should be greater than 0",
		"date":      "Invalid date",
		"accountId": "Account is required",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %s message = %q, want %q", field, got[field], msg)
		}
	}
}
