package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places an amount may carry. Money
// columns hold the amount shifted by this scale as an integer.
const MoneyScale = 2

// HasMoneyScale reports whether d fits the money columns without rounding.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

// MinorUnits converts an amount into the integer a money column stores.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(MoneyScale).Round(0).IntPart()
}

// Money returns a scanner that reads a money column, or a SUM over one,
// into dst.
func Money(dst *decimal.Decimal) sql.Scanner {
	return moneyScanner{dst: dst}
}

type moneyScanner struct {
	dst *decimal.Decimal
}

func (m moneyScanner) Scan(src any) error {
	var units decimal.Decimal
	switch v := src.(type) {
	case nil:
		units = decimal.Zero
	case int64:
		units = decimal.NewFromInt(v)
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("invalid money value %q: %w", v, err)
		}
		units = d
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid money value %q: %w", v, err)
		}
		units = d
	default:
		return fmt.Errorf("unsupported money value of type %T", src)
	}
	*m.dst = units.Shift(-MoneyScale)
	return nil
}
