package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Numeric columns are written as text with an explicit ::numeric cast and
// read back via ::text, so amounts round-trip through shopspring/decimal
// without float truncation.

func decimalArg(d decimal.Decimal) string {
	return d.String()
}

func nullableDecimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func scanDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return d, nil
}

func scanNullableDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := scanDecimal(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
