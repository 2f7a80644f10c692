package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date form accepted for date operands.
const DateLayout = "2006-01-02"

// ParseOperand converts a filter operand to the Go value of the column's data
// type: string, decimal.Decimal, time.Time or bool.
func ParseOperand(dt DataType, s Scalar) (any, error) {
	raw := strings.TrimSpace(string(s))
	switch dt {
	case DataTypeText:
		return string(s), nil
	case DataTypeNumber:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidFilter, raw)
		}
		return d, nil
	case DataTypeDate:
		return ParseDate(raw)
	case DataTypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidFilter, raw)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidFilter, dt)
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns the UTC time.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrInvalidFilter, raw)
	}
	return t.UTC(), nil
}

// ValidateOperands parses every operand the descriptor's mode uses.
func (d FilterDescriptor) ValidateOperands() error {
	check := func(name string, s *Scalar) error {
		if s == nil {
			return nil
		}
		if _, err := ParseOperand(d.DataType, *s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	if d.IsRange() {
		if err := check("from", d.From); err != nil {
			return err
		}
		return check("to", d.To)
	}
	return check("value", d.Value)
}
