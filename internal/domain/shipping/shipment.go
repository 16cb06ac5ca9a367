package shipping

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("shipping: invalid input")

// InputError reports the offending field of a malformed shipment payload.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("shipping: invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// SourceDeduction is the quantity to deduct from one source for an order line.
type SourceDeduction struct {
	SourceCode  string
	QtyToDeduct decimal.Decimal
}

type LineItem struct {
	OrderItemID int64
	Sources     []SourceDeduction
}

// Shipment holds the quantity to ship per order item from a single source.
type Shipment struct {
	SourceCode string
	Items      map[int64]float64
}

// Aggregate sums the deductions of sourceCode per order item.
// It returns nil when no line item has a deduction for that source.
func Aggregate(sourceCode string, items []LineItem) *Shipment {
	totals := make(map[int64]decimal.Decimal)
	for _, item := range items {
		if len(item.Sources) == 0 {
			continue
		}
		for _, src := range item.Sources {
			if src.SourceCode != sourceCode {
				continue
			}
			totals[item.OrderItemID] = totals[item.OrderItemID].Add(src.QtyToDeduct)
		}
	}
	if len(totals) == 0 {
		return nil
	}

	out := &Shipment{SourceCode: sourceCode, Items: make(map[int64]float64, len(totals))}
	for id, qty := range totals {
		out.Items[id] = qty.InexactFloat64()
	}
	return out
}
