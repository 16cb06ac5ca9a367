package shipping

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ParamSourceCode = "sourceCode"
	ParamItems      = "items"
)

// Provider supplies the shipment requested by the caller; nil means nothing to ship.
type Provider interface {
	Shipment() (*Shipment, error)
}

// ParamSource exposes decoded request parameters.
type ParamSource interface {
	Param(name string, def any) any
}

// RequestProvider builds a shipment from request parameters.
type RequestProvider struct {
	params ParamSource
}

var _ Provider = (*RequestProvider)(nil)

func NewRequestProvider(params ParamSource) *RequestProvider {
	return &RequestProvider{params: params}
}

func (p *RequestProvider) Shipment() (*Shipment, error) {
	sourceCode, err := decodeSourceCode(p.params.Param(ParamSourceCode, nil))
	if err != nil {
		return nil, err
	}
	items, err := DecodeLineItems(p.params.Param(ParamItems, []any{}))
	if err != nil {
		return nil, err
	}
	return Aggregate(sourceCode, items), nil
}

func decodeSourceCode(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return "", &InputError{Field: ParamSourceCode, Reason: "is required"}
		}
		return "", &InputError{Field: ParamSourceCode, Reason: fmt.Sprintf("must be a string, got %T", v)}
	}
	// compared verbatim with each deduction's sourceCode
	if strings.TrimSpace(s) == "" {
		return "", &InputError{Field: ParamSourceCode, Reason: "is required"}
	}
	return s, nil
}

// DecodeLineItems converts a generically decoded items list into line items.
func DecodeLineItems(v any) ([]LineItem, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, &InputError{Field: ParamItems, Reason: fmt.Sprintf("must be a list, got %T", v)}
	}

	out := make([]LineItem, 0, len(raw))
	for i, r := range raw {
		field := fmt.Sprintf("%s[%d]", ParamItems, i)
		obj, ok := r.(map[string]any)
		if !ok {
			return nil, &InputError{Field: field, Reason: "must be an object"}
		}

		sources, err := decodeSources(field, obj["sources"])
		if err != nil {
			return nil, err
		}
		item := LineItem{Sources: sources}
		if len(sources) > 0 {
			id, err := decodeOrderItemID(obj["orderItemId"])
			if err != nil {
				return nil, &InputError{Field: field + ".orderItemId", Reason: err.Error()}
			}
			item.OrderItemID = id
		}
		out = append(out, item)
	}
	return out, nil
}

func decodeSources(field string, v any) ([]SourceDeduction, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, &InputError{Field: field + ".sources", Reason: "must be a list"}
	}

	out := make([]SourceDeduction, 0, len(raw))
	for j, r := range raw {
		srcField := fmt.Sprintf("%s.sources[%d]", field, j)
		obj, ok := r.(map[string]any)
		if !ok {
			return nil, &InputError{Field: srcField, Reason: "must be an object"}
		}
		code, ok := obj["sourceCode"].(string)
		if !ok {
			return nil, &InputError{Field: srcField + ".sourceCode", Reason: "must be a string"}
		}
		qty, err := decodeQuantity(obj["qtyToDeduct"])
		if err != nil {
			return nil, &InputError{Field: srcField + ".qtyToDeduct", Reason: err.Error()}
		}
		out = append(out, SourceDeduction{SourceCode: code, QtyToDeduct: qty})
	}
	return out, nil
}

func decodeOrderItemID(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return parseIntegral(n.String())
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be an integer, got %v", n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return parseIntegral(strings.TrimSpace(n))
	case nil:
		return 0, fmt.Errorf("is required")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// parseIntegral accepts "7", "7.0" and "7e0" but not "7.5".
func parseIntegral(s string) (int64, error) {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("must be an integer, got %q", s)
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("must be an integer, got %q", s)
	}
	return d.IntPart(), nil
}

func decodeQuantity(v any) (decimal.Decimal, error) {
	switch q := v.(type) {
	case json.Number:
		return decimal.NewFromString(q.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(q))
	case float64:
		return decimal.NewFromFloat(q), nil
	case int64:
		return decimal.NewFromInt(q), nil
	case int:
		return decimal.NewFromInt(int64(q)), nil
	case nil:
		return decimal.Decimal{}, fmt.Errorf("is required")
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported type %T", v)
	}
}
