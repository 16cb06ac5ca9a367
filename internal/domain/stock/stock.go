package stock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidWebsiteCode = errors.New("stock: website code is required")
	ErrInvalidProductID   = errors.New("stock: product id must be greater than zero")
	ErrUnexpectedValue    = errors.New("stock: unexpected value from store")
)

// ProductID is the catalog entity id of a product.
type ProductID int64

// ID identifies an inventory stock.
type ID int64

// Status is the saleable flag of a product under one stock.
type Status int

const (
	StatusOutOfStock Status = 0
	StatusInStock    Status = 1
)

func (s Status) Saleable() bool { return s == StatusInStock }

// StatusMap holds the status of each matched product. Unmatched products are absent.
type StatusMap map[ProductID]Status

// SkuRelation maps product ids to their SKU.
type SkuRelation map[ProductID]string

// IDs returns the product ids of the relation.
func (r SkuRelation) IDs() []ProductID {
	out := make([]ProductID, 0, len(r))
	for id := range r {
		out = append(out, id)
	}
	return out
}

func NormalizeWebsiteCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalidWebsiteCode
	}
	return code, nil
}

func ValidateProductIDs(ids []ProductID) error {
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidProductID, id)
		}
	}
	return nil
}

// toInt64 normalises the scalar types database drivers hand back for integer columns.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case float64:
		return int64(n), nil
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnexpectedValue, v)
	}
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedValue, s)
	}
	return n, nil
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnexpectedValue, v)
	}
}
