package httppresentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	domainShipping "github.com/Zhima-Mochi/minishop-inventory/internal/domain/shipping"
)

// httpParams resolves request parameters from a JSON object body first and
// the query string second. Numbers keep their literal form (json.Number).
type httpParams struct {
	body  map[string]any
	query url.Values
}

var _ domainShipping.ParamSource = (*httpParams)(nil)

func newHTTPParams(r *http.Request) (*httpParams, error) {
	p := &httpParams{query: r.URL.Query()}
	if r.Body == nil {
		return p, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return p, nil
	}
	body, err := decodeObject(raw)
	if err != nil {
		return nil, &domainShipping.InputError{Field: "body", Reason: "must be a JSON object"}
	}
	p.body = body
	return p, nil
}

func (p *httpParams) Param(name string, def any) any {
	if v, ok := p.body[name]; ok {
		return v
	}
	if !p.query.Has(name) {
		return def
	}
	value := p.query.Get(name)
	// structured values may be passed JSON-encoded in the query string
	if trimmed := strings.TrimSpace(value); strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var decoded any
		if err := unmarshalNumber([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return value
}

func decodeObject(raw []byte) (map[string]any, error) {
	var body map[string]any
	if err := unmarshalNumber(raw, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("null body")
	}
	return body, nil
}

func unmarshalNumber(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
