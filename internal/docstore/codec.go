package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var errNotObject = errors.New("document body must be a JSON object")

// jsonSnapshot is a document held as its JSON body.
type jsonSnapshot struct {
	id   string
	data []byte
}

func (s jsonSnapshot) ID() string { return s.id }

func (s jsonSnapshot) DataTo(v any) error {
	return json.Unmarshal(s.data, v)
}

func encode(data any) ([]byte, error) {
	var b []byte
	switch d := data.(type) {
	case json.RawMessage:
		b = d
	case []byte:
		b = d
	default:
		var err error
		b, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	return trimmed, nil
}

// normalize maps a Go value onto what it looks like after a JSON round
// trip, so it can be compared with decoded document fields.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fieldEquals(body []byte, field string, want any) (bool, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		// Bodies that are not objects never match a field query.
		return false, nil
	}
	got, ok := doc[field]
	if !ok {
		return false, nil
	}
	return reflect.DeepEqual(got, want), nil
}

// applyArray returns body with values added to (union) or removed from the
// array at field. A missing or non-array field counts as empty.
func applyArray(body []byte, field string, union bool, values []any) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	current, _ := doc[field].([]any)

	norm := make([]any, 0, len(values))
	for _, v := range values {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode array value: %w", err)
		}
		norm = append(norm, n)
	}

	var next []any
	if union {
		next = append([]any{}, current...)
		for _, v := range norm {
			if !containsValue(next, v) {
				next = append(next, v)
			}
		}
	} else {
		next = make([]any, 0, len(current))
		for _, v := range current {
			if !containsValue(norm, v) {
				next = append(next, v)
			}
		}
	}
	doc[field] = next
	return json.Marshal(doc)
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}
