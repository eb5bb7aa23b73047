package validate

import (
	"time"

	"github.com/listenflow/listenflow/pkg/listenflow/schema"
)

// Typed field extraction for untyped records. JSON decoding yields
// float64 for every number, so the numeric helpers coerce from int,
// int64, and integral float64. An explicit null counts as absent.

func requireMap(m map[string]any, key, path string) (map[string]any, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, schema.NewFieldError(path, "required field is missing")
	}
	nested, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewFieldError(path, "expected an object, got %T", v)
	}
	return nested, nil
}

func optionalMap(m map[string]any, key, path string) (map[string]any, bool, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	nested, ok := v.(map[string]any)
	if !ok {
		return nil, false, schema.NewFieldError(path, "expected an object, got %T", v)
	}
	return nested, true, nil
}

func requireString(m map[string]any, key, path string) (string, *schema.FieldError) {
	s, ok, ferr := optionalString(m, key, path)
	if ferr != nil {
		return "", ferr
	}
	if !ok {
		return "", schema.NewFieldError(path, "required field is missing")
	}
	return s, nil
}

func optionalString(m map[string]any, key, path string) (string, bool, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, schema.NewFieldError(path, "expected a string, got %T", v)
	}
	return s, true, nil
}

func optionalStringPtr(m map[string]any, key, path string) (*string, *schema.FieldError) {
	s, ok, ferr := optionalString(m, key, path)
	if ferr != nil || !ok {
		return nil, ferr
	}
	return &s, nil
}

func optionalBool(m map[string]any, key, path string) (bool, bool, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, schema.NewFieldError(path, "expected a boolean, got %T", v)
	}
	return b, true, nil
}

func coerceInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func requireInt64(m map[string]any, key, path string) (int64, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, schema.NewFieldError(path, "required field is missing")
	}
	n, ok := coerceInt64(v)
	if !ok {
		return 0, schema.NewFieldError(path, "expected an integer, got %v", v)
	}
	return n, nil
}

func optionalInt64Ptr(m map[string]any, key, path string) (*int64, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := coerceInt64(v)
	if !ok {
		return nil, schema.NewFieldError(path, "expected an integer, got %v", v)
	}
	return &n, nil
}

func optionalIntPtr(m map[string]any, key, path string) (*int, *schema.FieldError) {
	p, ferr := optionalInt64Ptr(m, key, path)
	if ferr != nil || p == nil {
		return nil, ferr
	}
	n := int(*p)
	return &n, nil
}

func optionalFloatPtr(m map[string]any, key, path string) (*float64, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case float64:
		return &n, nil
	case int:
		f := float64(n)
		return &f, nil
	case int64:
		f := float64(n)
		return &f, nil
	}
	return nil, schema.NewFieldError(path, "expected a number, got %T", v)
}

func optionalGenres(m map[string]any, key, path string) ([]schema.Genre, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}

	var tokens []string
	switch list := v.(type) {
	case []string:
		tokens = list
	case []any:
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, schema.NewFieldError(path, "expected a list of strings, got element %T", item)
			}
			tokens = append(tokens, s)
		}
	default:
		return nil, schema.NewFieldError(path, "expected a list of strings, got %T", v)
	}

	out := make([]schema.Genre, 0, len(tokens))
	for _, tok := range tokens {
		g, err := schema.ParseGenre(tok)
		if err != nil {
			return nil, schema.NewFieldError(path, "%v", err)
		}
		out = append(out, g)
	}
	return out, nil
}

// timestampLayouts are tried in order. A bare "Z" suffix and a missing
// zone both resolve to UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func requireTime(m map[string]any, key, path string) (time.Time, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return time.Time{}, schema.NewFieldError(path, "required field is missing")
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, ok := parseTimestamp(t)
		if !ok {
			return time.Time{}, schema.NewFieldError(path, "invalid ISO-8601 timestamp %q", t)
		}
		return parsed, nil
	}
	return time.Time{}, schema.NewFieldError(path, "expected a timestamp, got %T", v)
}

func optionalTimePtr(m map[string]any, key, path string) (*time.Time, *schema.FieldError) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	t, ferr := requireTime(m, key, path)
	if ferr != nil {
		return nil, ferr
	}
	return &t, nil
}
