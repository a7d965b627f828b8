// Package codec maps flat stream work item fields to typed payloads and back.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Fields is the flat string-keyed record carried by a work item.
type Fields map[string]string

// MalformedFieldError reports a field that is missing or cannot be decoded.
type MalformedFieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedFieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed field %q (%s): %s", e.Field, truncate(e.Value, 64), e.Reason)
}

func malformed(field, value, reason string) *MalformedFieldError {
	return &MalformedFieldError{Field: field, Value: value, Reason: reason}
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Optional returns the trimmed value of key, or "" when absent.
func (f Fields) Optional(key string) string {
	return strings.TrimSpace(f[key])
}

// OptionalPtr returns nil when key is absent or blank.
func (f Fields) OptionalPtr(key string) *string {
	v := f.Optional(key)
	if v == "" {
		return nil
	}
	return &v
}

func (f Fields) Required(key string) (string, error) {
	v := f.Optional(key)
	if v == "" {
		return "", malformed(key, "", "required")
	}
	return v, nil
}

func (f Fields) Int64(key string) (int64, error) {
	v, err := f.Required(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, malformed(key, v, "not an integer")
	}
	return n, nil
}

// OptionalInt64 returns nil when key is absent.
func (f Fields) OptionalInt64(key string) (*int64, error) {
	if f.Optional(key) == "" {
		return nil, nil
	}
	n, err := f.Int64(key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (f Fields) Decimal(key string) (decimal.Decimal, error) {
	v, err := f.Required(key)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, malformed(key, v, "not a number")
	}
	return d, nil
}

// Time parses an ISO-8601 timestamp or calendar date.
func (f Fields) Time(key string) (time.Time, error) {
	v, err := f.Required(key)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, malformed(key, v, "not an ISO-8601 date")
}

// JSONStrings decodes a JSON array of strings. Absent or empty decodes to an empty slice.
func (f Fields) JSONStrings(key string) ([]string, error) {
	out := []string{}
	if err := f.JSONArray(key, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// JSONArray decodes a JSON array into dst. Absent, empty or "null" leaves dst untouched.
func (f Fields) JSONArray(key string, dst any) error {
	v := f.Optional(key)
	if v == "" || v == "null" {
		return nil
	}
	if !strings.HasPrefix(v, "[") {
		return malformed(key, v, "not a JSON array")
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return malformed(key, v, "invalid JSON: "+err.Error())
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}
