package persistence

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Row is one table row keyed by column name. Values read back from SQLite
// may be nil, strings, byte slices, int64, float64, bool or time.Time; the
// accessors below coerce them so decoders only ever see typed values.
type Row map[string]any

// TimeLayout is how timestamps are stored. It sorts as text and matches
// strftime('%Y-%m-%d %H:%M:%f') in the triggers.
const TimeLayout = "2006-01-02 15:04:05.000"

var timeLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTime renders t in UTC for storage
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// StorageTime truncates t to the precision kept in storage
func StorageTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// value returns the value under key with pointers and interfaces unwrapped.
// Raw scans into maps can hand back *any or *string for untyped columns.
func (r Row) value(key string) any {
	v := r[key]
	for {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			return nil
		}
		if rv.Kind() != reflect.Pointer && rv.Kind() != reflect.Interface {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
}

// String returns the value as a string. Missing and nil give "".
func (r Row) String(key string) string {
	switch v := r.value(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return FormatTime(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// StringPtr returns nil for a nil or empty value
func (r Row) StringPtr(key string) *string {
	s := r.String(key)
	if s == "" {
		return nil
	}
	return &s
}

// Int64 returns the value as an integer. Unparseable values give 0.
func (r Row) Int64(key string) int64 {
	switch v := r.value(key).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string, []byte:
		s := strings.TrimSpace(r.String(key))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

// Int returns the value as an int
func (r Row) Int(key string) int {
	return int(r.Int64(key))
}

// Decimal returns the value as a decimal. Unparseable values give zero.
func (r Row) Decimal(key string) decimal.Decimal {
	switch v := r.value(key).(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case decimal.Decimal:
		return v
	case string, []byte:
		if d, err := decimal.NewFromString(strings.TrimSpace(r.String(key))); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Bool accepts integers, booleans and the usual strings
func (r Row) Bool(key string) bool {
	switch v := r.value(key).(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string, []byte:
		b, err := strconv.ParseBool(strings.TrimSpace(r.String(key)))
		return err == nil && b
	}
	return false
}

// Time returns the value as a UTC time. Unparseable values give the zero time.
func (r Row) Time(key string) time.Time {
	switch v := r.value(key).(type) {
	case time.Time:
		return v.UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case string, []byte:
		s := strings.TrimSpace(r.String(key))
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// TimePtr returns nil when the value is missing or unparseable
func (r Row) TimePtr(key string) *time.Time {
	t := r.Time(key)
	if t.IsZero() {
		return nil
	}
	return &t
}

// JSON decodes a JSON column into dst. A nil or empty column leaves dst alone.
func (r Row) JSON(key string, dst any) error {
	var raw datatypes.JSON
	switch v := r.value(key).(type) {
	case nil:
		return nil
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	default:
		if err := raw.Scan(r.String(key)); err != nil {
			return err
		}
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("column %s: %w", key, err)
	}
	return nil
}

// Base decodes the columns every entity shares
func (r Row) Base() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        r.String("id"),
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
		Version:   r.Int("version"),
	}
}

// BaseRow encodes the shared columns into a new Row
func BaseRow(e shared.BaseEntity) Row {
	return Row{
		"id":         e.ID,
		"created_at": FormatTime(e.CreatedAt),
		"updated_at": FormatTime(e.UpdatedAt),
		"version":    e.Version,
	}
}

// JSONValue encodes v for a JSON text column
func JSONValue(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

// Money encodes a decimal for a REAL column
func Money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// NullString stores nil for a nil or empty pointer
func NullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// NullTime stores nil for a nil pointer
func NullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return FormatTime(*t)
}

// BoolInt encodes a boolean as 0 or 1
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// auditValues converts a row into plain JSON values, dropping the given columns
func auditValues(r Row, drop []string) map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return out
	}
	var plain map[string]any
	if err := json.Unmarshal(b, &plain); err != nil {
		return out
	}
	for k, v := range plain {
		if s, ok := v.(string); ok && json.Valid([]byte(s)) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
			var nested any
			if json.Unmarshal([]byte(s), &nested) == nil {
				plain[k] = nested
			}
		}
	}
	return plain
}
