package inspect

import (
	"fmt"
	"strings"
	"time"
)

// serializeAttributes strips excluded field names and normalizes every
// value to a JSON-safe primitive. An exclusion entry matches a field by
// exact name or by suffix, which is how the default list catches both the
// internal id field and every *_id reference column.
func serializeAttributes(attrs map[string]interface{}, excluded []string) map[string]interface{} {
	result := make(map[string]interface{}, len(attrs))
	for name, value := range attrs {
		if excludedAttribute(name, excluded) {
			continue
		}
		result[name] = serializeValue(value)
	}
	return result
}

func excludedAttribute(name string, excluded []string) bool {
	for _, entry := range excluded {
		if name == entry || strings.HasSuffix(name, entry) {
			return true
		}
	}
	return false
}

// serializeValue converts an arbitrary attribute value into something the
// JSON encoder handles without surprises: temporal values become RFC3339
// strings, byte slices become strings, collections are normalized
// recursively, and anything opaque falls back to its string form. It
// never panics.
func serializeValue(value interface{}) (out interface{}) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("%v", value)
		}
	}()

	switch v := value.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339)
	case []interface{}:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = serializeValue(item)
		}
		return items
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for key, item := range v {
			m[key] = serializeValue(item)
		}
		return m
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
