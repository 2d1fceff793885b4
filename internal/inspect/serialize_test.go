package inspect

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeAttributesExclusion(t *testing.T) {
	attrs := map[string]interface{}{
		"id":         "42",
		"name":       "Ada",
		"author_id":  "7",
		"_id":        "abc",
		"created_at": "2020-01-01",
		"updated_at": "2020-01-02",
	}
	out := serializeAttributes(attrs, []string{"_id", "created_at", "updated_at"})

	assert.Contains(t, out, "id")
	assert.Contains(t, out, "name")
	assert.NotContains(t, out, "_id")
	assert.NotContains(t, out, "created_at")
	assert.NotContains(t, out, "updated_at")
	// author_id matches the _id suffix rule
	assert.NotContains(t, out, "author_id")
}

func TestSerializeValueTime(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ts := time.Date(2024, 3, 1, 13, 30, 0, 0, loc)

	assert.Equal(t, "2024-03-01T12:30:00Z", serializeValue(ts))
	assert.Equal(t, "2024-03-01T12:30:00Z", serializeValue(&ts))

	var nilTime *time.Time
	assert.Nil(t, serializeValue(nilTime))
}

func TestSerializeValuePrimitives(t *testing.T) {
	assert.Equal(t, "hello", serializeValue("hello"))
	assert.Equal(t, "raw", serializeValue([]byte("raw")))
	assert.Equal(t, 42, serializeValue(42))
	assert.Equal(t, int64(42), serializeValue(int64(42)))
	assert.Equal(t, 1.5, serializeValue(1.5))
	assert.Equal(t, true, serializeValue(true))
	assert.Nil(t, serializeValue(nil))
}

func TestSerializeValueNested(t *testing.T) {
	v := map[string]interface{}{
		"tags":  []interface{}{"a", []byte("b")},
		"inner": map[string]interface{}{"when": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	out := serializeValue(v)

	m, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, m["tags"])
	inner, ok := m["inner"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-01-01T00:00:00Z", inner["when"])
}

func TestSerializeValueFallbacks(t *testing.T) {
	// fmt.Stringer
	assert.Equal(t, "127.0.0.1", serializeValue(net.ParseIP("127.0.0.1")))
	// error
	assert.Equal(t, "boom", serializeValue(errors.New("boom")))
	// anything else renders through %v
	type opaque struct{ N int }
	assert.Equal(t, "{3}", serializeValue(opaque{N: 3}))
}

func TestSerializedAttributesAreJSONSafe(t *testing.T) {
	attrs := map[string]interface{}{
		"name":    "Ada",
		"joined":  time.Now(),
		"blob":    []byte{0x68, 0x69},
		"ip":      net.ParseIP("10.0.0.1"),
		"nested":  map[string]interface{}{"k": []interface{}{1, "two"}},
		"failure": errors.New("broken"),
	}
	out := serializeAttributes(attrs, nil)

	_, err := json.Marshal(out)
	require.NoError(t, err)
}

func TestNodeKey(t *testing.T) {
	assert.Equal(t, "Author:a1", NodeKey("Author", "a1"))
}
