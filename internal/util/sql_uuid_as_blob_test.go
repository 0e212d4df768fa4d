package util

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDAsBlob(t *testing.T) {
	id, err := ParseUUIDAsBlob("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())
	assert.False(t, id.IsZero())
	assert.True(t, UUIDAsBlob{}.IsZero())

	value, err := id.Value()
	require.NoError(t, err)
	raw, ok := value.([]byte)
	require.True(t, ok)
	require.Len(t, raw, 16)

	var scanned UUIDAsBlob
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, id, scanned)

	assert.Error(t, scanned.Scan("6ba7b810"))
	assert.Error(t, scanned.Scan([]byte{1, 2, 3}))

	encoded, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`, string(encoded))

	var decoded UUIDAsBlob
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, id, decoded)

	_, err = ParseUUIDAsBlob("not an uuid")
	assert.Error(t, err)
}

func TestUUIDAsBlobLess(t *testing.T) {
	a, err := ParseUUIDAsBlob("00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)
	b, err := ParseUUIDAsBlob("ff000000-0000-0000-0000-000000000000")
	require.NoError(t, err)

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestTimeAsUnixMilli(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 30, 0, 123456789, time.UTC)
	v := NewTimeAsUnixMilli(now)
	assert.Equal(t, now.Truncate(time.Millisecond).UnixNano(), v.Time().UnixNano())

	value, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), value)

	var scanned TimeAsUnixMilli
	require.NoError(t, scanned.Scan(now.UnixMilli()))
	assert.True(t, scanned.Time().Equal(v.Time()))

	require.NoError(t, scanned.Scan([]byte("1000")))
	assert.Equal(t, int64(1000), scanned.Time().UnixMilli())

	assert.Error(t, scanned.Scan("1000"))
	assert.Error(t, scanned.Scan([]byte("x")))

	encoded, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `"2026-10-16T12:30:00.123Z"`, string(encoded))
}
