package tradeport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt64(t *testing.T) {
	var v struct {
		ID flexInt64 `json:"id"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"id": 42}`), &v))
	assert.Equal(t, flexInt64(42), v.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "9001"}`), &v))
	assert.Equal(t, flexInt64(9001), v.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id": "abc"}`), &v))
}

func TestCoinPrice(t *testing.T) {
	assert.Equal(t, 1.5, coinPrice("1500000000000000000"))
	assert.Equal(t, 0.000000000000000001, coinPrice("1"))
	assert.Equal(t, 0.0, coinPrice(""))
	assert.Equal(t, 0.0, coinPrice("not-a-number"))

	// 18-digit amounts survive without float drift on the integer part.
	assert.Equal(t, 123.456789, coinPrice("123456789000000000000"))
}
