package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenParameter(t *testing.T) {
	t.Run("clean string value", func(t *testing.T) {
		assert.Nil(t, ScreenParameter("customer_id", "12345"))
	})

	t.Run("injection attempt detected", func(t *testing.T) {
		finding := ScreenParameter("search", "'; DROP TABLE users--")
		require.NotNil(t, finding)
		assert.Equal(t, "search", finding.ParamName)
		assert.NotEmpty(t, finding.Fingerprint)
	})

	t.Run("non-string values are never findings", func(t *testing.T) {
		assert.Nil(t, ScreenParameter("limit", 100))
		assert.Nil(t, ScreenParameter("flag", true))
		assert.Nil(t, ScreenParameter("ratio", 0.5))
		assert.Nil(t, ScreenParameter("nothing", nil))
	})
}

func TestScreenParameters(t *testing.T) {
	findings := ScreenParameters(map[string]any{
		"customer_id": "12345",
		"search":      "' OR '1'='1",
		"limit":       100,
	})
	require.Len(t, findings, 1)
	assert.Equal(t, "search", findings[0].ParamName)

	assert.Empty(t, ScreenParameters(map[string]any{"a": "hello", "b": 1}))
	assert.Empty(t, ScreenParameters(nil))
}
