package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, ExtractJSONObject(`  {"a":1} `))
	})

	t.Run("json code fence", func(t *testing.T) {
		raw := "Here you go:\n```json\n{\"content\": \"x\", \"choices\": []}\n```\nEnjoy"
		out := ExtractJSONObject(raw)
		require.NotEmpty(t, out)
		var v map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &v))
		assert.Equal(t, "x", v["content"])
	})

	t.Run("prose around object", func(t *testing.T) {
		out := ExtractJSONObject(`Sure! {"isEnding": true} hope it helps`)
		assert.Equal(t, `{"isEnding": true}`, out)
	})

	t.Run("truncated object is closed", func(t *testing.T) {
		out := ExtractJSONObject(`{"content": "a", "choices": [{"text": "go"`)
		require.NotEmpty(t, out)
		assert.True(t, json.Valid([]byte(out)))
	})

	t.Run("brackets inside strings are ignored", func(t *testing.T) {
		out := ExtractJSONObject(`{"content": "a { b [", "n": 1`)
		require.NotEmpty(t, out)
		var v map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &v))
		assert.Equal(t, "a { b [", v["content"])
	})

	t.Run("no json", func(t *testing.T) {
		assert.Empty(t, ExtractJSONObject("nothing to see"))
		assert.Empty(t, ExtractJSONObject(""))
	})
}

func TestStringShort(t *testing.T) {
	assert.Equal(t, "hello", StringShort("hello", 10))
	assert.Equal(t, "he...", StringShort("hello world", 5))
	assert.Equal(t, "...", StringShort("hello", 2))
	assert.Equal(t, "при...", StringShort("привет мир", 6))
}

func TestTailRunes(t *testing.T) {
	assert.Equal(t, "abc", TailRunes("abc", 5))
	assert.Equal(t, "мир", TailRunes("привет мир", 3))
}
