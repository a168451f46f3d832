package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(name string, deps ...string) ParseResult {
	return ParseResult{
		Declarations: []Declaration{{Name: name, Content: name, Dependencies: deps}},
		Statements:   1,
	}
}

func TestParseCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewParseCache(2)
	require.NoError(t, err)

	c.Put("t=expr1", result("t", "expr1"))
	c.Put("t=expr2", result("t", "expr2"))

	_, ok := c.Get("t=expr1")
	require.True(t, ok)

	c.Put("t=expr3", result("t", "expr3"))

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Contains("t=expr1"))
	assert.False(t, c.Contains("t=expr2"))
	assert.True(t, c.Contains("t=expr3"))
	assert.Equal(t, []string{"t=expr1", "t=expr3"}, c.Keys())
}

func TestParseCache_WhitespaceSensitiveKeys(t *testing.T) {
	c, err := NewParseCache(10)
	require.NoError(t, err)

	c.Put("a = b", result("a", "b"))
	_, ok := c.Get("a = b ")
	assert.False(t, ok)
	_, ok = c.Get("a = b")
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestParseCache_ResizeAndClear(t *testing.T) {
	c, err := NewParseCache(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheSize, c.MaxSize())

	for _, code := range []string{"a=1", "b=2", "c=3", "d=4"} {
		c.Put(code, result(code[:1]))
	}
	evicted := c.Resize(2)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, []string{"c=3", "d=4"}, c.Keys())
	assert.Equal(t, 2, c.MaxSize())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestParseCache_ReturnsCopies(t *testing.T) {
	c, err := NewParseCache(4)
	require.NoError(t, err)
	c.Put("a = b", result("a", "b"))

	got, ok := c.Get("a = b")
	require.True(t, ok)
	got.Declarations[0].Dependencies[0] = "mutated"

	again, _ := c.Get("a = b")
	assert.Equal(t, []string{"b"}, again.Declarations[0].Dependencies)
}
