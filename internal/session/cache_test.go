package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey_String(t *testing.T) {
	key := CacheKey{VideoID: "abc", CueIndex: 3, LanguageVersion: 1}
	assert.Equal(t, "abc:3:1", key.String())
	assert.Equal(t, key.String(), CacheKey{VideoID: "abc", CueIndex: 3, LanguageVersion: 1}.String())
	assert.NotEqual(t, key.String(), CacheKey{VideoID: "abc", CueIndex: 3, LanguageVersion: 2}.String())
}

func TestCache_PutKeepsOriginalPosition(t *testing.T) {
	c := NewCache()
	a := CacheKey{VideoID: "v", CueIndex: 0}
	b := CacheKey{VideoID: "v", CueIndex: 1}

	c.Put(a, CacheEntry{TranslatedText: "one"})
	c.Put(b, CacheEntry{TranslatedText: "two"})
	c.Put(a, CacheEntry{TranslatedText: "uno"})

	assert.Equal(t, []string{"v:0:0", "v:1:0"}, c.Keys())
	got, ok := c.Get(a)
	require.True(t, ok)
	assert.Equal(t, "uno", got.TranslatedText)

	assert.False(t, c.PutIfAbsent(a, CacheEntry{TranslatedText: "ett"}))
	got, _ = c.Get(a)
	assert.Equal(t, "uno", got.TranslatedText)
}

func TestCache_Evict(t *testing.T) {
	c := NewCache()
	for i := 0; i < 1000; i++ {
		c.Put(CacheKey{VideoID: "v", CueIndex: i}, CacheEntry{TranslatedText: fmt.Sprint(i)})
	}
	assert.Zero(t, c.Evict(1000, 500))
	assert.Equal(t, 1000, c.Len())

	c.Put(CacheKey{VideoID: "v", CueIndex: 1000}, CacheEntry{TranslatedText: "1000"})
	assert.Equal(t, 501, c.Evict(1000, 500))
	assert.Equal(t, 500, c.Len())

	assert.False(t, c.Has(CacheKey{VideoID: "v", CueIndex: 500}))
	assert.True(t, c.Has(CacheKey{VideoID: "v", CueIndex: 501}))
	assert.True(t, c.Has(CacheKey{VideoID: "v", CueIndex: 1000}))
	assert.Equal(t, "v:501:0", c.Keys()[0])
}

func TestCache_Clear(t *testing.T) {
	c := NewCache()
	c.Put(CacheKey{VideoID: "v"}, CacheEntry{})
	c.Clear()
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Keys())
}
