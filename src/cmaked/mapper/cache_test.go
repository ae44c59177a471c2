package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/cmake-driver/src/cmaked/entity"
	"github.com/uber/cmake-driver/src/cmaked/internal/errors"
	"github.com/uber/cmake-driver/src/cmaked/model"
)

func TestCacheFromServer(t *testing.T) {
	reply := &model.CacheReply{Cache: []model.ServerCacheEntry{
		{Key: "FOO", Value: "1", Type: "STRING", Properties: model.CacheEntryProperties{HelpString: "A flag"}},
		{Key: "CMAKE_GENERATOR", Value: "Ninja", Type: "INTERNAL"},
		{Key: "BUILD_TESTING", Value: "ON", Type: "BOOL", Properties: model.CacheEntryProperties{Advanced: "1"}},
		{Key: "CMAKE_INSTALL_PREFIX", Value: "/usr/local", Type: "PATH"},
	}}

	cache, dropped := CacheFromServer(reply)
	require.Empty(t, dropped)
	require.Equal(t, 4, cache.Len())

	foo, ok := cache.Get("FOO")
	require.True(t, ok)
	assert.Equal(t, "1", foo.Value)
	assert.Equal(t, entity.CacheString, foo.Type)
	assert.Equal(t, "A flag", foo.HelpString)
	assert.False(t, foo.Advanced)

	testing_, ok := cache.Get("BUILD_TESTING")
	require.True(t, ok)
	assert.Equal(t, entity.CacheBool, testing_.Type)
	assert.True(t, testing_.Advanced)
}

func TestCacheFromServerDropsUnknownTypes(t *testing.T) {
	reply := &model.CacheReply{Cache: []model.ServerCacheEntry{
		{Key: "GOOD", Value: "x", Type: "STRING"},
		{Key: "BAD", Value: "y", Type: "WIDGET"},
	}}

	cache, dropped := CacheFromServer(reply)
	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get("BAD")
	assert.False(t, ok)

	require.Len(t, dropped, 1)
	var unknownErr *errors.UnknownEntryTypeError
	require.ErrorAs(t, dropped[0], &unknownErr)
	assert.Equal(t, "BAD", unknownErr.Key)
	assert.Equal(t, "WIDGET", unknownErr.RawType)
}

func TestCacheFromServerKeysAreUnique(t *testing.T) {
	reply := &model.CacheReply{Cache: []model.ServerCacheEntry{
		{Key: "A", Value: "first", Type: "STRING"},
		{Key: "A", Value: "second", Type: "STRING"},
	}}

	cache, dropped := CacheFromServer(reply)
	assert.Empty(t, dropped)
	assert.Equal(t, 1, cache.Len())
}

func TestIsCMakeTruthy(t *testing.T) {
	for _, falsy := range []string{"", "0", "FALSE", "OFF", "NO", "NOTFOUND"} {
		assert.False(t, isCMakeTruthy(falsy), falsy)
	}
	for _, truthy := range []string{"1", "TRUE", "ON", "YES"} {
		assert.True(t, isCMakeTruthy(truthy), truthy)
	}
}
