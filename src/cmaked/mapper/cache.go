package mapper

import (
	"github.com/uber/cmake-driver/src/cmaked/entity"
	"github.com/uber/cmake-driver/src/cmaked/internal/errors"
	"github.com/uber/cmake-driver/src/cmaked/model"
)

var _cacheEntryTypes = map[string]entity.CacheEntryType{
	"BOOL":          entity.CacheBool,
	"STRING":        entity.CacheString,
	"PATH":          entity.CachePath,
	"FILEPATH":      entity.CacheFilePath,
	"INTERNAL":      entity.CacheInternal,
	"UNINITIALIZED": entity.CacheUninitialized,
	"STATIC":        entity.CacheStatic,
}

// CacheFromServer maps the server's raw cache entries to a typed CacheModel.
// An entry with an unrecognized type tag is excluded from the model and
// reported as an UnknownEntryTypeError so the caller can surface a diagnostic
// while still getting a best-effort cache.
func CacheFromServer(reply *model.CacheReply) (*entity.CacheModel, []error) {
	var dropped []error
	entries := make([]entity.CacheEntry, 0, len(reply.Cache))
	for _, raw := range reply.Cache {
		t, ok := _cacheEntryTypes[raw.Type]
		if !ok {
			dropped = append(dropped, &errors.UnknownEntryTypeError{Key: raw.Key, RawType: raw.Type})
			continue
		}
		entries = append(entries, entity.CacheEntry{
			Key:        raw.Key,
			Value:      raw.Value,
			Type:       t,
			HelpString: raw.Properties.HelpString,
			Advanced:   isCMakeTruthy(raw.Properties.Advanced),
		})
	}
	return entity.NewCacheModel(entries), dropped
}

// isCMakeTruthy follows cmake's boolean constant rules for property values.
func isCMakeTruthy(v string) bool {
	switch v {
	case "", "0", "FALSE", "OFF", "NO", "N", "IGNORE", "NOTFOUND":
		return false
	default:
		return true
	}
}
