package entity

// CacheEntryType is the closed set of value types a cache entry may carry.
type CacheEntryType int

const (
	CacheBool CacheEntryType = iota
	CacheString
	CachePath
	CacheFilePath
	CacheInternal
	CacheUninitialized
	CacheStatic
)

func (t CacheEntryType) String() string {
	switch t {
	case CacheBool:
		return "BOOL"
	case CacheString:
		return "STRING"
	case CachePath:
		return "PATH"
	case CacheFilePath:
		return "FILEPATH"
	case CacheInternal:
		return "INTERNAL"
	case CacheUninitialized:
		return "UNINITIALIZED"
	case CacheStatic:
		return "STATIC"
	default:
		return "UNKNOWN"
	}
}

// CacheEntry is one typed entry of the cmake cache.
type CacheEntry struct {
	Key        string
	Value      string
	Type       CacheEntryType
	HelpString string
	Advanced   bool
}

// CacheModel is a typed, queryable view of one cache snapshot. Keys are
// unique. The model is replaced wholesale after each successful configure and
// never patched, because partial cache updates from the server are not
// guaranteed consistent.
type CacheModel struct {
	entries map[string]CacheEntry
	keys    []string
}

// NewCacheModel builds a model from entries. A duplicate key replaces the
// earlier value while keeping its first-occurrence position.
func NewCacheModel(entries []CacheEntry) *CacheModel {
	m := &CacheModel{entries: make(map[string]CacheEntry, len(entries))}
	for _, e := range entries {
		if _, seen := m.entries[e.Key]; !seen {
			m.keys = append(m.keys, e.Key)
		}
		m.entries[e.Key] = e
	}
	return m
}

// Get returns the entry for an exact key.
func (m *CacheModel) Get(key string) (CacheEntry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Keys returns all keys in first-occurrence order.
func (m *CacheModel) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns a copy of the key to entry mapping.
func (m *CacheModel) Entries() map[string]CacheEntry {
	out := make(map[string]CacheEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (m *CacheModel) Len() int { return len(m.entries) }
