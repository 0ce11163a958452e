package kv

import (
	"iter"

	"github.com/indigo-web/utils/strcomp"
)

// Entry is a single name with all the values ever added under it, in order of arrival.
type Entry struct {
	Key    string
	Values []string
}

// Storage is an associative structure for storing string keys with multiple string values.
// Keys are compared case-insensitively, however the spelling of the first occurrence is
// preserved. It acts as a map but uses linear search instead, which proves to be more
// efficient on relatively low amount of entries, which often enough is the case.
//
// Values are never overridden: adding a value to an existing key appends it.
type Storage struct {
	entries []Entry
	// spare keeps values slices of cleared entries, so they can be reused without allocations
	spare [][]string
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an instance of Storage with pre-allocated underlying storage.
func NewPrealloc(n int) *Storage {
	return &Storage{
		entries: make([]Entry, 0, n),
	}
}

// NewFromMap returns a new instance with already inserted values from given map.
// Note: as maps are unordered, resulting underlying structure will also contain unordered
// entries.
func NewFromMap(m map[string][]string) *Storage {
	s := NewPrealloc(len(m))

	for key, values := range m {
		for _, value := range values {
			s.Add(key, value)
		}
	}

	return s
}

// Add appends the value to the values of the key. A new entry is created if the key is
// seen for the first time.
func (s *Storage) Add(key, value string) *Storage {
	if i := s.index(key); i != -1 {
		s.entries[i].Values = append(s.entries[i].Values, value)
		return s
	}

	s.entries = append(s.entries, Entry{
		Key:    key,
		Values: append(s.values(), value),
	})

	return s
}

// Set replaces all the values of the key by the single one.
func (s *Storage) Set(key, value string) *Storage {
	if i := s.index(key); i != -1 {
		s.entries[i].Values = append(s.entries[i].Values[:0], value)
		return s
	}

	return s.Add(key, value)
}

// Delete removes the key with all its values, preserving the order of the rest.
func (s *Storage) Delete(key string) *Storage {
	if i := s.index(key); i != -1 {
		s.spare = append(s.spare, s.entries[i].Values[:0])
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}

	return s
}

// Value returns the first value, corresponding to the key. Otherwise, empty string is returned
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or custom value, defined
// via the second parameter.
func (s *Storage) ValueOr(key, or string) string {
	value, found := s.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns the first value and a bool, indicating whether the value was found. If it wasn't,
// it'll be an empty string.
func (s *Storage) Get(key string) (value string, found bool) {
	if i := s.index(key); i != -1 {
		return s.entries[i].Values[0], true
	}

	return "", false
}

// Values returns all values by the key in order of their addition. Returns nil if key doesn't
// exist. The returned slice must not be modified.
func (s *Storage) Values(key string) []string {
	if i := s.index(key); i != -1 {
		return s.entries[i].Values
	}

	return nil
}

// Has indicates, whether there's an entry of the key.
func (s *Storage) Has(key string) bool {
	return s.index(key) != -1
}

// Keys returns an iterator over the unique keys in order of their first appearance.
func (s *Storage) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, entry := range s.entries {
			if !yield(entry.Key) {
				return
			}
		}
	}
}

// Pairs returns an iterator over every key-value pair. Multi-valued keys are yielded once
// per value.
func (s *Storage) Pairs() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, entry := range s.entries {
			for _, value := range entry.Values {
				if !yield(entry.Key, value) {
					return
				}
			}
		}
	}
}

// Len returns a number of unique keys.
func (s *Storage) Len() int {
	return len(s.entries)
}

func (s *Storage) Empty() bool {
	return s.Len() == 0
}

// Expose exposes the underlying entries slice.
func (s *Storage) Expose() []Entry {
	return s.entries
}

// Clone creates a deep copy, which may be used later or stored somewhere safely. However,
// it comes at cost of multiple allocations.
func (s *Storage) Clone() *Storage {
	entries := make([]Entry, len(s.entries))
	for i, entry := range s.entries {
		entries[i] = Entry{
			Key:    entry.Key,
			Values: append([]string(nil), entry.Values...),
		}
	}

	return &Storage{entries: entries}
}

// Clear all the entries. However, all the allocated space won't be freed.
func (s *Storage) Clear() *Storage {
	for _, entry := range s.entries {
		s.spare = append(s.spare, entry.Values[:0])
	}

	s.entries = s.entries[:0]
	return s
}

func (s *Storage) index(key string) int {
	for i, entry := range s.entries {
		if strcomp.EqualFold(key, entry.Key) {
			return i
		}
	}

	return -1
}

func (s *Storage) values() []string {
	if len(s.spare) == 0 {
		return nil
	}

	values := s.spare[len(s.spare)-1]
	s.spare = s.spare[:len(s.spare)-1]

	return values
}
