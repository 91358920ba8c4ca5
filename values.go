package arvos

import (
	"maps"
	"slices"
	"strconv"
	"time"
)

const (
	// NoIteration is the iteration context used outside of FOR blocks. It
	// selects only the bare, unsuffixed variant of a key.
	NoIteration = -1

	// DurationKey is a pseudo key that is never stored. Reading it yields
	// the number of microseconds elapsed since the Values were created.
	DurationKey = "avDURATION"

	// IndexKey is the base key populated automatically with the iteration
	// number the first time a value is set for that iteration.
	IndexKey = "IDX"
)

// Values is the request-scoped key/value store that templates are rendered
// against. Keys may carry an iteration variant, written as key_i, which is
// how FOR blocks find the data for each pass through their body.
//
// Values are owned by a single render and are not safe for concurrent use.
type Values struct {
	entries map[string]string
	start   time.Time
}

// NewValues returns an empty Values whose DurationKey counts from now.
func NewValues() *Values {
	return NewValuesSince(time.Now())
}

// NewValuesSince returns an empty Values whose DurationKey counts from start.
// CGI hosts should pass the time the process started.
func NewValuesSince(start time.Time) *Values {
	return &Values{
		entries: map[string]string{},
		start:   start,
	}
}

// IterationKey returns the key used to store the variant of key for the
// passed iteration. Negative iterations return key unchanged.
func IterationKey(key string, iteration int) string {
	if iteration < 0 {
		return key
	}
	return key + "_" + strconv.Itoa(iteration)
}

// Get returns the value stored for key and whether it was set.
func (v *Values) Get(key string) (string, bool) {
	return v.GetIteration(key, NoIteration)
}

// GetIteration returns the value stored for the iteration variant of key.
func (v *Values) GetIteration(key string, iteration int) (string, bool) {
	if key == DurationKey {
		return strconv.FormatInt(time.Since(v.start).Microseconds(), 10), true
	}
	if key == "" {
		return "", false
	}
	val, ok := v.entries[IterationKey(key, iteration)]
	return val, ok
}

// Value returns the value stored for key, or an empty string.
func (v *Values) Value(key string) string {
	val, _ := v.Get(key)
	return val
}

// Lookup resolves key the way templates do: the iteration variant first,
// then the bare key if the variant is empty or unset. It agrees with Defined,
// so a key is printed exactly when an IFDEF on it would pass.
func (v *Values) Lookup(key string, iteration int) string {
	if iteration >= 0 {
		if val, _ := v.GetIteration(key, iteration); val != "" {
			return val
		}
	}
	val, _ := v.Get(key)
	return val
}

// Defined reports whether key has a non-empty value for iteration, or, failing
// that, for the bare key. An empty value and an unset key are the same thing
// to a template.
func (v *Values) Defined(key string, iteration int) bool {
	if iteration >= 0 {
		if val, _ := v.GetIteration(key, iteration); val != "" {
			return true
		}
	}
	val, _ := v.Get(key)
	return val != ""
}

// Set stores value under key. Empty keys are ignored.
func (v *Values) Set(key, value string) {
	v.SetIteration(key, value, NoIteration)
}

// SetIteration stores value under the iteration variant of key. The first
// value set for an iteration also sets IDX_i to i.
func (v *Values) SetIteration(key, value string, iteration int) {
	if key == "" {
		return
	}
	v.entries[IterationKey(key, iteration)] = value
	if iteration < 0 {
		return
	}
	idx := IterationKey(IndexKey, iteration)
	if _, ok := v.entries[idx]; !ok {
		v.entries[idx] = strconv.Itoa(iteration)
	}
}

// SetRow copies a row of data, usually a database record, into the iteration
// variants of its keys. Empty values remove the key rather than setting it.
func (v *Values) SetRow(row map[string]string, iteration int) {
	for _, key := range slices.Sorted(maps.Keys(row)) {
		if row[key] == "" {
			v.UnsetIteration(key, iteration)
			continue
		}
		v.SetIteration(key, row[key], iteration)
	}
}

// Unset removes key.
func (v *Values) Unset(key string) {
	v.UnsetIteration(key, NoIteration)
}

// UnsetIteration removes the iteration variant of key.
func (v *Values) UnsetIteration(key string, iteration int) {
	if key == "" {
		return
	}
	delete(v.entries, IterationKey(key, iteration))
}

// Clear removes every stored value.
func (v *Values) Clear() {
	clear(v.entries)
}

// Len returns the number of stored entries.
func (v *Values) Len() int {
	return len(v.entries)
}

// Keys returns the stored keys, sorted.
func (v *Values) Keys() []string {
	return slices.Sorted(maps.Keys(v.entries))
}
