package session

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Session data is stored as a data string: "key=value" pairs joined by tabs.
// Keys can't contain "=" and values can't contain tabs; Apply replaces tabs
// in values with spaces.

// IncrementMarker, set as a value, increments the integer stored under the
// key instead of replacing it.
const IncrementMarker = "i++"

// EncodeData writes data as a data string, with keys sorted.
func EncodeData(data map[string]string) string {
	pairs := make([]string, 0, len(data))
	for _, key := range slices.Sorted(maps.Keys(data)) {
		pairs = append(pairs, key+"="+data[key])
	}
	return strings.Join(pairs, "\t")
}

// DecodeData reads a data string. Pairs without "=" are skipped.
func DecodeData(s string) map[string]string {
	data := map[string]string{}
	for _, pair := range strings.Split(s, "\t") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		data[key] = value
	}
	return data
}

type op int

const (
	opSet op = iota
	opIncrement
	opDelete
)

// Update is one change to session data, made with Set, Increment or Delete
// and applied with Apply.
type Update struct {
	key   string
	value string
	op    op
}

// Set returns an Update storing value under key.
func Set(key, value string) Update {
	return Update{key: key, value: value, op: opSet}
}

// Increment returns an Update adding one to the integer stored under key. A
// missing or empty value counts as zero.
func Increment(key string) Update {
	return Update{key: key, op: opIncrement}
}

// Delete returns an Update removing key.
func Delete(key string) Update {
	return Update{key: key, op: opDelete}
}

// Apply makes updates to data, in order, and returns it. A nil data starts
// from an empty map.
func Apply(data map[string]string, updates ...Update) map[string]string {
	if data == nil {
		data = map[string]string{}
	}
	for _, u := range updates {
		switch u.op {
		case opSet:
			if u.value != IncrementMarker {
				data[u.key] = strings.ReplaceAll(u.value, "\t", " ")
				break
			}
			fallthrough
		case opIncrement:
			n, _ := strconv.Atoi(data[u.key])
			data[u.key] = strconv.Itoa(n + 1)
		case opDelete:
			delete(data, u.key)
		}
	}
	return data
}
