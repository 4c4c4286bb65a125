// Package normalize reduces the heterogeneous payload shapes emitted by the
// backend and its upstream sources to one ordered sequence of records.
package normalize

import (
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
)

// arrayKeys are probed in order for a wrapped array.
var arrayKeys = []string{"Data", "data", "items", "Body", "body"}

// ToArray applies the shared normalization policy to a raw JSON payload.
func ToArray(raw []byte) []gjson.Result {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	return Array(gjson.ParseBytes(raw))
}

// Array applies the normalization policy to an already parsed value:
//   - an array is returned as-is
//   - an object carrying an array under Data, data, items, Body or body
//     yields that array
//   - an object whose keys are all non-negative integers yields its values
//     ordered by numeric key
//
// Anything else yields an empty sequence.
func Array(value gjson.Result) []gjson.Result {
	if value.IsArray() {
		return value.Array()
	}
	if !value.IsObject() {
		return nil
	}

	obj := value.Map()
	for _, key := range arrayKeys {
		if v, ok := obj[key]; ok && v.IsArray() {
			return v.Array()
		}
	}

	return numericKeyed(obj)
}

type indexed struct {
	idx uint64
	val gjson.Result
}

func numericKeyed(obj map[string]gjson.Result) []gjson.Result {
	if len(obj) == 0 {
		return nil
	}
	entries := make([]indexed, 0, len(obj))
	for k, v := range obj {
		idx, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil
		}
		entries = append(entries, indexed{idx: idx, val: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	out := make([]gjson.Result, len(entries))
	for i, e := range entries {
		out[i] = e.val
	}
	return out
}

// Unwrap strips a single body/Body envelope, the shape the backend proxy uses
// when relaying upstream responses.
func Unwrap(raw []byte) gjson.Result {
	value := gjson.ParseBytes(raw)
	if !value.IsObject() {
		return value
	}
	for _, key := range []string{"body", "Body"} {
		if inner := value.Get(key); inner.Exists() && inner.Type != gjson.Null && (inner.IsObject() || inner.IsArray()) {
			return inner
		}
	}
	return value
}

// First returns the first present, non-null field among keys.
func First(value gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := value.Get(key); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}
