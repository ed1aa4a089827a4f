// Package patch distinguishes "absent", "explicit null" and "value" in partial update payloads.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field is a tri-state JSON value. The zero Field is absent.
type Field[T any] struct {
	set   bool
	null  bool
	value T
}

func Value[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

func Null[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

// IsSet reports whether the key was present in the payload, null included.
func (f Field[T]) IsSet() bool { return f.set }

func (f Field[T]) IsNull() bool { return f.set && f.null }

// Get returns the value when the field was set to a non-null value.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set && !f.null
}

// UnmarshalJSON is only invoked for keys present in the document.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		f.null, f.value = true, zero
		return nil
	}
	f.null = false
	return json.Unmarshal(b, &f.value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// Apply copies a set, non-null value into dst and reports whether it did.
func (f Field[T]) Apply(dst *T) bool {
	v, ok := f.Get()
	if ok {
		*dst = v
	}
	return ok
}

// ApplyPtr handles nullable destinations: null clears dst, a value replaces it.
func (f Field[T]) ApplyPtr(dst **T) bool {
	if !f.set {
		return false
	}
	if f.null {
		*dst = nil
		return true
	}
	v := f.value
	*dst = &v
	return true
}
