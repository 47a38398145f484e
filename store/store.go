package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/sasha-s/go-deadlock"
)

// KVStore is a threadsafe, type‑aware in‑memory store.
type KVStore struct {
	mu   deadlock.RWMutex
	data map[string]entry
}

type entry struct {
	typ   reflect.Type
	value any
}

// NewKVStore constructs an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]entry)}
}

// NewKVStoreFrom constructs a store seeded with the given values. The map
// itself is not retained.
func NewKVStoreFrom(values map[string]any) *KVStore {
	s := NewKVStore()
	for k, v := range values {
		s.data[k] = newEntry(v)
	}
	return s
}

func newEntry(value any) entry {
	if value == nil {
		return entry{}
	}
	return entry{typ: reflect.TypeOf(value), value: value}
}

// Put stores any Go value under key, capturing its concrete type. An existing
// value is overwritten. Every string, the empty one included, is a valid key.
func (s *KVStore) Put(key string, value any) {
	s.mu.Lock()
	s.data[key] = newEntry(value)
	s.mu.Unlock()
}

// Get retrieves a value of type T for the given key.
func Get[T any](s *KVStore, key string) (T, error) {
	var zero T

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	want := reflect.TypeOf((*T)(nil)).Elem()

	if e.value == nil {
		if canBeNil(want.Kind()) {
			return zero, nil
		}
		return zero, fmt.Errorf("%w: wanted %v, got nil", ErrTypeMismatch, want)
	}

	if want.Kind() == reflect.Interface {
		if !e.typ.Implements(want) {
			return zero, fmt.Errorf("%w: wanted interface %v, got %v which doesn't implement it",
				ErrTypeMismatch, want, e.typ)
		}
		return e.value.(T), nil
	}

	if e.typ != want {
		return zero, fmt.Errorf("%w: wanted %v, got %v", ErrTypeMismatch, want, e.typ)
	}
	return e.value.(T), nil
}

func canBeNil(kind reflect.Kind) bool {
	switch kind {
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// GetOrDefault retrieves a value of type T for the given key, falling back to
// defaultValue when the key is absent.
func GetOrDefault[T any](s *KVStore, key string, defaultValue T) (T, error) {
	value, err := Get[T](s, key)
	if errors.Is(err, ErrNotFound) {
		return defaultValue, nil
	}
	return value, err
}

// Value returns the raw value stored under key.
func (s *KVStore) Value(key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return e.value, nil
}

// Has reports whether key has been set, even to nil.
func (s *KVStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Delete removes a key from the store.
func (s *KVStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		delete(s.data, key)
		return true
	}
	return false
}

// ListKeys returns all stored keys in lexical order.
func (s *KVStore) ListKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of entries in the store.
func (s *KVStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// ToMap returns a snapshot of the store. The map is new, the values are the
// stored ones (not copied).
func (s *KVStore) ToMap() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.data))
	for k, e := range s.data {
		out[k] = e.value
	}
	return out
}

// KeysByType returns all keys whose stored value has type T, sorted.
func KeysByType[T any](s *KVStore) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := reflect.TypeOf((*T)(nil)).Elem()
	keys := []string{}
	for k, e := range s.data {
		if e.typ == want {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// GetTypeSchema returns a JSON Schema representation of the stored value's type.
func (s *KVStore) GetTypeSchema(key string) (map[string]any, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if e.typ == nil {
		return map[string]any{"type": "null"}, nil
	}
	return TypeToSchema(e.typ), nil
}

// TypeToSchema converts a reflect.Type to a JSON schema.
func TypeToSchema(t reflect.Type) map[string]any {
	instance := reflect.New(t).Interface()
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(instance)

	fallback := map[string]any{"type": "object"}

	data, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return fallback
	}
	delete(schemaMap, "$schema")
	return schemaMap
}

// Clone creates a new KVStore with a deep copy of all entries from this store.
func (s *KVStore) Clone() *KVStore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := NewKVStore()
	for key, e := range s.data {
		out.data[key] = entry{typ: e.typ, value: deepCopy(e.value)}
	}
	return out
}

// CopyFrom deep-copies entries from source into s. Existing keys are kept
// unless overwrite is set. It returns the number of entries written.
func (s *KVStore) CopyFrom(source *KVStore, overwrite bool) (int, error) {
	if source == nil {
		return 0, fmt.Errorf("source store is nil")
	}
	if source == s {
		return 0, nil
	}

	source.mu.RLock()
	defer source.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := 0
	for key, e := range source.data {
		if _, exists := s.data[key]; exists && !overwrite {
			continue
		}
		s.data[key] = entry{typ: e.typ, value: deepCopy(e.value)}
		copied++
	}
	return copied, nil
}

// deepCopy creates a deep copy of any value, following pointers, maps,
// slices, arrays and exported struct fields.
func deepCopy(value any) any {
	if value == nil {
		return nil
	}
	return copyValue(reflect.ValueOf(value)).Interface()
}

func copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(copyValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(copyValue(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyValue(v.Index(i)))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		// Unexported fields are copied by value with the struct itself.
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(copyValue(v.Field(i)))
			}
		}
		return out
	default:
		return v
	}
}
