// Package store provides the shared, type-aware key-value bag that steps use
// to hand data to one another.
//
// A KVStore keeps each value together with its concrete type so callers can
// read it back through the generic Get helper without repeated type
// assertions:
//
//	s := store.NewKVStore()
//	s.Put("count", 3)
//	n, err := store.Get[int](s, "count")
//
// Additional helpers cover untyped access (Value), snapshots (ToMap), typed
// key listing (KeysByType), deep copies (Clone, CopyFrom) and a JSON Schema
// view of stored types (GetTypeSchema).
//
// All operations are safe for concurrent use.
package store
