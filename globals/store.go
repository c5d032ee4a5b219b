// Package globals holds the process-wide key/value store shared by every
// script environment.
//
// Values are booleans, integers or strings. The store outlives individual
// environments and is only emptied by a full reinitialize.
package globals

import (
	"sort"
	"strconv"
	"sync"
)

// Type is the dynamic type of a Value.
type Type uint8

const (
	TypeBool Type = iota + 1
	TypeInt
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	}
	return "invalid"
}

// Value is a bool, an int64 or a string. The zero Value is invalid.
type Value struct {
	s string
	i int64
	t Type
}

func Bool(b bool) Value {
	v := Value{t: TypeBool}
	if b {
		v.i = 1
	}
	return v
}

func Int(i int64) Value { return Value{t: TypeInt, i: i} }

func String(s string) Value { return Value{t: TypeString, s: s} }

func (v Value) Type() Type { return v.t }

func (v Value) Valid() bool { return v.t != 0 }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.i != 0, v.t == TypeBool }

// AsInt returns the integer and whether v holds one.
func (v Value) AsInt() (int64, bool) { return v.i, v.t == TypeInt }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.s, v.t == TypeString }

// Interface returns v as bool, int64 or string, or nil if invalid.
func (v Value) Interface() any {
	switch v.t {
	case TypeBool:
		return v.i != 0
	case TypeInt:
		return v.i
	case TypeString:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.t {
	case TypeBool:
		return strconv.FormatBool(v.i != 0)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeString:
		return strconv.Quote(v.s)
	}
	return "<invalid>"
}

// Store maps keys to Values. It is safe for concurrent use.
type Store struct {
	m  map[string]Value
	mu sync.RWMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{m: make(map[string]Value)}
}

func (s *Store) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores v under key. Invalid values are ignored and reported false.
func (s *Store) Set(key string, v Value) bool {
	if !v.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
	return true
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	delete(s.m, key)
	return ok
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Clear removes every key.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]Value)
}

// Snapshot returns a copy of the store's contents.
func (s *Store) Snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Value, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Restore replaces the store's contents with m.
func (s *Store) Restore(m map[string]Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]Value, len(m))
	for k, v := range m {
		if v.Valid() {
			s.m[k] = v
		}
	}
}
