// Package domain defines the core domain models for framesync.
package domain

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxFieldsPerEvent bounds the number of fields an Event may carry.
const MaxFieldsPerEvent = 256

// MaxExactInteger is the largest integer magnitude a field keeps exactly.
// Field values travel as float64.
const MaxExactInteger = 1 << 53

// KV is a key/value pair used to build an Event. Integer values, also
// inside lists and maps, must lie within ±MaxExactInteger.
type KV struct {
	Key   string
	Value any
}

// Field is one named, typed value of an Event.
//
// Values are normalized through structpb at construction, so an Event
// built locally and the same Event decoded from the wire hold identical
// values: numbers are float64, lists are []any, objects are map[string]any.
type Field struct {
	Key   string
	value *structpb.Value
}

// NewField builds a field from an already-typed wire value.
func NewField(key string, v *structpb.Value) Field {
	if v == nil {
		v = structpb.NewNullValue()
	}
	return Field{Key: key, value: proto.Clone(v).(*structpb.Value)}
}

// Value returns a fresh Go representation of the field value.
func (f Field) Value() any {
	if f.value == nil {
		return nil
	}
	return f.value.AsInterface()
}

// Proto returns a copy of the field value in its wire form.
func (f Field) Proto() *structpb.Value {
	if f.value == nil {
		return structpb.NewNullValue()
	}
	return proto.Clone(f.value).(*structpb.Value)
}

// Event is an immutable input occurrence: a name plus ordered fields.
//
// Identity is by content (name and fields in order), not by the order
// in which the event was transmitted.
type Event struct {
	name   string
	fields []Field
}

// NewEvent creates an event from key/value pairs, preserving their order.
func NewEvent(name string, kvs ...KV) (Event, error) {
	fields := make([]Field, 0, len(kvs))
	for _, kv := range kvs {
		if err := checkExactIntegers(kv.Value); err != nil {
			return Event{}, ErrInvalidEvent.WithDetails(fmt.Sprintf("field %q", kv.Key)).WithCause(err)
		}
		v, err := structpb.NewValue(normalizeValue(kv.Value))
		if err != nil {
			return Event{}, ErrInvalidEvent.WithDetails(fmt.Sprintf("field %q", kv.Key)).WithCause(err)
		}
		fields = append(fields, Field{Key: kv.Key, value: v})
	}
	return NewEventFromFields(name, fields)
}

// MustEvent is like NewEvent but panics on error. Intended for tests and
// static event tables.
func MustEvent(name string, kvs ...KV) Event {
	e, err := NewEvent(name, kvs...)
	if err != nil {
		panic(err)
	}
	return e
}

// NewEventFromFields creates an event from prepared fields.
func NewEventFromFields(name string, fields []Field) (Event, error) {
	if strings.TrimSpace(name) == "" {
		return Event{}, ErrInvalidEvent.WithDetails("name is required")
	}
	if len(fields) > MaxFieldsPerEvent {
		return Event{}, ErrInvalidEvent.WithDetails(fmt.Sprintf("%d fields exceeds limit %d", len(fields), MaxFieldsPerEvent))
	}

	seen := make(map[string]struct{}, len(fields))
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Key == "" {
			return Event{}, ErrInvalidEvent.WithDetails(fmt.Sprintf("field %d has empty key", i))
		}
		if _, dup := seen[f.Key]; dup {
			return Event{}, ErrInvalidEvent.WithDetails(fmt.Sprintf("duplicate field %q", f.Key))
		}
		seen[f.Key] = struct{}{}
		out[i] = NewField(f.Key, f.value)
	}

	return Event{name: name, fields: out}, nil
}

// Name returns the event name.
func (e Event) Name() string {
	return e.name
}

// Len returns the number of fields.
func (e Event) Len() int {
	return len(e.fields)
}

// Fields returns the fields in order. The returned slice is a copy.
func (e Event) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// Get returns the value of the named field.
func (e Event) Get(key string) (any, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value(), true
		}
	}
	return nil, false
}

// Text returns the named field as a string.
func (e Event) Text(key string) (string, bool) {
	v, ok := e.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Number returns the named field as a float64.
func (e Event) Number(key string) (float64, bool) {
	v, ok := e.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}

// Bool returns the named field as a bool.
func (e Event) Bool(key string) (bool, bool) {
	v, ok := e.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// IsZero reports whether e is the zero Event.
func (e Event) IsZero() bool {
	return e.name == "" && len(e.fields) == 0
}

// Equal reports whether two events have the same name and fields in the same order.
func (e Event) Equal(o Event) bool {
	if e.name != o.name || len(e.fields) != len(o.fields) {
		return false
	}
	for i := range e.fields {
		if e.fields[i].Key != o.fields[i].Key {
			return false
		}
		if !proto.Equal(e.fields[i].value, o.fields[i].value) {
			return false
		}
	}
	return true
}

// Names returns the names of events in order. Mostly useful for logging.
func Names(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.name
	}
	return out
}

// EqualLists reports whether two event lists are element-for-element equal.
func EqualLists(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// normalizeValue widens typed slices that structpb does not accept directly.
// checkExactIntegers rejects integers that float64 cannot represent exactly.
func checkExactIntegers(v any) error {
	switch x := v.(type) {
	case int:
		return checkInt64(int64(x))
	case int64:
		return checkInt64(x)
	case uint:
		return checkUint64(uint64(x))
	case uint64:
		return checkUint64(x)
	case []int:
		for _, n := range x {
			if err := checkInt64(int64(n)); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range x {
			if err := checkExactIntegers(e); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, e := range x {
			if err := checkExactIntegers(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkInt64(n int64) error {
	if n > MaxExactInteger || n < -MaxExactInteger {
		return fmt.Errorf("integer %d exceeds ±2^53", n)
	}
	return nil
}

func checkUint64(n uint64) error {
	if n > MaxExactInteger {
		return fmt.Errorf("integer %d exceeds 2^53", n)
	}
	return nil
}

func normalizeValue(v any) any {
	switch s := v.(type) {
	case []float64:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	case []float32:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = float64(x)
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	case map[string]float64:
		out := make(map[string]any, len(s))
		for k, x := range s {
			out[k] = x
		}
		return out
	default:
		return v
	}
}
