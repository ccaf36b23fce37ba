package sumtype

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
)

// A Value holds exactly one alternative of a Descriptor. The zero Value is empty.
type Value struct {
	desc  *Descriptor
	alt   int //index + 1, 0 if empty
	value any
}

// Handler handles one alternative of a Value.
type Handler func(value any) any

// Of constructs a Value holding the alternative at index.
func Of(desc *Descriptor, value any, index int) (Value, error) {
	alt, ok := desc.Alternative(index)
	if !ok {
		return Value{}, fmt.Errorf("%s: alternative index %d out of range", desc.name, index)
	}

	valueType := reflect.TypeOf(value)
	if valueType == nil || !(valueType == alt.Type || (alt.Type.Kind() == reflect.Interface && valueType.AssignableTo(alt.Type))) {
		return Value{}, fmt.Errorf("%s: %w %s: %T", desc.name, ErrAlternativeMismatch, alt.Name, value)
	}

	return Value{desc: desc, alt: index + 1, value: value}, nil
}

func MustOf(desc *Descriptor, value any, index int) Value {
	v, err := Of(desc, value, index)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Value) IsSet() bool {
	return v.alt != 0
}

// Index returns the index of the stored alternative, or -1 if the value is empty.
func (v Value) Index() int {
	return v.alt - 1
}

// Descriptor returns nil for empty values.
func (v Value) Descriptor() *Descriptor {
	return v.desc
}

// Get returns the stored value, nil if the value is empty.
func (v Value) Get() any {
	return v.value
}

// Match calls the handler of the stored alternative: handlers[i] handles alternative i.
func (v Value) Match(handlers ...Handler) (any, error) {
	if !v.IsSet() {
		return nil, ErrEmptyValue
	}

	index := v.Index()
	if index >= len(handlers) || handlers[index] == nil {
		alt, _ := v.desc.Alternative(index)
		return nil, &UnhandledAlternativeError{
			Union:       v.desc.name,
			Alternative: alt.Name,
			Index:       index,
		}
	}

	return handlers[index](v.value), nil
}

// TryAs narrows v to T, it never panics.
func TryAs[T any](v interface{ Get() any }) (T, bool) {
	t, ok := v.Get().(T)
	return t, ok
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

func (v Value) String() string {
	if !v.IsSet() {
		return "<empty>"
	}
	return fmt.Sprintf("%v", v.value)
}
