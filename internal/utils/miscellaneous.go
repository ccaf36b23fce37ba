package utils

import "reflect"

func Must[T any](obj T, err error) T {
	if err != nil {
		panic(err)
	}
	return obj
}

// IsNil returns true if i is nil or is a nil pointer/map/slice/func.
func IsNil(i any) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Truncate returns the first max bytes of b and "..." if b was longer.
func Truncate(b []byte, max int) (truncated []byte, suffix string) {
	if len(b) <= max {
		return b, ""
	}
	return b[:max], "..."
}

func Ptr[T any](v T) *T {
	return &v
}
