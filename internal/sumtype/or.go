package sumtype

import (
	"reflect"

	"github.com/tidwall/gjson"
)

// Or2 is a sum type with two alternatives. The decoding precedence is A then B.
type Or2[A, B any] struct {
	Value
}

func Or2A[A, B any](a A) Or2[A, B] {
	return Or2[A, B]{Value{desc: descriptor2[A, B](), alt: 1, value: a}}
}

func Or2B[A, B any](b B) Or2[A, B] {
	return Or2[A, B]{Value{desc: descriptor2[A, B](), alt: 2, value: b}}
}

// NewOr2 constructs an Or2 holding value as alternative index (0 or 1).
func NewOr2[A, B any](value any, index int) (Or2[A, B], error) {
	v, err := Of(descriptor2[A, B](), value, index)
	return Or2[A, B]{v}, err
}

func (o Or2[A, B]) First() (A, bool) {
	a, ok := o.value.(A)
	return a, ok && o.alt == 1
}

func (o Or2[A, B]) Second() (B, bool) {
	b, ok := o.value.(B)
	return b, ok && o.alt == 2
}

func (o *Or2[A, B]) UnmarshalJSON(data []byte) error {
	v, err := descriptor2[A, B]().Decode(data)
	if err != nil {
		return err
	}
	o.Value = v
	return nil
}

func (o *Or2[A, B]) MatchesShape(res gjson.Result) bool {
	return descriptor2[A, B]().MatchesShape(res)
}

func Match2[A, B, R any](o Or2[A, B], onA func(A) R, onB func(B) R) (R, error) {
	switch o.alt {
	case 1:
		return onA(o.value.(A)), nil
	case 2:
		return onB(o.value.(B)), nil
	default:
		var r R
		return r, ErrEmptyValue
	}
}

func descriptor2[A, B any]() *Descriptor {
	return cachedDescriptor(reflect.TypeOf((*Or2[A, B])(nil)).Elem(), typeOf[A](), typeOf[B]())
}

// Or3 is a sum type with three alternatives. The decoding precedence is A, B then C.
type Or3[A, B, C any] struct {
	Value
}

func Or3A[A, B, C any](a A) Or3[A, B, C] {
	return Or3[A, B, C]{Value{desc: descriptor3[A, B, C](), alt: 1, value: a}}
}

func Or3B[A, B, C any](b B) Or3[A, B, C] {
	return Or3[A, B, C]{Value{desc: descriptor3[A, B, C](), alt: 2, value: b}}
}

func Or3C[A, B, C any](c C) Or3[A, B, C] {
	return Or3[A, B, C]{Value{desc: descriptor3[A, B, C](), alt: 3, value: c}}
}

// NewOr3 constructs an Or3 holding value as alternative index (0, 1 or 2).
func NewOr3[A, B, C any](value any, index int) (Or3[A, B, C], error) {
	v, err := Of(descriptor3[A, B, C](), value, index)
	return Or3[A, B, C]{v}, err
}

func (o Or3[A, B, C]) First() (A, bool) {
	a, ok := o.value.(A)
	return a, ok && o.alt == 1
}

func (o Or3[A, B, C]) Second() (B, bool) {
	b, ok := o.value.(B)
	return b, ok && o.alt == 2
}

func (o Or3[A, B, C]) Third() (C, bool) {
	c, ok := o.value.(C)
	return c, ok && o.alt == 3
}

func (o *Or3[A, B, C]) UnmarshalJSON(data []byte) error {
	v, err := descriptor3[A, B, C]().Decode(data)
	if err != nil {
		return err
	}
	o.Value = v
	return nil
}

func (o *Or3[A, B, C]) MatchesShape(res gjson.Result) bool {
	return descriptor3[A, B, C]().MatchesShape(res)
}

func Match3[A, B, C, R any](o Or3[A, B, C], onA func(A) R, onB func(B) R, onC func(C) R) (R, error) {
	switch o.alt {
	case 1:
		return onA(o.value.(A)), nil
	case 2:
		return onB(o.value.(B)), nil
	case 3:
		return onC(o.value.(C)), nil
	default:
		var r R
		return r, ErrEmptyValue
	}
}

func descriptor3[A, B, C any]() *Descriptor {
	return cachedDescriptor(reflect.TypeOf((*Or3[A, B, C])(nil)).Elem(), typeOf[A](), typeOf[B](), typeOf[C]())
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
