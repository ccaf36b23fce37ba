package sumtype

import (
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Kind is the JSON kind an alternative is encoded as.
type Kind uint8

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindBoolean
	KindObject
	KindArray
	KindCustom //the type matches payloads itself (ShapeMatcher)
)

var kindNames = [...]string{
	KindAny:     "any",
	KindString:  "string",
	KindNumber:  "number",
	KindBoolean: "boolean",
	KindObject:  "object",
	KindArray:   "array",
	KindCustom:  "custom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Discriminated is implemented by object alternatives whose wire shape has a
// fixed-value field identifying them, such as `"kind": "begin"`.
type Discriminated interface {
	Discriminant() (field string, value string)
}

// ShapeMatcher is implemented (with a pointer receiver) by types that decide
// themselves whether a payload has their shape: the typed unions, or types
// with a custom JSON decoding.
type ShapeMatcher interface {
	MatchesShape(res gjson.Result) bool
}

var (
	discriminatedType = reflect.TypeOf((*Discriminated)(nil)).Elem()
	shapeMatcherType  = reflect.TypeOf((*ShapeMatcher)(nil)).Elem()
	unmarshalerType   = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

// An Alternative is one member of a closed set of shapes.
type Alternative struct {
	Name string
	Type reflect.Type
	Kind Kind

	//object fields that must be present for a payload to match (json tags without omitempty).
	RequiredFields []string

	DiscriminantField string
	DiscriminantValue string

	fields   map[string]Alternative //shapes of the required fields
	elem     *Alternative           //shape of the elements of an array
	nullable bool                   //a null field value is accepted
}

// Alt returns the alternative for the Go type T, its wire shape is derived from T.
func Alt[T any](name string) Alternative {
	return AltOf(reflect.TypeOf((*T)(nil)).Elem(), name)
}

// AltOf returns the alternative for t, if name is empty the type's name is used.
func AltOf(t reflect.Type, name string) Alternative {
	return deriveAlternative(t, name, map[reflect.Type]bool{})
}

func deriveAlternative(t reflect.Type, name string, visiting map[reflect.Type]bool) Alternative {
	if name == "" {
		name = t.String()
	}

	alt := Alternative{
		Name: name,
		Type: t,
		Kind: kindOf(t),
	}

	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	//recursive types: the nested occurrence only has its kind checked.
	if visiting[base] {
		return alt
	}
	visiting[base] = true
	defer delete(visiting, base)

	switch alt.Kind {
	case KindObject:
		if base.Kind() == reflect.Struct {
			alt.fields = map[string]Alternative{}
			alt.RequiredFields = requiredFields(base, nil, alt.fields, visiting)
		}
	case KindArray:
		elem := deriveAlternative(base.Elem(), "", visiting)
		if elem.Kind != KindAny {
			alt.elem = &elem
		}
	}

	var zero any
	if t.Implements(discriminatedType) {
		zero = reflect.Zero(t).Interface()
	} else if reflect.PointerTo(t).Implements(discriminatedType) {
		zero = reflect.New(t).Interface()
	}
	if d, ok := zero.(Discriminated); ok {
		alt.DiscriminantField, alt.DiscriminantValue = d.Discriminant()
	}

	return alt
}

func kindOf(t reflect.Type) Kind {
	if reflect.PointerTo(t).Implements(shapeMatcherType) {
		return KindCustom
	}

	if t.Kind() == reflect.Pointer {
		return kindOf(t.Elem())
	}

	//the wire kind of types with a custom decoding is unknown.
	if reflect.PointerTo(t).Implements(unmarshalerType) {
		return KindAny
	}

	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Struct, reflect.Map:
		return KindObject
	default:
		return KindAny
	}
}

func requiredFields(t reflect.Type, names []string, shapes map[string]Alternative, visiting map[reflect.Type]bool) []string {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")

		if field.Anonymous && name == "" {
			embedded := field.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				names = requiredFields(embedded, names, shapes, visiting)
				continue
			}
		}

		if !field.IsExported() || strings.Contains(opts, "omitempty") {
			continue
		}

		if name == "" {
			name = field.Name
		}
		names = append(names, name)

		shape := deriveAlternative(field.Type, name, visiting)
		if shape.Kind != KindAny {
			switch field.Type.Kind() {
			case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
				shape.nullable = true
			}
			shapes[name] = shape
		}
	}
	return names
}

func (a Alternative) matches(res gjson.Result) bool {
	if a.nullable && res.Type == gjson.Null {
		return true
	}

	switch a.Kind {
	case KindAny:
		return res.Exists()
	case KindString:
		return res.Type == gjson.String
	case KindNumber:
		return res.Type == gjson.Number
	case KindBoolean:
		return res.Type == gjson.True || res.Type == gjson.False
	case KindCustom:
		return reflect.New(a.Type).Interface().(ShapeMatcher).MatchesShape(res)
	case KindArray:
		if !res.IsArray() {
			return false
		}
		if a.elem == nil {
			return true
		}
		ok := true
		res.ForEach(func(_, value gjson.Result) bool {
			ok = a.elem.matches(value)
			return ok
		})
		return ok
	case KindObject:
		if !res.IsObject() {
			return false
		}
	default:
		return false
	}

	keys := map[string]gjson.Result{}
	res.ForEach(func(key, value gjson.Result) bool {
		keys[key.String()] = value
		return true
	})

	for _, field := range a.RequiredFields {
		value, ok := keys[field]
		if !ok {
			return false
		}
		if shape, ok := a.fields[field]; ok && !shape.matches(value) {
			return false
		}
	}

	if a.DiscriminantField != "" {
		value, ok := keys[a.DiscriminantField]
		if !ok || value.Type != gjson.String || value.String() != a.DiscriminantValue {
			return false
		}
	}
	return true
}
