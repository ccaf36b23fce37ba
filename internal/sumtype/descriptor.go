package sumtype

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tidwall/gjson"
)

// descriptors of the typed unions, keyed by the union type.
var descriptorCache = cmap.NewStringer[reflect.Type, *Descriptor]()

// A Descriptor is a closed, ordered set of alternatives. When decoding,
// alternatives are tried in declaration order and the first one whose shape
// matches and whose decoding succeeds wins.
type Descriptor struct {
	name         string
	alternatives []Alternative
}

func NewDescriptor(name string, alternatives ...Alternative) (*Descriptor, error) {
	if len(alternatives) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoAlternatives)
	}

	seen := map[string]bool{}
	for _, alt := range alternatives {
		if alt.Type == nil {
			return nil, fmt.Errorf("%s: alternative %q has no type", name, alt.Name)
		}
		if seen[alt.Name] {
			return nil, fmt.Errorf("%s: duplicate alternative %q", name, alt.Name)
		}
		seen[alt.Name] = true
	}

	return &Descriptor{
		name:         name,
		alternatives: append([]Alternative(nil), alternatives...),
	}, nil
}

func MustNewDescriptor(name string, alternatives ...Alternative) *Descriptor {
	d, err := NewDescriptor(name, alternatives...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Name() string {
	return d.name
}

func (d *Descriptor) Len() int {
	return len(d.alternatives)
}

func (d *Descriptor) Alternative(index int) (Alternative, bool) {
	if index < 0 || index >= len(d.alternatives) {
		return Alternative{}, false
	}
	return d.alternatives[index], true
}

func (d *Descriptor) String() string {
	names := make([]string, len(d.alternatives))
	for i, alt := range d.alternatives {
		names[i] = alt.Name
	}
	return d.name + "(" + strings.Join(names, " | ") + ")"
}

// Decode decodes a JSON payload into the first matching alternative.
func (d *Descriptor) Decode(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, fmt.Errorf("%s: invalid JSON payload", d.name)
	}
	res := gjson.ParseBytes(data)

	for i, alt := range d.alternatives {
		if !alt.matches(res) {
			continue
		}

		ptr := reflect.New(alt.Type)
		if err := json.Unmarshal(data, ptr.Interface()); err != nil {
			continue
		}
		return Value{desc: d, alt: i + 1, value: ptr.Elem().Interface()}, nil
	}

	return Value{}, newNoMatchingAlternativeError(d.name, data)
}

// MatchesShape reports whether at least one alternative has the shape of res.
func (d *Descriptor) MatchesShape(res gjson.Result) bool {
	for _, alt := range d.alternatives {
		if alt.matches(res) {
			return true
		}
	}
	return false
}

func cachedDescriptor(unionType reflect.Type, alternatives ...reflect.Type) *Descriptor {
	if d, ok := descriptorCache.Get(unionType); ok {
		return d
	}

	alts := make([]Alternative, len(alternatives))
	for i, t := range alternatives {
		alts[i] = AltOf(t, "")
		//the same type can appear twice in a typed union (e.g. Or2[string, string]).
		alts[i].Name = fmt.Sprintf("%d:%s", i, alts[i].Name)
	}

	d := MustNewDescriptor(unionType.String(), alts...)
	descriptorCache.SetIfAbsent(unionType, d)
	d, _ = descriptorCache.Get(unionType)
	return d
}
