package defines

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

var ErrNotIntegerOrString = errors.New("value is neither an integer nor a string")

type integerOrStringKind uint8

const (
	unsetIntegerOrString integerOrStringKind = iota
	integerKind
	stringKind
)

// IntegerOrString is the type of request ids and progress tokens. It is
// comparable and can be used as a map key. The zero value is unset and is
// encoded as null.
type IntegerOrString struct {
	kind    integerOrStringKind
	integer int64
	str     string
}

type ProgressToken = IntegerOrString

func NewInteger(i int64) IntegerOrString {
	return IntegerOrString{kind: integerKind, integer: i}
}

func NewString(s string) IntegerOrString {
	return IntegerOrString{kind: stringKind, str: s}
}

func (v IntegerOrString) IsSet() bool {
	return v.kind != unsetIntegerOrString
}

func (v IntegerOrString) IsString() bool {
	return v.kind == stringKind
}

func (v IntegerOrString) Integer() (int64, bool) {
	return v.integer, v.kind == integerKind
}

func (v IntegerOrString) Str() (string, bool) {
	return v.str, v.kind == stringKind
}

func (v IntegerOrString) String() string {
	switch v.kind {
	case integerKind:
		return strconv.FormatInt(v.integer, 10)
	case stringKind:
		return v.str
	default:
		return "<unset>"
	}
}

func (v IntegerOrString) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case integerKind:
		return strconv.AppendInt(nil, v.integer, 10), nil
	case stringKind:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

func (v *IntegerOrString) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)

	switch res.Type {
	case gjson.Null:
		*v = IntegerOrString{}
	case gjson.String:
		*v = NewString(res.String())
	case gjson.Number:
		i, err := strconv.ParseInt(res.Raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrNotIntegerOrString, res.Raw)
		}
		*v = NewInteger(i)
	default:
		return fmt.Errorf("%w: %s", ErrNotIntegerOrString, res.Raw)
	}
	return nil
}

func (v *IntegerOrString) MatchesShape(res gjson.Result) bool {
	return res.Type == gjson.String || res.Type == gjson.Number
}

// LSPAny is an uninterpreted JSON value (data and experimental fields). It is
// kept as raw bytes so that it round trips without loss; an empty LSPAny is
// absent and omitted by `omitempty`.
type LSPAny []byte

func NewLSPAny(v any) (LSPAny, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return LSPAny(b), nil
}

func (a LSPAny) IsAbsent() bool {
	return len(a) == 0
}

// Decode decodes the value into v.
func (a LSPAny) Decode(v any) error {
	if a.IsAbsent() {
		return nil
	}
	return json.Unmarshal(a, v)
}

func (a LSPAny) MarshalJSON() ([]byte, error) {
	if a.IsAbsent() {
		return []byte("null"), nil
	}
	return a, nil
}

func (a *LSPAny) UnmarshalJSON(data []byte) error {
	*a = append((*a)[:0], data...)
	return nil
}

type DocumentURI string

type URI string

// Position in a text document expressed as zero-based line and zero-based character offset.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos is inside the range, the end is exclusive.
func (r Range) Contains(pos Position) bool {
	afterStart := pos.Line > r.Start.Line || (pos.Line == r.Start.Line && pos.Character >= r.Start.Character)
	beforeEnd := pos.Line < r.End.Line || (pos.Line == r.End.Line && pos.Character < r.End.Character)
	return afterStart && beforeEnd
}

type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// WorkspaceSymbolLocation is a location without a range, the range is
// computed by a workspaceSymbol/resolve request.
//
// @since 3.17.0
type WorkspaceSymbolLocation struct {
	URI DocumentURI `json:"uri"`
}

// Represents the connection of two locations. Provides additional metadata over normal locations,
// including an origin range.
type LocationLink struct {
	OriginSelectionRange *Range      `json:"originSelectionRange,omitempty"`
	TargetURI            DocumentURI `json:"targetUri"`
	TargetRange          Range       `json:"targetRange"`
	TargetSelectionRange Range       `json:"targetSelectionRange"`
}

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int32 `json:"version"`
}

type OptionalVersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier

	// null means the version of the document on disk.
	Version *int32 `json:"version"`
}

// An item to transfer a text document from the client to the server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int32       `json:"version"`
	Text       string      `json:"text"`
}

// A parameter literal used in requests to pass a text document and a position inside that document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type WorkspaceFolder struct {
	URI  URI    `json:"uri"`
	Name string `json:"name"`
}

// NoParams is the params type of methods without params.
type NoParams struct{}
