package defines

import "github.com/inoxlang/lspcore/internal/sumtype"

type MarkupKind string

const (
	PlainText MarkupKind = "plaintext"
	Markdown  MarkupKind = "markdown"
)

type MarkupContent struct {
	Kind  MarkupKind `json:"kind"`
	Value string     `json:"value"`
}

// MarkedStringObject is the object form of the deprecated MarkedString.
type MarkedStringObject struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// MarkedString can be used to render human readable text. It is either a markdown string
// or a code-block that provides a language and a code snippet.
//
// @deprecated use MarkupContent instead.
type MarkedString = sumtype.Or2[string, MarkedStringObject]

// HoverContents is decoded in the order MarkupContent, MarkedString, []MarkedString.
type HoverContents = sumtype.Or3[MarkupContent, MarkedString, []MarkedString]

type HoverParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
}

// The result of a hover request.
type Hover struct {
	Contents HoverContents `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

type HoverOptions struct {
	WorkDoneProgressOptions
}

type CompletionItemKind int

const (
	TextCompletion     CompletionItemKind = 1
	MethodCompletion   CompletionItemKind = 2
	FunctionCompletion CompletionItemKind = 3
	VariableCompletion CompletionItemKind = 6
	KeywordCompletion  CompletionItemKind = 14
)

type CompletionTriggerKind int

const (
	CompletionTriggerInvoked       CompletionTriggerKind = 1
	CompletionTriggerCharacter     CompletionTriggerKind = 2
	CompletionTriggerForIncomplete CompletionTriggerKind = 3
)

type CompletionContext struct {
	TriggerKind      CompletionTriggerKind `json:"triggerKind"`
	TriggerCharacter string                `json:"triggerCharacter,omitempty"`
}

type CompletionParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
	PartialResultParams

	Context *CompletionContext `json:"context,omitempty"`
}

type CompletionItem struct {
	Label         string                              `json:"label"`
	Kind          CompletionItemKind                  `json:"kind,omitempty"`
	Detail        string                              `json:"detail,omitempty"`
	Documentation *sumtype.Or2[string, MarkupContent] `json:"documentation,omitempty"`
	InsertText    string                              `json:"insertText,omitempty"`
	SortText      string                              `json:"sortText,omitempty"`

	// Preserved on a completion item between a completion and a completion resolve request.
	Data LSPAny `json:"data,omitempty"`
}

// Represents a collection of completion items to be presented in the editor.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// CompletionResult is decoded in the order []CompletionItem, CompletionList.
type CompletionResult = sumtype.Or2[[]CompletionItem, CompletionList]

type CompletionOptions struct {
	WorkDoneProgressOptions
	ResolveProviderOption

	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

type DefinitionParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
	PartialResultParams
}

type DeclarationParams = DefinitionParams

type ReferenceContext struct {
	// Include the declaration of the current symbol.
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	WorkDoneProgressParams
	PartialResultParams

	Context ReferenceContext `json:"context"`
}

// DefinitionResult is decoded in the order Location, []Location, []LocationLink.
// An empty array is decoded as []Location.
type DefinitionResult = sumtype.Or3[Location, []Location, []LocationLink]

type DefinitionOptions struct {
	WorkDoneProgressOptions
}

type DeclarationOptions struct {
	WorkDoneProgressOptions
}

type DeclarationRegistrationOptions struct {
	DeclarationOptions
	TextDocumentRegistrationOptions
	StaticRegistrationOptions
}

type ReferenceOptions struct {
	WorkDoneProgressOptions
}

type SymbolKind int

const (
	FileSymbol      SymbolKind = 1
	ModuleSymbol    SymbolKind = 2
	NamespaceSymbol SymbolKind = 3
	ClassSymbol     SymbolKind = 5
	MethodSymbol    SymbolKind = 6
	FunctionSymbol  SymbolKind = 12
	VariableSymbol  SymbolKind = 13
	StringSymbol    SymbolKind = 15
)

type DocumentSymbolParams struct {
	WorkDoneProgressParams
	PartialResultParams

	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// Represents programming constructs like variables, classes, interfaces etc. that appear in a document. Document
// symbols can be hierarchical and they have two ranges: one that encloses its definition and one that points to
// its most interesting range, e.g. the range of an identifier.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// Represents information about programming constructs like variables, classes,
// interfaces etc.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Deprecated    bool       `json:"deprecated,omitempty"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// DocumentSymbolResult is decoded in the order []DocumentSymbol, []SymbolInformation.
type DocumentSymbolResult = sumtype.Or2[[]DocumentSymbol, []SymbolInformation]

type DocumentSymbolOptions struct {
	WorkDoneProgressOptions

	// A human-readable string that is shown when multiple outlines trees
	// are shown for the same document.
	Label string `json:"label,omitempty"`
}

type WorkspaceSymbolParams struct {
	WorkDoneProgressParams
	PartialResultParams

	// A query string to filter symbols by. Clients may send an empty
	// string here to request all symbols.
	Query string `json:"query"`
}

// A special workspace symbol that supports locations without a range.
//
// @since 3.17.0
type WorkspaceSymbol struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	ContainerName string     `json:"containerName,omitempty"`

	// Decoded in the order Location, WorkspaceSymbolLocation.
	Location sumtype.Or2[Location, WorkspaceSymbolLocation] `json:"location"`

	Data LSPAny `json:"data,omitempty"`
}

// WorkspaceSymbolResult is decoded in the order []SymbolInformation, []WorkspaceSymbol:
// a workspace symbol whose location has a range is decoded as a SymbolInformation.
type WorkspaceSymbolResult = sumtype.Or2[[]SymbolInformation, []WorkspaceSymbol]

type WorkspaceSymbolOptions struct {
	WorkDoneProgressOptions
	ResolveProviderOption
}

type ExecuteCommandParams struct {
	WorkDoneProgressParams

	Command   string   `json:"command"`
	Arguments []LSPAny `json:"arguments,omitempty"`
}

type ExecuteCommandOptions struct {
	WorkDoneProgressOptions

	Commands []string `json:"commands"`
}

type Command struct {
	Title     string   `json:"title"`
	Command   string   `json:"command"`
	Arguments []LSPAny `json:"arguments,omitempty"`
}
