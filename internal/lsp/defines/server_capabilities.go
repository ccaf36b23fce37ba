package defines

import "github.com/inoxlang/lspcore/internal/sumtype"

type ServerCapabilities struct {
	PositionEncoding string `json:"positionEncoding,omitempty"`

	// Defines how text documents are synced. Is either a detailed structure defining each notification or
	// for backwards compatibility the TextDocumentSyncKind number.
	TextDocumentSync *sumtype.Or2[TextDocumentSyncKind, TextDocumentSyncOptions] `json:"textDocumentSync,omitempty"`

	CompletionProvider *CompletionOptions `json:"completionProvider,omitempty"`

	HoverProvider *sumtype.Or2[bool, HoverOptions] `json:"hoverProvider,omitempty"`

	// Registration options come before options: options have no required field and would match any object.
	DeclarationProvider *sumtype.Or3[bool, DeclarationRegistrationOptions, DeclarationOptions] `json:"declarationProvider,omitempty"`

	DefinitionProvider *sumtype.Or2[bool, DefinitionOptions] `json:"definitionProvider,omitempty"`

	ReferencesProvider *sumtype.Or2[bool, ReferenceOptions] `json:"referencesProvider,omitempty"`

	DocumentSymbolProvider *sumtype.Or2[bool, DocumentSymbolOptions] `json:"documentSymbolProvider,omitempty"`

	WorkspaceSymbolProvider *sumtype.Or2[bool, WorkspaceSymbolOptions] `json:"workspaceSymbolProvider,omitempty"`

	ExecuteCommandProvider *ExecuteCommandOptions `json:"executeCommandProvider,omitempty"`

	Workspace *WorkspaceServerCapabilities `json:"workspace,omitempty"`

	Experimental LSPAny `json:"experimental,omitempty"`
}

type WorkspaceServerCapabilities struct {
	WorkspaceFolders *WorkspaceFoldersServerCapabilities `json:"workspaceFolders,omitempty"`
}

type WorkspaceFoldersServerCapabilities struct {
	// The server has support for workspace folders
	Supported *bool `json:"supported,omitempty"`

	// Whether the server wants to receive workspace folder
	// change notifications. A string is the id of the registration.
	ChangeNotifications *sumtype.Or2[string, bool] `json:"changeNotifications,omitempty"`
}

// Enabled returns a provider field holding true.
func Enabled[T any]() *sumtype.Or2[bool, T] {
	v := sumtype.Or2A[bool, T](true)
	return &v
}

// WithOptions returns a provider field holding options.
func WithOptions[T any](options T) *sumtype.Or2[bool, T] {
	v := sumtype.Or2B[bool, T](options)
	return &v
}

func Bool(b bool) *bool {
	return &b
}
