package defines

type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Window       *WindowClientCapabilities       `json:"window,omitempty"`
	General      *GeneralClientCapabilities      `json:"general,omitempty"`
	Experimental LSPAny                          `json:"experimental,omitempty"`
}

type WorkspaceClientCapabilities struct {
	// The client supports applying batch edits
	// to the workspace by supporting the request
	// 'workspace/applyEdit'
	ApplyEdit *bool `json:"applyEdit,omitempty"`

	WorkspaceEdit *WorkspaceEditClientCapabilities `json:"workspaceEdit,omitempty"`

	DidChangeConfiguration *DynamicRegistrationCapability `json:"didChangeConfiguration,omitempty"`

	Symbol *WorkspaceSymbolClientCapabilities `json:"symbol,omitempty"`

	ExecuteCommand *ExecuteCommandClientCapabilities `json:"executeCommand,omitempty"`

	// The client has support for workspace folders
	//
	// @since 3.6.0
	WorkspaceFolders *bool `json:"workspaceFolders,omitempty"`

	Configuration *bool `json:"configuration,omitempty"`
}

type WorkspaceEditClientCapabilities struct {
	// The client supports versioned document changes in `WorkspaceEdit`s
	DocumentChanges *bool `json:"documentChanges,omitempty"`

	// The resource operations the client supports. Clients should at least
	// support 'create', 'rename' and 'delete' files and folders.
	ResourceOperations []string `json:"resourceOperations,omitempty"`

	ChangeAnnotationSupport *struct {
		GroupsOnLabel *bool `json:"groupsOnLabel,omitempty"`
	} `json:"changeAnnotationSupport,omitempty"`
}

type ResolveSupportClientCapabilities struct {
	// The properties that a client can resolve lazily.
	Properties []string `json:"properties"`
}

type WorkspaceSymbolClientCapabilities struct {
	DynamicRegistrationCapability

	// The client support partial workspace symbols. The client will send the
	// request `workspaceSymbol/resolve` to the server to resolve additional
	// properties.
	//
	// @since 3.17.0
	ResolveSupport *ResolveSupportClientCapabilities `json:"resolveSupport,omitempty"`
}

type ExecuteCommandClientCapabilities struct {
	DynamicRegistrationCapability
}

type TextDocumentClientCapabilities struct {
	Synchronization *TextDocumentSyncClientCapabilities `json:"synchronization,omitempty"`
	Completion      *CompletionClientCapabilities       `json:"completion,omitempty"`
	Hover           *HoverClientCapabilities            `json:"hover,omitempty"`
	Declaration     *LinkClientCapabilities             `json:"declaration,omitempty"`
	Definition      *LinkClientCapabilities             `json:"definition,omitempty"`
	TypeDefinition  *LinkClientCapabilities             `json:"typeDefinition,omitempty"`
	Implementation  *LinkClientCapabilities             `json:"implementation,omitempty"`
	References      *DynamicRegistrationCapability      `json:"references,omitempty"`
	DocumentSymbol  *DocumentSymbolClientCapabilities   `json:"documentSymbol,omitempty"`
}

type TextDocumentSyncClientCapabilities struct {
	DynamicRegistrationCapability

	WillSave          *bool `json:"willSave,omitempty"`
	WillSaveWaitUntil *bool `json:"willSaveWaitUntil,omitempty"`
	DidSave           *bool `json:"didSave,omitempty"`
}

type CompletionClientCapabilities struct {
	DynamicRegistrationCapability

	CompletionItem *CompletionItemClientCapabilities `json:"completionItem,omitempty"`

	// The client supports to send additional context information for a
	// `textDocument/completion` request.
	ContextSupport *bool `json:"contextSupport,omitempty"`
}

type CompletionItemClientCapabilities struct {
	SnippetSupport *bool `json:"snippetSupport,omitempty"`

	// Client supports the following content formats for the documentation
	// property. The order describes the preferred format of the client.
	DocumentationFormat []MarkupKind `json:"documentationFormat,omitempty"`

	// Indicates which properties a client can resolve lazily on a completion
	// item.
	//
	// @since 3.16.0
	ResolveSupport *ResolveSupportClientCapabilities `json:"resolveSupport,omitempty"`
}

type HoverClientCapabilities struct {
	DynamicRegistrationCapability

	// Client supports the following content formats for the content
	// property. The order describes the preferred format of the client.
	ContentFormat []MarkupKind `json:"contentFormat,omitempty"`
}

// LinkClientCapabilities are the client capabilities of the definition-like requests.
type LinkClientCapabilities struct {
	DynamicRegistrationCapability

	// The client supports additional metadata in the form of definition links.
	LinkSupport *bool `json:"linkSupport,omitempty"`
}

type DocumentSymbolClientCapabilities struct {
	DynamicRegistrationCapability

	// The client supports hierarchical document symbols.
	HierarchicalDocumentSymbolSupport *bool `json:"hierarchicalDocumentSymbolSupport,omitempty"`

	// The client supports an additional label presented in the UI when
	// registering a document symbol provider.
	//
	// @since 3.16.0
	LabelSupport *bool `json:"labelSupport,omitempty"`
}

type WindowClientCapabilities struct {
	// Whether client supports server initiated progress using the
	// `window/workDoneProgress/create` request.
	WorkDoneProgress *bool `json:"workDoneProgress,omitempty"`

	ShowMessage *struct {
		MessageActionItem *struct {
			AdditionalPropertiesSupport *bool `json:"additionalPropertiesSupport,omitempty"`
		} `json:"messageActionItem,omitempty"`
	} `json:"showMessage,omitempty"`
}

type GeneralClientCapabilities struct {
	Markdown *struct {
		Parser  string `json:"parser"`
		Version string `json:"version,omitempty"`
	} `json:"markdown,omitempty"`

	// The position encodings supported by the client, in decreasing order of preference.
	//
	// @since 3.17.0
	PositionEncodings []string `json:"positionEncodings,omitempty"`
}
