package lsp

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
)

const (
	DEFAULT_PROTOCOL_VERSION = "3.17.0"

	INITIALIZE_METHOD                = "initialize"
	INITIALIZED_METHOD               = "initialized"
	SHUTDOWN_METHOD                  = "shutdown"
	EXIT_METHOD                      = jsonrpc.EXIT_METHOD
	DID_OPEN_METHOD                  = "textDocument/didOpen"
	DID_CHANGE_METHOD                = "textDocument/didChange"
	DID_CLOSE_METHOD                 = "textDocument/didClose"
	HOVER_METHOD                     = "textDocument/hover"
	COMPLETION_METHOD                = "textDocument/completion"
	COMPLETION_RESOLVE_METHOD        = "completionItem/resolve"
	DECLARATION_METHOD               = "textDocument/declaration"
	DEFINITION_METHOD                = "textDocument/definition"
	REFERENCES_METHOD                = "textDocument/references"
	DOCUMENT_SYMBOL_METHOD           = "textDocument/documentSymbol"
	WORKSPACE_SYMBOL_METHOD          = "workspace/symbol"
	WORKSPACE_SYMBOL_RESOLVE_METHOD  = "workspaceSymbol/resolve"
	EXECUTE_COMMAND_METHOD           = "workspace/executeCommand"
	APPLY_EDIT_METHOD                = "workspace/applyEdit"
	SHOW_MESSAGE_METHOD              = "window/showMessage"
	LOG_MESSAGE_METHOD               = "window/logMessage"
	WORK_DONE_PROGRESS_CREATE_METHOD = "window/workDoneProgress/create"
	WORK_DONE_PROGRESS_CANCEL_METHOD = "window/workDoneProgress/cancel"
	REGISTER_CAPABILITY_METHOD       = "client/registerCapability"
	UNREGISTER_CAPABILITY_METHOD     = "client/unregisterCapability"
	CANCEL_REQUEST_METHOD            = jsonrpc.CANCEL_REQUEST_METHOD
	PROGRESS_METHOD                  = jsonrpc.PROGRESS_METHOD
)

// Methods holds the typed tokens of the standard methods. The tokens of methods newer
// than the protocol version of the registry are not registered.
type Methods struct {
	ProtocolVersion *semver.Version

	Initialize  jsonrpc.RequestType[defines.InitializeParams, defines.InitializeResult]
	Initialized jsonrpc.NotificationType[defines.InitializedParams]
	Shutdown    jsonrpc.RequestType[defines.NoParams, any]
	Exit        jsonrpc.NotificationType[defines.NoParams]

	DidOpen   jsonrpc.NotificationType[defines.DidOpenTextDocumentParams]
	DidChange jsonrpc.NotificationType[defines.DidChangeTextDocumentParams]
	DidClose  jsonrpc.NotificationType[defines.DidCloseTextDocumentParams]

	Hover                  jsonrpc.RequestType[defines.HoverParams, *defines.Hover]
	Completion             jsonrpc.RequestType[defines.CompletionParams, *defines.CompletionResult]
	CompletionResolve      jsonrpc.RequestType[defines.CompletionItem, defines.CompletionItem]
	Declaration            jsonrpc.RequestType[defines.DeclarationParams, *defines.DefinitionResult]
	Definition             jsonrpc.RequestType[defines.DefinitionParams, *defines.DefinitionResult]
	References             jsonrpc.RequestType[defines.ReferenceParams, []defines.Location]
	DocumentSymbol         jsonrpc.RequestType[defines.DocumentSymbolParams, *defines.DocumentSymbolResult]
	WorkspaceSymbol        jsonrpc.RequestType[defines.WorkspaceSymbolParams, *defines.WorkspaceSymbolResult]
	WorkspaceSymbolResolve jsonrpc.RequestType[defines.WorkspaceSymbol, defines.WorkspaceSymbol]
	ExecuteCommand         jsonrpc.RequestType[defines.ExecuteCommandParams, defines.LSPAny]

	//server -> client
	ApplyEdit              jsonrpc.RequestType[defines.ApplyWorkspaceEditParams, defines.ApplyWorkspaceEditResult]
	ShowMessage            jsonrpc.NotificationType[defines.ShowMessageParams]
	LogMessage             jsonrpc.NotificationType[defines.LogMessageParams]
	WorkDoneProgressCreate jsonrpc.RequestType[defines.WorkDoneProgressCreateParams, any]
	RegisterCapability     jsonrpc.RequestType[defines.RegistrationParams, any]
	UnregisterCapability   jsonrpc.RequestType[defines.UnregistrationParams, any]

	WorkDoneProgressCancel jsonrpc.NotificationType[defines.WorkDoneProgressCancelParams]
}

// NewStandardRegistry creates a registry containing the standard methods introduced at or before
// protocolVersion (semver, defaults to DEFAULT_PROTOCOL_VERSION). The registry is not sealed.
func NewStandardRegistry(protocolVersion string) (*jsonrpc.Registry, *Methods, error) {
	if protocolVersion == "" {
		protocolVersion = DEFAULT_PROTOCOL_VERSION
	}

	version, err := semver.NewVersion(protocolVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid protocol version %q: %w", protocolVersion, err)
	}

	registry := jsonrpc.NewRegistry()
	t := &methodTable{registry: registry, version: version}

	m := &Methods{ProtocolVersion: version}

	m.Initialize = request[defines.InitializeParams, defines.InitializeResult](t, INITIALIZE_METHOD, "1.0.0")
	m.Initialized = notification[defines.InitializedParams](t, INITIALIZED_METHOD, "2.0.0")
	m.Shutdown = request[defines.NoParams, any](t, SHUTDOWN_METHOD, "1.0.0")
	m.Exit = notification[defines.NoParams](t, EXIT_METHOD, "1.0.0")

	m.DidOpen = notification[defines.DidOpenTextDocumentParams](t, DID_OPEN_METHOD, "1.0.0")
	m.DidChange = notification[defines.DidChangeTextDocumentParams](t, DID_CHANGE_METHOD, "1.0.0")
	m.DidClose = notification[defines.DidCloseTextDocumentParams](t, DID_CLOSE_METHOD, "1.0.0")

	m.Hover = request[defines.HoverParams, *defines.Hover](t, HOVER_METHOD, "1.0.0")
	m.Completion = request[defines.CompletionParams, *defines.CompletionResult](t, COMPLETION_METHOD, "1.0.0",
		jsonrpc.WithPartialResult[[]defines.CompletionItem]())
	m.CompletionResolve = request[defines.CompletionItem, defines.CompletionItem](t, COMPLETION_RESOLVE_METHOD, "2.0.0")
	m.Declaration = request[defines.DeclarationParams, *defines.DefinitionResult](t, DECLARATION_METHOD, "3.14.0",
		jsonrpc.WithPartialResult[[]defines.LocationLink]())
	m.Definition = request[defines.DefinitionParams, *defines.DefinitionResult](t, DEFINITION_METHOD, "1.0.0",
		jsonrpc.WithPartialResult[[]defines.LocationLink]())
	m.References = request[defines.ReferenceParams, []defines.Location](t, REFERENCES_METHOD, "1.0.0")
	m.DocumentSymbol = request[defines.DocumentSymbolParams, *defines.DocumentSymbolResult](t, DOCUMENT_SYMBOL_METHOD, "1.0.0",
		jsonrpc.WithPartialResult[defines.DocumentSymbolResult]())
	m.WorkspaceSymbol = request[defines.WorkspaceSymbolParams, *defines.WorkspaceSymbolResult](t, WORKSPACE_SYMBOL_METHOD, "1.0.0",
		jsonrpc.WithPartialResult[defines.WorkspaceSymbolResult]())
	m.WorkspaceSymbolResolve = request[defines.WorkspaceSymbol, defines.WorkspaceSymbol](t, WORKSPACE_SYMBOL_RESOLVE_METHOD, "3.17.0")
	m.ExecuteCommand = request[defines.ExecuteCommandParams, defines.LSPAny](t, EXECUTE_COMMAND_METHOD, "2.0.0")

	m.ApplyEdit = request[defines.ApplyWorkspaceEditParams, defines.ApplyWorkspaceEditResult](t, APPLY_EDIT_METHOD, "2.0.0",
		jsonrpc.WithOrigin(jsonrpc.ServerToClient))
	m.ShowMessage = notification[defines.ShowMessageParams](t, SHOW_MESSAGE_METHOD, "1.0.0",
		jsonrpc.WithOrigin(jsonrpc.ServerToClient))
	m.LogMessage = notification[defines.LogMessageParams](t, LOG_MESSAGE_METHOD, "1.0.0",
		jsonrpc.WithOrigin(jsonrpc.ServerToClient))
	m.WorkDoneProgressCreate = request[defines.WorkDoneProgressCreateParams, any](t, WORK_DONE_PROGRESS_CREATE_METHOD, "3.15.0",
		jsonrpc.WithOrigin(jsonrpc.ServerToClient))
	m.RegisterCapability = request[defines.RegistrationParams, any](t, REGISTER_CAPABILITY_METHOD, "3.0.0",
		jsonrpc.WithOrigin(jsonrpc.ServerToClient))
	m.UnregisterCapability = request[defines.UnregistrationParams, any](t, UNREGISTER_CAPABILITY_METHOD, "3.0.0",
		jsonrpc.WithOrigin(jsonrpc.ServerToClient))

	m.WorkDoneProgressCancel = notification[defines.WorkDoneProgressCancelParams](t, WORK_DONE_PROGRESS_CANCEL_METHOD, "3.15.0")

	if t.err == nil {
		t.err = jsonrpc.RegisterBuiltinMethods(registry)
	}

	if t.err != nil {
		return nil, nil, t.err
	}
	return registry, m, nil
}

type methodTable struct {
	registry *jsonrpc.Registry
	version  *semver.Version
	err      error
}

func (t *methodTable) supports(since string) bool {
	v, err := semver.NewVersion(since)
	if err != nil {
		t.err = fmt.Errorf("invalid version %q: %w", since, err)
		return false
	}
	return !t.version.LessThan(v)
}

func request[P, R any](t *methodTable, name, since string, opts ...jsonrpc.MethodOption) jsonrpc.RequestType[P, R] {
	if t.err != nil || !t.supports(since) {
		return jsonrpc.RequestType[P, R]{}
	}
	opts = append(opts, jsonrpc.Since(since))

	token, err := jsonrpc.RegisterRequest[P, R](t.registry, name, opts...)
	if err != nil {
		t.err = err
	}
	return token
}

func notification[P any](t *methodTable, name, since string, opts ...jsonrpc.MethodOption) jsonrpc.NotificationType[P] {
	if t.err != nil || !t.supports(since) {
		return jsonrpc.NotificationType[P]{}
	}
	opts = append(opts, jsonrpc.Since(since))

	token, err := jsonrpc.RegisterNotification[P](t.registry, name, opts...)
	if err != nil {
		t.err = err
	}
	return token
}
