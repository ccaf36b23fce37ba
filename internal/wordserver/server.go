// Package wordserver implements a language server for plain text documents: the
// symbols are the words of the open documents.
package wordserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/inoxlang/lspcore/internal/logs"
	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/inoxlang/lspcore/internal/utils"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

const (
	WORD_SERVER_LOG_SRC = "/wordserver"

	SERVER_NAME = "wordserver"

	//number of completion items per partial result.
	COMPLETION_CHUNK_SIZE = 50
)

// WordServer holds the documents of each session of an LSP server.
type WordServer struct {
	server    *lsp.Server
	logger    zerolog.Logger
	documents cmap.ConcurrentMap[string, *Documents] //session id -> documents
}

// New creates an LSP server answering the requests with the words of the open documents.
// The capabilities of config are overridden.
func New(ctx context.Context, config lsp.ServerConfig) (*WordServer, error) {
	if config.Name == "" {
		config.Name = SERVER_NAME
	}

	ws := &WordServer{
		logger:    logs.Child(config.Logger, WORD_SERVER_LOG_SRC),
		documents: cmap.New[*Documents](),
	}

	onSessionClosed := config.OnSessionClosed
	config.OnSessionClosed = func(session *lsp.Session) {
		ws.documents.Remove(sessionKey(session))
		if onSessionClosed != nil {
			onSessionClosed(session)
		}
	}

	onInitialize := config.OnInitialize
	config.OnInitialize = func(ctx context.Context, session *lsp.Session, params *defines.InitializeParams) error {
		if onInitialize != nil {
			if err := onInitialize(ctx, session, params); err != nil {
				return err
			}
		}
		ws.documents.Set(sessionKey(session), NewDocuments())
		return nil
	}

	config.Capabilities = serverCapabilities()

	server, err := lsp.NewServer(ctx, config)
	if err != nil {
		return nil, err
	}
	ws.server = server

	if err := ws.registerHandlers(); err != nil {
		server.Close()
		return nil, err
	}
	return ws, nil
}

func (ws *WordServer) Server() *lsp.Server {
	return ws.server
}

func (ws *WordServer) Close() {
	ws.server.Close()
}

// Documents returns the documents opened in a session.
func (ws *WordServer) Documents(session *lsp.Session) *Documents {
	docs, ok := ws.documents.Get(sessionKey(session))
	if !ok {
		//the session is closed or not yet initialized.
		return NewDocuments()
	}
	return docs
}

func sessionKey(session *lsp.Session) string {
	return strconv.Itoa(session.RPC().ID())
}

func serverCapabilities() *defines.ServerCapabilities {
	change := defines.TextDocumentSyncKindIncremental

	return &defines.ServerCapabilities{
		TextDocumentSync: utils.Ptr(sumtype.Or2B[defines.TextDocumentSyncKind](defines.TextDocumentSyncOptions{
			OpenClose: defines.Bool(true),
			Change:    &change,
		})),
		HoverProvider: defines.Enabled[defines.HoverOptions](),
		CompletionProvider: &defines.CompletionOptions{
			WorkDoneProgressOptions: defines.WorkDoneProgressOptions{WorkDoneProgress: defines.Bool(true)},
			ResolveProviderOption:   defines.ResolveProviderOption{ResolveProvider: defines.Bool(true)},
		},
		DeclarationProvider: utils.Ptr(sumtype.Or3A[bool, defines.DeclarationRegistrationOptions, defines.DeclarationOptions](true)),
		DefinitionProvider:  defines.Enabled[defines.DefinitionOptions](),
		//references are registered dynamically by the ENABLE_REFERENCES_COMMAND command.
		DocumentSymbolProvider: defines.Enabled[defines.DocumentSymbolOptions](),
		WorkspaceSymbolProvider: defines.WithOptions(defines.WorkspaceSymbolOptions{
			ResolveProviderOption: defines.ResolveProviderOption{ResolveProvider: defines.Bool(true)},
		}),
		ExecuteCommandProvider: &defines.ExecuteCommandOptions{
			WorkDoneProgressOptions: defines.WorkDoneProgressOptions{WorkDoneProgress: defines.Bool(true)},
			Commands:                COMMANDS,
		},
	}
}

func (ws *WordServer) registerHandlers() error {
	server := ws.server
	methods := server.Methods()

	err := lsp.OnSyncNotification(server, methods.DidOpen, func(ctx context.Context, session *lsp.Session, params *defines.DidOpenTextDocumentParams) error {
		item := params.TextDocument
		doc := NewDocument(item.URI, item.Version, item.Text)
		doc.LanguageID = item.LanguageID
		ws.Documents(session).Open(doc)
		return nil
	})
	if err != nil {
		return err
	}

	err = lsp.OnSyncNotification(server, methods.DidChange, func(ctx context.Context, session *lsp.Session, params *defines.DidChangeTextDocumentParams) error {
		doc := params.TextDocument
		return ws.Documents(session).Update(doc.URI, doc.Version, params.ContentChanges)
	})
	if err != nil {
		return err
	}

	err = lsp.OnSyncNotification(server, methods.DidClose, func(ctx context.Context, session *lsp.Session, params *defines.DidCloseTextDocumentParams) error {
		ws.Documents(session).Close(params.TextDocument.URI)
		return nil
	})
	if err != nil {
		return err
	}

	err = lsp.OnRequest(server, methods.Hover, ws.hover)
	if err != nil {
		return err
	}

	err = lsp.OnRequest(server, methods.Completion, ws.complete)
	if err != nil {
		return err
	}

	err = lsp.OnRequest(server, methods.CompletionResolve, ws.resolveCompletionItem)
	if err != nil {
		return err
	}

	if methods.Declaration.Registered() {
		err = lsp.OnRequest(server, methods.Declaration, func(ctx context.Context, session *lsp.Session, params *defines.DeclarationParams) (*defines.DefinitionResult, error) {
			return ws.definition(session, lsp.DECLARATION_METHOD, params.TextDocumentPositionParams)
		})
		if err != nil {
			return err
		}
	}

	err = lsp.OnRequest(server, methods.Definition, func(ctx context.Context, session *lsp.Session, params *defines.DefinitionParams) (*defines.DefinitionResult, error) {
		return ws.definition(session, lsp.DEFINITION_METHOD, params.TextDocumentPositionParams)
	})
	if err != nil {
		return err
	}

	err = lsp.OnRequest(server, methods.References, ws.references)
	if err != nil {
		return err
	}

	err = lsp.OnRequest(server, methods.DocumentSymbol, ws.documentSymbols)
	if err != nil {
		return err
	}

	err = lsp.OnRequest(server, methods.WorkspaceSymbol, ws.workspaceSymbols)
	if err != nil {
		return err
	}

	if methods.WorkspaceSymbolResolve.Registered() {
		err = lsp.OnRequest(server, methods.WorkspaceSymbolResolve, ws.resolveWorkspaceSymbol)
		if err != nil {
			return err
		}
	}

	err = lsp.OnRequest(server, methods.ExecuteCommand, ws.executeCommand)
	if err != nil {
		return fmt.Errorf("failed to register the command handler: %w", err)
	}
	return nil
}

func (ws *WordServer) hover(ctx context.Context, session *lsp.Session, params *defines.HoverParams) (*defines.Hover, error) {
	docs := ws.Documents(session)

	doc, ok := docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word, ok := doc.WordAt(params.Position)
	if !ok {
		return nil, nil
	}

	count := len(docs.Occurrences(word.Text))
	text := fmt.Sprintf("**%s**: %d occurrence(s)", word.Text, count)

	return &defines.Hover{
		Contents: session.Capabilities().NewHoverContents(text),
		Range:    &word.Range,
	}, nil
}
