package wordserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/inoxlang/lspcore/internal/utils"
)

const (
	//registers the references feature, the result is the id of the registration.
	ENABLE_REFERENCES_COMMAND = "wordserver.enableReferences"

	//argument: the id of the registration.
	DISABLE_REFERENCES_COMMAND = "wordserver.disableReferences"

	//argument: a text document position, the result is the result of the workspace/applyEdit request.
	UPPERCASE_WORD_COMMAND = "wordserver.uppercaseWord"

	//counts the words of the open documents while reporting progress.
	COUNT_WORDS_COMMAND = "wordserver.countWords"
)

var COMMANDS = []string{
	ENABLE_REFERENCES_COMMAND,
	DISABLE_REFERENCES_COMMAND,
	UPPERCASE_WORD_COMMAND,
	COUNT_WORDS_COMMAND,
}

type referenceRegistrationOptions struct {
	defines.TextDocumentRegistrationOptions
	defines.ReferenceOptions
}

func (ws *WordServer) executeCommand(ctx context.Context, session *lsp.Session, params *defines.ExecuteCommandParams) (defines.LSPAny, error) {
	ws.logger.Debug().Str("command", params.Command).Int("session", session.RPC().ID()).Msg("execute command")

	switch params.Command {
	case ENABLE_REFERENCES_COMMAND:
		reg, err := session.RegisterCapability(ctx, lsp.REFERENCES_METHOD, referenceRegistrationOptions{
			TextDocumentRegistrationOptions: defines.TextDocumentRegistrationOptions{
				DocumentSelector: &defines.DocumentSelector{{Language: "plaintext"}},
			},
		})
		if err != nil {
			return nil, err
		}
		return defines.NewLSPAny(reg.ID)
	case DISABLE_REFERENCES_COMMAND:
		var id string
		if err := decodeArgument(params, 0, &id); err != nil {
			return nil, err
		}
		return nil, session.UnregisterCapability(ctx, defines.Registration{ID: id, Method: lsp.REFERENCES_METHOD})
	case UPPERCASE_WORD_COMMAND:
		var position defines.TextDocumentPositionParams
		if err := decodeArgument(params, 0, &position); err != nil {
			return nil, err
		}
		result, err := ws.uppercaseWord(ctx, session, position)
		if err != nil {
			return nil, err
		}
		return defines.NewLSPAny(result)
	case COUNT_WORDS_COMMAND:
		count, err := ws.countWords(ctx, session, params)
		if err != nil {
			return nil, err
		}
		return defines.NewLSPAny(count)
	default:
		return nil, jsonrpc.InvalidParams.WithMessage(fmt.Sprintf("unknown command %q", params.Command))
	}
}

func decodeArgument(params *defines.ExecuteCommandParams, index int, v any) error {
	if index >= len(params.Arguments) {
		return jsonrpc.InvalidParams.WithMessage(fmt.Sprintf("%s: missing argument %d", params.Command, index))
	}
	if err := params.Arguments[index].Decode(v); err != nil {
		return jsonrpc.InvalidParams.WithMessage(fmt.Sprintf("%s: invalid argument %d: %s", params.Command, index, err))
	}
	return nil
}

// uppercaseWord asks the client to replace the word at a position with its uppercase version.
func (ws *WordServer) uppercaseWord(ctx context.Context, session *lsp.Session, position defines.TextDocumentPositionParams) (defines.ApplyWorkspaceEditResult, error) {
	doc, ok := ws.Documents(session).Get(position.TextDocument.URI)
	if !ok {
		return defines.ApplyWorkspaceEditResult{}, fmt.Errorf("document %s is not open", position.TextDocument.URI)
	}

	word, ok := doc.WordAt(position.Position)
	if !ok {
		return defines.ApplyWorkspaceEditResult{}, fmt.Errorf("no word at %d:%d", position.Position.Line, position.Position.Character)
	}

	edit := defines.TextEdit{Range: word.Range, NewText: strings.ToUpper(word.Text)}

	var workspaceEdit defines.WorkspaceEdit
	if session.Capabilities().DocumentChanges {
		workspaceEdit.DocumentChanges = []defines.DocumentChange{
			defines.NewTextDocumentChange(defines.TextDocumentEdit{
				TextDocument: defines.OptionalVersionedTextDocumentIdentifier{
					TextDocumentIdentifier: defines.TextDocumentIdentifier{URI: doc.URI},
					Version:                utils.Ptr(doc.Version),
				},
				Edits: []defines.TextDocumentEditItem{sumtype.Or2B[defines.AnnotatedTextEdit](edit)},
			}),
		}
	} else {
		workspaceEdit.Changes = map[defines.DocumentURI][]defines.TextEdit{doc.URI: {edit}}
	}

	return session.ApplyEdit(ctx, "uppercase "+word.Text, workspaceEdit)
}

// countWords counts the words of the open documents, the operation can be cancelled by the client.
func (ws *WordServer) countWords(ctx context.Context, session *lsp.Session, params *defines.ExecuteCommandParams) (int, error) {
	reporter, err := session.BeginWorkDone(ctx, params, lsp.WorkDoneOptions{
		Title:       "Counting words",
		Cancellable: true,
		Percentage:  utils.Ptr(uint32(0)),
	})
	if err != nil {
		return 0, err
	}

	docs := ws.Documents(session).All()
	count := 0

	for i, doc := range docs {
		if err := reporter.Context().Err(); err != nil {
			reporter.End("cancelled")
			return 0, err
		}

		count += len(doc.Words())
		reporter.Report(string(doc.URI), utils.Ptr(uint32((i+1)*100/len(docs))))
	}

	reporter.End(fmt.Sprintf("%d words", count))
	return count, nil
}
