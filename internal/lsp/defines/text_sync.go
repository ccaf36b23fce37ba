package defines

import "github.com/inoxlang/lspcore/internal/sumtype"

type TextDocumentSyncKind int

const (
	TextDocumentSyncKindNone        TextDocumentSyncKind = 0
	TextDocumentSyncKindFull        TextDocumentSyncKind = 1
	TextDocumentSyncKindIncremental TextDocumentSyncKind = 2
)

type TextDocumentSyncOptions struct {
	OpenClose *bool                 `json:"openClose,omitempty"`
	Change    *TextDocumentSyncKind `json:"change,omitempty"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type TextDocumentContentChangePartial struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
}

type TextDocumentContentChangeWholeDocument struct {
	Text string `json:"text"`
}

// TextDocumentContentChangeEvent is decoded in the order partial change, whole document change.
type TextDocumentContentChangeEvent = sumtype.Or2[TextDocumentContentChangePartial, TextDocumentContentChangeWholeDocument]

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}
