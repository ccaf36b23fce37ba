package wordserver

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/maruel/natural"
	"github.com/sahilm/fuzzy"
)

// definition returns the first occurrence of the word at pos: in the workspace for a definition,
// in the document for a declaration.
func (ws *WordServer) definition(session *lsp.Session, method string, pos defines.TextDocumentPositionParams) (*defines.DefinitionResult, error) {
	docs := ws.Documents(session)

	doc, ok := docs.Get(pos.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word, ok := doc.WordAt(pos.Position)
	if !ok {
		return nil, nil
	}

	var target defines.Location
	if method == lsp.DECLARATION_METHOD {
		target = doc.Occurrences(word.Text)[0]
	} else {
		target = docs.Occurrences(word.Text)[0]
	}

	result := session.Capabilities().NewDefinitionResult(method, []defines.LocationLink{{
		OriginSelectionRange: &word.Range,
		TargetURI:            target.URI,
		TargetRange:          target.Range,
		TargetSelectionRange: target.Range,
	}})
	return &result, nil
}

func (ws *WordServer) references(ctx context.Context, session *lsp.Session, params *defines.ReferenceParams) ([]defines.Location, error) {
	if !session.Capabilities().IsAvailable(lsp.REFERENCES_METHOD) {
		return nil, fmt.Errorf("references are not enabled, execute the %s command first", ENABLE_REFERENCES_COMMAND)
	}

	docs := ws.Documents(session)

	doc, ok := docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	if !session.Capabilities().IsAvailableFor(lsp.REFERENCES_METHOD, doc.URI, doc.LanguageID) {
		return []defines.Location{}, nil
	}

	word, ok := doc.WordAt(params.Position)
	if !ok {
		return []defines.Location{}, nil
	}

	locations := docs.Occurrences(word.Text)
	if !params.Context.IncludeDeclaration {
		//the first occurrence is the definition.
		locations = locations[1:]
	}
	return append([]defines.Location{}, locations...), nil
}

// documentSymbols returns a namespace symbol per non-empty line, named after its first word.
// The other words of the line are its children.
func (ws *WordServer) documentSymbols(ctx context.Context, session *lsp.Session, params *defines.DocumentSymbolParams) (*defines.DocumentSymbolResult, error) {
	doc, ok := ws.Documents(session).Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	wordsByLine := map[uint32][]Word{}
	for _, word := range doc.Words() {
		wordsByLine[word.Range.Start.Line] = append(wordsByLine[word.Range.Start.Line], word)
	}

	symbols := []defines.DocumentSymbol{}
	for lineIndex, line := range doc.Lines() {
		words := wordsByLine[uint32(lineIndex)]
		if len(words) == 0 {
			continue
		}

		lineLength := uint32(len(utf16.Encode([]rune(line))))

		symbol := defines.DocumentSymbol{
			Name:   words[0].Text,
			Detail: fmt.Sprintf("line %d", lineIndex+1),
			Kind:   defines.NamespaceSymbol,
			Range: defines.Range{
				Start: defines.Position{Line: uint32(lineIndex)},
				End:   defines.Position{Line: uint32(lineIndex), Character: lineLength},
			},
			SelectionRange: words[0].Range,
		}

		for _, word := range words[1:] {
			symbol.Children = append(symbol.Children, defines.DocumentSymbol{
				Name:           word.Text,
				Kind:           defines.VariableSymbol,
				Range:          word.Range,
				SelectionRange: word.Range,
			})
		}
		symbols = append(symbols, symbol)
	}

	result := session.Capabilities().NewDocumentSymbolResult(doc.URI, symbols)
	return &result, nil
}

// workspaceSymbols returns the words fuzzy matching the query, each one is located at its first
// occurrence.
func (ws *WordServer) workspaceSymbols(ctx context.Context, session *lsp.Session, params *defines.WorkspaceSymbolParams) (*defines.WorkspaceSymbolResult, error) {
	docs := ws.Documents(session)

	vocabulary := docs.Vocabulary()
	words := make([]string, 0, len(vocabulary))
	for word := range vocabulary {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		return natural.Less(words[i], words[j])
	})

	if params.Query != "" {
		matches := fuzzy.Find(params.Query, words)
		words = words[:0:0]
		for _, match := range matches {
			words = append(words, match.Str)
		}
	}

	symbols := make([]defines.SymbolInformation, 0, len(words))
	for _, word := range words {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		locations := docs.Occurrences(word)
		if len(locations) == 0 {
			continue
		}
		symbols = append(symbols, defines.SymbolInformation{
			Name:     word,
			Kind:     defines.StringSymbol,
			Location: locations[0],
		})
	}

	result := session.Capabilities().NewWorkspaceSymbolResult(symbols)
	return &result, nil
}

// resolveWorkspaceSymbol computes the range of a symbol returned without one.
func (ws *WordServer) resolveWorkspaceSymbol(ctx context.Context, session *lsp.Session, symbol *defines.WorkspaceSymbol) (defines.WorkspaceSymbol, error) {
	location, ok := symbol.Location.Second()
	if !ok {
		return *symbol, nil
	}

	doc, ok := ws.Documents(session).Get(location.URI)
	if !ok {
		return defines.WorkspaceSymbol{}, fmt.Errorf("document %s is not open", location.URI)
	}

	occurrences := doc.Occurrences(symbol.Name)
	if len(occurrences) == 0 {
		return defines.WorkspaceSymbol{}, fmt.Errorf("%q does not occur in %s", symbol.Name, location.URI)
	}

	resolved := *symbol
	resolved.Location = sumtype.Or2A[defines.Location, defines.WorkspaceSymbolLocation](occurrences[0])
	return resolved, nil
}
