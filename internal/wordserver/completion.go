package wordserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/inoxlang/lspcore/internal/utils"
	"github.com/maruel/natural"
)

// completionData is preserved on the items between a completion and a completion resolve request.
type completionData struct {
	URI  defines.DocumentURI `json:"uri"`
	Word string              `json:"word"`
}

func (ws *WordServer) complete(ctx context.Context, session *lsp.Session, params *defines.CompletionParams) (*defines.CompletionResult, error) {
	docs := ws.Documents(session)

	doc, ok := docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	var reporter *lsp.WorkDoneReporter
	if token := params.GetWorkDoneToken(); token != nil && token.IsSet() {
		var err error
		reporter, err = session.BeginWorkDone(ctx, params, lsp.WorkDoneOptions{Title: "completion"})
		if err != nil {
			return nil, err
		}
		defer reporter.End("")
	}

	items, err := completionItems(docs.Vocabulary(), doc.PrefixAt(params.Position), doc.URI)
	if err != nil {
		return nil, err
	}

	token := params.GetPartialResultToken()
	if token == nil || !token.IsSet() {
		result := sumtype.Or2B[[]defines.CompletionItem](defines.CompletionList{Items: items})
		return &result, nil
	}

	for start := 0; start < len(items); start += COMPLETION_CHUNK_SIZE {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+COMPLETION_CHUNK_SIZE, len(items))
		if err := session.SendPartialResult(*token, items[start:end]); err != nil {
			return nil, err
		}

		if reporter != nil {
			reporter.Report(fmt.Sprintf("%d/%d items", end, len(items)), utils.Ptr(uint32(end*100/len(items))))
		}
	}

	//all the items have been streamed.
	result := sumtype.Or2A[[]defines.CompletionItem, defines.CompletionList]([]defines.CompletionItem{})
	return &result, nil
}

// completionItems returns the words starting with prefix, the most frequent first.
func completionItems(vocabulary map[string]int, prefix string, uri defines.DocumentURI) ([]defines.CompletionItem, error) {
	var words []string
	for word := range vocabulary {
		if word != prefix && strings.HasPrefix(word, prefix) {
			words = append(words, word)
		}
	}

	sort.Slice(words, func(i, j int) bool {
		a, b := words[i], words[j]
		if vocabulary[a] != vocabulary[b] {
			return vocabulary[a] > vocabulary[b]
		}
		return natural.Less(a, b)
	})

	items := make([]defines.CompletionItem, 0, len(words))
	for i, word := range words {
		data, err := defines.NewLSPAny(completionData{URI: uri, Word: word})
		if err != nil {
			return nil, err
		}

		items = append(items, defines.CompletionItem{
			Label:    word,
			Kind:     defines.TextCompletion,
			SortText: fmt.Sprintf("%06d", i),
			Data:     data,
		})
	}
	return items, nil
}

func (ws *WordServer) resolveCompletionItem(ctx context.Context, session *lsp.Session, item *defines.CompletionItem) (defines.CompletionItem, error) {
	var data completionData
	if err := item.Data.Decode(&data); err != nil {
		return defines.CompletionItem{}, fmt.Errorf("invalid completion item data: %w", err)
	}
	if data.Word == "" {
		return *item, nil
	}

	resolved := *item
	locations := ws.Documents(session).Occurrences(data.Word)
	resolved.Detail = fmt.Sprintf("%d occurrence(s)", len(locations))

	if len(locations) > 0 {
		first := locations[0]
		text := fmt.Sprintf("first occurrence: %s:%d:%d", first.URI, first.Range.Start.Line+1, first.Range.Start.Character+1)

		format := session.Capabilities().HoverContentFormat
		if format == "" {
			resolved.Documentation = utils.Ptr(sumtype.Or2A[string, defines.MarkupContent](text))
		} else {
			resolved.Documentation = utils.Ptr(sumtype.Or2B[string](defines.MarkupContent{Kind: format, Value: text}))
		}
	}
	return resolved, nil
}
