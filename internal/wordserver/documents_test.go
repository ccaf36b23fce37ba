package wordserver

import (
	"testing"

	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(line, start, end uint32) defines.Range {
	return defines.Range{
		Start: defines.Position{Line: line, Character: start},
		End:   defines.Position{Line: line, Character: end},
	}
}

func TestDocumentWords(t *testing.T) {
	doc := NewDocument("file:///a.txt", 1, "hello world\n𝄞 héllo_2, x")

	words := doc.Words()
	assert.Equal(t, []Word{
		{Text: "hello", Range: rng(0, 0, 5)},
		{Text: "world", Range: rng(0, 6, 11)},
		//the clef is encoded with two UTF-16 code units.
		{Text: "héllo_2", Range: rng(1, 3, 10)},
		{Text: "x", Range: rng(1, 12, 13)},
	}, words)

	t.Run("word at a position", func(t *testing.T) {
		word, ok := doc.WordAt(defines.Position{Line: 0, Character: 7})
		require.True(t, ok)
		assert.Equal(t, "world", word.Text)

		_, ok = doc.WordAt(defines.Position{Line: 0, Character: 5})
		assert.False(t, ok)

		word, ok = doc.WordAt(defines.Position{Line: 1, Character: 3})
		require.True(t, ok)
		assert.Equal(t, "héllo_2", word.Text)
	})

	t.Run("prefix", func(t *testing.T) {
		assert.Equal(t, "wor", doc.PrefixAt(defines.Position{Line: 0, Character: 9}))
		assert.Equal(t, "world", doc.PrefixAt(defines.Position{Line: 0, Character: 11}))
		assert.Equal(t, "hé", doc.PrefixAt(defines.Position{Line: 1, Character: 5}))
		assert.Empty(t, doc.PrefixAt(defines.Position{Line: 0, Character: 0}))
		assert.Empty(t, doc.PrefixAt(defines.Position{Line: 1, Character: 11}))
	})

	t.Run("occurrences", func(t *testing.T) {
		doc := NewDocument("file:///b.txt", 1, "a b a\na")
		assert.Equal(t, []defines.Location{
			{URI: "file:///b.txt", Range: rng(0, 0, 1)},
			{URI: "file:///b.txt", Range: rng(0, 4, 5)},
			{URI: "file:///b.txt", Range: rng(1, 0, 1)},
		}, doc.Occurrences("a"))
		assert.Empty(t, doc.Occurrences("c"))
	})
}

func TestDocumentApplyChange(t *testing.T) {
	doc := NewDocument("file:///a.txt", 1, "hello world\n𝄞 foo")

	t.Run("whole document", func(t *testing.T) {
		change := sumtype.Or2B[defines.TextDocumentContentChangePartial](defines.TextDocumentContentChangeWholeDocument{Text: "new"})

		updated, err := doc.ApplyChange(2, change)
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Text)
		assert.EqualValues(t, 2, updated.Version)
		assert.Equal(t, "hello world\n𝄞 foo", doc.Text)
	})

	t.Run("range", func(t *testing.T) {
		change := sumtype.Or2A[defines.TextDocumentContentChangePartial, defines.TextDocumentContentChangeWholeDocument](
			defines.TextDocumentContentChangePartial{Range: rng(1, 3, 6), Text: "bar"},
		)

		updated, err := doc.ApplyChange(2, change)
		require.NoError(t, err)
		assert.Equal(t, "hello world\n𝄞 bar", updated.Text)
	})

	t.Run("insertion at the end of a line", func(t *testing.T) {
		change := sumtype.Or2A[defines.TextDocumentContentChangePartial, defines.TextDocumentContentChangeWholeDocument](
			defines.TextDocumentContentChangePartial{Range: rng(0, 11, 11), Text: "!"},
		)

		updated, err := doc.ApplyChange(2, change)
		require.NoError(t, err)
		assert.Equal(t, "hello world!\n𝄞 foo", updated.Text)
	})

	t.Run("character past the end of a line", func(t *testing.T) {
		change := sumtype.Or2A[defines.TextDocumentContentChangePartial, defines.TextDocumentContentChangeWholeDocument](
			defines.TextDocumentContentChangePartial{Range: rng(0, 6, 20), Text: "there"},
		)

		updated, err := doc.ApplyChange(2, change)
		require.NoError(t, err)
		assert.Equal(t, "hello there\n𝄞 foo", updated.Text)

		change = sumtype.Or2A[defines.TextDocumentContentChangePartial, defines.TextDocumentContentChangeWholeDocument](
			defines.TextDocumentContentChangePartial{Range: rng(1, 50, 60), Text: "!"},
		)

		updated, err = doc.ApplyChange(2, change)
		require.NoError(t, err)
		assert.Equal(t, "hello world\n𝄞 foo!", updated.Text)
	})

	t.Run("line out of range", func(t *testing.T) {
		change := sumtype.Or2A[defines.TextDocumentContentChangePartial, defines.TextDocumentContentChangeWholeDocument](
			defines.TextDocumentContentChangePartial{Range: rng(5, 0, 0), Text: ""},
		)
		_, err := doc.ApplyChange(2, change)
		assert.Error(t, err)
	})
}

func TestDocuments(t *testing.T) {
	docs := NewDocuments()
	docs.Open(NewDocument("file:///b.txt", 1, "beta alpha"))
	docs.Open(NewDocument("file:///a.txt", 1, "alpha"))

	all := docs.All()
	require.Len(t, all, 2)
	assert.EqualValues(t, "file:///a.txt", all[0].URI)

	assert.Equal(t, []defines.Location{
		{URI: "file:///a.txt", Range: rng(0, 0, 5)},
		{URI: "file:///b.txt", Range: rng(0, 5, 10)},
	}, docs.Occurrences("alpha"))

	assert.Equal(t, map[string]int{"alpha": 2, "beta": 1}, docs.Vocabulary())

	err := docs.Update("file:///a.txt", 2, []defines.TextDocumentContentChangeEvent{
		sumtype.Or2B[defines.TextDocumentContentChangePartial](defines.TextDocumentContentChangeWholeDocument{Text: "gamma"}),
	})
	require.NoError(t, err)

	doc, ok := docs.Get("file:///a.txt")
	require.True(t, ok)
	assert.Equal(t, "gamma", doc.Text)
	assert.EqualValues(t, 2, doc.Version)

	err = docs.Update("file:///c.txt", 1, nil)
	assert.Error(t, err)

	docs.Close("file:///a.txt")
	_, ok = docs.Get("file:///a.txt")
	assert.False(t, ok)
}
