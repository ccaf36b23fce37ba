package wordserver

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/maruel/natural"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// A Document is an immutable snapshot of an open text document. Characters in positions
// are UTF-16 code units.
type Document struct {
	URI        defines.DocumentURI
	LanguageID string
	Version    int32
	Text       string
	lines      []string
}

func NewDocument(uri defines.DocumentURI, version int32, text string) *Document {
	return &Document{
		URI:     uri,
		Version: version,
		Text:    text,
		lines:   strings.Split(text, "\n"),
	}
}

type Word struct {
	Text  string
	Range defines.Range
}

// Words returns the words of the document in order. A word is a sequence of letters,
// digits and underscores.
func (d *Document) Words() []Word {
	var words []Word

	for lineIndex, line := range d.lines {
		var current []rune
		var start, column uint32

		flush := func() {
			if len(current) > 0 {
				words = append(words, Word{
					Text: string(current),
					Range: defines.Range{
						Start: defines.Position{Line: uint32(lineIndex), Character: start},
						End:   defines.Position{Line: uint32(lineIndex), Character: column},
					},
				})
				current = current[:0]
			}
		}

		for _, r := range line {
			if isWordRune(r) {
				if len(current) == 0 {
					start = column
				}
				current = append(current, r)
			} else {
				flush()
			}
			column += uint32(utf16.RuneLen(r))
		}
		flush()
	}
	return words
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// WordAt returns the word containing pos.
func (d *Document) WordAt(pos defines.Position) (Word, bool) {
	for _, word := range d.Words() {
		if word.Range.Contains(pos) {
			return word, true
		}
	}
	return Word{}, false
}

// PrefixAt returns the part of the word ending at pos, it is empty if pos does not follow a word character.
func (d *Document) PrefixAt(pos defines.Position) string {
	for _, word := range d.Words() {
		r := word.Range
		if r.Start.Line == pos.Line && r.Start.Character < pos.Character && pos.Character <= r.End.Character {
			units := utf16.Encode([]rune(word.Text))
			return string(utf16.Decode(units[:pos.Character-r.Start.Character]))
		}
	}
	return ""
}

// Occurrences returns the locations of word in the document.
func (d *Document) Occurrences(word string) []defines.Location {
	var locations []defines.Location
	for _, w := range d.Words() {
		if w.Text == word {
			locations = append(locations, defines.Location{URI: d.URI, Range: w.Range})
		}
	}
	return locations
}

// Lines returns the lines of the document.
func (d *Document) Lines() []string {
	return d.lines
}

// ApplyChange returns the document resulting from a content change.
func (d *Document) ApplyChange(version int32, change defines.TextDocumentContentChangeEvent) (*Document, error) {
	if whole, ok := change.Second(); ok {
		return d.withText(version, whole.Text), nil
	}

	partial, ok := change.First()
	if !ok {
		return nil, fmt.Errorf("empty content change")
	}

	start, err := d.offset(partial.Range.Start)
	if err != nil {
		return nil, err
	}
	end, err := d.offset(partial.Range.End)
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("invalid range: end is before start")
	}

	return d.withText(version, d.Text[:start]+partial.Text+d.Text[end:]), nil
}

func (d *Document) withText(version int32, text string) *Document {
	doc := NewDocument(d.URI, version, text)
	doc.LanguageID = d.LanguageID
	return doc
}

// offset converts a position to a byte offset in the text.
func (d *Document) offset(pos defines.Position) (int, error) {
	if int(pos.Line) >= len(d.lines) {
		return 0, fmt.Errorf("line %d is out of range", pos.Line)
	}

	offset := 0
	for _, line := range d.lines[:pos.Line] {
		offset += len(line) + 1
	}

	line := d.lines[pos.Line]
	var column uint32
	for i, r := range line {
		if column >= pos.Character {
			return offset + i, nil
		}
		column += uint32(utf16.RuneLen(r))
	}
	//a character past the end of the line is clamped to the line length.
	return offset + len(line), nil
}

// Documents stores the open documents by URI.
type Documents struct {
	documents cmap.ConcurrentMap[string, *Document]
}

func NewDocuments() *Documents {
	return &Documents{documents: cmap.New[*Document]()}
}

func (s *Documents) Open(doc *Document) {
	s.documents.Set(string(doc.URI), doc)
}

func (s *Documents) Get(uri defines.DocumentURI) (*Document, bool) {
	return s.documents.Get(string(uri))
}

// Update applies content changes in order.
func (s *Documents) Update(uri defines.DocumentURI, version int32, changes []defines.TextDocumentContentChangeEvent) error {
	doc, ok := s.Get(uri)
	if !ok {
		return fmt.Errorf("document %s is not open", uri)
	}

	for _, change := range changes {
		var err error
		doc, err = doc.ApplyChange(version, change)
		if err != nil {
			return fmt.Errorf("failed to apply change to %s: %w", uri, err)
		}
	}

	s.documents.Set(string(uri), doc)
	return nil
}

func (s *Documents) Close(uri defines.DocumentURI) {
	s.documents.Remove(string(uri))
}

// All returns the open documents sorted by URI.
func (s *Documents) All() []*Document {
	docs := make([]*Document, 0, s.documents.Count())
	for _, doc := range s.documents.Items() {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return natural.Less(string(docs[i].URI), string(docs[j].URI))
	})
	return docs
}

// Occurrences returns the occurrences of word in all documents.
func (s *Documents) Occurrences(word string) []defines.Location {
	var locations []defines.Location
	for _, doc := range s.All() {
		locations = append(locations, doc.Occurrences(word)...)
	}
	return locations
}

// Vocabulary returns the distinct words of all documents with their number of occurrences.
func (s *Documents) Vocabulary() map[string]int {
	vocabulary := map[string]int{}
	for _, doc := range s.All() {
		for _, w := range doc.Words() {
			vocabulary[w.Text]++
		}
	}
	return vocabulary
}
