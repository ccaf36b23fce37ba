package defines

import (
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/tidwall/gjson"
)

type TextEdit struct {
	// The range of the text document to be manipulated. To insert
	// text into a document create a range where start === end.
	Range Range `json:"range"`

	// The string to be inserted. For delete operations use an
	// empty string.
	NewText string `json:"newText"`
}

// A special text edit with an additional change annotation.
//
// @since 3.16.0.
type AnnotatedTextEdit struct {
	TextEdit

	AnnotationID ChangeAnnotationIdentifier `json:"annotationId"`
}

type ChangeAnnotationIdentifier string

// Additional information that describes document changes.
//
// @since 3.16.0
type ChangeAnnotation struct {
	// A human-readable string describing the actual change. The string
	// is rendered prominent in the user interface.
	Label string `json:"label"`

	// A flag which indicates that user confirmation is needed
	// before applying the change.
	NeedsConfirmation *bool `json:"needsConfirmation,omitempty"`

	// A human-readable string which is rendered less prominent in
	// the user interface.
	Description string `json:"description,omitempty"`
}

// TextDocumentEditItem is decoded in the order AnnotatedTextEdit, TextEdit.
type TextDocumentEditItem = sumtype.Or2[AnnotatedTextEdit, TextEdit]

// Describes textual changes on a single text document.
type TextDocumentEdit struct {
	TextDocument OptionalVersionedTextDocumentIdentifier `json:"textDocument"`
	Edits        []TextDocumentEditItem                  `json:"edits"`
}

type CreateFileOptions struct {
	Overwrite      *bool `json:"overwrite,omitempty"`
	IgnoreIfExists *bool `json:"ignoreIfExists,omitempty"`
}

type CreateFile struct {
	Kind         string                     `json:"kind"`
	URI          DocumentURI                `json:"uri"`
	Options      *CreateFileOptions         `json:"options,omitempty"`
	AnnotationID ChangeAnnotationIdentifier `json:"annotationId,omitempty"`
}

func (CreateFile) Discriminant() (string, string) { return "kind", "create" }

type RenameFileOptions struct {
	Overwrite      *bool `json:"overwrite,omitempty"`
	IgnoreIfExists *bool `json:"ignoreIfExists,omitempty"`
}

type RenameFile struct {
	Kind         string                     `json:"kind"`
	OldURI       DocumentURI                `json:"oldUri"`
	NewURI       DocumentURI                `json:"newUri"`
	Options      *RenameFileOptions         `json:"options,omitempty"`
	AnnotationID ChangeAnnotationIdentifier `json:"annotationId,omitempty"`
}

func (RenameFile) Discriminant() (string, string) { return "kind", "rename" }

type DeleteFileOptions struct {
	Recursive         *bool `json:"recursive,omitempty"`
	IgnoreIfNotExists *bool `json:"ignoreIfNotExists,omitempty"`
}

type DeleteFile struct {
	Kind         string                     `json:"kind"`
	URI          DocumentURI                `json:"uri"`
	Options      *DeleteFileOptions         `json:"options,omitempty"`
	AnnotationID ChangeAnnotationIdentifier `json:"annotationId,omitempty"`
}

func (DeleteFile) Discriminant() (string, string) { return "kind", "delete" }

// DocumentChangeDescriptor describes the four kinds of document changes, the
// file operations are identified by their kind field.
var DocumentChangeDescriptor = sumtype.MustNewDescriptor("DocumentChange",
	sumtype.Alt[TextDocumentEdit]("TextDocumentEdit"),
	sumtype.Alt[CreateFile]("CreateFile"),
	sumtype.Alt[RenameFile]("RenameFile"),
	sumtype.Alt[DeleteFile]("DeleteFile"),
)

// A DocumentChange is a TextDocumentEdit, a CreateFile, a RenameFile or a DeleteFile.
type DocumentChange struct {
	sumtype.Value
}

func NewTextDocumentChange(edit TextDocumentEdit) DocumentChange {
	return DocumentChange{sumtype.MustOf(DocumentChangeDescriptor, edit, 0)}
}

func NewCreateFileChange(uri DocumentURI, options *CreateFileOptions) DocumentChange {
	op := CreateFile{Kind: "create", URI: uri, Options: options}
	return DocumentChange{sumtype.MustOf(DocumentChangeDescriptor, op, 1)}
}

func NewRenameFileChange(oldURI, newURI DocumentURI, options *RenameFileOptions) DocumentChange {
	op := RenameFile{Kind: "rename", OldURI: oldURI, NewURI: newURI, Options: options}
	return DocumentChange{sumtype.MustOf(DocumentChangeDescriptor, op, 2)}
}

func NewDeleteFileChange(uri DocumentURI, options *DeleteFileOptions) DocumentChange {
	op := DeleteFile{Kind: "delete", URI: uri, Options: options}
	return DocumentChange{sumtype.MustOf(DocumentChangeDescriptor, op, 3)}
}

func (c *DocumentChange) UnmarshalJSON(data []byte) error {
	v, err := DocumentChangeDescriptor.Decode(data)
	if err != nil {
		return err
	}
	c.Value = v
	return nil
}

func (c *DocumentChange) MatchesShape(res gjson.Result) bool {
	return DocumentChangeDescriptor.MatchesShape(res)
}

// A workspace edit represents changes to many resources managed in the workspace. The edit
// should either provide `changes` or `documentChanges`. If documentChanges are present
// they are preferred over `changes` if the client can handle versioned document edits.
type WorkspaceEdit struct {
	Changes map[DocumentURI][]TextEdit `json:"changes,omitempty"`

	DocumentChanges []DocumentChange `json:"documentChanges,omitempty"`

	// A map of change annotations that can be referenced in `AnnotatedTextEdit`s or create, rename and
	// delete file / folder operations.
	//
	// @since 3.16.0
	ChangeAnnotations map[ChangeAnnotationIdentifier]ChangeAnnotation `json:"changeAnnotations,omitempty"`
}

type ApplyWorkspaceEditParams struct {
	// An optional label of the workspace edit. This label is
	// presented in the user interface for example on an undo
	// stack to undo the workspace edit.
	Label string        `json:"label,omitempty"`
	Edit  WorkspaceEdit `json:"edit"`
}

type ApplyWorkspaceEditResult struct {
	Applied       bool    `json:"applied"`
	FailureReason string  `json:"failureReason,omitempty"`
	FailedChange  *uint32 `json:"failedChange,omitempty"`
}
