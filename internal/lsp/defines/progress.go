package defines

import "github.com/inoxlang/lspcore/internal/sumtype"

// WorkDoneProgressCarrier is implemented by the params of requests that can report work done progress.
type WorkDoneProgressCarrier interface {
	GetWorkDoneToken() *ProgressToken
	SetWorkDoneToken(token ProgressToken)
}

// PartialResultCarrier is implemented by the params of requests that can stream partial results.
type PartialResultCarrier interface {
	GetPartialResultToken() *ProgressToken
	SetPartialResultToken(token ProgressToken)
}

type WorkDoneProgressParams struct {
	// An optional token that a server can use to report work done progress.
	WorkDoneToken *ProgressToken `json:"workDoneToken,omitempty"`
}

func (p *WorkDoneProgressParams) GetWorkDoneToken() *ProgressToken {
	return p.WorkDoneToken
}

func (p *WorkDoneProgressParams) SetWorkDoneToken(token ProgressToken) {
	p.WorkDoneToken = &token
}

type PartialResultParams struct {
	// An optional token that a server can use to report partial results (e.g. streaming) to
	// the client.
	PartialResultToken *ProgressToken `json:"partialResultToken,omitempty"`
}

func (p *PartialResultParams) GetPartialResultToken() *ProgressToken {
	return p.PartialResultToken
}

func (p *PartialResultParams) SetPartialResultToken(token ProgressToken) {
	p.PartialResultToken = &token
}

type ProgressParams struct {
	Token ProgressToken `json:"token"`

	// The progress data, its shape depends on the kind of the token.
	Value LSPAny `json:"value"`
}

const (
	WorkDoneProgressKindBegin  = "begin"
	WorkDoneProgressKindReport = "report"
	WorkDoneProgressKindEnd    = "end"
)

type WorkDoneProgressBegin struct {
	Kind string `json:"kind"`

	// Mandatory title of the progress operation. Used to briefly inform about
	// the kind of operation being performed.
	Title string `json:"title"`

	// Controls if a cancel button should show to allow the user to cancel the
	// long running operation.
	Cancellable *bool `json:"cancellable,omitempty"`

	Message string `json:"message,omitempty"`

	// Optional progress percentage to display (value 100 is considered 100%).
	Percentage *uint32 `json:"percentage,omitempty"`
}

func (WorkDoneProgressBegin) Discriminant() (string, string) {
	return "kind", WorkDoneProgressKindBegin
}

type WorkDoneProgressReport struct {
	Kind        string  `json:"kind"`
	Cancellable *bool   `json:"cancellable,omitempty"`
	Message     string  `json:"message,omitempty"`
	Percentage  *uint32 `json:"percentage,omitempty"`
}

func (WorkDoneProgressReport) Discriminant() (string, string) {
	return "kind", WorkDoneProgressKindReport
}

type WorkDoneProgressEnd struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

func (WorkDoneProgressEnd) Discriminant() (string, string) {
	return "kind", WorkDoneProgressKindEnd
}

// WorkDoneProgressValue is the value of a $/progress notification for a work done token.
type WorkDoneProgressValue = sumtype.Or3[WorkDoneProgressBegin, WorkDoneProgressReport, WorkDoneProgressEnd]

func NewWorkDoneProgressBegin(title string) WorkDoneProgressBegin {
	return WorkDoneProgressBegin{Kind: WorkDoneProgressKindBegin, Title: title}
}

func NewWorkDoneProgressReport(message string, percentage *uint32) WorkDoneProgressReport {
	return WorkDoneProgressReport{Kind: WorkDoneProgressKindReport, Message: message, Percentage: percentage}
}

func NewWorkDoneProgressEnd(message string) WorkDoneProgressEnd {
	return WorkDoneProgressEnd{Kind: WorkDoneProgressKindEnd, Message: message}
}

type WorkDoneProgressCreateParams struct {
	Token ProgressToken `json:"token"`
}

type WorkDoneProgressCancelParams struct {
	Token ProgressToken `json:"token"`
}

type CancelParams struct {
	// The request id to cancel.
	ID IntegerOrString `json:"id"`
}
