package jsonrpc

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
)

const (
	JSONRPC_VERSION = "2.0"

	MAX_PARAMS_LOGGING_SIZE = 3000
)

// ID is the id of a request, an integer or a string.
type ID = defines.IntegerOrString

type BaseMessage struct {
	Jsonrpc string `json:"jsonrpc"`
}

type RequestMessage struct {
	BaseMessage
	ID     ID              `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type NotificationMessage struct {
	BaseMessage
	Method string          `json:"method"` // methods starting with "$/" are protocol dependent.
	Params json.RawMessage `json:"params,omitempty"`
}

type ResponseMessage struct {
	BaseMessage
	ID     ID              `json:"id"`
	Result json.RawMessage `json:"result,omitempty"` // always set for successful responses ("null" if there is no result).
	Error  *ResponseError  `json:"error,omitempty"`
}

// incomingMessage is any of the 3 message kinds, the kind is determined by the
// presence of the method and id members.
type incomingMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

type MessageKind int

const (
	RequestKind MessageKind = iota + 1
	NotificationKind
	ResponseKind
	InvalidKind
)

func (k MessageKind) String() string {
	switch k {
	case RequestKind:
		return "request"
	case NotificationKind:
		return "notification"
	case ResponseKind:
		return "response"
	default:
		return "invalid"
	}
}

func (m *incomingMessage) kind() MessageKind {
	switch {
	case m.Method != "" && m.ID != nil:
		return RequestKind
	case m.Method != "":
		return NotificationKind
	case m.ID != nil || m.Error != nil || len(m.Result) > 0:
		return ResponseKind
	default:
		return InvalidKind
	}
}

type ResponseError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    defines.LSPAny `json:"data,omitempty"`
}

func (r ResponseError) Error() string {
	if r.Data.IsAbsent() {
		return fmt.Sprintf("code: %d, message: %s", r.Code, r.Message)
	}
	return fmt.Sprintf("code: %d, message: %s, data: %s", r.Code, r.Message, r.Data)
}

// WithMessage returns a copy of the error with a different message.
func (r ResponseError) WithMessage(msg string) ResponseError {
	r.Message = msg
	return r
}

type BuildInError = ResponseError

const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
	InvalidParamsCode  = -32602
	InternalErrorCode  = -32603

	jsonrpcReservedErrorRangeStartCode = -32099
	ServerNotInitializedCode           = -32002
	UnknownErrorCodeCode               = -32001
	jsonrpcReservedErrorRangeEndCode   = -32000

	lspReservedErrorRangeStartCode = -32899
	RequestFailedCode              = -32803
	ServerCancelledCode            = -32802
	ContentModifiedCode            = -32801
	RequestCancelledCode           = -32800
	lspReservedErrorRangeEndCode   = -32800
)

var (
	ParseError = BuildInError{
		Code:    ParseErrorCode,
		Message: "ParseError",
	}
	InvalidRequest = BuildInError{
		Code:    InvalidRequestCode,
		Message: "InvalidRequest",
	}
	MethodNotFound = BuildInError{
		Code:    MethodNotFoundCode,
		Message: "MethodNotFound",
	}
	InvalidParams = BuildInError{
		Code:    InvalidParamsCode,
		Message: "InvalidParams",
	}
	InternalError = BuildInError{
		Code:    InternalErrorCode,
		Message: "InternalError",
	}
	ServerNotInitialized = BuildInError{
		Code:    ServerNotInitializedCode,
		Message: "ServerNotInitialized",
	}
	UnknownErrorCode = BuildInError{
		Code:    UnknownErrorCodeCode,
		Message: "UnknownErrorCode",
	}
	RequestFailed = BuildInError{
		Code:    RequestFailedCode,
		Message: "RequestFailed",
	}
	ServerCancelled = BuildInError{
		Code:    ServerCancelledCode,
		Message: "ServerCancelled",
	}
	ContentModified = BuildInError{
		Code:    ContentModifiedCode,
		Message: "ContentModified",
	}
	RequestCancelled = BuildInError{
		Code:    RequestCancelledCode,
		Message: "RequestCancelled",
	}
)
