package jsonrpc

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
)

const (
	CANCEL_REQUEST_METHOD = "$/cancelRequest"
	PROGRESS_METHOD       = "$/progress"
	EXIT_METHOD           = "exit"
)

// RegisterBuiltinMethods registers $/cancelRequest and $/progress if they are not already registered.
func RegisterBuiltinMethods(r *Registry) error {
	if _, ok := r.Lookup(CANCEL_REQUEST_METHOD); !ok {
		if _, err := RegisterNotification[defines.CancelParams](r, CANCEL_REQUEST_METHOD, WithOrigin(BothWays)); err != nil {
			return err
		}
	}
	if _, ok := r.Lookup(PROGRESS_METHOD); !ok {
		if _, err := RegisterNotification[defines.ProgressParams](r, PROGRESS_METHOD, WithOrigin(BothWays)); err != nil {
			return err
		}
	}
	return nil
}

func CancelRequest(r *Registry) MethodInfo {
	desc, _ := r.Lookup(CANCEL_REQUEST_METHOD)
	return MethodInfo{
		Descriptor: desc,
		Handler:    cancelRequest,
		inline:     true,
	}
}

func cancelRequest(ctx context.Context, req any) (any, error) {
	params := req.(*defines.CancelParams)
	if !params.ID.IsSet() {
		return nil, errors.New("missing id of the request to cancel")
	}

	session := GetSession(ctx)
	session.cancelJob(params.ID)
	return nil, nil
}

func Progress(r *Registry) MethodInfo {
	desc, _ := r.Lookup(PROGRESS_METHOD)
	return MethodInfo{
		Descriptor: desc,
		Handler:    progress,
		inline:     true,
	}
}

func progress(ctx context.Context, req any) (any, error) {
	params := req.(*defines.ProgressParams)
	session := GetSession(ctx)
	return nil, session.progress.Dispatch(params.Token, json.RawMessage(params.Value))
}
