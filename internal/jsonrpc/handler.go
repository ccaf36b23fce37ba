package jsonrpc

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// HandleRequest sets the handler of a request method, the params are decoded into a *P.
func HandleRequest[P, R any](server *Server, t RequestType[P, R], fn func(ctx context.Context, params *P) (R, error)) error {
	return server.RegisterMethod(MethodInfo{
		Descriptor: t.Descriptor(),
		Handler: func(ctx context.Context, params any) (any, error) {
			result, err := fn(ctx, params.(*P))
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	})
}

// HandleNotification sets the handler of a notification method, the params are decoded into a *P.
func HandleNotification[P any](server *Server, t NotificationType[P], fn func(ctx context.Context, params *P) error) error {
	return server.RegisterMethod(MethodInfo{
		Descriptor: t.Descriptor(),
		Handler: func(ctx context.Context, params any) (any, error) {
			return nil, fn(ctx, params.(*P))
		},
	})
}

// HandleSyncNotification is like HandleNotification but fn runs in the read loop: the messages
// received after the notification are handled once fn returns. fn should not block.
func HandleSyncNotification[P any](server *Server, t NotificationType[P], fn func(ctx context.Context, params *P) error) error {
	return server.RegisterMethod(MethodInfo{
		Descriptor: t.Descriptor(),
		Handler: func(ctx context.Context, params any) (any, error) {
			return nil, fn(ctx, params.(*P))
		},
		inline: true,
	})
}

// SendRequest sends a request and decodes its result.
func SendRequest[P, R any](ctx context.Context, session *Session, t RequestType[P, R], params P, opts CallOptions) (R, error) {
	var result R

	raw, err := session.Call(ctx, t.Descriptor(), &params, opts)
	if err != nil {
		return result, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return result, nil
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("invalid result for %s: %w", t.Method(), err)
	}
	return result, nil
}

func SendNotification[P any](session *Session, t NotificationType[P], params P) error {
	return session.Notify(t.Method(), params)
}
