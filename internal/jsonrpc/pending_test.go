package jsonrpc

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testParams struct {
	Text string `json:"text"`
}

type testResult struct {
	Text string `json:"text"`
}

func newPendingTestRegistry(t *testing.T) (*Registry, *MethodDescriptor, *MethodDescriptor, *MethodDescriptor) {
	registry := NewRegistry()
	hover := MustRegisterRequest[defines.HoverParams, *defines.Hover](registry, "textDocument/hover")
	completion := MustRegisterRequest[defines.CompletionParams, defines.CompletionResult](registry, "textDocument/completion")
	exit := MustRegisterNotification[defines.NoParams](registry, "exit")
	return registry, hover.Descriptor(), completion.Descriptor(), exit.Descriptor()
}

func TestCorrelationTable(t *testing.T) {

	t.Run("responses delivered in reverse order are not swapped", func(t *testing.T) {
		_, hover, completion, _ := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		var hoverResult, completionResult json.RawMessage
		var hoverCalls, completionCalls atomic.Int32

		hoverReq, err := table.Issue(hover, &defines.HoverParams{}, WithContinuation(func(r *PendingRequest) {
			hoverCalls.Add(1)
			hoverResult = r.Result()
		}))
		require.NoError(t, err)

		completionReq, err := table.Issue(completion, &defines.CompletionParams{}, WithContinuation(func(r *PendingRequest) {
			completionCalls.Add(1)
			completionResult = r.Result()
		}))
		require.NoError(t, err)

		assert.Equal(t, defines.NewInteger(1), hoverReq.ID)
		assert.Equal(t, defines.NewInteger(2), completionReq.ID)
		assert.Equal(t, 2, table.Len())

		require.NoError(t, table.Resolve(completionReq.ID, json.RawMessage(`{"isIncomplete":false,"items":[]}`)))
		require.NoError(t, table.Resolve(hoverReq.ID, json.RawMessage(`{"contents":"doc"}`)))

		assert.EqualValues(t, 1, hoverCalls.Load())
		assert.EqualValues(t, 1, completionCalls.Load())
		assert.JSONEq(t, `{"contents":"doc"}`, string(hoverResult))
		assert.JSONEq(t, `{"isIncomplete":false,"items":[]}`, string(completionResult))

		assert.Equal(t, Completed, hoverReq.State())
		assert.Equal(t, Completed, completionReq.State())
		assert.Zero(t, table.Len())
	})

	t.Run("response after cancellation is absorbed", func(t *testing.T) {
		_, hover, _, _ := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		var calls atomic.Int32
		req, err := table.Issue(hover, &defines.HoverParams{}, WithContinuation(func(r *PendingRequest) {
			calls.Add(1)
		}))
		require.NoError(t, err)

		require.NoError(t, table.Cancel(req.ID))
		assert.Equal(t, Cancelled, req.State())
		assert.ErrorIs(t, req.Err(), ErrRequestCancelled)

		assert.NoError(t, table.Resolve(req.ID, json.RawMessage(`null`)))
		assert.NoError(t, table.Reject(req.ID, InternalError))
		assert.NoError(t, table.Cancel(req.ID))

		assert.EqualValues(t, 1, calls.Load())
		assert.Equal(t, Cancelled, req.State())
	})

	t.Run("duplicate response", func(t *testing.T) {
		_, hover, _, _ := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		req, err := table.Issue(hover, &defines.HoverParams{})
		require.NoError(t, err)

		require.NoError(t, table.Resolve(req.ID, nil))
		assert.Equal(t, "null", string(req.Result()))

		err = table.Resolve(req.ID, json.RawMessage(`{}`))
		var unknownErr *UnknownRequestIdError
		require.ErrorAs(t, err, &unknownErr)
		assert.True(t, unknownErr.Duplicate)
		assert.Equal(t, "null", string(req.Result()))
	})

	t.Run("unknown id", func(t *testing.T) {
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		err := table.Resolve(defines.NewInteger(42), nil)
		var unknownErr *UnknownRequestIdError
		require.ErrorAs(t, err, &unknownErr)
		assert.False(t, unknownErr.Duplicate)
		assert.Equal(t, defines.NewInteger(42), unknownErr.ID)
	})

	t.Run("rejection", func(t *testing.T) {
		_, hover, _, _ := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		req, err := table.Issue(hover, &defines.HoverParams{})
		require.NoError(t, err)

		require.NoError(t, table.Reject(req.ID, ContentModified))
		assert.Equal(t, Failed, req.State())

		var respErr ResponseError
		require.ErrorAs(t, req.Err(), &respErr)
		assert.Equal(t, ContentModifiedCode, respErr.Code)
	})

	t.Run("notifications cannot be issued", func(t *testing.T) {
		_, _, _, exit := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		_, err := table.Issue(exit, nil)
		assert.ErrorIs(t, err, ErrNotARequest)

		_, err = table.Issue(nil, nil)
		assert.ErrorIs(t, err, ErrNotARequest)
	})

	t.Run("timeout", func(t *testing.T) {
		_, hover, _, _ := newPendingTestRegistry(t)

		var terminated atomic.Int32
		table := NewCorrelationTable(CorrelationTableConfig{
			DefaultTimeout: 10 * time.Millisecond,
			OnTerminal: func(r *PendingRequest) {
				terminated.Add(1)
			},
			Logger: zerolog.Nop(),
		})

		req, err := table.Issue(hover, &defines.HoverParams{})
		require.NoError(t, err)

		select {
		case <-req.Done():
		case <-time.After(2 * time.Second):
			require.FailNow(t, "request should have timed out")
		}

		assert.Equal(t, Cancelled, req.State())
		assert.ErrorIs(t, req.Err(), ErrRequestTimedOut)
		assert.EqualValues(t, 1, terminated.Load())

		//late response
		assert.NoError(t, table.Resolve(req.ID, nil))
		assert.EqualValues(t, 1, terminated.Load())
	})

	t.Run("timeout disabled for a single request", func(t *testing.T) {
		_, hover, _, _ := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{
			DefaultTimeout: 10 * time.Millisecond,
			Logger:         zerolog.Nop(),
		})

		req, err := table.Issue(hover, &defines.HoverParams{}, WithTimeout(0))
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, Sent, req.State())
	})

	t.Run("cancel all", func(t *testing.T) {
		_, hover, completion, _ := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		req1, _ := table.Issue(hover, &defines.HoverParams{})
		req2, _ := table.Issue(completion, &defines.CompletionParams{})

		table.CancelAll(ErrSessionClosed)

		assert.Zero(t, table.Len())
		assert.ErrorIs(t, req1.Err(), ErrSessionClosed)
		assert.ErrorIs(t, req2.Err(), ErrSessionClosed)
	})

	t.Run("panicking continuation", func(t *testing.T) {
		_, hover, _, _ := newPendingTestRegistry(t)
		table := NewCorrelationTable(CorrelationTableConfig{Logger: zerolog.Nop()})

		req, _ := table.Issue(hover, &defines.HoverParams{}, WithContinuation(func(r *PendingRequest) {
			panic(errors.New("continuation error"))
		}))

		assert.NotPanics(t, func() {
			table.Resolve(req.ID, nil)
		})
		assert.Equal(t, Completed, req.State())
	})

	t.Run("id styles", func(t *testing.T) {
		_, hover, _, _ := newPendingTestRegistry(t)

		for _, style := range []IdStyle{UUIDIds, ULIDIds} {
			table := NewCorrelationTable(CorrelationTableConfig{IdStyle: style, Logger: zerolog.Nop()})

			req1, err := table.Issue(hover, &defines.HoverParams{})
			require.NoError(t, err)
			req2, err := table.Issue(hover, &defines.HoverParams{})
			require.NoError(t, err)

			assert.True(t, req1.ID.IsString(), style)
			assert.NotEqual(t, req1.ID, req2.ID, style)
			str, _ := req1.ID.Str()
			assert.NotEmpty(t, strings.TrimSpace(str))
		}
	})
}
