package jsonrpc

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	noopObserver
	lock    sync.Mutex
	dropped []string
}

func (o *recordingObserver) ProgressDropped(reason string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.dropped = append(o.dropped, reason)
}

func (o *recordingObserver) droppedReasons() []string {
	o.lock.Lock()
	defer o.lock.Unlock()
	return append([]string(nil), o.dropped...)
}

func waitFlushed(t *testing.T, sub *Subscription) {
	select {
	case <-sub.Flushed():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "subscription not flushed")
	}
}

func TestProgressMultiplexer(t *testing.T) {

	t.Run("partial results are delivered in order", func(t *testing.T) {
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), nil)
		token := defines.NewString("tok-1")

		var lock sync.Mutex
		var values []string

		sub, err := multiplexer.Subscribe(token, PartialResultProgress, func(event ProgressEvent) {
			lock.Lock()
			defer lock.Unlock()
			values = append(values, string(event.Value))
		})
		require.NoError(t, err)

		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`["A"]`)))
		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`["B"]`)))
		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`["C"]`)))

		multiplexer.Unsubscribe(sub)
		waitFlushed(t, sub)

		assert.Equal(t, []string{`["A"]`, `["B"]`, `["C"]`}, values)
		assert.Zero(t, multiplexer.Len())
	})

	t.Run("unknown token", func(t *testing.T) {
		observer := &recordingObserver{}
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), observer)

		assert.NoError(t, multiplexer.Dispatch(defines.NewInteger(3), json.RawMessage(`[]`)))
		assert.Equal(t, []string{"unknown-token"}, observer.droppedReasons())
	})

	t.Run("values dispatched after unsubscription are dropped", func(t *testing.T) {
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), nil)
		token := defines.NewString("tok")

		calls := 0
		sub, err := multiplexer.Subscribe(token, PartialResultProgress, func(event ProgressEvent) {
			calls++
		})
		require.NoError(t, err)

		multiplexer.Unsubscribe(sub)
		multiplexer.Unsubscribe(sub)
		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`[1]`)))

		waitFlushed(t, sub)
		assert.Zero(t, calls)
	})

	t.Run("token already in use", func(t *testing.T) {
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), nil)
		token := defines.NewString("tok")

		sub, err := multiplexer.Subscribe(token, PartialResultProgress, func(event ProgressEvent) {})
		require.NoError(t, err)

		_, err = multiplexer.Subscribe(token, WorkDoneProgress, func(event ProgressEvent) {})
		assert.ErrorIs(t, err, ErrTokenAlreadyInUse)

		multiplexer.Unsubscribe(sub)
		_, err = multiplexer.Subscribe(token, WorkDoneProgress, func(event ProgressEvent) {})
		assert.NoError(t, err)
	})

	t.Run("invalid subscriptions", func(t *testing.T) {
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), nil)

		_, err := multiplexer.Subscribe(defines.IntegerOrString{}, PartialResultProgress, func(event ProgressEvent) {})
		assert.Error(t, err)

		_, err = multiplexer.Subscribe(defines.NewInteger(1), PartialResultProgress, nil)
		assert.Error(t, err)
	})

	t.Run("work done lifecycle", func(t *testing.T) {
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), nil)
		token := defines.NewString("work")

		var kinds []int
		sub, err := multiplexer.Subscribe(token, WorkDoneProgress, func(event ProgressEvent) {
			kinds = append(kinds, event.WorkDone.Index())
		})
		require.NoError(t, err)

		state, ok := multiplexer.State(token)
		require.True(t, ok)
		assert.Equal(t, NotStarted, state)

		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"begin","title":"Indexing"}`)))
		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"report","percentage":50}`)))
		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"report","message":"half"}`)))

		state, _ = multiplexer.State(token)
		assert.Equal(t, Reporting, state)

		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"end"}`)))

		//the end event tears the subscription down.
		_, ok = multiplexer.State(token)
		assert.False(t, ok)
		waitFlushed(t, sub)

		assert.Equal(t, []int{0, 1, 1, 2}, kinds)
	})

	t.Run("work done progress after the end", func(t *testing.T) {
		observer := &recordingObserver{}
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), observer)
		token := defines.NewString("work")

		calls := 0
		sub, err := multiplexer.Subscribe(token, WorkDoneProgress, func(event ProgressEvent) {
			calls++
		})
		require.NoError(t, err)

		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"begin","title":"Indexing"}`)))
		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"end"}`)))
		waitFlushed(t, sub)

		assert.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"report","percentage":80}`)))
		assert.Equal(t, 2, calls)
		assert.Equal(t, []string{"unknown-token"}, observer.droppedReasons())
	})

	t.Run("out of order work done progress", func(t *testing.T) {
		observer := &recordingObserver{}
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), observer)
		token := defines.NewString("work")

		_, err := multiplexer.Subscribe(token, WorkDoneProgress, func(event ProgressEvent) {})
		require.NoError(t, err)

		err = multiplexer.Dispatch(token, json.RawMessage(`{"kind":"report","percentage":10}`))
		var outOfOrderErr *OutOfOrderProgressError
		require.ErrorAs(t, err, &outOfOrderErr)
		assert.Equal(t, NotStarted, outOfOrderErr.State)
		assert.Equal(t, "report", outOfOrderErr.Event)

		require.NoError(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"begin","title":"a"}`)))

		err = multiplexer.Dispatch(token, json.RawMessage(`{"kind":"begin","title":"b"}`))
		require.ErrorAs(t, err, &outOfOrderErr)
		assert.Equal(t, Begun, outOfOrderErr.State)

		assert.Equal(t, []string{"out-of-order", "out-of-order"}, observer.droppedReasons())
	})

	t.Run("invalid work done value", func(t *testing.T) {
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), nil)
		token := defines.NewString("work")

		_, err := multiplexer.Subscribe(token, WorkDoneProgress, func(event ProgressEvent) {})
		require.NoError(t, err)

		assert.Error(t, multiplexer.Dispatch(token, json.RawMessage(`{"kind":"unknown"}`)))
		assert.Error(t, multiplexer.Dispatch(token, json.RawMessage(`[1]`)))

		state, _ := multiplexer.State(token)
		assert.Equal(t, NotStarted, state)
	})

	t.Run("unsubscribe all", func(t *testing.T) {
		multiplexer := NewProgressMultiplexer(zerolog.Nop(), nil)

		sub1, _ := multiplexer.Subscribe(defines.NewInteger(1), PartialResultProgress, func(event ProgressEvent) {})
		sub2, _ := multiplexer.Subscribe(defines.NewInteger(2), WorkDoneProgress, func(event ProgressEvent) {})

		multiplexer.UnsubscribeAll()
		assert.Zero(t, multiplexer.Len())
		waitFlushed(t, sub1)
		waitFlushed(t, sub2)
	})
}

func TestProgressTokens(t *testing.T) {
	id := defines.NewInteger(5)
	assert.Equal(t, defines.NewString("5/partial"), PartialResultTokenFor(id))
	assert.Equal(t, defines.NewString("5/progress"), WorkDoneTokenFor(id))
}
