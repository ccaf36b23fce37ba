package jsonrpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/utils"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/tinylru"
)

const DEFAULT_CLOSED_ID_CACHE_SIZE = 256

type RequestState int32

const (
	Sent RequestState = iota
	Completed
	Failed
	Cancelled
)

func (s RequestState) String() string {
	switch s {
	case Sent:
		return "sent"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s RequestState) IsTerminal() bool {
	return s != Sent
}

type IdStyle string

const (
	CounterIds IdStyle = "counter"
	UUIDIds    IdStyle = "uuid"
	ULIDIds    IdStyle = "ulid"
)

// A PendingRequest is a request sent to the remote side, it transitions once
// from Sent to a terminal state.
type PendingRequest struct {
	ID        ID
	Method    *MethodDescriptor
	Params    any
	CreatedAt time.Time

	//fields below are protected by the table's lock.
	state         RequestState
	result        json.RawMessage
	err           error
	continuation  func(*PendingRequest)
	timer         *time.Timer
	subscriptions []*Subscription

	done chan struct{}
}

// Done returns a channel that is closed when the request reaches a terminal state.
func (r *PendingRequest) Done() <-chan struct{} {
	return r.done
}

// State is safe to call concurrently, once Done is closed it does not change.
func (r *PendingRequest) State() RequestState {
	select {
	case <-r.done:
		return r.state
	default:
		return Sent
	}
}

// Err returns nil while the request is Sent or if it completed.
func (r *PendingRequest) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Result returns the raw result of a completed request.
func (r *PendingRequest) Result() json.RawMessage {
	select {
	case <-r.done:
		return r.result
	default:
		return nil
	}
}

// Subscriptions returns the progress subscriptions owned by the request.
func (r *PendingRequest) Subscriptions() []*Subscription {
	<-r.done
	return r.subscriptions
}

// Wait waits for the request to reach a terminal state. If ctx is done first
// ctx.Err() is returned and the request stays pending.
func (r *PendingRequest) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type IssueOption func(r *PendingRequest, timeout *time.Duration)

// WithContinuation sets a function called once when the request reaches a terminal
// state, it should not block.
func WithContinuation(fn func(*PendingRequest)) IssueOption {
	return func(r *PendingRequest, timeout *time.Duration) {
		r.continuation = fn
	}
}

// WithTimeout overrides the default timeout of the table, zero disables the timeout.
func WithTimeout(d time.Duration) IssueOption {
	return func(r *PendingRequest, timeout *time.Duration) {
		*timeout = d
	}
}

type CorrelationTableConfig struct {
	IdStyle IdStyle

	//if not zero requests are cancelled with ErrRequestTimedOut after this duration.
	DefaultTimeout time.Duration

	//number of recently closed ids remembered to absorb late responses.
	ClosedIdCacheSize int

	//called after each terminal transition, outside of the table's lock.
	OnTerminal func(r *PendingRequest)

	Logger zerolog.Logger
}

// A CorrelationTable matches responses to the outstanding requests.
type CorrelationTable struct {
	lock    sync.Mutex
	pending map[ID]*PendingRequest
	counter int64

	closedIds tinylru.LRU //ID -> terminal RequestState

	idStyle        IdStyle
	defaultTimeout time.Duration
	onTerminal     func(r *PendingRequest)
	logger         zerolog.Logger
}

func NewCorrelationTable(config CorrelationTableConfig) *CorrelationTable {
	if config.IdStyle == "" {
		config.IdStyle = CounterIds
	}
	if config.ClosedIdCacheSize <= 0 {
		config.ClosedIdCacheSize = DEFAULT_CLOSED_ID_CACHE_SIZE
	}

	t := &CorrelationTable{
		pending:        map[ID]*PendingRequest{},
		idStyle:        config.IdStyle,
		defaultTimeout: config.DefaultTimeout,
		onTerminal:     config.OnTerminal,
		logger:         config.Logger,
	}
	t.closedIds.Resize(config.ClosedIdCacheSize)
	return t
}

// Issue allocates a fresh id and stores a Sent request.
func (t *CorrelationTable) Issue(desc *MethodDescriptor, params any, opts ...IssueOption) (*PendingRequest, error) {
	if desc == nil || desc.Direction != Request {
		name := "<nil>"
		if desc != nil {
			name = desc.Name
		}
		return nil, fmt.Errorf("%w: %s", ErrNotARequest, name)
	}

	req := &PendingRequest{
		Method:    desc,
		Params:    params,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}

	timeout := t.defaultTimeout
	for _, opt := range opts {
		opt(req, &timeout)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	for {
		req.ID = t.newId()
		if _, used := t.pending[req.ID]; !used {
			break
		}
	}
	t.pending[req.ID] = req

	if timeout > 0 {
		id := req.ID
		req.timer = time.AfterFunc(timeout, func() {
			t.terminate(id, Cancelled, nil, ErrRequestTimedOut)
		})
	}

	return req, nil
}

func (t *CorrelationTable) newId() ID {
	switch t.idStyle {
	case UUIDIds:
		return defines.NewString(uuid.NewString())
	case ULIDIds:
		return defines.NewString(ulid.Make().String())
	default:
		t.counter++
		return defines.NewInteger(t.counter)
	}
}

// Get returns the outstanding request with the given id.
func (t *CorrelationTable) Get(id ID) (*PendingRequest, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	req, ok := t.pending[id]
	return req, ok
}

// Len returns the number of outstanding requests.
func (t *CorrelationTable) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.pending)
}

// attach makes a progress subscription owned by an outstanding request, it returns false
// if the request is no longer outstanding.
func (t *CorrelationTable) attach(id ID, sub *Subscription) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	req, ok := t.pending[id]
	if !ok {
		return false
	}
	req.subscriptions = append(req.subscriptions, sub)
	return true
}

func (t *CorrelationTable) Resolve(id ID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return t.terminate(id, Completed, result, nil)
}

func (t *CorrelationTable) Reject(id ID, err error) error {
	return t.terminate(id, Failed, nil, err)
}

// Cancel transitions a Sent request to Cancelled, later responses for this id are absorbed.
func (t *CorrelationTable) Cancel(id ID) error {
	return t.terminate(id, Cancelled, nil, ErrRequestCancelled)
}

// CancelAll cancels all outstanding requests with err, it is called when the session closes.
func (t *CorrelationTable) CancelAll(err error) {
	t.lock.Lock()
	ids := make([]ID, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	t.lock.Unlock()

	for _, id := range ids {
		t.terminate(id, Cancelled, nil, err)
	}
}

func (t *CorrelationTable) terminate(id ID, state RequestState, result json.RawMessage, err error) error {
	t.lock.Lock()

	req, ok := t.pending[id]
	if !ok {
		closedState, wasClosed := t.closedIds.Get(id)
		t.lock.Unlock()

		if wasClosed && closedState.(RequestState) == Cancelled {
			//the remote side is not obliged to stop working on cancelled requests.
			t.logger.Debug().Str("id", id.String()).Str("transition", state.String()).Msg("ignore transition of a cancelled request")
			return nil
		}
		return &UnknownRequestIdError{ID: id, Duplicate: wasClosed}
	}

	delete(t.pending, id)
	t.closedIds.Set(id, state)

	req.state = state
	req.result = result
	req.err = err
	if req.timer != nil {
		req.timer.Stop()
	}
	continuation := req.continuation
	req.continuation = nil
	close(req.done)

	t.lock.Unlock()

	if t.onTerminal != nil {
		t.onTerminal(req)
	}
	if continuation != nil {
		func() {
			defer utils.RecoverAndLog(t.logger, "panic in request continuation")
			continuation(req)
		}()
	}
	return nil
}
