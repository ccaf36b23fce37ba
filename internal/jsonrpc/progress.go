package jsonrpc

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/rs/zerolog"
)

const (
	PARTIAL_RESULT_TOKEN_SUFFIX = "/partial"
	WORK_DONE_TOKEN_SUFFIX      = "/progress"
)

type ProgressToken = defines.ProgressToken

type ProgressKind int

const (
	PartialResultProgress ProgressKind = iota + 1
	WorkDoneProgress
)

func (k ProgressKind) String() string {
	if k == PartialResultProgress {
		return "partial-result"
	}
	return "work-done"
}

type WorkDoneState int

const (
	NotStarted WorkDoneState = iota
	Begun
	Reporting
	Ended
)

func (s WorkDoneState) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Begun:
		return "begun"
	case Reporting:
		return "reporting"
	default:
		return "ended"
	}
}

func (s WorkDoneState) next(event string) (WorkDoneState, bool) {
	switch {
	case event == defines.WorkDoneProgressKindBegin && s == NotStarted:
		return Begun, true
	case event == defines.WorkDoneProgressKindReport && (s == Begun || s == Reporting):
		return Reporting, true
	case event == defines.WorkDoneProgressKindEnd && (s == Begun || s == Reporting):
		return Ended, true
	default:
		return s, false
	}
}

// PartialResultTokenFor returns the partial result token derived from a request id.
func PartialResultTokenFor(id ID) ProgressToken {
	return defines.NewString(id.String() + PARTIAL_RESULT_TOKEN_SUFFIX)
}

// WorkDoneTokenFor returns the work done token derived from a request id.
func WorkDoneTokenFor(id ID) ProgressToken {
	return defines.NewString(id.String() + WORK_DONE_TOKEN_SUFFIX)
}

type ProgressEvent struct {
	Token ProgressToken
	Kind  ProgressKind

	//raw value of the $/progress notification.
	Value json.RawMessage

	//decoded value, only set for work done progress.
	WorkDone defines.WorkDoneProgressValue
}

type ProgressCallback func(event ProgressEvent)

// A Subscription receives the $/progress events of a token, in the order they were dispatched.
type Subscription struct {
	Token ProgressToken
	Kind  ProgressKind

	callback ProgressCallback
	queue    *serialQueue

	//fields below are protected by the multiplexer's lock.
	state  WorkDoneState
	active bool
}

// Flushed returns a channel closed once the subscription is torn down and all the events
// received before have been delivered.
func (s *Subscription) Flushed() <-chan struct{} {
	return s.queue.drained
}

// ProgressMultiplexer routes $/progress notifications to subscriptions.
type ProgressMultiplexer struct {
	lock          sync.Mutex
	subscriptions map[ProgressToken]*Subscription
	logger        zerolog.Logger
	observer      Observer
}

func NewProgressMultiplexer(logger zerolog.Logger, observer Observer) *ProgressMultiplexer {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProgressMultiplexer{
		subscriptions: map[ProgressToken]*Subscription{},
		logger:        logger,
		observer:      observer,
	}
}

// Subscribe creates a subscription, a token can only have one live subscription.
func (m *ProgressMultiplexer) Subscribe(token ProgressToken, kind ProgressKind, callback ProgressCallback) (*Subscription, error) {
	if !token.IsSet() {
		return nil, fmt.Errorf("cannot subscribe with an unset progress token")
	}
	if callback == nil {
		return nil, fmt.Errorf("cannot subscribe to %s without callback", token)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.subscriptions[token]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenAlreadyInUse, token)
	}

	sub := &Subscription{
		Token:    token,
		Kind:     kind,
		callback: callback,
		queue:    newSerialQueue(m.logger),
		active:   true,
	}
	m.subscriptions[token] = sub
	return sub, nil
}

// Dispatch queues the delivery of a progress value. Values for unknown tokens are dropped: this
// routinely happens after a cancellation. Work done values violating begin -> report* -> end are
// dropped and an *OutOfOrderProgressError is returned.
func (m *ProgressMultiplexer) Dispatch(token ProgressToken, value json.RawMessage) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	sub, ok := m.subscriptions[token]
	if !ok {
		m.logger.Debug().Str("token", token.String()).Msg("drop progress for unknown token")
		m.observer.ProgressDropped("unknown-token")
		return nil
	}

	event := ProgressEvent{
		Token: token,
		Kind:  sub.Kind,
		Value: value,
	}

	ended := false

	if sub.Kind == WorkDoneProgress {
		if err := json.Unmarshal(value, &event.WorkDone); err != nil {
			m.logger.Warn().Err(err).Str("token", token.String()).Msg("drop invalid work done progress")
			m.observer.ProgressDropped("invalid-value")
			return fmt.Errorf("invalid work done progress for %s: %w", token, err)
		}

		eventKind := [...]string{
			defines.WorkDoneProgressKindBegin,
			defines.WorkDoneProgressKindReport,
			defines.WorkDoneProgressKindEnd,
		}[event.WorkDone.Index()]

		next, ok := sub.state.next(eventKind)
		if !ok {
			err := &OutOfOrderProgressError{Token: token, State: sub.state, Event: eventKind}
			m.logger.Warn().Err(err).Msg("drop out of order progress")
			m.observer.ProgressDropped("out-of-order")
			return err
		}
		sub.state = next
		ended = next == Ended
	}

	callback := sub.callback
	sub.queue.push(func() { callback(event) })

	if ended {
		m.remove(sub)
	}
	return nil
}

// Unsubscribe tears a subscription down, it is idempotent. Events dispatched
// before are still delivered.
func (m *ProgressMultiplexer) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.remove(sub)
}

// UnsubscribeAll tears all subscriptions down.
func (m *ProgressMultiplexer) UnsubscribeAll() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, sub := range m.subscriptions {
		m.remove(sub)
	}
}

func (m *ProgressMultiplexer) remove(sub *Subscription) {
	if !sub.active {
		return
	}
	sub.active = false
	if m.subscriptions[sub.Token] == sub {
		delete(m.subscriptions, sub.Token)
	}
	sub.queue.close()
}

func (m *ProgressMultiplexer) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.subscriptions)
}

// State returns the work done state of the live subscription of token.
func (m *ProgressMultiplexer) State(token ProgressToken) (WorkDoneState, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	sub, ok := m.subscriptions[token]
	if !ok {
		return 0, false
	}
	return sub.state, true
}
